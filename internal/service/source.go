package service

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cloo-solutions/otter/internal/domain"
	"github.com/cloo-solutions/otter/internal/telemetry"
)

// SourceService accepts uploaded documents and queues them for ingestion.
type SourceService struct {
	txRunner   TxRunner
	files      FileStore
	mediaTypes map[string]bool
	newID      func() string
	logger     *zap.Logger
}

// NewSourceService creates a SourceService accepting the given media types
func NewSourceService(txRunner TxRunner, files FileStore, mediaTypes []string, logger *zap.Logger) *SourceService {
	accepted := make(map[string]bool, len(mediaTypes))
	for _, mt := range mediaTypes {
		accepted[mt] = true
	}
	return &SourceService{
		txRunner:   txRunner,
		files:      files,
		mediaTypes: accepted,
		newID:      uuid.NewString,
		logger:     logger,
	}
}

type UploadInput struct {
	PrincipalID string
	FileName    string
	MediaType   string
	Content     []byte
}

type UploadOutput struct {
	Source *domain.Source
	Job    *domain.KnowledgeJob
}

// Upload stores the file, then records the source and a queued job together.
func (s *SourceService) Upload(ctx context.Context, input UploadInput) (*UploadOutput, error) {
	ctx, span := telemetry.StartSpan(ctx, "SourceService.Upload", telemetry.SpanAttributes{
		PrincipalID: input.PrincipalID,
		Operation:   "upload",
	})
	defer span.End()

	if !s.mediaTypes[input.MediaType] {
		return nil, fmt.Errorf("%w: media type %q", domain.ErrUnsupportedFormat, input.MediaType)
	}
	if len(input.Content) == 0 {
		return nil, fmt.Errorf("%w: file content", domain.ErrMissingRequiredField)
	}

	location := s.location(input.PrincipalID, input.FileName)
	src := domain.NewSource(domain.SourceKindFile, location, input.FileName, input.MediaType, input.PrincipalID)
	if err := domain.ValidateSource(src); err != nil {
		return nil, err
	}

	if err := s.files.Write(ctx, location, input.Content, input.MediaType); err != nil {
		span.SetError(err)
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeInternalError, "store source file", err)
	}

	job := domain.NewKnowledgeJob("")
	err := s.txRunner.WithTx(ctx, func(repos TxRepositories) error {
		if err := repos.Sources().Create(ctx, src); err != nil {
			return fmt.Errorf("create source: %w", err)
		}
		job.SourceID = src.ID
		if err := repos.Jobs().Create(ctx, job); err != nil {
			return fmt.Errorf("create job: %w", err)
		}
		return nil
	})
	if err != nil {
		span.SetError(err)
		if delErr := s.files.Delete(context.WithoutCancel(ctx), location); delErr != nil {
			s.logger.Warn("failed to remove orphaned source file", zap.String("location", location), zap.Error(delErr))
		}
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodePersistence, "record source", err)
	}

	s.logger.Info("source queued",
		zap.String("source_id", src.ID),
		zap.String("job_id", job.ID),
		zap.String("media_type", src.MediaType))

	return &UploadOutput{Source: src, Job: job}, nil
}

// location builds a storage key that never depends on client-supplied path
// segments beyond the extension.
func (s *SourceService) location(principalID, fileName string) string {
	ext := strings.ToLower(path.Ext(path.Base(strings.ReplaceAll(fileName, "\\", "/"))))
	if len(ext) > 10 {
		ext = ""
	}
	return path.Join("sources", uuid.NewSHA1(uuid.NameSpaceOID, []byte(principalID)).String(), s.newID()+ext)
}
