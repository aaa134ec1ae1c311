package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/cloo-solutions/otter/internal/domain"
	"github.com/cloo-solutions/otter/internal/metrics"
	"github.com/cloo-solutions/otter/internal/pagination"
	"github.com/cloo-solutions/otter/internal/telemetry"
)

// failureWriteTimeout bounds the detached write that records a failed run.
const failureWriteTimeout = 10 * time.Second

// TextExtractor turns a source into its full text.
type TextExtractor interface {
	Extract(ctx context.Context, src *domain.Source) (string, error)
}

// Chunker splits a parsed job into chunks.
type Chunker interface {
	Chunk(parsed *domain.ParsedJob) (*domain.ChunkedJob, error)
}

// Embedder embeds every chunk of a job.
type Embedder interface {
	Embed(ctx context.Context, job *domain.ChunkedJob) (*domain.EmbeddedJob, error)
}

// KnowledgeStore persists an embedded job atomically.
type KnowledgeStore interface {
	StoreKnowledge(ctx context.Context, ej *domain.EmbeddedJob) (*domain.KnowledgeItem, error)
}

// IngestionService drives jobs through extract, chunk, embed and persist.
type IngestionService struct {
	jobs      KnowledgeJobRepositoryInterface
	extractor TextExtractor
	chunker   Chunker
	embedder  Embedder
	store     KnowledgeStore
	metrics   *metrics.Metrics
	logger    *zap.Logger
}

// NewIngestionService creates a new IngestionService instance
func NewIngestionService(
	jobs KnowledgeJobRepositoryInterface,
	extractor TextExtractor,
	chunker Chunker,
	embedder Embedder,
	store KnowledgeStore,
	m *metrics.Metrics,
	logger *zap.Logger,
) *IngestionService {
	return &IngestionService{
		jobs:      jobs,
		extractor: extractor,
		chunker:   chunker,
		embedder:  embedder,
		store:     store,
		metrics:   m,
		logger:    logger,
	}
}

// ProcessResult is the outcome of a successful run.
type ProcessResult struct {
	Job      *domain.KnowledgeJob
	Item     *domain.KnowledgeItem
	Embedded *domain.EmbeddedJob
}

type ListJobsInput struct {
	PrincipalID string
	Cursor      string
	Limit       int
}

type ListJobsOutput struct {
	Items   []*domain.KnowledgeJob
	Cursor  string
	HasMore bool
}

// CreateJob records a queued job for an existing source.
func (s *IngestionService) CreateJob(ctx context.Context, sourceID string) (*domain.KnowledgeJob, error) {
	job := domain.NewKnowledgeJob(sourceID)
	if err := domain.ValidateKnowledgeJob(job); err != nil {
		return nil, err
	}
	if err := s.jobs.Create(ctx, job); err != nil {
		return nil, err
	}
	return job, nil
}

// GetJob returns a job with its source.
func (s *IngestionService) GetJob(ctx context.Context, jobID string) (*domain.KnowledgeJob, error) {
	return s.jobs.GetByID(ctx, jobID)
}

// ListJobs returns a principal's jobs, newest first.
func (s *IngestionService) ListJobs(ctx context.Context, input ListJobsInput) (*ListJobsOutput, error) {
	limit := input.Limit
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	cursor, err := pagination.DecodeCursor(input.Cursor)
	if err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeValidation, "invalid cursor", err)
	}

	// Fetch one extra row to learn whether another page exists.
	jobs, err := s.jobs.ListByPrincipalWithCursor(ctx, input.PrincipalID, cursor, limit+1)
	if err != nil {
		return nil, err
	}

	hasMore := len(jobs) > limit
	if hasMore {
		jobs = jobs[:limit]
	}

	out := &ListJobsOutput{Items: jobs, HasMore: hasMore}
	if hasMore {
		last := jobs[len(jobs)-1]
		out.Cursor = pagination.EncodeCursor(last.ID, last.CreatedAt)
	}
	return out, nil
}

// ProcessJob runs the whole pipeline for a queued job.
//
// The job is claimed with a conditional queued -> processing update, so of
// several concurrent callers exactly one proceeds; the rest get
// domain.ErrInvalidJobState and write nothing. A stage failure marks the job
// failed with the error message and returns the error. If ctx ends mid-run
// the job is left in processing and must be re-queued with Requeue.
func (s *IngestionService) ProcessJob(ctx context.Context, jobID string) (*ProcessResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "IngestionService.ProcessJob", telemetry.SpanAttributes{
		JobID:     jobID,
		Operation: "process",
	})
	defer span.End()

	logger := s.logger.With(zap.String("job_id", jobID))

	if err := s.jobs.Transition(ctx, jobID, domain.JobStatusQueued, domain.JobStatusProcessing, ""); err != nil {
		s.metrics.JobsTotal.WithLabelValues(metrics.OutcomeRejected).Inc()
		return nil, err
	}
	telemetry.AddBreadcrumb(ctx, "ingestion", "job "+jobID+" processing")

	start := time.Now()
	result, err := s.run(ctx, jobID, logger)
	elapsed := time.Since(start).Seconds()

	if err != nil {
		span.SetError(err)
		if ctx.Err() != nil {
			s.metrics.JobsTotal.WithLabelValues(metrics.OutcomeAbandoned).Inc()
			s.metrics.JobDurationSeconds.WithLabelValues(metrics.OutcomeAbandoned).Observe(elapsed)
			logger.Warn("job abandoned, left in processing", zap.Error(err))
			return nil, err
		}

		s.markFailed(ctx, jobID, err, logger)
		s.metrics.JobsTotal.WithLabelValues(metrics.OutcomeFailed).Inc()
		s.metrics.JobDurationSeconds.WithLabelValues(metrics.OutcomeFailed).Observe(elapsed)
		return nil, err
	}

	if err := s.jobs.Transition(ctx, jobID, domain.JobStatusProcessing, domain.JobStatusCompleted, ""); err != nil {
		span.SetError(err)
		logger.Error("knowledge stored but job not marked completed", zap.Error(err))
		return nil, fmt.Errorf("mark job completed: %w", err)
	}
	result.Job.Status = domain.JobStatusCompleted

	s.metrics.JobsTotal.WithLabelValues(metrics.OutcomeCompleted).Inc()
	s.metrics.JobDurationSeconds.WithLabelValues(metrics.OutcomeCompleted).Observe(elapsed)
	s.metrics.ChunksPerItem.Observe(float64(result.Item.ChunksCount))

	logger.Info("job completed",
		zap.String("knowledge_item_id", result.Item.ID),
		zap.Int("chunks", result.Item.ChunksCount),
		zap.Float64("seconds", elapsed))

	return result, nil
}

func (s *IngestionService) run(ctx context.Context, jobID string, logger *zap.Logger) (*ProcessResult, error) {
	job, err := s.jobs.GetByID(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("load job: %w", err)
	}
	if job.Source == nil {
		return nil, fmt.Errorf("load job: %w", domain.ErrSourceNotFound)
	}

	text, err := s.extractor.Extract(ctx, job.Source)
	if err != nil {
		return nil, fmt.Errorf("extract: %w", err)
	}
	logger.Debug("extracted text", zap.Int("bytes", len(text)))

	chunked, err := s.chunker.Chunk(&domain.ParsedJob{Job: job, Text: text})
	if err != nil {
		return nil, fmt.Errorf("chunk: %w", err)
	}
	logger.Debug("chunked text", zap.Int("chunks", len(chunked.Chunks)))

	embedded, err := s.embedder.Embed(ctx, chunked)
	if err != nil {
		return nil, fmt.Errorf("embed: %w", err)
	}

	item, err := s.store.StoreKnowledge(ctx, embedded)
	if err != nil {
		return nil, fmt.Errorf("persist: %w", err)
	}

	return &ProcessResult{Job: job, Item: item, Embedded: embedded}, nil
}

// markFailed records the failure on a context that outlives ctx's
// cancellation, so the write happens even while the caller is unwinding.
func (s *IngestionService) markFailed(ctx context.Context, jobID string, cause error, logger *zap.Logger) {
	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), failureWriteTimeout)
	defer cancel()

	if err := s.jobs.Transition(wctx, jobID, domain.JobStatusProcessing, domain.JobStatusFailed, cause.Error()); err != nil {
		logger.Error("failed to mark job failed", zap.Error(err), zap.NamedError("cause", cause))
		telemetry.CaptureError(ctx, err)
		return
	}
	logger.Warn("job failed", zap.Error(cause))
}

// Requeue puts a failed or abandoned job back in the queue.
func (s *IngestionService) Requeue(ctx context.Context, jobID string) (*domain.KnowledgeJob, error) {
	job, err := s.jobs.GetByID(ctx, jobID)
	if err != nil {
		return nil, err
	}

	if !domain.CanTransition(job.Status, domain.JobStatusQueued) {
		return nil, fmt.Errorf("%w: cannot requeue %s job", domain.ErrInvalidJobState, job.Status)
	}

	if err := s.jobs.Transition(ctx, jobID, job.Status, domain.JobStatusQueued, ""); err != nil {
		if errors.Is(err, domain.ErrInvalidJobState) {
			return nil, fmt.Errorf("%w: job changed while requeueing", domain.ErrInvalidJobState)
		}
		return nil, err
	}

	s.logger.Info("job requeued", zap.String("job_id", jobID), zap.String("from", string(job.Status)))

	job.Status = domain.JobStatusQueued
	job.Error = ""
	return job, nil
}
