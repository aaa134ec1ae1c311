package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/cloo-solutions/otter/internal/domain"
	"github.com/cloo-solutions/otter/internal/metrics"
	"github.com/cloo-solutions/otter/internal/telemetry"
)

const (
	DefaultRetrievalLimit = 5
	MaxRetrievalLimit     = 50
)

// CorpusModelReader reports the embedding models in the stored corpus.
type CorpusModelReader interface {
	CorpusModels(ctx context.Context) ([]domain.CorpusModel, error)
}

// NearestChunkFinder runs the vector similarity search.
type NearestChunkFinder interface {
	FindNearest(ctx context.Context, vector []float32, limit int) ([]domain.ScoredChunk, error)
}

// RetrievalService answers semantic queries over the stored corpus.
type RetrievalService struct {
	provider EmbeddingProvider
	corpus   CorpusModelReader
	finder   NearestChunkFinder
	txRunner TxRunner
	metrics  *metrics.Metrics
	logger   *zap.Logger
}

// NewRetrievalService creates a new RetrievalService instance
func NewRetrievalService(
	provider EmbeddingProvider,
	corpus CorpusModelReader,
	finder NearestChunkFinder,
	txRunner TxRunner,
	m *metrics.Metrics,
	logger *zap.Logger,
) *RetrievalService {
	return &RetrievalService{
		provider: provider,
		corpus:   corpus,
		finder:   finder,
		txRunner: txRunner,
		metrics:  m,
		logger:   logger,
	}
}

type SearchInput struct {
	Text        string
	PrincipalID string
	Limit       int
}

type SearchOutput struct {
	QueryID string
	Results []domain.ScoredChunk
}

// FetchChunks returns up to limit chunks nearest to text by cosine distance,
// nearest first. Equal distances are ordered by chunk ID. A non-positive
// limit means DefaultRetrievalLimit.
func (s *RetrievalService) FetchChunks(ctx context.Context, text string, limit int) ([]domain.ScoredChunk, error) {
	ctx, span := telemetry.StartSpan(ctx, "RetrievalService.FetchChunks", telemetry.SpanAttributes{
		Operation: "fetch_chunks",
	})
	defer span.End()

	if strings.TrimSpace(text) == "" {
		return nil, domain.ErrEmptyQuery
	}
	limit = clampLimit(limit)

	start := time.Now()
	defer func() { s.metrics.RetrievalDuration.Observe(time.Since(start).Seconds()) }()

	models, err := s.corpus.CorpusModels(ctx)
	if err != nil {
		span.SetError(err)
		return nil, fmt.Errorf("read corpus models: %w", err)
	}
	if err := checkCorpusModel(models, s.provider.ModelID(), s.provider.ProviderID()); err != nil {
		return nil, err
	}

	res, err := s.provider.Embed(ctx, text)
	if err != nil {
		span.SetError(err)
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeExternalProvider, "embed query", err)
	}

	chunks, err := s.finder.FindNearest(ctx, res.Vector, limit)
	if err != nil {
		span.SetError(err)
		return nil, fmt.Errorf("find nearest chunks: %w", err)
	}

	span.SetData("results", len(chunks))
	return chunks, nil
}

// SaveQuery records a query and its results in one transaction, separate
// from retrieval.
func (s *RetrievalService) SaveQuery(ctx context.Context, text, principalID string, results []domain.ScoredChunk) (*domain.Query, error) {
	ctx, span := telemetry.StartSpan(ctx, "RetrievalService.SaveQuery", telemetry.SpanAttributes{
		PrincipalID: principalID,
		Operation:   "save_query",
	})
	defer span.End()

	query := &domain.Query{PrincipalID: principalID, Text: text}
	err := s.txRunner.WithTx(ctx, func(repos TxRepositories) error {
		if err := repos.Queries().Create(ctx, query); err != nil {
			return fmt.Errorf("create query: %w", err)
		}
		if len(results) == 0 {
			return nil
		}

		rows := make([]domain.QueryResult, len(results))
		for i, r := range results {
			rows[i] = domain.QueryResult{
				QueryID: query.ID,
				ChunkID: r.ChunkID,
				Score:   r.Score,
			}
		}
		if err := repos.Queries().CreateResults(ctx, rows); err != nil {
			return fmt.Errorf("create query results: %w", err)
		}
		return nil
	})
	if err != nil {
		span.SetError(err)
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodePersistence, "save query", err)
	}

	return query, nil
}

// Search fetches chunks for a principal's query and records it. A failure to
// record is returned; it is never dropped.
func (s *RetrievalService) Search(ctx context.Context, input SearchInput) (*SearchOutput, error) {
	chunks, err := s.FetchChunks(ctx, input.Text, input.Limit)
	if err != nil {
		s.metrics.QueriesTotal.WithLabelValues("error").Inc()
		return nil, err
	}

	query, err := s.SaveQuery(ctx, input.Text, input.PrincipalID, chunks)
	if err != nil {
		s.metrics.QueriesTotal.WithLabelValues("error").Inc()
		s.logger.Error("failed to save query", zap.String("principal_id", input.PrincipalID), zap.Error(err))
		return nil, err
	}

	s.metrics.QueriesTotal.WithLabelValues("ok").Inc()
	return &SearchOutput{QueryID: query.ID, Results: chunks}, nil
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return DefaultRetrievalLimit
	}
	if limit > MaxRetrievalLimit {
		return MaxRetrievalLimit
	}
	return limit
}
