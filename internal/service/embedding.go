package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/cloo-solutions/otter/internal/domain"
	"github.com/cloo-solutions/otter/internal/metrics"
	"github.com/cloo-solutions/otter/internal/telemetry"
	"github.com/cloo-solutions/otter/internal/workpool"
)

// Limiter runs tasks under the process-wide concurrency bound.
type Limiter interface {
	Do(ctx context.Context, tasks []workpool.Task) error
}

// BatchEmbedder embeds every chunk of a job through a shared Limiter.
type BatchEmbedder struct {
	provider EmbeddingProvider
	limiter  Limiter
	metrics  *metrics.Metrics
	logger   *zap.Logger
}

// NewBatchEmbedder creates a new BatchEmbedder instance
func NewBatchEmbedder(provider EmbeddingProvider, limiter Limiter, m *metrics.Metrics, logger *zap.Logger) *BatchEmbedder {
	return &BatchEmbedder{
		provider: provider,
		limiter:  limiter,
		metrics:  m,
		logger:   logger,
	}
}

// Embed returns one embedded chunk per input chunk, in input order. The first
// provider failure cancels the rest of the batch and is returned.
func (e *BatchEmbedder) Embed(ctx context.Context, job *domain.ChunkedJob) (*domain.EmbeddedJob, error) {
	ctx, span := telemetry.StartSpan(ctx, "BatchEmbedder.Embed", telemetry.SpanAttributes{
		JobID:     job.Job.ID,
		SourceID:  job.Job.SourceID,
		Operation: "embed",
	})
	defer span.End()
	span.SetData("chunks", len(job.Chunks))

	model := e.provider.ModelID()
	provider := e.provider.ProviderID()

	embedded := make([]domain.EmbeddedChunk, len(job.Chunks))
	tasks := make([]workpool.Task, len(job.Chunks))
	for i, chunk := range job.Chunks {
		tasks[i] = func(ctx context.Context) error {
			res, err := e.embedOne(ctx, chunk.Text)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				return domain.NewDomainErrorWithCause(domain.ErrCodeExternalProvider,
					fmt.Sprintf("embed chunk %d", chunk.Position), err)
			}
			embedded[i] = domain.EmbeddedChunk{
				Chunk:      chunk,
				Vector:     res.Vector,
				TokenCount: res.TokenCount,
			}
			return nil
		}
	}

	start := time.Now()
	if err := e.limiter.Do(ctx, tasks); err != nil {
		span.SetError(err)
		return nil, err
	}

	total := 0
	for _, c := range embedded {
		total += c.TokenCount
	}

	e.logger.Debug("embedded chunks",
		zap.String("job_id", job.Job.ID),
		zap.Int("chunks", len(embedded)),
		zap.Int("total_tokens", total),
		zap.Duration("elapsed", time.Since(start)))

	return &domain.EmbeddedJob{
		Job:               job.Job,
		Chunks:            embedded,
		ChunkSize:         job.ChunkSize,
		ChunkOverlap:      job.ChunkOverlap,
		Splitter:          job.Splitter,
		EmbeddingModel:    model,
		EmbeddingProvider: provider,
		TotalTokens:       total,
	}, nil
}

func (e *BatchEmbedder) embedOne(ctx context.Context, text string) (*domain.EmbeddingResult, error) {
	e.metrics.EmbeddingInFlight.Inc()
	defer e.metrics.EmbeddingInFlight.Dec()

	res, err := e.provider.Embed(ctx, text)
	if err != nil {
		e.metrics.EmbeddingRequests.WithLabelValues("error").Inc()
		return nil, err
	}
	e.metrics.EmbeddingRequests.WithLabelValues("ok").Inc()
	e.metrics.EmbeddingTokens.Add(float64(res.TokenCount))
	return res, nil
}
