package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/cloo-solutions/otter/internal/domain"
	"github.com/cloo-solutions/otter/internal/service"
	"github.com/cloo-solutions/otter/internal/workpool"
)

// QueuedJobLister finds jobs waiting to be processed.
type QueuedJobLister interface {
	ListQueued(ctx context.Context, limit int) ([]*domain.KnowledgeJob, error)
}

// JobRunner runs one job through the ingestion pipeline.
type JobRunner interface {
	ProcessJob(ctx context.Context, jobID string) (*service.ProcessResult, error)
}

// IngestionWorker processes queued jobs, several at a time. Each job gets its
// own deadline. A job claimed by another worker first is skipped.
type IngestionWorker struct {
	jobs       QueuedJobLister
	runner     JobRunner
	pool       *workpool.Pool
	batchSize  int
	jobTimeout time.Duration
	logger     *zap.Logger
}

// NewIngestionWorker creates an IngestionWorker that runs up to pool.Size()
// jobs concurrently.
func NewIngestionWorker(jobs QueuedJobLister, runner JobRunner, pool *workpool.Pool, jobTimeout time.Duration, logger *zap.Logger) *IngestionWorker {
	return &IngestionWorker{
		jobs:       jobs,
		runner:     runner,
		pool:       pool,
		batchSize:  pool.Size(),
		jobTimeout: jobTimeout,
		logger:     logger,
	}
}

// ProcessJobs implements the JobProcessor interface
func (w *IngestionWorker) ProcessJobs(ctx context.Context) error {
	queued, err := w.jobs.ListQueued(ctx, w.batchSize)
	if err != nil {
		return fmt.Errorf("failed to fetch queued jobs: %w", err)
	}
	if len(queued) == 0 {
		return nil
	}

	w.logger.Debug("processing queued jobs", zap.Int("count", len(queued)))

	tasks := make([]workpool.Task, len(queued))
	for i, job := range queued {
		tasks[i] = func(ctx context.Context) error {
			w.processOne(ctx, job.ID)
			return nil
		}
	}
	return w.pool.All(ctx, tasks)
}

func (w *IngestionWorker) processOne(ctx context.Context, jobID string) {
	if w.jobTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.jobTimeout)
		defer cancel()
	}

	// Outcomes are logged by the runner; only a lost claim is noted here.
	if _, err := w.runner.ProcessJob(ctx, jobID); errors.Is(err, domain.ErrInvalidJobState) {
		w.logger.Debug("job already claimed", zap.String("job_id", jobID))
	}
}
