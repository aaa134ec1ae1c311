//go:build integration

package repository

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"

	"github.com/cloo-solutions/otter/internal/domain"
	"github.com/cloo-solutions/otter/internal/testutil"
)

const dims = 1536

func setupPool(ctx context.Context, t *testing.T) *pgxpool.Pool {
	t.Helper()
	pc := testutil.NewPostgresContainer(ctx, t)
	t.Cleanup(func() { _ = pc.Terminate(context.Background()) })

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	t.Cleanup(pool.Close)
	return pool
}

// vec builds a full-width vector whose leading components are xs.
func vec(xs ...float32) []float32 {
	v := make([]float32, dims)
	copy(v, xs)
	return v
}

func createSource(ctx context.Context, t *testing.T, pool *pgxpool.Pool, principal string) *domain.Source {
	t.Helper()
	src := domain.NewSource(domain.SourceKindFile, "sources/"+uuid.NewString()+".pdf", "doc.pdf", domain.MediaTypePDF, principal)
	require.NoError(t, NewSourceRepository(pool).Create(ctx, src))
	return src
}

func createJob(ctx context.Context, t *testing.T, pool *pgxpool.Pool, src *domain.Source) *domain.KnowledgeJob {
	t.Helper()
	job := domain.NewKnowledgeJob(src.ID)
	require.NoError(t, NewKnowledgeJobRepository(pool).Create(ctx, job))
	return job
}

func createItem(ctx context.Context, t *testing.T, pool *pgxpool.Pool, job *domain.KnowledgeJob, model string) *domain.KnowledgeItem {
	t.Helper()
	jobID := job.ID
	item := &domain.KnowledgeItem{
		SourceID:          job.SourceID,
		KnowledgeJobID:    &jobID,
		ChunksCount:       0,
		ChunkSize:         800,
		ChunkOverlap:      60,
		Splitter:          "recursive-character",
		EmbeddingModel:    model,
		EmbeddingProvider: "openai",
	}
	require.NoError(t, NewKnowledgeItemRepository(pool).Create(ctx, item))
	return item
}
