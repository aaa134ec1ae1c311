package service

import (
	"context"

	"github.com/cloo-solutions/otter/internal/domain"
	"github.com/cloo-solutions/otter/internal/pagination"
)

// SourceRepositoryInterface defines the repository interface for sources
type SourceRepositoryInterface interface {
	Create(ctx context.Context, s *domain.Source) error
	GetByID(ctx context.Context, id string) (*domain.Source, error)
}

// KnowledgeJobRepositoryInterface defines the repository interface for knowledge jobs
type KnowledgeJobRepositoryInterface interface {
	Create(ctx context.Context, job *domain.KnowledgeJob) error
	// GetByID returns the job with its Source populated.
	GetByID(ctx context.Context, id string) (*domain.KnowledgeJob, error)
	// Transition moves a job from one status to another in a single
	// conditional update. It fails with domain.ErrInvalidJobState when the
	// job is not in from, and domain.ErrJobNotFound when it does not exist.
	Transition(ctx context.Context, id string, from, to domain.JobStatus, errMsg string) error
	ListQueued(ctx context.Context, limit int) ([]*domain.KnowledgeJob, error)
	ListByPrincipalWithCursor(ctx context.Context, principalID string, cursor *pagination.Cursor, limit int) ([]*domain.KnowledgeJob, error)
}

// KnowledgeItemRepositoryInterface defines the repository interface for knowledge items
type KnowledgeItemRepositoryInterface interface {
	Create(ctx context.Context, item *domain.KnowledgeItem) error
	GetByJobID(ctx context.Context, jobID string) (*domain.KnowledgeItem, error)
	// LockCorpus serialises corpus model checks until the transaction ends.
	LockCorpus(ctx context.Context) error
	CorpusModels(ctx context.Context) ([]domain.CorpusModel, error)
}

// KnowledgeChunkRepositoryInterface defines the repository interface for chunks
type KnowledgeChunkRepositoryInterface interface {
	CreateMany(ctx context.Context, chunks []domain.Chunk) error
}

// KnowledgeEmbeddingRepositoryInterface defines the repository interface for embeddings
type KnowledgeEmbeddingRepositoryInterface interface {
	CreateMany(ctx context.Context, embeddings []domain.Embedding) error
	// FindNearest orders chunks by cosine distance to vector, ties broken by chunk ID.
	FindNearest(ctx context.Context, vector []float32, limit int) ([]domain.ScoredChunk, error)
}

// KnowledgeQueryRepositoryInterface defines the repository interface for recorded queries
type KnowledgeQueryRepositoryInterface interface {
	Create(ctx context.Context, q *domain.Query) error
	CreateResults(ctx context.Context, results []domain.QueryResult) error
}

// EmbeddingProvider generates one embedding per call. Implementations report
// the model and provider they use so stored vectors can be compared.
type EmbeddingProvider interface {
	Embed(ctx context.Context, text string) (*domain.EmbeddingResult, error)
	ModelID() string
	ProviderID() string
}

// FileStore reads and writes stored source files.
type FileStore interface {
	Read(ctx context.Context, location string) ([]byte, error)
	Write(ctx context.Context, location string, content []byte, mediaType string) error
	Delete(ctx context.Context, location string) error
}
