package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cloo-solutions/otter/internal/domain"
)

// corpusLockKey is the advisory lock taken while the corpus model is checked
// and a new item is written.
const corpusLockKey int64 = 0x6f74746572

type KnowledgeItemRepository struct {
	db dbtx
}

func NewKnowledgeItemRepository(pool *pgxpool.Pool) *KnowledgeItemRepository {
	return &KnowledgeItemRepository{db: pool}
}

func NewKnowledgeItemRepositoryWithTx(tx pgx.Tx) *KnowledgeItemRepository {
	return &KnowledgeItemRepository{db: tx}
}

// Create inserts item and fills in its generated ID and CreatedAt.
func (r *KnowledgeItemRepository) Create(ctx context.Context, item *domain.KnowledgeItem) error {
	return r.db.QueryRow(ctx,
		`INSERT INTO knowledge_items
			(source_id, knowledge_job_id, chunks_count, chunk_size, chunk_overlap, splitter,
			 embedding_model, embedding_provider, total_tokens)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 RETURNING id, created_at`,
		item.SourceID, item.KnowledgeJobID, item.ChunksCount, item.ChunkSize, item.ChunkOverlap, item.Splitter,
		item.EmbeddingModel, item.EmbeddingProvider, item.TotalTokens,
	).Scan(&item.ID, &item.CreatedAt)
}

func (r *KnowledgeItemRepository) GetByJobID(ctx context.Context, jobID string) (*domain.KnowledgeItem, error) {
	var item domain.KnowledgeItem
	err := r.db.QueryRow(ctx,
		`SELECT id, source_id, knowledge_job_id, chunks_count, chunk_size, chunk_overlap, splitter,
		        embedding_model, embedding_provider, total_tokens, created_at
		 FROM knowledge_items WHERE knowledge_job_id = $1`,
		jobID,
	).Scan(&item.ID, &item.SourceID, &item.KnowledgeJobID, &item.ChunksCount, &item.ChunkSize, &item.ChunkOverlap,
		&item.Splitter, &item.EmbeddingModel, &item.EmbeddingProvider, &item.TotalTokens, &item.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrKnowledgeItemNotFound
		}
		return nil, err
	}
	return &item, nil
}

// LockCorpus takes a transaction-scoped advisory lock. Outside a transaction
// the lock is released as soon as the statement finishes.
func (r *KnowledgeItemRepository) LockCorpus(ctx context.Context) error {
	_, err := r.db.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, corpusLockKey)
	return err
}

func (r *KnowledgeItemRepository) CorpusModels(ctx context.Context) ([]domain.CorpusModel, error) {
	rows, err := r.db.Query(ctx,
		`SELECT DISTINCT embedding_model, embedding_provider
		 FROM knowledge_items
		 ORDER BY embedding_provider, embedding_model`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var models []domain.CorpusModel
	for rows.Next() {
		var m domain.CorpusModel
		if err := rows.Scan(&m.Model, &m.Provider); err != nil {
			return nil, err
		}
		models = append(models, m)
	}
	return models, rows.Err()
}
