package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cloo-solutions/otter/internal/domain"
)

// KnowledgeChunkRepository handles persistence of document chunks.
type KnowledgeChunkRepository struct {
	db dbtx
}

func NewKnowledgeChunkRepository(pool *pgxpool.Pool) *KnowledgeChunkRepository {
	return &KnowledgeChunkRepository{db: pool}
}

func NewKnowledgeChunkRepositoryWithTx(tx pgx.Tx) *KnowledgeChunkRepository {
	return &KnowledgeChunkRepository{db: tx}
}

// CreateMany inserts chunks in one round trip. Chunk IDs are assigned by the
// caller so embeddings can reference them.
func (r *KnowledgeChunkRepository) CreateMany(ctx context.Context, chunks []domain.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, c := range chunks {
		batch.Queue(
			`INSERT INTO knowledge_chunks (id, knowledge_item_id, position, text)
			 VALUES ($1, $2, $3, $4)`,
			c.ID, c.KnowledgeItemID, c.Position, c.Text,
		)
	}
	return r.db.SendBatch(ctx, batch).Close()
}

// ListByItem returns an item's chunks in document order.
func (r *KnowledgeChunkRepository) ListByItem(ctx context.Context, itemID string) ([]domain.Chunk, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, knowledge_item_id, position, text
		 FROM knowledge_chunks
		 WHERE knowledge_item_id = $1
		 ORDER BY position ASC`,
		itemID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chunks []domain.Chunk
	for rows.Next() {
		var c domain.Chunk
		if err := rows.Scan(&c.ID, &c.KnowledgeItemID, &c.Position, &c.Text); err != nil {
			return nil, err
		}
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}
