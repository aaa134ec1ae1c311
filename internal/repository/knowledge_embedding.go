package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/cloo-solutions/otter/internal/domain"
)

type KnowledgeEmbeddingRepository struct {
	db dbtx
}

func NewKnowledgeEmbeddingRepository(pool *pgxpool.Pool) *KnowledgeEmbeddingRepository {
	return &KnowledgeEmbeddingRepository{db: pool}
}

func NewKnowledgeEmbeddingRepositoryWithTx(tx pgx.Tx) *KnowledgeEmbeddingRepository {
	return &KnowledgeEmbeddingRepository{db: tx}
}

func (r *KnowledgeEmbeddingRepository) CreateMany(ctx context.Context, embeddings []domain.Embedding) error {
	if len(embeddings) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, e := range embeddings {
		batch.Queue(
			`INSERT INTO knowledge_embeddings (knowledge_chunk_id, embedding, token_count)
			 VALUES ($1, $2, $3)`,
			e.ChunkID, pgvector.NewVector(e.Vector), e.TokenCount,
		)
	}
	return r.db.SendBatch(ctx, batch).Close()
}

// FindNearest returns up to limit chunks ordered by cosine distance to
// vector, then by chunk ID.
func (r *KnowledgeEmbeddingRepository) FindNearest(ctx context.Context, vector []float32, limit int) ([]domain.ScoredChunk, error) {
	rows, err := r.db.Query(ctx,
		`SELECT c.id, c.knowledge_item_id, c.text, e.embedding <=> $1 AS distance
		 FROM knowledge_embeddings e
		 JOIN knowledge_chunks c ON c.id = e.knowledge_chunk_id
		 ORDER BY distance ASC, c.id ASC
		 LIMIT $2`,
		pgvector.NewVector(vector), limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.ScoredChunk
	for rows.Next() {
		var sc domain.ScoredChunk
		if err := rows.Scan(&sc.ChunkID, &sc.KnowledgeItemID, &sc.Text, &sc.Score); err != nil {
			return nil, err
		}
		out = append(out, sc)
	}
	return out, rows.Err()
}
