package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cloo-solutions/otter/internal/domain"
)

type KnowledgeQueryRepository struct {
	db dbtx
}

func NewKnowledgeQueryRepository(pool *pgxpool.Pool) *KnowledgeQueryRepository {
	return &KnowledgeQueryRepository{db: pool}
}

func NewKnowledgeQueryRepositoryWithTx(tx pgx.Tx) *KnowledgeQueryRepository {
	return &KnowledgeQueryRepository{db: tx}
}

// Create inserts q and fills in its generated ID and CreatedAt.
func (r *KnowledgeQueryRepository) Create(ctx context.Context, q *domain.Query) error {
	return r.db.QueryRow(ctx,
		`INSERT INTO knowledge_queries (principal_id, text)
		 VALUES ($1, $2)
		 RETURNING id, created_at`,
		q.PrincipalID, q.Text,
	).Scan(&q.ID, &q.CreatedAt)
}

// CreateResults stores results in the order given; that order is the rank.
func (r *KnowledgeQueryRepository) CreateResults(ctx context.Context, results []domain.QueryResult) error {
	if len(results) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for i, res := range results {
		batch.Queue(
			`INSERT INTO knowledge_query_results (knowledge_query_id, knowledge_chunk_id, rank, score)
			 VALUES ($1, $2, $3, $4)`,
			res.QueryID, res.ChunkID, i, res.Score,
		)
	}
	return r.db.SendBatch(ctx, batch).Close()
}

// ListResults returns a query's results by rank.
func (r *KnowledgeQueryRepository) ListResults(ctx context.Context, queryID string) ([]domain.QueryResult, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, knowledge_query_id, knowledge_chunk_id, score, created_at
		 FROM knowledge_query_results
		 WHERE knowledge_query_id = $1
		 ORDER BY rank ASC`,
		queryID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.QueryResult
	for rows.Next() {
		var res domain.QueryResult
		if err := rows.Scan(&res.ID, &res.QueryID, &res.ChunkID, &res.Score, &res.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	return out, rows.Err()
}
