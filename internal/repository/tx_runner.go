package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cloo-solutions/otter/internal/service"
)

// TxRunner provides transactional repositories using a pgx pool.
type TxRunner struct {
	pool *pgxpool.Pool
}

func NewTxRunner(pool *pgxpool.Pool) *TxRunner {
	return &TxRunner{pool: pool}
}

func (r *TxRunner) WithTx(ctx context.Context, fn func(repos service.TxRepositories) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}

	repos := &txRepos{tx: tx}
	if err := fn(repos); err != nil {
		_ = tx.Rollback(context.WithoutCancel(ctx))
		return err
	}

	return tx.Commit(ctx)
}

type txRepos struct {
	tx pgx.Tx
}

func (r *txRepos) Sources() service.SourceRepositoryInterface {
	return NewSourceRepositoryWithTx(r.tx)
}

func (r *txRepos) Jobs() service.KnowledgeJobRepositoryInterface {
	return NewKnowledgeJobRepositoryWithTx(r.tx)
}

func (r *txRepos) KnowledgeItems() service.KnowledgeItemRepositoryInterface {
	return NewKnowledgeItemRepositoryWithTx(r.tx)
}

func (r *txRepos) Chunks() service.KnowledgeChunkRepositoryInterface {
	return NewKnowledgeChunkRepositoryWithTx(r.tx)
}

func (r *txRepos) Embeddings() service.KnowledgeEmbeddingRepositoryInterface {
	return NewKnowledgeEmbeddingRepositoryWithTx(r.tx)
}

func (r *txRepos) Queries() service.KnowledgeQueryRepositoryInterface {
	return NewKnowledgeQueryRepositoryWithTx(r.tx)
}
