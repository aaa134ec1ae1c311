package service

import "context"

// TxRepositories provides transaction-bound repositories.
type TxRepositories interface {
	Sources() SourceRepositoryInterface
	Jobs() KnowledgeJobRepositoryInterface
	KnowledgeItems() KnowledgeItemRepositoryInterface
	Chunks() KnowledgeChunkRepositoryInterface
	Embeddings() KnowledgeEmbeddingRepositoryInterface
	Queries() KnowledgeQueryRepositoryInterface
}

// TxRunner executes a function within a transaction. The transaction is
// committed when fn returns nil and rolled back otherwise.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(repos TxRepositories) error) error
}
