package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/cloo-solutions/otter/internal/domain"
	"github.com/cloo-solutions/otter/internal/telemetry"
)

// KnowledgeItemService persists the output of an ingestion run.
type KnowledgeItemService struct {
	txRunner TxRunner
	logger   *zap.Logger
}

// NewKnowledgeItemService creates a new KnowledgeItemService instance
func NewKnowledgeItemService(txRunner TxRunner, logger *zap.Logger) *KnowledgeItemService {
	return &KnowledgeItemService{
		txRunner: txRunner,
		logger:   logger,
	}
}

// StoreKnowledge writes the knowledge item, its chunks and their embeddings
// in one transaction. Either all rows are stored or none are.
func (s *KnowledgeItemService) StoreKnowledge(ctx context.Context, ej *domain.EmbeddedJob) (*domain.KnowledgeItem, error) {
	if err := domain.ValidateEmbeddedJob(ej); err != nil {
		return nil, err
	}

	ctx, span := telemetry.StartSpan(ctx, "KnowledgeItemService.StoreKnowledge", telemetry.SpanAttributes{
		JobID:     ej.Job.ID,
		SourceID:  ej.Job.SourceID,
		Operation: "store",
	})
	defer span.End()

	var item *domain.KnowledgeItem
	err := s.txRunner.WithTx(ctx, func(repos TxRepositories) error {
		items := repos.KnowledgeItems()
		if err := items.LockCorpus(ctx); err != nil {
			return fmt.Errorf("lock corpus: %w", err)
		}
		models, err := items.CorpusModels(ctx)
		if err != nil {
			return fmt.Errorf("read corpus models: %w", err)
		}
		if err := checkCorpusModel(models, ej.EmbeddingModel, ej.EmbeddingProvider); err != nil {
			return err
		}

		item = domain.NewKnowledgeItem(ej)
		if err := items.Create(ctx, item); err != nil {
			return fmt.Errorf("create knowledge item: %w", err)
		}

		chunks := make([]domain.Chunk, len(ej.Chunks))
		embeddings := make([]domain.Embedding, len(ej.Chunks))
		for i, c := range ej.Chunks {
			chunk := c.Chunk
			chunk.KnowledgeItemID = item.ID
			chunks[i] = chunk
			embeddings[i] = domain.Embedding{
				ChunkID:    c.ID,
				Vector:     c.Vector,
				TokenCount: c.TokenCount,
			}
		}

		if err := repos.Chunks().CreateMany(ctx, chunks); err != nil {
			return fmt.Errorf("create chunks: %w", err)
		}
		if err := repos.Embeddings().CreateMany(ctx, embeddings); err != nil {
			return fmt.Errorf("create embeddings: %w", err)
		}
		return nil
	})
	if err != nil {
		span.SetError(err)
		if errors.Is(err, domain.ErrModelMismatch) {
			return nil, err
		}
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodePersistence, "store knowledge", err)
	}

	s.logger.Info("knowledge stored",
		zap.String("job_id", ej.Job.ID),
		zap.String("knowledge_item_id", item.ID),
		zap.Int("chunks", item.ChunksCount),
		zap.Int("total_tokens", item.TotalTokens))

	return item, nil
}

// checkCorpusModel rejects vectors from a model other than the one the
// stored corpus was built with. An empty corpus accepts any model.
func checkCorpusModel(models []domain.CorpusModel, model, provider string) error {
	for _, m := range models {
		if m.Model != model || m.Provider != provider {
			return fmt.Errorf("%w: corpus uses %s/%s, got %s/%s",
				domain.ErrModelMismatch, m.Provider, m.Model, provider, model)
		}
	}
	return nil
}
