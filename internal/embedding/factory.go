// Package embedding selects the configured embedding provider.
package embedding

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/cloo-solutions/otter/internal/config"
	"github.com/cloo-solutions/otter/internal/langchain"
	"github.com/cloo-solutions/otter/internal/openai"
	"github.com/cloo-solutions/otter/internal/service"
)

// NewProvider builds the provider named by cfg.EmbeddingProvider.
func NewProvider(cfg *config.Config, logger *zap.Logger) (service.EmbeddingProvider, error) {
	switch cfg.EmbeddingProvider {
	case config.ProviderOpenAI:
		if !cfg.HasAIProviderKey() {
			return nil, fmt.Errorf("embedding provider %q: %w", cfg.EmbeddingProvider, openai.ErrNoAPIKey)
		}
		return openai.NewClientWithConfig(openai.Config{
			APIKey:              cfg.AIProviderAPIKey,
			BaseURL:             cfg.EmbeddingBaseURL,
			EmbeddingModel:      cfg.EmbeddingModel,
			EmbeddingDimensions: cfg.EmbeddingDimensions,
		}), nil

	case config.ProviderOpenAICompatible:
		e, err := langchain.NewEmbedder(langchain.Config{
			BaseURL: cfg.EmbeddingBaseURL,
			APIKey:  cfg.AIProviderAPIKey,
			Model:   cfg.EmbeddingModel,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("embedding provider %q: %w", cfg.EmbeddingProvider, err)
		}
		return e, nil

	default:
		return nil, fmt.Errorf("unknown embedding provider %q, valid values: %s, %s",
			cfg.EmbeddingProvider, config.ProviderOpenAI, config.ProviderOpenAICompatible)
	}
}
