// Package langchain provides an embedding provider for OpenAI-compatible
// endpoints (vLLM, Ollama, LM Studio and similar) through langchaingo.
package langchain

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/pkoukk/tiktoken-go"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"
	"go.uber.org/zap"

	"github.com/cloo-solutions/otter/internal/domain"
)

// ProviderName identifies this provider on stored knowledge items
const ProviderName = "openai-compatible"

// fallbackEncoding is used when the model is unknown to tiktoken.
const fallbackEncoding = "cl100k_base"

var ErrMissingConfig = errors.New("embedding base URL and model are required")

// Config configures the embedder
type Config struct {
	BaseURL string
	APIKey  string
	Model   string
}

// TokenCounter counts the tokens a text consumes.
type TokenCounter interface {
	Count(text string) int
}

// Embedder implements service.EmbeddingProvider on top of langchaingo.
// Local endpoints rarely report usage, so token counts are computed locally.
type Embedder struct {
	embedder embeddings.Embedder
	model    string
	tokens   TokenCounter
	logger   *zap.Logger
}

// NewEmbedder creates an embedder for the configured endpoint
func NewEmbedder(cfg Config, logger *zap.Logger) (*Embedder, error) {
	if cfg.BaseURL == "" || cfg.Model == "" {
		return nil, ErrMissingConfig
	}

	// Local services accept any token.
	token := cfg.APIKey
	if token == "" {
		token = "none"
	}

	client, err := openai.New(
		openai.WithBaseURL(cfg.BaseURL),
		openai.WithToken(token),
		openai.WithEmbeddingModel(cfg.Model),
	)
	if err != nil {
		return nil, fmt.Errorf("create langchain client: %w", err)
	}

	embedder, err := embeddings.NewEmbedder(client, embeddings.WithStripNewLines(false))
	if err != nil {
		return nil, fmt.Errorf("create langchain embedder: %w", err)
	}

	return &Embedder{
		embedder: embedder,
		model:    cfg.Model,
		tokens:   NewTiktokenCounter(cfg.Model, logger),
		logger:   logger.With(zap.String("component", "langchain-embedder")),
	}, nil
}

// ModelID returns the embedding model name
func (e *Embedder) ModelID() string { return e.model }

// ProviderID returns the provider name
func (e *Embedder) ProviderID() string { return ProviderName }

// Embed generates an embedding for the given text
func (e *Embedder) Embed(ctx context.Context, text string) (*domain.EmbeddingResult, error) {
	if text == "" {
		return nil, errors.New("text cannot be empty")
	}

	vectors, err := e.embedder.EmbedDocuments(ctx, []string{text})
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding: %w", err)
	}
	if len(vectors) == 0 || len(vectors[0]) == 0 {
		return nil, errors.New("no embedding data returned")
	}

	return &domain.EmbeddingResult{
		Vector:     vectors[0],
		TokenCount: e.tokens.Count(text),
	}, nil
}

// TiktokenCounter counts tokens with the BPE encoding of a model. The
// encoding is loaded on first use; if it cannot be loaded, counts fall back
// to an estimate of four bytes per token.
type TiktokenCounter struct {
	model  string
	logger *zap.Logger

	once sync.Once
	enc  *tiktoken.Tiktoken
}

// NewTiktokenCounter returns a counter for model
func NewTiktokenCounter(model string, logger *zap.Logger) *TiktokenCounter {
	return &TiktokenCounter{model: model, logger: logger}
}

// Count implements TokenCounter
func (c *TiktokenCounter) Count(text string) int {
	c.once.Do(c.load)
	if c.enc == nil {
		return (len(text) + 3) / 4
	}
	return len(c.enc.Encode(text, nil, nil))
}

func (c *TiktokenCounter) load() {
	enc, err := tiktoken.EncodingForModel(c.model)
	if err == nil {
		c.enc = enc
		return
	}
	enc, err = tiktoken.GetEncoding(fallbackEncoding)
	if err != nil {
		c.logger.Warn("token encoding unavailable, estimating token counts",
			zap.String("model", c.model), zap.Error(err))
		return
	}
	c.enc = enc
}
