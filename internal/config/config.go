package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const envPrefix = "OTTER"

// Storage backends
const (
	StorageDisk = "disk"
	StorageS3   = "s3"
)

// Embedding providers
const (
	ProviderOpenAI           = "openai"
	ProviderOpenAICompatible = "openai-compatible"
)

type Config struct {
	Port        string `envconfig:"PORT" default:"8080"`
	Debug       bool   `envconfig:"DEBUG" default:"false"`
	Environment string `envconfig:"ENVIRONMENT" default:"development"`

	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"json"`
	SentryDSN string `envconfig:"SENTRY_DSN"`

	DatabaseURL      string `envconfig:"DATABASE_URL" required:"true"`
	DatabaseMaxConns int32  `envconfig:"DATABASE_MAX_CONNS" default:"10"`
	MigrationsPath   string `envconfig:"MIGRATIONS_PATH" default:"migrations"`

	StorageBackend string `envconfig:"STORAGE_BACKEND" default:"disk"`
	UploadDir      string `envconfig:"UPLOAD_DIR" default:"__uploads__"`
	MaxUploadBytes int64  `envconfig:"MAX_UPLOAD_BYTES" default:"52428800"`

	S3Endpoint  string `envconfig:"S3_ENDPOINT"`
	S3AccessKey string `envconfig:"S3_ACCESS_KEY_ID"`
	S3SecretKey string `envconfig:"S3_SECRET_ACCESS_KEY"`
	S3Bucket    string `envconfig:"S3_BUCKET" default:"otter-sources"`
	S3Region    string `envconfig:"S3_REGION" default:"us-east-1"`

	EmbeddingProvider   string  `envconfig:"EMBEDDING_PROVIDER" default:"openai"`
	EmbeddingModel      string  `envconfig:"EMBEDDING_MODEL" default:"text-embedding-3-small"`
	EmbeddingDimensions int     `envconfig:"EMBEDDING_DIMENSIONS" default:"1536"`
	EmbeddingBaseURL    string  `envconfig:"EMBEDDING_BASE_URL"`
	AIProviderAPIKey    string  `envconfig:"AI_PROVIDER_API_KEY"`
	MaxParallelEmbeds   int     `envconfig:"MAX_PARALLEL_EMBEDDINGS" default:"25"`
	EmbeddingRPS        float64 `envconfig:"EMBEDDING_RPS" default:"0"`

	ChunkSize    int `envconfig:"CHUNK_SIZE" default:"800"`
	ChunkOverlap int `envconfig:"CHUNK_OVERLAP" default:"60"`

	JobConcurrency     int           `envconfig:"JOB_CONCURRENCY" default:"4"`
	WorkerPollInterval time.Duration `envconfig:"WORKER_POLL_INTERVAL" default:"5s"`
	JobTimeout         time.Duration `envconfig:"JOB_TIMEOUT" default:"10m"`

	// API keys accepted by the HTTP API, as key:principal pairs
	APIKeys map[string]string `envconfig:"API_KEYS"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process(envPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks cross-field constraints envconfig cannot express
func (c *Config) Validate() error {
	switch c.StorageBackend {
	case StorageDisk:
	case StorageS3:
		if !c.HasS3() {
			return fmt.Errorf("storage backend %q requires S3 endpoint and credentials", StorageS3)
		}
	default:
		return fmt.Errorf("unknown storage backend %q", c.StorageBackend)
	}

	switch c.EmbeddingProvider {
	case ProviderOpenAI, ProviderOpenAICompatible:
	default:
		return fmt.Errorf("unknown embedding provider %q", c.EmbeddingProvider)
	}

	if c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("chunk overlap %d must be smaller than chunk size %d", c.ChunkOverlap, c.ChunkSize)
	}

	return nil
}

func (c *Config) HasS3() bool {
	return c.S3Endpoint != "" && c.S3AccessKey != "" && c.S3SecretKey != ""
}

func (c *Config) HasAIProviderKey() bool {
	return c.AIProviderAPIKey != ""
}
