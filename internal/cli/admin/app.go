package admin

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/cloo-solutions/otter/internal/chunking"
	"github.com/cloo-solutions/otter/internal/config"
	"github.com/cloo-solutions/otter/internal/database"
	"github.com/cloo-solutions/otter/internal/domain"
	"github.com/cloo-solutions/otter/internal/embedding"
	"github.com/cloo-solutions/otter/internal/extract"
	"github.com/cloo-solutions/otter/internal/logging"
	"github.com/cloo-solutions/otter/internal/metrics"
	"github.com/cloo-solutions/otter/internal/repository"
	"github.com/cloo-solutions/otter/internal/service"
	"github.com/cloo-solutions/otter/internal/storage"
	"github.com/cloo-solutions/otter/internal/telemetry"
	"github.com/cloo-solutions/otter/internal/workpool"
)

// app holds everything a command needs, built from one Config.
type app struct {
	cfg      *config.Config
	logger   *zap.Logger
	pool     *pgxpool.Pool
	registry *prometheus.Registry
	metrics  *metrics.Metrics

	embedPool *workpool.Pool
	jobPool   *workpool.Pool

	jobs      *repository.KnowledgeJobRepository
	sources   *service.SourceService
	ingestion *service.IngestionService
	retrieval *service.RetrievalService

	closers []func()
}

type appOptions struct {
	migrate bool
	// needsProvider is false for commands that never embed, so they run
	// without provider credentials.
	needsProvider bool
}

func newApp(ctx context.Context, opts appOptions) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger, err := logging.New(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	a := &app{cfg: cfg, logger: logger}
	a.closers = append(a.closers, func() { _ = logger.Sync() })

	if err := a.init(ctx, opts); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) init(ctx context.Context, opts appOptions) error {
	cfg, logger := a.cfg, a.logger

	shutdownTelemetry, err := telemetry.Init(telemetry.Config{
		DSN:              cfg.SentryDSN,
		Environment:      cfg.Environment,
		TracesSampleRate: sampleRate(cfg.Environment),
		Debug:            cfg.Debug,
	}, logger)
	if err != nil {
		logger.Warn("telemetry init failed, continuing without tracing", zap.Error(err))
	} else {
		a.closers = append(a.closers, shutdownTelemetry)
	}

	if opts.migrate {
		status, err := database.Migrate(cfg.DatabaseURL, cfg.MigrationsPath, logger)
		if err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
		logger.Info("migrations ready", zap.Uint("version", status.Version), zap.Bool("applied", status.Applied))
	}

	pool, err := database.NewPool(ctx, database.Config{URL: cfg.DatabaseURL, MaxConns: cfg.DatabaseMaxConns})
	if err != nil {
		return err
	}
	a.pool = pool
	a.closers = append(a.closers, pool.Close)
	logger.Info("connected to database")

	a.registry = prometheus.NewRegistry()
	a.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	a.metrics = metrics.New(a.registry)

	files, err := newFileStore(ctx, cfg, logger)
	if err != nil {
		return err
	}

	var provider service.EmbeddingProvider = unconfiguredProvider{}
	if opts.needsProvider {
		provider, err = embedding.NewProvider(cfg, logger)
		if err != nil {
			return err
		}
	}

	a.embedPool, err = workpool.New(cfg.MaxParallelEmbeds, workpool.WithRateLimit(cfg.EmbeddingRPS, cfg.MaxParallelEmbeds))
	if err != nil {
		return err
	}
	a.closers = append(a.closers, a.embedPool.Release)

	a.jobPool, err = workpool.New(cfg.JobConcurrency)
	if err != nil {
		return err
	}
	a.closers = append(a.closers, a.jobPool.Release)

	chunker, err := chunking.NewRouter(chunking.Config{MaxSize: cfg.ChunkSize, Overlap: cfg.ChunkOverlap})
	if err != nil {
		return err
	}

	txRunner := repository.NewTxRunner(pool)
	a.jobs = repository.NewKnowledgeJobRepository(pool)
	extractor := extract.NewExtractor(files)

	a.sources = service.NewSourceService(txRunner, files, extractor.MediaTypes(), logger)
	a.ingestion = service.NewIngestionService(
		a.jobs,
		extractor,
		chunker,
		service.NewBatchEmbedder(provider, a.embedPool, a.metrics, logger),
		service.NewKnowledgeItemService(txRunner, logger),
		a.metrics,
		logger,
	)
	a.retrieval = service.NewRetrievalService(
		provider,
		repository.NewKnowledgeItemRepository(pool),
		repository.NewKnowledgeEmbeddingRepository(pool),
		txRunner,
		a.metrics,
		logger,
	)
	return nil
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func newFileStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (service.FileStore, error) {
	switch cfg.StorageBackend {
	case config.StorageS3:
		store, err := storage.NewS3Store(ctx, storage.S3Config{
			Endpoint:        cfg.S3Endpoint,
			Region:          cfg.S3Region,
			AccessKeyID:     cfg.S3AccessKey,
			SecretAccessKey: cfg.S3SecretKey,
			Bucket:          cfg.S3Bucket,
			UsePathStyle:    true,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create S3 store: %w", err)
		}
		if err := store.EnsureBucket(ctx); err != nil {
			return nil, fmt.Errorf("failed to ensure S3 bucket: %w", err)
		}
		logger.Info("s3 bucket ready", zap.String("bucket", cfg.S3Bucket))
		return store, nil
	default:
		store, err := storage.NewDiskStore(cfg.UploadDir)
		if err != nil {
			return nil, err
		}
		logger.Info("disk storage ready", zap.String("dir", cfg.UploadDir))
		return store, nil
	}
}

// unconfiguredProvider stands in for commands that never embed.
type unconfiguredProvider struct{}

func (unconfiguredProvider) Embed(context.Context, string) (*domain.EmbeddingResult, error) {
	return nil, domain.NewDomainError(domain.ErrCodeConfiguration, "embedding provider not configured")
}

func (unconfiguredProvider) ModelID() string    { return "" }
func (unconfiguredProvider) ProviderID() string { return "" }

// sampleRate traces everything in development and a tenth elsewhere.
func sampleRate(environment string) float64 {
	if environment == "" || environment == "development" {
		return 1.0
	}
	return 0.1
}
