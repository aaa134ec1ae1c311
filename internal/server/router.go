package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/cloo-solutions/otter/internal/api"
	"github.com/cloo-solutions/otter/internal/api/handlers"
	"github.com/cloo-solutions/otter/internal/api/middleware"
	"github.com/cloo-solutions/otter/internal/metrics"
)

const (
	defaultMaxBodyBytes int64 = 5 * 1024 * 1024
	healthTimeout             = 2 * time.Second
)

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type RouterConfig struct {
	Logger        *zap.Logger
	Metrics       *metrics.Metrics
	Gatherer      prometheus.Gatherer
	Database      Pinger
	AuthValidator middleware.AuthValidator
	MaxBodyBytes  int64

	SourceHandler *handlers.SourceHandler
	JobHandler    *handlers.JobHandler
	QueryHandler  *handlers.QueryHandler
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	maxBody := cfg.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = defaultMaxBodyBytes
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	r.Use(chimw.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.SentryMiddleware)
	r.Use(middleware.AccessLog(logger, cfg.Metrics))
	r.Use(middleware.MaxBodyBytes(maxBody))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		if cfg.Database != nil {
			ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
			defer cancel()
			if err := cfg.Database.Ping(ctx); err != nil {
				api.Error(w, http.StatusServiceUnavailable, "database unavailable")
				return
			}
		}
		api.Success(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	if cfg.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/v1", func(r chi.Router) {
		r.Use(middleware.APIKeyAuth(cfg.AuthValidator))

		r.Post("/sources", cfg.SourceHandler.Upload)

		r.Route("/jobs", func(r chi.Router) {
			r.Get("/", cfg.JobHandler.List)
			r.Get("/{id}", cfg.JobHandler.Get)
			r.Post("/{id}/requeue", cfg.JobHandler.Requeue)
		})

		r.Post("/query", cfg.QueryHandler.Query)
	})

	return r
}
