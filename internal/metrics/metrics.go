// Package metrics defines the Prometheus metrics exported by otter.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "otter"

// Job outcomes
const (
	OutcomeCompleted = "completed"
	OutcomeFailed    = "failed"
	OutcomeAbandoned = "abandoned"
	OutcomeRejected  = "rejected"
)

// Metrics holds every collector. Create one per registry; tests pass a fresh
// prometheus.NewRegistry() so they do not collide on the default one.
type Metrics struct {
	JobsTotal           *prometheus.CounterVec
	JobDurationSeconds  *prometheus.HistogramVec
	EmbeddingRequests   *prometheus.CounterVec
	EmbeddingInFlight   prometheus.Gauge
	EmbeddingTokens     prometheus.Counter
	ChunksPerItem       prometheus.Histogram
	RetrievalDuration   prometheus.Histogram
	QueriesTotal        *prometheus.CounterVec
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPDurationSeconds *prometheus.HistogramVec
}

// New registers all collectors against reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		JobsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "jobs_total",
			Help:      "Ingestion runs, partitioned by outcome.",
		}, []string{"outcome"}),

		JobDurationSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "job_duration_seconds",
			Help:      "Wall-clock duration of ingestion runs.",
			Buckets:   []float64{0.5, 1, 5, 15, 30, 60, 120, 300, 600},
		}, []string{"outcome"}),

		EmbeddingRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "embedding",
			Name:      "requests_total",
			Help:      "Embedding provider calls, partitioned by outcome.",
		}, []string{"outcome"}),

		EmbeddingInFlight: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "embedding",
			Name:      "in_flight",
			Help:      "Embedding provider calls currently running.",
		}),

		EmbeddingTokens: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "embedding",
			Name:      "tokens_total",
			Help:      "Tokens consumed by embedding calls.",
		}),

		ChunksPerItem: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "chunks_per_item",
			Help:      "Number of chunks stored per knowledge item.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
		}),

		RetrievalDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "retrieval",
			Name:      "duration_seconds",
			Help:      "Duration of chunk retrieval including query embedding.",
			Buckets:   prometheus.DefBuckets,
		}),

		QueriesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "retrieval",
			Name:      "queries_total",
			Help:      "Retrieval requests, partitioned by outcome.",
		}, []string{"outcome"}),

		HTTPRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests, partitioned by method, route and status code.",
		}, []string{"method", "route", "code"}),

		HTTPDurationSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
}
