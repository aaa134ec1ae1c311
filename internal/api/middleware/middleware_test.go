package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/getsentry/sentry-go"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/cloo-solutions/otter/internal/logging"
	"github.com/cloo-solutions/otter/internal/metrics"
)

func TestRequestID_GeneratesAndEchoes(t *testing.T) {
	var seen string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.NotEmpty(t, seen)
	assert.Equal(t, seen, w.Header().Get(RequestIDHeader))
}

func TestRequestID_KeepsIncoming(t *testing.T) {
	h := RequestID(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	assert.Equal(t, "abc-123", w.Header().Get(RequestIDHeader))
}

func TestMaxBodyBytes_RejectsLargeContentLength(t *testing.T) {
	h := MaxBodyBytes(4)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("handler should not be called")
	}))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/", strings.NewReader("too long")))

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestAccessLog_RecordsRouteMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	core, logs := observer.New(zap.InfoLevel)

	r := chi.NewRouter()
	r.Use(AccessLog(zap.New(core), m))
	r.Get("/v1/jobs/{id}", func(w http.ResponseWriter, r *http.Request) {
		logging.FromContext(r.Context()).Info("inside")
		w.WriteHeader(http.StatusNotFound)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/jobs/42", nil))

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues(http.MethodGet, "/v1/jobs/{id}", "404")))

	entries := logs.FilterMessage("request").All()
	if assert.Len(t, entries, 1) {
		fields := entries[0].ContextMap()
		assert.Equal(t, "/v1/jobs/{id}", fields["route"])
		assert.Equal(t, int64(http.StatusNotFound), fields["status"])
	}
	assert.Equal(t, 1, logs.FilterMessage("inside").Len())
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:5555"
	assert.Equal(t, "10.0.0.1", clientIP(req))

	req.Header.Set("X-Forwarded-For", "1.2.3.4, 10.0.0.1")
	assert.Equal(t, "1.2.3.4", clientIP(req))
}

func TestHTTPStatusToSpanStatus(t *testing.T) {
	tests := []struct {
		status int
		want   sentry.SpanStatus
	}{
		{200, sentry.SpanStatusOK},
		{202, sentry.SpanStatusOK},
		{400, sentry.SpanStatusInvalidArgument},
		{401, sentry.SpanStatusUnauthenticated},
		{404, sentry.SpanStatusNotFound},
		{409, sentry.SpanStatusAborted},
		{413, sentry.SpanStatusResourceExhausted},
		{415, sentry.SpanStatusInvalidArgument},
		{500, sentry.SpanStatusInternalError},
		{502, sentry.SpanStatusUnavailable},
		{504, sentry.SpanStatusDeadlineExceeded},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, httpStatusToSpanStatus(tt.status), "status %d", tt.status)
	}
}

func TestSentryMiddleware_PassesThrough(t *testing.T) {
	h := SentryMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/v1/sources", nil))

	assert.Equal(t, http.StatusAccepted, w.Code)
}

func TestAccessLog_LogsPrincipalResolvedDownstream(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	validator := new(MockAuthValidator)
	validator.On("ValidateAPIKey", mock.Anything, "k").Return("alice", nil)

	r := chi.NewRouter()
	r.Use(AccessLog(zap.New(core), nil))
	r.With(APIKeyAuth(validator)).Get("/v1/jobs", func(w http.ResponseWriter, r *http.Request) {})

	req := httptest.NewRequest(http.MethodGet, "/v1/jobs", nil)
	req.Header.Set("Authorization", "Bearer k")
	r.ServeHTTP(httptest.NewRecorder(), req)

	entries := logs.FilterMessage("request").All()
	if assert.Len(t, entries, 1) {
		assert.Equal(t, "alice", entries[0].ContextMap()["principal_id"])
	}
}
