//go:build e2e

package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"hash/fnv"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"
	"time"
	"unicode"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cloo-solutions/otter/internal/api/handlers"
	"github.com/cloo-solutions/otter/internal/chunking"
	"github.com/cloo-solutions/otter/internal/domain"
	"github.com/cloo-solutions/otter/internal/extract"
	"github.com/cloo-solutions/otter/internal/jobs"
	"github.com/cloo-solutions/otter/internal/metrics"
	"github.com/cloo-solutions/otter/internal/repository"
	"github.com/cloo-solutions/otter/internal/server"
	"github.com/cloo-solutions/otter/internal/service"
	"github.com/cloo-solutions/otter/internal/storage"
	"github.com/cloo-solutions/otter/internal/testutil"
	"github.com/cloo-solutions/otter/internal/workpool"
)

const (
	dims          = 1536
	mediaTypeText = "text/plain"
	testAPIKey    = "e2e-secret"
	testPrincipal = "e2e"
)

// bagOfWords embeds text as hashed word counts, so texts sharing words are
// close under cosine distance.
type bagOfWords struct{}

func (bagOfWords) Embed(_ context.Context, text string) (*domain.EmbeddingResult, error) {
	v := make([]float32, dims)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, w := range words {
		h := fnv.New32a()
		_, _ = h.Write([]byte(w))
		v[h.Sum32()%dims]++
	}
	if len(words) == 0 {
		v[0] = 1
	}
	return &domain.EmbeddingResult{Vector: v, TokenCount: len(words)}, nil
}

func (bagOfWords) ModelID() string    { return "bag-of-words" }
func (bagOfWords) ProviderID() string { return "e2e" }

// Env is a running otter stack backed by real Postgres and RustFS.
type Env struct {
	T      *testing.T
	Ctx    context.Context
	Pool   *pgxpool.Pool
	Server *httptest.Server
	Worker *jobs.IngestionWorker
	Client *http.Client
}

func SetupEnv(t *testing.T) *Env {
	t.Helper()
	ctx := context.Background()
	logger := zap.NewNop()

	pgC := testutil.NewPostgresContainer(ctx, t)
	t.Cleanup(func() { _ = pgC.Terminate(ctx) })
	s3C := testutil.NewS3Container(ctx, t)
	t.Cleanup(func() { _ = s3C.Terminate(ctx) })

	pool := testutil.NewTestPool(ctx, t, pgC, "../../migrations")
	t.Cleanup(pool.Close)

	files, err := storage.NewS3Store(ctx, storage.S3Config{
		Endpoint:        s3C.Endpoint(),
		Region:          "us-east-1",
		AccessKeyID:     testutil.S3AccessKey,
		SecretAccessKey: testutil.S3SecretKey,
		Bucket:          "e2e-sources",
		UsePathStyle:    true,
	})
	require.NoError(t, err)
	require.NoError(t, files.EnsureBucket(ctx))

	embedPool, err := workpool.New(workpool.DefaultSize)
	require.NoError(t, err)
	t.Cleanup(embedPool.Release)
	jobPool, err := workpool.New(2)
	require.NoError(t, err)
	t.Cleanup(jobPool.Release)

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	extractor := extract.NewExtractor(files)
	extractor.Register(mediaTypeText, extract.HandlerFunc(func(_ context.Context, b []byte) (string, error) {
		return string(b), nil
	}))
	chunker, err := chunking.NewRouter(chunking.Config{MaxSize: 200, Overlap: 20})
	require.NoError(t, err)
	chunker.RegisterFile(mediaTypeText, mustSplitter(t))

	txRunner := repository.NewTxRunner(pool)
	jobRepo := repository.NewKnowledgeJobRepository(pool)
	provider := bagOfWords{}

	sources := service.NewSourceService(txRunner, files, extractor.MediaTypes(), logger)
	ingestion := service.NewIngestionService(
		jobRepo, extractor, chunker,
		service.NewBatchEmbedder(provider, embedPool, m, logger),
		service.NewKnowledgeItemService(txRunner, logger),
		m, logger,
	)
	retrieval := service.NewRetrievalService(
		provider,
		repository.NewKnowledgeItemRepository(pool),
		repository.NewKnowledgeEmbeddingRepository(pool),
		txRunner, m, logger,
	)

	router := server.NewRouter(server.RouterConfig{
		Logger:        logger,
		Metrics:       m,
		Gatherer:      reg,
		Database:      pool,
		AuthValidator: service.NewStaticKeyAuthenticator(map[string]string{testAPIKey: testPrincipal}),
		SourceHandler: handlers.NewSourceHandler(sources),
		JobHandler:    handlers.NewJobHandler(ingestion),
		QueryHandler:  handlers.NewQueryHandler(retrieval),
	})
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	return &Env{
		T:      t,
		Ctx:    ctx,
		Pool:   pool,
		Server: srv,
		Worker: jobs.NewIngestionWorker(jobRepo, ingestion, jobPool, time.Minute, logger),
		Client: &http.Client{Timeout: 30 * time.Second},
	}
}

func mustSplitter(t *testing.T) chunking.Splitter {
	t.Helper()
	s, err := chunking.NewRecursiveSplitter(chunking.Config{MaxSize: 200, Overlap: 20})
	require.NoError(t, err)
	return s
}

// Do sends an authenticated request and decodes the "data" envelope into out.
func (e *Env) Do(req *http.Request, out any) *http.Response {
	e.T.Helper()
	req.Header.Set("Authorization", "Bearer "+testAPIKey)
	resp, err := e.Client.Do(req)
	require.NoError(e.T, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(e.T, err)
	if out != nil && resp.StatusCode < 300 {
		var envelope struct {
			Data json.RawMessage `json:"data"`
		}
		require.NoError(e.T, json.Unmarshal(body, &envelope), string(body))
		require.NoError(e.T, json.Unmarshal(envelope.Data, out))
	}
	return resp
}

func (e *Env) Upload(fileName, mediaType string, content []byte) (*handlers.UploadResponse, *http.Response) {
	e.T.Helper()
	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="`+fileName+`"`)
	h.Set("Content-Type", mediaType)
	part, err := mw.CreatePart(h)
	require.NoError(e.T, err)
	_, err = part.Write(content)
	require.NoError(e.T, err)
	require.NoError(e.T, mw.Close())

	req, err := http.NewRequestWithContext(e.Ctx, http.MethodPost, e.Server.URL+"/v1/sources", body)
	require.NoError(e.T, err)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var out handlers.UploadResponse
	resp := e.Do(req, &out)
	return &out, resp
}

func (e *Env) Job(id string) *handlers.JobResponse {
	e.T.Helper()
	req, err := http.NewRequestWithContext(e.Ctx, http.MethodGet, e.Server.URL+"/v1/jobs/"+id, nil)
	require.NoError(e.T, err)
	var out handlers.JobResponse
	resp := e.Do(req, &out)
	require.Equal(e.T, http.StatusOK, resp.StatusCode)
	return &out
}

func (e *Env) Query(text string, limit int) (*handlers.QueryResponse, *http.Response) {
	e.T.Helper()
	payload, err := json.Marshal(handlers.QueryRequest{Text: text, Limit: limit})
	require.NoError(e.T, err)
	req, err := http.NewRequestWithContext(e.Ctx, http.MethodPost, e.Server.URL+"/v1/query", bytes.NewReader(payload))
	require.NoError(e.T, err)
	req.Header.Set("Content-Type", "application/json")

	var out handlers.QueryResponse
	resp := e.Do(req, &out)
	return &out, resp
}
