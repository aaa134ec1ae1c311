package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/cloo-solutions/otter/internal/domain"
	"github.com/cloo-solutions/otter/internal/metrics"
	"github.com/cloo-solutions/otter/internal/pagination"
)

func testMetrics() *metrics.Metrics {
	return metrics.New(prometheus.NewRegistry())
}

func testLogger() *zap.Logger {
	return zap.NewNop()
}

// memStore is an in-memory stand-in for the relational store.
type memStore struct {
	mu sync.Mutex

	sources    map[string]*domain.Source
	jobs       map[string]*domain.KnowledgeJob
	items      []*domain.KnowledgeItem
	chunks     []domain.Chunk
	embeddings []domain.Embedding
	queries    []*domain.Query
	results    []domain.QueryResult

	// statusWrites records every successful status change, in order.
	statusWrites []domain.JobStatus

	nearest      []domain.ScoredChunk
	nearestLimit int

	failSourceCreate     error
	failEmbeddingsCreate error
	failQueryResults     error
	failTransitionTo     map[domain.JobStatus]error
}

func newMemStore() *memStore {
	return &memStore{
		sources:          make(map[string]*domain.Source),
		jobs:             make(map[string]*domain.KnowledgeJob),
		failTransitionTo: make(map[domain.JobStatus]error),
	}
}

type memSnapshot struct {
	sources    map[string]*domain.Source
	jobs       map[string]domain.KnowledgeJob
	items      int
	chunks     int
	embeddings int
	queries    int
	results    int
}

func (m *memStore) snapshot() memSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	jobs := make(map[string]domain.KnowledgeJob, len(m.jobs))
	for id, j := range m.jobs {
		jobs[id] = *j
	}
	sources := make(map[string]*domain.Source, len(m.sources))
	for id, s := range m.sources {
		sources[id] = s
	}
	return memSnapshot{
		sources:    sources,
		jobs:       jobs,
		items:      len(m.items),
		chunks:     len(m.chunks),
		embeddings: len(m.embeddings),
		queries:    len(m.queries),
		results:    len(m.results),
	}
}

func (m *memStore) restore(s memSnapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sources = s.sources
	m.jobs = make(map[string]*domain.KnowledgeJob, len(s.jobs))
	for id, j := range s.jobs {
		job := j
		m.jobs[id] = &job
	}
	m.items = m.items[:s.items]
	m.chunks = m.chunks[:s.chunks]
	m.embeddings = m.embeddings[:s.embeddings]
	m.queries = m.queries[:s.queries]
	m.results = m.results[:s.results]
}

func (m *memStore) addJob(status domain.JobStatus, src *domain.Source) *domain.KnowledgeJob {
	m.mu.Lock()
	defer m.mu.Unlock()

	if src.ID == "" {
		src.ID = uuid.NewString()
	}
	m.sources[src.ID] = src
	job := &domain.KnowledgeJob{
		ID:        uuid.NewString(),
		SourceID:  src.ID,
		Status:    status,
		CreatedAt: time.Now().UTC(),
	}
	m.jobs[job.ID] = job
	return job
}

func (m *memStore) job(id string) domain.KnowledgeJob {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.jobs[id]
}

func (m *memStore) writes() []domain.JobStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.statusWrites)
}

func (m *memStore) counts() (items, chunks, embeddings int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items), len(m.chunks), len(m.embeddings)
}

type memSourceRepo struct{ s *memStore }

func (r memSourceRepo) Create(_ context.Context, src *domain.Source) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.failSourceCreate != nil {
		return r.s.failSourceCreate
	}
	src.ID = uuid.NewString()
	src.CreatedAt = time.Now().UTC()
	r.s.sources[src.ID] = src
	return nil
}

func (r memSourceRepo) GetByID(_ context.Context, id string) (*domain.Source, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	src, ok := r.s.sources[id]
	if !ok {
		return nil, domain.ErrSourceNotFound
	}
	return src, nil
}

type memJobRepo struct{ s *memStore }

func (r memJobRepo) Create(_ context.Context, job *domain.KnowledgeJob) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	job.ID = uuid.NewString()
	job.CreatedAt = time.Now().UTC()
	job.UpdatedAt = job.CreatedAt
	stored := *job
	r.s.jobs[job.ID] = &stored
	return nil
}

func (r memJobRepo) GetByID(_ context.Context, id string) (*domain.KnowledgeJob, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	job, ok := r.s.jobs[id]
	if !ok {
		return nil, domain.ErrJobNotFound
	}
	out := *job
	out.Source = r.s.sources[job.SourceID]
	return &out, nil
}

func (r memJobRepo) Transition(_ context.Context, id string, from, to domain.JobStatus, errMsg string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	job, ok := r.s.jobs[id]
	if !ok {
		return domain.ErrJobNotFound
	}
	if err := r.s.failTransitionTo[to]; err != nil {
		return err
	}
	if job.Status != from {
		return fmt.Errorf("%w: job %s is %s, expected %s", domain.ErrInvalidJobState, id, job.Status, from)
	}
	job.Status = to
	job.Error = errMsg
	r.s.statusWrites = append(r.s.statusWrites, to)
	return nil
}

func (r memJobRepo) ListQueued(_ context.Context, limit int) ([]*domain.KnowledgeJob, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*domain.KnowledgeJob
	for _, j := range r.s.jobs {
		if j.Status == domain.JobStatusQueued && len(out) < limit {
			job := *j
			out = append(out, &job)
		}
	}
	return out, nil
}

func (r memJobRepo) ListByPrincipalWithCursor(_ context.Context, principalID string, cursor *pagination.Cursor, limit int) ([]*domain.KnowledgeJob, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var all []*domain.KnowledgeJob
	for _, j := range r.s.jobs {
		if src := r.s.sources[j.SourceID]; src != nil && src.PrincipalID == principalID {
			job := *j
			all = append(all, &job)
		}
	}
	sort.Slice(all, func(a, b int) bool {
		if all[a].CreatedAt.Equal(all[b].CreatedAt) {
			return all[a].ID > all[b].ID
		}
		return all[a].CreatedAt.After(all[b].CreatedAt)
	})
	var out []*domain.KnowledgeJob
	for _, j := range all {
		if cursor != nil {
			if j.CreatedAt.After(cursor.Timestamp) {
				continue
			}
			if j.CreatedAt.Equal(cursor.Timestamp) && j.ID >= cursor.LastID {
				continue
			}
		}
		if len(out) == limit {
			break
		}
		out = append(out, j)
	}
	return out, nil
}

type memItemRepo struct{ s *memStore }

func (r memItemRepo) Create(_ context.Context, item *domain.KnowledgeItem) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	item.ID = uuid.NewString()
	item.CreatedAt = time.Now().UTC()
	r.s.items = append(r.s.items, item)
	return nil
}

func (r memItemRepo) GetByJobID(_ context.Context, jobID string) (*domain.KnowledgeItem, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, it := range r.s.items {
		if it.KnowledgeJobID != nil && *it.KnowledgeJobID == jobID {
			return it, nil
		}
	}
	return nil, domain.ErrKnowledgeItemNotFound
}

func (r memItemRepo) LockCorpus(context.Context) error { return nil }

func (r memItemRepo) CorpusModels(context.Context) ([]domain.CorpusModel, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []domain.CorpusModel
	for _, it := range r.s.items {
		m := domain.CorpusModel{Model: it.EmbeddingModel, Provider: it.EmbeddingProvider}
		if !slices.Contains(out, m) {
			out = append(out, m)
		}
	}
	return out, nil
}

type memChunkRepo struct{ s *memStore }

func (r memChunkRepo) CreateMany(_ context.Context, chunks []domain.Chunk) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.chunks = append(r.s.chunks, chunks...)
	return nil
}

type memEmbeddingRepo struct{ s *memStore }

func (r memEmbeddingRepo) CreateMany(_ context.Context, embeddings []domain.Embedding) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.failEmbeddingsCreate != nil {
		// Rows before the last one land first, as a real multi-row insert
		// would have sent them.
		r.s.embeddings = append(r.s.embeddings, embeddings[:len(embeddings)-1]...)
		return r.s.failEmbeddingsCreate
	}
	r.s.embeddings = append(r.s.embeddings, embeddings...)
	return nil
}

func (r memEmbeddingRepo) FindNearest(_ context.Context, _ []float32, limit int) ([]domain.ScoredChunk, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.nearestLimit = limit
	if len(r.s.nearest) > limit {
		return r.s.nearest[:limit], nil
	}
	return r.s.nearest, nil
}

type memQueryRepo struct{ s *memStore }

func (r memQueryRepo) Create(_ context.Context, q *domain.Query) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	q.ID = uuid.NewString()
	r.s.queries = append(r.s.queries, q)
	return nil
}

func (r memQueryRepo) CreateResults(_ context.Context, results []domain.QueryResult) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.failQueryResults != nil {
		return r.s.failQueryResults
	}
	r.s.results = append(r.s.results, results...)
	return nil
}

type memTxRepos struct{ s *memStore }

func (t memTxRepos) Sources() SourceRepositoryInterface { return memSourceRepo{t.s} }
func (t memTxRepos) Jobs() KnowledgeJobRepositoryInterface { return memJobRepo{t.s} }
func (t memTxRepos) KnowledgeItems() KnowledgeItemRepositoryInterface { return memItemRepo{t.s} }
func (t memTxRepos) Chunks() KnowledgeChunkRepositoryInterface { return memChunkRepo{t.s} }
func (t memTxRepos) Embeddings() KnowledgeEmbeddingRepositoryInterface { return memEmbeddingRepo{t.s} }
func (t memTxRepos) Queries() KnowledgeQueryRepositoryInterface { return memQueryRepo{t.s} }

// memTxRunner restores the store when fn fails, like a rollback.
type memTxRunner struct {
	s     *memStore
	calls atomic.Int32
}

func (r *memTxRunner) WithTx(_ context.Context, fn func(repos TxRepositories) error) error {
	r.calls.Add(1)
	snap := r.s.snapshot()
	if err := fn(memTxRepos{r.s}); err != nil {
		r.s.restore(snap)
		return err
	}
	return nil
}

// fakeProvider embeds text through a function so tests control timing and failures.
type fakeProvider struct {
	model    string
	provider string
	embed    func(ctx context.Context, text string) (*domain.EmbeddingResult, error)
	calls    atomic.Int32
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		model:    "text-embedding-3-small",
		provider: "openai",
		embed: func(_ context.Context, text string) (*domain.EmbeddingResult, error) {
			return &domain.EmbeddingResult{Vector: []float32{float32(len(text)), 1}, TokenCount: len(text)}, nil
		},
	}
}

func (p *fakeProvider) Embed(ctx context.Context, text string) (*domain.EmbeddingResult, error) {
	p.calls.Add(1)
	return p.embed(ctx, text)
}

func (p *fakeProvider) ModelID() string    { return p.model }
func (p *fakeProvider) ProviderID() string { return p.provider }

// memFileStore keeps files in a map.
type memFileStore struct {
	mu       sync.Mutex
	files    map[string][]byte
	writeErr error
}

func newMemFileStore() *memFileStore {
	return &memFileStore{files: make(map[string][]byte)}
}

func (f *memFileStore) Read(_ context.Context, location string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.files[location]
	if !ok {
		return nil, domain.ErrSourceFileNotFound
	}
	return b, nil
}

func (f *memFileStore) Write(_ context.Context, location string, content []byte, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeErr != nil {
		return f.writeErr
	}
	f.files[location] = content
	return nil
}

func (f *memFileStore) Delete(_ context.Context, location string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.files, location)
	return nil
}

var errBoom = errors.New("boom")
