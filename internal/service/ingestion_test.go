package service

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloo-solutions/otter/internal/chunking"
	"github.com/cloo-solutions/otter/internal/domain"
	"github.com/cloo-solutions/otter/internal/pagination"
)

type stubExtractor struct {
	text string
	err  error
}

func (s stubExtractor) Extract(context.Context, *domain.Source) (string, error) {
	return s.text, s.err
}

type ingestionFixture struct {
	store    *memStore
	provider *fakeProvider
	svc      *IngestionService
}

func newIngestionFixture(t *testing.T, extractor TextExtractor) *ingestionFixture {
	t.Helper()

	router, err := chunking.NewRouter(chunking.Config{MaxSize: 100, Overlap: 10})
	require.NoError(t, err)
	splitter, err := chunking.NewRecursiveSplitter(chunking.Config{MaxSize: 100, Overlap: 10})
	require.NoError(t, err)
	router.RegisterFile("text/plain", splitter)

	store := newMemStore()
	provider := newFakeProvider()
	m := testMetrics()

	svc := NewIngestionService(
		memJobRepo{store},
		extractor,
		router,
		NewBatchEmbedder(provider, newTestPool(t, 4), m, testLogger()),
		NewKnowledgeItemService(&memTxRunner{s: store}, testLogger()),
		m,
		testLogger(),
	)
	return &ingestionFixture{store: store, provider: provider, svc: svc}
}

func textSource() *domain.Source {
	return &domain.Source{
		Kind:        domain.SourceKindFile,
		Location:    "sources/p1/doc.txt",
		FileName:    "doc.txt",
		MediaType:   "text/plain",
		PrincipalID: "p1",
	}
}

func TestProcessJob_Completes(t *testing.T) {
	f := newIngestionFixture(t, stubExtractor{text: strings.Repeat("word ", 60)})
	job := f.store.addJob(domain.JobStatusQueued, textSource())

	res, err := f.svc.ProcessJob(context.Background(), job.ID)
	require.NoError(t, err)

	assert.Equal(t, []domain.JobStatus{domain.JobStatusProcessing, domain.JobStatusCompleted}, f.store.writes())
	assert.Equal(t, domain.JobStatusCompleted, f.store.job(job.ID).Status)
	assert.Equal(t, domain.JobStatusCompleted, res.Job.Status)

	require.NotNil(t, res.Item)
	assert.Equal(t, len(res.Embedded.Chunks), res.Item.ChunksCount)
	assert.Greater(t, res.Item.ChunksCount, 1)
	assert.Equal(t, 100, res.Item.ChunkSize)
	assert.Equal(t, 10, res.Item.ChunkOverlap)
	assert.Equal(t, chunking.RecursiveSplitterName, res.Item.Splitter)
	assert.Equal(t, "text-embedding-3-small", res.Item.EmbeddingModel)

	items, chunks, embeddings := f.store.counts()
	assert.Equal(t, 1, items)
	assert.Equal(t, res.Item.ChunksCount, chunks)
	assert.Equal(t, chunks, embeddings)
}

func TestProcessJob_FailsOnSecondChunk(t *testing.T) {
	f := newIngestionFixture(t, stubExtractor{text: strings.Repeat("word ", 60)})
	var seen atomic.Int32
	f.provider.embed = func(context.Context, string) (*domain.EmbeddingResult, error) {
		if seen.Add(1) == 2 {
			return nil, errBoom
		}
		return &domain.EmbeddingResult{Vector: []float32{1}, TokenCount: 1}, nil
	}
	job := f.store.addJob(domain.JobStatusQueued, textSource())

	res, err := f.svc.ProcessJob(context.Background(), job.ID)

	assert.Nil(t, res)
	require.ErrorIs(t, err, errBoom)

	stored := f.store.job(job.ID)
	assert.Equal(t, domain.JobStatusFailed, stored.Status)
	assert.Contains(t, stored.Error, "boom")
	assert.Equal(t, []domain.JobStatus{domain.JobStatusProcessing, domain.JobStatusFailed}, f.store.writes())

	items, chunks, embeddings := f.store.counts()
	assert.Zero(t, items)
	assert.Zero(t, chunks)
	assert.Zero(t, embeddings)
}

func TestProcessJob_ExtractionFailureMarksFailed(t *testing.T) {
	f := newIngestionFixture(t, stubExtractor{err: domain.ErrUnsupportedFormat})
	job := f.store.addJob(domain.JobStatusQueued, textSource())

	_, err := f.svc.ProcessJob(context.Background(), job.ID)

	assert.Equal(t, domain.ErrCodeUnsupportedFormat, domain.ErrorCode(err))
	assert.Equal(t, domain.JobStatusFailed, f.store.job(job.ID).Status)
	assert.Zero(t, f.provider.calls.Load())
}

func TestProcessJob_PersistenceFailureMarksFailed(t *testing.T) {
	f := newIngestionFixture(t, stubExtractor{text: "short text"})
	f.store.failEmbeddingsCreate = errBoom
	job := f.store.addJob(domain.JobStatusQueued, textSource())

	_, err := f.svc.ProcessJob(context.Background(), job.ID)

	assert.Equal(t, domain.ErrCodePersistence, domain.ErrorCode(err))
	assert.Equal(t, domain.JobStatusFailed, f.store.job(job.ID).Status)
}

func TestProcessJob_RejectsJobsNotQueued(t *testing.T) {
	for _, status := range []domain.JobStatus{domain.JobStatusProcessing, domain.JobStatusCompleted, domain.JobStatusFailed} {
		t.Run(string(status), func(t *testing.T) {
			f := newIngestionFixture(t, stubExtractor{text: "text"})
			job := f.store.addJob(status, textSource())

			_, err := f.svc.ProcessJob(context.Background(), job.ID)

			assert.ErrorIs(t, err, domain.ErrInvalidJobState)
			assert.Empty(t, f.store.writes())
			assert.Equal(t, status, f.store.job(job.ID).Status)
			assert.Zero(t, f.provider.calls.Load())
		})
	}
}

func TestProcessJob_UnknownJob(t *testing.T) {
	f := newIngestionFixture(t, stubExtractor{text: "text"})

	_, err := f.svc.ProcessJob(context.Background(), "missing")

	assert.ErrorIs(t, err, domain.ErrJobNotFound)
}

func TestProcessJob_ConcurrentCallsProcessOnce(t *testing.T) {
	f := newIngestionFixture(t, stubExtractor{text: strings.Repeat("word ", 60)})
	job := f.store.addJob(domain.JobStatusQueued, textSource())

	const callers = 8
	var wg sync.WaitGroup
	errs := make([]error, callers)
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = f.svc.ProcessJob(context.Background(), job.ID)
		}()
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, domain.ErrInvalidJobState)
	}
	assert.Equal(t, 1, succeeded)

	items, _, _ := f.store.counts()
	assert.Equal(t, 1, items)
	assert.Equal(t, []domain.JobStatus{domain.JobStatusProcessing, domain.JobStatusCompleted}, f.store.writes())
}

func TestProcessJob_CallerTimeoutLeavesProcessing(t *testing.T) {
	f := newIngestionFixture(t, stubExtractor{text: strings.Repeat("word ", 60)})
	f.provider.embed = func(ctx context.Context, _ string) (*domain.EmbeddingResult, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	job := f.store.addJob(domain.JobStatusQueued, textSource())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := f.svc.ProcessJob(ctx, job.ID)

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, domain.JobStatusProcessing, f.store.job(job.ID).Status)
	assert.Equal(t, []domain.JobStatus{domain.JobStatusProcessing}, f.store.writes())
}

func TestProcessJob_CompletionWriteFailure(t *testing.T) {
	f := newIngestionFixture(t, stubExtractor{text: "text"})
	f.store.failTransitionTo[domain.JobStatusCompleted] = errBoom
	job := f.store.addJob(domain.JobStatusQueued, textSource())

	_, err := f.svc.ProcessJob(context.Background(), job.ID)

	assert.ErrorIs(t, err, errBoom)
	assert.Equal(t, domain.JobStatusProcessing, f.store.job(job.ID).Status)
}

func TestCreateJob(t *testing.T) {
	f := newIngestionFixture(t, stubExtractor{})

	job, err := f.svc.CreateJob(context.Background(), "src1")
	require.NoError(t, err)

	assert.NotEmpty(t, job.ID)
	assert.Equal(t, domain.JobStatusQueued, job.Status)
	assert.Equal(t, domain.JobStatusQueued, f.store.job(job.ID).Status)

	_, err = f.svc.CreateJob(context.Background(), "")
	assert.ErrorIs(t, err, domain.ErrMissingRequiredField)
}

func TestRequeue(t *testing.T) {
	tests := []struct {
		from    domain.JobStatus
		wantErr error
	}{
		{domain.JobStatusFailed, nil},
		{domain.JobStatusProcessing, nil},
		{domain.JobStatusCompleted, domain.ErrInvalidJobState},
		{domain.JobStatusQueued, domain.ErrInvalidJobState},
	}

	for _, tt := range tests {
		t.Run(string(tt.from), func(t *testing.T) {
			f := newIngestionFixture(t, stubExtractor{})
			job := f.store.addJob(tt.from, textSource())

			got, err := f.svc.Requeue(context.Background(), job.ID)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Equal(t, tt.from, f.store.job(job.ID).Status)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, domain.JobStatusQueued, got.Status)
			assert.Equal(t, domain.JobStatusQueued, f.store.job(job.ID).Status)
			assert.Empty(t, f.store.job(job.ID).Error)
		})
	}
}

func TestRequeueThenProcess(t *testing.T) {
	f := newIngestionFixture(t, stubExtractor{text: "text"})
	job := f.store.addJob(domain.JobStatusFailed, textSource())

	_, err := f.svc.Requeue(context.Background(), job.ID)
	require.NoError(t, err)
	_, err = f.svc.ProcessJob(context.Background(), job.ID)
	require.NoError(t, err)

	assert.Equal(t, domain.JobStatusCompleted, f.store.job(job.ID).Status)
}

func TestListJobs(t *testing.T) {
	f := newIngestionFixture(t, stubExtractor{})
	base := time.Now().UTC()
	for i := range 5 {
		job := f.store.addJob(domain.JobStatusQueued, textSource())
		f.store.jobs[job.ID].CreatedAt = base.Add(time.Duration(i) * time.Second)
	}
	other := textSource()
	other.PrincipalID = "p2"
	f.store.addJob(domain.JobStatusQueued, other)

	page1, err := f.svc.ListJobs(context.Background(), ListJobsInput{PrincipalID: "p1", Limit: 3})
	require.NoError(t, err)
	require.Len(t, page1.Items, 3)
	assert.True(t, page1.HasMore)
	assert.NotEmpty(t, page1.Cursor)
	assert.True(t, page1.Items[0].CreatedAt.After(page1.Items[1].CreatedAt))

	page2, err := f.svc.ListJobs(context.Background(), ListJobsInput{PrincipalID: "p1", Limit: 3, Cursor: page1.Cursor})
	require.NoError(t, err)
	assert.Len(t, page2.Items, 2)
	assert.False(t, page2.HasMore)
	assert.Empty(t, page2.Cursor)

	_, err = f.svc.ListJobs(context.Background(), ListJobsInput{PrincipalID: "p1", Cursor: "!!"})
	assert.ErrorIs(t, err, pagination.ErrInvalidCursor)
	assert.Equal(t, domain.ErrCodeValidation, domain.ErrorCode(err))
}
