package service

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloo-solutions/otter/internal/domain"
)

func newSourceFixture() (*memStore, *memFileStore, *SourceService) {
	store := newMemStore()
	files := newMemFileStore()
	svc := NewSourceService(&memTxRunner{s: store}, files, []string{domain.MediaTypePDF}, testLogger())
	return store, files, svc
}

func TestUpload(t *testing.T) {
	store, files, svc := newSourceFixture()

	out, err := svc.Upload(context.Background(), UploadInput{
		PrincipalID: "p1",
		FileName:    "Report.PDF",
		MediaType:   domain.MediaTypePDF,
		Content:     []byte("%PDF-1.4"),
	})
	require.NoError(t, err)

	assert.NotEmpty(t, out.Source.ID)
	assert.Equal(t, domain.SourceKindFile, out.Source.Kind)
	assert.Equal(t, "Report.PDF", out.Source.FileName)
	assert.True(t, strings.HasPrefix(out.Source.Location, "sources/"))
	assert.True(t, strings.HasSuffix(out.Source.Location, ".pdf"))

	assert.Equal(t, domain.JobStatusQueued, out.Job.Status)
	assert.Equal(t, out.Source.ID, out.Job.SourceID)
	assert.Equal(t, domain.JobStatusQueued, store.job(out.Job.ID).Status)

	content, err := files.Read(context.Background(), out.Source.Location)
	require.NoError(t, err)
	assert.Equal(t, []byte("%PDF-1.4"), content)
}

func TestUpload_LocationIgnoresClientPath(t *testing.T) {
	_, _, svc := newSourceFixture()

	out, err := svc.Upload(context.Background(), UploadInput{
		PrincipalID: "p1",
		FileName:    "../../etc/passwd.pdf",
		MediaType:   domain.MediaTypePDF,
		Content:     []byte("x"),
	})
	require.NoError(t, err)

	assert.NotContains(t, out.Source.Location, "..")
	assert.NotContains(t, out.Source.Location, "passwd")
}

func TestUpload_UnsupportedMediaType(t *testing.T) {
	_, files, svc := newSourceFixture()

	_, err := svc.Upload(context.Background(), UploadInput{
		PrincipalID: "p1",
		FileName:    "a.html",
		MediaType:   "text/html",
		Content:     []byte("<p>"),
	})

	assert.Equal(t, domain.ErrCodeUnsupportedFormat, domain.ErrorCode(err))
	assert.Empty(t, files.files)
}

func TestUpload_EmptyContent(t *testing.T) {
	_, _, svc := newSourceFixture()

	_, err := svc.Upload(context.Background(), UploadInput{PrincipalID: "p1", MediaType: domain.MediaTypePDF})

	assert.ErrorIs(t, err, domain.ErrMissingRequiredField)
}

func TestUpload_RecordFailureRemovesFile(t *testing.T) {
	store, files, svc := newSourceFixture()
	store.failSourceCreate = errBoom

	_, err := svc.Upload(context.Background(), UploadInput{
		PrincipalID: "p1",
		FileName:    "a.pdf",
		MediaType:   domain.MediaTypePDF,
		Content:     []byte("x"),
	})

	assert.ErrorIs(t, err, errBoom)
	assert.Equal(t, domain.ErrCodePersistence, domain.ErrorCode(err))
	assert.Empty(t, files.files)
	assert.Empty(t, store.jobs)
}

func TestUpload_StorageFailure(t *testing.T) {
	store, files, svc := newSourceFixture()
	files.writeErr = errBoom

	_, err := svc.Upload(context.Background(), UploadInput{
		PrincipalID: "p1",
		FileName:    "a.pdf",
		MediaType:   domain.MediaTypePDF,
		Content:     []byte("x"),
	})

	assert.ErrorIs(t, err, errBoom)
	assert.Empty(t, store.sources)
}
