package chunking

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/cloo-solutions/otter/internal/domain"
)

// Router selects a splitter by source kind and then by media type.
type Router struct {
	files map[string]Splitter
	newID func() string
}

// NewRouter returns a router with the default splitter registered for PDFs.
func NewRouter(cfg Config) (*Router, error) {
	splitter, err := NewRecursiveSplitter(cfg)
	if err != nil {
		return nil, err
	}

	r := &Router{
		files: make(map[string]Splitter),
		newID: uuid.NewString,
	}
	r.RegisterFile(domain.MediaTypePDF, splitter)
	return r, nil
}

// RegisterFile binds a splitter to a media type for file sources.
func (r *Router) RegisterFile(mediaType string, s Splitter) {
	r.files[mediaType] = s
}

// Chunk splits a parsed job's text and assigns chunk IDs and positions.
func (r *Router) Chunk(parsed *domain.ParsedJob) (*domain.ChunkedJob, error) {
	if parsed == nil || parsed.Job == nil || parsed.Job.Source == nil {
		return nil, fmt.Errorf("chunk: parsed job has no source")
	}

	splitter, err := r.splitterFor(parsed.Job.Source)
	if err != nil {
		return nil, err
	}

	texts := splitter.Split(parsed.Text)
	chunks := make([]domain.Chunk, len(texts))
	for i, text := range texts {
		chunks[i] = domain.Chunk{
			ID:       r.newID(),
			Position: i,
			Text:     text,
		}
	}

	cfg := splitter.Config()
	return &domain.ChunkedJob{
		Job:          parsed.Job,
		Chunks:       chunks,
		ChunkSize:    cfg.MaxSize,
		ChunkOverlap: cfg.Overlap,
		Splitter:     splitter.Name(),
	}, nil
}

func (r *Router) splitterFor(src *domain.Source) (Splitter, error) {
	switch src.Kind {
	case domain.SourceKindFile:
		s, ok := r.files[src.MediaType]
		if !ok {
			return nil, fmt.Errorf("%w: no splitter for media type %q", domain.ErrUnsupportedFormat, src.MediaType)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("%w: no splitter for source kind %q", domain.ErrUnsupportedFormat, src.Kind)
	}
}
