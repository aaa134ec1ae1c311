// Package extract turns stored sources into plain text.
package extract

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/cloo-solutions/otter/internal/domain"
)

// FileReader loads the bytes of a stored file.
type FileReader interface {
	Read(ctx context.Context, location string) ([]byte, error)
}

// Handler extracts text from the raw bytes of one media type.
type Handler interface {
	Extract(ctx context.Context, content []byte) (string, error)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, content []byte) (string, error)

// Extract implements Handler.
func (f HandlerFunc) Extract(ctx context.Context, content []byte) (string, error) {
	return f(ctx, content)
}

// Extractor dispatches on source kind, then on media type for file sources.
type Extractor struct {
	files  FileReader
	byType map[string]Handler
}

// NewExtractor returns an Extractor with the PDF handler registered.
func NewExtractor(files FileReader) *Extractor {
	e := &Extractor{
		files:  files,
		byType: make(map[string]Handler),
	}
	e.Register(domain.MediaTypePDF, PDFHandler{})
	return e
}

// Register binds a handler to a media type for file sources.
func (e *Extractor) Register(mediaType string, h Handler) {
	e.byType[mediaType] = h
}

// MediaTypes lists the registered media types in sorted order.
func (e *Extractor) MediaTypes() []string {
	types := make([]string, 0, len(e.byType))
	for t := range e.byType {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// Extract returns the full text of src. Unsupported kinds or media types fail
// with an UNSUPPORTED_FORMAT error before any bytes are read.
func (e *Extractor) Extract(ctx context.Context, src *domain.Source) (string, error) {
	if src == nil {
		return "", fmt.Errorf("extract: source is nil")
	}

	switch src.Kind {
	case domain.SourceKindFile:
		return e.extractFile(ctx, src)
	default:
		return "", fmt.Errorf("%w: source kind %q", domain.ErrUnsupportedFormat, src.Kind)
	}
}

func (e *Extractor) extractFile(ctx context.Context, src *domain.Source) (string, error) {
	h, ok := e.byType[src.MediaType]
	if !ok {
		return "", fmt.Errorf("%w: media type %q", domain.ErrUnsupportedFormat, src.MediaType)
	}

	content, err := e.files.Read(ctx, src.Location)
	if err != nil {
		return "", fmt.Errorf("read source file: %w", err)
	}

	text, err := h.Extract(ctx, content)
	if err != nil {
		return "", fmt.Errorf("extract %s: %w", src.MediaType, err)
	}

	if strings.TrimSpace(text) == "" {
		return "", domain.ErrEmptyDocument
	}

	return text, nil
}
