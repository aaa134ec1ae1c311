package chunking

import (
	"fmt"
	"unicode"

	"github.com/cloo-solutions/otter/internal/domain"
)

// RecursiveSplitterName is recorded on knowledge items built by RecursiveSplitter.
const RecursiveSplitterName = "recursive-character"

// Config controls chunk size and overlap, both measured in runes.
type Config struct {
	MaxSize int
	Overlap int
}

// DefaultConfig returns the default chunking parameters.
func DefaultConfig() Config {
	return Config{
		MaxSize: 800,
		Overlap: 60,
	}
}

// Validate rejects configurations that cannot make forward progress.
func (c Config) Validate() error {
	if c.MaxSize <= 0 {
		return fmt.Errorf("%w: max size must be positive, got %d", domain.ErrInvalidChunkConfig, c.MaxSize)
	}
	if c.Overlap < 0 {
		return fmt.Errorf("%w: overlap cannot be negative, got %d", domain.ErrInvalidChunkConfig, c.Overlap)
	}
	if c.Overlap >= c.MaxSize {
		return fmt.Errorf("%w: overlap %d must be smaller than max size %d", domain.ErrInvalidChunkConfig, c.Overlap, c.MaxSize)
	}
	return nil
}

// Splitter cuts text into ordered, overlapping pieces.
type Splitter interface {
	Split(text string) []string
	Name() string
	Config() Config
}

// boundary reports whether a cut placed before runes[i] lands on a boundary.
type boundary func(runes []rune, i int) bool

// Boundaries in order of preference: paragraph, line, sentence, word.
var boundaries = []boundary{
	func(r []rune, i int) bool { return i >= 2 && r[i-1] == '\n' && r[i-2] == '\n' },
	func(r []rune, i int) bool { return r[i-1] == '\n' },
	func(r []rune, i int) bool {
		if i < 2 || !unicode.IsSpace(r[i-1]) {
			return false
		}
		switch r[i-2] {
		case '.', '!', '?':
			return true
		}
		return false
	},
	func(r []rune, i int) bool { return unicode.IsSpace(r[i-1]) },
}

// RecursiveSplitter splits text at the largest natural boundary that fits in
// a chunk, falling back through smaller boundaries down to single runes.
//
// Every chunk after the first starts exactly Overlap runes before the end of
// its predecessor, so dropping the first Overlap runes of each later chunk
// and concatenating reproduces the input.
type RecursiveSplitter struct {
	cfg Config
}

// NewRecursiveSplitter validates cfg and returns a splitter.
func NewRecursiveSplitter(cfg Config) (*RecursiveSplitter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &RecursiveSplitter{cfg: cfg}, nil
}

// Name implements Splitter.
func (s *RecursiveSplitter) Name() string { return RecursiveSplitterName }

// Config implements Splitter.
func (s *RecursiveSplitter) Config() Config { return s.cfg }

// Split implements Splitter. Empty text yields no chunks.
func (s *RecursiveSplitter) Split(text string) []string {
	if text == "" {
		return nil
	}
	runes := []rune(text)
	if len(runes) <= s.cfg.MaxSize {
		return []string{text}
	}

	chunks := make([]string, 0, len(runes)/(s.cfg.MaxSize-s.cfg.Overlap)+1)
	start := 0
	for len(runes)-start > s.cfg.MaxSize {
		end := s.cut(runes, start)
		chunks = append(chunks, string(runes[start:end]))
		start = end - s.cfg.Overlap
	}
	chunks = append(chunks, string(runes[start:]))

	return chunks
}

// cut picks the end of the chunk starting at start. The result is always in
// (start+Overlap, start+MaxSize], which guarantees the next start advances.
func (s *RecursiveSplitter) cut(runes []rune, start int) int {
	hi := start + s.cfg.MaxSize
	lo := start + s.cfg.Overlap + 1

	// Larger boundaries only count when they leave the chunk at least half full.
	preferred := start + s.cfg.MaxSize/2
	if preferred < lo {
		preferred = lo
	}

	for _, isBoundary := range boundaries {
		for i := hi; i >= preferred; i-- {
			if isBoundary(runes, i) {
				return i
			}
		}
	}

	// Any word boundary beats splitting inside a word.
	wordBoundary := boundaries[len(boundaries)-1]
	for i := preferred - 1; i >= lo; i-- {
		if wordBoundary(runes, i) {
			return i
		}
	}

	return hi
}
