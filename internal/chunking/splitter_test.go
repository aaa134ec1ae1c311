package chunking

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloo-solutions/otter/internal/domain"
)

func reconstruct(chunks []string, overlap int) string {
	var b strings.Builder
	for i, c := range chunks {
		if i == 0 {
			b.WriteString(c)
			continue
		}
		b.WriteString(string([]rune(c)[overlap:]))
	}
	return b.String()
}

func newSplitter(t *testing.T, maxSize, overlap int) *RecursiveSplitter {
	t.Helper()
	s, err := NewRecursiveSplitter(Config{MaxSize: maxSize, Overlap: overlap})
	require.NoError(t, err)
	return s
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"default", DefaultConfig(), false},
		{"zero overlap", Config{MaxSize: 10, Overlap: 0}, false},
		{"zero size", Config{MaxSize: 0, Overlap: 0}, true},
		{"negative overlap", Config{MaxSize: 10, Overlap: -1}, true},
		{"overlap equals size", Config{MaxSize: 10, Overlap: 10}, true},
		{"overlap exceeds size", Config{MaxSize: 10, Overlap: 20}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, domain.ErrCodeConfiguration, domain.ErrorCode(err))
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestSplitShortTextIsSingleChunk(t *testing.T) {
	s := newSplitter(t, 800, 60)

	text := "  A short document.\n\nWith two paragraphs.  "
	chunks := s.Split(text)

	require.Len(t, chunks, 1)
	assert.Equal(t, text, chunks[0])
}

func TestSplitExactlyMaxSizeIsSingleChunk(t *testing.T) {
	s := newSplitter(t, 800, 60)

	text := strings.Repeat("x", 800)
	assert.Equal(t, []string{text}, s.Split(text))
}

func TestSplitEmptyText(t *testing.T) {
	s := newSplitter(t, 800, 60)
	assert.Empty(t, s.Split(""))
}

func TestSplitUnbrokenTextProducesThreeChunks(t *testing.T) {
	s := newSplitter(t, 800, 60)

	text := strings.Repeat("a", 2000)
	chunks := s.Split(text)

	require.Len(t, chunks, 3)
	assert.Len(t, chunks[0], 800)
	assert.Len(t, chunks[1], 800)
	assert.Len(t, chunks[2], 520)
	assert.Equal(t, text, reconstruct(chunks, 60))
}

func TestSplitReconstructsInput(t *testing.T) {
	paragraph := "Retrieval systems split documents into chunks. Each chunk is embedded! " +
		"Does the overlap preserve context? It should.\nA new line follows here.\n\n"
	text := strings.Repeat(paragraph, 40)

	for _, cfg := range []Config{{800, 60}, {200, 20}, {97, 13}, {50, 0}} {
		s := newSplitter(t, cfg.MaxSize, cfg.Overlap)
		chunks := s.Split(text)

		require.Greater(t, len(chunks), 1)
		assert.Equal(t, text, reconstruct(chunks, cfg.Overlap), "config %+v", cfg)
		for i, c := range chunks {
			assert.LessOrEqual(t, utf8.RuneCountInString(c), cfg.MaxSize, "chunk %d", i)
			if i > 0 {
				prev := []rune(chunks[i-1])
				cur := []rune(c)
				assert.Equal(t, string(prev[len(prev)-cfg.Overlap:]), string(cur[:cfg.Overlap]), "chunk %d overlap", i)
			}
		}
	}
}

func TestSplitPrefersParagraphBoundaries(t *testing.T) {
	s := newSplitter(t, 100, 10)

	first := strings.Repeat("word ", 14) + "end.\n\n"
	second := strings.Repeat("more ", 30)
	chunks := s.Split(first + second)

	require.GreaterOrEqual(t, len(chunks), 2)
	assert.Equal(t, first, chunks[0])
}

func TestSplitPrefersWordsOverRawCharacters(t *testing.T) {
	s := newSplitter(t, 20, 0)

	chunks := s.Split("alpha beta gamma delta epsilon zeta")

	for _, c := range chunks[:len(chunks)-1] {
		assert.True(t, strings.HasSuffix(c, " "), "chunk %q should end on a word boundary", c)
	}
}

func TestSplitCountsRunesNotBytes(t *testing.T) {
	s := newSplitter(t, 10, 2)

	text := strings.Repeat("é", 25)
	chunks := s.Split(text)

	for _, c := range chunks {
		assert.LessOrEqual(t, utf8.RuneCountInString(c), 10)
	}
	assert.Equal(t, text, reconstruct(chunks, 2))
}
