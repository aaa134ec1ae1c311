package pagination

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCursorRoundTrip(t *testing.T) {
	ts := time.Date(2026, 3, 4, 5, 6, 7, 890123456, time.FixedZone("CET", 3600))

	c, err := DecodeCursor(EncodeCursor("job-42", ts))
	require.NoError(t, err)
	require.NotNil(t, c)

	assert.Equal(t, "job-42", c.LastID)
	assert.True(t, ts.Equal(c.Timestamp))
	assert.Equal(t, time.UTC, c.Timestamp.Location())
}

func TestEncodeCursorEmptyID(t *testing.T) {
	assert.Empty(t, EncodeCursor("", time.Now()))
}

func TestDecodeCursorEmpty(t *testing.T) {
	c, err := DecodeCursor("")
	require.NoError(t, err)
	assert.Nil(t, c)
}

func TestDecodeCursorInvalid(t *testing.T) {
	for _, raw := range []string{
		"not base64!",
		base64.RawURLEncoding.EncodeToString([]byte("no-separator")),
		base64.RawURLEncoding.EncodeToString([]byte("yesterday|id")),
	} {
		_, err := DecodeCursor(raw)
		assert.ErrorIs(t, err, ErrInvalidCursor, raw)
	}
}

func TestCursorIsURLSafe(t *testing.T) {
	for i := 0; i < 50; i++ {
		c := EncodeCursor("id-with-?&=", time.Unix(int64(i)*7919, int64(i)*104729).UTC())
		assert.NotContains(t, c, "+")
		assert.NotContains(t, c, "/")
		assert.NotContains(t, c, "=")
	}
}
