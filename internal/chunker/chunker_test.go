package chunker

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplit_ShortTextSingleSpan(t *testing.T) {
	c := New()

	tests := []struct {
		name string
		text string
	}{
		{"empty", ""},
		{"one char", "a"},
		{"exactly chunk size", strings.Repeat("x", DefaultChunkSize)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spans := c.Split(tt.text)
			if tt.text == "" {
				assert.Empty(t, spans)
				return
			}
			require.Len(t, spans, 1)
			assert.Equal(t, tt.text, spans[0])
		})
	}
}

func TestSplit_Deterministic(t *testing.T) {
	c := New(WithSize(100), WithOverlap(20))
	text := strings.Repeat("the quick brown fox ", 50) // 1000 chars

	first := c.Split(text)
	second := c.Split(text)
	assert.Equal(t, first, second)
}

func TestSplit_ChunkCountAndOverlap(t *testing.T) {
	c := New(WithSize(500), WithOverlap(50))
	text := strings.Repeat("a", 3000)

	spans := c.Split(text)
	// ceil((3000-50)/450) = 7
	require.Len(t, spans, 7)

	for i, span := range spans[:len(spans)-1] {
		assert.Len(t, span, 500, "span %d", i)
	}
	// Final span may be shorter: 3000 - 6*450 = 300.
	assert.Len(t, spans[6], 300)

	// Consecutive spans share exactly the overlap region.
	for i := 1; i < len(spans); i++ {
		prev := spans[i-1]
		assert.Equal(t, prev[len(prev)-50:], spans[i][:50], "overlap between %d and %d", i-1, i)
	}
}

func TestSplit_CoverageReconstructsText(t *testing.T) {
	c := New(WithSize(64), WithOverlap(16))
	text := "Lorem ipsum dolor sit amet, consectetur adipiscing elit, sed do eiusmod " +
		"tempor incididunt ut labore et dolore magna aliqua. Ut enim ad minim veniam."

	spans := c.Split(text)
	require.NotEmpty(t, spans)

	// Concatenating each span's distinct (non-overlap) region rebuilds
	// the original text with no gaps.
	var b strings.Builder
	b.WriteString(spans[0])
	for _, span := range spans[1:] {
		b.WriteString(span[c.Overlap():])
	}
	assert.Equal(t, text, b.String())
}

func TestSplit_NoTrailingDuplicateSpan(t *testing.T) {
	// When a span ends exactly at the text boundary, no extra span
	// containing only already-seen content is emitted.
	c := New(WithSize(500), WithOverlap(50))
	text := strings.Repeat("b", 950) // second span ends exactly at 950

	spans := c.Split(text)
	require.Len(t, spans, 2)
	assert.Equal(t, text[450:], spans[1])
}

func TestNew_ClampsOverlap(t *testing.T) {
	c := New(WithSize(100), WithOverlap(100))
	assert.Equal(t, 25, c.Overlap(), "overlap >= size falls back to size/4")

	c = New(WithSize(100), WithOverlap(150))
	assert.Equal(t, 25, c.Overlap())
}
