// Package chunker provides fixed-size overlapping text chunking.
// Chunk boundaries are fully deterministic for a given text and
// parameters: the document-to-chunk mapping is reconstructed from the
// chunk index, not stored as spans.
package chunker

// DefaultChunkSize is the default number of characters per chunk.
const DefaultChunkSize = 500

// DefaultOverlap is the default number of overlapping characters.
const DefaultOverlap = 50

// DefaultThreshold is the content length above which documents are
// chunked at ingestion. Shorter content embeds as a single vector.
const DefaultThreshold = 2000

// Chunker splits text into consecutive overlapping spans.
type Chunker struct {
	size    int
	overlap int
}

// Option configures the chunker.
type Option func(*Chunker)

// WithSize sets the chunk size in characters.
func WithSize(size int) Option {
	return func(c *Chunker) {
		if size > 0 {
			c.size = size
		}
	}
}

// WithOverlap sets the overlap between chunks in characters.
func WithOverlap(overlap int) Option {
	return func(c *Chunker) {
		if overlap >= 0 {
			c.overlap = overlap
		}
	}
}

// New creates a chunker with the given options.
func New(opts ...Option) *Chunker {
	c := &Chunker{
		size:    DefaultChunkSize,
		overlap: DefaultOverlap,
	}

	for _, opt := range opts {
		opt(c)
	}

	// Overlap must leave the window moving forward.
	if c.overlap >= c.size {
		c.overlap = c.size / 4
	}

	return c
}

// Size returns the configured chunk size.
func (c *Chunker) Size() int { return c.size }

// Overlap returns the configured overlap.
func (c *Chunker) Overlap() int { return c.overlap }

// Split divides text into ordered spans of at most Size characters,
// advancing the start offset by Size-Overlap each step. Text no longer
// than Size is returned unchanged as a single span. The final span may
// be shorter than Size.
func (c *Chunker) Split(text string) []string {
	if text == "" {
		return nil
	}
	if len(text) <= c.size {
		return []string{text}
	}

	step := c.size - c.overlap
	estimated := (len(text) / step) + 1
	spans := make([]string, 0, estimated)

	for start := 0; start < len(text); start += step {
		end := start + c.size
		if end > len(text) {
			end = len(text)
		}
		spans = append(spans, text[start:end])
		if end == len(text) {
			break
		}
	}

	return spans
}
