package driving

import (
	"context"

	"github.com/quorum-labs/quorum/internal/core/domain"
)

// IngestService is the document ingestion pipeline: chunk, embed,
// deduplicate, persist.
type IngestService interface {
	// IngestDocument persists the document and embeds its content.
	// The document is stored regardless of embedding outcome; the
	// returned flag reports whether it is searchable. Only a store
	// failure returns an error.
	IngestDocument(ctx context.Context, doc *domain.Document) (embedded bool, err error)

	// EmbedAndStore (re-)embeds arbitrary content for a reference.
	// Any existing embeddings in the reference family are deleted
	// first so a differently-chunked previous version never leaves
	// stale rows. Returns false when the embedding provider failed
	// for any chunk; in that case nothing is partially persisted.
	EmbedAndStore(ctx context.Context, refID, refType, content string) bool

	// ReembedDocument explicitly re-runs embedding for a stored
	// document, the only way to refresh vectors for changed content.
	ReembedDocument(ctx context.Context, documentID string) (bool, error)
}
