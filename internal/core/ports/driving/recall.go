package driving

import (
	"context"

	"github.com/quorum-labs/quorum/internal/core/domain"
)

// RecallService is the embedding-similarity query surface over the
// memory store.
type RecallService interface {
	// Search ranks stored embeddings against the query vector,
	// descending by similarity. Fails with domain.ErrDimensionMismatch
	// when the query dimensionality differs from the stored space.
	Search(ctx context.Context, query []float32, filter domain.SearchFilter, k int) ([]domain.SearchHit, error)

	// SearchText embeds the query text and searches with the result.
	SearchText(ctx context.Context, text string, filter domain.SearchFilter, k int) ([]domain.SearchHit, error)
}
