package services

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/quorum-labs/quorum/internal/core/domain"
	"github.com/quorum-labs/quorum/internal/core/ports/driven"
	"github.com/quorum-labs/quorum/internal/core/ports/driving"
	"github.com/quorum-labs/quorum/internal/logger"
)

// RecallService ranks stored embeddings against a query vector by
// cosine similarity. The scan is brute force over the filtered set;
// at personal-memory scale that beats maintaining an index.
type RecallService struct {
	embeddings driven.EmbeddingStore
	embedder   driven.EmbeddingService
}

var _ driving.RecallService = (*RecallService)(nil)

// NewRecallService creates the similarity search service. embedder may
// be nil, in which case SearchText is unavailable.
func NewRecallService(embeddings driven.EmbeddingStore, embedder driven.EmbeddingService) *RecallService {
	return &RecallService{
		embeddings: embeddings,
		embedder:   embedder,
	}
}

// Search ranks stored embeddings against the query vector, descending
// by similarity. Any stored vector of a different dimensionality fails
// the whole query with domain.ErrDimensionMismatch; silently skipping
// would hide a corrupted or mixed-model store.
func (s *RecallService) Search(ctx context.Context, query []float32, filter domain.SearchFilter, k int) ([]domain.SearchHit, error) {
	if len(query) == 0 {
		return nil, domain.ErrInvalidInput
	}

	base := filter.RefTypeBase
	includeChunks := filter.IncludeChunks
	if base == "" {
		includeChunks = true
	}

	candidates, err := s.embeddings.ListEmbeddings(ctx, base, includeChunks)
	if err != nil {
		return nil, fmt.Errorf("listing embeddings: %w", err)
	}

	hits := make([]domain.SearchHit, 0, len(candidates))
	for i := range candidates {
		emb := &candidates[i]
		if len(emb.Vector) != len(query) {
			return nil, fmt.Errorf("stored vector %s/%s has %d dimensions, query has %d: %w",
				emb.RefID, emb.RefType, len(emb.Vector), len(query), domain.ErrDimensionMismatch)
		}
		score := cosineSimilarity(query, emb.Vector)
		if filter.MinScore > 0 && score < filter.MinScore {
			continue
		}
		hits = append(hits, domain.SearchHit{
			RefID:   emb.RefID,
			RefType: emb.RefType,
			Score:   score,
		})
	}

	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Score > hits[j].Score
	})

	if k > 0 && len(hits) > k {
		hits = hits[:k]
	}

	logger.Debug("search returned %d hit(s) from %d candidate(s)", len(hits), len(candidates))
	return hits, nil
}

// SearchText embeds the query text and searches with the result.
func (s *RecallService) SearchText(ctx context.Context, text string, filter domain.SearchFilter, k int) ([]domain.SearchHit, error) {
	if s.embedder == nil {
		return nil, domain.ErrEmbeddingUnavailable
	}
	if text == "" {
		return nil, domain.ErrInvalidInput
	}

	query, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	return s.Search(ctx, query, filter, k)
}

// cosineSimilarity computes the cosine of the angle between two
// equal-length vectors. Returns 0 for a zero-magnitude vector.
func cosineSimilarity(a, b []float32) float64 {
	var dot, magA, magB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		magA += float64(a[i]) * float64(a[i])
		magB += float64(b[i]) * float64(b[i])
	}
	if magA == 0 || magB == 0 {
		return 0
	}
	return dot / (math.Sqrt(magA) * math.Sqrt(magB))
}
