// Package embedding provides decorators shared by the embedding
// provider adapters.
package embedding

import (
	"context"

	"golang.org/x/time/rate"

	"github.com/quorum-labs/quorum/internal/core/ports/driven"
)

// DefaultRate throttles embedding calls to roughly five per second.
// Local Ollama tolerates more, but bulk re-ingestion should not starve
// interactive chat of the model.
const DefaultRate = 5.0

// DefaultBurst allows short bursts above the sustained rate, sized to
// one chunked document.
const DefaultBurst = 8

var _ driven.EmbeddingService = (*RateLimited)(nil)

// RateLimited wraps an embedding service with a token bucket so bulk
// ingestion paces its provider calls.
type RateLimited struct {
	inner  driven.EmbeddingService
	bucket *rate.Limiter
}

// NewRateLimited wraps inner with the given sustained rate and burst.
// Non-positive values fall back to the defaults.
func NewRateLimited(inner driven.EmbeddingService, perSecond float64, burst int) *RateLimited {
	if perSecond <= 0 {
		perSecond = DefaultRate
	}
	if burst <= 0 {
		burst = DefaultBurst
	}
	return &RateLimited{
		inner:  inner,
		bucket: rate.NewLimiter(rate.Limit(perSecond), burst),
	}
}

// Embed waits for a token, then delegates.
func (r *RateLimited) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := r.bucket.Wait(ctx); err != nil {
		return nil, err
	}
	return r.inner.Embed(ctx, text)
}

// EmbedBatch takes one token per text, then delegates the batch.
// Tokens are taken one at a time; a batch larger than the burst size
// simply paces out instead of failing.
func (r *RateLimited) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	for range texts {
		if err := r.bucket.Wait(ctx); err != nil {
			return nil, err
		}
	}
	return r.inner.EmbedBatch(ctx, texts)
}

// Dimensions delegates to the wrapped service.
func (r *RateLimited) Dimensions() int { return r.inner.Dimensions() }

// ModelName delegates to the wrapped service.
func (r *RateLimited) ModelName() string { return r.inner.ModelName() }

// Ping delegates without consuming a token.
func (r *RateLimited) Ping(ctx context.Context) error { return r.inner.Ping(ctx) }

// Close delegates to the wrapped service.
func (r *RateLimited) Close() error { return r.inner.Close() }
