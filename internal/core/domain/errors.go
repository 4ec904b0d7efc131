package domain

import "errors"

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrImmutable indicates an attempt to mutate an append-only record.
	ErrImmutable = errors.New("record is immutable")

	// ErrDimensionMismatch indicates a query vector's dimensionality does not
	// match the stored embedding space. This is a configuration error (e.g.
	// the embedding provider was switched) and is never recovered silently.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrEmbeddingUnavailable indicates the embedding provider is not configured.
	// Documents still persist but are not searchable.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

	// ErrLLMUnavailable indicates the LLM service is not configured.
	// Agent runs requiring reasoning are disabled.
	ErrLLMUnavailable = errors.New("LLM service unavailable")

	// ErrReasonerUnavailable indicates the external reasoning process binary
	// is missing or not executable. Surfaced at startup, never mid-stream.
	ErrReasonerUnavailable = errors.New("reasoner process unavailable")

	// ErrSessionBusy indicates a reasoning process is already active for the
	// session. Callers key sessions by agent or thread identity.
	ErrSessionBusy = errors.New("session already has an active process")
)
