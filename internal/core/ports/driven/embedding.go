package driven

import "context"

// EmbeddingService generates vector embeddings from text.
// This is an optional service - when nil, documents persist without
// vectors and are flagged as not yet searchable.
//
// Implementations may include:
//   - Ollama (nomic-embed-text, all-minilm)
//   - Hosted APIs behind the same contract
type EmbeddingService interface {
	// Embed generates a vector embedding for the given text.
	// A failure must be returned as an error, never as a zero vector,
	// so the ingestion pipeline can abort instead of persisting a
	// partially embedded document.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts efficiently.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the embedding vector size (e.g., 384, 768).
	// Fixed at ingestion time; queries with a different dimensionality
	// fail with domain.ErrDimensionMismatch.
	Dimensions() int

	// ModelName returns the name of the embedding model being used.
	ModelName() string

	// Ping validates the service is reachable with a lightweight request.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close() error
}
