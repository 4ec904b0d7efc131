// Package services wires the core domain logic: ingestion, recall,
// chat orchestration and agent scheduling. Services depend only on
// port interfaces and carry no adapter-specific code.
package services

import (
	"context"
	"fmt"
	"time"

	"github.com/quorum-labs/quorum/internal/chunker"
	"github.com/quorum-labs/quorum/internal/core/domain"
	"github.com/quorum-labs/quorum/internal/core/ports/driven"
	"github.com/quorum-labs/quorum/internal/core/ports/driving"
	"github.com/quorum-labs/quorum/internal/fingerprint"
	"github.com/quorum-labs/quorum/internal/logger"
)

// IngestService runs the document ingestion pipeline: persist, chunk,
// embed, upsert. The embedder is optional; without one documents are
// persisted but flagged as not searchable.
type IngestService struct {
	documents  driven.DocumentStore
	embeddings driven.EmbeddingStore
	embedder   driven.EmbeddingService
	chunker    *chunker.Chunker
	threshold  int
}

var _ driving.IngestService = (*IngestService)(nil)

// IngestOption configures the ingest service.
type IngestOption func(*IngestService)

// WithChunker overrides the default chunker.
func WithChunker(c *chunker.Chunker) IngestOption {
	return func(s *IngestService) {
		if c != nil {
			s.chunker = c
		}
	}
}

// WithChunkThreshold overrides the content length above which
// documents are chunked.
func WithChunkThreshold(n int) IngestOption {
	return func(s *IngestService) {
		if n > 0 {
			s.threshold = n
		}
	}
}

// NewIngestService creates the ingestion pipeline. embedder may be nil.
func NewIngestService(
	documents driven.DocumentStore,
	embeddings driven.EmbeddingStore,
	embedder driven.EmbeddingService,
	opts ...IngestOption,
) *IngestService {
	s := &IngestService{
		documents:  documents,
		embeddings: embeddings,
		embedder:   embedder,
		chunker:    chunker.New(),
		threshold:  chunker.DefaultThreshold,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// IngestDocument persists the document and embeds its content. The
// document is stored regardless of embedding outcome; only a store
// failure returns an error.
func (s *IngestService) IngestDocument(ctx context.Context, doc *domain.Document) (bool, error) {
	if err := doc.Validate(); err != nil {
		return false, err
	}

	logger.Section("Ingestion")
	logger.Debug("ingesting document %s (%d chars)", doc.ID, len(doc.Content))

	embedded := s.EmbedAndStore(ctx, doc.ID, domain.RefDocument, doc.Content)
	doc.Embedded = embedded

	if err := s.documents.SaveDocument(ctx, doc); err != nil {
		return false, fmt.Errorf("saving document: %w", err)
	}

	if !embedded {
		logger.Warn("document %s persisted without embeddings; not yet searchable", doc.ID)
	}
	return embedded, nil
}

// EmbedAndStore (re-)embeds content for a reference. The reference
// family is wiped first so a previous chunking never leaves stale rows.
// All-or-nothing: a provider failure on any chunk persists no vectors.
func (s *IngestService) EmbedAndStore(ctx context.Context, refID, refType, content string) bool {
	if s.embedder == nil {
		logger.Debug("no embedding provider configured; skipping %s/%s", refID, refType)
		return false
	}
	if content == "" {
		return false
	}

	// Snapshot the existing family before wiping it so unchanged
	// pieces can reuse their vectors without another provider call.
	prior := make(map[string]*domain.Embedding)
	if existing, err := s.embeddings.ListEmbeddings(ctx, refType, true); err == nil {
		for i := range existing {
			if existing[i].RefID == refID {
				prior[existing[i].RefType] = &existing[i]
			}
		}
	}

	if err := s.embeddings.DeleteFamily(ctx, refID, refType); err != nil {
		logger.Warn("clearing embedding family for %s: %v", refID, err)
		return false
	}

	texts := []string{content}
	if len(content) > s.threshold {
		texts = append(texts, s.chunker.Split(content)...)
		logger.Debug("content over threshold; chunked into %d pieces", len(texts)-1)
	}

	refTypes := make([]string, len(texts))
	refTypes[0] = refType
	for i := 1; i < len(texts); i++ {
		refTypes[i] = domain.ChunkRefType(refType, i-1)
	}

	// Embed everything before persisting anything, so a mid-batch
	// provider failure cannot leave a partially embedded family.
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		hash := fingerprint.Content(text)
		if old, ok := prior[refTypes[i]]; ok && old.ContentHash == hash {
			vectors[i] = old.Vector
			continue
		}
		vec, err := s.embedder.Embed(ctx, text)
		if err != nil {
			logger.Warn("embedding %s/%s failed: %v", refID, refTypes[i], err)
			return false
		}
		vectors[i] = vec
	}

	now := time.Now().UTC()
	for i, vec := range vectors {
		emb := &domain.Embedding{
			RefID:       refID,
			RefType:     refTypes[i],
			Vector:      vec,
			Dimensions:  len(vec),
			ContentHash: fingerprint.Content(texts[i]),
			CreatedAt:   now,
		}
		if err := s.embeddings.UpsertEmbedding(ctx, emb); err != nil {
			logger.Warn("storing embedding %s/%s: %v", refID, refTypes[i], err)
			return false
		}
	}

	logger.Info("embedded %s as %d vector(s)", refID, len(vectors))
	return true
}

// ReembedDocument re-runs embedding for a stored document. The only
// path that refreshes vectors for changed content.
func (s *IngestService) ReembedDocument(ctx context.Context, documentID string) (bool, error) {
	doc, err := s.documents.GetDocument(ctx, documentID)
	if err != nil {
		return false, err
	}

	embedded := s.EmbedAndStore(ctx, doc.ID, domain.RefDocument, doc.Content)
	if err := s.documents.MarkEmbedded(ctx, doc.ID, embedded); err != nil {
		return embedded, err
	}
	return embedded, nil
}
