package services

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quorum-labs/quorum/internal/chunker"
	"github.com/quorum-labs/quorum/internal/core/domain"
)

func TestIngestShortDocumentSingleVector(t *testing.T) {
	docs := newFakeDocumentStore()
	embs := newFakeEmbeddingStore()
	embedder := newFakeEmbedder(3)
	svc := NewIngestService(docs, embs, embedder)

	ctx := context.Background()
	doc := &domain.Document{ID: "doc-1", Type: domain.DocTypeNote, Content: "short note"}

	embedded, err := svc.IngestDocument(ctx, doc)
	require.NoError(t, err)
	assert.True(t, embedded)
	assert.True(t, doc.Embedded)

	// Below the chunk threshold only the whole-document vector exists.
	rows, err := embs.ListEmbeddings(ctx, domain.RefDocument, true)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, domain.RefDocument, rows[0].RefType)
	assert.Equal(t, 1, embedder.callCount())
}

func TestIngestLongDocumentChunks(t *testing.T) {
	docs := newFakeDocumentStore()
	embs := newFakeEmbeddingStore()
	embedder := newFakeEmbedder(3)
	svc := NewIngestService(docs, embs, embedder)

	ctx := context.Background()
	content := strings.Repeat("x", 3000)
	doc := &domain.Document{ID: "doc-1", Type: domain.DocTypeFile, Content: content}

	embedded, err := svc.IngestDocument(ctx, doc)
	require.NoError(t, err)
	assert.True(t, embedded)

	// 3000 chars at 500/50 yields 7 chunks plus the whole-document vector.
	rows, err := embs.ListEmbeddings(ctx, domain.RefDocument, true)
	require.NoError(t, err)
	assert.Len(t, rows, 8)

	whole, err := embs.GetEmbedding(ctx, "doc-1", domain.RefDocument)
	require.NoError(t, err)
	assert.Equal(t, 3, whole.Dimensions)

	_, err = embs.GetEmbedding(ctx, "doc-1", domain.ChunkRefType(domain.RefDocument, 6))
	assert.NoError(t, err)
}

func TestIngestEmbedderFailureStillPersists(t *testing.T) {
	docs := newFakeDocumentStore()
	embs := newFakeEmbeddingStore()
	embedder := newFakeEmbedder(3)
	embedder.failAfter = 2 // fail on the third chunk
	svc := NewIngestService(docs, embs, embedder)

	ctx := context.Background()
	doc := &domain.Document{ID: "doc-1", Type: domain.DocTypeFile, Content: strings.Repeat("y", 3000)}

	embedded, err := svc.IngestDocument(ctx, doc)
	require.NoError(t, err)
	assert.False(t, embedded)

	// Document persisted but flagged as not searchable.
	stored, err := docs.GetDocument(ctx, "doc-1")
	require.NoError(t, err)
	assert.False(t, stored.Embedded)

	// All-or-nothing: no partial vectors.
	rows, err := embs.ListEmbeddings(ctx, domain.RefDocument, true)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestIngestWithoutEmbedder(t *testing.T) {
	docs := newFakeDocumentStore()
	embs := newFakeEmbeddingStore()
	svc := NewIngestService(docs, embs, nil)

	ctx := context.Background()
	doc := &domain.Document{ID: "doc-1", Type: domain.DocTypeNote, Content: "no provider"}

	embedded, err := svc.IngestDocument(ctx, doc)
	require.NoError(t, err)
	assert.False(t, embedded)

	stored, err := docs.GetDocument(ctx, "doc-1")
	require.NoError(t, err)
	assert.False(t, stored.Embedded)
}

func TestIngestInvalidDocument(t *testing.T) {
	svc := NewIngestService(newFakeDocumentStore(), newFakeEmbeddingStore(), newFakeEmbedder(3))

	_, err := svc.IngestDocument(context.Background(), &domain.Document{ID: "doc-1", Type: domain.DocTypeNote})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestReembedClearsStaleChunks(t *testing.T) {
	docs := newFakeDocumentStore()
	embs := newFakeEmbeddingStore()
	embedder := newFakeEmbedder(3)
	svc := NewIngestService(docs, embs, embedder)

	ctx := context.Background()
	doc := &domain.Document{ID: "doc-1", Type: domain.DocTypeFile, Content: strings.Repeat("z", 3000)}
	_, err := svc.IngestDocument(ctx, doc)
	require.NoError(t, err)

	before, err := embs.ListEmbeddings(ctx, domain.RefDocument, true)
	require.NoError(t, err)
	assert.Len(t, before, 8)

	// Shrink below the threshold and re-embed.
	doc.Content = "now short"
	require.NoError(t, docs.SaveDocument(ctx, doc))

	embedded, err := svc.ReembedDocument(ctx, "doc-1")
	require.NoError(t, err)
	assert.True(t, embedded)

	after, err := embs.ListEmbeddings(ctx, domain.RefDocument, true)
	require.NoError(t, err)
	require.Len(t, after, 1)
	assert.Equal(t, domain.RefDocument, after[0].RefType)
}

func TestEmbedAndStoreReusesUnchangedVectors(t *testing.T) {
	embs := newFakeEmbeddingStore()
	embedder := newFakeEmbedder(3)
	svc := NewIngestService(newFakeDocumentStore(), embs, embedder)

	ctx := context.Background()
	ok := svc.EmbedAndStore(ctx, "ev-1", domain.RefEvent, "same content")
	require.True(t, ok)
	assert.Equal(t, 1, embedder.callCount())

	// Identical content short-circuits on the stored content hash.
	ok = svc.EmbedAndStore(ctx, "ev-1", domain.RefEvent, "same content")
	require.True(t, ok)
	assert.Equal(t, 1, embedder.callCount())

	// Changed content calls the provider again.
	ok = svc.EmbedAndStore(ctx, "ev-1", domain.RefEvent, "different content")
	require.True(t, ok)
	assert.Equal(t, 2, embedder.callCount())
}

func TestIngestCustomChunker(t *testing.T) {
	embs := newFakeEmbeddingStore()
	embedder := newFakeEmbedder(3)
	svc := NewIngestService(newFakeDocumentStore(), embs, embedder,
		WithChunker(chunker.New(chunker.WithSize(100), chunker.WithOverlap(0))),
		WithChunkThreshold(100))

	ok := svc.EmbedAndStore(context.Background(), "doc-1", domain.RefDocument, strings.Repeat("a", 200))
	require.True(t, ok)

	rows, err := embs.ListEmbeddings(context.Background(), domain.RefDocument, true)
	require.NoError(t, err)
	// Whole document plus two 100-char chunks.
	assert.Len(t, rows, 3)
}
