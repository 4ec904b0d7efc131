package domain

import (
	"fmt"
	"strings"
	"time"
)

// Base reference types for embeddings. Chunk variants are derived with
// ChunkRefType ("document_chunk_0", "event_chunk_3", ...).
const (
	RefDocument = "document"
	RefEvent    = "event"
)

// ChunkRefType returns the reference type for chunk i of the given base
// type, e.g. ChunkRefType(RefDocument, 2) == "document_chunk_2".
func ChunkRefType(base string, i int) string {
	return fmt.Sprintf("%s_chunk_%d", base, i)
}

// RefFamilyPrefix returns the SQL LIKE pattern matching all chunk
// variants of a base reference type.
func RefFamilyPrefix(base string) string {
	return base + "_chunk_%"
}

// InRefFamily reports whether refType belongs to the given base family:
// the base itself or any of its chunk variants. Re-ingestion deletes a
// whole family so stale chunks from a previous chunking never linger.
func InRefFamily(refType, base string) bool {
	return refType == base || strings.HasPrefix(refType, base+"_chunk_")
}

// Embedding is a fixed-dimension vector bound to exactly one
// (ref_id, ref_type) pair. At most one embedding exists per pair;
// writes are upsert-on-conflict, never duplicates. The content hash
// lets re-ingestion of identical content short-circuit without calling
// the embedding provider again.
type Embedding struct {
	// RefID is the entity the vector represents.
	RefID string

	// RefType is "document", "event", or a chunk variant.
	RefType string

	// Vector is the embedding itself.
	Vector []float32

	// Dimensions is len(Vector), stored so dimension mismatches are
	// detectable without decoding the blob.
	Dimensions int

	// ContentHash fingerprints the exact text that was embedded.
	ContentHash string

	// CreatedAt is when the vector was stored.
	CreatedAt time.Time
}

// Validate checks the embedding satisfies its invariants.
func (e *Embedding) Validate() error {
	if e.RefID == "" || e.RefType == "" || len(e.Vector) == 0 {
		return ErrInvalidInput
	}
	if e.Dimensions != len(e.Vector) {
		return ErrInvalidInput
	}
	return nil
}
