// Package fingerprint computes stable content hashes used as
// idempotency and merge keys: content-level dedup for embeddings and
// semantic dedup for observations.
package fingerprint

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
)

// Sum returns a stable hex-encoded SHA-256 digest of the given parts.
// Parts are length-prefixed before hashing so ("ab","c") and ("a","bc")
// produce different digests.
func Sum(parts ...string) string {
	h := sha256.New()
	var lenBuf [8]byte
	for _, p := range parts {
		binary.BigEndian.PutUint64(lenBuf[:], uint64(len(p)))
		h.Write(lenBuf[:])
		h.Write([]byte(p))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Content returns the fingerprint for a piece of embedded text.
// Used to recognise unchanged content without recomputing the embedding.
func Content(text string) string {
	return Sum(text)
}

// Observation returns the semantic dedup key for an agent judgment:
// a hash of (category, source agent, content).
func Observation(category, sourceAgent, content string) string {
	return Sum(category, sourceAgent, content)
}
