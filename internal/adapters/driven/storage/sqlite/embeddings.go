package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/quorum-labs/quorum/internal/core/domain"
	"github.com/quorum-labs/quorum/internal/core/ports/driven"
)

// ==================== Embedding Store ====================

// embeddingStore implements driven.EmbeddingStore. Vectors are stored
// as little-endian float32 blobs keyed by (ref_id, ref_type).
type embeddingStore struct {
	store *Store
}

var _ driven.EmbeddingStore = (*embeddingStore)(nil)

// UpsertEmbedding stores the vector, replacing any existing row with
// the same (ref_id, ref_type).
func (s *embeddingStore) UpsertEmbedding(ctx context.Context, emb *domain.Embedding) error {
	if emb.RefID == "" || emb.RefType == "" || len(emb.Vector) == 0 {
		return domain.ErrInvalidInput
	}
	if emb.Dimensions != len(emb.Vector) {
		return domain.ErrDimensionMismatch
	}

	if emb.CreatedAt.IsZero() {
		emb.CreatedAt = time.Now().UTC()
	}

	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO embeddings (ref_id, ref_type, vector, dimensions, content_hash, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(ref_id, ref_type) DO UPDATE SET
			vector = excluded.vector,
			dimensions = excluded.dimensions,
			content_hash = excluded.content_hash,
			created_at = excluded.created_at
	`, emb.RefID, emb.RefType, float32SliceToBytes(emb.Vector),
		emb.Dimensions, emb.ContentHash, emb.CreatedAt)

	if err != nil {
		return fmt.Errorf("upserting embedding: %w", err)
	}
	return nil
}

// GetEmbedding retrieves the vector for a reference pair.
func (s *embeddingStore) GetEmbedding(ctx context.Context, refID, refType string) (*domain.Embedding, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT ref_id, ref_type, vector, dimensions, content_hash, created_at
		FROM embeddings WHERE ref_id = ? AND ref_type = ?
	`, refID, refType)

	return scanEmbedding(row)
}

// DeleteFamily removes the base embedding and every chunk variant for
// refID. Re-ingestion of a shrunk document never leaves stale chunks.
func (s *embeddingStore) DeleteFamily(ctx context.Context, refID, base string) error {
	_, err := s.store.db.ExecContext(ctx,
		"DELETE FROM embeddings WHERE ref_id = ? AND (ref_type = ? OR ref_type LIKE ?)",
		refID, base, domain.RefFamilyPrefix(base))
	if err != nil {
		return fmt.Errorf("deleting embedding family: %w", err)
	}
	return nil
}

// ListEmbeddings returns embeddings whose ref type matches the family
// filter. Empty base matches everything.
func (s *embeddingStore) ListEmbeddings(ctx context.Context, base string, includeChunks bool) ([]domain.Embedding, error) {
	query := `
		SELECT ref_id, ref_type, vector, dimensions, content_hash, created_at
		FROM embeddings`
	var args []any

	switch {
	case base == "":
		// no filter
	case includeChunks:
		query += " WHERE ref_type = ? OR ref_type LIKE ?"
		args = append(args, base, domain.RefFamilyPrefix(base))
	default:
		query += " WHERE ref_type = ?"
		args = append(args, base)
	}

	rows, err := s.store.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying embeddings: %w", err)
	}
	defer rows.Close()

	var embeddings []domain.Embedding //nolint:prealloc // size unknown from query
	for rows.Next() {
		var emb domain.Embedding
		var blob []byte

		if err := rows.Scan(&emb.RefID, &emb.RefType, &blob,
			&emb.Dimensions, &emb.ContentHash, &emb.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning embedding: %w", err)
		}
		emb.Vector = bytesToFloat32Slice(blob)
		embeddings = append(embeddings, emb)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating embeddings: %w", err)
	}

	return embeddings, nil
}

// scanEmbedding scans a single embedding row.
func scanEmbedding(row *sql.Row) (*domain.Embedding, error) {
	var emb domain.Embedding
	var blob []byte

	if err := row.Scan(&emb.RefID, &emb.RefType, &blob,
		&emb.Dimensions, &emb.ContentHash, &emb.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning embedding: %w", err)
	}

	emb.Vector = bytesToFloat32Slice(blob)
	return &emb, nil
}
