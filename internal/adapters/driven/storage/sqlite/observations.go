package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/quorum-labs/quorum/internal/core/domain"
	"github.com/quorum-labs/quorum/internal/core/ports/driven"
)

// ==================== Observation Store ====================

// observationStore implements driven.ObservationStore.
type observationStore struct {
	store *Store
}

var _ driven.ObservationStore = (*observationStore)(nil)

// UpsertObservation stores the observation, merging on fingerprint
// collision. The existing row keeps its id and created_at; content,
// severity, metadata and updated_at are refreshed.
func (s *observationStore) UpsertObservation(ctx context.Context, obs *domain.Observation) (*domain.Observation, error) {
	if err := obs.Validate(); err != nil {
		return nil, err
	}

	metadataJSON, err := json.Marshal(obs.Metadata)
	if err != nil {
		return nil, fmt.Errorf("marshalling metadata: %w", err)
	}

	now := time.Now().UTC()
	if obs.CreatedAt.IsZero() {
		obs.CreatedAt = now
	}
	obs.UpdatedAt = now

	_, err = s.store.db.ExecContext(ctx, `
		INSERT INTO observations (id, category, severity, status, content, source_agent, ref_id, ref_type, fingerprint, metadata, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(fingerprint) DO UPDATE SET
			severity = excluded.severity,
			content = excluded.content,
			ref_id = excluded.ref_id,
			ref_type = excluded.ref_type,
			metadata = excluded.metadata,
			updated_at = excluded.updated_at
	`, obs.ID, string(obs.Category), string(obs.Severity), string(obs.Status),
		obs.Content, obs.SourceAgent, nullString(obs.RefID), nullString(obs.RefType),
		obs.Fingerprint, string(metadataJSON), obs.CreatedAt, obs.UpdatedAt)

	if err != nil {
		return nil, fmt.Errorf("upserting observation: %w", err)
	}

	// Re-read by fingerprint so the caller sees the surviving row's
	// identity, not the identity of the rejected duplicate.
	row := s.store.db.QueryRowContext(ctx, `
		SELECT id, category, severity, status, content, source_agent, ref_id, ref_type, fingerprint, metadata, created_at, updated_at
		FROM observations WHERE fingerprint = ?
	`, obs.Fingerprint)

	return scanObservation(row)
}

// GetObservation retrieves an observation by ID.
func (s *observationStore) GetObservation(ctx context.Context, id string) (*domain.Observation, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT id, category, severity, status, content, source_agent, ref_id, ref_type, fingerprint, metadata, created_at, updated_at
		FROM observations WHERE id = ?
	`, id)

	return scanObservation(row)
}

// ListObservations returns observations matching the filter, newest first.
func (s *observationStore) ListObservations(ctx context.Context, filter driven.ObservationFilter) ([]domain.Observation, error) {
	query := `
		SELECT id, category, severity, status, content, source_agent, ref_id, ref_type, fingerprint, metadata, created_at, updated_at
		FROM observations`
	var conds []string
	var args []any

	if filter.Category != "" {
		conds = append(conds, "category = ?")
		args = append(args, string(filter.Category))
	}
	if filter.SourceAgent != "" {
		conds = append(conds, "source_agent = ?")
		args = append(args, filter.SourceAgent)
	}
	if len(filter.Statuses) > 0 {
		conds = append(conds, "status IN ("+placeholders(len(filter.Statuses))+")")
		for _, st := range filter.Statuses {
			args = append(args, string(st))
		}
	}
	if !filter.Since.IsZero() {
		conds = append(conds, "created_at >= ?")
		args = append(args, filter.Since.UTC())
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.store.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying observations: %w", err)
	}
	defer rows.Close()

	var observations []domain.Observation //nolint:prealloc // size unknown from query
	for rows.Next() {
		obs, err := scanObservationRows(rows)
		if err != nil {
			return nil, err
		}
		observations = append(observations, *obs)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating observations: %w", err)
	}

	return observations, nil
}

// SetObservationStatus updates triage status.
func (s *observationStore) SetObservationStatus(ctx context.Context, id string, status domain.ObservationStatus) error {
	if !status.Valid() {
		return domain.ErrInvalidInput
	}
	res, err := s.store.db.ExecContext(ctx,
		"UPDATE observations SET status = ?, updated_at = ? WHERE id = ?",
		string(status), time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("setting observation status: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// DeleteObservation removes an observation.
func (s *observationStore) DeleteObservation(ctx context.Context, id string) error {
	res, err := s.store.db.ExecContext(ctx, "DELETE FROM observations WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting observation: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// scanObservation scans a single observation row.
func scanObservation(row *sql.Row) (*domain.Observation, error) {
	var obs domain.Observation
	var category, severity, status, metadataJSON string
	var refID, refType sql.NullString

	if err := row.Scan(&obs.ID, &category, &severity, &status, &obs.Content,
		&obs.SourceAgent, &refID, &refType, &obs.Fingerprint, &metadataJSON,
		&obs.CreatedAt, &obs.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning observation: %w", err)
	}

	obs.Category = domain.ObservationCategory(category)
	obs.Severity = domain.ObservationSeverity(severity)
	obs.Status = domain.ObservationStatus(status)
	obs.RefID = refID.String
	obs.RefType = refType.String
	if err := json.Unmarshal([]byte(metadataJSON), &obs.Metadata); err != nil {
		return nil, fmt.Errorf("unmarshalling metadata: %w", err)
	}

	return &obs, nil
}

// scanObservationRows scans an observation from *sql.Rows.
func scanObservationRows(rows *sql.Rows) (*domain.Observation, error) {
	var obs domain.Observation
	var category, severity, status, metadataJSON string
	var refID, refType sql.NullString

	if err := rows.Scan(&obs.ID, &category, &severity, &status, &obs.Content,
		&obs.SourceAgent, &refID, &refType, &obs.Fingerprint, &metadataJSON,
		&obs.CreatedAt, &obs.UpdatedAt); err != nil {
		return nil, fmt.Errorf("scanning observation: %w", err)
	}

	obs.Category = domain.ObservationCategory(category)
	obs.Severity = domain.ObservationSeverity(severity)
	obs.Status = domain.ObservationStatus(status)
	obs.RefID = refID.String
	obs.RefType = refType.String
	if err := json.Unmarshal([]byte(metadataJSON), &obs.Metadata); err != nil {
		return nil, fmt.Errorf("unmarshalling metadata: %w", err)
	}

	return &obs, nil
}
