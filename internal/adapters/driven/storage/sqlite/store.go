// Package sqlite implements the memory store on SQLite. One database
// file holds documents, events, tasks, observations, embeddings and
// the agent run ledger; concurrent writers rely on the store's
// uniqueness keys (observation fingerprint, embedding ref pair), not
// on in-process locking.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/quorum-labs/quorum/internal/adapters/driven/storage/sqlite/migrations"
	"github.com/quorum-labs/quorum/internal/core/domain"
	"github.com/quorum-labs/quorum/internal/core/ports/driven"
)

// Store is a unified SQLite-based storage that provides access to
// all memory store interfaces through wrapper types.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore creates a new SQLite store at the specified data directory.
// If dataDir is empty, defaults to ~/.quorum/data/memory.db.
func NewStore(dataDir string) (*Store, error) {
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".quorum", "data")
	}

	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "memory.db")

	// WAL mode for concurrent agent writers.
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &Store{
		db:   db,
		path: dbPath,
	}

	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// DocumentStore returns a DocumentStore interface backed by this store.
func (s *Store) DocumentStore() driven.DocumentStore {
	return &documentStore{store: s}
}

// EventStore returns an EventStore interface backed by this store.
func (s *Store) EventStore() driven.EventStore {
	return &eventStore{store: s}
}

// TaskStore returns a TaskStore interface backed by this store.
func (s *Store) TaskStore() driven.TaskStore {
	return &taskStore{store: s}
}

// ObservationStore returns an ObservationStore interface backed by this store.
func (s *Store) ObservationStore() driven.ObservationStore {
	return &observationStore{store: s}
}

// EmbeddingStore returns an EmbeddingStore interface backed by this store.
func (s *Store) EmbeddingStore() driven.EmbeddingStore {
	return &embeddingStore{store: s}
}

// ScheduleStore returns a ScheduleStore interface backed by this store.
func (s *Store) ScheduleStore() driven.ScheduleStore {
	return &scheduleStore{store: s}
}

// migrate runs all pending migrations.
func (s *Store) migrate(fsys embed.FS) error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	var currentVersion int
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	var upFiles []string
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasSuffix(name, ".up.sql") {
			upFiles = append(upFiles, name)
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		// Extract version number (e.g., "001_initial.up.sql" -> 1)
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue
		}

		if version <= currentVersion {
			continue
		}

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}

		if _, err := s.db.Exec(string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}

		if _, err := s.db.Exec(
			"INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			return fmt.Errorf("recording migration %s: %w", name, err)
		}
	}

	return nil
}

// ==================== Document Store ====================

// documentStore implements driven.DocumentStore.
type documentStore struct {
	store *Store
}

var _ driven.DocumentStore = (*documentStore)(nil)

// SaveDocument stores or updates a document.
func (s *documentStore) SaveDocument(ctx context.Context, doc *domain.Document) error {
	if err := doc.Validate(); err != nil {
		return err
	}

	tagsJSON, err := json.Marshal(doc.Tags)
	if err != nil {
		return fmt.Errorf("marshalling tags: %w", err)
	}
	metadataJSON, err := json.Marshal(doc.Metadata)
	if err != nil {
		return fmt.Errorf("marshalling metadata: %w", err)
	}

	now := time.Now().UTC()
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	doc.UpdatedAt = now

	_, err = s.store.db.ExecContext(ctx, `
		INSERT INTO documents (id, doc_type, title, content, tags, metadata, embedded, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			doc_type = excluded.doc_type,
			title = excluded.title,
			content = excluded.content,
			tags = excluded.tags,
			metadata = excluded.metadata,
			embedded = excluded.embedded,
			updated_at = excluded.updated_at
	`, doc.ID, string(doc.Type), doc.Title, doc.Content,
		string(tagsJSON), string(metadataJSON), boolToInt(doc.Embedded),
		doc.CreatedAt, doc.UpdatedAt)

	if err != nil {
		return fmt.Errorf("saving document: %w", err)
	}
	return nil
}

// GetDocument retrieves a document by ID.
func (s *documentStore) GetDocument(ctx context.Context, id string) (*domain.Document, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT id, doc_type, title, content, tags, metadata, embedded, created_at, updated_at
		FROM documents WHERE id = ?
	`, id)

	return scanDocument(row)
}

// ListDocuments returns documents matching the filter, newest first.
func (s *documentStore) ListDocuments(ctx context.Context, filter driven.DocumentFilter) ([]domain.Document, error) {
	query := `
		SELECT id, doc_type, title, content, tags, metadata, embedded, created_at, updated_at
		FROM documents`
	var conds []string
	var args []any

	if filter.Type != "" {
		conds = append(conds, "doc_type = ?")
		args = append(args, string(filter.Type))
	}
	if filter.Tag != "" {
		// Tags are stored as a JSON array of strings.
		conds = append(conds, "EXISTS (SELECT 1 FROM json_each(documents.tags) WHERE json_each.value = ?)")
		args = append(args, filter.Tag)
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
		return nil, fmt.Errorf("querying documents: %w", err)
	}
	defer rows.Close()

	var docs []domain.Document //nolint:prealloc // size unknown from query
	for rows.Next() {
		doc, err := scanDocumentRows(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, *doc)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating documents: %w", err)
	}

	return docs, nil
}

// MarkEmbedded flags whether the document is searchable.
func (s *documentStore) MarkEmbedded(ctx context.Context, id string, embedded bool) error {
	res, err := s.store.db.ExecContext(ctx,
		"UPDATE documents SET embedded = ? WHERE id = ?", boolToInt(embedded), id)
	if err != nil {
		return fmt.Errorf("marking document embedded: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// DeleteDocument removes a document and its embedding family.
func (s *documentStore) DeleteDocument(ctx context.Context, id string) error {
	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, "DELETE FROM documents WHERE id = ?", id); err != nil {
		return fmt.Errorf("deleting document: %w", err)
	}
	// Cascade to the document's embedding family.
	if _, err := tx.ExecContext(ctx,
		"DELETE FROM embeddings WHERE ref_id = ? AND (ref_type = ? OR ref_type LIKE ?)",
		id, domain.RefDocument, domain.RefFamilyPrefix(domain.RefDocument)); err != nil {
		return fmt.Errorf("deleting document embeddings: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// ==================== Event Store ====================

// eventStore implements driven.EventStore.
type eventStore struct {
	store *Store
}

var _ driven.EventStore = (*eventStore)(nil)

// AppendEvent stores a new event. Events are append-only.
func (s *eventStore) AppendEvent(ctx context.Context, ev *domain.Event) error {
	if err := ev.Validate(); err != nil {
		return err
	}

	metadataJSON, err := json.Marshal(ev.Metadata)
	if err != nil {
		return fmt.Errorf("marshalling metadata: %w", err)
	}
	refIDsJSON, err := json.Marshal(ev.RefIDs)
	if err != nil {
		return fmt.Errorf("marshalling ref ids: %w", err)
	}

	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now().UTC()
	}

	var exists int
	if err := s.store.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM events WHERE id = ?", ev.ID).Scan(&exists); err != nil {
		return fmt.Errorf("checking event existence: %w", err)
	}
	if exists > 0 {
		return domain.ErrImmutable
	}

	_, err = s.store.db.ExecContext(ctx, `
		INSERT INTO events (id, event_type, actor, title, body, metadata, ref_ids, thread_id, thread_title, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, ev.ID, ev.Type, ev.Actor, ev.Title, ev.Body,
		string(metadataJSON), string(refIDsJSON),
		nullString(ev.ThreadID), nullString(ev.ThreadTitle), ev.CreatedAt)

	if err != nil {
		return fmt.Errorf("appending event: %w", err)
	}
	return nil
}

// GetEvent retrieves an event by ID.
func (s *eventStore) GetEvent(ctx context.Context, id string) (*domain.Event, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT id, event_type, actor, title, body, metadata, ref_ids, thread_id, thread_title, created_at
		FROM events WHERE id = ?
	`, id)

	return scanEvent(row)
}

// ListEvents returns events matching the filter, newest first.
func (s *eventStore) ListEvents(ctx context.Context, filter driven.EventFilter) ([]domain.Event, error) {
	query := `
		SELECT id, event_type, actor, title, body, metadata, ref_ids, thread_id, thread_title, created_at
		FROM events`
	var conds []string
	var args []any

	if len(filter.Types) > 0 {
		conds = append(conds, "event_type IN ("+placeholders(len(filter.Types))+")")
		for _, t := range filter.Types {
			args = append(args, t)
		}
	}
	if len(filter.Actors) > 0 {
		conds = append(conds, "actor IN ("+placeholders(len(filter.Actors))+")")
		for _, a := range filter.Actors {
			args = append(args, a)
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
		return nil, fmt.Errorf("querying events: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

// ListThread returns all events in a thread, oldest first.
func (s *eventStore) ListThread(ctx context.Context, threadID string) ([]domain.Event, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT id, event_type, actor, title, body, metadata, ref_ids, thread_id, thread_title, created_at
		FROM events WHERE thread_id = ?
		ORDER BY created_at ASC
	`, threadID)
	if err != nil {
		return nil, fmt.Errorf("querying thread: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

// RenameThread updates the thread title on every event in the thread.
func (s *eventStore) RenameThread(ctx context.Context, threadID, title string) error {
	if threadID == "" {
		return domain.ErrInvalidInput
	}
	_, err := s.store.db.ExecContext(ctx,
		"UPDATE events SET thread_title = ? WHERE thread_id = ?", title, threadID)
	if err != nil {
		return fmt.Errorf("renaming thread: %w", err)
	}
	return nil
}

// ==================== Helper Functions ====================

// float32SliceToBytes converts a []float32 to a byte slice for storage.
func float32SliceToBytes(floats []float32) []byte {
	if len(floats) == 0 {
		return nil
	}
	buf := make([]byte, len(floats)*4)
	for i, f := range floats {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// bytesToFloat32Slice converts a byte slice back to []float32.
func bytesToFloat32Slice(data []byte) []float32 {
	if len(data) == 0 {
		return nil
	}
	floats := make([]float32, len(data)/4)
	for i := range floats {
		floats[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return floats
}

// placeholders returns n comma-separated SQL placeholders.
func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

// scanDocument scans a single document row.
func scanDocument(row *sql.Row) (*domain.Document, error) {
	var doc domain.Document
	var docType, tagsJSON, metadataJSON string
	var embedded int

	if err := row.Scan(&doc.ID, &docType, &doc.Title, &doc.Content,
		&tagsJSON, &metadataJSON, &embedded, &doc.CreatedAt, &doc.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning document: %w", err)
	}

	doc.Type = domain.DocumentType(docType)
	doc.Embedded = embedded == 1
	if err := json.Unmarshal([]byte(tagsJSON), &doc.Tags); err != nil {
		return nil, fmt.Errorf("unmarshalling tags: %w", err)
	}
	if err := json.Unmarshal([]byte(metadataJSON), &doc.Metadata); err != nil {
		return nil, fmt.Errorf("unmarshalling metadata: %w", err)
	}

	return &doc, nil
}

// scanDocumentRows scans a document from *sql.Rows.
func scanDocumentRows(rows *sql.Rows) (*domain.Document, error) {
	var doc domain.Document
	var docType, tagsJSON, metadataJSON string
	var embedded int

	if err := rows.Scan(&doc.ID, &docType, &doc.Title, &doc.Content,
		&tagsJSON, &metadataJSON, &embedded, &doc.CreatedAt, &doc.UpdatedAt); err != nil {
		return nil, fmt.Errorf("scanning document: %w", err)
	}

	doc.Type = domain.DocumentType(docType)
	doc.Embedded = embedded == 1
	if err := json.Unmarshal([]byte(tagsJSON), &doc.Tags); err != nil {
		return nil, fmt.Errorf("unmarshalling tags: %w", err)
	}
	if err := json.Unmarshal([]byte(metadataJSON), &doc.Metadata); err != nil {
		return nil, fmt.Errorf("unmarshalling metadata: %w", err)
	}

	return &doc, nil
}

// scanEvent scans a single event row.
func scanEvent(row *sql.Row) (*domain.Event, error) {
	var ev domain.Event
	var metadataJSON, refIDsJSON string
	var threadID, threadTitle sql.NullString

	if err := row.Scan(&ev.ID, &ev.Type, &ev.Actor, &ev.Title, &ev.Body,
		&metadataJSON, &refIDsJSON, &threadID, &threadTitle, &ev.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning event: %w", err)
	}

	ev.ThreadID = threadID.String
	ev.ThreadTitle = threadTitle.String
	if err := json.Unmarshal([]byte(metadataJSON), &ev.Metadata); err != nil {
		return nil, fmt.Errorf("unmarshalling metadata: %w", err)
	}
	if err := json.Unmarshal([]byte(refIDsJSON), &ev.RefIDs); err != nil {
		return nil, fmt.Errorf("unmarshalling ref ids: %w", err)
	}

	return &ev, nil
}

// scanEvents scans multiple event rows.
func scanEvents(rows *sql.Rows) ([]domain.Event, error) {
	var events []domain.Event //nolint:prealloc // size unknown from query
	for rows.Next() {
		var ev domain.Event
		var metadataJSON, refIDsJSON string
		var threadID, threadTitle sql.NullString

		if err := rows.Scan(&ev.ID, &ev.Type, &ev.Actor, &ev.Title, &ev.Body,
			&metadataJSON, &refIDsJSON, &threadID, &threadTitle, &ev.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning event: %w", err)
		}

		ev.ThreadID = threadID.String
		ev.ThreadTitle = threadTitle.String
		if err := json.Unmarshal([]byte(metadataJSON), &ev.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshalling metadata: %w", err)
		}
		if err := json.Unmarshal([]byte(refIDsJSON), &ev.RefIDs); err != nil {
			return nil, fmt.Errorf("unmarshalling ref ids: %w", err)
		}
		events = append(events, ev)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating events: %w", err)
	}

	return events, nil
}

// formatNullableTime formats a time to RFC3339 string, or returns nil for zero time.
func formatNullableTime(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}
	return t.Format(time.RFC3339)
}

// parseNullableTime parses a nullable RFC3339 string to time.Time.
// Returns zero time if the string is empty or invalid.
func parseNullableTime(s sql.NullString) time.Time {
	if !s.Valid || s.String == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, s.String)
	if err != nil {
		return time.Time{}
	}
	return t
}

// nullString returns nil for empty strings, otherwise the string.
func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// boolToInt converts a bool to 1 (true) or 0 (false).
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
