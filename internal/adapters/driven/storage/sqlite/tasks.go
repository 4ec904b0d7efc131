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

// ==================== Task Store ====================

// taskStore implements driven.TaskStore.
type taskStore struct {
	store *Store
}

var _ driven.TaskStore = (*taskStore)(nil)

// CreateTask stores a new task.
func (s *taskStore) CreateTask(ctx context.Context, task *domain.Task) error {
	if err := task.Validate(); err != nil {
		return err
	}

	metadataJSON, err := json.Marshal(task.Metadata)
	if err != nil {
		return fmt.Errorf("marshalling metadata: %w", err)
	}

	now := time.Now().UTC()
	if task.CreatedAt.IsZero() {
		task.CreatedAt = now
	}
	task.UpdatedAt = now

	_, err = s.store.db.ExecContext(ctx, `
		INSERT INTO tasks (id, title, description, status, priority, owner, due_at, completed_at, metadata, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, task.ID, task.Title, task.Description, string(task.Status), string(task.Priority),
		nullString(task.Owner), formatTimePtr(task.DueAt), formatTimePtr(task.CompletedAt),
		string(metadataJSON), task.CreatedAt, task.UpdatedAt)

	if err != nil {
		return fmt.Errorf("creating task: %w", err)
	}
	return nil
}

// GetTask retrieves a task by ID.
func (s *taskStore) GetTask(ctx context.Context, id string) (*domain.Task, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT id, title, description, status, priority, owner, due_at, completed_at, metadata, created_at, updated_at
		FROM tasks WHERE id = ?
	`, id)

	return scanTask(row)
}

// ListTasks returns tasks matching the filter, newest first.
func (s *taskStore) ListTasks(ctx context.Context, filter driven.TaskFilter) ([]domain.Task, error) {
	query := `
		SELECT id, title, description, status, priority, owner, due_at, completed_at, metadata, created_at, updated_at
		FROM tasks`
	var conds []string
	var args []any

	if len(filter.Statuses) > 0 {
		conds = append(conds, "status IN ("+placeholders(len(filter.Statuses))+")")
		for _, st := range filter.Statuses {
			args = append(args, string(st))
		}
	}
	if filter.Owner != "" {
		conds = append(conds, "owner = ?")
		args = append(args, filter.Owner)
	}
	if !filter.DueBefore.IsZero() {
		conds = append(conds, "due_at IS NOT NULL AND due_at < ?")
		args = append(args, filter.DueBefore.UTC().Format(time.RFC3339))
	}
	if !filter.UpdatedBefore.IsZero() {
		conds = append(conds, "updated_at < ?")
		args = append(args, filter.UpdatedBefore.UTC())
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
		return nil, fmt.Errorf("querying tasks: %w", err)
	}
	defer rows.Close()

	var tasks []domain.Task //nolint:prealloc // size unknown from query
	for rows.Next() {
		task, err := scanTaskRows(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *task)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating tasks: %w", err)
	}

	return tasks, nil
}

// UpdateTask applies a partial update. Nil fields are left unchanged.
func (s *taskStore) UpdateTask(ctx context.Context, id string, update domain.TaskUpdate) (*domain.Task, error) {
	task, err := s.GetTask(ctx, id)
	if err != nil {
		return nil, err
	}

	if update.Title != nil {
		task.Title = *update.Title
	}
	if update.Description != nil {
		task.Description = *update.Description
	}
	if update.Status != nil {
		if !update.Status.Valid() {
			return nil, domain.ErrInvalidInput
		}
		// Transition to done stamps completion; leaving done clears it.
		if *update.Status == domain.TaskDone && task.Status != domain.TaskDone {
			now := time.Now().UTC()
			task.CompletedAt = &now
		} else if *update.Status != domain.TaskDone {
			task.CompletedAt = nil
		}
		task.Status = *update.Status
	}
	if update.Priority != nil {
		if !update.Priority.Valid() {
			return nil, domain.ErrInvalidInput
		}
		task.Priority = *update.Priority
	}
	if update.Owner != nil {
		task.Owner = *update.Owner
	}
	if update.DueAt != nil {
		task.DueAt = update.DueAt
	}
	if update.Metadata != nil {
		task.Metadata = update.Metadata
	}

	if err := task.Validate(); err != nil {
		return nil, err
	}

	metadataJSON, err := json.Marshal(task.Metadata)
	if err != nil {
		return nil, fmt.Errorf("marshalling metadata: %w", err)
	}
	task.UpdatedAt = time.Now().UTC()

	_, err = s.store.db.ExecContext(ctx, `
		UPDATE tasks SET
			title = ?, description = ?, status = ?, priority = ?, owner = ?,
			due_at = ?, completed_at = ?, metadata = ?, updated_at = ?
		WHERE id = ?
	`, task.Title, task.Description, string(task.Status), string(task.Priority),
		nullString(task.Owner), formatTimePtr(task.DueAt), formatTimePtr(task.CompletedAt),
		string(metadataJSON), task.UpdatedAt, id)

	if err != nil {
		return nil, fmt.Errorf("updating task: %w", err)
	}
	return task, nil
}

// DeleteTask removes a task.
func (s *taskStore) DeleteTask(ctx context.Context, id string) error {
	res, err := s.store.db.ExecContext(ctx, "DELETE FROM tasks WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting task: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// formatTimePtr formats a *time.Time to RFC3339, or returns nil.
func formatTimePtr(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}

// parseTimePtr parses a nullable RFC3339 string to *time.Time.
func parseTimePtr(s sql.NullString) *time.Time {
	if !s.Valid || s.String == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, s.String)
	if err != nil {
		return nil
	}
	return &t
}

// scanTask scans a single task row.
func scanTask(row *sql.Row) (*domain.Task, error) {
	var task domain.Task
	var status, priority, metadataJSON string
	var owner, dueAt, completedAt sql.NullString

	if err := row.Scan(&task.ID, &task.Title, &task.Description, &status, &priority,
		&owner, &dueAt, &completedAt, &metadataJSON, &task.CreatedAt, &task.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning task: %w", err)
	}

	task.Status = domain.TaskStatus(status)
	task.Priority = domain.TaskPriority(priority)
	task.Owner = owner.String
	task.DueAt = parseTimePtr(dueAt)
	task.CompletedAt = parseTimePtr(completedAt)
	if err := json.Unmarshal([]byte(metadataJSON), &task.Metadata); err != nil {
		return nil, fmt.Errorf("unmarshalling metadata: %w", err)
	}

	return &task, nil
}

// scanTaskRows scans a task from *sql.Rows.
func scanTaskRows(rows *sql.Rows) (*domain.Task, error) {
	var task domain.Task
	var status, priority, metadataJSON string
	var owner, dueAt, completedAt sql.NullString

	if err := rows.Scan(&task.ID, &task.Title, &task.Description, &status, &priority,
		&owner, &dueAt, &completedAt, &metadataJSON, &task.CreatedAt, &task.UpdatedAt); err != nil {
		return nil, fmt.Errorf("scanning task: %w", err)
	}

	task.Status = domain.TaskStatus(status)
	task.Priority = domain.TaskPriority(priority)
	task.Owner = owner.String
	task.DueAt = parseTimePtr(dueAt)
	task.CompletedAt = parseTimePtr(completedAt)
	if err := json.Unmarshal([]byte(metadataJSON), &task.Metadata); err != nil {
		return nil, fmt.Errorf("unmarshalling metadata: %w", err)
	}

	return &task, nil
}
