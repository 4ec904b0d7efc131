package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/quorum-labs/quorum/internal/core/domain"
	"github.com/quorum-labs/quorum/internal/core/ports/driven"
)

// ==================== Schedule Store ====================

// scheduleStore implements driven.ScheduleStore.
type scheduleStore struct {
	store *Store
}

var _ driven.ScheduleStore = (*scheduleStore)(nil)

// GetSchedule retrieves an agent's schedule, or nil if unregistered.
func (s *scheduleStore) GetSchedule(ctx context.Context, agent string) (*domain.AgentSchedule, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT agent, tier, cadence_seconds, last_run, next_run, last_error, enabled
		FROM agent_schedules WHERE agent = ?
	`, agent)

	sched, err := scanSchedule(row)
	if err == domain.ErrNotFound {
		return nil, nil
	}
	return sched, err
}

// ListSchedules returns every registered agent schedule.
func (s *scheduleStore) ListSchedules(ctx context.Context) ([]domain.AgentSchedule, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT agent, tier, cadence_seconds, last_run, next_run, last_error, enabled
		FROM agent_schedules ORDER BY agent
	`)
	if err != nil {
		return nil, fmt.Errorf("querying schedules: %w", err)
	}
	defer rows.Close()

	var schedules []domain.AgentSchedule //nolint:prealloc // size unknown from query
	for rows.Next() {
		var sched domain.AgentSchedule
		var tier string
		var cadenceSeconds int64
		var lastRun, nextRun, lastError sql.NullString
		var enabled int

		if err := rows.Scan(&sched.Agent, &tier, &cadenceSeconds,
			&lastRun, &nextRun, &lastError, &enabled); err != nil {
			return nil, fmt.Errorf("scanning schedule: %w", err)
		}

		sched.Tier = domain.Tier(tier)
		sched.Cadence = time.Duration(cadenceSeconds) * time.Second
		sched.LastRun = parseNullableTime(lastRun)
		sched.NextRun = parseNullableTime(nextRun)
		sched.LastError = lastError.String
		sched.Enabled = enabled == 1
		schedules = append(schedules, sched)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating schedules: %w", err)
	}

	return schedules, nil
}

// SaveSchedule creates or updates a schedule.
func (s *scheduleStore) SaveSchedule(ctx context.Context, sched *domain.AgentSchedule) error {
	if sched.Agent == "" || !sched.Tier.Valid() {
		return domain.ErrInvalidInput
	}

	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO agent_schedules (agent, tier, cadence_seconds, last_run, next_run, last_error, enabled)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(agent) DO UPDATE SET
			tier = excluded.tier,
			cadence_seconds = excluded.cadence_seconds,
			last_run = excluded.last_run,
			next_run = excluded.next_run,
			last_error = excluded.last_error,
			enabled = excluded.enabled
	`, sched.Agent, string(sched.Tier), int64(sched.Cadence/time.Second),
		formatNullableTime(sched.LastRun), formatNullableTime(sched.NextRun),
		nullString(sched.LastError), boolToInt(sched.Enabled))

	if err != nil {
		return fmt.Errorf("saving schedule: %w", err)
	}
	return nil
}

// RecordRun appends a run to the ledger.
func (s *scheduleStore) RecordRun(ctx context.Context, run *domain.AgentRun) error {
	if run.Agent == "" {
		return domain.ErrInvalidInput
	}

	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO agent_runs (agent, started_at, ended_at, success, summary, error)
		VALUES (?, ?, ?, ?, ?, ?)
	`, run.Agent, run.StartedAt.UTC().Format(time.RFC3339),
		run.EndedAt.UTC().Format(time.RFC3339), boolToInt(run.Success),
		nullString(run.Summary), nullString(run.Error))

	if err != nil {
		return fmt.Errorf("recording run: %w", err)
	}
	return nil
}

// RunHistory returns recent runs for an agent, newest first.
func (s *scheduleStore) RunHistory(ctx context.Context, agent string, limit int) ([]domain.AgentRun, error) {
	query := `
		SELECT agent, started_at, ended_at, success, summary, error
		FROM agent_runs WHERE agent = ?
		ORDER BY started_at DESC`
	args := []any{agent}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.store.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying run history: %w", err)
	}
	defer rows.Close()

	var runs []domain.AgentRun //nolint:prealloc // size unknown from query
	for rows.Next() {
		var run domain.AgentRun
		var startedAt, endedAt string
		var success int
		var summary, runErr sql.NullString

		if err := rows.Scan(&run.Agent, &startedAt, &endedAt, &success, &summary, &runErr); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}

		run.StartedAt, _ = time.Parse(time.RFC3339, startedAt)
		run.EndedAt, _ = time.Parse(time.RFC3339, endedAt)
		run.Success = success == 1
		run.Summary = summary.String
		run.Error = runErr.String
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating runs: %w", err)
	}

	return runs, nil
}

// PruneRuns keeps only the most recent keep runs per agent.
func (s *scheduleStore) PruneRuns(ctx context.Context, keep int) error {
	if keep <= 0 {
		return domain.ErrInvalidInput
	}

	_, err := s.store.db.ExecContext(ctx, `
		DELETE FROM agent_runs WHERE id NOT IN (
			SELECT id FROM (
				SELECT id, ROW_NUMBER() OVER (
					PARTITION BY agent ORDER BY started_at DESC
				) AS rn FROM agent_runs
			) WHERE rn <= ?
		)
	`, keep)

	if err != nil {
		return fmt.Errorf("pruning runs: %w", err)
	}
	return nil
}

// scanSchedule scans a single schedule row.
func scanSchedule(row *sql.Row) (*domain.AgentSchedule, error) {
	var sched domain.AgentSchedule
	var tier string
	var cadenceSeconds int64
	var lastRun, nextRun, lastError sql.NullString
	var enabled int

	if err := row.Scan(&sched.Agent, &tier, &cadenceSeconds,
		&lastRun, &nextRun, &lastError, &enabled); err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning schedule: %w", err)
	}

	sched.Tier = domain.Tier(tier)
	sched.Cadence = time.Duration(cadenceSeconds) * time.Second
	sched.LastRun = parseNullableTime(lastRun)
	sched.NextRun = parseNullableTime(nextRun)
	sched.LastError = lastError.String
	sched.Enabled = enabled == 1
	return &sched, nil
}
