package driven

import (
	"context"
	"time"

	"github.com/quorum-labs/quorum/internal/core/domain"
)

// DocumentStore persists documents, the top-level units of knowledge.
type DocumentStore interface {
	// SaveDocument stores or updates a document (upsert by ID).
	SaveDocument(ctx context.Context, doc *domain.Document) error

	// GetDocument retrieves a document by ID.
	GetDocument(ctx context.Context, id string) (*domain.Document, error)

	// ListDocuments returns documents filtered by type and/or tag,
	// newest first. Zero-valued filter fields match everything.
	ListDocuments(ctx context.Context, filter DocumentFilter) ([]domain.Document, error)

	// MarkEmbedded records whether ingestion produced embeddings for
	// the document ("not yet searchable" when false).
	MarkEmbedded(ctx context.Context, id string, embedded bool) error

	// DeleteDocument removes a document. Its embeddings cascade.
	DeleteDocument(ctx context.Context, id string) error
}

// DocumentFilter narrows a document listing.
type DocumentFilter struct {
	// Type matches the document type when non-empty.
	Type domain.DocumentType

	// Tag matches documents carrying the tag when non-empty.
	Tag string

	// Limit caps the number of results. Zero means no cap.
	Limit int
}

// EventStore persists the append-only event log. Events are never
// mutated after creation except for thread-title rename.
type EventStore interface {
	// AppendEvent stores a new event. Returns domain.ErrImmutable if an
	// event with the same ID already exists.
	AppendEvent(ctx context.Context, ev *domain.Event) error

	// GetEvent retrieves an event by ID.
	GetEvent(ctx context.Context, id string) (*domain.Event, error)

	// ListEvents returns events matching the filter, newest first.
	ListEvents(ctx context.Context, filter EventFilter) ([]domain.Event, error)

	// ListThread returns all events in a thread, oldest first.
	ListThread(ctx context.Context, threadID string) ([]domain.Event, error)

	// RenameThread updates the thread title on every event in the
	// thread. The only permitted bulk mutation.
	RenameThread(ctx context.Context, threadID, title string) error
}

// EventFilter narrows an event listing.
type EventFilter struct {
	// Types matches any of the given event types when non-empty.
	Types []string

	// Actors matches any of the given actors when non-empty.
	Actors []string

	// Since keeps events created at or after this time when non-zero.
	Since time.Time

	// Limit caps the number of results. Zero means no cap.
	Limit int
}

// TaskStore persists trackable commitments.
type TaskStore interface {
	// CreateTask stores a new task.
	CreateTask(ctx context.Context, task *domain.Task) error

	// GetTask retrieves a task by ID.
	GetTask(ctx context.Context, id string) (*domain.Task, error)

	// ListTasks returns tasks matching the filter, newest first.
	ListTasks(ctx context.Context, filter TaskFilter) ([]domain.Task, error)

	// UpdateTask applies a partial update. Nil fields are unchanged;
	// a transition to done sets CompletedAt.
	UpdateTask(ctx context.Context, id string, update domain.TaskUpdate) (*domain.Task, error)

	// DeleteTask removes a task.
	DeleteTask(ctx context.Context, id string) error
}

// TaskFilter narrows a task listing.
type TaskFilter struct {
	// Statuses matches any of the given statuses when non-empty.
	Statuses []domain.TaskStatus

	// Owner matches the task owner when non-empty.
	Owner string

	// DueBefore keeps tasks due strictly before this time when non-zero.
	DueBefore time.Time

	// UpdatedBefore keeps tasks last touched before this time when non-zero.
	UpdatedBefore time.Time

	// Limit caps the number of results. Zero means no cap.
	Limit int
}

// ObservationStore persists agent judgments with fingerprint dedup.
type ObservationStore interface {
	// UpsertObservation stores the observation, merging on fingerprint
	// collision: the existing row's content, metadata and updated_at
	// are refreshed while id, created_at and fingerprint are kept.
	// Returns the stored row.
	UpsertObservation(ctx context.Context, obs *domain.Observation) (*domain.Observation, error)

	// GetObservation retrieves an observation by ID.
	GetObservation(ctx context.Context, id string) (*domain.Observation, error)

	// ListObservations returns observations matching the filter, newest first.
	ListObservations(ctx context.Context, filter ObservationFilter) ([]domain.Observation, error)

	// SetObservationStatus updates triage status.
	SetObservationStatus(ctx context.Context, id string, status domain.ObservationStatus) error

	// DeleteObservation removes an observation.
	DeleteObservation(ctx context.Context, id string) error
}

// ObservationFilter narrows an observation listing.
type ObservationFilter struct {
	// Category matches the category when non-empty.
	Category domain.ObservationCategory

	// SourceAgent matches the producing agent when non-empty.
	SourceAgent string

	// Statuses matches any of the given statuses when non-empty.
	Statuses []domain.ObservationStatus

	// Since keeps observations created at or after this time when non-zero.
	Since time.Time

	// Limit caps the number of results. Zero means no cap.
	Limit int
}

// EmbeddingStore persists vectors keyed by (ref_id, ref_type).
type EmbeddingStore interface {
	// UpsertEmbedding stores the vector, replacing any existing row
	// with the same (ref_id, ref_type).
	UpsertEmbedding(ctx context.Context, emb *domain.Embedding) error

	// GetEmbedding retrieves the vector for a reference pair.
	GetEmbedding(ctx context.Context, refID, refType string) (*domain.Embedding, error)

	// DeleteFamily removes the base embedding and every chunk variant
	// for refID, so re-ingestion never leaves stale partial chunks.
	DeleteFamily(ctx context.Context, refID, base string) error

	// ListEmbeddings returns embeddings whose ref type matches the
	// family filter. Empty base matches everything.
	ListEmbeddings(ctx context.Context, base string, includeChunks bool) ([]domain.Embedding, error)
}

// ScheduleStore persists agent schedules and the run ledger.
type ScheduleStore interface {
	// GetSchedule retrieves an agent's schedule, or nil if unregistered.
	GetSchedule(ctx context.Context, agent string) (*domain.AgentSchedule, error)

	// ListSchedules returns every registered agent schedule.
	ListSchedules(ctx context.Context) ([]domain.AgentSchedule, error)

	// SaveSchedule creates or updates a schedule.
	SaveSchedule(ctx context.Context, sched *domain.AgentSchedule) error

	// RecordRun appends a run to the ledger.
	RecordRun(ctx context.Context, run *domain.AgentRun) error

	// RunHistory returns recent runs for an agent, newest first.
	RunHistory(ctx context.Context, agent string, limit int) ([]domain.AgentRun, error)

	// PruneRuns keeps only the most recent keep runs per agent.
	PruneRuns(ctx context.Context, keep int) error
}
