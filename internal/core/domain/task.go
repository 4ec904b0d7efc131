package domain

import "time"

// TaskStatus tracks a task through its lifecycle.
type TaskStatus string

// Task statuses.
const (
	TaskOpen       TaskStatus = "open"
	TaskInProgress TaskStatus = "in_progress"
	TaskDone       TaskStatus = "done"
	TaskBlocked    TaskStatus = "blocked"
)

// Valid reports whether the status is one of the known values.
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskOpen, TaskInProgress, TaskDone, TaskBlocked:
		return true
	}
	return false
}

// TaskPriority orders tasks by urgency.
type TaskPriority string

// Task priorities.
const (
	PriorityCritical TaskPriority = "critical"
	PriorityHigh     TaskPriority = "high"
	PriorityMedium   TaskPriority = "medium"
	PriorityLow      TaskPriority = "low"
)

// Valid reports whether the priority is one of the known values.
func (p TaskPriority) Valid() bool {
	switch p {
	case PriorityCritical, PriorityHigh, PriorityMedium, PriorityLow:
		return true
	}
	return false
}

// Rank returns a sortable rank; lower is more urgent.
func (p TaskPriority) Rank() int {
	switch p {
	case PriorityCritical:
		return 0
	case PriorityHigh:
		return 1
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 3
	default:
		return 4
	}
}

// Task is a trackable commitment, created by a user or an agent and
// mutated via partial field updates. Tasks are top-level entities and
// are never cascade-deleted from anything else.
type Task struct {
	// ID is the unique identifier for the task.
	ID string

	// Title is the short description of the commitment.
	Title string

	// Description is the full description.
	Description string

	// Status is the current lifecycle state.
	Status TaskStatus

	// Priority orders the task against its peers.
	Priority TaskPriority

	// Owner is the person or agent responsible. Optional.
	Owner string

	// DueAt is the deadline. Nil means no deadline.
	DueAt *time.Time

	// CompletedAt is set when the task transitions to done.
	CompletedAt *time.Time

	// Metadata contains arbitrary key-value pairs.
	Metadata map[string]any

	// CreatedAt is when the task was created.
	CreatedAt time.Time

	// UpdatedAt is when the task was last touched.
	UpdatedAt time.Time
}

// Validate checks the task satisfies its invariants.
func (t *Task) Validate() error {
	if t.ID == "" || t.Title == "" {
		return ErrInvalidInput
	}
	if !t.Status.Valid() || !t.Priority.Valid() {
		return ErrInvalidInput
	}
	return nil
}

// TaskUpdate is a partial update applied to an existing task.
// Nil fields are left unchanged.
type TaskUpdate struct {
	Title       *string
	Description *string
	Status      *TaskStatus
	Priority    *TaskPriority
	Owner       *string
	DueAt       *time.Time
	Metadata    map[string]any
}
