package domain

import "time"

// Event is an immutable append-only record of something that happened:
// a chat turn, an agent analysis, a workflow notification. Events are
// never mutated after creation except for thread-title rename, which is
// a bulk update keyed by thread id.
type Event struct {
	// ID is the unique identifier for the event.
	ID string

	// Type tags the event (chat, analysis, accountability, critique,
	// insight, opportunity, connection, notification, ...). The set is
	// open; agents introduce their own types.
	Type string

	// Actor identifies who produced the event ("user", an agent name,
	// or a system component).
	Actor string

	// Title is a short human-readable summary.
	Title string

	// Body is the free text content.
	Body string

	// Metadata contains arbitrary key-value pairs.
	Metadata map[string]any

	// RefIDs links this event to other entities it refers to.
	RefIDs []string

	// ThreadID groups this event with others into a conversation.
	// Empty for standalone events.
	ThreadID string

	// ThreadTitle is the display title of the conversation thread.
	ThreadTitle string

	// CreatedAt is when the event was recorded.
	CreatedAt time.Time
}

// Validate checks the event satisfies its invariants.
func (e *Event) Validate() error {
	if e.ID == "" || e.Type == "" {
		return ErrInvalidInput
	}
	return nil
}
