package domain

import "time"

// ObservationCategory classifies an agent-produced judgment.
type ObservationCategory string

// Observation categories.
const (
	ObsCritique       ObservationCategory = "critique"
	ObsRisk           ObservationCategory = "risk"
	ObsInsight        ObservationCategory = "insight"
	ObsRecommendation ObservationCategory = "recommendation"
	ObsIssue          ObservationCategory = "issue"
	ObsImprovement    ObservationCategory = "improvement"
	ObsOther          ObservationCategory = "other"
)

// Valid reports whether the category is one of the known values.
func (c ObservationCategory) Valid() bool {
	switch c {
	case ObsCritique, ObsRisk, ObsInsight, ObsRecommendation,
		ObsIssue, ObsImprovement, ObsOther:
		return true
	}
	return false
}

// ObservationSeverity grades how much an observation matters.
type ObservationSeverity string

// Observation severities.
const (
	SeverityInfo     ObservationSeverity = "info"
	SeverityLow      ObservationSeverity = "low"
	SeverityMedium   ObservationSeverity = "medium"
	SeverityHigh     ObservationSeverity = "high"
	SeverityCritical ObservationSeverity = "critical"
)

// Valid reports whether the severity is one of the known values.
func (s ObservationSeverity) Valid() bool {
	switch s {
	case SeverityInfo, SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return true
	}
	return false
}

// ObservationStatus tracks triage of an observation.
type ObservationStatus string

// Observation statuses.
const (
	ObsOpen         ObservationStatus = "open"
	ObsAcknowledged ObservationStatus = "acknowledged"
	ObsAddressed    ObservationStatus = "addressed"
	ObsDismissed    ObservationStatus = "dismissed"
)

// Valid reports whether the status is one of the known values.
func (s ObservationStatus) Valid() bool {
	switch s {
	case ObsOpen, ObsAcknowledged, ObsAddressed, ObsDismissed:
		return true
	}
	return false
}

// Observation is an agent-produced judgment not rising to the level of
// a Task. The fingerprint is the system's core idempotency guarantee
// against noisy or retried agent output: re-submitting semantically
// identical content updates the existing row instead of duplicating it.
type Observation struct {
	// ID is the unique identifier for the observation.
	ID string

	// Category classifies the judgment.
	Category ObservationCategory

	// Severity grades how much it matters.
	Severity ObservationSeverity

	// Status tracks triage.
	Status ObservationStatus

	// Content is the free text of the judgment.
	Content string

	// SourceAgent identifies the agent that produced it.
	SourceAgent string

	// RefID optionally points at another entity.
	RefID string

	// RefType names what RefID points at ("task", "event", "document").
	RefType string

	// Fingerprint is the stable hash of (category, source agent, content).
	// Globally unique; the upsert key.
	Fingerprint string

	// Metadata contains arbitrary key-value pairs.
	Metadata map[string]any

	// CreatedAt is when the observation was first recorded.
	CreatedAt time.Time

	// UpdatedAt is refreshed when a duplicate submission merges in.
	UpdatedAt time.Time
}

// Validate checks the observation satisfies its invariants.
func (o *Observation) Validate() error {
	if o.ID == "" || o.Content == "" || o.SourceAgent == "" || o.Fingerprint == "" {
		return ErrInvalidInput
	}
	if !o.Category.Valid() || !o.Severity.Valid() || !o.Status.Valid() {
		return ErrInvalidInput
	}
	return nil
}
