package domain

import "time"

// Tier places an agent class in the observe -> act -> reflect hierarchy.
// Observe-tier agents run frequently and write raw records without
// judgment; act-tier agents read observe output and write tasks and
// observations; reflect-tier agents run rarely and write higher-level
// synthesis. No agent invokes another directly; all coordination is
// through the shared store.
type Tier string

// Agent tiers.
const (
	TierObserve Tier = "observe"
	TierAct     Tier = "act"
	TierReflect Tier = "reflect"
)

// Valid reports whether the tier is one of the known values.
func (t Tier) Valid() bool {
	switch t {
	case TierObserve, TierAct, TierReflect:
		return true
	}
	return false
}

// DefaultCadence returns how often agents of this tier run by default.
func (t Tier) DefaultCadence() time.Duration {
	switch t {
	case TierObserve:
		return 15 * time.Minute
	case TierAct:
		return 1 * time.Hour
	case TierReflect:
		return 6 * time.Hour
	default:
		return 1 * time.Hour
	}
}

// AgentSchedule records when a registered agent class may run.
type AgentSchedule struct {
	// Agent is the agent class name ("executor", "devils_advocate", ...).
	Agent string

	// Tier determines default cadence and output expectations.
	Tier Tier

	// Cadence overrides the tier default when non-zero.
	Cadence time.Duration

	// LastRun is when the agent last ran.
	LastRun time.Time

	// NextRun is when the agent is next due.
	NextRun time.Time

	// LastError holds the most recent failure message, if any.
	LastError string

	// Enabled indicates whether the agent may run at all.
	Enabled bool
}

// EffectiveCadence returns the configured cadence or the tier default.
func (s *AgentSchedule) EffectiveCadence() time.Duration {
	if s.Cadence > 0 {
		return s.Cadence
	}
	return s.Tier.DefaultCadence()
}

// AgentRun is one entry in the run ledger.
type AgentRun struct {
	// Agent is the agent class that ran.
	Agent string

	// StartedAt is when the run began.
	StartedAt time.Time

	// EndedAt is when the run finished.
	EndedAt time.Time

	// Success indicates whether the run completed without error.
	Success bool

	// Summary is the agent's own one-line account of what it did.
	Summary string

	// Error contains the failure message if Success is false.
	Error string
}

// QuietHours is a local-time window during which outbound notification
// side effects are suppressed. Store reads and writes are never gated
// by this policy; it applies only at the notification boundary.
type QuietHours struct {
	// StartHour is the first suppressed local hour [0,24).
	StartHour int

	// EndHour is the first unsuppressed local hour [0,24). A window may
	// wrap midnight (e.g. 22 -> 7).
	EndHour int

	// Location resolves "local". Nil means time.Local.
	Location *time.Location
}

// Contains reports whether t falls inside the [StartHour, EndHour)
// window. A zero window (start == end) suppresses nothing.
func (q QuietHours) Contains(t time.Time) bool {
	if q.StartHour == q.EndHour {
		return false
	}
	loc := q.Location
	if loc == nil {
		loc = time.Local
	}
	h := t.In(loc).Hour()
	if q.StartHour < q.EndHour {
		return h >= q.StartHour && h < q.EndHour
	}
	// Window wraps midnight.
	return h >= q.StartHour || h < q.EndHour
}

// SchedulerConfig holds scheduler policy configuration.
type SchedulerConfig struct {
	// Enabled is the master switch for the scheduler loop.
	Enabled bool

	// Quiet is the notification suppression window.
	Quiet QuietHours

	// Cadences holds per-agent cadence overrides keyed by agent name.
	Cadences map[string]time.Duration
}

// DefaultSchedulerConfig returns sensible defaults.
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		Enabled: true,
		Quiet:   QuietHours{StartHour: 22, EndHour: 7},
	}
}
