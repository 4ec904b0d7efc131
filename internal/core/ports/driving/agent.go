package driving

import (
	"context"

	"github.com/quorum-labs/quorum/internal/core/domain"
)

// Agent is one scheduled agent class. Agents never invoke each other;
// coordination happens through the shared memory store.
type Agent interface {
	// Name returns the agent class identifier ("executor", ...).
	Name() string

	// Tier returns the agent's place in the observe/act/reflect hierarchy.
	Tier() domain.Tier

	// Run executes one pass and returns a one-line summary of what it did.
	Run(ctx context.Context) (string, error)
}

// SchedulerService enforces run cadence per agent class and the
// quiet-hours notification gate.
type SchedulerService interface {
	// Register adds an agent class to the schedule.
	Register(agent Agent)

	// Start runs the scheduling loop until ctx is cancelled or Stop is
	// called. Blocks.
	Start(ctx context.Context) error

	// Stop shuts the loop down and waits for in-flight runs.
	Stop() error

	// RunNow executes a registered agent immediately, outside cadence.
	RunNow(ctx context.Context, agent string) (*domain.AgentRun, error)
}
