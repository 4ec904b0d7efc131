package driving

import (
	"context"
	"time"
)

// ChatOrchestrator drives one external reasoning invocation per call,
// streaming partial output to the caller while accumulating the
// transcript for exactly-once persistence.
type ChatOrchestrator interface {
	// Run spawns the reasoning process for the session and returns a
	// finite, non-restartable stream of text fragments. The stream
	// always carries at least one fragment: real output, or a
	// synthesized fallback when the process is unavailable, errors
	// before emitting anything, or exits cleanly with no output.
	// Exactly one transcript event is persisted per invocation;
	// a timeout persists whatever accumulated as a valid completion.
	Run(ctx context.Context, prompt, sessionID string, timeout time.Duration) (<-chan string, error)
}

// Default timeouts by caller profile. Interactive chat expects a
// snappier bound than a multi-agent council deliberation.
const (
	DefaultChatTimeout    = 2 * time.Minute
	DefaultCouncilTimeout = 5 * time.Minute
)
