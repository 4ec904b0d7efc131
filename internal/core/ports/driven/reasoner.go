package driven

import "context"

// ReasonerLauncher spawns the external reasoning process. The binary
// path or endpoint is a single configuration value resolved once at
// startup; launch failures are returned from Launch, never discovered
// mid-stream.
type ReasonerLauncher interface {
	// Launch starts one reasoning process bound to the session so the
	// process can keep its own conversational context across calls.
	// Cancelling ctx terminates the process.
	Launch(ctx context.Context, req ReasonerRequest) (ReasonerProcess, error)
}

// ReasonerRequest is the payload handed to the external process.
type ReasonerRequest struct {
	// Prompt is the message payload.
	Prompt string

	// SessionID keys the process's own conversational context.
	SessionID string
}

// ReasonerProcess is one running reasoning invocation.
type ReasonerProcess interface {
	// Output delivers text fragments in generation order. The channel
	// is closed when the process stops emitting.
	Output() <-chan string

	// Diagnostics delivers the process's diagnostic stream. Logged,
	// never persisted as transcript.
	Diagnostics() <-chan string

	// Wait blocks until the process exits and returns its terminal
	// error (nil for a clean zero exit).
	Wait() error

	// Kill terminates the process. Best effort; safe to call after exit.
	Kill() error
}
