package services

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/quorum-labs/quorum/internal/core/domain"
	"github.com/quorum-labs/quorum/internal/core/ports/driven"
	"github.com/quorum-labs/quorum/internal/core/ports/driving"
	"github.com/quorum-labs/quorum/internal/logger"
)

// Fallback fragments synthesized when the reasoning process produces
// no usable output. The caller always receives at least one fragment.
const (
	fallbackUnavailable = "The reasoning process could not be started. Please check the reasoner configuration and try again."
	fallbackErrored     = "The reasoning process failed before producing a response."
	fallbackEmpty       = "The reasoning process completed without producing a response."
)

// Terminal outcomes recorded on the transcript event.
const (
	outcomeCompleted   = "completed"
	outcomeTimeout     = "timeout"
	outcomeError       = "error"
	outcomeUnavailable = "unavailable"
	outcomeCancelled   = "cancelled"
)

// ChatOrchestrator drives one external reasoning invocation per call.
// Partial output streams to the caller while the full transcript
// accumulates for exactly-once persistence into the event log.
type ChatOrchestrator struct {
	launcher driven.ReasonerLauncher
	events   driven.EventStore

	mu     sync.Mutex
	active map[string]bool
}

var _ driving.ChatOrchestrator = (*ChatOrchestrator)(nil)

// NewChatOrchestrator creates the orchestrator.
func NewChatOrchestrator(launcher driven.ReasonerLauncher, events driven.EventStore) *ChatOrchestrator {
	return &ChatOrchestrator{
		launcher: launcher,
		events:   events,
		active:   make(map[string]bool),
	}
}

// Run spawns the reasoning process for the session and returns a
// finite stream of text fragments. The stream is closed when the
// invocation reaches a terminal state; it never restarts.
func (o *ChatOrchestrator) Run(ctx context.Context, prompt, sessionID string, timeout time.Duration) (<-chan string, error) {
	if prompt == "" {
		return nil, domain.ErrInvalidInput
	}
	if timeout <= 0 {
		timeout = driving.DefaultChatTimeout
	}
	if err := o.claim(sessionID); err != nil {
		return nil, err
	}

	out := make(chan string)
	go func() {
		defer o.release(sessionID)
		o.run(ctx, prompt, sessionID, timeout, out)
	}()
	return out, nil
}

// claim marks the session as having an invocation in flight. A second
// concurrent invocation for the same session is refused rather than
// interleaving two transcripts.
func (o *ChatOrchestrator) claim(sessionID string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.active[sessionID] {
		return domain.ErrSessionBusy
	}
	o.active[sessionID] = true
	return nil
}

func (o *ChatOrchestrator) release(sessionID string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.active, sessionID)
}

func (o *ChatOrchestrator) run(ctx context.Context, prompt, sessionID string, timeout time.Duration, out chan<- string) {
	defer close(out)

	logger.Section("Reasoning")
	logger.Debug("spawning reasoner for session %s (timeout %s)", sessionID, timeout)

	proc, err := o.launcher.Launch(ctx, driven.ReasonerRequest{
		Prompt:    prompt,
		SessionID: sessionID,
	})
	if err != nil {
		logger.Warn("reasoner spawn failed: %v", err)
		o.deliver(ctx, out, fallbackUnavailable)
		o.persist(sessionID, prompt, fallbackUnavailable, outcomeUnavailable)
		return
	}

	// Drain diagnostics in the background. Diagnostic output is logged,
	// never streamed to the caller and never part of the transcript.
	go func() {
		for line := range proc.Diagnostics() {
			logger.Debug("reasoner: %s", line)
		}
	}()

	var transcript strings.Builder
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	output := proc.Output()
	for {
		select {
		case fragment, ok := <-output:
			if !ok {
				o.finish(ctx, proc, sessionID, prompt, transcript.String(), out)
				return
			}
			transcript.WriteString(fragment)
			if !o.deliver(ctx, out, fragment) {
				// Caller went away mid-stream. Kill the process but
				// still persist whatever accumulated.
				_ = proc.Kill()
				o.persist(sessionID, prompt, o.orFallback(transcript.String(), fallbackErrored), outcomeCancelled)
				return
			}

		case <-timer.C:
			// A timeout is a degraded completion, not a failure: the
			// partial transcript is persisted as a valid response.
			logger.Warn("reasoner timed out after %s for session %s", timeout, sessionID)
			_ = proc.Kill()
			text := o.orFallback(transcript.String(), fallbackEmpty)
			if transcript.Len() == 0 {
				o.deliver(ctx, out, text)
			}
			o.persist(sessionID, prompt, text, outcomeTimeout)
			return

		case <-ctx.Done():
			_ = proc.Kill()
			o.persist(sessionID, prompt, o.orFallback(transcript.String(), fallbackErrored), outcomeCancelled)
			return
		}
	}
}

// finish handles the process closing its output stream on its own.
func (o *ChatOrchestrator) finish(ctx context.Context, proc driven.ReasonerProcess, sessionID, prompt, transcript string, out chan<- string) {
	err := proc.Wait()
	switch {
	case err != nil && transcript == "":
		// Failed before emitting anything; synthesize a response.
		logger.Warn("reasoner exited with error and no output: %v", err)
		o.deliver(ctx, out, fallbackErrored)
		o.persist(sessionID, prompt, fallbackErrored, outcomeError)

	case err != nil:
		// Partial output followed by a crash still counts as a
		// response; the caller already saw the fragments.
		logger.Warn("reasoner exited with error after partial output: %v", err)
		o.persist(sessionID, prompt, transcript, outcomeError)

	case transcript == "":
		// Clean exit, nothing said.
		o.deliver(ctx, out, fallbackEmpty)
		o.persist(sessionID, prompt, fallbackEmpty, outcomeCompleted)

	default:
		o.persist(sessionID, prompt, transcript, outcomeCompleted)
	}
}

// deliver sends one fragment, giving up if the caller cancelled.
func (o *ChatOrchestrator) deliver(ctx context.Context, out chan<- string, fragment string) bool {
	select {
	case out <- fragment:
		return true
	case <-ctx.Done():
		return false
	}
}

// persist appends exactly one transcript event for the invocation.
// Persistence failures are logged, not surfaced; the caller already
// has the response.
func (o *ChatOrchestrator) persist(sessionID, prompt, transcript, outcome string) {
	ev := &domain.Event{
		ID:    uuid.NewString(),
		Type:  "chat_response",
		Actor: "orchestrator",
		Title: firstLine(prompt),
		Body:  transcript,
		Metadata: map[string]any{
			"outcome": outcome,
			"prompt":  prompt,
		},
		ThreadID: sessionID,
	}

	// Persist on a fresh context so caller cancellation cannot lose
	// the transcript.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := o.events.AppendEvent(ctx, ev); err != nil {
		logger.Warn("persisting transcript for session %s: %v", sessionID, err)
	}
}

func (o *ChatOrchestrator) orFallback(transcript, fallback string) string {
	if transcript == "" {
		return fallback
	}
	return transcript
}

// firstLine returns the first line of s, truncated for use as a title.
func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	if len(s) > 80 {
		s = s[:80]
	}
	return s
}
