package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quorum-labs/quorum/internal/core/domain"
)

// drain collects all fragments until the stream closes.
func drain(t *testing.T, ch <-chan string) []string {
	t.Helper()
	var out []string
	deadline := time.After(5 * time.Second)
	for {
		select {
		case fragment, ok := <-ch:
			if !ok {
				return out
			}
			out = append(out, fragment)
		case <-deadline:
			t.Fatal("stream did not close")
		}
	}
}

// waitForEvents blocks until the store holds n events or times out.
// Persistence happens after the stream closes, so tests poll briefly.
func waitForEvents(t *testing.T, events *fakeEventStore, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if len(events.all()) >= n {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("expected %d event(s), got %d", n, len(events.all()))
}

func TestRunStreamsAndPersistsTranscript(t *testing.T) {
	proc := newFakeProcess()
	proc.output <- "Hello"
	proc.output <- ", world"
	close(proc.output)
	close(proc.diagnostics)

	events := newFakeEventStore()
	orch := NewChatOrchestrator(&fakeLauncher{proc: proc}, events)

	stream, err := orch.Run(context.Background(), "greet me", "s-1", time.Minute)
	require.NoError(t, err)

	fragments := drain(t, stream)
	assert.Equal(t, []string{"Hello", ", world"}, fragments)

	waitForEvents(t, events, 1)
	all := events.all()
	require.Len(t, all, 1)
	assert.Equal(t, "Hello, world", all[0].Body)
	assert.Equal(t, "chat_response", all[0].Type)
	assert.Equal(t, "s-1", all[0].ThreadID)
	assert.Equal(t, outcomeCompleted, all[0].Metadata["outcome"])
}

func TestRunSpawnFailureSynthesizesResponse(t *testing.T) {
	events := newFakeEventStore()
	orch := NewChatOrchestrator(&fakeLauncher{launchErr: errors.New("binary not found")}, events)

	stream, err := orch.Run(context.Background(), "hello", "s-1", time.Minute)
	require.NoError(t, err)

	fragments := drain(t, stream)
	require.Len(t, fragments, 1)
	assert.Equal(t, fallbackUnavailable, fragments[0])

	waitForEvents(t, events, 1)
	all := events.all()
	require.Len(t, all, 1)
	assert.Equal(t, outcomeUnavailable, all[0].Metadata["outcome"])
}

func TestRunProcessErrorWithNoOutput(t *testing.T) {
	proc := newFakeProcess()
	proc.waitErr = errors.New("exit status 1")
	close(proc.output)
	close(proc.diagnostics)

	events := newFakeEventStore()
	orch := NewChatOrchestrator(&fakeLauncher{proc: proc}, events)

	stream, err := orch.Run(context.Background(), "hello", "s-1", time.Minute)
	require.NoError(t, err)

	fragments := drain(t, stream)
	require.Len(t, fragments, 1)
	assert.Equal(t, fallbackErrored, fragments[0])

	waitForEvents(t, events, 1)
	assert.Equal(t, outcomeError, events.all()[0].Metadata["outcome"])
}

func TestRunProcessErrorAfterPartialOutput(t *testing.T) {
	proc := newFakeProcess()
	proc.output <- "partial "
	proc.output <- "thought"
	proc.waitErr = errors.New("exit status 2")
	close(proc.output)
	close(proc.diagnostics)

	events := newFakeEventStore()
	orch := NewChatOrchestrator(&fakeLauncher{proc: proc}, events)

	stream, err := orch.Run(context.Background(), "hello", "s-1", time.Minute)
	require.NoError(t, err)

	fragments := drain(t, stream)
	// Partial real output is the response; no fallback is appended.
	assert.Equal(t, []string{"partial ", "thought"}, fragments)

	waitForEvents(t, events, 1)
	all := events.all()
	assert.Equal(t, "partial thought", all[0].Body)
	assert.Equal(t, outcomeError, all[0].Metadata["outcome"])
}

func TestRunCleanExitWithNoOutput(t *testing.T) {
	proc := newFakeProcess()
	close(proc.output)
	close(proc.diagnostics)

	events := newFakeEventStore()
	orch := NewChatOrchestrator(&fakeLauncher{proc: proc}, events)

	stream, err := orch.Run(context.Background(), "hello", "s-1", time.Minute)
	require.NoError(t, err)

	fragments := drain(t, stream)
	require.Len(t, fragments, 1)
	assert.Equal(t, fallbackEmpty, fragments[0])

	waitForEvents(t, events, 1)
	assert.Equal(t, outcomeCompleted, events.all()[0].Metadata["outcome"])
}

func TestRunTimeoutPersistsPartialAsCompletion(t *testing.T) {
	proc := newFakeProcess()
	proc.output <- "started thinking"
	// Output channel stays open: the process hangs.
	close(proc.diagnostics)

	events := newFakeEventStore()
	orch := NewChatOrchestrator(&fakeLauncher{proc: proc}, events)

	start := time.Now()
	stream, err := orch.Run(context.Background(), "hello", "s-1", 200*time.Millisecond)
	require.NoError(t, err)

	fragments := drain(t, stream)
	elapsed := time.Since(start)

	assert.Equal(t, []string{"started thinking"}, fragments)
	assert.Less(t, elapsed, 2*time.Second, "timeout must bound the stream")

	select {
	case <-proc.killed:
	case <-time.After(time.Second):
		t.Fatal("process was not killed on timeout")
	}

	waitForEvents(t, events, 1)
	all := events.all()
	require.Len(t, all, 1)
	assert.Equal(t, "started thinking", all[0].Body)
	assert.Equal(t, outcomeTimeout, all[0].Metadata["outcome"])
}

func TestRunCallerCancellationKillsProcess(t *testing.T) {
	proc := newFakeProcess()
	proc.output <- "one"
	close(proc.diagnostics)

	events := newFakeEventStore()
	orch := NewChatOrchestrator(&fakeLauncher{proc: proc}, events)

	ctx, cancel := context.WithCancel(context.Background())
	stream, err := orch.Run(ctx, "hello", "s-1", time.Minute)
	require.NoError(t, err)

	first := <-stream
	assert.Equal(t, "one", first)
	cancel()

	drain(t, stream)

	select {
	case <-proc.killed:
	case <-time.After(time.Second):
		t.Fatal("process was not killed on cancellation")
	}

	// Accumulated output is still flushed to the event log.
	waitForEvents(t, events, 1)
	all := events.all()
	assert.Equal(t, "one", all[0].Body)
	assert.Equal(t, outcomeCancelled, all[0].Metadata["outcome"])
}

func TestRunRefusesConcurrentSameSession(t *testing.T) {
	proc := newFakeProcess()
	proc.output <- "thinking"
	// Output stays open: the first invocation is still in flight.
	close(proc.diagnostics)

	events := newFakeEventStore()
	launcher := &fakeLauncher{proc: proc}
	orch := NewChatOrchestrator(launcher, events)

	ctx, cancel := context.WithCancel(context.Background())
	stream, err := orch.Run(ctx, "first", "s-1", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, "thinking", <-stream)

	_, err = orch.Run(ctx, "second", "s-1", time.Minute)
	assert.ErrorIs(t, err, domain.ErrSessionBusy)

	// A different session is not blocked by s-1's invocation.
	other := newFakeProcess()
	close(other.output)
	close(other.diagnostics)
	launcher.setProc(other)

	stream2, err := orch.Run(context.Background(), "elsewhere", "s-2", time.Minute)
	require.NoError(t, err)
	drain(t, stream2)

	// Winding down the first invocation frees the slot again.
	cancel()
	drain(t, stream)

	third := newFakeProcess()
	close(third.output)
	close(third.diagnostics)
	launcher.setProc(third)

	deadline := time.Now().Add(2 * time.Second)
	for {
		stream3, err := orch.Run(context.Background(), "again", "s-1", time.Minute)
		if err == nil {
			drain(t, stream3)
			break
		}
		require.ErrorIs(t, err, domain.ErrSessionBusy)
		require.True(t, time.Now().Before(deadline), "session slot never released")
		time.Sleep(5 * time.Millisecond)
	}
}

func TestRunRejectsEmptyPrompt(t *testing.T) {
	orch := NewChatOrchestrator(&fakeLauncher{}, newFakeEventStore())
	_, err := orch.Run(context.Background(), "", "s-1", time.Minute)
	assert.Error(t, err)
}

func TestRunDiagnosticsNeverReachTranscript(t *testing.T) {
	proc := newFakeProcess()
	proc.diagnostics <- "loading model weights"
	proc.output <- "answer"
	close(proc.output)
	close(proc.diagnostics)

	events := newFakeEventStore()
	orch := NewChatOrchestrator(&fakeLauncher{proc: proc}, events)

	stream, err := orch.Run(context.Background(), "hello", "s-1", time.Minute)
	require.NoError(t, err)
	drain(t, stream)

	waitForEvents(t, events, 1)
	body := events.all()[0].Body
	assert.Equal(t, "answer", body)
	assert.False(t, strings.Contains(body, "loading model weights"))
}
