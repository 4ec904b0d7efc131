package exec

import (
	"context"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quorum-labs/quorum/internal/core/domain"
	"github.com/quorum-labs/quorum/internal/core/ports/driven"
)

func TestNewLauncherValidatesBinary(t *testing.T) {
	_, err := NewLauncher(Config{})
	assert.ErrorIs(t, err, domain.ErrReasonerUnavailable)

	_, err = NewLauncher(Config{BinaryPath: "/does/not/exist"})
	assert.ErrorIs(t, err, domain.ErrReasonerUnavailable)
}

func TestLaunchStreamsStdout(t *testing.T) {
	// cat echoes the prompt line back on stdout.
	launcher, err := NewLauncher(Config{BinaryPath: "/bin/sh", Args: []string{"-c", "cat", "--"}})
	require.NoError(t, err)

	proc, err := launcher.Launch(context.Background(), driven.ReasonerRequest{
		Prompt:    "hello reasoner",
		SessionID: "s-1",
	})
	require.NoError(t, err)

	var out strings.Builder
	for fragment := range proc.Output() {
		out.WriteString(fragment)
	}
	for range proc.Diagnostics() {
	}

	assert.Equal(t, "hello reasoner\n", out.String())
	assert.NoError(t, proc.Wait())
}

func TestLaunchSeparatesDiagnostics(t *testing.T) {
	launcher, err := NewLauncher(Config{
		BinaryPath: "/bin/sh",
		Args:       []string{"-c", `echo "answer"; echo "debug info" >&2`, "--"},
	})
	require.NoError(t, err)

	proc, err := launcher.Launch(context.Background(), driven.ReasonerRequest{Prompt: "q", SessionID: "s-1"})
	require.NoError(t, err)

	var out, diag strings.Builder
	done := make(chan struct{})
	go func() {
		for line := range proc.Diagnostics() {
			diag.WriteString(line)
		}
		close(done)
	}()
	for fragment := range proc.Output() {
		out.WriteString(fragment)
	}
	<-done

	assert.Equal(t, "answer\n", out.String())
	assert.Equal(t, "debug info", diag.String())
	assert.NoError(t, proc.Wait())
}

func TestLaunchNonZeroExit(t *testing.T) {
	launcher, err := NewLauncher(Config{
		BinaryPath: "/bin/sh",
		Args:       []string{"-c", "exit 3", "--"},
	})
	require.NoError(t, err)

	proc, err := launcher.Launch(context.Background(), driven.ReasonerRequest{Prompt: "q", SessionID: "s-1"})
	require.NoError(t, err)

	for range proc.Output() {
	}
	assert.Error(t, proc.Wait())
}

func TestKillTerminatesProcess(t *testing.T) {
	launcher, err := NewLauncher(Config{
		BinaryPath: "/bin/sh",
		Args:       []string{"-c", "sleep 30", "--"},
	})
	require.NoError(t, err)

	proc, err := launcher.Launch(context.Background(), driven.ReasonerRequest{Prompt: "q", SessionID: "s-1"})
	require.NoError(t, err)

	require.NoError(t, proc.Kill())

	done := make(chan error, 1)
	go func() { done <- proc.Wait() }()
	select {
	case err := <-done:
		assert.Error(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("process did not exit after kill")
	}

	// Safe to call again after exit.
	assert.NoError(t, proc.Kill())
}

func TestKillUnblocksAbandonedStreamPumps(t *testing.T) {
	// An endless talker: the stdout pump is always mid-send when the
	// caller walks away.
	launcher, err := NewLauncher(Config{
		BinaryPath: "/bin/sh",
		Args:       []string{"-c", "while :; do echo x; done", "--"},
	})
	require.NoError(t, err)

	before := runtime.NumGoroutine()

	for i := 0; i < 30; i++ {
		proc, err := launcher.Launch(context.Background(), driven.ReasonerRequest{Prompt: "q", SessionID: "s-1"})
		require.NoError(t, err)

		// Read a single fragment, then abandon the stream entirely.
		select {
		case <-proc.Output():
		case <-time.After(5 * time.Second):
			t.Fatal("no output from endless talker")
		}
		require.NoError(t, proc.Kill())

		done := make(chan error, 1)
		go func() { done <- proc.Wait() }()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Fatal("process did not exit after kill")
		}
	}

	// The pumps unwind asynchronously after the kill; poll briefly.
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if runtime.NumGoroutine() <= before+5 {
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatalf("stream pumps leaked: %d goroutines before, %d after", before, runtime.NumGoroutine())
}

func TestContextCancellationStopsProcess(t *testing.T) {
	launcher, err := NewLauncher(Config{
		BinaryPath: "/bin/sh",
		Args:       []string{"-c", "sleep 30", "--"},
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	proc, err := launcher.Launch(ctx, driven.ReasonerRequest{Prompt: "q", SessionID: "s-1"})
	require.NoError(t, err)

	cancel()

	done := make(chan error, 1)
	go func() { done <- proc.Wait() }()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("process did not exit after context cancellation")
	}
}
