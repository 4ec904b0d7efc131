// Package exec launches the external reasoning process as a child
// process. Stdout is the response stream, stderr is diagnostics; the
// two are never mixed.
package exec

import (
	"bufio"
	"context"
	"fmt"
	"os/exec"
	"sync"

	"github.com/quorum-labs/quorum/internal/core/domain"
	"github.com/quorum-labs/quorum/internal/core/ports/driven"
)

var _ driven.ReasonerLauncher = (*Launcher)(nil)

// Config holds launcher configuration. The binary path is resolved
// once at startup; there is no per-call override.
type Config struct {
	// BinaryPath is the reasoner executable (required).
	BinaryPath string

	// Args are fixed arguments placed before the per-call flags.
	Args []string
}

// Launcher spawns one reasoner child process per invocation.
type Launcher struct {
	binary string
	args   []string
}

// NewLauncher creates a launcher for the configured binary.
func NewLauncher(cfg Config) (*Launcher, error) {
	if cfg.BinaryPath == "" {
		return nil, fmt.Errorf("reasoner binary path not configured: %w", domain.ErrReasonerUnavailable)
	}
	if _, err := exec.LookPath(cfg.BinaryPath); err != nil {
		return nil, fmt.Errorf("reasoner binary %q: %w", cfg.BinaryPath, domain.ErrReasonerUnavailable)
	}
	return &Launcher{binary: cfg.BinaryPath, args: cfg.Args}, nil
}

// Launch starts one reasoning process. The prompt goes to stdin; the
// session id is passed as a flag so the process can restore its own
// conversational context.
func (l *Launcher) Launch(ctx context.Context, req driven.ReasonerRequest) (driven.ReasonerProcess, error) {
	args := append(append([]string{}, l.args...), "--session", req.SessionID)
	cmd := exec.CommandContext(ctx, l.binary, args...)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("opening stdin: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("opening stdout: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("opening stderr: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("starting %s: %w", l.binary, err)
	}

	p := &process{
		cmd:         cmd,
		output:      make(chan string),
		diagnostics: make(chan string),
		done:        make(chan struct{}),
		waitDone:    make(chan struct{}),
	}

	go func() {
		defer stdin.Close()
		_, _ = fmt.Fprintln(stdin, req.Prompt)
	}()

	go func() {
		defer close(p.output)
		scanner := bufio.NewScanner(stdout)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			select {
			case p.output <- scanner.Text() + "\n":
			case <-p.done:
				return
			}
		}
	}()

	go func() {
		defer close(p.diagnostics)
		scanner := bufio.NewScanner(stderr)
		for scanner.Scan() {
			select {
			case p.diagnostics <- scanner.Text():
			case <-p.done:
				return
			}
		}
	}()

	go func() {
		p.waitErr = cmd.Wait()
		close(p.waitDone)
	}()

	return p, nil
}

// process wraps one running reasoner invocation.
type process struct {
	cmd         *exec.Cmd
	output      chan string
	diagnostics chan string

	// done releases the pump goroutines once the caller stops reading.
	// Without it a Kill with an unread fragment in flight would leave
	// the stdout pump blocked on its send forever.
	done     chan struct{}
	waitDone chan struct{}
	waitErr  error
	killOnce sync.Once
}

func (p *process) Output() <-chan string      { return p.output }
func (p *process) Diagnostics() <-chan string { return p.diagnostics }

// Wait blocks until the process exits.
func (p *process) Wait() error {
	<-p.waitDone
	return p.waitErr
}

// Kill terminates the process and releases the stream pumps. Safe to
// call after exit.
func (p *process) Kill() error {
	var err error
	p.killOnce.Do(func() {
		close(p.done)
		select {
		case <-p.waitDone:
			// Already exited.
		default:
			err = p.cmd.Process.Kill()
		}
	})
	return err
}
