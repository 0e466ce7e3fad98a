// Package worker launches one agent process per iteration and turns its
// line-oriented stdout into decoded events. The process runs in its own
// process group so teardown can take the whole tree down: first a
// graceful signal, then a forced kill after the grace period.
package worker

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"time"

	"github.com/jmcrae/wrangler/internal/errors"
	"github.com/jmcrae/wrangler/internal/stream"
)

// maxLineSize bounds a single event line. Oversized lines are treated as
// malformed rather than growing the buffer without limit.
const maxLineSize = 4 * 1024 * 1024

// Config describes how to launch one worker process.
type Config struct {
	// Command is the agent binary to run.
	Command string
	// Args are its arguments, including the prompt.
	Args []string
	// Dir is the working directory (the job's workspace).
	Dir string
	// Env is the process environment; nil inherits the parent's.
	Env []string
	// Stderr receives the process's stderr; nil discards it.
	Stderr io.Writer
	// KillGrace is how long Stop waits after the graceful signal before
	// force-killing the process group.
	KillGrace time.Duration
	// OnMalformed is invoked for each stdout line that fails to decode.
	// May be nil.
	OnMalformed func(line []byte)
}

// Worker supervises one agent process.
type Worker struct {
	cfg Config

	mu      sync.Mutex
	cmd     *exec.Cmd
	started bool

	events  chan stream.Event
	done    chan struct{}
	waitErr error
}

// New creates a Worker. Nothing runs until Start.
func New(cfg Config) *Worker {
	return &Worker{
		cfg:    cfg,
		events: make(chan stream.Event, 64),
		done:   make(chan struct{}),
	}
}

// Start launches the process in its own process group and begins decoding
// its stdout. The returned error covers launch failures only; runtime
// failures surface through Wait.
func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.started {
		return fmt.Errorf("worker already started")
	}

	cmd := exec.CommandContext(ctx, w.cfg.Command, w.cfg.Args...)
	cmd.Dir = w.cfg.Dir
	cmd.Env = w.cfg.Env
	if w.cfg.Stderr != nil {
		cmd.Stderr = w.cfg.Stderr
	}
	setProcessGroup(cmd)
	// Cancellation goes through Stop so the whole group dies, not just
	// the direct child.
	cmd.Cancel = func() error {
		return signalGroup(cmd.Process.Pid, killSignal)
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to open stdout pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start worker: %w", err)
	}

	w.cmd = cmd
	w.started = true

	go w.pump(stdout)
	return nil
}

// pump decodes stdout lines into events until the stream closes, then
// reaps the process.
func (w *Worker) pump(stdout io.Reader) {
	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		e, err := stream.DecodeEvent(line)
		if err != nil {
			if w.cfg.OnMalformed != nil {
				// Copy: scanner reuses its buffer.
				cp := make([]byte, len(line))
				copy(cp, line)
				w.cfg.OnMalformed(cp)
			}
			continue
		}
		w.events <- e
	}

	close(w.events)
	w.waitErr = w.cmd.Wait()
	close(w.done)
}

// Events returns the decoded event stream. The channel closes when the
// process's stdout closes.
func (w *Worker) Events() <-chan stream.Event {
	return w.events
}

// Wait blocks until the process has exited and returns its exit error.
func (w *Worker) Wait() error {
	<-w.done
	return w.waitErr
}

// PID returns the process ID, or 0 before Start.
func (w *Worker) PID() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.started || w.cmd.Process == nil {
		return 0
	}
	return w.cmd.Process.Pid
}

// Stop terminates the worker's process group: graceful signal first, then
// a forced kill once the grace period expires. It returns after the
// process has been reaped.
func (w *Worker) Stop() error {
	w.mu.Lock()
	if !w.started {
		w.mu.Unlock()
		return errors.ErrWorkerNotStarted
	}
	pid := w.cmd.Process.Pid
	w.mu.Unlock()

	select {
	case <-w.done:
		return nil // already exited
	default:
	}

	_ = signalGroup(pid, gracefulSignal)

	grace := w.cfg.KillGrace
	if grace <= 0 {
		grace = 5 * time.Second
	}
	timer := time.NewTimer(grace)
	defer timer.Stop()

	select {
	case <-w.done:
		return nil
	case <-timer.C:
	}

	_ = signalGroup(pid, killSignal)
	<-w.done
	return nil
}

// StopContext is Stop bounded by ctx: on cancellation the group is
// force-killed immediately.
func (w *Worker) StopContext(ctx context.Context) error {
	stopped := make(chan error, 1)
	go func() { stopped <- w.Stop() }()

	select {
	case err := <-stopped:
		return err
	case <-ctx.Done():
		w.mu.Lock()
		if w.started {
			_ = signalGroup(w.cmd.Process.Pid, killSignal)
		}
		w.mu.Unlock()
		return <-stopped
	}
}
