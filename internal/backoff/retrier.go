package backoff

import (
	"context"
	"fmt"
	"os/exec"
	"time"

	"github.com/jmcrae/wrangler/internal/errors"
)

// CommandExecutor runs an external command and returns its combined output.
// Injectable so tests never execute real processes.
type CommandExecutor func(ctx context.Context, name string, args ...string) ([]byte, error)

// defaultExecutor runs commands using os/exec.
var defaultExecutor CommandExecutor = func(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// Retrier executes an external command up to MaxAttempts times, sleeping
// the policy delay between attempts. Only non-zero exits are retried; the
// last error is propagated when every attempt fails. All knobs are explicit,
// there is no global state.
type Retrier struct {
	MaxAttempts int
	Base        time.Duration
	Cap         time.Duration
	Jitter      bool

	// Executor runs the command; nil means os/exec.
	Executor CommandExecutor
	// Sleep waits between attempts; nil means time.Sleep. Tests inject a
	// recording func here.
	Sleep func(time.Duration)
}

// Run executes the command, retrying on failure per the policy. The output
// of the last attempt is returned alongside the error, if any.
func (r *Retrier) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	if r.MaxAttempts < 1 {
		return nil, errors.NewConfigurationError("retrier max attempts must be at least 1", nil)
	}
	// Validate the policy up front so a misconfigured retrier fails
	// before the first attempt, not between attempts.
	if _, err := Delay(1, r.Base, r.Cap, r.Jitter); err != nil {
		return nil, err
	}

	executor := r.Executor
	if executor == nil {
		executor = defaultExecutor
	}
	sleep := r.Sleep
	if sleep == nil {
		sleep = time.Sleep
	}

	var output []byte
	var err error
	for attempt := 1; attempt <= r.MaxAttempts; attempt++ {
		output, err = executor(ctx, name, args...)
		if err == nil {
			return output, nil
		}
		if ctx.Err() != nil {
			return output, ctx.Err()
		}
		if attempt == r.MaxAttempts {
			break
		}
		d, derr := Delay(attempt, r.Base, r.Cap, r.Jitter)
		if derr != nil {
			return output, derr
		}
		sleep(d)
	}
	return output, fmt.Errorf("command failed after %d attempts: %w", r.MaxAttempts, err)
}
