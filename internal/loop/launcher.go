package loop

import (
	"context"
	"io"
	"time"

	"github.com/jmcrae/wrangler/internal/stream"
	"github.com/jmcrae/wrangler/internal/worker"
)

// Handle is one running worker invocation as the controller sees it.
type Handle interface {
	// Events returns the decoded event stream; it closes when the
	// worker's stdout closes.
	Events() <-chan stream.Event
	// Wait blocks until the process has exited.
	Wait() error
	// Stop tears down the worker's process group.
	Stop() error
}

// Launcher starts worker invocations. Tests inject scripted launchers so
// the controller's decision logic runs without real processes. onMalformed
// is invoked per undecodable stdout line and may be nil.
type Launcher interface {
	Launch(ctx context.Context, prompt, model string, onMalformed func(line []byte)) (Handle, error)
}

// ExecLauncher launches the configured agent binary for each invocation.
type ExecLauncher struct {
	// Command is the agent binary.
	Command string
	// BaseArgs precede the model and prompt flags.
	BaseArgs []string
	// Dir is the workspace the worker runs in.
	Dir string
	// KillGrace is the teardown grace period.
	KillGrace time.Duration
	// Stderr receives worker stderr; nil discards it.
	Stderr io.Writer
}

// Launch starts one agent process with the prompt as its final argument.
func (l *ExecLauncher) Launch(ctx context.Context, prompt, model string, onMalformed func(line []byte)) (Handle, error) {
	args := make([]string, 0, len(l.BaseArgs)+4)
	args = append(args, l.BaseArgs...)
	if model != "" {
		args = append(args, "--model", model)
	}
	args = append(args, "-p", prompt)

	w := worker.New(worker.Config{
		Command:     l.Command,
		Args:        args,
		Dir:         l.Dir,
		Stderr:      l.Stderr,
		KillGrace:   l.KillGrace,
		OnMalformed: onMalformed,
	})
	if err := w.Start(ctx); err != nil {
		return nil, err
	}
	return w, nil
}
