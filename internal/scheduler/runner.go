package scheduler

import (
	"context"
	"os"
	"path/filepath"

	"github.com/jmcrae/wrangler/internal/checklist"
	"github.com/jmcrae/wrangler/internal/config"
	"github.com/jmcrae/wrangler/internal/logging"
	"github.com/jmcrae/wrangler/internal/loop"
	"github.com/jmcrae/wrangler/internal/session"
)

// ControllerRunner is the production JobRunner: each job gets its own
// iteration controller scoped to the job's workspace, a single-task
// instruction payload, a per-job session directory, and a per-job log
// file. Jobs never touch the shared session state or the checklist.
type ControllerRunner struct {
	Worker  config.WorkerConfig
	Loop    config.LoopConfig
	Signals config.SignalConfig
	Backoff config.BackoffConfig

	// SessionDir is the run's session directory; per-job state lives
	// under its jobs/ subdirectory.
	SessionDir string
	// LogLevel is the per-job log level.
	LogLevel string
}

// Run executes one task to a terminal verdict.
func (r *ControllerRunner) Run(ctx context.Context, task checklist.Task, workspacePath string) (*loop.Result, error) {
	jobSession, err := session.Open(filepath.Join(r.SessionDir, "jobs", task.ID))
	if err != nil {
		return nil, err
	}

	logger, err := logging.ForJob(r.SessionDir, task.ID, r.LogLevel)
	if err != nil {
		return nil, err
	}
	defer logger.Close()

	stderr, err := os.OpenFile(jobSession.ErrorsLogPath(), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	defer stderr.Close()

	launcher := &loop.ExecLauncher{
		Command:   r.Worker.Command,
		BaseArgs:  r.Worker.Args,
		Dir:       workspacePath,
		KillGrace: r.Worker.KillGrace(),
		Stderr:    stderr,
	}

	ctrl := loop.NewController(loop.ControllerConfig{
		Launcher: launcher,
		Session:  jobSession,
		Logger:   logger,
		Task:     &task,
		Model:    r.Worker.Model,
		Loop:     r.Loop,
		Signals:  r.Signals,
		Backoff:  r.Backoff,
	})
	return ctrl.Run(ctx)
}
