package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jmcrae/wrangler/internal/checklist"
	"github.com/jmcrae/wrangler/internal/config"
	"github.com/jmcrae/wrangler/internal/doctor"
	"github.com/jmcrae/wrangler/internal/logging"
	"github.com/jmcrae/wrangler/internal/loop"
	"github.com/jmcrae/wrangler/internal/session"
	"github.com/jmcrae/wrangler/internal/tui"
	"github.com/jmcrae/wrangler/internal/worktree"
)

var runTaskID string

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the checklist sequentially in the current repository",
	Long: `Run iterates a single worker against the checklist until every item
is checked, a stuck loop is detected, or the iteration cap is hit. State
persists under the session directory, so an interrupted run resumes where
it left off.`,
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringVar(&runTaskID, "task", "", "run exactly one task by ID (e.g. task-3)")
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("failed to get current directory: %w", err)
	}
	repoRoot, err := worktree.FindGitRoot(cwd)
	if err != nil {
		return err
	}

	checklistPath := resolvePath(repoRoot, viper.GetString("checklist"))
	if _, err := os.Stat(checklistPath); err != nil {
		return fmt.Errorf("checklist not found at %s: %w", checklistPath, err)
	}

	if err := preflight(cfg, repoRoot); err != nil {
		return err
	}

	sess, err := session.Open(resolvePath(repoRoot, cfg.Paths.SessionDir))
	if err != nil {
		return err
	}

	logger, err := logging.New(sess.Dir, "run", cfg.Logging.Level)
	if err != nil {
		return err
	}
	defer logger.Close()
	logger = logger.WithSession(sess.ID)

	lock, err := session.AcquireLock(sess.Dir, sess.ID, logger)
	if err != nil {
		return err
	}
	defer func() { _ = lock.Release() }()

	store := checklist.NewStore(checklistPath, checklist.WithIndexPath(sess.TaskIndexPath()))
	watcher, err := checklist.NewWatcher(store)
	if err != nil {
		logger.Warn("checklist watcher unavailable, falling back to mtime checks", "error", err)
	} else {
		watcher.Start()
		defer watcher.Stop()
	}

	stderr, err := os.OpenFile(sess.ErrorsLogPath(), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	defer stderr.Close()

	ctrlCfg := loop.ControllerConfig{
		Launcher: &loop.ExecLauncher{
			Command:   cfg.Worker.Command,
			BaseArgs:  cfg.Worker.Args,
			Dir:       repoRoot,
			KillGrace: cfg.Worker.KillGrace(),
			Stderr:    stderr,
		},
		Store:         store,
		Session:       sess,
		Logger:        logger,
		ChecklistPath: checklistPath,
		Model:         cfg.Worker.Model,
		Loop:          cfg.Loop,
		Signals:       cfg.Signals,
		Backoff:       cfg.Backoff,
		Review:        cfg.Review,
	}

	if runTaskID != "" {
		task, err := findTask(store, runTaskID)
		if err != nil {
			return err
		}
		ctrlCfg.Task = task
		ctrlCfg.Store = nil
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	result, err := runController(ctx, ctrlCfg)
	if err != nil {
		return err
	}

	printResult(result)
	if result.Status != loop.StatusComplete {
		return result.Err
	}
	return nil
}

// runController drives the iteration controller, with a liveness view when
// stdout is a terminal.
func runController(ctx context.Context, ctrlCfg loop.ControllerConfig) (*loop.Result, error) {
	if !tui.IsInteractive() {
		return loop.NewController(ctrlCfg).Run(ctx)
	}

	program := tea.NewProgram(tui.NewModel(), tea.WithContext(ctx))
	ctrlCfg.OnProgress = func(p loop.Progress) {
		program.Send(tui.SnapshotMsg{
			Iteration: p.Iteration,
			LastEvent: tui.DescribeEvent(p.LastEvent),
			Units:     p.Units,
			ToolCalls: p.ToolCalls,
			Warned:    p.Warned,
		})
	}

	var (
		result *loop.Result
		runErr error
		done   = make(chan struct{})
	)
	go func() {
		defer close(done)
		result, runErr = loop.NewController(ctrlCfg).Run(ctx)
		status := "interrupted"
		if result != nil {
			status = string(result.Status)
		}
		program.Send(tui.DoneMsg{Status: status})
	}()

	// The view owns the terminal until the run finishes or the user hides
	// it; the controller keeps going either way.
	if _, err := program.Run(); err != nil && ctx.Err() == nil {
		return nil, err
	}
	<-done
	return result, runErr
}

// findTask resolves a --task flag against the checklist.
func findTask(store *checklist.Store, id string) (*checklist.Task, error) {
	tasks, err := store.Tasks()
	if err != nil {
		return nil, err
	}
	for i := range tasks {
		if tasks[i].ID == id {
			return &tasks[i], nil
		}
	}
	return nil, fmt.Errorf("no task %q in %s", id, store.Path())
}

// preflight runs doctor checks, printing warnings and failing on missing
// binaries.
func preflight(cfg *config.Config, workDir string) error {
	results := doctor.Run(cfg, workDir)
	for _, r := range results {
		if r.Severity == doctor.SeverityWarn {
			fmt.Println(warningStyle.Render("warning: ") + r.Detail)
		}
	}
	return doctor.Fatal(results)
}

func printResult(result *loop.Result) {
	switch result.Status {
	case loop.StatusComplete:
		fmt.Println(successStyle.Render(fmt.Sprintf("complete after %d iteration(s)", result.Iterations)))
	default:
		fmt.Println(errorStyle.Render(fmt.Sprintf("%s after %d iteration(s)", result.Status, result.Iterations)))
	}
}

func resolvePath(root, path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(root, path)
}
