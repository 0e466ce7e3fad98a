package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jmcrae/wrangler/internal/checklist"
	"github.com/jmcrae/wrangler/internal/config"
	"github.com/jmcrae/wrangler/internal/logging"
	"github.com/jmcrae/wrangler/internal/scheduler"
	"github.com/jmcrae/wrangler/internal/session"
	"github.com/jmcrae/wrangler/internal/worktree"
)

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Fan the checklist out to parallel workers in git worktrees",
	Long: `Batch runs each pending task in its own git worktree on its own
branch, bounded by the configured parallelism. Group annotations on tasks
run as sequential batches. Clean branches merge back into the target
branch in task order; conflicted branches are preserved for manual
resolution.`,
	RunE: runBatch,
}

func init() {
	batchCmd.Flags().Int("parallel", 0, "max concurrent jobs (overrides config)")
	batchCmd.Flags().Bool("skip-merge", false, "leave all branches unmerged for manual review")
	_ = viper.BindPFlag("scheduler.max_parallel", batchCmd.Flags().Lookup("parallel"))
	_ = viper.BindPFlag("scheduler.skip_merge", batchCmd.Flags().Lookup("skip-merge"))
	rootCmd.AddCommand(batchCmd)
}

func runBatch(cmd *cobra.Command, args []string) error {
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

	logger, err := logging.New(sess.Dir, "batch", cfg.Logging.Level)
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
	trees := worktree.NewManagerWithExecutor(repoRoot, worktree.NewCLICommandExecutor())
	git := worktree.NewGit(repoRoot)

	runner := &scheduler.ControllerRunner{
		Worker:     cfg.Worker,
		Loop:       cfg.Loop,
		Signals:    cfg.Signals,
		Backoff:    cfg.Backoff,
		SessionDir: sess.Dir,
		LogLevel:   cfg.Logging.Level,
	}

	sched := scheduler.New(
		cfg.Scheduler, store, trees, git, runner,
		resolvePath(repoRoot, cfg.Paths.WorkspaceDir), logger,
	)

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	report, err := sched.Run(ctx)
	if report != nil {
		printReport(report)
	}
	return err
}

func printReport(report *scheduler.Report) {
	for _, batch := range report.Batches {
		label := "ungrouped"
		if batch.Group != nil {
			label = fmt.Sprintf("group %d", *batch.Group)
		}
		fmt.Println(headerStyle.Render(label))
		for _, job := range batch.Jobs {
			line := fmt.Sprintf("  %-10s %s", job.Task.ID, job.Outcome())
			switch job.Outcome() {
			case scheduler.OutcomeSuccess:
				fmt.Println(successStyle.Render(line))
			case scheduler.OutcomeError:
				fmt.Println(errorStyle.Render(line))
				if err := job.Err(); err != nil {
					fmt.Println(mutedStyle.Render("    " + err.Error()))
				}
			default:
				fmt.Println(mutedStyle.Render(line))
			}
		}
	}
	fmt.Printf("\nmerged %d, conflicted %d\n", report.Merged(), report.Conflicted())
}
