package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jmcrae/wrangler/internal/checklist"
	"github.com/jmcrae/wrangler/internal/config"
	"github.com/jmcrae/wrangler/internal/session"
	"github.com/jmcrae/wrangler/internal/worktree"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show checklist progress and session state",
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
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

	sessionDir := resolvePath(repoRoot, cfg.Paths.SessionDir)
	store := checklist.NewStore(checklistPath)
	if _, err := os.Stat(sessionDir); err == nil {
		store = checklist.NewStore(checklistPath,
			checklist.WithIndexPath(filepath.Join(sessionDir, "tasks.index.json")))
	}

	done, total, err := store.Progress()
	if err != nil {
		return err
	}

	fmt.Println(headerStyle.Render("checklist ") + mutedStyle.Render(checklistPath))
	fmt.Printf("  %d / %d tasks complete\n", done, total)
	if next, err := store.NextPending(); err == nil && next != nil {
		fmt.Printf("  next: %s %s\n", next.ID, next.Description)
	}

	printSessionStatus(sessionDir)
	return nil
}

func printSessionStatus(sessionDir string) {
	if _, err := os.Stat(sessionDir); err != nil {
		fmt.Println(mutedStyle.Render("no session yet"))
		return
	}

	sess, err := session.Open(sessionDir)
	if err != nil {
		fmt.Println(errorStyle.Render("session unreadable: " + err.Error()))
		return
	}

	fmt.Println(headerStyle.Render("session ") + mutedStyle.Render(sess.ID))
	if iter, err := sess.Iteration(); err == nil {
		fmt.Printf("  iteration: %d\n", iter)
	}

	if lock, err := session.ReadLock(filepath.Join(sessionDir, session.LockFileName)); err == nil {
		fmt.Printf("  locked by pid %d on %s since %s\n",
			lock.PID, lock.Hostname, lock.StartedAt.Format(time.RFC3339))
	}

	// The task index is derived state; report whether it is present so a
	// stale-looking run is easy to diagnose.
	if info, err := os.Stat(sess.TaskIndexPath()); err == nil {
		fmt.Printf("  task index: cached %s\n", info.ModTime().Format(time.RFC3339))
	} else {
		fmt.Println("  task index: not cached")
	}
}
