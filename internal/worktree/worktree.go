// Package worktree manages the git worktrees that isolate parallel worker
// jobs, plus the repository-level git operations needed to merge their
// branches back and clean up.
package worktree

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jmcrae/wrangler/internal/errors"
)

// Manager creates and removes the per-job worktrees. Each job gets a
// dedicated worktree on its own branch so workers never touch each other's
// files.
type Manager struct {
	repoDir  string
	executor CommandExecutor
}

// FindGitRoot walks up from startDir to the directory containing .git.
// A .git regular file (a linked worktree) counts as a root too.
func FindGitRoot(startDir string) (string, error) {
	dir := startDir
	for {
		gitPath := filepath.Join(dir, ".git")
		if info, err := os.Stat(gitPath); err == nil {
			if info.IsDir() || info.Mode().IsRegular() {
				return dir, nil
			}
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("not a git repository (or any parent up to mount point)")
		}
		dir = parent
	}
}

// NewManager creates a Manager rooted at the repository containing
// startDir.
func NewManager(startDir string) (*Manager, error) {
	gitRoot, err := FindGitRoot(startDir)
	if err != nil {
		return nil, errors.NewGitError("not a git repository", err).WithRepository(startDir)
	}
	return &Manager{repoDir: gitRoot, executor: NewCLICommandExecutor()}, nil
}

// NewManagerWithExecutor creates a Manager with a custom executor, for
// tests. The startDir is used as the repository root without validation.
func NewManagerWithExecutor(repoDir string, executor CommandExecutor) *Manager {
	return &Manager{repoDir: repoDir, executor: executor}
}

// RepoDir returns the repository root the manager operates on.
func (m *Manager) RepoDir() string { return m.repoDir }

// AddFromBranch creates a worktree at path with a new branch based on
// baseBranch. This is how each job's workspace starts: a fresh branch off
// the batch's base so jobs never share working files.
func (m *Manager) AddFromBranch(path, newBranch, baseBranch string) error {
	output, err := m.executor.Run(m.repoDir, "git", "worktree", "add", "-b", newBranch, path, baseBranch)
	if err != nil {
		return errors.NewGitError("failed to create worktree from "+baseBranch, err).
			WithRepository(m.repoDir).
			WithBranch(newBranch).
			WithGitOutput(string(output))
	}
	return nil
}

// Remove removes the worktree at path. If git refuses, the directory is
// deleted directly and stale worktree references pruned.
func (m *Manager) Remove(path string) error {
	output, err := m.executor.Run(m.repoDir, "git", "worktree", "remove", "--force", path)
	if err != nil {
		_ = os.RemoveAll(path)
		_, _ = m.executor.Run(m.repoDir, "git", "worktree", "prune")

		return errors.NewGitError("failed to remove worktree cleanly", err).
			WithRepository(m.repoDir).
			WithGitOutput(string(output))
	}
	return nil
}

// List returns the paths of all worktrees attached to the repository,
// including the primary checkout.
func (m *Manager) List() ([]string, error) {
	output, err := m.executor.Run(m.repoDir, "git", "worktree", "list", "--porcelain")
	if err != nil {
		return nil, errors.NewGitError("failed to list worktrees", err).
			WithRepository(m.repoDir).
			WithGitOutput(string(output))
	}

	var worktrees []string
	for _, line := range strings.Split(string(output), "\n") {
		if strings.HasPrefix(line, "worktree ") {
			worktrees = append(worktrees, strings.TrimPrefix(line, "worktree "))
		}
	}
	return worktrees, nil
}

// Prune drops stale worktree bookkeeping for directories that no longer
// exist.
func (m *Manager) Prune() error {
	output, err := m.executor.Run(m.repoDir, "git", "worktree", "prune")
	if err != nil {
		return errors.NewGitError("failed to prune worktrees", err).
			WithRepository(m.repoDir).
			WithGitOutput(string(output))
	}
	return nil
}
