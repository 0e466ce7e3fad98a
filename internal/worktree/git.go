package worktree

import (
	"strconv"
	"strings"

	"github.com/jmcrae/wrangler/internal/errors"
)

// Git wraps the repository-level git operations the orchestrator needs:
// branch inspection, merging worker branches back, and cleanup. All
// operations shell out to the git CLI through a CommandExecutor.
type Git struct {
	repoDir  string
	executor CommandExecutor
}

// NewGit creates a Git bound to the given repository directory.
func NewGit(repoDir string) *Git {
	return &Git{repoDir: repoDir, executor: NewCLICommandExecutor()}
}

// NewGitWithExecutor creates a Git with a custom executor, for tests.
func NewGitWithExecutor(repoDir string, executor CommandExecutor) *Git {
	return &Git{repoDir: repoDir, executor: executor}
}

// RepoDir returns the repository directory this Git operates on.
func (g *Git) RepoDir() string { return g.repoDir }

// CurrentBranch returns the checked-out branch name for a worktree path.
func (g *Git) CurrentBranch(path string) (string, error) {
	output, err := g.executor.Run(path, "git", "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		return "", errors.NewGitError("failed to get current branch", err).
			WithRepository(path).
			WithGitOutput(string(output))
	}
	return strings.TrimSpace(string(output)), nil
}

// HasUncommittedChanges returns true if the worktree at path has staged or
// unstaged changes.
func (g *Git) HasUncommittedChanges(path string) (bool, error) {
	output, err := g.executor.Run(path, "git", "status", "--porcelain")
	if err != nil {
		return false, errors.NewGitError("failed to check git status", err).
			WithRepository(path).
			WithGitOutput(string(output))
	}
	return len(strings.TrimSpace(string(output))) > 0, nil
}

// CommitAll stages and commits everything in the worktree at path.
// Returns nil when there is nothing to commit.
func (g *Git) CommitAll(path, message string) error {
	output, err := g.executor.Run(path, "git", "add", "-A")
	if err != nil {
		return errors.NewGitError("failed to stage changes", err).
			WithRepository(path).
			WithGitOutput(string(output))
	}

	output, err = g.executor.Run(path, "git", "commit", "-m", message)
	if err != nil {
		if strings.Contains(string(output), "nothing to commit") {
			return nil
		}
		return errors.NewGitError("failed to commit changes", err).
			WithRepository(path).
			WithGitOutput(string(output))
	}
	return nil
}

// Checkout switches the repository to the named branch.
func (g *Git) Checkout(branch string) error {
	output, err := g.executor.Run(g.repoDir, "git", "checkout", branch)
	if err != nil {
		return errors.NewGitError("failed to checkout branch", err).
			WithRepository(g.repoDir).
			WithBranch(branch).
			WithGitOutput(string(output))
	}
	return nil
}

// MergeBranch merges branch into the branch currently checked out in the
// repository directory. On conflict the merge is aborted so the target is
// left clean, and a MergeConflictError naming the branch is returned; the
// branch itself is preserved for manual resolution.
func (g *Git) MergeBranch(branch, target string) error {
	output, err := g.executor.Run(g.repoDir, "git", "merge", "--no-ff", branch,
		"-m", "Merge branch '"+branch+"'")
	if err != nil {
		outputStr := string(output)
		if strings.Contains(outputStr, "CONFLICT") || strings.Contains(outputStr, "Automatic merge failed") {
			// Roll back so the target branch stays clean for the rest of
			// the batch.
			_, _ = g.executor.Run(g.repoDir, "git", "merge", "--abort")
			return errors.NewMergeConflictError(branch, target, outputStr)
		}
		return errors.NewGitError("failed to merge branch", err).
			WithRepository(g.repoDir).
			WithBranch(branch).
			WithGitOutput(outputStr)
	}
	return nil
}

// DeleteBranch force-deletes a local branch.
func (g *Git) DeleteBranch(branch string) error {
	output, err := g.executor.Run(g.repoDir, "git", "branch", "-D", branch)
	if err != nil {
		return errors.NewGitError("failed to delete branch", err).
			WithRepository(g.repoDir).
			WithBranch(branch).
			WithGitOutput(string(output))
	}
	return nil
}

// CountCommitsBetween returns the number of commits reachable from head
// but not from base.
func (g *Git) CountCommitsBetween(path, base, head string) (int, error) {
	output, err := g.executor.Run(path, "git", "rev-list", "--count", base+".."+head)
	if err != nil {
		return 0, errors.NewGitError("failed to count commits", err).
			WithRepository(path).
			WithBranch(base + ".." + head).
			WithGitOutput(string(output))
	}

	count, err := strconv.Atoi(strings.TrimSpace(string(output)))
	if err != nil {
		return 0, errors.NewGitError("failed to parse commit count", err).
			WithRepository(path)
	}
	return count, nil
}

// HasCommitsBeyond returns true if the worktree's HEAD has commits that
// base does not.
func (g *Git) HasCommitsBeyond(path, base string) (bool, error) {
	count, err := g.CountCommitsBetween(path, base, "HEAD")
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// ConflictingFiles returns the files currently in conflict in a worktree.
func (g *Git) ConflictingFiles(path string) ([]string, error) {
	output, err := g.executor.Run(path, "git", "diff", "--name-only", "--diff-filter=U")
	if err != nil {
		return nil, errors.NewGitError("failed to list conflicting files", err).
			WithRepository(path).
			WithGitOutput(string(output))
	}

	lines := strings.TrimSpace(string(output))
	if lines == "" {
		return []string{}, nil
	}
	return strings.Split(lines, "\n"), nil
}

// FindMainBranch returns the repository's main branch name (main or
// master).
func (g *Git) FindMainBranch() string {
	if err := g.executor.RunQuiet(g.repoDir, "git", "rev-parse", "--verify", "main"); err == nil {
		return "main"
	}
	return "master"
}
