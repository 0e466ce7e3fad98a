package worktree

import (
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/jmcrae/wrangler/internal/errors"
)

// initTestRepo creates a real git repository with one initial commit on
// main and returns its path.
func initTestRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	run := func(args ...string) {
		t.Helper()
		cmd := exec.Command("git", args...)
		cmd.Dir = dir
		if out, err := cmd.CombinedOutput(); err != nil {
			t.Fatalf("git %v: %v\n%s", args, err, out)
		}
	}

	run("init")
	run("checkout", "-b", "main")
	run("config", "user.email", "test@example.com")
	run("config", "user.name", "Test User")

	if err := os.WriteFile(filepath.Join(dir, "README.md"), []byte("# test\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	run("add", "-A")
	run("commit", "-m", "initial commit")

	return dir
}

// commitFile writes content to name in dir and commits it.
func commitFile(t *testing.T, dir, name, content, message string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	for _, args := range [][]string{{"add", "-A"}, {"commit", "-m", message}} {
		cmd := exec.Command("git", args...)
		cmd.Dir = dir
		if out, err := cmd.CombinedOutput(); err != nil {
			t.Fatalf("git %v: %v\n%s", args, err, out)
		}
	}
}

func TestFindGitRoot(t *testing.T) {
	repo := initTestRepo(t)

	sub := filepath.Join(repo, "a", "b")
	if err := os.MkdirAll(sub, 0o755); err != nil {
		t.Fatal(err)
	}

	root, err := FindGitRoot(sub)
	if err != nil {
		t.Fatalf("FindGitRoot: %v", err)
	}
	if root != repo {
		t.Errorf("root = %s, want %s", root, repo)
	}
}

func TestFindGitRootNotARepo(t *testing.T) {
	if _, err := FindGitRoot(t.TempDir()); err == nil {
		t.Error("expected error outside a repository")
	}
}

func TestAddFromBranchAndList(t *testing.T) {
	repo := initTestRepo(t)
	m, err := NewManager(repo)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	wtPath := filepath.Join(t.TempDir(), "job-1")
	if err := m.AddFromBranch(wtPath, "wrangler/job-1", "main"); err != nil {
		t.Fatalf("AddFromBranch: %v", err)
	}

	g := NewGit(repo)
	branch, err := g.CurrentBranch(wtPath)
	if err != nil {
		t.Fatalf("CurrentBranch: %v", err)
	}
	if branch != "wrangler/job-1" {
		t.Errorf("branch = %s, want wrangler/job-1", branch)
	}

	list, err := m.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 2 {
		t.Errorf("worktrees = %v, want primary plus one", list)
	}
}

func TestRemoveWorktree(t *testing.T) {
	repo := initTestRepo(t)
	m, err := NewManager(repo)
	if err != nil {
		t.Fatal(err)
	}

	wtPath := filepath.Join(t.TempDir(), "job-rm")
	if err := m.AddFromBranch(wtPath, "wrangler/job-rm", "main"); err != nil {
		t.Fatal(err)
	}
	if err := m.Remove(wtPath); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, err := os.Stat(wtPath); !os.IsNotExist(err) {
		t.Error("worktree directory still exists after Remove")
	}
}

func TestMergeBranchClean(t *testing.T) {
	repo := initTestRepo(t)
	m, _ := NewManager(repo)
	g := NewGit(repo)

	wtPath := filepath.Join(t.TempDir(), "job-merge")
	if err := m.AddFromBranch(wtPath, "wrangler/job-merge", "main"); err != nil {
		t.Fatal(err)
	}
	commitFile(t, wtPath, "feature.txt", "feature work\n", "add feature")

	if err := g.MergeBranch("wrangler/job-merge", "main"); err != nil {
		t.Fatalf("MergeBranch: %v", err)
	}
	if _, err := os.Stat(filepath.Join(repo, "feature.txt")); err != nil {
		t.Error("merged file missing from main checkout")
	}

	if err := g.DeleteBranch("wrangler/job-merge"); err == nil {
		// Branch deletion can only succeed after the worktree is gone.
		t.Log("branch deleted while worktree attached")
	}
	if err := m.Remove(wtPath); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if err := g.DeleteBranch("wrangler/job-merge"); err != nil {
		t.Fatalf("DeleteBranch after removal: %v", err)
	}
}

func TestMergeBranchConflict(t *testing.T) {
	repo := initTestRepo(t)
	m, _ := NewManager(repo)
	g := NewGit(repo)

	wtPath := filepath.Join(t.TempDir(), "job-conflict")
	if err := m.AddFromBranch(wtPath, "wrangler/job-conflict", "main"); err != nil {
		t.Fatal(err)
	}

	// Same file, divergent content on both sides.
	commitFile(t, wtPath, "shared.txt", "worker version\n", "worker edit")
	commitFile(t, repo, "shared.txt", "main version\n", "main edit")

	err := g.MergeBranch("wrangler/job-conflict", "main")
	var mcErr *errors.MergeConflictError
	if !errors.As(err, &mcErr) {
		t.Fatalf("err = %v, want MergeConflictError", err)
	}
	if mcErr.Branch != "wrangler/job-conflict" || mcErr.Target != "main" {
		t.Errorf("conflict error = %+v", mcErr)
	}

	// The merge must be rolled back: main stays clean and the branch is
	// preserved for manual resolution.
	dirty, err := g.HasUncommittedChanges(repo)
	if err != nil {
		t.Fatal(err)
	}
	if dirty {
		t.Error("target left dirty after aborted merge")
	}
	if err := g.executor.RunQuiet(repo, "git", "rev-parse", "--verify", "wrangler/job-conflict"); err != nil {
		t.Error("conflicted branch was deleted")
	}
}

func TestCountCommitsBetween(t *testing.T) {
	repo := initTestRepo(t)
	m, _ := NewManager(repo)
	g := NewGit(repo)

	wtPath := filepath.Join(t.TempDir(), "job-count")
	if err := m.AddFromBranch(wtPath, "wrangler/job-count", "main"); err != nil {
		t.Fatal(err)
	}

	count, err := g.CountCommitsBetween(wtPath, "main", "HEAD")
	if err != nil {
		t.Fatal(err)
	}
	if count != 0 {
		t.Errorf("fresh branch count = %d, want 0", count)
	}

	commitFile(t, wtPath, "one.txt", "1\n", "first")
	commitFile(t, wtPath, "two.txt", "2\n", "second")

	count, err = g.CountCommitsBetween(wtPath, "main", "HEAD")
	if err != nil {
		t.Fatal(err)
	}
	if count != 2 {
		t.Errorf("count = %d, want 2", count)
	}

	beyond, err := g.HasCommitsBeyond(wtPath, "main")
	if err != nil {
		t.Fatal(err)
	}
	if !beyond {
		t.Error("HasCommitsBeyond = false, want true")
	}
}

func TestHasUncommittedChanges(t *testing.T) {
	repo := initTestRepo(t)
	g := NewGit(repo)

	dirty, err := g.HasUncommittedChanges(repo)
	if err != nil {
		t.Fatal(err)
	}
	if dirty {
		t.Error("fresh repo reported dirty")
	}

	if err := os.WriteFile(filepath.Join(repo, "wip.txt"), []byte("wip\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	dirty, err = g.HasUncommittedChanges(repo)
	if err != nil {
		t.Fatal(err)
	}
	if !dirty {
		t.Error("untracked file not reported")
	}
}

func TestCommitAllNothingToCommit(t *testing.T) {
	repo := initTestRepo(t)
	g := NewGit(repo)

	if err := g.CommitAll(repo, "empty"); err != nil {
		t.Errorf("CommitAll with clean tree: %v", err)
	}
}

func TestFindMainBranch(t *testing.T) {
	repo := initTestRepo(t)
	g := NewGit(repo)
	if got := g.FindMainBranch(); got != "main" {
		t.Errorf("FindMainBranch = %s, want main", got)
	}
}
