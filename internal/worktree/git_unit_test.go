package worktree

import (
	"fmt"
	"strings"
	"testing"

	"github.com/jmcrae/wrangler/internal/errors"
)

// mockExecutor records commands and replays scripted responses keyed by
// the joined command line.
type mockExecutor struct {
	calls     []string
	responses map[string]mockResponse
}

type mockResponse struct {
	output []byte
	err    error
}

func newMockExecutor() *mockExecutor {
	return &mockExecutor{responses: make(map[string]mockResponse)}
}

func (m *mockExecutor) stub(cmdline string, output string, err error) {
	m.responses[cmdline] = mockResponse{output: []byte(output), err: err}
}

func (m *mockExecutor) Run(dir string, name string, args ...string) ([]byte, error) {
	cmdline := name + " " + strings.Join(args, " ")
	m.calls = append(m.calls, cmdline)
	if resp, ok := m.responses[cmdline]; ok {
		return resp.output, resp.err
	}
	return nil, nil
}

func (m *mockExecutor) RunQuiet(dir string, name string, args ...string) error {
	_, err := m.Run(dir, name, args...)
	return err
}

func (m *mockExecutor) called(cmdline string) bool {
	for _, c := range m.calls {
		if c == cmdline {
			return true
		}
	}
	return false
}

func TestMergeBranchAbortsOnConflict(t *testing.T) {
	exec := newMockExecutor()
	exec.stub("git merge --no-ff wrangler/task-3 -m Merge branch 'wrangler/task-3'",
		"CONFLICT (content): Merge conflict in main.go\nAutomatic merge failed; fix conflicts and then commit the result.",
		fmt.Errorf("exit status 1"))

	g := NewGitWithExecutor("/repo", exec)
	err := g.MergeBranch("wrangler/task-3", "main")

	var mcErr *errors.MergeConflictError
	if !errors.As(err, &mcErr) {
		t.Fatalf("err = %v, want MergeConflictError", err)
	}
	if !exec.called("git merge --abort") {
		t.Error("conflicted merge was not aborted")
	}
}

func TestMergeBranchNonConflictFailure(t *testing.T) {
	exec := newMockExecutor()
	exec.stub("git merge --no-ff wrangler/task-4 -m Merge branch 'wrangler/task-4'",
		"fatal: refusing to merge unrelated histories",
		fmt.Errorf("exit status 128"))

	g := NewGitWithExecutor("/repo", exec)
	err := g.MergeBranch("wrangler/task-4", "main")

	var gitErr *errors.GitError
	if !errors.As(err, &gitErr) {
		t.Fatalf("err = %v, want GitError", err)
	}
	if exec.called("git merge --abort") {
		t.Error("non-conflict failure should not abort")
	}
}

func TestRemoveFallsBackToPrune(t *testing.T) {
	exec := newMockExecutor()
	exec.stub("git worktree remove --force /ws/job-9",
		"fatal: validation failed", fmt.Errorf("exit status 128"))

	m := NewManagerWithExecutor("/repo", exec)
	if err := m.Remove("/ws/job-9"); err == nil {
		t.Fatal("expected error from failed removal")
	}
	if !exec.called("git worktree prune") {
		t.Error("failed removal should prune stale references")
	}
}

func TestListParsesPorcelain(t *testing.T) {
	exec := newMockExecutor()
	exec.stub("git worktree list --porcelain",
		"worktree /repo\nHEAD abc123\nbranch refs/heads/main\n\nworktree /ws/job-1\nHEAD def456\nbranch refs/heads/wrangler/task-1\n", nil)

	m := NewManagerWithExecutor("/repo", exec)
	list, err := m.List()
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"/repo", "/ws/job-1"}
	if len(list) != len(want) {
		t.Fatalf("list = %v, want %v", list, want)
	}
	for i := range want {
		if list[i] != want[i] {
			t.Errorf("list[%d] = %s, want %s", i, list[i], want[i])
		}
	}
}

func TestCountCommitsBetweenParseFailure(t *testing.T) {
	exec := newMockExecutor()
	exec.stub("git rev-list --count main..HEAD", "not-a-number", nil)

	g := NewGitWithExecutor("/repo", exec)
	if _, err := g.CountCommitsBetween("/repo", "main", "HEAD"); err == nil {
		t.Error("expected parse error")
	}
}
