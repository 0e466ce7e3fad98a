package worker

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jmcrae/wrangler/internal/errors"
	"github.com/jmcrae/wrangler/internal/stream"
)

func TestEventsDecodedFromStdout(t *testing.T) {
	script := `
echo '{"kind":"file_read","ts":"2026-03-01T12:00:00Z","path":"main.go","size":42}'
echo '{"kind":"shell_exec","ts":"2026-03-01T12:00:01Z","command":"go vet","exit_code":0}'
echo '{"kind":"assistant_text","ts":"2026-03-01T12:00:02Z","text":"done"}'
`
	w := New(Config{Command: "sh", Args: []string{"-c", script}, Dir: t.TempDir()})
	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	var got []stream.Event
	for e := range w.Events() {
		got = append(got, e)
	}
	if err := w.Wait(); err != nil {
		t.Fatalf("Wait: %v", err)
	}

	if len(got) != 3 {
		t.Fatalf("events = %d, want 3", len(got))
	}
	if got[0].Kind != stream.EventFileRead || got[1].Kind != stream.EventShellExec || got[2].Kind != stream.EventAssistantText {
		t.Errorf("kinds = %v %v %v", got[0].Kind, got[1].Kind, got[2].Kind)
	}
	if got[0].Size != 42 {
		t.Errorf("size = %d, want 42", got[0].Size)
	}
}

func TestMalformedLinesSkipped(t *testing.T) {
	script := `
echo 'this is not json'
echo '{"kind":"file_write","ts":"2026-03-01T12:00:00Z","path":"a.go","size":5}'
echo '{"kind":"unknown_kind"}'
`
	var mu sync.Mutex
	var malformed []string

	w := New(Config{
		Command: "sh", Args: []string{"-c", script}, Dir: t.TempDir(),
		OnMalformed: func(line []byte) {
			mu.Lock()
			malformed = append(malformed, string(line))
			mu.Unlock()
		},
	})
	if err := w.Start(context.Background()); err != nil {
		t.Fatal(err)
	}

	var got []stream.Event
	for e := range w.Events() {
		got = append(got, e)
	}
	_ = w.Wait()

	if len(got) != 1 {
		t.Fatalf("events = %d, want 1", len(got))
	}
	mu.Lock()
	defer mu.Unlock()
	if len(malformed) != 2 {
		t.Errorf("malformed = %v, want 2 lines", malformed)
	}
}

func TestWaitReturnsExitError(t *testing.T) {
	w := New(Config{Command: "sh", Args: []string{"-c", "exit 3"}, Dir: t.TempDir()})
	if err := w.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	for range w.Events() {
	}
	if err := w.Wait(); err == nil {
		t.Error("expected exit error")
	}
}

func TestStopBeforeStart(t *testing.T) {
	w := New(Config{Command: "sh"})
	if err := w.Stop(); !errors.Is(err, errors.ErrWorkerNotStarted) {
		t.Errorf("err = %v, want ErrWorkerNotStarted", err)
	}
}

func TestStopKillsProcessGroup(t *testing.T) {
	// The child ignores the graceful signal, so Stop must escalate.
	script := `trap '' TERM; while true; do sleep 1; done`
	w := New(Config{
		Command: "sh", Args: []string{"-c", script}, Dir: t.TempDir(),
		KillGrace: 200 * time.Millisecond,
	})
	if err := w.Start(context.Background()); err != nil {
		t.Fatal(err)
	}

	stopDone := make(chan error, 1)
	go func() { stopDone <- w.Stop() }()

	select {
	case err := <-stopDone:
		if err != nil {
			t.Fatalf("Stop: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Stop did not return")
	}
}

func TestStopGraceful(t *testing.T) {
	script := `while true; do sleep 1; done`
	w := New(Config{
		Command: "sh", Args: []string{"-c", script}, Dir: t.TempDir(),
		KillGrace: 5 * time.Second,
	})
	if err := w.Start(context.Background()); err != nil {
		t.Fatal(err)
	}

	start := time.Now()
	if err := w.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	// The default TERM handler exits immediately; escalation to the
	// forced kill would take the full grace period.
	if elapsed := time.Since(start); elapsed > 3*time.Second {
		t.Errorf("graceful stop took %v", elapsed)
	}
}
