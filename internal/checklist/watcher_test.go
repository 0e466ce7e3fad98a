package checklist

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestWatcherInvalidatesOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "PLAN.md")
	if err := os.WriteFile(path, []byte("- [ ] a\n"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	store := NewStore(path)
	if _, err := store.Tasks(); err != nil {
		t.Fatalf("Tasks: %v", err)
	}

	w, err := NewWatcher(store)
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	w.Start()
	defer w.Stop()

	if err := os.WriteFile(path, []byte("- [ ] a\n- [ ] b\n"), 0644); err != nil {
		t.Fatalf("rewrite: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		store.mu.Lock()
		loaded := store.loaded
		store.mu.Unlock()
		if !loaded {
			return // invalidated
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("watcher never invalidated the cache")
}

func TestWatcherIgnoresSiblingFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "PLAN.md")
	if err := os.WriteFile(path, []byte("- [ ] a\n"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	store := NewStore(path)
	if _, err := store.Tasks(); err != nil {
		t.Fatalf("Tasks: %v", err)
	}

	w, err := NewWatcher(store)
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	w.Start()
	defer w.Stop()

	if err := os.WriteFile(filepath.Join(dir, "NOTES.md"), []byte("x"), 0644); err != nil {
		t.Fatalf("write sibling: %v", err)
	}

	time.Sleep(200 * time.Millisecond)
	store.mu.Lock()
	loaded := store.loaded
	store.mu.Unlock()
	if !loaded {
		t.Error("sibling file write invalidated the cache")
	}
}
