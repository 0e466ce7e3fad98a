package logging

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func readLogLines(t *testing.T, path string) []map[string]any {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open log: %v", err)
	}
	defer f.Close()

	var entries []map[string]any
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var entry map[string]any
		if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
			t.Fatalf("malformed log line %q: %v", scanner.Text(), err)
		}
		entries = append(entries, entry)
	}
	return entries
}

func TestLoggerWritesJSON(t *testing.T) {
	dir := t.TempDir()
	logger, err := New(dir, "debug.log", LevelInfo)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	logger.Info("worker started", "pid", 1234)
	if err := logger.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	entries := readLogLines(t, filepath.Join(dir, "debug.log"))
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries[0]["msg"] != "worker started" {
		t.Errorf("msg = %v", entries[0]["msg"])
	}
	if entries[0]["pid"] != float64(1234) {
		t.Errorf("pid = %v", entries[0]["pid"])
	}
}

func TestLoggerLevelFiltering(t *testing.T) {
	dir := t.TempDir()
	logger, err := New(dir, "debug.log", LevelWarn)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	logger.Debug("dropped")
	logger.Info("dropped too")
	logger.Warn("kept")
	logger.Error("also kept")
	logger.Close()

	entries := readLogLines(t, filepath.Join(dir, "debug.log"))
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
}

func TestChildLoggerAttributes(t *testing.T) {
	dir := t.TempDir()
	logger, err := New(dir, "debug.log", LevelInfo)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	child := logger.WithSession("sess-1").WithJob("job-7").WithIteration(3)
	child.Info("iteration complete")
	logger.Close()

	entries := readLogLines(t, filepath.Join(dir, "debug.log"))
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	e := entries[0]
	if e["session_id"] != "sess-1" || e["job_id"] != "job-7" || e["iteration"] != float64(3) {
		t.Errorf("missing child attributes: %v", e)
	}
}

func TestAppendAcrossReopens(t *testing.T) {
	dir := t.TempDir()

	for i := 0; i < 2; i++ {
		logger, err := New(dir, "debug.log", LevelInfo)
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		logger.Info("run")
		logger.Close()
	}

	entries := readLogLines(t, filepath.Join(dir, "debug.log"))
	if len(entries) != 2 {
		t.Fatalf("expected log to append across reopens, got %d entries", len(entries))
	}
}

func TestForJobSeparateFiles(t *testing.T) {
	dir := t.TempDir()

	a, err := ForJob(dir, "job-a", LevelInfo)
	if err != nil {
		t.Fatalf("ForJob: %v", err)
	}
	b, err := ForJob(dir, "job-b", LevelInfo)
	if err != nil {
		t.Fatalf("ForJob: %v", err)
	}
	a.Info("from a")
	b.Info("from b")
	a.Close()
	b.Close()

	aEntries := readLogLines(t, filepath.Join(dir, "jobs", "job-a.log"))
	bEntries := readLogLines(t, filepath.Join(dir, "jobs", "job-b.log"))
	if len(aEntries) != 1 || len(bEntries) != 1 {
		t.Fatalf("expected one entry per job file, got %d and %d", len(aEntries), len(bEntries))
	}
	if aEntries[0]["job_id"] != "job-a" {
		t.Errorf("job-a log missing job_id attr: %v", aEntries[0])
	}
}

func TestNopLoggerDoesNotPanic(t *testing.T) {
	logger := Nop()
	logger.Info("discarded", "k", "v")
	if err := logger.Close(); err != nil {
		t.Errorf("Close on nop logger: %v", err)
	}
}
