// Package session owns the on-disk session directory: the durable state
// that lets an interrupted run resume where it left off. Everything a
// worker or the controller needs to persist between iterations lives
// here: the iteration counter, progress and lessons notes, activity and
// error logs, and the review verdict.
package session

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// File names within a session directory.
const (
	iterationFile = "iteration"
	progressFile  = "progress.md"
	lessonsFile   = "lessons.md"
	activityFile  = "activity.log"
	errorsFile    = "errors.log"
	reviewFile    = "review.md"
	indexFile     = "tasks.index.json"
	jobsDirName   = "jobs"
)

// Session is one orchestrator run's durable state directory.
type Session struct {
	// ID uniquely identifies the run. It survives resume: an existing
	// directory keeps its recorded ID.
	ID string
	// Dir is the session directory root.
	Dir string
}

// Open creates or reopens the session directory at dir. A fresh directory
// gets a new ID; an existing one keeps the ID recorded on first open, so
// logs from resumed runs correlate.
func Open(dir string) (*Session, error) {
	if err := os.MkdirAll(filepath.Join(dir, jobsDirName), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create session directory: %w", err)
	}

	idPath := filepath.Join(dir, "session.id")
	if data, err := os.ReadFile(idPath); err == nil && len(data) > 0 {
		return &Session{ID: string(data), Dir: dir}, nil
	}

	id := uuid.NewString()
	if err := atomicWriteFile(idPath, []byte(id), 0o644); err != nil {
		return nil, fmt.Errorf("failed to record session id: %w", err)
	}
	return &Session{ID: id, Dir: dir}, nil
}

// ProgressPath returns the path of the append-only progress notes file.
func (s *Session) ProgressPath() string { return filepath.Join(s.Dir, progressFile) }

// LessonsPath returns the path of the append-only lessons file carried
// into every fresh iteration's prompt.
func (s *Session) LessonsPath() string { return filepath.Join(s.Dir, lessonsFile) }

// ActivityLogPath returns the path of the activity log.
func (s *Session) ActivityLogPath() string { return filepath.Join(s.Dir, activityFile) }

// ErrorsLogPath returns the path of the error log.
func (s *Session) ErrorsLogPath() string { return filepath.Join(s.Dir, errorsFile) }

// ReviewPath returns the path of the review verdict file, overwritten on
// each review pass.
func (s *Session) ReviewPath() string { return filepath.Join(s.Dir, reviewFile) }

// TaskIndexPath returns the path of the persisted checklist parse index.
func (s *Session) TaskIndexPath() string { return filepath.Join(s.Dir, indexFile) }

// JobsDir returns the directory holding per-job logs.
func (s *Session) JobsDir() string { return filepath.Join(s.Dir, jobsDirName) }

func (s *Session) iterationPath() string { return filepath.Join(s.Dir, iterationFile) }
