package session

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Iteration returns the persisted iteration counter. A missing file means
// the run has not started: iteration 0.
func (s *Session) Iteration() (int, error) {
	data, err := os.ReadFile(s.iterationPath())
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to read iteration counter: %w", err)
	}

	n, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("corrupt iteration counter %q: %w", string(data), err)
	}
	return n, nil
}

// SetIteration persists the iteration counter atomically so a crash
// mid-write cannot corrupt it.
func (s *Session) SetIteration(n int) error {
	return atomicWriteFile(s.iterationPath(), []byte(strconv.Itoa(n)), 0o644)
}

// AppendProgress appends a timestamped entry to the progress notes.
func (s *Session) AppendProgress(entry string) error {
	return appendLine(s.ProgressPath(), entry)
}

// AppendLesson appends a timestamped entry to the lessons file. Lessons
// are the only continuity carried across a rotation.
func (s *Session) AppendLesson(entry string) error {
	return appendLine(s.LessonsPath(), entry)
}

// Lessons returns the accumulated lessons content, or empty when none
// have been recorded.
func (s *Session) Lessons() (string, error) {
	data, err := os.ReadFile(s.LessonsPath())
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("failed to read lessons: %w", err)
	}
	return string(data), nil
}

// AppendActivity appends a line to the activity log.
func (s *Session) AppendActivity(line string) error {
	return appendLine(s.ActivityLogPath(), line)
}

// AppendError appends a line to the error log.
func (s *Session) AppendError(line string) error {
	return appendLine(s.ErrorsLogPath(), line)
}

// RecentErrors returns up to n trailing lines of the error log, for
// inclusion in a stuck report.
func (s *Session) RecentErrors(n int) ([]string, error) {
	data, err := os.ReadFile(s.ErrorsLogPath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read error log: %w", err)
	}

	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	if len(lines) == 1 && lines[0] == "" {
		return nil, nil
	}
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return lines, nil
}

// WriteReview overwrites the review verdict file. Each review pass
// replaces the previous verdict entirely.
func (s *Session) WriteReview(content string) error {
	return atomicWriteFile(s.ReviewPath(), []byte(content), 0o644)
}

// Review returns the current review verdict content, or empty when no
// review has run yet.
func (s *Session) Review() (string, error) {
	data, err := os.ReadFile(s.ReviewPath())
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("failed to read review: %w", err)
	}
	return string(data), nil
}

// appendLine appends a timestamped line to path, creating the file on
// first use.
func appendLine(path, line string) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", filepath.Base(path), err)
	}
	defer f.Close()

	entry := fmt.Sprintf("[%s] %s\n", time.Now().UTC().Format(time.RFC3339), strings.TrimRight(line, "\n"))
	if _, err := f.WriteString(entry); err != nil {
		return fmt.Errorf("failed to append to %s: %w", filepath.Base(path), err)
	}
	return nil
}

// atomicWriteFile writes data to path via a temp file and rename so
// readers never observe a partial write.
func atomicWriteFile(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)

	tmpFile, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmpFile.Write(data); err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Chmod(tmpPath, perm); err != nil {
		return fmt.Errorf("failed to set permissions: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	success = true
	return nil
}
