package checklist

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jmcrae/wrangler/internal/errors"
)

// Store is the file-backed task store. Parsed state is cached keyed by the
// source file's modification time; every access re-checks the mtime and
// re-parses on mismatch, so callers never observe stale state.
//
// The store's persisted index is not safe for uncoordinated concurrent
// writers. In parallel mode all checklist mutations go through the
// orchestrator after a job succeeds, never through the job itself.
type Store struct {
	mu   sync.Mutex
	path string

	// reverseUngrouped schedules unannotated tasks before annotated
	// groups instead of after.
	reverseUngrouped bool

	// indexPath, when set, persists the parsed result keyed by mtime.
	indexPath string

	cached []Task
	mtime  time.Time
	loaded bool
}

// Option configures a Store.
type Option func(*Store)

// WithReverseUngrouped schedules unannotated tasks before all annotated
// groups instead of after them.
func WithReverseUngrouped() Option {
	return func(s *Store) { s.reverseUngrouped = true }
}

// WithIndexPath persists the parsed task index to the given path, keyed by
// the source file's modification time, so a fresh process can skip
// re-parsing an unchanged document.
func WithIndexPath(path string) Option {
	return func(s *Store) { s.indexPath = path }
}

// NewStore creates a Store for the checklist document at path.
func NewStore(path string, opts ...Option) *Store {
	s := &Store{path: path}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Path returns the checklist document path.
func (s *Store) Path() string { return s.path }

// Tasks returns the current task records in document order, re-parsing the
// source if its modification time changed since the last read.
func (s *Store) Tasks() ([]Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureFresh(); err != nil {
		return nil, err
	}
	out := make([]Task, len(s.cached))
	copy(out, s.cached)
	return out, nil
}

// ensureFresh reloads the cache when the source mtime no longer matches.
// Freshness is never assumed: the stat happens on every access.
func (s *Store) ensureFresh() error {
	info, err := os.Stat(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", errors.ErrChecklistNotFound, s.path)
		}
		return fmt.Errorf("failed to stat checklist: %w", err)
	}

	if s.loaded && info.ModTime().Equal(s.mtime) {
		return nil
	}

	// A fresh process may find a persisted index matching the current
	// mtime; the index is always reproducible by re-parsing, so a miss or
	// a corrupt file just falls through to the parser.
	if !s.loaded && s.indexPath != "" {
		if tasks, ok := readIndex(s.indexPath, info.ModTime()); ok {
			s.cached = tasks
			s.mtime = info.ModTime()
			s.loaded = true
			return nil
		}
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		return fmt.Errorf("failed to read checklist: %w", err)
	}

	s.cached = Parse(string(data))
	s.mtime = info.ModTime()
	s.loaded = true

	if s.indexPath != "" {
		// Best effort: the cache must always be reproducible by
		// re-parsing, so a failed write is not an error.
		_ = writeIndex(s.indexPath, s.mtime, s.cached)
	}
	return nil
}

// Invalidate drops the in-memory cache so the next access re-parses. Used
// by the file watcher; correctness never depends on it because every access
// re-checks the mtime anyway.
func (s *Store) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loaded = false
}

// NextPending returns the next task to work on, or nil when none remain.
// Annotated groups are scheduled lowest first; unannotated tasks come after
// all annotated groups unless the store was built with WithReverseUngrouped.
// Within a group, document order is preserved.
func (s *Store) NextPending() (*Task, error) {
	tasks, err := s.Tasks()
	if err != nil {
		return nil, err
	}

	pending := make([]Task, 0, len(tasks))
	for _, t := range tasks {
		if t.IsPending() {
			pending = append(pending, t)
		}
	}
	if len(pending) == 0 {
		return nil, nil
	}

	sort.SliceStable(pending, func(i, j int) bool {
		return s.groupRank(pending[i]) < s.groupRank(pending[j])
	})
	next := pending[0]
	return &next, nil
}

// groupRank maps a task to its scheduling rank. Unannotated tasks rank
// after every annotated group (or before, when reversed).
func (s *Store) groupRank(t Task) int {
	if t.Group == nil {
		if s.reverseUngrouped {
			return -1
		}
		return int(^uint(0) >> 1) // max int
	}
	return *t.Group
}

// Groups returns the distinct annotated group numbers in ascending order,
// plus a flag for whether unannotated tasks exist.
func (s *Store) Groups() ([]int, bool, error) {
	tasks, err := s.Tasks()
	if err != nil {
		return nil, false, err
	}

	seen := make(map[int]bool)
	hasUngrouped := false
	for _, t := range tasks {
		if t.Group == nil {
			hasUngrouped = true
			continue
		}
		seen[*t.Group] = true
	}

	groups := make([]int, 0, len(seen))
	for g := range seen {
		groups = append(groups, g)
	}
	sort.Ints(groups)
	return groups, hasUngrouped, nil
}

// GroupTasks returns the pending tasks of one annotated group (or the
// unannotated tasks when group is nil) in document order.
func (s *Store) GroupTasks(group *int) ([]Task, error) {
	tasks, err := s.Tasks()
	if err != nil {
		return nil, err
	}

	var out []Task
	for _, t := range tasks {
		if !t.IsPending() {
			continue
		}
		switch {
		case group == nil && t.Group == nil:
			out = append(out, t)
		case group != nil && t.Group != nil && *t.Group == *group:
			out = append(out, t)
		}
	}
	return out, nil
}

// RemainingCount returns the number of pending tasks.
func (s *Store) RemainingCount() (int, error) {
	tasks, err := s.Tasks()
	if err != nil {
		return 0, err
	}
	count := 0
	for _, t := range tasks {
		if t.IsPending() {
			count++
		}
	}
	return count, nil
}

// Progress returns completed and total task counts.
func (s *Store) Progress() (done, total int, err error) {
	tasks, err := s.Tasks()
	if err != nil {
		return 0, 0, err
	}
	for _, t := range tasks {
		total++
		if !t.IsPending() {
			done++
		}
	}
	return done, total, nil
}

// MarkComplete flips the identified task's checkbox from unchecked to
// checked, rewriting only that line. Marking an already-complete task is
// idempotent: no error, no mutation. An ID that does not refer to a
// checkbox list item fails with ErrInvalidTaskID, never a silent no-op.
func (s *Store) MarkComplete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureFresh(); err != nil {
		return err
	}

	var target *Task
	for i := range s.cached {
		if s.cached[i].ID == id {
			target = &s.cached[i]
			break
		}
	}
	if target == nil {
		return fmt.Errorf("%w: %s", errors.ErrInvalidTaskID, id)
	}
	if target.Status == StatusComplete {
		return nil
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		return fmt.Errorf("failed to read checklist: %w", err)
	}
	lines := strings.Split(string(data), "\n")
	if target.Line > len(lines) {
		return fmt.Errorf("%w: %s (line %d beyond document)", errors.ErrInvalidTaskID, id, target.Line)
	}

	line := lines[target.Line-1]
	if !taskLineRe.MatchString(line) {
		return fmt.Errorf("%w: %s (no checkbox item at line %d)", errors.ErrInvalidTaskID, id, target.Line)
	}

	// Flip exactly the checkbox marker, leaving the rest of the line
	// byte-for-byte intact.
	flipped := strings.Replace(line, "[ ]", "[x]", 1)
	if flipped == line {
		return fmt.Errorf("%w: %s (checkbox not in unchecked state)", errors.ErrInvalidTaskID, id)
	}
	lines[target.Line-1] = flipped

	if err := os.WriteFile(s.path, []byte(strings.Join(lines, "\n")), 0644); err != nil {
		return fmt.Errorf("failed to write checklist: %w", err)
	}

	// Force a re-parse on next access; the file's mtime has moved.
	s.loaded = false
	return nil
}
