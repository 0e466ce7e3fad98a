// Package checklist turns a markdown checklist document into an ordered,
// cacheable work queue. A checked box in the document is the sole
// authoritative completion signal for a task.
package checklist

import "fmt"

// Status is the completion state of a task.
type Status string

const (
	// StatusPending means the checkbox is unchecked.
	StatusPending Status = "pending"
	// StatusComplete means the checkbox is checked.
	StatusComplete Status = "complete"
)

// Task is one checkbox list item from the checklist document.
type Task struct {
	// ID derives from the task's line position in the source document and
	// stays stable while the lines above it are unchanged.
	ID string `json:"id"`

	// Line is the 1-indexed line number of the task in the source.
	Line int `json:"line"`

	// Description is the task text with annotations stripped. Embedded
	// quotation marks and backslash sequences are preserved verbatim.
	Description string `json:"description"`

	// Status is pending or complete.
	Status Status `json:"status"`

	// Group is the explicit ordering tag from a trailing "group: N"
	// annotation; nil means unannotated, scheduled after all annotated
	// groups.
	Group *int `json:"group,omitempty"`

	// Model is the per-task model override from a trailing "model: NAME"
	// annotation, if any.
	Model string `json:"model,omitempty"`
}

// IsPending returns true if the task's checkbox is unchecked.
func (t Task) IsPending() bool { return t.Status == StatusPending }

// taskID builds the positional ID for a task at the given 1-indexed line.
func taskID(line int) string {
	return fmt.Sprintf("task-%d", line)
}
