package stream

import (
	"encoding/json"
	"fmt"
	"time"
)

// EventKind classifies a worker event. The worker contract defines exactly
// four kinds; the parser depends only on this classification, not on the
// wire encoding.
type EventKind string

const (
	// EventFileRead is a file read tool call.
	EventFileRead EventKind = "file_read"
	// EventFileWrite is a file write tool call.
	EventFileWrite EventKind = "file_write"
	// EventShellExec is a shell execution tool call with its exit status.
	EventShellExec EventKind = "shell_exec"
	// EventAssistantText is a chunk of free-form assistant output, which
	// may embed a completion or stuck sigil.
	EventAssistantText EventKind = "assistant_text"
)

// Event is one timestamped record from the worker's output stream.
type Event struct {
	Kind      EventKind `json:"kind"`
	Timestamp time.Time `json:"ts"`

	// Path and Size are set for file_read and file_write events.
	Path string `json:"path,omitempty"`
	Size int64  `json:"size,omitempty"`

	// Command, ExitCode and Output are set for shell_exec events.
	Command  string `json:"command,omitempty"`
	ExitCode int    `json:"exit_code,omitempty"`
	Output   string `json:"output,omitempty"`

	// Text is set for assistant_text events.
	Text string `json:"text,omitempty"`
}

// IsToolCall returns true for events representing tool activity. Assistant
// text alone is not activity: an iteration of nothing but prose still
// counts as no activity.
func (e Event) IsToolCall() bool {
	switch e.Kind {
	case EventFileRead, EventFileWrite, EventShellExec:
		return true
	default:
		return false
	}
}

// DecodeEvent parses one wire line (a self-describing JSON record) into an
// Event. The caller decides what to do with malformed lines; the parser
// counts and skips them.
func DecodeEvent(line []byte) (Event, error) {
	var e Event
	if err := json.Unmarshal(line, &e); err != nil {
		return Event{}, fmt.Errorf("malformed event line: %w", err)
	}
	switch e.Kind {
	case EventFileRead, EventFileWrite, EventShellExec, EventAssistantText:
		return e, nil
	default:
		return Event{}, fmt.Errorf("unknown event kind %q", e.Kind)
	}
}
