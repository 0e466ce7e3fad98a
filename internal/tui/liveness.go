// Package tui renders the liveness view: a spinner with elapsed time,
// last worker activity, and consumption counters. It is purely
// observational — it reports state and never controls the run, so killing
// it has no effect on correctness.
package tui

import (
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-isatty"

	"github.com/jmcrae/wrangler/internal/stream"
)

// IsInteractive reports whether stdout is a terminal. The liveness view
// only runs interactively; piped output gets log lines instead.
func IsInteractive() bool {
	return isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
}

// Snapshot is one observation of the running iteration, pushed into the
// view by the event loop.
type Snapshot struct {
	Iteration int
	LastEvent string
	Units     int64
	ToolCalls int64
	Warned    bool
}

// SnapshotMsg delivers a Snapshot to the view.
type SnapshotMsg Snapshot

// DoneMsg tells the view the run finished.
type DoneMsg struct {
	Status string
}

type tickMsg time.Time

// Model is the bubbletea model for the liveness view.
type Model struct {
	spinner  spinner.Model
	started  time.Time
	snapshot Snapshot
	status   string
	done     bool
}

// NewModel creates the liveness model.
func NewModel() Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = titleStyle
	return Model{spinner: sp, started: time.Now()}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, tick())
}

func tick() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			// The view is observational: quitting it does not touch the
			// run.
			return m, tea.Quit
		}

	case SnapshotMsg:
		m.snapshot = Snapshot(msg)
		return m, nil

	case DoneMsg:
		m.done = true
		m.status = msg.Status
		return m, tea.Quit

	case tickMsg:
		return m, tick()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

// View implements tea.Model.
func (m Model) View() string {
	if m.done {
		style := successStyle
		if m.status != "complete" {
			style = errorStyle
		}
		return style.Render(fmt.Sprintf("wrangler finished: %s", m.status)) + "\n"
	}

	elapsed := time.Since(m.started).Round(time.Second)
	line := fmt.Sprintf("%s iteration %d · %s elapsed · %d tool calls · %d units",
		m.spinner.View(), m.snapshot.Iteration, elapsed, m.snapshot.ToolCalls, m.snapshot.Units)

	out := titleStyle.Render("wrangler") + "  " + line + "\n"
	if m.snapshot.LastEvent != "" {
		out += mutedStyle.Render("last: "+m.snapshot.LastEvent) + "\n"
	}
	if m.snapshot.Warned {
		out += warningStyle.Render("resource budget warning: worker asked to wrap up") + "\n"
	}
	out += mutedStyle.Render("q to hide (run continues)") + "\n"
	return out
}

// DescribeEvent renders a worker event as a one-line human description
// for the view.
func DescribeEvent(e stream.Event) string {
	switch e.Kind {
	case stream.EventFileRead:
		return fmt.Sprintf("read %s (%d bytes)", e.Path, e.Size)
	case stream.EventFileWrite:
		return fmt.Sprintf("wrote %s (%d bytes)", e.Path, e.Size)
	case stream.EventShellExec:
		if e.ExitCode != 0 {
			return fmt.Sprintf("ran %s (exit %d)", e.Command, e.ExitCode)
		}
		return "ran " + e.Command
	case stream.EventAssistantText:
		return "assistant output"
	default:
		return string(e.Kind)
	}
}
