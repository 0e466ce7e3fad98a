package loop

import (
	"fmt"
	"strings"

	"github.com/jmcrae/wrangler/internal/stream"
)

// PromptInput is the material assembled into one iteration's instruction
// payload.
type PromptInput struct {
	// TaskDescription is set in single-task mode; empty means the worker
	// owns the whole checklist.
	TaskDescription string
	// ChecklistPath is the checklist file the worker should read and (in
	// whole-checklist mode) update.
	ChecklistPath string
	// Lessons is the accumulated lessons file content. It is the only
	// continuity carried across a session rotation.
	Lessons string
	// LastTestFailure is the most recent recorded test failure output.
	LastTestFailure string
	// ReviewFeedback is the previous review verdict when it demanded
	// more work.
	ReviewFeedback string
	// ResourceWarning is set when the previous iteration crossed the
	// warn threshold: the worker is told to wrap up and commit.
	ResourceWarning bool
}

// BuildPrompt renders the instruction payload for one iteration. Each
// iteration starts a fresh session, so the prompt must carry everything
// the worker needs.
func BuildPrompt(in PromptInput) string {
	var b strings.Builder

	if in.TaskDescription != "" {
		fmt.Fprintf(&b, "Work on exactly this task and nothing else:\n\n%s\n\n", in.TaskDescription)
		b.WriteString("Commit your work when the task is done. Do not edit the checklist file; task completion is recorded for you.\n")
	} else {
		fmt.Fprintf(&b, "Work through the task checklist at %s, one task at a time.\n", in.ChecklistPath)
		b.WriteString("After finishing a task, mark its checkbox complete and commit before starting the next one.\n")
	}

	b.WriteString("\nProgress signals, printed on their own line when they apply:\n")
	fmt.Fprintf(&b, "- %s when every checklist item is complete\n", stream.CompletionSigil)
	fmt.Fprintf(&b, "- %s if you cannot make progress no matter what you try\n", stream.StuckSigil)

	if in.Lessons != "" {
		b.WriteString("\nLessons recorded by previous sessions; read before starting:\n")
		b.WriteString(in.Lessons)
		if !strings.HasSuffix(in.Lessons, "\n") {
			b.WriteString("\n")
		}
	}

	if in.LastTestFailure != "" {
		b.WriteString("\nThe most recent test run failed with:\n\n")
		b.WriteString(in.LastTestFailure)
		if !strings.HasSuffix(in.LastTestFailure, "\n") {
			b.WriteString("\n")
		}
	}

	if in.ReviewFeedback != "" {
		b.WriteString("\nA review of the current state found problems that must be fixed:\n\n")
		b.WriteString(in.ReviewFeedback)
		if !strings.HasSuffix(in.ReviewFeedback, "\n") {
			b.WriteString("\n")
		}
	}

	if in.ResourceWarning {
		b.WriteString("\nThis session is close to its resource budget. Finish the current piece of work, commit everything, and stop cleanly rather than starting anything new.\n")
	}

	return b.String()
}

// BuildReviewPrompt renders the instruction payload for a review pass.
// The reviewer inspects the work and must answer with exactly one of the
// two markers.
func BuildReviewPrompt(checklistPath string) string {
	var b strings.Builder
	b.WriteString("You are reviewing completed work, not continuing it. Examine the repository's current state ")
	fmt.Fprintf(&b, "against the checklist at %s.\n\n", checklistPath)
	b.WriteString("Check that every completed item is genuinely done: code present, tests passing, nothing stubbed out.\n\n")
	b.WriteString("End your review with exactly one of these markers on its own line:\n")
	fmt.Fprintf(&b, "- %s if the work is acceptable\n", stream.ReviewPassSigil)
	fmt.Fprintf(&b, "- %s followed by a list of the specific problems\n", stream.ReviewNeedsWorkSigil)
	return b.String()
}
