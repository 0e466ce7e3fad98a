// Package errors provides centralized error definitions and error handling
// utilities for wrangler. It defines the error taxonomy used across the
// orchestrator, error constructors with context wrapping, and error
// classification helpers.
//
// # Error Types
//
// The taxonomy distinguishes how an error must be handled:
//   - ConfigurationError: invalid configuration or a missing required tool.
//     Fatal, reported immediately, never retried.
//   - TransientError: rate limits, network failures, upstream server errors.
//     Recovered automatically through the backoff policy.
//   - StuckError: the worker made no progress despite repeated attempts.
//     Surfaced for manual intervention, never auto-recovered.
//   - NoActivityError: a worker session produced no tool activity at all.
//     Always a hard failure, never treated as success.
//   - MergeConflictError: one job's branch could not be merged. Local to
//     that job; the batch continues.
//
// # Usage
//
// Creating errors:
//
//	err := errors.NewConfigurationError("rotate threshold must exceed warn threshold", nil)
//	err := errors.NewTransientError("rate limited", baseErr).WithCommand("claude -p ...")
//
// Checking errors:
//
//	if errors.Is(err, errors.ErrInvalidTaskID) { ... }
//
//	var tErr *errors.TransientError
//	if errors.As(err, &tErr) { ... }
//
//	if errors.IsRetryable(err) { ... }
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Re-export standard library functions for convenience so callers can
// import only this package for all error handling.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	New    = errors.New
	Join   = errors.Join
)

// -----------------------------------------------------------------------------
// Sentinel Errors
// -----------------------------------------------------------------------------

// Checklist-related sentinel errors
var (
	// ErrInvalidTaskID indicates that no checkbox item exists at the
	// position a task ID refers to.
	ErrInvalidTaskID = New("invalid task id")
	// ErrChecklistNotFound indicates that the checklist document is missing.
	ErrChecklistNotFound = New("checklist not found")
)

// Worker-related sentinel errors
var (
	// ErrWorkerNotStarted indicates an operation on a worker that never launched.
	ErrWorkerNotStarted = New("worker not started")
	// ErrIterationCap indicates the configured iteration limit was reached.
	ErrIterationCap = New("iteration cap reached")
	// ErrReviewExhausted indicates the review gate rejected the work more
	// times than the configured attempt cap allows.
	ErrReviewExhausted = New("review attempts exhausted")
)

// -----------------------------------------------------------------------------
// ConfigurationError
// -----------------------------------------------------------------------------

// ConfigurationError represents invalid configuration or a missing required
// external tool. It is fatal: callers must not retry.
type ConfigurationError struct {
	// Message describes what is wrong.
	Message string
	// Field is the configuration key at fault, if any.
	Field string
	// Err is the underlying error, if any.
	Err error
}

// NewConfigurationError creates a new ConfigurationError.
func NewConfigurationError(message string, err error) *ConfigurationError {
	return &ConfigurationError{Message: message, Err: err}
}

// WithField attaches the offending configuration key.
func (e *ConfigurationError) WithField(field string) *ConfigurationError {
	e.Field = field
	return e
}

// Error implements the error interface.
func (e *ConfigurationError) Error() string {
	var sb strings.Builder
	sb.WriteString("configuration error")
	if e.Field != "" {
		fmt.Fprintf(&sb, " (%s)", e.Field)
	}
	sb.WriteString(": ")
	sb.WriteString(e.Message)
	if e.Err != nil {
		fmt.Fprintf(&sb, ": %v", e.Err)
	}
	return sb.String()
}

// Unwrap returns the underlying error.
func (e *ConfigurationError) Unwrap() error { return e.Err }

// -----------------------------------------------------------------------------
// TransientError
// -----------------------------------------------------------------------------

// TransientError represents a failure that is expected to resolve on its
// own: rate limits, quota exhaustion, network failures, upstream 5xx.
// Transient errors are recovered via the backoff policy and bounded only by
// the overall iteration cap.
type TransientError struct {
	// Message describes the failure.
	Message string
	// Command is the external command that failed, if any.
	Command string
	// Err is the underlying error, if any.
	Err error
}

// NewTransientError creates a new TransientError.
func NewTransientError(message string, err error) *TransientError {
	return &TransientError{Message: message, Err: err}
}

// WithCommand attaches the failing command for diagnostics.
func (e *TransientError) WithCommand(command string) *TransientError {
	e.Command = command
	return e
}

// Error implements the error interface.
func (e *TransientError) Error() string {
	var sb strings.Builder
	sb.WriteString("transient error: ")
	sb.WriteString(e.Message)
	if e.Command != "" {
		fmt.Fprintf(&sb, " (command: %s)", e.Command)
	}
	if e.Err != nil {
		fmt.Fprintf(&sb, ": %v", e.Err)
	}
	return sb.String()
}

// Unwrap returns the underlying error.
func (e *TransientError) Unwrap() error { return e.Err }

// -----------------------------------------------------------------------------
// StuckError
// -----------------------------------------------------------------------------

// StuckError represents a detected gutter state: repeated failures that
// indicate no progress without manual intervention. The accumulated error
// context is carried so it can be surfaced verbatim.
type StuckError struct {
	// Reason describes what tripped the detection (repeated command
	// failure, file thrashing, explicit stuck marker).
	Reason string
	// Context holds accumulated error-log lines for post-mortem.
	Context []string
}

// NewStuckError creates a new StuckError.
func NewStuckError(reason string, context []string) *StuckError {
	return &StuckError{Reason: reason, Context: context}
}

// Error implements the error interface.
func (e *StuckError) Error() string {
	if len(e.Context) == 0 {
		return fmt.Sprintf("stuck: %s", e.Reason)
	}
	return fmt.Sprintf("stuck: %s (%d error log entries)", e.Reason, len(e.Context))
}

// -----------------------------------------------------------------------------
// NoActivityError
// -----------------------------------------------------------------------------

// NoActivityError represents a worker session that finished without a
// single tool-call event. Silent non-progress is indistinguishable from
// deadlock, so this is always a hard failure.
type NoActivityError struct {
	// Iteration is the iteration number that produced no activity.
	Iteration int
}

// NewNoActivityError creates a new NoActivityError.
func NewNoActivityError(iteration int) *NoActivityError {
	return &NoActivityError{Iteration: iteration}
}

// Error implements the error interface.
func (e *NoActivityError) Error() string {
	return fmt.Sprintf("no activity: iteration %d produced zero tool-call events", e.Iteration)
}

// -----------------------------------------------------------------------------
// MergeConflictError
// -----------------------------------------------------------------------------

// MergeConflictError represents a branch that could not be merged into the
// target. It is local to one job: the merge is rolled back, the branch
// preserved, and the batch continues.
type MergeConflictError struct {
	// Branch is the branch that conflicted.
	Branch string
	// Target is the branch it was being merged into.
	Target string
	// GitOutput is the raw output from the failed merge.
	GitOutput string
}

// NewMergeConflictError creates a new MergeConflictError.
func NewMergeConflictError(branch, target, gitOutput string) *MergeConflictError {
	return &MergeConflictError{Branch: branch, Target: target, GitOutput: gitOutput}
}

// Error implements the error interface.
func (e *MergeConflictError) Error() string {
	return fmt.Sprintf("merge conflict: %s into %s", e.Branch, e.Target)
}

// -----------------------------------------------------------------------------
// GitError
// -----------------------------------------------------------------------------

// GitError represents a failed git operation with its captured output.
type GitError struct {
	// Message describes the operation that failed.
	Message string
	// Repository is the repository or worktree path.
	Repository string
	// Branch is the branch involved, if any.
	Branch string
	// GitOutput is the raw combined output from git.
	GitOutput string
	// Err is the underlying error.
	Err error
}

// NewGitError creates a new GitError.
func NewGitError(message string, err error) *GitError {
	return &GitError{Message: message, Err: err}
}

// WithRepository attaches the repository path.
func (e *GitError) WithRepository(repo string) *GitError {
	e.Repository = repo
	return e
}

// WithBranch attaches the branch name.
func (e *GitError) WithBranch(branch string) *GitError {
	e.Branch = branch
	return e
}

// WithGitOutput attaches the raw git output.
func (e *GitError) WithGitOutput(output string) *GitError {
	e.GitOutput = strings.TrimSpace(output)
	return e
}

// Error implements the error interface.
func (e *GitError) Error() string {
	var sb strings.Builder
	sb.WriteString("git error: ")
	sb.WriteString(e.Message)
	if e.Repository != "" {
		fmt.Fprintf(&sb, " (repo: %s)", e.Repository)
	}
	if e.Branch != "" {
		fmt.Fprintf(&sb, " (branch: %s)", e.Branch)
	}
	if e.Err != nil {
		fmt.Fprintf(&sb, ": %v", e.Err)
	}
	if e.GitOutput != "" {
		fmt.Fprintf(&sb, "\n%s", e.GitOutput)
	}
	return sb.String()
}

// Unwrap returns the underlying error.
func (e *GitError) Unwrap() error { return e.Err }

// -----------------------------------------------------------------------------
// Classification Helpers
// -----------------------------------------------------------------------------

// IsRetryable returns true if the error is transient and may succeed on
// retry after backoff.
func IsRetryable(err error) bool {
	var tErr *TransientError
	return As(err, &tErr)
}

// IsFatal returns true if the error must abort immediately with no retry.
func IsFatal(err error) bool {
	var cErr *ConfigurationError
	return As(err, &cErr)
}

// IsStuck returns true if the error represents a detected gutter state.
func IsStuck(err error) bool {
	var sErr *StuckError
	return As(err, &sErr)
}
