package scheduler

import (
	"sync"

	"github.com/jmcrae/wrangler/internal/checklist"
)

// JobStatus is a job's lifecycle state.
type JobStatus string

const (
	StatusWaiting JobStatus = "waiting"
	StatusRunning JobStatus = "running"
	StatusDone    JobStatus = "done"
	StatusFailed  JobStatus = "failed"
)

// Outcome is a finished job's result, separate from whether its branch
// later merged.
type Outcome string

const (
	// OutcomeSuccess means the job reached a terminal state and produced
	// commits on its branch.
	OutcomeSuccess Outcome = "success"
	// OutcomeNoChange means the job reached a terminal state without a
	// single commit.
	OutcomeNoChange Outcome = "no_change"
	// OutcomeError means the job failed or errored.
	OutcomeError Outcome = "error"
)

// Job is one task's isolated execution: its own worktree, branch, and
// iteration controller.
type Job struct {
	Task          checklist.Task
	WorkspacePath string
	BranchName    string

	mu      sync.Mutex
	status  JobStatus
	outcome Outcome
	err     error
}

// Status returns the job's current lifecycle state.
func (j *Job) Status() JobStatus {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.status
}

// Outcome returns the job's result; empty until terminal.
func (j *Job) Outcome() Outcome {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.outcome
}

// Err returns the job's failure cause, if any.
func (j *Job) Err() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.err
}

func (j *Job) setRunning() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.status = StatusRunning
}

func (j *Job) finish(outcome Outcome, err error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.outcome = outcome
	j.err = err
	if outcome == OutcomeError {
		j.status = StatusFailed
	} else {
		j.status = StatusDone
	}
}

// BatchReport summarizes one batch's merge phase.
type BatchReport struct {
	// Group is the batch's group number; nil for the ungrouped batch.
	Group *int
	// Jobs lists the batch's jobs in task order.
	Jobs []*Job
	// Merged counts branches merged cleanly into the target.
	Merged int
	// Conflicted counts branches that hit a merge conflict and were
	// preserved unmerged.
	Conflicted int
	// Unmerged counts branches left unmerged for any other reason
	// (no-change jobs, failed jobs, merge phase skipped).
	Unmerged int
}

// Report is the full run's outcome across batches.
type Report struct {
	Batches []BatchReport
}

// Merged returns the total cleanly merged branches across batches.
func (r *Report) Merged() int {
	total := 0
	for _, b := range r.Batches {
		total += b.Merged
	}
	return total
}

// Conflicted returns the total conflicted branches across batches.
func (r *Report) Conflicted() int {
	total := 0
	for _, b := range r.Batches {
		total += b.Conflicted
	}
	return total
}
