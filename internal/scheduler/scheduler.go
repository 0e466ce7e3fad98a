// Package scheduler fans tasks out to parallel workers, each in an
// isolated git worktree on its own branch, then merges the surviving
// branches back single-threaded. Batches follow the checklist's group
// annotations and run strictly in order, merge phase included.
package scheduler

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/jmcrae/wrangler/internal/checklist"
	"github.com/jmcrae/wrangler/internal/config"
	"github.com/jmcrae/wrangler/internal/errors"
	"github.com/jmcrae/wrangler/internal/logging"
	"github.com/jmcrae/wrangler/internal/loop"
	"github.com/jmcrae/wrangler/internal/worktree"
)

// JobRunner executes one task inside its prepared workspace and reports
// the controller's verdict. Production wiring uses ControllerRunner;
// tests inject scripted runners.
type JobRunner interface {
	Run(ctx context.Context, task checklist.Task, workspacePath string) (*loop.Result, error)
}

// JobRunnerFunc adapts a function to JobRunner.
type JobRunnerFunc func(ctx context.Context, task checklist.Task, workspacePath string) (*loop.Result, error)

// Run implements JobRunner.
func (f JobRunnerFunc) Run(ctx context.Context, task checklist.Task, workspacePath string) (*loop.Result, error) {
	return f(ctx, task, workspacePath)
}

// Scheduler runs checklist tasks in parallel batches.
type Scheduler struct {
	cfg    config.SchedulerConfig
	store  *checklist.Store
	trees  *worktree.Manager
	git    *worktree.Git
	runner JobRunner
	logger *logging.Logger

	// workspaceDir is where per-job worktrees are created.
	workspaceDir string
}

// New creates a Scheduler. The store, worktree manager, git client, and
// runner are required.
func New(cfg config.SchedulerConfig, store *checklist.Store, trees *worktree.Manager, git *worktree.Git, runner JobRunner, workspaceDir string, logger *logging.Logger) *Scheduler {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Scheduler{
		cfg:          cfg,
		store:        store,
		trees:        trees,
		git:          git,
		runner:       runner,
		logger:       logger,
		workspaceDir: workspaceDir,
	}
}

// Run executes every pending task batch by batch and returns the merge
// report. Groups run strictly sequentially; within a group up to
// MaxParallel jobs run at once, and every job reaches a terminal state
// before the group's merge phase starts.
func (s *Scheduler) Run(ctx context.Context) (*Report, error) {
	current, err := s.git.CurrentBranch(s.git.RepoDir())
	if err != nil {
		return nil, err
	}
	target := s.cfg.TargetBranch
	if target == "" {
		target = current
	} else if target != current {
		// Merges land on whatever is checked out in the repo dir, so a
		// configured target must be checked out before any batch runs.
		if err := s.git.Checkout(target); err != nil {
			return nil, err
		}
	}

	groups, hasUngrouped, err := s.store.Groups()
	if err != nil {
		return nil, err
	}

	report := &Report{}
	for _, g := range groups {
		g := g
		batch, err := s.runBatch(ctx, &g, target)
		if err != nil {
			return report, err
		}
		report.Batches = append(report.Batches, *batch)
	}
	if hasUngrouped {
		batch, err := s.runBatch(ctx, nil, target)
		if err != nil {
			return report, err
		}
		report.Batches = append(report.Batches, *batch)
	}
	return report, nil
}

// runBatch executes one group's pending tasks and merges the results.
func (s *Scheduler) runBatch(ctx context.Context, group *int, target string) (*BatchReport, error) {
	tasks, err := s.store.GroupTasks(group)
	if err != nil {
		return nil, err
	}

	var jobs []*Job
	for _, t := range tasks {
		if !t.IsPending() {
			continue
		}
		jobs = append(jobs, &Job{
			Task:          t,
			WorkspacePath: filepath.Join(s.workspaceDir, t.ID),
			BranchName:    fmt.Sprintf("%s/%s", s.cfg.BranchPrefix, t.ID),
			status:        StatusWaiting,
		})
	}

	batch := &BatchReport{Group: group, Jobs: jobs}
	if len(jobs) == 0 {
		return batch, nil
	}

	if group != nil {
		s.logger.Info("starting batch", "group", *group, "jobs", len(jobs))
	} else {
		s.logger.Info("starting batch", "group", "ungrouped", "jobs", len(jobs))
	}

	s.runJobs(ctx, jobs, target)

	if err := ctx.Err(); err != nil {
		return batch, err
	}

	s.mergePhase(batch, target)
	s.cleanupWorkspaces(jobs)
	return batch, nil
}

// runJobs fans the batch out under the parallelism semaphore and blocks
// until every job is terminal.
func (s *Scheduler) runJobs(ctx context.Context, jobs []*Job, target string) {
	sem := make(chan struct{}, s.cfg.MaxParallel)
	var wg sync.WaitGroup

	for _, job := range jobs {
		wg.Add(1)
		go func(job *Job) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				job.finish(OutcomeError, ctx.Err())
				return
			}

			s.runJob(ctx, job, target)
		}(job)
	}
	wg.Wait()
}

// runJob prepares one job's worktree, runs it, and classifies the
// outcome: error, success (commits produced), or no_change.
func (s *Scheduler) runJob(ctx context.Context, job *Job, target string) {
	job.setRunning()
	s.logger.Info("job started", "task", job.Task.ID, "branch", job.BranchName)

	if err := s.trees.AddFromBranch(job.WorkspacePath, job.BranchName, target); err != nil {
		job.finish(OutcomeError, err)
		s.logger.Error("job workspace creation failed", "task", job.Task.ID, "error", err.Error())
		return
	}

	res, err := s.runner.Run(ctx, job.Task, job.WorkspacePath)
	if err != nil {
		job.finish(OutcomeError, err)
		s.logger.Error("job failed", "task", job.Task.ID, "error", err.Error())
		return
	}
	if res.Status != loop.StatusComplete {
		job.finish(OutcomeError, res.Err)
		s.logger.Warn("job did not complete", "task", job.Task.ID, "status", string(res.Status))
		return
	}

	produced, err := s.git.HasCommitsBeyond(job.WorkspacePath, target)
	if err != nil {
		job.finish(OutcomeError, err)
		return
	}
	if !produced {
		job.finish(OutcomeNoChange, nil)
		s.logger.Warn("job finished without commits", "task", job.Task.ID)
		return
	}

	job.finish(OutcomeSuccess, nil)
	s.logger.Info("job succeeded", "task", job.Task.ID)
}

// mergePhase merges success branches into the target single-threaded, in
// batch task order. A conflict rolls the target back and preserves the
// branch; a clean merge deletes it. After a clean merge the scheduler —
// never the job — marks the task complete.
func (s *Scheduler) mergePhase(batch *BatchReport, target string) {
	for _, job := range batch.Jobs {
		if job.Outcome() != OutcomeSuccess {
			batch.Unmerged++
			continue
		}
		if s.cfg.SkipMerge {
			batch.Unmerged++
			continue
		}

		err := s.git.MergeBranch(job.BranchName, target)
		if err != nil {
			var mcErr *errors.MergeConflictError
			if errors.As(err, &mcErr) {
				batch.Conflicted++
				s.logger.Warn("merge conflict, branch preserved", "task", job.Task.ID, "branch", job.BranchName)
				continue
			}
			batch.Unmerged++
			s.logger.Error("merge failed", "task", job.Task.ID, "error", err.Error())
			continue
		}

		batch.Merged++
		s.logger.Info("branch merged", "task", job.Task.ID, "branch", job.BranchName)

		if err := s.store.MarkComplete(job.Task.ID); err != nil {
			s.logger.Error("failed to mark task complete", "task", job.Task.ID, "error", err.Error())
		}
	}
}

// cleanupWorkspaces removes each job's worktree unless it holds
// uncommitted changes, then deletes branches with nothing left to offer:
// cleanly merged ones and no-change ones. Conflicted and failed branches
// stay for inspection. Branch deletion requires the worktree gone first.
func (s *Scheduler) cleanupWorkspaces(jobs []*Job) {
	for _, job := range jobs {
		dirty, err := s.git.HasUncommittedChanges(job.WorkspacePath)
		if err == nil && dirty {
			s.logger.Warn("workspace preserved: uncommitted changes", "task", job.Task.ID, "path", job.WorkspacePath)
			continue
		}
		if err := s.trees.Remove(job.WorkspacePath); err != nil {
			s.logger.Warn("workspace removal failed", "task", job.Task.ID, "error", err.Error())
			continue
		}

		switch job.Outcome() {
		case OutcomeNoChange:
			// Identical to the base: nothing to lose.
			_ = s.git.DeleteBranch(job.BranchName)
		case OutcomeSuccess:
			if !s.cfg.SkipMerge {
				s.deleteIfFullyMerged(job)
			}
		}
	}
}

// deleteIfFullyMerged deletes the job's branch only when every commit on
// it is reachable from the target's HEAD; a conflicted branch still
// carries unmerged work and is preserved.
func (s *Scheduler) deleteIfFullyMerged(job *Job) {
	ahead, err := s.git.CountCommitsBetween(s.git.RepoDir(), "HEAD", job.BranchName)
	if err != nil || ahead > 0 {
		return
	}
	_ = s.git.DeleteBranch(job.BranchName)
}
