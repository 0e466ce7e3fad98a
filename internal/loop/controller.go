// Package loop drives the iterate-until-done cycle: assemble an
// instruction payload, run a worker session, decide from its signals
// whether to continue, rotate, retry, finish, or fail, and persist enough
// state that a restarted controller resumes where it left off.
package loop

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jmcrae/wrangler/internal/backoff"
	"github.com/jmcrae/wrangler/internal/checklist"
	"github.com/jmcrae/wrangler/internal/config"
	"github.com/jmcrae/wrangler/internal/errors"
	"github.com/jmcrae/wrangler/internal/logging"
	"github.com/jmcrae/wrangler/internal/session"
	"github.com/jmcrae/wrangler/internal/stream"
)

// Status is the controller's final verdict.
type Status string

const (
	StatusComplete              Status = "complete"
	StatusFailedGutter          Status = "failed(gutter)"
	StatusFailedNoActivity      Status = "failed(no-activity)"
	StatusFailedReviewExhausted Status = "failed(review-exhausted)"
	StatusFailedMaxIterations   Status = "failed(max-iterations)"
)

// Result is the outcome of a controller run.
type Result struct {
	// Status is the final verdict.
	Status Status
	// Iterations is how many iterations were consumed.
	Iterations int
	// Err carries the taxonomy error for failed statuses.
	Err error
}

// ControllerConfig wires a Controller. Launcher and Session are required;
// Store is nil in single-task mode, where the completion sigil decides
// instead of the checklist.
type ControllerConfig struct {
	Launcher Launcher
	Store    *checklist.Store
	Session  *session.Session
	Logger   *logging.Logger

	// ChecklistPath is quoted in prompts so the worker can find the file.
	ChecklistPath string
	// Task switches the controller to single-task mode.
	Task *checklist.Task
	// Model is the model passed to the launcher; a Task model annotation
	// overrides it.
	Model string

	Loop    config.LoopConfig
	Signals config.SignalConfig
	Backoff config.BackoffConfig
	Review  config.ReviewConfig

	// Now and Sleep are injectable for tests; nil uses the real clock.
	Now   func() time.Time
	Sleep func(time.Duration)
	// IdlePoll is how often inactivity is checked while a worker runs.
	IdlePoll time.Duration

	// OnProgress, when set, is called after every worker event with a
	// point-in-time view of the running iteration. Used by the liveness
	// view; must not block.
	OnProgress func(Progress)
}

// Progress is a point-in-time view of a running iteration.
type Progress struct {
	Iteration int
	LastEvent stream.Event
	Units     int64
	ToolCalls int64
	Warned    bool
}

// Controller runs the iteration loop for one workspace.
type Controller struct {
	cfg ControllerConfig

	now   func() time.Time
	sleep func(time.Duration)
}

// NewController creates a Controller, filling in clock defaults.
func NewController(cfg ControllerConfig) *Controller {
	c := &Controller{cfg: cfg, now: cfg.Now, sleep: cfg.Sleep}
	if c.now == nil {
		c.now = time.Now
	}
	if c.sleep == nil {
		c.sleep = time.Sleep
	}
	if c.cfg.IdlePoll <= 0 {
		c.cfg.IdlePoll = 500 * time.Millisecond
	}
	if c.cfg.Logger == nil {
		c.cfg.Logger = logging.Nop()
	}
	return c
}

// Run drives iterations until a final verdict. The returned error covers
// infrastructure failures (context cancellation, launch errors, unreadable
// state); decision outcomes, including failures, are in the Result.
func (c *Controller) Run(ctx context.Context) (*Result, error) {
	iter, err := c.cfg.Session.Iteration()
	if err != nil {
		return nil, err
	}
	if iter > 0 {
		c.cfg.Logger.Info("resuming session", "iteration", iter)
	}

	deferAttempt := 0
	warned := false
	reviewFailures := 0
	reviewFeedback := ""

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		// The checklist is authoritative for completion: zero pending
		// items finishes the run regardless of what the worker said,
		// unless an outstanding review verdict demands more work.
		if c.cfg.Store != nil && reviewFeedback == "" {
			remaining, err := c.cfg.Store.RemainingCount()
			if err != nil {
				return nil, err
			}
			if remaining == 0 {
				passed, feedback, err := c.runReviewGate(ctx)
				if err != nil {
					return nil, err
				}
				if passed {
					_ = c.cfg.Session.AppendProgress("run complete: all checklist items done")
					return &Result{Status: StatusComplete, Iterations: iter}, nil
				}
				reviewFailures++
				if reviewFailures >= c.cfg.Review.MaxAttempts {
					_ = c.cfg.Session.AppendError("review attempts exhausted")
					return &Result{
						Status:     StatusFailedReviewExhausted,
						Iterations: iter,
						Err:        errors.ErrReviewExhausted,
					}, nil
				}
				reviewFeedback = feedback
			}
		}

		if iter >= c.cfg.Loop.MaxIterations {
			return &Result{
				Status:     StatusFailedMaxIterations,
				Iterations: iter,
				Err:        errors.ErrIterationCap,
			}, nil
		}

		iter++
		if err := c.cfg.Session.SetIteration(iter); err != nil {
			return nil, err
		}

		prompt, err := c.buildPrompt(warned, reviewFeedback)
		if err != nil {
			return nil, err
		}
		reviewFeedback = ""

		c.cfg.Logger.Info("starting iteration", "iteration", iter)
		parser, err := c.runIteration(ctx, iter, prompt)
		if err != nil {
			return nil, err
		}

		sig := parser.Terminal()
		warned = parser.Warned()
		c.recordIteration(iter, sig, parser)

		switch sig {
		case stream.SignalDefer:
			// Transient failure: back off and retry without consuming
			// the iteration.
			deferAttempt++
			delay, derr := backoff.Delay(deferAttempt, c.cfg.Backoff.Base(), c.cfg.Backoff.Cap(), c.cfg.Backoff.Jitter)
			if derr != nil {
				return nil, derr
			}
			c.cfg.Logger.Warn("transient failure, deferring", "attempt", deferAttempt, "delay", delay.String())
			c.sleep(delay)
			// The first MaxAttempts consecutive defers are free; after
			// that each retry consumes an iteration so the cap still
			// bounds a worker that never recovers.
			if deferAttempt <= c.cfg.Backoff.MaxAttempts {
				iter--
				if err := c.cfg.Session.SetIteration(iter); err != nil {
					return nil, err
				}
			}

		case stream.SignalGutter:
			stuck := errors.NewStuckError("worker made no progress", parser.StuckContext())
			_ = c.cfg.Session.AppendError(stuck.Error())
			return &Result{Status: StatusFailedGutter, Iterations: iter, Err: stuck}, nil

		case stream.SignalNoActivity:
			noAct := errors.NewNoActivityError(iter)
			_ = c.cfg.Session.AppendError(noAct.Error())
			return &Result{Status: StatusFailedNoActivity, Iterations: iter, Err: noAct}, nil

		case stream.SignalComplete:
			deferAttempt = 0
			if c.cfg.Store == nil {
				// Single-task mode: the sigil is the job's whole verdict.
				return &Result{Status: StatusComplete, Iterations: iter}, nil
			}
			// Whole-checklist mode falls through: the top of the loop
			// asks the checklist whether completion is real.

		case stream.SignalRotate, stream.SignalTimeout:
			// Fresh session next iteration; the lessons file is the only
			// continuity.
			deferAttempt = 0
			c.cfg.Logger.Info("rotating session", "signal", sig.String(), "iteration", iter)

		default:
			deferAttempt = 0
		}
	}
}

// buildPrompt assembles the next iteration's instruction payload.
func (c *Controller) buildPrompt(warned bool, reviewFeedback string) (string, error) {
	lessons, err := c.cfg.Session.Lessons()
	if err != nil {
		return "", err
	}

	in := PromptInput{
		ChecklistPath:   c.cfg.ChecklistPath,
		Lessons:         lessons,
		ReviewFeedback:  reviewFeedback,
		ResourceWarning: warned,
	}
	if c.cfg.Task != nil {
		in.TaskDescription = c.cfg.Task.Description
	}

	if failures, err := c.cfg.Session.RecentErrors(1); err == nil && len(failures) > 0 {
		in.LastTestFailure = failures[len(failures)-1]
	}
	return BuildPrompt(in), nil
}

// model returns the model for worker invocations, honoring a per-task
// annotation.
func (c *Controller) model() string {
	if c.cfg.Task != nil && c.cfg.Task.Model != "" {
		return c.cfg.Task.Model
	}
	return c.cfg.Model
}

// runIteration runs one worker session to completion: launch, feed the
// parser, terminate the process group once a terminal signal fires or the
// stream ends, and drain whatever remains.
func (c *Controller) runIteration(ctx context.Context, iter int, prompt string) (*stream.Parser, error) {
	parser := stream.NewParser(stream.ParserConfig{
		WarnUnits:     c.cfg.Signals.WarnUnits,
		RotateUnits:   c.cfg.Signals.RotateUnits,
		FailureWindow: c.cfg.Signals.FailureWindow(),
		IdleTimeout:   c.cfg.Loop.IdleTimeout(),
	}, c.now())

	handle, err := c.cfg.Launcher.Launch(ctx, prompt, c.model(), func([]byte) {
		parser.RecordMalformed()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to launch worker: %w", err)
	}

	// Stop runs in its own goroutine so the event channel keeps draining
	// while the process group is torn down.
	var stopOnce sync.Once
	stop := func() {
		stopOnce.Do(func() {
			go func() { _ = handle.Stop() }()
		})
	}

	ticker := time.NewTicker(c.cfg.IdlePoll)
	defer ticker.Stop()

	canceled := false
	events := handle.Events()
	for events != nil {
		select {
		case e, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			for _, sig := range parser.Observe(e) {
				c.cfg.Logger.Debug("signal", "signal", sig.String())
				if sig.IsTerminal() {
					stop()
				}
			}
			if c.cfg.OnProgress != nil {
				c.cfg.OnProgress(Progress{
					Iteration: iter,
					LastEvent: e,
					Units:     parser.Counters().Units(),
					ToolCalls: parser.Counters().ToolCalls,
					Warned:    parser.Warned(),
				})
			}

		case <-ticker.C:
			if parser.CheckIdle(c.now()) == stream.SignalTimeout {
				c.cfg.Logger.Warn("worker idle past timeout, terminating")
				stop()
			}

		case <-ctx.Done():
			canceled = true
			stop()
		}
	}

	stop()
	_ = handle.Wait()

	if canceled {
		return nil, ctx.Err()
	}

	parser.Finish()
	return parser, nil
}

// recordIteration appends the iteration's outcome to the activity log.
func (c *Controller) recordIteration(iter int, sig stream.Signal, parser *stream.Parser) {
	counters := parser.Counters()
	_ = c.cfg.Session.AppendActivity(fmt.Sprintf(
		"iteration %d: signal=%s units=%d tool_calls=%d malformed=%d",
		iter, sig.String(), counters.Units(), counters.ToolCalls, counters.MalformedLines,
	))
}

// runReviewGate runs the optional review pass. It returns pass/fail plus
// the reviewer's feedback when more work is demanded. A disabled gate
// passes unconditionally.
func (c *Controller) runReviewGate(ctx context.Context) (bool, string, error) {
	if !c.cfg.Review.Enabled {
		return true, "", nil
	}

	c.cfg.Logger.Info("running review gate")
	prompt := BuildReviewPrompt(c.cfg.ChecklistPath)

	handle, err := c.cfg.Launcher.Launch(ctx, prompt, c.cfg.Review.Model, nil)
	if err != nil {
		return false, "", fmt.Errorf("failed to launch reviewer: %w", err)
	}

	var text strings.Builder
	for e := range handle.Events() {
		if e.Kind == stream.EventAssistantText {
			text.WriteString(e.Text)
		}
	}
	_ = handle.Wait()

	verdict := text.String()
	if err := c.cfg.Session.WriteReview(verdict); err != nil {
		return false, "", err
	}

	if strings.Contains(verdict, stream.ReviewPassSigil) &&
		!strings.Contains(verdict, stream.ReviewNeedsWorkSigil) {
		c.cfg.Logger.Info("review passed")
		return true, "", nil
	}
	c.cfg.Logger.Warn("review demands more work")
	return false, verdict, nil
}
