package config

import (
	"fmt"
	"strings"

	"github.com/jmcrae/wrangler/internal/errors"
)

// Validate checks the configuration for invalid values. It returns a
// ConfigurationError describing the first problem found, or nil. Invalid
// configuration fails before any work or retry begins.
func (c *Config) Validate() error {
	checks := []func() error{
		c.validateWorker,
		c.validateLoop,
		c.validateSignals,
		c.validateBackoff,
		c.validateReview,
		c.validateScheduler,
		c.validateLogging,
		c.validatePaths,
	}
	for _, check := range checks {
		if err := check(); err != nil {
			return err
		}
	}
	return nil
}

func (c *Config) validateWorker() error {
	if strings.TrimSpace(c.Worker.Command) == "" {
		return errors.NewConfigurationError("worker command must not be empty", nil).
			WithField("worker.command")
	}
	if c.Worker.KillGraceSeconds < 0 {
		return errors.NewConfigurationError("kill grace must not be negative", nil).
			WithField("worker.kill_grace_seconds")
	}
	return nil
}

func (c *Config) validateLoop() error {
	if c.Loop.MaxIterations < 1 {
		return errors.NewConfigurationError("iteration cap must be at least 1", nil).
			WithField("loop.max_iterations")
	}
	if c.Loop.IdleTimeoutSeconds < 0 {
		return errors.NewConfigurationError("idle timeout must not be negative", nil).
			WithField("loop.idle_timeout_seconds")
	}
	return nil
}

func (c *Config) validateSignals() error {
	if c.Signals.WarnUnits <= 0 {
		return errors.NewConfigurationError("warn threshold must be positive", nil).
			WithField("signals.warn_units")
	}
	if c.Signals.RotateUnits <= c.Signals.WarnUnits {
		return errors.NewConfigurationError(
			fmt.Sprintf("rotate threshold (%d) must exceed warn threshold (%d)",
				c.Signals.RotateUnits, c.Signals.WarnUnits), nil).
			WithField("signals.rotate_units")
	}
	if c.Signals.FailureWindowSeconds <= 0 {
		return errors.NewConfigurationError("failure window must be positive", nil).
			WithField("signals.failure_window_seconds")
	}
	return nil
}

func (c *Config) validateBackoff() error {
	if c.Backoff.BaseMs <= 0 {
		return errors.NewConfigurationError("backoff base must be positive", nil).
			WithField("backoff.base_ms")
	}
	if c.Backoff.CapMs <= 0 {
		return errors.NewConfigurationError("backoff cap must be positive", nil).
			WithField("backoff.cap_ms")
	}
	if c.Backoff.CapMs < c.Backoff.BaseMs {
		return errors.NewConfigurationError("backoff cap must not be below base", nil).
			WithField("backoff.cap_ms")
	}
	if c.Backoff.MaxAttempts < 1 {
		return errors.NewConfigurationError("backoff max attempts must be at least 1", nil).
			WithField("backoff.max_attempts")
	}
	return nil
}

func (c *Config) validateReview() error {
	if !c.Review.Enabled {
		return nil
	}
	if strings.TrimSpace(c.Review.Model) == "" {
		return errors.NewConfigurationError("review model must be set when review is enabled", nil).
			WithField("review.model")
	}
	if c.Review.MaxAttempts < 1 {
		return errors.NewConfigurationError("review max attempts must be at least 1", nil).
			WithField("review.max_attempts")
	}
	return nil
}

func (c *Config) validateScheduler() error {
	if c.Scheduler.MaxParallel < 1 {
		return errors.NewConfigurationError("max parallel must be at least 1", nil).
			WithField("scheduler.max_parallel")
	}
	if strings.TrimSpace(c.Scheduler.BranchPrefix) == "" {
		return errors.NewConfigurationError("branch prefix must not be empty", nil).
			WithField("scheduler.branch_prefix")
	}
	if strings.ContainsAny(c.Scheduler.BranchPrefix, " ~^:?*[\\") {
		return errors.NewConfigurationError("branch prefix contains characters invalid in git refs", nil).
			WithField("scheduler.branch_prefix")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch strings.ToUpper(c.Logging.Level) {
	case "DEBUG", "INFO", "WARN", "ERROR":
		return nil
	default:
		return errors.NewConfigurationError(
			fmt.Sprintf("unknown log level %q", c.Logging.Level), nil).
			WithField("logging.level")
	}
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.SessionDir) == "" {
		return errors.NewConfigurationError("session dir must not be empty", nil).
			WithField("paths.session_dir")
	}
	if strings.TrimSpace(c.Paths.WorkspaceDir) == "" {
		return errors.NewConfigurationError("workspace dir must not be empty", nil).
			WithField("paths.workspace_dir")
	}
	return nil
}
