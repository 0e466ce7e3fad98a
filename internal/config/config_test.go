package config

import (
	"strings"
	"testing"

	"github.com/jmcrae/wrangler/internal/errors"
)

func TestDefaultConfigValidates(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("default config should validate, got %v", err)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{
			name:   "empty worker command",
			mutate: func(c *Config) { c.Worker.Command = "  " },
			field:  "worker.command",
		},
		{
			name:   "zero iteration cap",
			mutate: func(c *Config) { c.Loop.MaxIterations = 0 },
			field:  "loop.max_iterations",
		},
		{
			name:   "negative idle timeout",
			mutate: func(c *Config) { c.Loop.IdleTimeoutSeconds = -1 },
			field:  "loop.idle_timeout_seconds",
		},
		{
			name:   "rotate below warn",
			mutate: func(c *Config) { c.Signals.WarnUnits = 100; c.Signals.RotateUnits = 50 },
			field:  "signals.rotate_units",
		},
		{
			name:   "rotate equal to warn",
			mutate: func(c *Config) { c.Signals.RotateUnits = c.Signals.WarnUnits },
			field:  "signals.rotate_units",
		},
		{
			name:   "negative backoff base",
			mutate: func(c *Config) { c.Backoff.BaseMs = -5 },
			field:  "backoff.base_ms",
		},
		{
			name:   "cap below base",
			mutate: func(c *Config) { c.Backoff.BaseMs = 5000; c.Backoff.CapMs = 1000 },
			field:  "backoff.cap_ms",
		},
		{
			name:   "review enabled without model",
			mutate: func(c *Config) { c.Review.Enabled = true; c.Review.Model = "" },
			field:  "review.model",
		},
		{
			name:   "zero max parallel",
			mutate: func(c *Config) { c.Scheduler.MaxParallel = 0 },
			field:  "scheduler.max_parallel",
		},
		{
			name:   "branch prefix with space",
			mutate: func(c *Config) { c.Scheduler.BranchPrefix = "my branch" },
			field:  "scheduler.branch_prefix",
		},
		{
			name:   "unknown log level",
			mutate: func(c *Config) { c.Logging.Level = "VERBOSE" },
			field:  "logging.level",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)

			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error, got nil")
			}
			if !errors.IsFatal(err) {
				t.Errorf("validation error should be fatal, got %v", err)
			}
			var cErr *errors.ConfigurationError
			if !errors.As(err, &cErr) {
				t.Fatalf("expected ConfigurationError, got %T", err)
			}
			if cErr.Field != tt.field {
				t.Errorf("field = %q, want %q", cErr.Field, tt.field)
			}
		})
	}
}

func TestReviewValidationSkippedWhenDisabled(t *testing.T) {
	cfg := Default()
	cfg.Review.Enabled = false
	cfg.Review.Model = ""
	cfg.Review.MaxAttempts = 0

	if err := cfg.Validate(); err != nil {
		t.Errorf("disabled review should not be validated, got %v", err)
	}
}

func TestDurationAccessors(t *testing.T) {
	cfg := Default()
	cfg.Loop.IdleTimeoutSeconds = 90
	if got := cfg.Loop.IdleTimeout().Seconds(); got != 90 {
		t.Errorf("IdleTimeout = %vs, want 90s", got)
	}
	cfg.Backoff.BaseMs = 1500
	if got := cfg.Backoff.Base().Milliseconds(); got != 1500 {
		t.Errorf("Base = %vms, want 1500ms", got)
	}
}

func TestValidationMessageNamesField(t *testing.T) {
	cfg := Default()
	cfg.Signals.RotateUnits = cfg.Signals.WarnUnits - 1

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "signals.rotate_units") {
		t.Errorf("error should name the field: %v", err)
	}
}
