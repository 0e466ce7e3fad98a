package config

import (
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete wrangler configuration. Components never
// read ambient state: the loaded Config (or a sub-struct) is passed into
// each constructor explicitly.
type Config struct {
	Worker    WorkerConfig    `mapstructure:"worker"`
	Loop      LoopConfig      `mapstructure:"loop"`
	Signals   SignalConfig    `mapstructure:"signals"`
	Backoff   BackoffConfig   `mapstructure:"backoff"`
	Review    ReviewConfig    `mapstructure:"review"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Resources ResourceConfig  `mapstructure:"resources"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Paths     PathsConfig     `mapstructure:"paths"`
}

// WorkerConfig describes how to invoke the agent process.
type WorkerConfig struct {
	// Command is the agent executable (default: "claude").
	Command string `mapstructure:"command"`
	// Args are extra arguments passed before the prompt.
	Args []string `mapstructure:"args"`
	// Model is the default model identifier; per-task annotations override it.
	Model string `mapstructure:"model"`
	// KillGraceSeconds is how long to wait between SIGTERM and SIGKILL
	// when tearing down a worker's process group.
	KillGraceSeconds int `mapstructure:"kill_grace_seconds"`
}

// LoopConfig controls the iteration controller.
type LoopConfig struct {
	// MaxIterations is the iteration cap (default: 50). Exceeding it is a
	// hard failure, never silent truncation.
	MaxIterations int `mapstructure:"max_iterations"`
	// IdleTimeoutSeconds is the inactivity window: no worker event for
	// longer than this while the process lives triggers a timeout signal.
	IdleTimeoutSeconds int `mapstructure:"idle_timeout_seconds"`
}

// SignalConfig controls resource-threshold and stuck detection.
type SignalConfig struct {
	// WarnUnits is the weighted-unit total that triggers a warning.
	WarnUnits int64 `mapstructure:"warn_units"`
	// RotateUnits is the weighted-unit total that forces a session rotation.
	// Must exceed WarnUnits.
	RotateUnits int64 `mapstructure:"rotate_units"`
	// FailureWindowSeconds bounds how far back repeated command failures
	// and file rewrites are counted for gutter detection.
	FailureWindowSeconds int `mapstructure:"failure_window_seconds"`
}

// BackoffConfig controls transient-failure retry pacing.
type BackoffConfig struct {
	// BaseMs is the first retry delay in milliseconds.
	BaseMs int `mapstructure:"base_ms"`
	// CapMs is the maximum delay in milliseconds.
	CapMs int `mapstructure:"cap_ms"`
	// Jitter randomizes each delay by a factor in [1.0, 1.25) so
	// concurrent jobs do not retry in lockstep.
	Jitter bool `mapstructure:"jitter"`
	// MaxAttempts bounds the command retry wrapper.
	MaxAttempts int `mapstructure:"max_attempts"`
}

// Base returns the base delay as a duration.
func (b BackoffConfig) Base() time.Duration { return time.Duration(b.BaseMs) * time.Millisecond }

// Cap returns the delay cap as a duration.
func (b BackoffConfig) Cap() time.Duration { return time.Duration(b.CapMs) * time.Millisecond }

// ReviewConfig controls the optional completion review gate.
type ReviewConfig struct {
	// Enabled turns the review gate on.
	Enabled bool `mapstructure:"enabled"`
	// Model is the model identifier used for review passes.
	Model string `mapstructure:"model"`
	// MaxAttempts caps failing reviews before the controller gives up
	// even with a complete checklist.
	MaxAttempts int `mapstructure:"max_attempts"`
}

// SchedulerConfig controls parallel batch execution.
type SchedulerConfig struct {
	// MaxParallel is the maximum number of concurrent jobs.
	MaxParallel int `mapstructure:"max_parallel"`
	// SkipMerge leaves all success branches unmerged for manual review.
	SkipMerge bool `mapstructure:"skip_merge"`
	// BranchPrefix is the prefix for per-task branches (default: "wrangler").
	BranchPrefix string `mapstructure:"branch_prefix"`
	// TargetBranch overrides the branch merged into; empty means the
	// branch that was checked out when the batch started.
	TargetBranch string `mapstructure:"target_branch"`
}

// ResourceConfig holds advisory machine-resource minimums checked by the
// doctor preflight. Violations warn, never abort.
type ResourceConfig struct {
	// MinFreeDiskMB is the advisory minimum free disk space in megabytes.
	MinFreeDiskMB uint64 `mapstructure:"min_free_disk_mb"`
	// MinFreeMemoryMB is the advisory minimum free memory in megabytes.
	MinFreeMemoryMB uint64 `mapstructure:"min_free_memory_mb"`
}

// LoggingConfig controls debug logging.
type LoggingConfig struct {
	// Level is one of DEBUG, INFO, WARN, ERROR.
	Level string `mapstructure:"level"`
}

// PathsConfig controls where session state lives.
type PathsConfig struct {
	// SessionDir is the directory (relative to the repository root) holding
	// durable orchestration state. It is committed to version control so a
	// fresh controller can resume.
	SessionDir string `mapstructure:"session_dir"`
	// WorkspaceDir is where isolated job workspaces are created.
	WorkspaceDir string `mapstructure:"workspace_dir"`
}

// IdleTimeout returns the inactivity window as a duration.
func (l LoopConfig) IdleTimeout() time.Duration {
	return time.Duration(l.IdleTimeoutSeconds) * time.Second
}

// FailureWindow returns the gutter recency window as a duration.
func (s SignalConfig) FailureWindow() time.Duration {
	return time.Duration(s.FailureWindowSeconds) * time.Second
}

// KillGrace returns the grace period between SIGTERM and SIGKILL.
func (w WorkerConfig) KillGrace() time.Duration {
	return time.Duration(w.KillGraceSeconds) * time.Second
}

// Default returns the configuration used when no file or environment
// overrides are present.
func Default() *Config {
	return &Config{
		Worker: WorkerConfig{
			Command:          "claude",
			Model:            "sonnet",
			KillGraceSeconds: 5,
		},
		Loop: LoopConfig{
			MaxIterations:      50,
			IdleTimeoutSeconds: 300,
		},
		Signals: SignalConfig{
			WarnUnits:            400_000,
			RotateUnits:          500_000,
			FailureWindowSeconds: 600,
		},
		Backoff: BackoffConfig{
			BaseMs:      2000,
			CapMs:       120_000,
			Jitter:      true,
			MaxAttempts: 5,
		},
		Review: ReviewConfig{
			Enabled:     false,
			Model:       "opus",
			MaxAttempts: 3,
		},
		Scheduler: SchedulerConfig{
			MaxParallel:  3,
			BranchPrefix: "wrangler",
		},
		Resources: ResourceConfig{
			MinFreeDiskMB:   2048,
			MinFreeMemoryMB: 1024,
		},
		Logging: LoggingConfig{
			Level: "INFO",
		},
		Paths: PathsConfig{
			SessionDir:   ".wrangler",
			WorkspaceDir: ".wrangler/workspaces",
		},
	}
}

// SetDefaults registers all default values with viper so they apply even
// when no config file exists.
func SetDefaults() {
	d := Default()

	viper.SetDefault("worker.command", d.Worker.Command)
	viper.SetDefault("worker.args", d.Worker.Args)
	viper.SetDefault("worker.model", d.Worker.Model)
	viper.SetDefault("worker.kill_grace_seconds", d.Worker.KillGraceSeconds)

	viper.SetDefault("loop.max_iterations", d.Loop.MaxIterations)
	viper.SetDefault("loop.idle_timeout_seconds", d.Loop.IdleTimeoutSeconds)

	viper.SetDefault("signals.warn_units", d.Signals.WarnUnits)
	viper.SetDefault("signals.rotate_units", d.Signals.RotateUnits)
	viper.SetDefault("signals.failure_window_seconds", d.Signals.FailureWindowSeconds)

	viper.SetDefault("backoff.base_ms", d.Backoff.BaseMs)
	viper.SetDefault("backoff.cap_ms", d.Backoff.CapMs)
	viper.SetDefault("backoff.jitter", d.Backoff.Jitter)
	viper.SetDefault("backoff.max_attempts", d.Backoff.MaxAttempts)

	viper.SetDefault("review.enabled", d.Review.Enabled)
	viper.SetDefault("review.model", d.Review.Model)
	viper.SetDefault("review.max_attempts", d.Review.MaxAttempts)

	viper.SetDefault("scheduler.max_parallel", d.Scheduler.MaxParallel)
	viper.SetDefault("scheduler.skip_merge", d.Scheduler.SkipMerge)
	viper.SetDefault("scheduler.branch_prefix", d.Scheduler.BranchPrefix)
	viper.SetDefault("scheduler.target_branch", d.Scheduler.TargetBranch)

	viper.SetDefault("resources.min_free_disk_mb", d.Resources.MinFreeDiskMB)
	viper.SetDefault("resources.min_free_memory_mb", d.Resources.MinFreeMemoryMB)

	viper.SetDefault("logging.level", d.Logging.Level)

	viper.SetDefault("paths.session_dir", d.Paths.SessionDir)
	viper.SetDefault("paths.workspace_dir", d.Paths.WorkspaceDir)
}

// Load unmarshals the current viper state into a Config and validates it.
// A validation failure is a ConfigurationError: fatal, no retry.
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
