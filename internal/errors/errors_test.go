package errors

import (
	"fmt"
	"strings"
	"testing"
)

func TestConfigurationErrorMessage(t *testing.T) {
	tests := []struct {
		name string
		err  *ConfigurationError
		want string
	}{
		{
			name: "message only",
			err:  NewConfigurationError("iteration cap must be positive", nil),
			want: "configuration error: iteration cap must be positive",
		},
		{
			name: "with field",
			err:  NewConfigurationError("must exceed warn threshold", nil).WithField("thresholds.rotate"),
			want: "configuration error (thresholds.rotate): must exceed warn threshold",
		},
		{
			name: "with wrapped error",
			err:  NewConfigurationError("cannot parse", New("bad duration")).WithField("loop.idle_timeout"),
			want: "configuration error (loop.idle_timeout): cannot parse: bad duration",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTransientErrorUnwrap(t *testing.T) {
	base := New("connection reset")
	err := NewTransientError("network failure", base).WithCommand("git fetch")

	if !Is(err, base) {
		t.Error("expected errors.Is to find wrapped error")
	}
	if !strings.Contains(err.Error(), "git fetch") {
		t.Errorf("expected command in message, got %q", err.Error())
	}
}

func TestSentinelWrapping(t *testing.T) {
	wrapped := fmt.Errorf("%w: task-42", ErrInvalidTaskID)
	if !Is(wrapped, ErrInvalidTaskID) {
		t.Error("wrapped sentinel should match ErrInvalidTaskID")
	}
}

func TestClassification(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		retryable bool
		fatal     bool
		stuck     bool
	}{
		{
			name:      "transient is retryable",
			err:       NewTransientError("rate limited", nil),
			retryable: true,
		},
		{
			name:  "configuration is fatal",
			err:   NewConfigurationError("bad threshold", nil),
			fatal: true,
		},
		{
			name:  "stuck is stuck",
			err:   NewStuckError("same command failed 3 times", nil),
			stuck: true,
		},
		{
			name: "plain error is none of the above",
			err:  New("something"),
		},
		{
			name:      "wrapped transient stays retryable",
			err:       fmt.Errorf("iteration 3: %w", NewTransientError("quota", nil)),
			retryable: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryable(tt.err); got != tt.retryable {
				t.Errorf("IsRetryable = %v, want %v", got, tt.retryable)
			}
			if got := IsFatal(tt.err); got != tt.fatal {
				t.Errorf("IsFatal = %v, want %v", got, tt.fatal)
			}
			if got := IsStuck(tt.err); got != tt.stuck {
				t.Errorf("IsStuck = %v, want %v", got, tt.stuck)
			}
		})
	}
}

func TestStuckErrorContext(t *testing.T) {
	err := NewStuckError("file thrashing", []string{"write main.go", "write main.go"})
	if !strings.Contains(err.Error(), "2 error log entries") {
		t.Errorf("expected context count in message, got %q", err.Error())
	}
}

func TestMergeConflictError(t *testing.T) {
	err := NewMergeConflictError("wrangler/task-3", "main", "CONFLICT (content): main.go")
	want := "merge conflict: wrangler/task-3 into main"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestGitErrorOutput(t *testing.T) {
	err := NewGitError("failed to merge", New("exit status 1")).
		WithRepository("/tmp/repo").
		WithGitOutput("CONFLICT (content): merge conflict in a.go\n")

	msg := err.Error()
	if !strings.Contains(msg, "/tmp/repo") {
		t.Errorf("expected repository in message, got %q", msg)
	}
	if !strings.Contains(msg, "CONFLICT") {
		t.Errorf("expected git output in message, got %q", msg)
	}
}
