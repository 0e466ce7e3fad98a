// Package stream turns a worker's raw event stream into discrete control
// signals. It tracks resource consumption, repeated-failure patterns, and
// activity, and emits at most one terminal signal per iteration.
package stream

// Signal is a control signal derived from the worker's event stream. It is
// a closed variant type: the line-oriented wire format is decoded into it
// immediately at the boundary and no string-typed signal values flow
// through the rest of the system.
type Signal int

const (
	// SignalNone means no action is required.
	SignalNone Signal = iota

	// SignalWarn means the warn resource threshold was crossed. Advisory;
	// the next prompt should tell the worker to wrap up.
	SignalWarn

	// SignalRotate means the rotate resource threshold was crossed. The
	// session must end and a fresh iteration start with no continuity.
	SignalRotate

	// SignalGutter means the worker is stuck: repeated command failures,
	// file thrashing, or an explicit stuck marker.
	SignalGutter

	// SignalComplete means the worker claimed completion. Advisory only;
	// the caller must verify against the checklist, which is
	// authoritative.
	SignalComplete

	// SignalDefer means a transient external failure (rate limit, quota,
	// network, server error): retry after backoff without consuming an
	// iteration.
	SignalDefer

	// SignalNoActivity means the whole iteration produced zero tool-call
	// events. Never a success.
	SignalNoActivity

	// SignalTimeout means no event arrived within the inactivity window
	// while the worker was still alive; the caller must terminate it.
	SignalTimeout
)

// String returns the canonical name of the signal.
func (s Signal) String() string {
	switch s {
	case SignalNone:
		return "none"
	case SignalWarn:
		return "warn"
	case SignalRotate:
		return "rotate"
	case SignalGutter:
		return "gutter"
	case SignalComplete:
		return "complete"
	case SignalDefer:
		return "defer"
	case SignalNoActivity:
		return "no_activity"
	case SignalTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// IsTerminal returns true for signals that end the iteration. Warn is the
// only non-terminal signal besides None.
func (s Signal) IsTerminal() bool {
	switch s {
	case SignalRotate, SignalGutter, SignalComplete, SignalDefer, SignalNoActivity, SignalTimeout:
		return true
	default:
		return false
	}
}
