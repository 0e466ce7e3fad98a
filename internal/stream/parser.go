package stream

import (
	"strings"
	"sync"
	"time"
)

// Gutter detection limits. Repeats are counted only within the configured
// recency window.
const (
	// commandFailureLimit is how many failures of the same command trip
	// gutter detection.
	commandFailureLimit = 3
	// fileWriteLimit is how many writes to the same file trip gutter
	// detection (file thrashing).
	fileWriteLimit = 5
)

// ParserConfig holds the explicit knobs for one Parser instance. Nothing is
// read from ambient state.
type ParserConfig struct {
	// WarnUnits is the weighted-unit total that emits a warning once.
	WarnUnits int64
	// RotateUnits is the weighted-unit total that forces rotation.
	RotateUnits int64
	// FailureWindow bounds how far back repeated failures and file writes
	// count toward gutter detection.
	FailureWindow time.Duration
	// IdleTimeout is the inactivity window for CheckIdle. Zero disables
	// idle detection.
	IdleTimeout time.Duration
}

// Parser consumes one iteration's ordered event stream and produces
// signals. At most one terminal signal is emitted per iteration: events
// after it still update the counters but can no longer signal.
//
// Parser is safe for concurrent use so a liveness view can read counters
// while the event loop feeds Observe.
type Parser struct {
	cfg ParserConfig

	mu           sync.Mutex
	counters     Counters
	warned       bool
	terminal     Signal // SignalNone until a terminal signal fires
	lastActivity time.Time
	started      time.Time

	// Sliding-window failure history for gutter detection.
	commandFailures map[string][]time.Time
	fileWrites      map[string][]time.Time

	// stuckContext accumulates recent failure lines so a gutter report
	// carries its evidence.
	stuckContext []string
}

// NewParser creates a Parser for one iteration. Counters start at zero;
// now seeds the activity clock.
func NewParser(cfg ParserConfig, now time.Time) *Parser {
	return &Parser{
		cfg:             cfg,
		lastActivity:    now,
		started:         now,
		commandFailures: make(map[string][]time.Time),
		fileWrites:      make(map[string][]time.Time),
	}
}

// Counters returns a snapshot of the per-category consumption totals.
func (p *Parser) Counters() Counters {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.counters
}

// Terminal returns the terminal signal emitted so far, or SignalNone.
func (p *Parser) Terminal() Signal {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.terminal
}

// Warned returns true once the warn threshold has been crossed.
func (p *Parser) Warned() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.warned
}

// StuckContext returns the accumulated failure evidence lines.
func (p *Parser) StuckContext() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.stuckContext))
	copy(out, p.stuckContext)
	return out
}

// RecordMalformed counts an undecodable wire line. Malformed lines are
// never fatal, but the count is kept for diagnostics.
func (p *Parser) RecordMalformed() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.counters.MalformedLines++
}

// Observe consumes one event and returns the signals it produced in order
// (at most a Warn followed by a terminal signal). Detection is
// most-specific-wins per event: a transient failure defers immediately and
// supersedes anything else the event would have produced.
func (p *Parser) Observe(e Event) []Signal {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.counters.observe(e)
	p.lastActivity = e.Timestamp

	if p.terminal != SignalNone {
		// Stream is draining: keep counting, stop signaling.
		return nil
	}

	if sig := p.classify(e); sig != SignalNone {
		p.terminal = sig
		return []Signal{sig}
	}

	return p.thresholdSignals()
}

// classify inspects one event for event-specific detections, ordered most
// specific first. Threshold crossings are handled separately.
func (p *Parser) classify(e Event) Signal {
	switch e.Kind {
	case EventShellExec:
		if e.ExitCode != 0 {
			if isTransientFailure(e.Output) {
				return SignalDefer
			}
			p.recordCommandFailure(e)
			if p.recentCount(p.commandFailures, e.Command, e.Timestamp) >= commandFailureLimit {
				return SignalGutter
			}
		}

	case EventFileWrite:
		p.recordFileWrite(e)
		if p.recentCount(p.fileWrites, e.Path, e.Timestamp) >= fileWriteLimit {
			return SignalGutter
		}

	case EventAssistantText:
		if strings.Contains(e.Text, StuckSigil) {
			p.stuckContext = append(p.stuckContext, "explicit stuck sigil in assistant output")
			return SignalGutter
		}
		if strings.Contains(e.Text, CompletionSigil) {
			return SignalComplete
		}
	}
	return SignalNone
}

// thresholdSignals checks the weighted unit total against the warn and
// rotate thresholds. Warn fires once per crossing; Rotate is terminal.
func (p *Parser) thresholdSignals() []Signal {
	units := p.counters.Units()
	var signals []Signal

	if !p.warned && p.cfg.WarnUnits > 0 && units >= p.cfg.WarnUnits {
		p.warned = true
		signals = append(signals, SignalWarn)
	}
	if p.cfg.RotateUnits > 0 && units >= p.cfg.RotateUnits {
		p.terminal = SignalRotate
		signals = append(signals, SignalRotate)
	}
	return signals
}

// recordCommandFailure appends a failure to the sliding window and keeps
// its evidence line.
func (p *Parser) recordCommandFailure(e Event) {
	p.commandFailures[e.Command] = append(p.commandFailures[e.Command], e.Timestamp)
	line := e.Command
	if out := strings.TrimSpace(e.Output); out != "" {
		if len(out) > 200 {
			out = out[:200]
		}
		line += ": " + out
	}
	p.stuckContext = append(p.stuckContext, line)
}

func (p *Parser) recordFileWrite(e Event) {
	p.fileWrites[e.Path] = append(p.fileWrites[e.Path], e.Timestamp)
}

// recentCount prunes entries outside the recency window and returns how
// many remain for the key.
func (p *Parser) recentCount(history map[string][]time.Time, key string, now time.Time) int {
	cutoff := now.Add(-p.cfg.FailureWindow)
	kept := history[key][:0]
	for _, ts := range history[key] {
		if !ts.Before(cutoff) {
			kept = append(kept, ts)
		}
	}
	history[key] = kept
	return len(kept)
}

// Finish marks the end of the event stream and returns the final signal:
// NoActivity when the whole iteration produced zero tool-call events and
// nothing terminal fired earlier, otherwise SignalNone.
func (p *Parser) Finish() Signal {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.terminal != SignalNone {
		return SignalNone
	}
	if p.counters.ToolCalls == 0 {
		p.terminal = SignalNoActivity
		return SignalNoActivity
	}
	return SignalNone
}

// CheckIdle returns SignalTimeout when no event has arrived within the
// inactivity window and no terminal signal has fired. The caller polls
// this while the worker is alive and must terminate the worker on timeout.
func (p *Parser) CheckIdle(now time.Time) Signal {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.terminal != SignalNone || p.cfg.IdleTimeout <= 0 {
		return SignalNone
	}
	if now.Sub(p.lastActivity) > p.cfg.IdleTimeout {
		p.terminal = SignalTimeout
		return SignalTimeout
	}
	return SignalNone
}

// LastActivity returns the timestamp of the most recent event.
func (p *Parser) LastActivity() time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastActivity
}
