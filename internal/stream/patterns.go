package stream

import "regexp"

// Sigils the worker embeds in assistant text. The instruction payload tells
// the worker to print these verbatim.
const (
	// CompletionSigil is printed by the worker when it believes every
	// checklist item is done. Advisory: the checklist is authoritative.
	CompletionSigil = "WRANGLER:ALL_TASKS_COMPLETE"

	// StuckSigil is printed by the worker when it decides it cannot make
	// further progress without intervention.
	StuckSigil = "WRANGLER:STUCK"
)

// Review gate markers. The review invocation must print exactly one of
// these; anything else counts as a failed review pass.
const (
	// ReviewPassSigil approves the work since the last checkpoint.
	ReviewPassSigil = "WRANGLER:REVIEW_PASS"

	// ReviewNeedsWorkSigil rejects it and sends the loop around again.
	ReviewNeedsWorkSigil = "WRANGLER:REVIEW_NEEDS_WORK"
)

// transientPatterns match shell output indicating a failure that is
// expected to clear on its own: rate limits, quota exhaustion, network
// flakes, upstream server errors. A match defers the iteration for backoff
// instead of burning it.
var transientPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)rate.?limit`),
	regexp.MustCompile(`(?i)too many requests`),
	regexp.MustCompile(`\b429\b`),
	regexp.MustCompile(`(?i)quota (?:exceeded|exhausted)`),
	regexp.MustCompile(`(?i)usage limit`),
	regexp.MustCompile(`(?i)overloaded`),
	regexp.MustCompile(`\b(?:500|502|503|504)\b`),
	regexp.MustCompile(`(?i)internal server error`),
	regexp.MustCompile(`(?i)service unavailable`),
	regexp.MustCompile(`(?i)bad gateway`),
	regexp.MustCompile(`(?i)connection (?:refused|reset|timed out)`),
	regexp.MustCompile(`(?i)network is unreachable`),
	regexp.MustCompile(`(?i)temporary failure in name resolution`),
	regexp.MustCompile(`(?i)ETIMEDOUT|ECONNRESET|ECONNREFUSED`),
}

// isTransientFailure reports whether a failed shell execution looks like a
// transient external failure rather than a real error in the work.
func isTransientFailure(output string) bool {
	for _, re := range transientPatterns {
		if re.MatchString(output) {
			return true
		}
	}
	return false
}
