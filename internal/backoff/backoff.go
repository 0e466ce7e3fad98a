// Package backoff computes retry delays for transient failures and wraps
// external command execution with bounded retries.
//
// The policy is pure: Delay never sleeps. Callers own the wait, which keeps
// the policy testable and lets concurrent callers schedule sleeps on their
// own clocks.
package backoff

import (
	"math/rand"
	"time"

	"github.com/jmcrae/wrangler/internal/errors"
)

// jitterSpread is the width of the uniform jitter factor range [1.0, 1.25).
// Jitter desynchronizes retries across concurrent jobs hitting the same
// rate-limited upstream.
const jitterSpread = 0.25

// Delay returns the wait before the given retry attempt. attempt is
// 1-indexed: attempt 1 waits base, attempt 2 waits 2*base, doubling until
// the cap. With jitter the delay is multiplied by a uniform factor in
// [1.0, 1.25).
//
// Invalid inputs are a configuration error and fail before any retry.
func Delay(attempt int, base, cap time.Duration, jitter bool) (time.Duration, error) {
	if attempt < 1 {
		return 0, errors.NewConfigurationError("backoff attempt must be 1-indexed and positive", nil)
	}
	if base <= 0 {
		return 0, errors.NewConfigurationError("backoff base must be positive", nil)
	}
	if cap <= 0 {
		return 0, errors.NewConfigurationError("backoff cap must be positive", nil)
	}

	d := base
	for i := 1; i < attempt; i++ {
		if d >= cap/2 {
			// Doubling again would overflow or exceed the cap.
			d = cap
			break
		}
		d *= 2
	}
	if d > cap {
		d = cap
	}

	if jitter {
		factor := 1.0 + rand.Float64()*jitterSpread
		d = time.Duration(float64(d) * factor)
	}
	return d, nil
}
