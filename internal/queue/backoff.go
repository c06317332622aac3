package queue

import (
	"math/rand"
	"time"
)

const (
	// maxRetries is the retry budget per ticket after the initial attempt.
	maxRetries = 2

	backoffBase    = 5 * time.Second
	jitterFraction = 0.2
)

// retryBackoff computes the wait before retry n (1-based): base doubling per
// retry (5s, 10s) plus 0–20% jitter. A vendor-provided retryAfter overrides
// the default when it is longer, never shorter (retry monotonicity).
func retryBackoff(retry int, retryAfter time.Duration) time.Duration {
	if retry < 1 {
		retry = 1
	}
	wait := backoffBase << (retry - 1)
	wait += time.Duration(rand.Float64() * jitterFraction * float64(wait))
	if retryAfter > wait {
		return retryAfter
	}
	return wait
}
