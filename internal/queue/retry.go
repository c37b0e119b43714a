package queue

import (
	"math"
	"time"
)

// RetryPolicy bounds how often a failing job is retried.
type RetryPolicy struct {
	// Attempts is the total number of executions, the first one included.
	Attempts int
	// Backoff is the delay before the second execution; it doubles afterwards.
	Backoff time.Duration
	// MaxBackoff caps a single delay when positive.
	MaxBackoff time.Duration
}

// DefaultRetryPolicy is 5 attempts with exponential backoff from 2s.
var DefaultRetryPolicy = RetryPolicy{Attempts: 5, Backoff: 2 * time.Second}

// Delay returns the wait before the next execution after failedAttempts
// failures: Backoff * 2^(failedAttempts-1).
func (p RetryPolicy) Delay(failedAttempts int) time.Duration {
	if failedAttempts < 1 {
		failedAttempts = 1
	}
	d := p.Backoff
	for i := 1; i < failedAttempts; i++ {
		if d > math.MaxInt64/2 {
			break
		}
		d *= 2
	}
	if p.MaxBackoff > 0 && d > p.MaxBackoff {
		return p.MaxBackoff
	}
	return d
}
