package client

import "time"

// Backoff is the fixed delay table used between reconnection attempts.
// Attempt n waits Backoff[n-1]; attempts past the end of the table reuse
// the last entry.
type Backoff []time.Duration

// DefaultBackoff doubles from one second.
var DefaultBackoff = Backoff{
	1 * time.Second,
	2 * time.Second,
	4 * time.Second,
	8 * time.Second,
	16 * time.Second,
}

// Delay returns the wait before the given 1-based attempt.
func (b Backoff) Delay(attempt int) time.Duration {
	if len(b) == 0 {
		return DefaultBackoff.Delay(attempt)
	}
	if attempt < 1 {
		attempt = 1
	}
	if attempt > len(b) {
		return b[len(b)-1]
	}
	return b[attempt-1]
}
