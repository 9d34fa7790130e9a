package feed

import (
	"math/rand"
	"time"
)

const (
	backoffBase = 2 * time.Second
	backoffCap  = 5 * time.Minute

	// 2s << 8 already passes the cap; stop shifting before it can overflow.
	backoffMaxShift = 8
)

// ExponentialBackoff is the reconnect delay after attempt failed sessions.
func ExponentialBackoff(attempt int) time.Duration {
	// attempt=0 => 2s
	// attempt=1 => 4s
	// attempt=2 => 8s
	delay := backoffCap
	if attempt < 0 {
		attempt = 0
	}
	if attempt < backoffMaxShift {
		delay = backoffBase << uint(attempt)
		if delay > backoffCap {
			delay = backoffCap
		}
	}

	// small jitter (0-250ms) so a restarted backend is not hit by every portal at once
	delay += time.Duration(rand.Intn(250)) * time.Millisecond
	return delay
}
