// Copyright 2025-2026 Daniel Villamizar

package relay

import (
	"math"
	"time"
)

// ReconnectPolicy computes the exponential backoff wait before a
// reconnection attempt.
type ReconnectPolicy struct {
	Base time.Duration
	Cap  time.Duration
}

// Delay returns min(Cap, Base*2^attempt) for the given attempt number.
// Attempts are 1-indexed, so the first reconnect already waits twice the
// base.
func (p ReconnectPolicy) Delay(attempt int) time.Duration {
	d := float64(p.Base) * math.Pow(2, float64(attempt))
	if d > float64(p.Cap) {
		return p.Cap
	}
	return time.Duration(d)
}
