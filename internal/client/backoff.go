package client

import (
	"math"
	"time"
)

// Backoff computes reconnection delays. The delay before retry n is
// Base * Factor^n, clamped to Cap when Cap is positive.
type Backoff struct {
	Base        time.Duration
	Factor      float64
	MaxAttempts int
	Cap         time.Duration
}

// DefaultBackoff returns 1s * 1.5^attempt with 30 attempts and no cap.
func DefaultBackoff() Backoff {
	return Backoff{
		Base:        time.Second,
		Factor:      1.5,
		MaxAttempts: 30,
	}
}

// Delay returns the wait before reconnecting after attempt consecutive failures.
func (b Backoff) Delay(attempt int) time.Duration {
	d := float64(b.Base) * math.Pow(b.Factor, float64(attempt))
	if b.Cap > 0 && d > float64(b.Cap) {
		return b.Cap
	}
	if d >= math.MaxInt64 {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(d)
}

// Exhausted reports whether attempt consecutive failures end the retry loop.
func (b Backoff) Exhausted(attempt int) bool {
	return attempt >= b.MaxAttempts
}
