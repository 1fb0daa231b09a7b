package connection

import (
	"math"
	"time"
)

// Backoff is an exponential reconnect delay policy for transport collaborators.
type Backoff struct {
	MaxRetries    int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
}

// DefaultBackoff returns the default reconnect policy.
func DefaultBackoff() Backoff {
	return Backoff{
		MaxRetries:    5,
		InitialDelay:  2 * time.Second,
		MaxDelay:      30 * time.Second,
		BackoffFactor: 2.0,
	}
}

// NextDelay returns the delay before retry number attempt (zero based).
func (b Backoff) NextDelay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	delay := float64(b.InitialDelay) * math.Pow(b.BackoffFactor, float64(attempt))
	if delay > float64(b.MaxDelay) || math.IsInf(delay, 0) {
		return b.MaxDelay
	}
	return time.Duration(delay)
}

// ShouldRetry reports whether another attempt is allowed. A non-positive
// MaxRetries means retry forever.
func (b Backoff) ShouldRetry(attempt int) bool {
	return b.MaxRetries <= 0 || attempt < b.MaxRetries
}
