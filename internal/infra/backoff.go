package infra

import (
	"time"
)

// Backoff is an exponential reconnect policy: Base * 2^retry, capped at Max.
type Backoff struct {
	Base time.Duration
	Max  time.Duration
}

// DefaultBackoff is 1s doubling up to 60s.
var DefaultBackoff = Backoff{Base: time.Second, Max: 60 * time.Second}

// Delay returns the wait before attempt retry (0-based).
// A negative retry count returns Base.
func (b Backoff) Delay(retry int) time.Duration {
	if retry <= 0 {
		return b.Base
	}
	// 2^30 * 1ns already exceeds any sane Max.
	if retry > 30 {
		return b.Max
	}
	d := b.Base << retry
	if d > b.Max || d <= 0 {
		return b.Max
	}
	return d
}

// CalculateBackoff is DefaultBackoff.Delay.
func CalculateBackoff(retryCount int) time.Duration {
	return DefaultBackoff.Delay(retryCount)
}
