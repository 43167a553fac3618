package queue

import (
	"math"
	"math/rand/v2"
	"time"
)

type BackoffConfig struct {
	MaxRetries          uint32
	InitialInterval     time.Duration
	MaxInterval         time.Duration
	Multiplier          float64
	RandomizationFactor float64
}

// BackoffCounter computes successive retry intervals from a
// BackoffConfig. It is exported (unlike the rest of this package's
// internals) so bus.Session's reconnect loop can reuse the exact same
// jittered-exponential shape instead of duplicating it.
type BackoffCounter struct {
	BackoffConfig
}

// Next returns the delay to wait before retry number attempt
// (1-indexed), or false if attempt exceeds MaxRetries (MaxRetries == 0
// means unlimited retries).
func (bc *BackoffCounter) Next(attempt uint32) (time.Duration, bool) {
	if bc.MaxRetries > 0 && attempt > bc.MaxRetries {
		return 0, false
	}
	exp := float64(bc.InitialInterval) * math.Pow(bc.Multiplier, float64(attempt-1))
	if exp > float64(bc.MaxInterval) {
		exp = float64(bc.MaxInterval)
	}
	if bc.RandomizationFactor > 0 {
		delta := bc.RandomizationFactor * exp
		minExp := exp - delta
		maxExp := exp + delta
		exp = minExp + rand.Float64()*(maxExp-minExp)
	}
	return time.Duration(exp), true
}
