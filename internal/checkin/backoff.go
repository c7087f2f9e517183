package checkin

import (
	"math/rand/v2"
	"time"
)

const (
	defaultBackoffBase = 2 * time.Second
	defaultBackoffCap  = 5 * time.Minute
	backoffJitterFrac  = 0.1
)

// Backoff computes retry delays for transient sync failures: exponential
// doubling from Base up to Cap, with additive jitter of up to ten percent
// so a fleet of devices recovering from the same outage does not retry in
// lockstep. The jitter fraction is small enough that delays stay
// non-decreasing across consecutive attempts.
type Backoff struct {
	Base time.Duration
	Cap  time.Duration

	// rng is injectable for deterministic tests; nil means the shared
	// global source.
	rng func() float64
}

// NewBackoff returns a Backoff with the given base and cap. Non-positive
// values fall back to the defaults (2s base, 5m cap).
func NewBackoff(base, cap time.Duration) *Backoff {
	if base <= 0 {
		base = defaultBackoffBase
	}
	if cap <= 0 {
		cap = defaultBackoffCap
	}
	return &Backoff{Base: base, Cap: cap}
}

// Delay returns the wait before retry number attempt. Attempt 0 is the
// delay after the first failure.
func (b *Backoff) Delay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}

	delay := b.Base
	for i := 0; i < attempt; i++ {
		delay *= 2
		if delay >= b.Cap || delay <= 0 {
			delay = b.Cap
			break
		}
	}
	if delay > b.Cap {
		delay = b.Cap
	}

	jitter := time.Duration(float64(delay) * backoffJitterFrac * b.random())
	delay += jitter
	if delay > b.Cap {
		delay = b.Cap
	}
	return delay
}

func (b *Backoff) random() float64 {
	if b.rng != nil {
		return b.rng()
	}
	return rand.Float64()
}
