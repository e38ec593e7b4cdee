package core

import (
	"math/rand"
	"time"
)

// RetryScheduler computes backoff delays for failed queue items. The
// pre-jitter curve doubles per attempt from Initial up to Max; jitter spreads
// retries so a burst of failures does not thunder back at once. Rate-limited
// failures walk a longer curve scaled by RateLimitMultiplier.
type RetryScheduler struct {
	Initial             time.Duration
	Max                 time.Duration
	JitterFraction      float64
	RateLimitMultiplier float64

	// Rand and Now are injectable for deterministic tests.
	Rand func() float64
	Now  func() time.Time
}

func DefaultRetryScheduler() RetryScheduler {
	return RetryScheduler{
		Initial:             30 * time.Second,
		Max:                 30 * time.Minute,
		JitterFraction:      0.2,
		RateLimitMultiplier: 4,
	}
}

// NextDelay returns the delay before the given attempt retries. attempts is
// the number of completed attempts, so the first failure passes 1.
func (s RetryScheduler) NextDelay(attempts int, rateLimited bool) time.Duration {
	if attempts < 1 {
		attempts = 1
	}
	initial := s.Initial
	if initial <= 0 {
		initial = 30 * time.Second
	}
	max := s.Max
	if max <= 0 {
		max = 30 * time.Minute
	}

	delay := initial
	for i := 1; i < attempts; i++ {
		delay *= 2
		if delay >= max {
			delay = max
			break
		}
	}
	if rateLimited {
		multiplier := s.RateLimitMultiplier
		if multiplier < 1 {
			multiplier = 1
		}
		scaled := time.Duration(float64(delay) * multiplier)
		capped := time.Duration(float64(max) * multiplier)
		if scaled > capped {
			scaled = capped
		}
		delay = scaled
	}

	return s.applyJitter(delay)
}

func (s RetryScheduler) applyJitter(delay time.Duration) time.Duration {
	fraction := s.JitterFraction
	if fraction <= 0 {
		return delay
	}
	if fraction > 1 {
		fraction = 1
	}
	random := s.Rand
	if random == nil {
		random = rand.Float64
	}
	// jitter in [-fraction, +fraction] around the base delay
	offset := (random()*2 - 1) * fraction
	jittered := time.Duration(float64(delay) * (1 + offset))
	if jittered < 0 {
		return 0
	}
	return jittered
}

// NextRetryAt returns the wall-clock retry time for the given attempt.
func (s RetryScheduler) NextRetryAt(attempts int, rateLimited bool) time.Time {
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	return now().Add(s.NextDelay(attempts, rateLimited))
}
