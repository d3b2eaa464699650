package resilience

import "time"

// RetryPolicy is a closed set of retry schedules. MaxAttempts counts every
// invocation including the first; a policy with MaxAttempts of 3 runs the
// operation at most three times.
type RetryPolicy interface {
	attempts() int
	// backoff returns the delay inserted after the given 1-based failed
	// attempt, before the next one.
	backoff(attempt int) time.Duration
}

// FixedDelay waits the same Delay between attempts.
type FixedDelay struct {
	MaxAttempts int
	Delay       time.Duration
}

func (p FixedDelay) attempts() int             { return p.MaxAttempts }
func (p FixedDelay) backoff(int) time.Duration { return p.Delay }

// ExponentialBackoff doubles the delay after every failed attempt,
// starting at BaseDelay and capped at MaxDelay (0 = uncapped). The delay
// strictly increases per attempt until the cap.
type ExponentialBackoff struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

func (p ExponentialBackoff) attempts() int { return p.MaxAttempts }

func (p ExponentialBackoff) backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	// Shifting past ~32 doublings would overflow a Duration long before
	// any realistic MaxAttempts; clamp to the cap instead.
	if attempt > 32 {
		if p.MaxDelay > 0 {
			return p.MaxDelay
		}
		attempt = 32
	}
	d := p.BaseDelay << (attempt - 1)
	if d < p.BaseDelay { // overflow
		d = p.MaxDelay
	}
	if p.MaxDelay > 0 && d > p.MaxDelay {
		d = p.MaxDelay
	}
	return d
}
