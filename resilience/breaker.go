package resilience

import (
	"errors"
	"fmt"
	"time"
)

// BreakerState is the circuit breaker state machine position.
type BreakerState int

const (
	// StateClosed: calls flow, consecutive failures are counted.
	StateClosed BreakerState = iota
	// StateOpen: calls fail fast until the open timeout elapses.
	StateOpen
	// StateHalfOpen: one trial call is in flight; its outcome decides
	// whether the breaker closes again or re-opens.
	StateHalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return fmt.Sprintf("BreakerState(%d)", int(s))
	}
}

// BreakerConfig configures a per-operation circuit breaker.
type BreakerConfig struct {
	// FailureThreshold is the number of consecutive recorded failures
	// that opens the breaker.
	FailureThreshold int
	// Timeout is how long the breaker stays open before admitting a
	// half-open trial call.
	Timeout time.Duration
}

// BreakerStatus is a read-only snapshot of one breaker.
type BreakerStatus struct {
	State        BreakerState
	FailureCount int
}

// CircuitOpenError is returned when a call is rejected because its
// operation's breaker is open. It is distinct from the wrapped operation's
// own failures so callers can special-case "currently unavailable".
type CircuitOpenError struct {
	Operation string
}

func (e *CircuitOpenError) Error() string {
	return "resilience: circuit open for operation " + e.Operation
}

// IsCircuitOpen reports whether err (or anything it wraps) is a breaker
// rejection.
func IsCircuitOpen(err error) bool {
	var c *CircuitOpenError
	return errors.As(err, &c)
}

// breaker holds per-operation state. All fields are guarded by the owning
// Handler's mutex; times are UnixNano.
type breaker struct {
	cfg      BreakerConfig
	state    BreakerState
	failures int
	openedAt int64
	// trial marks the half-open probe as in flight; further calls fail
	// fast until it settles.
	trial bool
}

// allow decides whether a call may proceed, lazily moving an expired open
// breaker to half-open and admitting exactly one trial call. trial reports
// whether the admitted call holds the half-open trial slot; such a call
// must settle or abandon it.
func (b *breaker) allow(now int64) (ok, trial bool) {
	switch b.state {
	case StateClosed:
		return true, false
	case StateOpen:
		if now-b.openedAt >= int64(b.cfg.Timeout) {
			b.state = StateHalfOpen
			b.trial = true
			return true, true
		}
		return false, false
	case StateHalfOpen:
		if b.trial {
			return false, false
		}
		b.trial = true
		return true, true
	}
	return true, false
}

// success closes the breaker and resets the failure count.
func (b *breaker) success() {
	b.state = StateClosed
	b.failures = 0
	b.trial = false
}

// failure records one failed call: a failed half-open trial re-opens the
// breaker and restarts its timer; in closed state the consecutive-failure
// count grows until the threshold opens it.
func (b *breaker) failure(now int64) {
	b.trial = false
	if b.state == StateHalfOpen {
		b.state = StateOpen
		b.openedAt = now
		return
	}
	b.failures++
	if b.state == StateClosed && b.failures >= b.cfg.FailureThreshold {
		b.state = StateOpen
		b.openedAt = now
	}
}

// abandon releases the half-open trial slot with no outcome recorded, so
// a call that gave up waiting cannot wedge the breaker: the next allowed
// call becomes the trial instead.
func (b *breaker) abandon() {
	if b.state == StateHalfOpen {
		b.trial = false
	}
}

// reset forcibly returns to closed with zero failures, bypassing the
// open timeout.
func (b *breaker) reset() {
	b.state = StateClosed
	b.failures = 0
	b.trial = false
	b.openedAt = 0
}
