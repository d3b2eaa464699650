// Package resilience wraps possibly-failing operations, such as the
// producers that populate a cache, with bounded retry and per-operation
// circuit breakers.
//
// Operations are identified by name. Retry schedules are closed
// RetryPolicy variants (FixedDelay, ExponentialBackoff); whether a failure
// is worth retrying is a policy decision supplied via
// HandlerOptions.Classify, defaulting to DefaultClassify. A breaker, once
// configured for an operation via DoWithBreaker, fails calls fast with
// *CircuitOpenError while open, admits a single half-open trial after its
// timeout, and closes again on a trial success.
package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	perrors "github.com/jmgilman/go/errors"
)

// Metrics receives best-effort counter increments. A panicking or slow
// sink never affects the wrapped operation.
type Metrics interface {
	IncrementCounter(name string, tags map[string]string)
}

// Clock provides time in UnixNano; useful for deterministic tests.
type Clock interface{ NowUnixNano() int64 }

// Counter names emitted by the handler.
const (
	metricSuccess     = "resilience_success"
	metricRetries     = "resilience_retries"
	metricErrors      = "resilience_errors"
	metricCircuitOpen = "resilience_circuit_open"
)

// HandlerOptions configures a Handler. Zero values are safe; defaults are
// applied in NewHandler.
type HandlerOptions struct {
	// Classify reports whether an error is transient and worth retrying.
	// Nil => DefaultClassify.
	Classify func(error) bool

	// Metrics receives counters; nil discards them.
	Metrics Metrics

	// Logger receives leveled diagnostics; nil discards them.
	Logger *slog.Logger

	// Clock overrides the time source (tests). Nil => time.Now.
	Clock Clock
}

// Handler owns the per-operation circuit breaker state shared by every
// Do/DoWithBreaker/Stream call. Safe for concurrent use.
type Handler struct {
	opt HandlerOptions

	mu       sync.Mutex
	breakers map[string]*breaker
}

// NewHandler constructs a Handler with defaults applied.
func NewHandler(opt HandlerOptions) *Handler {
	if opt.Classify == nil {
		opt.Classify = DefaultClassify
	}
	if opt.Logger == nil {
		opt.Logger = slog.New(slog.DiscardHandler)
	}
	return &Handler{
		opt:      opt,
		breakers: make(map[string]*breaker),
	}
}

// DefaultClassify treats context cancellation and deadline expiry as
// non-retryable, defers to the platform error classification for errors
// carrying one (see github.com/jmgilman/go/errors), and assumes every
// other failure is transient.
func DefaultClassify(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var pe perrors.PlatformError
	if errors.As(err, &pe) {
		return pe.Classification().IsRetryable()
	}
	return true
}

// Do runs fn under the retry policy, without a circuit breaker. See
// DoWithBreaker for semantics.
func Do[T any](ctx context.Context, h *Handler, operation string, policy RetryPolicy,
	fn func(context.Context) (T, error)) (T, error) {
	return run(ctx, h, operation, policy, nil, fn)
}

// DoWithBreaker runs fn under the retry policy with a circuit breaker for
// operation (created from cfg on first use, shared by name afterwards).
//
//   - If the breaker is open, the call fails immediately with
//     *CircuitOpenError; fn is not invoked and nothing counts as a retry.
//   - On success the breaker closes and its failure count resets.
//   - A retryable failure with attempts remaining waits the policy delay
//     and retries, counting one retry metric per retry.
//   - A non-retryable failure, or exhausted attempts, records a single
//     failure against the breaker and returns the last error.
func DoWithBreaker[T any](ctx context.Context, h *Handler, operation string, policy RetryPolicy,
	cfg BreakerConfig, fn func(context.Context) (T, error)) (T, error) {
	return run(ctx, h, operation, policy, &cfg, fn)
}

func run[T any](ctx context.Context, h *Handler, operation string, policy RetryPolicy,
	cfg *BreakerConfig, fn func(context.Context) (T, error)) (T, error) {
	var zero T

	br := h.breakerFor(operation, cfg)
	var trial bool
	if br != nil {
		ok, isTrial := h.admit(br)
		if !ok {
			h.count(metricCircuitOpen, map[string]string{"operation": operation})
			return zero, &CircuitOpenError{Operation: operation}
		}
		trial = isTrial
	}

	attempts := policy.attempts()
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		v, err := fn(ctx)
		if err == nil {
			h.settle(br, true)
			h.count(metricSuccess, map[string]string{"operation": operation})
			return v, nil
		}
		lastErr = err

		if !h.opt.Classify(err) || attempt == attempts {
			break
		}
		if serr := sleep(ctx, policy.backoff(attempt)); serr != nil {
			// The caller gave up while we were waiting; this is not
			// the operation's failure, so no outcome is recorded. A
			// held half-open trial slot must still be released or the
			// breaker would reject every later call.
			if trial {
				h.release(br)
			}
			return zero, serr
		}
		h.count(metricRetries, map[string]string{"operation": operation})
	}

	h.settle(br, false)
	h.count(metricErrors, map[string]string{
		"operation": operation,
		"error":     fmt.Sprintf("%T", lastErr),
	})
	h.opt.Logger.Warn("operation failed", "operation", operation, "err", lastErr)
	return zero, lastErr
}

// ResetBreaker forcibly closes the operation's breaker with a zero failure
// count, bypassing the open timeout. Unknown operations are ignored.
func (h *Handler) ResetBreaker(operation string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if b, ok := h.breakers[operation]; ok {
		b.reset()
	}
}

// BreakerStatus reports the operation's breaker state, or false if the
// operation has never been wrapped with a breaker.
func (h *Handler) BreakerStatus(operation string) (BreakerStatus, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	b, ok := h.breakers[operation]
	if !ok {
		return BreakerStatus{}, false
	}
	return BreakerStatus{State: b.state, FailureCount: b.failures}, true
}

// ErrorStats summarizes every breaker the handler tracks.
type ErrorStats struct {
	TotalBreakers int
	OpenBreakers  int
	Operations    map[string]BreakerStatus
}

// Stats returns a snapshot across all tracked breakers.
func (h *Handler) Stats() ErrorStats {
	h.mu.Lock()
	defer h.mu.Unlock()

	st := ErrorStats{
		TotalBreakers: len(h.breakers),
		Operations:    make(map[string]BreakerStatus, len(h.breakers)),
	}
	for op, b := range h.breakers {
		if b.state == StateOpen {
			st.OpenBreakers++
		}
		st.Operations[op] = BreakerStatus{State: b.state, FailureCount: b.failures}
	}
	return st
}

// ---- internals ----

// breakerFor returns the operation's breaker, creating it from cfg on
// first use. A nil cfg never creates one: plain Do is breaker-free even
// for operations that elsewhere use DoWithBreaker.
func (h *Handler) breakerFor(operation string, cfg *BreakerConfig) *breaker {
	if cfg == nil {
		return nil
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	b, ok := h.breakers[operation]
	if !ok {
		b = &breaker{cfg: *cfg}
		h.breakers[operation] = b
	}
	return b
}

func (h *Handler) admit(b *breaker) (ok, trial bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return b.allow(h.now())
}

// release gives back a half-open trial slot that will never settle.
func (h *Handler) release(b *breaker) {
	h.mu.Lock()
	defer h.mu.Unlock()
	b.abandon()
}

// settle records the final outcome of one wrapped call (not of individual
// attempts) against the breaker, if any.
func (h *Handler) settle(b *breaker, success bool) {
	if b == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if success {
		b.success()
	} else {
		b.failure(h.now())
	}
}

func (h *Handler) now() int64 {
	if h.opt.Clock != nil {
		return h.opt.Clock.NowUnixNano()
	}
	return time.Now().UnixNano()
}

// count is fire-and-forget: a sink panic is contained and logged.
func (h *Handler) count(name string, tags map[string]string) {
	if h.opt.Metrics == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			h.opt.Logger.Debug("metrics sink panicked", "metric", name, "panic", r)
		}
	}()
	h.opt.Metrics.IncrementCounter(name, tags)
}

// sleep waits d or until ctx is done, whichever comes first.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
