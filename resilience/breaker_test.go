package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errDown = errors.New("backend down")

func failing(context.Context) (int, error) { return 0, errDown }
func succeeding(context.Context) (int, error) { return 1, nil }

// one is a single-attempt retry policy: each call records exactly one
// breaker failure, keeping attempt counting out of breaker tests.
var one = FixedDelay{MaxAttempts: 1}

func TestBreaker_OpensAtThreshold(t *testing.T) {
	t.Parallel()

	clk := &fakeClock{}
	rec := newRecorder()
	h := NewHandler(HandlerOptions{Clock: clk, Metrics: rec})
	cfg := BreakerConfig{FailureThreshold: 3, Timeout: time.Minute}

	for i := 0; i < 3; i++ {
		_, err := DoWithBreaker(context.Background(), h, "op", one, cfg, failing)
		require.ErrorIs(t, err, errDown)
	}

	st, ok := h.BreakerStatus("op")
	require.True(t, ok)
	assert.Equal(t, StateOpen, st.State)
	assert.Equal(t, 3, st.FailureCount)

	// The N+1th call fails fast with the distinct circuit-open error,
	// without invoking the block.
	calls := 0
	_, err := DoWithBreaker(context.Background(), h, "op", one, cfg,
		func(context.Context) (int, error) {
			calls++
			return 0, errDown
		})
	assert.True(t, IsCircuitOpen(err))
	var coe *CircuitOpenError
	require.ErrorAs(t, err, &coe)
	assert.Equal(t, "op", coe.Operation)
	assert.Zero(t, calls)
	assert.Equal(t, 1, rec.count(metricCircuitOpen))
}

func TestBreaker_HalfOpenToClosed(t *testing.T) {
	t.Parallel()

	clk := &fakeClock{}
	h := NewHandler(HandlerOptions{Clock: clk})
	cfg := BreakerConfig{FailureThreshold: 2, Timeout: time.Minute}

	for i := 0; i < 2; i++ {
		_, _ = DoWithBreaker(context.Background(), h, "op", one, cfg, failing)
	}
	st, _ := h.BreakerStatus("op")
	require.Equal(t, StateOpen, st.State)

	// Before the timeout: still rejected.
	clk.add(30 * time.Second)
	_, err := DoWithBreaker(context.Background(), h, "op", one, cfg, succeeding)
	require.True(t, IsCircuitOpen(err))

	// After the timeout: one trial is admitted; success closes the
	// breaker and resets the failure count.
	clk.add(31 * time.Second)
	v, err := DoWithBreaker(context.Background(), h, "op", one, cfg, succeeding)
	require.NoError(t, err)
	assert.Equal(t, 1, v)

	st, _ = h.BreakerStatus("op")
	assert.Equal(t, StateClosed, st.State)
	assert.Zero(t, st.FailureCount)
}

func TestBreaker_HalfOpenFailureReopens(t *testing.T) {
	t.Parallel()

	clk := &fakeClock{}
	h := NewHandler(HandlerOptions{Clock: clk})
	cfg := BreakerConfig{FailureThreshold: 1, Timeout: time.Minute}

	_, _ = DoWithBreaker(context.Background(), h, "op", one, cfg, failing)
	st, _ := h.BreakerStatus("op")
	require.Equal(t, StateOpen, st.State)

	// Failed trial re-opens and restarts the timer.
	clk.add(61 * time.Second)
	_, err := DoWithBreaker(context.Background(), h, "op", one, cfg, failing)
	require.ErrorIs(t, err, errDown)
	st, _ = h.BreakerStatus("op")
	assert.Equal(t, StateOpen, st.State)

	// The restarted timer gates the next trial from the reopen instant.
	clk.add(30 * time.Second)
	_, err = DoWithBreaker(context.Background(), h, "op", one, cfg, succeeding)
	assert.True(t, IsCircuitOpen(err))
	clk.add(31 * time.Second)
	_, err = DoWithBreaker(context.Background(), h, "op", one, cfg, succeeding)
	assert.NoError(t, err)
}

// A trial call whose caller cancels during the backoff wait never settles
// the breaker; the half-open slot must be released so a later call can
// probe, instead of every future call failing fast forever.
func TestBreaker_AbandonedTrialReleasesSlot(t *testing.T) {
	t.Parallel()

	clk := &fakeClock{}
	h := NewHandler(HandlerOptions{Clock: clk})
	cfg := BreakerConfig{FailureThreshold: 1, Timeout: time.Minute}

	_, _ = DoWithBreaker(context.Background(), h, "op", one, cfg, failing)
	st, _ := h.BreakerStatus("op")
	require.Equal(t, StateOpen, st.State)

	// The trial is admitted, fails retryably, and the caller cancels
	// while the retry backoff is pending, so no outcome is recorded.
	clk.add(61 * time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	retry := FixedDelay{MaxAttempts: 2, Delay: time.Hour}
	_, err := DoWithBreaker(ctx, h, "op", retry, cfg,
		func(context.Context) (int, error) {
			cancel()
			return 0, errDown
		})
	require.ErrorIs(t, err, context.Canceled)

	// Arbitrarily later, the slot is free again: the next call becomes
	// the trial and its success closes the breaker.
	clk.add(1000 * time.Hour)
	v, err := DoWithBreaker(context.Background(), h, "op", one, cfg, succeeding)
	require.NoError(t, err)
	assert.Equal(t, 1, v)
	st, _ = h.BreakerStatus("op")
	assert.Equal(t, StateClosed, st.State)
	assert.Zero(t, st.FailureCount)
}

func TestBreaker_Reset(t *testing.T) {
	t.Parallel()

	clk := &fakeClock{}
	h := NewHandler(HandlerOptions{Clock: clk})
	cfg := BreakerConfig{FailureThreshold: 1, Timeout: time.Hour}

	_, _ = DoWithBreaker(context.Background(), h, "op", one, cfg, failing)
	st, _ := h.BreakerStatus("op")
	require.Equal(t, StateOpen, st.State)

	// Reset bypasses the timeout entirely.
	h.ResetBreaker("op")
	st, ok := h.BreakerStatus("op")
	require.True(t, ok)
	assert.Equal(t, StateClosed, st.State)
	assert.Zero(t, st.FailureCount)

	_, err := DoWithBreaker(context.Background(), h, "op", one, cfg, succeeding)
	assert.NoError(t, err)

	// Resetting an unknown operation is a no-op.
	h.ResetBreaker("never-seen")
}

func TestBreaker_StatusUnknownOperation(t *testing.T) {
	t.Parallel()

	h := NewHandler(HandlerOptions{})
	_, ok := h.BreakerStatus("never-wrapped")
	assert.False(t, ok)
}

// A success resets the consecutive-failure count before the threshold.
func TestBreaker_SuccessResetsFailures(t *testing.T) {
	t.Parallel()

	clk := &fakeClock{}
	h := NewHandler(HandlerOptions{Clock: clk})
	cfg := BreakerConfig{FailureThreshold: 3, Timeout: time.Minute}

	_, _ = DoWithBreaker(context.Background(), h, "op", one, cfg, failing)
	_, _ = DoWithBreaker(context.Background(), h, "op", one, cfg, failing)
	_, _ = DoWithBreaker(context.Background(), h, "op", one, cfg, succeeding)
	_, _ = DoWithBreaker(context.Background(), h, "op", one, cfg, failing)

	st, _ := h.BreakerStatus("op")
	assert.Equal(t, StateClosed, st.State)
	assert.Equal(t, 1, st.FailureCount)
}

func TestHandler_Stats(t *testing.T) {
	t.Parallel()

	clk := &fakeClock{}
	h := NewHandler(HandlerOptions{Clock: clk})

	open := BreakerConfig{FailureThreshold: 1, Timeout: time.Hour}
	closed := BreakerConfig{FailureThreshold: 10, Timeout: time.Hour}

	_, _ = DoWithBreaker(context.Background(), h, "down", one, open, failing)
	_, _ = DoWithBreaker(context.Background(), h, "fine", one, closed, succeeding)

	st := h.Stats()
	assert.Equal(t, 2, st.TotalBreakers)
	assert.Equal(t, 1, st.OpenBreakers)
	assert.Equal(t, StateOpen, st.Operations["down"].State)
	assert.Equal(t, StateClosed, st.Operations["fine"].State)
}

// Plain Do never consults or creates breakers.
func TestDo_NoBreaker(t *testing.T) {
	t.Parallel()

	h := NewHandler(HandlerOptions{})
	for i := 0; i < 10; i++ {
		_, _ = Do(context.Background(), h, "op", one, failing)
	}
	_, ok := h.BreakerStatus("op")
	assert.False(t, ok)

	assert.Zero(t, h.Stats().TotalBreakers)
}
