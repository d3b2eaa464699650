package cache

import (
	"log/slog"
	"time"
)

// Options configures the cache. Zero values are safe; defaults are applied
// in New():
//   - nil DefaultPolicy => TimeToLive{TTL: 5m}
//   - nil Metrics       => NoopMetrics
//   - nil Logger        => discard
//   - nil Clock         => time.Now
type Options[V any] struct {
	// DefaultPolicy applies when Put/GetOrPut receive a nil policy.
	DefaultPolicy Policy

	// CleanupInterval is the background reaper period. Zero disables the
	// reaper; expired entries are then removed only lazily on access.
	CleanupInterval time.Duration

	// EventBuffer is the invalidation event stream depth (default 16).
	EventBuffer int

	// MetricsBuffer is the async metric queue depth (default 256).
	MetricsBuffer int

	// Size overrides the per-value byte estimate. Nil uses the built-in
	// heuristic (2×len for strings, len for byte slices, a fixed default
	// otherwise).
	Size func(v V) int64

	// Metrics receives counter increments, asynchronously and
	// best-effort. Nil => NoopMetrics.
	Metrics Metrics

	// Logger receives leveled diagnostics (internal faults, dropped
	// oversized values, reaper sweeps). Nil discards everything.
	Logger *slog.Logger

	// Clock allows overriding the time source (tests). Nil => time.Now.
	Clock Clock
}

const (
	defaultTTL           = 5 * time.Minute
	defaultEventBuffer   = 16
	defaultMetricsBuffer = 256
)

// withDefaults fills unset fields with the documented defaults.
func (o Options[V]) withDefaults() Options[V] {
	if o.DefaultPolicy == nil {
		o.DefaultPolicy = TimeToLive{TTL: defaultTTL}
	}
	if o.EventBuffer <= 0 {
		o.EventBuffer = defaultEventBuffer
	}
	if o.MetricsBuffer <= 0 {
		o.MetricsBuffer = defaultMetricsBuffer
	}
	if o.Metrics == nil {
		o.Metrics = NoopMetrics{}
	}
	if o.Logger == nil {
		o.Logger = slog.New(slog.DiscardHandler)
	}
	return o
}
