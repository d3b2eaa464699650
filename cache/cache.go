package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/earthmax/cachekit/internal/singleflight"
)

// manager implements Cache[V] on top of a single-lock store, an async
// metric emitter, an invalidation event stream, and an optional background
// reaper. All methods are safe for concurrent use.
type manager[V any] struct {
	st  *store[V]
	opt Options[V]

	emit   *emitter
	reaper *reaper

	// evMu orders event publishes against Close so the stream can be
	// closed without racing a concurrent Invalidate.
	evMu   sync.Mutex
	events chan InvalidationEvent

	closed atomic.Bool

	// singleflight group coalescing concurrent GetOrPut misses per key.
	sf singleflight.Group[V]
}

// New constructs a cache with the provided Options and starts its
// background workers (metric emitter, and the reaper when
// CleanupInterval > 0). Call Close when the cache is discarded.
func New[V any](opt Options[V]) Cache[V] {
	opt = opt.withDefaults()

	m := &manager[V]{
		st:     newStore[V](),
		opt:    opt,
		emit:   newEmitter(opt.Metrics, opt.Logger, opt.MetricsBuffer),
		events: make(chan InvalidationEvent, opt.EventBuffer),
	}
	if opt.CleanupInterval > 0 {
		m.reaper = startReaper(opt.CleanupInterval, m.sweep, opt.Logger)
	}
	return m
}

// ---- Cache[V] implementation ----

func (m *manager[V]) Put(key string, value V, pol Policy, tags ...string) {
	if m.closed.Load() {
		return
	}
	defer m.contain("put")

	if pol == nil {
		pol = m.opt.DefaultPolicy
	}
	size := m.sizeOf(value)

	res := m.st.put(key, value, pol, tags, m.now(), size)
	if res.rejected {
		m.opt.Logger.Warn("value exceeds size budget, not cached",
			"key", key, "size_bytes", size)
		return
	}
	if res.lruEvicted > 0 {
		m.emit.emit(metricLRUEvictions, nil)
	}
	if res.sizeEvicted > 0 {
		m.emit.emit(metricSizeEvictions, nil)
	}
	if res.stored {
		m.emit.emit(metricPuts, nil)
	}
}

func (m *manager[V]) Get(key string) (v V, ok bool) {
	if m.closed.Load() {
		return v, false
	}
	defer m.containMiss("get", &v, &ok)

	v, hit, expired := m.st.get(key, m.now())
	switch {
	case hit:
		m.emit.emit(metricHits, nil)
	case expired:
		m.emit.emit(metricExpired, nil)
	default:
		m.emit.emit(metricMisses, nil)
	}
	return v, hit
}

func (m *manager[V]) GetOrPut(ctx context.Context, key string, pol Policy, tags []string,
	producer func(context.Context) (V, error)) (V, error) {
	// fast path
	if v, ok := m.Get(key); ok {
		return v, nil
	}
	if m.closed.Load() {
		// Degraded to "no cache": fetch fresh, store nothing.
		return producer(ctx)
	}

	// singleflight: the producer runs once per concurrent miss group.
	return m.sf.Do(ctx, key, func() (V, error) {
		// double-check after flight join
		if v, ok := m.Get(key); ok {
			return v, nil
		}
		v, err := producer(ctx)
		if err != nil {
			var zero V
			return zero, err
		}
		if err := ctx.Err(); err != nil {
			// Cancelled mid-flight: leave the cache untouched.
			var zero V
			return zero, err
		}
		m.Put(key, v, pol, tags...)
		return v, nil
	})
}

func (m *manager[V]) Remove(key string) (removed bool) {
	if m.closed.Load() {
		return false
	}
	defer m.containFalse("remove", &removed)

	if !m.st.remove(key) {
		return false
	}
	m.emit.emit(metricRemovals, nil)
	return true
}

func (m *manager[V]) Invalidate(strategy InvalidationStrategy) (n int) {
	if m.closed.Load() {
		return 0
	}
	defer m.containZero("invalidate", &n)

	switch st := strategy.(type) {
	case ByKey:
		if m.st.remove(st.Key) {
			n = 1
		}
	case ByPattern:
		re, err := compilePattern(st.Pattern)
		if err != nil {
			m.opt.Logger.Warn("bad invalidation pattern",
				"pattern", st.Pattern, "err", err)
			return 0
		}
		n = m.st.removeMatching(re.MatchString)
	case ByTag:
		n = m.st.removeTag(st.Tag)
	case All:
		n = m.st.removeAll()
	case Expired:
		n = m.st.removeExpired(m.now())
	default:
		m.opt.Logger.Warn("unknown invalidation strategy")
		return 0
	}

	// An invalidation that removed nothing is unobservable: idle reaper
	// sweeps would otherwise flood the stream with zero-count events and
	// inflate the invalidation counter every tick.
	if n == 0 {
		return 0
	}

	m.publish(InvalidationEvent{
		Strategy:      strategy,
		AffectedCount: n,
		At:            time.Unix(0, m.now()),
	})
	m.emit.emit(metricInvalidations, nil)
	return n
}

func (m *manager[V]) Contains(key string) bool {
	if m.closed.Load() {
		return false
	}
	return m.st.contains(key, m.now())
}

func (m *manager[V]) Stats() Stats {
	if m.closed.Load() {
		return Stats{}
	}
	return m.st.stats(m.now())
}

func (m *manager[V]) Clear() {
	if m.closed.Load() {
		return
	}
	m.st.clear()
	m.emit.emit(metricClears, nil)
}

func (m *manager[V]) Events() <-chan InvalidationEvent { return m.events }

// Close is idempotent. It stops the reaper and the metric emitter, then
// closes the event stream. Operations racing Close become no-ops.
func (m *manager[V]) Close() error {
	if !m.closed.CompareAndSwap(false, true) {
		return nil
	}
	if m.reaper != nil {
		m.reaper.stop()
	}
	m.emit.stop()

	m.evMu.Lock()
	close(m.events)
	m.evMu.Unlock()
	return nil
}

// ---- helpers ----

// sweep is the reaper tick body.
func (m *manager[V]) sweep() {
	if n := m.Invalidate(Expired{}); n > 0 {
		m.opt.Logger.Debug("swept expired entries", "count", n)
	}
}

// publish sends an event without blocking; it is dropped when no observer
// keeps up, and suppressed once the cache is closed.
func (m *manager[V]) publish(ev InvalidationEvent) {
	m.evMu.Lock()
	defer m.evMu.Unlock()
	if m.closed.Load() {
		return
	}
	select {
	case m.events <- ev:
	default:
	}
}

func (m *manager[V]) now() int64 {
	if m.opt.Clock != nil {
		return m.opt.Clock.NowUnixNano()
	}
	return time.Now().UnixNano()
}

func (m *manager[V]) sizeOf(v V) int64 {
	if m.opt.Size != nil {
		if n := m.opt.Size(v); n >= 0 {
			return n
		}
		return 0
	}
	return heuristicSize(v)
}

// contain recovers an internal panic at the method boundary: the fault is
// logged and the operation degrades to a no-op rather than crashing the
// caller.
func (m *manager[V]) contain(op string) {
	if r := recover(); r != nil {
		m.opt.Logger.Error("cache operation failed", "op", op, "panic", r)
	}
}

func (m *manager[V]) containMiss(op string, v *V, ok *bool) {
	if r := recover(); r != nil {
		m.opt.Logger.Error("cache operation failed", "op", op, "panic", r)
		var zero V
		*v, *ok = zero, false
	}
}

func (m *manager[V]) containFalse(op string, b *bool) {
	if r := recover(); r != nil {
		m.opt.Logger.Error("cache operation failed", "op", op, "panic", r)
		*b = false
	}
}

func (m *manager[V]) containZero(op string, n *int) {
	if r := recover(); r != nil {
		m.opt.Logger.Error("cache operation failed", "op", op, "panic", r)
		*n = 0
	}
}
