package cache

import "log/slog"

// Counter names emitted by the cache. A Metrics implementation receives
// these via IncrementCounter; deliveries are best-effort and asynchronous.
const (
	metricHits          = "cache_hits"
	metricMisses        = "cache_misses"
	metricPuts          = "cache_puts"
	metricExpired       = "cache_expired"
	metricRemovals      = "cache_removals"
	metricInvalidations = "cache_invalidations"
	metricClears        = "cache_clears"
	metricLRUEvictions  = "cache_lru_evictions"
	metricSizeEvictions = "cache_size_evictions"
)

// Metrics is the counter sink the cache reports to. Implementations must
// be safe for concurrent use; they are called from a single background
// goroutine owned by the cache, never from a caller's goroutine, so a slow
// or panicking sink cannot affect cache operations.
type Metrics interface {
	IncrementCounter(name string, tags map[string]string)
}

// NoopMetrics is a drop-in Metrics implementation that does nothing.
// It is the default when no observability backend is configured.
type NoopMetrics struct{}

func (NoopMetrics) IncrementCounter(string, map[string]string) {}

// Ensure NoopMetrics implements the Metrics interface at compile time.
var _ Metrics = NoopMetrics{}

// Clock provides time in UnixNano; useful for deterministic tests.
type Clock interface{ NowUnixNano() int64 }

type metricEvent struct {
	name string
	tags map[string]string
}

// emitter decouples cache operations from the metrics sink: increments go
// into a bounded queue drained by one goroutine. When the queue is full
// the increment is dropped rather than blocking the caller, and a sink
// panic is contained and logged.
type emitter struct {
	sink Metrics
	log  *slog.Logger
	ch   chan metricEvent
	quit chan struct{}
	done chan struct{}
}

func newEmitter(sink Metrics, log *slog.Logger, depth int) *emitter {
	e := &emitter{
		sink: sink,
		log:  log,
		ch:   make(chan metricEvent, depth),
		quit: make(chan struct{}),
		done: make(chan struct{}),
	}
	go e.run()
	return e
}

func (e *emitter) run() {
	defer close(e.done)
	for {
		select {
		case ev := <-e.ch:
			e.deliver(ev)
		case <-e.quit:
			// Drain whatever is already queued, then exit.
			for {
				select {
				case ev := <-e.ch:
					e.deliver(ev)
				default:
					return
				}
			}
		}
	}
}

func (e *emitter) deliver(ev metricEvent) {
	defer func() {
		if r := recover(); r != nil {
			e.log.Error("metrics sink panicked", "metric", ev.name, "panic", r)
		}
	}()
	e.sink.IncrementCounter(ev.name, ev.tags)
}

// emit enqueues an increment without ever blocking.
func (e *emitter) emit(name string, tags map[string]string) {
	select {
	case e.ch <- metricEvent{name: name, tags: tags}:
	default:
	}
}

// stop shuts the worker down after draining the queue. Increments emitted
// concurrently with stop may be dropped; none will panic.
func (e *emitter) stop() {
	close(e.quit)
	<-e.done
}
