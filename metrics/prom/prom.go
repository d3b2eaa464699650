// Package prom exports cachekit counters to Prometheus.
package prom

import (
	"github.com/earthmax/cachekit/cache"
	"github.com/prometheus/client_golang/prometheus"
)

// Adapter implements the cachekit counter sink on top of a Prometheus
// CounterVec. Counter names (cache_hits, resilience_retries, ...) become
// the "event" label; the operation/error tags, when present, fill their
// own labels. Safe for concurrent use; Prometheus metric types are
// goroutine-safe.
type Adapter struct {
	events *prometheus.CounterVec
}

// New constructs a Prometheus metrics adapter.
//   - reg:         registry to register with (nil => prometheus.DefaultRegisterer)
//   - ns, sub:     Prometheus namespace and subsystem
//   - constLabels: static labels applied to all metrics (may be nil)
func New(reg prometheus.Registerer, ns, sub string, constLabels prometheus.Labels) *Adapter {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	a := &Adapter{
		events: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   ns,
				Subsystem:   sub,
				Name:        "events_total",
				Help:        "Cache and resilience events by name",
				ConstLabels: constLabels,
			},
			[]string{"event", "operation", "error"},
		),
	}
	reg.MustRegister(a.events)
	return a
}

// IncrementCounter records one event. Unknown tag keys are ignored;
// missing ones become empty label values.
func (a *Adapter) IncrementCounter(name string, tags map[string]string) {
	a.events.WithLabelValues(name, tags["operation"], tags["error"]).Inc()
}

// Compile-time check: ensure Adapter implements the cache sink.
var _ cache.Metrics = (*Adapter)(nil)
