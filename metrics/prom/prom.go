package prom

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/yuntaz2/blockcache/bcache"
)

// Adapter implements bcache.Metrics and exports Prometheus counters.
// Safe for concurrent use; all Prometheus metric types are goroutine-safe.
type Adapter struct {
	hits      prometheus.Counter
	misses    prometheus.Counter
	evicts    *prometheus.CounterVec
	exhausted prometheus.Counter
}

// New constructs a Prometheus metrics adapter.
//   - reg:          registry to register metrics with (nil => prometheus.DefaultRegisterer)
//   - ns, sub:      Prometheus namespace and subsystem
//   - constLabels:  static labels applied to all metrics (may be nil)
func New(reg prometheus.Registerer, ns, sub string, constLabels prometheus.Labels) *Adapter {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	a := &Adapter{
		hits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "hits_total",
			Help:        "Block lookups served from a resident slot",
			ConstLabels: constLabels,
		}),
		misses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "misses_total",
			Help:        "Block lookups that required a slot rebind and load",
			ConstLabels: constLabels,
		}),
		evicts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   ns,
				Subsystem:   sub,
				Name:        "evictions_total",
				Help:        "Valid blocks displaced from their slot, by reason",
				ConstLabels: constLabels,
			},
			[]string{"reason"},
		),
		exhausted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "exhausted_total",
			Help:        "Acquires that failed because every slot was referenced",
			ConstLabels: constLabels,
		}),
	}
	reg.MustRegister(a.hits, a.misses, a.evicts, a.exhausted)
	return a
}

// Hit increments the hit counter.
func (a *Adapter) Hit() { a.hits.Inc() }

// Miss increments the miss counter.
func (a *Adapter) Miss() { a.misses.Inc() }

// Evict increments the eviction counter with a reason label.
func (a *Adapter) Evict(r bcache.EvictReason) {
	a.evicts.WithLabelValues(reason(r)).Inc()
}

// Exhausted increments the pool-exhaustion counter.
func (a *Adapter) Exhausted() { a.exhausted.Inc() }

// reason maps EvictReason to a stable label value.
func reason(r bcache.EvictReason) string {
	switch r {
	case bcache.EvictSteal:
		return "steal"
	default:
		return "replace"
	}
}

// Compile-time check: ensure Adapter implements bcache.Metrics.
var _ bcache.Metrics = (*Adapter)(nil)
