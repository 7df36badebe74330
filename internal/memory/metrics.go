package memory

import "github.com/prometheus/client_golang/prometheus"

const metricsNamespace = "bernard"

// Metrics holds the memory store's Prometheus collectors. A nil *Metrics
// records nothing.
type Metrics struct {
	facts      prometheus.Gauge
	added      prometheus.Counter
	duplicates prometheus.Counter
	evicted    prometheus.Counter
	searches   prometheus.Counter
	hits       prometheus.Counter
}

// NewMetrics creates the collectors and registers them on reg.
// A nil reg returns nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		return nil
	}
	m := &Metrics{
		facts: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: "memory",
			Name:      "facts",
			Help:      "Number of facts currently stored",
		}),
		added: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "memory",
			Name:      "added_total",
			Help:      "Facts inserted into the store",
		}),
		duplicates: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "memory",
			Name:      "duplicates_total",
			Help:      "Facts rejected as near-duplicates of stored facts",
		}),
		evicted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "memory",
			Name:      "evicted_total",
			Help:      "Facts removed by capacity eviction",
		}),
		searches: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "memory",
			Name:      "searches_total",
			Help:      "Similarity searches executed",
		}),
		hits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "memory",
			Name:      "search_hits_total",
			Help:      "Facts returned by similarity searches",
		}),
	}
	reg.MustRegister(m.facts, m.added, m.duplicates, m.evicted, m.searches, m.hits)
	return m
}

func (m *Metrics) setFacts(n int) {
	if m != nil {
		m.facts.Set(float64(n))
	}
}

func (m *Metrics) recordAdd(added, duplicates, evicted int) {
	if m == nil {
		return
	}
	m.added.Add(float64(added))
	m.duplicates.Add(float64(duplicates))
	m.evicted.Add(float64(evicted))
}

func (m *Metrics) recordSearch(hits int) {
	if m == nil {
		return
	}
	m.searches.Inc()
	m.hits.Add(float64(hits))
}
