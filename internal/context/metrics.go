package ctxengine

import "github.com/prometheus/client_golang/prometheus"

// Compression outcomes.
const (
	OutcomeSkipped    = "skipped"
	OutcomeCompressed = "compressed"
	OutcomeFailed     = "failed"
)

// Metrics holds the context engine's Prometheus collectors. A nil *Metrics
// records nothing.
type Metrics struct {
	compressions *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them on reg.
// A nil reg returns nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		return nil
	}
	m := &Metrics{
		compressions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bernard",
			Name:      "compressions_total",
			Help:      "Conversation compression attempts by outcome",
		}, []string{"outcome"}),
	}
	reg.MustRegister(m.compressions)
	return m
}

func (m *Metrics) recordCompression(outcome string) {
	if m != nil {
		m.compressions.WithLabelValues(outcome).Inc()
	}
}
