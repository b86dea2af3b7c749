package watch

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts reload outcomes for a watcher.
type Metrics struct {
	reloads  prometheus.Counter
	failures prometheus.Counter
}

// NewMetrics creates and registers the watcher metrics.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		reloads: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "depot",
			Subsystem: "watch",
			Name:      "reloads_total",
			Help:      "Configuration reloads that produced a valid snapshot.",
		}),
		failures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "depot",
			Subsystem: "watch",
			Name:      "reload_failures_total",
			Help:      "Configuration reloads rejected by validation or parsing.",
		}),
	}
	reg.MustRegister(m.reloads, m.failures)
	return m
}

func (m *Metrics) observe(ok bool) {
	if m == nil {
		return
	}
	if ok {
		m.reloads.Inc()
	} else {
		m.failures.Inc()
	}
}
