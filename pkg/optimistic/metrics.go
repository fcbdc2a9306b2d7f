package optimistic

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts mutation outcomes. A nil *Metrics is a no-op so the
// executor works unchanged without instrumentation.
type Metrics struct {
	applied      prometheus.Counter
	rolledBack   *prometheus.CounterVec
	droppedStale prometheus.Counter
}

// NewMetrics registers mutation counters under the given namespace. A nil
// registerer falls back to the default registry.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "neurolearn"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Metrics{
		applied: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "optimistic",
			Name:      "mutations_applied_total",
			Help:      "Mutations that settled successfully.",
		}),
		rolledBack: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "optimistic",
			Name:      "mutations_rolled_back_total",
			Help:      "Mutations rolled back after a remote failure.",
		}, []string{"failure_kind"}),
		droppedStale: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "optimistic",
			Name:      "mutations_dropped_stale_total",
			Help:      "Settlements discarded because the caller's context was cancelled.",
		}),
	}
}

func (m *Metrics) observeApplied() {
	if m == nil {
		return
	}
	m.applied.Inc()
}

func (m *Metrics) observeRollback(kind FailureKind) {
	if m == nil {
		return
	}
	m.rolledBack.WithLabelValues(string(kind)).Inc()
}

func (m *Metrics) observeDropped() {
	if m == nil {
		return
	}
	m.droppedStale.Inc()
}
