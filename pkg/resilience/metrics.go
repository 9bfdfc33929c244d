package resilience

import "github.com/prometheus/client_golang/prometheus"

// BreakerMetrics records breaker state (0=closed, 1=half-open, 2=open) and
// transitions. Nil vectors are skipped.
type BreakerMetrics struct {
	State       *prometheus.GaugeVec   // labels: name
	Transitions *prometheus.CounterVec // labels: name, from, to
}

// OnStateChange matches CircuitBreakerConfig.OnStateChange.
func (m BreakerMetrics) OnStateChange(name string, from, to CircuitBreakerState) {
	if m.Transitions != nil {
		m.Transitions.WithLabelValues(name, from.String(), to.String()).Inc()
	}
	if m.State != nil {
		m.State.WithLabelValues(name).Set(float64(to))
	}
}
