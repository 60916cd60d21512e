// Package metrics wires the manager's process gauges through
// Prometheus client types. A Set is constructed once at startup and
// injected into consumers — there is no package-level global registry,
// per the design note that global mutable state should be limited to
// explicitly-acquired, explicitly-injected resources.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Set holds the gauges the validator manager updates once per
// update_shards iteration.
type Set struct {
	Registry *prometheus.Registry

	ValidationStatus  prometheus.Gauge
	ActiveSessions    prometheus.Gauge
	InCurrentVsetP34  prometheus.Gauge
	InNextVsetP36     prometheus.Gauge
	UpdateShardsTotal prometheus.Counter
}

// NewSet builds a Set registered against a fresh registry.
func NewSet() *Set {
	reg := prometheus.NewRegistry()
	s := &Set{
		Registry: reg,
		ValidationStatus: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "shardvalidator",
			Name:      "validation_status",
			Help:      "Current ValidationStatus lattice position (0=disabled..3=active).",
		}),
		ActiveSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "shardvalidator",
			Name:      "active_sessions",
			Help:      "Number of validator_sessions entries currently tracked.",
		}),
		InCurrentVsetP34: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "shardvalidator",
			Name:      "in_current_vset_p34",
			Help:      "1 if this node holds a key in the current validator list, else 0.",
		}),
		InNextVsetP36: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "shardvalidator",
			Name:      "in_next_vset_p36",
			Help:      "1 if this node holds a key in the next validator list, else 0.",
		}),
		UpdateShardsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "shardvalidator",
			Name:      "update_shards_total",
			Help:      "Number of completed update_shards iterations.",
		}),
	}
	reg.MustRegister(s.ValidationStatus, s.ActiveSessions, s.InCurrentVsetP34, s.InNextVsetP36, s.UpdateShardsTotal)
	return s
}

func boolGauge(v bool) float64 {
	if v {
		return 1
	}
	return 0
}

// SetMembership updates the p34/p36 membership gauges in one call.
func (s *Set) SetMembership(inCurrent, inNext bool) {
	s.InCurrentVsetP34.Set(boolGauge(inCurrent))
	s.InNextVsetP36.Set(boolGauge(inNext))
}
