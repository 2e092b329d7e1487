package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Participant counters and gauges, partitioned by participant id.

var (
	EventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cellctl",
		Subsystem: "controller",
		Name:      "events_total",
		Help:      "Total handled events by kind",
	}, []string{"participant", "kind"})

	ProductionTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cellctl",
		Subsystem: "controller",
		Name:      "production_total",
		Help:      "Production requests by outcome (admit, deny, unsupported)",
	}, []string{"participant", "outcome"})

	ThreatsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cellctl",
		Subsystem: "controller",
		Name:      "threats_total",
		Help:      "Threats by outcome (deflected, destroyed)",
	}, []string{"participant", "outcome"})

	ModeTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cellctl",
		Subsystem: "policy",
		Name:      "transitions_total",
		Help:      "Policy mode transitions by target mode",
	}, []string{"participant", "to"})

	InvariantViolationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cellctl",
		Subsystem: "controller",
		Name:      "invariant_violations_total",
		Help:      "Post-event invariant check failures",
	}, []string{"participant"})

	ChargedCells = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "cellctl",
		Subsystem: "cells",
		Name:      "charged",
		Help:      "Charged energy cells",
	}, []string{"participant"})

	RocketPresent = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "cellctl",
		Subsystem: "cells",
		Name:      "rocket_present",
		Help:      "1 when a rocket is stored",
	}, []string{"participant"})

	PolicyMode = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "cellctl",
		Subsystem: "policy",
		Name:      "mode",
		Help:      "Current policy mode (0 conservative, 1 adaptive)",
	}, []string{"participant"})

	IntervalEstimateMs = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "cellctl",
		Subsystem: "estimator",
		Name:      "interval_ms",
		Help:      "Smoothed inter-arrival estimate in milliseconds",
	}, []string{"participant", "kind"})
)

// BoolGauge converts a flag to a gauge value.
func BoolGauge(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
