package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics_AllVariablesNonNil(t *testing.T) {
	t.Parallel()

	vars := []struct {
		name string
		val  any
	}{
		{"EventsTotal", EventsTotal},
		{"ProductionTotal", ProductionTotal},
		{"ThreatsTotal", ThreatsTotal},
		{"ModeTransitionsTotal", ModeTransitionsTotal},
		{"InvariantViolationsTotal", InvariantViolationsTotal},
		{"ChargedCells", ChargedCells},
		{"RocketPresent", RocketPresent},
		{"PolicyMode", PolicyMode},
		{"IntervalEstimateMs", IntervalEstimateMs},
	}

	for _, v := range vars {
		if v.val == nil {
			t.Errorf("%s should not be nil", v.name)
		}
	}
}

func TestMetrics_CounterIncrement(t *testing.T) {
	t.Parallel()

	c := EventsTotal.WithLabelValues("metrics-test", "delivery")
	before := testutil.ToFloat64(c)
	c.Inc()
	if got := testutil.ToFloat64(c); got != before+1 {
		t.Fatalf("expected %v, got %v", before+1, got)
	}
}

func TestMetrics_GaugeSet(t *testing.T) {
	t.Parallel()

	g := ChargedCells.WithLabelValues("metrics-test")
	g.Set(4)
	if got := testutil.ToFloat64(g); got != 4 {
		t.Fatalf("expected 4, got %v", got)
	}
}

func TestBoolGauge(t *testing.T) {
	if BoolGauge(true) != 1 || BoolGauge(false) != 0 {
		t.Fatal("unexpected bool gauge values")
	}
}
