package eval

import (
	"strings"
	"testing"
)

func TestEvalPassesWithinBounds(t *testing.T) {
	h := NewEvalHarness(DefaultEvalConfig(5))

	result := h.Run(Observation{Charged: 3, Rocket: true})

	if !result.Passed {
		t.Fatalf("expected pass, got %s", result.Reason)
	}
	if len(result.Metrics) != 2 {
		t.Fatalf("expected 2 metrics without production, got %d", len(result.Metrics))
	}
}

func TestEvalFailsOverCapacity(t *testing.T) {
	h := NewEvalHarness(DefaultEvalConfig(5))

	result := h.Run(Observation{Charged: 6})

	if result.Passed {
		t.Fatal("expected failure over capacity")
	}
	if !strings.Contains(result.Reason, "charged cells 6") {
		t.Fatalf("unexpected reason %q", result.Reason)
	}
}

func TestEvalFailsNegativeCharge(t *testing.T) {
	h := NewEvalHarness(DefaultEvalConfig(5))

	if result := h.Run(Observation{Charged: -1}); result.Passed {
		t.Fatal("expected failure for negative charge")
	}
}

func TestEvalChecksReserveAfterProduction(t *testing.T) {
	h := NewEvalHarness(DefaultEvalConfig(5))

	ok := h.Run(Observation{Charged: 3, Produced: true, ReserveCells: 3})
	if !ok.Passed {
		t.Fatalf("leaving exactly the reserve must pass, got %s", ok.Reason)
	}

	bad := h.Run(Observation{Charged: 2, Produced: true, ReserveCells: 3})
	if bad.Passed {
		t.Fatal("expected failure when production dips below the reserve")
	}
	last := bad.Metrics[len(bad.Metrics)-1]
	if last.Name != "reserve_respected" || last.Pass {
		t.Fatalf("unexpected reserve metric %+v", last)
	}
}

func TestEvalMultipleFailures(t *testing.T) {
	h := NewEvalHarness(EvalConfig{Capacity: 2, MaxRocket: 0})

	result := h.Run(Observation{Charged: 3, Rocket: true})

	if result.Passed {
		t.Fatal("expected failure")
	}
	if !strings.Contains(result.Reason, "2 checks") {
		t.Fatalf("expected multi-failure reason, got %q", result.Reason)
	}
}
