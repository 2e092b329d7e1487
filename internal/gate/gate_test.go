package gate

import (
	"errors"
	"testing"

	"github.com/danielpatrickdp/cell-controller/internal/estimator"
	"github.com/danielpatrickdp/cell-controller/internal/policy"
)

func seen(lastMs int64, estimateMs float64) estimator.Estimate {
	return estimator.Estimate{EstimateMs: estimateMs, LastSeenMs: lastMs, SampleCount: 3, Seen: true}
}

// #region reserve-tests
func TestReserveConservativeIsFixed(t *testing.T) {
	g := NewGate(DefaultGateConfig())

	r := g.Reserve(policy.ModeConservative, seen(0, 1000), seen(0, 1000), 999999)

	if r.Cells != 3 {
		t.Fatalf("expected reserve 3, got %d", r.Cells)
	}
}

func TestReserveAdaptiveThreatFarDeliveryNotImminent(t *testing.T) {
	g := NewGate(DefaultGateConfig())
	now := int64(10000)
	delivery := seen(now-100, 1000) // 100 < 750
	threat := seen(now-1000, 5000)  // 1000 < 2500

	r := g.Reserve(policy.ModeAdaptive, delivery, threat, now)

	if !r.ThreatFar || r.DeliveryImminent {
		t.Fatalf("expected far threat and no imminent delivery, got %+v", r)
	}
	if r.Cells != 1 {
		t.Fatalf("expected reserve 1, got %d", r.Cells)
	}
}

func TestReserveAdaptiveThreatNear(t *testing.T) {
	g := NewGate(DefaultGateConfig())
	now := int64(10000)
	delivery := seen(now-100, 1000)
	threat := seen(now-3000, 5000) // 3000 >= 2500

	r := g.Reserve(policy.ModeAdaptive, delivery, threat, now)

	if r.ThreatFar || r.Cells != 2 {
		t.Fatalf("expected near threat with reserve 2, got %+v", r)
	}
}

func TestReserveAdaptiveDeliveryImminent(t *testing.T) {
	g := NewGate(DefaultGateConfig())
	now := int64(10000)
	delivery := seen(now-800, 1000) // 800 > 750
	threat := seen(now-3000, 5000)

	r := g.Reserve(policy.ModeAdaptive, delivery, threat, now)

	if !r.DeliveryImminent || r.Cells != 1 {
		t.Fatalf("expected imminent delivery lowering reserve to 1, got %+v", r)
	}
}

func TestReserveAdaptiveBoundaryIsStrict(t *testing.T) {
	g := NewGate(DefaultGateConfig())
	now := int64(10000)
	delivery := seen(now-750, 1000) // exactly 0.75: not imminent
	threat := seen(now-2500, 5000)  // exactly 0.5: not far

	r := g.Reserve(policy.ModeAdaptive, delivery, threat, now)

	if r.ThreatFar || r.DeliveryImminent || r.Cells != 2 {
		t.Fatalf("boundary values must not trigger either rule, got %+v", r)
	}
}

func TestReserveClampsAtZero(t *testing.T) {
	config := DefaultGateConfig()
	config.AdaptiveFarReserve = 0
	g := NewGate(config)
	now := int64(10000)
	delivery := seen(now-900, 1000)
	threat := seen(now-10, 5000)

	r := g.Reserve(policy.ModeAdaptive, delivery, threat, now)

	if r.Cells != 0 || !r.Clamped {
		t.Fatalf("expected clamped reserve 0, got %+v", r)
	}
}

func TestReserveFarAndImminentReachesZeroWithoutClamp(t *testing.T) {
	g := NewGate(DefaultGateConfig())
	now := int64(10000)
	delivery := seen(now-900, 1000)
	threat := seen(now-10, 5000)

	r := g.Reserve(policy.ModeAdaptive, delivery, threat, now)

	if r.Cells != 0 || r.Clamped {
		t.Fatalf("expected unclamped reserve 0, got %+v", r)
	}
}

// #endregion reserve-tests

// #region evaluate-tests
func TestEvaluateNoChargeDenied(t *testing.T) {
	g := NewGate(DefaultGateConfig())

	for _, reserve := range []int{0, 1, 3} {
		d := g.Evaluate(0, 5, Reserve{Cells: reserve})
		if d.Admitted() {
			t.Fatalf("reserve %d: zero charge must be denied", reserve)
		}
		if !errors.Is(d.Err, ErrInsufficientCharge) || d.Veto != VetoNoCharge {
			t.Fatalf("reserve %d: expected no-charge veto, got %+v", reserve, d)
		}
	}
}

func TestEvaluateOverCapacityIsInvalidState(t *testing.T) {
	g := NewGate(DefaultGateConfig())

	d := g.Evaluate(6, 5, Reserve{Cells: 3})

	if d.Admitted() || !errors.Is(d.Err, ErrInvalidState) {
		t.Fatalf("expected invalid state, got %+v", d)
	}
}

func TestEvaluateConservativeScenario(t *testing.T) {
	g := NewGate(DefaultGateConfig())
	r := g.Reserve(policy.ModeConservative, estimator.Estimate{}, estimator.Estimate{}, 0)

	if d := g.Evaluate(3, 5, r); d.Admitted() || d.Veto != VetoReserve {
		t.Fatalf("3 charged with reserve 3 must be denied, got %+v", d)
	}
	if d := g.Evaluate(4, 5, r); !d.Admitted() {
		t.Fatalf("4 charged with reserve 3 must be admitted, got %+v", d)
	}
}

func TestEvaluateAdaptiveScenario(t *testing.T) {
	g := NewGate(DefaultGateConfig())
	now := int64(10000)
	r := g.Reserve(policy.ModeAdaptive, seen(now-100, 1000), seen(now-1000, 5000), now)

	d := g.Evaluate(2, 5, r)
	if !d.Admitted() {
		t.Fatalf("2 charged with reserve 1 must be admitted, got %+v", d)
	}
	if d.Err != nil {
		t.Fatalf("admitted decision must carry no error, got %v", d.Err)
	}
}

// #endregion evaluate-tests
