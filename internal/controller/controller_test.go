package controller

import (
	"errors"
	"math/rand/v2"
	"testing"

	"github.com/danielpatrickdp/cell-controller/internal/logging"
	"github.com/danielpatrickdp/cell-controller/internal/policy"
	"github.com/danielpatrickdp/cell-controller/internal/resource"
)

// #region helpers
type memRecorder struct {
	records []logging.EventRecord
	err     error
}

func (m *memRecorder) Record(rec logging.EventRecord) error {
	m.records = append(m.records, rec)
	return m.err
}

// brokenGenerator admits carbon but fails to make it.
type brokenGenerator struct {
	*resource.Generator
}

func (brokenGenerator) Make(resource.Kind, int, int64) (resource.Resource, error) {
	return resource.Resource{}, errors.New("generator offline")
}

func newController(t *testing.T, config Config) *Controller {
	t.Helper()
	c, err := New(config, nil, nil)
	if err != nil {
		t.Fatalf("new controller: %v", err)
	}
	return c
}

// toAdaptive feeds deliveries every 1000ms from 1000 to 20000 and threats
// every 5000ms from 5500 to 20500. The third threat sample (at 20500) flips
// the participant into adaptive mode with 4 charged cells and a rocket.
func toAdaptive(t *testing.T, c *Controller) {
	t.Helper()
	threatAt := int64(5500)
	for now := int64(1000); now <= 20000; now += 1000 {
		c.OnDelivery(now)
		if now+500 == threatAt {
			if threatAt == 20500 {
				break
			}
			if res := c.OnThreat(threatAt); res.Outcome != Deflected {
				t.Fatalf("threat at %d not deflected", threatAt)
			}
			threatAt += 5000
		}
	}
	if c.Mode() != policy.ModeConservative {
		t.Fatalf("expected conservative before the third threat sample, got %s", c.Mode())
	}
	res := c.OnThreat(20500)
	if res.Outcome != Deflected {
		t.Fatal("threat at 20500 not deflected")
	}
	if !res.Transition.Changed || c.Mode() != policy.ModeAdaptive {
		t.Fatalf("expected transition to adaptive, got %+v", res.Transition)
	}
}

// #endregion helpers

// #region config-tests
func TestNewRejectsInvalidConfig(t *testing.T) {
	cases := map[string]func(*Config){
		"zero capacity":     func(c *Config) { c.Capacity = 0 },
		"alpha zero":        func(c *Config) { c.EMAAlpha = 0 },
		"alpha above one":   func(c *Config) { c.EMAAlpha = 1.5 },
		"negative fraction": func(c *Config) { c.ThreatFarFraction = -0.1 },
		"zero threshold":    func(c *Config) { c.TransitionSampleThreshold = 0 },
		"reserve too big":   func(c *Config) { c.ConservativeReserve = 6 },
	}
	for name, mutate := range cases {
		config := DefaultConfig()
		mutate(&config)
		if _, err := New(config, nil, nil); !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("%s: expected ErrInvalidConfig, got %v", name, err)
		}
	}
}

func TestDefaultConfigValues(t *testing.T) {
	c := DefaultConfig()
	if c.Capacity != 5 || c.ConservativeReserve != 3 || c.AdaptiveFarReserve != 1 || c.AdaptiveNearReserve != 2 {
		t.Fatalf("unexpected default sizes %+v", c)
	}
	if c.DeliveryImminentFraction != 0.75 || c.ThreatFarFraction != 0.5 || c.EMAAlpha != 0.3 || c.TransitionSampleThreshold != 3 {
		t.Fatalf("unexpected default thresholds %+v", c)
	}
}

// #endregion config-tests

// #region scenario-tests
func TestScenarioA_DeliveriesThenThreatRebuild(t *testing.T) {
	c := newController(t, DefaultConfig())

	for i := int64(1); i <= 4; i++ {
		c.OnDelivery(i * 1000)
	}
	if got := c.AvailableChargedCells(); got != 3 {
		t.Fatalf("expected 3 charged after four deliveries, got %d", got)
	}
	if !c.HasRocket() {
		t.Fatal("expected rocket after deliveries")
	}

	res := c.OnThreat(5000)
	if res.Outcome != Deflected {
		t.Fatalf("expected deflected, got %s", res.Outcome)
	}
	if !res.RocketRebuilt || !c.HasRocket() {
		t.Fatal("expected immediate rocket rebuild")
	}
	if got := c.AvailableChargedCells(); got != 2 {
		t.Fatalf("expected 2 charged after rebuild, got %d", got)
	}
}

func TestScenarioB_ConservativeReserve(t *testing.T) {
	c := newController(t, DefaultConfig())
	for i := int64(1); i <= 4; i++ {
		c.OnDelivery(i * 1000)
	}

	_, err := c.OnProductionRequest(resource.Carbon, 4100)
	if !errors.Is(err, ErrInsufficientCharge) {
		t.Fatalf("expected ErrInsufficientCharge with 3 charged, got %v", err)
	}
	if c.AvailableChargedCells() != 3 {
		t.Fatalf("denied request must not spend charge, got %d", c.AvailableChargedCells())
	}

	c.OnDelivery(5000)
	res, err := c.OnProductionRequest(resource.Carbon, 5100)
	if err != nil {
		t.Fatalf("expected production with 4 charged, got %v", err)
	}
	if res.Kind != resource.Carbon {
		t.Fatalf("expected carbon, got %s", res.Kind)
	}
	if c.AvailableChargedCells() != 3 {
		t.Fatalf("expected 3 charged after production, got %d", c.AvailableChargedCells())
	}
}

func TestScenarioC_AdaptiveFarThreat(t *testing.T) {
	c := newController(t, DefaultConfig())
	toAdaptive(t, c)
	if got := c.AvailableChargedCells(); got != 4 {
		t.Fatalf("expected 4 charged after the transition, got %d", got)
	}

	// 100ms after the threat (far), 600ms after the delivery (not imminent): reserve 1
	if snap := c.Snapshot(20600); snap.Reserve != 1 {
		t.Fatalf("expected reserve 1, got %d", snap.Reserve)
	}
	for want := 3; want >= 1; want-- {
		if _, err := c.OnProductionRequest(resource.Carbon, 20600); err != nil {
			t.Fatalf("expected production to leave %d, got %v", want, err)
		}
		if got := c.AvailableChargedCells(); got != want {
			t.Fatalf("expected %d charged, got %d", want, got)
		}
	}

	if _, err := c.OnProductionRequest(resource.Carbon, 20600); !errors.Is(err, ErrInsufficientCharge) {
		t.Fatalf("expected reserve to hold the last cell, got %v", err)
	}
	if c.AvailableChargedCells() != 1 {
		t.Fatalf("expected 1 charged, got %d", c.AvailableChargedCells())
	}
}

// #endregion scenario-tests

// #region policy-tests
func TestAdaptiveRevertsWhenThreatsSpeedUp(t *testing.T) {
	c := newController(t, DefaultConfig())
	toAdaptive(t, c)

	// threat estimate 5000 -> 3530 -> 2501 -> 1780.7 -> 1276.5 -> 923.5
	for i, now := range []int64{20600, 20700, 20800, 20900} {
		c.OnThreat(now)
		if c.Mode() != policy.ModeAdaptive {
			t.Fatalf("threat %d: expected adaptive, got %s", i+1, c.Mode())
		}
	}
	res := c.OnThreat(21000)
	if res.Outcome != Deflected {
		t.Fatalf("expected the rocket built at 20900 to deflect, got %s", res.Outcome)
	}
	if !res.Transition.Changed || c.Mode() != policy.ModeConservative {
		t.Fatalf("expected revert to conservative, got %+v", res.Transition)
	}
}

func TestProductionDoesNotReevaluateMode(t *testing.T) {
	c := newController(t, DefaultConfig())
	for i := int64(1); i <= 5; i++ {
		c.OnDelivery(i * 1000)
	}
	before := c.Mode()
	c.OnProductionRequest(resource.Carbon, 5100)
	if c.Mode() != before {
		t.Fatalf("mode changed on production: %s -> %s", before, c.Mode())
	}
}

func TestAdaptiveClampedReserveAllowsLastCell(t *testing.T) {
	config := DefaultConfig()
	config.AdaptiveFarReserve = 0
	c := newController(t, config)
	toAdaptive(t, c)

	// 100ms after the threat (far), 900ms after the delivery (imminent): 0 - 1 clamps to 0
	now := int64(20900)
	if snap := c.Snapshot(now); snap.Reserve != 0 {
		t.Fatalf("expected clamped reserve 0, got %d", snap.Reserve)
	}
	// the clock is not advanced past the threat's half-life, so the reserve stays 0
	for c.AvailableChargedCells() > 0 {
		if _, err := c.OnProductionRequest(resource.Carbon, now); err != nil {
			t.Fatalf("unexpected denial with reserve 0: %v", err)
		}
	}
	if _, err := c.OnProductionRequest(resource.Carbon, now); !errors.Is(err, ErrInsufficientCharge) {
		t.Fatalf("expected ErrInsufficientCharge with zero charge in adaptive mode, got %v", err)
	}
}

// #endregion policy-tests

// #region edge-tests
func TestThreatWithoutRocketDestroys(t *testing.T) {
	c := newController(t, DefaultConfig())

	res := c.OnThreat(1000)

	if res.Outcome != Destroyed {
		t.Fatalf("expected destroyed, got %s", res.Outcome)
	}
	if res.Transition.Changed {
		t.Fatal("destroyed participant must not re-evaluate")
	}
}

func TestDeliveryDiscardedWhenFull(t *testing.T) {
	config := DefaultConfig()
	config.Capacity = 2
	config.ConservativeReserve = 2
	config.AdaptiveNearReserve = 2
	c := newController(t, config)

	c.OnDelivery(1000) // charge + rocket
	c.OnDelivery(2000)
	c.OnDelivery(3000)
	res := c.OnDelivery(4000)

	if res.Charged || res.CellIndex != -1 {
		t.Fatalf("expected discarded delivery, got %+v", res)
	}
	snap := c.Snapshot(4000)
	if snap.Charged != 2 || snap.Counters.Discarded != 1 {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
}

func TestUnsupportedResourceCheckedFirst(t *testing.T) {
	c := newController(t, DefaultConfig())

	_, err := c.OnProductionRequest(resource.Oxygen, 100)
	if !errors.Is(err, ErrUnsupportedResource) {
		t.Fatalf("expected ErrUnsupportedResource, got %v", err)
	}
}

func TestZeroChargeConservative(t *testing.T) {
	c := newController(t, DefaultConfig())

	_, err := c.OnProductionRequest(resource.Carbon, 100)
	if !errors.Is(err, ErrInsufficientCharge) {
		t.Fatalf("expected ErrInsufficientCharge, got %v", err)
	}
}

func TestCombineRejected(t *testing.T) {
	c := newController(t, DefaultConfig())

	if _, err := c.Combine(resource.Carbon, resource.Oxygen); !errors.Is(err, ErrNoCombinationRules) {
		t.Fatalf("expected ErrNoCombinationRules, got %v", err)
	}
	if got := c.SupportedResources(); len(got) != 1 || got[0] != resource.Carbon {
		t.Fatalf("expected carbon only, got %v", got)
	}
}

// #endregion edge-tests

// #region recorder-tests
func TestRecorderReceivesEveryEvent(t *testing.T) {
	rec := &memRecorder{}
	c, err := New(DefaultConfig(), nil, rec)
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	c.OnDelivery(1000)
	c.OnDelivery(2000)
	c.OnProductionRequest(resource.Carbon, 2100)
	c.OnThreat(3000)

	if len(rec.records) != 4 {
		t.Fatalf("expected 4 records, got %d", len(rec.records))
	}
	first := rec.records[0]
	if first.Kind != "delivery" || first.Outcome != "charged" || !first.RocketBuilt || first.Seq != 1 {
		t.Fatalf("unexpected first record %+v", first)
	}
	prod := rec.records[2]
	if prod.Outcome != "deny" || prod.Reserve == nil || *prod.Reserve != 3 {
		t.Fatalf("unexpected production record %+v", prod)
	}
	threat := rec.records[3]
	if threat.Outcome != "deflected" || threat.ChargedBefore != 1 || threat.ChargedAfter != 0 || !threat.RocketAfter {
		t.Fatalf("unexpected threat record %+v", threat)
	}
	if threat.Thresholds.Capacity != 5 {
		t.Fatalf("expected thresholds in record, got %+v", threat.Thresholds)
	}
}

func TestRecorderErrorDoesNotFailEvent(t *testing.T) {
	rec := &memRecorder{err: errors.New("disk full")}
	c, err := New(DefaultConfig(), nil, rec)
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	res := c.OnDelivery(1000)
	if !res.Charged {
		t.Fatal("journal failure must not affect the delivery")
	}
}

// #endregion recorder-tests

// #region property-tests
func TestInvariantsHoldOverRandomSequences(t *testing.T) {
	for seed := uint64(1); seed <= 20; seed++ {
		rng := rand.New(rand.NewPCG(seed, seed*7))
		c := newController(t, DefaultConfig())
		now := int64(0)

		for step := 0; step < 500; step++ {
			now += int64(rng.IntN(2000))
			switch rng.IntN(3) {
			case 0:
				c.OnDelivery(now)
			case 1:
				if c.OnThreat(now).Outcome == Destroyed {
					step = 500
				}
			case 2:
				reserve := c.Snapshot(now).Reserve
				if _, err := c.OnProductionRequest(resource.Carbon, now); err == nil {
					if got := c.AvailableChargedCells(); got < reserve {
						t.Fatalf("seed %d: production left %d below reserve %d", seed, got, reserve)
					}
				}
			}

			if got := c.AvailableChargedCells(); got < 0 || got > 5 {
				t.Fatalf("seed %d: charged %d out of bounds", seed, got)
			}
		}
		if v := c.Snapshot(now).Counters.Violations; v != 0 {
			t.Fatalf("seed %d: %d invariant violations", seed, v)
		}
	}
}

// #endregion property-tests

func TestFailedMakeIsJournaledAsInvalidState(t *testing.T) {
	rec := &memRecorder{}
	c, err := New(DefaultConfig(), nil, rec)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	c.generator = brokenGenerator{resource.NewGenerator(resource.Carbon)}
	for now := int64(1000); now <= 5000; now += 1000 {
		c.OnDelivery(now)
	}
	if c.AvailableChargedCells() != 4 {
		t.Fatalf("expected 4 charged, got %d", c.AvailableChargedCells())
	}

	_, err = c.OnProductionRequest(resource.Carbon, 5100)
	if !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState, got %v", err)
	}
	if c.AvailableChargedCells() != 4 {
		t.Fatalf("failed production must keep its charge, got %d charged", c.AvailableChargedCells())
	}

	snap := c.Snapshot(5100)
	if snap.Counters.Denied != 1 || snap.Counters.Violations != 1 || snap.Counters.Produced != 0 {
		t.Fatalf("unexpected counters %+v", snap.Counters)
	}
	last := rec.records[len(rec.records)-1]
	if last.Kind != "production" || last.Outcome != "deny" || last.ChargedAfter != 4 || last.Reserve == nil {
		t.Fatalf("unexpected journal record %+v", last)
	}
}
