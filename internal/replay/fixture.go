package replay

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/danielpatrickdp/cell-controller/internal/controller"
	"github.com/danielpatrickdp/cell-controller/internal/resource"
)

// #region fixture-types

// Fixture is the top-level JSON structure for a replay fixture.
type Fixture struct {
	Description     string                  `json:"description"`
	Config          FixtureConfig           `json:"config"`
	Events          []FixtureEvent          `json:"events"`
	ExpectedResults []FixtureExpectedResult `json:"expected_results"`
}

// FixtureConfig mirrors controller.Config with JSON tags. Zero fields fall
// back to controller.DefaultConfig.
type FixtureConfig struct {
	ID                        uint32  `json:"id"`
	Capacity                  int     `json:"capacity,omitempty"`
	ConservativeReserve       *int    `json:"conservative_reserve,omitempty"`
	AdaptiveFarReserve        *int    `json:"adaptive_far_reserve,omitempty"`
	AdaptiveNearReserve       *int    `json:"adaptive_near_reserve,omitempty"`
	DeliveryImminentFraction  float64 `json:"delivery_imminent_fraction,omitempty"`
	ThreatFarFraction         float64 `json:"threat_far_fraction,omitempty"`
	EMAAlpha                  float64 `json:"ema_alpha,omitempty"`
	TransitionSampleThreshold uint32  `json:"transition_sample_threshold,omitempty"`
}

// FixtureEvent mirrors replay.Event with JSON tags.
type FixtureEvent struct {
	Kind     string `json:"kind"`
	AtMs     int64  `json:"at_ms"`
	Resource string `json:"resource,omitempty"`
}

// FixtureExpectedResult captures the expected outcome per step. Mode and
// Charged are checked only when present.
type FixtureExpectedResult struct {
	Step    int    `json:"step"`
	Outcome string `json:"outcome"`
	Mode    string `json:"mode,omitempty"`
	Charged *int   `json:"charged,omitempty"`
}

// #endregion fixture-types

// #region fixture-loader

// LoadFixture reads and parses a JSON fixture file.
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture %s: %w", path, err)
	}
	var f Fixture
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse fixture %s: %w", path, err)
	}
	return &f, nil
}

// ToConfig converts a FixtureConfig to a controller.Config.
func (fc *FixtureConfig) ToConfig() controller.Config {
	c := controller.DefaultConfig()
	c.ID = fc.ID
	if fc.Capacity != 0 {
		c.Capacity = fc.Capacity
	}
	if fc.ConservativeReserve != nil {
		c.ConservativeReserve = *fc.ConservativeReserve
	}
	if fc.AdaptiveFarReserve != nil {
		c.AdaptiveFarReserve = *fc.AdaptiveFarReserve
	}
	if fc.AdaptiveNearReserve != nil {
		c.AdaptiveNearReserve = *fc.AdaptiveNearReserve
	}
	if fc.DeliveryImminentFraction != 0 {
		c.DeliveryImminentFraction = fc.DeliveryImminentFraction
	}
	if fc.ThreatFarFraction != 0 {
		c.ThreatFarFraction = fc.ThreatFarFraction
	}
	if fc.EMAAlpha != 0 {
		c.EMAAlpha = fc.EMAAlpha
	}
	if fc.TransitionSampleThreshold != 0 {
		c.TransitionSampleThreshold = fc.TransitionSampleThreshold
	}
	return c
}

// FixtureConfigFrom renders a controller.Config for export.
func FixtureConfigFrom(c controller.Config) FixtureConfig {
	conservative, far, near := c.ConservativeReserve, c.AdaptiveFarReserve, c.AdaptiveNearReserve
	return FixtureConfig{
		ID:                        c.ID,
		Capacity:                  c.Capacity,
		ConservativeReserve:       &conservative,
		AdaptiveFarReserve:        &far,
		AdaptiveNearReserve:       &near,
		DeliveryImminentFraction:  c.DeliveryImminentFraction,
		ThreatFarFraction:         c.ThreatFarFraction,
		EMAAlpha:                  c.EMAAlpha,
		TransitionSampleThreshold: c.TransitionSampleThreshold,
	}
}

// ToEvent converts a FixtureEvent to a domain Event.
func (fe *FixtureEvent) ToEvent() Event {
	return Event{
		Kind:     fe.Kind,
		AtMs:     fe.AtMs,
		Resource: resource.Kind(fe.Resource),
	}
}

// ToEvents converts every fixture event.
func (f *Fixture) ToEvents() []Event {
	events := make([]Event, len(f.Events))
	for i := range f.Events {
		events[i] = f.Events[i].ToEvent()
	}
	return events
}

// #endregion fixture-loader

// #region compare

// Mismatch describes one step whose replayed outcome differs from the fixture.
type Mismatch struct {
	Step     int
	Field    string
	Expected string
	Actual   string
}

// Compare checks results against the fixture's expectations.
func Compare(expected []FixtureExpectedResult, results []ReplayResult) []Mismatch {
	var out []Mismatch
	for _, exp := range expected {
		if exp.Step < 0 || exp.Step >= len(results) {
			out = append(out, Mismatch{Step: exp.Step, Field: "step", Expected: exp.Outcome, Actual: "missing"})
			continue
		}
		actual := results[exp.Step]
		if actual.Outcome != exp.Outcome {
			out = append(out, Mismatch{Step: exp.Step, Field: "outcome", Expected: exp.Outcome, Actual: actual.Outcome})
		}
		if exp.Mode != "" && actual.ModeAfter != exp.Mode {
			out = append(out, Mismatch{Step: exp.Step, Field: "mode", Expected: exp.Mode, Actual: actual.ModeAfter})
		}
		if exp.Charged != nil && actual.Charged != *exp.Charged {
			out = append(out, Mismatch{
				Step:     exp.Step,
				Field:    "charged",
				Expected: fmt.Sprint(*exp.Charged),
				Actual:   fmt.Sprint(actual.Charged),
			})
		}
	}
	return out
}

// #endregion compare
