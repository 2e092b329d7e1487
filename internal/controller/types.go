package controller

import (
	"fmt"

	"github.com/danielpatrickdp/cell-controller/internal/estimator"
	"github.com/danielpatrickdp/cell-controller/internal/gate"
	"github.com/danielpatrickdp/cell-controller/internal/logging"
	"github.com/danielpatrickdp/cell-controller/internal/policy"
)

// #region config
// Config is the immutable tuning of one participant.
type Config struct {
	ID                        uint32  // participant id, used for log and metric labels
	Capacity                  int     // number of energy cells
	ConservativeReserve       int     // reserve in conservative mode
	AdaptiveFarReserve        int     // adaptive reserve while the next threat is far
	AdaptiveNearReserve       int     // adaptive reserve otherwise
	DeliveryImminentFraction  float64 // of the delivery estimate
	ThreatFarFraction         float64 // of the threat estimate
	EMAAlpha                  float64 // interval smoothing factor
	TransitionSampleThreshold uint32  // samples per kind before adaptive mode
}

// DefaultConfig returns the stock participant: five cells and the standard reserves.
func DefaultConfig() Config {
	g := gate.DefaultGateConfig()
	return Config{
		Capacity:                  5,
		ConservativeReserve:       g.ConservativeReserve,
		AdaptiveFarReserve:        g.AdaptiveFarReserve,
		AdaptiveNearReserve:       g.AdaptiveNearReserve,
		DeliveryImminentFraction:  g.DeliveryImminentFraction,
		ThreatFarFraction:         g.ThreatFarFraction,
		EMAAlpha:                  estimator.DefaultAlpha,
		TransitionSampleThreshold: policy.DefaultSampleThreshold,
	}
}

// Validate rejects configurations the policy cannot run with.
func (c Config) Validate() error {
	switch {
	case c.Capacity <= 0:
		return fmt.Errorf("%w: capacity %d must be positive", ErrInvalidConfig, c.Capacity)
	case c.EMAAlpha <= 0 || c.EMAAlpha > 1:
		return fmt.Errorf("%w: ema alpha %v must be in (0, 1]", ErrInvalidConfig, c.EMAAlpha)
	case c.DeliveryImminentFraction < 0 || c.ThreatFarFraction < 0:
		return fmt.Errorf("%w: fractions must not be negative", ErrInvalidConfig)
	case c.TransitionSampleThreshold == 0:
		return fmt.Errorf("%w: transition sample threshold must be at least 1", ErrInvalidConfig)
	}
	for name, r := range map[string]int{
		"conservative":  c.ConservativeReserve,
		"adaptive far":  c.AdaptiveFarReserve,
		"adaptive near": c.AdaptiveNearReserve,
	} {
		if r < 0 || r > c.Capacity {
			return fmt.Errorf("%w: %s reserve %d outside [0, %d]", ErrInvalidConfig, name, r, c.Capacity)
		}
	}
	return nil
}

// GateConfig extracts the reservation thresholds.
func (c Config) GateConfig() gate.GateConfig {
	return gate.GateConfig{
		ConservativeReserve:      c.ConservativeReserve,
		AdaptiveFarReserve:       c.AdaptiveFarReserve,
		AdaptiveNearReserve:      c.AdaptiveNearReserve,
		DeliveryImminentFraction: c.DeliveryImminentFraction,
		ThreatFarFraction:        c.ThreatFarFraction,
	}
}

// Thresholds renders the config for the decision journal.
func (c Config) Thresholds() logging.ThresholdRecord {
	return logging.ThresholdRecord{
		Capacity:                  c.Capacity,
		ConservativeReserve:       c.ConservativeReserve,
		AdaptiveFarReserve:        c.AdaptiveFarReserve,
		AdaptiveNearReserve:       c.AdaptiveNearReserve,
		DeliveryImminentFraction:  c.DeliveryImminentFraction,
		ThreatFarFraction:         c.ThreatFarFraction,
		EMAAlpha:                  c.EMAAlpha,
		TransitionSampleThreshold: c.TransitionSampleThreshold,
	}
}

// #endregion config

// #region recorder
// Recorder receives one record per handled event. Implementations must not
// call back into the controller.
type Recorder interface {
	Record(rec logging.EventRecord) error
}

// #endregion recorder

// #region results
// ThreatOutcome reports whether a threat was deflected.
type ThreatOutcome string

const (
	Deflected ThreatOutcome = "deflected"
	Destroyed ThreatOutcome = "destroyed"
)

// DeliveryResult describes what one delivery changed.
type DeliveryResult struct {
	Charged     bool // false when every cell was already full
	CellIndex   int  // -1 when not charged
	RocketBuilt bool
	Transition  policy.Transition
}

// ThreatResult describes the handling of one threat.
type ThreatResult struct {
	Outcome       ThreatOutcome
	RocketRebuilt bool
	Transition    policy.Transition // zero value when destroyed
}

// Counters are lifetime event totals.
type Counters struct {
	Deliveries uint64 `json:"deliveries"`
	Discarded  uint64 `json:"discarded"`
	Threats    uint64 `json:"threats"`
	Deflected  uint64 `json:"deflected"`
	Produced   uint64 `json:"produced"`
	Denied     uint64 `json:"denied"`
	Violations uint64 `json:"violations"`
}

// Snapshot is a read-only view of the participant at one instant.
type Snapshot struct {
	Participant uint32             `json:"participant"`
	AtMs        int64              `json:"at_ms"`
	Mode        policy.Mode        `json:"mode"`
	Cells       []bool             `json:"cells"`
	Charged     int                `json:"charged"`
	Capacity    int                `json:"capacity"`
	Rocket      bool               `json:"rocket"`
	Delivery    estimator.Estimate `json:"delivery"`
	Threat      estimator.Estimate `json:"threat"`
	Reserve     int                `json:"reserve"`
	Counters    Counters           `json:"counters"`
}

// #endregion results
