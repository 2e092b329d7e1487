package gate

import (
	"fmt"

	"github.com/danielpatrickdp/cell-controller/internal/estimator"
	"github.com/danielpatrickdp/cell-controller/internal/policy"
)

// #region gate
// Gate decides whether a production request may spend a charged cell.
type Gate struct {
	config GateConfig
}

// NewGate creates a gate with the given configuration.
func NewGate(config GateConfig) *Gate {
	return &Gate{config: config}
}

// Config returns the gate's thresholds.
func (g *Gate) Config() GateConfig {
	return g.config
}

// Reserve computes how many charged cells the given mode withholds at nowMs.
func (g *Gate) Reserve(mode policy.Mode, delivery, threat estimator.Estimate, nowMs int64) Reserve {
	if mode != policy.ModeAdaptive {
		return Reserve{Cells: g.config.ConservativeReserve, Base: g.config.ConservativeReserve}
	}

	elapsedThreat := float64(threat.ElapsedMs(nowMs))
	elapsedDelivery := float64(delivery.ElapsedMs(nowMs))

	r := Reserve{Base: g.config.AdaptiveNearReserve}
	if elapsedThreat < g.config.ThreatFarFraction*threat.Value() {
		r.ThreatFar = true
		r.Base = g.config.AdaptiveFarReserve
	}
	r.DeliveryImminent = elapsedDelivery > g.config.DeliveryImminentFraction*delivery.Value()

	r.Cells = r.Base
	if r.DeliveryImminent {
		r.Cells--
	}
	if r.Cells < 0 {
		r.Cells = 0
		r.Clamped = true
	}
	return r
}

// Evaluate checks a request against the reserve. Checks run in order:
// no charge, bound violation, reserve.
func (g *Gate) Evaluate(charged, capacity int, reserve Reserve) GateDecision {
	d := GateDecision{Charged: charged, Reserve: reserve}

	switch {
	case charged <= 0:
		d.Action = "deny"
		d.Veto = VetoNoCharge
		d.Err = ErrInsufficientCharge
		d.Reason = "no charged cell"
	case charged > capacity:
		d.Action = "deny"
		d.Veto = VetoInvalidState
		d.Err = ErrInvalidState
		d.Reason = fmt.Sprintf("charged cells %d exceed capacity %d", charged, capacity)
	case charged > reserve.Cells:
		d.Action = "admit"
		d.Reason = fmt.Sprintf("charged %d above reserve %d", charged, reserve.Cells)
	default:
		d.Action = "deny"
		d.Veto = VetoReserve
		d.Err = ErrInsufficientCharge
		d.Reason = fmt.Sprintf("charged %d within reserve %d", charged, reserve.Cells)
	}
	return d
}

// #endregion gate
