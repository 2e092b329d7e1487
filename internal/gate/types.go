package gate

import "errors"

// #region errors
var (
	// ErrInsufficientCharge is returned when producing would breach the reserve.
	ErrInsufficientCharge = errors.New("insufficient charge")
	// ErrInvalidState flags a bound violation that should be unreachable.
	ErrInvalidState = errors.New("invalid state")
)

// #endregion errors

// #region veto-type
// VetoType enumerates why a production request was denied.
type VetoType string

const (
	VetoNoCharge     VetoType = "no_charge"
	VetoReserve      VetoType = "reserve_breach"
	VetoInvalidState VetoType = "invalid_state"
)

// #endregion veto-type

// #region gate-config
// GateConfig holds the reserve sizes and estimate fractions.
type GateConfig struct {
	ConservativeReserve      int     // fixed reserve in conservative mode
	AdaptiveFarReserve       int     // adaptive reserve when the next threat is judged far
	AdaptiveNearReserve      int     // adaptive reserve otherwise
	DeliveryImminentFraction float64 // delivery imminent once elapsed > fraction * estimate
	ThreatFarFraction        float64 // threat far while elapsed < fraction * estimate
}

// DefaultGateConfig returns the stock reserve policy.
func DefaultGateConfig() GateConfig {
	return GateConfig{
		ConservativeReserve:      3,
		AdaptiveFarReserve:       1,
		AdaptiveNearReserve:      2,
		DeliveryImminentFraction: 0.75,
		ThreatFarFraction:        0.5,
	}
}

// #endregion gate-config

// #region reserve
// Reserve is the number of charged cells withheld from production, with the
// inputs that produced it.
type Reserve struct {
	Cells            int
	Base             int
	ThreatFar        bool
	DeliveryImminent bool
	Clamped          bool // base - imminent would have gone negative
}

// #endregion reserve

// #region gate-decision
// GateDecision is the admission result for one production request.
type GateDecision struct {
	Action  string // "admit" | "deny"
	Reason  string
	Charged int
	Reserve Reserve
	Veto    VetoType // empty when admitted
	Err     error    // sentinel matching Veto, nil when admitted
}

// Admitted reports whether the request may spend a cell.
func (d GateDecision) Admitted() bool {
	return d.Action == "admit"
}

// #endregion gate-decision
