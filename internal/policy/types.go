package policy

// #region mode
// Mode is the participant's spending posture.
type Mode string

const (
	// ModeConservative holds a fixed reserve; the initial mode.
	ModeConservative Mode = "conservative"
	// ModeAdaptive sizes the reserve from the interval estimates.
	ModeAdaptive Mode = "adaptive"
)

// #endregion mode

// #region transition
// Transition is the outcome of one evaluation of the state machine.
type Transition struct {
	From    Mode
	To      Mode
	Changed bool
	Reason  string
}

// #endregion transition

// DefaultSampleThreshold is the number of samples per kind needed before
// leaving conservative mode.
const DefaultSampleThreshold = 3
