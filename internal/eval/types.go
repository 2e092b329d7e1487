package eval

// #region eval-config
// EvalConfig holds the bounds checked after every handled event.
type EvalConfig struct {
	Capacity  int // charged cells must stay within [0, Capacity]
	MaxRocket int // rocket slots, normally 1
}

// DefaultEvalConfig returns bounds for a participant with the given capacity.
func DefaultEvalConfig(capacity int) EvalConfig {
	return EvalConfig{
		Capacity:  capacity,
		MaxRocket: 1,
	}
}

// #endregion eval-config

// #region observation
// Observation is the post-event state the harness validates.
type Observation struct {
	Charged int
	Rocket  bool

	// Set when the event was an admitted production request.
	Produced     bool
	ReserveCells int
}

// #endregion observation

// #region eval-metric
// EvalMetric captures a single validation check result.
type EvalMetric struct {
	Name  string
	Value float64
	Pass  bool
}

// #endregion eval-metric

// #region eval-result
// EvalResult is the output of post-event validation.
type EvalResult struct {
	Passed  bool
	Metrics []EvalMetric
	Reason  string
}

// #endregion eval-result
