package eval

import "fmt"

// #region eval-harness
// EvalHarness runs invariant checks on participant state.
type EvalHarness struct {
	config EvalConfig
}

// NewEvalHarness creates an eval harness with the given configuration.
func NewEvalHarness(config EvalConfig) *EvalHarness {
	return &EvalHarness{config: config}
}

// Run validates one observation. It never mutates state; callers decide what
// to do with a failure.
func (h *EvalHarness) Run(obs Observation) EvalResult {
	var metrics []EvalMetric
	var failReasons []string

	// 1. Charged cells within [0, capacity]
	chargedPass := obs.Charged >= 0 && obs.Charged <= h.config.Capacity
	metrics = append(metrics, EvalMetric{
		Name:  "charged_cells",
		Value: float64(obs.Charged),
		Pass:  chargedPass,
	})
	if !chargedPass {
		failReasons = append(failReasons, fmt.Sprintf("charged cells %d outside [0, %d]", obs.Charged, h.config.Capacity))
	}

	// 2. Rocket slots within [0, max]
	rockets := 0
	if obs.Rocket {
		rockets = 1
	}
	rocketPass := rockets <= h.config.MaxRocket
	metrics = append(metrics, EvalMetric{
		Name:  "rocket_count",
		Value: float64(rockets),
		Pass:  rocketPass,
	})
	if !rocketPass {
		failReasons = append(failReasons, fmt.Sprintf("rocket count %d exceeds %d", rockets, h.config.MaxRocket))
	}

	// 3. Production left at least the reserve
	if obs.Produced {
		reservePass := obs.Charged >= obs.ReserveCells
		metrics = append(metrics, EvalMetric{
			Name:  "reserve_respected",
			Value: float64(obs.Charged - obs.ReserveCells),
			Pass:  reservePass,
		})
		if !reservePass {
			failReasons = append(failReasons, fmt.Sprintf("production left %d charged, reserve %d", obs.Charged, obs.ReserveCells))
		}
	}

	reason := "all checks passed"
	if len(failReasons) == 1 {
		reason = fmt.Sprintf("eval failed: %s", failReasons[0])
	} else if len(failReasons) > 1 {
		reason = fmt.Sprintf("eval failed: %d checks: %s", len(failReasons), failReasons[0])
	}

	return EvalResult{
		Passed:  len(failReasons) == 0,
		Metrics: metrics,
		Reason:  reason,
	}
}

// #endregion eval-harness
