package policy

import (
	"fmt"

	"github.com/danielpatrickdp/cell-controller/internal/estimator"
)

// #region machine
// Machine is the two-mode policy state machine. Both modes are stable and
// transitions may cycle any number of times.
type Machine struct {
	mode      Mode
	threshold uint32
}

// NewMachine starts in conservative mode.
func NewMachine(sampleThreshold uint32) *Machine {
	return &Machine{mode: ModeConservative, threshold: sampleThreshold}
}

// Mode returns the current mode.
func (m *Machine) Mode() Mode {
	return m.mode
}

// Evaluate applies at most one transition given the latest estimates.
// Reverting to conservative needs no minimum sample count.
func (m *Machine) Evaluate(delivery, threat estimator.Estimate) Transition {
	from := m.mode
	threatMs, deliveryMs := threat.Value(), delivery.Value()

	switch m.mode {
	case ModeAdaptive:
		if threatMs < deliveryMs {
			m.mode = ModeConservative
			return Transition{
				From:    from,
				To:      m.mode,
				Changed: true,
				Reason:  fmt.Sprintf("threat interval %.1fms below delivery interval %.1fms", threatMs, deliveryMs),
			}
		}
	case ModeConservative:
		if delivery.SampleCount >= m.threshold &&
			threat.SampleCount >= m.threshold &&
			threatMs >= deliveryMs {
			m.mode = ModeAdaptive
			return Transition{
				From:    from,
				To:      m.mode,
				Changed: true,
				Reason: fmt.Sprintf("estimates usable (delivery=%d threat=%d samples), threat %.1fms >= delivery %.1fms",
					delivery.SampleCount, threat.SampleCount, threatMs, deliveryMs),
			}
		}
	}

	return Transition{From: from, To: from, Reason: "no transition"}
}

// #endregion machine
