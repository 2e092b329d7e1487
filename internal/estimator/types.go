package estimator

// #region kind
// Kind names a recurring external event whose inter-arrival time is tracked.
type Kind string

const (
	KindDelivery Kind = "delivery"
	KindThreat   Kind = "threat"
)

// Kinds lists every tracked event kind in a stable order.
var Kinds = []Kind{KindDelivery, KindThreat}

// #endregion kind

// #region estimate
// Estimate is the running inter-arrival estimate for one event kind.
type Estimate struct {
	EstimateMs  float64 `json:"estimate_ms"`
	LastSeenMs  int64   `json:"last_seen_ms"`
	SampleCount uint32  `json:"sample_count"`
	Seen        bool    `json:"seen"`
}

// Value returns the smoothed interval, or 0 while no interval has been sampled.
func (e Estimate) Value() float64 {
	if e.SampleCount == 0 {
		return 0
	}
	return e.EstimateMs
}

// ElapsedMs returns the time since the last observation of this kind.
func (e Estimate) ElapsedMs(nowMs int64) int64 {
	return nowMs - e.LastSeenMs
}

// #endregion estimate

// DefaultAlpha is the smoothing factor used when none is configured.
const DefaultAlpha = 0.3
