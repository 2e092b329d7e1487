package estimator

// #region ema
// UpdateEMA blends a new sample into the previous average.
func UpdateEMA(prev, sample, alpha float64) float64 {
	// explicit conversions keep the two products from being fused
	return float64(alpha*sample) + float64((1-alpha)*prev)
}

// #endregion ema

// #region estimator
// Estimator keeps one running interval estimate per event kind.
type Estimator struct {
	alpha     float64
	estimates map[Kind]*Estimate
}

// New creates an estimator with the given smoothing factor.
func New(alpha float64) *Estimator {
	e := &Estimator{
		alpha:     alpha,
		estimates: make(map[Kind]*Estimate, len(Kinds)),
	}
	for _, k := range Kinds {
		e.estimates[k] = &Estimate{}
	}
	return e
}

// Observe records an occurrence of kind at nowMs.
// The first occurrence only seeds the timestamp; the second bootstraps the
// estimate with the raw interval; later ones are smoothed. An occurrence
// earlier than the last one counts as a zero interval and leaves LastSeenMs
// where it was, so the estimate never goes negative.
func (e *Estimator) Observe(nowMs int64, kind Kind) Estimate {
	est, ok := e.estimates[kind]
	if !ok {
		est = &Estimate{}
		e.estimates[kind] = est
	}

	if !est.Seen {
		est.Seen = true
		est.LastSeenMs = nowMs
		return *est
	}

	delta := float64(max(nowMs-est.LastSeenMs, 0))
	if est.SampleCount == 0 {
		est.EstimateMs = delta
	} else {
		est.EstimateMs = UpdateEMA(est.EstimateMs, delta, e.alpha)
	}
	est.SampleCount++
	est.LastSeenMs = max(est.LastSeenMs, nowMs)
	return *est
}

// Get returns a copy of the estimate for kind.
func (e *Estimator) Get(kind Kind) Estimate {
	if est, ok := e.estimates[kind]; ok {
		return *est
	}
	return Estimate{}
}

// Alpha returns the configured smoothing factor.
func (e *Estimator) Alpha() float64 {
	return e.alpha
}

// #endregion estimator
