package logging

import "time"

// #region decision-entry
// DecisionEntry is a single row in the decision_log table.
type DecisionEntry struct {
	VersionID   string
	TriggerType string // event kind: "delivery" | "threat" | "production"
	RecordJSON  string
	Decision    string // EventRecord.Outcome
	Reason      string
	CreatedAt   time.Time
}

// #endregion decision-entry

// #region event-record
// EventRecord captures the complete inputs and outputs of one handled event.
// Serialized as JSON into decision_log.record_json for deterministic replay.
type EventRecord struct {
	Participant uint32 `json:"participant"`
	Seq         int64  `json:"seq"`
	Kind        string `json:"kind"`
	AtMs        int64  `json:"at_ms"`
	Resource    string `json:"resource,omitempty"`

	// Outcome is one of charged, discarded, deflected, destroyed, admit, deny.
	Outcome string `json:"outcome"`
	Reason  string `json:"reason,omitempty"`

	ModeBefore string `json:"mode_before"`
	ModeAfter  string `json:"mode_after"`

	// Reserve is set for production requests only.
	Reserve *int `json:"reserve,omitempty"`

	ChargedBefore int  `json:"charged_before"`
	ChargedAfter  int  `json:"charged_after"`
	RocketBuilt   bool `json:"rocket_built"`
	RocketAfter   bool `json:"rocket_after"`

	Delivery EstimateRecord `json:"delivery"`
	Threat   EstimateRecord `json:"threat"`

	Thresholds ThresholdRecord `json:"thresholds"`
}

// EstimateRecord mirrors one interval estimate at decision time.
type EstimateRecord struct {
	EstimateMs  float64 `json:"estimate_ms"`
	LastSeenMs  int64   `json:"last_seen_ms"`
	SampleCount uint32  `json:"sample_count"`
}

// ThresholdRecord captures the policy configuration active at decision time.
type ThresholdRecord struct {
	Capacity                  int     `json:"capacity"`
	ConservativeReserve       int     `json:"conservative_reserve"`
	AdaptiveFarReserve        int     `json:"adaptive_far_reserve"`
	AdaptiveNearReserve       int     `json:"adaptive_near_reserve"`
	DeliveryImminentFraction  float64 `json:"delivery_imminent_fraction"`
	ThreatFarFraction         float64 `json:"threat_far_fraction"`
	EMAAlpha                  float64 `json:"ema_alpha"`
	TransitionSampleThreshold uint32  `json:"transition_sample_threshold"`
}

// #endregion event-record
