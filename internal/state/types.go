package state

import "time"

// #region snapshot-record
// SnapshotRecord is one journaled event with the participant state it left
// behind. Versions form a chain per participant through ParentID.
type SnapshotRecord struct {
	VersionID   string
	ParentID    string
	Participant uint32
	Seq         int64
	Kind        string // "delivery" | "threat" | "production"
	AtMs        int64
	Mode        string
	Charged     int
	Rocket      bool
	RecordJSON  string // logging.EventRecord
	CreatedAt   time.Time
}
// #endregion snapshot-record

// #region snapshot-with-decision
// SnapshotWithDecision pairs a snapshot with its decision_log row fields.
type SnapshotWithDecision struct {
	SnapshotRecord
	Decision string
	Reason   string
}
// #endregion snapshot-with-decision
