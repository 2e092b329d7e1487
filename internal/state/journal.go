package state

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/danielpatrickdp/cell-controller/internal/logging"
	"github.com/google/uuid"
)

// #region journal
// Journal appends one snapshot and one decision row per handled event. It
// satisfies controller.Recorder and, like the controller, expects a single
// writer per participant.
type Journal struct {
	store       *Store
	participant uint32
	head        string
	now         func() time.Time
}

// NewJournal continues the participant's chain from its current head, if any.
func NewJournal(store *Store, participant uint32) (*Journal, error) {
	j := &Journal{store: store, participant: participant, now: func() time.Time { return time.Now().UTC() }}
	latest, err := store.Latest(participant)
	switch {
	case err == nil:
		j.head = latest.VersionID
	case errors.Is(err, sql.ErrNoRows):
	default:
		return nil, fmt.Errorf("open journal: %w", err)
	}
	return j, nil
}

// Head returns the last version written, or "" before the first event.
func (j *Journal) Head() string {
	return j.head
}

// Record journals rec.
func (j *Journal) Record(rec logging.EventRecord) error {
	recJSON, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}

	now := j.now()
	snap := SnapshotRecord{
		VersionID:   uuid.New().String(),
		ParentID:    j.head,
		Participant: j.participant,
		Seq:         rec.Seq,
		Kind:        rec.Kind,
		AtMs:        rec.AtMs,
		Mode:        rec.ModeAfter,
		Charged:     rec.ChargedAfter,
		Rocket:      rec.RocketAfter,
		RecordJSON:  string(recJSON),
		CreatedAt:   now,
	}
	err = j.store.CommitEvent(snap, logging.DecisionEntry{
		TriggerType: rec.Kind,
		RecordJSON:  string(recJSON),
		Decision:    rec.Outcome,
		Reason:      rec.Reason,
		CreatedAt:   now,
	})
	if err != nil {
		return fmt.Errorf("journal event: %w", err)
	}
	j.head = snap.VersionID
	return nil
}

// #endregion journal

// #region decode
// DecodeRecord parses the event record stored with a snapshot.
func DecodeRecord(rec SnapshotRecord) (logging.EventRecord, error) {
	var ev logging.EventRecord
	if err := json.Unmarshal([]byte(rec.RecordJSON), &ev); err != nil {
		return logging.EventRecord{}, fmt.Errorf("decode record %s: %w", rec.VersionID, err)
	}
	return ev, nil
}

// #endregion decode
