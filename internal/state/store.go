package state

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/danielpatrickdp/cell-controller/internal/logging"
	_ "modernc.org/sqlite"
)

// #region schema
const schema = `
CREATE TABLE IF NOT EXISTS snapshots (
	version_id    TEXT PRIMARY KEY,
	parent_id     TEXT,
	participant   INTEGER NOT NULL,
	seq           INTEGER NOT NULL,
	kind          TEXT NOT NULL,
	at_ms         INTEGER NOT NULL,
	mode          TEXT NOT NULL,
	charged       INTEGER NOT NULL,
	rocket        INTEGER NOT NULL,
	record_json   TEXT NOT NULL,
	created_at    TEXT NOT NULL,
	FOREIGN KEY (parent_id) REFERENCES snapshots(version_id)
);

CREATE INDEX IF NOT EXISTS snapshots_participant ON snapshots(participant);

CREATE TABLE IF NOT EXISTS decision_log (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	version_id    TEXT NOT NULL,
	trigger_type  TEXT NOT NULL,
	record_json   TEXT,
	decision      TEXT NOT NULL,
	reason        TEXT,
	created_at    TEXT NOT NULL,
	FOREIGN KEY (version_id) REFERENCES snapshots(version_id)
);

CREATE TABLE IF NOT EXISTS heads (
	participant   INTEGER PRIMARY KEY,
	version_id    TEXT NOT NULL,
	FOREIGN KEY (version_id) REFERENCES snapshots(version_id)
);
`
// #endregion schema

// #region store-struct
// Store is the SQLite decision journal.
type Store struct {
	db *sql.DB
}
// #endregion store-struct

// #region constructor
// NewStore opens a SQLite database and runs migrations.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		return nil, fmt.Errorf("pragma fk: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db}, nil
}
// #endregion constructor

// #region close
// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}
// #endregion close

// #region db-accessor
// DB returns the underlying *sql.DB for use by other packages (e.g. logging).
func (s *Store) DB() *sql.DB {
	return s.db
}
// #endregion db-accessor

// #region commit-snapshot
// CommitSnapshot inserts a snapshot and moves the participant's head to it
// atomically.
func (s *Store) CommitSnapshot(rec SnapshotRecord) error {
	return s.commit(rec, nil)
}

// CommitEvent is CommitSnapshot plus the snapshot's decision row, all in one
// transaction: either the event is fully journaled or not at all.
func (s *Store) CommitEvent(rec SnapshotRecord, entry logging.DecisionEntry) error {
	entry.VersionID = rec.VersionID
	return s.commit(rec, &entry)
}

func (s *Store) commit(rec SnapshotRecord, entry *logging.DecisionEntry) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var parentPtr interface{}
	if rec.ParentID != "" {
		parentPtr = rec.ParentID
	}

	_, err = tx.Exec(
		`INSERT INTO snapshots (version_id, parent_id, participant, seq, kind, at_ms, mode, charged, rocket, record_json, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.VersionID, parentPtr, rec.Participant, rec.Seq, rec.Kind, rec.AtMs,
		rec.Mode, rec.Charged, boolToInt(rec.Rocket), rec.RecordJSON,
		rec.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert snapshot: %w", err)
	}

	_, err = tx.Exec(
		`INSERT INTO heads (participant, version_id) VALUES (?, ?)
		 ON CONFLICT(participant) DO UPDATE SET version_id = excluded.version_id`,
		rec.Participant, rec.VersionID,
	)
	if err != nil {
		return fmt.Errorf("update head: %w", err)
	}

	if entry != nil {
		if err := logging.LogDecision(tx, *entry); err != nil {
			return err
		}
	}

	return tx.Commit()
}
// #endregion commit-snapshot

// #region get-version
const snapshotColumns = `version_id, parent_id, participant, seq, kind, at_ms, mode, charged, rocket, record_json, created_at`

// GetVersion retrieves a specific snapshot by ID.
func (s *Store) GetVersion(id string) (SnapshotRecord, error) {
	row := s.db.QueryRow(`SELECT `+snapshotColumns+` FROM snapshots WHERE version_id = ?`, id)
	rec, err := scanSnapshot(row)
	if err != nil {
		return SnapshotRecord{}, fmt.Errorf("get version %s: %w", id, err)
	}
	return rec, nil
}

// Latest returns the head snapshot of a participant. The error wraps
// sql.ErrNoRows when nothing has been journaled yet.
func (s *Store) Latest(participant uint32) (SnapshotRecord, error) {
	var versionID string
	err := s.db.QueryRow(`SELECT version_id FROM heads WHERE participant = ?`, participant).Scan(&versionID)
	if err != nil {
		return SnapshotRecord{}, fmt.Errorf("get head %d: %w", participant, err)
	}
	return s.GetVersion(versionID)
}
// #endregion get-version

// #region list-snapshots
// ListSnapshots returns the most recent snapshots of a participant, newest first.
func (s *Store) ListSnapshots(participant uint32, limit int) ([]SnapshotRecord, error) {
	rows, err := s.db.Query(
		`SELECT `+snapshotColumns+` FROM snapshots WHERE participant = ? ORDER BY rowid DESC LIMIT ?`,
		participant, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	defer rows.Close()

	var records []SnapshotRecord
	for rows.Next() {
		rec, err := scanSnapshot(rows)
		if err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// History returns every snapshot of a participant in journal order. Seq
// restarts at 1 for every controller session.
func (s *Store) History(participant uint32) ([]SnapshotRecord, error) {
	rows, err := s.db.Query(
		`SELECT `+snapshotColumns+` FROM snapshots WHERE participant = ? ORDER BY rowid ASC`,
		participant,
	)
	if err != nil {
		return nil, fmt.Errorf("history: %w", err)
	}
	defer rows.Close()

	var records []SnapshotRecord
	for rows.Next() {
		rec, err := scanSnapshot(rows)
		if err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
// #endregion list-snapshots

// #region list-decisions
// ListDecisions joins snapshots with their decision rows, newest first.
func (s *Store) ListDecisions(participant uint32, limit int) ([]SnapshotWithDecision, error) {
	rows, err := s.db.Query(
		`SELECT s.version_id, s.parent_id, s.participant, s.seq, s.kind, s.at_ms, s.mode, s.charged,
		        s.rocket, s.record_json, s.created_at, d.decision, d.reason
		 FROM snapshots s
		 JOIN decision_log d ON d.version_id = s.version_id
		 WHERE s.participant = ?
		 ORDER BY s.rowid DESC LIMIT ?`,
		participant, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list decisions: %w", err)
	}
	defer rows.Close()

	var out []SnapshotWithDecision
	for rows.Next() {
		var rec SnapshotWithDecision
		var parentID, reason sql.NullString
		var rocket int
		var createdStr string
		if err := rows.Scan(&rec.VersionID, &parentID, &rec.Participant, &rec.Seq, &rec.Kind,
			&rec.AtMs, &rec.Mode, &rec.Charged, &rocket, &rec.RecordJSON, &createdStr,
			&rec.Decision, &reason); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		rec.ParentID = parentID.String
		rec.Rocket = rocket != 0
		rec.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
		rec.Reason = reason.String
		out = append(out, rec)
	}
	return out, rows.Err()
}
// #endregion list-decisions

// #region scan
type rowScanner interface {
	Scan(dest ...any) error
}

func scanSnapshot(r rowScanner) (SnapshotRecord, error) {
	var rec SnapshotRecord
	var parentID sql.NullString
	var rocket int
	var createdStr string
	err := r.Scan(&rec.VersionID, &parentID, &rec.Participant, &rec.Seq, &rec.Kind,
		&rec.AtMs, &rec.Mode, &rec.Charged, &rocket, &rec.RecordJSON, &createdStr)
	if err != nil {
		return SnapshotRecord{}, err
	}
	if parentID.Valid {
		rec.ParentID = parentID.String
	}
	rec.Rocket = rocket != 0
	rec.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
	return rec, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
// #endregion scan
