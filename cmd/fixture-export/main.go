package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/danielpatrickdp/cell-controller/internal/logging"
	"github.com/danielpatrickdp/cell-controller/internal/replay"
	"github.com/danielpatrickdp/cell-controller/internal/state"
)

// #region main

func main() {
	dbPath := flag.String("db", "", "path to cells.db")
	participant := flag.Uint("participant", 1, "participant id to export")
	session := flag.Int("session", -1, "session index to export (negative counts from the end)")
	outPath := flag.String("out", "", "output fixture JSON path")
	flag.Parse()

	if *dbPath == "" || *outPath == "" {
		fmt.Fprintln(os.Stderr, "usage: fixture-export --db path/to/cells.db --out path/to/fixture.json [--participant N] [--session K]")
		os.Exit(2)
	}

	if err := run(*dbPath, uint32(*participant), *session, *outPath); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// #endregion main

// #region extract

func run(dbPath string, participant uint32, session int, outPath string) error {
	store, err := state.NewStore(dbPath)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer store.Close()

	history, err := store.History(participant)
	if err != nil {
		return fmt.Errorf("read journal: %w", err)
	}

	records := make([]logging.EventRecord, 0, len(history))
	for _, snap := range history {
		rec, err := state.DecodeRecord(snap)
		if err != nil {
			return err
		}
		records = append(records, rec)
	}

	sessions := replay.SplitSessions(records)
	if len(sessions) == 0 {
		return fmt.Errorf("no journal entries for participant %d", participant)
	}
	idx := session
	if idx < 0 {
		idx += len(sessions)
	}
	if idx < 0 || idx >= len(sessions) {
		return fmt.Errorf("session %d out of range (%d sessions)", session, len(sessions))
	}

	fmt.Printf("Found %d sessions, exporting #%d with %d events\n", len(sessions), idx, len(sessions[idx]))

	fixture := buildFixture(participant, idx, sessions[idx])
	return writeFixture(fixture, outPath)
}

// #endregion extract

// #region output

func buildFixture(participant uint32, idx int, records []logging.EventRecord) replay.Fixture {
	config := replay.ConfigFromThresholds(participant, records[0].Thresholds)
	events := make([]replay.FixtureEvent, len(records))
	expected := make([]replay.FixtureExpectedResult, len(records))

	for i, r := range records {
		events[i] = replay.FixtureEvent{
			Kind:     r.Kind,
			AtMs:     r.AtMs,
			Resource: r.Resource,
		}
		charged := r.ChargedAfter
		expected[i] = replay.FixtureExpectedResult{
			Step:    i,
			Outcome: r.Outcome,
			Mode:    r.ModeAfter,
			Charged: &charged,
		}
	}

	return replay.Fixture{
		Description:     fmt.Sprintf("exported session %d of participant %d (%d events)", idx, participant, len(records)),
		Config:          replay.FixtureConfigFrom(config),
		Events:          events,
		ExpectedResults: expected,
	}
}

func writeFixture(f replay.Fixture, path string) error {
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal fixture: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write fixture: %w", err)
	}
	fmt.Printf("Wrote %s\n", path)
	return nil
}

// #endregion output
