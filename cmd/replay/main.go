package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/danielpatrickdp/cell-controller/internal/logging"
	"github.com/danielpatrickdp/cell-controller/internal/replay"
	"github.com/danielpatrickdp/cell-controller/internal/state"
)

// #region main

func main() {
	dbPath := flag.String("db", "", "path to cells.db (DB mode)")
	participant := flag.Uint("participant", 1, "participant id to replay (DB mode)")
	fixturePath := flag.String("fixture", "", "path to fixture JSON (fixture mode)")
	flag.Parse()

	if (*dbPath == "" && *fixturePath == "") || (*dbPath != "" && *fixturePath != "") {
		fmt.Fprintln(os.Stderr, "usage: replay --db path/to/cells.db [--participant N]")
		fmt.Fprintln(os.Stderr, "       replay --fixture path/to/fixture.json")
		os.Exit(2)
	}

	var exitCode int
	if *fixturePath != "" {
		exitCode = runFixtureMode(*fixturePath)
	} else {
		exitCode = runDBMode(*dbPath, uint32(*participant))
	}
	os.Exit(exitCode)
}

// #endregion main

// #region db-mode

// runDBMode re-executes the journaled inputs session by session, each with
// the thresholds recorded in its first entry, and compares outcomes against
// the journal.
func runDBMode(dbPath string, participant uint32) int {
	store, err := state.NewStore(dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open db: %v\n", err)
		return 2
	}
	defer store.Close()

	history, err := store.History(participant)
	if err != nil {
		fmt.Fprintf(os.Stderr, "read journal: %v\n", err)
		return 2
	}
	if len(history) == 0 {
		fmt.Fprintf(os.Stderr, "no journal entries for participant %d\n", participant)
		return 2
	}

	records := make([]logging.EventRecord, len(history))
	for i, snap := range history {
		rec, err := state.DecodeRecord(snap)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			return 2
		}
		records[i] = rec
	}

	var results []replay.ReplayResult
	for _, session := range replay.SplitSessions(records) {
		config := replay.ConfigFromThresholds(participant, session[0].Thresholds)
		sessionResults, _, err := replay.Replay(config, replay.EventsFromRecords(session))
		if err != nil {
			fmt.Fprintf(os.Stderr, "replay: %v\n", err)
			return 2
		}
		for i := range sessionResults {
			sessionResults[i].Step += len(results)
		}
		results = append(results, sessionResults...)
	}

	expected := make([]string, len(records))
	for i, r := range records {
		expected[i] = r.Outcome
	}
	return printComparison(results, expected)
}

// #endregion db-mode

// #region output

func runFixtureMode(path string) int {
	f, err := replay.LoadFixture(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load fixture: %v\n", err)
		return 2
	}

	results, final, err := replay.Replay(f.Config.ToConfig(), f.ToEvents())
	if err != nil {
		fmt.Fprintf(os.Stderr, "replay: %v\n", err)
		return 2
	}

	expected := make([]string, len(results))
	for _, e := range f.ExpectedResults {
		if e.Step >= 0 && e.Step < len(expected) {
			expected[e.Step] = e.Outcome
		}
	}
	code := printComparison(results, expected)

	for _, m := range replay.Compare(f.ExpectedResults, results) {
		if m.Field != "outcome" {
			fmt.Printf("step %d: %s expected %s, replayed %s\n", m.Step, m.Field, m.Expected, m.Actual)
			code = 1
		}
	}

	s := replay.Summarize(results, final)
	fmt.Printf("Final: mode=%s charged=%d rocket=%v produced=%d transitions=%d\n",
		s.Final.Mode, s.Final.Charged, s.Final.Rocket, s.Admitted, s.Transitions)
	return code
}

// printComparison outputs a comparison table and returns exit code.
// An empty expected entry is not checked.
func printComparison(results []replay.ReplayResult, expected []string) int {
	fmt.Printf("%-6s| %-8s| %-10s| %-12s| %-12s| %s\n", "Step", "At ms", "Kind", "Expected", "Replayed", "Match")
	fmt.Printf("%-6s+%-9s+%-11s+%-13s+%-13s+%s\n",
		"------", "---------", "-----------", "-------------", "-------------", "------")

	matches, checked := 0, 0
	total := len(results)
	if len(expected) < total {
		total = len(expected)
	}

	for i := 0; i < total; i++ {
		r := results[i]
		exp := expected[i]
		match := "—"
		if exp != "" {
			checked++
			match = "DIFF"
			if exp == r.Outcome {
				match = "OK"
				matches++
			}
		}
		fmt.Printf("%-6d| %-8d| %-10s| %-12s| %-12s| %s\n", r.Step, r.AtMs, r.Kind, exp, r.Outcome, match)
	}

	diverge := checked - matches
	fmt.Printf("\nSummary: %d total, %d checked, %d match, %d diverge\n", total, checked, matches, diverge)

	if diverge > 0 {
		return 1
	}
	return 0
}

// #endregion output
