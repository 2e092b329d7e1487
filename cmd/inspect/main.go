package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/danielpatrickdp/cell-controller/internal/logging"
	"github.com/danielpatrickdp/cell-controller/internal/state"
)

// #region main

func main() {
	dbPath := flag.String("db", "", "path to cells.db")
	participant := flag.Uint("participant", 1, "participant id")
	last := flag.Int("last", 20, "show N most recent events")
	version := flag.String("version", "", "show single event detail")
	jsonOut := flag.Bool("json", false, "output as JSON instead of table")
	flag.Parse()

	if *dbPath == "" {
		fmt.Fprintln(os.Stderr, "usage: inspect --db path/to/cells.db [--participant N] [--last N] [--version id] [--json]")
		os.Exit(2)
	}

	store, err := state.NewStore(*dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open db: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	if *version != "" {
		if err := runDetailMode(store, *version, *jsonOut); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
	} else {
		if err := runListMode(store, uint32(*participant), *last, *jsonOut); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
	}
}

// #endregion main

// #region list-mode

type listRow struct {
	VersionID string `json:"version_id"`
	Seq       int64  `json:"seq"`
	AtMs      int64  `json:"at_ms"`
	Kind      string `json:"kind"`
	Decision  string `json:"decision"`
	Reason    string `json:"reason,omitempty"`
	Mode      string `json:"mode"`
	Charged   int    `json:"charged"`
	Rocket    bool   `json:"rocket"`
	Reserve   *int   `json:"reserve,omitempty"`
	CreatedAt string `json:"created_at"`
}

func runListMode(store *state.Store, participant uint32, last int, jsonOut bool) error {
	entries, err := store.ListDecisions(participant, last)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Fprintln(os.Stderr, "no events found")
		return nil
	}

	// Store returns DESC, reverse for chronological
	rows := make([]listRow, len(entries))
	for i, e := range entries {
		lr := listRow{
			VersionID: e.VersionID,
			Seq:       e.Seq,
			AtMs:      e.AtMs,
			Kind:      e.Kind,
			Decision:  e.Decision,
			Reason:    e.Reason,
			Mode:      e.Mode,
			Charged:   e.Charged,
			Rocket:    e.Rocket,
			CreatedAt: e.CreatedAt.Format("2006-01-02T15:04:05Z"),
		}
		if rec := parseRecord(e.RecordJSON); rec != nil {
			lr.Reserve = rec.Reserve
		}
		rows[len(entries)-1-i] = lr
	}

	if jsonOut {
		return printJSON(rows)
	}
	return printListTable(rows)
}

func printListTable(rows []listRow) error {
	fmt.Printf("%-10s  %5s  %10s  %-10s  %-10s  %-12s  %7s  %6s  %7s\n",
		"Version", "Seq", "At ms", "Kind", "Decision", "Mode", "Charged", "Rocket", "Reserve")
	fmt.Printf("%-10s+-%5s+-%10s+-%-10s+-%-10s+-%-12s+-%7s+-%6s+-%7s\n",
		"----------", "-----", "----------", "----------", "----------", "------------", "-------", "------", "-------")

	for _, r := range rows {
		reserve := "—"
		if r.Reserve != nil {
			reserve = fmt.Sprintf("%d", *r.Reserve)
		}
		fmt.Printf("%-10s  %5d  %10d  %-10s  %-10s  %-12s  %7d  %6v  %7s\n",
			shortID(r.VersionID), r.Seq, r.AtMs, r.Kind, r.Decision, r.Mode, r.Charged, r.Rocket, reserve)
	}

	latest := rows[len(rows)-1]
	fmt.Printf("\nLatest: mode=%s charged=%d rocket=%v\n", latest.Mode, latest.Charged, latest.Rocket)
	return nil
}

// #endregion list-mode

// #region detail-mode

type detailOutput struct {
	VersionID string               `json:"version_id"`
	ParentID  string               `json:"parent_id"`
	CreatedAt string               `json:"created_at"`
	Record    *logging.EventRecord `json:"record,omitempty"`
}

func runDetailMode(store *state.Store, versionID string, jsonOut bool) error {
	snap, err := store.GetVersion(versionID)
	if err != nil {
		return err
	}

	out := detailOutput{
		VersionID: snap.VersionID,
		ParentID:  snap.ParentID,
		CreatedAt: snap.CreatedAt.Format("2006-01-02T15:04:05Z"),
		Record:    parseRecord(snap.RecordJSON),
	}

	if jsonOut {
		return printJSON(out)
	}

	fmt.Printf("Version:    %s\n", out.VersionID)
	fmt.Printf("Parent:     %s\n", out.ParentID)
	fmt.Printf("Created:    %s\n", out.CreatedAt)

	rec := out.Record
	if rec == nil {
		fmt.Println("\n(no decodable record)")
		return nil
	}
	fmt.Printf("Event:      #%d %s at %d ms", rec.Seq, rec.Kind, rec.AtMs)
	if rec.Resource != "" {
		fmt.Printf(" (%s)", rec.Resource)
	}
	fmt.Println()
	fmt.Printf("Outcome:    %s\n", rec.Outcome)
	if rec.Reason != "" {
		fmt.Printf("Reason:     %s\n", rec.Reason)
	}
	fmt.Printf("Mode:       %s -> %s\n", rec.ModeBefore, rec.ModeAfter)
	fmt.Printf("Charged:    %d -> %d\n", rec.ChargedBefore, rec.ChargedAfter)
	fmt.Printf("Rocket:     built=%v stored=%v\n", rec.RocketBuilt, rec.RocketAfter)
	if rec.Reserve != nil {
		fmt.Printf("Reserve:    %d\n", *rec.Reserve)
	}

	fmt.Printf("\nEstimates:\n")
	fmt.Printf("  %-9s %10.1f ms  last=%d  samples=%d\n", "delivery", rec.Delivery.EstimateMs, rec.Delivery.LastSeenMs, rec.Delivery.SampleCount)
	fmt.Printf("  %-9s %10.1f ms  last=%d  samples=%d\n", "threat", rec.Threat.EstimateMs, rec.Threat.LastSeenMs, rec.Threat.SampleCount)

	th := rec.Thresholds
	fmt.Printf("\nThresholds:\n")
	fmt.Printf("  capacity=%d conservative=%d far=%d near=%d\n", th.Capacity, th.ConservativeReserve, th.AdaptiveFarReserve, th.AdaptiveNearReserve)
	fmt.Printf("  imminent=%.2f far_fraction=%.2f alpha=%.2f samples=%d\n", th.DeliveryImminentFraction, th.ThreatFarFraction, th.EMAAlpha, th.TransitionSampleThreshold)
	return nil
}

// #endregion detail-mode

// #region output

func parseRecord(recordJSON string) *logging.EventRecord {
	if recordJSON == "" {
		return nil
	}
	var rec logging.EventRecord
	if err := json.Unmarshal([]byte(recordJSON), &rec); err == nil && rec.Kind != "" {
		return &rec
	}
	return nil
}

func printJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// #endregion output
