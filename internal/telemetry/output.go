// Package telemetry writes per-event and per-run CSV files for offline analysis.
package telemetry

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/danielpatrickdp/cell-controller/internal/config"
	"github.com/danielpatrickdp/cell-controller/internal/logging"
	"github.com/gocarina/gocsv"
)

// EventRow is one handled event in events.csv.
type EventRow struct {
	Participant   uint32  `csv:"participant"`
	Seq           int64   `csv:"seq"`
	AtMs          int64   `csv:"at_ms"`
	Kind          string  `csv:"kind"`
	Resource      string  `csv:"resource"`
	Outcome       string  `csv:"outcome"`
	ModeBefore    string  `csv:"mode_before"`
	ModeAfter     string  `csv:"mode_after"`
	Reserve       int     `csv:"reserve"` // -1 for non-production events
	ChargedBefore int     `csv:"charged_before"`
	ChargedAfter  int     `csv:"charged_after"`
	RocketAfter   bool    `csv:"rocket_after"`
	DeliveryEstMs float64 `csv:"delivery_est_ms"`
	ThreatEstMs   float64 `csv:"threat_est_ms"`
}

// SummaryRow is one finished run in summary.csv.
type SummaryRow struct {
	Participant      uint32  `csv:"participant"`
	Seed             uint64  `csv:"seed"`
	Survived         bool    `csv:"survived"`
	EndMs            int64   `csv:"end_ms"`
	Deliveries       uint64  `csv:"deliveries"`
	Threats          uint64  `csv:"threats"`
	Produced         uint64  `csv:"produced"`
	Denied           uint64  `csv:"denied"`
	AdaptiveFraction float64 `csv:"adaptive_fraction"`
	MeanCharged      float64 `csv:"mean_charged"`
	StdDevCharged    float64 `csv:"stddev_charged"`
}

// RowFromRecord flattens a journal record into a CSV row.
func RowFromRecord(rec logging.EventRecord) EventRow {
	reserve := -1
	if rec.Reserve != nil {
		reserve = *rec.Reserve
	}
	return EventRow{
		Participant:   rec.Participant,
		Seq:           rec.Seq,
		AtMs:          rec.AtMs,
		Kind:          rec.Kind,
		Resource:      rec.Resource,
		Outcome:       rec.Outcome,
		ModeBefore:    rec.ModeBefore,
		ModeAfter:     rec.ModeAfter,
		Reserve:       reserve,
		ChargedBefore: rec.ChargedBefore,
		ChargedAfter:  rec.ChargedAfter,
		RocketAfter:   rec.RocketAfter,
		DeliveryEstMs: rec.Delivery.EstimateMs,
		ThreatEstMs:   rec.Threat.EstimateMs,
	}
}

// OutputManager handles structured run output with CSV logging.
type OutputManager struct {
	dir         string
	eventsFile  *os.File
	summaryFile *os.File

	eventsHeaderWritten  bool
	summaryHeaderWritten bool
}

// NewOutputManager creates the output directory with events.csv and summary.csv.
// Returns nil if dir is empty (output disabled); every method accepts a nil receiver.
func NewOutputManager(dir string) (*OutputManager, error) {
	if dir == "" {
		return nil, nil
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}

	om := &OutputManager{dir: dir}

	f, err := os.Create(filepath.Join(dir, "events.csv"))
	if err != nil {
		return nil, fmt.Errorf("creating events.csv: %w", err)
	}
	om.eventsFile = f

	f, err = os.Create(filepath.Join(dir, "summary.csv"))
	if err != nil {
		om.eventsFile.Close()
		return nil, fmt.Errorf("creating summary.csv: %w", err)
	}
	om.summaryFile = f

	return om, nil
}

// Dir returns the output directory.
func (om *OutputManager) Dir() string {
	if om == nil {
		return ""
	}
	return om.dir
}

// WriteConfig saves the run configuration as YAML.
func (om *OutputManager) WriteConfig(cfg *config.Config) error {
	if om == nil {
		return nil
	}
	return cfg.WriteYAML(filepath.Join(om.dir, "config.yaml"))
}

// Record writes one event row. It satisfies controller.Recorder.
func (om *OutputManager) Record(rec logging.EventRecord) error {
	if om == nil {
		return nil
	}

	records := []EventRow{RowFromRecord(rec)}

	if !om.eventsHeaderWritten {
		if err := gocsv.Marshal(records, om.eventsFile); err != nil {
			return fmt.Errorf("writing events: %w", err)
		}
		om.eventsHeaderWritten = true
	} else {
		if err := gocsv.MarshalWithoutHeaders(records, om.eventsFile); err != nil {
			return fmt.Errorf("writing events: %w", err)
		}
	}
	return nil
}

// WriteSummary writes one run summary row.
func (om *OutputManager) WriteSummary(row SummaryRow) error {
	if om == nil {
		return nil
	}

	records := []SummaryRow{row}

	if !om.summaryHeaderWritten {
		if err := gocsv.Marshal(records, om.summaryFile); err != nil {
			return fmt.Errorf("writing summary: %w", err)
		}
		om.summaryHeaderWritten = true
	} else {
		if err := gocsv.MarshalWithoutHeaders(records, om.summaryFile); err != nil {
			return fmt.Errorf("writing summary: %w", err)
		}
	}
	return nil
}

// Close flushes and closes all output files.
func (om *OutputManager) Close() error {
	if om == nil {
		return nil
	}

	var firstErr error
	for _, f := range []*os.File{om.eventsFile, om.summaryFile} {
		if err := f.Sync(); err != nil && firstErr == nil {
			firstErr = err
		}
		if err := f.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
