package replay

import (
	"fmt"

	"github.com/danielpatrickdp/cell-controller/internal/controller"
	"github.com/danielpatrickdp/cell-controller/internal/logging"
	"github.com/danielpatrickdp/cell-controller/internal/resource"
)

// #region types
// Event is a single recorded input for replay.
type Event struct {
	Kind     string // "delivery" | "threat" | "production"
	AtMs     int64
	Resource resource.Kind // production only
}

// ReplayResult captures the outcome of replaying one event.
type ReplayResult struct {
	Step    int
	Kind    string
	AtMs    int64
	Outcome string // charged | discarded | deflected | destroyed | admit | deny | skipped
	Reason  string

	ModeBefore string
	ModeAfter  string
	Reserve    *int

	Charged int
	Rocket  bool
}

// ReplaySummary provides aggregate stats from a replay run.
type ReplaySummary struct {
	TotalEvents int
	Charged     int
	Discarded   int
	Deflected   int
	Destroyed   int
	Admitted    int
	Denied      int
	Skipped     int
	Transitions int
	Final       controller.Snapshot
}

// #endregion types

// #region recorder
type captureRecorder struct {
	last *logging.EventRecord
}

func (r *captureRecorder) Record(rec logging.EventRecord) error {
	r.last = &rec
	return nil
}

// #endregion recorder

// #region replay
// Replay feeds events in order through a fresh controller. Operates entirely
// in-memory. Events after a destroyed threat are reported as skipped, since
// nothing is left to handle them.
func Replay(config controller.Config, events []Event) ([]ReplayResult, controller.Snapshot, error) {
	rec := &captureRecorder{}
	c, err := controller.New(config, nil, rec)
	if err != nil {
		return nil, controller.Snapshot{}, fmt.Errorf("replay: %w", err)
	}

	results := make([]ReplayResult, 0, len(events))
	destroyed := false
	var lastAt int64

	for i, ev := range events {
		lastAt = ev.AtMs
		if destroyed {
			results = append(results, ReplayResult{
				Step:    i,
				Kind:    ev.Kind,
				AtMs:    ev.AtMs,
				Outcome: "skipped",
				Reason:  "participant destroyed",
			})
			continue
		}

		rec.last = nil
		switch ev.Kind {
		case "delivery":
			c.OnDelivery(ev.AtMs)
		case "threat":
			if c.OnThreat(ev.AtMs).Outcome == controller.Destroyed {
				destroyed = true
			}
		case "production":
			kind := ev.Resource
			if kind == "" {
				kind = resource.Carbon
			}
			c.OnProductionRequest(kind, ev.AtMs)
		default:
			return nil, controller.Snapshot{}, fmt.Errorf("replay step %d: unknown event kind %q", i, ev.Kind)
		}

		if rec.last == nil {
			return nil, controller.Snapshot{}, fmt.Errorf("replay step %d: no record produced", i)
		}
		results = append(results, ReplayResult{
			Step:       i,
			Kind:       ev.Kind,
			AtMs:       ev.AtMs,
			Outcome:    rec.last.Outcome,
			Reason:     rec.last.Reason,
			ModeBefore: rec.last.ModeBefore,
			ModeAfter:  rec.last.ModeAfter,
			Reserve:    rec.last.Reserve,
			Charged:    rec.last.ChargedAfter,
			Rocket:     rec.last.RocketAfter,
		})
	}

	return results, c.Snapshot(lastAt), nil
}

// Summarize computes aggregate stats from replay results.
func Summarize(results []ReplayResult, final controller.Snapshot) ReplaySummary {
	s := ReplaySummary{
		TotalEvents: len(results),
		Final:       final,
	}
	for _, r := range results {
		switch r.Outcome {
		case "charged":
			s.Charged++
		case "discarded":
			s.Discarded++
		case "deflected":
			s.Deflected++
		case "destroyed":
			s.Destroyed++
		case "admit":
			s.Admitted++
		case "deny":
			s.Denied++
		case "skipped":
			s.Skipped++
		}
		if r.ModeBefore != r.ModeAfter && r.Outcome != "skipped" {
			s.Transitions++
		}
	}
	return s
}

// #endregion replay

// #region from-records
// EventsFromRecords rebuilds the input sequence from journaled records.
func EventsFromRecords(records []logging.EventRecord) []Event {
	events := make([]Event, 0, len(records))
	for _, r := range records {
		events = append(events, Event{
			Kind:     r.Kind,
			AtMs:     r.AtMs,
			Resource: resource.Kind(r.Resource),
		})
	}
	return events
}

// ConfigFromThresholds rebuilds a controller config from a journaled record.
func ConfigFromThresholds(participant uint32, t logging.ThresholdRecord) controller.Config {
	return controller.Config{
		ID:                        participant,
		Capacity:                  t.Capacity,
		ConservativeReserve:       t.ConservativeReserve,
		AdaptiveFarReserve:        t.AdaptiveFarReserve,
		AdaptiveNearReserve:       t.AdaptiveNearReserve,
		DeliveryImminentFraction:  t.DeliveryImminentFraction,
		ThreatFarFraction:         t.ThreatFarFraction,
		EMAAlpha:                  t.EMAAlpha,
		TransitionSampleThreshold: t.TransitionSampleThreshold,
	}
}

// SplitSessions cuts a journal history wherever Seq restarts. Each
// controller session starts from an empty participant.
func SplitSessions(records []logging.EventRecord) [][]logging.EventRecord {
	if len(records) == 0 {
		return nil
	}
	var sessions [][]logging.EventRecord
	start := 0
	for i := 1; i < len(records); i++ {
		if records[i].Seq <= records[i-1].Seq {
			sessions = append(sessions, records[start:i])
			start = i
		}
	}
	return append(sessions, records[start:])
}

// #endregion from-records
