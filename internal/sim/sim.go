// Package sim drives a participant with synthetic Poisson event streams.
package sim

import (
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"

	"github.com/danielpatrickdp/cell-controller/internal/config"
	"github.com/danielpatrickdp/cell-controller/internal/controller"
	"github.com/danielpatrickdp/cell-controller/internal/eval"
	"github.com/danielpatrickdp/cell-controller/internal/policy"
	"github.com/danielpatrickdp/cell-controller/internal/resource"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// #region params
// Params configures one run. Means are exponential inter-arrival times in ms.
type Params struct {
	Seed           uint64
	HorizonMs      int64
	DeliveryMeanMs float64
	ThreatMeanMs   float64
	RequestMeanMs  float64
}

// ParamsFrom converts the simulation config section.
func ParamsFrom(c config.SimulationConfig) Params {
	return Params{
		Seed:           c.Seed,
		HorizonMs:      c.HorizonMs,
		DeliveryMeanMs: c.DeliveryMeanMs,
		ThreatMeanMs:   c.ThreatMeanMs,
		RequestMeanMs:  c.RequestMeanMs,
	}
}

func (p Params) validate() error {
	if p.DeliveryMeanMs <= 0 || p.ThreatMeanMs <= 0 || p.RequestMeanMs <= 0 {
		return fmt.Errorf("simulation means must be positive")
	}
	if p.HorizonMs <= 0 {
		return fmt.Errorf("simulation horizon must be positive")
	}
	return nil
}

// #endregion params

// #region result
// Result summarizes one run.
type Result struct {
	Seed             uint64
	Survived         bool
	EndMs            int64
	Events           int
	Counters         controller.Counters
	AdaptiveFraction float64 // share of events handled in adaptive mode
	MeanCharged      float64
	StdDevCharged    float64
	Violations       int // harness failures seen from outside the controller
}

// #endregion result

// #region stream
type stream struct {
	kind string
	dist distuv.Exponential
	next float64
}

func newStream(kind string, meanMs float64, seed, salt uint64) *stream {
	s := &stream{
		kind: kind,
		dist: distuv.Exponential{Rate: 1 / meanMs, Src: rand.NewPCG(seed, salt)},
	}
	s.next = s.dist.Rand()
	return s
}

func (s *stream) advance() {
	s.next += s.dist.Rand()
}

// #endregion stream

// #region run
// Run feeds merged delivery, threat and production streams into a fresh
// controller until the participant is destroyed or the horizon passes.
// Simultaneous events run in delivery, threat, production order.
func Run(core controller.Config, p Params, logger *slog.Logger, recorder controller.Recorder) (Result, error) {
	if err := p.validate(); err != nil {
		return Result{}, err
	}
	c, err := controller.New(core, logger, recorder)
	if err != nil {
		return Result{}, fmt.Errorf("simulate: %w", err)
	}
	harness := eval.NewEvalHarness(eval.DefaultEvalConfig(core.Capacity))

	streams := []*stream{
		newStream("delivery", p.DeliveryMeanMs, p.Seed, 1),
		newStream("threat", p.ThreatMeanMs, p.Seed, 2),
		newStream("production", p.RequestMeanMs, p.Seed, 3),
	}

	res := Result{Seed: p.Seed, Survived: true}
	var charged []float64
	adaptive := 0

	for {
		next := streams[0]
		for _, s := range streams[1:] {
			if s.next < next.next {
				next = s
			}
		}
		atMs := int64(math.Round(next.next))
		if atMs > p.HorizonMs {
			res.EndMs = p.HorizonMs
			break
		}
		next.advance()

		if c.Mode() == policy.ModeAdaptive {
			adaptive++
		}
		obs := eval.Observation{}
		switch next.kind {
		case "delivery":
			c.OnDelivery(atMs)
		case "threat":
			if c.OnThreat(atMs).Outcome == controller.Destroyed {
				res.Survived = false
			}
		case "production":
			reserve := c.Snapshot(atMs).Reserve
			if _, err := c.OnProductionRequest(resource.Carbon, atMs); err == nil {
				obs.Produced = true
				obs.ReserveCells = reserve
			}
		}
		res.Events++

		obs.Charged = c.AvailableChargedCells()
		obs.Rocket = c.HasRocket()
		if !harness.Run(obs).Passed {
			res.Violations++
		}
		charged = append(charged, float64(obs.Charged))

		if !res.Survived {
			res.EndMs = atMs
			break
		}
	}

	res.Counters = c.Snapshot(res.EndMs).Counters
	if res.Events > 0 {
		res.AdaptiveFraction = float64(adaptive) / float64(res.Events)
		res.MeanCharged = stat.Mean(charged, nil)
	}
	if len(charged) > 1 {
		res.StdDevCharged = stat.StdDev(charged, nil)
	}
	return res, nil
}

// #endregion run

// #region batch
// Aggregate summarizes a batch of runs.
type Aggregate struct {
	Runs           int
	SurvivalRate   float64
	MeanProduced   float64
	StdDevProduced float64
	MeanLifetimeMs float64
}

// Batch runs n seeds starting at p.Seed. recorderFor may be nil.
func Batch(core controller.Config, p Params, n int, logger *slog.Logger, recorderFor func(seed uint64) controller.Recorder) ([]Result, error) {
	results := make([]Result, 0, n)
	for i := 0; i < n; i++ {
		run := p
		run.Seed = p.Seed + uint64(i)
		var rec controller.Recorder
		if recorderFor != nil {
			rec = recorderFor(run.Seed)
		}
		r, err := Run(core, run, logger, rec)
		if err != nil {
			return nil, fmt.Errorf("seed %d: %w", run.Seed, err)
		}
		results = append(results, r)
	}
	return results, nil
}

// Summarize aggregates results with gonum's stat package.
func Summarize(results []Result) Aggregate {
	agg := Aggregate{Runs: len(results)}
	if len(results) == 0 {
		return agg
	}
	produced := make([]float64, len(results))
	lifetimes := make([]float64, len(results))
	survived := 0
	for i, r := range results {
		produced[i] = float64(r.Counters.Produced)
		lifetimes[i] = float64(r.EndMs)
		if r.Survived {
			survived++
		}
	}
	agg.SurvivalRate = float64(survived) / float64(len(results))
	agg.MeanProduced = stat.Mean(produced, nil)
	agg.MeanLifetimeMs = stat.Mean(lifetimes, nil)
	if len(results) > 1 {
		agg.StdDevProduced = stat.StdDev(produced, nil)
	}
	return agg
}

// #endregion batch
