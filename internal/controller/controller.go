package controller

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/danielpatrickdp/cell-controller/internal/cells"
	"github.com/danielpatrickdp/cell-controller/internal/estimator"
	"github.com/danielpatrickdp/cell-controller/internal/eval"
	"github.com/danielpatrickdp/cell-controller/internal/gate"
	"github.com/danielpatrickdp/cell-controller/internal/logging"
	"github.com/danielpatrickdp/cell-controller/internal/metrics"
	"github.com/danielpatrickdp/cell-controller/internal/policy"
	"github.com/danielpatrickdp/cell-controller/internal/resource"
)

// #region controller
// Controller is the decision core of one participant. It is not safe for
// concurrent use: a multithreaded host must serialize every call through a
// single lock or queue per participant.
type Controller struct {
	config    Config
	label     string
	logger    *slog.Logger
	recorder  Recorder
	cells     *cells.Store
	estimator *estimator.Estimator
	machine   *policy.Machine
	gate      *gate.Gate
	generator producer
	harness   *eval.EvalHarness
	counters  Counters
	seq       int64
}

// producer turns a discharged cell into a resource. *resource.Generator is
// the only implementation outside tests.
type producer interface {
	Supports(kind resource.Kind) bool
	Make(kind resource.Kind, cellIndex int, nowMs int64) (resource.Resource, error)
	SupportedResources() []resource.Kind
	SupportedCombinations() []string
	Combine(a, b resource.Kind) (resource.Resource, error)
}

// New builds a controller with empty cells, no rocket and conservative mode.
// logger and recorder may be nil.
func New(config Config, logger *slog.Logger, recorder Recorder) (*Controller, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	store, err := cells.NewStore(config.Capacity)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	label := strconv.FormatUint(uint64(config.ID), 10)

	c := &Controller{
		config:    config,
		label:     label,
		logger:    logger.With("participant", config.ID),
		recorder:  recorder,
		cells:     store,
		estimator: estimator.New(config.EMAAlpha),
		machine:   policy.NewMachine(config.TransitionSampleThreshold),
		gate:      gate.NewGate(config.GateConfig()),
		generator: resource.NewGenerator(resource.Carbon),
		harness:   eval.NewEvalHarness(eval.DefaultEvalConfig(config.Capacity)),
	}
	c.publishGauges()
	return c, nil
}

// Config returns the participant configuration.
func (c *Controller) Config() Config {
	return c.config
}

// Mode returns the current policy mode.
func (c *Controller) Mode() policy.Mode {
	return c.machine.Mode()
}

// AvailableChargedCells returns the number of charged cells.
func (c *Controller) AvailableChargedCells() int {
	return c.cells.ChargedCount()
}

// HasRocket reports whether a rocket is stored.
func (c *Controller) HasRocket() bool {
	return c.cells.HasRocket()
}

// #endregion controller

// #region on-delivery
// OnDelivery handles one energy delivery at nowMs: update the delivery
// estimate, charge a cell, try to build a rocket, re-evaluate the mode.
// A delivery with every cell full is discarded and reported, not returned as an error.
func (c *Controller) OnDelivery(nowMs int64) DeliveryResult {
	modeBefore := c.machine.Mode()
	chargedBefore := c.cells.ChargedCount()
	c.counters.Deliveries++
	metrics.EventsTotal.WithLabelValues(c.label, string(estimator.KindDelivery)).Inc()
	c.logger.Info("delivery received", "at_ms", nowMs)

	c.observe(nowMs, estimator.KindDelivery)

	res := DeliveryResult{CellIndex: -1}
	outcome, reason := "charged", ""
	idx, err := c.cells.Charge()
	if err != nil {
		c.counters.Discarded++
		outcome, reason = "discarded", err.Error()
		c.logger.Warn("delivery discarded", "error", err)
	} else {
		res.Charged = true
		res.CellIndex = idx
		c.logger.Info("cell charged", "cell", idx)
	}

	res.RocketBuilt = c.tryBuildRocket()
	res.Transition = c.reevaluate()

	c.finish(logging.EventRecord{
		Kind:          string(estimator.KindDelivery),
		AtMs:          nowMs,
		Outcome:       outcome,
		Reason:        reason,
		ModeBefore:    string(modeBefore),
		ChargedBefore: chargedBefore,
		RocketBuilt:   res.RocketBuilt,
	}, eval.Observation{})
	return res
}

// #endregion on-delivery

// #region on-threat
// OnThreat handles one threat at nowMs. With a rocket stored, the rocket is
// spent, a replacement is built from any spare charge and the mode is
// re-evaluated. Without one the participant is destroyed; what follows is the
// host's concern.
func (c *Controller) OnThreat(nowMs int64) ThreatResult {
	modeBefore := c.machine.Mode()
	chargedBefore := c.cells.ChargedCount()
	c.counters.Threats++
	metrics.EventsTotal.WithLabelValues(c.label, string(estimator.KindThreat)).Inc()
	c.logger.Info("threat received", "at_ms", nowMs)

	c.observe(nowMs, estimator.KindThreat)

	var res ThreatResult
	rec := logging.EventRecord{
		Kind:          string(estimator.KindThreat),
		AtMs:          nowMs,
		ModeBefore:    string(modeBefore),
		ChargedBefore: chargedBefore,
	}

	if !c.cells.ConsumeRocket() {
		res.Outcome = Destroyed
		rec.Outcome = string(Destroyed)
		rec.Reason = "no rocket stored"
		metrics.ThreatsTotal.WithLabelValues(c.label, string(Destroyed)).Inc()
		c.logger.Warn("threat not deflected, participant destroyed")
		c.finish(rec, eval.Observation{})
		return res
	}

	c.counters.Deflected++
	res.Outcome = Deflected
	metrics.ThreatsTotal.WithLabelValues(c.label, string(Deflected)).Inc()
	c.logger.Info("threat deflected")

	res.RocketRebuilt = c.tryBuildRocket()
	res.Transition = c.reevaluate()

	rec.Outcome = string(Deflected)
	rec.RocketBuilt = res.RocketRebuilt
	c.finish(rec, eval.Observation{})
	return res
}

// #endregion on-threat

// #region on-production
// OnProductionRequest answers a request for one unit of kind at nowMs. The
// mode is not re-evaluated here.
func (c *Controller) OnProductionRequest(kind resource.Kind, nowMs int64) (resource.Resource, error) {
	modeBefore := c.machine.Mode()
	chargedBefore := c.cells.ChargedCount()
	metrics.EventsTotal.WithLabelValues(c.label, "production").Inc()
	c.logger.Info("production requested", "resource", kind, "at_ms", nowMs)

	rec := logging.EventRecord{
		Kind:          "production",
		AtMs:          nowMs,
		Resource:      string(kind),
		ModeBefore:    string(modeBefore),
		ChargedBefore: chargedBefore,
	}

	if !c.generator.Supports(kind) {
		err := fmt.Errorf("produce %s: %w", kind, ErrUnsupportedResource)
		c.counters.Denied++
		metrics.ProductionTotal.WithLabelValues(c.label, "unsupported").Inc()
		c.logger.Warn("production denied", "resource", kind, "error", err)
		rec.Outcome, rec.Reason = "deny", err.Error()
		c.finish(rec, eval.Observation{})
		return resource.Resource{}, err
	}

	reserve := c.gate.Reserve(modeBefore, c.estimator.Get(estimator.KindDelivery), c.estimator.Get(estimator.KindThreat), nowMs)
	c.logger.Debug("reserve computed",
		"mode", modeBefore,
		"reserve", reserve.Cells,
		"threat_far", reserve.ThreatFar,
		"delivery_imminent", reserve.DeliveryImminent,
		"clamped", reserve.Clamped,
	)
	reserveCells := reserve.Cells
	rec.Reserve = &reserveCells

	decision := c.gate.Evaluate(chargedBefore, c.cells.Capacity(), reserve)
	if !decision.Admitted() {
		err := fmt.Errorf("produce %s: %w: %s", kind, decision.Err, decision.Reason)
		c.counters.Denied++
		metrics.ProductionTotal.WithLabelValues(c.label, "deny").Inc()
		if errors.Is(decision.Err, ErrInvalidState) {
			c.counters.Violations++
			metrics.InvariantViolationsTotal.WithLabelValues(c.label).Inc()
			c.logger.Error("invalid state, production skipped", "error", err, "charged", chargedBefore, "capacity", c.cells.Capacity())
		} else {
			c.logger.Info("production denied", "resource", kind, "reason", decision.Reason)
		}
		rec.Outcome, rec.Reason = "deny", decision.Reason
		c.finish(rec, eval.Observation{})
		return resource.Resource{}, err
	}

	idx, err := c.cells.Discharge()
	if err != nil {
		// Evaluate admitted with charged > 0, so a charged cell exists.
		return resource.Resource{}, c.productionFailed(rec, kind, err)
	}

	res, err := c.generator.Make(kind, idx, nowMs)
	if err != nil {
		if _, chargeErr := c.cells.Charge(); chargeErr != nil {
			c.logger.Error("could not return charge after failed production", "cell", idx, "error", chargeErr)
		}
		return resource.Resource{}, c.productionFailed(rec, kind, err)
	}
	c.counters.Produced++
	metrics.ProductionTotal.WithLabelValues(c.label, "admit").Inc()
	c.logger.Info("resource produced", "resource", kind, "cell", idx, "id", res.ID, "reserve", reserve.Cells)

	rec.Outcome, rec.Reason = "admit", decision.Reason
	c.finish(rec, eval.Observation{Produced: true, ReserveCells: reserve.Cells})
	return res, nil
}

// #endregion on-production

// #region catalogue
// SupportedResources lists the kinds this participant can produce.
func (c *Controller) SupportedResources() []resource.Kind {
	return c.generator.SupportedResources()
}

// SupportedCombinations lists combination rules (none).
func (c *Controller) SupportedCombinations() []string {
	return c.generator.SupportedCombinations()
}

// Combine rejects every combination request.
func (c *Controller) Combine(a, b resource.Kind) (resource.Resource, error) {
	_, err := c.generator.Combine(a, b)
	c.logger.Warn("combination requested", "a", a, "b", b, "error", err)
	return resource.Resource{}, err
}

// #endregion catalogue

// #region snapshot
// Snapshot returns the participant state, with the reserve the current mode
// would apply at nowMs.
func (c *Controller) Snapshot(nowMs int64) Snapshot {
	delivery := c.estimator.Get(estimator.KindDelivery)
	threat := c.estimator.Get(estimator.KindThreat)
	mode := c.machine.Mode()
	return Snapshot{
		Participant: c.config.ID,
		AtMs:        nowMs,
		Mode:        mode,
		Cells:       c.cells.Cells(),
		Charged:     c.cells.ChargedCount(),
		Capacity:    c.cells.Capacity(),
		Rocket:      c.cells.HasRocket(),
		Delivery:    delivery,
		Threat:      threat,
		Reserve:     c.gate.Reserve(mode, delivery, threat, nowMs).Cells,
		Counters:    c.counters,
	}
}

// #endregion snapshot

// #region helpers
func (c *Controller) observe(nowMs int64, kind estimator.Kind) {
	prev := c.estimator.Get(kind).Value()
	est := c.estimator.Observe(nowMs, kind)
	metrics.IntervalEstimateMs.WithLabelValues(c.label, string(kind)).Set(est.Value())
	c.logger.Debug("estimate updated",
		"kind", kind,
		"from_ms", prev,
		"to_ms", est.Value(),
		"samples", est.SampleCount,
	)
}

func (c *Controller) tryBuildRocket() bool {
	idx, err := c.cells.BuildRocket()
	if err != nil {
		// Expected whenever a rocket is stored or no charge is left.
		c.logger.Debug("no rocket built", "reason", err)
		return false
	}
	c.logger.Info("rocket built", "cell", idx)
	return true
}

func (c *Controller) reevaluate() policy.Transition {
	tr := c.machine.Evaluate(c.estimator.Get(estimator.KindDelivery), c.estimator.Get(estimator.KindThreat))
	if tr.Changed {
		metrics.ModeTransitionsTotal.WithLabelValues(c.label, string(tr.To)).Inc()
		c.logger.Info("policy mode changed", "from", tr.From, "to", tr.To, "reason", tr.Reason)
	}
	return tr
}

// productionFailed records an admitted request that could not complete. The
// gate already admitted it, so any failure here is an invalid state.
func (c *Controller) productionFailed(rec logging.EventRecord, kind resource.Kind, cause error) error {
	err := fmt.Errorf("produce %s: %w: %v", kind, ErrInvalidState, cause)
	c.counters.Denied++
	c.counters.Violations++
	metrics.ProductionTotal.WithLabelValues(c.label, "deny").Inc()
	metrics.InvariantViolationsTotal.WithLabelValues(c.label).Inc()
	c.logger.Error("invalid state, production skipped", "error", err)
	rec.Outcome, rec.Reason = "deny", err.Error()
	c.finish(rec, eval.Observation{})
	return err
}

// finish validates invariants, publishes gauges and journals the event.
func (c *Controller) finish(rec logging.EventRecord, obs eval.Observation) {
	obs.Charged = c.cells.ChargedCount()
	obs.Rocket = c.cells.HasRocket()
	if result := c.harness.Run(obs); !result.Passed {
		c.counters.Violations++
		metrics.InvariantViolationsTotal.WithLabelValues(c.label).Inc()
		c.logger.Error("invalid state", "error", ErrInvalidState, "reason", result.Reason, "event", rec.Kind, "at_ms", rec.AtMs)
	}

	c.publishGauges()

	if c.recorder == nil {
		return
	}
	c.seq++
	delivery := c.estimator.Get(estimator.KindDelivery)
	threat := c.estimator.Get(estimator.KindThreat)
	rec.Participant = c.config.ID
	rec.Seq = c.seq
	rec.ModeAfter = string(c.machine.Mode())
	rec.ChargedAfter = obs.Charged
	rec.RocketAfter = obs.Rocket
	rec.Delivery = logging.EstimateRecord{EstimateMs: delivery.Value(), LastSeenMs: delivery.LastSeenMs, SampleCount: delivery.SampleCount}
	rec.Threat = logging.EstimateRecord{EstimateMs: threat.Value(), LastSeenMs: threat.LastSeenMs, SampleCount: threat.SampleCount}
	rec.Thresholds = c.config.Thresholds()
	if err := c.recorder.Record(rec); err != nil {
		c.logger.Error("journal write failed", "error", err, "seq", rec.Seq)
	}
}

func (c *Controller) publishGauges() {
	metrics.ChargedCells.WithLabelValues(c.label).Set(float64(c.cells.ChargedCount()))
	metrics.RocketPresent.WithLabelValues(c.label).Set(metrics.BoolGauge(c.cells.HasRocket()))
	metrics.PolicyMode.WithLabelValues(c.label).Set(metrics.BoolGauge(c.machine.Mode() == policy.ModeAdaptive))
}

// #endregion helpers
