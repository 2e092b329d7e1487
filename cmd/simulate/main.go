package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/danielpatrickdp/cell-controller/internal/config"
	"github.com/danielpatrickdp/cell-controller/internal/controller"
	"github.com/danielpatrickdp/cell-controller/internal/sim"
	"github.com/danielpatrickdp/cell-controller/internal/telemetry"
)

// #region main
func main() {
	configPath := flag.String("config", "", "Path to config.yaml (empty = use defaults)")
	runs := flag.Int("runs", 1, "Number of seeds to simulate, starting at simulation.seed")
	seed := flag.Uint64("seed", 0, "Override simulation.seed (0 = use config)")
	outputDir := flag.String("output", "", "Output directory for CSV logs and config snapshot")
	logEvents := flag.Bool("log-events", false, "Log every handled event via slog")
	flag.Parse()

	if *runs < 1 {
		fmt.Fprintln(os.Stderr, "usage: simulate [-config path] [-runs N] [-seed S] [-output dir] [-log-events]")
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if *seed != 0 {
		cfg.Simulation.Seed = *seed
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	var logger *slog.Logger
	if *logEvents {
		level, _ := cfg.SlogLevel()
		logger = slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	}

	if err := run(cfg, *runs, *outputDir, logger); err != nil {
		slog.Error("simulation failed", "error", err)
		os.Exit(1)
	}
}

// #endregion main

// #region run
func run(cfg *config.Config, runs int, outputDir string, logger *slog.Logger) error {
	out, err := telemetry.NewOutputManager(outputDir)
	if err != nil {
		return err
	}
	defer out.Close()

	if err := out.WriteConfig(cfg); err != nil {
		return fmt.Errorf("writing config snapshot: %w", err)
	}

	var recorderFor func(uint64) controller.Recorder
	if out != nil {
		recorderFor = func(uint64) controller.Recorder { return out }
	}

	results, err := sim.Batch(cfg.Core(), sim.ParamsFrom(cfg.Simulation), runs, logger, recorderFor)
	if err != nil {
		return err
	}

	fmt.Printf("%-8s| %-9s| %-10s| %-8s| %-8s| %-8s| %-8s| %s\n",
		"Seed", "Survived", "End ms", "Deliv", "Threats", "Produced", "Denied", "Adaptive")
	for _, r := range results {
		fmt.Printf("%-8d| %-9v| %-10d| %-8d| %-8d| %-8d| %-8d| %.2f\n",
			r.Seed, r.Survived, r.EndMs, r.Counters.Deliveries, r.Counters.Threats,
			r.Counters.Produced, r.Counters.Denied, r.AdaptiveFraction)
		if r.Violations > 0 {
			fmt.Printf("  seed %d: %d invariant violations\n", r.Seed, r.Violations)
		}

		if err := out.WriteSummary(telemetry.SummaryRow{
			Participant:      cfg.Participant.ID,
			Seed:             r.Seed,
			Survived:         r.Survived,
			EndMs:            r.EndMs,
			Deliveries:       r.Counters.Deliveries,
			Threats:          r.Counters.Threats,
			Produced:         r.Counters.Produced,
			Denied:           r.Counters.Denied,
			AdaptiveFraction: r.AdaptiveFraction,
			MeanCharged:      r.MeanCharged,
			StdDevCharged:    r.StdDevCharged,
		}); err != nil {
			return err
		}
	}

	agg := sim.Summarize(results)
	fmt.Printf("\nRuns: %d  survival=%.2f  produced=%.1f±%.1f  lifetime=%.0f ms\n",
		agg.Runs, agg.SurvivalRate, agg.MeanProduced, agg.StdDevProduced, agg.MeanLifetimeMs)
	if dir := out.Dir(); dir != "" {
		fmt.Printf("Output written to %s\n", dir)
	}
	return nil
}

// #endregion run
