// Package config loads daemon and simulator settings from YAML.
package config

import (
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/danielpatrickdp/cell-controller/internal/controller"
	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Config holds every setting of the participant daemon and simulator.
type Config struct {
	Participant ParticipantConfig `yaml:"participant"`
	Policy      PolicyConfig      `yaml:"policy"`
	Server      ServerConfig      `yaml:"server"`
	Journal     JournalConfig     `yaml:"journal"`
	Log         LogConfig         `yaml:"log"`
	Simulation  SimulationConfig  `yaml:"simulation"`
}

// ParticipantConfig identifies the participant and sizes its cells.
type ParticipantConfig struct {
	ID       uint32 `yaml:"id"`
	Capacity int    `yaml:"capacity"`
}

// PolicyConfig holds the reservation and estimation thresholds.
type PolicyConfig struct {
	ConservativeReserve       int     `yaml:"conservative_reserve"`
	AdaptiveFarReserve        int     `yaml:"adaptive_far_reserve"`
	AdaptiveNearReserve       int     `yaml:"adaptive_near_reserve"`
	DeliveryImminentFraction  float64 `yaml:"delivery_imminent_fraction"`
	ThreatFarFraction         float64 `yaml:"threat_far_fraction"`
	EMAAlpha                  float64 `yaml:"ema_alpha"`
	TransitionSampleThreshold uint32  `yaml:"transition_sample_threshold"`
}

// ServerConfig holds listen addresses.
type ServerConfig struct {
	Addr        string `yaml:"addr"`         // gRPC
	MetricsAddr string `yaml:"metrics_addr"` // /metrics and /healthz; empty disables
}

// JournalConfig controls the SQLite decision journal.
type JournalConfig struct {
	Enabled bool   `yaml:"enabled"`
	DBPath  string `yaml:"db_path"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `yaml:"level"` // debug | info | warn | error
}

// SimulationConfig drives cmd/simulate. Means are for exponential inter-arrival times.
type SimulationConfig struct {
	Seed           uint64  `yaml:"seed"`
	HorizonMs      int64   `yaml:"horizon_ms"`
	DeliveryMeanMs float64 `yaml:"delivery_mean_ms"`
	ThreatMeanMs   float64 `yaml:"threat_mean_ms"`
	RequestMeanMs  float64 `yaml:"request_mean_ms"`
}

// Load loads configuration from a YAML file, merging with embedded defaults.
// If path is empty, only embedded defaults are used.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(defaultsYAML, cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded defaults: %w", err)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// Only fields present in the file are overwritten.
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	return cfg, nil
}

// ApplyEnv overrides deployment settings from the environment.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if v := getenv("CELL_DB"); v != "" {
		c.Journal.DBPath = v
	}
	if v := getenv("CELL_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := getenv("CELL_METRICS_ADDR"); v != "" {
		c.Server.MetricsAddr = v
	}
	if v := getenv("CELL_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
}

// Core converts the participant and policy sections to a controller config.
func (c *Config) Core() controller.Config {
	return controller.Config{
		ID:                        c.Participant.ID,
		Capacity:                  c.Participant.Capacity,
		ConservativeReserve:       c.Policy.ConservativeReserve,
		AdaptiveFarReserve:        c.Policy.AdaptiveFarReserve,
		AdaptiveNearReserve:       c.Policy.AdaptiveNearReserve,
		DeliveryImminentFraction:  c.Policy.DeliveryImminentFraction,
		ThreatFarFraction:         c.Policy.ThreatFarFraction,
		EMAAlpha:                  c.Policy.EMAAlpha,
		TransitionSampleThreshold: c.Policy.TransitionSampleThreshold,
	}
}

// SlogLevel parses Log.Level.
func (c *Config) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(c.Log.Level))); err != nil {
		return 0, fmt.Errorf("log level %q: %w", c.Log.Level, err)
	}
	return level, nil
}

// Validate checks the whole configuration.
func (c *Config) Validate() error {
	if err := c.Core().Validate(); err != nil {
		return err
	}
	if _, err := c.SlogLevel(); err != nil {
		return err
	}
	if c.Journal.Enabled && c.Journal.DBPath == "" {
		return fmt.Errorf("journal enabled without db_path")
	}
	s := c.Simulation
	if s.DeliveryMeanMs <= 0 || s.ThreatMeanMs <= 0 || s.RequestMeanMs <= 0 {
		return fmt.Errorf("simulation means must be positive")
	}
	if s.HorizonMs <= 0 {
		return fmt.Errorf("simulation horizon_ms must be positive")
	}
	return nil
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}
