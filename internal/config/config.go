// Package config loads the engine configuration: per-area parameter structs
// with sensible defaults, an optional YAML file layered on top, and a small
// set of environment overrides for deployment knobs.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"echojudge/internal/reinforcement"
)

// Duration wraps time.Duration so YAML configs can say "2s" or "500ms".
type Duration time.Duration

// UnmarshalYAML parses a Go duration string.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var raw string
	if err := node.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML renders the duration string form.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Std returns the underlying time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config is the root configuration.
type Config struct {
	DataDir string `yaml:"data_dir"` // snapshots and meta logs live here
	Debug   bool   `yaml:"debug"`

	Execution     ExecutionConfig      `yaml:"execution"`
	Reinforcement reinforcement.Config `yaml:"reinforcement"`
	Learning      LearningConfig       `yaml:"learning"`
}

// ExecutionConfig tunes the executor and orchestrator.
type ExecutionConfig struct {
	PhaseTimeout      Duration `yaml:"phase_timeout"`      // per-phase guard, 0 disables
	HistorySize       int      `yaml:"history_size"`       // bounded execution history
	OverrideThreshold float64  `yaml:"override_threshold"` // learned value needed to override the selector
	PoorConfidence    float64  `yaml:"poor_confidence"`    // below this, flag for learning
	PoorAdaptation    float64  `yaml:"poor_adaptation"`    // below this, flag for learning
	PoorDuration      Duration `yaml:"poor_duration"`      // above this, flag for learning
}

// LearningConfig tunes the adaptive learning engine.
type LearningConfig struct {
	WindowDays    int `yaml:"window_days"`    // trailing analysis window
	MinFrequency  int `yaml:"min_frequency"`  // occurrences before a group is a pattern
	CooldownHours int `yaml:"cooldown_hours"` // min spacing of adaptations per signature
}

// Default returns the reference configuration.
func Default() Config {
	return Config{
		DataDir: filepath.Join(".", "data"),
		Execution: ExecutionConfig{
			PhaseTimeout:      Duration(5 * time.Second),
			HistorySize:       1000,
			OverrideThreshold: 0.7,
			PoorConfidence:    0.6,
			PoorAdaptation:    0.5,
			PoorDuration:      Duration(10 * time.Second),
		},
		Reinforcement: reinforcement.DefaultConfig(),
		Learning: LearningConfig{
			WindowDays:    7,
			MinFrequency:  3,
			CooldownHours: 24,
		},
	}
}

// Load reads the YAML config at path over the defaults, then applies
// environment overrides. A missing file yields the defaults.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			applyEnv(&cfg)
			return cfg, nil
		}
		return cfg, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	applyEnv(&cfg)
	return cfg, cfg.validate()
}

// applyEnv applies ECHOJUDGE_* environment overrides.
func applyEnv(cfg *Config) {
	if v := os.Getenv("ECHOJUDGE_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("ECHOJUDGE_DEBUG"); v == "1" || v == "true" {
		cfg.Debug = true
	}
}

func (c Config) validate() error {
	if c.Execution.HistorySize <= 0 {
		return fmt.Errorf("execution.history_size must be positive")
	}
	if c.Learning.WindowDays <= 0 {
		return fmt.Errorf("learning.window_days must be positive")
	}
	if c.Learning.MinFrequency <= 0 {
		return fmt.Errorf("learning.min_frequency must be positive")
	}
	if c.Learning.CooldownHours < 0 {
		return fmt.Errorf("learning.cooldown_hours must not be negative")
	}
	return nil
}
