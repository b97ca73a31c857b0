package rebalancerrun

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"fieldline/ordering/pkg/rebalance"
)

// Duration lets YAML carry values like "30s" or "5m".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Config is the daemon's YAML configuration.
type Config struct {
	Database    string   `yaml:"database"`
	Interval    Duration `yaml:"interval"`
	MinGap      float64  `yaml:"min_gap"`
	Spacing     float64  `yaml:"spacing"`
	Parallelism int      `yaml:"parallelism"`
	LogLevel    string   `yaml:"log_level"`
}

func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg := Config{
		Interval: Duration(time.Minute),
		MinGap:   rebalance.DefaultMinGap,
		Spacing:  rebalance.DefaultSpacing,
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	if cfg.Database == "" {
		return Config{}, fmt.Errorf("config %s: database path is required", path)
	}
	if cfg.Interval <= 0 {
		cfg.Interval = Duration(time.Minute)
	}
	return cfg, nil
}

func (c Config) interval() time.Duration {
	return time.Duration(c.Interval)
}

func (c Config) logLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
