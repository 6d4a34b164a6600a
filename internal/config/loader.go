package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New(ctx))
//  2. file (YAML) if HEARTLINE_CONFIG is set
//  3. env (prefix HEARTLINE_)
func Load(ctx context.Context) (*Config, error) {
	// Start with defaults
	base := New(ctx)

	k := koanf.New(".")

	// Load from file if provided
	if path := os.Getenv("HEARTLINE_CONFIG"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrLoadConfig, err)
		}
	}

	// Environment variables: HEARTLINE_ADDR, HEARTLINE_WINDOW_DURATION_MS, ...
	// Map env keys like HEARTLINE_FLUSH_INTERVAL_MS -> flush_interval_ms
	// (flat keys, underscores preserved to match koanf tags on the struct).
	envProvider := env.Provider("HEARTLINE_", ".", func(s string) string {
		s = strings.ToLower(s)
		s = strings.TrimPrefix(s, "heartline_")
		return s
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoadConfig, err)
	}

	// Unmarshal into a copy
	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoadConfig, err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.WindowDurationMS <= 0:
		return fmt.Errorf("%w: window_duration_ms must be positive", ErrInvalidConfig)
	case c.FlushIntervalMS <= 0:
		return fmt.Errorf("%w: flush_interval_ms must be positive", ErrInvalidConfig)
	case c.FlushIntervalMS > c.WindowDurationMS:
		return fmt.Errorf("%w: flush_interval_ms must not exceed window_duration_ms", ErrInvalidConfig)
	case c.MinHeartRate <= 0 || c.MaxHeartRate <= c.MinHeartRate:
		return fmt.Errorf("%w: heart rate bounds must satisfy 0 < min < max", ErrInvalidConfig)
	case c.Sink != SinkSQLite && c.Sink != SinkMemory:
		return fmt.Errorf("%w: sink must be %q or %q", ErrInvalidConfig, SinkSQLite, SinkMemory)
	case c.Sink == SinkSQLite && c.SQLitePath == "":
		return fmt.Errorf("%w: sqlite_path must not be empty for the sqlite sink", ErrInvalidConfig)
	}
	return nil
}
