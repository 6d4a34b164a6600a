// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New(...) initializer to build a Config with defaults.
// - External errors must be wrapped via this package's error helpers.
package config

import (
	"context"
	"time"
)

// Sink selection values.
const (
	SinkSQLite = "sqlite"
	SinkMemory = "memory"
)

// Config contains process configuration. Extend as needed.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// WindowDurationMS is the aggregation window length in milliseconds.
	WindowDurationMS int `koanf:"window_duration_ms"`

	// FlushIntervalMS is the scheduler sweep cadence in milliseconds.
	// Must not exceed the window duration; half of it is the sweet spot.
	FlushIntervalMS int `koanf:"flush_interval_ms"`

	// FlushQueueSize bounds the in-memory queue between the aggregator
	// and the sink workers.
	FlushQueueSize int `koanf:"flush_queue_size"`

	// FlushWorkerCount caps concurrent sink writes.
	FlushWorkerCount int `koanf:"flush_worker_count"`

	// MinHeartRate and MaxHeartRate bound accepted readings in bpm.
	MinHeartRate int `koanf:"min_heart_rate"`
	MaxHeartRate int `koanf:"max_heart_rate"`

	// Sink selects the persistence backend: "sqlite" or "memory".
	Sink string `koanf:"sink"`

	// SQLitePath locates the database file when Sink is "sqlite".
	SQLitePath string `koanf:"sqlite_path"`
}

// New creates a Config with defaults. Context is accepted first to satisfy
// the project-wide convention; it is reserved for future use.
func New(_ context.Context) *Config {
	return &Config{
		LogLevel:         "info",
		Addr:             ":9090",
		WindowDurationMS: int(time.Minute / time.Millisecond),
		FlushIntervalMS:  int(30 * time.Second / time.Millisecond),
		FlushQueueSize:   4096,
		FlushWorkerCount: 4,
		MinHeartRate:     30,
		MaxHeartRate:     250,
		Sink:             SinkSQLite,
		SQLitePath:       "heartline.db",
	}
}

// WindowDuration returns the window length as a time.Duration.
func (c *Config) WindowDuration() time.Duration {
	return time.Duration(c.WindowDurationMS) * time.Millisecond
}

// FlushInterval returns the sweep cadence as a time.Duration.
func (c *Config) FlushInterval() time.Duration {
	return time.Duration(c.FlushIntervalMS) * time.Millisecond
}
