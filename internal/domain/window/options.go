// Package window implements the per-subject windowing engine.
package window

import (
	"time"

	"github.com/heartline/heartline/pkg/logger"
)

// Option applies a configuration option to the Aggregator.
type Option func(*Aggregator)

// WithWindowDuration sets the window length. Non-positive durations are
// ignored and the default is kept.
func WithWindowDuration(d time.Duration) Option {
	return func(a *Aggregator) {
		if d > 0 {
			a.windowDuration = d
		}
	}
}

// WithEmitter sets the destination for finalized records.
func WithEmitter(e Emitter) Option {
	return func(a *Aggregator) {
		if e != nil {
			a.emitter = e
		}
	}
}

// WithLogger sets a custom logger for the aggregator.
func WithLogger(l logger.Logger) Option {
	return func(a *Aggregator) {
		if l != nil {
			a.logger = l
		}
	}
}
