package worker

import "github.com/heartline/heartline/pkg/logger"

// Option applies a configuration option to the FlushWorker.
type Option func(*FlushWorker)

// WithName sets the worker's name for logging.
func WithName(name string) Option {
	return func(w *FlushWorker) {
		if name != "" {
			w.name = name
		}
	}
}

// WithLogger sets a custom logger for the worker.
func WithLogger(l logger.Logger) Option {
	return func(w *FlushWorker) {
		if l != nil {
			w.logger = l
		}
	}
}
