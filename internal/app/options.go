package app

import (
	"time"

	"github.com/heartline/heartline/internal/adapters/broadcast"
	"github.com/heartline/heartline/internal/adapters/sink"
	"github.com/heartline/heartline/pkg/clock"
	"github.com/heartline/heartline/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithWindowDuration sets the aggregation window length.
func WithWindowDuration(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.windowDuration = d
		}
	}
}

// WithFlushInterval sets the scheduler sweep cadence. Defaults to half
// the window duration.
func WithFlushInterval(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.flushInterval = d
		}
	}
}

// WithFlushQueueSize bounds the queue between aggregator and sink workers.
func WithFlushQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithFlushWorkerCount caps concurrent sink writes.
func WithFlushWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithHeartRateBounds sets the accepted bpm range at ingress.
func WithHeartRateBounds(min, max int) Option {
	return func(s *Service) {
		if min > 0 && max > min {
			s.minHeartRate = min
			s.maxHeartRate = max
		}
	}
}

// WithSink sets the persistence backend.
func WithSink(sk sink.Sink) Option {
	return func(s *Service) {
		if sk != nil {
			s.sink = sk
		}
	}
}

// WithHub sets the broadcast hub.
func WithHub(h *broadcast.Hub) Option {
	return func(s *Service) {
		if h != nil {
			s.hub = h
		}
	}
}

// WithClock sets the time source used for flush-due decisions and
// timestamp coercion.
func WithClock(c clock.Clock) Option {
	return func(s *Service) {
		if c != nil {
			s.clk = c
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}
