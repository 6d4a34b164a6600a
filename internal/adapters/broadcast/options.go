package broadcast

import (
	"time"

	"github.com/heartline/heartline/pkg/clock"
	"github.com/heartline/heartline/pkg/logger"
)

// Option applies a configuration option to the Hub.
type Option func(*Hub)

// WithSendBuffer sets the per-subscriber outbound buffer. A subscriber
// whose buffer is full misses records rather than blocking the publisher.
func WithSendBuffer(n int) Option {
	return func(h *Hub) {
		if n > 0 {
			h.sendBuffer = n
		}
	}
}

// WithWriteTimeout bounds a single WebSocket write.
func WithWriteTimeout(d time.Duration) Option {
	return func(h *Hub) {
		if d > 0 {
			h.writeTimeout = d
		}
	}
}

// WithClock sets the time source used to stamp outgoing envelopes.
func WithClock(c clock.Clock) Option {
	return func(h *Hub) {
		if c != nil {
			h.clk = c
		}
	}
}

// WithLogger sets a custom logger for the hub.
func WithLogger(l logger.Logger) Option {
	return func(h *Hub) {
		if l != nil {
			h.logger = l
		}
	}
}
