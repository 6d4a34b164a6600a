package app

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/heartline/heartline/pkg/logger"
	"github.com/heartline/heartline/pkg/metrics"
)

// runScheduler drives FlushDue on a fixed cadence until the service stops.
// Single-flight: a tick that fires while the previous sweep is still
// running is skipped, not queued; the next tick picks the due windows up.
func (s *Service) runScheduler(ctx context.Context) {
	defer close(s.schedulerDone)

	var sweeping atomic.Bool
	ticker := time.NewTicker(s.flushInterval)
	defer ticker.Stop()

	s.logger.Info(ctx, "flush scheduler started",
		logger.Duration("interval", s.flushInterval),
	)

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-ticker.C:
			if !sweeping.CompareAndSwap(false, true) {
				metrics.RecordFlushSweepSkipped()
				continue
			}
			s.sweepWG.Add(1)
			go func() {
				defer s.sweepWG.Done()
				defer sweeping.Store(false)
				s.sweep(ctx)
			}()
		}
	}
}

// sweep runs one FlushDue pass against the injected clock.
func (s *Service) sweep(ctx context.Context) {
	start := time.Now()
	n := s.aggregator.FlushDue(ctx, s.clk.Now())
	metrics.RecordFlushSweepDuration(float64(time.Since(start).Milliseconds()))

	if n > 0 {
		s.logger.Debug(ctx, "flush sweep complete",
			logger.Int("windows", n),
			logger.Duration("elapsed", time.Since(start)),
		)
	}
}
