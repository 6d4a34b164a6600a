// Package app provides the core service that wires the windowing engine,
// the flush pipeline, the persistence sink and the live broadcast hub, and
// implements the dependencies required by the HTTP API.
package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/heartline/heartline/internal/adapters/broadcast"
	"github.com/heartline/heartline/internal/adapters/mq/queue"
	"github.com/heartline/heartline/internal/adapters/mq/worker"
	"github.com/heartline/heartline/internal/adapters/sink"
	"github.com/heartline/heartline/internal/domain/model"
	"github.com/heartline/heartline/internal/domain/window"
	"github.com/heartline/heartline/pkg/clock"
	"github.com/heartline/heartline/pkg/logger"
	"github.com/heartline/heartline/pkg/metrics"
)

// Default service configuration constants.
const (
	defaultQueueSize   = 4096
	defaultWorkerCount = 4
	defaultMinHR       = 30
	defaultMaxHR       = 250
)

// Service owns the aggregation pipeline: ingress validation, the window
// aggregator, the flush scheduler, the bounded flush queue with its worker
// pool, the persistence sink and the broadcast hub.
type Service struct {
	mu sync.RWMutex

	// Core components
	aggregator *window.Aggregator
	flushQueue *queue.InMemoryQueue
	workerPool *worker.Pool
	sink       sink.Sink
	hub        *broadcast.Hub
	clk        clock.Clock

	// Configuration
	windowDuration time.Duration
	flushInterval  time.Duration
	queueSize      int
	workerCount    int
	minHeartRate   int
	maxHeartRate   int

	// State
	started       bool
	stopCh        chan struct{}
	schedulerDone chan struct{}
	sweepWG       sync.WaitGroup
	finalFlush    sync.Once

	// Logging
	logger logger.Logger
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		windowDuration: window.DefaultWindowDuration,
		queueSize:      defaultQueueSize,
		workerCount:    defaultWorkerCount,
		minHeartRate:   defaultMinHR,
		maxHeartRate:   defaultMaxHR,
		clk:            clock.System(),
		stopCh:         make(chan struct{}),
		schedulerDone:  make(chan struct{}),
	}

	for _, opt := range opts {
		opt(s)
	}

	// Default cadence: sweep twice per window so windows flush promptly
	// after they close.
	if s.flushInterval <= 0 {
		s.flushInterval = s.windowDuration / 2
	}

	return s
}

// Start initializes and starts the service components.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}
	if s.sink == nil {
		s.sink = sink.NewMemorySink()
	}
	if s.hub == nil {
		s.hub = broadcast.NewHub(broadcast.WithClock(s.clk))
	}

	s.logger.Info(ctx, "starting aggregation service...")

	s.flushQueue = queue.NewInMemoryQueue(
		queue.WithCapacity(s.queueSize),
	)
	s.aggregator = window.New(
		window.WithWindowDuration(s.windowDuration),
		window.WithEmitter(window.EmitterFunc(s.emit)),
	)
	s.workerPool = worker.NewPool(s.workerCount, s.flushQueue, s.sink, s.hub)
	s.workerPool.Start(ctx)

	go s.runScheduler(ctx)

	s.started = true
	s.logger.Info(ctx, "aggregation service started",
		logger.Duration("windowDuration", s.windowDuration),
		logger.Duration("flushInterval", s.flushInterval),
		logger.Int("flushWorkers", s.workerCount),
		logger.Int("flushQueueSize", s.queueSize),
	)

	return nil
}

// Stop gracefully shuts down the service: halts the scheduler, flushes
// every open window exactly once, drains the flush queue, then releases
// the hub and the sink.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	ctx := context.Background()
	s.logger.Info(ctx, "stopping aggregation service...")

	// Stop ticking and join any in-flight sweep before the final flush, so
	// a racing sweep can't enqueue after the queue closes.
	select {
	case <-s.stopCh:
	default:
		close(s.stopCh)
	}
	<-s.schedulerDone
	s.sweepWG.Wait()

	s.finalFlush.Do(func() {
		n := s.aggregator.FlushAll(ctx)
		s.logger.Info(ctx, "final flush complete", logger.Int("windows", n))
	})

	// Close the queue and wait for workers to drain what the final flush
	// just emitted.
	if err := s.workerPool.Shutdown(ctx); err != nil {
		s.logger.Error(ctx, "worker pool shutdown failed", logger.Error(err))
	}

	if err := s.hub.Close(); err != nil {
		s.logger.Error(ctx, "hub close failed", logger.Error(err))
	}
	if err := s.sink.Close(); err != nil {
		s.logger.Error(ctx, "sink close failed", logger.Error(err))
	}

	s.started = false
	s.logger.Info(ctx, "aggregation service stopped")
}

// AddSample is the only ingress into the aggregator. It validates the raw
// reading, coerces a missing timestamp to the current time, and buffers
// the sample into its subject's open window. Missing sub-metrics never
// reject a sample.
func (s *Service) AddSample(ctx context.Context, sample model.HeartbeatSample) error {
	s.mu.RLock()
	started := s.started
	s.mu.RUnlock()
	if !started {
		return ErrNotStarted
	}

	if sample.SubjectID == "" {
		s.rejectSample(ctx, sample, "missing_subject")
		return ErrMissingSubject
	}
	if sample.HeartRate == 0 {
		s.rejectSample(ctx, sample, "missing_heart_rate")
		return ErrMissingHeartRate
	}
	if sample.HeartRate < s.minHeartRate || sample.HeartRate > s.maxHeartRate {
		s.rejectSample(ctx, sample, "heart_rate_out_of_range")
		return fmt.Errorf("%w: %d bpm outside [%d, %d]",
			ErrHeartRateOutOfRange, sample.HeartRate, s.minHeartRate, s.maxHeartRate)
	}
	if sample.Timestamp.IsZero() {
		sample.Timestamp = s.clk.Now()
	}

	s.aggregator.AddSample(ctx, sample)
	return nil
}

func (s *Service) rejectSample(ctx context.Context, sample model.HeartbeatSample, reason string) {
	metrics.RecordSampleRejected(reason)
	s.logger.Debug(ctx, "sample rejected",
		logger.String("reason", reason),
		logger.String("subjectID", sample.SubjectID),
		logger.Int("heartRate", sample.HeartRate),
	)
}

// Hub exposes the broadcast hub for the live WebSocket endpoint.
func (s *Service) Hub() *broadcast.Hub {
	return s.hub
}

// RecentWindows returns up to limit persisted records for a subject,
// newest first.
func (s *Service) RecentWindows(ctx context.Context, subjectID string, limit int) ([]model.WindowRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return nil, ErrNotStarted
	}
	return s.sink.Recent(ctx, subjectID, limit)
}

// FlushDue sweeps every open window whose end boundary has passed now and
// returns the number flushed. Exposed for the scheduler and for tests.
func (s *Service) FlushDue(ctx context.Context, now time.Time) int {
	return s.aggregator.FlushDue(ctx, now)
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	stats := map[string]interface{}{
		"started":          s.started,
		"windowDurationMs": int(s.windowDuration / time.Millisecond),
		"flushIntervalMs":  int(s.flushInterval / time.Millisecond),
		"flushWorkers":     s.workerCount,
	}

	if s.started {
		agg := s.aggregator.Stats(ctx)
		stats["activeSubjects"] = agg.ActiveSubjects
		stats["activeWindows"] = agg.ActiveWindows
		stats["bufferedSampleCount"] = agg.BufferedSamples
		stats["flushQueueLength"] = s.flushQueue.Len(ctx)
		stats["liveSubscribers"] = s.hub.SubscriberCount()

		metrics.UpdateLiveSubscribers(s.hub.SubscriberCount())
	}

	return stats
}

// emit hands a finalized record to the bounded flush pipeline. The
// aggregator calls this outside its lock; a full queue drops the record
// for storage purposes rather than blocking ingestion.
func (s *Service) emit(ctx context.Context, rec model.WindowRecord) {
	if !s.flushQueue.Enqueue(ctx, rec) {
		s.logger.Warn(ctx, "flush queue full; record dropped",
			logger.String("subjectID", rec.SubjectID),
			logger.Time("windowStart", rec.WindowStart),
			logger.Int("samples", rec.SampleCount),
		)
	}
}
