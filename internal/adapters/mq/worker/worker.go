// Package worker drains the flush queue, persisting each aggregated record
// and fanning it out to live subscribers.
//
// The pool caps concurrent sink writes: however many windows a burst flush
// produces, at most workerCount saves are in flight at once.
package worker

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/heartline/heartline/internal/adapters/mq/queue"
	"github.com/heartline/heartline/internal/domain/model"
	"github.com/heartline/heartline/pkg/logger"
	"github.com/heartline/heartline/pkg/metrics"
)

// Default worker configuration constants.
const (
	defaultWorkerCount    = 4
	workerShutdownTimeout = 5 * time.Second
	poolShutdownTimeout   = 30 * time.Second
)

// Record abstracts what workers read off the queue.
type Record = model.WindowRecord

// Sink persists one aggregated record. A save failure is final: it is
// logged and counted, never retried, and never rolls back the flush.
type Sink interface {
	Save(ctx context.Context, rec Record) error
}

// Publisher notifies live subscribers of a subject's new record.
type Publisher interface {
	Publish(ctx context.Context, rec Record)
}

// Queue defines how workers receive records.
type Queue interface {
	Dequeue(ctx context.Context) <-chan queue.Record
}

// FlushWorker processes records off the queue.
type FlushWorker struct {
	queue     Queue
	sink      Sink
	publisher Publisher
	name      string

	// Shutdown control
	shutdown chan struct{}
	done     chan struct{}

	// Logging
	logger logger.Logger
}

// NewFlushWorker creates a new worker with configuration options.
func NewFlushWorker(q Queue, s Sink, p Publisher, opts ...Option) *FlushWorker {
	w := &FlushWorker{
		queue:     q,
		sink:      s,
		publisher: p,
		name:      "worker",
		shutdown:  make(chan struct{}),
		done:      make(chan struct{}),
		logger:    logger.Get().Named("flush-worker"),
	}

	for _, opt := range opts {
		opt(w)
	}

	if w.name != "worker" {
		w.logger = w.logger.Named(w.name)
	}

	return w
}

// Run starts the worker loop until the pool shuts down or the queue
// closes and drains. The loop is detached from ctx's cancellation:
// records emitted by the final flush arrive after the process context
// is already canceled and still have to reach the sink.
func (w *FlushWorker) Run(ctx context.Context) {
	defer close(w.done)

	ctx = context.WithoutCancel(ctx)
	records := w.queue.Dequeue(ctx)
	for {
		select {
		case <-w.shutdown:
			return
		case rec, ok := <-records:
			if !ok {
				// Queue closed and drained.
				return
			}
			w.process(ctx, rec)
		}
	}
}

// Shutdown gracefully stops the worker.
func (w *FlushWorker) Shutdown(ctx context.Context) error {
	close(w.shutdown)

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// process persists one record and publishes it live.
//
// Publish runs regardless of the save outcome: the live display has
// priority over durability, and a storage hiccup must not blank the
// dashboard.
func (w *FlushWorker) process(ctx context.Context, rec Record) {
	start := time.Now()
	err := w.sink.Save(ctx, rec)
	metrics.RecordSinkSaveLatency(float64(time.Since(start).Milliseconds()))

	if err != nil {
		metrics.RecordSinkError()
		w.logger.Error(ctx, "sink save failed; record lost for storage",
			logger.String("subjectID", rec.SubjectID),
			logger.Time("windowStart", rec.WindowStart),
			logger.Int("samples", rec.SampleCount),
			logger.Error(err),
		)
	} else {
		metrics.RecordSinkSave()
	}

	w.publisher.Publish(ctx, rec)
}

// Pool manages multiple flush workers over one queue.
type Pool struct {
	workers   []*FlushWorker
	queue     Queue
	sink      Sink
	publisher Publisher

	// Shutdown control
	shutdown chan struct{}

	// Logging
	logger logger.Logger
}

// NewPool creates a new worker pool.
func NewPool(workerCount int, q Queue, s Sink, p Publisher) *Pool {
	if workerCount < 1 {
		workerCount = defaultWorkerCount
	}

	pool := &Pool{
		workers:   make([]*FlushWorker, workerCount),
		queue:     q,
		sink:      s,
		publisher: p,
		shutdown:  make(chan struct{}),
		logger:    logger.Get().Named("flush-pool"),
	}

	for i := 0; i < workerCount; i++ {
		pool.workers[i] = NewFlushWorker(
			q,
			s,
			p,
			WithName("worker-"+strconv.Itoa(i)),
		)
	}

	return pool
}

// Start starts all workers in the pool.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		go w.Run(ctx)
	}
}

// Stop signals all workers and waits briefly for each to finish.
func (p *Pool) Stop() {
	select {
	case <-p.shutdown:
	default:
		close(p.shutdown)
	}

	for _, w := range p.workers {
		select {
		case <-w.shutdown:
		default:
			close(w.shutdown)
		}
	}
	for _, w := range p.workers {
		select {
		case <-w.done:
		case <-time.After(workerShutdownTimeout):
		}
	}
}

// Shutdown closes the queue so no new records arrive, then waits for the
// workers to drain what is already buffered. Used at graceful shutdown so
// records emitted by the final flush still reach the sink.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	for i, w := range p.workers {
		select {
		case <-w.done:
		case <-shutdownCtx.Done():
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
		}
	}

	return nil
}
