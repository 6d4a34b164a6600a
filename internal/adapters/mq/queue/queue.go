// Package queue defines the contract for handing finalized window records
// to the flush pipeline.
//
// The queue is deliberately bounded: a burst flush of many subjects at once
// must not grow unbounded in-flight sink writes. Overflow drops the record
// for storage purposes (the accepted at-most-once trade-off) and is counted.
package queue

import (
	"context"
	"sync"

	"github.com/heartline/heartline/internal/domain/model"
	"github.com/heartline/heartline/pkg/metrics"
)

// Default queue configuration constants.
const (
	defaultQueueCapacity = 4096
)

// Record is the payload type flowing through the queue.
type Record = model.WindowRecord

// Queue provides non-blocking enqueue and channel-based dequeue semantics.
type Queue interface {
	// Enqueue adds a record to the queue.
	// Returns false if the queue is full or closed and the record was dropped.
	Enqueue(ctx context.Context, rec Record) bool

	// Dequeue returns a channel that receives records as they become
	// available. The channel is closed when the queue is closed and drained.
	Dequeue(ctx context.Context) <-chan Record

	// Len returns the current number of queued records.
	Len(ctx context.Context) int

	// Close stops accepting new records. Already-queued records remain
	// dequeueable until drained.
	Close() error

	// IsClosed returns true if the queue has been closed.
	IsClosed() bool
}

// InMemoryQueue implements Queue using a buffered channel.
type InMemoryQueue struct {
	records  chan Record
	capacity int

	mu     sync.RWMutex
	closed bool
}

// NewInMemoryQueue creates a new in-memory queue with configuration options.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{
		capacity: defaultQueueCapacity,
	}

	for _, opt := range opts {
		opt(q)
	}

	q.records = make(chan Record, q.capacity)

	metrics.UpdateFlushQueueCapacity(q.capacity)
	metrics.UpdateFlushQueueSize(0)
	metrics.UpdateFlushQueueUtilization(0.0)

	return q
}

// Enqueue adds a record to the queue without blocking.
func (q *InMemoryQueue) Enqueue(ctx context.Context, rec Record) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		metrics.RecordFlushQueueDropped()
		return false
	}

	select {
	case q.records <- rec:
		size := len(q.records)
		metrics.UpdateFlushQueueSize(size)
		metrics.UpdateFlushQueueUtilization(float64(size) / float64(q.capacity))
		return true
	case <-ctx.Done():
		metrics.RecordFlushQueueDropped()
		return false
	default:
		metrics.RecordFlushQueueDropped()
		return false // queue is full
	}
}

// Dequeue returns a channel that receives records as they become available.
func (q *InMemoryQueue) Dequeue(ctx context.Context) <-chan Record {
	out := make(chan Record)
	go func() {
		defer close(out)
		for rec := range q.records {
			select {
			case out <- rec:
				size := len(q.records)
				metrics.UpdateFlushQueueSize(size)
				metrics.UpdateFlushQueueUtilization(float64(size) / float64(q.capacity))
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// Len returns the current number of queued records.
func (q *InMemoryQueue) Len(ctx context.Context) int {
	size := len(q.records)
	metrics.UpdateFlushQueueSize(size)
	return size
}

// Close stops accepting new records.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil // already closed
	}

	close(q.records)
	q.closed = true

	return nil
}

// IsClosed returns true if the queue has been closed.
func (q *InMemoryQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}
