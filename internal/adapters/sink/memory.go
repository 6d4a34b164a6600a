package sink

import (
	"context"
	"sort"
	"sync"

	"github.com/heartline/heartline/internal/domain/model"
)

// MemorySink keeps records in memory. Used for tests and for running the
// service without durable storage.
type MemorySink struct {
	mu      sync.Mutex
	closed  bool
	records []model.WindowRecord
}

// NewMemorySink creates an empty in-memory sink.
func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

// Save appends rec.
func (s *MemorySink) Save(_ context.Context, rec model.WindowRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.records = append(s.records, rec)
	return nil
}

// Recent returns up to limit records for a subject, newest first by
// window start.
func (s *MemorySink) Recent(_ context.Context, subjectID string, limit int) ([]model.WindowRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}

	var out []model.WindowRecord
	for i := len(s.records) - 1; i >= 0 && len(out) < limit; i-- {
		if s.records[i].SubjectID == subjectID {
			out = append(out, s.records[i])
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].WindowStart.After(out[j].WindowStart)
	})
	return out, nil
}

// Close marks the sink closed; further saves fail.
func (s *MemorySink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Records returns a copy of everything saved so far.
func (s *MemorySink) Records() []model.WindowRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.WindowRecord, len(s.records))
	copy(out, s.records)
	return out
}
