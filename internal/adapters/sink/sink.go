// Package sink defines the durable store for aggregated window records.
//
// The persisted stream is an append-only recorded-metric log: one row per
// closed window, never updated, never deleted. A failed save is logged and
// counted by the caller but does not roll back the in-memory flush.
package sink

import (
	"context"

	"github.com/heartline/heartline/internal/domain/model"
)

// Sink persists one aggregated record per flushed window.
type Sink interface {
	// Save appends rec to the store.
	Save(ctx context.Context, rec model.WindowRecord) error

	// Recent returns up to limit records for a subject, newest first.
	Recent(ctx context.Context, subjectID string, limit int) ([]model.WindowRecord, error)

	// Close releases underlying resources.
	Close() error
}
