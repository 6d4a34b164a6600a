package sink

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/heartline/heartline/internal/domain/model"
)

const createTableStmt = `
CREATE TABLE IF NOT EXISTS window_records (
	id                 INTEGER PRIMARY KEY AUTOINCREMENT,
	subject_id         TEXT    NOT NULL,
	window_start_ms    INTEGER NOT NULL,
	window_end_ms      INTEGER NOT NULL,
	sample_count       INTEGER NOT NULL,
	avg_heart_rate     INTEGER NOT NULL,
	min_heart_rate     INTEGER NOT NULL,
	max_heart_rate     INTEGER NOT NULL,
	std_dev_heart_rate REAL    NOT NULL,
	avg_rr_interval    REAL,
	avg_sdnn           REAL,
	avg_rmssd          REAL,
	avg_pnn50          REAL
);
CREATE INDEX IF NOT EXISTS idx_window_records_subject_start
	ON window_records(subject_id, window_start_ms);
`

const insertStmt = `
INSERT INTO window_records (
	subject_id, window_start_ms, window_end_ms, sample_count,
	avg_heart_rate, min_heart_rate, max_heart_rate, std_dev_heart_rate,
	avg_rr_interval, avg_sdnn, avg_rmssd, avg_pnn50
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`

// SQLiteSink appends window records to a SQLite database. The pure-Go
// driver keeps the binary cgo-free.
type SQLiteSink struct {
	db *sql.DB
}

// NewSQLiteSink opens (or creates) the database at path and ensures the
// window_records table exists.
func NewSQLiteSink(ctx context.Context, path string) (*SQLiteSink, error) {
	db, err := sql.Open("sqlite", fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=500&", path))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOpen, err)
	}

	if _, err := db.ExecContext(ctx, createTableStmt); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: %v", ErrMigrate, err)
	}

	return &SQLiteSink{db: db}, nil
}

// Save appends one record.
func (s *SQLiteSink) Save(ctx context.Context, rec model.WindowRecord) error {
	_, err := s.db.ExecContext(ctx, insertStmt,
		rec.SubjectID,
		rec.WindowStart.UnixMilli(),
		rec.WindowEnd.UnixMilli(),
		rec.SampleCount,
		rec.AvgHeartRate,
		rec.MinHeartRate,
		rec.MaxHeartRate,
		rec.StdDevHeartRate,
		nullable(rec.AvgRRInterval),
		nullable(rec.AvgSDNN),
		nullable(rec.AvgRMSSD),
		nullable(rec.AvgPNN50),
	)
	if err != nil {
		return fmt.Errorf("%w: subject %s window %d: %v",
			ErrSave, rec.SubjectID, rec.WindowStart.UnixMilli(), err)
	}
	return nil
}

const recentStmt = `
SELECT subject_id, window_start_ms, window_end_ms, sample_count,
	avg_heart_rate, min_heart_rate, max_heart_rate, std_dev_heart_rate,
	avg_rr_interval, avg_sdnn, avg_rmssd, avg_pnn50
FROM window_records
WHERE subject_id = ?
ORDER BY window_start_ms DESC
LIMIT ?
`

// Recent returns up to limit records for a subject, newest first.
func (s *SQLiteSink) Recent(ctx context.Context, subjectID string, limit int) ([]model.WindowRecord, error) {
	rows, err := s.db.QueryContext(ctx, recentStmt, subjectID, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrQuery, err)
	}
	defer rows.Close()

	var out []model.WindowRecord
	for rows.Next() {
		var (
			rec                    model.WindowRecord
			startMS, endMS         int64
			rr, sdnn, rmssd, pnn50 sql.NullFloat64
		)
		if err := rows.Scan(
			&rec.SubjectID, &startMS, &endMS, &rec.SampleCount,
			&rec.AvgHeartRate, &rec.MinHeartRate, &rec.MaxHeartRate, &rec.StdDevHeartRate,
			&rr, &sdnn, &rmssd, &pnn50,
		); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrQuery, err)
		}
		rec.WindowStart = time.UnixMilli(startMS).UTC()
		rec.WindowEnd = time.UnixMilli(endMS).UTC()
		rec.AvgRRInterval = floatPtr(rr)
		rec.AvgSDNN = floatPtr(sdnn)
		rec.AvgRMSSD = floatPtr(rmssd)
		rec.AvgPNN50 = floatPtr(pnn50)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrQuery, err)
	}
	return out, nil
}

// Close closes the underlying database handle.
func (s *SQLiteSink) Close() error {
	return s.db.Close()
}

// CountRecords returns the number of persisted records for a subject.
// Used by operational tooling and tests.
func (s *SQLiteSink) CountRecords(ctx context.Context, subjectID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM window_records WHERE subject_id = ?", subjectID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrQuery, err)
	}
	return n, nil
}

func nullable(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}
