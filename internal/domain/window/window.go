// Package window implements the per-subject windowing engine that buckets
// raw heartbeat samples into fixed-duration, boundary-aligned time windows
// and summarizes each window into a single aggregated record at flush time.
//
// A Polar-style chest strap pushes roughly one sample per second; writing
// each one through would flood the store. Aggregating to one record per
// window cuts writes by ~98% while keeping the clinically useful shape of
// the data (average, range, variability, sample count).
package window

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/heartline/heartline/internal/domain/model"
	"github.com/heartline/heartline/pkg/logger"
	"github.com/heartline/heartline/pkg/metrics"
)

// DefaultWindowDuration matches the reference one-minute aggregation grid.
const DefaultWindowDuration = time.Minute

// sampleLogThrottle limits per-sample debug logging to the first sample
// and every Nth after it.
const sampleLogThrottle = 10

// Emitter receives finalized records. Implementations must not block for
// long; the aggregator calls Emit outside its map lock but from the flush
// path.
type Emitter interface {
	Emit(ctx context.Context, rec model.WindowRecord)
}

// EmitterFunc adapts a function to the Emitter interface.
type EmitterFunc func(ctx context.Context, rec model.WindowRecord)

// Emit calls f.
func (f EmitterFunc) Emit(ctx context.Context, rec model.WindowRecord) { f(ctx, rec) }

// openWindow accumulates samples for one (subject, windowStart) pair.
// Identity is fixed at creation; samples is append-only while open.
type openWindow struct {
	subjectID string
	start     time.Time
	end       time.Time
	samples   []model.HeartbeatSample
}

// Stats is a point-in-time snapshot of aggregator occupancy.
type Stats struct {
	ActiveSubjects  int `json:"activeSubjects"`
	ActiveWindows   int `json:"activeWindows"`
	BufferedSamples int `json:"bufferedSampleCount"`
}

// Aggregator owns the per-subject window map. All access goes through
// AddSample, FlushDue, FlushAll and Stats; the map is never shared.
type Aggregator struct {
	mu      sync.Mutex
	windows map[string]map[int64]*openWindow // subjectID -> windowStart (unix ms) -> window

	windowDuration time.Duration
	emitter        Emitter

	logger logger.Logger
}

// New constructs an Aggregator with the provided options.
func New(opts ...Option) *Aggregator {
	a := &Aggregator{
		windows:        make(map[string]map[int64]*openWindow),
		windowDuration: DefaultWindowDuration,
		emitter:        EmitterFunc(func(context.Context, model.WindowRecord) {}),
		logger:         logger.Get().Named("window"),
	}

	for _, opt := range opts {
		opt(a)
	}

	return a
}

// WindowDuration returns the configured window length.
func (a *Aggregator) WindowDuration() time.Duration {
	return a.windowDuration
}

// AddSample appends sample to its subject's open window for the
// duration-aligned bucket containing sample.Timestamp, creating the window
// lazily. The bucket is derived from the sample's own timestamp, so two
// out-of-order samples from the same wall-clock minute always land in the
// same window regardless of arrival order. Pure in-memory mutation; never
// blocks on I/O.
func (a *Aggregator) AddSample(ctx context.Context, sample model.HeartbeatSample) {
	start := sample.Timestamp.Truncate(a.windowDuration)
	key := start.UnixMilli()

	a.mu.Lock()
	subjectWindows, ok := a.windows[sample.SubjectID]
	if !ok {
		subjectWindows = make(map[int64]*openWindow)
		a.windows[sample.SubjectID] = subjectWindows
	}

	w, ok := subjectWindows[key]
	if !ok {
		w = &openWindow{
			subjectID: sample.SubjectID,
			start:     start,
			end:       start.Add(a.windowDuration),
		}
		subjectWindows[key] = w
	}
	w.samples = append(w.samples, sample)
	count := len(w.samples)
	a.mu.Unlock()

	metrics.RecordSampleIngested()

	if count == 1 || count%sampleLogThrottle == 0 {
		a.logger.Debug(ctx, "buffered sample",
			logger.String("subjectID", sample.SubjectID),
			logger.Time("windowStart", start),
			logger.Int("samples", count),
		)
	}
}

// FlushDue finalizes every window whose end boundary is at or before now,
// hands each record to the emitter, and removes the window from memory.
// Windows still inside their time range are left untouched and keep
// accumulating. Returns the number of windows flushed.
//
// Removal happens under the lock before any emission, so a concurrent call
// with the same now finds nothing left to flush; a window can never be
// flushed twice. Emission runs outside the lock so slow downstream I/O for
// one subject never stalls ingestion for others.
func (a *Aggregator) FlushDue(ctx context.Context, now time.Time) int {
	return a.flush(ctx, func(w *openWindow) bool { return !w.end.After(now) })
}

// FlushAll unconditionally finalizes every open window regardless of its
// end boundary. Intended for graceful shutdown so buffered samples are not
// lost. Calling it with no open windows is a no-op.
func (a *Aggregator) FlushAll(ctx context.Context) int {
	return a.flush(ctx, func(*openWindow) bool { return true })
}

func (a *Aggregator) flush(ctx context.Context, due func(*openWindow) bool) int {
	a.mu.Lock()
	var flushable []*openWindow
	for subjectID, subjectWindows := range a.windows {
		for key, w := range subjectWindows {
			if !due(w) || len(w.samples) == 0 {
				continue
			}
			flushable = append(flushable, w)
			delete(subjectWindows, key)
		}
		if len(subjectWindows) == 0 {
			delete(a.windows, subjectID)
		}
	}
	a.mu.Unlock()

	for _, w := range flushable {
		rec := summarize(w)
		a.emitter.Emit(ctx, rec)
		a.logger.Debug(ctx, "flushed window",
			logger.String("subjectID", rec.SubjectID),
			logger.Time("windowStart", rec.WindowStart),
			logger.Int("samples", rec.SampleCount),
			logger.Int("avgHeartRate", rec.AvgHeartRate),
		)
	}

	if n := len(flushable); n > 0 {
		metrics.RecordWindowFlushed(n)
	}
	return len(flushable)
}

// Stats reports current occupancy for operational visibility.
func (a *Aggregator) Stats(ctx context.Context) Stats {
	a.mu.Lock()
	defer a.mu.Unlock()

	s := Stats{ActiveSubjects: len(a.windows)}
	for _, subjectWindows := range a.windows {
		s.ActiveWindows += len(subjectWindows)
		for _, w := range subjectWindows {
			s.BufferedSamples += len(w.samples)
		}
	}

	metrics.UpdateActiveSubjects(s.ActiveSubjects)
	metrics.UpdateActiveWindows(s.ActiveWindows)
	metrics.UpdateBufferedSamples(s.BufferedSamples)

	return s
}

// summarize computes the aggregated record for a closed window.
//
// The standard deviation is the population form computed against the
// already-rounded average, matching the reference behavior exactly; using
// the unrounded mean would shift output values measurably.
func summarize(w *openWindow) model.WindowRecord {
	rec := model.WindowRecord{
		SubjectID:   w.subjectID,
		WindowStart: w.start,
		WindowEnd:   w.end,
		SampleCount: len(w.samples),
	}

	sum := 0
	rec.MinHeartRate = w.samples[0].HeartRate
	rec.MaxHeartRate = w.samples[0].HeartRate
	for _, s := range w.samples {
		sum += s.HeartRate
		if s.HeartRate < rec.MinHeartRate {
			rec.MinHeartRate = s.HeartRate
		}
		if s.HeartRate > rec.MaxHeartRate {
			rec.MaxHeartRate = s.HeartRate
		}
	}
	rec.AvgHeartRate = int(math.Round(float64(sum) / float64(len(w.samples))))

	var sqSum float64
	for _, s := range w.samples {
		diff := float64(s.HeartRate - rec.AvgHeartRate)
		sqSum += diff * diff
	}
	rec.StdDevHeartRate = math.Sqrt(sqSum / float64(len(w.samples)))

	rec.AvgRRInterval = averagePresent(w.samples, func(s model.HeartbeatSample) *float64 { return s.RRInterval })
	rec.AvgSDNN = averagePresent(w.samples, func(s model.HeartbeatSample) *float64 { return s.SDNN })
	rec.AvgRMSSD = averagePresent(w.samples, func(s model.HeartbeatSample) *float64 { return s.RMSSD })
	rec.AvgPNN50 = averagePresent(w.samples, func(s model.HeartbeatSample) *float64 { return s.PNN50 })

	return rec
}

// averagePresent averages a sub-metric over the samples that carry it.
// Returns nil when no sample in the window had the value.
func averagePresent(samples []model.HeartbeatSample, get func(model.HeartbeatSample) *float64) *float64 {
	var sum float64
	var n int
	for _, s := range samples {
		if v := get(s); v != nil {
			sum += *v
			n++
		}
	}
	if n == 0 {
		return nil
	}
	avg := sum / float64(n)
	return &avg
}
