// Package model contains domain models passed between layers.
package model

import "time"

// HeartbeatSample is a single raw reading from a subject's device stream.
// It lives in memory only; raw samples are never persisted individually.
type HeartbeatSample struct {
	SubjectID string    // owning person/device stream
	HeartRate int       // beats per minute; presence is enforced at ingress
	Timestamp time.Time // time recorded at the source, not receipt time

	// Optional physiological sub-metrics. nil means the device did not
	// report the value for this sample.
	RRInterval *float64
	SDNN       *float64
	RMSSD      *float64
	PNN50      *float64
}

// WindowRecord is the aggregated summary of one closed window. It is built
// once at flush time and never mutated afterwards; the persisted stream of
// records is append-only.
type WindowRecord struct {
	SubjectID   string    `json:"subject_id"`
	WindowStart time.Time `json:"window_start"`
	WindowEnd   time.Time `json:"window_end"`
	SampleCount int       `json:"sample_count"`

	AvgHeartRate    int     `json:"avg_heart_rate"`
	MinHeartRate    int     `json:"min_heart_rate"`
	MaxHeartRate    int     `json:"max_heart_rate"`
	StdDevHeartRate float64 `json:"std_dev_heart_rate"`

	// Averaged only over samples where the sub-metric was present;
	// nil (omitted on the wire) when no sample in the window carried it.
	AvgRRInterval *float64 `json:"avg_rr_interval,omitempty"`
	AvgSDNN       *float64 `json:"avg_sdnn,omitempty"`
	AvgRMSSD      *float64 `json:"avg_rmssd,omitempty"`
	AvgPNN50      *float64 `json:"avg_pnn50,omitempty"`
}
