package teststream

import "time"

// Config holds configuration for the heartbeat stream test
type Config struct {
	BaseURL        string        // Base URL of the service
	Subjects       int           // Number of concurrent subjects to simulate
	Duration       time.Duration // How long to stream samples
	SampleInterval time.Duration // Interval between samples per subject
	Workers        int           // Number of concurrent submission workers
	Timeout        time.Duration // HTTP request timeout
	LogFile        string        // Log file for test output
	Verbose        bool          // Enable verbose logging
}

// Sample represents a heartbeat reading to be submitted
type Sample struct {
	SubjectID  string   `json:"subject_id"`
	HeartRate  int      `json:"heart_rate"`
	TS         string   `json:"timestamp,omitempty"`
	RRInterval *float64 `json:"rr_interval,omitempty"`
	SDNN       *float64 `json:"sdnn,omitempty"`
	RMSSD      *float64 `json:"rmssd,omitempty"`
	PNN50      *float64 `json:"pnn50,omitempty"`
}

// AckResponse represents the response from sample submission
type AckResponse struct {
	Status string `json:"status"`
}

// Stats holds test statistics
type Stats struct {
	SamplesGenerated int
	SamplesSubmitted int
	SamplesAccepted  int
	SamplesRejected  int
	SamplesFailed    int
	StartTime        time.Time
	EndTime          time.Time
	Duration         time.Duration
}
