// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/heartline/heartline/internal/adapters/broadcast"
	"github.com/heartline/heartline/internal/domain/model"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	// AddSample pushes a validated heartbeat reading into the aggregator.
	AddSample(ctx context.Context, sample model.HeartbeatSample) error

	// Hub exposes the broadcast hub for live WebSocket subscriptions.
	Hub() *broadcast.Hub

	// RecentWindows reads back a subject's persisted records, newest first.
	RecentWindows(ctx context.Context, subjectID string, limit int) ([]model.WindowRecord, error)
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler  *HealthHandler
	statsHandler   *StatsHandler
	samplesHandler *SamplesHandler
	windowsHandler *WindowsHandler
	liveHandler    *LiveHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider) *Server {
	return &Server{
		healthHandler:  NewHealthHandler(),
		statsHandler:   NewStatsHandler(statsProvider),
		samplesHandler: NewSamplesHandler(deps),
		windowsHandler: NewWindowsHandler(deps),
		liveHandler:    NewLiveHandler(deps),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(ctx context.Context, mux *http.ServeMux) {
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/samples", MetricsMiddleware(s.samplesHandler.HandlePostSample, "samples"))
	mux.HandleFunc("/windows", MetricsMiddleware(s.windowsHandler.HandleGetWindows, "windows"))
	mux.HandleFunc("/live", s.liveHandler.HandleLive)
}

// sampleRequest mirrors the JSON schema for POST /samples.
type sampleRequest struct {
	SubjectID  string   `json:"subject_id"`
	HeartRate  int      `json:"heart_rate"`
	TS         string   `json:"timestamp,omitempty"`
	RRInterval *float64 `json:"rr_interval,omitempty"`
	SDNN       *float64 `json:"sdnn,omitempty"`
	RMSSD      *float64 `json:"rmssd,omitempty"`
	PNN50      *float64 `json:"pnn50,omitempty"`
}

func (s sampleRequest) validate() error {
	switch {
	case strings.TrimSpace(s.SubjectID) == "":
		return errors.New("missing subject_id")
	case s.HeartRate == 0:
		return errors.New("missing heart_rate")
	}
	if s.TS != "" {
		if _, err := time.Parse(time.RFC3339, s.TS); err != nil {
			return errors.New("invalid timestamp; must be RFC3339")
		}
	}
	return nil
}

// toSample converts the wire shape to the domain shape. An absent timestamp
// stays zero so the service can stamp it with its own clock.
func (s sampleRequest) toSample() model.HeartbeatSample {
	sample := model.HeartbeatSample{
		SubjectID:  s.SubjectID,
		HeartRate:  s.HeartRate,
		RRInterval: s.RRInterval,
		SDNN:       s.SDNN,
		RMSSD:      s.RMSSD,
		PNN50:      s.PNN50,
	}
	if s.TS != "" {
		ts, err := time.Parse(time.RFC3339, s.TS)
		if err == nil {
			sample.Timestamp = ts
		}
	}
	return sample
}

type ackResponse struct {
	Status string `json:"status"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}
