// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/heartline/heartline/internal/domain/model"
)

// Limits for the windows history endpoint.
const (
	defaultWindowsLimit = 50
	maxWindowsLimit     = 500
)

// WindowsDependencies defines the interface for window history dependencies.
type WindowsDependencies interface {
	RecentWindows(ctx context.Context, subjectID string, limit int) ([]model.WindowRecord, error)
}

// WindowsHandler handles window history requests.
type WindowsHandler struct {
	deps WindowsDependencies
}

// NewWindowsHandler creates a new windows handler.
func NewWindowsHandler(deps WindowsDependencies) *WindowsHandler {
	return &WindowsHandler{deps: deps}
}

// HandleGetWindows handles GET /windows?subject_id=&limit= requests and
// returns the subject's persisted records, newest first.
func (h *WindowsHandler) HandleGetWindows(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_windows"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}

	subjectID := strings.TrimSpace(r.URL.Query().Get("subject_id"))
	if subjectID == "" {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrMissingSubject))
		return
	}

	limit := defaultWindowsLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
			return
		}
		limit = n
	}
	if limit > maxWindowsLimit {
		limit = maxWindowsLimit
	}

	records, err := h.deps.RecentWindows(r.Context(), subjectID, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", WrapKind(op, ErrQuery, err))
		return
	}
	if records == nil {
		records = []model.WindowRecord{}
	}
	writeJSON(w, http.StatusOK, records)
}
