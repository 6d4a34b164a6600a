// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/heartline/heartline/pkg/logger"
)

const liveHandshakeTimeout = 10 * time.Second

// LiveHandler upgrades GET /live requests to WebSocket subscriptions.
type LiveHandler struct {
	deps     Dependencies
	upgrader websocket.Upgrader
}

// NewLiveHandler creates a new live subscription handler.
func NewLiveHandler(deps Dependencies) *LiveHandler {
	return &LiveHandler{
		deps: deps,
		upgrader: websocket.Upgrader{
			HandshakeTimeout: liveHandshakeTimeout,
			CheckOrigin:      func(r *http.Request) bool { return true },
		},
	}
}

// HandleLive handles GET /live?subject_id= requests. The connection joins
// the subject's room and receives every finalized window for that subject
// until the peer disconnects.
func (h *LiveHandler) HandleLive(w http.ResponseWriter, r *http.Request) {
	const op = "api.live"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	subjectID := strings.TrimSpace(r.URL.Query().Get("subject_id"))
	if subjectID == "" {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrMissingSubject))
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote an HTTP error to the client.
		logger.Get().Warn(r.Context(), "websocket upgrade failed",
			logger.String("subjectID", subjectID),
			logger.Error(err),
		)
		return
	}

	// Attach blocks for the lifetime of the subscription.
	h.deps.Hub().Attach(r.Context(), subjectID, conn)
}
