// Package broadcast fans aggregated window records out to live WebSocket
// subscribers, one room per subject.
//
// Delivery is strictly best-effort: publishing to a subject with no
// subscribers is a no-op, a full client buffer drops that message, and a
// failed write drops the client. Nothing here ever propagates an error
// back into the flush path.
package broadcast

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/heartline/heartline/internal/domain/model"
	"github.com/heartline/heartline/pkg/clock"
	"github.com/heartline/heartline/pkg/logger"
	"github.com/heartline/heartline/pkg/metrics"
)

// Default hub configuration constants.
const (
	defaultSendBuffer   = 16
	defaultWriteTimeout = 5 * time.Second
	pingInterval        = 30 * time.Second
)

// envelope is the wire shape sent to subscribers.
type envelope struct {
	SubjectID string             `json:"subject_id"`
	Timestamp time.Time          `json:"timestamp"`
	Data      model.WindowRecord `json:"data"`
}

// subscriber is one attached WebSocket client.
type subscriber struct {
	id        string
	subjectID string
	conn      *websocket.Conn
	send      chan envelope
	done      chan struct{}
}

// Hub tracks per-subject rooms of subscribers.
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]map[string]*subscriber // subjectID -> subscriber id -> subscriber

	sendBuffer   int
	writeTimeout time.Duration
	clk          clock.Clock

	closed bool

	logger logger.Logger
}

// NewHub creates an empty hub with configuration options.
func NewHub(opts ...Option) *Hub {
	h := &Hub{
		rooms:        make(map[string]map[string]*subscriber),
		sendBuffer:   defaultSendBuffer,
		writeTimeout: defaultWriteTimeout,
		clk:          clock.System(),
		logger:       logger.Get().Named("broadcast"),
	}

	for _, opt := range opts {
		opt(h)
	}

	return h
}

// Publish sends rec to every subscriber of rec.SubjectID. Fire and forget:
// no subscribers is a no-op, a subscriber whose buffer is full misses this
// record.
func (h *Hub) Publish(ctx context.Context, rec model.WindowRecord) {
	env := envelope{
		SubjectID: rec.SubjectID,
		Timestamp: h.clk.Now().UTC(),
		Data:      rec,
	}

	h.mu.RLock()
	room := h.rooms[rec.SubjectID]
	subs := make([]*subscriber, 0, len(room))
	for _, sub := range room {
		subs = append(subs, sub)
	}
	h.mu.RUnlock()

	for _, sub := range subs {
		select {
		case sub.send <- env:
		default:
			// Slow consumer; live display is best-effort.
			metrics.RecordBroadcastError()
			h.logger.Debug(ctx, "dropped record for slow subscriber",
				logger.String("subscriberID", sub.id),
				logger.String("subjectID", sub.subjectID),
			)
		}
	}

	if len(subs) > 0 {
		metrics.RecordRecordPublished()
	}
}

// Attach registers conn as a subscriber of subjectID and blocks until the
// connection closes or ctx is canceled. The caller owns the upgrade; the
// hub owns the connection from here on.
func (h *Hub) Attach(ctx context.Context, subjectID string, conn *websocket.Conn) {
	sub := &subscriber{
		id:        uuid.NewString(),
		subjectID: subjectID,
		conn:      conn,
		send:      make(chan envelope, h.sendBuffer),
		done:      make(chan struct{}),
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		_ = conn.Close()
		return
	}
	room, ok := h.rooms[subjectID]
	if !ok {
		room = make(map[string]*subscriber)
		h.rooms[subjectID] = room
	}
	room[sub.id] = sub
	h.mu.Unlock()

	h.logger.Info(ctx, "subscriber joined",
		logger.String("subscriberID", sub.id),
		logger.String("subjectID", subjectID),
	)
	metrics.UpdateLiveSubscribers(h.SubscriberCount())

	go h.writePump(ctx, sub)

	// Read loop: inbound frames are discarded, but reading is what detects
	// a peer disconnect.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug(ctx, "subscriber read failed",
					logger.String("subscriberID", sub.id),
					logger.Error(err),
				)
			}
			break
		}
	}

	h.detach(ctx, sub)
}

func (h *Hub) writePump(ctx context.Context, sub *subscriber) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case env := <-sub.send:
			_ = sub.conn.SetWriteDeadline(time.Now().Add(h.writeTimeout))
			if err := sub.conn.WriteJSON(env); err != nil {
				metrics.RecordBroadcastError()
				h.logger.Debug(ctx, "subscriber write failed",
					logger.String("subscriberID", sub.id),
					logger.Error(err),
				)
				_ = sub.conn.Close()
				return
			}
		case <-ticker.C:
			_ = sub.conn.SetWriteDeadline(time.Now().Add(h.writeTimeout))
			if err := sub.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				_ = sub.conn.Close()
				return
			}
		case <-sub.done:
			return
		case <-ctx.Done():
			_ = sub.conn.Close()
			return
		}
	}
}

func (h *Hub) detach(ctx context.Context, sub *subscriber) {
	h.mu.Lock()
	if room, ok := h.rooms[sub.subjectID]; ok {
		delete(room, sub.id)
		if len(room) == 0 {
			delete(h.rooms, sub.subjectID)
		}
	}
	h.mu.Unlock()

	close(sub.done)
	_ = sub.conn.Close()

	h.logger.Info(ctx, "subscriber left",
		logger.String("subscriberID", sub.id),
		logger.String("subjectID", sub.subjectID),
	)
	metrics.UpdateLiveSubscribers(h.SubscriberCount())
}

// SubscriberCount returns the number of attached subscribers across all
// subjects.
func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, room := range h.rooms {
		n += len(room)
	}
	return n
}

// Close disconnects every subscriber and rejects future attachments.
func (h *Hub) Close() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	var subs []*subscriber
	for _, room := range h.rooms {
		for _, sub := range room {
			subs = append(subs, sub)
		}
	}
	h.rooms = make(map[string]map[string]*subscriber)
	h.mu.Unlock()

	for _, sub := range subs {
		_ = sub.conn.Close()
	}
	metrics.UpdateLiveSubscribers(0)
	return nil
}
