package infra

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/attaboy/adrewards/internal/domain"
)

// EventSessionResult is pushed to a user's room when a watch finishes.
const EventSessionResult = "ads.session.result"

// WSHub tracks live WebSocket connections per room and fans messages out to
// them. Rooms are user-scoped ("user:{id}").
type WSHub struct {
	mu     sync.RWMutex
	rooms  map[string]map[string]*WSConn // room -> connID -> conn
	logger *slog.Logger
}

// WSConn is one client connection. The transport drains Send.
type WSConn struct {
	ID     string
	UserID string
	Send   chan []byte
}

// WSMessage is the payload sent over WebSocket.
type WSMessage struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// NewWSHub creates a new WebSocket hub.
func NewWSHub(logger *slog.Logger) *WSHub {
	return &WSHub{
		rooms:  make(map[string]map[string]*WSConn),
		logger: logger,
	}
}

// UserRoom returns the room name for a user.
func UserRoom(userID string) string {
	return "user:" + userID
}

// Join adds a connection to a room.
func (h *WSHub) Join(room string, conn *WSConn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.rooms[room] == nil {
		h.rooms[room] = make(map[string]*WSConn)
	}
	h.rooms[room][conn.ID] = conn
}

// Leave removes a connection from a room and closes its Send channel.
// Leaving twice is a no-op.
func (h *WSHub) Leave(room string, connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	conns, ok := h.rooms[room]
	if !ok {
		return
	}
	if conn, ok := conns[connID]; ok {
		close(conn.Send)
		delete(conns, connID)
	}
	if len(conns) == 0 {
		delete(h.rooms, room)
	}
}

// Publish sends a message to all connections in a room. A connection whose
// buffer is full misses the message.
func (h *WSHub) Publish(room string, event string, data any) {
	payload, err := json.Marshal(WSMessage{Event: event, Data: data})
	if err != nil {
		h.logger.Error("ws marshal error", "error", err, "room", room, "event", event)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, conn := range h.rooms[room] {
		select {
		case conn.Send <- payload:
		default:
			h.logger.Warn("ws send buffer full", "conn_id", conn.ID, "room", room)
		}
	}
}

// NotifyResult pushes a finished watch to the user's connections.
func (h *WSHub) NotifyResult(userID string, result domain.WatchResult) {
	h.Publish(UserRoom(userID), EventSessionResult, result)
}

// ConnectionCount returns the total number of active connections.
func (h *WSHub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	count := 0
	for _, conns := range h.rooms {
		count += len(conns)
	}
	return count
}

// RoomCount returns the number of active rooms.
func (h *WSHub) RoomCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms)
}

// Shutdown closes every connection's Send channel.
func (h *WSHub) Shutdown(_ context.Context) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for room, conns := range h.rooms {
		for _, conn := range conns {
			close(conn.Send)
		}
		delete(h.rooms, room)
	}
}
