// Package live fans appended transcript turns out to caregiver viewers over
// WebSocket, so a conversation can be observed as it happens.
package live

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/coder/websocket"
)

// TurnEvent is the wire form of one appended transcript turn.
type TurnEvent struct {
	SessionID string    `json:"session_id"`
	TurnIndex int       `json:"turn_index"`
	Child     string    `json:"child,omitempty"`
	Assistant string    `json:"assistant,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Conn is the subset of a WebSocket connection the hub needs. Narrowed so
// tests can observe broadcasts without a network.
type Conn interface {
	Write(ctx context.Context, typ websocket.MessageType, p []byte) error
	Close(code websocket.StatusCode, reason string) error
}

// Hub manages active viewer connections per user.
type Hub struct {
	mu      sync.RWMutex
	viewers map[string]map[Conn]struct{}
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{viewers: make(map[string]map[Conn]struct{})}
}

// Register adds a viewer connection for a user.
func (h *Hub) Register(userID string, conn Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, exists := h.viewers[userID]; !exists {
		h.viewers[userID] = make(map[Conn]struct{})
	}
	h.viewers[userID][conn] = struct{}{}
	slog.Info("Live viewer registered", "user_id", userID, "viewers", len(h.viewers[userID]))
}

// Unregister removes a viewer connection for a user.
func (h *Hub) Unregister(userID string, conn Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if conns, ok := h.viewers[userID]; ok {
		if _, exists := conns[conn]; exists {
			delete(conns, conn)
			if len(conns) == 0 {
				delete(h.viewers, userID)
			}
			slog.Info("Live viewer unregistered", "user_id", userID)
		}
	}
}

// ViewerCount reports how many viewers a user currently has.
func (h *Hub) ViewerCount(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.viewers[userID])
}

// Broadcast sends the turn event to every viewer of the user. Connections
// that fail to accept the write are dropped.
func (h *Hub) Broadcast(ctx context.Context, userID string, event TurnEvent) {
	payload, err := json.Marshal(event)
	if err != nil {
		slog.Error("Failed to encode turn event", "error", err, "user_id", userID)
		return
	}

	h.mu.RLock()
	conns := make([]Conn, 0, len(h.viewers[userID]))
	for conn := range h.viewers[userID] {
		conns = append(conns, conn)
	}
	h.mu.RUnlock()

	for _, conn := range conns {
		if err := conn.Write(ctx, websocket.MessageText, payload); err != nil {
			slog.Warn("Dropping live viewer after failed write", "user_id", userID, "error", err)
			h.Unregister(userID, conn)
			_ = conn.Close(websocket.StatusNormalClosure, "write failed")
		}
	}
}

// CloseAll terminates every viewer connection, typically on shutdown.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for userID, conns := range h.viewers {
		for conn := range conns {
			_ = conn.Close(websocket.StatusGoingAway, "server shutting down")
		}
		delete(h.viewers, userID)
	}
}
