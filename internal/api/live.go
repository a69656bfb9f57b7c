package api

import (
	"log/slog"
	"net/http"

	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"

	"github.com/lingua-dev/lingua/internal/identity"
)

// RegisterLive registers the live-viewer WebSocket route.
func (h *Handler) RegisterLive(r chi.Router) {
	r.Get("/api/live", h.Live)
}

// Live upgrades the connection and streams appended turns for the requested
// user until the viewer disconnects. The user defaults to the caller's own
// derived identity.
func (h *Handler) Live(w http.ResponseWriter, r *http.Request) {
	userID := identity.SanitizeUserID(r.URL.Query().Get("userId"))
	if userID == "" {
		userID = identity.FromRequest(r)
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Error("Failed to accept WebSocket", "error", err, "user_id", userID)
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "viewer disconnected"); closeErr != nil {
			slog.Debug("Failed to close websocket", "error", closeErr, "user_id", userID)
		}
	}()

	h.hub.Register(userID, ws)
	defer h.hub.Unregister(userID, ws)

	// Drain inbound frames. Viewers only receive; the read loop exists to
	// notice disconnects and to answer control frames.
	ctx := r.Context()
	for {
		if _, _, err := ws.Read(ctx); err != nil {
			slog.Debug("Live viewer read loop ended", "error", err, "user_id", userID)
			return
		}
	}
}
