package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/lingua-dev/lingua/internal/identity"
	"github.com/lingua-dev/lingua/internal/illustration"
	"github.com/lingua-dev/lingua/internal/live"
	"github.com/lingua-dev/lingua/internal/store"
)

// FallbackReply is sent when the dialogue service is unavailable or errors
// out. The child's turn is still persisted.
const FallbackReply = "I'm having trouble connecting right now. Can you say that again?"

// ConverseRequest is the body of POST /api/converse.
type ConverseRequest struct {
	Message      string `json:"message"`
	SessionID    string `json:"sessionId"`
	ResetSession bool   `json:"resetSession"`
	SceneAction  string `json:"sceneAction,omitempty"`
}

// IllustrationDirective tells the client-side renderer how to advance the
// story canvas for this exchange.
type IllustrationDirective struct {
	Action string `json:"action"`
	Prompt string `json:"prompt"`
}

// ConverseResponse is the reply envelope for POST /api/converse.
type ConverseResponse struct {
	Reply        string                `json:"reply"`
	SessionID    string                `json:"sessionId"`
	UserID       string                `json:"userId"`
	Illustration IllustrationDirective `json:"illustration"`
}

// RegisterConverse registers the conversation route.
func (h *Handler) RegisterConverse(r chi.Router) {
	r.Post("/api/converse", h.Converse)
}

// Converse accepts a child utterance, resolves the session, obtains an
// assistant reply, persists the exchange, and fans it out to live viewers.
func (h *Handler) Converse(w http.ResponseWriter, r *http.Request) {
	var req ConverseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	message := strings.TrimSpace(req.Message)
	if message == "" {
		Error(w, http.StatusBadRequest, "message is required")
		return
	}

	ctx := r.Context()
	userID := identity.FromRequest(r)

	sess, err := h.resolver.Resolve(ctx, userID, req.SessionID, req.ResetSession, h.cfg.SessionIdleTimeout)
	if err != nil {
		slog.Error("Failed to resolve session", "error", err, "user_id", userID)
		Error(w, http.StatusInternalServerError, "failed to resolve session")
		return
	}

	reply := FallbackReply
	if h.dialogue != nil {
		generated, err := h.dialogue.Reply(ctx, message)
		if err != nil {
			slog.Warn("Dialogue service failed, using fallback reply",
				"error", err,
				"session_id", sess.SessionID)
		} else if trimmed := strings.TrimSpace(generated); trimmed != "" {
			reply = trimmed
		}
	}

	turn, err := h.repo.AppendTurn(ctx, sess.SessionID, message, reply)
	if err != nil {
		if errors.Is(err, store.ErrInvalidSessionID) {
			Error(w, http.StatusBadRequest, "invalid session")
			return
		}
		slog.Error("Failed to persist turn", "error", err, "session_id", sess.SessionID)
		Error(w, http.StatusInternalServerError, "failed to persist conversation turn")
		return
	}

	// Advance the illustration scene: decide update-vs-expand against the
	// prompt history, compose the renderer prompt, then record this exchange.
	h.continuity.EnsureSession(sess.SessionID, req.ResetSession)
	scene, _ := h.continuity.Snapshot(sess.SessionID)
	action := illustration.ResolveAction(scene.History, message, req.SceneAction)
	h.continuity.RecordExchange(sess.SessionID, message, reply)
	h.continuity.RecordPrompt(sess.SessionID, message)
	scene, _ = h.continuity.Snapshot(sess.SessionID)
	scenePrompt := illustration.BuildPrompt(scene, message, action)

	h.hub.Broadcast(ctx, sess.UserID, live.TurnEvent{
		SessionID: turn.SessionID,
		TurnIndex: turn.TurnIndex,
		Child:     turn.Child,
		Assistant: turn.Assistant,
		Timestamp: turn.Timestamp,
	})

	JSON(w, http.StatusOK, ConverseResponse{
		Reply:     reply,
		SessionID: sess.SessionID,
		UserID:    sess.UserID,
		Illustration: IllustrationDirective{
			Action: action,
			Prompt: scenePrompt,
		},
	})
}
