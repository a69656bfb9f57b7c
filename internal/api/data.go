package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/lingua-dev/lingua/internal/analysis"
	"github.com/lingua-dev/lingua/internal/domain"
	"github.com/lingua-dev/lingua/internal/identity"
	"github.com/lingua-dev/lingua/internal/store"
)

// SnapshotRequest is the body of POST /api/users/{userID}/snapshots.
type SnapshotRequest struct {
	Metric    string  `json:"metric"`
	Value     float64 `json:"value"`
	SessionID string  `json:"sessionId,omitempty"`
	Notes     string  `json:"notes,omitempty"`
}

// RegisterData registers the caregiver-facing read and snapshot routes.
func (h *Handler) RegisterData(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Get("/users", h.ListUsers)
		r.Route("/users/{userID}", func(r chi.Router) {
			r.Get("/", h.GetUser)
			r.Get("/growth", h.GetGrowth)
			r.Get("/growth/report", h.GetGrowthReport)
			r.Post("/snapshots", h.CreateSnapshot)
			r.Get("/snapshots", h.ListSnapshots)
		})
		r.Get("/sessions/{sessionID}", h.GetTranscript)
	})
}

// UserOverview is one row of the user directory.
type UserOverview struct {
	*domain.User
	SessionCount    int    `json:"session_count"`
	ActiveSessionID string `json:"active_session_id,omitempty"`
}

// ListUsers returns every known user with their session count and current
// active session, if any.
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	users, err := h.repo.ListUsers(ctx)
	if err != nil {
		slog.Error("Failed to list users", "error", err)
		Error(w, http.StatusInternalServerError, "failed to list users")
		return
	}

	overviews := make([]UserOverview, 0, len(users))
	for _, user := range users {
		overview := UserOverview{User: user}
		progress, err := h.repo.GetUserProgress(ctx, user.UserID)
		if err != nil {
			slog.Error("Failed to get user progress", "error", err, "user_id", user.UserID)
			Error(w, http.StatusInternalServerError, "failed to list users")
			return
		}
		overview.SessionCount = len(progress.Sessions)
		for _, sess := range progress.Sessions {
			if sess.Active {
				overview.ActiveSessionID = sess.SessionID
				break
			}
		}
		overviews = append(overviews, overview)
	}

	JSON(w, http.StatusOK, map[string]interface{}{"users": overviews})
}

// GetUser returns one user with their per-session progress.
func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	userID := identity.SanitizeUserID(chi.URLParam(r, "userID"))
	if userID == "" {
		Error(w, http.StatusBadRequest, "invalid user id")
		return
	}

	ctx := r.Context()
	user, err := h.repo.GetUserRecord(ctx, userID)
	if err != nil {
		slog.Error("Failed to get user", "error", err, "user_id", userID)
		Error(w, http.StatusInternalServerError, "failed to get user")
		return
	}
	if user == nil {
		Error(w, http.StatusNotFound, "user not found")
		return
	}

	progress, err := h.repo.GetUserProgress(ctx, userID)
	if err != nil {
		slog.Error("Failed to get user progress", "error", err, "user_id", userID)
		Error(w, http.StatusInternalServerError, "failed to get user progress")
		return
	}

	// Inline each session's transcript. A session whose transcript cannot be
	// read is reported without one rather than failing the whole detail view.
	type sessionDetail struct {
		domain.SessionProgress
		Transcript *domain.Transcript `json:"transcript,omitempty"`
	}
	details := make([]sessionDetail, 0, len(progress.Sessions))
	for _, sess := range progress.Sessions {
		detail := sessionDetail{SessionProgress: sess}
		transcript, err := h.repo.GetTranscript(ctx, sess.SessionID)
		if err != nil {
			slog.Warn("Failed to get transcript for user detail",
				"error", err, "session_id", sess.SessionID)
		} else {
			detail.Transcript = transcript
		}
		details = append(details, detail)
	}

	snapshots, err := h.repo.ListSnapshots(ctx, userID)
	if err != nil {
		slog.Error("Failed to list snapshots", "error", err, "user_id", userID)
		Error(w, http.StatusInternalServerError, "failed to get user detail")
		return
	}

	JSON(w, http.StatusOK, map[string]interface{}{
		"user":      user,
		"sessions":  details,
		"snapshots": snapshots,
	})
}

// GetGrowth returns the analyzed growth summary as JSON.
func (h *Handler) GetGrowth(w http.ResponseWriter, r *http.Request) {
	summary, ok := h.buildGrowth(w, r)
	if !ok {
		return
	}
	JSON(w, http.StatusOK, summary)
}

// GetGrowthReport returns the growth summary rendered as plain text.
func (h *Handler) GetGrowthReport(w http.ResponseWriter, r *http.Request) {
	summary, ok := h.buildGrowth(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(analysis.RenderReport(summary)))
}

func (h *Handler) buildGrowth(w http.ResponseWriter, r *http.Request) (*analysis.GrowthSummary, bool) {
	userID := chi.URLParam(r, "userID")
	summary, err := h.aggregator.BuildGrowthSummary(r.Context(), userID)
	if err != nil {
		if errors.Is(err, store.ErrInvalidUserID) {
			Error(w, http.StatusBadRequest, "invalid user id")
			return nil, false
		}
		slog.Error("Failed to build growth summary", "error", err, "user_id", userID)
		Error(w, http.StatusInternalServerError, "failed to build growth summary")
		return nil, false
	}
	return summary, true
}

// GetTranscript returns a session with its ordered turns and messages.
func (h *Handler) GetTranscript(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	transcript, err := h.repo.GetTranscript(r.Context(), sessionID)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrInvalidSessionID):
			Error(w, http.StatusBadRequest, "invalid session id")
		case errors.Is(err, store.ErrSessionNotFound):
			Error(w, http.StatusNotFound, "session not found")
		default:
			slog.Error("Failed to get transcript", "error", err, "session_id", sessionID)
			Error(w, http.StatusInternalServerError, "failed to get transcript")
		}
		return
	}
	JSON(w, http.StatusOK, transcript)
}

// CreateSnapshot records a caregiver-triggered progress snapshot.
func (h *Handler) CreateSnapshot(w http.ResponseWriter, r *http.Request) {
	userID := identity.SanitizeUserID(chi.URLParam(r, "userID"))
	if userID == "" {
		Error(w, http.StatusBadRequest, "invalid user id")
		return
	}

	var req SnapshotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Metric) == "" {
		Error(w, http.StatusBadRequest, "metric is required")
		return
	}

	snapshot := &domain.ProgressSnapshot{
		UserID:    userID,
		SessionID: identity.SanitizeSessionID(req.SessionID),
		Metric:    strings.TrimSpace(req.Metric),
		Value:     req.Value,
		Notes:     strings.TrimSpace(req.Notes),
		CreatedAt: time.Now(),
	}

	if err := h.repo.RecordSnapshot(r.Context(), snapshot); err != nil {
		slog.Error("Failed to record snapshot", "error", err, "user_id", userID)
		Error(w, http.StatusInternalServerError, "failed to record snapshot")
		return
	}

	JSON(w, http.StatusCreated, snapshot)
}

// ListSnapshots returns a user's snapshots, newest first.
func (h *Handler) ListSnapshots(w http.ResponseWriter, r *http.Request) {
	userID := identity.SanitizeUserID(chi.URLParam(r, "userID"))
	if userID == "" {
		Error(w, http.StatusBadRequest, "invalid user id")
		return
	}

	snapshots, err := h.repo.ListSnapshots(r.Context(), userID)
	if err != nil {
		slog.Error("Failed to list snapshots", "error", err, "user_id", userID)
		Error(w, http.StatusInternalServerError, "failed to list snapshots")
		return
	}
	JSON(w, http.StatusOK, map[string]interface{}{"snapshots": snapshots})
}
