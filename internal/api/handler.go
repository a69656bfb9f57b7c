// Package api provides HTTP handlers for the Lingua API.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/lingua-dev/lingua/internal/analysis"
	"github.com/lingua-dev/lingua/internal/config"
	"github.com/lingua-dev/lingua/internal/dialogue"
	"github.com/lingua-dev/lingua/internal/illustration"
	"github.com/lingua-dev/lingua/internal/live"
	"github.com/lingua-dev/lingua/internal/session"
	"github.com/lingua-dev/lingua/internal/store"
)

// Handler provides common handler utilities and dependencies.
type Handler struct {
	repo       store.Repository
	resolver   *session.Resolver
	dialogue   dialogue.Service
	aggregator *analysis.Aggregator
	continuity *illustration.ContinuityStore
	hub        *live.Hub
	cfg        *config.Config
}

// NewHandler creates a new Handler with common dependencies. The dialogue
// service may be nil; conversation then falls back to a canned reply while
// everything else keeps working.
func NewHandler(
	repo store.Repository,
	resolver *session.Resolver,
	dlg dialogue.Service,
	aggregator *analysis.Aggregator,
	continuity *illustration.ContinuityStore,
	hub *live.Hub,
	cfg *config.Config,
) *Handler {
	return &Handler{
		repo:       repo,
		resolver:   resolver,
		dialogue:   dlg,
		aggregator: aggregator,
		continuity: continuity,
		hub:        hub,
		cfg:        cfg,
	}
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}
