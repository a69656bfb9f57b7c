package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/lingua-dev/lingua/internal/analysis"
	"github.com/lingua-dev/lingua/internal/config"
	"github.com/lingua-dev/lingua/internal/illustration"
	"github.com/lingua-dev/lingua/internal/live"
	"github.com/lingua-dev/lingua/internal/session"
	"github.com/lingua-dev/lingua/internal/store"
)

// fakeDialogue returns a canned reply or error.
type fakeDialogue struct {
	reply string
	err   error
}

func (f *fakeDialogue) Reply(context.Context, string) (string, error) {
	return f.reply, f.err
}

func newTestHandler(t *testing.T, dlg *fakeDialogue) (*Handler, store.Repository) {
	t.Helper()
	repo, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to open test store: %v", err)
	}
	t.Cleanup(func() {
		if err := repo.Close(); err != nil {
			t.Errorf("Failed to close test store: %v", err)
		}
	})

	cfg := &config.Config{
		Port:                    "0",
		DBPath:                  "unused",
		SessionIdleTimeout:      5 * time.Minute,
		DialogueMaxAttempts:     3,
		IllustrationMaxSessions: 10,
		IllustrationTTL:         time.Minute,
	}

	h := NewHandler(
		repo,
		session.NewResolver(repo),
		dlg,
		analysis.NewAggregator(repo),
		illustration.NewContinuityStore(cfg.IllustrationMaxSessions, cfg.IllustrationTTL),
		live.NewHub(),
		cfg,
	)
	if dlg == nil {
		h.dialogue = nil
	}
	return h, repo
}

func newTestRouter(h *Handler) chi.Router {
	r := chi.NewRouter()
	h.RegisterHealth(r)
	h.RegisterConverse(r)
	h.RegisterData(r)
	h.RegisterLive(r)
	return r
}

func TestJSON(t *testing.T) {
	w := httptest.NewRecorder()
	data := map[string]string{"foo": "bar"}

	JSON(w, http.StatusOK, data)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}

	var got map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}

	if got["foo"] != "bar" {
		t.Errorf("Expected foo=bar, got %v", got["foo"])
	}
}

func TestErrorEnvelope(t *testing.T) {
	w := httptest.NewRecorder()
	Error(w, http.StatusNotFound, "nope")

	resp := w.Result()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", resp.StatusCode)
	}

	var got map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if got["error"] != "nope" {
		t.Errorf("Expected error=nope, got %v", got)
	}
}

func TestHealth(t *testing.T) {
	h, _ := newTestHandler(t, &fakeDialogue{reply: "hi"})
	r := newTestRouter(h)

	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}
}

var errDialogueDown = errors.New("upstream unavailable")
