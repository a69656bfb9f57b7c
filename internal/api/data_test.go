package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/lingua-dev/lingua/internal/analysis"
)

func seedConversation(t *testing.T, h *Handler) (userID, sessionID string) {
	t.Helper()
	ctx := context.Background()

	sess, err := h.repo.CreateSessionForUser(ctx, "ip-child-1")
	if err != nil {
		t.Fatalf("Failed to create session: %v", err)
	}
	if _, err := h.repo.AppendTurn(ctx, sess.SessionID, "I want drink", "Here you go!"); err != nil {
		t.Fatalf("Failed to append turn: %v", err)
	}
	if _, err := h.repo.AppendTurn(ctx, sess.SessionID, "the dogs played and ran", "Wow!"); err != nil {
		t.Fatalf("Failed to append turn: %v", err)
	}
	return "ip-child-1", sess.SessionID
}

func get(t *testing.T, r http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest("GET", path, nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestListUsers(t *testing.T) {
	h, _ := newTestHandler(t, &fakeDialogue{reply: "ok"})
	r := newTestRouter(h)
	userID, sessionID := seedConversation(t, h)

	w := get(t, r, "/api/users")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}

	var resp struct {
		Users []struct {
			UserID          string `json:"user_id"`
			SessionCount    int    `json:"session_count"`
			ActiveSessionID string `json:"active_session_id"`
		} `json:"users"`
	}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if len(resp.Users) != 1 {
		t.Fatalf("Expected 1 user, got %d", len(resp.Users))
	}
	if resp.Users[0].UserID != userID {
		t.Errorf("Expected user %s, got %s", userID, resp.Users[0].UserID)
	}
	if resp.Users[0].SessionCount != 1 {
		t.Errorf("Expected session count 1, got %d", resp.Users[0].SessionCount)
	}
	if resp.Users[0].ActiveSessionID != sessionID {
		t.Errorf("Expected active session %s, got %s", sessionID, resp.Users[0].ActiveSessionID)
	}
}

func TestGetUserDetail(t *testing.T) {
	h, _ := newTestHandler(t, &fakeDialogue{reply: "ok"})
	r := newTestRouter(h)
	userID, sessionID := seedConversation(t, h)

	w := get(t, r, "/api/users/"+userID)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		User struct {
			UserID string `json:"user_id"`
		} `json:"user"`
		Sessions []struct {
			SessionID  string `json:"session_id"`
			TurnCount  int    `json:"turn_count"`
			Transcript *struct {
				Turns []struct {
					Child string `json:"child"`
				} `json:"turns"`
			} `json:"transcript"`
		} `json:"sessions"`
	}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if resp.User.UserID != userID {
		t.Errorf("Expected user %s, got %s", userID, resp.User.UserID)
	}
	if len(resp.Sessions) != 1 || resp.Sessions[0].SessionID != sessionID {
		t.Fatalf("Expected session %s, got %+v", sessionID, resp.Sessions)
	}
	if resp.Sessions[0].TurnCount != 2 {
		t.Errorf("Expected turn count 2, got %d", resp.Sessions[0].TurnCount)
	}
	if resp.Sessions[0].Transcript == nil || len(resp.Sessions[0].Transcript.Turns) != 2 {
		t.Errorf("Expected inlined transcript with 2 turns, got %+v", resp.Sessions[0].Transcript)
	}
}

func TestGetUserNotFound(t *testing.T) {
	h, _ := newTestHandler(t, &fakeDialogue{reply: "ok"})
	r := newTestRouter(h)

	w := get(t, r, "/api/users/ip-nobody")
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", w.Code)
	}
}

func TestGetGrowth(t *testing.T) {
	h, _ := newTestHandler(t, &fakeDialogue{reply: "ok"})
	r := newTestRouter(h)
	userID, _ := seedConversation(t, h)

	w := get(t, r, "/api/users/"+userID+"/growth")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}

	var summary analysis.GrowthSummary
	if err := json.NewDecoder(w.Body).Decode(&summary); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if summary.ChildName != userID {
		t.Errorf("Expected child name %s, got %s", userID, summary.ChildName)
	}
	if len(summary.Sessions) != 1 {
		t.Fatalf("Expected 1 analyzed session, got %d", len(summary.Sessions))
	}
	if summary.Sessions[0].UtteranceCount != 2 {
		t.Errorf("Expected 2 utterances, got %d", summary.Sessions[0].UtteranceCount)
	}
	if summary.Sessions[0].TotalGrammarPoints != 4 {
		t.Errorf("Expected 4 grammar points, got %d", summary.Sessions[0].TotalGrammarPoints)
	}
}

func TestGetGrowthReport(t *testing.T) {
	h, _ := newTestHandler(t, &fakeDialogue{reply: "ok"})
	r := newTestRouter(h)
	userID, _ := seedConversation(t, h)

	w := get(t, r, "/api/users/"+userID+"/growth/report")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Errorf("Expected text/plain content type, got %q", ct)
	}
	body := w.Body.String()
	if !strings.Contains(body, "Growth Report for "+userID) {
		t.Errorf("Expected report header, got:\n%s", body)
	}
	if !strings.Contains(body, "Trends:") {
		t.Errorf("Expected trends section, got:\n%s", body)
	}
}

func TestGetGrowthReportNoSessions(t *testing.T) {
	h, _ := newTestHandler(t, &fakeDialogue{reply: "ok"})
	r := newTestRouter(h)

	w := get(t, r, "/api/users/ip-quiet-kid/growth/report")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	if got := w.Body.String(); got != "No sessions available for ip-quiet-kid." {
		t.Errorf("Unexpected empty report: %q", got)
	}
}

func TestGetTranscriptEndpoint(t *testing.T) {
	h, _ := newTestHandler(t, &fakeDialogue{reply: "ok"})
	r := newTestRouter(h)
	_, sessionID := seedConversation(t, h)

	w := get(t, r, "/api/sessions/"+sessionID)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}

	w = get(t, r, "/api/sessions/missing-session")
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404 for unknown session, got %d", w.Code)
	}
}

func TestSnapshotsRoundTrip(t *testing.T) {
	h, _ := newTestHandler(t, &fakeDialogue{reply: "ok"})
	r := newTestRouter(h)
	userID, sessionID := seedConversation(t, h)

	body := `{"metric": "core_word_diversity", "value": 5, "sessionId": "` + sessionID + `", "notes": "big week"}`
	req := httptest.NewRequest("POST", "/api/users/"+userID+"/snapshots", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d: %s", w.Code, w.Body.String())
	}

	w = get(t, r, "/api/users/"+userID+"/snapshots")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}

	var resp struct {
		Snapshots []struct {
			Metric    string  `json:"metric"`
			Value     float64 `json:"value"`
			SessionID string  `json:"session_id"`
			Notes     string  `json:"notes"`
		} `json:"snapshots"`
	}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if len(resp.Snapshots) != 1 {
		t.Fatalf("Expected 1 snapshot, got %d", len(resp.Snapshots))
	}
	snap := resp.Snapshots[0]
	if snap.Metric != "core_word_diversity" || snap.Value != 5 || snap.SessionID != sessionID {
		t.Errorf("Unexpected snapshot %+v", snap)
	}
}

func TestCreateSnapshotMissingMetric(t *testing.T) {
	h, _ := newTestHandler(t, &fakeDialogue{reply: "ok"})
	r := newTestRouter(h)
	userID, _ := seedConversation(t, h)

	req := httptest.NewRequest("POST", "/api/users/"+userID+"/snapshots", strings.NewReader(`{"value": 1}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", w.Code)
	}
}
