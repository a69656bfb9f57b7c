package illustration

import (
	"fmt"
	"strings"
	"testing"
	"time"
)

func TestEnsureSessionGeneratesID(t *testing.T) {
	s := NewContinuityStore(10, time.Minute)

	id := s.EnsureSession("", false)
	if id == "" {
		t.Fatal("Expected a generated session ID")
	}
	if s.Len() != 1 {
		t.Errorf("Expected 1 session, got %d", s.Len())
	}

	again := s.EnsureSession(id, false)
	if again != id {
		t.Errorf("Expected same ID %s, got %s", id, again)
	}
	if s.Len() != 1 {
		t.Errorf("Expected 1 session after reuse, got %d", s.Len())
	}
}

func TestEnsureSessionReset(t *testing.T) {
	s := NewContinuityStore(10, time.Minute)

	id := s.EnsureSession("story-1", false)
	s.RecordPrompt(id, "a red dragon")

	s.EnsureSession(id, true)
	scene, ok := s.Snapshot(id)
	if !ok {
		t.Fatal("Expected session to exist after reset")
	}
	if len(scene.History) != 0 {
		t.Errorf("Expected empty history after reset, got %v", scene.History)
	}
}

func TestRollingConversationWindow(t *testing.T) {
	s := NewContinuityStore(10, time.Minute)
	id := s.EnsureSession("story-1", false)

	for i := 0; i < maxExchanges+5; i++ {
		s.RecordExchange(id, fmt.Sprintf("child %d", i), fmt.Sprintf("reply %d", i))
	}

	scene, _ := s.Snapshot(id)
	if len(scene.Conversation) != maxExchanges {
		t.Fatalf("Expected conversation capped at %d, got %d", maxExchanges, len(scene.Conversation))
	}
	if scene.Conversation[0].Child != "child 5" {
		t.Errorf("Expected oldest retained exchange to be child 5, got %q", scene.Conversation[0].Child)
	}
	if scene.LastChild != fmt.Sprintf("child %d", maxExchanges+4) {
		t.Errorf("Unexpected last child %q", scene.LastChild)
	}
}

func TestTTLEviction(t *testing.T) {
	now := time.Now()
	clock := &now
	s := NewContinuityStoreWithClock(10, time.Minute, func() time.Time { return *clock })

	s.EnsureSession("story-old", false)

	*clock = now.Add(2 * time.Minute)
	s.EnsureSession("story-new", false)

	if _, ok := s.Snapshot("story-old"); ok {
		t.Error("Expected expired session evicted")
	}
	if _, ok := s.Snapshot("story-new"); !ok {
		t.Error("Expected fresh session retained")
	}
}

func TestSizeCapEvictsOldest(t *testing.T) {
	now := time.Now()
	clock := &now
	s := NewContinuityStoreWithClock(3, time.Hour, func() time.Time { return *clock })

	for i := 0; i < 4; i++ {
		*clock = now.Add(time.Duration(i) * time.Second)
		s.EnsureSession(fmt.Sprintf("story-%d", i), false)
	}
	// Eviction happens on the next access.
	*clock = now.Add(10 * time.Second)
	s.EnsureSession("story-4", false)

	if _, ok := s.Snapshot("story-0"); ok {
		t.Error("Expected oldest session evicted by size cap")
	}
	if s.Len() > 4 {
		t.Errorf("Expected at most 4 sessions, got %d", s.Len())
	}
	if _, ok := s.Snapshot("story-4"); !ok {
		t.Error("Expected newest session retained")
	}
}

func TestSnapshotReturnsCopies(t *testing.T) {
	s := NewContinuityStore(10, time.Minute)
	id := s.EnsureSession("story-1", false)
	s.RecordPrompt(id, "a blue whale")

	scene, _ := s.Snapshot(id)
	scene.History[0] = "mutated"

	fresh, _ := s.Snapshot(id)
	if fresh.History[0] != "a blue whale" {
		t.Errorf("Expected internal state unaffected by mutation, got %q", fresh.History[0])
	}
}

func TestResolveAction(t *testing.T) {
	tests := []struct {
		name      string
		history   []string
		prompt    string
		requested string
		want      string
	}{
		{"explicit action wins", []string{"a castle"}, "a castle at night", "expand", ActionExpand},
		{"explicit update wins", nil, "anything", "update", ActionUpdate},
		{"empty history updates", nil, "a dragon", "auto", ActionUpdate},
		{"new topic expands", []string{"a small castle"}, "a friendly dragon", "", ActionExpand},
		{"same topic updates", []string{"a small castle"}, "the small castle", "auto", ActionUpdate},
		{"short words ignored", []string{"a big cat"}, "the cat ran up", "", ActionUpdate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ResolveAction(tt.history, tt.prompt, tt.requested)
			if got != tt.want {
				t.Errorf("ResolveAction(%v, %q, %q) = %q, want %q",
					tt.history, tt.prompt, tt.requested, got, tt.want)
			}
		})
	}
}

func TestBuildPromptIncludesSceneAndAction(t *testing.T) {
	scene := Scene{
		History: []string{"a castle", "a dragon"},
		Conversation: []Exchange{
			{Child: "look a dragon", Assistant: "What a friendly dragon!"},
		},
	}

	prompt := BuildPrompt(scene, "the dragon waves", ActionExpand)
	for _, want := range []string{
		"(1) a castle",
		"(2) a dragon",
		"look a dragon",
		"Expand the existing canvas",
		"the dragon waves",
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("Expected prompt to contain %q, got:\n%s", want, prompt)
		}
	}

	prompt = BuildPrompt(Scene{}, "a boat", ActionUpdate)
	if !strings.Contains(prompt, "Update existing elements") {
		t.Errorf("Expected update directive, got:\n%s", prompt)
	}
}
