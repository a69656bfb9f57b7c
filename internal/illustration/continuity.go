// Package illustration tracks short-lived scene-continuity state for the
// story illustration companion: what the canvas already shows and what the
// conversation has been about, so successive prompts stay coherent.
//
// State is ephemeral by design. The store is injected, bounded in size, and
// TTL-evicted on access, so lifecycle is deterministic and testable.
package illustration

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Canvas actions chosen by the topic-change heuristic.
const (
	ActionUpdate = "update"
	ActionExpand = "expand"
)

const (
	// DefaultMaxSessions caps how many scene states are retained.
	DefaultMaxSessions = 100

	// DefaultTTL is how long an untouched scene state survives.
	DefaultTTL = 30 * time.Minute

	// conversation history kept per scene; older exchanges roll off.
	maxExchanges = 12
)

// Exchange is one remembered child/assistant turn.
type Exchange struct {
	Child     string
	Assistant string
}

// Scene is a point-in-time copy of one session's continuity state.
type Scene struct {
	History      []string
	Conversation []Exchange
	LastChild    string
	LastReply    string
}

type sessionState struct {
	history      []string
	conversation []Exchange
	lastChild    string
	lastReply    string
	lastUpdated  time.Time
}

// ContinuityStore holds per-session scene state with bounded size and TTL
// eviction. Safe for concurrent use.
type ContinuityStore struct {
	mu          sync.Mutex
	sessions    map[string]*sessionState
	maxSessions int
	ttl         time.Duration
	now         func() time.Time
}

// NewContinuityStore creates a store with the given bounds. Non-positive
// values fall back to the defaults.
func NewContinuityStore(maxSessions int, ttl time.Duration) *ContinuityStore {
	if maxSessions <= 0 {
		maxSessions = DefaultMaxSessions
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &ContinuityStore{
		sessions:    make(map[string]*sessionState),
		maxSessions: maxSessions,
		ttl:         ttl,
		now:         time.Now,
	}
}

// NewContinuityStoreWithClock is NewContinuityStore with an injected clock.
func NewContinuityStoreWithClock(maxSessions int, ttl time.Duration, now func() time.Time) *ContinuityStore {
	s := NewContinuityStore(maxSessions, ttl)
	s.now = now
	return s
}

// EnsureSession returns the effective session ID, creating fresh state when
// the session is unknown or reset was requested. Expired and over-cap
// entries are evicted on every call.
func (s *ContinuityStore) EnsureSession(sessionID string, reset bool) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.evictLocked()

	id := strings.TrimSpace(sessionID)
	if id == "" {
		id = uuid.NewString()
	}

	if _, ok := s.sessions[id]; !ok || reset {
		s.sessions[id] = &sessionState{lastUpdated: s.now()}
	}
	return id
}

// RecordExchange appends a child/assistant exchange to the session's rolling
// conversation window, creating the session if needed.
func (s *ContinuityStore) RecordExchange(sessionID, child, assistant string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, ok := s.sessions[sessionID]
	if !ok {
		state = &sessionState{}
		s.sessions[sessionID] = state
	}

	state.lastChild = strings.TrimSpace(child)
	state.lastReply = strings.TrimSpace(assistant)
	state.conversation = append(state.conversation, Exchange{
		Child:     state.lastChild,
		Assistant: state.lastReply,
	})
	if len(state.conversation) > maxExchanges {
		state.conversation = state.conversation[len(state.conversation)-maxExchanges:]
	}
	state.lastUpdated = s.now()
}

// RecordPrompt appends an illustration prompt to the session's scene history.
func (s *ContinuityStore) RecordPrompt(sessionID, prompt string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, ok := s.sessions[sessionID]
	if !ok {
		state = &sessionState{}
		s.sessions[sessionID] = state
	}
	state.history = append(state.history, prompt)
	state.lastUpdated = s.now()
}

// Snapshot returns a copy of the session's scene state, or ok=false when the
// session is unknown.
func (s *ContinuityStore) Snapshot(sessionID string) (Scene, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, ok := s.sessions[sessionID]
	if !ok {
		return Scene{}, false
	}
	return Scene{
		History:      append([]string(nil), state.history...),
		Conversation: append([]Exchange(nil), state.conversation...),
		LastChild:    state.lastChild,
		LastReply:    state.lastReply,
	}, true
}

// Len reports how many sessions are currently retained.
func (s *ContinuityStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// evictLocked drops expired entries, then the oldest entries beyond the size
// cap. Caller must hold s.mu.
func (s *ContinuityStore) evictLocked() {
	now := s.now()
	for id, state := range s.sessions {
		if now.Sub(state.lastUpdated) > s.ttl {
			delete(s.sessions, id)
		}
	}

	if len(s.sessions) <= s.maxSessions {
		return
	}

	type entry struct {
		id          string
		lastUpdated time.Time
	}
	entries := make([]entry, 0, len(s.sessions))
	for id, state := range s.sessions {
		entries = append(entries, entry{id: id, lastUpdated: state.lastUpdated})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].lastUpdated.Before(entries[j].lastUpdated)
	})
	for _, e := range entries[:len(s.sessions)-s.maxSessions] {
		delete(s.sessions, e.id)
	}
}
