// Package session decides which conversation session an inbound utterance
// belongs to: reuse the caller's session, expire an idle one, or create a
// fresh one.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/lingua-dev/lingua/internal/domain"
	"github.com/lingua-dev/lingua/internal/identity"
	"github.com/lingua-dev/lingua/internal/store"
)

// DefaultIdleTimeout is how long a session may sit without activity before a
// resolution request stops reusing it.
const DefaultIdleTimeout = 5 * time.Minute

// Resolver implements session continuity over the store. The only externally
// visible side effect is the deactivation of prior sessions when a new one is
// created; mere reuse mutates nothing.
type Resolver struct {
	repo store.Repository
	now  func() time.Time
}

// NewResolver creates a resolver backed by the given repository.
func NewResolver(repo store.Repository) *Resolver {
	return &Resolver{repo: repo, now: time.Now}
}

// NewResolverWithClock creates a resolver with an injected clock for tests.
func NewResolverWithClock(repo store.Repository, now func() time.Time) *Resolver {
	return &Resolver{repo: repo, now: now}
}

// Resolve returns a usable active session for the user.
//
// A client-supplied token wins when it names a session owned by the caller;
// otherwise the user's active session is the candidate. Either candidate is
// discarded when idle for idleTimeout or longer. Unknown, garbled, or
// foreign tokens are treated as absent, never as errors, so session tokens
// leak nothing across users.
func (r *Resolver) Resolve(ctx context.Context, userID, clientToken string, forceReset bool, idleTimeout time.Duration) (*domain.Session, error) {
	userID = identity.SanitizeUserID(userID)
	if userID == "" {
		return nil, store.ErrInvalidUserID
	}
	if idleTimeout <= 0 {
		idleTimeout = DefaultIdleTimeout
	}

	var candidate *domain.Session

	if !forceReset {
		if token := identity.SanitizeSessionID(clientToken); token != "" {
			existing, err := r.repo.GetSessionByID(ctx, token)
			if err != nil {
				return nil, fmt.Errorf("look up session token: %w", err)
			}
			if existing != nil && existing.UserID == userID {
				candidate = existing
			}
		}

		if candidate == nil {
			active, err := r.repo.FindActiveSessionForUser(ctx, userID)
			if err != nil {
				return nil, fmt.Errorf("look up active session: %w", err)
			}
			candidate = active
		}
	}

	if candidate != nil && r.expired(ctx, candidate, idleTimeout) {
		candidate = nil
	}

	if candidate != nil {
		return candidate, nil
	}

	created, err := r.repo.CreateSessionForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	return created, nil
}

// expired reports whether the candidate has been idle for idleTimeout or
// longer. When last activity cannot be determined the session is kept; a
// stale reuse is preferable to dropping conversation continuity on a read
// hiccup.
func (r *Resolver) expired(ctx context.Context, candidate *domain.Session, idleTimeout time.Duration) bool {
	lastActivity, err := r.repo.SessionLastActivity(ctx, candidate.SessionID)
	if err != nil {
		slog.Warn("unable to determine session last activity",
			"session_id", candidate.SessionID,
			"error", err)
		return false
	}
	return r.now().Sub(lastActivity) >= idleTimeout
}
