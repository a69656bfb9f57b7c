// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/lingua-dev/lingua/internal/domain"
)

var (
	// ErrInvalidUserID is returned when a user identifier fails normalization
	// or is empty. Raised before any store mutation.
	ErrInvalidUserID = errors.New("invalid user id")

	// ErrInvalidSessionID is returned when a session identifier fails
	// normalization or is empty. Raised before any store mutation.
	ErrInvalidSessionID = errors.New("invalid session id")

	// ErrSessionNotFound is returned by transcript lookups for sessions that
	// do not exist.
	ErrSessionNotFound = errors.New("session not found")

	// ErrUserNotFound is returned by user lookups that require an existing
	// record.
	ErrUserNotFound = errors.New("user not found")
)

// Repository defines the persistence contract for users, sessions,
// transcripts, and progress snapshots. It is the only path to storage; all
// ordering and idempotence invariants are enforced here.
type Repository interface {
	// CreateSessionForUser creates a new active session for the user,
	// atomically deactivating any prior sessions. The user record is created
	// on first contact and its updated_at bumped on every call.
	CreateSessionForUser(ctx context.Context, userID string) (*domain.Session, error)

	// GetSessionByID retrieves a session by its token. Returns (nil, nil)
	// when the session does not exist.
	GetSessionByID(ctx context.Context, sessionID string) (*domain.Session, error)

	// FindActiveSessionForUser returns the user's current active session, or
	// (nil, nil) when there is none.
	FindActiveSessionForUser(ctx context.Context, userID string) (*domain.Session, error)

	// SessionLastActivity returns max(session.createdAt, newest turn
	// timestamp) for the session.
	SessionLastActivity(ctx context.Context, sessionID string) (time.Time, error)

	// AppendTurn computes the next turn index for the session, inserts the
	// turn, and replaces the turn's derived message rows. Concurrent calls
	// for the same session are serialized.
	AppendTurn(ctx context.Context, sessionID, childText, assistantText string) (*domain.TranscriptTurn, error)

	// GetTranscript returns the session with its turns (index ascending) and
	// messages ((turn, message index) ascending). Returns ErrSessionNotFound
	// for unknown sessions.
	GetTranscript(ctx context.Context, sessionID string) (*domain.Transcript, error)

	// GetUserProgress lists a user's sessions newest first, each annotated
	// with its turn count.
	GetUserProgress(ctx context.Context, userID string) (*domain.UserProgress, error)

	// GetUserRecord retrieves a user. Returns (nil, nil) when absent.
	GetUserRecord(ctx context.Context, userID string) (*domain.User, error)

	// ListUsers returns all users in creation order.
	ListUsers(ctx context.Context) ([]*domain.User, error)

	// RecordSnapshot appends a progress snapshot to the metric log.
	RecordSnapshot(ctx context.Context, snapshot *domain.ProgressSnapshot) error

	// ListSnapshots returns a user's snapshots, newest first.
	ListSnapshots(ctx context.Context, userID string) ([]*domain.ProgressSnapshot, error)

	// Ping verifies database connectivity.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}
