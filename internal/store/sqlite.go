package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lingua-dev/lingua/internal/domain"
	"github.com/lingua-dev/lingua/internal/identity"
	"github.com/lingua-dev/lingua/internal/shared"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db        *sql.DB
	sessionMu sync.Mutex // serializes deactivate-then-insert so one active session per user is observable
	turnLocks sync.Map   // per-session *sync.Mutex; turn index assignment requires a single writer
}

// NewSQLite creates a new SQLite-backed repository.
func NewSQLite(dbPath string) (Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// Open database with WAL mode for better concurrency.
	dsn := dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS users (
		user_id TEXT PRIMARY KEY,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS sessions (
		session_id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		active INTEGER NOT NULL DEFAULT 1,
		FOREIGN KEY (user_id) REFERENCES users(user_id)
	);
	CREATE INDEX IF NOT EXISTS idx_sessions_user_created ON sessions(user_id, created_at DESC);

	CREATE TABLE IF NOT EXISTS transcript_turns (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL,
		turn_index INTEGER NOT NULL,
		timestamp INTEGER NOT NULL,
		child TEXT,
		assistant TEXT,
		FOREIGN KEY (session_id) REFERENCES sessions(session_id)
	);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_transcript_turns_session_turn
		ON transcript_turns(session_id, turn_index);

	CREATE TABLE IF NOT EXISTS conversation_messages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL,
		turn_index INTEGER NOT NULL,
		message_index INTEGER NOT NULL,
		speaker TEXT NOT NULL,
		content TEXT NOT NULL,
		timestamp INTEGER NOT NULL,
		FOREIGN KEY (session_id) REFERENCES sessions(session_id)
	);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_conversation_messages_session_turn_msg
		ON conversation_messages(session_id, turn_index, message_index, speaker);

	CREATE TABLE IF NOT EXISTS progress_snapshots (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id TEXT NOT NULL,
		session_id TEXT,
		created_at INTEGER NOT NULL,
		metric TEXT NOT NULL,
		value REAL,
		notes TEXT,
		FOREIGN KEY (user_id) REFERENCES users(user_id),
		FOREIGN KEY (session_id) REFERENCES sessions(session_id)
	);
	CREATE INDEX IF NOT EXISTS idx_progress_snapshots_user
		ON progress_snapshots(user_id, created_at DESC);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

// CreateSessionForUser creates a new active session, atomically deactivating
// any prior sessions for the user.
func (s *SQLiteStore) CreateSessionForUser(ctx context.Context, userID string) (*domain.Session, error) {
	userID = identity.SanitizeUserID(userID)
	if userID == "" {
		return nil, ErrInvalidUserID
	}

	s.sessionMu.Lock()
	defer s.sessionMu.Unlock()

	now := time.Now()
	sessionID := uuid.NewString()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin session create: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO users (user_id, created_at, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET updated_at = excluded.updated_at`,
		userID, now.UnixMilli(), now.UnixMilli(),
	)
	if err != nil {
		return nil, fmt.Errorf("ensure user: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `UPDATE sessions SET active = 0 WHERE user_id = ?`, userID); err != nil {
		return nil, fmt.Errorf("deactivate sessions: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO sessions (session_id, user_id, created_at, active)
		VALUES (?, ?, ?, 1)`,
		sessionID, userID, now.UnixMilli(),
	)
	if err != nil {
		return nil, fmt.Errorf("insert session: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit session create: %w", err)
	}

	return &domain.Session{
		SessionID: sessionID,
		UserID:    userID,
		CreatedAt: time.UnixMilli(now.UnixMilli()),
		Active:    true,
	}, nil
}

// GetSessionByID retrieves a session by its token.
func (s *SQLiteStore) GetSessionByID(ctx context.Context, sessionID string) (*domain.Session, error) {
	sessionID = identity.SanitizeSessionID(sessionID)
	if sessionID == "" {
		return nil, nil
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT session_id, user_id, created_at, active
		FROM sessions WHERE session_id = ?`, sessionID)

	return scanSession(row)
}

// FindActiveSessionForUser returns the user's newest active session.
func (s *SQLiteStore) FindActiveSessionForUser(ctx context.Context, userID string) (*domain.Session, error) {
	userID = identity.SanitizeUserID(userID)
	if userID == "" {
		return nil, nil
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT session_id, user_id, created_at, active
		FROM sessions
		WHERE user_id = ? AND active = 1
		ORDER BY created_at DESC
		LIMIT 1`, userID)

	return scanSession(row)
}

// SessionLastActivity returns max(session.createdAt, newest turn timestamp).
func (s *SQLiteStore) SessionLastActivity(ctx context.Context, sessionID string) (time.Time, error) {
	session, err := s.GetSessionByID(ctx, sessionID)
	if err != nil {
		return time.Time{}, err
	}
	if session == nil {
		return time.Time{}, ErrSessionNotFound
	}

	var lastTurn sql.NullInt64
	err = s.db.QueryRowContext(ctx, `
		SELECT MAX(timestamp) FROM transcript_turns WHERE session_id = ?`,
		session.SessionID,
	).Scan(&lastTurn)
	if err != nil {
		return time.Time{}, fmt.Errorf("query last turn timestamp: %w", err)
	}

	if lastTurn.Valid {
		turnTime := time.UnixMilli(lastTurn.Int64)
		if turnTime.After(session.CreatedAt) {
			return turnTime, nil
		}
	}
	return session.CreatedAt, nil
}

// AppendTurn inserts the next transcript turn and replaces its derived
// message rows. Re-running the message replacement for a turn index is
// idempotent: prior rows are deleted before insert, never duplicated.
func (s *SQLiteStore) AppendTurn(ctx context.Context, sessionID, childText, assistantText string) (*domain.TranscriptTurn, error) {
	sessionID = identity.SanitizeSessionID(sessionID)
	if sessionID == "" {
		return nil, ErrInvalidSessionID
	}

	// Serialize appends per session; index assignment tolerates concurrent
	// readers but not concurrent writers.
	lock, _ := s.turnLocks.LoadOrStore(sessionID, &sync.Mutex{})
	mutex := lock.(*sync.Mutex)
	mutex.Lock()
	defer mutex.Unlock()

	maxRetries := 3
	baseDelay := 100 * time.Millisecond

	var turn *domain.TranscriptTurn
	var err error
	for i := 0; i < maxRetries; i++ {
		turn, err = s.appendTurnOnce(ctx, sessionID, childText, assistantText)
		if err == nil {
			return turn, nil
		}
		if shared.IsSQLiteConflictError(err) && i < maxRetries-1 {
			delay := baseDelay * time.Duration(1<<i)
			slog.Debug("AppendTurn hit SQLITE_BUSY, retrying",
				"session_id", sessionID,
				"attempt", i+1,
				"delay", delay)
			time.Sleep(delay)
			continue
		}
		return nil, err
	}
	return nil, err
}

func (s *SQLiteStore) appendTurnOnce(ctx context.Context, sessionID, childText, assistantText string) (*domain.TranscriptTurn, error) {
	now := time.Now()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin turn append: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var maxIndex int
	err = tx.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(turn_index), 0) FROM transcript_turns WHERE session_id = ?`,
		sessionID,
	).Scan(&maxIndex)
	if err != nil {
		return nil, fmt.Errorf("query max turn index: %w", err)
	}
	turnIndex := maxIndex + 1

	_, err = tx.ExecContext(ctx, `
		INSERT INTO transcript_turns (session_id, turn_index, timestamp, child, assistant)
		VALUES (?, ?, ?, ?, ?)`,
		sessionID, turnIndex, now.UnixMilli(), childText, assistantText,
	)
	if err != nil {
		return nil, fmt.Errorf("insert turn: %w", err)
	}

	if err := replaceTurnMessages(ctx, tx, sessionID, turnIndex, childText, assistantText, now); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit turn append: %w", err)
	}

	return &domain.TranscriptTurn{
		SessionID: sessionID,
		TurnIndex: turnIndex,
		Timestamp: time.UnixMilli(now.UnixMilli()),
		Child:     childText,
		Assistant: assistantText,
	}, nil
}

// replaceTurnMessages deletes any prior message rows for the turn and inserts
// fresh rows derived from non-empty normalized text.
func replaceTurnMessages(ctx context.Context, tx *sql.Tx, sessionID string, turnIndex int, childText, assistantText string, ts time.Time) error {
	_, err := tx.ExecContext(ctx, `
		DELETE FROM conversation_messages WHERE session_id = ? AND turn_index = ?`,
		sessionID, turnIndex,
	)
	if err != nil {
		return fmt.Errorf("delete turn messages: %w", err)
	}

	messageIndex := 0
	insert := func(speaker domain.Speaker, content string) error {
		if content == "" {
			return nil
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO conversation_messages (session_id, turn_index, message_index, speaker, content, timestamp)
			VALUES (?, ?, ?, ?, ?, ?)`,
			sessionID, turnIndex, messageIndex, string(speaker), content, ts.UnixMilli(),
		)
		if err != nil {
			return fmt.Errorf("insert %s message: %w", speaker, err)
		}
		messageIndex++
		return nil
	}

	if err := insert(domain.SpeakerChild, NormalizeMessageText(childText)); err != nil {
		return err
	}
	return insert(domain.SpeakerAssistant, NormalizeMessageText(assistantText))
}

// GetTranscript returns the session with its ordered turns and messages.
func (s *SQLiteStore) GetTranscript(ctx context.Context, sessionID string) (*domain.Transcript, error) {
	sessionID = identity.SanitizeSessionID(sessionID)
	if sessionID == "" {
		return nil, ErrInvalidSessionID
	}

	session, err := s.GetSessionByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, ErrSessionNotFound
	}

	turns, err := s.queryTurns(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	messages, err := s.queryMessages(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	return &domain.Transcript{
		Session:  *session,
		Turns:    turns,
		Messages: messages,
	}, nil
}

func (s *SQLiteStore) queryTurns(ctx context.Context, sessionID string) ([]domain.TranscriptTurn, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT turn_index, timestamp, COALESCE(child, ''), COALESCE(assistant, '')
		FROM transcript_turns WHERE session_id = ? ORDER BY turn_index ASC`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query turns: %w", err)
	}
	defer closeRows(rows, "turns")

	var turns []domain.TranscriptTurn
	for rows.Next() {
		var turn domain.TranscriptTurn
		var ts int64
		if err := rows.Scan(&turn.TurnIndex, &ts, &turn.Child, &turn.Assistant); err != nil {
			return nil, fmt.Errorf("scan turn row: %w", err)
		}
		turn.SessionID = sessionID
		turn.Timestamp = time.UnixMilli(ts)
		turns = append(turns, turn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate turns: %w", err)
	}
	return turns, nil
}

func (s *SQLiteStore) queryMessages(ctx context.Context, sessionID string) ([]domain.ConversationMessage, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT turn_index, message_index, speaker, content, timestamp
		FROM conversation_messages WHERE session_id = ?
		ORDER BY turn_index ASC, message_index ASC`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer closeRows(rows, "messages")

	var messages []domain.ConversationMessage
	for rows.Next() {
		var msg domain.ConversationMessage
		var speaker string
		var ts int64
		if err := rows.Scan(&msg.TurnIndex, &msg.MessageIndex, &speaker, &msg.Content, &ts); err != nil {
			return nil, fmt.Errorf("scan message row: %w", err)
		}
		msg.SessionID = sessionID
		msg.Speaker = domain.Speaker(speaker)
		msg.Timestamp = time.UnixMilli(ts)
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}
	return messages, nil
}

// GetUserProgress lists the user's sessions newest first with turn counts.
func (s *SQLiteStore) GetUserProgress(ctx context.Context, userID string) (*domain.UserProgress, error) {
	userID = identity.SanitizeUserID(userID)
	if userID == "" {
		return nil, ErrInvalidUserID
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT s.session_id, s.created_at, s.active, COALESCE(t.turn_count, 0)
		FROM sessions s
		LEFT JOIN (
			SELECT session_id, COUNT(*) AS turn_count
			FROM transcript_turns
			GROUP BY session_id
		) t ON t.session_id = s.session_id
		WHERE s.user_id = ?
		ORDER BY s.created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("query user sessions: %w", err)
	}
	defer closeRows(rows, "user sessions")

	progress := &domain.UserProgress{UserID: userID, Sessions: []domain.SessionProgress{}}
	for rows.Next() {
		var sp domain.SessionProgress
		var createdAt int64
		var active int
		if err := rows.Scan(&sp.SessionID, &createdAt, &active, &sp.TurnCount); err != nil {
			return nil, fmt.Errorf("scan session progress row: %w", err)
		}
		sp.CreatedAt = time.UnixMilli(createdAt)
		sp.Active = active != 0
		progress.Sessions = append(progress.Sessions, sp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate user sessions: %w", err)
	}
	return progress, nil
}

// GetUserRecord retrieves a user by ID.
func (s *SQLiteStore) GetUserRecord(ctx context.Context, userID string) (*domain.User, error) {
	userID = identity.SanitizeUserID(userID)
	if userID == "" {
		return nil, nil
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT user_id, created_at, updated_at FROM users WHERE user_id = ?`, userID)

	var user domain.User
	var createdAt, updatedAt int64
	err := row.Scan(&user.UserID, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan user row: %w", err)
	}

	user.CreatedAt = time.UnixMilli(createdAt)
	user.UpdatedAt = time.UnixMilli(updatedAt)
	return &user, nil
}

// ListUsers returns all users in creation order.
func (s *SQLiteStore) ListUsers(ctx context.Context) ([]*domain.User, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id, created_at, updated_at FROM users ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer closeRows(rows, "users")

	var users []*domain.User
	for rows.Next() {
		var user domain.User
		var createdAt, updatedAt int64
		if err := rows.Scan(&user.UserID, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan user row: %w", err)
		}
		user.CreatedAt = time.UnixMilli(createdAt)
		user.UpdatedAt = time.UnixMilli(updatedAt)
		users = append(users, &user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}
	return users, nil
}

// RecordSnapshot appends a progress snapshot. The log is append-only.
func (s *SQLiteStore) RecordSnapshot(ctx context.Context, snapshot *domain.ProgressSnapshot) error {
	userID := identity.SanitizeUserID(snapshot.UserID)
	if userID == "" {
		return ErrInvalidUserID
	}

	var sessionID interface{}
	if snapshot.SessionID != "" {
		if sanitized := identity.SanitizeSessionID(snapshot.SessionID); sanitized != "" {
			sessionID = sanitized
		}
	}

	now := time.Now()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO progress_snapshots (user_id, session_id, created_at, metric, value, notes)
		VALUES (?, ?, ?, ?, ?, ?)`,
		userID, sessionID, now.UnixMilli(),
		NormalizeMessageText(snapshot.Metric), snapshot.Value, NormalizeMessageText(snapshot.Notes),
	)
	if err != nil {
		return fmt.Errorf("insert progress snapshot: %w", err)
	}
	return nil
}

// ListSnapshots returns the user's snapshots, newest first.
func (s *SQLiteStore) ListSnapshots(ctx context.Context, userID string) ([]*domain.ProgressSnapshot, error) {
	userID = identity.SanitizeUserID(userID)
	if userID == "" {
		return nil, ErrInvalidUserID
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, session_id, created_at, metric, COALESCE(value, 0), COALESCE(notes, '')
		FROM progress_snapshots
		WHERE user_id = ?
		ORDER BY created_at DESC, id DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("query snapshots: %w", err)
	}
	defer closeRows(rows, "snapshots")

	var snapshots []*domain.ProgressSnapshot
	for rows.Next() {
		var snap domain.ProgressSnapshot
		var sessionID sql.NullString
		var createdAt int64
		if err := rows.Scan(&snap.ID, &sessionID, &createdAt, &snap.Metric, &snap.Value, &snap.Notes); err != nil {
			return nil, fmt.Errorf("scan snapshot row: %w", err)
		}
		snap.UserID = userID
		snap.SessionID = sessionID.String
		snap.CreatedAt = time.UnixMilli(createdAt)
		snapshots = append(snapshots, &snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snapshots: %w", err)
	}
	return snapshots, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSession(row rowScanner) (*domain.Session, error) {
	var session domain.Session
	var createdAt int64
	var active int

	err := row.Scan(&session.SessionID, &session.UserID, &createdAt, &active)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan session row: %w", err)
	}

	session.CreatedAt = time.UnixMilli(createdAt)
	session.Active = active != 0
	return &session, nil
}

func closeRows(rows *sql.Rows, what string) {
	if err := rows.Close(); err != nil {
		slog.Warn("failed to close rows", "rows", what, "error", err)
	}
}

var (
	controlChars  = regexp.MustCompile(`["\x00-\x1f]`)
	whitespaceRun = regexp.MustCompile(`\s+`)
)

// NormalizeMessageText collapses whitespace and newlines to single spaces,
// strips control characters and double quotes, and trims the result. Text
// that normalizes to "" produces no message row.
func NormalizeMessageText(text string) string {
	text = controlChars.ReplaceAllString(text, " ")
	text = whitespaceRun.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}
