package domain

import (
	"time"
)

// Speaker identifies who produced a conversation message.
type Speaker string

const (
	SpeakerChild     Speaker = "child"
	SpeakerAssistant Speaker = "assistant"
)

// Session is one continuous conversation window between a user and the
// assistant. At most one session per user is active at any time.
type Session struct {
	SessionID string    `json:"session_id"`
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
	Active    bool      `json:"active"`
}

// TranscriptTurn is one child-utterance/assistant-reply exchange within a
// session. Turn indices are 1-based, contiguous, and strictly increasing.
type TranscriptTurn struct {
	SessionID string    `json:"session_id"`
	TurnIndex int       `json:"turn_index"`
	Timestamp time.Time `json:"timestamp"`
	Child     string    `json:"child"`
	Assistant string    `json:"assistant"`
}

// ConversationMessage is a normalized per-speaker row derived from a
// transcript turn. MessageIndex is unique within (session, turn, speaker).
type ConversationMessage struct {
	SessionID    string    `json:"session_id"`
	TurnIndex    int       `json:"turn_index"`
	MessageIndex int       `json:"message_index"`
	Speaker      Speaker   `json:"speaker"`
	Content      string    `json:"content"`
	Timestamp    time.Time `json:"timestamp"`
}

// Transcript bundles a session with its ordered turns and messages.
type Transcript struct {
	Session  Session               `json:"session"`
	Turns    []TranscriptTurn      `json:"turns"`
	Messages []ConversationMessage `json:"messages"`
}

// SessionProgress annotates a session with its turn count for progress views.
type SessionProgress struct {
	SessionID string    `json:"session_id"`
	CreatedAt time.Time `json:"created_at"`
	Active    bool      `json:"active"`
	TurnCount int       `json:"turn_count"`
}

// UserProgress lists a user's sessions, newest first.
type UserProgress struct {
	UserID   string            `json:"user_id"`
	Sessions []SessionProgress `json:"sessions"`
}
