package domain

import (
	"time"
)

// ProgressSnapshot is a caregiver-triggered metric record. Snapshots are
// append-only and never mutated.
type ProgressSnapshot struct {
	ID        int64     `json:"id"`
	UserID    string    `json:"user_id"`
	SessionID string    `json:"session_id,omitempty"`
	Metric    string    `json:"metric"`
	Value     float64   `json:"value"`
	Notes     string    `json:"notes,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
