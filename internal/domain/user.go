// Package domain contains core domain types for the Lingua application.
package domain

import (
	"time"
)

// User is a pseudonymous child identity derived from the caller's network
// origin. Users are created on first contact and never deleted.
type User struct {
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
