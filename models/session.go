package models

import "time"

// Session is a refresh-token session row.
//
// Access tokens are short lived (minutes) and never stored. Refresh tokens
// live for days and are kept here so a single session can be revoked on
// logout, and every session of a user on logout-all.
type Session struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	RefreshToken string    `json:"-"`
	ExpiresAt    time.Time `json:"expires_at"`
	CreatedAt    time.Time `json:"created_at"`
}
