// Package models defines the domain models shared by every layer.
//
// A model is the Go shape of a table row and, at the same time, the shape of
// the JSON that crosses the API. `json:"…"` tags drive serialization and
// `db:"…"` tags drive sqlx struct scanning in the repository layer.
package models

import (
	"strings"
	"time"
)

// User is an account on the platform.
//
// IsAdmin and IsPublisher are mirrored into the access token claims so the
// client can render role-specific UI without another round trip.
type User struct {
	ID                  string    `json:"id" db:"id"`
	Username            string    `json:"username" db:"username"`
	DisplayName         *string   `json:"display_name" db:"display_name"`
	Email               *string   `json:"email,omitempty" db:"email"`
	PasswordHash        string    `json:"-" db:"password_hash"` // never sent to the API
	Language            string    `json:"language" db:"language"`
	IsAdmin             bool      `json:"is_admin" db:"is_admin"`
	IsPublisher         bool      `json:"is_publisher" db:"is_publisher"`
	NotificationVersion int64     `json:"-" db:"notification_version"`
	CreatedAt           time.Time `json:"created_at" db:"created_at"`
}

// CreateUserRequest is the sign-up body. The password is hashed in the
// service layer, never here.
type CreateUserRequest struct {
	Username    string `json:"username" validate:"required,min=3,max=32,username"`
	Password    string `json:"password" validate:"required,min=8,max=128"`
	DisplayName string `json:"display_name" validate:"max=32"`
	Email       string `json:"email" validate:"omitempty,email"`
	Language    string `json:"language" validate:"omitempty,oneof=en tr"`
}

// Normalize trims user-supplied strings before validation.
func (r *CreateUserRequest) Normalize() {
	r.Username = strings.TrimSpace(r.Username)
	r.DisplayName = strings.TrimSpace(r.DisplayName)
	r.Email = strings.TrimSpace(r.Email)
}

// LoginRequest is the sign-in body.
type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// UserCompact is the minimal public profile embedded in other payloads.
type UserCompact struct {
	ID          string  `json:"id"`
	Username    string  `json:"username"`
	DisplayName *string `json:"display_name"`
}

// ToCompact strips everything but the public identity fields.
func (u *User) ToCompact() UserCompact {
	return UserCompact{ID: u.ID, Username: u.Username, DisplayName: u.DisplayName}
}

// Name returns the display name when set, the username otherwise.
func (u *User) Name() string {
	if u.DisplayName != nil && *u.DisplayName != "" {
		return *u.DisplayName
	}
	return u.Username
}
