// Package auth is the email/password identity provider. It issues the
// explicit Session values that every ledger operation takes.
package auth

import (
	"errors"
	"time"
)

var (
	ErrNoSession          = errors.New("no active session")
	ErrMissingFields      = errors.New("all fields are required")
	ErrInvalidEmail       = errors.New("invalid email address")
	ErrPasswordMismatch   = errors.New("passwords do not match")
	ErrWeakPassword       = errors.New("password must be at least 6 characters")
	ErrEmailTaken         = errors.New("email already in use")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidToken       = errors.New("invalid or expired token")
)

// Session identifies the signed-in user for one client. It replaces any
// notion of a global current user: operations receive it explicitly.
type Session struct {
	UserID      string    `json:"user_id"`
	DisplayName string    `json:"display_name"`
	Email       string    `json:"email"`
	Token       string    `json:"token,omitempty"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Require returns ErrNoSession for a nil or anonymous session.
func Require(sess *Session) error {
	if sess == nil || sess.UserID == "" {
		return ErrNoSession
	}
	return nil
}
