// Package storage defines the document-store ports for transactions and user
// profiles together with the sqlite backend. Other backends live in
// subpackages.
package storage

import (
	"context"
	"errors"
	"time"

	"cashstash/internal/core"
)

var (
	ErrNotFound       = errors.New("record not found")
	ErrDuplicateEmail = errors.New("email already registered")
)

// RoleUser is the role stored on every self-registered profile.
const RoleUser = "USER"

// TransactionStore persists transactions. Every call is a single-document
// write or read; there are no batches.
type TransactionStore interface {
	// Create assigns ID and CreatedAt when they are empty and stores tx.
	Create(ctx context.Context, tx core.Transaction) (core.Transaction, error)
	Get(ctx context.Context, id string) (core.Transaction, error)
	// UpdateFields changes amount and description only.
	UpdateFields(ctx context.Context, id string, amount float64, description string) (core.Transaction, error)
	Delete(ctx context.Context, id string) error
	// ListByUser returns the user's transactions, newest first.
	ListByUser(ctx context.Context, userID string) ([]core.Transaction, error)
}

// User is the stored profile document.
type User struct {
	ID           string    `json:"id"`
	FullName     string    `json:"fullname"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"password_hash"`
	Role         string    `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
}

type UserStore interface {
	// CreateUser assigns ID and CreatedAt; fails with ErrDuplicateEmail.
	CreateUser(ctx context.Context, u User) (User, error)
	UserByEmail(ctx context.Context, email string) (User, error)
	UserByID(ctx context.Context, id string) (User, error)
	UpdateDisplayName(ctx context.Context, id, name string) (User, error)
}

// Store is a full backend.
type Store interface {
	TransactionStore
	UserStore
	Close() error
}
