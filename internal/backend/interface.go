// Package backend assembles the storage, change fan-out and balance guard a
// CashStash process runs on.
package backend

import (
	"context"

	"cashstash/internal/amqp"
	"cashstash/internal/auth"
	"cashstash/internal/feed"
	"cashstash/internal/services"
	"cashstash/internal/storage"
)

// ReadinessCheck reports whether a dependency can serve traffic.
type ReadinessCheck func(ctx context.Context) error

// Backend is everything the services need from the outside world.
type Backend struct {
	// Store is the raw document store. Writes that should reach live
	// subscribers go through Transactions instead.
	Store        storage.Store
	Transactions *storage.Observed
	Hub          *feed.Hub
	Guard        services.BalanceGuard
	Revocations  auth.Revocations
	Ready        []ReadinessCheck

	broker *amqp.Client
}

// Distributed reports whether changes travel through the broker.
func (b *Backend) Distributed() bool {
	return b.broker != nil
}

// RelayChanges feeds broker changes into the local hub until ctx ends. It
// returns nil at once for a process-local backend.
func (b *Backend) RelayChanges(ctx context.Context) error {
	if b.broker == nil {
		return nil
	}
	return amqp.Relay(ctx, b.broker, b.Hub)
}

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// BackendResult contains the backend instance and its cleanup function
type BackendResult struct {
	Backend *Backend
	Cleanup CleanupFunc
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	SQLiteDBPath string
	BadgerDir    string

	// Empty AMQPURL keeps change fan-out in process.
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	BalanceGuard string
	RedisAddr    string
}

// BackendType represents the type of backend
type BackendType string

const (
	MemoryBackend BackendType = "memory"
	SQLiteBackend BackendType = "sqlite"
	BadgerBackend BackendType = "badger"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case MemoryBackend, SQLiteBackend, BadgerBackend:
		return true
	default:
		return false
	}
}
