// Package memory is an in-process storage.Store for tests and demos.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"cashstash/internal/core"
	"cashstash/internal/storage"
)

type entry struct {
	tx  core.Transaction
	seq uint64
}

// Store keeps everything in maps guarded by one RWMutex.
type Store struct {
	mu      sync.RWMutex
	seq     uint64
	txs     map[string]entry
	users   map[string]storage.User
	byEmail map[string]string
}

var _ storage.Store = (*Store)(nil)

func NewStore() *Store {
	return &Store{
		txs:     make(map[string]entry),
		users:   make(map[string]storage.User),
		byEmail: make(map[string]string),
	}
}

func (s *Store) Close() error { return nil }

func (s *Store) Create(_ context.Context, tx core.Transaction) (core.Transaction, error) {
	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = time.Now().UTC()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	s.txs[tx.ID] = entry{tx: tx, seq: s.seq}
	return tx, nil
}

func (s *Store) Get(_ context.Context, id string) (core.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.txs[id]
	if !ok {
		return core.Transaction{}, storage.ErrNotFound
	}
	return e.tx, nil
}

func (s *Store) UpdateFields(_ context.Context, id string, amount float64, description string) (core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.txs[id]
	if !ok {
		return core.Transaction{}, storage.ErrNotFound
	}
	e.tx.Amount = amount
	e.tx.Description = description
	s.txs[id] = e
	return e.tx, nil
}

func (s *Store) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.txs[id]; !ok {
		return storage.ErrNotFound
	}
	delete(s.txs, id)
	return nil
}

func (s *Store) ListByUser(_ context.Context, userID string) ([]core.Transaction, error) {
	s.mu.RLock()
	entries := make([]entry, 0)
	for _, e := range s.txs {
		if e.tx.UserID == userID {
			entries = append(entries, e)
		}
	}
	s.mu.RUnlock()

	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if !a.tx.CreatedAt.Equal(b.tx.CreatedAt) {
			return a.tx.CreatedAt.After(b.tx.CreatedAt)
		}
		return a.seq > b.seq
	})

	out := make([]core.Transaction, len(entries))
	for i, e := range entries {
		out[i] = e.tx
	}
	return out, nil
}

func (s *Store) CreateUser(_ context.Context, u storage.User) (storage.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.byEmail[u.Email]; taken {
		return storage.User{}, storage.ErrDuplicateEmail
	}
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	if u.Role == "" {
		u.Role = storage.RoleUser
	}
	s.users[u.ID] = u
	s.byEmail[u.Email] = u.ID
	return u, nil
}

func (s *Store) UserByEmail(_ context.Context, email string) (storage.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byEmail[email]
	if !ok {
		return storage.User{}, storage.ErrNotFound
	}
	return s.users[id], nil
}

func (s *Store) UserByID(_ context.Context, id string) (storage.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return storage.User{}, storage.ErrNotFound
	}
	return u, nil
}

func (s *Store) UpdateDisplayName(_ context.Context, id, name string) (storage.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return storage.User{}, storage.ErrNotFound
	}
	u.FullName = name
	s.users[id] = u
	return u, nil
}
