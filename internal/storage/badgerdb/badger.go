// Package badgerdb stores transactions and profiles as JSON documents in
// BadgerDB.
//
// Key layout:
//
//	tx:<userID>:<id>  transaction document
//	txid:<id>         owning userID, for lookups by id
//	user:<id>         profile document
//	email:<email>     userID, unique email index
package badgerdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/dgraph-io/badger/v3"
	"github.com/google/uuid"

	"cashstash/internal/core"
	"cashstash/internal/storage"
)

// record wraps a transaction with its insertion sequence, used to break
// CreatedAt ties.
type record struct {
	core.Transaction
	Seq uint64 `json:"seq"`
}

// Store is a storage.Store over a badger database.
type Store struct {
	db  *badger.DB
	seq *badger.Sequence
}

var _ storage.Store = (*Store)(nil)

// Open opens (or creates) a database in dir. An empty dir opens an
// in-memory database.
func Open(dir string) (*Store, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	seq, err := db.GetSequence([]byte("seq:tx"), 100)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("badger sequence: %w", err)
	}
	return &Store{db: db, seq: seq}, nil
}

func (s *Store) Close() error {
	if err := s.seq.Release(); err != nil {
		s.db.Close()
		return fmt.Errorf("release sequence: %w", err)
	}
	return s.db.Close()
}

func txKey(userID, id string) []byte { return []byte("tx:" + userID + ":" + id) }
func txPrefix(userID string) []byte  { return []byte("tx:" + userID + ":") }
func idKey(id string) []byte         { return []byte("txid:" + id) }
func userKey(id string) []byte       { return []byte("user:" + id) }
func emailKey(email string) []byte   { return []byte("email:" + email) }

func (s *Store) Create(_ context.Context, tx core.Transaction) (core.Transaction, error) {
	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = time.Now().UTC()
	}
	n, err := s.seq.Next()
	if err != nil {
		return core.Transaction{}, fmt.Errorf("next sequence: %w", err)
	}
	data, err := json.Marshal(record{Transaction: tx, Seq: n})
	if err != nil {
		return core.Transaction{}, fmt.Errorf("failed to marshal transaction: %w", err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(txKey(tx.UserID, tx.ID), data); err != nil {
			return err
		}
		return txn.Set(idKey(tx.ID), []byte(tx.UserID))
	})
	if err != nil {
		return core.Transaction{}, fmt.Errorf("failed to store transaction: %w", err)
	}
	return tx, nil
}

func (s *Store) Get(_ context.Context, id string) (core.Transaction, error) {
	var rec record
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		rec, err = getRecord(txn, id)
		return err
	})
	if err != nil {
		return core.Transaction{}, err
	}
	return rec.Transaction, nil
}

func (s *Store) UpdateFields(_ context.Context, id string, amount float64, description string) (core.Transaction, error) {
	var rec record
	err := s.db.Update(func(txn *badger.Txn) error {
		var err error
		rec, err = getRecord(txn, id)
		if err != nil {
			return err
		}
		rec.Amount = amount
		rec.Description = description
		data, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		return txn.Set(txKey(rec.UserID, id), data)
	})
	if err != nil {
		return core.Transaction{}, err
	}
	return rec.Transaction, nil
}

func (s *Store) Delete(_ context.Context, id string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		userID, err := ownerOf(txn, id)
		if err != nil {
			return err
		}
		if err := txn.Delete(txKey(userID, id)); err != nil {
			return err
		}
		return txn.Delete(idKey(id))
	})
}

func (s *Store) ListByUser(_ context.Context, userID string) ([]core.Transaction, error) {
	var recs []record
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = txPrefix(userID)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(opts.Prefix); it.ValidForPrefix(opts.Prefix); it.Next() {
			var rec record
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			}); err != nil {
				return err
			}
			recs = append(recs, rec)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}

	sort.Slice(recs, func(i, j int) bool {
		if !recs[i].CreatedAt.Equal(recs[j].CreatedAt) {
			return recs[i].CreatedAt.After(recs[j].CreatedAt)
		}
		return recs[i].Seq > recs[j].Seq
	})
	out := make([]core.Transaction, len(recs))
	for i, r := range recs {
		out[i] = r.Transaction
	}
	return out, nil
}

func ownerOf(txn *badger.Txn, id string) (string, error) {
	item, err := txn.Get(idKey(id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return "", storage.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to retrieve transaction: %w", err)
	}
	v, err := item.ValueCopy(nil)
	if err != nil {
		return "", err
	}
	return string(v), nil
}

func getRecord(txn *badger.Txn, id string) (record, error) {
	userID, err := ownerOf(txn, id)
	if err != nil {
		return record{}, err
	}
	var rec record
	if err := getJSON(txn, txKey(userID, id), &rec); err != nil {
		return record{}, err
	}
	return rec, nil
}

func getJSON(txn *badger.Txn, key []byte, dst any) error {
	item, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return storage.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("badger get: %w", err)
	}
	return item.Value(func(val []byte) error {
		return json.Unmarshal(val, dst)
	})
}

func putUser(txn *badger.Txn, u storage.User) error {
	data, err := json.Marshal(u)
	if err != nil {
		return fmt.Errorf("failed to marshal user: %w", err)
	}
	return txn.Set(userKey(u.ID), data)
}

func (s *Store) CreateUser(_ context.Context, u storage.User) (storage.User, error) {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	if u.Role == "" {
		u.Role = storage.RoleUser
	}
	err := s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(emailKey(u.Email)); err == nil {
			return storage.ErrDuplicateEmail
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		if err := putUser(txn, u); err != nil {
			return err
		}
		return txn.Set(emailKey(u.Email), []byte(u.ID))
	})
	if err != nil {
		return storage.User{}, err
	}
	return u, nil
}

func (s *Store) UserByEmail(ctx context.Context, email string) (storage.User, error) {
	var id string
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(emailKey(email))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return storage.ErrNotFound
		}
		if err != nil {
			return err
		}
		v, err := item.ValueCopy(nil)
		id = string(v)
		return err
	})
	if err != nil {
		return storage.User{}, err
	}
	return s.UserByID(ctx, id)
}

func (s *Store) UserByID(_ context.Context, id string) (storage.User, error) {
	var u storage.User
	err := s.db.View(func(txn *badger.Txn) error {
		return getJSON(txn, userKey(id), &u)
	})
	if err != nil {
		return storage.User{}, err
	}
	return u, nil
}

func (s *Store) UpdateDisplayName(_ context.Context, id, name string) (storage.User, error) {
	var u storage.User
	err := s.db.Update(func(txn *badger.Txn) error {
		if err := getJSON(txn, userKey(id), &u); err != nil {
			return err
		}
		u.FullName = name
		return putUser(txn, u)
	})
	if err != nil {
		return storage.User{}, err
	}
	return u, nil
}
