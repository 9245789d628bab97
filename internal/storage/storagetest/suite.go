// Package storagetest holds the behaviour every storage.Store backend must
// share. Backend packages call Run from their own tests.
package storagetest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cashstash/internal/core"
	"cashstash/internal/storage"
)

// Run exercises newStore with the shared backend contract. newStore must
// return an empty store; Run closes it.
func Run(t *testing.T, newStore func(t *testing.T) storage.Store) {
	t.Run("create assigns id and timestamp", func(t *testing.T) {
		s := open(t, newStore)
		ctx := context.Background()

		saved, err := s.Create(ctx, expense("u1", 1200, core.CatFoodDrinks))
		require.NoError(t, err)
		assert.NotEmpty(t, saved.ID)
		assert.False(t, saved.CreatedAt.IsZero())

		got, err := s.Get(ctx, saved.ID)
		require.NoError(t, err)
		assert.Equal(t, saved.ID, got.ID)
		assert.Equal(t, core.Expense, got.Type)
		assert.Equal(t, 1200.0, got.Amount)
		assert.Equal(t, "Food & Drinks", got.CategoryName)
		assert.True(t, saved.CreatedAt.Equal(got.CreatedAt))
	})

	t.Run("get missing", func(t *testing.T) {
		s := open(t, newStore)
		_, err := s.Get(context.Background(), "nope")
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("list is per user and newest first", func(t *testing.T) {
		s := open(t, newStore)
		ctx := context.Background()
		base := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

		for i, amount := range []float64{10, 20, 30} {
			tx := expense("u1", amount, core.CatTransport)
			tx.CreatedAt = base.Add(time.Duration(i) * time.Minute)
			_, err := s.Create(ctx, tx)
			require.NoError(t, err)
		}
		_, err := s.Create(ctx, expense("u2", 99, core.CatShopping))
		require.NoError(t, err)

		list, err := s.ListByUser(ctx, "u1")
		require.NoError(t, err)
		require.Len(t, list, 3)
		assert.Equal(t, []float64{30, 20, 10}, []float64{list[0].Amount, list[1].Amount, list[2].Amount})

		empty, err := s.ListByUser(ctx, "nobody")
		require.NoError(t, err)
		assert.Empty(t, empty)
	})

	t.Run("same timestamp keeps last insert first", func(t *testing.T) {
		s := open(t, newStore)
		ctx := context.Background()
		at := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

		for _, amount := range []float64{1, 2} {
			tx := expense("u1", amount, core.CatTransport)
			tx.CreatedAt = at
			_, err := s.Create(ctx, tx)
			require.NoError(t, err)
		}
		list, err := s.ListByUser(ctx, "u1")
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, 2.0, list[0].Amount)
	})

	t.Run("update changes amount and description only", func(t *testing.T) {
		s := open(t, newStore)
		ctx := context.Background()

		saved, err := s.Create(ctx, expense("u1", 300, core.CatFoodDrinks))
		require.NoError(t, err)

		updated, err := s.UpdateFields(ctx, saved.ID, 450, "dinner")
		require.NoError(t, err)
		assert.Equal(t, 450.0, updated.Amount)
		assert.Equal(t, "dinner", updated.Description)
		assert.Equal(t, saved.Type, updated.Type)
		assert.Equal(t, saved.CategoryID, updated.CategoryID)
		assert.Equal(t, saved.UserID, updated.UserID)
		assert.True(t, saved.CreatedAt.Equal(updated.CreatedAt))

		_, err = s.UpdateFields(ctx, "nope", 1, "")
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("delete", func(t *testing.T) {
		s := open(t, newStore)
		ctx := context.Background()

		saved, err := s.Create(ctx, expense("u1", 5, core.CatEducation))
		require.NoError(t, err)
		require.NoError(t, s.Delete(ctx, saved.ID))

		_, err = s.Get(ctx, saved.ID)
		assert.ErrorIs(t, err, storage.ErrNotFound)
		assert.ErrorIs(t, s.Delete(ctx, saved.ID), storage.ErrNotFound)

		list, err := s.ListByUser(ctx, "u1")
		require.NoError(t, err)
		assert.Empty(t, list)
	})

	t.Run("users", func(t *testing.T) {
		s := open(t, newStore)
		ctx := context.Background()

		u, err := s.CreateUser(ctx, storage.User{FullName: "Nimal Perera", Email: "nimal@example.com", PasswordHash: "hash"})
		require.NoError(t, err)
		assert.NotEmpty(t, u.ID)
		assert.Equal(t, storage.RoleUser, u.Role)

		_, err = s.CreateUser(ctx, storage.User{FullName: "Other", Email: "nimal@example.com", PasswordHash: "x"})
		assert.ErrorIs(t, err, storage.ErrDuplicateEmail)

		byEmail, err := s.UserByEmail(ctx, "nimal@example.com")
		require.NoError(t, err)
		assert.Equal(t, u.ID, byEmail.ID)
		assert.Equal(t, "hash", byEmail.PasswordHash)

		renamed, err := s.UpdateDisplayName(ctx, u.ID, "Nimal P.")
		require.NoError(t, err)
		assert.Equal(t, "Nimal P.", renamed.FullName)
		assert.Equal(t, "nimal@example.com", renamed.Email)

		byID, err := s.UserByID(ctx, u.ID)
		require.NoError(t, err)
		assert.Equal(t, "Nimal P.", byID.FullName)

		_, err = s.UserByID(ctx, "missing")
		assert.ErrorIs(t, err, storage.ErrNotFound)
		_, err = s.UserByEmail(ctx, "missing@example.com")
		assert.ErrorIs(t, err, storage.ErrNotFound)
		_, err = s.UpdateDisplayName(ctx, "missing", "x")
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})
}

func open(t *testing.T, newStore func(t *testing.T) storage.Store) storage.Store {
	t.Helper()
	s := newStore(t)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func expense(userID string, amount float64, cat core.CategoryID) core.Transaction {
	tx, err := core.NewTransaction(userID, core.Expense, amount, "", cat)
	if err != nil {
		panic(err)
	}
	return tx
}
