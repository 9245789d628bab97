package main

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cashstash/internal/core"
	"cashstash/internal/storage"
	"cashstash/internal/storage/memory"
)

func seed(t *testing.T) (*memory.Store, string) {
	t.Helper()
	ctx := context.Background()
	store := memory.NewStore()
	u, err := store.CreateUser(ctx, storage.User{FullName: "Nimal", Email: "nimal@example.com", Role: storage.RoleUser})
	require.NoError(t, err)

	for _, in := range []struct {
		typ    core.TransactionType
		amount float64
		cat    core.CategoryID
	}{
		{core.Income, 5000, core.CatSalary},
		{core.Expense, 1200, core.CatFoodDrinks},
		{core.Expense, 300, core.CatFoodDrinks},
	} {
		tx, err := core.NewTransaction(u.ID, in.typ, in.amount, "", in.cat)
		require.NoError(t, err)
		_, err = store.Create(ctx, tx)
		require.NoError(t, err)
	}
	return store, u.ID
}

func TestResolveUser(t *testing.T) {
	store, id := seed(t)
	ctx := context.Background()

	got, err := resolveUser(ctx, store, " "+id+" ", "")
	require.NoError(t, err)
	assert.Equal(t, id, got)

	got, err = resolveUser(ctx, store, "", "Nimal@Example.com")
	require.NoError(t, err)
	assert.Equal(t, id, got)

	_, err = resolveUser(ctx, store, "", "nobody@example.com")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestWriteText(t *testing.T) {
	store, id := seed(t)
	r, err := buildReport(context.Background(), store, id, time.Now())
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, writeText(&buf, r))
	out := buf.String()
	assert.Contains(t, out, "LKR 5,000.00")
	assert.Contains(t, out, "LKR 1,500.00")
	assert.Contains(t, out, "LKR 3,500.00")
	assert.Contains(t, out, "Food & Drinks")
	assert.Contains(t, out, "100.0%")
	assert.Contains(t, out, "70.0%")
}

func TestWriteJSON(t *testing.T) {
	store, id := seed(t)
	r, err := buildReport(context.Background(), store, id, time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC))
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, writeJSON(&buf, r))

	var got struct {
		UserID       string      `json:"user_id"`
		Count        int         `json:"transactions"`
		Totals       core.Totals `json:"totals"`
		TopCategory  string      `json:"top_category"`
		SavingsRatio float64     `json:"savings_ratio"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, id, got.UserID)
	assert.Equal(t, 3, got.Count)
	assert.Equal(t, core.Totals{Income: 5000, Expense: 1500, Balance: 3500}, got.Totals)
	assert.Equal(t, "Food & Drinks", got.TopCategory)
	assert.InDelta(t, 70.0, got.SavingsRatio, 1e-9)
}

func TestEmptyReport(t *testing.T) {
	r, err := buildReport(context.Background(), memory.NewStore(), "ghost", time.Now())
	require.NoError(t, err)
	assert.Equal(t, core.NoTopCategory, r.TopCategory)

	var buf bytes.Buffer
	require.NoError(t, writeText(&buf, r))
	assert.NotContains(t, buf.String(), "Category")
}
