package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"cashstash/internal/auth"
	"cashstash/internal/core"
	"cashstash/internal/feed"
	"cashstash/internal/services"
	"cashstash/internal/storage"
	"cashstash/internal/storage/memory"
)

type testEnv struct {
	srv   *Server
	hub   *feed.Hub
	store *memory.Store
}

func newTestEnv(t *testing.T, ready ...ReadinessCheck) *testEnv {
	t.Helper()
	store := memory.NewStore()
	hub := feed.NewHub()
	observed := storage.NewObserved(store, hub, nil)

	identity := auth.NewService(store,
		auth.NewTokenIssuer("test-secret-0123456789", time.Hour),
		auth.NewMemoryRevocations(),
		nil,
		auth.WithHashCost(bcrypt.MinCost))
	ledger := services.NewTransactionService(observed, store, nil)

	srv := NewServer(":0", Deps{
		Ledger:   ledger,
		Identity: identity,
		Feed:     feed.NewSubscriber(observed, hub, nil),
		Ready:    ready,
	}, Options{RateLimitRPS: 1000, RateLimitBurst: 1000})
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return &testEnv{srv: srv, hub: hub, store: store}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else {
			require.NoError(t, json.NewEncoder(&buf).Encode(body))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.RemoteAddr = "203.0.113.10:5000"
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	e.srv.Handler.ServeHTTP(rr, req)
	return rr
}

func (e *testEnv) register(t *testing.T, email string) string {
	t.Helper()
	rr := e.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"fullname":         "Nimal Perera",
		"email":            email,
		"password":         "secret1",
		"confirm_password": "secret1",
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	var resp SessionResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Token)
	return resp.Token
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v), rr.Body.String())
	return v
}

func TestHealthAndReady(t *testing.T) {
	env := newTestEnv(t)
	for _, path := range []string{"/healthz", "/readyz"} {
		rr := env.do(t, http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusOK, rr.Code, path)
	}

	failing := newTestEnv(t, func(context.Context) error { return errors.New("db down") })
	rr := failing.do(t, http.MethodGet, "/readyz", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestAuthFlow(t *testing.T) {
	env := newTestEnv(t)
	token := env.register(t, "Nimal@Example.com")

	rr := env.do(t, http.MethodGet, "/api/me", token, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	me := decode[SessionResponse](t, rr)
	assert.Equal(t, "nimal@example.com", me.Email)
	assert.Equal(t, "Nimal Perera", me.DisplayName)
	assert.Empty(t, me.Token)

	rr = env.do(t, http.MethodPatch, "/api/me", token, map[string]string{"fullname": "Nimal P."})
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "Nimal P.", decode[SessionResponse](t, rr).DisplayName)

	rr = env.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"email": "nimal@example.com", "password": "wrong1"})
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = env.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"email": "nimal@example.com", "password": "secret1"})
	require.Equal(t, http.StatusOK, rr.Code)
	second := decode[SessionResponse](t, rr).Token

	rr = env.do(t, http.MethodPost, "/api/auth/logout", second, nil)
	assert.Equal(t, http.StatusNoContent, rr.Code)
	rr = env.do(t, http.MethodGet, "/api/me", second, nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code, "revoked token")

	rr = env.do(t, http.MethodGet, "/api/me", token, nil)
	assert.Equal(t, http.StatusOK, rr.Code, "other sessions survive logout")
}

func TestRegisterValidation(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "taken@example.com")

	tests := []struct {
		name    string
		body    any
		status  int
		message string
	}{
		{"mismatch", map[string]string{"fullname": "A", "email": "a@example.com", "password": "secret1", "confirm_password": "secret2"}, http.StatusBadRequest, auth.ErrPasswordMismatch.Error()},
		{"weak", map[string]string{"fullname": "A", "email": "a@example.com", "password": "abc", "confirm_password": "abc"}, http.StatusBadRequest, auth.ErrWeakPassword.Error()},
		{"duplicate", map[string]string{"fullname": "A", "email": "TAKEN@example.com", "password": "secret1", "confirm_password": "secret1"}, http.StatusBadRequest, auth.ErrEmailTaken.Error()},
		{"bad email", map[string]string{"fullname": "A", "email": "nope", "password": "secret1", "confirm_password": "secret1"}, http.StatusBadRequest, msgRegister},
		{"unknown field", `{"fullname":"A","email":"a@example.com","password":"secret1","confirm_password":"secret1","role":"ADMIN"}`, http.StatusBadRequest, msgRegister},
		{"not json", "fullname=A", http.StatusBadRequest, msgRegister},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := env.do(t, http.MethodPost, "/api/auth/register", "", tt.body)
			assert.Equal(t, tt.status, rr.Code)
			assert.Equal(t, tt.message, decode[ErrorResponse](t, rr).Error)
		})
	}
}

func TestPrivateRoutesRequireSession(t *testing.T) {
	env := newTestEnv(t)
	for _, path := range []string{"/api/me", "/api/transactions", "/api/summary", "/api/stats", "/api/balance"} {
		rr := env.do(t, http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, rr.Code, path)
		rr = env.do(t, http.MethodGet, path, "garbage", nil)
		assert.Equal(t, http.StatusUnauthorized, rr.Code, path)
	}
}

func TestTransactionLifecycle(t *testing.T) {
	env := newTestEnv(t)
	token := env.register(t, "flow@example.com")

	rr := env.do(t, http.MethodPost, "/api/transactions", token, map[string]any{
		"type": "income", "amount": 5000, "description": "March salary", "category_id": "inc-1",
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	assert.Nil(t, decode[CreateTransactionResponse](t, rr).Warning)

	rr = env.do(t, http.MethodPost, "/api/transactions", token, map[string]any{
		"type": "expense", "amount": "4600", "description": "rent", "category_id": "exp-4",
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	created := decode[CreateTransactionResponse](t, rr)
	require.NotNil(t, created.Warning)
	assert.InDelta(t, 400, created.Warning.Balance, 1e-9)
	assert.Equal(t, "Low balance: LKR 400.00 remaining.", created.Warning.Message)
	assert.Equal(t, "-LKR 4,600.00", created.Transaction.Display)
	rentID := created.Transaction.ID

	rr = env.do(t, http.MethodPatch, "/api/transactions/"+rentID, token, map[string]any{"amount": "4,000.50", "description": "rent (fixed)"})
	require.Equal(t, http.StatusBadRequest, rr.Code, "thousands separators are not decimals")

	rr = env.do(t, http.MethodPatch, "/api/transactions/"+rentID, token, map[string]any{"amount": "4000,50", "description": "rent (fixed)"})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	updated := decode[TransactionResponse](t, rr)
	assert.InDelta(t, 4000.5, updated.Amount, 1e-9)
	assert.Equal(t, core.Expense, updated.Type)
	assert.Equal(t, core.CatRentBills, updated.CategoryID)

	rr = env.do(t, http.MethodGet, "/api/balance", token, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "LKR 999.50", decode[BalanceResponse](t, rr).Display)

	rr = env.do(t, http.MethodGet, "/api/summary", token, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	sum := decode[SummaryResponse](t, rr)
	assert.Equal(t, "Nimal Perera", sum.DisplayName)
	assert.Len(t, sum.Recent, 2)
	assert.InDelta(t, 5000, sum.Totals.Income, 1e-9)

	rr = env.do(t, http.MethodDelete, "/api/transactions/"+rentID, token, nil)
	assert.Equal(t, http.StatusNoContent, rr.Code)
	rr = env.do(t, http.MethodDelete, "/api/transactions/"+rentID, token, nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestTransactionOwnership(t *testing.T) {
	env := newTestEnv(t)
	alice := env.register(t, "alice@example.com")
	bob := env.register(t, "bob@example.com")

	rr := env.do(t, http.MethodPost, "/api/transactions", alice, map[string]any{"type": "expense", "amount": 10, "category_id": "exp-1"})
	require.Equal(t, http.StatusCreated, rr.Code)
	id := decode[CreateTransactionResponse](t, rr).Transaction.ID

	rr = env.do(t, http.MethodPatch, "/api/transactions/"+id, bob, map[string]any{"amount": 1})
	assert.Equal(t, http.StatusNotFound, rr.Code)
	rr = env.do(t, http.MethodDelete, "/api/transactions/"+id, bob, nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = env.do(t, http.MethodGet, "/api/transactions", bob, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, 0, decode[ListResponse](t, rr).Total)
}

func TestCreateTransactionValidation(t *testing.T) {
	env := newTestEnv(t)
	token := env.register(t, "v@example.com")

	tests := []struct {
		name    string
		body    map[string]any
		message string
	}{
		{"zero amount", map[string]any{"type": "expense", "amount": 0, "category_id": "exp-1"}, core.ErrInvalidAmount.Error()},
		{"negative amount", map[string]any{"type": "expense", "amount": "-5", "category_id": "exp-1"}, core.ErrInvalidAmount.Error()},
		{"text amount", map[string]any{"type": "expense", "amount": "abc", "category_id": "exp-1"}, core.ErrInvalidAmount.Error()},
		{"bad type", map[string]any{"type": "transfer", "amount": 5}, msgSaveTx},
		{"category of other type", map[string]any{"type": "income", "amount": 5, "category_id": "exp-1"}, core.ErrInvalidCategory.Error()},
		{"unknown category", map[string]any{"type": "expense", "amount": 5, "category_id": "exp-99"}, core.ErrInvalidCategory.Error()},
		{"long description", map[string]any{"type": "expense", "amount": 5, "description": strings.Repeat("x", 201)}, msgSaveTx},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := env.do(t, http.MethodPost, "/api/transactions", token, tt.body)
			assert.Equal(t, http.StatusBadRequest, rr.Code, rr.Body.String())
			assert.Equal(t, tt.message, decode[ErrorResponse](t, rr).Error)
		})
	}
}

func TestCreateTransaction_DefaultCategory(t *testing.T) {
	env := newTestEnv(t)
	token := env.register(t, "d@example.com")

	rr := env.do(t, http.MethodPost, "/api/transactions", token, map[string]any{"type": "expense", "amount": 12.5})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	tx := decode[CreateTransactionResponse](t, rr).Transaction
	assert.Equal(t, core.CatFoodDrinks, tx.CategoryID)
	assert.Equal(t, "Food & Drinks", tx.CategoryName)
	assert.Equal(t, "fast-food-outline", tx.Icon)
}

func TestListPagination(t *testing.T) {
	env := newTestEnv(t)
	token := env.register(t, "p@example.com")
	for i := 0; i < 7; i++ {
		rr := env.do(t, http.MethodPost, "/api/transactions", token, map[string]any{"type": "income", "amount": i + 1, "category_id": "inc-2"})
		require.Equal(t, http.StatusCreated, rr.Code)
	}

	rr := env.do(t, http.MethodGet, "/api/transactions", token, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	first := decode[ListResponse](t, rr)
	assert.Len(t, first.Items, services.DefaultPageSize)
	assert.True(t, first.HasMore)
	assert.InDelta(t, 7, first.Items[0].Amount, 1e-9, "newest first")

	rr = env.do(t, http.MethodGet, "/api/transactions?offset=5&limit=10", token, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	rest := decode[ListResponse](t, rr)
	assert.Len(t, rest.Items, 2)
	assert.False(t, rest.HasMore)

	rr = env.do(t, http.MethodGet, "/api/transactions?offset=-1", token, nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestStatsPie(t *testing.T) {
	env := newTestEnv(t)
	token := env.register(t, "s@example.com")
	for _, body := range []map[string]any{
		{"type": "income", "amount": 5000, "category_id": "inc-1"},
		{"type": "expense", "amount": 1200, "category_id": "exp-1"},
		{"type": "expense", "amount": 300, "category_id": "exp-1"},
		{"type": "expense", "amount": 500, "category_id": "exp-2"},
	} {
		rr := env.do(t, http.MethodPost, "/api/transactions", token, body)
		require.Equal(t, http.StatusCreated, rr.Code)
	}

	rr := env.do(t, http.MethodGet, "/api/stats", token, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	stats := decode[StatsResponse](t, rr)

	assert.Equal(t, "Food & Drinks", stats.TopCategory)
	assert.InDelta(t, 60, stats.SavingsRatio, 1e-9)
	require.Len(t, stats.Pie, 2)
	assert.Equal(t, piePalette[0], stats.Pie[0].Color)
	assert.Equal(t, piePalette[1], stats.Pie[1].Color)
	assert.InDelta(t, 75, stats.Pie[0].Percent, 1e-9)
	assert.InDelta(t, 25, stats.Pie[1].Percent, 1e-9)
}

func TestNewStatsResponse_PaletteWraps(t *testing.T) {
	var b core.Breakdown
	for i := 0; i < 6; i++ {
		b = append(b, core.CategoryAmount{Name: string(rune('A' + i)), Amount: 1})
	}
	resp := newStatsResponse(core.Stats{Breakdown: b})
	assert.Equal(t, piePalette[0], resp.Pie[5].Color)

	empty := newStatsResponse(core.Stats{Breakdown: core.Breakdown{}, TopCategory: core.NoTopCategory})
	assert.Empty(t, empty.Pie)
	assert.Equal(t, "None", empty.TopCategory)
}

func TestCategories(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, http.MethodGet, "/api/categories", "", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, decode[[]core.Category](t, rr), 12)

	rr = env.do(t, http.MethodGet, "/api/categories?type=income", "", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	body := decode[struct {
		Categories []core.Category `json:"categories"`
		Default    core.CategoryID `json:"default"`
	}](t, rr)
	assert.Len(t, body.Categories, 6)
	assert.Equal(t, core.CatSalary, body.Default)

	rr = env.do(t, http.MethodGet, "/api/categories?type=loan", "", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestRateLimit(t *testing.T) {
	srv := NewServer(":0", Deps{}, Options{RateLimitRPS: 1, RateLimitBurst: 2})
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		rr := httptest.NewRecorder()
		srv.Handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/categories", nil))
		codes = append(codes, rr.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}

func TestResponsesCarryRequestIDAndSecurityHeaders(t *testing.T) {
	env := newTestEnv(t)
	rr := env.do(t, http.MethodGet, "/api/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.NotEmpty(t, rr.Header().Get("X-Request-ID"))
	assert.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, rr.Header().Get("X-Request-ID"), decode[ErrorResponse](t, rr).RequestID)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{auth.ErrNoSession, http.StatusUnauthorized},
		{feed.ErrNoSession, http.StatusUnauthorized},
		{storage.ErrNotFound, http.StatusNotFound},
		{services.ErrBalanceBusy, http.StatusTooManyRequests},
		{core.ErrInvalidAmount, http.StatusBadRequest},
		{errors.New("disk on fire"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.err), tt.err.Error())
	}
}
