package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func newTestLimiter(t *testing.T, rps float64, burst int) (*Limiter, *time.Time) {
	t.Helper()
	rl := NewLimiter(Config{RequestsPerSecond: rps, Burst: burst})
	t.Cleanup(rl.Stop)
	clock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return clock }
	return rl, &clock
}

func TestLimiter_BurstThenRefill(t *testing.T) {
	rl, clock := newTestLimiter(t, 1, 3)

	for i := 0; i < 3; i++ {
		assert.True(t, rl.Allow("10.0.0.1"), "request %d within burst", i)
	}
	assert.False(t, rl.Allow("10.0.0.1"))

	*clock = clock.Add(time.Second)
	assert.True(t, rl.Allow("10.0.0.1"))
	assert.Equal(t, int64(1), rl.GetMetrics().TotalHits)
}

func TestLimiter_ClientsAreIndependent(t *testing.T) {
	rl, _ := newTestLimiter(t, 1, 1)

	assert.True(t, rl.Allow("a"))
	assert.False(t, rl.Allow("a"))
	assert.True(t, rl.Allow("b"))
	assert.Equal(t, 2, rl.ActiveClients())
}

func TestLimiter_CleanupStaleEntries(t *testing.T) {
	rl, clock := newTestLimiter(t, 1, 1)
	rl.Allow("old")
	*clock = clock.Add(11 * time.Minute)
	rl.Allow("fresh")

	assert.Equal(t, 1, rl.cleanupStaleEntries())
	assert.Equal(t, 1, rl.ActiveClients())
}

func TestLimiter_Middleware(t *testing.T) {
	rl, _ := newTestLimiter(t, 1, 1)
	h := rl.Middleware(func(r *http.Request) string { return "k" }, nil)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) }))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusNoContent, rr.Code)

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.Equal(t, "1", rr.Header().Get("Retry-After"))
}

func TestLimiter_StopIsIdempotent(t *testing.T) {
	rl := NewLimiter(DefaultConfig())
	rl.Stop()
	rl.Stop()
}
