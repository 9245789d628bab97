package ratelimit

import (
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// Limiter keeps one token bucket per client key.
type Limiter struct {
	mu           sync.Mutex
	clients      map[string]*clientInfo
	stopCleanup  chan struct{}
	shutdownOnce sync.Once

	// Configuration
	rps             rate.Limit
	burst           int
	cleanupInterval time.Duration
	idleTimeout     time.Duration

	hits int64
	now  func() time.Time
}

type clientInfo struct {
	limiter     *rate.Limiter
	lastRequest time.Time
}

// Config holds rate limiter configuration
type Config struct {
	RequestsPerSecond float64
	Burst             int
	CleanupInterval   time.Duration
	IdleTimeout       time.Duration
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		RequestsPerSecond: 10,
		Burst:             20,
		CleanupInterval:   5 * time.Minute,
		IdleTimeout:       10 * time.Minute,
	}
}

// NewLimiter creates a limiter and starts its cleanup goroutine. Call Stop
// to release it.
func NewLimiter(config Config) *Limiter {
	def := DefaultConfig()
	if config.RequestsPerSecond <= 0 {
		config.RequestsPerSecond = def.RequestsPerSecond
	}
	if config.Burst <= 0 {
		config.Burst = def.Burst
	}
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = def.CleanupInterval
	}
	if config.IdleTimeout <= 0 {
		config.IdleTimeout = def.IdleTimeout
	}

	rl := &Limiter{
		clients:         make(map[string]*clientInfo),
		stopCleanup:     make(chan struct{}),
		rps:             rate.Limit(config.RequestsPerSecond),
		burst:           config.Burst,
		cleanupInterval: config.CleanupInterval,
		idleTimeout:     config.IdleTimeout,
		now:             time.Now,
	}
	go rl.startCleanup()
	return rl
}

// Allow reports whether one more request from key fits its bucket.
func (rl *Limiter) Allow(key string) bool {
	rl.mu.Lock()
	now := rl.now()
	client, exists := rl.clients[key]
	if !exists {
		client = &clientInfo{limiter: rate.NewLimiter(rl.rps, rl.burst)}
		rl.clients[key] = client
	}
	client.lastRequest = now
	rl.mu.Unlock()

	if client.limiter.AllowN(now, 1) {
		return true
	}
	atomic.AddInt64(&rl.hits, 1)
	return false
}

// startCleanup runs periodic cleanup to remove stale client entries
func (rl *Limiter) startCleanup() {
	ticker := time.NewTicker(rl.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanupStaleEntries()
		case <-rl.stopCleanup:
			return
		}
	}
}

func (rl *Limiter) cleanupStaleEntries() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := rl.now().Add(-rl.idleTimeout)
	removed := 0
	for key, client := range rl.clients {
		if client.lastRequest.Before(cutoff) {
			delete(rl.clients, key)
			removed++
		}
	}
	return removed
}

// ActiveClients returns the number of currently tracked clients
func (rl *Limiter) ActiveClients() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.clients)
}

// Stop gracefully shuts down the rate limiter cleanup goroutine
func (rl *Limiter) Stop() {
	rl.shutdownOnce.Do(func() {
		close(rl.stopCleanup)
	})
}

// Metrics for monitoring rate limit performance
type Metrics struct {
	TotalHits   int64
	ClientCount int64
}

func (rl *Limiter) GetMetrics() Metrics {
	return Metrics{
		TotalHits:   atomic.LoadInt64(&rl.hits),
		ClientCount: int64(rl.ActiveClients()),
	}
}

// Middleware rejects requests over the limit. onLimit writes the response
// for rejected requests; nil falls back to a plain 429.
func (rl *Limiter) Middleware(extractKey func(*http.Request) string, onLimit func(http.ResponseWriter, *http.Request)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !rl.Allow(extractKey(r)) {
				w.Header().Set("Retry-After", "1")
				if onLimit != nil {
					onLimit(w, r)
				} else {
					http.Error(w, "Rate limit exceeded. Please try again later.", http.StatusTooManyRequests)
				}
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
