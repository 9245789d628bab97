// Package cache holds the in-process TTL caches: per-user stats and the
// revoked session token set.
package cache

import (
	"sync"
	"time"

	applog "cashstash/internal/log"
)

// Cache defines a generic cache interface
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, data T)
	SetWithTTL(key string, data T, ttl time.Duration)
	Delete(key string)
	Size() int
}

// Cleaner is implemented by caches that can drop expired entries.
type Cleaner interface {
	CleanExpired() int
}

// Manager runs periodic cleanup over registered caches.
type Manager struct {
	mu          sync.Mutex
	caches      []Cleaner
	logger      *applog.Logger
	stopCleanup chan struct{}
	cleanupDone chan struct{}
	stopOnce    sync.Once
	started     bool
}

func NewManager(logger *applog.Logger) *Manager {
	if logger == nil {
		logger = applog.Discard()
	}
	return &Manager{
		logger:      logger.WithComponent(applog.ComponentCache),
		stopCleanup: make(chan struct{}),
		cleanupDone: make(chan struct{}),
	}
}

// Register adds a cache to the manager for cleanup
func (m *Manager) Register(c Cleaner) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.caches = append(m.caches, c)
}

// StartCleanup begins periodic cleanup of all registered caches
func (m *Manager) StartCleanup(interval time.Duration) {
	m.mu.Lock()
	m.started = true
	m.mu.Unlock()
	go m.cleanup(interval)
}

// CleanNow sweeps every registered cache once and returns the number of
// removed entries.
func (m *Manager) CleanNow() int {
	m.mu.Lock()
	caches := append([]Cleaner(nil), m.caches...)
	m.mu.Unlock()

	total := 0
	for _, c := range caches {
		total += c.CleanExpired()
	}
	return total
}

func (m *Manager) cleanup(interval time.Duration) {
	defer close(m.cleanupDone)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if n := m.CleanNow(); n > 0 {
				m.logger.Debug("Expired cache entries removed", applog.FieldCount, n)
			}
			m.report()
		case <-m.stopCleanup:
			return
		}
	}
}

type reporter interface {
	Metrics() Metrics
}

// Snapshot returns the metrics of every registered cache that keeps them,
// in registration order.
func (m *Manager) Snapshot() []Metrics {
	m.mu.Lock()
	caches := append([]Cleaner(nil), m.caches...)
	m.mu.Unlock()

	var out []Metrics
	for _, c := range caches {
		if r, ok := c.(reporter); ok {
			out = append(out, r.Metrics())
		}
	}
	return out
}

func (m *Manager) report() {
	for i, mt := range m.Snapshot() {
		m.logger.Debug("Cache metrics",
			"cache", i,
			"size", mt.Size,
			"hit_ratio", mt.HitRatio(),
			"evictions", mt.Evictions)
	}
}

// Stop ends the cleanup goroutine. Safe to call more than once.
func (m *Manager) Stop() {
	m.stopOnce.Do(func() {
		close(m.stopCleanup)
		m.mu.Lock()
		started := m.started
		m.mu.Unlock()
		if started {
			<-m.cleanupDone
		}
	})
}
