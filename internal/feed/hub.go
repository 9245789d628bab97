// Package feed delivers live transaction snapshots to subscribers. A
// Notifier fans change events out to listeners; a Subscription turns those
// events into full recomputed snapshots for one user.
package feed

import (
	"context"
	"sync"

	"cashstash/internal/core"
)

// AllUsers passed to Listen receives changes for every user.
const AllUsers = ""

// Notifier carries change events from writers to listeners.
type Notifier interface {
	Publish(ctx context.Context, c core.Change) error
	// Listen registers interest in userID's changes. The returned cancel
	// releases the listener; the channel is never closed.
	Listen(userID string) (<-chan core.Change, func())
}

type listener struct {
	userID  string
	mu      sync.Mutex
	pending []core.Change
	signal  chan struct{}
	out     chan core.Change
	done    chan struct{}
}

// Hub is the in-process Notifier. Publish never blocks and never drops a
// change: each listener buffers pending changes and a pump goroutine hands
// them over in order.
type Hub struct {
	mu        sync.RWMutex
	listeners map[*listener]struct{}
}

func NewHub() *Hub {
	return &Hub{listeners: make(map[*listener]struct{})}
}

func (h *Hub) Publish(_ context.Context, c core.Change) error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for l := range h.listeners {
		if l.userID != AllUsers && l.userID != c.UserID {
			continue
		}
		l.mu.Lock()
		l.pending = append(l.pending, c)
		l.mu.Unlock()
		select {
		case l.signal <- struct{}{}:
		default:
		}
	}
	return nil
}

func (h *Hub) Listen(userID string) (<-chan core.Change, func()) {
	l := &listener{
		userID: userID,
		signal: make(chan struct{}, 1),
		out:    make(chan core.Change),
		done:   make(chan struct{}),
	}
	h.mu.Lock()
	h.listeners[l] = struct{}{}
	h.mu.Unlock()

	go l.pump()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.listeners, l)
			h.mu.Unlock()
			close(l.done)
		})
	}
	return l.out, cancel
}

// Listeners returns the number of registered listeners.
func (h *Hub) Listeners() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.listeners)
}

func (l *listener) pump() {
	for {
		select {
		case <-l.done:
			return
		case <-l.signal:
		}
		l.mu.Lock()
		batch := l.pending
		l.pending = nil
		l.mu.Unlock()

		for _, c := range batch {
			select {
			case l.out <- c:
			case <-l.done:
				return
			}
		}
	}
}
