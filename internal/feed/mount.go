package feed

import "sync"

// Mount scopes at most one live subscription to an owner such as a
// connection or a screen. Attaching a new subscription closes the previous
// one; closing the mount closes whatever is attached and anything attached
// afterwards.
type Mount struct {
	mu     sync.Mutex
	sub    *Subscription
	closed bool
}

func (m *Mount) Attach(sub *Subscription) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		sub.Close()
		return
	}
	prev := m.sub
	m.sub = sub
	m.mu.Unlock()

	if prev != sub {
		prev.Close()
	}
}

// Active returns the attached subscription, or nil.
func (m *Mount) Active() *Subscription {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sub
}

func (m *Mount) Close() {
	m.mu.Lock()
	prev := m.sub
	m.sub = nil
	m.closed = true
	m.mu.Unlock()

	prev.Close()
}
