package feed

import (
	"context"
	"sync"

	"cashstash/internal/auth"
	"cashstash/internal/core"
	applog "cashstash/internal/log"
	"cashstash/internal/storage"
)

// ErrNoSession is returned by Subscribe when called without a session.
var ErrNoSession = auth.ErrNoSession

// Lister is the read side a subscription needs.
type Lister interface {
	ListByUser(ctx context.Context, userID string) ([]core.Transaction, error)
}

var _ Lister = (storage.TransactionStore)(nil)

// Subscriber opens live subscriptions over a store and a Notifier.
type Subscriber struct {
	store    Lister
	notifier Notifier
	logger   *applog.Logger
}

func NewSubscriber(store Lister, notifier Notifier, logger *applog.Logger) *Subscriber {
	if logger == nil {
		logger = applog.Discard()
	}
	return &Subscriber{
		store:    store,
		notifier: notifier,
		logger:   logger.WithComponent(applog.ComponentFeed),
	}
}

// Subscription is the cancellable handle returned by Subscribe.
type Subscription struct {
	userID    string
	cancel    context.CancelFunc
	done      chan struct{}
	closeOnce sync.Once

	mu  sync.Mutex
	err error
}

// Subscribe delivers the user's full transaction list and totals to fn now
// and again after every change. Callbacks run on one goroutine, in order.
// A query error ends the subscription; it is logged and exposed by Err.
// The subscription also ends when ctx is cancelled.
func (s *Subscriber) Subscribe(ctx context.Context, sess *auth.Session, fn func(core.Snapshot)) (*Subscription, error) {
	if err := auth.Require(sess); err != nil {
		return nil, ErrNoSession
	}

	ctx, cancel := context.WithCancel(ctx)
	sub := &Subscription{
		userID: sess.UserID,
		cancel: cancel,
		done:   make(chan struct{}),
	}

	// Listen before the initial read so no change can slip between them.
	changes, stopListening := s.notifier.Listen(sess.UserID)
	go sub.run(ctx, s, changes, stopListening, fn)

	s.logger.DebugContext(ctx, "Subscription opened",
		applog.NewFields().WithUser(sess.UserID).WithOperation(applog.OpSubscribe).ToSlice()...)
	return sub, nil
}

func (sub *Subscription) run(ctx context.Context, s *Subscriber, changes <-chan core.Change, stopListening func(), fn func(core.Snapshot)) {
	defer close(sub.done)
	defer stopListening()

	if !sub.deliver(ctx, s, fn) {
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		case <-changes:
			if !sub.deliver(ctx, s, fn) {
				return
			}
		}
	}
}

func (sub *Subscription) deliver(ctx context.Context, s *Subscriber, fn func(core.Snapshot)) bool {
	if ctx.Err() != nil {
		return false
	}
	records, err := s.store.ListByUser(ctx, sub.userID)
	if err != nil {
		if ctx.Err() != nil {
			return false
		}
		s.logger.ErrorContext(ctx, "Feed query failed, subscription stopped",
			applog.NewFields().
				WithUser(sub.userID).
				WithError(err).
				WithOperation(applog.OpDeliver).
				ToSlice()...)
		sub.mu.Lock()
		sub.err = err
		sub.mu.Unlock()
		sub.cancel()
		return false
	}
	if ctx.Err() != nil {
		return false
	}
	fn(core.NewSnapshot(records))
	return true
}

// Close stops delivery and releases the listener. It is idempotent, safe on
// a nil handle, and safe to call from inside the callback. It does not wait;
// use Done for that.
func (sub *Subscription) Close() {
	if sub == nil {
		return
	}
	sub.closeOnce.Do(sub.cancel)
}

// Done is closed once the delivery goroutine has exited.
func (sub *Subscription) Done() <-chan struct{} {
	return sub.done
}

// Err returns the query error that ended the subscription, if any.
func (sub *Subscription) Err() error {
	sub.mu.Lock()
	defer sub.mu.Unlock()
	return sub.err
}

// UserID is the owner of the subscribed feed.
func (sub *Subscription) UserID() string {
	return sub.userID
}

// Watch subscribes and blocks until ctx is done or the subscription ends on
// its own. It returns the subscription's terminal error.
func (s *Subscriber) Watch(ctx context.Context, sess *auth.Session, fn func(core.Snapshot)) error {
	sub, err := s.Subscribe(ctx, sess, fn)
	if err != nil {
		return err
	}
	defer sub.Close()
	select {
	case <-ctx.Done():
	case <-sub.Done():
	}
	<-sub.Done()
	return sub.Err()
}
