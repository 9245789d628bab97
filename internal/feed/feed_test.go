package feed

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cashstash/internal/auth"
	"cashstash/internal/core"
	"cashstash/internal/storage"
	"cashstash/internal/storage/memory"
)

const waitFor = 2 * time.Second

type fixture struct {
	hub   *Hub
	store *storage.Observed
	sub   *Subscriber
	sess  *auth.Session
}

func newFixture() fixture {
	hub := NewHub()
	store := storage.NewObserved(memory.NewStore(), hub, nil)
	return fixture{
		hub:   hub,
		store: store,
		sub:   NewSubscriber(store, hub, nil),
		sess:  &auth.Session{UserID: "u1", DisplayName: "Test"},
	}
}

func (f fixture) add(t *testing.T, userID string, typ core.TransactionType, amount float64, cat core.CategoryID) core.Transaction {
	t.Helper()
	tx, err := core.NewTransaction(userID, typ, amount, "", cat)
	require.NoError(t, err)
	saved, err := f.store.Create(context.Background(), tx)
	require.NoError(t, err)
	return saved
}

func collect() (chan core.Snapshot, func(core.Snapshot)) {
	ch := make(chan core.Snapshot, 64)
	return ch, func(s core.Snapshot) { ch <- s }
}

func next(t *testing.T, ch <-chan core.Snapshot) core.Snapshot {
	t.Helper()
	select {
	case s := <-ch:
		return s
	case <-time.After(waitFor):
		t.Fatal("timed out waiting for snapshot")
		return core.Snapshot{}
	}
}

func assertQuiet(t *testing.T, ch <-chan core.Snapshot) {
	t.Helper()
	select {
	case s := <-ch:
		t.Fatalf("unexpected snapshot: %+v", s)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSubscribeWithoutSession(t *testing.T) {
	f := newFixture()
	sub, err := f.sub.Subscribe(context.Background(), nil, func(core.Snapshot) {})
	assert.Nil(t, sub)
	assert.ErrorIs(t, err, ErrNoSession)
	assert.Equal(t, 0, f.hub.Listeners())
}

func TestSubscribeDeliversInitialAndEveryChange(t *testing.T) {
	f := newFixture()
	f.add(t, "u1", core.Income, 5000, core.CatSalary)

	ch, fn := collect()
	sub, err := f.sub.Subscribe(context.Background(), f.sess, fn)
	require.NoError(t, err)
	defer sub.Close()

	initial := next(t, ch)
	require.Len(t, initial.Transactions, 1)
	assert.Equal(t, core.Totals{Income: 5000, Balance: 5000}, initial.Totals)

	food := f.add(t, "u1", core.Expense, 1200, core.CatFoodDrinks)
	afterAdd := next(t, ch)
	require.Len(t, afterAdd.Transactions, 2)
	assert.Equal(t, food.ID, afterAdd.Transactions[0].ID, "newest first")
	assert.Equal(t, core.Totals{Income: 5000, Expense: 1200, Balance: 3800}, afterAdd.Totals)

	_, err = f.store.UpdateFields(context.Background(), food.ID, 1500, "dinner")
	require.NoError(t, err)
	afterUpdate := next(t, ch)
	assert.Equal(t, 1500.0, afterUpdate.Totals.Expense)

	require.NoError(t, f.store.Delete(context.Background(), food.ID))
	afterDelete := next(t, ch)
	assert.Len(t, afterDelete.Transactions, 1)
	assert.Equal(t, 0.0, afterDelete.Totals.Expense)
}

func TestSubscribeIgnoresOtherUsers(t *testing.T) {
	f := newFixture()
	ch, fn := collect()
	sub, err := f.sub.Subscribe(context.Background(), f.sess, fn)
	require.NoError(t, err)
	defer sub.Close()

	next(t, ch)
	f.add(t, "u2", core.Expense, 10, core.CatTransport)
	assertQuiet(t, ch)
}

func TestSubscribeOneSnapshotPerChange(t *testing.T) {
	f := newFixture()
	ch, fn := collect()
	sub, err := f.sub.Subscribe(context.Background(), f.sess, fn)
	require.NoError(t, err)
	defer sub.Close()
	next(t, ch)

	for i := 0; i < 5; i++ {
		f.add(t, "u1", core.Expense, 1, core.CatTransport)
	}
	for i := 0; i < 5; i++ {
		next(t, ch)
	}
	assertQuiet(t, ch)
}

func TestCloseStopsDelivery(t *testing.T) {
	f := newFixture()
	ch, fn := collect()
	sub, err := f.sub.Subscribe(context.Background(), f.sess, fn)
	require.NoError(t, err)
	next(t, ch)

	sub.Close()
	sub.Close()
	<-sub.Done()

	f.add(t, "u1", core.Expense, 10, core.CatTransport)
	assertQuiet(t, ch)
	assert.NoError(t, sub.Err())
	assert.Equal(t, 0, f.hub.Listeners())

	var nilSub *Subscription
	nilSub.Close()
}

func TestContextCancelStopsDelivery(t *testing.T) {
	f := newFixture()
	ctx, cancel := context.WithCancel(context.Background())
	ch, fn := collect()
	sub, err := f.sub.Subscribe(ctx, f.sess, fn)
	require.NoError(t, err)
	next(t, ch)

	cancel()
	select {
	case <-sub.Done():
	case <-time.After(waitFor):
		t.Fatal("subscription did not stop")
	}
}

type failingLister struct{ calls atomic.Int32 }

func (l *failingLister) ListByUser(context.Context, string) ([]core.Transaction, error) {
	l.calls.Add(1)
	return nil, errors.New("store unavailable")
}

func TestQueryErrorEndsSubscription(t *testing.T) {
	hub := NewHub()
	lister := &failingLister{}
	s := NewSubscriber(lister, hub, nil)

	ch, fn := collect()
	sub, err := s.Subscribe(context.Background(), &auth.Session{UserID: "u1"}, fn)
	require.NoError(t, err)

	select {
	case <-sub.Done():
	case <-time.After(waitFor):
		t.Fatal("subscription did not stop after error")
	}
	assert.EqualError(t, sub.Err(), "store unavailable")
	assertQuiet(t, ch)

	_ = hub.Publish(context.Background(), core.Change{UserID: "u1"})
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(1), lister.calls.Load(), "no retry after failure")
}

func TestMountKeepsOneSubscription(t *testing.T) {
	f := newFixture()
	var m Mount

	first, err := f.sub.Subscribe(context.Background(), f.sess, func(core.Snapshot) {})
	require.NoError(t, err)
	m.Attach(first)

	second, err := f.sub.Subscribe(context.Background(), f.sess, func(core.Snapshot) {})
	require.NoError(t, err)
	m.Attach(second)

	select {
	case <-first.Done():
	case <-time.After(waitFor):
		t.Fatal("previous subscription was not closed")
	}
	assert.Same(t, second, m.Active())

	m.Close()
	<-second.Done()
	assert.Nil(t, m.Active())

	third, err := f.sub.Subscribe(context.Background(), f.sess, func(core.Snapshot) {})
	require.NoError(t, err)
	m.Attach(third)
	<-third.Done()
	assert.Nil(t, m.Active())
}

func TestWatchReturnsWhenContextEnds(t *testing.T) {
	f := newFixture()
	ctx, cancel := context.WithCancel(context.Background())
	ch, fn := collect()

	errCh := make(chan error, 1)
	go func() { errCh <- f.sub.Watch(ctx, f.sess, fn) }()

	next(t, ch)
	cancel()
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(waitFor):
		t.Fatal("Watch did not return")
	}
}

func TestHubAllUsersListener(t *testing.T) {
	hub := NewHub()
	changes, cancel := hub.Listen(AllUsers)
	defer cancel()

	for _, u := range []string{"a", "b"} {
		require.NoError(t, hub.Publish(context.Background(), core.Change{UserID: u}))
	}
	for _, want := range []string{"a", "b"} {
		select {
		case c := <-changes:
			assert.Equal(t, want, c.UserID)
		case <-time.After(waitFor):
			t.Fatal("missing change")
		}
	}
}
