package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"

	applog "cashstash/internal/log"
)

// ErrBalanceBusy is returned when the per-user balance lock stays held by
// another request for longer than the retry budget.
var ErrBalanceBusy = errors.New("balance is being updated, try again")

// BalanceGuard runs the read-decide-write part of Add.
type BalanceGuard interface {
	Do(ctx context.Context, userID string, fn func(ctx context.Context) error) error
}

// AdvisoryGuard runs fn directly. Two concurrent adds for one user can both
// read the same starting balance, so the low-balance warning may be stale.
type AdvisoryGuard struct{}

func (AdvisoryGuard) Do(ctx context.Context, _ string, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

const (
	balanceLockPrefix = "cashstash:balance:"
	balanceLockTTL    = 5 * time.Second
)

// LockGuard serializes adds per user with a Redis lock so the projected
// balance always reflects earlier adds made through any server instance.
type LockGuard struct {
	locker *redislock.Client
	ttl    time.Duration
	retry  redislock.RetryStrategy
	logger *applog.Logger
}

func NewLockGuard(client *redis.Client, logger *applog.Logger) *LockGuard {
	if logger == nil {
		logger = applog.Discard()
	}
	return &LockGuard{
		locker: redislock.New(client),
		ttl:    balanceLockTTL,
		retry:  redislock.LimitRetry(redislock.LinearBackoff(50*time.Millisecond), 40),
		logger: logger.WithComponent(applog.ComponentLock),
	}
}

func (g *LockGuard) Do(ctx context.Context, userID string, fn func(ctx context.Context) error) error {
	lock, err := g.locker.Obtain(ctx, balanceLockPrefix+userID, g.ttl, &redislock.Options{
		RetryStrategy: g.retry,
	})
	if errors.Is(err, redislock.ErrNotObtained) {
		return ErrBalanceBusy
	}
	if err != nil {
		return fmt.Errorf("obtain balance lock: %w", err)
	}
	defer func() {
		if err := lock.Release(context.WithoutCancel(ctx)); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
			g.logger.WarnContext(ctx, "Failed to release balance lock",
				applog.NewFields().WithUser(userID).WithError(err).ToSlice()...)
		}
	}()
	return fn(ctx)
}
