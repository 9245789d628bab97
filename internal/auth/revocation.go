package auth

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"cashstash/internal/cache"
)

// Revocations remembers logged-out token ids until the token would have
// expired anyway. An entry must never be dropped before its ttl.
type Revocations interface {
	Revoke(ctx context.Context, tokenID string, ttl time.Duration) error
	Revoked(ctx context.Context, tokenID string) (bool, error)
}

// MemoryRevocations keeps revocations in process. It is only correct for a
// single server instance.
type MemoryRevocations struct {
	entries *cache.LRUCache[struct{}]
}

// NewMemoryRevocations returns an in-process set with no size limit; entries
// leave only when they expire.
func NewMemoryRevocations() *MemoryRevocations {
	return &MemoryRevocations{entries: cache.NewLRUCache[struct{}](0, 0)}
}

func (r *MemoryRevocations) Revoke(_ context.Context, tokenID string, ttl time.Duration) error {
	r.entries.SetWithTTL(tokenID, struct{}{}, ttl)
	return nil
}

func (r *MemoryRevocations) Revoked(_ context.Context, tokenID string) (bool, error) {
	_, ok := r.entries.Get(tokenID)
	return ok, nil
}

// CleanExpired lets a cache.Manager sweep expired revocations.
func (r *MemoryRevocations) CleanExpired() int {
	return r.entries.CleanExpired()
}

// Len is the number of live revocations.
func (r *MemoryRevocations) Len() int {
	return r.entries.Size()
}

const revokedKeyPrefix = "cashstash:revoked:"

// RedisRevocations shares revocations between all server instances using
// Redis key expiry.
type RedisRevocations struct {
	client *redis.Client
}

func NewRedisRevocations(client *redis.Client) *RedisRevocations {
	return &RedisRevocations{client: client}
}

func (r *RedisRevocations) Revoke(ctx context.Context, tokenID string, ttl time.Duration) error {
	return r.client.Set(ctx, revokedKeyPrefix+tokenID, 1, ttl).Err()
}

func (r *RedisRevocations) Revoked(ctx context.Context, tokenID string) (bool, error) {
	n, err := r.client.Exists(ctx, revokedKeyPrefix+tokenID).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

var (
	_ Revocations   = (*MemoryRevocations)(nil)
	_ Revocations   = (*RedisRevocations)(nil)
	_ cache.Cleaner = (*MemoryRevocations)(nil)
)
