package services

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
)

func TestAdvisoryGuardRunsFn(t *testing.T) {
	called := false
	err := AdvisoryGuard{}.Do(context.Background(), "u1", func(context.Context) error {
		called = true
		return nil
	})
	assert.NoError(t, err)
	assert.True(t, called)
}

func TestLockGuardUnreachableRedis(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		MaxRetries:  -1,
		DialTimeout: 200 * time.Millisecond,
	})
	defer client.Close()

	g := NewLockGuard(client, nil)
	called := false
	err := g.Do(context.Background(), "u1", func(context.Context) error {
		called = true
		return nil
	})
	assert.Error(t, err)
	assert.False(t, called, "fn must not run without the lock")
}
