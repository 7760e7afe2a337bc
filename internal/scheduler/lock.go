package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// TickLock elects one instance per scheduled tick.
type TickLock interface {
	// Acquire reports whether the caller won key for ttl.
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

// RedisTickLock implements TickLock with SET NX PX.
type RedisTickLock struct {
	client redis.Cmdable
	owner  string
}

func NewRedisTickLock(client redis.Cmdable, owner string) *RedisTickLock {
	return &RedisTickLock{client: client, owner: owner}
}

func (l *RedisTickLock) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := l.client.SetNX(ctx, key, l.owner, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx %s: %w", key, err)
	}
	return ok, nil
}
