package redisclient

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var (
	ErrLockNotAcquired = errors.New("partition lock not acquired")
)

// Locker guards a critical section across API instances. Keys are taken in
// sorted order so two callers locking overlapping sets cannot deadlock.
type Locker interface {
	WithLock(ctx context.Context, keys []string, fn func(ctx context.Context) error) error
}

type redisPartitionLocker struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisPartitionLocker creates a locker that holds one Redis key per partition.
func NewRedisPartitionLocker(client *redis.Client, ttl time.Duration) Locker {
	return &redisPartitionLocker{
		client: client,
		ttl:    ttl,
	}
}

type heldLock struct {
	key   string
	token string
}

func (l *redisPartitionLocker) WithLock(ctx context.Context, keys []string, fn func(ctx context.Context) error) error {
	ordered := slices.Clone(keys)
	slices.Sort(ordered)
	ordered = slices.Compact(ordered)

	held := make([]heldLock, 0, len(ordered))
	defer func() {
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
		defer cancel()
		for _, h := range held {
			_ = l.release(releaseCtx, h.key, h.token)
		}
	}()

	for _, k := range ordered {
		key := "lock:" + k
		token := uuid.NewString()

		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return fmt.Errorf("acquire partition lock: %w", err)
		}
		if !ok {
			return fmt.Errorf("%w: %s", ErrLockNotAcquired, k)
		}
		held = append(held, heldLock{key: key, token: token})
	}

	ctxWithTimeout, cancel := context.WithTimeout(ctx, l.ttl)
	defer cancel()

	return fn(ctxWithTimeout)
}

var unlockScript = redis.NewScript(`
local val = redis.call("GET", KEYS[1])
if val == ARGV[1] then
  return redis.call("DEL", KEYS[1])
else
  return 0
end
`)

func (l *redisPartitionLocker) release(ctx context.Context, key, token string) error {
	_, err := unlockScript.Run(ctx, l.client, []string{key}, token).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("release partition lock: %w", err)
	}
	return nil
}
