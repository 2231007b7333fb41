// Package lock provides short-lived exclusive locks keyed by string. The
// service takes one per pending post while a decision is being applied.
package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrHeld is returned by Acquire when another holder owns the key.
var ErrHeld = errors.New("lock is held")

// Locker hands out exclusive locks. The returned release func is safe to
// call more than once.
type Locker interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
}

const keyPrefix = "social_agent:lock:"

// RedisLocker implements Locker with SET NX PX. Locks expire after ttl so a
// crashed holder cannot block a post forever.
type RedisLocker struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedisLocker returns a Locker backed by rdb.
func NewRedisLocker(rdb *redis.Client, ttl time.Duration) *RedisLocker {
	return &RedisLocker{rdb: rdb, ttl: ttl}
}

// deletes the key only if it still holds our token
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0`)

func (l *RedisLocker) Acquire(ctx context.Context, key string) (func(), error) {
	token := uuid.New().String()
	k := keyPrefix + key
	ok, err := l.rdb.SetNX(ctx, k, token, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("redis setnx %s: %w", k, err)
	}
	if !ok {
		return nil, ErrHeld
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			// release must run even when the request context is gone
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			releaseScript.Run(ctx, l.rdb, []string{k}, token)
		})
	}, nil
}

// LocalLocker implements Locker for a single process.
type LocalLocker struct {
	mu   sync.Mutex
	held map[string]struct{}
}

// NewLocalLocker returns an empty LocalLocker.
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{held: make(map[string]struct{})}
}

func (l *LocalLocker) Acquire(ctx context.Context, key string) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.held[key]; ok {
		return nil, ErrHeld
	}
	l.held[key] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.held, key)
			l.mu.Unlock()
		})
	}, nil
}
