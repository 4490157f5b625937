package batch

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Locker serializes runs of the same operation across scheduler instances.
type Locker interface {
	// Acquire takes the lock for the named operation. It returns a release
	// func and true, or nil and false when another run holds the lock.
	Acquire(ctx context.Context, operation string, ttl time.Duration) (release func(context.Context) error, ok bool, err error)
}

const runLockKeyPrefix = "custos:runlock:"

// RedisLocker is a Redis-backed single-flight lock (SET NX with TTL). The
// TTL bounds how long a crashed run can block its successors.
type RedisLocker struct {
	client *redis.Client
}

func NewRedisLocker(client *redis.Client) *RedisLocker {
	return &RedisLocker{client: client}
}

// releaseScript deletes the lock only if this run still owns it, so a run
// that outlived its TTL cannot release a successor's lock.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

func (l *RedisLocker) Acquire(ctx context.Context, operation string, ttl time.Duration) (func(context.Context) error, bool, error) {
	key := runLockKeyPrefix + operation
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}
	release := func(ctx context.Context) error {
		return releaseScript.Run(ctx, l.client, []string{key}, token).Err()
	}
	return release, true, nil
}

// MemoryLocker is an in-process Locker for tests and single-instance runs.
type MemoryLocker struct {
	mu   sync.Mutex
	held map[string]struct{}
}

func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{held: make(map[string]struct{})}
}

func (l *MemoryLocker) Acquire(ctx context.Context, operation string, ttl time.Duration) (func(context.Context) error, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, taken := l.held[operation]; taken {
		return nil, false, nil
	}
	l.held[operation] = struct{}{}
	release := func(context.Context) error {
		l.mu.Lock()
		defer l.mu.Unlock()
		delete(l.held, operation)
		return nil
	}
	return release, true, nil
}
