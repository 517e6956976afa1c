package locking

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Locker serializes access to a named shared resource. Ticket-number
// assignment and pool-capacity checks run under a lock because the store is
// not assumed to provide serializable isolation.
type Locker interface {
	// WithLock runs fn while holding the named lock.
	WithLock(ctx context.Context, name string, fn func(ctx context.Context) error) error
}

// RedisLocker implements Locker with a SETNX lease. The lease expires on its
// own so a crashed holder cannot wedge the resource.
type RedisLocker struct {
	client *redis.Client
	ttl    time.Duration
	retry  time.Duration
}

// NewRedisLocker builds a lease locker on the given client.
func NewRedisLocker(client *redis.Client) *RedisLocker {
	return &RedisLocker{
		client: client,
		ttl:    10 * time.Second,
		retry:  50 * time.Millisecond,
	}
}

// WithLock acquires the lease, polling until the context is done.
func (l *RedisLocker) WithLock(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	key := "lock:" + name
	holder := uuid.NewString()

	for {
		ok, err := l.client.SetNX(ctx, key, holder, l.ttl).Result()
		if err != nil {
			return err
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(l.retry):
		}
	}

	defer func() {
		// Release only our own lease; an expired lease may have been
		// re-acquired by another holder.
		const release = `if redis.call("get", KEYS[1]) == ARGV[1] then return redis.call("del", KEYS[1]) else return 0 end`
		_ = l.client.Eval(context.WithoutCancel(ctx), release, []string{key}, holder).Err()
	}()

	return fn(ctx)
}

// LocalLocker is an in-process Locker for tests and single-node runs.
type LocalLocker struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewLocalLocker builds an in-process locker.
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{locks: make(map[string]*sync.Mutex)}
}

// WithLock runs fn under the named in-process mutex.
func (l *LocalLocker) WithLock(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	l.mu.Lock()
	lock, ok := l.locks[name]
	if !ok {
		lock = &sync.Mutex{}
		l.locks[name] = lock
	}
	l.mu.Unlock()

	lock.Lock()
	defer lock.Unlock()
	return fn(ctx)
}
