package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrNotAcquired is returned when another holder owns the lock.
var ErrNotAcquired = errors.New("lock is held by another process")

const unlockScript = "if redis.call('get', KEYS[1]) == ARGV[1] then return redis.call('del', KEYS[1]) else return 0 end"

// Locker is a single Redis key lock. Only the holder's token can release it.
type Locker struct {
	client redis.UniversalClient
	key    string
	token  string
}

func New(client redis.UniversalClient, key string) *Locker {
	return &Locker{client: client, key: key, token: uuid.NewString()}
}

// Lock acquires the key for ttl or returns ErrNotAcquired.
func (l *Locker) Lock(ctx context.Context, ttl time.Duration) error {
	ok, err := l.client.SetNX(ctx, l.key, l.token, ttl).Result()
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotAcquired
	}
	return nil
}

func (l *Locker) Unlock(ctx context.Context) error {
	res, err := l.client.Eval(ctx, unlockScript, []string{l.key}, l.token).Result()
	if err != nil {
		return err
	}
	if res == int64(0) {
		return fmt.Errorf("unlock %s: lock expired or not held", l.key)
	}
	return nil
}

// Run executes fn while holding key. A nil client runs fn unguarded.
func Run(ctx context.Context, client *redis.Client, key string, ttl time.Duration, fn func(ctx context.Context) error) error {
	if client == nil {
		return fn(ctx)
	}
	l := New(client, key)
	if err := l.Lock(ctx, ttl); err != nil {
		return err
	}
	defer l.Unlock(context.WithoutCancel(ctx))
	return fn(ctx)
}
