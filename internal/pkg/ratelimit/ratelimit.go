package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Options configure a fixed window limiter with lockout.
type Options struct {
	Prefix      string
	MaxAttempts int
	Window      time.Duration
	Lockout     time.Duration
}

// Result describes a single Allow decision.
type Result struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

// Limiter counts attempts per key in Redis so that every API instance sees the
// same counters. Exceeding MaxAttempts inside Window locks the key for Lockout.
type Limiter struct {
	client *redis.Client
	opts   Options
}

func New(client *redis.Client, opts Options) *Limiter {
	if opts.Prefix == "" {
		opts.Prefix = "ratelimit"
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 10
	}
	if opts.Window <= 0 {
		opts.Window = time.Minute
	}
	if opts.Lockout <= 0 {
		opts.Lockout = opts.Window
	}
	return &Limiter{client: client, opts: opts}
}

func (l *Limiter) counterKey(key string) string {
	return fmt.Sprintf("%s:count:%s", l.opts.Prefix, key)
}

func (l *Limiter) lockKey(key string) string {
	return fmt.Sprintf("%s:lock:%s", l.opts.Prefix, key)
}

// allowScript checks the lockout, counts the attempt and arms the window
// expiry in one step. A counter left without TTL gets one on its next hit.
// Returns {-2, ttl} while locked, {-1, lockout} when this attempt locks the
// key, otherwise {count, 0}.
var allowScript = redis.NewScript(`
local lock_ttl = redis.call('PTTL', KEYS[2])
if lock_ttl > 0 then
	return {-2, lock_ttl}
end
local count = redis.call('INCR', KEYS[1])
if count == 1 or redis.call('PTTL', KEYS[1]) < 0 then
	redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
if count > tonumber(ARGV[2]) then
	redis.call('SET', KEYS[2], 1, 'PX', ARGV[3])
	redis.call('DEL', KEYS[1])
	return {-1, tonumber(ARGV[3])}
end
return {count, 0}
`)

// Allow records an attempt for key. Without Redis every attempt is allowed.
func (l *Limiter) Allow(ctx context.Context, key string) (Result, error) {
	if l == nil || l.client == nil {
		return Result{Allowed: true, Remaining: -1}, nil
	}

	res, err := allowScript.Run(ctx, l.client,
		[]string{l.counterKey(key), l.lockKey(key)},
		l.opts.Window.Milliseconds(), l.opts.MaxAttempts, l.opts.Lockout.Milliseconds(),
	).Int64Slice()
	if err != nil {
		return Result{}, err
	}
	if len(res) != 2 {
		return Result{}, fmt.Errorf("ratelimit: unexpected script reply %v", res)
	}

	if res[0] < 0 {
		return Result{Allowed: false, RetryAfter: time.Duration(res[1]) * time.Millisecond}, nil
	}
	return Result{Allowed: true, Remaining: l.opts.MaxAttempts - int(res[0])}, nil
}

// Reset clears counters and lockout for key.
func (l *Limiter) Reset(ctx context.Context, key string) error {
	if l == nil || l.client == nil {
		return nil
	}
	return l.client.Del(ctx, l.counterKey(key), l.lockKey(key)).Err()
}
