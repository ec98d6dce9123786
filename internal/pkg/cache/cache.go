package cache

import (
	"context"
	"errors"
	"time"

	"github.com/go-redis/cache/v9"
	"github.com/redis/go-redis/v9"
)

// ErrMiss is returned by Get when the key is absent.
var ErrMiss = errors.New("cache miss")

const localCacheSize = 10000

// Cache is a read-through cache shared by all API instances.
type Cache interface {
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Get(ctx context.Context, key string, dest interface{}) error
	Delete(ctx context.Context, key string) error
}

type redisCache struct {
	cache *cache.Cache
}

// New returns a Redis backed cache with a small in-process LFU layer in front.
// A nil client yields a cache that always misses.
func New(client *redis.Client, localTTL time.Duration) Cache {
	if client == nil {
		return noop{}
	}
	opts := &cache.Options{Redis: client}
	if localTTL > 0 {
		opts.LocalCache = cache.NewTinyLFU(localCacheSize, localTTL)
	}
	return &redisCache{cache: cache.New(opts)}
}

func (r *redisCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	return r.cache.Set(&cache.Item{
		Ctx:   ctx,
		Key:   key,
		Value: value,
		TTL:   ttl,
	})
}

func (r *redisCache) Get(ctx context.Context, key string, dest interface{}) error {
	err := r.cache.Get(ctx, key, dest)
	if errors.Is(err, cache.ErrCacheMiss) {
		return ErrMiss
	}
	return err
}

func (r *redisCache) Delete(ctx context.Context, key string) error {
	err := r.cache.Delete(ctx, key)
	if errors.Is(err, cache.ErrCacheMiss) {
		return nil
	}
	return err
}

type noop struct{}

func (noop) Set(context.Context, string, interface{}, time.Duration) error { return nil }
func (noop) Get(context.Context, string, interface{}) error                { return ErrMiss }
func (noop) Delete(context.Context, string) error                          { return nil }
