package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/sawpanic/equilibrium/internal/breakers"
	"github.com/sawpanic/equilibrium/internal/config"
)

// Cache stores opaque values with a TTL. A miss and an unreachable backend
// look the same to callers.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, val []byte, ttl time.Duration)
	Name() string
}

type memory struct {
	mu sync.Mutex
	m  map[string]entry
}

type entry struct {
	b   []byte
	exp time.Time
}

// NewMemory returns a process-local cache.
func NewMemory() Cache { return &memory{m: make(map[string]entry)} }

func (c *memory) Name() string { return "memory" }

func (c *memory) Get(_ context.Context, key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.m[key]
	if !ok {
		return nil, false
	}
	if !e.exp.IsZero() && time.Now().After(e.exp) {
		delete(c.m, key)
		return nil, false
	}
	return e.b, true
}

func (c *memory) Set(_ context.Context, key string, val []byte, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e := entry{b: append([]byte(nil), val...)}
	if ttl > 0 {
		e.exp = time.Now().Add(ttl)
	}
	c.m[key] = e
}

// redisCache reads and writes through a breaker and falls back to a local
// cache while redis is failing.
type redisCache struct {
	r        *redis.Client
	breaker  *breakers.Breaker
	timeout  time.Duration
	fallback Cache
}

// NewRedis wraps an existing client.
func NewRedis(client *redis.Client, timeout time.Duration, breaker *breakers.Breaker) Cache {
	return &redisCache{r: client, breaker: breaker, timeout: timeout, fallback: NewMemory()}
}

// New builds the cache selected by configuration.
func New(c config.CacheConfig) Cache {
	if c.Backend != "redis" {
		return NewMemory()
	}
	client := redis.NewClient(&redis.Options{
		Addr:         c.RedisAddr,
		DB:           c.RedisDB,
		DialTimeout:  c.Timeout,
		ReadTimeout:  c.Timeout,
		WriteTimeout: c.Timeout,
	})
	log.Info().Str("addr", c.RedisAddr).Int("db", c.RedisDB).Msg("Using redis result cache")
	return NewRedis(client, c.Timeout, breakers.New("redis-cache", c.Breaker))
}

func (r *redisCache) Name() string { return "redis" }

func (r *redisCache) Get(ctx context.Context, key string) ([]byte, bool) {
	v, err := r.breaker.Execute(func() (any, error) {
		ctx, cancel := context.WithTimeout(ctx, r.timeout)
		defer cancel()
		b, err := r.r.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return []byte(nil), nil
		}
		return b, err
	})
	if err != nil {
		log.Debug().Err(err).Str("key", key).Msg("Redis get failed, using local cache")
		return r.fallback.Get(ctx, key)
	}
	b := v.([]byte)
	return b, b != nil
}

func (r *redisCache) Set(ctx context.Context, key string, val []byte, ttl time.Duration) {
	_, err := r.breaker.Execute(func() (any, error) {
		ctx, cancel := context.WithTimeout(ctx, r.timeout)
		defer cancel()
		return nil, r.r.Set(ctx, key, val, ttl).Err()
	})
	if err != nil {
		log.Debug().Err(err).Str("key", key).Msg("Redis set failed, using local cache")
		r.fallback.Set(ctx, key, val, ttl)
	}
}

// GetJSON decodes a cached value into dst. Undecodable entries are misses.
func GetJSON(ctx context.Context, c Cache, key string, dst any) bool {
	b, ok := c.Get(ctx, key)
	if !ok {
		return false
	}
	if err := json.Unmarshal(b, dst); err != nil {
		log.Debug().Err(err).Str("key", key).Msg("Discarding undecodable cache entry")
		return false
	}
	return true
}

// SetJSON encodes v and stores it.
func SetJSON(ctx context.Context, c Cache, key string, v any, ttl time.Duration) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode cache entry %s: %w", key, err)
	}
	c.Set(ctx, key, b, ttl)
	return nil
}
