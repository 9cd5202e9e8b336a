package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// KV is the string-key/string-value contract the flat store backend is
// built on. Two drivers exist: Redis for production and an in-process
// map for development and tests.
type KV interface {
	// Get returns the value under key, or ErrKeyNotFound.
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Del(ctx context.Context, keys ...string) error
	// Ping verifies the driver is reachable.
	Ping(ctx context.Context) error
}

// ─── Redis driver ─────────────────────────────────────────────────────────────

// RedisKV is the production flat-store driver.
type RedisKV struct {
	rdb *redis.Client
}

// NewRedisKV wraps an already-connected client (pass the one from pkg/cache).
func NewRedisKV(rdb *redis.Client) *RedisKV {
	return &RedisKV{rdb: rdb}
}

func (d *RedisKV) Get(ctx context.Context, key string) (string, error) {
	val, err := d.rdb.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrKeyNotFound
		}
		return "", fmt.Errorf("store/redis: get %s: %w", key, err)
	}
	return val, nil
}

func (d *RedisKV) Set(ctx context.Context, key, value string) error {
	if err := d.rdb.Set(ctx, key, value, 0).Err(); err != nil {
		return fmt.Errorf("store/redis: set %s: %w", key, err)
	}
	return nil
}

func (d *RedisKV) Del(ctx context.Context, keys ...string) error {
	if err := d.rdb.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("store/redis: del: %w", err)
	}
	return nil
}

func (d *RedisKV) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := d.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("store/redis: ping: %w", err)
	}
	return nil
}

// ─── Memory driver ────────────────────────────────────────────────────────────

// MemoryKV is an in-process driver. Not durable across restarts; used in
// development and as the test fixture for the flat backend.
type MemoryKV struct {
	mu   sync.RWMutex
	data map[string]string
}

func NewMemoryKV() *MemoryKV {
	return &MemoryKV{data: make(map[string]string)}
}

func (d *MemoryKV) Get(_ context.Context, key string) (string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	val, ok := d.data[key]
	if !ok {
		return "", ErrKeyNotFound
	}
	return val, nil
}

func (d *MemoryKV) Set(_ context.Context, key, value string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.data[key] = value
	return nil
}

func (d *MemoryKV) Del(_ context.Context, keys ...string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, k := range keys {
		delete(d.data, k)
	}
	return nil
}

func (d *MemoryKV) Ping(context.Context) error { return nil }
