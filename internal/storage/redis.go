package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"token-alerts/internal/config"
)

// RedisKV implements KV on top of Redis strings.
type RedisKV struct {
	client *redis.Client
	prefix string
}

// NewRedisKV connects to Redis and verifies the connection.
func NewRedisKV(ctx context.Context, cfg config.RedisConfig) (*RedisKV, error) {
	if cfg.Addr == "" {
		return nil, errors.New("redis.addr is required")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &RedisKV{client: client, prefix: cfg.KeyPrefix}, nil
}

// NewRedisKVFromClient wraps an existing client.
func NewRedisKVFromClient(client *redis.Client, prefix string) *RedisKV {
	return &RedisKV{client: client, prefix: prefix}
}

// Close releases the client.
func (r *RedisKV) Close() error {
	return r.client.Close()
}

func (r *RedisKV) key(k string) string {
	return r.prefix + k
}

// GetJSON decodes the document at key into dest.
func (r *RedisKV) GetJSON(ctx context.Context, key string, dest any) error {
	raw, err := r.client.Get(ctx, r.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("get json %s: %w", key, err)
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return fmt.Errorf("decode json %s: %w", key, err)
	}
	return nil
}

// PutJSON stores value as JSON without expiry.
func (r *RedisKV) PutJSON(ctx context.Context, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode json %s: %w", key, err)
	}
	if err := r.client.Set(ctx, r.key(key), raw, 0).Err(); err != nil {
		return fmt.Errorf("put json %s: %w", key, err)
	}
	return nil
}

// GetNumber reads the number at key.
func (r *RedisKV) GetNumber(ctx context.Context, key string) (uint64, error) {
	v, err := r.client.Get(ctx, r.key(key)).Uint64()
	if errors.Is(err, redis.Nil) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("get number %s: %w", key, err)
	}
	return v, nil
}

// PutNumber stores value at key without expiry.
func (r *RedisKV) PutNumber(ctx context.Context, key string, value uint64) error {
	if err := r.client.Set(ctx, r.key(key), value, 0).Err(); err != nil {
		return fmt.Errorf("put number %s: %w", key, err)
	}
	return nil
}

// Incr uses INCR, which Redis executes atomically.
func (r *RedisKV) Incr(ctx context.Context, key string) (uint64, error) {
	v, err := r.client.Incr(ctx, r.key(key)).Result()
	if err != nil {
		return 0, fmt.Errorf("increment %s: %w", key, err)
	}
	return uint64(v), nil
}

var _ KV = (*RedisKV)(nil)
