package store

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisKV implements KV on a Redis instance. Keys are namespaced so
// multiple pipelines can share one database.
type RedisKV struct {
	client    *redis.Client
	namespace string
}

// NewRedisKV creates a Redis-backed store. namespace may be empty.
func NewRedisKV(client *redis.Client, namespace string) *RedisKV {
	return &RedisKV{client: client, namespace: namespace}
}

func (r *RedisKV) fullKey(key string) string {
	if r.namespace == "" {
		return key
	}
	return r.namespace + ":" + key
}

func (r *RedisKV) stripKey(full string) string {
	if r.namespace == "" {
		return full
	}
	return full[len(r.namespace)+1:]
}

// Get returns the stored value for key.
func (r *RedisKV) Get(ctx context.Context, key string) ([]byte, bool, error) {
	value, err := r.client.Get(ctx, r.fullKey(key)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get %s: %w", key, err)
	}
	return value, true, nil
}

// Set stores value under key with no expiration; tracker records are
// long-lived by design.
func (r *RedisKV) Set(ctx context.Context, key string, value []byte) error {
	if err := r.client.Set(ctx, r.fullKey(key), value, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

// Query scans all keys under prefix using SCAN to avoid blocking the
// server on large keyspaces.
func (r *RedisKV) Query(ctx context.Context, prefix string) (map[string][]byte, error) {
	out := make(map[string][]byte)
	pattern := r.fullKey(prefix) + "*"

	iter := r.client.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		full := iter.Val()
		value, err := r.client.Get(ctx, full).Bytes()
		if err == redis.Nil {
			continue // expired between SCAN and GET
		}
		if err != nil {
			return nil, fmt.Errorf("redis query get %s: %w", full, err)
		}
		out[r.stripKey(full)] = value
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("redis scan %s: %w", pattern, err)
	}
	return out, nil
}
