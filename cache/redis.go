package cache

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/vmihailenco/msgpack/v5"
)

// RedisCache is a Redis-based cache implementation. Documents are stored
// msgpack encoded and expire with their TTL.
type RedisCache struct {
	client *redis.Client
	config Config
	prefix string
}

// NewRedisCacheFromURL creates a new Redis cache from a Redis URL.
// URL format: redis://[user[:password]@]host[:port][/db][?option=value]
func NewRedisCacheFromURL(redisURL string, config Config) (*RedisCache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	return NewRedisCache(redis.NewClient(opts), config), nil
}

// NewRedisCache creates a Redis cache with an existing client.
func NewRedisCache(client *redis.Client, config Config) *RedisCache {
	config = applyDefaults(config)

	return &RedisCache{
		client: client,
		config: config,
		prefix: config.Prefix,
	}
}

// Client returns the underlying Redis client.
func (rc *RedisCache) Client() *redis.Client {
	return rc.client
}

// Get retrieves a document from Redis.
// Returns nil if the document doesn't exist or has expired.
func (rc *RedisCache) Get(ctx context.Context, key string) (*Document, error) {
	data, err := rc.client.Get(ctx, rc.makeKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var doc Document
	if err := msgpack.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal document: %w", err)
	}

	if doc.IsExpired() {
		rc.client.Del(ctx, rc.makeKey(key))
		return nil, nil
	}

	return &doc, nil
}

// Set stores a document in Redis with its TTL as expiration.
func (rc *RedisCache) Set(ctx context.Context, key string, doc *Document) error {
	stored := prepare(doc, rc.config.TTL)

	data, err := msgpack.Marshal(stored)
	if err != nil {
		return fmt.Errorf("failed to marshal document: %w", err)
	}

	if err := rc.client.Set(ctx, rc.makeKey(key), data, stored.TTL).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}

	return nil
}

// Delete removes a document from Redis.
func (rc *RedisCache) Delete(ctx context.Context, key string) error {
	if err := rc.client.Del(ctx, rc.makeKey(key)).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}

	return nil
}

// Clear removes all documents with the configured prefix.
func (rc *RedisCache) Clear(ctx context.Context) error {
	pattern := rc.prefix + "*"

	iter := rc.client.Scan(ctx, 0, pattern, 0).Iterator()
	for iter.Next(ctx) {
		if err := rc.client.Del(ctx, iter.Val()).Err(); err != nil {
			return fmt.Errorf("redis clear failed: %w", err)
		}
	}

	if err := iter.Err(); err != nil {
		return fmt.Errorf("redis scan failed: %w", err)
	}

	return nil
}

// Close closes the Redis connection.
func (rc *RedisCache) Close() error {
	return rc.client.Close()
}

// Ping checks if Redis connection is healthy.
func (rc *RedisCache) Ping(ctx context.Context) error {
	return rc.client.Ping(ctx).Err()
}

// makeKey creates a Redis key with the configured prefix.
func (rc *RedisCache) makeKey(key string) string {
	return rc.prefix + key
}
