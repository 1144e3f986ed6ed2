// Package cache implements a tag-invalidated read cache on top of Redis.
//
// Cached query results are stored as JSON blobs under namespaced keys, and
// every entry is registered in one or more tag sets. A write path that makes
// cached reads stale calls Invalidate with the affected tags, which drops
// every entry registered under them regardless of remaining TTL.
//
// Concurrent misses for the same key may compute twice; the computations are
// read-only and idempotent, so the duplicate work is accepted rather than
// coordinated away.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// Key prefixes keep cache entries and tag sets out of the way of anything
// else sharing the Redis database.
const (
	entryPrefix = "cache:"
	tagPrefix   = "cache:tag:"
)

// Cache tags used across the application. Every cached read registers under
// at least one of these; every write path invalidates the matching ones
// before reporting success.
const (
	TagPosts     = "posts"
	TagUsers     = "users"
	TagUserPosts = "user-posts"
	TagAnalytics = "analytics"
)

// Cache is a Redis-backed cache with tag-based invalidation. Safe for
// concurrent use.
type Cache struct {
	redis *redis.Client
}

// New creates a Cache on top of the given Redis client.
func New(rdb *redis.Client) *Cache {
	return &Cache{redis: rdb}
}

// Get returns the cached bytes for key if present. On a miss it calls
// compute, stores the result under key with the given TTL, registers the key
// under each tag, and returns the computed bytes.
//
// If compute succeeds but the store fails, the computed value is still
// returned -- a broken cache degrades to slower reads, not errors.
func (c *Cache) Get(ctx context.Context, key string, tags []string, ttl time.Duration, compute func(ctx context.Context) ([]byte, error)) ([]byte, error) {
	data, err := c.redis.Get(ctx, entryPrefix+key).Bytes()
	if err == nil {
		return data, nil
	}
	if !errors.Is(err, redis.Nil) {
		// Redis unavailable -- fall through to compute, log the cache miss cause.
		slog.Warn("cache read failed",
			slog.String("key", key),
			slog.Any("error", err),
		)
	}

	data, err = compute(ctx)
	if err != nil {
		return nil, err
	}

	if err := c.store(ctx, key, tags, ttl, data); err != nil {
		slog.Warn("cache store failed",
			slog.String("key", key),
			slog.Any("error", err),
		)
	}

	return data, nil
}

// store writes the entry and registers it under each tag set in a single
// pipeline. Tag sets carry no TTL of their own: membership of an already
// expired entry is harmless and gets cleared on the next invalidation.
func (c *Cache) store(ctx context.Context, key string, tags []string, ttl time.Duration, data []byte) error {
	pipe := c.redis.TxPipeline()
	pipe.Set(ctx, entryPrefix+key, data, ttl)
	for _, tag := range tags {
		pipe.SAdd(ctx, tagPrefix+tag, entryPrefix+key)
	}
	_, err := pipe.Exec(ctx)
	return err
}

// Invalidate immediately expires every cached entry registered under any of
// the given tags, regardless of remaining TTL. Write paths must call this
// (and wait for it) before reporting their own success, otherwise a
// subsequent read could serve stale data for the rest of the TTL window.
func (c *Cache) Invalidate(ctx context.Context, tags ...string) error {
	for _, tag := range tags {
		members, err := c.redis.SMembers(ctx, tagPrefix+tag).Result()
		if err != nil {
			return fmt.Errorf("reading tag set %q: %w", tag, err)
		}

		pipe := c.redis.TxPipeline()
		if len(members) > 0 {
			pipe.Del(ctx, members...)
		}
		pipe.Del(ctx, tagPrefix+tag)
		if _, err := pipe.Exec(ctx); err != nil {
			return fmt.Errorf("invalidating tag %q: %w", tag, err)
		}

		slog.Debug("cache tag invalidated",
			slog.String("tag", tag),
			slog.Int("entries", len(members)),
		)
	}
	return nil
}

// Fetch is the typed wrapper around Cache.Get: it JSON-decodes a hit and
// JSON-encodes the computed value on a miss. The zero value of T is returned
// alongside any error.
func Fetch[T any](ctx context.Context, c *Cache, key string, tags []string, ttl time.Duration, compute func(ctx context.Context) (T, error)) (T, error) {
	var zero T

	data, err := c.Get(ctx, key, tags, ttl, func(ctx context.Context) ([]byte, error) {
		v, err := compute(ctx)
		if err != nil {
			return nil, err
		}
		return json.Marshal(v)
	})
	if err != nil {
		return zero, err
	}

	var out T
	if err := json.Unmarshal(data, &out); err != nil {
		return zero, fmt.Errorf("decoding cached value for %q: %w", key, err)
	}
	return out, nil
}
