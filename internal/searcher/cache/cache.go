// Package cache memoizes query results in Redis. Concurrent misses for the
// same key are collapsed with singleflight so only one caller computes.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/srsviegas/ufrgs-cpd-fifa21dataset/internal/searcher/executor"
	pkgredis "github.com/srsviegas/ufrgs-cpd-fifa21dataset/pkg/redis"
)

const keyPrefix = "fifadex:query:"

// Store is the subset of *pkgredis.Client the cache uses. A missing key is
// reported with an error for which pkgredis.IsNilError is true.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	FlushByPattern(ctx context.Context, pattern string) (int64, error)
}

type QueryCache struct {
	store  Store
	ttl    time.Duration
	group  singleflight.Group
	logger *slog.Logger
	hits   atomic.Int64
	misses atomic.Int64
}

func New(store Store, ttl time.Duration) *QueryCache {
	return &QueryCache{
		store:  store,
		ttl:    ttl,
		logger: slog.Default().With("component", "query-cache"),
	}
}

// Get returns the cached result for query. Store failures count as misses.
func (c *QueryCache) Get(ctx context.Context, query string) (*executor.Result, bool) {
	key := buildKey(query)
	data, err := c.store.Get(ctx, key)
	if err != nil {
		if !pkgredis.IsNilError(err) {
			c.logger.Error("cache get failed", "key", key, "error", err)
		}
		c.misses.Add(1)
		return nil, false
	}
	var result executor.Result
	if err := json.Unmarshal([]byte(data), &result); err != nil {
		c.logger.Error("cache unmarshal failed", "key", key, "error", err)
		c.misses.Add(1)
		return nil, false
	}
	c.hits.Add(1)
	return &result, true
}

func (c *QueryCache) Set(ctx context.Context, query string, result *executor.Result) {
	key := buildKey(query)
	data, err := json.Marshal(result)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	if err := c.store.Set(ctx, key, data, c.ttl); err != nil {
		c.logger.Error("cache set failed", "key", key, "error", err)
	}
}

// GetOrCompute returns the cached result for query, or runs compute once
// across concurrent callers and caches its result. Errors are not cached.
func (c *QueryCache) GetOrCompute(ctx context.Context, query string, compute func() (*executor.Result, error)) (*executor.Result, bool, error) {
	if result, ok := c.Get(ctx, query); ok {
		return result, true, nil
	}
	val, err, _ := c.group.Do(buildKey(query), func() (any, error) {
		result, err := compute()
		if err != nil {
			return nil, err
		}
		c.Set(ctx, query, result)
		return result, nil
	})
	if err != nil {
		return nil, false, err
	}
	return val.(*executor.Result), false, nil
}

// Invalidate drops every cached query result.
func (c *QueryCache) Invalidate(ctx context.Context) error {
	deleted, err := c.store.FlushByPattern(ctx, keyPrefix+"*")
	if err != nil {
		return fmt.Errorf("invalidating cache: %w", err)
	}
	c.logger.Info("cache invalidated", "keys_deleted", deleted)
	return nil
}

func (c *QueryCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

// buildKey hashes the canonical query so arbitrary tag text cannot produce
// malformed or overlong Redis keys.
func buildKey(query string) string {
	hash := sha256.Sum256([]byte(query))
	return fmt.Sprintf("%s%x", keyPrefix, hash[:16])
}
