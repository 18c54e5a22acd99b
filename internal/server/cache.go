package server

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"github.com/secid-mx/community-search/internal/engine"
	"github.com/secid-mx/community-search/pkg/config"
	pkgredis "github.com/secid-mx/community-search/pkg/redis"
	"github.com/secid-mx/community-search/pkg/resilience"
)

const cacheKeyPrefix = "search:"

// ResponseCache caches full search responses in Redis, keyed by the request
// and the index snapshot version. Including the version means every snapshot
// swap implicitly invalidates all cached responses without a flush. A circuit
// breaker shields searches from a failing Redis, and singleflight collapses
// concurrent identical misses into one engine call.
type ResponseCache struct {
	client  *pkgredis.Client
	cfg     config.RedisConfig
	group   singleflight.Group
	breaker *resilience.CircuitBreaker
	logger  *slog.Logger
	hits    atomic.Int64
	misses  atomic.Int64
}

// NewResponseCache creates a ResponseCache backed by client.
func NewResponseCache(client *pkgredis.Client, cfg config.RedisConfig) *ResponseCache {
	return &ResponseCache{
		client:  client,
		cfg:     cfg,
		breaker: resilience.NewCircuitBreaker("response-cache", resilience.CircuitBreakerConfig{}),
		logger:  slog.Default().With("component", "response-cache"),
	}
}

// GetOrCompute returns the cached response for req at snapshot version, or
// runs computeFn and caches its result. The bool reports a cache hit. Cache
// failures degrade to computing; they never fail the search.
func (c *ResponseCache) GetOrCompute(
	ctx context.Context,
	req engine.SearchRequest,
	version uint64,
	computeFn func() (*engine.SearchResponse, error),
) (*engine.SearchResponse, bool, error) {
	key, err := c.buildKey(req, version)
	if err != nil {
		c.logger.Error("cache key build failed", "error", err)
		resp, cerr := computeFn()
		return resp, false, cerr
	}

	if resp, ok := c.get(ctx, key); ok {
		c.hits.Add(1)
		return resp, true, nil
	}
	c.misses.Add(1)

	val, err, _ := c.group.Do(key, func() (interface{}, error) {
		if resp, ok := c.get(ctx, key); ok {
			return resp, nil
		}
		resp, err := computeFn()
		if err != nil {
			return nil, err
		}
		c.set(ctx, key, resp)
		return resp, nil
	})
	if err != nil {
		return nil, false, err
	}
	return val.(*engine.SearchResponse), false, nil
}

func (c *ResponseCache) get(ctx context.Context, key string) (*engine.SearchResponse, bool) {
	var data string
	err := c.breaker.Execute(func() error {
		var err error
		data, err = c.client.Get(ctx, key)
		return err
	})
	if err != nil {
		if !pkgredis.IsNilError(err) {
			c.logger.Warn("cache get failed", "key", key, "error", err)
		}
		return nil, false
	}
	var resp engine.SearchResponse
	if err := json.Unmarshal([]byte(data), &resp); err != nil {
		c.logger.Error("cache unmarshal failed", "key", key, "error", err)
		return nil, false
	}
	return &resp, true
}

func (c *ResponseCache) set(ctx context.Context, key string, resp *engine.SearchResponse) {
	data, err := json.Marshal(resp)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	err = c.breaker.Execute(func() error {
		return c.client.Set(ctx, key, data, c.cfg.CacheTTL)
	})
	if err != nil {
		c.logger.Warn("cache set failed", "key", key, "error", err)
	}
}

// Invalidate deletes every cached search response.
func (c *ResponseCache) Invalidate(ctx context.Context) (int64, error) {
	deleted, err := c.client.FlushByPattern(ctx, cacheKeyPrefix+"*")
	if err != nil {
		return 0, fmt.Errorf("invalidating response cache: %w", err)
	}
	c.logger.Info("response cache invalidated", "keys_deleted", deleted)
	return deleted, nil
}

// Stats returns the hit and miss counters since process start.
func (c *ResponseCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

// buildKey hashes the canonical JSON form of the request together with the
// snapshot version. json.Marshal emits struct fields in declaration order,
// which is stable across processes.
func (c *ResponseCache) buildKey(req engine.SearchRequest, version uint64) (string, error) {
	canonical, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}
	raw := fmt.Sprintf("v%d:%s", version, canonical)
	hash := sha256.Sum256([]byte(raw))
	return fmt.Sprintf("%s%x", cacheKeyPrefix, hash[:16]), nil
}
