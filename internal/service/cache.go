package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Adithya-Monish-Kumar-K/linerank/pkg/logger"
	pkgredis "github.com/Adithya-Monish-Kumar-K/linerank/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/linerank/pkg/resilience"
)

const (
	keyPrefix             = "linerank:"
	defaultComputeTimeout = 30 * time.Second
)

// Store is the key-value backend of the cache; *redis.Client satisfies it.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	FlushByPattern(ctx context.Context, pattern string) (int64, error)
}

// ResultCache memoises rank results by request content. Concurrent misses
// for the same key are collapsed into one computation. While the store keeps
// failing the breaker opens and every lookup is a miss.
type ResultCache struct {
	store          Store
	ttl            time.Duration
	computeTimeout time.Duration
	group          singleflight.Group
	breaker        *resilience.Breaker
	logger         *slog.Logger
	hits           atomic.Int64
	misses         atomic.Int64
}

func NewResultCache(store Store, ttl time.Duration) *ResultCache {
	return &ResultCache{
		store:          store,
		ttl:            ttl,
		computeTimeout: defaultComputeTimeout,
		breaker:        resilience.NewBreaker("rank-cache", 5, 30*time.Second),
		logger:         logger.WithComponent("rank-cache"),
	}
}

// Key identifies a rank request. Term order is kept because it fixes the
// order of the echoed query; terms never contain '|' so the text that
// follows the header cannot be confused with it.
func Key(terms []string, capacity int, includeLines bool, text string) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s|cap=%d|lines=%t|", strings.Join(terms, ","), capacity, includeLines)
	h.Write([]byte(text))
	sum := h.Sum(nil)
	return keyPrefix + hex.EncodeToString(sum[:16])
}

func (c *ResultCache) Get(ctx context.Context, key string) (*Result, bool) {
	var data []byte
	var absent bool
	err := c.breaker.Do(func() error {
		var err error
		data, err = c.store.Get(ctx, key)
		if pkgredis.IsNilError(err) {
			absent = true
			return nil
		}
		return err
	})
	if err != nil || absent {
		if err != nil && !errors.Is(err, resilience.ErrOpen) {
			c.logger.Error("cache get failed", "key", key, "error", err)
		}
		c.misses.Add(1)
		return nil, false
	}
	var result Result
	if err := json.Unmarshal(data, &result); err != nil {
		c.logger.Error("cache unmarshal failed", "key", key, "error", err)
		c.misses.Add(1)
		return nil, false
	}
	c.hits.Add(1)
	c.logger.Debug("cache hit", "key", key)
	return &result, true
}

func (c *ResultCache) Set(ctx context.Context, key string, result *Result) {
	data, err := json.Marshal(result)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	err = c.breaker.Do(func() error {
		return c.store.Set(ctx, key, data, c.ttl)
	})
	if err != nil && !errors.Is(err, resilience.ErrOpen) {
		c.logger.Error("cache set failed", "key", key, "error", err)
	}
}

// GetOrCompute returns the cached result for key, or runs compute once for
// all concurrent callers and stores its result. The bool reports a hit.
// compute ignores the cancellation of the caller that started it and is
// bounded by the compute timeout instead. Each caller stops waiting when its
// own ctx is done.
func (c *ResultCache) GetOrCompute(
	ctx context.Context,
	key string,
	compute func(ctx context.Context) (*Result, error),
) (*Result, bool, error) {
	if result, ok := c.Get(ctx, key); ok {
		return result, true, nil
	}
	ch := c.group.DoChan(key, func() (interface{}, error) {
		cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.computeTimeout)
		defer cancel()
		result, err := compute(cctx)
		if err != nil {
			return nil, err
		}
		c.Set(cctx, key, result)
		return result, nil
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, false, res.Err
		}
		return res.Val.(*Result), false, nil
	case <-ctx.Done():
		return nil, false, ctx.Err()
	}
}

func (c *ResultCache) Invalidate(ctx context.Context) (int64, error) {
	deleted, err := c.store.FlushByPattern(ctx, keyPrefix+"*")
	if err != nil {
		return deleted, fmt.Errorf("invalidating cache: %w", err)
	}
	c.logger.Info("cache invalidated", "keys_deleted", deleted)
	return deleted, nil
}

func (c *ResultCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}
