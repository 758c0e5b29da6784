package cache

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/singleflight"

	"github.com/rpopa-dp/srch/internal/store"
)

// CachedIndex wraps an Index with a result cache. Concurrent identical
// queries are collapsed into one search.
type CachedIndex struct {
	store.Index
	cache  Cache
	group  singleflight.Group
	hits   atomic.Int64
	misses atomic.Int64
}

// NewCachedIndex wraps inner. A nil cache returns inner unchanged.
func NewCachedIndex(inner store.Index, c Cache) store.Index {
	if c == nil {
		return inner
	}
	return &CachedIndex{Index: inner, cache: c}
}

// Search serves from the cache or computes and stores the result.
func (c *CachedIndex) Search(ctx context.Context, query string) ([]*store.Result, error) {
	key := Key(query)
	if results, ok := c.cache.Get(ctx, key); ok {
		c.hits.Add(1)
		slog.Debug("cache_hit", slog.String("query", query))
		return results, nil
	}
	c.misses.Add(1)

	v, err, _ := c.group.Do(key, func() (any, error) {
		results, err := c.Index.Search(ctx, query)
		if err != nil {
			return nil, err
		}
		c.cache.Set(ctx, key, results)
		return results, nil
	})
	if err != nil {
		return nil, err
	}
	return cloneResults(v.([]*store.Result)), nil
}

// Add indexes doc and invalidates every cached result.
func (c *CachedIndex) Add(ctx context.Context, doc *store.Document) error {
	if err := c.Index.Add(ctx, doc); err != nil {
		return err
	}
	if err := c.cache.Purge(ctx); err != nil {
		slog.Warn("cache purge failed", slog.String("error", err.Error()))
	}
	return nil
}

// CacheStats returns the hit and miss counts.
func (c *CachedIndex) CacheStats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

// Collectors exposes the hit and miss counts to Prometheus.
func (c *CachedIndex) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: "srch",
			Name:      "cache_hits_total",
			Help:      "Searches answered from the result cache.",
		}, func() float64 { return float64(c.hits.Load()) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: "srch",
			Name:      "cache_misses_total",
			Help:      "Searches that reached the index.",
		}, func() float64 { return float64(c.misses.Load()) }),
	}
}

// Close closes the cache, then the index.
func (c *CachedIndex) Close() error {
	cerr := c.cache.Close()
	if err := c.Index.Close(); err != nil {
		return err
	}
	return cerr
}
