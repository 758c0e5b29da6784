package cache

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/rpopa-dp/srch/internal/store"
)

// LRU is an in-process cache bounded by entry count.
type LRU struct {
	cache *lru.Cache[string, []*store.Result]
}

// NewLRU creates an LRU holding up to size result lists.
func NewLRU(size int) *LRU {
	if size <= 0 {
		size = DefaultSize
	}
	c, _ := lru.New[string, []*store.Result](size)
	return &LRU{cache: c}
}

// Get implements Cache.
func (l *LRU) Get(_ context.Context, key string) ([]*store.Result, bool) {
	results, ok := l.cache.Get(key)
	if !ok {
		return nil, false
	}
	return cloneResults(results), true
}

// Set implements Cache.
func (l *LRU) Set(_ context.Context, key string, results []*store.Result) {
	l.cache.Add(key, cloneResults(results))
}

// Purge implements Cache.
func (l *LRU) Purge(context.Context) error {
	l.cache.Purge()
	return nil
}

// Len returns the number of cached queries.
func (l *LRU) Len() int {
	return l.cache.Len()
}

// Close implements Cache.
func (l *LRU) Close() error { return nil }
