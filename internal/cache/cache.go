// Package cache memoizes ranked search results in front of an index.
//
// Entries are keyed by the normalized query, so "Cat the" and "the cat" share
// a slot. Every Add invalidates the whole cache because a new document changes
// the IDF of every term.
package cache

import (
	"context"
	"crypto/sha256"
	"fmt"
	"slices"
	"strings"
	"time"

	srcherr "github.com/rpopa-dp/srch/internal/errors"
	"github.com/rpopa-dp/srch/internal/store"
	"github.com/rpopa-dp/srch/internal/tokenizer"
)

// Backend names a cache implementation.
type Backend string

const (
	BackendNone  Backend = "none"
	BackendLRU   Backend = "lru"
	BackendRedis Backend = "redis"
)

// Backends lists the accepted cache backends.
var Backends = []Backend{BackendNone, BackendLRU, BackendRedis}

// Defaults.
const (
	DefaultSize = 1000
	DefaultTTL  = 10 * time.Minute
)

// Cache stores result lists by key.
type Cache interface {
	Get(ctx context.Context, key string) ([]*store.Result, bool)
	Set(ctx context.Context, key string, results []*store.Result)
	// Purge drops every entry owned by this cache.
	Purge(ctx context.Context) error
	Close() error
}

// Options selects and configures a cache.
type Options struct {
	Backend   Backend
	Size      int
	RedisAddr string
	TTL       time.Duration
	// Namespace separates indexes sharing one Redis.
	Namespace string
}

// New builds the cache named by opts.Backend. BackendNone returns nil.
func New(ctx context.Context, opts Options) (Cache, error) {
	switch opts.Backend {
	case BackendNone, "":
		return nil, nil
	case BackendLRU:
		return NewLRU(opts.Size), nil
	case BackendRedis:
		r, err := NewRedis(ctx, RedisConfig{
			Addr:      opts.RedisAddr,
			TTL:       opts.TTL,
			Namespace: opts.Namespace,
		})
		if err != nil {
			return nil, err
		}
		return r, nil
	default:
		return nil, srcherr.New(srcherr.ErrCodeConfigInvalid,
			fmt.Sprintf("unknown cache backend %q", opts.Backend), nil).
			WithSuggestion("Use one of: none, lru, redis")
	}
}

// Key derives the cache key of a query. Term order is irrelevant to the score
// but repeated terms count, so the tokens are sorted and kept.
func Key(query string) string {
	tokens := tokenizer.Tokenize(query)
	slices.Sort(tokens)
	sum := sha256.Sum256([]byte(strings.Join(tokens, " ")))
	return fmt.Sprintf("%x", sum[:16])
}

func cloneResults(results []*store.Result) []*store.Result {
	out := make([]*store.Result, len(results))
	for i, r := range results {
		c := *r
		out[i] = &c
	}
	return out
}
