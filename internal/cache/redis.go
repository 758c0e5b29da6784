package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	srcherr "github.com/rpopa-dp/srch/internal/errors"
	"github.com/rpopa-dp/srch/internal/store"
)

const keyPrefix = "search:"

// RedisConfig configures the shared cache.
type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	TTL       time.Duration
	Namespace string
}

// Redis caches results in a Redis server so several search processes can
// share them.
type Redis struct {
	rdb    *redis.Client
	ttl    time.Duration
	prefix string
	logger *slog.Logger
}

// NewRedis connects and verifies the server with a PING.
func NewRedis(ctx context.Context, cfg RedisConfig) (*Redis, error) {
	if cfg.Addr == "" {
		return nil, srcherr.New(srcherr.ErrCodeConfigInvalid, "redis cache requires an address", nil).
			WithSuggestion("Set cache.redis_addr or SRCH_REDIS_ADDR")
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	ping := func() error {
		pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		return rdb.Ping(pctx).Err()
	}
	if err := srcherr.Retry(ctx, srcherr.DefaultRetryConfig(), ping); err != nil {
		_ = rdb.Close()
		return nil, srcherr.StorageError("redis ping failed", err).WithDetail("addr", cfg.Addr)
	}

	prefix := keyPrefix
	if cfg.Namespace != "" {
		prefix += cfg.Namespace + ":"
	}
	return &Redis{
		rdb:    rdb,
		ttl:    cfg.TTL,
		prefix: prefix,
		logger: slog.Default().With("component", "result-cache"),
	}, nil
}

// Get implements Cache. Errors count as misses.
func (r *Redis) Get(ctx context.Context, key string) ([]*store.Result, bool) {
	data, err := r.rdb.Get(ctx, r.prefix+key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			r.logger.Error("cache get failed", "key", key, "error", err)
		}
		return nil, false
	}
	var results []*store.Result
	if err := json.Unmarshal(data, &results); err != nil {
		r.logger.Error("cache unmarshal failed", "key", key, "error", err)
		return nil, false
	}
	return results, true
}

// Set implements Cache.
func (r *Redis) Set(ctx context.Context, key string, results []*store.Result) {
	data, err := json.Marshal(results)
	if err != nil {
		r.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	if err := r.rdb.Set(ctx, r.prefix+key, data, r.ttl).Err(); err != nil {
		r.logger.Error("cache set failed", "key", key, "error", err)
	}
}

// Purge implements Cache by scanning and deleting the namespace's keys.
func (r *Redis) Purge(ctx context.Context) error {
	var deleted int64
	iter := r.rdb.Scan(ctx, 0, r.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		if err := r.rdb.Del(ctx, iter.Val()).Err(); err != nil {
			return fmt.Errorf("deleting key %s: %w", iter.Val(), err)
		}
		deleted++
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("scanning %s*: %w", r.prefix, err)
	}
	r.logger.Debug("cache purged", "keys_deleted", deleted)
	return nil
}

// Close implements Cache.
func (r *Redis) Close() error {
	return r.rdb.Close()
}
