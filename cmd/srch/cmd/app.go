package cmd

import (
	"context"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/rpopa-dp/srch/internal/cache"
	"github.com/rpopa-dp/srch/internal/config"
	"github.com/rpopa-dp/srch/internal/store"
	"github.com/rpopa-dp/srch/internal/telemetry"
)

// storeOptions translates configuration into index factory options.
func storeOptions(cfg *config.Config) (store.Options, error) {
	backend, err := store.ParseBackend(cfg.Storage.Backend)
	if err != nil {
		return store.Options{}, err
	}
	return store.Options{
		Backend:  backend,
		Path:     cfg.Storage.Path,
		Postgres: store.PostgresConfig{DSN: cfg.Storage.PostgresDSN},
		Index: store.IndexConfig{
			MaxResults: cfg.Search.MaxResults,
		},
	}, nil
}

// location describes where the index lives without leaking credentials.
func location(opts store.Options) string {
	switch opts.Backend {
	case store.BackendPostgres:
		return "postgres"
	case store.BackendMemory:
		return "memory"
	default:
		return opts.Path
	}
}

// writerLock returns the single-writer lock for file-backed indexes, or nil
// when the backend has no file to guard.
func writerLock(opts store.Options) *store.WriterLock {
	switch opts.Backend {
	case store.BackendSQLite, store.BackendSQLite3, "":
		return store.NewWriterLock(opts.Path)
	default:
		return nil
	}
}

// acquire takes lock when non-nil and returns its release function.
func acquire(lock *store.WriterLock) (func(), error) {
	if lock == nil {
		return func() {}, nil
	}
	if err := lock.TryLock(); err != nil {
		return nil, err
	}
	return func() {
		if err := lock.Unlock(); err != nil {
			slog.Warn("failed to release writer lock", slog.String("error", err.Error()))
		}
	}, nil
}

// cacheNamespace keys Redis entries by index and build so two indexes can
// share a server and a rebuilt index never sees the previous build's results.
func cacheNamespace(opts store.Options, buildID string) string {
	id := opts.Path
	if opts.Backend == store.BackendPostgres {
		id = opts.Postgres.DSN
	}
	sum := sha256.Sum256([]byte(string(opts.Backend) + "|" + id + "|" + buildID))
	return fmt.Sprintf("%x", sum[:6])
}

// newResultCache builds a result cache. Swapped in tests.
var newResultCache = cache.New

// openResultCache builds the configured result cache for idx, namespaced by
// its current build. It returns nil when caching is off.
func openResultCache(ctx context.Context, cfg *config.Config, opts store.Options, idx store.Index) (cache.Cache, error) {
	stats, err := idx.Stats(ctx)
	if err != nil {
		return nil, err
	}
	return newResultCache(ctx, cache.Options{
		Backend:   cache.Backend(cfg.Cache.Backend),
		Size:      cfg.Cache.Size,
		RedisAddr: cfg.Cache.RedisAddr,
		TTL:       cfg.Cache.TTLDuration(),
		Namespace: cacheNamespace(opts, stats.BuildID),
	})
}

// searchStack is an index opened for querying, with the configured result
// cache, Prometheus metrics and query telemetry layered on top. Metrics is
// nil unless metrics are enabled.
type searchStack struct {
	Index   store.Index
	Metrics *telemetry.Metrics
	queries *telemetry.QueryMetrics
	qstore  *telemetry.SQLiteMetricsStore
}

// openSearchStack opens the configured index read-side.
func openSearchStack(ctx context.Context, cfg *config.Config, useCache bool) (*searchStack, error) {
	opts, err := storeOptions(cfg)
	if err != nil {
		return nil, err
	}
	idx, err := store.Open(ctx, opts)
	if err != nil {
		return nil, err
	}

	s := &searchStack{}
	var collectors []prometheus.Collector

	if useCache {
		c, err := openResultCache(ctx, cfg, opts, idx)
		if err != nil {
			_ = idx.Close()
			return nil, err
		}
		idx = cache.NewCachedIndex(idx, c)
		if cached, ok := idx.(*cache.CachedIndex); ok {
			collectors = append(collectors, cached.Collectors()...)
		}
	}

	if cfg.Telemetry.Enabled {
		s.qstore, s.queries = openQueryTelemetry(cfg.Telemetry.Path)
	}

	if cfg.Metrics.Enabled {
		s.Metrics = telemetry.NewMetrics()
		if err := s.Metrics.Register(collectors...); err != nil {
			slog.Warn("failed to register cache metrics", slog.String("error", err.Error()))
		}
	}

	if s.Metrics != nil || s.queries != nil {
		idx = telemetry.NewInstrumentedIndex(idx, s.Metrics, s.queries)
	}
	s.Index = idx
	return s, nil
}

// openQueryTelemetry opens the persisted query statistics. Failure only
// disables telemetry.
func openQueryTelemetry(path string) (*telemetry.SQLiteMetricsStore, *telemetry.QueryMetrics) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		slog.Warn("query telemetry disabled", slog.String("error", err.Error()))
		return nil, nil
	}
	qstore, err := telemetry.OpenSQLiteMetricsStore(path)
	if err != nil {
		slog.Warn("query telemetry disabled", slog.String("error", err.Error()))
		return nil, nil
	}
	return qstore, telemetry.NewQueryMetrics(qstore)
}

// Close flushes telemetry and closes every layer.
func (s *searchStack) Close() error {
	if s.queries != nil {
		if err := s.queries.Close(); err != nil {
			slog.Warn("failed to flush query telemetry", slog.String("error", err.Error()))
		}
	}
	if s.qstore != nil {
		_ = s.qstore.Close()
	}
	return s.Index.Close()
}
