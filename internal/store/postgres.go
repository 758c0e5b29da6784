package store

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	_ "github.com/lib/pq" // Postgres driver

	srcherr "github.com/rpopa-dp/srch/internal/errors"
)

// PostgresConfig configures the Postgres backend.
type PostgresConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

func (c PostgresConfig) withDefaults() PostgresConfig {
	if c.MaxOpenConns <= 0 {
		c.MaxOpenConns = 4
	}
	if c.MaxIdleConns <= 0 {
		c.MaxIdleConns = 2
	}
	if c.ConnMaxLifetime <= 0 {
		c.ConnMaxLifetime = 30 * time.Minute
	}
	return c
}

// NewPostgresIndex drops any existing index tables in the target database
// and creates an empty index.
func NewPostgresIndex(ctx context.Context, pg PostgresConfig, config IndexConfig) (*SQLIndex, error) {
	return openPostgres(ctx, pg, config, true)
}

// OpenPostgresIndex connects to an existing Postgres index.
func OpenPostgresIndex(ctx context.Context, pg PostgresConfig, config IndexConfig) (*SQLIndex, error) {
	return openPostgres(ctx, pg, config, false)
}

func openPostgres(ctx context.Context, pg PostgresConfig, config IndexConfig, fresh bool) (*SQLIndex, error) {
	if pg.DSN == "" {
		return nil, srcherr.New(srcherr.ErrCodeConfigInvalid, "storage.postgres_dsn is required for the postgres backend", nil)
	}
	pg = pg.withDefaults()

	db, err := sql.Open("postgres", pg.DSN)
	if err != nil {
		return nil, srcherr.StorageError("opening postgres connection", err)
	}
	db.SetMaxOpenConns(pg.MaxOpenConns)
	db.SetMaxIdleConns(pg.MaxIdleConns)
	db.SetConnMaxLifetime(pg.ConnMaxLifetime)

	err = srcherr.Retry(ctx, srcherr.DefaultRetryConfig(), func() error {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		return db.PingContext(pingCtx)
	})
	if err != nil {
		_ = db.Close()
		return nil, srcherr.StorageError("pinging postgres", err).
			WithSuggestion("Check storage.postgres_dsn and that the server is reachable")
	}

	idx := newSQLIndex(db, postgresDialect, BackendPostgres, config)
	if fresh {
		err = idx.setup(ctx, true)
	} else {
		err = idx.checkSchema(ctx)
	}
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	slog.Debug("postgres_index_opened", slog.Bool("fresh", fresh))
	return idx, nil
}
