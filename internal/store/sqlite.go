package store

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sync"

	"modernc.org/sqlite" // Pure Go SQLite driver (no CGO)

	srcherr "github.com/rpopa-dp/srch/internal/errors"
)

var registerLog2Once sync.Once
var registerLog2Err error

// registerLog2 installs srch_log2 on every connection of the modernc driver.
// SQLite only ships log2 when built with the math functions enabled.
func registerLog2() error {
	registerLog2Once.Do(func() {
		registerLog2Err = sqlite.RegisterDeterministicScalarFunction("srch_log2", 1,
			func(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
				return log2Value(args[0])
			})
	})
	return registerLog2Err
}

// log2Value is the scalar body shared by both SQLite drivers.
func log2Value(v any) (any, error) {
	var x float64
	switch n := v.(type) {
	case nil:
		return nil, nil
	case float64:
		x = n
	case int64:
		x = float64(n)
	default:
		return nil, fmt.Errorf("srch_log2: unsupported argument type %T", v)
	}
	return math.Log2(x), nil
}

// sqlitePragmas are applied right after opening. DSN parameters may be
// ignored by modernc.org/sqlite so they are set as statements.
var sqlitePragmas = []string{
	"PRAGMA journal_mode = WAL",
	"PRAGMA busy_timeout = 5000",
	"PRAGMA synchronous = NORMAL",
	"PRAGMA foreign_keys = ON",
	"PRAGMA temp_store = MEMORY",
}

// RemoveSQLiteFiles deletes a SQLite database and its WAL and shared-memory files.
func RemoveSQLiteFiles(path string) error {
	for _, p := range []string{path, path + "-wal", path + "-shm"} {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove %s: %w", p, err)
		}
	}
	return nil
}

// validateSQLiteIntegrity checks an existing database file before it is opened.
// Returns nil if the file is absent or healthy.
func validateSQLiteIntegrity(driverName, path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	db, err := sql.Open(driverName, path+"?mode=ro")
	if err != nil {
		return fmt.Errorf("cannot open for validation: %w", err)
	}
	defer db.Close()

	var result string
	if err := db.QueryRow("PRAGMA integrity_check").Scan(&result); err != nil {
		return fmt.Errorf("integrity check failed: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("database corrupted: %s", result)
	}

	var count int
	err = db.QueryRow(`SELECT COUNT(*) FROM sqlite_master
		WHERE type='table' AND name IN ('documents', 'terms', 'term_freq')`).Scan(&count)
	if err != nil {
		return fmt.Errorf("cannot query schema: %w", err)
	}
	if count != 3 {
		return fmt.Errorf("index tables missing")
	}

	return nil
}

// openSQLite opens a SQLite database through driverName and configures it
// for a single writer. An empty path opens an in-memory database.
func openSQLite(driverName, path string) (*sql.DB, error) {
	dsn := ":memory:"
	if path != "" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, srcherr.StorageError(fmt.Sprintf("failed to create directory %s", dir), err)
		}
		dsn = path
	}

	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, srcherr.StorageError("failed to open database", err)
	}

	// Single writer to prevent lock contention
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	for _, pragma := range sqlitePragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, srcherr.StorageError("failed to set pragma", err).WithDetail("pragma", pragma)
		}
	}

	return db, nil
}

func checkpointSQLite(db *sql.DB) {
	_, _ = db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
}

// NewSQLiteIndex creates a fresh SQLite index at path using the pure Go
// driver. Any previous database at path is removed first. An empty path
// creates an in-memory index for testing.
func NewSQLiteIndex(ctx context.Context, path string, config IndexConfig) (*SQLIndex, error) {
	if err := registerLog2(); err != nil {
		return nil, srcherr.StorageError("failed to register srch_log2", err)
	}
	if path != "" {
		if err := RemoveSQLiteFiles(path); err != nil {
			return nil, srcherr.StorageError("failed to remove previous index", err)
		}
	}
	return initSQLite(ctx, "sqlite", BackendSQLite, path, config, true)
}

// OpenSQLiteIndex opens an existing SQLite index built by NewSQLiteIndex.
func OpenSQLiteIndex(ctx context.Context, path string, config IndexConfig) (*SQLIndex, error) {
	if err := registerLog2(); err != nil {
		return nil, srcherr.StorageError("failed to register srch_log2", err)
	}
	if err := requireFile(path); err != nil {
		return nil, err
	}
	if err := validateSQLiteIntegrity("sqlite", path); err != nil {
		slog.Warn("sqlite_index_corrupted",
			slog.String("path", path),
			slog.String("error", err.Error()))
		return nil, srcherr.New(srcherr.ErrCodeStorageSchema, "index is corrupted", err).
			WithSuggestion("Rebuild the index with 'srch index <path>'")
	}
	return initSQLite(ctx, "sqlite", BackendSQLite, path, config, false)
}

func initSQLite(ctx context.Context, driverName string, backend Backend, path string, config IndexConfig, fresh bool) (*SQLIndex, error) {
	db, err := openSQLite(driverName, path)
	if err != nil {
		return nil, err
	}

	idx := newSQLIndex(db, sqliteDialect, backend, config)
	idx.onClose = checkpointSQLite

	if fresh {
		err = idx.setup(ctx, true)
	} else {
		err = idx.checkSchema(ctx)
	}
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	slog.Debug("sqlite_index_opened",
		slog.String("driver", driverName),
		slog.String("path", path),
		slog.Bool("fresh", fresh))
	return idx, nil
}

func requireFile(path string) error {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return srcherr.New(srcherr.ErrCodeIndexNotFound, "no index at "+path, err).
				WithSuggestion("Build one first with 'srch index <path>'")
		}
		return srcherr.StorageError("cannot stat index", err)
	}
	return nil
}
