//go:build cgo

package store

import (
	"context"
	"database/sql"
	"math"
	"sync"

	"github.com/mattn/go-sqlite3"

	srcherr "github.com/rpopa-dp/srch/internal/errors"
)

// sqlite3DriverName is the cgo SQLite driver with srch_log2 registered
// on every new connection.
const sqlite3DriverName = "sqlite3_srch"

var registerSQLite3Once sync.Once

func registerSQLite3() {
	registerSQLite3Once.Do(func() {
		sql.Register(sqlite3DriverName, &sqlite3.SQLiteDriver{
			ConnectHook: func(conn *sqlite3.SQLiteConn) error {
				return conn.RegisterFunc("srch_log2", math.Log2, true)
			},
		})
	})
}

// NewSQLite3Index creates a fresh SQLite index at path using the cgo driver.
// The on-disk format is identical to NewSQLiteIndex.
func NewSQLite3Index(ctx context.Context, path string, config IndexConfig) (*SQLIndex, error) {
	registerSQLite3()
	if path != "" {
		if err := RemoveSQLiteFiles(path); err != nil {
			return nil, srcherr.StorageError("failed to remove previous index", err)
		}
	}
	return initSQLite(ctx, sqlite3DriverName, BackendSQLite3, path, config, true)
}

// OpenSQLite3Index opens an existing SQLite index with the cgo driver.
func OpenSQLite3Index(ctx context.Context, path string, config IndexConfig) (*SQLIndex, error) {
	registerSQLite3()
	if err := requireFile(path); err != nil {
		return nil, err
	}
	if err := validateSQLiteIntegrity(sqlite3DriverName, path); err != nil {
		return nil, srcherr.New(srcherr.ErrCodeStorageSchema, "index is corrupted", err).
			WithSuggestion("Rebuild the index with 'srch index <path>'")
	}
	return initSQLite(ctx, sqlite3DriverName, BackendSQLite3, path, config, false)
}

// SQLite3Available reports whether the cgo driver was compiled in.
func SQLite3Available() bool { return true }
