package store

import (
	"context"
	"fmt"

	srcherr "github.com/rpopa-dp/srch/internal/errors"
)

// Backend represents the index storage backend type.
type Backend string

const (
	// BackendSQLite uses the pure Go SQLite driver (default).
	BackendSQLite Backend = "sqlite"

	// BackendSQLite3 uses the cgo SQLite driver. Same file format as BackendSQLite.
	BackendSQLite3 Backend = "sqlite3"

	// BackendPostgres stores the index in a Postgres database.
	BackendPostgres Backend = "postgres"

	// BackendMemory keeps the index in process memory only.
	BackendMemory Backend = "memory"
)

// Backends lists every supported backend.
var Backends = []Backend{BackendSQLite, BackendSQLite3, BackendPostgres, BackendMemory}

// ParseBackend validates a backend name. An empty name selects BackendSQLite.
func ParseBackend(name string) (Backend, error) {
	if name == "" {
		return BackendSQLite, nil
	}
	for _, b := range Backends {
		if string(b) == name {
			return b, nil
		}
	}
	return "", fmt.Errorf("unknown storage backend: %s (valid options: sqlite, sqlite3, postgres, memory)", name)
}

// IsDurable reports whether the backend survives process exit.
func (b Backend) IsDurable() bool {
	return b != BackendMemory
}

// Options selects and configures a backend.
type Options struct {
	Backend  Backend
	Path     string
	Postgres PostgresConfig
	Index    IndexConfig
}

// Create builds a fresh, empty index, discarding whatever the backend held before.
//
// backend options:
//   - "sqlite" (default): pure Go SQLite at Path; the file and its -wal/-shm siblings are removed first
//   - "sqlite3": cgo SQLite at Path, same on-disk format
//   - "postgres": drops and recreates the index tables at Postgres.DSN
//   - "memory": in-process only
func Create(ctx context.Context, opts Options) (Index, error) {
	switch opts.Backend {
	case BackendSQLite, "":
		return NewSQLiteIndex(ctx, opts.Path, opts.Index)
	case BackendSQLite3:
		return NewSQLite3Index(ctx, opts.Path, opts.Index)
	case BackendPostgres:
		return NewPostgresIndex(ctx, opts.Postgres, opts.Index)
	case BackendMemory:
		return NewMemoryIndex(opts.Index), nil
	default:
		return nil, srcherr.New(srcherr.ErrCodeConfigInvalid,
			fmt.Sprintf("unknown storage backend: %s", opts.Backend), nil)
	}
}

// Open connects to an index previously built by Create.
func Open(ctx context.Context, opts Options) (Index, error) {
	switch opts.Backend {
	case BackendSQLite, "":
		return OpenSQLiteIndex(ctx, opts.Path, opts.Index)
	case BackendSQLite3:
		return OpenSQLite3Index(ctx, opts.Path, opts.Index)
	case BackendPostgres:
		return OpenPostgresIndex(ctx, opts.Postgres, opts.Index)
	case BackendMemory:
		return nil, srcherr.New(srcherr.ErrCodeIndexNotFound, "the memory backend cannot be reopened", nil).
			WithSuggestion("Use a durable backend (sqlite, sqlite3, postgres) to search a built index")
	default:
		return nil, srcherr.New(srcherr.ErrCodeConfigInvalid,
			fmt.Sprintf("unknown storage backend: %s", opts.Backend), nil)
	}
}
