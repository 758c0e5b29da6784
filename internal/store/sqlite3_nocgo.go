//go:build !cgo

package store

import (
	"context"

	srcherr "github.com/rpopa-dp/srch/internal/errors"
)

func errNoCgo() error {
	return srcherr.New(srcherr.ErrCodeStorage, "the sqlite3 backend requires a cgo build", nil).
		WithSuggestion("Use storage.backend: sqlite, or rebuild with CGO_ENABLED=1")
}

// NewSQLite3Index is unavailable without cgo.
func NewSQLite3Index(context.Context, string, IndexConfig) (*SQLIndex, error) {
	return nil, errNoCgo()
}

// OpenSQLite3Index is unavailable without cgo.
func OpenSQLite3Index(context.Context, string, IndexConfig) (*SQLIndex, error) {
	return nil, errNoCgo()
}

// SQLite3Available reports whether the cgo driver was compiled in.
func SQLite3Available() bool { return false }
