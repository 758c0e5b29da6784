package store

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	srcherr "github.com/rpopa-dp/srch/internal/errors"
)

// WriterLock is a cross-process lock that keeps a single writer per index.
// Reads never take it.
type WriterLock struct {
	path   string
	flock  *flock.Flock
	locked bool
}

// NewWriterLock creates a lock guarding the index at indexPath.
// The lock file is <indexPath>.lock.
func NewWriterLock(indexPath string) *WriterLock {
	lockPath := indexPath + ".lock"
	return &WriterLock{
		path:  lockPath,
		flock: flock.New(lockPath),
	}
}

// TryLock acquires the lock without blocking. It returns an
// ERR_204_INDEX_LOCKED error if another process holds it.
func (l *WriterLock) TryLock() error {
	dir := filepath.Dir(l.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create lock directory: %w", err)
	}

	acquired, err := l.flock.TryLock()
	if err != nil {
		return fmt.Errorf("failed to acquire lock: %w", err)
	}
	if !acquired {
		return srcherr.New(srcherr.ErrCodeIndexLocked, "index is being written by another process", nil).
			WithDetail("lock", l.path).
			WithSuggestion("Wait for the other 'srch index' or 'srch watch' to finish")
	}

	l.locked = true
	return nil
}

// Unlock releases the lock.
// It's safe to call Unlock multiple times.
func (l *WriterLock) Unlock() error {
	if !l.locked {
		return nil
	}

	l.locked = false
	if err := l.flock.Unlock(); err != nil {
		return fmt.Errorf("failed to release lock: %w", err)
	}
	return nil
}

// Path returns the path to the lock file.
func (l *WriterLock) Path() string {
	return l.path
}

// IsLocked returns true if the lock is currently held.
func (l *WriterLock) IsLocked() bool {
	return l.locked
}
