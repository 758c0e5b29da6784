package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	srcherr "github.com/rpopa-dp/srch/internal/errors"
)

func TestWriterLock_SecondWriterRejected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.db")

	// Given: a held writer lock
	first := NewWriterLock(path)
	require.NoError(t, first.TryLock())
	defer func() { _ = first.Unlock() }()
	assert.True(t, first.IsLocked())
	assert.Equal(t, path+".lock", first.Path())

	// When: a second writer tries the same index
	second := NewWriterLock(path)
	err := second.TryLock()

	// Then: it is told the index is locked
	require.Error(t, err)
	assert.Equal(t, srcherr.ErrCodeIndexLocked, srcherr.GetCode(err))
	assert.False(t, second.IsLocked())

	// And: after release the second writer succeeds
	require.NoError(t, first.Unlock())
	require.NoError(t, second.TryLock())
	assert.NoError(t, second.Unlock())
}

func TestWriterLock_UnlockIdempotent(t *testing.T) {
	l := NewWriterLock(filepath.Join(t.TempDir(), "index.db"))

	assert.NoError(t, l.Unlock())
	require.NoError(t, l.TryLock())
	assert.NoError(t, l.Unlock())
	assert.NoError(t, l.Unlock())
}
