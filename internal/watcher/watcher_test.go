package watcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	srcherr "github.com/rpopa-dp/srch/internal/errors"
)

func TestOperation_String(t *testing.T) {
	tests := []struct {
		op   Operation
		want string
	}{
		{OpCreate, "CREATE"},
		{OpModify, "MODIFY"},
		{OpDelete, "DELETE"},
		{OpRename, "RENAME"},
		{Operation(99), "UNKNOWN"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.op.String())
	}
}

func TestOptions_WithDefaults(t *testing.T) {
	opts := Options{DebounceWindow: time.Second}.WithDefaults()

	assert.Equal(t, time.Second, opts.DebounceWindow)
	assert.Equal(t, 5*time.Second, opts.PollInterval)
	assert.Equal(t, 100, opts.EventBufferSize)
}

func TestOptions_Ignored(t *testing.T) {
	opts := Options{IgnorePatterns: []string{"index.db*", "*.lock"}}

	assert.False(t, opts.ignored("notes.txt"))
	assert.False(t, opts.ignored("sub/notes.txt"))
	assert.True(t, opts.ignored(".hidden"))
	assert.True(t, opts.ignored("sub/.git/config"))
	assert.True(t, opts.ignored("index.db-wal"))
	assert.True(t, opts.ignored("sub/index.db.lock"))
}

func TestNew_Errors(t *testing.T) {
	_, err := New(filepath.Join(t.TempDir(), "missing"), DefaultOptions())
	assert.Equal(t, srcherr.ErrCodeSourceNotFound, srcherr.GetCode(err))

	file := filepath.Join(t.TempDir(), "file.txt")
	require.NoError(t, os.WriteFile(file, nil, 0644))
	_, err = New(file, DefaultOptions())
	assert.Equal(t, srcherr.ErrCodeInvalidInput, srcherr.GetCode(err))
}

// startWatcher runs w until the test ends.
func startWatcher(t *testing.T, w *Watcher) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Error("watcher did not stop")
		}
	})
	// Let the watcher register its directories.
	time.Sleep(100 * time.Millisecond)
}

// waitFor collects batches until one contains want.
func waitFor(t *testing.T, w *Watcher, want string, op Operation) {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		select {
		case batch, ok := <-w.Events():
			require.True(t, ok, "events closed")
			for _, e := range batch {
				if e.Path == want && e.Operation == op {
					return
				}
			}
		case err := <-w.Errors():
			t.Fatalf("unexpected error: %v", err)
		case <-deadline:
			t.Fatalf("timeout waiting for %s %s", op, want)
		}
	}
}

func TestWatcher_DetectsFileCreation(t *testing.T) {
	// Given: a watched directory
	dir := t.TempDir()
	w, err := New(dir, Options{DebounceWindow: 30 * time.Millisecond})
	require.NoError(t, err)
	assert.Equal(t, "fsnotify", w.Mode())
	startWatcher(t, w)

	// When: a file is created
	path := filepath.Join(dir, "new.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0644))

	// Then: a CREATE event with the root-joined path arrives
	waitFor(t, w, path, OpCreate)
}

func TestWatcher_DetectsFilesInNewSubdirectory(t *testing.T) {
	dir := t.TempDir()
	w, err := New(dir, Options{DebounceWindow: 30 * time.Millisecond})
	require.NoError(t, err)
	startWatcher(t, w)

	// A directory with content appears in one step.
	staging := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(staging, "inner.txt"), []byte("x"), 0644))
	sub := filepath.Join(dir, "sub")
	require.NoError(t, os.Rename(staging, sub))

	waitFor(t, w, filepath.Join(sub, "inner.txt"), OpCreate)
}

func TestWatcher_Polling(t *testing.T) {
	// Given: a polling watcher over a directory with one file
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "old.txt"), []byte("x"), 0644))
	w, err := New(dir, Options{
		DebounceWindow: 20 * time.Millisecond,
		PollInterval:   50 * time.Millisecond,
		ForcePolling:   true,
	})
	require.NoError(t, err)
	assert.Equal(t, "polling", w.Mode())
	startWatcher(t, w)

	// When: a new file appears
	path := filepath.Join(dir, "fresh.txt")
	require.NoError(t, os.WriteFile(path, []byte("y"), 0644))

	// Then: it is reported as created
	waitFor(t, w, path, OpCreate)
}

func TestWatcher_Run_ClosesChannels(t *testing.T) {
	w, err := New(t.TempDir(), DefaultOptions())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, w.Run(ctx))

	_, ok := <-w.Events()
	assert.False(t, ok)
	_, ok = <-w.Errors()
	assert.False(t, ok)
}

func TestDiff(t *testing.T) {
	t0 := time.Unix(100, 0)
	before := map[string]fileState{
		"same":    {modTime: t0, size: 1},
		"changed": {modTime: t0, size: 1},
		"gone":    {modTime: t0, size: 1},
	}
	after := map[string]fileState{
		"same":    {modTime: t0, size: 1},
		"changed": {modTime: t0, size: 2},
		"new":     {modTime: t0, size: 1},
	}

	got := map[string]Operation{}
	for _, e := range diff(before, after) {
		got[e.Path] = e.Operation
	}
	assert.Equal(t, map[string]Operation{"changed": OpModify, "gone": OpDelete, "new": OpCreate}, got)
}
