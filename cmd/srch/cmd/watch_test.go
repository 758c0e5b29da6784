package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rpopa-dp/srch/internal/config"
	"github.com/rpopa-dp/srch/internal/store"
)

// syncBuffer is a bytes.Buffer safe for a concurrent writer and reader.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestOpenOrBuild(t *testing.T) {
	// Given: a corpus and no index yet
	isolate(t)
	corpus := writeCorpus(t)
	cfg := config.NewConfig()
	cfg.Storage.Path = filepath.Join(t.TempDir(), "index.db")
	opts, err := storeOptions(cfg)
	require.NoError(t, err)
	cmd := &cobra.Command{}
	cmd.SetOut(&bytes.Buffer{})
	ctx := context.Background()

	// When: opening for watch the first time
	idx, built, err := openOrBuild(ctx, cmd, cfg, opts, corpus, false)

	// Then: the index is built from the directory
	require.NoError(t, err)
	assert.True(t, built)
	stats, err := idx.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Documents)
	require.NoError(t, idx.Close())

	// When: opening again
	idx, built, err = openOrBuild(ctx, cmd, cfg, opts, corpus, false)

	// Then: the existing index is reused
	require.NoError(t, err)
	assert.False(t, built)
	require.NoError(t, idx.Close())
}

func TestOpenOrBuild_NotADirectory(t *testing.T) {
	isolate(t)
	file := filepath.Join(t.TempDir(), "doc.txt")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))
	cfg := config.NewConfig()
	opts := store.Options{Backend: store.BackendMemory}
	cmd := &cobra.Command{}
	cmd.SetOut(&bytes.Buffer{})

	_, _, err := openOrBuild(context.Background(), cmd, cfg, opts, file, true)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a directory")
}

func TestWatchCmd_IndexesNewFiles(t *testing.T) {
	// Given: a watched directory with the index stored inside it
	isolate(t)
	corpus := writeCorpus(t)
	dbPath := filepath.Join(corpus, "index.db")

	root := NewRootCmd()
	stdout := &syncBuffer{}
	root.SetOut(stdout)
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"--db", dbPath, "watch", "--debounce", "50ms", corpus})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- root.ExecuteContext(ctx) }()

	// When: a new file appears after the watcher starts
	require.Eventually(t, func() bool { return strings.Contains(stdout.String(), "Watching") }, 5*time.Second, 20*time.Millisecond)
	time.Sleep(300 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(corpus, "zig.txt"), []byte("Zig programs comptime"), 0o644))
	require.Eventually(t, func() bool {
		idx, err := store.Open(context.Background(), store.Options{Backend: store.BackendSQLite, Path: dbPath})
		if err != nil {
			return false
		}
		defer func() { _ = idx.Close() }()
		stats, err := idx.Stats(context.Background())
		return err == nil && stats.Documents == 4
	}, 5*time.Second, 100*time.Millisecond)
	cancel()

	// Then: the run ends cleanly and reports the addition
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not stop")
	}
	assert.Contains(t, stdout.String(), "1 documents indexed")
}
