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

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rpopa-dp/srch/internal/cache"
	"github.com/rpopa-dp/srch/internal/store"
)

// shareResultCache configures the redis cache but serves it from in-process
// LRUs shared by namespace, so separate commands in one test see each other's
// entries the way separate processes share a Redis server.
func shareResultCache(t *testing.T) {
	t.Helper()
	var mu sync.Mutex
	caches := map[string]*cache.LRU{}
	prev := newResultCache
	newResultCache = func(_ context.Context, opts cache.Options) (cache.Cache, error) {
		mu.Lock()
		defer mu.Unlock()
		c, ok := caches[opts.Namespace]
		if !ok {
			c = cache.NewLRU(100)
			caches[opts.Namespace] = c
		}
		return c, nil
	}
	t.Cleanup(func() { newResultCache = prev })
	t.Setenv("SRCH_CACHE_BACKEND", "redis")
	t.Setenv("SRCH_REDIS_ADDR", "127.0.0.1:6379")
}

func TestSearchCmd_RebuildDoesNotServeOldResults(t *testing.T) {
	// Given: a shared cache holding the result of a search on the first build
	isolate(t)
	shareResultCache(t)
	dbPath := filepath.Join(t.TempDir(), "index.db")
	first := writeDocs(t, map[string]string{"old-cat.txt": "cat", "dog.txt": "dog"})
	_, _, err := execute(t, "", "--db", dbPath, "index", "--no-tui", first)
	require.NoError(t, err)
	stdout, _, err := execute(t, "", "--db", dbPath, "search", "cat")
	require.NoError(t, err)
	require.Contains(t, stdout, "old-cat.txt")

	// When: rebuilding the same index path from other documents and searching again
	second := writeDocs(t, map[string]string{"new-cat.txt": "cat", "dog.txt": "dog"})
	_, _, err = execute(t, "", "--db", dbPath, "index", "--no-tui", second)
	require.NoError(t, err)
	stdout, _, err = execute(t, "", "--db", dbPath, "search", "cat")

	// Then: the new build answers
	require.NoError(t, err)
	assert.Contains(t, stdout, "new-cat.txt")
	assert.NotContains(t, stdout, "old-cat.txt")
}

func TestWatchCmd_AddPurgesSharedCache(t *testing.T) {
	// Given: a shared cache holding the result of a search on the current build
	isolate(t)
	shareResultCache(t)
	corpus := writeDocs(t, map[string]string{"cat.txt": "cat", "dog.txt": "dog"})
	dbPath := filepath.Join(t.TempDir(), "index.db")
	_, _, err := execute(t, "", "--db", dbPath, "index", "--no-tui", corpus)
	require.NoError(t, err)
	stdout, _, err := execute(t, "", "--db", dbPath, "search", "cat")
	require.NoError(t, err)
	require.NotContains(t, stdout, "kitten.txt")

	root := NewRootCmd()
	watchOut := &syncBuffer{}
	root.SetOut(watchOut)
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"--db", dbPath, "watch", "--debounce", "50ms", corpus})
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- root.ExecuteContext(ctx) }()

	// When: watch adds a new document that matches the query
	require.Eventually(t, func() bool { return strings.Contains(watchOut.String(), "Watching") }, 5*time.Second, 20*time.Millisecond)
	time.Sleep(300 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(corpus, "kitten.txt"), []byte("cat cat kitten"), 0o644))
	require.Eventually(t, func() bool {
		idx, err := store.Open(context.Background(), store.Options{Backend: store.BackendSQLite, Path: dbPath})
		if err != nil {
			return false
		}
		defer func() { _ = idx.Close() }()
		stats, err := idx.Stats(context.Background())
		return err == nil && stats.Documents == 3
	}, 5*time.Second, 100*time.Millisecond)
	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not stop")
	}

	// Then: the next search sees the added document
	stdout, _, err = execute(t, "", "--db", dbPath, "search", "cat")
	require.NoError(t, err)
	assert.Contains(t, stdout, "kitten.txt")
	assert.Contains(t, stdout, "cat.txt")
}
