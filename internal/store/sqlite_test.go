package store

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	srcherr "github.com/rpopa-dp/srch/internal/errors"
)

func TestSQLiteIndex_Persistence_RoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "index.db")

	// Given: an index built and closed
	idx, err := NewSQLiteIndex(ctx, path, DefaultIndexConfig())
	require.NoError(t, err)
	addAll(t, idx,
		Document{Title: "A", Body: "the cat sat"},
		Document{Title: "B", Body: "the dog ran"},
		Document{Title: "C", Body: "cat cat cat"},
	)
	before, err := idx.Stats(ctx)
	require.NoError(t, err)
	require.NoError(t, idx.Close())

	// When: reopening it
	reopened, err := OpenSQLiteIndex(ctx, path, DefaultIndexConfig())
	require.NoError(t, err)
	defer func() { _ = reopened.Close() }()

	// Then: the same ranking and build id come back
	results, err := reopened.Search(ctx, "cat")
	require.NoError(t, err)
	assert.Equal(t, []string{"C", "A"}, titles(results))

	after, err := reopened.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, before.BuildID, after.BuildID)
	assert.Equal(t, before.Documents, after.Documents)
	assert.False(t, after.CreatedAt.IsZero())
}

func TestSQLiteIndex_Create_DiscardsPreviousIndex(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "index.db")

	// Given: an existing index with data
	idx, err := NewSQLiteIndex(ctx, path, DefaultIndexConfig())
	require.NoError(t, err)
	addAll(t, idx, Document{Title: "A", Body: "old content"})
	first, err := idx.Stats(ctx)
	require.NoError(t, err)
	require.NoError(t, idx.Close())

	// When: creating a new index at the same path
	fresh, err := NewSQLiteIndex(ctx, path, DefaultIndexConfig())
	require.NoError(t, err)
	defer func() { _ = fresh.Close() }()

	// Then: it starts empty with a new build id
	stats, err := fresh.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Documents)
	assert.NotEqual(t, first.BuildID, stats.BuildID)
}

func TestOpenSQLiteIndex_Missing(t *testing.T) {
	_, err := OpenSQLiteIndex(context.Background(), filepath.Join(t.TempDir(), "none.db"), DefaultIndexConfig())

	require.Error(t, err)
	assert.Equal(t, srcherr.ErrCodeIndexNotFound, srcherr.GetCode(err))
}

func TestOpenSQLiteIndex_Corrupted(t *testing.T) {
	// Given: a file that is not a database
	path := filepath.Join(t.TempDir(), "index.db")
	require.NoError(t, os.WriteFile(path, []byte(strings.Repeat("garbage ", 512)), 0644))

	// When: opening it
	_, err := OpenSQLiteIndex(context.Background(), path, DefaultIndexConfig())

	// Then: a schema error suggests rebuilding
	require.Error(t, err)
	assert.Equal(t, srcherr.ErrCodeStorageSchema, srcherr.GetCode(err))
	assert.True(t, srcherr.IsFatal(err))
}

func TestRemoveSQLiteFiles(t *testing.T) {
	// Given: a database with sidecar files
	dir := t.TempDir()
	path := filepath.Join(dir, "index.db")
	for _, p := range []string{path, path + "-wal", path + "-shm"} {
		require.NoError(t, os.WriteFile(p, []byte("x"), 0644))
	}

	// When: removing
	require.NoError(t, RemoveSQLiteFiles(path))

	// Then: all three are gone and a second call is harmless
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
	assert.NoError(t, RemoveSQLiteFiles(path))
}

func TestLog2Value(t *testing.T) {
	v, err := log2Value(8.0)
	require.NoError(t, err)
	assert.Equal(t, 3.0, v)

	v, err = log2Value(int64(4))
	require.NoError(t, err)
	assert.Equal(t, 2.0, v)

	v, err = log2Value(nil)
	require.NoError(t, err)
	assert.Nil(t, v)

	_, err = log2Value("x")
	assert.Error(t, err)
}

func TestDialect_SearchQuery(t *testing.T) {
	// Given/When: a two-term query in each dialect
	sqliteSQL := sqliteDialect.searchQuery(2)
	pgSQL := postgresDialect.searchQuery(2)

	// Then: placeholders follow the driver convention
	assert.Contains(t, sqliteSQL, "VALUES (CAST(? AS TEXT)), (CAST(? AS TEXT))")
	assert.Contains(t, sqliteSQL, "srch_log2(")
	assert.True(t, strings.HasSuffix(sqliteSQL, "LIMIT ?"))

	assert.Contains(t, pgSQL, "VALUES (CAST($1 AS TEXT)), (CAST($2 AS TEXT))")
	assert.Contains(t, pgSQL, "ln(2.0)")
	assert.True(t, strings.HasSuffix(pgSQL, "LIMIT $3"))

	// And: both filter on a strictly positive rank
	for _, q := range []string{sqliteSQL, pgSQL} {
		assert.Contains(t, q, "> 0")
	}

	// And: ties break on byte order of titles whatever the database locale
	assert.Contains(t, sqliteSQL, "ORDER BY rank DESC, documents.title ASC, documents.id ASC")
	assert.Contains(t, pgSQL, `ORDER BY rank DESC, documents.title COLLATE "C" ASC, documents.id ASC`)
}

func TestBatches(t *testing.T) {
	items := []int{1, 2, 3, 4, 5, 6, 7}

	assert.Equal(t, [][]int{{1, 2, 3}, {4, 5, 6}, {7}}, batches(items, 9, 3))
	assert.Equal(t, [][]int{{1}, {2}, {3}, {4}, {5}, {6}, {7}}, batches(items, 2, 3))
	assert.Nil(t, batches([]int{}, 10, 1))
}

func TestParseBackend(t *testing.T) {
	b, err := ParseBackend("")
	require.NoError(t, err)
	assert.Equal(t, BackendSQLite, b)

	for _, name := range []string{"sqlite", "sqlite3", "postgres", "memory"} {
		b, err := ParseBackend(name)
		require.NoError(t, err)
		assert.Equal(t, Backend(name), b)
	}

	_, err = ParseBackend("bleve")
	assert.Error(t, err)
	assert.False(t, BackendMemory.IsDurable())
	assert.True(t, BackendPostgres.IsDurable())
}

func TestOpen_MemoryBackend(t *testing.T) {
	_, err := Open(context.Background(), Options{Backend: BackendMemory})

	require.Error(t, err)
	assert.Equal(t, srcherr.ErrCodeIndexNotFound, srcherr.GetCode(err))
}

func TestCreate_SelectsBackend(t *testing.T) {
	ctx := context.Background()

	idx, err := Create(ctx, Options{Backend: BackendMemory})
	require.NoError(t, err)
	assert.IsType(t, &MemoryIndex{}, idx)

	idx, err = Create(ctx, Options{Backend: BackendSQLite, Path: filepath.Join(t.TempDir(), "i.db")})
	require.NoError(t, err)
	defer func() { _ = idx.Close() }()
	assert.IsType(t, &SQLIndex{}, idx)

	_, err = Create(ctx, Options{Backend: "unknown"})
	assert.Equal(t, srcherr.ErrCodeConfigInvalid, srcherr.GetCode(err))
}

func TestPostgresIndex_RequiresDSN(t *testing.T) {
	_, err := NewPostgresIndex(context.Background(), PostgresConfig{}, DefaultIndexConfig())

	require.Error(t, err)
	assert.Equal(t, srcherr.ErrCodeConfigInvalid, srcherr.GetCode(err))
}

func TestSQLiteIndex_Entries_ReportsOrphanPostings(t *testing.T) {
	// Given: an index whose "dog" terms row was removed behind its back
	ctx := context.Background()
	idx, err := NewSQLiteIndex(ctx, filepath.Join(t.TempDir(), "index.db"), DefaultIndexConfig())
	require.NoError(t, err)
	defer func() { _ = idx.Close() }()
	addAll(t, idx,
		Document{Title: "A", Body: "cat dog"},
		Document{Title: "B", Body: "cat"},
	)
	var dogID int64
	require.NoError(t, idx.db.QueryRowContext(ctx, `SELECT id FROM terms WHERE term = 'dog'`).Scan(&dogID))
	_, err = idx.db.ExecContext(ctx, "PRAGMA foreign_keys = OFF")
	require.NoError(t, err)
	_, err = idx.db.ExecContext(ctx, `DELETE FROM terms WHERE id = ?`, dogID)
	require.NoError(t, err)
	_, err = idx.db.ExecContext(ctx, "PRAGMA foreign_keys = ON")
	require.NoError(t, err)

	// When: listing entries
	entries, err := idx.Entries(ctx)
	require.NoError(t, err)

	// Then: the posting is kept under its orphan name
	require.Len(t, entries, 2)
	assert.Equal(t, map[string]int{"cat": 1, OrphanTerm(dogID): 1}, entries[0].TermFreq)
	assert.Equal(t, map[string]int{"cat": 1}, entries[1].TermFreq)
}
