package cmd

import (
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	srcherr "github.com/rpopa-dp/srch/internal/errors"
)

// buildIndex indexes a fresh corpus into a temp SQLite file and returns its path.
func buildIndex(t *testing.T) (dbPath, corpus string) {
	t.Helper()
	corpus = writeCorpus(t)
	dbPath = filepath.Join(t.TempDir(), "index.db")
	_, _, err := execute(t, "", "--db", dbPath, "index", "--no-tui", corpus)
	require.NoError(t, err)
	return dbPath, corpus
}

func TestSearchCmd_OneShot(t *testing.T) {
	// Given: an index over three documents
	isolate(t)
	dbPath, corpus := buildIndex(t)

	// When: searching for a term only one document contains
	stdout, _, err := execute(t, "", "--db", dbPath, "search", "gopher")

	// Then: that document is the single result
	require.NoError(t, err)
	assert.Contains(t, stdout, "RESULTS (")
	assert.Contains(t, stdout, filepath.Join(corpus, "go.txt"))
	assert.NotContains(t, stdout, "python.txt")
}

func TestSearchCmd_JSON(t *testing.T) {
	// Given: an index over three documents
	isolate(t)
	dbPath, corpus := buildIndex(t)

	// When: searching with JSON output
	stdout, _, err := execute(t, "", "--db", dbPath, "search", "--format", "json", "gopher")

	// Then: the result carries a positive score
	require.NoError(t, err)
	var got searchOutput
	require.NoError(t, json.Unmarshal([]byte(stdout), &got))
	assert.Equal(t, "gopher", got.Query)
	require.Len(t, got.Results, 1)
	assert.Equal(t, filepath.Join(corpus, "go.txt"), got.Results[0].Title)
	assert.Greater(t, got.Results[0].Score, 0.0)
}

func TestSearchCmd_TermInEveryDocumentHasNoResults(t *testing.T) {
	// Given: an index where every document says "programs"
	isolate(t)
	dbPath, _ := buildIndex(t)

	// When: searching for it
	stdout, _, err := execute(t, "", "--db", dbPath, "search", "--format", "json", "programs")

	// Then: its zero IDF leaves no result with a positive score
	require.NoError(t, err)
	var got searchOutput
	require.NoError(t, json.Unmarshal([]byte(stdout), &got))
	assert.Empty(t, got.Results)
}

func TestSearchCmd_Loop(t *testing.T) {
	// Given: an index and two queries on stdin
	isolate(t)
	dbPath, _ := buildIndex(t)

	// When: running search without a query
	stdout, _, err := execute(t, "gopher\nrust\n", "--db", dbPath, "search")

	// Then: every query is answered and the loop ends at end of input
	require.NoError(t, err)
	assert.Equal(t, 3, strings.Count(stdout, "query> "))
	assert.Equal(t, 2, strings.Count(stdout, "RESULTS ("))
	assert.Contains(t, stdout, "go.txt")
	assert.Contains(t, stdout, "rust.txt")
}

func TestSearchCmd_LoopLastLineWithoutNewline(t *testing.T) {
	// Given: a final query without a trailing newline
	isolate(t)
	dbPath, _ := buildIndex(t)

	// When: running the loop
	stdout, _, err := execute(t, "gopher", "--db", dbPath, "search")

	// Then: the query still runs
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(stdout, "RESULTS ("))
}

func TestSearchCmd_MissingIndex(t *testing.T) {
	// Given: no index file
	isolate(t)
	dbPath := filepath.Join(t.TempDir(), "missing.db")

	// When: searching
	_, _, err := execute(t, "", "--db", dbPath, "search", "gopher")

	// Then: the index-not-found code is reported
	require.Error(t, err)
	assert.Equal(t, srcherr.ErrCodeIndexNotFound, srcherr.GetCode(err))
}

func TestSearchCmd_UnknownFormat(t *testing.T) {
	isolate(t)
	_, _, err := execute(t, "", "--db", filepath.Join(t.TempDir(), "x.db"), "search", "--format", "xml", "gopher")
	require.Error(t, err)
	assert.Equal(t, srcherr.ErrCodeInvalidInput, srcherr.GetCode(err))
}
