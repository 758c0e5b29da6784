package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate keeps user config and telemetry out of the test's way.
func isolate(t *testing.T) {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(home, ".config"))
	t.Setenv("SRCH_TELEMETRY_ENABLED", "false")
	t.Setenv("SRCH_METRICS_ENABLED", "false")
	t.Setenv("SRCH_CACHE_BACKEND", "none")
}

// execute runs the CLI with args and stdin, returning stdout and stderr.
func execute(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	root := NewRootCmd()
	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

// writeCorpus creates a small document directory.
func writeCorpus(t *testing.T) string {
	t.Helper()
	return writeDocs(t, map[string]string{
		"go.txt":     "The Go gopher writes concurrent programs.",
		"python.txt": "Python programs use indentation.",
		"rust.txt":   "Rust programs borrow memory safely.",
	})
}

// writeDocs creates a directory holding one file per entry of docs.
func writeDocs(t *testing.T, docs map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, body := range docs {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
	}
	return dir
}

func TestRootCmd_InvalidCommand(t *testing.T) {
	// Given: an isolated environment
	isolate(t)

	// When: running an unknown subcommand
	_, _, err := execute(t, "", "frobnicate")

	// Then: an InvalidCommandError names it
	require.Error(t, err)
	var invalid *InvalidCommandError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, "frobnicate", invalid.Name)

	buf := &bytes.Buffer{}
	printError(buf, err)
	assert.Equal(t, "ERROR: invalid command \"frobnicate\"\n", buf.String())
}

func TestRootCmd_NoArgsPrintsHelp(t *testing.T) {
	// Given: an isolated environment
	isolate(t)

	// When: running with no arguments
	stdout, _, err := execute(t, "")

	// Then: help is printed
	require.NoError(t, err)
	assert.Contains(t, stdout, "Usage:")
	assert.Contains(t, stdout, "search")
}

func TestPrintError_Canceled(t *testing.T) {
	buf := &bytes.Buffer{}
	printError(buf, context.Canceled)
	assert.Equal(t, "Interrupted\n", buf.String())
}

func TestRootCmd_InvalidProjectConfig(t *testing.T) {
	// Given: a project config with an out-of-range max_results
	isolate(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".srch.yaml"), []byte("search:\n  max_results: 50\n"), 0o644))

	// When: running a command that loads config
	_, _, err := execute(t, "", "-C", dir, "stats")

	// Then: the config error surfaces
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max_results")
}
