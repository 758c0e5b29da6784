package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rpopa-dp/srch/configs"
	"github.com/rpopa-dp/srch/internal/config"
)

// clearOverrides drops the environment set by isolate so defaults show.
func clearOverrides(t *testing.T) {
	t.Helper()
	for _, key := range []string{"SRCH_TELEMETRY_ENABLED", "SRCH_METRICS_ENABLED", "SRCH_CACHE_BACKEND"} {
		t.Setenv(key, "")
	}
}

func TestConfigShow_YAMLReflectsFlags(t *testing.T) {
	// Given: a --db override
	isolate(t)
	dbPath := filepath.Join(t.TempDir(), "custom.db")

	// When: showing the effective config
	stdout, _, err := execute(t, "", "--db", dbPath, "config", "show")

	// Then: the override appears in the YAML
	require.NoError(t, err)
	assert.Contains(t, stdout, "backend: sqlite")
	assert.Contains(t, stdout, dbPath)
}

func TestConfigShow_TOML(t *testing.T) {
	isolate(t)

	stdout, _, err := execute(t, "", "config", "show", "--format", "toml")

	require.NoError(t, err)
	assert.Contains(t, stdout, "[storage]")
	assert.Contains(t, stdout, "max_results = 10")
}

func TestConfigShow_OutputFileLoadsBack(t *testing.T) {
	// Given: a --db override and a target project file
	isolate(t)
	dbPath := filepath.Join(t.TempDir(), "custom.db")
	dir := t.TempDir()
	target := filepath.Join(dir, config.ProjectConfigNames[0])

	// When: writing the effective config to that file
	stdout, _, err := execute(t, "", "--db", dbPath, "config", "show", "--output", target)

	// Then: the file loads back with the override in place
	require.NoError(t, err)
	assert.Contains(t, stdout, "Wrote "+target)
	cfg, err := config.Load(dir)
	require.NoError(t, err)
	assert.Equal(t, dbPath, cfg.Storage.Path)
}

func TestConfigShow_UnknownFormat(t *testing.T) {
	isolate(t)

	_, _, err := execute(t, "", "config", "show", "--format", "ini")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown format")
}

func TestConfigInit(t *testing.T) {
	// Given: an empty project directory
	isolate(t)
	dir := t.TempDir()
	path := filepath.Join(dir, ".srch.yaml")

	// When: running init
	_, _, err := execute(t, "", "-C", dir, "config", "init")

	// Then: a loadable default config is written
	require.NoError(t, err)
	require.FileExists(t, path)
	cfg, err := config.Load(dir)
	require.NoError(t, err)
	assert.Equal(t, config.NewConfig().Storage, cfg.Storage)

	// When: running init again without --force
	_, _, err = execute(t, "", "-C", dir, "config", "init")

	// Then: the existing file is kept
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")
	backups, err := config.ListBackups(path)
	require.NoError(t, err)
	assert.Empty(t, backups)
}

func TestConfigInit_ForceBacksUp(t *testing.T) {
	// Given: an existing project config
	isolate(t)
	dir := t.TempDir()
	path := filepath.Join(dir, ".srch.yaml")
	require.NoError(t, os.WriteFile(path, []byte("search:\n  max_results: 3\n"), 0o644))

	// When: running init --force
	stdout, _, err := execute(t, "", "-C", dir, "config", "init", "--force")

	// Then: the old file is backed up and replaced
	require.NoError(t, err)
	assert.Contains(t, stdout, "Backed up")
	backups, err := config.ListBackups(path)
	require.NoError(t, err)
	require.Len(t, backups, 1)
	old, err := os.ReadFile(backups[0])
	require.NoError(t, err)
	assert.Contains(t, string(old), "max_results: 3")

	cfg, err := config.Load(dir)
	require.NoError(t, err)
	assert.Equal(t, config.MaxResultsLimit, cfg.Search.MaxResults)
}

func TestConfigInit_User(t *testing.T) {
	// Given: no user config and no environment overrides
	isolate(t)
	clearOverrides(t)
	require.False(t, config.UserConfigExists())

	// When: writing it
	_, _, err := execute(t, "", "config", "init", "--user")

	// Then: it exists and leaves the defaults unchanged
	require.NoError(t, err)
	assert.True(t, config.UserConfigExists())
	cfg, err := config.Load(t.TempDir())
	require.NoError(t, err)
	def := config.NewConfig()
	assert.Equal(t, def.Cache, cfg.Cache)
	assert.Equal(t, def.Metrics, cfg.Metrics)
	assert.Equal(t, def.Logging, cfg.Logging)
}

func TestConfigTemplates_MatchDefaults(t *testing.T) {
	// Given: both templates in one project directory
	isolate(t)
	clearOverrides(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".srch.yaml"), []byte(configs.ProjectConfigTemplate), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Dir(config.GetUserConfigPath()), 0o755))
	require.NoError(t, os.WriteFile(config.GetUserConfigPath(), []byte(configs.UserConfigTemplate), 0o644))

	// When: loading
	cfg, err := config.Load(dir)

	// Then: nothing differs from the built-in defaults
	require.NoError(t, err)
	assert.Equal(t, config.NewConfig(), cfg)
}

func TestConfigPath(t *testing.T) {
	isolate(t)
	dir := t.TempDir()

	stdout, _, err := execute(t, "", "-C", dir, "config", "path")

	require.NoError(t, err)
	assert.Contains(t, stdout, "(not found)")
	assert.Contains(t, stdout, "(none)")
}
