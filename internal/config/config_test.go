package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	srcherr "github.com/rpopa-dp/srch/internal/errors"
)

// isolate points the user config at an empty temp dir so the developer's
// own ~/.config/srch never leaks into a test.
func isolate(t *testing.T) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestNewConfig_ReturnsDefaults(t *testing.T) {
	// Given: no configuration at all
	cfg := NewConfig()

	// Then: defaults match the documented keys
	assert.Equal(t, "dir", cfg.Index.Source)
	assert.Equal(t, "sqlite", cfg.Storage.Backend)
	assert.Equal(t, "./index.db", cfg.Storage.Path)
	assert.Equal(t, 10, cfg.Search.MaxResults)
	assert.Equal(t, 10000, cfg.Indexing.MaxDocuments)
	assert.False(t, cfg.Indexing.ContinueOnError)
	assert.Equal(t, "lru", cfg.Cache.Backend)
	assert.Equal(t, 10*time.Minute, cfg.Cache.TTLDuration())
	assert.False(t, cfg.Metrics.Enabled)
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_NoFiles_UsesDefaults(t *testing.T) {
	// Given: an empty project directory
	isolate(t)
	dir := t.TempDir()

	// When: loading
	cfg, err := Load(dir)

	// Then: defaults apply
	require.NoError(t, err)
	assert.Equal(t, NewConfig().Storage, cfg.Storage)
}

func TestLoad_ProjectYAML_OverridesDefaults(t *testing.T) {
	// Given: a project .srch.yaml
	isolate(t)
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, ".srch.yaml"), `
storage:
  path: ./wiki.db
search:
  max_results: 5
indexing:
  continue_on_error: true
cache:
  backend: none
`)

	// When: loading
	cfg, err := Load(dir)

	// Then: file values win and untouched keys keep defaults
	require.NoError(t, err)
	assert.Equal(t, "./wiki.db", cfg.Storage.Path)
	assert.Equal(t, "sqlite", cfg.Storage.Backend)
	assert.Equal(t, 5, cfg.Search.MaxResults)
	assert.True(t, cfg.Indexing.ContinueOnError)
	assert.Equal(t, "none", cfg.Cache.Backend)
}

func TestLoad_ProjectTOML(t *testing.T) {
	// Given: only a .srch.toml
	isolate(t)
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, ".srch.toml"), `
[storage]
backend = "memory"

[kafka]
brokers = ["k1:9092", "k2:9092"]
topic = "wiki"
`)

	// When: loading
	cfg, err := Load(dir)

	// Then: TOML is decoded with the same keys
	require.NoError(t, err)
	assert.Equal(t, "memory", cfg.Storage.Backend)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "wiki", cfg.Kafka.Topic)
	assert.Equal(t, "srch", cfg.Kafka.GroupID)
}

func TestLoad_YAMLPreferredOverTOML(t *testing.T) {
	// Given: both project files
	isolate(t)
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, ".srch.yaml"), "search:\n  max_results: 3\n")
	writeFile(t, filepath.Join(dir, ".srch.toml"), "[search]\nmax_results = 7\n")

	// When: loading
	cfg, err := Load(dir)

	// Then: .srch.yaml wins
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Search.MaxResults)
	assert.Equal(t, filepath.Join(dir, ".srch.yaml"), FindProjectConfig(dir))
}

func TestLoad_Precedence_UserThenProjectThenEnv(t *testing.T) {
	// Given: a user config, a project config and env overrides
	xdg := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", xdg)
	writeFile(t, filepath.Join(xdg, "srch", "config.yaml"), `
storage:
  path: /user.db
cache:
  size: 50
metrics:
  enabled: true
`)
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, ".srch.yml"), `
storage:
  path: /project.db
metrics:
  enabled: false
`)
	t.Setenv("SRCH_CACHE_SIZE", "75")
	t.Setenv("SRCH_KAFKA_BROKERS", "a:1, b:2,")

	// When: loading
	cfg, err := Load(dir)

	// Then: each layer overrides the one below
	require.NoError(t, err)
	assert.Equal(t, "/project.db", cfg.Storage.Path)
	assert.False(t, cfg.Metrics.Enabled, "project file switches the user's true off")
	assert.Equal(t, 75, cfg.Cache.Size)
	assert.Equal(t, []string{"a:1", "b:2"}, cfg.Kafka.Brokers)
}

func TestLoad_EnvBooleans(t *testing.T) {
	isolate(t)
	t.Setenv("SRCH_CONTINUE_ON_ERROR", "1")
	t.Setenv("SRCH_TELEMETRY_ENABLED", "false")

	cfg, err := Load(t.TempDir())

	require.NoError(t, err)
	assert.True(t, cfg.Indexing.ContinueOnError)
	assert.False(t, cfg.Telemetry.Enabled)
}

func TestLoad_EnvBadInteger(t *testing.T) {
	// Given: a non-numeric integer override
	isolate(t)
	t.Setenv("SRCH_MAX_RESULTS", "ten")

	// When: loading
	_, err := Load(t.TempDir())

	// Then: a config error names the variable
	require.Error(t, err)
	assert.Equal(t, srcherr.ErrCodeConfigInvalid, srcherr.GetCode(err))
	assert.Contains(t, err.Error(), "invalid integer")
}

func TestLoad_MalformedYAML(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, ".srch.yaml"), "storage: [unclosed\n")

	_, err := Load(dir)

	require.Error(t, err)
	assert.Equal(t, srcherr.ErrCodeConfigInvalid, srcherr.GetCode(err))
}

func TestValidate_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		key    string
	}{
		{"unknown source", func(c *Config) { c.Index.Source = "ftp" }, "index.source"},
		{"unknown backend", func(c *Config) { c.Storage.Backend = "mysql" }, "storage.backend"},
		{"sqlite without path", func(c *Config) { c.Storage.Path = "" }, "storage.path"},
		{"postgres without dsn", func(c *Config) { c.Storage.Backend = "postgres" }, "storage.postgres_dsn"},
		{"zero max results", func(c *Config) { c.Search.MaxResults = 0 }, "search.max_results"},
		{"max results above limit", func(c *Config) { c.Search.MaxResults = 11 }, "search.max_results"},
		{"negative max documents", func(c *Config) { c.Indexing.MaxDocuments = -1 }, "indexing.max_documents"},
		{"unknown cache", func(c *Config) { c.Cache.Backend = "memcached" }, "cache.backend"},
		{"redis without addr", func(c *Config) { c.Cache.Backend = "redis" }, "cache.redis_addr"},
		{"bad ttl", func(c *Config) { c.Cache.TTL = "soon" }, "cache.ttl"},
		{"bad idle timeout", func(c *Config) { c.Kafka.IdleTimeout = "later" }, "kafka.idle_timeout"},
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }, "logging.level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig()
			tt.mutate(cfg)

			err := cfg.Validate()

			require.Error(t, err)
			var se *srcherr.SrchError
			require.ErrorAs(t, err, &se)
			assert.Equal(t, tt.key, se.Details["key"])
		})
	}
}

func TestValidate_AcceptsMemoryWithoutPath(t *testing.T) {
	cfg := NewConfig()
	cfg.Storage.Backend = "memory"
	cfg.Storage.Path = ""

	assert.NoError(t, cfg.Validate())
}

func TestWriteYAML_RoundTripsThroughLoad(t *testing.T) {
	// Given: a customized config written as the project file
	isolate(t)
	dir := t.TempDir()
	cfg := NewConfig()
	cfg.Storage.Backend = "sqlite3"
	cfg.Cache.Backend = "none"
	require.NoError(t, cfg.WriteYAML(filepath.Join(dir, ".srch.yaml")))

	// When: loading it back
	loaded, err := Load(dir)

	// Then: the written values are effective
	require.NoError(t, err)
	assert.Equal(t, "sqlite3", loaded.Storage.Backend)
	assert.Equal(t, "none", loaded.Cache.Backend)
}
