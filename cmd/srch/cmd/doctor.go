package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/rpopa-dp/srch/internal/cache"
	"github.com/rpopa-dp/srch/internal/config"
	srcherr "github.com/rpopa-dp/srch/internal/errors"
	"github.com/rpopa-dp/srch/internal/preflight"
	"github.com/rpopa-dp/srch/internal/source"
	"github.com/rpopa-dp/srch/internal/store"
)

func newDoctorCmd(g *globals) *cobra.Command {
	var (
		verbose    bool
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check the environment and configured backends",
		Long: `Run diagnostics against the effective configuration.

Checks:
  - Disk space and write access where the SQLite index lives
  - File descriptor limit (the watcher holds one per directory)
  - The index opens and reports its size (Postgres is reached here)
  - Redis answers when cache.backend is redis
  - Kafka brokers and topic when index.source is kafka
  - The query telemetry directory is writable when telemetry is enabled`,
		Example: `  srch doctor
  srch doctor --verbose
  srch doctor --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDoctor(cmd.Context(), cmd, g.cfg, verbose, jsonOutput)
		},
	}

	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Show detailed diagnostic info")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

// doctorOutput is the JSON output format for 'srch doctor'.
type doctorOutput struct {
	Status string                  `json:"status"`
	Checks []preflight.CheckResult `json:"checks"`
}

func runDoctor(ctx context.Context, cmd *cobra.Command, cfg *config.Config, verbose, jsonOutput bool) error {
	checks, err := doctorChecks(cfg)
	if err != nil {
		return err
	}

	checker := preflight.New(preflight.WithVerbose(verbose), preflight.WithOutput(cmd.OutOrStdout()))
	results := checker.RunAll(ctx, checks...)

	if jsonOutput {
		encoder := json.NewEncoder(cmd.OutOrStdout())
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(doctorOutput{Status: checker.SummaryStatus(results), Checks: results}); err != nil {
			return err
		}
	} else {
		checker.PrintResults(results)
	}

	if checker.HasCriticalFailures(results) {
		return srcherr.InternalError("system check failed", nil).
			WithSuggestion("Run 'srch doctor --verbose' for details")
	}
	return nil
}

// doctorChecks selects the checks that apply to cfg.
func doctorChecks(cfg *config.Config) ([]preflight.Check, error) {
	opts, err := storeOptions(cfg)
	if err != nil {
		return nil, err
	}

	var checks []preflight.Check
	if writerLock(opts) != nil {
		dir := filepath.Dir(opts.Path)
		checks = append(checks, preflight.DiskSpace(dir), preflight.WritePermissions(dir))
	}
	checks = append(checks, preflight.FileDescriptors())

	if opts.Backend != store.BackendMemory {
		checks = append(checks, indexCheck(opts))
	}

	if cache.Backend(cfg.Cache.Backend) == cache.BackendRedis {
		checks = append(checks, redisCheck(cfg, opts))
	}

	if source.Kind(cfg.Index.Source) == source.KindKafka {
		checks = append(checks, preflight.Check{
			Name: "kafka",
			Run: func(ctx context.Context) (string, error) {
				n, err := source.PingKafka(ctx, cfg.Kafka.Brokers, cfg.Kafka.Topic)
				if err != nil {
					return "", err
				}
				return fmt.Sprintf("topic %q has %d partitions", cfg.Kafka.Topic, n), nil
			},
		})
	}

	if cfg.Telemetry.Enabled {
		telemetryDir := preflight.WritePermissions(filepath.Dir(cfg.Telemetry.Path))
		telemetryDir.Name = "telemetry_dir"
		telemetryDir.Required = false
		checks = append(checks, telemetryDir)
	}
	return checks, nil
}

// indexCheck opens the index read-side. A missing index only warns.
func indexCheck(opts store.Options) preflight.Check {
	return preflight.Check{
		Name: "index",
		Run: func(ctx context.Context) (string, error) {
			idx, err := store.Open(ctx, opts)
			if err != nil {
				if srcherr.GetCode(err) == srcherr.ErrCodeIndexNotFound {
					return "", preflight.Failure("not built yet", "Run 'srch index <dir>' to build it")
				}
				return "", err
			}
			defer func() { _ = idx.Close() }()

			stats, err := idx.Stats(ctx)
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("%d documents, %d terms at %s", stats.Documents, stats.Terms, location(opts)), nil
		},
	}
}

func redisCheck(cfg *config.Config, opts store.Options) preflight.Check {
	return preflight.Check{
		Name:     "redis",
		Required: true,
		Run: func(ctx context.Context) (string, error) {
			c, err := cache.New(ctx, cache.Options{
				Backend:   cache.BackendRedis,
				RedisAddr: cfg.Cache.RedisAddr,
				TTL:       cfg.Cache.TTLDuration(),
				Namespace: cacheNamespace(opts, ""),
			})
			if err != nil {
				return "", err
			}
			_ = c.Close()
			return "reachable at " + cfg.Cache.RedisAddr, nil
		},
	}
}
