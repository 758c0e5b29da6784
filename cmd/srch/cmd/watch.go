package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/rpopa-dp/srch/internal/cache"
	"github.com/rpopa-dp/srch/internal/config"
	srcherr "github.com/rpopa-dp/srch/internal/errors"
	"github.com/rpopa-dp/srch/internal/indexer"
	"github.com/rpopa-dp/srch/internal/output"
	"github.com/rpopa-dp/srch/internal/source"
	"github.com/rpopa-dp/srch/internal/store"
	"github.com/rpopa-dp/srch/internal/telemetry"
	"github.com/rpopa-dp/srch/internal/ui"
	"github.com/rpopa-dp/srch/internal/watcher"
)

// watchOptions holds CLI flags for watch.
type watchOptions struct {
	rebuild  bool
	polling  bool
	debounce time.Duration
}

func newWatchCmd(g *globals) *cobra.Command {
	var opts watchOptions

	cmd := &cobra.Command{
		Use:   "watch <dir>",
		Short: "Index files as they are created under a directory",
		Long: `Keep an index current with a directory: build it from the directory if it
does not exist yet (or with --rebuild), then add every new file that appears.

The index is append-only. Modified or deleted files keep their original entry;
run 'srch index' to rebuild from scratch.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd.Context(), cmd, g.cfg, args[0], opts)
		},
	}

	cmd.Flags().BoolVar(&opts.rebuild, "rebuild", false, "Rebuild the index from the directory before watching")
	cmd.Flags().BoolVar(&opts.polling, "polling", false, "Poll the directory instead of using file system events")
	cmd.Flags().DurationVar(&opts.debounce, "debounce", watcher.DefaultOptions().DebounceWindow, "Quiet period before a burst of events is handled")

	return cmd
}

// indexIgnorePatterns keeps the watcher off the index's own files when the
// database lives inside the watched directory.
func indexIgnorePatterns(dbPath string) []string {
	base := filepath.Base(dbPath)
	return []string{base, base + "-wal", base + "-shm", base + "-journal", base + ".lock"}
}

func runWatch(ctx context.Context, cmd *cobra.Command, cfg *config.Config, dir string, opts watchOptions) error {
	out := output.New(cmd.OutOrStdout())

	storeOpts, err := storeOptions(cfg)
	if err != nil {
		return err
	}
	if storeOpts.Backend == store.BackendMemory {
		opts.rebuild = true
	}

	release, err := acquire(writerLock(storeOpts))
	if err != nil {
		return err
	}
	defer release()

	idx, built, err := openOrBuild(ctx, cmd, cfg, storeOpts, dir, opts.rebuild)
	if err != nil {
		return err
	}
	defer func() { _ = idx.Close() }()

	entries, err := idx.Entries(ctx)
	if err != nil {
		return err
	}
	known := make([]string, 0, len(entries))
	for _, e := range entries {
		known = append(known, e.Document.Title)
	}
	if !built {
		out.Statusf("📚", "Opened %s with %d documents", location(storeOpts), len(known))
	}

	var writer store.Index = idx
	if cache.Backend(cfg.Cache.Backend) == cache.BackendRedis {
		// Searches in other processes share these entries, so every Add must purge them.
		c, err := openResultCache(ctx, cfg, storeOpts, idx)
		if err != nil {
			return err
		}
		defer func() { _ = c.Close() }()
		writer = cache.NewCachedIndex(writer, c)
	}

	var metrics *telemetry.Metrics
	if cfg.Metrics.Enabled {
		metrics = telemetry.NewMetrics()
		writer = telemetry.NewInstrumentedIndex(writer, metrics, nil)
	}

	w, err := watcher.New(dir, watcher.Options{
		DebounceWindow: opts.debounce,
		IgnorePatterns: indexIgnorePatterns(storeOpts.Path),
		ForcePolling:   opts.polling,
	})
	if err != nil {
		return err
	}

	runner, err := indexer.NewRunner(indexer.RunnerDependencies{Index: writer})
	if err != nil {
		return err
	}
	feeder := watcher.NewFeeder(runner, known)

	out.Statusf("👀", "Watching %s (%s), Ctrl+C to stop", w.Root(), w.Mode())

	group, gctx := errgroup.WithContext(ctx)
	group.Go(func() error { return w.Run(gctx) })
	group.Go(func() error { return feeder.Run(gctx, w.Events()) })
	group.Go(func() error {
		for err := range w.Errors() {
			slog.Warn("watcher_error", slog.String("error", err.Error()))
		}
		return nil
	})
	if metrics != nil {
		group.Go(func() error { return metrics.Serve(gctx, cfg.Metrics.Addr) })
	}

	err = group.Wait()
	out.Statusf("", "%d documents indexed, %d event batches dropped", feeder.Indexed(), w.DroppedBatches())
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// openOrBuild opens the existing index, or builds one from dir when there is
// none or rebuild is set. built reports whether a build happened.
func openOrBuild(ctx context.Context, cmd *cobra.Command, cfg *config.Config, opts store.Options, dir string, rebuild bool) (idx store.Index, built bool, err error) {
	if !rebuild {
		idx, err = store.Open(ctx, opts)
		if err == nil {
			return idx, false, nil
		}
		if srcherr.GetCode(err) != srcherr.ErrCodeIndexNotFound {
			return nil, false, err
		}
	}

	info, err := os.Stat(dir)
	if err != nil {
		return nil, false, srcherr.New(srcherr.ErrCodeSourceNotFound, "watch directory not found", err).
			WithDetail("path", dir)
	}
	if !info.IsDir() {
		return nil, false, srcherr.ValidationError(fmt.Sprintf("%s is not a directory", dir), nil)
	}

	src, err := source.NewDirSource(dir)
	if err != nil {
		return nil, false, err
	}
	defer func() { _ = src.Close() }()

	idx, err = store.Create(ctx, opts)
	if err != nil {
		return nil, false, err
	}

	renderer := ui.NewRenderer(ui.NewConfig(cmd.OutOrStdout(), ui.WithForcePlain(true)))
	runner, err := indexer.NewRunner(indexer.RunnerDependencies{Index: idx, Renderer: renderer})
	if err != nil {
		_ = idx.Close()
		return nil, false, err
	}
	result, err := runner.Run(ctx, src, indexer.RunnerConfig{
		ContinueOnError: cfg.Indexing.ContinueOnError,
		Prefetch:        cfg.Indexing.Prefetch,
	})
	if err != nil {
		_ = idx.Close()
		return nil, false, err
	}

	stats, err := idx.Stats(ctx)
	if err != nil {
		_ = idx.Close()
		return nil, false, err
	}
	renderer.Complete(ui.CompletionStats{
		Backend:   string(opts.Backend),
		Location:  location(opts),
		Documents: stats.Documents,
		Terms:     stats.Terms,
		Duration:  result.Duration,
		Warnings:  result.Failed,
	})
	return idx, true, nil
}
