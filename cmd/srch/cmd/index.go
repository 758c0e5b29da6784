package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/rpopa-dp/srch/internal/config"
	srcherr "github.com/rpopa-dp/srch/internal/errors"
	"github.com/rpopa-dp/srch/internal/indexer"
	"github.com/rpopa-dp/srch/internal/output"
	"github.com/rpopa-dp/srch/internal/source"
	"github.com/rpopa-dp/srch/internal/store"
	"github.com/rpopa-dp/srch/internal/telemetry"
	"github.com/rpopa-dp/srch/internal/ui"
)

// indexOptions holds CLI flags for index.
type indexOptions struct {
	source          string
	maxDocuments    int
	continueOnError bool
	noTUI           bool
	noColor         bool
}

func newIndexCmd(g *globals) *cobra.Command {
	var opts indexOptions

	cmd := &cobra.Command{
		Use:   "index [path-or-pattern]",
		Short: "Build a fresh index from a document source",
		Long: `Build a fresh index, discarding the previous one.

Sources:
  dir    every regular file under a directory, or the files matching a glob
  wiki   a Wikipedia XML dump; one document per <page> with a title and text
  kafka  JSON {"title", "body"} messages from the configured topic

The SQLite database file and its -wal/-shm siblings are deleted first.
With the postgres backend the index tables are dropped and recreated.`,
		Example: `  srch index ./docs
  srch index 'notes/*.txt'
  srch index --source wiki enwiki-latest-pages-articles.xml
  srch index --source kafka`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			arg := ""
			if len(args) > 0 {
				arg = args[0]
			}
			cfg := g.cfg
			if cmd.Flags().Changed("max-documents") {
				cfg.Indexing.MaxDocuments = opts.maxDocuments
			}
			if cmd.Flags().Changed("continue-on-error") {
				cfg.Indexing.ContinueOnError = opts.continueOnError
			}
			if opts.source == "" {
				opts.source = cfg.Index.Source
			}
			return runIndex(cmd.Context(), cmd, cfg, arg, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.source, "source", "s", "", "Document source: dir, wiki, kafka (default index.source)")
	cmd.Flags().IntVar(&opts.maxDocuments, "max-documents", 0, "Stop after this many documents from a dump or topic, 0 = unlimited")
	cmd.Flags().BoolVar(&opts.continueOnError, "continue-on-error", false, "Skip documents that fail instead of aborting")
	cmd.Flags().BoolVar(&opts.noTUI, "no-tui", false, "Disable TUI mode, use plain text output")
	cmd.Flags().BoolVar(&opts.noColor, "no-color", false, "Disable colored output")

	return cmd
}

// openSource builds the document source named by kind.
func openSource(kind source.Kind, arg string, cfg *config.Config) (source.Source, error) {
	switch kind {
	case source.KindDir:
		if arg == "" {
			arg = "."
		}
		return source.NewDirSource(arg)
	case source.KindWiki:
		if arg == "" {
			return nil, srcherr.ValidationError("the wiki source needs the path of an XML dump", nil)
		}
		return source.NewWikiSource(arg, cfg.Indexing.MaxDocuments)
	case source.KindKafka:
		if arg != "" {
			return nil, srcherr.ValidationError("the kafka source takes no path; set kafka.topic instead", nil)
		}
		return source.NewKafkaSource(source.KafkaConfig{
			Brokers:      cfg.Kafka.Brokers,
			Topic:        cfg.Kafka.Topic,
			GroupID:      cfg.Kafka.GroupID,
			MaxDocuments: cfg.Indexing.MaxDocuments,
			IdleTimeout:  cfg.Kafka.IdleTimeoutDuration(),
		})
	default:
		return nil, srcherr.ValidationError(fmt.Sprintf("unknown source %q (valid options: dir, wiki, kafka)", kind), nil)
	}
}

func runIndex(ctx context.Context, cmd *cobra.Command, cfg *config.Config, arg string, opts indexOptions) error {
	storeOpts, err := storeOptions(cfg)
	if err != nil {
		return err
	}

	release, err := acquire(writerLock(storeOpts))
	if err != nil {
		return err
	}
	defer release()

	src, err := openSource(source.Kind(opts.source), arg, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = src.Close() }()

	idx, err := store.Create(ctx, storeOpts)
	if err != nil {
		return err
	}
	defer func() { _ = idx.Close() }()

	slog.Info("index_started",
		slog.String("source", opts.source),
		slog.String("arg", arg),
		slog.String("backend", string(storeOpts.Backend)),
		slog.String("location", location(storeOpts)))

	var metrics *telemetry.Metrics
	var writer store.Index = idx
	if cfg.Metrics.Enabled {
		metrics = telemetry.NewMetrics()
		writer = telemetry.NewInstrumentedIndex(idx, metrics, nil)
	}

	sourceName := opts.source
	if arg != "" {
		sourceName += " " + arg
	}
	renderer := ui.NewRenderer(ui.NewConfig(cmd.OutOrStdout(),
		ui.WithForcePlain(opts.noTUI),
		ui.WithNoColor(opts.noColor || ui.DetectNoColor()),
		ui.WithSourceName(sourceName)))

	runner, err := indexer.NewRunner(indexer.RunnerDependencies{Index: writer, Renderer: renderer})
	if err != nil {
		return err
	}

	if err := renderer.Start(ctx); err != nil {
		return err
	}

	var result *indexer.RunnerResult
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	group, gctx := errgroup.WithContext(runCtx)
	group.Go(func() error {
		// The metrics server lives as long as the run.
		defer cancel()
		var runErr error
		result, runErr = runner.Run(gctx, src, indexer.RunnerConfig{
			ContinueOnError: cfg.Indexing.ContinueOnError,
			Prefetch:        cfg.Indexing.Prefetch,
		})
		return runErr
	})
	if metrics != nil {
		group.Go(func() error {
			return metrics.Serve(gctx, cfg.Metrics.Addr)
		})
	}
	runErr := group.Wait()

	stats, statsErr := idx.Stats(ctx)
	if statsErr != nil {
		stats = &store.IndexStats{}
	}
	completion := ui.CompletionStats{
		Backend:   string(storeOpts.Backend),
		Location:  location(storeOpts),
		Documents: stats.Documents,
		Terms:     stats.Terms,
	}
	if result != nil {
		completion.Duration = result.Duration
		completion.Warnings = result.Failed
	}
	if runErr != nil {
		completion.Errors = 1
	}
	renderer.Complete(completion)
	if err := renderer.Stop(); err != nil {
		slog.Warn("renderer stop failed", slog.String("error", err.Error()))
	}
	if result != nil && result.Failed > 0 {
		output.New(cmd.ErrOrStderr()).Warningf("%d documents skipped after errors (see 'srch logs --level error')", result.Failed)
	}

	if runErr != nil {
		return runErr
	}
	return statsErr
}
