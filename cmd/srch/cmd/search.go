package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	srcherr "github.com/rpopa-dp/srch/internal/errors"
	"github.com/rpopa-dp/srch/internal/output"
	"github.com/rpopa-dp/srch/internal/store"
)

// searchOptions holds CLI flags for search.
type searchOptions struct {
	format  string // "text", "json"
	noCache bool
}

// searchOutput is the JSON output format for one query.
type searchOutput struct {
	Query          string          `json:"query"`
	ElapsedSeconds float64         `json:"elapsed_seconds"`
	Results        []*store.Result `json:"results"`
}

func newSearchCmd(g *globals) *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search [query...]",
		Short: "Query the index",
		Long: `Query the index and print the best documents ranked by TF-IDF.

With a query on the command line, run it once and exit. Without one, read
queries line by line from standard input until end of input.`,
		Example: `  srch search
  srch search "go programming language"
  srch search --format json gopher`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.format != "text" && opts.format != "json" {
				return srcherr.ValidationError(fmt.Sprintf("unknown format %q (valid options: text, json)", opts.format), nil)
			}
			return runSearch(cmd.Context(), cmd, g, strings.Join(args, " "), opts)
		},
	}

	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "Output format: text, json")
	cmd.Flags().BoolVar(&opts.noCache, "no-cache", false, "Bypass the result cache")

	return cmd
}

func runSearch(ctx context.Context, cmd *cobra.Command, g *globals, query string, opts searchOptions) error {
	stack, err := openSearchStack(ctx, g.cfg, !opts.noCache)
	if err != nil {
		return err
	}
	defer func() { _ = stack.Close() }()

	out := output.New(cmd.OutOrStdout())

	if query != "" {
		return searchOnce(ctx, out, stack.Index, query, opts.format)
	}

	if stack.Metrics == nil {
		return searchLoop(ctx, cmd, out, stack.Index, opts.format)
	}

	loopCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	group, gctx := errgroup.WithContext(loopCtx)
	group.Go(func() error {
		defer cancel()
		return searchLoop(gctx, cmd, out, stack.Index, opts.format)
	})
	group.Go(func() error {
		return stack.Metrics.Serve(gctx, g.cfg.Metrics.Addr)
	})
	return group.Wait()
}

// searchOnce runs a single query. Errors are returned to the caller.
func searchOnce(ctx context.Context, out *output.Writer, idx store.Index, query, format string) error {
	start := time.Now()
	results, err := idx.Search(ctx, query)
	elapsed := time.Since(start)
	if err != nil {
		return err
	}

	slog.Info("search_complete",
		slog.String("query", query),
		slog.Int("results", len(results)),
		slog.Duration("elapsed", elapsed))

	if format == "json" {
		if results == nil {
			results = []*store.Result{}
		}
		return out.JSON(searchOutput{Query: query, ElapsedSeconds: elapsed.Seconds(), Results: results})
	}
	out.Results(elapsed, results)
	return nil
}

// searchLoop reads one query per line until end of input. A failed query is
// reported and the loop goes on.
func searchLoop(ctx context.Context, cmd *cobra.Command, out *output.Writer, idx store.Index, format string) error {
	reader := bufio.NewReader(cmd.InOrStdin())

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		out.Separator()
		out.Prompt("query> ")

		line, err := reader.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("failed to read query: %w", err)
		}
		if errors.Is(err, io.EOF) && line == "" {
			out.Newline()
			return nil
		}

		query := strings.TrimRight(line, "\r\n")
		if qerr := searchOnce(ctx, out, idx, query, format); qerr != nil {
			if errors.Is(qerr, context.Canceled) {
				return qerr
			}
			slog.Warn("search_failed", slog.String("query", query), slog.String("error", qerr.Error()))
			out.Error(strings.TrimSpace(srcherr.FormatForCLI(qerr)))
		}

		if errors.Is(err, io.EOF) {
			return nil
		}
	}
}
