package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/rpopa-dp/srch/internal/config"
	"github.com/rpopa-dp/srch/internal/indexer"
	"github.com/rpopa-dp/srch/internal/output"
	"github.com/rpopa-dp/srch/internal/store"
	"github.com/rpopa-dp/srch/internal/telemetry"
	"github.com/rpopa-dp/srch/internal/ui"
)

// statsOptions holds CLI flags for stats.
type statsOptions struct {
	jsonOutput bool
	verify     bool
	queries    bool
	days       int
	noColor    bool
}

// StatsOutput is the JSON output format for 'srch stats'.
type StatsOutput struct {
	Location string                 `json:"location"`
	Index    *store.IndexStats      `json:"index"`
	Verify   *VerifyOutput          `json:"verify,omitempty"`
	Queries  *telemetry.QueryReport `json:"queries,omitempty"`
}

// VerifyOutput reports a consistency check.
type VerifyOutput struct {
	Checked         int      `json:"checked"`
	Inconsistencies []string `json:"inconsistencies"`
	DurationMS      int64    `json:"duration_ms"`
}

func newStatsCmd(g *globals) *cobra.Command {
	var opts statsOptions

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show index statistics",
		Long: `Display document count, distinct terms, postings, the build id and the
terms with the highest document frequency.

--verify recomputes every term count and document frequency from the
stored postings. --queries adds what has been searched for.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStats(cmd.Context(), cmd, g.cfg, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.jsonOutput, "json", false, "Output as JSON")
	cmd.Flags().BoolVar(&opts.verify, "verify", false, "Check the index invariants")
	cmd.Flags().BoolVar(&opts.queries, "queries", false, "Include query telemetry")
	cmd.Flags().IntVar(&opts.days, "days", 7, "Days of query latency to include")
	cmd.Flags().BoolVar(&opts.noColor, "no-color", false, "Disable colored output")

	return cmd
}

func runStats(ctx context.Context, cmd *cobra.Command, cfg *config.Config, opts statsOptions) error {
	storeOpts, err := storeOptions(cfg)
	if err != nil {
		return err
	}
	idx, err := store.Open(ctx, storeOpts)
	if err != nil {
		return err
	}
	defer func() { _ = idx.Close() }()

	stats, err := idx.Stats(ctx)
	if err != nil {
		return err
	}
	report := StatsOutput{Location: location(storeOpts), Index: stats}

	if opts.verify {
		result, err := indexer.NewConsistencyChecker(idx).Check(ctx)
		if err != nil {
			return err
		}
		issues := make([]string, 0, len(result.Inconsistencies))
		for _, in := range result.Inconsistencies {
			issues = append(issues, in.String())
		}
		report.Verify = &VerifyOutput{
			Checked:         result.Checked,
			Inconsistencies: issues,
			DurationMS:      result.Duration.Milliseconds(),
		}
	}

	if opts.queries {
		report.Queries = loadQueryReport(cfg.Telemetry.Path, opts.days)
	}

	renderer := ui.NewStatsRenderer(cmd.OutOrStdout(), opts.noColor || ui.DetectNoColor())
	if opts.jsonOutput {
		return renderer.RenderJSON(report)
	}

	if err := renderer.Render(report.Location, stats); err != nil {
		return err
	}
	if report.Verify != nil {
		renderer.RenderIssues(report.Verify.Checked, report.Verify.Inconsistencies)
	}
	if opts.queries {
		renderQueryReport(output.New(cmd.OutOrStdout()), report.Queries)
	}
	return nil
}

// loadQueryReport reads query telemetry without creating the database.
func loadQueryReport(path string, days int) *telemetry.QueryReport {
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	qstore, err := telemetry.OpenSQLiteMetricsStore(path)
	if err != nil {
		slog.Warn("failed to open query telemetry", slog.String("error", err.Error()))
		return nil
	}
	defer func() { _ = qstore.Close() }()

	report, err := telemetry.LoadReport(qstore, days, 10, time.Now())
	if err != nil {
		slog.Warn("failed to read query telemetry", slog.String("error", err.Error()))
		return nil
	}
	return report
}

func renderQueryReport(out *output.Writer, r *telemetry.QueryReport) {
	out.Newline()
	if r == nil || r.TotalQueries == 0 {
		out.Status("", "No queries recorded")
		return
	}

	out.Statusf("", "Queries (last %d days): %d", r.Days, r.TotalQueries)
	rows := make([][2]string, 0, len(telemetry.LatencyBuckets))
	for _, b := range telemetry.LatencyBuckets {
		rows = append(rows, [2]string{string(b), strconv.FormatInt(r.LatencyDistribution[b], 10)})
	}
	out.KeyValues(rows)

	if len(r.TopTerms) > 0 {
		out.Status("", "Top query terms:")
		rows = rows[:0]
		for _, tc := range r.TopTerms {
			rows = append(rows, [2]string{tc.Term, strconv.FormatInt(tc.Count, 10)})
		}
		out.KeyValues(rows)
	}
	if len(r.ZeroResultQueries) > 0 {
		out.Status("", "Recent zero-result queries:")
		for _, q := range r.ZeroResultQueries {
			out.Status("", fmt.Sprintf("  %q", q))
		}
	}
}
