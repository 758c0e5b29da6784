package ui

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/rpopa-dp/srch/internal/store"
)

// StatsRenderer displays index statistics for 'srch stats'.
type StatsRenderer struct {
	out    io.Writer
	styles Styles
}

// NewStatsRenderer creates a stats renderer.
func NewStatsRenderer(out io.Writer, noColor bool) *StatsRenderer {
	return &StatsRenderer{
		out:    out,
		styles: GetStyles(noColor),
	}
}

// Render displays stats as aligned text.
func (r *StatsRenderer) Render(location string, stats *store.IndexStats) error {
	_, _ = fmt.Fprintf(r.out, "%s\n\n", r.styles.Header.Render("Index: "+location))

	_, _ = fmt.Fprintf(r.out, "  Backend:    %s\n", stats.Backend)
	_, _ = fmt.Fprintf(r.out, "  Documents:  %d\n", stats.Documents)
	_, _ = fmt.Fprintf(r.out, "  Terms:      %d\n", stats.Terms)
	_, _ = fmt.Fprintf(r.out, "  Postings:   %d\n", stats.Postings)
	_, _ = fmt.Fprintf(r.out, "  Tokens:     %d\n", stats.Tokens)
	if stats.Documents > 0 {
		_, _ = fmt.Fprintf(r.out, "  Avg length: %.1f tokens\n", float64(stats.Tokens)/float64(stats.Documents))
	}
	if stats.BuildID != "" {
		_, _ = fmt.Fprintf(r.out, "  Build:      %s\n", r.styles.Dim.Render(stats.BuildID))
	}
	if !stats.CreatedAt.IsZero() {
		_, _ = fmt.Fprintf(r.out, "  Built:      %s\n", formatTime(stats.CreatedAt))
	}

	if len(stats.TopTerms) > 0 {
		_, _ = fmt.Fprintln(r.out)
		_, _ = fmt.Fprintln(r.out, "  Top terms (document frequency):")
		for _, t := range stats.TopTerms {
			_, _ = fmt.Fprintf(r.out, "    %-20s %s\n", t.Term, r.styles.Label.Render(fmt.Sprint(t.DocumentFreq)))
		}
	}
	return nil
}

// RenderJSON outputs v, usually a *store.IndexStats or a report embedding
// one, as JSON.
func (r *StatsRenderer) RenderJSON(v any) error {
	encoder := json.NewEncoder(r.out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

// RenderIssues lists consistency problems found by 'srch stats --verify'.
func (r *StatsRenderer) RenderIssues(checked int, issues []string) {
	_, _ = fmt.Fprintln(r.out)
	if len(issues) == 0 {
		_, _ = fmt.Fprintf(r.out, "  %s %d documents verified\n", r.styles.Success.Render("✓"), checked)
		return
	}
	_, _ = fmt.Fprintf(r.out, "  %s %d issues in %d documents\n", r.styles.Error.Render("✗"), len(issues), checked)
	for _, issue := range issues {
		_, _ = fmt.Fprintf(r.out, "    - %s\n", issue)
	}
}

// formatTime formats a time for display.
func formatTime(t time.Time) string {
	diff := time.Since(t)

	switch {
	case diff < time.Minute:
		return "just now"
	case diff < time.Hour:
		mins := int(diff.Minutes())
		if mins == 1 {
			return "1 minute ago"
		}
		return fmt.Sprintf("%d minutes ago", mins)
	case diff < 24*time.Hour:
		hours := int(diff.Hours())
		if hours == 1 {
			return "1 hour ago"
		}
		return fmt.Sprintf("%d hours ago", hours)
	default:
		return t.Local().Format("2006-01-02 15:04")
	}
}
