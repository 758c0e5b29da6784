// Package output provides consistent CLI output formatting for srch commands.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rpopa-dp/srch/internal/store"
)

// SeparatorWidth is the width of the line printed before each query prompt.
const SeparatorWidth = 40

// Writer provides formatted output for CLI.
// Errors from writing are intentionally ignored for console output.
type Writer struct {
	out io.Writer
}

// New creates a new output Writer.
func New(out io.Writer) *Writer {
	return &Writer{out: out}
}

// Status prints a status message with an icon.
func (w *Writer) Status(icon, msg string) {
	if icon != "" {
		_, _ = fmt.Fprintf(w.out, "%s %s\n", icon, msg)
	} else {
		_, _ = fmt.Fprintf(w.out, "   %s\n", msg)
	}
}

// Statusf prints a formatted status message with an icon.
func (w *Writer) Statusf(icon, format string, args ...any) {
	w.Status(icon, fmt.Sprintf(format, args...))
}

// Success prints a success message with checkmark.
func (w *Writer) Success(msg string) {
	w.Status("✅", msg)
}

// Successf prints a formatted success message.
func (w *Writer) Successf(format string, args ...any) {
	w.Success(fmt.Sprintf(format, args...))
}

// Warning prints a warning message.
func (w *Writer) Warning(msg string) {
	w.Status("⚠️ ", msg)
}

// Warningf prints a formatted warning message.
func (w *Writer) Warningf(format string, args ...any) {
	w.Warning(fmt.Sprintf(format, args...))
}

// Error prints an error message.
func (w *Writer) Error(msg string) {
	w.Status("❌", msg)
}

// Errorf prints a formatted error message.
func (w *Writer) Errorf(format string, args ...any) {
	w.Error(fmt.Sprintf(format, args...))
}

// Newline prints an empty line.
func (w *Writer) Newline() {
	_, _ = fmt.Fprintln(w.out)
}

// Separator prints the dashed line shown before each interactive query.
func (w *Writer) Separator() {
	_, _ = fmt.Fprintln(w.out, strings.Repeat("-", SeparatorWidth))
}

// Prompt prints p without a trailing newline.
func (w *Writer) Prompt(p string) {
	_, _ = fmt.Fprint(w.out, p)
}

// Results prints a ranked result list headed by the search time in seconds.
func (w *Writer) Results(elapsed time.Duration, results []*store.Result) {
	_, _ = fmt.Fprintln(w.out)
	_, _ = fmt.Fprintf(w.out, "RESULTS (%ss):\n", FormatSeconds(elapsed))
	if len(results) == 0 {
		_, _ = fmt.Fprintln(w.out, "  (no results)")
		return
	}
	for _, r := range results {
		_, _ = fmt.Fprintf(w.out, "  (%.6f, %q)\n", r.Score, r.Title)
	}
}

// FormatSeconds renders d as fractional seconds with microsecond precision.
func FormatSeconds(d time.Duration) string {
	return fmt.Sprintf("%.6f", d.Seconds())
}

// KeyValues prints aligned "key: value" rows in the given order.
func (w *Writer) KeyValues(rows [][2]string) {
	width := 0
	for _, r := range rows {
		width = max(width, len(r[0]))
	}
	for _, r := range rows {
		_, _ = fmt.Fprintf(w.out, "  %-*s  %s\n", width+1, r[0]+":", r[1])
	}
}

// JSON writes v as indented JSON.
func (w *Writer) JSON(v any) error {
	enc := json.NewEncoder(w.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
