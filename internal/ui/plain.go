package ui

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"sync"
	"time"
)

// PlainRenderer outputs plain text progress (for CI/pipes).
//
// Each indexed document produces one line:
//
//	INFO: (12/100) indexing "Title"
type PlainRenderer struct {
	mu     sync.Mutex
	out    io.Writer
	errors []ErrorEvent
}

// NewPlainRenderer creates a plain text renderer.
func NewPlainRenderer(cfg Config) *PlainRenderer {
	return &PlainRenderer{out: cfg.Output}
}

// Start implements Renderer.
func (r *PlainRenderer) Start(ctx context.Context) error {
	return nil
}

// UpdateProgress implements Renderer.
func (r *PlainRenderer) UpdateProgress(event ProgressEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch {
	case event.Title != "" && event.Total > 0:
		_, _ = fmt.Fprintf(r.out, "%s: (%d/%d) indexing %s\n",
			event.Stage.Icon(), event.Current, event.Total, strconv.Quote(event.Title))
	case event.Title != "":
		_, _ = fmt.Fprintf(r.out, "%s: (%d) indexing %s\n",
			event.Stage.Icon(), event.Current, strconv.Quote(event.Title))
	case event.Message != "":
		_, _ = fmt.Fprintf(r.out, "%s: %s\n", event.Stage.Icon(), event.Message)
	}
}

// AddError implements Renderer.
func (r *PlainRenderer) AddError(event ErrorEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.errors = append(r.errors, event)

	prefix := "ERROR"
	if event.IsWarn {
		prefix = "WARN"
	}
	if event.Title != "" {
		_, _ = fmt.Fprintf(r.out, "%s: %s: %v\n", prefix, strconv.Quote(event.Title), event.Err)
	} else {
		_, _ = fmt.Fprintf(r.out, "%s: %v\n", prefix, event.Err)
	}
}

// Complete implements Renderer.
func (r *PlainRenderer) Complete(stats CompletionStats) {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, _ = fmt.Fprintf(r.out, "INFO: done, %d documents, %d terms indexed in %s",
		stats.Documents, stats.Terms, stats.Duration.Round(100*time.Millisecond))
	if stats.Errors > 0 || stats.Warnings > 0 {
		_, _ = fmt.Fprintf(r.out, " (%d errors, %d warnings)", stats.Errors, stats.Warnings)
	}
	_, _ = fmt.Fprintln(r.out)

	if stats.Backend != "" {
		_, _ = fmt.Fprintf(r.out, "Index: %s (%s)\n", stats.Location, stats.Backend)
	}
}

// Stop implements Renderer.
func (r *PlainRenderer) Stop() error {
	return nil
}
