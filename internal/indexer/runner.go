// Package indexer drives documents from a source into an index with progress
// reporting, and verifies the invariants of a built index.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	srcherr "github.com/rpopa-dp/srch/internal/errors"
	"github.com/rpopa-dp/srch/internal/source"
	"github.com/rpopa-dp/srch/internal/store"
	"github.com/rpopa-dp/srch/internal/ui"
)

// DefaultPrefetch is how many documents are read ahead of the writer.
const DefaultPrefetch = 64

// RunnerConfig configures an indexing run.
type RunnerConfig struct {
	// ContinueOnError skips documents that fail to read or index instead of
	// aborting the run.
	ContinueOnError bool

	// Prefetch bounds the read-ahead buffer between source and index.
	Prefetch int
}

// RunnerResult contains the outcome of an indexing operation.
type RunnerResult struct {
	// Documents is the number of documents indexed.
	Documents int

	// Failed is the number of documents skipped because of errors.
	Failed int

	// Duration is the total indexing time.
	Duration time.Duration
}

// RunnerDependencies contains the injected dependencies for Runner.
type RunnerDependencies struct {
	// Index receives the documents (required).
	Index store.Index

	// Renderer for progress display. Defaults to ui.NopRenderer.
	Renderer ui.Renderer
}

// Runner feeds documents from a source into an index. The index is written
// by a single goroutine; reading the source overlaps with writing.
type Runner struct {
	index    store.Index
	renderer ui.Renderer
}

// NewRunner creates a Runner with injected dependencies.
func NewRunner(deps RunnerDependencies) (*Runner, error) {
	if deps.Index == nil {
		return nil, fmt.Errorf("index is required")
	}
	renderer := deps.Renderer
	if renderer == nil {
		renderer = ui.NopRenderer{}
	}
	return &Runner{
		index:    deps.Index,
		renderer: renderer,
	}, nil
}

// fetched is one slot of the read-ahead buffer.
type fetched struct {
	doc *store.Document
	err error
}

// Run consumes src until it is exhausted, ctx is cancelled, or (without
// ContinueOnError) the first failure.
func (r *Runner) Run(ctx context.Context, src source.Source, cfg RunnerConfig) (*RunnerResult, error) {
	start := time.Now()
	result := &RunnerResult{}

	prefetch := cfg.Prefetch
	if prefetch <= 0 {
		prefetch = DefaultPrefetch
	}
	total := 0
	if sized, ok := src.(source.Sized); ok {
		total = sized.Len()
	}

	r.renderer.UpdateProgress(ui.ProgressEvent{Stage: ui.StageIndexing, Total: total})

	var err error
	if committer, ok := src.(source.Committer); ok {
		// Acknowledgement refers to the last document read, so reading may
		// not run ahead of the writer.
		err = r.runSequential(ctx, src, committer, total, cfg, result)
	} else {
		err = r.runPrefetch(ctx, src, prefetch, total, cfg, result)
	}
	result.Duration = time.Since(start)

	slog.Info("index_run_complete",
		slog.Int("documents", result.Documents),
		slog.Int("failed", result.Failed),
		slog.Duration("duration", result.Duration),
		slog.Bool("aborted", err != nil))

	if err != nil {
		return result, err
	}
	return result, nil
}

func (r *Runner) runPrefetch(ctx context.Context, src source.Source, prefetch, total int, cfg RunnerConfig, result *RunnerResult) error {
	g, gctx := errgroup.WithContext(ctx)
	docs := make(chan fetched, prefetch)

	// Reader
	g.Go(func() error {
		defer close(docs)
		for {
			doc, err := src.Next(gctx)
			if errors.Is(err, io.EOF) {
				return nil
			}
			if err != nil && gctx.Err() != nil {
				return gctx.Err()
			}

			select {
			case docs <- fetched{doc: doc, err: err}:
			case <-gctx.Done():
				return gctx.Err()
			}

			// A read error the runner will not skip ends the stream.
			if err != nil && !cfg.ContinueOnError {
				return nil
			}
		}
	})

	// Writer
	g.Go(func() error {
		for item := range docs {
			if err := r.process(gctx, item, nil, total, cfg, result); err != nil {
				return err
			}
		}
		return nil
	})

	return g.Wait()
}

func (r *Runner) runSequential(ctx context.Context, src source.Source, committer source.Committer, total int, cfg RunnerConfig, result *RunnerResult) error {
	for {
		doc, err := src.Next(ctx)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil && ctx.Err() != nil {
			return ctx.Err()
		}
		if err := r.process(ctx, fetched{doc: doc, err: err}, committer, total, cfg, result); err != nil {
			return err
		}
	}
}

// process indexes one fetched document. A nil return means the run goes on.
func (r *Runner) process(ctx context.Context, item fetched, committer source.Committer, total int, cfg RunnerConfig, result *RunnerResult) error {
	if item.err != nil {
		return r.fail("", item.err, cfg, result)
	}

	if err := r.index.Add(ctx, item.doc); err != nil {
		return r.fail(item.doc.Title, err, cfg, result)
	}

	if committer != nil {
		if err := committer.Commit(ctx); err != nil {
			return err
		}
	}

	result.Documents++
	slog.Debug("index_document",
		slog.Int("n", result.Documents),
		slog.Int64("id", item.doc.ID),
		slog.String("title", item.doc.Title))
	r.renderer.UpdateProgress(ui.ProgressEvent{
		Stage:   ui.StageIndexing,
		Current: result.Documents,
		Total:   total,
		Title:   item.doc.Title,
	})
	return nil
}

// fail records a per-document failure and decides whether the run continues.
func (r *Runner) fail(title string, err error, cfg RunnerConfig, result *RunnerResult) error {
	result.Failed++

	fatal := srcherr.IsFatal(err) || !cfg.ContinueOnError
	r.renderer.AddError(ui.ErrorEvent{Title: title, Err: err, IsWarn: !fatal})

	attrs := []any{slog.String("title", title), slog.String("error", err.Error())}
	if fatal {
		slog.Error("index_document_failed", attrs...)
		return err
	}
	slog.Warn("index_document_skipped", attrs...)
	return nil
}

// AddDocument indexes a single document outside of a run, as the watcher does.
func (r *Runner) AddDocument(ctx context.Context, doc *store.Document) error {
	if err := r.index.Add(ctx, doc); err != nil {
		return err
	}
	slog.Info("index_document",
		slog.Int64("id", doc.ID),
		slog.String("title", doc.Title))
	return nil
}
