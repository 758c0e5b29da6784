package watcher

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/sync/errgroup"

	srcherr "github.com/rpopa-dp/srch/internal/errors"
)

// Watcher reports changes below a root directory as debounced batches.
type Watcher struct {
	root      string
	opts      Options
	fsw       *fsnotify.Watcher
	poller    *poller
	debouncer *Debouncer
	events    chan []FileEvent
	errors    chan error
	dropped   atomic.Uint64
}

// New prepares a watcher for root, which must be an existing directory.
// Watching begins with Run.
func New(root string, opts Options) (*Watcher, error) {
	opts = opts.WithDefaults()
	root = filepath.Clean(root)

	info, err := os.Stat(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, srcherr.New(srcherr.ErrCodeSourceNotFound, "watch root not found: "+root, err)
		}
		return nil, srcherr.SourceReadError("cannot stat watch root", err).WithDetail("path", root)
	}
	if !info.IsDir() {
		return nil, srcherr.ValidationError("watch root is not a directory: "+root, nil)
	}

	w := &Watcher{
		root:      root,
		opts:      opts,
		debouncer: NewDebouncer(opts.DebounceWindow),
		events:    make(chan []FileEvent, opts.EventBufferSize),
		errors:    make(chan error, 10),
	}

	if !opts.ForcePolling {
		fsw, err := fsnotify.NewWatcher()
		if err == nil {
			w.fsw = fsw
		} else {
			slog.Warn("fsnotify unavailable, falling back to polling", slog.String("error", err.Error()))
		}
	}
	if w.fsw == nil {
		w.poller = newPoller(root, opts)
	}
	return w, nil
}

// Mode returns "fsnotify" or "polling".
func (w *Watcher) Mode() string {
	if w.fsw != nil {
		return "fsnotify"
	}
	return "polling"
}

// Root returns the watched directory.
func (w *Watcher) Root() string { return w.root }

// Events returns the channel of debounced batches. It is closed when Run returns.
func (w *Watcher) Events() <-chan []FileEvent { return w.events }

// Errors returns non-fatal watcher errors. It is closed when Run returns.
func (w *Watcher) Errors() <-chan error { return w.errors }

// DroppedBatches returns how many batches were lost to a full Events buffer.
func (w *Watcher) DroppedBatches() uint64 { return w.dropped.Load() }

// Run watches until ctx is cancelled. A cancelled context is a clean stop.
// Run may be called once.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.shutdown()

	if w.fsw != nil {
		if err := w.addTree(w.root); err != nil {
			return srcherr.SourceReadError("failed to watch directory", err).WithDetail("path", w.root)
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return w.forward(gctx) })
	if w.fsw != nil {
		g.Go(func() error { return w.watchFS(gctx) })
	} else {
		g.Go(func() error { return w.poller.run(gctx, w.debouncer.Add, w.emitError) })
	}

	slog.Info("watch_started", slog.String("root", w.root), slog.String("mode", w.Mode()))
	err := g.Wait()
	if ctx.Err() != nil {
		return nil
	}
	return err
}

func (w *Watcher) shutdown() {
	w.debouncer.Stop()
	if w.fsw != nil {
		_ = w.fsw.Close()
	}
	close(w.events)
	close(w.errors)
	slog.Info("watch_stopped", slog.String("root", w.root))
}

func (w *Watcher) watchFS(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			w.handle(ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.emitError(err)
		}
	}
}

// handle converts one fsnotify event into debouncer input.
func (w *Watcher) handle(ev fsnotify.Event) {
	rel, err := filepath.Rel(w.root, ev.Name)
	if err != nil || w.opts.ignored(rel) {
		return
	}

	var op Operation
	switch {
	case ev.Has(fsnotify.Create):
		op = OpCreate
	case ev.Has(fsnotify.Write):
		op = OpModify
	case ev.Has(fsnotify.Remove):
		op = OpDelete
	case ev.Has(fsnotify.Rename):
		op = OpRename
	default:
		return
	}

	isDir := false
	if op == OpCreate || op == OpModify {
		if info, err := os.Stat(ev.Name); err == nil {
			isDir = info.IsDir()
		}
	}

	// Files may land in a new directory before it is watched, so its
	// contents are reported as created too.
	if op == OpCreate && isDir {
		if err := w.addTree(ev.Name); err != nil {
			w.emitError(err)
		}
		w.reportTree(ev.Name)
	}

	w.debouncer.Add(FileEvent{Path: ev.Name, Operation: op, IsDir: isDir, Timestamp: time.Now()})
}

// addTree watches dir and every non-ignored directory below it.
func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if rel, _ := filepath.Rel(w.root, path); w.opts.ignored(rel) {
			return filepath.SkipDir
		}
		return w.fsw.Add(path)
	})
}

// reportTree emits creations for the files already inside a new directory.
func (w *Watcher) reportTree(dir string) {
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || path == dir {
			return nil
		}
		rel, _ := filepath.Rel(w.root, path)
		if w.opts.ignored(rel) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Type().IsRegular() {
			w.debouncer.Add(FileEvent{Path: path, Operation: OpCreate, Timestamp: time.Now()})
		}
		return nil
	})
}

func (w *Watcher) forward(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case batch, ok := <-w.debouncer.Output():
			if !ok {
				return nil
			}
			select {
			case w.events <- batch:
			default:
				n := w.dropped.Add(1)
				slog.Warn("event buffer full, dropping batch",
					slog.Int("batch_size", len(batch)),
					slog.Uint64("total_dropped_batches", n))
			}
		}
	}
}

func (w *Watcher) emitError(err error) {
	select {
	case w.errors <- err:
	default:
		slog.Warn("watcher error dropped", slog.String("error", err.Error()))
	}
}
