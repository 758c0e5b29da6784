package watcher

import (
	"context"
	"log/slog"
	"sync"

	srcherr "github.com/rpopa-dp/srch/internal/errors"
	"github.com/rpopa-dp/srch/internal/source"
	"github.com/rpopa-dp/srch/internal/store"
)

// Adder indexes a single document.
type Adder interface {
	AddDocument(ctx context.Context, doc *store.Document) error
}

// Feeder adds files reported by a Watcher to an index, each path at most once.
type Feeder struct {
	add Adder

	mu   sync.Mutex
	seen map[string]struct{}
}

// NewFeeder creates a feeder. known lists paths that are already indexed.
func NewFeeder(add Adder, known []string) *Feeder {
	seen := make(map[string]struct{}, len(known))
	for _, p := range known {
		seen[p] = struct{}{}
	}
	return &Feeder{add: add, seen: seen}
}

// Run consumes batches until the channel closes or ctx is cancelled. Only a
// fatal indexing error stops it.
func (f *Feeder) Run(ctx context.Context, batches <-chan []FileEvent) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case batch, ok := <-batches:
			if !ok {
				return nil
			}
			for _, ev := range batch {
				if err := f.apply(ctx, ev); err != nil {
					return err
				}
			}
		}
	}
}

// Indexed returns how many paths the feeder knows to be in the index.
func (f *Feeder) Indexed() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.seen)
}

func (f *Feeder) apply(ctx context.Context, ev FileEvent) error {
	if ev.IsDir {
		return nil
	}

	f.mu.Lock()
	_, known := f.seen[ev.Path]
	f.mu.Unlock()

	switch ev.Operation {
	case OpCreate, OpModify:
		if known {
			if ev.Operation == OpModify {
				slog.Info("document_changed_not_reindexed", slog.String("path", ev.Path))
			}
			return nil
		}
	default:
		if known {
			slog.Info("document_removed_still_indexed",
				slog.String("path", ev.Path),
				slog.String("op", ev.Operation.String()))
		}
		return nil
	}

	doc, err := source.ReadFile(ev.Path)
	if err != nil {
		slog.Warn("watch_read_failed", slog.String("path", ev.Path), slog.String("error", err.Error()))
		return nil
	}
	if err := f.add.AddDocument(ctx, doc); err != nil {
		if srcherr.IsFatal(err) {
			return err
		}
		slog.Warn("watch_index_failed", slog.String("path", ev.Path), slog.String("error", err.Error()))
		return nil
	}

	f.mu.Lock()
	f.seen[ev.Path] = struct{}{}
	f.mu.Unlock()
	return nil
}
