package watcher

import (
	"cmp"
	"log/slog"
	"slices"
	"sync"
	"time"
)

// Debouncer coalesces bursts of events per path. An editor saving a file or
// a copy in progress yields several events; one is emitted after the path
// has been quiet for the window. Sequences reduce as:
//   - CREATE then MODIFY = CREATE
//   - CREATE then DELETE or RENAME = nothing
//   - DELETE then CREATE = MODIFY (the file was replaced)
//   - anything else = the latest event
type Debouncer struct {
	window  time.Duration
	mu      sync.Mutex
	pending map[string]pendingEvent
	timer   *time.Timer
	output  chan []FileEvent
	stopped bool
}

type pendingEvent struct {
	event FileEvent
	first Operation
}

// NewDebouncer creates a debouncer with the given window.
func NewDebouncer(window time.Duration) *Debouncer {
	return &Debouncer{
		window:  window,
		pending: make(map[string]pendingEvent),
		output:  make(chan []FileEvent, 16),
	}
}

// Add queues an event, merging it with any pending event for the same path.
func (d *Debouncer) Add(event FileEvent) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}

	prev, ok := d.pending[event.Path]
	if !ok {
		d.pending[event.Path] = pendingEvent{event: event, first: event.Operation}
	} else if merged, keep := coalesce(prev, event); keep {
		d.pending[event.Path] = pendingEvent{event: merged, first: prev.first}
	} else {
		delete(d.pending, event.Path)
	}

	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.window, d.flush)
}

// coalesce merges next into prev. keep is false when the two cancel out.
func coalesce(prev pendingEvent, next FileEvent) (merged FileEvent, keep bool) {
	switch {
	case prev.first == OpCreate && next.Operation == OpModify:
		merged = prev.event
		merged.Timestamp = next.Timestamp
		return merged, true
	case prev.first == OpCreate && (next.Operation == OpDelete || next.Operation == OpRename):
		return FileEvent{}, false
	case prev.first == OpDelete && next.Operation == OpCreate:
		next.Operation = OpModify
		return next, true
	default:
		return next, true
	}
}

// flush emits all pending events sorted by path.
func (d *Debouncer) flush() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped || len(d.pending) == 0 {
		return
	}

	batch := make([]FileEvent, 0, len(d.pending))
	for _, p := range d.pending {
		batch = append(batch, p.event)
	}
	slices.SortFunc(batch, func(a, b FileEvent) int { return cmp.Compare(a.Path, b.Path) })
	d.pending = make(map[string]pendingEvent)

	select {
	case d.output <- batch:
	default:
		slog.Warn("debouncer output full, dropping batch", slog.Int("batch_size", len(batch)))
	}
}

// Output returns the channel of debounced batches.
func (d *Debouncer) Output() <-chan []FileEvent {
	return d.output
}

// Stop discards pending events and closes the output channel.
// Safe to call multiple times.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}
	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
	}
	close(d.output)
}
