package watcher

import (
	"context"
	"io/fs"
	"path/filepath"
	"time"
)

// poller detects changes by rescanning the tree on an interval.
type poller struct {
	root     string
	opts     Options
	snapshot map[string]fileState
}

type fileState struct {
	modTime time.Time
	size    int64
	isDir   bool
}

func newPoller(root string, opts Options) *poller {
	return &poller{root: root, opts: opts}
}

// run records a baseline, then reports differences every interval.
func (p *poller) run(ctx context.Context, emit func(FileEvent), onErr func(error)) error {
	baseline, err := p.scan()
	if err != nil {
		return err
	}
	p.snapshot = baseline

	ticker := time.NewTicker(p.opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			current, err := p.scan()
			if err != nil {
				onErr(err)
				continue
			}
			for _, ev := range diff(p.snapshot, current) {
				emit(ev)
			}
			p.snapshot = current
		}
	}
}

func (p *poller) scan() (map[string]fileState, error) {
	state := make(map[string]fileState)
	err := filepath.WalkDir(p.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == p.root {
				return err
			}
			return nil
		}
		if path == p.root {
			return nil
		}
		rel, _ := filepath.Rel(p.root, path)
		if p.opts.ignored(rel) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		state[path] = fileState{modTime: info.ModTime(), size: info.Size(), isDir: d.IsDir()}
		return nil
	})
	return state, err
}

// diff lists the events that turn before into after.
func diff(before, after map[string]fileState) []FileEvent {
	now := time.Now()
	var events []FileEvent
	for path, cur := range after {
		prev, ok := before[path]
		switch {
		case !ok:
			events = append(events, FileEvent{Path: path, Operation: OpCreate, IsDir: cur.isDir, Timestamp: now})
		case !cur.isDir && (prev.modTime != cur.modTime || prev.size != cur.size):
			events = append(events, FileEvent{Path: path, Operation: OpModify, Timestamp: now})
		}
	}
	for path, prev := range before {
		if _, ok := after[path]; !ok {
			events = append(events, FileEvent{Path: path, Operation: OpDelete, IsDir: prev.isDir, Timestamp: now})
		}
	}
	return events
}
