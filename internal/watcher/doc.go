// Package watcher keeps an index current with a directory: files created
// under the watched root after the initial build are read and added.
//
// fsnotify is the primary mechanism; where it cannot be initialized (some
// network mounts and container volumes) the directory is polled instead.
// Bursts of events for one path are coalesced by a Debouncer before they are
// delivered.
//
// The index is append-only, so only creations are acted on. Modifications
// and deletions are reported but leave indexed documents untouched.
//
// Usage:
//
//	w, err := watcher.New("docs", watcher.DefaultOptions())
//	if err != nil {
//	    return err
//	}
//	feeder := watcher.NewFeeder(runner, knownPaths)
//
//	g, ctx := errgroup.WithContext(ctx)
//	g.Go(func() error { return w.Run(ctx) })
//	g.Go(func() error { return feeder.Run(ctx, w.Events()) })
//	return g.Wait()
package watcher
