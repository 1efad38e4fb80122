// Package watch monitors the graph file for changes made by other writers.
//
// The store itself never caches between operations, so the watcher exists
// for operators: two processes pointed at the same file race last-save-wins,
// and the watcher makes such external rewrites visible.
package watch

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// debounceInterval coalesces bursts of events from a single atomic save
// (create of the temp file followed by the rename).
const debounceInterval = 250 * time.Millisecond

// File watches the graph file at path and invokes onChange after each
// write or atomic replacement. Blocks until the context is cancelled.
//
// The parent directory is watched rather than the file itself: every save
// replaces the file by rename, which would otherwise detach the watch.
func File(ctx context.Context, path string, onChange func()) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer watcher.Close()

	dir := filepath.Dir(path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watching %s: %w", dir, err)
	}

	base := filepath.Base(path)
	var pending <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Base(event.Name) != base {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			pending = time.After(debounceInterval)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			return fmt.Errorf("watch error: %w", err)

		case <-pending:
			pending = nil
			onChange()
		}
	}
}
