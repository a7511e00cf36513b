// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package watch runs a handler for note files as they appear or change in a
// directory.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long a path must stay quiet before it is handled.
const DefaultDebounce = 500 * time.Millisecond

// Handler processes one changed file.
type Handler func(ctx context.Context, path string)

// Watcher watches a single directory, non-recursively.
type Watcher struct {
	dir      string
	match    func(path string) bool
	handle   Handler
	debounce time.Duration
	logger   *slog.Logger
}

// New creates a Watcher over dir that calls handle for created or written
// files accepted by match.
func New(dir string, match func(path string) bool, handle Handler, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Watcher{dir: dir, match: match, handle: handle, debounce: DefaultDebounce, logger: logger}
}

// SetDebounce changes the quiet period. Zero or negative values are ignored.
func (w *Watcher) SetDebounce(d time.Duration) {
	if d > 0 {
		w.debounce = d
	}
}

// Run watches until ctx is cancelled. Handlers run one at a time on the
// watching goroutine, so a note is never processed twice concurrently.
// A handler receives ctx without its cancellation: a note in flight when ctx
// is cancelled runs to completion before Run returns.
// Writes made by the handler itself re-trigger it once; the per-note
// pipeline is idempotent, so that pass is a no-op.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer fw.Close()

	if err := fw.Add(w.dir); err != nil {
		return fmt.Errorf("watching %s: %w", w.dir, err)
	}
	w.logger.Info("watcher: started", slog.String("dir", w.dir), slog.Duration("debounce", w.debounce))

	timers := make(map[string]*time.Timer)
	ready := make(chan string, 64)
	defer func() {
		for _, t := range timers {
			t.Stop()
		}
	}()

	schedule := func(path string) {
		if t, ok := timers[path]; ok {
			t.Reset(w.debounce)
			return
		}
		timers[path] = time.AfterFunc(w.debounce, func() {
			select {
			case ready <- path:
			case <-ctx.Done():
			}
		})
	}

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("watcher: stopped")
			return nil

		case path := <-ready:
			delete(timers, path)
			w.logger.Debug("watcher: handling", slog.String("path", path))
			w.handle(context.WithoutCancel(ctx), path)

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			path := filepath.Clean(ev.Name)
			if !w.match(path) {
				continue
			}
			schedule(path)

		case werr, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("watcher: error", slog.String("error", werr.Error()))
		}
	}
}
