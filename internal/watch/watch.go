// Package watch reruns a handler whenever a generated artifact is rewritten.
package watch

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Handler is called with the cleaned path of a target after it changed.
type Handler func(ctx context.Context, path string) error

// Watcher debounces filesystem events for a fixed set of files.
// Parent directories are watched rather than the files themselves because
// generators and artifact.Persist replace files by rename.
type Watcher struct {
	fsw      *fsnotify.Watcher
	targets  map[string]bool
	debounce time.Duration
	handle   Handler
	logger   *zap.Logger
	pending  map[string]time.Time // only touched by the Run goroutine
}

// New watches paths and calls handle for each debounced change.
func New(paths []string, debounce time.Duration, handle Handler, logger *zap.Logger) (*Watcher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}

	w := &Watcher{
		fsw:      fsw,
		targets:  make(map[string]bool, len(paths)),
		debounce: debounce,
		handle:   handle,
		logger:   logger,
		pending:  make(map[string]time.Time),
	}

	dirs := make(map[string]bool)
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			_ = fsw.Close()
			return nil, fmt.Errorf("resolve %s: %w", p, err)
		}
		w.targets[abs] = true
		dirs[filepath.Dir(abs)] = true
	}
	for dir := range dirs {
		if err := fsw.Add(dir); err != nil {
			_ = fsw.Close()
			return nil, fmt.Errorf("watch %s: %w", dir, err)
		}
		logger.Debug("watching directory", zap.String("dir", dir))
	}
	return w, nil
}

// Run processes events until ctx is done. Handler errors are logged.
// The watcher is closed when Run returns.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.fsw.Close()

	tick := w.debounce / 2
	if tick <= 0 {
		tick = 10 * time.Millisecond
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			w.record(event)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", zap.Error(err))

		case now := <-ticker.C:
			for _, path := range w.due(now) {
				if err := w.handle(ctx, path); err != nil {
					w.logger.Error("handle change", zap.String("path", path), zap.Error(err))
				}
			}
		}
	}
}

func (w *Watcher) record(event fsnotify.Event) {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
		return
	}
	path := filepath.Clean(event.Name)
	if !w.targets[path] {
		return
	}
	w.logger.Debug("change detected", zap.String("path", path), zap.Stringer("op", event.Op))
	w.pending[path] = time.Now()
}

// due returns the paths whose last event is older than the debounce window.
func (w *Watcher) due(now time.Time) []string {
	var paths []string
	for path, at := range w.pending {
		if now.Sub(at) >= w.debounce {
			paths = append(paths, path)
			delete(w.pending, path)
		}
	}
	return paths
}
