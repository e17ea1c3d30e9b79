// Package watcher reloads the configuration file when it changes on disk.
package watcher

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watcher watches a file for changes
type Watcher struct {
	path     string
	onChange func()
	debounce time.Duration
	log      *zap.Logger

	readyOnce sync.Once
	ready     chan struct{}
}

// New creates a new file watcher
func New(path string, onChange func(), logger *zap.Logger) *Watcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Watcher{
		path:     path,
		onChange: onChange,
		debounce: 500 * time.Millisecond,
		log:      logger.Named("watcher"),
		ready:    make(chan struct{}),
	}
}

// WithDebounce sets the debounce duration
func (w *Watcher) WithDebounce(d time.Duration) *Watcher {
	w.debounce = d
	return w
}

// Ready is closed once the watch is registered
func (w *Watcher) Ready() <-chan struct{} {
	return w.ready
}

// Watch starts watching the file for changes
// It blocks until the context is cancelled or an error occurs
func (w *Watcher) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	// Watch the directory containing the file
	// This handles cases where the file is replaced (e.g., by editors)
	dir := filepath.Dir(w.path)
	filename := filepath.Base(w.path)

	if err := watcher.Add(dir); err != nil {
		return err
	}
	w.readyOnce.Do(func() { close(w.ready) })

	w.log.Info("watching for changes", zap.String("path", w.path))

	var debounceTimer *time.Timer
	defer func() {
		if debounceTimer != nil {
			debounceTimer.Stop()
		}
	}()

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}

			if filepath.Base(event.Name) != filename {
				continue
			}

			// editors often write a temp file and rename it over the original
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}

			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(w.debounce, func() {
				if ctx.Err() != nil {
					return
				}
				w.log.Info("file changed", zap.String("path", w.path))
				w.onChange()
			})

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("watcher error", zap.Error(err))

		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
