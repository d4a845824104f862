package workflow

import (
	"log/slog"
	"path/filepath"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
)

// Source yields the current immutable definition set.
type Source interface {
	Definitions() *Set
}

// StaticSource pins one definition set forever. Use it when reloading is
// disabled or in tests.
type StaticSource struct {
	set *Set
}

// NewStaticSource wraps a loaded set as a Source.
func NewStaticSource(set *Set) *StaticSource {
	return &StaticSource{set: set}
}

// Definitions returns the pinned set.
func (s *StaticSource) Definitions() *Set {
	return s.set
}

// Watcher reloads definitions when files in the watched directories
// change, swapping the active set atomically so readers always see a
// complete generation, never a half-loaded one.
type Watcher struct {
	loader  *Loader
	logger  *slog.Logger
	set     atomic.Pointer[Set]
	watcher *fsnotify.Watcher
	done    chan struct{}
}

// NewWatcher loads once through the loader and starts watching its
// directories. When the file watcher cannot start, the initial set stays
// active without reloading.
func NewWatcher(loader *Loader, logger *slog.Logger) (*Watcher, error) {
	set, err := loader.Load()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	w := &Watcher{
		loader: loader,
		logger: logger.With("component", "workflow_watcher"),
		done:   make(chan struct{}),
	}
	w.set.Store(set)

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		w.logger.Warn("definition reload disabled", "error", err)
		return w, nil
	}

	watched := 0
	for _, dir := range loader.dirs {
		if err := fsw.Add(dir); err != nil {
			continue
		}
		watched++
	}
	if watched == 0 {
		fsw.Close()
		return w, nil
	}

	w.watcher = fsw
	go w.run()
	return w, nil
}

// Definitions returns the current set.
func (w *Watcher) Definitions() *Set {
	return w.set.Load()
}

// Close stops watching. The last loaded set stays available.
func (w *Watcher) Close() {
	close(w.done)
	if w.watcher != nil {
		w.watcher.Close()
	}
}

// run reloads on definition file events. A failed reload keeps the
// previous set so a half-edited file never breaks evaluation.
func (w *Watcher) run() {
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if !isYAMLFile(filepath.Base(event.Name)) {
				continue
			}

			set, err := w.loader.Load()
			if err != nil {
				w.logger.Warn("definition reload failed", "file", event.Name, "error", err)
				continue
			}
			w.set.Store(set)
			w.logger.Info("workflow definitions reloaded", "definitions", set.Len())
		case <-w.watcher.Errors:
			// Ignore errors, keep watching
		}
	}
}
