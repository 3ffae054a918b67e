// Package watch signals when any of a set of input files changes, so a batch
// can be re-run after the table, template or font is edited.
package watch

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultInterval is the polling interval used when fsnotify is unavailable.
const DefaultInterval = 2 * time.Second

// ///////////////////////////////////////////////
// Watcher
// ///////////////////////////////////////////////

// Watcher monitors files for changes using fsnotify on their parent
// directories, with an mtime polling fallback. Watching directories rather
// than the files themselves keeps working when editors replace a file by
// renaming a new one over it.
type Watcher struct {
	// files is the set of absolute paths being monitored.
	files map[string]bool
	// events delivers a signal each time a watched file changes.
	// The channel is buffered to 1 so back-to-back writes coalesce.
	events chan struct{}
	// done is closed by [Watcher.Close] to signal goroutines to exit.
	done chan struct{}
	// fsw is the underlying fsnotify watcher; nil when polling from the start.
	fsw *fsnotify.Watcher
	// once ensures [Watcher.Close] is idempotent.
	once sync.Once
	// polling is true when the watcher has fallen back to stat-based polling.
	polling atomic.Bool
	// interval is the duration between stat passes in polling mode.
	interval time.Duration
}

// New creates a Watcher for paths. Files need not exist yet, but their
// parent directories should. interval <= 0 uses DefaultInterval.
func New(paths []string, interval time.Duration) (*Watcher, error) {
	return newWatcher(paths, interval, false)
}

func newWatcher(paths []string, interval time.Duration, forcePoll bool) (*Watcher, error) {
	if len(paths) == 0 {
		return nil, errors.New("watch: no paths")
	}
	if interval <= 0 {
		interval = DefaultInterval
	}
	w := &Watcher{
		files:    make(map[string]bool, len(paths)),
		events:   make(chan struct{}, 1),
		done:     make(chan struct{}),
		interval: interval,
	}
	dirs := map[string]bool{}
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, fmt.Errorf("watch %s: %w", p, err)
		}
		w.files[abs] = true
		dirs[filepath.Dir(abs)] = true
	}

	if forcePoll {
		w.startPolling()
		return w, nil
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		slog.Info("fsnotify unavailable, falling back to polling", "error", err)
		w.startPolling()
		return w, nil
	}
	for dir := range dirs {
		if err := fsw.Add(dir); err != nil {
			slog.Info("cannot watch directory, falling back to polling", "path", dir, "error", err)
			fsw.Close()
			w.startPolling()
			return w, nil
		}
	}
	w.fsw = fsw
	go w.watch()
	return w, nil
}

// Polling reports whether the watcher is using polling instead of fsnotify.
func (w *Watcher) Polling() bool {
	return w.polling.Load()
}

// Events returns a channel that receives a signal when a watched file changes.
func (w *Watcher) Events() <-chan struct{} {
	return w.events
}

// Close stops the watcher and releases resources. It is safe to call more
// than once.
func (w *Watcher) Close() error {
	var err error
	w.once.Do(func() {
		close(w.done)
		if w.fsw != nil {
			if closeErr := w.fsw.Close(); closeErr != nil {
				err = fmt.Errorf("closing fsnotify watcher: %w", closeErr)
			}
		}
	})
	return err
}

// watch forwards fsnotify events for watched files. On an fsnotify error it
// switches to polling; the native watcher is then closed by Close.
func (w *Watcher) watch() {
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if !w.files[filepath.Clean(event.Name)] {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				w.notify()
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			slog.Info("fsnotify error, switching to polling", "error", err)
			w.startPolling()
			return
		}
	}
}

func (w *Watcher) startPolling() {
	w.polling.Store(true)
	go w.poll()
}

// fileStamp is what polling compares between passes.
type fileStamp struct {
	mod  time.Time
	size int64
	ok   bool
}

func (w *Watcher) snapshot() map[string]fileStamp {
	out := make(map[string]fileStamp, len(w.files))
	for path := range w.files {
		info, err := os.Stat(path)
		if err != nil {
			out[path] = fileStamp{}
			continue
		}
		out[path] = fileStamp{mod: info.ModTime(), size: info.Size(), ok: true}
	}
	return out
}

// poll stats the watched files every interval and notifies when one appears
// or its modification time or size changes. Deletions are not reported.
func (w *Watcher) poll() {
	last := w.snapshot()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.done:
			return
		case <-ticker.C:
			cur := w.snapshot()
			changed := false
			for path, s := range cur {
				prev := last[path]
				if s.ok && (!prev.ok || !s.mod.Equal(prev.mod) || s.size != prev.size) {
					changed = true
				}
			}
			last = cur
			if changed {
				w.notify()
			}
		}
	}
}

// notify sends a single signal to the events channel. If a signal is already
// pending the call is a no-op, coalescing rapid successive changes.
func (w *Watcher) notify() {
	select {
	case w.events <- struct{}{}:
	default:
	}
}
