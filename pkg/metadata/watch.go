package metadata

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long the watcher waits for a burst of file events
// to settle before reloading.
const DefaultDebounce = 250 * time.Millisecond

// Watcher reloads a Store when its metadata directories change.
type Watcher struct {
	store    *Store
	fsw      *fsnotify.Watcher
	debounce time.Duration
}

// NewWatcher watches the store's directories and their subdirectories.
func NewWatcher(store *Store, debounce time.Duration) (*Watcher, error) {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create metadata watcher: %w", err)
	}

	for _, dir := range store.dirs {
		err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				return fsw.Add(path)
			}
			return nil
		})
		if err != nil {
			fsw.Close()
			return nil, fmt.Errorf("failed to watch metadata dir %s: %w", dir, err)
		}
	}

	return &Watcher{store: store, fsw: fsw, debounce: debounce}, nil
}

// Run processes file events until the context is done.
func (w *Watcher) Run(ctx context.Context) {
	var timer *time.Timer
	reload := make(chan struct{}, 1)

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if ev.Op&fsnotify.Create != 0 {
				// new subdirectories need their own watch
				_ = w.fsw.Add(ev.Name)
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(w.debounce, func() {
				select {
				case reload <- struct{}{}:
				default:
				}
			})
		case <-reload:
			if err := w.store.Reload(); err != nil {
				w.store.log.WithError(err).Warn("metadata reload failed, keeping previous version")
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.store.log.WithError(err).Warn("metadata watcher error")
		}
	}
}

// Close stops watching.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}
