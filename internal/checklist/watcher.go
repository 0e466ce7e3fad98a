package checklist

import (
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher invalidates a Store's in-memory cache when the checklist document
// changes on disk. It is an optimization only: the store re-checks the
// source mtime on every access, so correctness never depends on the
// watcher running.
type Watcher struct {
	watcher *fsnotify.Watcher
	store   *Store
	stopCh  chan struct{}
}

// NewWatcher creates a Watcher for the store's checklist document. The
// containing directory is watched rather than the file itself so that
// editors which replace the file on save are still observed.
func NewWatcher(store *Store) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	if err := fw.Add(filepath.Dir(store.Path())); err != nil {
		_ = fw.Close()
		return nil, err
	}

	return &Watcher{
		watcher: fw,
		store:   store,
		stopCh:  make(chan struct{}),
	}, nil
}

// Start begins watching in a background goroutine.
func (w *Watcher) Start() {
	go w.watchLoop()
}

// Stop stops the watcher and releases its resources.
func (w *Watcher) Stop() {
	close(w.stopCh)
	_ = w.watcher.Close()
}

// watchLoop processes filesystem events. Events are debounced because many
// editors emit several events for a single save.
func (w *Watcher) watchLoop() {
	debounce := time.NewTimer(0)
	<-debounce.C // drain initial timer

	dirty := false
	target := filepath.Clean(w.store.Path())

	for {
		select {
		case <-w.stopCh:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			dirty = true
			debounce.Reset(50 * time.Millisecond)

		case <-debounce.C:
			if dirty {
				w.store.Invalidate()
				dirty = false
			}

		case _, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
		}
	}
}
