package scan

import (
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/lcx/keel/log"
)

// ChangeFunc is invoked with the root whose contents changed.
type ChangeFunc func(root string)

// Watcher observes scan roots and reports manifest changes so the host can
// trigger re-discovery. It deliberately does not reload anything itself:
// reload always goes through the normal load path.
type Watcher struct {
	mu      sync.Mutex
	watcher *fsnotify.Watcher
	onEvent ChangeFunc
	done    chan struct{}
	closed  bool
}

// NewWatcher creates a watcher that calls onEvent for relevant changes.
func NewWatcher(onEvent ChangeFunc) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{
		watcher: fw,
		onEvent: onEvent,
		done:    make(chan struct{}),
	}
	go w.run()
	return w, nil
}

// AddRoot starts watching a directory root. Missing roots are skipped.
func (w *Watcher) AddRoot(root string) error {
	if err := w.watcher.Add(root); err != nil {
		log.Warn().Str("root", root).Err(err).Msg("watch root skipped")
		return err
	}
	return nil
}

func (w *Watcher) run() {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if !IsManifestName(event.Name) {
				continue
			}
			if w.onEvent != nil {
				w.onEvent(event.Name)
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Warn().Err(err).Msg("scan watcher error")
		case <-w.done:
			return
		}
	}
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	close(w.done)
	return w.watcher.Close()
}
