// Package watch provides hot plugin discovery: a plugin that watches the
// factory's directory sources and re-runs discovery when manifests change.
// It registers itself on the process loader, so enabling it is a matter of
// importing the package and loading the "framework" category.
package watch

import (
	"sync"
	"time"

	"github.com/lcx/keel/log"
	"github.com/lcx/keel/plugin"
	"github.com/lcx/keel/scan"
)

const debounceDelay = 500 * time.Millisecond

func init() {
	plugin.MustRegister((*Rescanner)(nil), plugin.Declaration{
		Name:        "hot-discovery",
		Description: "reloads plugin manifests when scan roots change",
		Categories:  []string{"framework"},
	}, newRescanner)
}

// Rescanner watches manifest changes under the factory's directory sources
// and triggers a fresh load for each change burst. Changes arriving within
// the debounce window collapse into one reload.
type Rescanner struct {
	factory *plugin.Factory

	mu      sync.Mutex
	watcher *scan.Watcher
	timer   *time.Timer
	closed  bool
}

func newRescanner(ctx *plugin.Context) (any, error) {
	r := &Rescanner{factory: ctx.Factory()}
	w, err := scan.NewWatcher(r.onChange)
	if err != nil {
		return nil, err
	}
	r.watcher = w

	roots := 0
	for _, src := range r.factory.Sources() {
		dir, ok := src.(*scan.DirSource)
		if !ok {
			continue
		}
		if err := w.AddRoot(dir.Root()); err == nil {
			roots++
		}
	}
	log.Info().Int("roots", roots).Msg("hot discovery watching")
	return r, nil
}

func (r *Rescanner) onChange(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	log.Debug().Str("path", path).Msg("manifest change observed")
	if r.timer != nil {
		r.timer.Stop()
	}
	r.timer = time.AfterFunc(debounceDelay, r.rescan)
}

func (r *Rescanner) rescan() {
	records, err := r.factory.NewFinder().WithShutdownHook(false).Load(nil)
	if err != nil {
		log.Error().Err(err).Msg("hot discovery reload failed")
		return
	}
	if len(records) > 0 {
		log.Info().Int("loaded", len(records)).Msg("hot discovery reload finished")
	}
}

// Stop implements plugin.Stoppable.
func (r *Rescanner) Stop(*plugin.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	if r.timer != nil {
		r.timer.Stop()
	}
	return r.watcher.Close()
}
