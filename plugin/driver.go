package plugin

import (
	"github.com/google/uuid"

	"github.com/lcx/keel/log"
)

// consultKey identifies one (plugin, handler, phase) acceptance consultation.
// Each key fires at most once per load so handlers that mutate builders
// converge instead of looping. Keyed by handler identity, not name, so two
// handlers sharing a name are still consulted independently.
type consultKey struct {
	class   Class
	handler Handler
	record  bool
}

// load runs one discovery and start batch for a finder. The batch is atomic:
// any build or start failure closes what this batch already started and
// deregisters what it registered. On success it returns every record the
// batch registered, including records left idle by record-phase handler
// rejection.
func (f *Factory) load(fd *Finder, predicate func(*Declaration) bool) ([]*Record, error) {
	f.loadMu.Lock()
	defer f.loadMu.Unlock()

	op := uuid.New()
	decls, err := fd.Declarations()
	if err != nil {
		return nil, err
	}

	// prior remembers idle and failed records a reload may replace. They
	// stay registered until a replacement is actually built, so a
	// suppressed or rolled-back reload never loses them.
	prior := make(map[Class]*Record)
	var remaining []*Builder
	for _, d := range decls {
		if predicate != nil && !predicate(d) {
			continue
		}
		c := d.ClassRef()
		if existing, ok := f.Get(c); ok {
			if existing.State().Active() {
				log.Debug().Str("op", op.String()).Str("class", c.String()).
					Msg("already active, load skipped")
				continue
			}
			prior[c] = existing
		}
		ctx := newContext(f, fd, op, fd.caller, d)
		b, err := NewBuilder(f, d, fd.loaderFor(c), ctx)
		if err != nil {
			return nil, err
		}
		remaining = append(remaining, b)
	}
	if len(remaining) == 0 {
		return nil, nil
	}

	log.Info().Str("op", op.String()).Str("caller", fd.caller).
		Int("candidates", len(remaining)).Msg("plugin load started")

	consulted := make(map[consultKey]bool)
	var built, started []*Record

	fail := func(err error) ([]*Record, error) {
		f.rollback(op, started, built, prior)
		return nil, err
	}

	for len(remaining) > 0 {
		// Builder acceptance pass. Handlers may mutate builders; a
		// builder is only finalized once a full pass fires nothing new
		// for it.
		newly := make(map[Class]bool)
		var next []*Builder
		for _, b := range remaining {
			accepted := true
			for _, h := range f.builderChain(b) {
				k := consultKey{class: b.Class(), handler: h}
				if consulted[k] {
					continue
				}
				consulted[k] = true
				newly[b.Class()] = true
				if !h.Accept(b) {
					log.Info().Str("op", op.String()).
						Str("class", b.Class().String()).
						Str("handler", h.Name()).
						Msg("plugin suppressed by handler")
					accepted = false
					break
				}
			}
			if accepted {
				next = append(next, b)
			}
		}
		remaining = next
		if len(remaining) == 0 {
			break
		}

		ordered, err := Organize(remaining, f.isRunning)
		if err != nil {
			return fail(err)
		}
		var pick *Builder
		for _, b := range ordered {
			if !newly[b.Class()] {
				pick = b
				break
			}
		}
		if pick == nil {
			// Every candidate saw new handlers this pass; give the
			// mutated builders another acceptance round.
			continue
		}

		rec, err := pick.Build()
		if err != nil {
			return fail(err)
		}
		f.insert(rec)
		built = append(built, rec)

		accepted := true
		for _, h := range f.recordChain(rec) {
			k := consultKey{class: rec.Class(), handler: h, record: true}
			if consulted[k] {
				continue
			}
			consulted[k] = true
			if !h.Accept(rec) {
				log.Info().Str("op", op.String()).
					Str("class", rec.Class().String()).
					Str("handler", h.Name()).
					Msg("record suppressed, stays idle")
				accepted = false
				break
			}
		}
		if accepted {
			if err := rec.Start(); err != nil {
				return fail(err)
			}
			started = append(started, rec)
			if rec.AutoClose() {
				f.track(rec)
			}
		}

		for i, b := range remaining {
			if b == pick {
				remaining = append(remaining[:i], remaining[i+1:]...)
				break
			}
		}
	}

	// Dependant back-fill, including links onto records that were already
	// running before this batch.
	for _, rec := range built {
		for _, dep := range rec.Dependencies() {
			dep.addDependant(rec)
		}
	}

	if fd.hook && len(started) > 0 {
		f.registerShutdownHook()
	}

	log.Info().Str("op", op.String()).Int("registered", len(built)).
		Int("started", len(started)).Msg("plugin load finished")
	return built, nil
}

// rollback unwinds a failed batch: started records close in reverse start
// order, then everything the batch registered is deregistered, restoring any
// record the batch had displaced.
func (f *Factory) rollback(op uuid.UUID, started, built []*Record, prior map[Class]*Record) {
	for i := len(started) - 1; i >= 0; i-- {
		if err := started[i].Close(); err != nil {
			log.Error().Str("op", op.String()).
				Str("class", started[i].Class().String()).Err(err).
				Msg("rollback close failed")
		}
	}
	for _, r := range built {
		if old, ok := prior[r.Class()]; ok {
			f.insert(old)
			continue
		}
		f.remove(r.Class())
	}
	log.Warn().Str("op", op.String()).Int("unwound", len(built)).
		Msg("plugin load rolled back")
}

func (f *Factory) isRunning(c Class) bool {
	r, ok := f.Get(c)
	return ok && r.State() == StateRunning
}

func (f *Factory) builderChain(b *Builder) []Handler {
	var out []Handler
	for _, name := range b.CategoryNames() {
		out = append(out, f.Category(name).chain()...)
	}
	return append(out, f.globalHandlers()...)
}

func (f *Factory) recordChain(r *Record) []Handler {
	var out []Handler
	for _, c := range r.Categories() {
		out = append(out, c.chain()...)
	}
	return append(out, f.globalHandlers()...)
}

// loaderFor finds the loader that defines c, falling back to the finder's
// definition loader.
func (fd *Finder) loaderFor(c Class) *Loader {
	for _, l := range fd.searchLoaders() {
		if _, ok := l.Lookup(c); ok {
			return l
		}
	}
	return fd.defineLoader()
}
