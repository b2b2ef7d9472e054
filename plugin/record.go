package plugin

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/lcx/keel/log"
)

// Record is a registered plugin: the unit the factory tracks, starts, and
// closes. Records are created by builders and keyed by class.
type Record struct {
	factory    *Factory
	class      Class
	name       string
	desc       string
	strategy   string
	factoryRef string
	priority   int
	autoClose  bool
	ctx        *Context
	decl       *Declaration

	deps       []*Record
	categories []*Category
	catNames   []string

	// lifecycleMu serializes Start and Close so transitions observed by
	// listeners are totally ordered per record.
	lifecycleMu sync.Mutex
	state       atomic.Uint32

	mu         sync.RWMutex
	instance   any
	dependants []*Record
}

// Class returns the record's class identity.
func (r *Record) Class() Class { return r.class }

// Name returns the record's effective name.
func (r *Record) Name() string { return r.name }

// Description returns the declared description.
func (r *Record) Description() string { return r.desc }

// Strategy returns the initializer strategy name.
func (r *Record) Strategy() string { return r.strategy }

// FactoryRef returns the factory strategy producer reference, if any.
func (r *Record) FactoryRef() string { return r.factoryRef }

// Priority returns the start priority; lower starts first.
func (r *Record) Priority() int { return r.priority }

// AutoClose reports whether the record participates in shutdown-hook
// teardown.
func (r *Record) AutoClose() bool { return r.autoClose }

// Context returns the load context captured when the record was built.
func (r *Record) Context() *Context { return r.ctx }

// Declaration returns the declaration the record was built from.
func (r *Record) Declaration() *Declaration { return r.decl }

// State returns the current lifecycle state.
func (r *Record) State() State { return State(r.state.Load()) }

// Instance returns the live instance, or nil outside RUNNING.
func (r *Record) Instance() any {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.instance
}

// Dependencies returns the resolved dependency records in declaration order.
func (r *Record) Dependencies() []*Record {
	out := make([]*Record, len(r.deps))
	copy(out, r.deps)
	return out
}

// Dependants returns every record registered as depending on this one.
func (r *Record) Dependants() []*Record {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Record, len(r.dependants))
	copy(out, r.dependants)
	return out
}

// Categories returns the record's resolved categories.
func (r *Record) Categories() []*Category {
	out := make([]*Category, len(r.categories))
	copy(out, r.categories)
	return out
}

// addDependant links a dependant record, de-duplicating by class.
func (r *Record) addDependant(dep *Record) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, d := range r.dependants {
		if d.class == dep.class {
			return
		}
	}
	r.dependants = append(r.dependants, dep)
}

func (r *Record) activeDependants() []Class {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Class
	for _, d := range r.dependants {
		if d.State().Active() {
			out = append(out, d.class)
		}
	}
	return out
}

// Start transitions the record to RUNNING through its initializer strategy.
// Starting an already active record is a no-op; a strategy failure moves the
// record to FAILED and leaves no instance behind.
func (r *Record) Start() error {
	r.lifecycleMu.Lock()
	defer r.lifecycleMu.Unlock()
	if r.State().Active() {
		return nil
	}
	strat, ok := StrategyFor(r.strategy)
	if !ok {
		r.setState(StateFailed)
		return &InitializationError{
			Class: r.class,
			Err:   fmt.Errorf("%w: %q", ErrStrategyNotFound, r.strategy),
		}
	}
	r.setState(StateStarting)
	inst, err := strat.Start(r)
	if err != nil {
		r.setState(StateFailed)
		return &InitializationError{Class: r.class, Err: err}
	}
	r.mu.Lock()
	r.instance = inst
	r.mu.Unlock()
	r.setState(StateRunning)
	log.Info().Str("class", r.class.String()).Str("name", r.name).
		Str("strategy", r.strategy).Msg("plugin started")
	return nil
}

// Close transitions the record back to IDLE. It is a no-op unless the record
// is RUNNING, refuses to close while dependants are active, and returns to
// IDLE even when teardown itself fails.
func (r *Record) Close() error {
	r.lifecycleMu.Lock()
	defer r.lifecycleMu.Unlock()
	if r.State() != StateRunning {
		return nil
	}
	if active := r.activeDependants(); len(active) > 0 {
		return &DependantError{Class: r.class, Active: active}
	}
	r.setState(StateStopping)
	defer func() {
		r.mu.Lock()
		r.instance = nil
		r.mu.Unlock()
		r.setState(StateIdle)
	}()
	strat, ok := StrategyFor(r.strategy)
	if !ok {
		return &InterruptError{
			Class: r.class,
			Err:   fmt.Errorf("%w: %q", ErrStrategyNotFound, r.strategy),
		}
	}
	if err := strat.Stop(r); err != nil {
		return &InterruptError{Class: r.class, Err: err}
	}
	log.Info().Str("class", r.class.String()).Str("name", r.name).Msg("plugin closed")
	return nil
}

func (r *Record) setState(to State) {
	from := State(r.state.Swap(uint32(to)))
	if from == to {
		return
	}
	for _, c := range r.categories {
		c.notifyState(r, from, to)
	}
	if r.factory != nil {
		r.factory.notifyState(r, from, to)
	}
}

// Target implementation.

func (r *Record) TargetClass() Class  { return r.class }
func (r *Record) TargetName() string  { return r.name }
func (r *Record) TargetPriority() int { return r.priority }

func (r *Record) TargetCategories() []string {
	out := make([]string, len(r.catNames))
	copy(out, r.catNames)
	return out
}
func (r *Record) TargetDependencies() []Class {
	out := make([]Class, 0, len(r.deps))
	for _, d := range r.deps {
		out = append(out, d.class)
	}
	return out
}
