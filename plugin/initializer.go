package plugin

import (
	"fmt"
	"io"
	"sync"

	"github.com/lcx/keel/utils"
)

// Built-in initializer strategy names.
const (
	// StrategyConstruct builds the instance from a registered constructor.
	StrategyConstruct = "construct"
	// StrategyFactory builds the instance through a producer method bound
	// on another class.
	StrategyFactory = "factory"
	// StrategyNone starts the plugin without building an instance.
	StrategyNone = "none"
)

// Constructor produces a plugin instance for the construct strategy.
type Constructor func(ctx *Context) (any, error)

// FactoryMethod produces a plugin instance for the factory strategy. It is
// bound under a "pkg/path.Class#Method" reference.
type FactoryMethod func(ctx *Context) (any, error)

// Stoppable lets an instance participate in teardown beyond io.Closer.
type Stoppable interface {
	Stop(ctx *Context) error
}

// Initializer is a pluggable start/stop strategy. Strategies are registered
// process-wide by name and selected per declaration.
type Initializer interface {
	Name() string
	// Start builds and returns the plugin instance.
	Start(r *Record) (any, error)
	// Stop tears the instance down.
	Stop(r *Record) error
}

var (
	_strategyMu   sync.RWMutex
	_strategies   = make(map[string]Initializer)
	_ctorMu       sync.RWMutex
	_ctors        = make(map[Class]Constructor)
	_factoryRefMu sync.RWMutex
	_factoryRefs  = make(map[string]FactoryMethod)
)

func init() {
	RegisterStrategy(&constructInitializer{})
	RegisterStrategy(&factoryInitializer{})
	RegisterStrategy(&noneInitializer{})
}

// RegisterStrategy installs a strategy under its name, replacing any
// previous registration.
func RegisterStrategy(i Initializer) {
	_strategyMu.Lock()
	defer _strategyMu.Unlock()
	_strategies[i.Name()] = i
}

// StrategyFor looks up a registered strategy by name.
func StrategyFor(name string) (Initializer, bool) {
	_strategyMu.RLock()
	defer _strategyMu.RUnlock()
	i, ok := _strategies[name]
	return i, ok
}

// RegisterConstructor binds a constructor to a class for the construct
// strategy.
func RegisterConstructor(c Class, fn Constructor) {
	_ctorMu.Lock()
	defer _ctorMu.Unlock()
	_ctors[c] = fn
}

func constructorFor(c Class) (Constructor, bool) {
	_ctorMu.RLock()
	defer _ctorMu.RUnlock()
	fn, ok := _ctors[c]
	return fn, ok
}

// RegisterFactoryMethod binds a producer under a "pkg/path.Class#Method"
// reference for the factory strategy.
func RegisterFactoryMethod(ref string, fn FactoryMethod) error {
	if _, _, err := utils.SplitMethodRef(ref); err != nil {
		return err
	}
	_factoryRefMu.Lock()
	defer _factoryRefMu.Unlock()
	_factoryRefs[ref] = fn
	return nil
}

func factoryMethodFor(ref string) (FactoryMethod, bool) {
	_factoryRefMu.RLock()
	defer _factoryRefMu.RUnlock()
	fn, ok := _factoryRefs[ref]
	return fn, ok
}

// stopInstance runs the common teardown protocol shared by strategies.
func stopInstance(r *Record) error {
	switch v := r.Instance().(type) {
	case Stoppable:
		return v.Stop(r.Context())
	case io.Closer:
		return v.Close()
	default:
		return nil
	}
}

type constructInitializer struct{}

func (*constructInitializer) Name() string { return StrategyConstruct }

func (*constructInitializer) Start(r *Record) (any, error) {
	ctor, ok := constructorFor(r.Class())
	if !ok {
		return nil, fmt.Errorf("no constructor registered for %s", r.Class())
	}
	return ctor(r.Context())
}

func (*constructInitializer) Stop(r *Record) error { return stopInstance(r) }

type factoryInitializer struct{}

func (*factoryInitializer) Name() string { return StrategyFactory }

func (*factoryInitializer) Start(r *Record) (any, error) {
	ref := r.FactoryRef()
	if ref == "" {
		return nil, fmt.Errorf("%s uses factory strategy without factoryRef", r.Class())
	}
	fn, ok := factoryMethodFor(ref)
	if !ok {
		return nil, fmt.Errorf("no factory method registered for %q", ref)
	}
	return fn(r.Context())
}

func (*factoryInitializer) Stop(r *Record) error { return stopInstance(r) }

// noneInitializer starts the plugin without producing an instance. Useful for
// marker plugins whose value is their categories and dependants.
type noneInitializer struct{}

func (*noneInitializer) Name() string { return StrategyNone }

func (*noneInitializer) Start(*Record) (any, error) { return nil, nil }

func (*noneInitializer) Stop(*Record) error { return nil }
