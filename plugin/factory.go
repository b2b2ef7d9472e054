package plugin

import (
	"runtime"
	"strings"
	"sync"

	cmap "github.com/orcaman/concurrent-map/v2"

	"github.com/lcx/keel/config"
	"github.com/lcx/keel/log"
	"github.com/lcx/keel/scan"
	"github.com/lcx/keel/utils"
)

// Factory is the plugin registry: records keyed by class, categories,
// loaders, the shared metadata store, and the global handler and listener
// chains. One factory usually serves the whole process through GetInstance,
// but factories are self-contained and tests create their own.
type Factory struct {
	mu        sync.RWMutex
	records   map[Class]*Record
	order     []Class
	loaders   []*Loader
	metadata  map[string]any
	handlers  []Handler
	listeners []StateListener
	sources   []scan.Source
	limiter   *scan.ScanLimiter
	funnel    *scan.FunnelScanLimiter
	registrar ShutdownRegistrar
	hooked    bool
	tracked   []*Record

	categories cmap.ConcurrentMap[string, *Category]

	// loadMu serializes load batches so two concurrent Load calls cannot
	// interleave partial batches.
	loadMu sync.Mutex
}

// NewFactory creates an empty factory wired to the process loader.
func NewFactory() *Factory {
	return &Factory{
		records:    make(map[Class]*Record),
		metadata:   make(map[string]any),
		loaders:    []*Loader{ProcessLoader()},
		categories: cmap.New[*Category](),
	}
}

var (
	_factoryMu sync.Mutex
	_factory   *Factory
)

// GetInstance returns the process-wide factory, creating it on first use.
func GetInstance() *Factory {
	_factoryMu.Lock()
	defer _factoryMu.Unlock()
	if _factory == nil {
		_factory = NewFactory()
	}
	return _factory
}

// ResetInstance discards the process-wide factory. Test helper.
func ResetInstance() {
	_factoryMu.Lock()
	defer _factoryMu.Unlock()
	_factory = nil
}

// SetInstanceForTesting swaps the process-wide factory and returns the
// previous one.
func SetInstanceForTesting(f *Factory) *Factory {
	_factoryMu.Lock()
	defer _factoryMu.Unlock()
	prev := _factory
	_factory = f
	return prev
}

// Get returns the record registered for class.
func (f *Factory) Get(c Class) (*Record, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	r, ok := f.records[c]
	return r, ok
}

// Plugins returns all registered records in registration order.
func (f *Factory) Plugins() []*Record {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]*Record, 0, len(f.order))
	for _, c := range f.order {
		out = append(out, f.records[c])
	}
	return out
}

func (f *Factory) insert(r *Record) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.records[r.class]; !ok {
		f.order = append(f.order, r.class)
	}
	f.records[r.class] = r
}

func (f *Factory) remove(c Class) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.records[c]; !ok {
		return
	}
	delete(f.records, c)
	for i, oc := range f.order {
		if oc == c {
			f.order = append(f.order[:i], f.order[i+1:]...)
			break
		}
	}
}

// Category returns the category registered under name, creating a
// pass-through category on first use. Names are case-insensitive.
func (f *Factory) Category(name string) *Category {
	key := strings.ToLower(name)
	if c, ok := f.categories.Get(key); ok {
		return c
	}
	f.categories.SetIfAbsent(key, newCategory(name))
	c, _ := f.categories.Get(key)
	return c
}

// Categories returns all registered categories.
func (f *Factory) Categories() []*Category {
	out := make([]*Category, 0, f.categories.Count())
	for item := range f.categories.IterBuffered() {
		out = append(out, item.Val)
	}
	return out
}

// SetMetadata stores a value in the factory metadata store.
func (f *Factory) SetMetadata(key string, value any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.metadata[key] = value
}

// Metadata reads a value from the factory metadata store.
func (f *Factory) Metadata(key string) (any, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	v, ok := f.metadata[key]
	return v, ok
}

// AddLoader registers a loader with the factory's search path.
func (f *Factory) AddLoader(l *Loader) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loaders = append(f.loaders, l)
}

// Loaders returns the registered loaders in registration order.
func (f *Factory) Loaders() []*Loader {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]*Loader, len(f.loaders))
	copy(out, f.loaders)
	return out
}

// UseGlobal appends a handler consulted for every plugin regardless of
// category.
func (f *Factory) UseGlobal(h Handler) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers = append(f.handlers, h)
}

func (f *Factory) globalHandlers() []Handler {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]Handler, len(f.handlers))
	copy(out, f.handlers)
	return out
}

// AddStateListener registers a factory-wide state transition listener.
func (f *Factory) AddStateListener(l StateListener) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listeners = append(f.listeners, l)
}

func (f *Factory) notifyState(r *Record, from, to State) {
	f.mu.RLock()
	ls := make([]StateListener, len(f.listeners))
	copy(ls, f.listeners)
	f.mu.RUnlock()
	for _, l := range ls {
		l.OnPluginStateChanged(r, from, to)
	}
}

// AddSource registers a scan source consulted by every finder on this
// factory.
func (f *Factory) AddSource(src scan.Source) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sources = append(f.sources, src)
}

// Sources returns the factory's registered scan sources.
func (f *Factory) Sources() []scan.Source {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]scan.Source, len(f.sources))
	copy(out, f.sources)
	return out
}

// SetRegistrar injects the shutdown registrar used by loads that request a
// shutdown hook.
func (f *Factory) SetRegistrar(r ShutdownRegistrar) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.registrar = r
}

// scanner builds a scanner over the factory sources plus extra per-query
// sources.
func (f *Factory) scanner(extra []scan.Source) *scan.Scanner {
	f.mu.RLock()
	sources := make([]scan.Source, 0, len(f.sources)+len(extra))
	sources = append(sources, f.sources...)
	limiter := f.limiter
	funnel := f.funnel
	f.mu.RUnlock()
	sources = append(sources, extra...)

	opts := []scan.ScannerOption{scan.WithSources(sources...)}
	if limiter != nil {
		opts = append(opts, scan.WithLimiter(limiter))
	}
	if funnel != nil {
		opts = append(opts, scan.WithFunnel(funnel))
	}
	return scan.NewScanner(opts...)
}

// NewFinder creates a finder bound to this factory, capturing the calling
// package for load auditing.
func (f *Factory) NewFinder() *Finder {
	return &Finder{
		factory: f,
		caller:  callerPackage(2),
		hook:    true,
	}
}

// NewFinder creates a finder on the process-wide factory.
func NewFinder() *Finder {
	fd := GetInstance().NewFinder()
	fd.caller = callerPackage(2)
	return fd
}

// ApplyConfig wires scan roots, archives, throttling, and the fallback
// shutdown registrar from a framework config.
func (f *Factory) ApplyConfig(cfg *FrameworkConfig) {
	for _, root := range cfg.ScanRoots {
		f.AddSource(scan.NewDirSource(root))
	}
	for _, path := range cfg.Archives {
		f.AddSource(scan.NewArchiveSource(path))
	}
	f.mu.Lock()
	if cfg.ScanRate > 0 {
		switch {
		case cfg.ScanFunnel && f.funnel == nil:
			f.funnel = scan.NewFunnelScanLimiter(cfg.ScanRate)
		case cfg.ScanFunnel:
			f.funnel.Reload(cfg.ScanRate)
		case f.limiter == nil:
			f.limiter = scan.NewScanLimiter(cfg.ScanRate, scanBurst(cfg))
		default:
			f.limiter.Reload(cfg.ScanRate, scanBurst(cfg))
		}
	}
	if cfg.SignalShutdown && f.registrar == nil {
		f.registrar = NewSignalRegistrar()
	}
	f.mu.Unlock()
}

// InitFromConfig loads the "plugin" config through the config manager,
// applies it, and subscribes to reloads so the scan limiter follows config
// changes.
func (f *Factory) InitFromConfig() error {
	cm := config.GetInstance()
	cfg := &FrameworkConfig{}
	if err := cm.LoadConfig(cfg.GetName(), cfg); err != nil {
		return err
	}
	f.ApplyConfig(cfg)
	cm.AddChangeListener(f)
	return nil
}

// OnConfigChanged implements config.ConfigChangeListener for the "plugin"
// config. Only throttling is hot-reloaded; scan roots are fixed at init.
func (f *Factory) OnConfigChanged(configName string, newConfig, oldConfig config.Config) error {
	if configName != (&FrameworkConfig{}).GetName() {
		return nil
	}
	cfg, ok := newConfig.(*FrameworkConfig)
	if !ok {
		return nil
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if cfg.ScanRate <= 0 {
		return nil
	}
	if cfg.ScanFunnel && f.funnel != nil {
		f.funnel.Reload(cfg.ScanRate)
		log.Info().Int("rate", cfg.ScanRate).Msg("scan funnel reloaded")
	}
	if !cfg.ScanFunnel && f.limiter != nil {
		f.limiter.Reload(cfg.ScanRate, scanBurst(cfg))
		log.Info().Int("rate", cfg.ScanRate).Int("burst", scanBurst(cfg)).
			Msg("scan limiter reloaded")
	}
	return nil
}

// scanBurst defaults the token bucket burst to the rate itself.
func scanBurst(cfg *FrameworkConfig) int {
	if cfg.ScanBurst > 0 {
		return cfg.ScanBurst
	}
	return cfg.ScanRate
}

// track remembers an auto-close record for shutdown, in start order.
func (f *Factory) track(r *Record) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tracked = append(f.tracked, r)
}

// CloseSequence returns the tracked auto-close records that are still
// running, in reverse start order.
func (f *Factory) CloseSequence() []*Record {
	f.mu.RLock()
	defer f.mu.RUnlock()
	var out []*Record
	for i := len(f.tracked) - 1; i >= 0; i-- {
		if f.tracked[i].State() == StateRunning {
			out = append(out, f.tracked[i])
		}
	}
	return out
}

// Shutdown closes every tracked auto-close record in reverse start order.
// Close failures are logged and do not stop the sequence.
func (f *Factory) Shutdown() {
	for _, r := range f.CloseSequence() {
		if err := r.Close(); err != nil {
			log.Error().Str("class", r.Class().String()).Err(err).
				Msg("shutdown close failed")
		}
	}
}

// registerShutdownHook hands the factory's close sequence to the registrar
// at most once.
func (f *Factory) registerShutdownHook() {
	f.mu.Lock()
	registrar := f.registrar
	if registrar == nil || f.hooked {
		f.mu.Unlock()
		return
	}
	f.hooked = true
	f.mu.Unlock()
	registrar.RegisterShutdown(f.Shutdown)
}

func callerPackage(skip int) string {
	pc, _, _, ok := runtime.Caller(skip)
	if !ok {
		return ""
	}
	fn := runtime.FuncForPC(pc)
	if fn == nil {
		return ""
	}
	pkg, _, err := utils.SplitFQN(fn.Name())
	if err != nil {
		return fn.Name()
	}
	return pkg
}

