package plugin

// Target is what a handler inspects: either a *Builder (pre-build acceptance)
// or a *Record (post-build acceptance). Handlers that need the concrete shape
// type-switch on it.
type Target interface {
	// TargetClass is the plugin's class identity.
	TargetClass() Class
	// TargetName is the plugin's effective name.
	TargetName() string
	// TargetCategories lists the plugin's category names.
	TargetCategories() []string
	// TargetDependencies lists the plugin's declared dependency classes.
	TargetDependencies() []Class
	// TargetPriority is the plugin's start priority.
	TargetPriority() int
}

// Handler participates in load acceptance. A handler rejecting a target
// suppresses the plugin for that load; handlers may also mutate a *Builder
// before it is finalized. Each (plugin, handler) pair is consulted at most
// once per load phase, tracked by handler identity, so implementations must
// be comparable (pointer receivers, as NewHandler returns).
type Handler interface {
	Name() string
	Accept(t Target) bool
}

type funcHandler struct {
	name string
	fn   func(t Target) bool
}

func (h *funcHandler) Name() string         { return h.name }
func (h *funcHandler) Accept(t Target) bool { return h.fn(t) }

// NewHandler adapts a function into a named Handler.
func NewHandler(name string, fn func(t Target) bool) Handler {
	return &funcHandler{name: name, fn: fn}
}

// StateListener observes record state transitions factory-wide.
type StateListener interface {
	OnPluginStateChanged(r *Record, from, to State)
}

// StateListenerFunc adapts a function into a StateListener.
type StateListenerFunc func(r *Record, from, to State)

func (f StateListenerFunc) OnPluginStateChanged(r *Record, from, to State) {
	f(r, from, to)
}
