package plugin

import (
	"sync"

	"github.com/lcx/keel/log"
)

// Loader is a named declaration registry. It plays the role a class loader
// plays in annotation-scanned systems: a universe of defined classes the
// classifier can consult before falling back to structural probing.
type Loader struct {
	name  string
	mu    sync.RWMutex
	decls map[Class]*Declaration
	order []Class
}

// NewLoader creates an empty loader.
func NewLoader(name string) *Loader {
	return &Loader{
		name:  name,
		decls: make(map[Class]*Declaration),
	}
}

// Name returns the loader's registration name.
func (l *Loader) Name() string { return l.name }

// Define registers a declaration. The first definition of a class wins;
// redefinition is logged and ignored so scan precedence stays stable.
func (l *Loader) Define(d *Declaration) error {
	if err := d.Validate(); err != nil {
		return err
	}
	c := d.ClassRef()
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.decls[c]; ok {
		log.Debug().Str("loader", l.name).Str("class", c.String()).
			Msg("duplicate definition ignored")
		return nil
	}
	l.decls[c] = d
	l.order = append(l.order, c)
	return nil
}

// Lookup returns the declaration defined for class, if any.
func (l *Loader) Lookup(c Class) (*Declaration, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	d, ok := l.decls[c]
	return d, ok
}

// Resolvable reports whether class is already defined in this loader.
func (l *Loader) Resolvable(c Class) bool {
	_, ok := l.Lookup(c)
	return ok
}

// Declarations returns all defined declarations in definition order.
func (l *Loader) Declarations() []*Declaration {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]*Declaration, 0, len(l.order))
	for _, c := range l.order {
		out = append(out, l.decls[c])
	}
	return out
}

var _processLoader = NewLoader("process")

// ProcessLoader is the loader that holds declarations registered from init
// functions inside the process itself.
func ProcessLoader() *Loader { return _processLoader }

// Register defines a declaration on the process loader and binds a
// constructor for its class. The class is derived from proto when the
// declaration leaves it empty. Intended for init-time use.
func Register(proto any, d Declaration, ctor Constructor) error {
	if d.Class == "" {
		c := ClassOf(proto)
		if c.IsZero() {
			return &DeclarationError{Reason: "cannot derive class from prototype"}
		}
		d.Class = c.String()
	}
	if err := _processLoader.Define(&d); err != nil {
		return err
	}
	if ctor != nil {
		RegisterConstructor(d.ClassRef(), ctor)
	}
	return nil
}

// MustRegister is Register for init functions; it panics on error.
func MustRegister(proto any, d Declaration, ctor Constructor) {
	if err := Register(proto, d, ctor); err != nil {
		panic(err)
	}
}
