package plugin

import (
	"strings"
	"sync"
)

// LifecycleFunc observes state transitions of records that belong to a
// category.
type LifecycleFunc func(r *Record, from, to State)

// Category groups plugins under a case-insensitive name and scopes handlers
// and lifecycle callbacks to its members. A category with no acceptor and no
// handlers passes every member through.
type Category struct {
	key     string
	display string

	mu        sync.RWMutex
	acceptor  Handler
	handlers  []Handler
	lifecycle []LifecycleFunc
}

func newCategory(name string) *Category {
	return &Category{
		key:     strings.ToLower(name),
		display: name,
	}
}

// Name returns the category name as first registered.
func (c *Category) Name() string { return c.display }

// SetAcceptor installs the category's primary acceptance callback. It is
// consulted before the handler chain.
func (c *Category) SetAcceptor(h Handler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.acceptor = h
}

// Use appends a handler to the category's chain.
func (c *Category) Use(h Handler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers = append(c.handlers, h)
}

// OnLifecycle registers a callback for state transitions of member records.
func (c *Category) OnLifecycle(fn LifecycleFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lifecycle = append(c.lifecycle, fn)
}

// chain returns the acceptor (if any) followed by the handlers, as a snapshot
// safe to iterate without the lock.
func (c *Category) chain() []Handler {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Handler, 0, len(c.handlers)+1)
	if c.acceptor != nil {
		out = append(out, c.acceptor)
	}
	out = append(out, c.handlers...)
	return out
}

func (c *Category) notifyState(r *Record, from, to State) {
	c.mu.RLock()
	fns := make([]LifecycleFunc, len(c.lifecycle))
	copy(fns, c.lifecycle)
	c.mu.RUnlock()
	for _, fn := range fns {
		fn(r, from, to)
	}
}
