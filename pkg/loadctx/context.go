// Package loadctx implements isolated load contexts for generated
// units: parent-delegating namespaces that types are injected into and
// resolved from, together with the reflective surface (declared-method
// resolution by name and exact parameter-type list) that the
// initializer protocol depends on.
package loadctx

import (
	"errors"
	"fmt"
	"sync"
	"weak"

	"github.com/google/uuid"
)

// ErrTypeNotFound indicates the requested type is not loaded in the
// context or any of its ancestors.
var ErrTypeNotFound = errors.New("type not found")

// ErrTypeExists indicates a type with the same name is already defined
// directly in the target context.
var ErrTypeExists = errors.New("type already defined")

// ErrSealed indicates the target context rejects injection.
var ErrSealed = errors.New("context is sealed")

// Ref is a weak reference to a load context. Holding a Ref never keeps
// the context alive; Value returns nil once the context has been
// collected. Refs to the same context compare equal, which makes them
// usable as map keys.
type Ref = weak.Pointer[Context]

// Context is an isolated namespace of loaded types. Resolution
// delegates to the parent chain; definition is always local. A nil
// parent makes the context a root.
type Context struct {
	id     uuid.UUID
	name   string
	parent *Context

	mu     sync.RWMutex
	types  map[string]*Type
	sealed bool
}

// New creates a load context with the given parent (nil for a root)
// and a diagnostic name.
func New(parent *Context, name string) *Context {
	return &Context{
		id:     uuid.New(),
		name:   name,
		parent: parent,
		types:  make(map[string]*Type),
	}
}

// Process root context, created on first use.
var (
	rootOnce sync.Once
	rootCtx  *Context
)

// Root returns the process root context. Every context created with a
// nil parent is its own root; Root is the shared default used when no
// explicit root is supplied.
func Root() *Context {
	rootOnce.Do(func() {
		rootCtx = New(nil, "root")
	})
	return rootCtx
}

// ID returns the context's unique identity.
func (c *Context) ID() uuid.UUID { return c.id }

// Name returns the context's diagnostic name.
func (c *Context) Name() string { return c.name }

// Parent returns the parent context, or nil for a root.
func (c *Context) Parent() *Context { return c.parent }

// RootContext walks the parent chain and returns the root ancestor.
// For a root context it returns the context itself.
func (c *Context) RootContext() *Context {
	r := c
	for r.parent != nil {
		r = r.parent
	}
	return r
}

// WeakRef returns a weak reference to this context.
func (c *Context) WeakRef() Ref { return weak.Make(c) }

// Seal marks the context as rejecting injection. Types already defined
// remain loadable. Sealing is irreversible.
func (c *Context) Seal() {
	c.mu.Lock()
	c.sealed = true
	c.mu.Unlock()
}

// Load resolves a type by name, consulting this context first and then
// delegating up the parent chain.
func (c *Context) Load(name string) (*Type, error) {
	for ctx := c; ctx != nil; ctx = ctx.parent {
		ctx.mu.RLock()
		t := ctx.types[name]
		ctx.mu.RUnlock()
		if t != nil {
			return t, nil
		}
	}
	return nil, fmt.Errorf("loadctx: %q in context %s: %w", name, c.name, ErrTypeNotFound)
}

// define installs a type directly into this context. Names may repeat
// across sibling contexts but must be unique within one context.
func (c *Context) define(t *Type) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sealed {
		return fmt.Errorf("loadctx: define %q in context %s: %w", t.name, c.name, ErrSealed)
	}
	if _, ok := c.types[t.name]; ok {
		return fmt.Errorf("loadctx: define %q in context %s: %w", t.name, c.name, ErrTypeExists)
	}
	c.types[t.name] = t
	return nil
}

// undefine removes a type from this context. Used to roll back a
// definition whose initializer failed.
func (c *Context) undefine(name string) {
	c.mu.Lock()
	delete(c.types, name)
	c.mu.Unlock()
}
