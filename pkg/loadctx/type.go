package loadctx

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/chazu/loom/pkg/unit"
)

// Canonical parameter-type names used in declared-method signatures.
// Resolution matches these labels textually and exactly; they are the
// compatibility-critical surface between already-generated units and
// the host, so they must never change once units referencing them have
// been emitted.
const (
	ParamType    = "loom.Type"
	ParamContext = "loom.Context"
	ParamRef     = "loom.ContextRef"
	ParamQueue   = "loom.RefQueue"
	ParamInt     = "int"
	ParamString  = "string"
	ParamAny     = "any"
)

// ErrMethodNotFound indicates no declared method matches the requested
// name and parameter-type list.
var ErrMethodNotFound = errors.New("method not found")

// NativeFunc is the implementation of a native method. The receiver is
// nil for static invocations.
type NativeFunc func(receiver any, args []any) (any, error)

// Method is a declared method of a loaded type, resolvable by name and
// exact parameter-type name list.
type Method struct {
	owner  *Type
	name   string
	params []string
	fn     NativeFunc
}

// Name returns the method name.
func (m *Method) Name() string { return m.name }

// ParamTypes returns the parameter-type name list.
func (m *Method) ParamTypes() []string {
	out := make([]string, len(m.params))
	copy(out, m.params)
	return out
}

// String renders the method as owner.name(params).
func (m *Method) String() string {
	return fmt.Sprintf("%s.%s(%s)", m.owner.name, m.name, strings.Join(m.params, ", "))
}

// Invoke calls the method. The receiver is nil for static methods.
// Argument arity must match the declared parameter list; argument
// typing is the implementation's responsibility, mirroring an untyped
// invocation boundary.
func (m *Method) Invoke(receiver any, args []any) (any, error) {
	if len(args) != len(m.params) {
		return nil, fmt.Errorf("loadctx: invoke %s: got %d arguments, want %d", m, len(args), len(m.params))
	}
	return m.fn(receiver, args)
}

// signature builds the method table key for a name and parameter list.
func signature(name string, params []string) string {
	return name + "(" + strings.Join(params, ",") + ")"
}

// Type is a loaded generated unit inside one context: its name, its
// static field slots and its declared methods.
type Type struct {
	name string
	ctx  *Context

	mu      sync.RWMutex
	fields  map[string]any
	methods map[string]*Method

	image    *unit.Image
	initOnce sync.Once
}

// newType builds a Type from a decoded image, binding native methods
// from the given set (may be nil for method-less units).
func newType(ctx *Context, img *unit.Image, natives []NativeMethod) *Type {
	t := &Type{
		name:    img.Name,
		ctx:     ctx,
		fields:  make(map[string]any, len(img.Fields)),
		methods: make(map[string]*Method, len(natives)),
		image:   img,
	}
	for _, f := range img.Fields {
		t.fields[f] = nil
	}
	for _, nm := range natives {
		params := make([]string, len(nm.Params))
		copy(params, nm.Params)
		m := &Method{owner: t, name: nm.Name, params: params, fn: nm.Fn}
		t.methods[signature(nm.Name, params)] = m
	}
	return t
}

// Name returns the unit's fully-qualified name.
func (t *Type) Name() string { return t.name }

// Context returns the context the type was defined into.
func (t *Type) Context() *Context { return t.ctx }

// DeclaredMethod resolves a method by name and exact parameter-type
// name list. Both must match or resolution fails.
func (t *Type) DeclaredMethod(name string, paramTypes []string) (*Method, error) {
	t.mu.RLock()
	m := t.methods[signature(name, paramTypes)]
	t.mu.RUnlock()
	if m == nil {
		return nil, fmt.Errorf("loadctx: %s.%s(%s): %w",
			t.name, name, strings.Join(paramTypes, ", "), ErrMethodNotFound)
	}
	return m, nil
}

// SetField installs a value into a static field slot. Unknown slots
// are an error so initializers fail loudly on drifted field names.
func (t *Type) SetField(name string, value any) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.fields[name]; !ok {
		return fmt.Errorf("loadctx: type %s has no field %q", t.name, name)
	}
	t.fields[name] = value
	return nil
}

// Field reads a static field slot. The second return reports whether
// the slot exists.
func (t *Type) Field(name string) (any, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	v, ok := t.fields[name]
	return v, ok
}

// FieldNames returns the declared static field slots.
func (t *Type) FieldNames() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]string, 0, len(t.fields))
	for name := range t.fields {
		out = append(out, name)
	}
	return out
}
