// Package nexus implements the cross-context initializer registry: a
// store installed into a root load context so that it is reachable
// from every context below it, an accessor for the generating side to
// register initializers, and the fixed constant-only lookup sequence
// the generated unit's initializer performs to retrieve and run its
// registration.
//
// The store keys entries by (unit name, load context, token) and holds
// the context weakly; a pending entry never keeps a context alive.
package nexus

import (
	"errors"
	"fmt"
	"runtime"
	"sync"

	"github.com/chazu/loom/pkg/loadctx"
	"github.com/chazu/loom/pkg/unit"
)

// TypeName is the fixed textual identity the store is installed under
// in a root context. Generated units resolve the store by this name;
// it must never change once units referencing it have been emitted.
const TypeName = "loom.runtime.Nexus"

// InitializeMethod is the name of the store's consume method, the one
// generated units resolve and invoke.
const InitializeMethod = "initialize"

const (
	registerMethod = "register"
	cleanMethod    = "clean"
	nativeKey      = "loom.runtime/nexus"
)

// Declared signatures of the store's methods. initializeParams is the
// single most compatibility-sensitive surface in the toolkit: emitted
// units resolve initialize by this exact list.
var (
	registerParams   = []string{loadctx.ParamString, loadctx.ParamContext, loadctx.ParamQueue, loadctx.ParamInt, loadctx.ParamAny}
	cleanParams      = []string{loadctx.ParamRef}
	initializeParams = []string{loadctx.ParamType, loadctx.ParamInt}
)

func init() {
	loadctx.RegisterNative(nativeKey, newStoreMethods)
}

// key identifies one pending initialization. The context is held as a
// weak reference so the registry is never the reason a context
// outlives its natural lifetime.
type key struct {
	name    string
	context loadctx.Ref
	token   int
}

// store is the registry table behind one installed Nexus type. Every
// injection gets a fresh store, so isolated roots carry isolated
// registries.
type store struct {
	mu      sync.Mutex
	entries map[key]Initializer
}

// newStoreMethods builds the native method set for one injected copy
// of the store type.
func newStoreMethods() []loadctx.NativeMethod {
	s := &store{entries: make(map[key]Initializer)}
	return []loadctx.NativeMethod{
		{Name: registerMethod, Params: registerParams, Fn: s.registerNative},
		{Name: cleanMethod, Params: cleanParams, Fn: s.cleanNative},
		{Name: InitializeMethod, Params: initializeParams, Fn: s.initializeNative},
	}
}

// register inserts or overwrites the entry for (name, ctx, token).
// Duplicate registration before consumption is last write wins. When a
// queue is supplied, collection of the context enqueues its reference
// for explicit cleaning.
func (s *store) register(name string, ctx *loadctx.Context, queue chan<- loadctx.Ref, token int, ini Initializer) error {
	if ctx == nil {
		return errors.New("nexus: register requires a load context")
	}
	if ini == nil {
		return errors.New("nexus: register requires an initializer")
	}
	ref := ctx.WeakRef()
	s.mu.Lock()
	s.entries[key{name: name, context: ref, token: token}] = ini
	s.mu.Unlock()
	if queue != nil {
		runtime.AddCleanup(ctx, func(r loadctx.Ref) {
			// Never block a cleanup goroutine: an unread queue drops
			// the notification and the entry stays until an explicit
			// clean.
			select {
			case queue <- r:
			default:
			}
		}, ref)
	}
	return nil
}

// consume atomically retrieves and removes the entry for the key,
// reporting absence without error.
func (s *store) consume(name string, ref loadctx.Ref, token int) (Initializer, bool) {
	k := key{name: name, context: ref, token: token}
	s.mu.Lock()
	defer s.mu.Unlock()
	ini, ok := s.entries[k]
	if ok {
		delete(s.entries, k)
	}
	return ini, ok
}

// clean removes all entries whose context reference equals ref.
func (s *store) clean(ref loadctx.Ref) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for k := range s.entries {
		if k.context == ref {
			delete(s.entries, k)
			removed++
		}
	}
	return removed
}

// size reports the number of pending entries.
func (s *store) size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// --- native method bindings -----------------------------------------------

func (s *store) registerNative(_ any, args []any) (any, error) {
	name, ok := args[0].(string)
	if !ok {
		return nil, fmt.Errorf("nexus: register: argument 0 is %T, want string", args[0])
	}
	ctx, ok := args[1].(*loadctx.Context)
	if !ok {
		return nil, fmt.Errorf("nexus: register: argument 1 is %T, want *loadctx.Context", args[1])
	}
	var queue chan<- loadctx.Ref
	if args[2] != nil {
		queue, ok = args[2].(chan<- loadctx.Ref)
		if !ok {
			return nil, fmt.Errorf("nexus: register: argument 2 is %T, want chan<- loadctx.Ref", args[2])
		}
	}
	token, ok := args[3].(int)
	if !ok {
		return nil, fmt.Errorf("nexus: register: argument 3 is %T, want int", args[3])
	}
	ini, ok := args[4].(Initializer)
	if !ok {
		return nil, fmt.Errorf("nexus: register: argument 4 is %T, want Initializer", args[4])
	}
	return nil, s.register(name, ctx, queue, token, ini)
}

func (s *store) cleanNative(_ any, args []any) (any, error) {
	ref, ok := args[0].(loadctx.Ref)
	if !ok {
		return nil, fmt.Errorf("nexus: clean: argument 0 is %T, want loadctx.Ref", args[0])
	}
	return s.clean(ref), nil
}

// initializeNative is the consume entry point invoked reflectively by
// generated units. Absence is not an error: a correctly consumed entry
// and one that was never registered both land here, and both are a
// no-op.
func (s *store) initializeNative(_ any, args []any) (any, error) {
	t, ok := args[0].(*loadctx.Type)
	if !ok {
		return nil, fmt.Errorf("nexus: initialize: argument 0 is %T, want *loadctx.Type", args[0])
	}
	token, ok := args[1].(int)
	if !ok {
		return nil, fmt.Errorf("nexus: initialize: argument 1 is %T, want int", args[1])
	}
	ini, found := s.consume(t.Name(), t.Context().WeakRef(), token)
	if !found {
		return nil, nil
	}
	// Run outside the table lock: an initializer may take arbitrary
	// time, and concurrent registration must not wait on it.
	return nil, ini.OnLoad(t)
}

// imageBytes marshals the store's own injectable unit image: a unit
// whose methods are bound from the native registry at injection time.
func imageBytes() ([]byte, error) {
	img := unit.NewImage(TypeName)
	img.Native = nativeKey
	return img.Marshal()
}
