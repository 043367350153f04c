package nexus

import (
	"fmt"
	"sync"

	"github.com/chazu/loom/pkg/loadctx"
)

// Dispatcher is the capability for talking to the store installed in
// one root context. It comes in exactly two flavors, decided once when
// the root is first bootstrapped: operational, delegating reflectively
// to the installed store, or degraded, replaying the bootstrap failure
// on every call.
type Dispatcher interface {
	// IsAlive reports whether the store is reachable and operational.
	IsAlive() bool

	// Register registers an initializer with the store.
	Register(name string, ctx *loadctx.Context, queue chan<- loadctx.Ref, token int, ini Initializer) error

	// Clean removes all store entries held for a collected context
	// reference.
	Clean(ref loadctx.Ref) error
}

// Dispatchers are process-lifetime state: one per root context,
// resolved lazily and never torn down.
var (
	dispatchersMu sync.Mutex
	dispatchers   = make(map[*loadctx.Context]Dispatcher)
)

// DispatcherFor returns the dispatcher for the given root context,
// bootstrapping the store on first use. Repeated calls for the same
// root observe the same dispatcher instance.
func DispatcherFor(root *loadctx.Context) Dispatcher {
	dispatchersMu.Lock()
	defer dispatchersMu.Unlock()
	if d, ok := dispatchers[root]; ok {
		return d
	}
	d := bootstrap(root)
	dispatchers[root] = d
	return d
}

// IsAlive reports whether the process root context's registry is
// operational.
func IsAlive() bool {
	return DispatcherFor(loadctx.Root()).IsAlive()
}

// bootstrap locates or installs the store in the root context and
// resolves its operative entry points. It tries injection first and
// falls back to an already-present installation; if both fail, or the
// present installation does not expose the expected signatures, the
// result is a degraded dispatcher carrying the cause.
func bootstrap(root *loadctx.Context) Dispatcher {
	data, err := imageBytes()
	if err != nil {
		return unavailable{cause: err}
	}
	t, injectErr := root.InjectBytes(TypeName, data)
	if injectErr != nil {
		loaded, loadErr := root.Load(TypeName)
		if loadErr != nil {
			return unavailable{cause: injectErr}
		}
		t = loaded
	}
	register, err := t.DeclaredMethod(registerMethod, registerParams)
	if err != nil {
		return unavailable{cause: err}
	}
	clean, err := t.DeclaredMethod(cleanMethod, cleanParams)
	if err != nil {
		return unavailable{cause: err}
	}
	return available{register: register, clean: clean}
}

// available delegates to the resolved store entry points. Invocation
// failures indicate a structural incompatibility and are returned as
// local failures, never retried.
type available struct {
	register *loadctx.Method
	clean    *loadctx.Method
}

func (available) IsAlive() bool { return true }

func (d available) Register(name string, ctx *loadctx.Context, queue chan<- loadctx.Ref, token int, ini Initializer) error {
	if _, err := d.register.Invoke(nil, []any{name, ctx, queue, token, ini}); err != nil {
		return fmt.Errorf("nexus: cannot invoke %s: %w", d.register, err)
	}
	return nil
}

func (d available) Clean(ref loadctx.Ref) error {
	if _, err := d.clean.Invoke(nil, []any{ref}); err != nil {
		return fmt.Errorf("nexus: cannot invoke %s: %w", d.clean, err)
	}
	return nil
}

// unavailable reports the original bootstrap failure on every call so
// operators can tell why the facility is missing, not just that it is.
type unavailable struct {
	cause error
}

func (unavailable) IsAlive() bool { return false }

func (d unavailable) Register(string, *loadctx.Context, chan<- loadctx.Ref, int, Initializer) error {
	return fmt.Errorf("nexus: registry is not available: %w", d.cause)
}

func (d unavailable) Clean(loadctx.Ref) error {
	return fmt.Errorf("nexus: registry is not available: %w", d.cause)
}
