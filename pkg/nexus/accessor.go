package nexus

import (
	"github.com/chazu/loom/pkg/loadctx"
)

// Accessor is the entry point the code-generation engine uses to
// register initializers for units about to be defined and to release
// stale entries. It binds a root context (where the store lives) and
// an optional notification channel onto which collected context
// references are enqueued.
type Accessor struct {
	root  *loadctx.Context
	queue chan<- loadctx.Ref
}

// NewAccessor creates an accessor against the given root context
// without stale-reference management. A nil root selects the process
// root.
func NewAccessor(root *loadctx.Context) *Accessor {
	return NewAccessorWithQueue(root, nil)
}

// NewAccessorWithQueue creates an accessor whose registrations arm a
// collection notification: when a registered context becomes
// unreachable, its reference is enqueued (non-blocking) onto queue and
// can be passed to Clean. Entries become stale when a context is
// collected after its unit was defined but before it was initialized.
func NewAccessorWithQueue(root *loadctx.Context, queue chan<- loadctx.Ref) *Accessor {
	if root == nil {
		root = loadctx.Root()
	}
	return &Accessor{root: root, queue: queue}
}

// IsAlive reports whether this accessor is capable of registering
// initializers.
func (a *Accessor) IsAlive() bool {
	return DispatcherFor(a.root).IsAlive()
}

// Register registers an initializer for the unit about to be defined
// into ctx under the given identification token. A dead initializer
// (one with no observable work) is not registered; trivial entries are
// filtered here rather than burdening the store.
func (a *Accessor) Register(name string, ctx *loadctx.Context, identification int, ini Initializer) error {
	if ini == nil || !ini.IsAlive() {
		return nil
	}
	return DispatcherFor(a.root).Register(name, ctx, a.queue, identification, ini)
}

// Clean removes all pending entries held for a collected context
// reference. References arrive on the queue supplied at construction.
func (a *Accessor) Clean(ref loadctx.Ref) error {
	return DispatcherFor(a.root).Clean(ref)
}

// Equal reports whether two accessors share the same notification
// channel (or both have none). Dispatch state does not participate:
// it is process-wide and identical for accessors on the same root.
func (a *Accessor) Equal(other *Accessor) bool {
	if other == nil {
		return false
	}
	return a.root == other.root && a.queue == other.queue
}
