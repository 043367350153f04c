package nexus

import (
	"fmt"

	"github.com/chazu/loom/pkg/loadctx"
)

// Initializer is caller-supplied logic to run once for a generated
// unit after it loads. Initializers carry the live values (captured
// closures, constant pools, rich field contents) that cannot be
// embedded into a unit image, and install them onto the loaded type.
type Initializer interface {
	// IsAlive reports whether the initializer has observable work to
	// do. Dead initializers are never registered.
	IsAlive() bool

	// OnLoad runs the initialization against the loaded type.
	OnLoad(t *loadctx.Type) error
}

// NoOp is an initializer without observable work. It is never
// registered; it exists so generators can always hand the accessor an
// initializer and let liveness decide.
type NoOp struct{}

// IsAlive always reports false.
func (NoOp) IsAlive() bool { return false }

// OnLoad does nothing.
func (NoOp) OnLoad(*loadctx.Type) error { return nil }

// ForField installs a live value into a static field slot of the
// loaded type.
type ForField struct {
	Field string
	Value any
}

// IsAlive always reports true.
func (ForField) IsAlive() bool { return true }

// OnLoad sets the field.
func (f ForField) OnLoad(t *loadctx.Type) error {
	if err := t.SetField(f.Field, f.Value); err != nil {
		return fmt.Errorf("nexus: initializer for %s: %w", t.Name(), err)
	}
	return nil
}

// Compound chains several initializers into one. It is alive if any
// member is alive; OnLoad runs the live members in order and stops at
// the first failure.
type Compound []Initializer

// IsAlive reports whether any member initializer is alive.
func (c Compound) IsAlive() bool {
	for _, ini := range c {
		if ini.IsAlive() {
			return true
		}
	}
	return false
}

// OnLoad runs each live member in order.
func (c Compound) OnLoad(t *loadctx.Type) error {
	for _, ini := range c {
		if !ini.IsAlive() {
			continue
		}
		if err := ini.OnLoad(t); err != nil {
			return err
		}
	}
	return nil
}
