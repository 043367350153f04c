// Package gen is the generator-facing surface of the toolkit: it
// assembles unit images, registers their initializers through the
// nexus accessor and injects the marshaled bytes into a target load
// context.
package gen

import (
	"fmt"
	"sync/atomic"

	"github.com/chazu/loom/pkg/loadctx"
	"github.com/chazu/loom/pkg/nexus"
	"github.com/chazu/loom/pkg/unit"
)

// tokens disambiguates same-named units registered concurrently for
// different contexts. Process-wide so no two in-flight definitions
// ever share a token.
var tokens atomic.Int64

func nextToken() int {
	return int(tokens.Add(1))
}

// Builder assembles one generated unit.
type Builder struct {
	name        string
	fields      []string
	initializer nexus.Initializer
	accessor    *nexus.Accessor
}

// NewBuilder starts a builder for a unit with the given fully-qualified
// name.
func NewBuilder(name string) *Builder {
	return &Builder{name: name}
}

// WithField declares a static field slot on the unit.
func (b *Builder) WithField(name string) *Builder {
	b.fields = append(b.fields, name)
	return b
}

// WithInitializer attaches the initializer to run once after the unit
// loads. A dead initializer is accepted and simply never registered.
func (b *Builder) WithInitializer(ini nexus.Initializer) *Builder {
	b.initializer = ini
	return b
}

// WithAccessor overrides the accessor used for registration. By
// default Define builds one against the target context's root, which
// is also the root the emitted lookup sequence resolves the store
// from.
func (b *Builder) WithAccessor(a *nexus.Accessor) *Builder {
	b.accessor = a
	return b
}

// Image assembles the unit image without defining it, appending the
// lookup sequence for the given token when the initializer is alive.
func (b *Builder) Image(token int) *unit.Image {
	img := unit.NewImage(b.name)
	for _, f := range b.fields {
		img.AddField(f)
	}
	if b.initializer != nil && b.initializer.IsAlive() {
		nexus.NewInitializationAppender(token).AppendTo(img)
	}
	return img
}

// Define registers the unit's initializer, injects the unit into ctx
// and returns the loaded type with initialization already run. If
// injection fails after a successful registration, the entry stays
// pending until it is cleaned or its context is collected, the same
// exposure as a unit that loads but never initializes.
func (b *Builder) Define(ctx *loadctx.Context) (*loadctx.Type, error) {
	if ctx == nil {
		return nil, fmt.Errorf("gen: define %q: target context required", b.name)
	}
	accessor := b.accessor
	if accessor == nil {
		accessor = nexus.NewAccessor(ctx.RootContext())
	}

	token := nextToken()
	img := b.Image(token)

	if b.initializer != nil && b.initializer.IsAlive() {
		if err := accessor.Register(b.name, ctx, token, b.initializer); err != nil {
			return nil, fmt.Errorf("gen: define %q: %w", b.name, err)
		}
	}

	data, err := img.Marshal()
	if err != nil {
		return nil, fmt.Errorf("gen: define %q: %w", b.name, err)
	}
	t, err := ctx.InjectBytes(b.name, data)
	if err != nil {
		return nil, fmt.Errorf("gen: define %q: %w", b.name, err)
	}
	return t, nil
}
