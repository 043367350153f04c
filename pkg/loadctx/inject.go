package loadctx

import (
	"fmt"

	"github.com/chazu/loom/pkg/unit"
)

// InjectBytes is the raw injection primitive: it decodes a marshaled
// unit image, installs the resulting type into this context and runs
// the image's initializer sequence exactly once. The declared typeName
// must match the image's own name, so callers cannot smuggle a unit in
// under a different identity.
//
// If the initializer sequence fails, the definition is rolled back and
// the error is returned; the context is left as if the injection never
// happened.
func (c *Context) InjectBytes(typeName string, data []byte) (*Type, error) {
	img, err := unit.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("loadctx: inject %q: %w", typeName, err)
	}
	if img.Name != typeName {
		return nil, fmt.Errorf("loadctx: inject %q: image declares name %q", typeName, img.Name)
	}

	var nativeSet []NativeMethod
	if img.Native != "" {
		factory, ok := nativeFor(img.Native)
		if !ok {
			return nil, fmt.Errorf("loadctx: inject %q: unknown native binding %q", typeName, img.Native)
		}
		nativeSet = factory()
	}

	t := newType(c, img, nativeSet)
	if err := c.define(t); err != nil {
		return nil, err
	}

	var initErr error
	t.initOnce.Do(func() {
		initErr = runInit(t)
	})
	if initErr != nil {
		c.undefine(t.name)
		return nil, fmt.Errorf("loadctx: initialize %q: %w", typeName, initErr)
	}
	return t, nil
}
