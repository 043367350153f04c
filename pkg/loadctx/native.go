package loadctx

import (
	"fmt"
	"sync"
)

// NativeMethod declares one native method to bind onto an injected
// type: its name, its parameter-type name list and its implementation.
type NativeMethod struct {
	Name   string
	Params []string
	Fn     NativeFunc
}

// NativeFactory produces a fresh native method set for one injection.
// Returning a fresh set per call means every injected copy of a native
// type carries its own state, so isolated roots get isolated
// installations.
type NativeFactory func() []NativeMethod

var (
	nativesMu sync.RWMutex
	natives   = make(map[string]NativeFactory)
)

// RegisterNative makes a native method set available for binding under
// the given key. Host packages call this from init; registering the
// same key twice panics, matching driver-registry convention.
func RegisterNative(key string, factory NativeFactory) {
	nativesMu.Lock()
	defer nativesMu.Unlock()
	if factory == nil {
		panic("loadctx: RegisterNative with nil factory")
	}
	if _, dup := natives[key]; dup {
		panic(fmt.Sprintf("loadctx: RegisterNative called twice for key %q", key))
	}
	natives[key] = factory
}

// nativeFor looks up a registered native factory.
func nativeFor(key string) (NativeFactory, bool) {
	nativesMu.RLock()
	defer nativesMu.RUnlock()
	f, ok := natives[key]
	return f, ok
}
