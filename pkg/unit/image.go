package unit

import "fmt"

// ImageVersion is the current unit image format version.
// Increment when making incompatible changes to the format.
const ImageVersion uint16 = 1

// Magic bytes for unit images: "LMUI" (Loom Unit Image)
var ImageMagic = []byte{'L', 'M', 'U', 'I'}

// Op identifies a single initializer instruction. The initializer
// instruction set is deliberately tiny: every operand is a primitive
// constant or a reference into the image's string pool, so a unit's
// initialization sequence can be assembled before any live object for
// the target context exists.
type Op uint8

const (
	// OpGetRootContext pushes the root ancestor of the executing
	// unit's load context.
	OpGetRootContext Op = 0x01

	// OpPushString pushes the string pool entry at index Arg.
	OpPushString Op = 0x02

	// OpPushInt pushes the literal integer Arg.
	OpPushInt Op = 0x03

	// OpPushNull pushes an untyped nil (used as the receiver for
	// static method invocations).
	OpPushNull Op = 0x04

	// OpPushSelfType pushes the type currently being initialized.
	OpPushSelfType Op = 0x05

	// OpPushTypeNames pushes the list of pool entries referenced by
	// Refs as a parameter-type name list.
	OpPushTypeNames Op = 0x06

	// OpLoadType pops a type name and a context and pushes the type
	// resolved by name from that context.
	OpLoadType Op = 0x07

	// OpResolveMethod pops a parameter-type name list, a method name
	// and a type, and pushes the declared method matching both the
	// name and the exact parameter-type list.
	OpResolveMethod Op = 0x08

	// OpMakeArgs pops Arg values and pushes them as a single argument
	// list, preserving push order.
	OpMakeArgs Op = 0x09

	// OpInvoke pops an argument list, a receiver and a method, invokes
	// the method and pushes its result.
	OpInvoke Op = 0x0A

	// OpPop discards the top of the stack.
	OpPop Op = 0x0B
)

// String returns a human-readable name for an Op.
func (op Op) String() string {
	switch op {
	case OpGetRootContext:
		return "GetRootContext"
	case OpPushString:
		return "PushString"
	case OpPushInt:
		return "PushInt"
	case OpPushNull:
		return "PushNull"
	case OpPushSelfType:
		return "PushSelfType"
	case OpPushTypeNames:
		return "PushTypeNames"
	case OpLoadType:
		return "LoadType"
	case OpResolveMethod:
		return "ResolveMethod"
	case OpMakeArgs:
		return "MakeArgs"
	case OpInvoke:
		return "Invoke"
	case OpPop:
		return "Pop"
	default:
		return fmt.Sprintf("Op(0x%02X)", uint8(op))
	}
}

// Instr is a single initializer instruction. Arg holds a string pool
// index (OpPushString), an integer literal (OpPushInt) or an arity
// (OpMakeArgs). Refs holds string pool indices (OpPushTypeNames).
type Instr struct {
	Op   Op       `cbor:"1,keyasint"`
	Arg  int32    `cbor:"2,keyasint,omitempty"`
	Refs []uint16 `cbor:"3,keyasint,omitempty"`
}

// Image describes one generated unit: its identity, static field
// slots, string pool and initializer sequence. An Image is the unit of
// injection; its marshaled form is what the injection primitive
// accepts.
type Image struct {
	Version uint16 `cbor:"1,keyasint"`

	// Name is the fully-qualified identity of the unit, chosen by the
	// generator and stable across contexts.
	Name string `cbor:"2,keyasint"`

	// Fields lists static slot names settable after load.
	Fields []string `cbor:"3,keyasint,omitempty"`

	// Constants is the string pool referenced by initializer
	// instructions.
	Constants []string `cbor:"4,keyasint,omitempty"`

	// Native optionally names a host-registered native method set to
	// bind at injection time. Empty for ordinary generated units.
	Native string `cbor:"5,keyasint,omitempty"`

	// Init is the unit's initializer instruction sequence, run exactly
	// once when the unit is injected into a context.
	Init []Instr `cbor:"6,keyasint,omitempty"`
}

// NewImage creates an empty image for a unit with the given name.
func NewImage(name string) *Image {
	return &Image{
		Version:   ImageVersion,
		Name:      name,
		Constants: make([]string, 0, 8),
	}
}

// AddConstant adds a string constant to the pool and returns its index.
// If the constant already exists, returns the existing index.
func (img *Image) AddConstant(value string) uint16 {
	for i, s := range img.Constants {
		if s == value {
			return uint16(i)
		}
	}
	img.Constants = append(img.Constants, value)
	return uint16(len(img.Constants) - 1)
}

// Constant returns the pool entry at the given index, or "" if out of
// range.
func (img *Image) Constant(index uint16) string {
	if int(index) >= len(img.Constants) {
		return ""
	}
	return img.Constants[index]
}

// AddField declares a static field slot. Duplicate declarations are
// collapsed.
func (img *Image) AddField(name string) {
	for _, f := range img.Fields {
		if f == name {
			return
		}
	}
	img.Fields = append(img.Fields, name)
}

// AppendInit appends instructions to the initializer sequence.
func (img *Image) AppendInit(instrs ...Instr) {
	img.Init = append(img.Init, instrs...)
}

// Validate checks structural well-formedness: a known version, a
// non-empty name, known opcodes and in-range pool references. It does
// not simulate stack effects; those are checked at execution time.
func (img *Image) Validate() error {
	if img.Version == 0 || img.Version > ImageVersion {
		return fmt.Errorf("unit: unsupported image version %d", img.Version)
	}
	if img.Name == "" {
		return fmt.Errorf("unit: image has no name")
	}
	pool := len(img.Constants)
	for i, in := range img.Init {
		switch in.Op {
		case OpGetRootContext, OpPushNull, OpPushSelfType,
			OpLoadType, OpResolveMethod, OpInvoke, OpPop:
			// no operand
		case OpPushString:
			if int(in.Arg) < 0 || int(in.Arg) >= pool {
				return fmt.Errorf("unit: init[%d]: string pool index %d out of range", i, in.Arg)
			}
		case OpPushInt:
			// any literal is valid
		case OpPushTypeNames:
			for _, r := range in.Refs {
				if int(r) >= pool {
					return fmt.Errorf("unit: init[%d]: string pool index %d out of range", i, r)
				}
			}
		case OpMakeArgs:
			if in.Arg < 0 {
				return fmt.Errorf("unit: init[%d]: negative arity %d", i, in.Arg)
			}
		default:
			return fmt.Errorf("unit: init[%d]: unknown opcode %s", i, in.Op)
		}
	}
	return nil
}
