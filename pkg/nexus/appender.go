package nexus

import (
	"github.com/chazu/loom/pkg/loadctx"
	"github.com/chazu/loom/pkg/unit"
)

// InitializationAppender emits the fixed lookup sequence a generated
// unit performs to retrieve and run its registered initializer. The
// sequence uses only constant operands, so it can be assembled before
// any live object for the target context exists:
//
//	get root context
//	load the store type by its fixed name
//	resolve "initialize" by name and exact parameter-type list
//	invoke it statically with (own type, token)
//	discard the result
type InitializationAppender struct {
	identification int
}

// NewInitializationAppender creates an appender for the given
// identification token.
func NewInitializationAppender(identification int) InitializationAppender {
	return InitializationAppender{identification: identification}
}

// Identification returns the token the emitted sequence will pass.
func (a InitializationAppender) Identification() int {
	return a.identification
}

// AppendTo appends the lookup sequence to the image's initializer
// code, interning the needed names in the image's string pool.
func (a InitializationAppender) AppendTo(img *unit.Image) {
	storeName := img.AddConstant(TypeName)
	methodName := img.AddConstant(InitializeMethod)
	typeParam := img.AddConstant(loadctx.ParamType)
	intParam := img.AddConstant(loadctx.ParamInt)

	img.AppendInit(
		unit.Instr{Op: unit.OpGetRootContext},
		unit.Instr{Op: unit.OpPushString, Arg: int32(storeName)},
		unit.Instr{Op: unit.OpLoadType},
		unit.Instr{Op: unit.OpPushString, Arg: int32(methodName)},
		unit.Instr{Op: unit.OpPushTypeNames, Refs: []uint16{typeParam, intParam}},
		unit.Instr{Op: unit.OpResolveMethod},
		unit.Instr{Op: unit.OpPushNull},
		unit.Instr{Op: unit.OpPushSelfType},
		unit.Instr{Op: unit.OpPushInt, Arg: int32(a.identification)},
		unit.Instr{Op: unit.OpMakeArgs, Arg: 2},
		unit.Instr{Op: unit.OpInvoke},
		unit.Instr{Op: unit.OpPop},
	)
}
