package loadctx

import (
	"fmt"

	"github.com/chazu/loom/pkg/unit"
)

// maxInitStack bounds the operand stack of an initializer sequence.
// The protocol sequences this interpreter exists for are a handful of
// instructions deep; anything larger is malformed.
const maxInitStack = 16

// initState is the operand stack for one initializer run.
type initState struct {
	t     *Type
	stack []any
}

func (s *initState) push(i int, v any) error {
	if len(s.stack) >= maxInitStack {
		return fmt.Errorf("init[%d]: stack overflow", i)
	}
	s.stack = append(s.stack, v)
	return nil
}

func (s *initState) pop(i int) (any, error) {
	if len(s.stack) == 0 {
		return nil, fmt.Errorf("init[%d]: stack underflow", i)
	}
	v := s.stack[len(s.stack)-1]
	s.stack = s.stack[:len(s.stack)-1]
	return v, nil
}

// runInit executes a type's initializer sequence. The instruction set
// is constant-only: the sole live values an initializer can reach are
// the executing type itself, its root context, and whatever it resolves
// from that root by name.
func runInit(t *Type) error {
	img := t.image
	if img == nil || len(img.Init) == 0 {
		return nil
	}
	s := &initState{t: t, stack: make([]any, 0, maxInitStack)}
	for i, in := range img.Init {
		if err := step(s, i, in); err != nil {
			return err
		}
	}
	if len(s.stack) != 0 {
		return fmt.Errorf("init: %d values left on stack", len(s.stack))
	}
	return nil
}

func step(s *initState, i int, in unit.Instr) error {
	img := s.t.image
	switch in.Op {
	case unit.OpGetRootContext:
		return s.push(i, s.t.ctx.RootContext())

	case unit.OpPushString:
		return s.push(i, img.Constant(uint16(in.Arg)))

	case unit.OpPushInt:
		return s.push(i, int(in.Arg))

	case unit.OpPushNull:
		return s.push(i, nil)

	case unit.OpPushSelfType:
		return s.push(i, s.t)

	case unit.OpPushTypeNames:
		names := make([]string, len(in.Refs))
		for j, r := range in.Refs {
			names[j] = img.Constant(r)
		}
		return s.push(i, names)

	case unit.OpLoadType:
		nameV, err := s.pop(i)
		if err != nil {
			return err
		}
		ctxV, err := s.pop(i)
		if err != nil {
			return err
		}
		name, ok := nameV.(string)
		if !ok {
			return fmt.Errorf("init[%d]: LoadType: expected type name on stack, got %T", i, nameV)
		}
		ctx, ok := ctxV.(*Context)
		if !ok {
			return fmt.Errorf("init[%d]: LoadType: expected context on stack, got %T", i, ctxV)
		}
		loaded, err := ctx.Load(name)
		if err != nil {
			return fmt.Errorf("init[%d]: %w", i, err)
		}
		return s.push(i, loaded)

	case unit.OpResolveMethod:
		paramsV, err := s.pop(i)
		if err != nil {
			return err
		}
		nameV, err := s.pop(i)
		if err != nil {
			return err
		}
		typeV, err := s.pop(i)
		if err != nil {
			return err
		}
		params, ok := paramsV.([]string)
		if !ok {
			return fmt.Errorf("init[%d]: ResolveMethod: expected parameter-type list on stack, got %T", i, paramsV)
		}
		name, ok := nameV.(string)
		if !ok {
			return fmt.Errorf("init[%d]: ResolveMethod: expected method name on stack, got %T", i, nameV)
		}
		target, ok := typeV.(*Type)
		if !ok {
			return fmt.Errorf("init[%d]: ResolveMethod: expected type on stack, got %T", i, typeV)
		}
		m, err := target.DeclaredMethod(name, params)
		if err != nil {
			return fmt.Errorf("init[%d]: %w", i, err)
		}
		return s.push(i, m)

	case unit.OpMakeArgs:
		n := int(in.Arg)
		if n > len(s.stack) {
			return fmt.Errorf("init[%d]: MakeArgs: arity %d exceeds stack depth %d", i, n, len(s.stack))
		}
		args := make([]any, n)
		copy(args, s.stack[len(s.stack)-n:])
		s.stack = s.stack[:len(s.stack)-n]
		return s.push(i, args)

	case unit.OpInvoke:
		argsV, err := s.pop(i)
		if err != nil {
			return err
		}
		receiver, err := s.pop(i)
		if err != nil {
			return err
		}
		methodV, err := s.pop(i)
		if err != nil {
			return err
		}
		args, ok := argsV.([]any)
		if !ok {
			return fmt.Errorf("init[%d]: Invoke: expected argument list on stack, got %T", i, argsV)
		}
		m, ok := methodV.(*Method)
		if !ok {
			return fmt.Errorf("init[%d]: Invoke: expected method on stack, got %T", i, methodV)
		}
		result, err := m.Invoke(receiver, args)
		if err != nil {
			return fmt.Errorf("init[%d]: %w", i, err)
		}
		return s.push(i, result)

	case unit.OpPop:
		_, err := s.pop(i)
		return err

	default:
		return fmt.Errorf("init[%d]: unknown opcode %s", i, in.Op)
	}
}
