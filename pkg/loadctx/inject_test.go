package loadctx

import (
	"errors"
	"strings"
	"testing"

	"github.com/chazu/loom/pkg/unit"
)

func init() {
	RegisterNative("loadctx.test/echo", func() []NativeMethod {
		return []NativeMethod{
			{
				Name:   "echo",
				Params: []string{ParamString},
				Fn: func(_ any, args []any) (any, error) {
					return args[0], nil
				},
			},
			{
				Name:   "fail",
				Params: nil,
				Fn: func(any, []any) (any, error) {
					return nil, errors.New("native failure")
				},
			},
		}
	})
}

func TestInjectBindsNativeMethods(t *testing.T) {
	ctx := New(nil, "root")
	img := unit.NewImage("com.example.Echo")
	img.Native = "loadctx.test/echo"

	typ, err := ctx.InjectBytes("com.example.Echo", mustMarshal(t, img))
	if err != nil {
		t.Fatalf("InjectBytes() error: %v", err)
	}

	m, err := typ.DeclaredMethod("echo", []string{ParamString})
	if err != nil {
		t.Fatalf("DeclaredMethod() error: %v", err)
	}
	got, err := m.Invoke(nil, []any{"ping"})
	if err != nil {
		t.Fatalf("Invoke() error: %v", err)
	}
	if got != "ping" {
		t.Errorf("Invoke() = %v, want %q", got, "ping")
	}
}

func TestDeclaredMethodRequiresExactSignature(t *testing.T) {
	ctx := New(nil, "root")
	img := unit.NewImage("com.example.Echo")
	img.Native = "loadctx.test/echo"

	typ, err := ctx.InjectBytes("com.example.Echo", mustMarshal(t, img))
	if err != nil {
		t.Fatalf("InjectBytes() error: %v", err)
	}

	if _, err := typ.DeclaredMethod("echo", []string{ParamInt}); !errors.Is(err, ErrMethodNotFound) {
		t.Errorf("wrong parameter list = %v, want ErrMethodNotFound", err)
	}
	if _, err := typ.DeclaredMethod("missing", nil); !errors.Is(err, ErrMethodNotFound) {
		t.Errorf("wrong name = %v, want ErrMethodNotFound", err)
	}
}

func TestInvokeChecksArity(t *testing.T) {
	ctx := New(nil, "root")
	img := unit.NewImage("com.example.Echo")
	img.Native = "loadctx.test/echo"

	typ, err := ctx.InjectBytes("com.example.Echo", mustMarshal(t, img))
	if err != nil {
		t.Fatalf("InjectBytes() error: %v", err)
	}
	m, err := typ.DeclaredMethod("echo", []string{ParamString})
	if err != nil {
		t.Fatalf("DeclaredMethod() error: %v", err)
	}
	if _, err := m.Invoke(nil, nil); err == nil {
		t.Error("Invoke() accepted wrong arity")
	}
}

func TestInjectRejectsNameMismatch(t *testing.T) {
	ctx := New(nil, "root")
	data := mustMarshal(t, unit.NewImage("com.example.Actual"))

	if _, err := ctx.InjectBytes("com.example.Declared", data); err == nil {
		t.Error("InjectBytes() accepted a name mismatch")
	}
}

func TestInjectRejectsUnknownNativeBinding(t *testing.T) {
	ctx := New(nil, "root")
	img := unit.NewImage("com.example.Gen")
	img.Native = "loadctx.test/unregistered"

	if _, err := ctx.InjectBytes("com.example.Gen", mustMarshal(t, img)); err == nil ||
		!strings.Contains(err.Error(), "unknown native binding") {
		t.Errorf("InjectBytes() = %v, want unknown native binding error", err)
	}
}

func TestInitFailureRollsBackDefinition(t *testing.T) {
	ctx := New(nil, "root")

	img := unit.NewImage("com.example.Broken")
	img.Native = "loadctx.test/echo"
	failName := img.AddConstant("fail")
	selfName := img.AddConstant("com.example.Broken")
	// Resolve and call the failing native on self at initialization.
	img.AppendInit(
		unit.Instr{Op: unit.OpGetRootContext},
		unit.Instr{Op: unit.OpPushString, Arg: int32(selfName)},
		unit.Instr{Op: unit.OpLoadType},
		unit.Instr{Op: unit.OpPushString, Arg: int32(failName)},
		unit.Instr{Op: unit.OpPushTypeNames},
		unit.Instr{Op: unit.OpResolveMethod},
		unit.Instr{Op: unit.OpPushNull},
		unit.Instr{Op: unit.OpMakeArgs},
		unit.Instr{Op: unit.OpInvoke},
		unit.Instr{Op: unit.OpPop},
	)

	if _, err := ctx.InjectBytes("com.example.Broken", mustMarshal(t, img)); err == nil {
		t.Fatal("InjectBytes() succeeded despite failing initializer")
	}
	if _, err := ctx.Load("com.example.Broken"); !errors.Is(err, ErrTypeNotFound) {
		t.Errorf("failed injection left the type defined: %v", err)
	}
}

func TestFieldSlots(t *testing.T) {
	ctx := New(nil, "root")
	img := unit.NewImage("com.example.Gen")
	img.AddField("pool")

	typ, err := ctx.InjectBytes("com.example.Gen", mustMarshal(t, img))
	if err != nil {
		t.Fatalf("InjectBytes() error: %v", err)
	}

	if v, ok := typ.Field("pool"); !ok || v != nil {
		t.Errorf("Field(pool) = %v, %v; want nil, true", v, ok)
	}
	if err := typ.SetField("pool", 42); err != nil {
		t.Fatalf("SetField() error: %v", err)
	}
	if v, _ := typ.Field("pool"); v != 42 {
		t.Errorf("Field(pool) = %v, want 42", v)
	}
	if err := typ.SetField("nope", 1); err == nil {
		t.Error("SetField() accepted an undeclared field")
	}
	if _, ok := typ.Field("nope"); ok {
		t.Error("Field() reported an undeclared field as present")
	}
}
