package unit

import (
	"bytes"
	"testing"
)

func TestMarshalUnmarshal(t *testing.T) {
	img := NewImage("com.example.Gen$1")
	img.AddField("greet")
	nameIdx := img.AddConstant("loom.runtime.Nexus")
	img.AppendInit(
		Instr{Op: OpGetRootContext},
		Instr{Op: OpPushString, Arg: int32(nameIdx)},
		Instr{Op: OpLoadType},
		Instr{Op: OpPop},
	)

	data, err := img.Marshal()
	if err != nil {
		t.Fatalf("Marshal() error: %v", err)
	}
	if !bytes.Equal(data[:4], ImageMagic) {
		t.Errorf("marshaled data does not start with magic, got %q", data[:4])
	}

	got, err := Unmarshal(data)
	if err != nil {
		t.Fatalf("Unmarshal() error: %v", err)
	}
	if got.Name != img.Name {
		t.Errorf("Name = %q, want %q", got.Name, img.Name)
	}
	if len(got.Init) != len(img.Init) {
		t.Fatalf("Init length = %d, want %d", len(got.Init), len(img.Init))
	}
	if got.Init[1].Op != OpPushString || got.Init[1].Arg != int32(nameIdx) {
		t.Errorf("Init[1] = %+v, want PushString %d", got.Init[1], nameIdx)
	}
	if len(got.Fields) != 1 || got.Fields[0] != "greet" {
		t.Errorf("Fields = %v, want [greet]", got.Fields)
	}
}

func TestMarshalDeterministic(t *testing.T) {
	img := NewImage("com.example.Gen")
	img.AddConstant("a")
	img.AddConstant("b")

	first, err := img.Marshal()
	if err != nil {
		t.Fatalf("Marshal() error: %v", err)
	}
	second, err := img.Marshal()
	if err != nil {
		t.Fatalf("Marshal() error: %v", err)
	}
	if !bytes.Equal(first, second) {
		t.Error("canonical encoding produced different bytes for the same image")
	}
}

func TestUnmarshalRejectsBadData(t *testing.T) {
	if _, err := Unmarshal([]byte{1, 2}); err == nil {
		t.Error("Unmarshal() accepted truncated data")
	}

	if _, err := Unmarshal([]byte("XXXX\x00\x01....")); err == nil {
		t.Error("Unmarshal() accepted bad magic")
	}

	img := NewImage("com.example.Gen")
	data, err := img.Marshal()
	if err != nil {
		t.Fatalf("Marshal() error: %v", err)
	}
	data[4], data[5] = 0xFF, 0xFF // corrupt the version
	if _, err := Unmarshal(data); err == nil {
		t.Error("Unmarshal() accepted unsupported version")
	}
}
