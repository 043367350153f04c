package archive

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/chazu/loom/pkg/unit"
)

func openTestArchive(t *testing.T) *Archive {
	t.Helper()
	a, err := Open(filepath.Join(t.TempDir(), "units.db"))
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	t.Cleanup(func() { a.Close() })
	return a
}

func sampleImage(name string) *unit.Image {
	img := unit.NewImage(name)
	img.AddField("greet")
	img.AddConstant("loom.runtime.Nexus")
	return img
}

func TestSaveAndLoad(t *testing.T) {
	a := openTestArchive(t)

	img := sampleImage("com.example.Gen")
	if err := a.Save(img); err != nil {
		t.Fatalf("Save() error: %v", err)
	}

	got, err := a.Load("com.example.Gen")
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if got.Name != img.Name || len(got.Fields) != 1 {
		t.Errorf("Load() = %+v, want saved image back", got)
	}
}

func TestLoadMissing(t *testing.T) {
	a := openTestArchive(t)
	if _, err := a.Load("com.example.Missing"); !errors.Is(err, ErrUnitNotFound) {
		t.Errorf("Load() = %v, want ErrUnitNotFound", err)
	}
	if _, err := a.Bytes("com.example.Missing"); !errors.Is(err, ErrUnitNotFound) {
		t.Errorf("Bytes() = %v, want ErrUnitNotFound", err)
	}
}

func TestBytesRoundTrip(t *testing.T) {
	a := openTestArchive(t)
	img := sampleImage("com.example.Gen")
	if err := a.Save(img); err != nil {
		t.Fatalf("Save() error: %v", err)
	}

	data, err := a.Bytes("com.example.Gen")
	if err != nil {
		t.Fatalf("Bytes() error: %v", err)
	}
	if _, err := unit.Unmarshal(data); err != nil {
		t.Errorf("archived bytes do not unmarshal: %v", err)
	}
}

func TestSaveReplaces(t *testing.T) {
	a := openTestArchive(t)

	if err := a.Save(sampleImage("com.example.Gen")); err != nil {
		t.Fatalf("Save() error: %v", err)
	}
	updated := sampleImage("com.example.Gen")
	updated.AddField("extra")
	if err := a.Save(updated); err != nil {
		t.Fatalf("Save() of replacement error: %v", err)
	}

	got, err := a.Load("com.example.Gen")
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if len(got.Fields) != 2 {
		t.Errorf("replacement not stored, fields = %v", got.Fields)
	}

	entries, err := a.List()
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("List() = %d entries, want 1", len(entries))
	}
}

func TestListAndDelete(t *testing.T) {
	a := openTestArchive(t)

	for _, name := range []string{"com.example.B", "com.example.A"} {
		if err := a.Save(sampleImage(name)); err != nil {
			t.Fatalf("Save(%s) error: %v", name, err)
		}
	}

	entries, err := a.List()
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	if len(entries) != 2 || entries[0].Name != "com.example.A" {
		t.Errorf("List() = %+v, want two entries ordered by name", entries)
	}
	if entries[0].Hash == "" || entries[0].Size == 0 {
		t.Error("List() entry missing hash or size")
	}

	if err := a.Delete("com.example.A"); err != nil {
		t.Fatalf("Delete() error: %v", err)
	}
	if _, err := a.Load("com.example.A"); !errors.Is(err, ErrUnitNotFound) {
		t.Error("deleted unit still loadable")
	}

	// Deleting an absent unit is not an error.
	if err := a.Delete("com.example.A"); err != nil {
		t.Errorf("Delete() of absent unit = %v", err)
	}
}
