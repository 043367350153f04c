package nexus

import (
	"testing"
	"time"

	"github.com/chazu/loom/pkg/loadctx"
	"github.com/chazu/loom/pkg/unit"
)

func TestCleanerDrainsQueue(t *testing.T) {
	root := loadctx.New(nil, "root")
	queue := make(chan loadctx.Ref, 4)
	accessor := NewAccessorWithQueue(root, queue)
	if !accessor.IsAlive() {
		t.Fatal("accessor on a fresh root is not alive")
	}

	target := loadctx.New(root, "target")
	ini := &countingInitializer{}
	if err := accessor.Register("com.example.Gen", target, 1, ini); err != nil {
		t.Fatalf("Register() error: %v", err)
	}

	cleaner := NewCleaner(accessor, queue)
	cleaner.Start()
	defer cleaner.Stop()

	queue <- target.WeakRef()

	deadline := time.Now().Add(5 * time.Second)
	for cleaner.Cleaned() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("cleaner did not drain the queue")
		}
		time.Sleep(time.Millisecond)
	}

	if got := cleaner.Failed(); got != 0 {
		t.Errorf("Failed() = %d, want 0", got)
	}

	// The pending entry was cleaned, so a later lookup finds nothing.
	img := unit.NewImage("com.example.Gen")
	NewInitializationAppender(1).AppendTo(img)
	data, err := img.Marshal()
	if err != nil {
		t.Fatalf("Marshal() error: %v", err)
	}
	if _, err := target.InjectBytes("com.example.Gen", data); err != nil {
		t.Fatalf("InjectBytes() error: %v", err)
	}
	if got := ini.calls.Load(); got != 0 {
		t.Errorf("initializer ran %d times after clean, want 0", got)
	}
}

func TestCleanerStartStopIdempotent(t *testing.T) {
	root := loadctx.New(nil, "root")
	queue := make(chan loadctx.Ref)
	cleaner := NewCleaner(NewAccessor(root), queue)

	cleaner.Stop() // never started

	cleaner.Start()
	cleaner.Start() // second Start is a no-op
	cleaner.Stop()
	cleaner.Stop()

	cleaner.Start()
	cleaner.Stop()
}
