// Loom CLI - inspect the unit archive and exercise the initializer
// registry with a demo generation cycle.
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"

	"github.com/chazu/loom/archive"
	"github.com/chazu/loom/manifest"
	"github.com/chazu/loom/pkg/gen"
	"github.com/chazu/loom/pkg/loadctx"
	"github.com/chazu/loom/pkg/nexus"
)

var log = commonlog.GetLogger("loom")

func main() {
	dir := flag.String("dir", ".", "Project directory (searched upward for loom.toml)")
	list := flag.Bool("list", false, "List archived units")
	inspect := flag.String("inspect", "", "Inspect an archived unit by name")
	demo := flag.Bool("demo", false, "Run a demo define-register-inject cycle")
	verbose := flag.Bool("v", false, "Verbose output")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: loom [options]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  loom -list                  # List archived units\n")
		fmt.Fprintf(os.Stderr, "  loom -inspect com.example.Gen  # Show one unit's layout\n")
		fmt.Fprintf(os.Stderr, "  loom -demo                  # Generate, register and load a demo unit\n")
	}
	flag.Parse()

	verbosity := 0
	if *verbose {
		verbosity = 1
	}
	commonlog.Configure(verbosity, nil)

	m, err := manifest.FindAndLoad(*dir)
	if err != nil {
		fatal(err)
	}
	if m == nil {
		m = &manifest.Manifest{Dir: *dir}
		m.Archive.Path = "units.db"
		m.Nexus.QueueSize = manifest.DefaultQueueSize
	}

	switch {
	case *list:
		err = listUnits(m)
	case *inspect != "":
		err = inspectUnit(m, *inspect)
	case *demo:
		err = runDemo(m)
	default:
		flag.Usage()
		os.Exit(2)
	}
	if err != nil {
		fatal(err)
	}
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "loom: %v\n", err)
	os.Exit(1)
}

func listUnits(m *manifest.Manifest) error {
	a, err := archive.Open(m.ArchivePath())
	if err != nil {
		return err
	}
	defer a.Close()

	entries, err := a.List()
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Println("archive is empty")
		return nil
	}
	for _, e := range entries {
		fmt.Printf("%-40s %8d bytes  %s\n", e.Name, e.Size, e.Hash[:12])
	}
	return nil
}

func inspectUnit(m *manifest.Manifest, name string) error {
	a, err := archive.Open(m.ArchivePath())
	if err != nil {
		return err
	}
	defer a.Close()

	img, err := a.Load(name)
	if err != nil {
		return err
	}
	fmt.Printf("unit:      %s (format v%d)\n", img.Name, img.Version)
	fmt.Printf("fields:    %s\n", strings.Join(img.Fields, ", "))
	fmt.Printf("constants: %d\n", len(img.Constants))
	fmt.Printf("init:      %d instructions\n", len(img.Init))
	for i, in := range img.Init {
		fmt.Printf("  %3d  %s\n", i, in.Op)
	}
	return nil
}

// runDemo generates one unit whose initializer installs a live closure
// into a static field, loads it into a child context and calls the
// installed closure.
func runDemo(m *manifest.Manifest) error {
	root := loadctx.New(nil, "demo-root")
	target := loadctx.New(root, "demo-target")

	queue := make(chan loadctx.Ref, m.Nexus.QueueSize)
	accessor := nexus.NewAccessorWithQueue(root, queue)
	if !accessor.IsAlive() {
		return fmt.Errorf("registry bootstrap failed in demo root")
	}

	cleaner := nexus.NewCleaner(accessor, queue)
	cleaner.Start()
	defer cleaner.Stop()

	greeting := func(who string) string { return "hello, " + who }

	builder := gen.NewBuilder("com.example.demo.Greeter").
		WithField("greet").
		WithInitializer(nexus.ForField{Field: "greet", Value: greeting}).
		WithAccessor(accessor)

	t, err := builder.Define(target)
	if err != nil {
		return err
	}
	log.Infof("defined %s in context %s", t.Name(), target.Name())

	v, ok := t.Field("greet")
	if !ok || v == nil {
		return fmt.Errorf("initializer did not install the field")
	}
	fmt.Println(v.(func(string) string)("loom"))

	if img := builder.Image(0); img != nil {
		a, err := archive.Open(m.ArchivePath())
		if err != nil {
			return err
		}
		defer a.Close()
		if err := a.Save(img); err != nil {
			return err
		}
		log.Infof("archived %s to %s", img.Name, m.ArchivePath())
	}
	return nil
}
