package runtime_test

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/agenthands/nfreeze/pkg/compiler/python"
	"github.com/agenthands/nfreeze/pkg/frozen"
	"github.com/agenthands/nfreeze/pkg/runtime"
)

// freeze compiles source to a frozen blob, as the build tooling would.
func freeze(t *testing.T, src string) []byte {
	t.Helper()
	c := python.NewCompiler()
	bc, err := c.Compile(src)
	if err != nil {
		t.Fatalf("compile failed: %v", err)
	}
	blob, err := frozen.Compile(bc)
	if err != nil {
		t.Fatalf("freeze failed: %v", err)
	}
	return blob
}

func newInterp(t *testing.T, cfg runtime.Config, mods ...runtime.FrozenModule) *runtime.Interp {
	t.Helper()
	reg := runtime.NewRegistry()
	reg.SetFrozen(append(mods, runtime.FrozenModule{}))
	i := runtime.New(cfg, reg)
	if err := i.Initialize(); err != nil {
		t.Fatalf("initialize failed: %v", err)
	}
	return i
}

func TestInterpLifecycle(t *testing.T) {
	reg := runtime.NewRegistry()
	i := runtime.New(runtime.Config{Frozen: true, NoSite: true}, reg)

	if err := i.SetPath([]string{":/"}); !errors.Is(err, runtime.ErrNotInitialized) {
		t.Errorf("expected ErrNotInitialized, got %v", err)
	}
	if err := i.ImportFrozen("__main__"); !errors.Is(err, runtime.ErrNotInitialized) {
		t.Errorf("expected ErrNotInitialized, got %v", err)
	}

	if err := i.Initialize(); err != nil {
		t.Fatalf("initialize failed: %v", err)
	}
	if err := i.Initialize(); !errors.Is(err, runtime.ErrAlreadyInitialized) {
		t.Errorf("expected ErrAlreadyInitialized, got %v", err)
	}

	if err := i.Finalize(); err != nil {
		t.Fatalf("finalize failed: %v", err)
	}
	if err := i.Finalize(); !errors.Is(err, runtime.ErrFinalized) {
		t.Errorf("expected ErrFinalized, got %v", err)
	}
	if err := i.Initialize(); !errors.Is(err, runtime.ErrFinalized) {
		t.Errorf("expected ErrFinalized on re-init, got %v", err)
	}
}

func TestInterpRunsFrozenMain(t *testing.T) {
	i := newInterp(t, runtime.Config{Frozen: true, NoSite: true},
		runtime.FrozenModule{Name: runtime.MainModule, Code: freeze(t, `print("hi", 1 + 2)`)},
	)

	var out bytes.Buffer
	i.SetStdout(&out)

	if err := i.ImportFrozen(runtime.MainModule); err != nil {
		t.Fatalf("main failed: %v", err)
	}
	if got := out.String(); got != "hi 3\n" {
		t.Errorf("expected %q, got %q", "hi 3\n", got)
	}
	if _, ok := i.Module(runtime.MainModule); !ok {
		t.Errorf("__main__ not recorded as loaded")
	}
}

func TestInterpFrozenLookupNeedsNoFilesystem(t *testing.T) {
	// No resources mounted, no path installed: frozen-table imports
	// still resolve.
	i := newInterp(t, runtime.Config{},
		runtime.FrozenModule{Name: "helpers", Code: freeze(t, "x = 1")},
	)
	if err := i.ImportFrozen("helpers"); err != nil {
		t.Fatalf("frozen import touched the filesystem: %v", err)
	}

	if err := i.ImportFrozen("absent"); !errors.Is(err, runtime.ErrNoFrozenModule) {
		t.Errorf("expected ErrNoFrozenModule, got %v", err)
	}
}

func TestInterpArgvRepresentationMismatch(t *testing.T) {
	i := newInterp(t, runtime.Config{Wide: true})

	if err := i.SetArgv(runtime.NewNarrowArgv([]string{"p"})); err == nil {
		t.Fatalf("expected mismatch error installing narrow argv on wide runtime")
	}
	if err := i.SetArgv(runtime.NewWideArgv([][]rune{[]rune("p")})); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := i.Argv().At(0); got != "p" {
		t.Errorf("expected %q, got %q", "p", got)
	}
}

func TestInterpImportOrder(t *testing.T) {
	// A name present in the frozen table and the inittab resolves from
	// the frozen table.
	reg := runtime.NewRegistry()
	reg.SetFrozen([]runtime.FrozenModule{
		{Name: "both", Code: freeze(t, "x = 1")},
		{},
	})
	extInit := false
	reg.AppendInittab(runtime.ExtensionModule{
		Name: "both",
		Init: func(i *runtime.Interp) (*runtime.Module, error) {
			extInit = true
			return nil, nil
		},
	})

	i := runtime.New(runtime.Config{}, reg)
	if err := i.Initialize(); err != nil {
		t.Fatal(err)
	}
	if err := i.Import("both"); err != nil {
		t.Fatalf("import failed: %v", err)
	}
	if extInit {
		t.Errorf("frozen table must shadow the inittab")
	}
}

func TestInterpExtensionInitOnce(t *testing.T) {
	count := 0
	reg := runtime.NewRegistry()
	reg.AppendInittab(runtime.ExtensionModule{
		Name: "counter",
		Init: func(i *runtime.Interp) (*runtime.Module, error) {
			count++
			return &runtime.Module{Name: "counter", Attrs: map[string]string{}}, nil
		},
	})

	i := runtime.New(runtime.Config{}, reg)
	if err := i.Initialize(); err != nil {
		t.Fatal(err)
	}
	for j := 0; j < 3; j++ {
		if err := i.Import("counter"); err != nil {
			t.Fatalf("import %d failed: %v", j, err)
		}
	}
	if count != 1 {
		t.Errorf("extension Init ran %d times, want 1", count)
	}
}

func TestInterpPathImport(t *testing.T) {
	bootstrap := freeze(t, "pass")
	main := freeze(t, "import util")
	util := freeze(t, `print("from util")`)

	reg := runtime.NewRegistry()
	reg.SetFrozen([]runtime.FrozenModule{
		{Name: runtime.BootstrapModuleWide, Code: bootstrap},
		{Name: runtime.MainModule, Code: main},
		{},
	})

	i := runtime.New(runtime.Config{Frozen: true, NoSite: true, Wide: true}, reg)
	i.MountResources(fstest.MapFS{
		"stdlib/util.npc": &fstest.MapFile{Data: util},
	})

	var out bytes.Buffer
	i.SetStdout(&out)

	if err := i.Initialize(); err != nil {
		t.Fatalf("initialize failed: %v", err)
	}
	if err := i.SetPath([]string{":/", ":/stdlib", ":/site-packages"}); err != nil {
		t.Fatal(err)
	}
	if err := i.ImportFrozen(runtime.MainModule); err != nil {
		t.Fatalf("main failed: %v", err)
	}
	if got := out.String(); got != "from util\n" {
		t.Errorf("expected %q, got %q", "from util\n", got)
	}
}

func TestInterpPathShadowing(t *testing.T) {
	bootstrap := freeze(t, "pass")
	main := freeze(t, "import util")

	reg := runtime.NewRegistry()
	reg.SetFrozen([]runtime.FrozenModule{
		{Name: runtime.BootstrapModuleWide, Code: bootstrap},
		{Name: runtime.MainModule, Code: main},
		{},
	})

	i := runtime.New(runtime.Config{Wide: true}, reg)
	i.MountResources(fstest.MapFS{
		"util.npc":        &fstest.MapFile{Data: freeze(t, `print("root")`)},
		"stdlib/util.npc": &fstest.MapFile{Data: freeze(t, `print("stdlib")`)},
	})

	var out bytes.Buffer
	i.SetStdout(&out)

	if err := i.Initialize(); err != nil {
		t.Fatal(err)
	}
	if err := i.SetPath([]string{":/", ":/stdlib"}); err != nil {
		t.Fatal(err)
	}
	if err := i.ImportFrozen(runtime.MainModule); err != nil {
		t.Fatalf("main failed: %v", err)
	}
	if got := out.String(); got != "root\n" {
		t.Errorf("earlier path entries must shadow later ones; got %q", got)
	}
}

func TestInterpPathImportInactiveWithoutBootstrap(t *testing.T) {
	// Until the frozen bootstrap module has run, path-based resolution
	// stays off even when the chunk is reachable.
	reg := runtime.NewRegistry()
	reg.SetFrozen([]runtime.FrozenModule{
		{Name: runtime.MainModule, Code: freeze(t, "import util")},
		{},
	})

	i := runtime.New(runtime.Config{Wide: true}, reg)
	i.MountResources(fstest.MapFS{
		"util.npc": &fstest.MapFile{Data: freeze(t, "pass")},
	})
	if err := i.Initialize(); err != nil {
		t.Fatal(err)
	}
	if err := i.SetPath([]string{":/"}); err != nil {
		t.Fatal(err)
	}

	err := i.ImportFrozen(runtime.MainModule)
	if !errors.Is(err, runtime.ErrModuleNotFound) {
		t.Fatalf("expected ErrModuleNotFound, got %v", err)
	}
}

func TestInterpErrorState(t *testing.T) {
	i := newInterp(t, runtime.Config{},
		runtime.FrozenModule{Name: runtime.MainModule, Code: freeze(t, `raise RuntimeError("kaput")`)},
	)
	i.AddModule(runtime.MainModule).SetAttr("__file__", "app.py")

	if err := i.ImportFrozen(runtime.MainModule); err == nil {
		t.Fatalf("expected raise to surface")
	}
	last := i.LastError()
	if last == nil || last.Module != runtime.MainModule {
		t.Fatalf("error state not recorded: %+v", last)
	}

	var out bytes.Buffer
	i.PrintError(&out)
	diag := out.String()
	if !strings.Contains(diag, "Traceback") {
		t.Errorf("diagnostic missing traceback header: %q", diag)
	}
	if !strings.Contains(diag, "RuntimeError: kaput") {
		t.Errorf("diagnostic missing raise message: %q", diag)
	}
	if !strings.Contains(diag, `"app.py"`) {
		t.Errorf("diagnostic missing main script identity: %q", diag)
	}
}

func TestInterpFinalizeClearsModules(t *testing.T) {
	i := newInterp(t, runtime.Config{},
		runtime.FrozenModule{Name: "m", Code: freeze(t, "x = 1")},
	)
	if err := i.ImportFrozen("m"); err != nil {
		t.Fatal(err)
	}
	if err := i.Finalize(); err != nil {
		t.Fatal(err)
	}
	if _, ok := i.Module("m"); ok {
		t.Errorf("modules must be released on finalize")
	}
}

func TestInterpBuiltins(t *testing.T) {
	i := newInterp(t, runtime.Config{},
		runtime.FrozenModule{Name: runtime.MainModule, Code: freeze(t, `
print(len("hello"))
print(str(42))
print(int("17"))
print(abs(-3))
print(bool(0))
`)},
	)

	var out bytes.Buffer
	i.SetStdout(&out)
	if err := i.ImportFrozen(runtime.MainModule); err != nil {
		t.Fatalf("main failed: %v", err)
	}
	want := "5\n42\n17\n3\nFalse\n"
	if got := out.String(); got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}
