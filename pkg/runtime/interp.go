// Package runtime implements the embedded interpreter the bootstrap
// drives: a registry of frozen and extension modules, an argv and
// search-path installation surface, and a synchronous lifecycle around
// the bytecode machine in pkg/vm.
//
// One Interp models one interpreter lifetime. All methods are intended
// for a single goroutine; the bootstrap is the sole mutator.
package runtime

import (
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/agenthands/nfreeze/pkg/core/value"
	"github.com/agenthands/nfreeze/pkg/frozen"
	"github.com/agenthands/nfreeze/pkg/vm"
)

// Interp is an embedded interpreter instance.
type Interp struct {
	cfg Config
	reg *Registry

	modules   map[string]*Module
	hostTable []vm.HostFunction
	argv      Argv
	path      []string
	resources fs.FS
	stdout    io.Writer

	hookActive  bool
	initialized bool
	finalized   bool
	lastErr     *Error
}

// New creates an interpreter from an explicit configuration and a
// populated registry. Nothing runs until Initialize.
func New(cfg Config, reg *Registry) *Interp {
	if cfg.GasLimit == 0 {
		cfg.GasLimit = DefaultGasLimit
	}
	return &Interp{
		cfg:     cfg,
		reg:     reg,
		modules: make(map[string]*Module),
		stdout:  os.Stdout,
	}
}

// Config returns the interpreter configuration.
func (i *Interp) Config() Config { return i.cfg }

// SetStdout redirects the print builtin.
func (i *Interp) SetStdout(w io.Writer) { i.stdout = w }

// MountResources installs the embedded resource tree backing the
// ":/"-prefixed search-path entries.
func (i *Interp) MountResources(fsys fs.FS) { i.resources = fsys }

func (i *Interp) bindHost(idx uint32, fn vm.HostFunction) {
	for uint32(len(i.hostTable)) <= idx {
		i.hostTable = append(i.hostTable, nil)
	}
	i.hostTable[idx] = fn
}

// BindHost installs an extension host function at a syscall index.
// Indices below HostBase belong to the core builtins.
func (i *Interp) BindHost(idx uint32, fn vm.HostFunction) error {
	if idx < HostBase {
		return fmt.Errorf("runtime: syscall index %d is reserved for builtins", idx)
	}
	i.bindHost(idx, fn)
	return nil
}

// Initialize allocates the interpreter's internal state. For wide
// runtimes the frozen bootstrap importer, if registered, is processed
// here; narrow runtimes import it explicitly after Initialize returns.
// Without a bootstrap module the path-based import hook never
// activates and only frozen and extension imports resolve.
func (i *Interp) Initialize() error {
	if i.finalized {
		return ErrFinalized
	}
	if i.initialized {
		return ErrAlreadyInitialized
	}
	i.installBuiltins()
	i.initialized = true

	if i.cfg.Wide {
		if _, ok := i.reg.LookupFrozen(i.cfg.BootstrapModule()); ok {
			if err := i.ImportFrozen(i.cfg.BootstrapModule()); err != nil {
				return err
			}
		}
	}
	return nil
}

// SetArgv installs the marshalled argument vector. The representation
// must match the configured runtime generation.
func (i *Interp) SetArgv(a Argv) error {
	if !i.initialized {
		return ErrNotInitialized
	}
	if a.Wide() != i.cfg.Wide {
		return fmt.Errorf("runtime: argv representation does not match runtime generation")
	}
	i.argv = a
	return nil
}

// Argv returns the installed argument vector.
func (i *Interp) Argv() Argv { return i.argv }

// SetPath installs the module search path. Ordering is significant:
// earlier entries shadow later ones.
func (i *Interp) SetPath(entries []string) error {
	if !i.initialized {
		return ErrNotInitialized
	}
	i.path = append([]string(nil), entries...)
	return nil
}

// Path returns a copy of the installed search path.
func (i *Interp) Path() []string {
	return append([]string(nil), i.path...)
}

// AddModule returns the named module object, creating an empty one if
// it does not exist yet.
func (i *Interp) AddModule(name string) *Module {
	if mod, ok := i.modules[name]; ok {
		return mod
	}
	mod := newModule(name)
	i.modules[name] = mod
	return mod
}

// Module returns a loaded module object.
func (i *Interp) Module(name string) (*Module, bool) {
	mod, ok := i.modules[name]
	return mod, ok
}

// ImportFrozen imports a module from the frozen table. No search-path
// or filesystem lookup is involved.
func (i *Interp) ImportFrozen(name string) error {
	if !i.initialized {
		return ErrNotInitialized
	}
	code, ok := i.reg.LookupFrozen(name)
	if !ok {
		return fmt.Errorf("%w: %q", ErrNoFrozenModule, name)
	}
	return i.execChunk(name, code)
}

// Import resolves a module by name: already loaded, frozen table,
// extension inittab, then the search path (once the import hook is
// active), in that order.
func (i *Interp) Import(name string) error {
	if !i.initialized {
		return ErrNotInitialized
	}
	if _, ok := i.modules[name]; ok {
		return nil
	}
	if _, ok := i.reg.LookupFrozen(name); ok {
		return i.ImportFrozen(name)
	}
	if ext, ok := i.reg.LookupExtension(name); ok {
		mod, err := ext.Init(i)
		if err != nil {
			return fmt.Errorf("runtime: extension %q: %w", name, err)
		}
		if mod == nil {
			mod = newModule(name)
		}
		mod.Name = name
		i.modules[name] = mod
		return nil
	}
	if i.hookActive {
		data, err := i.searchPath(name)
		if err != nil {
			return err
		}
		return i.execChunk(name, data)
	}
	return fmt.Errorf("%w: %q", ErrModuleNotFound, name)
}

// execChunk decodes and executes a frozen blob as the named module.
func (i *Interp) execChunk(name string, code []byte) error {
	chunk, err := frozen.Unmarshal(code)
	if err != nil {
		i.lastErr = &Error{Module: name, Err: err}
		return i.lastErr
	}

	i.AddModule(name)

	m := &vm.Machine{}
	m.Load(chunk.Bytecode())
	m.HostRegistry = i.hostTable
	m.Importer = i.Import

	if err := m.Run(i.cfg.GasLimit); err != nil {
		i.lastErr = &Error{Module: name, IP: m.IP, Err: err}
		return i.lastErr
	}

	// Importing the frozen bootstrap module activates path-based
	// resolution for everything after it.
	if name == i.cfg.BootstrapModule() {
		i.hookActive = true
	}
	return nil
}

// Finalize shuts the interpreter down and releases its state. The
// error path of the bootstrap never calls this; the process exits and
// the OS reclaims.
func (i *Interp) Finalize() error {
	if !i.initialized {
		return ErrNotInitialized
	}
	if i.finalized {
		return ErrFinalized
	}
	i.modules = make(map[string]*Module)
	i.hostTable = nil
	i.hookActive = false
	i.finalized = true
	return nil
}

// Eval compiles nothing and runs a prebuilt bytecode object against the
// interpreter's host table; a convenience for extension tests.
func (i *Interp) Eval(bc *vm.Bytecode) (value.Value, error) {
	if !i.initialized {
		return value.None(), ErrNotInitialized
	}
	m := &vm.Machine{}
	m.Load(bc)
	m.HostRegistry = i.hostTable
	m.Importer = i.Import
	if err := m.Run(i.cfg.GasLimit); err != nil {
		return value.None(), err
	}
	if m.SP > 0 {
		return m.Pop(), nil
	}
	return value.None(), nil
}
