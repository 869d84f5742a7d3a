// Package launch implements the embedding bootstrap: it configures an
// embedded interpreter with a fixed table of frozen modules, marshals
// the host argument vector into the runtime's native text
// representation, installs the module search path, runs the frozen
// __main__ module, and reports interpreter failures to the caller.
//
// The bootstrap is synchronous and single-shot: Start blocks for the
// entire application lifetime and must be called at most once per
// process.
package launch

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/tliron/commonlog"

	"github.com/agenthands/nfreeze/pkg/runtime"
)

var log = commonlog.GetLogger("nfreeze.launch")

var ErrAlreadyRun = errors.New("launch: bootstrap already run")

// State tracks the bootstrap lifecycle.
type State int

const (
	StateUninitialized State = iota
	StateConfigured
	StateRunning
	StateFinalized
	StateError
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateConfigured:
		return "configured"
	case StateRunning:
		return "running"
	case StateFinalized:
		return "finalized"
	case StateError:
		return "error"
	}
	return "unknown"
}

// Options is the bootstrap contract. Everything is supplied by the
// build tooling that produced the executable; nothing is discovered at
// run time.
type Options struct {
	// Args is the host process argument vector, program name included.
	Args []string

	// ProgramName replaces Args[0] in the marshalled vector.
	ProgramName string

	// MainScript is the display filename recorded as
	// __main__.__file__; no file of that name is ever opened.
	MainScript string

	// Bootstrap and Main are the two embedded frozen blobs.
	Bootstrap []byte
	Main      []byte

	// Extensions is the caller-supplied table of natively-compiled
	// modules; nil is valid and registers nothing.
	Extensions []runtime.ExtensionModule

	// ExtraPath entries are appended after the minimal search path,
	// preserving order; nil is valid.
	ExtraPath []string

	// Encoding selects the argument text representation. Defaults to
	// Wide with locale-aware conversion.
	Encoding ArgEncoding

	// Resources backs the ":/"-prefixed search-path entries; may be nil.
	Resources fs.FS

	// GasLimit bounds each module execution; 0 uses the runtime default.
	GasLimit int

	// Stdout and Stderr default to the process streams.
	Stdout io.Writer
	Stderr io.Writer
}

// Launcher drives one bootstrap lifecycle.
type Launcher struct {
	opts   Options
	state  State
	stderr io.Writer

	cfg    runtime.Config
	reg    *runtime.Registry
	argv   runtime.Argv
	path   []string
	interp *runtime.Interp
}

// NewLauncher prepares a launcher without running anything.
func NewLauncher(opts Options) *Launcher {
	if opts.Encoding == nil {
		opts.Encoding = Wide{Decoder: LocaleDecoder{}}
	}
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	return &Launcher{opts: opts, state: StateUninitialized, stderr: opts.Stderr}
}

// Start runs the bootstrap and returns the process exit status:
// 0 on clean completion, 1 on any setup or runtime failure.
func Start(opts Options) int {
	l := NewLauncher(opts)
	if err := l.Run(); err != nil {
		return 1
	}
	return 0
}

// State returns the current lifecycle state.
func (l *Launcher) State() State { return l.state }

// Interp exposes the interpreter once the launcher has left the
// configured state; nil before that.
func (l *Launcher) Interp() *runtime.Interp { return l.interp }

// Run executes the full bootstrap sequence. On failure the diagnostic
// state is written to stderr first; finalization is not attempted on
// the error path since the process is about to exit anyway.
func (l *Launcher) Run() error {
	if l.state != StateUninitialized {
		return ErrAlreadyRun
	}

	steps := []func() error{
		l.configure,
		l.initialize,
		l.runMain,
		l.finalize,
	}
	for _, step := range steps {
		if err := step(); err != nil {
			l.fail(err)
			return err
		}
	}
	return nil
}

// configure performs registry setup, argument marshalling, and search
// path composition. Nothing here touches the interpreter yet.
func (l *Launcher) configure() error {
	l.cfg = runtime.Config{
		Frozen:   true,
		NoSite:   true,
		Wide:     l.opts.Encoding.Wide(),
		GasLimit: l.opts.GasLimit,
	}

	table := make([]runtime.FrozenModule, 0, 3)
	if len(l.opts.Bootstrap) > 0 {
		table = append(table, runtime.FrozenModule{Name: l.cfg.BootstrapModule(), Code: l.opts.Bootstrap})
	}
	table = append(table,
		runtime.FrozenModule{Name: runtime.MainModule, Code: l.opts.Main},
		runtime.FrozenModule{}, // sentinel
	)
	l.reg = runtime.NewRegistry()
	l.reg.SetFrozen(table)

	if err := l.reg.AppendInittab(l.bundleModule()); err != nil {
		return err
	}
	if err := l.reg.ExtendInittab(l.opts.Extensions); err != nil {
		return err
	}

	argv, err := l.opts.Encoding.Marshal(l.opts.ProgramName, l.opts.Args)
	if err != nil {
		return err
	}
	l.argv = argv

	l.path = BuildPath(l.opts.ExtraPath)

	l.state = StateConfigured
	log.Debugf("configured: %d argv slots, %d path entries", l.argv.Len(), len(l.path))
	return nil
}

// initialize brings the interpreter up and installs the configured
// argv, path, and main-module identity.
func (l *Launcher) initialize() error {
	l.interp = runtime.New(l.cfg, l.reg)
	l.interp.SetStdout(l.opts.Stdout)
	l.interp.MountResources(l.opts.Resources)

	if err := l.interp.Initialize(); err != nil {
		return err
	}
	// Narrow runtimes activate the import hooks explicitly.
	if !l.cfg.Wide && len(l.opts.Bootstrap) > 0 {
		if err := l.interp.ImportFrozen(l.cfg.BootstrapModule()); err != nil {
			return err
		}
	}

	if err := l.interp.SetArgv(l.argv); err != nil {
		return err
	}
	if err := l.interp.SetPath(l.path); err != nil {
		return err
	}

	main := l.interp.AddModule(runtime.MainModule)
	main.SetAttr("__file__", l.opts.MainScript)

	l.state = StateRunning
	log.Debugf("runtime initialized, program %q", l.opts.ProgramName)
	return nil
}

// runMain imports the frozen main module; this is the application's
// entire behavior.
func (l *Launcher) runMain() error {
	return l.interp.ImportFrozen(runtime.MainModule)
}

func (l *Launcher) finalize() error {
	if err := l.interp.Finalize(); err != nil {
		return err
	}
	l.state = StateFinalized
	log.Debugf("runtime finalized")
	return nil
}

// fail records the error state and dumps diagnostics to stderr.
// Runtime failures carry traceback state; anything earlier is a plain
// message, matching the stream the caller watches for both.
func (l *Launcher) fail(err error) {
	l.state = StateError
	if l.interp != nil && l.interp.LastError() != nil {
		l.interp.PrintError(l.stderr)
		return
	}
	fmt.Fprintf(l.stderr, "nfreeze: %v\n", err)
}

// bundleModule is the always-present extension module describing the
// deployed bundle to frozen code.
func (l *Launcher) bundleModule() runtime.ExtensionModule {
	opts := l.opts
	return runtime.ExtensionModule{
		Name: "nfreeze",
		Init: func(i *runtime.Interp) (*runtime.Module, error) {
			return &runtime.Module{
				Name: "nfreeze",
				Attrs: map[string]string{
					"program": opts.ProgramName,
					"main":    opts.MainScript,
				},
			}, nil
		},
	}
}
