package runtime

// Well-known module names. The bootstrap importer module is named after
// what the target runtime generation expects to find in the frozen table.
const (
	BootstrapModuleWide   = "_frozen_importlib"
	BootstrapModuleNarrow = "__bootstrap__"
	MainModule            = "__main__"
)

// ChunkExt is the file extension of frozen chunks on the search path.
const ChunkExt = ".npc"

// DefaultGasLimit bounds a single module execution.
const DefaultGasLimit = 1_000_000

// Config carries the process-wide interpreter flags. It is built once by
// the bootstrap and passed explicitly; the runtime keeps no ambient
// global configuration.
type Config struct {
	// Frozen marks the run as driven entirely by embedded modules.
	Frozen bool

	// NoSite disables standard site initialization.
	NoSite bool

	// Wide selects the wide-character text representation for argv and
	// the matching bootstrap-module name.
	Wide bool

	// GasLimit bounds each module execution; 0 means DefaultGasLimit.
	GasLimit int
}

// BootstrapModule returns the frozen importer module name the runtime
// expects for its text representation generation.
func (c Config) BootstrapModule() string {
	if c.Wide {
		return BootstrapModuleWide
	}
	return BootstrapModuleNarrow
}
