package runtime

import (
	"errors"
	"fmt"
)

var (
	ErrDuplicateModule = errors.New("runtime: duplicate module registration")
	ErrNoFrozenModule  = errors.New("runtime: no frozen module")
)

// FrozenModule maps a module name to an embedded code blob. The blob is
// owned by the executable's static storage; the registry never copies
// or releases it.
type FrozenModule struct {
	Name string
	Code []byte
}

// ExtensionModule is a natively-compiled module supplied by the build
// tooling. Init is invoked at most once, on first import.
type ExtensionModule struct {
	Name string
	Init func(i *Interp) (*Module, error)
}

// Registry is the runtime-visible import configuration: the frozen
// table plus the extension inittab. It is populated once, before the
// interpreter starts, and never mutated afterwards.
type Registry struct {
	frozen  []FrozenModule
	inittab []ExtensionModule
	names   map[string]bool
}

func NewRegistry() *Registry {
	return &Registry{names: make(map[string]bool)}
}

// SetFrozen installs the frozen-module table. The table is terminated
// by a sentinel entry with an empty name; entries past the sentinel are
// ignored. Lookup is by exact, case-sensitive name.
func (r *Registry) SetFrozen(mods []FrozenModule) {
	r.frozen = r.frozen[:0]
	for _, m := range mods {
		if m.Name == "" {
			break
		}
		r.frozen = append(r.frozen, m)
	}
}

// LookupFrozen returns the code blob for a frozen module name.
func (r *Registry) LookupFrozen(name string) ([]byte, bool) {
	for _, m := range r.frozen {
		if m.Name == name {
			return m.Code, true
		}
	}
	return nil, false
}

// AppendInittab registers a single extension module.
func (r *Registry) AppendInittab(mod ExtensionModule) error {
	if mod.Name == "" || mod.Init == nil {
		return fmt.Errorf("runtime: malformed extension module entry %q", mod.Name)
	}
	if r.names[mod.Name] {
		return fmt.Errorf("%w: %q", ErrDuplicateModule, mod.Name)
	}
	r.names[mod.Name] = true
	r.inittab = append(r.inittab, mod)
	return nil
}

// ExtendInittab registers the caller-supplied extension table. A nil
// table is a no-op.
func (r *Registry) ExtendInittab(mods []ExtensionModule) error {
	for _, m := range mods {
		if err := r.AppendInittab(m); err != nil {
			return err
		}
	}
	return nil
}

// LookupExtension returns the inittab entry for a name.
func (r *Registry) LookupExtension(name string) (ExtensionModule, bool) {
	for _, m := range r.inittab {
		if m.Name == name {
			return m, true
		}
	}
	return ExtensionModule{}, false
}
