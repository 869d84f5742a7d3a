package stdlib

import (
	"fmt"
	"strings"

	"github.com/agenthands/nfreeze/pkg/core/value"
	"github.com/agenthands/nfreeze/pkg/runtime"
	"github.com/agenthands/nfreeze/pkg/vm"
)

// Syscall indices claimed by the strings extension.
const (
	sysFormat = runtime.HostBase + 24
	sysUpper  = runtime.HostBase + 25
	sysLower  = runtime.HostBase + 26
	sysStrip  = runtime.HostBase + 27
)

// StringsBuiltins is merged into the compiler when freezing code that
// uses the strings module.
var StringsBuiltins = map[string]uint32{
	"format": sysFormat,
	"upper":  sysUpper,
	"lower":  sysLower,
	"strip":  sysStrip,
}

// StringsModule returns the inittab entry for the strings extension.
func StringsModule() runtime.ExtensionModule {
	return runtime.ExtensionModule{
		Name: "strings",
		Init: func(i *runtime.Interp) (*runtime.Module, error) {
			for idx, fn := range map[uint32]vm.HostFunction{
				sysFormat: Format,
				sysUpper:  Upper,
				sysLower:  Lower,
				sysStrip:  Strip,
			} {
				if err := i.BindHost(idx, fn); err != nil {
					return nil, err
				}
			}
			return &runtime.Module{Name: "strings", Attrs: map[string]string{}}, nil
		},
	}
}

// Format: ( format val -- result )
// Substitutes the first %s in format with val's rendering.
func Format(m *vm.Machine) error {
	val := m.Pop()
	formatVal := m.Pop()
	if formatVal.Type != value.TypeString {
		return fmt.Errorf("TypeError: format must be string")
	}
	format := value.UnpackString(formatVal.Data, m.Arena)
	result := strings.Replace(format, "%s", val.Format(m.Arena), 1)
	return m.PushString(result)
}

// Upper: ( str -- str )
func Upper(m *vm.Machine) error {
	return m.PushString(strings.ToUpper(value.UnpackString(m.Pop().Data, m.Arena)))
}

// Lower: ( str -- str )
func Lower(m *vm.Machine) error {
	return m.PushString(strings.ToLower(value.UnpackString(m.Pop().Data, m.Arena)))
}

// Strip: ( str -- str )
func Strip(m *vm.Machine) error {
	return m.PushString(strings.TrimSpace(value.UnpackString(m.Pop().Data, m.Arena)))
}
