package stdlib

import (
	"encoding/json"
	"fmt"

	"github.com/agenthands/nfreeze/pkg/core/value"
	"github.com/agenthands/nfreeze/pkg/runtime"
	"github.com/agenthands/nfreeze/pkg/vm"
)

const sysJSONGet = runtime.HostBase + 16

// JSONBuiltins is merged into the compiler when freezing code that
// uses the json module.
var JSONBuiltins = map[string]uint32{
	"json_get": sysJSONGet,
}

// JSONModule returns the inittab entry for the json extension.
func JSONModule() runtime.ExtensionModule {
	return runtime.ExtensionModule{
		Name: "json",
		Init: func(i *runtime.Interp) (*runtime.Module, error) {
			if err := i.BindHost(sysJSONGet, JSONGet); err != nil {
				return nil, err
			}
			return &runtime.Module{Name: "json", Attrs: map[string]string{}}, nil
		},
	}
}

// JSONGet: ( str key -- val )
func JSONGet(m *vm.Machine) error {
	key := value.UnpackString(m.Pop().Data, m.Arena)
	str := value.UnpackString(m.Pop().Data, m.Arena)

	var data map[string]any
	if err := json.Unmarshal([]byte(str), &data); err != nil {
		return fmt.Errorf("stdlib/json: unmarshal failed: %w", err)
	}

	val, ok := data[key]
	if !ok {
		m.Push(value.None())
		return nil
	}
	return pushConverted(m, val)
}

func pushConverted(m *vm.Machine, val any) error {
	switch v := val.(type) {
	case string:
		return m.PushString(v)
	case float64:
		if v == float64(int64(v)) {
			m.Push(value.Int(int64(v)))
		} else {
			m.Push(value.Float(v))
		}
	case bool:
		m.Push(value.Bool(v))
	case nil:
		m.Push(value.None())
	default:
		return m.PushString(fmt.Sprintf("%v", v))
	}
	return nil
}
