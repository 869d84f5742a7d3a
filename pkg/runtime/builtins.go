package runtime

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/agenthands/nfreeze/pkg/core/value"
	"github.com/agenthands/nfreeze/pkg/vm"
)

// Core builtin syscall indices. pkg/compiler/python.Builtins must agree.
const (
	sysPrint uint32 = 0
	sysLen   uint32 = 1
	sysStr   uint32 = 2
	sysInt   uint32 = 3
	sysAbs   uint32 = 4
	sysBool  uint32 = 5
)

// HostBase is the first syscall index available to extension modules;
// everything below is reserved for the core builtins.
const HostBase uint32 = 32

func (i *Interp) installBuiltins() {
	i.bindHost(sysPrint, i.builtinPrint)
	i.bindHost(sysLen, builtinLen)
	i.bindHost(sysStr, builtinStr)
	i.bindHost(sysInt, builtinInt)
	i.bindHost(sysAbs, builtinAbs)
	i.bindHost(sysBool, builtinBool)
}

// builtinPrint: ( vals... count -- None )
func (i *Interp) builtinPrint(m *vm.Machine) error {
	count := int(m.Pop().Int())
	parts := make([]string, count)
	for j := count - 1; j >= 0; j-- {
		parts[j] = m.Pop().Format(m.Arena)
	}
	fmt.Fprintln(i.stdout, strings.Join(parts, " "))
	m.Push(value.None())
	return nil
}

// builtinLen: ( str -- int )
func builtinLen(m *vm.Machine) error {
	v := m.Pop()
	switch v.Type {
	case value.TypeString:
		m.Push(value.Int(int64(uint32(v.Data))))
	case value.TypeList:
		list, _ := v.Opaque.([]value.Value)
		m.Push(value.Int(int64(len(list))))
	default:
		return fmt.Errorf("TypeError: object of type %v has no len()", v.Type)
	}
	return nil
}

// builtinStr: ( val -- str )
func builtinStr(m *vm.Machine) error {
	return m.PushString(m.Pop().Format(m.Arena))
}

// builtinInt: ( val -- int )
func builtinInt(m *vm.Machine) error {
	v := m.Pop()
	switch v.Type {
	case value.TypeInt, value.TypeBool:
		m.Push(value.Int(v.Int()))
	case value.TypeFloat:
		m.Push(value.Int(int64(v.Float())))
	case value.TypeString:
		s := strings.TrimSpace(value.UnpackString(v.Data, m.Arena))
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return fmt.Errorf("ValueError: invalid literal for int(): %q", s)
		}
		m.Push(value.Int(n))
	default:
		return fmt.Errorf("TypeError: int() argument of type %v", v.Type)
	}
	return nil
}

// builtinAbs: ( int -- int )
func builtinAbs(m *vm.Machine) error {
	n := m.Pop().Int()
	if n < 0 {
		n = -n
	}
	m.Push(value.Int(n))
	return nil
}

// builtinBool: ( val -- bool )
func builtinBool(m *vm.Machine) error {
	m.Push(value.Bool(m.Pop().Truthy()))
	return nil
}
