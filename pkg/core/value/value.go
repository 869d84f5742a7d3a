package value

import (
	"fmt"
	"math"
	"strings"
	"unsafe"
)

// Type represents the tag in the Value tagged union.
type Type uint8

const (
	TypeVoid Type = iota
	TypeInt
	TypeBool
	TypeFloat
	TypeString
	TypeBytes
	TypeList
	TypeDict
)

// Value is a tagged union. Scalar payloads live in Data; strings are
// packed (offset, length) views into a machine arena.
type Value struct {
	Type   Type
	Data   uint64
	Opaque any // complex payloads (lists, dicts)
}

// PackString encodes an arena offset and length into the Data register.
func PackString(offset, length uint32) uint64 {
	return (uint64(offset) << 32) | uint64(length)
}

// UnpackString retrieves a string view from the arena.
func UnpackString(data uint64, arena []byte) string {
	offset := uint32(data >> 32)
	length := uint32(data)

	if uint64(offset)+uint64(length) > uint64(len(arena)) {
		panic("value: memory access violation")
	}

	if length == 0 {
		return ""
	}

	return unsafe.String(&arena[offset], length)
}

// Int returns the value as int64.
func (v Value) Int() int64 {
	return int64(v.Data)
}

// Float returns the value as float64.
func (v Value) Float() float64 {
	if v.Type == TypeFloat {
		return math.Float64frombits(v.Data)
	}
	return float64(int64(v.Data))
}

// Truthy reports whether the value counts as true in a condition.
func (v Value) Truthy() bool {
	switch v.Type {
	case TypeVoid:
		return false
	case TypeString:
		return uint32(v.Data) != 0
	default:
		return v.Data != 0
	}
}

// Int constructs an integer value.
func Int(i int64) Value {
	return Value{Type: TypeInt, Data: uint64(i)}
}

// Bool constructs a boolean value.
func Bool(b bool) Value {
	var d uint64
	if b {
		d = 1
	}
	return Value{Type: TypeBool, Data: d}
}

// Float constructs a float value.
func Float(f float64) Value {
	return Value{Type: TypeFloat, Data: math.Float64bits(f)}
}

// None is the void value.
func None() Value {
	return Value{Type: TypeVoid}
}

// Format returns a string representation of the value.
func (v Value) Format(arena []byte) string {
	switch v.Type {
	case TypeString:
		return UnpackString(v.Data, arena)
	case TypeInt:
		return fmt.Sprintf("%d", int64(v.Data))
	case TypeFloat:
		f := math.Float64frombits(v.Data)
		s := fmt.Sprintf("%g", f)
		if !strings.ContainsAny(s, ".e") {
			s += ".0"
		}
		return s
	case TypeBool:
		if v.Data != 0 {
			return "True"
		}
		return "False"
	case TypeVoid:
		return "None"
	case TypeList:
		list, _ := v.Opaque.([]Value)
		parts := make([]string, len(list))
		for i, el := range list {
			parts[i] = el.Format(arena)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	default:
		return fmt.Sprintf("%v", v.Data)
	}
}
