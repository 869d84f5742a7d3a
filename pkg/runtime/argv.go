package runtime

// Argv is the marshalled argument vector in the runtime's native text
// representation: narrow (byte strings) or wide (rune strings), never
// both. Slot 0 is the program name substituted by the bootstrap.
type Argv struct {
	narrow []string
	wide   [][]rune
}

// NewNarrowArgv wraps a narrow argument vector.
func NewNarrowArgv(args []string) Argv {
	return Argv{narrow: args}
}

// NewWideArgv wraps a wide argument vector.
func NewWideArgv(args [][]rune) Argv {
	return Argv{wide: args}
}

// Wide reports whether the vector uses the wide representation.
func (a Argv) Wide() bool { return a.wide != nil }

// Len returns the number of argument slots.
func (a Argv) Len() int {
	if a.wide != nil {
		return len(a.wide)
	}
	return len(a.narrow)
}

// At returns slot i rendered as a Go string. Escape code points in the
// 0xDC00..0xDCFF range produced by the fallback byte mapping are turned
// back into their original bytes, so arbitrary argument bytes survive
// the round trip.
func (a Argv) At(i int) string {
	if a.wide == nil {
		return a.narrow[i]
	}
	var b []byte
	for _, r := range a.wide[i] {
		if r >= 0xDC00 && r <= 0xDCFF {
			b = append(b, byte(r))
		} else {
			b = append(b, string(r)...)
		}
	}
	return string(b)
}

// Strings renders every slot.
func (a Argv) Strings() []string {
	out := make([]string, a.Len())
	for i := range out {
		out[i] = a.At(i)
	}
	return out
}
