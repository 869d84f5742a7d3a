package launch

import (
	"errors"
	"fmt"

	"github.com/agenthands/nfreeze/pkg/runtime"
)

var ErrEmptyArgv = errors.New("launch: empty argument vector")

// ArgEncoding converts the host argument vector into the text
// representation the embedded runtime expects. The encoding is chosen
// once, at build configuration time, to match the target runtime
// generation.
type ArgEncoding interface {
	// Wide reports whether the target runtime uses wide strings.
	Wide() bool

	// Marshal produces a vector with the same number of slots as args,
	// with slot 0 replaced by progName. args must not be empty.
	Marshal(progName string, args []string) (runtime.Argv, error)
}

// ByteDecoder converts one narrow argument into wide characters.
type ByteDecoder interface {
	DecodeArg(arg string) ([]rune, error)
}

// Narrow passes arguments through as byte strings.
type Narrow struct{}

func (Narrow) Wide() bool { return false }

func (Narrow) Marshal(progName string, args []string) (runtime.Argv, error) {
	if len(args) == 0 {
		return runtime.Argv{}, ErrEmptyArgv
	}
	out := make([]string, len(args))
	out[0] = progName
	copy(out[1:], args[1:])
	return runtime.NewNarrowArgv(out), nil
}

// Wide converts arguments to wide characters. Slot 0 takes the program
// name as-is; the remaining slots go through the configured decoder.
type Wide struct {
	Decoder ByteDecoder
}

func (Wide) Wide() bool { return true }

func (w Wide) Marshal(progName string, args []string) (runtime.Argv, error) {
	if len(args) == 0 {
		return runtime.Argv{}, ErrEmptyArgv
	}
	dec := w.Decoder
	if dec == nil {
		dec = LocaleDecoder{}
	}

	out := make([][]rune, len(args))
	out[0] = []rune(progName)
	for i := 1; i < len(args); i++ {
		warg, err := dec.DecodeArg(args[i])
		if err != nil {
			return runtime.Argv{}, fmt.Errorf("launch: could not convert argument %d: %w", i, err)
		}
		out[i] = warg
	}
	return runtime.NewWideArgv(out), nil
}

// EscapeDecoder is the fixed fallback for platforms without a usable
// locale facility: bytes at or below 0x7F map literally, higher bytes
// map to the 0xDC00+byte escape code points so arbitrary byte
// sequences stay recoverable.
type EscapeDecoder struct{}

func (EscapeDecoder) DecodeArg(arg string) ([]rune, error) {
	out := make([]rune, 0, len(arg))
	for i := 0; i < len(arg); i++ {
		ch := arg[i]
		if ch <= 0x7F {
			out = append(out, rune(ch))
		} else {
			out = append(out, rune(0xDC00+uint32(ch)))
		}
	}
	return out, nil
}
