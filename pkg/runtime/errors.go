package runtime

import (
	"errors"
	"fmt"
	"io"

	"github.com/agenthands/nfreeze/pkg/vm"
)

var (
	ErrNotInitialized     = errors.New("runtime: interpreter not initialized")
	ErrAlreadyInitialized = errors.New("runtime: interpreter already initialized")
	ErrFinalized          = errors.New("runtime: interpreter finalized")
	ErrModuleNotFound     = errors.New("runtime: module not found")
)

// Error is the interpreter's diagnostic state: which module failed, at
// which instruction, and why.
type Error struct {
	Module string
	IP     int
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("module %q, instruction %d: %v", e.Module, e.IP, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// PrintError writes the current diagnostic state to w, or nothing if
// the interpreter holds no error.
func (i *Interp) PrintError(w io.Writer) {
	if i.lastErr == nil {
		return
	}
	fmt.Fprintln(w, "Traceback (most recent call last):")
	fmt.Fprintf(w, "  module %q, instruction %d", i.lastErr.Module, i.lastErr.IP)
	if mod, ok := i.modules[i.lastErr.Module]; ok {
		if file, ok := mod.Attr("__file__"); ok {
			fmt.Fprintf(w, ", file %q", file)
		}
	}
	fmt.Fprintln(w)
	var raised *vm.Raised
	if errors.As(i.lastErr.Err, &raised) {
		fmt.Fprintf(w, "RuntimeError: %s\n", raised.Msg)
	} else {
		fmt.Fprintf(w, "%v\n", i.lastErr.Err)
	}
}

// LastError returns the interpreter's current error state.
func (i *Interp) LastError() *Error { return i.lastErr }
