package vm

import "github.com/agenthands/nfreeze/pkg/core/value"

// Bytecode represents the compiled output of a module.
type Bytecode struct {
	Instructions []uint32
	Constants    []value.Value
	Arena        []byte
	Functions    map[string]int
}
