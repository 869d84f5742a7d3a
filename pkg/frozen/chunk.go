// Package frozen defines the container format for precompiled module
// blobs embedded into a deployed executable. A frozen blob is a
// canonically CBOR-encoded Chunk; the bootstrap treats blobs as opaque
// bytes and only the runtime's importer decodes them.
package frozen

import (
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/agenthands/nfreeze/pkg/core/value"
	"github.com/agenthands/nfreeze/pkg/vm"
)

// FormatVersion is bumped on incompatible chunk layout changes.
const FormatVersion = 1

var ErrBadFormat = errors.New("frozen: unsupported chunk format")

var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("frozen: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// Const is a serializable constant-pool entry. Only scalar and
// arena-packed constants may be frozen.
type Const struct {
	Type uint8  `cbor:"t"`
	Data uint64 `cbor:"d"`
}

// Chunk is the serialized form of a compiled module.
type Chunk struct {
	Format       uint32         `cbor:"v"`
	Instructions []uint32       `cbor:"i"`
	Constants    []Const        `cbor:"c"`
	Arena        []byte         `cbor:"a"`
	Functions    map[string]int `cbor:"f,omitempty"`
}

// FromBytecode converts compiler output into a freezable chunk.
// Constants carrying live Go payloads cannot be frozen.
func FromBytecode(bc *vm.Bytecode) (*Chunk, error) {
	consts := make([]Const, len(bc.Constants))
	for i, c := range bc.Constants {
		if c.Opaque != nil {
			return nil, fmt.Errorf("frozen: constant %d holds an unfreezable %T payload", i, c.Opaque)
		}
		consts[i] = Const{Type: uint8(c.Type), Data: c.Data}
	}
	return &Chunk{
		Format:       FormatVersion,
		Instructions: bc.Instructions,
		Constants:    consts,
		Arena:        bc.Arena,
		Functions:    bc.Functions,
	}, nil
}

// Bytecode reconstructs executable bytecode from the chunk.
func (c *Chunk) Bytecode() *vm.Bytecode {
	consts := make([]value.Value, len(c.Constants))
	for i, k := range c.Constants {
		consts[i] = value.Value{Type: value.Type(k.Type), Data: k.Data}
	}
	return &vm.Bytecode{
		Instructions: c.Instructions,
		Constants:    consts,
		Arena:        c.Arena,
		Functions:    c.Functions,
	}
}

// Marshal serializes a Chunk to CBOR bytes.
func Marshal(c *Chunk) ([]byte, error) {
	return cborEncMode.Marshal(c)
}

// Unmarshal deserializes a Chunk from CBOR bytes.
func Unmarshal(data []byte) (*Chunk, error) {
	var c Chunk
	if err := cbor.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("frozen: unmarshal chunk: %w", err)
	}
	if c.Format != FormatVersion {
		return nil, fmt.Errorf("%w: version %d", ErrBadFormat, c.Format)
	}
	return &c, nil
}

// Compile is a convenience that freezes bytecode in one step.
func Compile(bc *vm.Bytecode) ([]byte, error) {
	c, err := FromBytecode(bc)
	if err != nil {
		return nil, err
	}
	return Marshal(c)
}
