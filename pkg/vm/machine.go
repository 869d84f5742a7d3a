package vm

import (
	"errors"
	"fmt"
	"runtime"

	"github.com/agenthands/nfreeze/pkg/core/value"
)

var (
	ErrStackOverflow  = errors.New("vm: stack overflow")
	ErrStackUnderflow = errors.New("vm: stack underflow")
	ErrGasExhausted   = errors.New("vm: gas exhausted")
	ErrArenaExhausted = errors.New("vm: arena limit exceeded")
	ErrNoImporter     = errors.New("vm: no importer installed")
	ErrMachineFault   = errors.New("vm: machine fault")
)

// HostFunction is a Go function registered to the VM.
type HostFunction func(m *Machine) error

// Importer resolves a module name on behalf of executing code. The VM
// itself has no import policy; the embedding runtime installs one.
type Importer func(name string) error

// Raised is an error raised by executed code, as opposed to a machine fault.
type Raised struct {
	Msg string
}

func (r *Raised) Error() string { return r.Msg }

const (
	StackDepth = 128
	MaxFrames  = 32
	MaxLocals  = 32
	MaxArena   = 16 << 20
)

// Frame tracks local variables and the return address for a call.
type Frame struct {
	ReturnIP int
	Locals   [MaxLocals]value.Value
}

// Machine executes one module's bytecode.
// It uses fixed-size arrays to ensure a predictable memory footprint.
type Machine struct {
	Stack [StackDepth]value.Value
	SP    int // Stack Pointer

	Frames [MaxFrames]Frame
	FP     int // Frame Pointer

	IP   int      // Instruction Pointer
	Code []uint32 // Bytecode instructions

	Constants []value.Value // Constant pool

	// Arena for string data
	Arena []byte

	HostRegistry []HostFunction
	Importer     Importer
}

// Load installs a compiled module into the machine.
func (m *Machine) Load(bc *Bytecode) {
	m.Code = bc.Instructions
	m.Constants = bc.Constants
	m.Arena = bc.Arena
	m.IP = 0
}

// Reset clears the machine state for reuse.
func (m *Machine) Reset() {
	m.SP = 0
	m.IP = 0
	m.FP = 0

	// Zero out the stack to avoid data leakage between runs
	for i := range m.Stack {
		m.Stack[i] = value.Value{}
	}

	for i := range m.Frames {
		m.Frames[i] = Frame{}
	}
}

// BindHost installs a host function at a fixed syscall index.
func (m *Machine) BindHost(idx uint32, fn HostFunction) {
	for uint32(len(m.HostRegistry)) <= idx {
		m.HostRegistry = append(m.HostRegistry, nil)
	}
	m.HostRegistry[idx] = fn
}

// Push adds a value to the stack. Panics on overflow.
func (m *Machine) Push(v value.Value) {
	if m.SP >= StackDepth {
		panic(ErrStackOverflow)
	}
	m.Stack[m.SP] = v
	m.SP++
}

// Pop removes and returns the top value from the stack. Panics on underflow.
func (m *Machine) Pop() value.Value {
	if m.SP <= 0 {
		panic(ErrStackUnderflow)
	}
	m.SP--
	return m.Stack[m.SP]
}

// WriteArena appends data to the string arena and returns its offset.
func (m *Machine) WriteArena(data []byte) (uint32, error) {
	if len(m.Arena)+len(data) > MaxArena {
		return 0, ErrArenaExhausted
	}
	offset := uint32(len(m.Arena))
	m.Arena = append(m.Arena, data...)
	return offset, nil
}

// PushString copies a Go string into the arena and pushes it.
func (m *Machine) PushString(s string) error {
	offset, err := m.WriteArena([]byte(s))
	if err != nil {
		return err
	}
	m.Push(value.Value{Type: value.TypeString, Data: value.PackString(offset, uint32(len(s)))})
	return nil
}

// Run executes instructions until HALT, error, or gas exhaustion.
func (m *Machine) Run(gasLimit int) (err error) {
	// Convert internal stack panics to errors
	defer func() {
		if r := recover(); r != nil {
			if e, ok := r.(error); ok && (e == ErrStackOverflow || e == ErrStackUnderflow) {
				err = e
				return
			}

			// Go runtime faults (index out of range) while decoding
			// malformed bytecode: bad jump targets, frame overflow,
			// stack accesses past the pointers.
			if _, ok := r.(runtime.Error); ok {
				err = fmt.Errorf("%w: %v", ErrMachineFault, r)
				return
			}

			panic(r)
		}
	}()

	// Cache hot fields in locals for register allocation
	ip := m.IP
	sp := m.SP
	fp := m.FP
	code := m.Code

	sync := func() {
		m.IP = ip
		m.SP = sp
		m.FP = fp
	}

	for i := 0; i < gasLimit; i++ {
		instr := code[ip]
		op := uint8(instr >> 24)
		arg := instr & 0x00FFFFFF

		switch op {
		case OP_HALT:
			sync()
			return nil

		case OP_NOOP:
			ip++

		case OP_PUSH_C:
			m.Stack[sp] = m.Constants[arg]
			sp++
			ip++

		case OP_PUSH_L:
			m.Stack[sp] = m.Frames[fp].Locals[arg]
			sp++
			ip++

		case OP_POP_L:
			if sp <= 0 {
				sync()
				return fmt.Errorf("vm: stack underflow at POP_L index %d (IP: %d)", arg, ip)
			}
			m.Frames[fp].Locals[arg] = m.Stack[sp-1]
			sp--
			ip++

		case OP_DUP:
			m.Stack[sp] = m.Stack[sp-1-int(arg)]
			sp++
			ip++

		case OP_DROP:
			sp--
			ip++

		case OP_ADD, OP_SUB, OP_MUL, OP_DIV, OP_MOD:
			bv := m.Stack[sp-1]
			av := m.Stack[sp-2]
			if av.Type == value.TypeFloat || bv.Type == value.TypeFloat {
				res, ferr := floatArith(op, av.Float(), bv.Float())
				if ferr != nil {
					sync()
					return ferr
				}
				m.Stack[sp-2] = value.Float(res)
			} else {
				res, ierr := intArith(op, av.Int(), bv.Int())
				if ierr != nil {
					sync()
					return ierr
				}
				m.Stack[sp-2] = value.Int(res)
			}
			sp--
			ip++

		case OP_EQ, OP_NE:
			bv := m.Stack[sp-1]
			av := m.Stack[sp-2]
			var eq bool
			if av.Type == value.TypeString && bv.Type == value.TypeString {
				eq = value.UnpackString(av.Data, m.Arena) == value.UnpackString(bv.Data, m.Arena)
			} else {
				eq = av.Data == bv.Data
			}
			if op == OP_NE {
				eq = !eq
			}
			m.Stack[sp-2] = value.Bool(eq)
			sp--
			ip++

		case OP_GT, OP_LT, OP_GTE, OP_LTE:
			b := m.Stack[sp-1].Int()
			a := m.Stack[sp-2].Int()
			var res bool
			switch op {
			case OP_GT:
				res = a > b
			case OP_LT:
				res = a < b
			case OP_GTE:
				res = a >= b
			case OP_LTE:
				res = a <= b
			}
			m.Stack[sp-2] = value.Bool(res)
			sp--
			ip++

		case OP_JMP:
			ip = int(arg)

		case OP_JMP_FALSE:
			cond := m.Stack[sp-1]
			sp--
			if !cond.Truthy() {
				ip = int(arg)
			} else {
				ip++
			}

		case OP_CALL:
			// arg packs (target IP << 8) | argument count
			target := int(arg >> 8)
			nargs := int(arg & 0xFF)
			m.Frames[fp+1].ReturnIP = ip + 1
			for j := nargs - 1; j >= 0; j-- {
				sp--
				m.Frames[fp+1].Locals[j] = m.Stack[sp]
			}
			fp++
			ip = target

		case OP_RET:
			ip = m.Frames[fp].ReturnIP
			fp--

		case OP_RAISE:
			// ( msg -- )
			msg := value.UnpackString(m.Stack[sp-1].Data, m.Arena)
			sp--
			sync()
			return &Raised{Msg: msg}

		case OP_IMPORT:
			name := value.UnpackString(m.Constants[arg].Data, m.Arena)
			sync()
			if m.Importer == nil {
				return ErrNoImporter
			}
			if err := m.Importer(name); err != nil {
				return err
			}
			sp = m.SP
			ip++

		case OP_SYSCALL:
			if int(arg) >= len(m.HostRegistry) || m.HostRegistry[arg] == nil {
				sync()
				return fmt.Errorf("vm: unknown syscall %d", arg)
			}

			// Sync machine state before the host call
			sync()

			if err := m.HostRegistry[arg](m); err != nil {
				return err
			}

			// Host calls may grow the stack or arena
			sp = m.SP
			ip = m.IP
			ip++

		default:
			sync()
			return fmt.Errorf("vm: unknown opcode 0x%02x", op)
		}
	}

	sync()
	return ErrGasExhausted
}

func intArith(op uint8, a, b int64) (int64, error) {
	switch op {
	case OP_ADD:
		return a + b, nil
	case OP_SUB:
		return a - b, nil
	case OP_MUL:
		return a * b, nil
	case OP_DIV:
		if b == 0 {
			return 0, errors.New("vm: division by zero")
		}
		return a / b, nil
	case OP_MOD:
		if b == 0 {
			return 0, errors.New("vm: division by zero")
		}
		return a % b, nil
	}
	return 0, fmt.Errorf("vm: bad arithmetic opcode 0x%02x", op)
}

func floatArith(op uint8, a, b float64) (float64, error) {
	switch op {
	case OP_ADD:
		return a + b, nil
	case OP_SUB:
		return a - b, nil
	case OP_MUL:
		return a * b, nil
	case OP_DIV:
		if b == 0 {
			return 0, errors.New("vm: division by zero")
		}
		return a / b, nil
	case OP_MOD:
		return 0, errors.New("vm: modulo of float")
	}
	return 0, fmt.Errorf("vm: bad arithmetic opcode 0x%02x", op)
}
