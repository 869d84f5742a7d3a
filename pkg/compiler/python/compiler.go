// Package python compiles the Python subset used by frozen modules into
// nfreeze bytecode. Parsing is delegated to the gpython front end; code
// generation targets the fixed-register stack machine in pkg/vm.
package python

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/go-python/gpython/ast"
	"github.com/go-python/gpython/parser"
	"github.com/go-python/gpython/py"

	"github.com/agenthands/nfreeze/pkg/core/value"
	"github.com/agenthands/nfreeze/pkg/vm"
)

// Builtins maps callable names to syscall indices. Extension modules
// merge their own tables in before compiling code that uses them.
var Builtins = map[string]uint32{
	"print": 0,
	"len":   1,
	"str":   2,
	"int":   3,
	"abs":   4,
	"bool":  5,
}

// variadic builtins receive an extra argument-count operand.
var variadic = map[string]bool{
	"print": true,
}

type funcSignature struct {
	ip   int
	args []string
}

type loopContext struct {
	startIP    uint32
	breakJumps []int
}

// Compiler lowers a parsed module to bytecode. Not safe for concurrent use.
type Compiler struct {
	instructions  []uint32
	constants     []value.Value
	arena         []byte
	stringOffsets map[string]uint32
	locals        map[string]int
	nextLocal     int
	functions     map[string]*funcSignature
	loops         []*loopContext
	builtins      map[string]uint32
}

func NewCompiler() *Compiler {
	return &Compiler{
		locals:        make(map[string]int),
		constants:     make([]value.Value, 0),
		arena:         make([]byte, 0, 1024),
		stringOffsets: make(map[string]uint32),
		functions:     make(map[string]*funcSignature),
		loops:         make([]*loopContext, 0),
		builtins:      Builtins,
	}
}

// Bind overlays extra builtin bindings for this compiler instance.
func (c *Compiler) Bind(extra map[string]uint32) {
	merged := make(map[string]uint32, len(c.builtins)+len(extra))
	for k, v := range c.builtins {
		merged[k] = v
	}
	for k, v := range extra {
		merged[k] = v
	}
	c.builtins = merged
}

func (c *Compiler) Compile(src string) (*vm.Bytecode, error) {
	c.instructions = c.instructions[:0]
	c.constants = c.constants[:0]
	c.locals = make(map[string]int)
	c.nextLocal = 0
	c.loops = c.loops[:0]
	c.arena = c.arena[:0]
	c.stringOffsets = make(map[string]uint32)
	c.functions = make(map[string]*funcSignature)

	mod, err := parser.Parse(strings.NewReader(src), "<frozen>", py.ExecMode)
	if err != nil {
		return nil, fmt.Errorf("python parse error: %w", err)
	}

	module, ok := mod.(*ast.Module)
	if !ok {
		return nil, fmt.Errorf("expected *ast.Module, got %T", mod)
	}

	for _, stmt := range module.Body {
		if err := c.emitStmt(stmt); err != nil {
			return nil, err
		}
	}
	c.emitOp(vm.OP_HALT, 0)

	return &vm.Bytecode{
		Instructions: c.instructions,
		Constants:    c.constants,
		Arena:        c.arena,
		Functions:    c.exportFunctions(),
	}, nil
}

func (c *Compiler) exportFunctions() map[string]int {
	res := make(map[string]int)
	for k, v := range c.functions {
		res[k] = v.ip
	}
	return res
}

func (c *Compiler) emitOp(op uint8, arg uint32) {
	c.instructions = append(c.instructions, (uint32(op)<<24)|(arg&0x00FFFFFF))
}

func (c *Compiler) patchJump(idx int, op uint8) {
	c.instructions[idx] = (uint32(op) << 24) | (uint32(len(c.instructions)) & 0x00FFFFFF)
}

func (c *Compiler) addConstant(v value.Value) uint32 {
	for i, existing := range c.constants {
		if existing.Type == v.Type && existing.Data == v.Data {
			return uint32(i)
		}
	}
	c.constants = append(c.constants, v)
	return uint32(len(c.constants) - 1)
}

func (c *Compiler) stringConst(s string) uint32 {
	return c.addConstant(value.Value{Type: value.TypeString, Data: c.packNewString(s)})
}

func (c *Compiler) packNewString(s string) uint64 {
	if offset, ok := c.stringOffsets[s]; ok {
		return value.PackString(offset, uint32(len(s)))
	}
	offset := uint32(len(c.arena))
	c.arena = append(c.arena, []byte(s)...)
	c.stringOffsets[s] = offset
	return value.PackString(offset, uint32(len(s)))
}

func (c *Compiler) getLocalIndex(name string) int {
	if idx, ok := c.locals[name]; ok {
		return idx
	}
	idx := c.nextLocal
	c.locals[name] = idx
	c.nextLocal++
	return idx
}

func (c *Compiler) emitStmt(stmt ast.Stmt) error {
	switch s := stmt.(type) {
	case *ast.Assign:
		if len(s.Targets) != 1 {
			return fmt.Errorf("only single assignment supported")
		}
		target, ok := s.Targets[0].(*ast.Name)
		if !ok {
			return fmt.Errorf("unsupported assignment target %T", s.Targets[0])
		}
		if err := c.emitExpr(s.Value); err != nil {
			return err
		}
		c.emitOp(vm.OP_POP_L, uint32(c.getLocalIndex(string(target.Id))))

	case *ast.AugAssign:
		name, ok := s.Target.(*ast.Name)
		if !ok {
			return fmt.Errorf("unsupported augmented target %T", s.Target)
		}
		idx := uint32(c.getLocalIndex(string(name.Id)))
		c.emitOp(vm.OP_PUSH_L, idx)
		if err := c.emitExpr(s.Value); err != nil {
			return err
		}
		if err := c.emitBinOp(s.Op); err != nil {
			return err
		}
		c.emitOp(vm.OP_POP_L, idx)

	case *ast.ExprStmt:
		if err := c.emitExpr(s.Value); err != nil {
			return err
		}
		c.emitOp(vm.OP_DROP, 0)

	case *ast.If:
		if err := c.emitExpr(s.Test); err != nil {
			return err
		}
		jumpFalseIdx := len(c.instructions)
		c.emitOp(vm.OP_JMP_FALSE, 0)
		for _, stmt := range s.Body {
			if err := c.emitStmt(stmt); err != nil {
				return err
			}
		}
		if len(s.Orelse) > 0 {
			jumpEndIdx := len(c.instructions)
			c.emitOp(vm.OP_JMP, 0)
			c.patchJump(jumpFalseIdx, vm.OP_JMP_FALSE)
			for _, stmt := range s.Orelse {
				if err := c.emitStmt(stmt); err != nil {
					return err
				}
			}
			c.patchJump(jumpEndIdx, vm.OP_JMP)
		} else {
			c.patchJump(jumpFalseIdx, vm.OP_JMP_FALSE)
		}

	case *ast.While:
		ctx := &loopContext{startIP: uint32(len(c.instructions))}
		c.loops = append(c.loops, ctx)
		if err := c.emitExpr(s.Test); err != nil {
			return err
		}
		jumpFalseIdx := len(c.instructions)
		c.emitOp(vm.OP_JMP_FALSE, 0)
		for _, stmt := range s.Body {
			if err := c.emitStmt(stmt); err != nil {
				return err
			}
		}
		c.emitOp(vm.OP_JMP, ctx.startIP)
		c.patchJump(jumpFalseIdx, vm.OP_JMP_FALSE)
		for _, idx := range ctx.breakJumps {
			c.patchJump(idx, vm.OP_JMP)
		}
		c.loops = c.loops[:len(c.loops)-1]

	case *ast.Break:
		if len(c.loops) == 0 {
			return fmt.Errorf("break outside loop")
		}
		ctx := c.loops[len(c.loops)-1]
		ctx.breakJumps = append(ctx.breakJumps, len(c.instructions))
		c.emitOp(vm.OP_JMP, 0)

	case *ast.Continue:
		if len(c.loops) == 0 {
			return fmt.Errorf("continue outside loop")
		}
		c.emitOp(vm.OP_JMP, c.loops[len(c.loops)-1].startIP)

	case *ast.FunctionDef:
		jmpIdx := len(c.instructions)
		c.emitOp(vm.OP_JMP, 0)
		args := make([]string, len(s.Args.Args))
		for i, a := range s.Args.Args {
			args[i] = string(a.Arg)
		}
		c.functions[string(s.Name)] = &funcSignature{ip: len(c.instructions), args: args}
		oldL, oldN := c.locals, c.nextLocal
		c.locals = make(map[string]int)
		c.nextLocal = len(args)
		for i, arg := range args {
			c.locals[arg] = i
		}
		for _, stmt := range s.Body {
			if err := c.emitStmt(stmt); err != nil {
				return err
			}
		}
		c.emitOp(vm.OP_PUSH_C, c.addConstant(value.None()))
		c.emitOp(vm.OP_RET, 0)
		c.locals, c.nextLocal = oldL, oldN
		c.patchJump(jmpIdx, vm.OP_JMP)

	case *ast.Return:
		if s.Value != nil {
			if err := c.emitExpr(s.Value); err != nil {
				return err
			}
		} else {
			c.emitOp(vm.OP_PUSH_C, c.addConstant(value.None()))
		}
		c.emitOp(vm.OP_RET, 0)

	case *ast.Import:
		for _, name := range s.Names {
			c.emitOp(vm.OP_IMPORT, c.stringConst(string(name.Name)))
		}

	case *ast.Raise:
		if err := c.emitRaise(s); err != nil {
			return err
		}

	case *ast.Pass:
		c.emitOp(vm.OP_NOOP, 0)

	default:
		return fmt.Errorf("unsupported statement type: %T", stmt)
	}
	return nil
}

// emitRaise lowers raise to OP_RAISE with the message on the stack.
// `raise X("msg")` raises "msg"; a bare name or argument-less call
// raises the exception name itself.
func (c *Compiler) emitRaise(s *ast.Raise) error {
	switch exc := s.Exc.(type) {
	case nil:
		c.emitOp(vm.OP_PUSH_C, c.stringConst("exception"))
	case *ast.Call:
		if len(exc.Args) > 0 {
			if err := c.emitExpr(exc.Args[0]); err != nil {
				return err
			}
		} else if name, ok := exc.Func.(*ast.Name); ok {
			c.emitOp(vm.OP_PUSH_C, c.stringConst(string(name.Id)))
		} else {
			c.emitOp(vm.OP_PUSH_C, c.stringConst("exception"))
		}
	case *ast.Name:
		c.emitOp(vm.OP_PUSH_C, c.stringConst(string(exc.Id)))
	case *ast.Str:
		c.emitOp(vm.OP_PUSH_C, c.stringConst(string(exc.S)))
	default:
		return fmt.Errorf("unsupported raise operand %T", s.Exc)
	}
	c.emitOp(vm.OP_RAISE, 0)
	return nil
}

func (c *Compiler) emitBinOp(op ast.OperatorNumber) error {
	switch op {
	case ast.Add:
		c.emitOp(vm.OP_ADD, 0)
	case ast.Sub:
		c.emitOp(vm.OP_SUB, 0)
	case ast.Mult:
		c.emitOp(vm.OP_MUL, 0)
	case ast.Div, ast.FloorDiv:
		c.emitOp(vm.OP_DIV, 0)
	case ast.Modulo:
		c.emitOp(vm.OP_MOD, 0)
	default:
		return fmt.Errorf("unsupported binary operator %v", op)
	}
	return nil
}

func (c *Compiler) emitExpr(expr ast.Expr) error {
	switch e := expr.(type) {
	case *ast.Num:
		s := fmt.Sprintf("%v", e.N)
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			c.emitOp(vm.OP_PUSH_C, c.addConstant(value.Int(i)))
		} else if f, err := strconv.ParseFloat(s, 64); err == nil {
			c.emitOp(vm.OP_PUSH_C, c.addConstant(value.Value{Type: value.TypeFloat, Data: math.Float64bits(f)}))
		} else {
			return fmt.Errorf("unsupported numeric literal %q", s)
		}

	case *ast.Str:
		c.emitOp(vm.OP_PUSH_C, c.stringConst(string(e.S)))

	case *ast.NameConstant:
		val := value.None()
		if e.Value == py.True {
			val = value.Bool(true)
		} else if e.Value == py.False {
			val = value.Bool(false)
		}
		c.emitOp(vm.OP_PUSH_C, c.addConstant(val))

	case *ast.Name:
		c.emitOp(vm.OP_PUSH_L, uint32(c.getLocalIndex(string(e.Id))))

	case *ast.BinOp:
		if err := c.emitExpr(e.Left); err != nil {
			return err
		}
		if err := c.emitExpr(e.Right); err != nil {
			return err
		}
		return c.emitBinOp(e.Op)

	case *ast.Compare:
		if err := c.emitExpr(e.Left); err != nil {
			return err
		}
		if err := c.emitExpr(e.Comparators[0]); err != nil {
			return err
		}
		switch e.Ops[0] {
		case ast.Eq, ast.Is:
			c.emitOp(vm.OP_EQ, 0)
		case ast.NotEq, ast.IsNot:
			c.emitOp(vm.OP_NE, 0)
		case ast.Gt:
			c.emitOp(vm.OP_GT, 0)
		case ast.Lt:
			c.emitOp(vm.OP_LT, 0)
		case ast.GtE:
			c.emitOp(vm.OP_GTE, 0)
		case ast.LtE:
			c.emitOp(vm.OP_LTE, 0)
		default:
			return fmt.Errorf("unsupported comparison %v", e.Ops[0])
		}

	case *ast.UnaryOp:
		if e.Op != ast.USub {
			return fmt.Errorf("unsupported unary operator %v", e.Op)
		}
		// 0 - x
		c.emitOp(vm.OP_PUSH_C, c.addConstant(value.Int(0)))
		if err := c.emitExpr(e.Operand); err != nil {
			return err
		}
		c.emitOp(vm.OP_SUB, 0)

	case *ast.Call:
		fn, ok := e.Func.(*ast.Name)
		if !ok {
			return fmt.Errorf("unsupported call target %T", e.Func)
		}
		name := string(fn.Id)
		if sysIdx, ok := c.builtins[name]; ok {
			for _, arg := range e.Args {
				if err := c.emitExpr(arg); err != nil {
					return err
				}
			}
			if variadic[name] {
				c.emitOp(vm.OP_PUSH_C, c.addConstant(value.Int(int64(len(e.Args)))))
			}
			c.emitOp(vm.OP_SYSCALL, sysIdx)
			return nil
		}
		if sig, ok := c.functions[name]; ok {
			if len(e.Args) != len(sig.args) {
				return fmt.Errorf("function '%s' expects %d arguments, got %d", name, len(sig.args), len(e.Args))
			}
			for _, arg := range e.Args {
				if err := c.emitExpr(arg); err != nil {
					return err
				}
			}
			c.emitOp(vm.OP_CALL, (uint32(sig.ip)<<8)|(uint32(len(sig.args))&0xFF))
			return nil
		}
		return fmt.Errorf("unknown function '%s'", name)

	default:
		return fmt.Errorf("unsupported expression type: %T", expr)
	}
	return nil
}
