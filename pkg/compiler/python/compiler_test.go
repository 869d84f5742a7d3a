package python

import (
	"testing"

	"github.com/agenthands/nfreeze/pkg/core/value"
	"github.com/agenthands/nfreeze/pkg/vm"
)

func runSrc(t *testing.T, src string) *vm.Machine {
	t.Helper()
	c := NewCompiler()
	bc, err := c.Compile(src)
	if err != nil {
		t.Fatalf("compile failed: %v", err)
	}
	m := &vm.Machine{}
	m.Load(bc)
	if err := m.Run(10000); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	return m
}

func TestCompilerBasics(t *testing.T) {
	t.Run("Arithmetic", func(t *testing.T) {
		m := runSrc(t, "x = 1 + 2 * 3")
		if got := m.Frames[0].Locals[0].Int(); got != 7 {
			t.Errorf("expected 7, got %d", got)
		}
	})

	t.Run("AugAssign", func(t *testing.T) {
		m := runSrc(t, "x = 10\nx += 5\nx -= 3")
		if got := m.Frames[0].Locals[0].Int(); got != 12 {
			t.Errorf("expected 12, got %d", got)
		}
	})

	t.Run("Unary", func(t *testing.T) {
		m := runSrc(t, "x = -10")
		if got := m.Frames[0].Locals[0].Int(); got != -10 {
			t.Errorf("expected -10, got %d", got)
		}
	})

	t.Run("Comparisons", func(t *testing.T) {
		m := runSrc(t, "x = 3 > 2")
		if !m.Frames[0].Locals[0].Truthy() {
			t.Errorf("expected True")
		}
	})

	t.Run("StringConstants", func(t *testing.T) {
		c := NewCompiler()
		bc, err := c.Compile(`a = "dup"` + "\n" + `b = "dup"`)
		if err != nil {
			t.Fatal(err)
		}
		// Identical literals share one arena region.
		if len(bc.Arena) != 3 {
			t.Errorf("expected interned arena of 3 bytes, got %d", len(bc.Arena))
		}
	})
}

func TestCompilerControlFlow(t *testing.T) {
	t.Run("IfElse", func(t *testing.T) {
		m := runSrc(t, `
if 1 > 2:
    x = 1
else:
    x = 2
`)
		if got := m.Frames[0].Locals[0].Int(); got != 2 {
			t.Errorf("expected 2, got %d", got)
		}
	})

	t.Run("WhileBreak", func(t *testing.T) {
		m := runSrc(t, `
n = 0
while True:
    n += 1
    if n >= 5:
        break
`)
		if got := m.Frames[0].Locals[0].Int(); got != 5 {
			t.Errorf("expected 5, got %d", got)
		}
	})

	t.Run("WhileCountdown", func(t *testing.T) {
		m := runSrc(t, `
n = 5
total = 0
while n > 0:
    total += n
    n -= 1
`)
		if got := m.Frames[0].Locals[1].Int(); got != 15 {
			t.Errorf("expected 15, got %d", got)
		}
	})
}

func TestCompilerFunctions(t *testing.T) {
	m := runSrc(t, `
def add(a, b):
    return a + b
res = add(add(1, 2), 3)
`)
	// 'res' allocates after the function body restores module locals.
	found := false
	for _, l := range m.Frames[0].Locals {
		if l.Type == value.TypeInt && l.Int() == 6 {
			found = true
		}
	}
	if !found {
		t.Errorf("expected 6 in module locals")
	}
}

func TestCompilerFunctionArity(t *testing.T) {
	c := NewCompiler()
	_, err := c.Compile(`
def f(a):
    return a
f(1, 2)
`)
	if err == nil {
		t.Fatalf("expected arity error")
	}
}

func TestCompilerRaise(t *testing.T) {
	c := NewCompiler()
	bc, err := c.Compile(`raise RuntimeError("boom")`)
	if err != nil {
		t.Fatalf("compile failed: %v", err)
	}
	m := &vm.Machine{}
	m.Load(bc)
	err = m.Run(100)
	raised, ok := err.(*vm.Raised)
	if !ok {
		t.Fatalf("expected Raised, got %v", err)
	}
	if raised.Msg != "boom" {
		t.Errorf("expected %q, got %q", "boom", raised.Msg)
	}
}

func TestCompilerImport(t *testing.T) {
	c := NewCompiler()
	bc, err := c.Compile("import helpers\nimport other")
	if err != nil {
		t.Fatalf("compile failed: %v", err)
	}
	m := &vm.Machine{}
	m.Load(bc)
	var names []string
	m.Importer = func(n string) error {
		names = append(names, n)
		return nil
	}
	if err := m.Run(100); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if len(names) != 2 || names[0] != "helpers" || names[1] != "other" {
		t.Errorf("unexpected import sequence %v", names)
	}
}

func TestCompilerBind(t *testing.T) {
	c := NewCompiler()
	c.Bind(map[string]uint32{"fetch": 40})
	bc, err := c.Compile(`x = fetch("u")`)
	if err != nil {
		t.Fatalf("compile failed: %v", err)
	}
	m := &vm.Machine{}
	m.Load(bc)
	hit := false
	m.BindHost(40, func(m *vm.Machine) error {
		hit = true
		m.Pop()
		m.Push(value.Int(1))
		return nil
	})
	if err := m.Run(100); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if !hit {
		t.Errorf("bound builtin was not dispatched")
	}
}

func TestCompilerErrors(t *testing.T) {
	badSrcs := []string{
		"x, y = 1, 2",   // only single assignment
		"unknown()",     // unknown function
		"break",         // break outside loop
		"continue",      // continue outside loop
		"for i in x: pass",
	}
	for _, s := range badSrcs {
		c := NewCompiler()
		if _, err := c.Compile(s); err == nil {
			t.Errorf("expected error for %q", s)
		}
	}
}
