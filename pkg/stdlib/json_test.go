package stdlib_test

import (
	"testing"

	"github.com/agenthands/nfreeze/pkg/core/value"
	"github.com/agenthands/nfreeze/pkg/runtime"
	"github.com/agenthands/nfreeze/pkg/stdlib"
	"github.com/agenthands/nfreeze/pkg/vm"
)

func TestJSONGet(t *testing.T) {
	m := &vm.Machine{}
	pushStr(m, `{"name": "demo", "count": 3, "ratio": 0.5, "on": true, "none": null}`)
	pushStr(m, "name")
	if err := stdlib.JSONGet(m); err != nil {
		t.Fatalf("JSONGet failed: %v", err)
	}
	if got := value.UnpackString(m.Pop().Data, m.Arena); got != "demo" {
		t.Errorf("expected %q, got %q", "demo", got)
	}

	doc := `{"count": 3, "ratio": 0.5, "on": true}`

	m.Reset()
	m.Arena = m.Arena[:0]
	pushStr(m, doc)
	pushStr(m, "count")
	if err := stdlib.JSONGet(m); err != nil {
		t.Fatal(err)
	}
	if res := m.Pop(); res.Type != value.TypeInt || res.Int() != 3 {
		t.Errorf("whole numbers decode as ints, got %v", res)
	}

	m.Reset()
	m.Arena = m.Arena[:0]
	pushStr(m, doc)
	pushStr(m, "ratio")
	if err := stdlib.JSONGet(m); err != nil {
		t.Fatal(err)
	}
	if res := m.Pop(); res.Type != value.TypeFloat || res.Float() != 0.5 {
		t.Errorf("fractions decode as floats, got %v", res)
	}

	m.Reset()
	m.Arena = m.Arena[:0]
	pushStr(m, doc)
	pushStr(m, "missing")
	if err := stdlib.JSONGet(m); err != nil {
		t.Fatal(err)
	}
	if res := m.Pop(); res.Type != value.TypeVoid {
		t.Errorf("missing keys yield None, got %v", res)
	}
}

func TestJSONModuleViaInterp(t *testing.T) {
	reg := runtime.NewRegistry()
	if err := reg.AppendInittab(stdlib.JSONModule()); err != nil {
		t.Fatal(err)
	}
	i := runtime.New(runtime.Config{}, reg)
	if err := i.Initialize(); err != nil {
		t.Fatal(err)
	}
	if err := i.Import("json"); err != nil {
		t.Fatalf("extension import failed: %v", err)
	}

	// json_get('{"n": 7}', "n") against the interpreter's host table.
	doc := `{"n": 7}`
	key := "n"
	arena := append([]byte(doc), key...)
	bc := &vm.Bytecode{
		Instructions: []uint32{
			(uint32(vm.OP_PUSH_C) << 24) | 0,
			(uint32(vm.OP_PUSH_C) << 24) | 1,
			(uint32(vm.OP_SYSCALL) << 24) | stdlib.JSONBuiltins["json_get"],
			uint32(vm.OP_HALT) << 24,
		},
		Constants: []value.Value{
			{Type: value.TypeString, Data: value.PackString(0, uint32(len(doc)))},
			{Type: value.TypeString, Data: value.PackString(uint32(len(doc)), uint32(len(key)))},
		},
		Arena: arena,
	}

	res, err := i.Eval(bc)
	if err != nil {
		t.Fatalf("Eval failed: %v", err)
	}
	if res.Type != value.TypeInt || res.Int() != 7 {
		t.Errorf("expected Int 7, got %+v", res)
	}
}

func TestJSONGetMalformed(t *testing.T) {
	m := &vm.Machine{}
	pushStr(m, "{not json")
	pushStr(m, "k")
	if err := stdlib.JSONGet(m); err == nil {
		t.Fatalf("expected error for malformed document")
	}
}
