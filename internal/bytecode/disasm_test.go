package bytecode

import (
	"bytes"
	"strings"
	"testing"
)

func testProto() *Proto {
	inner := &Proto{
		Source:       "test",
		LineDefined:  2,
		NumParams:    1,
		MaxStackSize: 2,
		Code: []Instruction{
			CreateABC(OpReturn, 0, 1, 0),
		},
		Lines:    []int32{3},
		Upvalues: []UpvalueDesc{{Name: "x", InStack: true, Index: 0}},
	}
	return &Proto{
		Source:       "test",
		IsVararg:     true,
		MaxStackSize: 2,
		Code: []Instruction{
			CreateABx(OpLoadK, 0, 0),
			CreateABx(OpClosure, 1, 0),
			CreateAsBx(OpJmp, 0, -2),
			CreateABC(OpReturn, 0, 1, 0),
		},
		Lines:     []int32{1, 2, 4, 4},
		Constants: []Value{"hello"},
		Protos:    []*Proto{inner},
	}
}

func TestDisassembleProto(t *testing.T) {
	var buf bytes.Buffer
	d := NewDisassembler(&buf)
	if err := d.DisassembleProto("main", testProto()); err != nil {
		t.Fatalf("disassemble: %v", err)
	}
	out := buf.String()

	for _, want := range []string{
		"func main <test:0> (params=0+, stack=2, upvalues=0, constants=1)",
		"LOADK",
		`"hello"`,
		"CLOSURE",
		"RETURN",
		"func main:<0> <test:2>",
		"upvalue 0\tx\t; local 0 of enclosing function",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in output:\n%s", want, out)
		}
	}
}

func TestDisassembleJumpTarget(t *testing.T) {
	out := Dump(testProto())
	// the JMP at pc 3 with offset -2 lands on pc 2 (1-based)
	if !strings.Contains(out, "to 2") {
		t.Fatalf("expected jump annotation, got:\n%s", out)
	}
}

func TestDisassembleNil(t *testing.T) {
	d := NewDisassembler(&bytes.Buffer{})
	if err := d.DisassembleProto("x", nil); err == nil {
		t.Fatalf("expected error for nil prototype")
	}
}

func TestDisassembleVisitsEachProtoOnce(t *testing.T) {
	p := testProto()
	var buf bytes.Buffer
	d := NewDisassembler(&buf)
	if err := d.DisassembleProto("a", p); err != nil {
		t.Fatalf("first pass: %v", err)
	}
	before := buf.Len()
	if err := d.DisassembleProto("b", p); err != nil {
		t.Fatalf("second pass: %v", err)
	}
	if buf.Len() != before {
		t.Fatalf("prototype dumped twice")
	}
}
