package bytecode

import (
	"strings"
	"testing"
)

func TestInstructionABCRoundTrip(t *testing.T) {
	i := CreateABC(OpGetTable, MaxArgA, MaxArgB, MaxArgC)
	if i.OpCode() != OpGetTable {
		t.Fatalf("opcode: got %v", i.OpCode())
	}
	if i.A() != MaxArgA || i.B() != MaxArgB || i.C() != MaxArgC {
		t.Fatalf("fields: got A=%d B=%d C=%d", i.A(), i.B(), i.C())
	}
}

func TestInstructionABxRoundTrip(t *testing.T) {
	i := CreateABx(OpLoadK, 7, MaxArgBx)
	if i.OpCode() != OpLoadK || i.A() != 7 || i.Bx() != MaxArgBx {
		t.Fatalf("got op=%v A=%d Bx=%d", i.OpCode(), i.A(), i.Bx())
	}
}

func TestInstructionSBx(t *testing.T) {
	for _, sbx := range []int{0, 1, -1, 1000, -1000, MaxArgSBx, -MaxArgSBx} {
		i := CreateAsBx(OpJmp, 0, sbx)
		if i.SBx() != sbx {
			t.Fatalf("sBx %d: got %d", sbx, i.SBx())
		}
	}
}

func TestInstructionSetters(t *testing.T) {
	i := CreateABC(OpCall, 1, 2, 3)
	i.SetA(9)
	i.SetB(8)
	i.SetC(7)
	if i.A() != 9 || i.B() != 8 || i.C() != 7 {
		t.Fatalf("after setters: A=%d B=%d C=%d", i.A(), i.B(), i.C())
	}
	i.SetOpCode(OpTailCall)
	if i.OpCode() != OpTailCall {
		t.Fatalf("after SetOpCode: %v", i.OpCode())
	}
	j := CreateAsBx(OpJmp, 0, 5)
	j.SetSBx(-5)
	if j.SBx() != -5 {
		t.Fatalf("after SetSBx: %d", j.SBx())
	}
}

func TestRKEncoding(t *testing.T) {
	k := AsConstant(3)
	if !IsConstant(k) {
		t.Fatalf("AsConstant(3) not marked constant")
	}
	if ConstantIndex(k) != 3 {
		t.Fatalf("constant index: got %d", ConstantIndex(k))
	}
	if IsConstant(MaxIndexRK) {
		t.Fatalf("plain register mistaken for constant")
	}
}

func TestOpCodeNames(t *testing.T) {
	tests := map[OpCode]string{
		OpMove:     "MOVE",
		OpLoadK:    "LOADK",
		OpSetList:  "SETLIST",
		OpTailCall: "TAILCALL",
		OpVararg:   "VARARG",
	}
	for op, name := range tests {
		if op.String() != name {
			t.Fatalf("%d: expected %s, got %s", op, name, op.String())
		}
	}
	if !strings.Contains(OpCode(63).String(), "UNKNOWN") {
		t.Fatalf("out-of-range opcode should render as unknown")
	}
}

func TestTestMode(t *testing.T) {
	for _, op := range []OpCode{OpEq, OpLt, OpLe, OpTest, OpTestSet, OpTForLoop} {
		if !TestMode(op) {
			t.Fatalf("%v should be a test instruction", op)
		}
	}
	for _, op := range []OpCode{OpMove, OpJmp, OpCall, OpReturn} {
		if TestMode(op) {
			t.Fatalf("%v should not be a test instruction", op)
		}
	}
}
