package bytecode

import "fmt"

// Instruction is one 32-bit instruction word. Three layouts share the
// low 6-bit opcode field:
//
//	iABC:  C(9) B(9) A(8) Op(6)
//	iABx:  Bx(18)    A(8) Op(6)
//	iAsBx: sBx(18)   A(8) Op(6)  (sBx is Bx excess-MaxArgSBx)
type Instruction uint32

const (
	sizeOp = 6
	sizeA  = 8
	sizeB  = 9
	sizeC  = 9
	sizeBx = sizeB + sizeC

	posOp = 0
	posA  = posOp + sizeOp
	posC  = posA + sizeA
	posB  = posC + sizeC
	posBx = posC
)

// Operand field limits.
const (
	MaxArgA   = 1<<sizeA - 1
	MaxArgB   = 1<<sizeB - 1
	MaxArgC   = 1<<sizeC - 1
	MaxArgBx  = 1<<sizeBx - 1
	MaxArgSBx = MaxArgBx >> 1
)

// BitRK marks a B or C operand as a constant-pool index instead of a
// register. MaxIndexRK is the largest constant index reachable that way.
const (
	BitRK      = 1 << (sizeB - 1)
	MaxIndexRK = BitRK - 1
)

// IsConstant reports whether an RK operand refers to the constant pool.
func IsConstant(rk int) bool { return rk&BitRK != 0 }

// ConstantIndex recovers the constant-pool index from an RK operand.
func ConstantIndex(rk int) int { return rk & ^BitRK }

// AsConstant encodes a constant-pool index as an RK operand.
func AsConstant(index int) int { return index | BitRK }

// CreateABC builds an iABC instruction.
func CreateABC(op OpCode, a, b, c int) Instruction {
	return Instruction(op)<<posOp |
		Instruction(a)<<posA |
		Instruction(b)<<posB |
		Instruction(c)<<posC
}

// CreateABx builds an iABx instruction.
func CreateABx(op OpCode, a, bx int) Instruction {
	return Instruction(op)<<posOp |
		Instruction(a)<<posA |
		Instruction(bx)<<posBx
}

// CreateAsBx builds an iAsBx instruction; sbx may be negative.
func CreateAsBx(op OpCode, a, sbx int) Instruction {
	return CreateABx(op, a, sbx+MaxArgSBx)
}

func (i Instruction) OpCode() OpCode { return OpCode(i >> posOp & (1<<sizeOp - 1)) }
func (i Instruction) A() int         { return int(i >> posA & (1<<sizeA - 1)) }
func (i Instruction) B() int         { return int(i >> posB & (1<<sizeB - 1)) }
func (i Instruction) C() int         { return int(i >> posC & (1<<sizeC - 1)) }
func (i Instruction) Bx() int        { return int(i >> posBx & (1<<sizeBx - 1)) }
func (i Instruction) SBx() int       { return i.Bx() - MaxArgSBx }

func (i *Instruction) SetOpCode(op OpCode) { i.setField(int(op), posOp, sizeOp) }
func (i *Instruction) SetA(a int)          { i.setField(a, posA, sizeA) }
func (i *Instruction) SetB(b int)          { i.setField(b, posB, sizeB) }
func (i *Instruction) SetC(c int)          { i.setField(c, posC, sizeC) }
func (i *Instruction) SetBx(bx int)        { i.setField(bx, posBx, sizeBx) }
func (i *Instruction) SetSBx(sbx int)      { i.SetBx(sbx + MaxArgSBx) }

func (i *Instruction) setField(v, pos, size int) {
	mask := Instruction(1<<size-1) << pos
	*i = *i&^mask | Instruction(v)<<pos&mask
}

// String renders the instruction in disassembly form without context
// (no constant values, no jump targets).
func (i Instruction) String() string {
	op := i.OpCode()
	switch opInfo[op].mode {
	case modeABx:
		return fmt.Sprintf("%-9s %d %d", op, i.A(), i.Bx())
	case modeAsBx:
		return fmt.Sprintf("%-9s %d %d", op, i.A(), i.SBx())
	default:
		return fmt.Sprintf("%-9s %d %d %d", op, i.A(), i.B(), i.C())
	}
}
