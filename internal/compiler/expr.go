package compiler

import (
	"math"

	"github.com/xirelogy/go-brio/internal/bytecode"
	"github.com/xirelogy/go-brio/internal/token"
)

// multRet requests all results of an open call or vararg expression.
const multRet = -1

// exprKind classifies a parsed expression while it is still in flight.
type exprKind int

const (
	kindVoid     exprKind = iota // no value
	kindNil                      // the literal nil
	kindTrue                     // the literal true
	kindFalse                    // the literal false
	kindConst                    // constant pool entry; info = index
	kindNumInt                   // integer numeral; ival holds the value
	kindNumFlt                   // float numeral; nval holds the value
	kindLocal                    // local variable; info = register
	kindUpval                    // upvalue; info = descriptor index
	kindGlobal                   // global; info = name constant index
	kindIndexed                  // t[k]; info = table register, aux = key RK
	kindJump                     // expression is a test; info = jump pc
	kindReloc                    // result register not yet fixed; info = pc
	kindNonReloc                 // result in a fixed register; info = register
	kindCall                     // open function call; info = pc of CALL
	kindVararg                   // open vararg; info = pc of VARARG
)

// exprDesc describes one expression during compilation. The t and f
// fields thread the pending jump lists produced by short-circuit
// operators and comparisons.
type exprDesc struct {
	kind exprKind
	info int
	aux  int
	ival int64
	nval float64
	t, f int // pending jumps when true / when false
}

func initExp(e *exprDesc, kind exprKind, info int) {
	*e = exprDesc{kind: kind, info: info, t: noJump, f: noJump}
}

func (e *exprDesc) isNumeral() bool {
	return (e.kind == kindNumInt || e.kind == kindNumFlt) && e.t == noJump && e.f == noJump
}

func (e *exprDesc) hasJumps() bool {
	return e.t != e.f
}

// hasMultRet reports whether the expression can still expand to any
// number of results.
func (e *exprDesc) hasMultRet() bool {
	return e.kind == kindCall || e.kind == kindVararg
}

type binOp int

const (
	opAdd binOp = iota
	opSub
	opMul
	opDiv
	opMod
	opPow
	opConcatOp
	opEq
	opNE
	opLT
	opLE
	opGT
	opGE
	opAnd
	opOr
	opNoBinary
)

type unOp int

const (
	opMinus unOp = iota
	opNotOp
	opLen
	opNoUnary
)

func binaryOp(t token.Type) binOp {
	switch t {
	case token.Plus:
		return opAdd
	case token.Minus:
		return opSub
	case token.Star:
		return opMul
	case token.Slash:
		return opDiv
	case token.Percent:
		return opMod
	case token.Caret:
		return opPow
	case token.Concat:
		return opConcatOp
	case token.Equal:
		return opEq
	case token.NotEqual:
		return opNE
	case token.Less:
		return opLT
	case token.LessEqual:
		return opLE
	case token.Greater:
		return opGT
	case token.GreaterEqual:
		return opGE
	case token.And:
		return opAnd
	case token.Or:
		return opOr
	}
	return opNoBinary
}

func unaryOp(t token.Type) unOp {
	switch t {
	case token.Minus:
		return opMinus
	case token.Not:
		return opNotOp
	case token.Hash:
		return opLen
	}
	return opNoUnary
}

// Binding powers. Right < left makes an operator right-associative.
var binaryPriority = [opNoBinary]struct{ left, right int }{
	opAdd:      {6, 6},
	opSub:      {6, 6},
	opMul:      {7, 7},
	opDiv:      {7, 7},
	opMod:      {7, 7},
	opPow:      {10, 9}, // right associative
	opConcatOp: {5, 4},  // right associative
	opEq:       {3, 3},
	opNE:       {3, 3},
	opLT:       {3, 3},
	opLE:       {3, 3},
	opGT:       {3, 3},
	opGE:       {3, 3},
	opAnd:      {2, 2},
	opOr:       {1, 1},
}

const unaryPriority = 8

// prefix applies a unary operator to the expression just parsed.
func (fs *funcState) prefix(op unOp, e *exprDesc, line int) {
	switch op {
	case opMinus:
		if e.isNumeral() {
			if e.kind == kindNumInt {
				e.ival = -e.ival
			} else {
				e.nval = -e.nval
			}
			return
		}
		fs.codeUnary(bytecode.OpUnm, e, line)
	case opNotOp:
		fs.codeNot(e)
	case opLen:
		fs.codeUnary(bytecode.OpLen, e, line)
	}
}

func (fs *funcState) codeUnary(op bytecode.OpCode, e *exprDesc, line int) {
	r := fs.exp2anyReg(e)
	fs.freeExp(e)
	e.info = fs.codeABC(op, 0, r, 0)
	e.kind = kindReloc
	fs.fixLine(line)
}

// infix prepares the left operand before the right one is parsed.
func (fs *funcState) infix(op binOp, e *exprDesc) {
	switch op {
	case opAnd:
		fs.goIfTrue(e)
	case opOr:
		fs.goIfFalse(e)
	case opConcatOp:
		fs.exp2nextReg(e) // operands must stack up for CONCAT
	case opAdd, opSub, opMul, opDiv, opMod, opPow:
		if !e.isNumeral() {
			fs.exp2RK(e)
		}
	default: // comparison
		fs.exp2RK(e)
	}
}

// posfix combines both operands once the right one is complete.
func (fs *funcState) posfix(op binOp, e1, e2 *exprDesc, line int) {
	switch op {
	case opAnd:
		assertf(e1.t == noJump, "unresolved true list in and")
		fs.dischargeVars(e2)
		e2.f = fs.concat(e2.f, e1.f)
		*e1 = *e2
	case opOr:
		assertf(e1.f == noJump, "unresolved false list in or")
		fs.dischargeVars(e2)
		e2.t = fs.concat(e2.t, e1.t)
		*e1 = *e2
	case opConcatOp:
		fs.exp2val(e2)
		if e2.kind == kindReloc && fs.instr(e2).OpCode() == bytecode.OpConcat {
			// fold e1 into the concat chain started by e2
			assertf(e1.info == fs.instr(e2).B()-1, "concat operands not adjacent")
			fs.freeExp(e1)
			fs.instr(e2).SetB(e1.info)
			e1.kind = kindReloc
			e1.info = e2.info
		} else {
			fs.exp2nextReg(e2)
			fs.codeArith(bytecode.OpConcat, e1, e2, line)
		}
	case opAdd:
		fs.codeArith(bytecode.OpAdd, e1, e2, line)
	case opSub:
		fs.codeArith(bytecode.OpSub, e1, e2, line)
	case opMul:
		fs.codeArith(bytecode.OpMul, e1, e2, line)
	case opDiv:
		fs.codeArith(bytecode.OpDiv, e1, e2, line)
	case opMod:
		fs.codeArith(bytecode.OpMod, e1, e2, line)
	case opPow:
		fs.codeArith(bytecode.OpPow, e1, e2, line)
	case opEq:
		fs.codeComparison(bytecode.OpEq, 1, e1, e2)
	case opNE:
		fs.codeComparison(bytecode.OpEq, 0, e1, e2)
	case opLT:
		fs.codeComparison(bytecode.OpLt, 1, e1, e2)
	case opLE:
		fs.codeComparison(bytecode.OpLe, 1, e1, e2)
	case opGT:
		fs.codeComparison(bytecode.OpLt, 0, e1, e2)
	case opGE:
		fs.codeComparison(bytecode.OpLe, 0, e1, e2)
	}
}

// constFolding evaluates an arithmetic operator over two numerals at
// compile time. It declines whenever the result could differ from the
// runtime one (division or modulo by zero, NaN results).
func (fs *funcState) constFolding(op bytecode.OpCode, e1, e2 *exprDesc) bool {
	if !e1.isNumeral() || !e2.isNumeral() {
		return false
	}
	if e1.kind == kindNumInt && e2.kind == kindNumInt {
		i1, i2 := e1.ival, e2.ival
		switch op {
		case bytecode.OpAdd:
			e1.ival = i1 + i2
			return true
		case bytecode.OpSub:
			e1.ival = i1 - i2
			return true
		case bytecode.OpMul:
			e1.ival = i1 * i2
			return true
		case bytecode.OpMod:
			if i2 == 0 {
				return false // keep the runtime error
			}
			r := i1 % i2
			if r != 0 && (r^i2) < 0 { // result takes the divisor's sign
				r += i2
			}
			e1.ival = r
			return true
		case bytecode.OpDiv, bytecode.OpPow:
			// always produce floats; fall through to the float path
		default:
			return false
		}
	}
	n1, n2 := e1.floatValue(), e2.floatValue()
	var r float64
	switch op {
	case bytecode.OpAdd:
		r = n1 + n2
	case bytecode.OpSub:
		r = n1 - n2
	case bytecode.OpMul:
		r = n1 * n2
	case bytecode.OpDiv:
		if n2 == 0 {
			return false
		}
		r = n1 / n2
	case bytecode.OpMod:
		if n2 == 0 {
			return false
		}
		r = math.Mod(n1, n2)
		if r != 0 && (r < 0) != (n2 < 0) {
			r += n2
		}
	case bytecode.OpPow:
		r = math.Pow(n1, n2)
	default:
		return false
	}
	if math.IsNaN(r) {
		return false
	}
	e1.kind = kindNumFlt
	e1.nval = r
	return true
}

func (e *exprDesc) floatValue() float64 {
	if e.kind == kindNumInt {
		return float64(e.ival)
	}
	return e.nval
}

// codeArith emits a binary (or unary, for UNM/LEN) arithmetic
// instruction over RK operands, folding constants first.
func (fs *funcState) codeArith(op bytecode.OpCode, e1, e2 *exprDesc, line int) {
	if op != bytecode.OpConcat && fs.constFolding(op, e1, e2) {
		return
	}
	o2 := 0
	if op != bytecode.OpUnm && op != bytecode.OpLen {
		o2 = fs.exp2RK(e2)
	}
	o1 := fs.exp2RK(e1)
	if o1 > o2 {
		fs.freeExp(e1)
		fs.freeExp(e2)
	} else {
		fs.freeExp(e2)
		fs.freeExp(e1)
	}
	e1.info = fs.codeABC(op, 0, o1, o2)
	e1.kind = kindReloc
	fs.fixLine(line)
}

// codeComparison emits a comparison that materializes as a jump. A
// zero cond on an ordering operator swaps the operands instead, so >
// and >= reuse the < and <= opcodes.
func (fs *funcState) codeComparison(op bytecode.OpCode, cond int, e1, e2 *exprDesc) {
	o1 := fs.exp2RK(e1)
	o2 := fs.exp2RK(e2)
	fs.freeExp(e2)
	fs.freeExp(e1)
	if cond == 0 && op != bytecode.OpEq {
		o1, o2 = o2, o1
		cond = 1
	}
	e1.info = fs.condJump(op, cond, o1, o2)
	e1.kind = kindJump
}

// int2fb converts an integer to the "floating byte" format of the
// NEWTABLE size hints (eeeeexxx): mantissa of 3 bits, excess-1
// exponent.
func int2fb(x int) int {
	e := 0
	for x >= 16 {
		x = (x + 1) >> 1
		e++
	}
	if x < 8 {
		return x
	}
	return ((e + 1) << 3) | (x - 8)
}
