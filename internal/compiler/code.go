package compiler

import (
	"math"

	"github.com/xirelogy/go-brio/internal/bytecode"
)

const (
	// noJump is the sentinel ending a threaded jump list.
	noJump = -1
	// noRegister marks an unassigned destination register.
	noRegister = bytecode.MaxArgA
)

// Distinct map keys for constants that cannot key a map by their own
// value.
type (
	nanKey     struct{}
	negZeroKey struct{}
	nilKey     struct{}
)

func (fs *funcState) pc() int { return len(fs.proto.Code) }

func (fs *funcState) instr(e *exprDesc) *bytecode.Instruction {
	return &fs.proto.Code[e.info]
}

// code appends one instruction, first redirecting any jumps pending to
// this position, and records its source line.
func (fs *funcState) code(i bytecode.Instruction) int {
	fs.dischargeJPC()
	fs.proto.Code = append(fs.proto.Code, i)
	fs.proto.Lines = append(fs.proto.Lines, int32(fs.c.lastLine))
	return fs.pc() - 1
}

func (fs *funcState) codeABC(op bytecode.OpCode, a, b, c int) int {
	assertf(bytecode.ABCMode(op), "operand layout mismatch")
	return fs.code(bytecode.CreateABC(op, a, b, c))
}

func (fs *funcState) codeABx(op bytecode.OpCode, a, bx int) int {
	return fs.code(bytecode.CreateABx(op, a, bx))
}

func (fs *funcState) codeAsBx(op bytecode.OpCode, a, sbx int) int {
	return fs.code(bytecode.CreateAsBx(op, a, sbx))
}

// fixLine overrides the recorded line of the last emitted instruction.
func (fs *funcState) fixLine(line int) {
	fs.proto.Lines[fs.pc()-1] = int32(line)
}

// loadNil emits nil loads for registers from..from+n-1, merging into a
// previous adjacent OpLoadNil when possible.
func (fs *funcState) loadNil(from, n int) {
	if fs.pc() > fs.lastTarget { // no jumps to the current position
		if fs.pc() == 0 {
			if from >= fs.nactvar {
				return // registers above the parameters start out nil
			}
		} else if prev := &fs.proto.Code[fs.pc()-1]; prev.OpCode() == bytecode.OpLoadNil {
			pfrom, pto := prev.A(), prev.B()
			if pfrom <= from && from <= pto+1 { // ranges connect
				if from+n-1 > pto {
					prev.SetB(from + n - 1)
				}
				return
			}
		}
	}
	fs.codeABC(bytecode.OpLoadNil, from, from+n-1, 0)
}

// Jump-list plumbing. A pending jump list is a chain of OpJmp
// instructions whose sBx fields temporarily hold the pc of the next
// list entry (or noJump), rewritten to real offsets when patched.

// jump emits an unconditional jump joined with any jumps pending to
// this position, and returns it as a one-element list to be patched.
func (fs *funcState) jump() int {
	jpc := fs.jpc
	fs.jpc = noJump
	return fs.concat(fs.codeAsBx(bytecode.OpJmp, 0, noJump), jpc)
}

// getLabel marks the current position as a jump target, suppressing
// peephole merges across it.
func (fs *funcState) getLabel() int {
	fs.lastTarget = fs.pc()
	return fs.lastTarget
}

// getJump decodes the next entry of the list threaded through pc.
func (fs *funcState) getJump(pc int) int {
	offset := fs.proto.Code[pc].SBx()
	if offset == noJump {
		return noJump
	}
	return pc + 1 + offset
}

func (fs *funcState) fixJump(pc, dest int) {
	assertf(dest != noJump, "jump patched to nowhere")
	offset := dest - (pc + 1)
	if offset > bytecode.MaxArgSBx || -offset > bytecode.MaxArgSBx {
		fs.c.fail(KindSyntax, fs.c.lastLine, "control structure too long")
	}
	fs.proto.Code[pc].SetSBx(offset)
}

// jumpControl returns the instruction a jump's behavior depends on: the
// preceding conditional test when there is one, else the jump itself.
func (fs *funcState) jumpControl(pc int) *bytecode.Instruction {
	if pc >= 1 && bytecode.TestMode(fs.proto.Code[pc-1].OpCode()) {
		return &fs.proto.Code[pc-1]
	}
	return &fs.proto.Code[pc]
}

// needValue reports whether a jump list contains an entry that expects
// a materialized boolean rather than a TESTSET register copy.
func (fs *funcState) needValue(list int) bool {
	for ; list != noJump; list = fs.getJump(list) {
		if fs.jumpControl(list).OpCode() != bytecode.OpTestSet {
			return true
		}
	}
	return false
}

// patchTestReg redirects a TESTSET to a destination register, or
// degrades it to TEST when no value is wanted.
func (fs *funcState) patchTestReg(node, reg int) bool {
	i := fs.jumpControl(node)
	if i.OpCode() != bytecode.OpTestSet {
		return false
	}
	if reg != noRegister && reg != i.B() {
		i.SetA(reg)
	} else {
		*i = bytecode.CreateABC(bytecode.OpTest, i.B(), 0, i.C())
	}
	return true
}

func (fs *funcState) removeValues(list int) {
	for ; list != noJump; list = fs.getJump(list) {
		fs.patchTestReg(list, noRegister)
	}
}

// patchListAux walks a jump list once, sending value-producing entries
// to vtarget with the given register and the rest to dtarget.
func (fs *funcState) patchListAux(list, vtarget, reg, dtarget int) {
	for list != noJump {
		next := fs.getJump(list)
		if fs.patchTestReg(list, reg) {
			fs.fixJump(list, vtarget)
		} else {
			fs.fixJump(list, dtarget)
		}
		list = next
	}
}

func (fs *funcState) dischargeJPC() {
	fs.patchListAux(fs.jpc, fs.pc(), noRegister, fs.pc())
	fs.jpc = noJump
}

// patchList points every jump in the list at target.
func (fs *funcState) patchList(list, target int) {
	if target == fs.pc() {
		fs.patchToHere(list)
	} else {
		assertf(target < fs.pc(), "jump target not yet emitted")
		fs.patchListAux(list, target, noRegister, target)
	}
}

// patchToHere defers patching to the next emitted instruction.
func (fs *funcState) patchToHere(list int) {
	fs.getLabel()
	fs.jpc = fs.concat(fs.jpc, list)
}

// concat appends list l2 to l1 and returns the combined list head.
func (fs *funcState) concat(l1, l2 int) int {
	switch {
	case l2 == noJump:
	case l1 == noJump:
		return l2
	default:
		list := l1
		for next := fs.getJump(list); next != noJump; list, next = next, fs.getJump(next) {
		}
		fs.fixJump(list, l2)
	}
	return l1
}

// Register allocation. Registers 0..nactvar-1 hold active locals;
// temporaries live above and are reclaimed per statement.

func (fs *funcState) checkStack(n int) {
	newStack := fs.freeReg + n
	if newStack > maxRegisters {
		fs.c.fail(KindTooManyRegisters, fs.c.lastLine, "function or expression too complex")
	}
	if newStack > int(fs.proto.MaxStackSize) {
		fs.proto.MaxStackSize = uint8(newStack)
	}
}

func (fs *funcState) reserveRegs(n int) {
	fs.checkStack(n)
	fs.freeReg += n
}

func (fs *funcState) freeRegister(r int) {
	if !bytecode.IsConstant(r) && r >= fs.nactvar {
		fs.freeReg--
		assertf(r == fs.freeReg, "register freed out of order")
	}
}

func (fs *funcState) freeExp(e *exprDesc) {
	if e.kind == kindNonReloc {
		fs.freeRegister(e.info)
	}
}

// Constant pool. Constants are deduplicated by structural equality;
// integers and floats are distinct even when numerically equal.

func (fs *funcState) addConstant(key, v bytecode.Value) int {
	if idx, ok := fs.constants[key]; ok {
		return idx
	}
	fs.c.checkLimit(len(fs.proto.Constants)+1, maxConstants, KindTooManyConstants, "constants")
	idx := len(fs.proto.Constants)
	fs.constants[key] = idx
	fs.proto.Constants = append(fs.proto.Constants, v)
	return idx
}

func (fs *funcState) stringConstant(s string) int { return fs.addConstant(s, s) }

func (fs *funcState) intConstant(i int64) int { return fs.addConstant(i, i) }

func (fs *funcState) floatConstant(n float64) int {
	switch {
	case math.IsNaN(n):
		return fs.addConstant(nanKey{}, n)
	case n == 0 && math.Signbit(n):
		return fs.addConstant(negZeroKey{}, n)
	}
	return fs.addConstant(n, n)
}

func (fs *funcState) boolConstant(b bool) int { return fs.addConstant(b, b) }

func (fs *funcState) nilConstant() int { return fs.addConstant(nilKey{}, nil) }

func (fs *funcState) numberConstant(e *exprDesc) int {
	if e.kind == kindNumInt {
		return fs.intConstant(e.ival)
	}
	return fs.floatConstant(e.nval)
}

// Multiple-result adjustment.

// setReturns fixes the number of results an open call or vararg
// expression produces.
func (fs *funcState) setReturns(e *exprDesc, nresults int) {
	if e.kind == kindCall {
		fs.instr(e).SetC(nresults + 1)
	} else if e.kind == kindVararg {
		fs.instr(e).SetB(nresults + 1)
		fs.instr(e).SetA(fs.freeReg)
		fs.reserveRegs(1)
	}
}

func (fs *funcState) setMultRet(e *exprDesc) {
	fs.setReturns(e, multRet)
}

// setOneRet pins an open expression to a single result.
func (fs *funcState) setOneRet(e *exprDesc) {
	if e.kind == kindCall {
		e.kind = kindNonReloc
		e.info = fs.instr(e).A()
	} else if e.kind == kindVararg {
		fs.instr(e).SetB(2)
		e.kind = kindReloc
	}
}

// dischargeVars turns a variable reference into a readable value,
// emitting the access instruction for upvalues, globals and indexed
// expressions.
func (fs *funcState) dischargeVars(e *exprDesc) {
	switch e.kind {
	case kindLocal:
		e.kind = kindNonReloc
	case kindUpval:
		e.info = fs.codeABC(bytecode.OpGetUpval, 0, e.info, 0)
		e.kind = kindReloc
	case kindGlobal:
		e.info = fs.codeABx(bytecode.OpGetGlobal, 0, e.info)
		e.kind = kindReloc
	case kindIndexed:
		fs.freeRegister(e.aux)
		fs.freeRegister(e.info)
		e.info = fs.codeABC(bytecode.OpGetTable, 0, e.info, e.aux)
		e.kind = kindReloc
	case kindCall, kindVararg:
		fs.setOneRet(e)
	}
}

// discharge2reg forces the expression's value into a specific register.
func (fs *funcState) discharge2reg(e *exprDesc, reg int) {
	fs.dischargeVars(e)
	switch e.kind {
	case kindNil:
		fs.loadNil(reg, 1)
	case kindFalse:
		fs.codeABC(bytecode.OpLoadBool, reg, 0, 0)
	case kindTrue:
		fs.codeABC(bytecode.OpLoadBool, reg, 1, 0)
	case kindConst:
		fs.codeABx(bytecode.OpLoadK, reg, e.info)
	case kindNumInt, kindNumFlt:
		fs.codeABx(bytecode.OpLoadK, reg, fs.numberConstant(e))
	case kindReloc:
		assertf(bytecode.SetsA(fs.instr(e).OpCode()), "relocating a non-writing instruction")
		fs.instr(e).SetA(reg)
	case kindNonReloc:
		if reg != e.info {
			fs.codeABC(bytecode.OpMove, reg, e.info, 0)
		}
	default:
		assertf(e.kind == kindVoid || e.kind == kindJump, "cannot discharge expression")
		return // nothing to do
	}
	e.kind = kindNonReloc
	e.info = reg
}

func (fs *funcState) discharge2anyReg(e *exprDesc) {
	if e.kind != kindNonReloc {
		fs.reserveRegs(1)
		fs.discharge2reg(e, fs.freeReg-1)
	}
}

// boolLabel emits a LOADBOOL that is itself a jump target.
func (fs *funcState) boolLabel(a, b, jump int) int {
	fs.getLabel()
	return fs.codeABC(bytecode.OpLoadBool, a, b, jump)
}

// exp2reg materializes the expression in reg, resolving any pending
// true/false jump lists into boolean loads or register copies.
func (fs *funcState) exp2reg(e *exprDesc, reg int) {
	fs.discharge2reg(e, reg)
	if e.kind == kindJump {
		e.t = fs.concat(e.t, e.info)
	}
	if e.hasJumps() {
		loadFalse, loadTrue := noJump, noJump
		if fs.needValue(e.t) || fs.needValue(e.f) {
			jump := noJump
			if e.kind != kindJump {
				jump = fs.jump()
			}
			loadFalse = fs.boolLabel(reg, 0, 1)
			loadTrue = fs.boolLabel(reg, 1, 0)
			fs.patchToHere(jump)
		}
		end := fs.getLabel()
		fs.patchListAux(e.f, end, reg, loadFalse)
		fs.patchListAux(e.t, end, reg, loadTrue)
	}
	e.t, e.f = noJump, noJump
	e.kind = kindNonReloc
	e.info = reg
}

// exp2nextReg materializes the expression in the next free register.
func (fs *funcState) exp2nextReg(e *exprDesc) {
	fs.dischargeVars(e)
	fs.freeExp(e)
	fs.reserveRegs(1)
	fs.exp2reg(e, fs.freeReg-1)
}

// exp2anyReg leaves the expression in some register and returns it.
func (fs *funcState) exp2anyReg(e *exprDesc) int {
	fs.dischargeVars(e)
	if e.kind == kindNonReloc {
		if !e.hasJumps() {
			return e.info
		}
		if e.info >= fs.nactvar { // reg is not a local: put value there
			fs.exp2reg(e, e.info)
			return e.info
		}
	}
	fs.exp2nextReg(e)
	return e.info
}

// exp2val resolves pending jumps without forcing a register.
func (fs *funcState) exp2val(e *exprDesc) {
	if e.hasJumps() {
		fs.exp2anyReg(e)
	} else {
		fs.dischargeVars(e)
	}
}

// exp2RK yields an RK operand: a small-enough constant index, or a
// register.
func (fs *funcState) exp2RK(e *exprDesc) int {
	fs.exp2val(e)
	switch e.kind {
	case kindTrue, kindFalse:
		if len(fs.proto.Constants) <= bytecode.MaxIndexRK {
			e.info = fs.boolConstant(e.kind == kindTrue)
			e.kind = kindConst
			return bytecode.AsConstant(e.info)
		}
	case kindNil:
		if len(fs.proto.Constants) <= bytecode.MaxIndexRK {
			e.info = fs.nilConstant()
			e.kind = kindConst
			return bytecode.AsConstant(e.info)
		}
	case kindNumInt, kindNumFlt:
		e.info = fs.numberConstant(e)
		e.kind = kindConst
		fallthrough
	case kindConst:
		if e.info <= bytecode.MaxIndexRK {
			return bytecode.AsConstant(e.info)
		}
	}
	// not a constant in the right range: put it in a register
	return fs.exp2anyReg(e)
}

// storeVar assigns the value of e to the variable described by v.
func (fs *funcState) storeVar(v, e *exprDesc) {
	switch v.kind {
	case kindLocal:
		fs.freeExp(e)
		fs.exp2reg(e, v.info)
		return
	case kindUpval:
		fs.exp2anyReg(e)
		fs.codeABC(bytecode.OpSetUpval, e.info, v.info, 0)
	case kindGlobal:
		fs.exp2anyReg(e)
		fs.codeABx(bytecode.OpSetGlobal, e.info, v.info)
	case kindIndexed:
		rk := fs.exp2RK(e)
		fs.codeABC(bytecode.OpSetTable, v.info, v.aux, rk)
	default:
		assertf(false, "invalid variable kind in store")
	}
	fs.freeExp(e)
}

// self compiles the receiver/method pair of a method call: R(base) gets
// the method and R(base+1) the receiver.
func (fs *funcState) self(e, key *exprDesc) {
	fs.exp2anyReg(e)
	fs.freeExp(e)
	base := fs.freeReg
	fs.reserveRegs(2) // function and receiver
	fs.codeABC(bytecode.OpSelf, base, e.info, fs.exp2RK(key))
	fs.freeExp(key)
	e.info = base
	e.kind = kindNonReloc
}

// ret emits a return of nret values starting at register first.
func (fs *funcState) ret(first, nret int) {
	fs.codeABC(bytecode.OpReturn, first, nret+1, 0)
}

func (fs *funcState) condJump(op bytecode.OpCode, a, b, c int) int {
	fs.codeABC(op, a, b, c)
	return fs.jump()
}

// invertJump flips the polarity of a comparison controlling a jump.
func (fs *funcState) invertJump(e *exprDesc) {
	i := fs.jumpControl(e.info)
	op := i.OpCode()
	assertf(bytecode.TestMode(op) && op != bytecode.OpTestSet && op != bytecode.OpTest,
		"cannot invert non-comparison jump")
	i.SetA(boolToInt(i.A() == 0))
}

// jumpOnCond emits a conditional jump taken when the expression's
// truth equals cond.
func (fs *funcState) jumpOnCond(e *exprDesc, cond bool) int {
	if e.kind == kindReloc {
		if i := fs.instr(e); i.OpCode() == bytecode.OpNot {
			// remove the NOT and test its operand with inverted polarity
			fs.proto.Code = fs.proto.Code[:fs.pc()-1]
			fs.proto.Lines = fs.proto.Lines[:fs.pc()]
			return fs.condJump(bytecode.OpTest, i.B(), 0, boolToInt(!cond))
		}
	}
	fs.discharge2anyReg(e)
	fs.freeExp(e)
	return fs.condJump(bytecode.OpTestSet, noRegister, e.info, boolToInt(cond))
}

// goIfTrue arranges for control to fall through when the expression is
// true, accumulating the false-exit jumps on e.f.
func (fs *funcState) goIfTrue(e *exprDesc) {
	fs.dischargeVars(e)
	pc := noJump // pc of a new jump taken when e is false
	switch e.kind {
	case kindJump:
		fs.invertJump(e)
		pc = e.info
	case kindConst, kindNumInt, kindNumFlt, kindTrue:
		// always true: no jump
	default:
		pc = fs.jumpOnCond(e, false)
	}
	e.f = fs.concat(e.f, pc)
	fs.patchToHere(e.t)
	e.t = noJump
}

// goIfFalse is the symmetric rule for 'or'.
func (fs *funcState) goIfFalse(e *exprDesc) {
	fs.dischargeVars(e)
	pc := noJump // pc of a new jump taken when e is true
	switch e.kind {
	case kindJump:
		pc = e.info
	case kindNil, kindFalse:
		// always false: no jump
	default:
		pc = fs.jumpOnCond(e, true)
	}
	e.t = fs.concat(e.t, pc)
	fs.patchToHere(e.f)
	e.f = noJump
}

func (fs *funcState) codeNot(e *exprDesc) {
	fs.dischargeVars(e)
	switch e.kind {
	case kindNil, kindFalse:
		e.kind = kindTrue
	case kindConst, kindNumInt, kindNumFlt, kindTrue:
		e.kind = kindFalse
	case kindJump:
		fs.invertJump(e)
	case kindReloc, kindNonReloc:
		fs.discharge2anyReg(e)
		fs.freeExp(e)
		e.info = fs.codeABC(bytecode.OpNot, 0, e.info, 0)
		e.kind = kindReloc
	default:
		assertf(false, "cannot negate expression")
	}
	// interchange true and false lists
	e.t, e.f = e.f, e.t
	fs.removeValues(e.f)
	fs.removeValues(e.t)
}

// indexed transforms a table expression and key into an indexed-access
// descriptor. The table must already sit in a register.
func (fs *funcState) indexed(e, key *exprDesc) {
	e.aux = fs.exp2RK(key)
	e.kind = kindIndexed
}

// setList flushes tostore pending constructor items (multRet for an
// open last expression) sitting above base into the table at base.
func (fs *funcState) setList(base, nelems, tostore int) {
	c := (nelems-1)/bytecode.FieldsPerFlush + 1
	b := tostore
	if tostore == multRet {
		b = 0
	}
	if c > bytecode.MaxArgC {
		fs.c.fail(KindSyntax, fs.c.lastLine, "constructor too long")
	}
	fs.codeABC(bytecode.OpSetList, base, b, c)
	fs.freeReg = base + 1 // free registers holding the list values
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
