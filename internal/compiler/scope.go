package compiler

import (
	"github.com/xirelogy/go-brio/internal/bytecode"
)

// Fixed capacities of the register and constant encoding.
const (
	maxLocals    = 200
	maxUpvalues  = 60
	maxRegisters = 250
	maxConstants = bytecode.MaxArgBx + 1
	maxNesting   = 200
)

// funcState holds the mutable compilation state of one function body:
// its growing instruction buffer (owned by the prototype under
// construction), register watermarks, constant pool index, pending
// jumps and the active-local stack. States for nested functions chain
// through prev.
type funcState struct {
	proto *bytecode.Proto
	prev  *funcState // enclosing function, for upvalue resolution
	c     *compiler
	block *blockScope

	constants  map[bytecode.Value]int // constant pool, deduplicated by value
	jpc        int                    // pending jumps targeting the next instruction
	lastTarget int                    // pc of the latest jump target
	freeReg    int                    // first free register
	nactvar    int                    // number of active locals
	actvar     []int                  // active locals: indices into proto.LocalVars
}

// blockScope is one lexical block. On exit the locals declared inside
// it are deactivated and, when one of them was captured, a CLOSE
// instruction is emitted first.
type blockScope struct {
	prev      *blockScope
	breakList int  // pending break jumps out of this loop
	nactvar   int  // active-local count at block entry
	upval     bool // a local in this block was captured
	isLoop    bool // break may target this block
}

func (c *compiler) openFunction(line int) *funcState {
	fs := &funcState{
		proto: &bytecode.Proto{
			Source:       c.source,
			LineDefined:  line,
			MaxStackSize: 2, // registers 0 and 1 are always valid
		},
		prev:       c.fs,
		c:          c,
		constants:  make(map[bytecode.Value]int),
		jpc:        noJump,
		lastTarget: -1,
	}
	c.fs = fs
	fs.enterBlock(false)
	return fs
}

// closeFunction finalizes the current function into its immutable
// prototype and restores the enclosing state.
func (c *compiler) closeFunction() *bytecode.Proto {
	fs := c.fs
	fs.leaveBlock()
	fs.ret(0, 0) // final return
	fs.proto.LastLineDefined = c.lastLine
	c.fs = fs.prev
	return fs.proto
}

func (fs *funcState) enterBlock(isLoop bool) {
	fs.block = &blockScope{
		prev:      fs.block,
		breakList: noJump,
		nactvar:   fs.nactvar,
		isLoop:    isLoop,
	}
	assertf(fs.freeReg == fs.nactvar, "entering block with live temporaries")
}

func (fs *funcState) leaveBlock() {
	b := fs.block
	fs.block = b.prev
	fs.removeVars(b.nactvar)
	if b.upval && b.prev != nil {
		// the function-level block needs no CLOSE: RETURN closes any
		// remaining open upvalues
		fs.codeABC(bytecode.OpClose, b.nactvar, 0, 0)
	}
	assertf(b.nactvar == fs.nactvar, "locals leaked out of block")
	fs.freeReg = fs.nactvar // reclaim block registers
	fs.patchToHere(b.breakList)
}

// newLocalVar registers a local's debug record without activating it;
// adjustLocals activates registered locals once their initializers ran.
func (fs *funcState) newLocalVar(name string) {
	fs.c.checkLimit(len(fs.actvar)+1, maxLocals, KindTooManyLocals, "local variables")
	fs.proto.LocalVars = append(fs.proto.LocalVars, bytecode.LocalVar{Name: name})
	fs.actvar = append(fs.actvar, len(fs.proto.LocalVars)-1)
}

func (fs *funcState) localVar(i int) *bytecode.LocalVar {
	return &fs.proto.LocalVars[fs.actvar[i]]
}

// adjustLocals activates the n most recently registered locals.
func (fs *funcState) adjustLocals(n int) {
	fs.nactvar += n
	for ; n > 0; n-- {
		fs.localVar(fs.nactvar - n).StartPC = int32(fs.pc())
	}
}

// removeVars deactivates all locals above the given level.
func (fs *funcState) removeVars(level int) {
	for i := level; i < fs.nactvar; i++ {
		fs.localVar(i).EndPC = int32(fs.pc())
	}
	fs.actvar = fs.actvar[:len(fs.actvar)-(fs.nactvar-level)]
	fs.nactvar = level
}

// searchVar finds an active local by name, most recently declared
// first, and returns its register or -1.
func (fs *funcState) searchVar(name string) int {
	for i := fs.nactvar - 1; i >= 0; i-- {
		if fs.localVar(i).Name == name {
			return i
		}
	}
	return -1
}

// markUpval flags the innermost block containing the local at the given
// register level, so that block exit closes the captured variable.
func (fs *funcState) markUpval(level int) {
	b := fs.block
	for b != nil && b.nactvar > level {
		b = b.prev
	}
	if b != nil {
		b.upval = true
	}
}

// indexUpvalue finds or creates an upvalue descriptor for a variable of
// the directly enclosing function, deduplicated by origin.
func (fs *funcState) indexUpvalue(name string, v *exprDesc) int {
	inStack := v.kind == kindLocal
	for i, uv := range fs.proto.Upvalues {
		if uv.InStack == inStack && int(uv.Index) == v.info {
			return i
		}
	}
	fs.c.checkLimit(len(fs.proto.Upvalues)+1, maxUpvalues, KindTooManyUpvalues, "upvalues")
	fs.proto.Upvalues = append(fs.proto.Upvalues, bytecode.UpvalueDesc{
		Name:    name,
		InStack: inStack,
		Index:   uint8(v.info),
	})
	return len(fs.proto.Upvalues) - 1
}

// singleVarAux resolves a name in fs: as a local, as an upvalue
// (capturing through every intermediate function), or ultimately as a
// global when no enclosing function declares it.
func singleVarAux(fs *funcState, name string, e *exprDesc, base bool) exprKind {
	if fs == nil {
		initExp(e, kindGlobal, noRegister)
		return kindGlobal
	}
	if v := fs.searchVar(name); v >= 0 {
		initExp(e, kindLocal, v)
		if !base {
			fs.markUpval(v)
		}
		return kindLocal
	}
	if singleVarAux(fs.prev, name, e, false) == kindGlobal {
		return kindGlobal
	}
	e.info = fs.indexUpvalue(name, e)
	e.kind = kindUpval
	return kindUpval
}

// singleVar resolves the identifier at the current position.
func (c *compiler) singleVar(name string) exprDesc {
	var e exprDesc
	if singleVarAux(c.fs, name, &e, true) == kindGlobal {
		e.info = c.fs.stringConstant(name)
	}
	return e
}

func assertf(cond bool, msg string) {
	if !cond {
		panic("brio/internal/compiler: " + msg)
	}
}
