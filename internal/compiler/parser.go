package compiler

import (
	"github.com/xirelogy/go-brio/internal/bytecode"
	"github.com/xirelogy/go-brio/internal/token"
)

// statList compiles a sequence of statements until a block terminator.
// Registers above the active locals are reclaimed after each statement.
func (c *compiler) statList() {
	c.enterLevel()
	isLast := false
	for !isLast && !blockFollow(c.tok.Type) {
		isLast = c.statement()
		c.testNext(token.Semicolon)
		assertf(c.fs.freeReg >= c.fs.nactvar, "free register below active locals")
		c.fs.freeReg = c.fs.nactvar
	}
	c.leaveLevel()
}

func blockFollow(t token.Type) bool {
	switch t {
	case token.Else, token.ElseIf, token.End, token.Until, token.EOF:
		return true
	}
	return false
}

// statement compiles one statement and reports whether it must be the
// last of its block.
func (c *compiler) statement() bool {
	line := c.tok.Pos.Line
	switch c.tok.Type {
	case token.If:
		c.ifStat(line)
	case token.While:
		c.whileStat(line)
	case token.Do:
		c.next()
		c.block()
		c.checkMatch(token.End, token.Do, line)
	case token.For:
		c.forStat(line)
	case token.Repeat:
		c.repeatStat(line)
	case token.Function:
		c.funcStat(line)
	case token.Local:
		c.next()
		if c.testNext(token.Function) {
			c.localFunc()
		} else {
			c.localStat()
		}
	case token.Return:
		c.retStat()
		return true
	case token.Break:
		c.next()
		c.breakStat()
		return true
	default:
		c.exprStat()
	}
	return false
}

func (c *compiler) block() {
	c.fs.enterBlock(false)
	c.statList()
	c.fs.leaveBlock()
}

// Expressions.

// expr parses a full expression.
func (c *compiler) expr() exprDesc {
	var e exprDesc
	c.subExpression(&e, 0)
	return e
}

// subExpression parses an expression whose binary operators all bind
// tighter than limit, emitting code as operators complete.
func (c *compiler) subExpression(e *exprDesc, limit int) binOp {
	c.enterLevel()
	if u := unaryOp(c.tok.Type); u != opNoUnary {
		line := c.tok.Pos.Line
		c.next()
		c.subExpression(e, unaryPriority)
		c.fs.prefix(u, e, line)
	} else {
		c.simpleExp(e)
	}
	op := binaryOp(c.tok.Type)
	for op != opNoBinary && binaryPriority[op].left > limit {
		line := c.tok.Pos.Line
		c.next()
		c.fs.infix(op, e)
		var e2 exprDesc
		nextOp := c.subExpression(&e2, binaryPriority[op].right)
		c.fs.posfix(op, e, &e2, line)
		op = nextOp
	}
	c.leaveLevel()
	return op
}

func (c *compiler) simpleExp(e *exprDesc) {
	switch c.tok.Type {
	case token.Number:
		if c.tok.IsInt {
			initExp(e, kindNumInt, 0)
			e.ival = c.tok.Int
		} else {
			initExp(e, kindNumFlt, 0)
			e.nval = c.tok.Num
		}
	case token.String:
		initExp(e, kindConst, c.fs.stringConstant(c.tok.Literal))
	case token.Nil:
		initExp(e, kindNil, 0)
	case token.True:
		initExp(e, kindTrue, 0)
	case token.False:
		initExp(e, kindFalse, 0)
	case token.Ellipsis:
		if !c.fs.proto.IsVararg {
			c.syntaxError("cannot use '...' outside a vararg function")
		}
		initExp(e, kindVararg, c.fs.codeABC(bytecode.OpVararg, 0, 1, 0))
	case token.LBrace:
		c.constructor(e)
		return
	case token.Function:
		line := c.tok.Pos.Line
		c.next()
		*e = c.body(false, line)
		return
	default:
		c.suffixedExp(e)
		return
	}
	c.next()
}

// primaryExp parses the head of a suffixed expression: a name or a
// parenthesized expression.
func (c *compiler) primaryExp(e *exprDesc) {
	switch c.tok.Type {
	case token.Ident:
		*e = c.singleVar(c.checkName())
	case token.LParen:
		line := c.tok.Pos.Line
		c.next()
		*e = c.expr()
		c.checkMatch(token.RParen, token.LParen, line)
		// parentheses truncate multiple results to one
		c.fs.dischargeVars(e)
	default:
		c.syntaxError("unexpected symbol")
	}
}

// suffixedExp parses a primary expression followed by any chain of
// field selectors, index brackets, method calls and call arguments.
func (c *compiler) suffixedExp(e *exprDesc) {
	line := c.tok.Pos.Line
	c.primaryExp(e)
	for {
		switch c.tok.Type {
		case token.Dot:
			c.fieldSel(e)
		case token.LBracket:
			c.fs.exp2anyReg(e)
			c.next()
			key := c.expr()
			c.fs.exp2val(&key)
			c.expect(token.RBracket)
			c.fs.indexed(e, &key)
		case token.Colon:
			c.next()
			var key exprDesc
			initExp(&key, kindConst, c.fs.stringConstant(c.checkName()))
			c.fs.self(e, &key)
			c.funcArgs(e, line)
		case token.LParen, token.String, token.LBrace:
			c.fs.exp2nextReg(e)
			c.funcArgs(e, line)
		default:
			return
		}
	}
}

// fieldSel compiles '.' Name into an indexed access.
func (c *compiler) fieldSel(e *exprDesc) {
	c.fs.exp2anyReg(e)
	c.next() // skip the dot or colon
	var key exprDesc
	initExp(&key, kindConst, c.fs.stringConstant(c.checkName()))
	c.fs.indexed(e, &key)
}

// funcArgs compiles a call's argument list; f already names the
// function in the next register (or register pair, for method calls).
func (c *compiler) funcArgs(f *exprDesc, line int) {
	var args exprDesc
	switch c.tok.Type {
	case token.LParen:
		if c.tok.Pos.Line != c.lastLine {
			c.syntaxError("ambiguous syntax (function call x new statement)")
		}
		c.next()
		if c.tok.Type == token.RParen {
			args.kind = kindVoid
		} else {
			nargs := 0
			args = c.expList(&nargs)
			c.fs.setMultRet(&args)
		}
		c.checkMatch(token.RParen, token.LParen, line)
	case token.LBrace:
		c.constructor(&args)
	case token.String:
		initExp(&args, kindConst, c.fs.stringConstant(c.tok.Literal))
		c.next()
	default:
		c.syntaxError("function arguments expected")
	}
	base := f.info // register holding the function
	nparams := multRet
	if !args.hasMultRet() {
		if args.kind != kindVoid {
			c.fs.exp2nextReg(&args) // close the last argument
		}
		nparams = c.fs.freeReg - (base + 1)
	}
	initExp(f, kindCall, c.fs.codeABC(bytecode.OpCall, base, nparams+1, 2))
	c.fs.fixLine(line)
	// the call removes the function and arguments, leaving one result
	c.fs.freeReg = base + 1
}

// expList compiles a comma-separated expression list, leaving all but
// the last in consecutive registers. It returns the last expression
// still open and stores the count in n.
func (c *compiler) expList(n *int) exprDesc {
	e := c.expr()
	*n = 1
	for c.testNext(token.Comma) {
		c.fs.exp2nextReg(&e)
		e = c.expr()
		*n++
	}
	return e
}

// Table constructors.

type consControl struct {
	v       exprDesc  // last list item read
	t       *exprDesc // the table
	nh      int       // number of record fields
	na      int       // number of array fields
	toStore int       // array items pending a SETLIST flush
}

func (c *compiler) constructor(e *exprDesc) {
	fs := c.fs
	line := c.tok.Pos.Line
	pc := fs.codeABC(bytecode.OpNewTable, 0, 0, 0)
	cc := consControl{t: e}
	initExp(e, kindReloc, pc)
	initExp(&cc.v, kindVoid, 0)
	fs.exp2nextReg(e) // fix the table at the top of the stack
	c.expect(token.LBrace)
	for {
		assertf(cc.v.kind == kindVoid || cc.toStore > 0, "constructor item lost")
		if c.tok.Type == token.RBrace {
			break
		}
		c.closeListField(&cc)
		switch c.tok.Type {
		case token.Ident:
			if c.peek().Type == token.Assign {
				c.recField(&cc)
			} else {
				c.listField(&cc)
			}
		case token.LBracket:
			c.recField(&cc)
		default:
			c.listField(&cc)
		}
		if !c.testNext(token.Comma) && !c.testNext(token.Semicolon) {
			break
		}
	}
	c.checkMatch(token.RBrace, token.LBrace, line)
	c.lastListField(&cc)
	fs.proto.Code[pc].SetB(int2fb(cc.na))
	fs.proto.Code[pc].SetC(int2fb(cc.nh))
}

// recField compiles a 'name = expr' or '[expr] = expr' entry.
func (c *compiler) recField(cc *consControl) {
	fs := c.fs
	reg := fs.freeReg
	var key exprDesc
	if c.tok.Type == token.Ident {
		initExp(&key, kindConst, fs.stringConstant(c.checkName()))
	} else { // '[' expr ']'
		c.next()
		key = c.expr()
		c.fs.exp2val(&key)
		c.expect(token.RBracket)
	}
	cc.nh++
	c.expect(token.Assign)
	rkKey := fs.exp2RK(&key)
	val := c.expr()
	fs.codeABC(bytecode.OpSetTable, cc.t.info, rkKey, fs.exp2RK(&val))
	fs.freeReg = reg // free registers used by the key and value
}

func (c *compiler) listField(cc *consControl) {
	cc.v = c.expr()
	cc.na++
	cc.toStore++
}

// closeListField stacks the previous array item, flushing a full batch
// of pending items into the table.
func (c *compiler) closeListField(cc *consControl) {
	if cc.v.kind == kindVoid {
		return // there is no previous item
	}
	c.fs.exp2nextReg(&cc.v)
	cc.v.kind = kindVoid
	if cc.toStore == bytecode.FieldsPerFlush {
		c.fs.setList(cc.t.info, cc.na, cc.toStore)
		cc.toStore = 0
	}
}

// lastListField flushes the remaining array items; a trailing open
// call or vararg contributes all of its results.
func (c *compiler) lastListField(cc *consControl) {
	if cc.toStore == 0 {
		return
	}
	if cc.v.hasMultRet() {
		c.fs.setMultRet(&cc.v)
		c.fs.setList(cc.t.info, cc.na, multRet)
		cc.na-- // the last element count is unknown until run time
	} else {
		if cc.v.kind != kindVoid {
			c.fs.exp2nextReg(&cc.v)
		}
		c.fs.setList(cc.t.info, cc.na, cc.toStore)
	}
}

// Function bodies.

// body compiles 'function' bodies from the parameter list onward and
// leaves a closure-producing expression in the enclosing function.
func (c *compiler) body(isMethod bool, line int) exprDesc {
	fs := c.openFunction(line)
	c.expect(token.LParen)
	if isMethod {
		fs.newLocalVar("self")
		fs.adjustLocals(1)
	}
	c.parList()
	c.expect(token.RParen)
	c.statList()
	c.checkMatch(token.End, token.Function, line)
	proto := c.closeFunction()

	parent := c.fs
	parent.proto.Protos = append(parent.proto.Protos, proto)
	var e exprDesc
	initExp(&e, kindReloc, parent.codeABx(bytecode.OpClosure, 0, len(parent.proto.Protos)-1))
	// pseudo-instructions telling the closure where each upvalue lives
	for _, uv := range proto.Upvalues {
		if uv.InStack {
			parent.codeABC(bytecode.OpMove, 0, int(uv.Index), 0)
		} else {
			parent.codeABC(bytecode.OpGetUpval, 0, int(uv.Index), 0)
		}
	}
	return e
}

func (c *compiler) parList() {
	fs := c.fs
	nparams := 0
	if c.tok.Type != token.RParen {
		for {
			switch c.tok.Type {
			case token.Ident:
				fs.newLocalVar(c.checkName())
				nparams++
			case token.Ellipsis:
				c.next()
				fs.proto.IsVararg = true
			default:
				c.syntaxError("<name> or '...' expected")
			}
			if fs.proto.IsVararg || !c.testNext(token.Comma) {
				break
			}
		}
	}
	fs.adjustLocals(nparams)
	fs.proto.NumParams = uint8(fs.nactvar)
	fs.reserveRegs(fs.nactvar)
}

// Control statements.

// cond compiles a condition expression and returns its false-exit jump
// list.
func (c *compiler) cond() int {
	e := c.expr()
	if e.kind == kindNil {
		e.kind = kindFalse // nil is false in tests
	}
	c.fs.goIfTrue(&e)
	return e.f
}

func (c *compiler) testThenBlock() int {
	c.next() // skip 'if' or 'elseif'
	condExit := c.cond()
	c.expect(token.Then)
	c.block()
	return condExit
}

func (c *compiler) ifStat(line int) {
	fs := c.fs
	escapeList := noJump
	fList := c.testThenBlock()
	for c.tok.Type == token.ElseIf {
		escapeList = fs.concat(escapeList, fs.jump())
		fs.patchToHere(fList)
		fList = c.testThenBlock()
	}
	if c.tok.Type == token.Else {
		escapeList = fs.concat(escapeList, fs.jump())
		fs.patchToHere(fList)
		c.next()
		c.block()
	} else {
		escapeList = fs.concat(escapeList, fList)
	}
	fs.patchToHere(escapeList)
	c.checkMatch(token.End, token.If, line)
}

func (c *compiler) whileStat(line int) {
	fs := c.fs
	c.next() // skip 'while'
	initPC := fs.getLabel()
	condExit := c.cond()
	fs.enterBlock(true)
	c.expect(token.Do)
	c.block()
	fs.patchList(fs.jump(), initPC)
	c.checkMatch(token.End, token.While, line)
	fs.leaveBlock()
	fs.patchToHere(condExit) // false conditions finish the loop
}

func (c *compiler) repeatStat(line int) {
	fs := c.fs
	repeatInit := fs.getLabel()
	fs.enterBlock(true)  // loop block
	fs.enterBlock(false) // scope block
	c.next()             // skip 'repeat'
	c.statList()
	c.checkMatch(token.Until, token.Repeat, line)
	condExit := c.cond() // the body's locals stay visible here
	if !fs.block.upval { // no captured locals in the body?
		fs.leaveBlock()
		fs.patchList(condExit, repeatInit)
	} else {
		// captured locals must be closed on every path out of the body
		c.breakStat() // condition true: exit the loop
		fs.patchToHere(condExit)
		fs.leaveBlock() // emits the close
		fs.patchList(fs.jump(), repeatInit)
	}
	fs.leaveBlock()
}

func (c *compiler) breakStat() {
	fs := c.fs
	upval := false
	b := fs.block
	for b != nil && !b.isLoop {
		upval = upval || b.upval
		b = b.prev
	}
	if b == nil {
		c.syntaxError("no loop to break")
	}
	if upval {
		fs.codeABC(bytecode.OpClose, b.nactvar, 0, 0)
	}
	b.breakList = fs.concat(b.breakList, fs.jump())
}

func (c *compiler) forStat(line int) {
	fs := c.fs
	fs.enterBlock(true) // scope for the control variables
	c.next()            // skip 'for'
	name := c.checkName()
	switch c.tok.Type {
	case token.Assign:
		c.forNum(name, line)
	case token.Comma, token.In:
		c.forList(name)
	default:
		c.syntaxError("'=' or 'in' expected")
	}
	c.checkMatch(token.End, token.For, line)
	fs.leaveBlock()
}

// exp1 compiles one expression into the next register.
func (c *compiler) exp1() {
	e := c.expr()
	c.fs.exp2nextReg(&e)
}

func (c *compiler) forNum(name string, line int) {
	fs := c.fs
	base := fs.freeReg
	fs.newLocalVar("(for index)")
	fs.newLocalVar("(for limit)")
	fs.newLocalVar("(for step)")
	fs.newLocalVar(name)
	c.expect(token.Assign)
	c.exp1() // initial value
	c.expect(token.Comma)
	c.exp1() // limit
	if c.testNext(token.Comma) {
		c.exp1() // step
	} else { // default step 1
		fs.codeABx(bytecode.OpLoadK, fs.freeReg, fs.intConstant(1))
		fs.reserveRegs(1)
	}
	c.forBody(base, line, 1, true)
}

func (c *compiler) forList(firstName string) {
	fs := c.fs
	base := fs.freeReg
	fs.newLocalVar("(for generator)")
	fs.newLocalVar("(for state)")
	fs.newLocalVar("(for control)")
	nvars := 3
	fs.newLocalVar(firstName)
	nvars++
	for c.testNext(token.Comma) {
		fs.newLocalVar(c.checkName())
		nvars++
	}
	c.expect(token.In)
	line := c.tok.Pos.Line
	nexps := 0
	e := c.expList(&nexps)
	c.adjustAssign(3, nexps, &e)
	fs.checkStack(3) // call space for the iterator
	c.forBody(base, line, nvars-3, false)
}

// forBody compiles the shared tail of both for forms: the control
// variables sit at base, the declared variables in a nested scope.
func (c *compiler) forBody(base, line, nvars int, isNum bool) {
	fs := c.fs
	fs.adjustLocals(3) // control variables
	c.expect(token.Do)
	var prep int
	if isNum {
		prep = fs.codeAsBx(bytecode.OpForPrep, base, noJump)
	} else {
		prep = fs.jump()
	}
	fs.enterBlock(false) // scope for the declared variables
	fs.adjustLocals(nvars)
	fs.reserveRegs(nvars)
	c.block()
	fs.leaveBlock()
	fs.patchToHere(prep)
	var endFor int
	if isNum {
		endFor = fs.codeAsBx(bytecode.OpForLoop, base, noJump)
	} else {
		endFor = fs.codeABC(bytecode.OpTForLoop, base, 0, nvars)
	}
	fs.fixLine(line) // the loop instruction belongs to the 'for' line
	if !isNum {
		endFor = fs.jump()
	}
	fs.patchList(endFor, prep+1)
}

// Functions and assignment.

func (c *compiler) funcStat(line int) {
	c.next() // skip 'function'
	v, isMethod := c.funcName()
	b := c.body(isMethod, line)
	c.fs.storeVar(&v, &b)
	c.fs.fixLine(line) // the definition happens on the first line
}

// funcName parses Name {'.' Name} [':' Name] and reports whether the
// colon form declared a method.
func (c *compiler) funcName() (exprDesc, bool) {
	e := c.singleVar(c.checkName())
	for c.tok.Type == token.Dot {
		c.fieldSel(&e)
	}
	if c.tok.Type == token.Colon {
		c.fieldSel(&e)
		return e, true
	}
	return e, false
}

func (c *compiler) localFunc() {
	fs := c.fs
	fs.newLocalVar(c.checkName())
	var v exprDesc
	initExp(&v, kindLocal, fs.freeReg)
	fs.reserveRegs(1)
	fs.adjustLocals(1) // the function can refer to itself
	b := c.body(false, c.tok.Pos.Line)
	fs.storeVar(&v, &b)
	// debug info sees the variable only from here on
	fs.localVar(fs.nactvar - 1).StartPC = int32(fs.pc())
}

func (c *compiler) localStat() {
	fs := c.fs
	nvars := 0
	for {
		fs.newLocalVar(c.checkName())
		nvars++
		if !c.testNext(token.Comma) {
			break
		}
	}
	var e exprDesc
	nexps := 0
	if c.testNext(token.Assign) {
		e = c.expList(&nexps)
	}
	c.adjustAssign(nvars, nexps, &e)
	fs.adjustLocals(nvars)
}

// adjustAssign balances nvars targets against nexps values: a trailing
// open call or vararg stretches to cover the difference, otherwise
// missing values become nil and extras are evaluated then dropped.
func (c *compiler) adjustAssign(nvars, nexps int, e *exprDesc) {
	fs := c.fs
	extra := nvars - nexps
	if e.hasMultRet() {
		extra++ // includes the call itself
		if extra < 0 {
			extra = 0
		}
		fs.setReturns(e, extra)
		if extra > 1 {
			fs.reserveRegs(extra - 1)
		}
	} else {
		if e.kind != kindVoid {
			fs.exp2nextReg(e) // close the last expression
		}
		if extra > 0 {
			reg := fs.freeReg
			fs.reserveRegs(extra)
			fs.loadNil(reg, extra)
		}
	}
}

// lhsAssign chains the targets of a multiple assignment as they are
// parsed.
type lhsAssign struct {
	prev *lhsAssign
	v    exprDesc
}

// checkConflict guards earlier indexed targets against a later local
// target reusing their table or key register: the local's current
// value is copied to a fresh register and the targets redirected.
func (c *compiler) checkConflict(lh *lhsAssign, v *exprDesc) {
	fs := c.fs
	extra := fs.freeReg // register to save the local's value in
	conflict := false
	for ; lh != nil; lh = lh.prev {
		if lh.v.kind != kindIndexed {
			continue
		}
		if lh.v.info == v.info {
			conflict = true
			lh.v.info = extra
		}
		if lh.v.aux == v.info {
			conflict = true
			lh.v.aux = extra
		}
	}
	if conflict {
		fs.codeABC(bytecode.OpMove, fs.freeReg, v.info, 0)
		fs.reserveRegs(1)
	}
}

func (c *compiler) exprStat() {
	var lh lhsAssign
	c.suffixedExp(&lh.v)
	if c.tok.Type == token.Assign || c.tok.Type == token.Comma {
		c.assignment(&lh, 1)
	} else if lh.v.kind == kindCall {
		// a statement-level call keeps no results
		c.fs.instr(&lh.v).SetC(1)
	} else {
		c.syntaxError("syntax error")
	}
}

func (c *compiler) assignment(lh *lhsAssign, nvars int) {
	if lh.v.kind < kindLocal || lh.v.kind > kindIndexed {
		c.syntaxError("cannot assign to this expression")
	}
	var e exprDesc
	if c.testNext(token.Comma) {
		nv := lhsAssign{prev: lh}
		c.suffixedExp(&nv.v)
		if nv.v.kind == kindLocal {
			c.checkConflict(lh, &nv.v)
		}
		c.enterLevel()
		c.assignment(&nv, nvars+1)
		c.leaveLevel()
	} else {
		c.expect(token.Assign)
		nexps := 0
		e = c.expList(&nexps)
		if nexps != nvars {
			c.adjustAssign(nvars, nexps, &e)
			if nexps > nvars {
				c.fs.freeReg -= nexps - nvars // drop the extra values
			}
		} else {
			c.fs.setOneRet(&e) // close the last expression
			c.fs.storeVar(&lh.v, &e)
			return
		}
	}
	// each unwinding level stores the current topmost value; storeVar
	// frees that register, exposing the next value down
	initExp(&e, kindNonReloc, c.fs.freeReg-1)
	c.fs.storeVar(&lh.v, &e)
}

func (c *compiler) retStat() {
	fs := c.fs
	c.next() // skip 'return'
	first, nret := 0, 0
	if !blockFollow(c.tok.Type) && c.tok.Type != token.Semicolon {
		e := c.expList(&nret)
		if e.hasMultRet() {
			fs.setMultRet(&e)
			if e.kind == kindCall && nret == 1 { // tail call
				fs.instr(&e).SetOpCode(bytecode.OpTailCall)
				assertf(fs.instr(&e).A() == fs.nactvar, "misplaced tail call")
			}
			first = fs.nactvar
			nret = multRet
		} else if nret == 1 {
			first = fs.exp2anyReg(&e)
		} else {
			fs.exp2nextReg(&e) // values go to the stack top
			first = fs.nactvar
			assertf(nret == fs.freeReg-first, "return values misplaced")
		}
	}
	fs.ret(first, nret)
}
