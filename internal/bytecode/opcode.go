package bytecode

// OpCode enumerates the register-machine operations understood by the
// execution engine. R(x) is a register, K(x) a constant, RK(x) either
// (distinguished by BitRK), G[x] the global table.
type OpCode uint8

const (
	OpMove      OpCode = iota // R(A) = R(B)
	OpLoadK                   // R(A) = K(Bx)
	OpLoadBool                // R(A) = (bool)B; if C, pc++
	OpLoadNil                 // R(A) ... R(B) = nil
	OpGetUpval                // R(A) = Up(B)
	OpGetGlobal               // R(A) = G[K(Bx)]
	OpGetTable                // R(A) = R(B)[RK(C)]
	OpSetGlobal               // G[K(Bx)] = R(A)
	OpSetUpval                // Up(B) = R(A)
	OpSetTable                // R(A)[RK(B)] = RK(C)
	OpNewTable                // R(A) = {} (array size B, hash size C)
	OpSelf                    // R(A+1) = R(B); R(A) = R(B)[RK(C)]
	OpAdd                     // R(A) = RK(B) + RK(C)
	OpSub                     // R(A) = RK(B) - RK(C)
	OpMul                     // R(A) = RK(B) * RK(C)
	OpDiv                     // R(A) = RK(B) / RK(C)
	OpMod                     // R(A) = RK(B) % RK(C)
	OpPow                     // R(A) = RK(B) ^ RK(C)
	OpUnm                     // R(A) = -R(B)
	OpNot                     // R(A) = not R(B)
	OpLen                     // R(A) = #R(B)
	OpConcat                  // R(A) = R(B) .. ... .. R(C)
	OpJmp                     // pc += sBx
	OpEq                      // if (RK(B) == RK(C)) != A, pc++
	OpLt                      // if (RK(B) <  RK(C)) != A, pc++
	OpLe                      // if (RK(B) <= RK(C)) != A, pc++
	OpTest                    // if bool(R(A)) != C, pc++
	OpTestSet                 // if bool(R(B)) == C, R(A) = R(B); else pc++
	OpCall                    // R(A)..R(A+C-2) = R(A)(R(A+1)..R(A+B-1))
	OpTailCall                // return R(A)(R(A+1)..R(A+B-1))
	OpReturn                  // return R(A)..R(A+B-2)
	OpForLoop                 // numeric for step/limit check, jump sBx
	OpForPrep                 // numeric for init, jump sBx
	OpTForLoop                // generic for iterator call
	OpSetList                 // R(A)[(C-1)*FPF+i] = R(A+i), 1 <= i <= B
	OpClose                   // close upvalues >= R(A)
	OpClosure                 // R(A) = closure(Proto[Bx])
	OpVararg                  // R(A)..R(A+B-2) = ...
)

// FieldsPerFlush is the number of array entries one OpSetList stores.
const FieldsPerFlush = 50

type mode uint8

const (
	modeABC mode = iota
	modeABx
	modeAsBx
)

type argKind uint8

const (
	argUnused argKind = iota
	argUsed           // plain value
	argReg            // register or jump offset
	argRK             // register or constant
)

type opProps struct {
	name string
	mode mode
	b, c argKind
	// test marks conditional instructions that must be followed by a jump.
	test bool
	// setsA marks instructions writing register A.
	setsA bool
}

var opInfo = [...]opProps{
	OpMove:      {"MOVE", modeABC, argReg, argUnused, false, true},
	OpLoadK:     {"LOADK", modeABx, argRK, argUnused, false, true},
	OpLoadBool:  {"LOADBOOL", modeABC, argUsed, argUsed, false, true},
	OpLoadNil:   {"LOADNIL", modeABC, argUsed, argUnused, false, true},
	OpGetUpval:  {"GETUPVAL", modeABC, argUsed, argUnused, false, true},
	OpGetGlobal: {"GETGLOBAL", modeABx, argRK, argUnused, false, true},
	OpGetTable:  {"GETTABLE", modeABC, argReg, argRK, false, true},
	OpSetGlobal: {"SETGLOBAL", modeABx, argRK, argUnused, false, false},
	OpSetUpval:  {"SETUPVAL", modeABC, argUsed, argUnused, false, false},
	OpSetTable:  {"SETTABLE", modeABC, argRK, argRK, false, false},
	OpNewTable:  {"NEWTABLE", modeABC, argUsed, argUsed, false, true},
	OpSelf:      {"SELF", modeABC, argReg, argRK, false, true},
	OpAdd:       {"ADD", modeABC, argRK, argRK, false, true},
	OpSub:       {"SUB", modeABC, argRK, argRK, false, true},
	OpMul:       {"MUL", modeABC, argRK, argRK, false, true},
	OpDiv:       {"DIV", modeABC, argRK, argRK, false, true},
	OpMod:       {"MOD", modeABC, argRK, argRK, false, true},
	OpPow:       {"POW", modeABC, argRK, argRK, false, true},
	OpUnm:       {"UNM", modeABC, argReg, argUnused, false, true},
	OpNot:       {"NOT", modeABC, argReg, argUnused, false, true},
	OpLen:       {"LEN", modeABC, argReg, argUnused, false, true},
	OpConcat:    {"CONCAT", modeABC, argReg, argReg, false, true},
	OpJmp:       {"JMP", modeAsBx, argReg, argUnused, false, false},
	OpEq:        {"EQ", modeABC, argRK, argRK, true, false},
	OpLt:        {"LT", modeABC, argRK, argRK, true, false},
	OpLe:        {"LE", modeABC, argRK, argRK, true, false},
	OpTest:      {"TEST", modeABC, argUnused, argUsed, true, false},
	OpTestSet:   {"TESTSET", modeABC, argReg, argUsed, true, true},
	OpCall:      {"CALL", modeABC, argUsed, argUsed, false, true},
	OpTailCall:  {"TAILCALL", modeABC, argUsed, argUsed, false, true},
	OpReturn:    {"RETURN", modeABC, argUsed, argUnused, false, false},
	OpForLoop:   {"FORLOOP", modeAsBx, argReg, argUnused, false, true},
	OpForPrep:   {"FORPREP", modeAsBx, argReg, argUnused, false, true},
	OpTForLoop:  {"TFORLOOP", modeABC, argUnused, argUsed, true, true},
	OpSetList:   {"SETLIST", modeABC, argUsed, argUsed, false, false},
	OpClose:     {"CLOSE", modeABC, argUnused, argUnused, false, false},
	OpClosure:   {"CLOSURE", modeABx, argUsed, argUnused, false, true},
	OpVararg:    {"VARARG", modeABC, argUsed, argUnused, false, true},
}

func (op OpCode) String() string {
	if int(op) < len(opInfo) {
		return opInfo[op].name
	}
	return "UNKNOWN"
}

// Mode helpers used by the emitter's operand checks.

// TestMode reports whether op is a conditional test followed by a jump.
func TestMode(op OpCode) bool { return opInfo[op].test }

// SetsA reports whether op writes register A.
func SetsA(op OpCode) bool { return opInfo[op].setsA }

// ABCMode reports whether op uses the three-operand layout.
func ABCMode(op OpCode) bool { return opInfo[op].mode == modeABC }
