package bytecode

// Value is a compile-time constant: nil, bool, int64, float64 or string.
type Value interface{}

// UpvalueDesc describes one captured variable of a prototype. InStack
// means the value lives in a register of the directly enclosing
// function; otherwise Index refers to the enclosing function's own
// upvalue list.
type UpvalueDesc struct {
	Name    string
	InStack bool
	Index   uint8
}

// LocalVar records the liveness range of a named local, for debug
// information. The variable is live for pc in [StartPC, EndPC).
type LocalVar struct {
	Name    string
	StartPC int32
	EndPC   int32
}

// Proto is an immutable compiled function: its instructions, constant
// pool, nested prototypes and metadata. It is produced once per
// function body and handed to the execution engine.
type Proto struct {
	Source          string
	LineDefined     int
	LastLineDefined int
	NumParams       uint8
	IsVararg        bool
	MaxStackSize    uint8

	Code      []Instruction
	Constants []Value
	Protos    []*Proto
	Upvalues  []UpvalueDesc

	// debug information
	Lines     []int32 // source line per instruction
	LocalVars []LocalVar
}

// Line returns the source line for the instruction at pc, or 0 when no
// line information was recorded.
func (p *Proto) Line(pc int) int {
	if pc < 0 || pc >= len(p.Lines) {
		return 0
	}
	return int(p.Lines[pc])
}
