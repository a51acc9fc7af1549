package compiler

import "fmt"

// Kind discriminates compile errors.
type Kind int

const (
	KindLex              Kind = iota // malformed token
	KindSyntax                       // grammar violation
	KindNestingTooDeep               // recursion limit exceeded
	KindTooManyLocals                // more locals than the register file allows
	KindTooManyUpvalues              // upvalue descriptor limit exceeded
	KindTooManyConstants             // constant pool index no longer encodable
	KindTooManyRegisters             // expression needs more registers than available
)

func (k Kind) String() string {
	switch k {
	case KindLex:
		return "lex error"
	case KindSyntax:
		return "syntax error"
	case KindNestingTooDeep:
		return "nesting too deep"
	case KindTooManyLocals:
		return "too many locals"
	case KindTooManyUpvalues:
		return "too many upvalues"
	case KindTooManyConstants:
		return "too many constants"
	case KindTooManyRegisters:
		return "too many registers"
	}
	return "unknown error"
}

// Error is the single terminal result of a failed compilation. No
// partial prototype accompanies it; the compiler stops at the first
// error.
type Error struct {
	Kind   Kind
	Source string
	Line   int
	Msg    string
}

func (e *Error) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s:%d: %s", e.Source, e.Line, e.Msg)
	}
	return fmt.Sprintf("%s: %s", e.Source, e.Msg)
}
