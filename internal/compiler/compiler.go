// Package compiler implements the single-pass brio compiler: a
// recursive-descent parser that emits register-machine instructions
// directly while parsing, with no intermediate syntax tree. Scope
// tracking, register allocation, constant folding and jump
// backpatching all happen as side effects of the descent.
package compiler

import (
	"fmt"

	"github.com/xirelogy/go-brio/internal/bytecode"
	"github.com/xirelogy/go-brio/internal/lexer"
	"github.com/xirelogy/go-brio/internal/token"
)

// Compile compiles a complete source chunk into its root function
// prototype. The name is used in diagnostics only. On failure the
// returned error is always a *Error; no partial prototype is produced.
func Compile(name, source string) (proto *bytecode.Proto, err error) {
	defer func() {
		if r := recover(); r != nil {
			if cerr, ok := r.(*Error); ok {
				proto, err = nil, cerr
				return
			}
			panic(r)
		}
	}()

	c := &compiler{
		lx:       lexer.New(name, source),
		source:   name,
		lastLine: 1,
	}
	fs := c.openFunction(0)
	fs.proto.IsVararg = true // main chunk accepts varargs
	c.next()
	c.statList()
	if c.tok.Type != token.EOF {
		c.errorExpected(token.EOF)
	}
	return c.closeFunction(), nil
}

// compiler drives the parse. Errors unwind via panic with a *Error and
// are recovered at the Compile boundary, keeping the descent free of
// error plumbing.
type compiler struct {
	lx       *lexer.Lexer
	source   string
	tok      token.Token // current token
	lastLine int         // line of the previous token, for emission
	fs       *funcState  // function currently being compiled
	nesting  int         // statement/expression recursion depth
}

// next advances to the following token.
func (c *compiler) next() {
	if c.tok.Pos.Line > 0 {
		c.lastLine = c.tok.Pos.Line
	}
	t, err := c.lx.Next()
	if err != nil {
		c.lexFail(err)
	}
	c.tok = t
}

// peek returns the lookahead token without consuming it.
func (c *compiler) peek() token.Token {
	t, err := c.lx.Peek()
	if err != nil {
		c.lexFail(err)
	}
	return t
}

func (c *compiler) lexFail(err error) {
	if lerr, ok := err.(*lexer.Error); ok {
		panic(&Error{Kind: KindLex, Source: lerr.Source, Line: lerr.Line, Msg: lerr.Msg})
	}
	panic(&Error{Kind: KindLex, Source: c.source, Line: c.lastLine, Msg: err.Error()})
}

func (c *compiler) fail(kind Kind, line int, format string, args ...interface{}) {
	panic(&Error{Kind: kind, Source: c.source, Line: line, Msg: fmt.Sprintf(format, args...)})
}

// syntaxError reports a grammar violation at the current token,
// quoting it for context.
func (c *compiler) syntaxError(msg string) {
	near := token.Describe(c.tok.Type)
	switch c.tok.Type {
	case token.Ident, token.Number, token.String:
		near = c.tok.Literal
	}
	c.fail(KindSyntax, c.tok.Pos.Line, "%s near '%s'", msg, near)
}

func (c *compiler) errorExpected(t token.Type) {
	c.syntaxError(fmt.Sprintf("'%s' expected", token.Describe(t)))
}

// checkLimit fails compilation when a fixed-capacity encoding limit is
// exceeded.
func (c *compiler) checkLimit(n, limit int, kind Kind, what string) {
	if n > limit {
		c.fail(kind, c.lastLine, "too many %s (limit is %d)", what, limit)
	}
}

func (c *compiler) enterLevel() {
	c.nesting++
	if c.nesting > maxNesting {
		c.fail(KindNestingTooDeep, c.tok.Pos.Line, "chunk has too many syntax levels (limit is %d)", maxNesting)
	}
}

func (c *compiler) leaveLevel() {
	c.nesting--
}

// check verifies the current token type without consuming it.
func (c *compiler) check(t token.Type) {
	if c.tok.Type != t {
		c.errorExpected(t)
	}
}

// expect consumes the current token, which must be of type t.
func (c *compiler) expect(t token.Type) {
	c.check(t)
	c.next()
}

// testNext consumes the current token when it is of type t.
func (c *compiler) testNext(t token.Type) bool {
	if c.tok.Type == t {
		c.next()
		return true
	}
	return false
}

// checkMatch expects the closing token of a construct opened by who at
// the given line, naming the opener in the error when they differ.
func (c *compiler) checkMatch(what, who token.Type, line int) {
	if !c.testNext(what) {
		if line == c.tok.Pos.Line {
			c.errorExpected(what)
		} else {
			c.syntaxError(fmt.Sprintf("'%s' expected (to close '%s' at line %d)",
				token.Describe(what), token.Describe(who), line))
		}
	}
}

// checkName consumes an identifier and returns its name.
func (c *compiler) checkName() string {
	c.check(token.Ident)
	name := c.tok.Literal
	c.next()
	return name
}
