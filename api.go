// Package brio compiles brio source text into register-machine
// bytecode. Compilation is a single pass: the parser emits
// instructions directly while reading the source, producing an
// immutable function prototype without building a syntax tree.
package brio

import (
	"io"
	"strings"

	"github.com/xirelogy/go-brio/internal/bytecode"
	"github.com/xirelogy/go-brio/internal/compiler"
)

// Proto is a compiled function prototype: its instructions, constant
// pool, nested prototypes, upvalue descriptors and debug metadata.
type Proto = bytecode.Proto

// Instruction is one encoded virtual-machine instruction.
type Instruction = bytecode.Instruction

// Error describes a failed compilation. Compile returns the first
// error encountered; no partial prototype accompanies it.
type Error = compiler.Error

// Kind discriminates compile errors.
type Kind = compiler.Kind

const (
	KindLex              = compiler.KindLex
	KindSyntax           = compiler.KindSyntax
	KindNestingTooDeep   = compiler.KindNestingTooDeep
	KindTooManyLocals    = compiler.KindTooManyLocals
	KindTooManyUpvalues  = compiler.KindTooManyUpvalues
	KindTooManyConstants = compiler.KindTooManyConstants
	KindTooManyRegisters = compiler.KindTooManyRegisters
)

// Compile compiles a source chunk into its root function prototype.
// The name identifies the chunk in error messages and debug metadata.
// On failure the returned error is a *Error.
func Compile(name, source string) (*Proto, error) {
	return compiler.Compile(name, source)
}

// CompileReader reads all of r and compiles it as one chunk.
func CompileReader(name string, r io.Reader) (*Proto, error) {
	source, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return compiler.Compile(name, string(source))
}

// Disassemble writes a readable listing of the prototype and all of
// its nested prototypes to w.
func Disassemble(w io.Writer, p *Proto) error {
	return bytecode.NewDisassembler(w).DisassembleProto("main", p)
}

// Dump returns the disassembly of p as a string.
func Dump(p *Proto) string {
	var sb strings.Builder
	if err := Disassemble(&sb, p); err != nil {
		return err.Error()
	}
	return sb.String()
}
