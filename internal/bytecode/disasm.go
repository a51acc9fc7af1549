package bytecode

import (
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Disassembler formats compiled prototypes as a readable assembly-style
// dump, one function section per prototype, nested functions following
// their parent.
type Disassembler struct {
	w       io.Writer
	visited map[*Proto]bool
	printed bool
}

// NewDisassembler constructs a disassembler that writes to w.
func NewDisassembler(w io.Writer) *Disassembler {
	return &Disassembler{
		w:       w,
		visited: make(map[*Proto]bool),
	}
}

// DisassembleProto emits a readable dump for a prototype and all of its
// nested prototypes.
func (d *Disassembler) DisassembleProto(label string, p *Proto) error {
	if p == nil {
		return fmt.Errorf("nil prototype")
	}
	if d.visited[p] {
		return nil
	}
	d.visited[p] = true
	d.startSection()

	name := label
	if name == "" {
		name = "<main>"
	}
	vararg := ""
	if p.IsVararg {
		vararg = "+"
	}
	fmt.Fprintf(d.w, "func %s <%s:%d> (params=%d%s, stack=%d, upvalues=%d, constants=%d)\n",
		name, p.Source, p.LineDefined, p.NumParams, vararg, p.MaxStackSize, len(p.Upvalues), len(p.Constants))
	for pc, inst := range p.Code {
		fmt.Fprintf(d.w, "\t%d\t[%d]\t%s%s\n", pc+1, p.Line(pc), inst, d.annotate(p, pc, inst))
	}
	for i, uv := range p.Upvalues {
		where := "upvalue"
		if uv.InStack {
			where = "local"
		}
		fmt.Fprintf(d.w, "\tupvalue %d\t%s\t; %s %d of enclosing function\n", i, uv.Name, where, uv.Index)
	}

	for i, child := range p.Protos {
		childLabel := fmt.Sprintf("%s:<%d>", name, i)
		if err := d.DisassembleProto(childLabel, child); err != nil {
			return err
		}
	}
	return nil
}

func (d *Disassembler) startSection() {
	if d.printed {
		fmt.Fprintln(d.w)
	}
	d.printed = true
}

// annotate renders the "; ..." comment: constant values for K/RK
// operands and absolute targets for jumps.
func (d *Disassembler) annotate(p *Proto, pc int, inst Instruction) string {
	op := inst.OpCode()
	info := opInfo[op]
	var notes []string
	switch info.mode {
	case modeABx:
		if info.b == argRK {
			notes = append(notes, quoteConstant(p, inst.Bx()))
		}
	case modeAsBx:
		notes = append(notes, fmt.Sprintf("to %d", pc+1+inst.SBx()+1))
	default:
		if info.b == argRK && IsConstant(inst.B()) {
			notes = append(notes, quoteConstant(p, ConstantIndex(inst.B())))
		}
		if info.c == argRK && IsConstant(inst.C()) {
			notes = append(notes, quoteConstant(p, ConstantIndex(inst.C())))
		}
	}
	if len(notes) == 0 {
		return ""
	}
	return "\t; " + strings.Join(notes, " ")
}

func quoteConstant(p *Proto, index int) string {
	if index < 0 || index >= len(p.Constants) {
		return fmt.Sprintf("K(%d)?", index)
	}
	switch v := p.Constants[index].(type) {
	case nil:
		return "nil"
	case bool:
		return strconv.FormatBool(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64)
	case string:
		return strconv.Quote(v)
	default:
		return fmt.Sprintf("%v", v)
	}
}

// Dump returns the full disassembly of a prototype as a string. It is a
// convenience wrapper for tests and tooling.
func Dump(p *Proto) string {
	var sb strings.Builder
	d := NewDisassembler(&sb)
	if err := d.DisassembleProto("", p); err != nil {
		return err.Error()
	}
	return sb.String()
}
