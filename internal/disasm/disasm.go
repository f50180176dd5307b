// Package disasm renders compiled Eva code units as formatted
// per-opcode dumps. It is purely diagnostic: it reads already-compiled
// code and never mutates it.
package disasm

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"eva/internal/bytecode"
	"eva/internal/vm"
)

// Disassembler formats code units against the global table that their
// global operands index.
type Disassembler struct {
	global *vm.Global
	opName *color.Color
	header *color.Color
}

// New creates a disassembler. Colors honor the package-level color
// settings (color.NoColor).
func New(global *vm.Global) *Disassembler {
	return &Disassembler{
		global: global,
		opName: color.New(color.FgCyan),
		header: color.New(color.FgYellow, color.Bold),
	}
}

// Disassemble dumps one code unit.
func (d *Disassembler) Disassemble(w io.Writer, coObj *vm.Object) {
	co := coObj.Code
	d.header.Fprintf(w, "\n---------- Disassembly: %s/%d ----------\n\n", co.Name, co.Arity)

	offset := 0
	for offset < len(co.Bytecode) {
		offset = d.instruction(w, co, offset)
		fmt.Fprintln(w)
	}
}

// DisassembleAll dumps every unit, main first.
func (d *Disassembler) DisassembleAll(w io.Writer, codeObjects []*vm.Object) {
	for _, coObj := range codeObjects {
		d.Disassemble(w, coObj)
	}
}

// instruction formats the instruction at offset and returns the offset
// of the next one.
func (d *Disassembler) instruction(w io.Writer, co *vm.Code, offset int) int {
	fmt.Fprintf(w, "%04X     ", offset)

	op := bytecode.Op(co.Bytecode[offset])
	if !op.Valid() {
		d.dumpBytes(w, co, offset, 1)
		fmt.Fprintf(w, "<bad opcode 0x%02X>", byte(op))
		return offset + 1
	}

	size := 1 + op.Width()
	d.dumpBytes(w, co, offset, size)
	d.printOpcode(w, op)

	switch op {
	case bytecode.OpConst, bytecode.OpGetProp, bytecode.OpSetProp:
		idx := int(d.operand(co, offset))
		fmt.Fprintf(w, "%d (%s)", idx, constantString(co, idx))

	case bytecode.OpCompare:
		sub := bytecode.CompareOp(d.operand(co, offset))
		fmt.Fprintf(w, "%d (%s)", byte(sub), sub)

	case bytecode.OpJmp, bytecode.OpJmpIfFalse:
		addr := readWord(co, offset+1)
		fmt.Fprintf(w, "%04X", addr)

	case bytecode.OpGetGlobal, bytecode.OpSetGlobal:
		idx := int(d.operand(co, offset))
		fmt.Fprintf(w, "%d (%s)", idx, d.globalName(idx))

	case bytecode.OpGetLocal, bytecode.OpSetLocal:
		idx := int(d.operand(co, offset))
		fmt.Fprintf(w, "%d (%s)", idx, localName(co, idx))

	case bytecode.OpGetCell, bytecode.OpSetCell, bytecode.OpLoadCell:
		idx := int(d.operand(co, offset))
		fmt.Fprintf(w, "%d (%s)", idx, cellName(co, idx))

	case bytecode.OpScopeExit, bytecode.OpCall, bytecode.OpMakeFunction:
		fmt.Fprintf(w, "%d", d.operand(co, offset))
	}

	return offset + size
}

// dumpBytes prints the raw instruction bytes left-padded to a fixed
// column.
func (d *Disassembler) dumpBytes(w io.Writer, co *vm.Code, offset, count int) {
	var sb strings.Builder
	for i := 0; i < count && offset+i < len(co.Bytecode); i++ {
		fmt.Fprintf(&sb, "%02X ", co.Bytecode[offset+i])
	}
	fmt.Fprintf(w, "%-12s", sb.String())
}

func (d *Disassembler) printOpcode(w io.Writer, op bytecode.Op) {
	d.opName.Fprintf(w, "%-20s ", op)
}

// operand reads the one-byte immediate.
func (d *Disassembler) operand(co *vm.Code, offset int) byte {
	if offset+1 >= len(co.Bytecode) {
		return 0
	}
	return co.Bytecode[offset+1]
}

func readWord(co *vm.Code, offset int) uint16 {
	if offset+1 >= len(co.Bytecode) {
		return 0
	}
	return uint16(co.Bytecode[offset])<<8 | uint16(co.Bytecode[offset+1])
}

func constantString(co *vm.Code, idx int) string {
	if idx < 0 || idx >= len(co.Constants) {
		return "<out of range>"
	}
	return co.Constants[idx].String()
}

func (d *Disassembler) globalName(idx int) string {
	if !d.global.InRange(idx) {
		return "<out of range>"
	}
	return d.global.Get(idx).Name
}

func localName(co *vm.Code, idx int) string {
	// The locals table is consumed during compilation; names that were
	// popped on scope exit are no longer addressable.
	if idx < 0 || idx >= len(co.Locals) {
		return "<popped>"
	}
	return co.Locals[idx].Name
}

func cellName(co *vm.Code, idx int) string {
	if idx < 0 || idx >= len(co.CellNames) {
		return "<out of range>"
	}
	return co.CellNames[idx]
}
