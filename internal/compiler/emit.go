package compiler

import (
	"fortio.org/safecast"
	"golang.org/x/text/unicode/norm"

	"eva/internal/bytecode"
	"eva/internal/diag"
	"eva/internal/source"
	"eva/internal/vm"
)

// emit appends one opcode byte.
func (c *Compiler) emit(op bytecode.Op) {
	c.co.Bytecode = append(c.co.Bytecode, byte(op))
}

// emitByte appends a raw immediate byte.
func (c *Compiler) emitByte(b byte) {
	c.co.Bytecode = append(c.co.Bytecode, b)
}

// emitOperand narrows an index into the one-byte immediate, reporting
// overflowCode when it does not fit.
func (c *Compiler) emitOperand(idx int, overflowCode diag.Code, span source.Span) {
	b, err := safecast.Conv[uint8](idx)
	if err != nil {
		c.errorf(overflowCode, span, "operand %d exceeds the single-byte limit", idx)
		b = 0
	}
	c.emitByte(b)
}

// emitConst emits OpConst with the given pool index.
func (c *Compiler) emitConst(idx int, span source.Span) {
	c.emit(bytecode.OpConst)
	c.emitOperand(idx, diag.CompConstPoolOverflow, span)
}

// emitJump emits a jump with a zero placeholder address and returns
// the placeholder offset for patching.
func (c *Compiler) emitJump(op bytecode.Op) int {
	c.emit(op)
	at := c.offset()
	c.emitByte(0)
	c.emitByte(0)
	return at
}

// patchJump points the placeholder at the current offset.
func (c *Compiler) patchJump(at int, span source.Span) {
	c.patchJumpTo(at, c.offset(), span)
}

// patchJumpTo writes a big-endian absolute target into the placeholder.
func (c *Compiler) patchJumpTo(at, target int, span source.Span) {
	addr, err := safecast.Conv[uint16](target)
	if err != nil {
		c.errorf(diag.CompJumpTooFar, span, "jump target %d exceeds the two-byte limit", target)
		addr = 0
	}
	c.co.Bytecode[at] = byte(addr >> 8)
	c.co.Bytecode[at+1] = byte(addr)
}

// offset returns the current emission offset.
func (c *Compiler) offset() int {
	return len(c.co.Bytecode)
}

// numericConstIdx interns a numeric constant, deduplicated by value.
func (c *Compiler) numericConstIdx(n float64) int {
	for i, v := range c.co.Constants {
		if v.IsNumber() && v.Num == n {
			return i
		}
	}
	return c.co.AddConst(vm.MakeNumber(n))
}

// booleanConstIdx interns a boolean constant.
func (c *Compiler) booleanConstIdx(b bool) int {
	for i, v := range c.co.Constants {
		if v.IsBool() && v.Bool == b {
			return i
		}
	}
	return c.co.AddConst(vm.MakeBool(b))
}

// stringConstIdx interns a string constant, deduplicated by NFC-
// normalized content.
func (c *Compiler) stringConstIdx(s string) int {
	s = norm.NFC.String(s)
	for i, v := range c.co.Constants {
		if v.IsString() && v.AsString() == s {
			return i
		}
	}
	return c.co.AddConst(vm.MakeObject(c.heap.AllocString(s)))
}

// objectConstIdx interns an object constant by identity.
func (c *Compiler) objectConstIdx(obj *vm.Object) int {
	for i, v := range c.co.Constants {
		if v.IsObject() && v.Obj == obj {
			return i
		}
	}
	return c.co.AddConst(vm.MakeObject(obj))
}

// checkLocalCount reports when the locals table outgrows the one-byte
// operand space.
func (c *Compiler) checkLocalCount(span source.Span) {
	if len(c.co.Locals) > 256 {
		c.errorf(diag.CompLocalsOverflow, span, "too many locals in %s (max 256)", c.co.Name)
	}
}
