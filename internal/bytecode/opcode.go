// Package bytecode defines the Eva instruction set.
//
// Opcodes are one byte. Immediates are one byte (pool, local, cell and
// global indices, call/scope counts, compare sub-op) except for jump
// targets, which are two-byte big-endian absolute offsets into the
// enclosing code unit.
package bytecode

import "fmt"

// Op is a single opcode byte.
type Op byte

const (
	// OpHalt stops the machine and yields the top of stack.
	OpHalt Op = iota
	// OpConst pushes a constant-pool entry.
	OpConst
	// OpAdd pops two operands and pushes their sum (number) or
	// concatenation (string).
	OpAdd
	// OpSub pops two operands and pushes their difference.
	OpSub
	// OpMul pops two operands and pushes their product.
	OpMul
	// OpDiv pops two operands and pushes their quotient.
	OpDiv
	// OpCompare pops two operands and pushes a boolean; the immediate
	// selects the relation.
	OpCompare
	// OpJmpIfFalse pops a boolean and jumps when it is false.
	OpJmpIfFalse
	// OpJmp jumps unconditionally.
	OpJmp
	// OpGetGlobal pushes a global slot's value.
	OpGetGlobal
	// OpSetGlobal stores the top of stack into a global slot (no pop).
	OpSetGlobal
	// OpPop discards the top of stack.
	OpPop
	// OpGetLocal pushes a frame slot.
	OpGetLocal
	// OpSetLocal stores the top of stack into a frame slot (no pop).
	OpSetLocal
	// OpScopeExit slides the top of stack down over N discarded slots.
	OpScopeExit
	// OpCall invokes the callee sitting below its N arguments.
	OpCall
	// OpReturn pops the current frame.
	OpReturn
	// OpGetCell pushes the value held by a captured cell.
	OpGetCell
	// OpSetCell stores the top of stack into a cell, allocating the
	// cell on first store (no pop).
	OpSetCell
	// OpLoadCell pushes the cell reference itself.
	OpLoadCell
	// OpMakeFunction pops a code unit and N cells and pushes a closure.
	OpMakeFunction
	// OpNew pops a class and pushes its constructor and a fresh instance.
	OpNew
	// OpGetProp pops a receiver and pushes the named property.
	OpGetProp
	// OpSetProp pops a receiver and a value, stores the property, and
	// pushes the value back.
	OpSetProp
)

// opNames maps opcodes to their mnemonic names.
var opNames = [...]string{
	OpHalt:         "HALT",
	OpConst:        "CONST",
	OpAdd:          "ADD",
	OpSub:          "SUB",
	OpMul:          "MUL",
	OpDiv:          "DIV",
	OpCompare:      "COMPARE",
	OpJmpIfFalse:   "JMP_IF_FALSE",
	OpJmp:          "JMP",
	OpGetGlobal:    "GET_GLOBAL",
	OpSetGlobal:    "SET_GLOBAL",
	OpPop:          "POP",
	OpGetLocal:     "GET_LOCAL",
	OpSetLocal:     "SET_LOCAL",
	OpScopeExit:    "SCOPE_EXIT",
	OpCall:         "CALL",
	OpReturn:       "RETURN",
	OpGetCell:      "GET_CELL",
	OpSetCell:      "SET_CELL",
	OpLoadCell:     "LOAD_CELL",
	OpMakeFunction: "MAKE_FUNCTION",
	OpNew:          "NEW",
	OpGetProp:      "GET_PROP",
	OpSetProp:      "SET_PROP",
}

// String returns the opcode mnemonic.
func (op Op) String() string {
	if int(op) < len(opNames) && opNames[op] != "" {
		return opNames[op]
	}
	return fmt.Sprintf("Op(%d)", byte(op))
}

// Valid reports whether the byte is a defined opcode.
func (op Op) Valid() bool {
	return int(op) < len(opNames) && opNames[op] != ""
}

// Width returns the size of the instruction's immediate in bytes.
func (op Op) Width() int {
	switch op {
	case OpJmp, OpJmpIfFalse:
		return 2
	case OpConst, OpCompare, OpGetGlobal, OpSetGlobal, OpGetLocal, OpSetLocal,
		OpScopeExit, OpCall, OpGetCell, OpSetCell, OpLoadCell, OpMakeFunction,
		OpGetProp, OpSetProp:
		return 1
	default:
		return 0
	}
}

// CompareOp is the one-byte immediate of OpCompare.
type CompareOp byte

const (
	CmpLt CompareOp = iota
	CmpGt
	CmpEq
	CmpGe
	CmpLe
	CmpNe
)

// compareNames maps compare sub-ops to their source spellings.
var compareNames = [...]string{
	CmpLt: "<",
	CmpGt: ">",
	CmpEq: "==",
	CmpGe: ">=",
	CmpLe: "<=",
	CmpNe: "!=",
}

// String returns the source spelling of the relation.
func (c CompareOp) String() string {
	if int(c) < len(compareNames) {
		return compareNames[c]
	}
	return fmt.Sprintf("Cmp(%d)", byte(c))
}

// CompareOps maps source operator spellings to sub-ops.
var CompareOps = map[string]CompareOp{
	"<":  CmpLt,
	">":  CmpGt,
	"==": CmpEq,
	">=": CmpGe,
	"<=": CmpLe,
	"!=": CmpNe,
}
