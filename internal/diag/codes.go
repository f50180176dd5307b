package diag

import (
	"fmt"
)

type Code uint16

const (
	UnknownCode Code = 0

	// Lexical
	LexInfo                     Code = 1000
	LexUnknownChar              Code = 1001
	LexUnterminatedString       Code = 1002
	LexUnterminatedBlockComment Code = 1003
	LexBadNumber                Code = 1004
	LexBadEscape                Code = 1005

	// Syntactic
	SynInfo            Code = 2000
	SynUnexpectedToken Code = 2001
	SynUnclosedParen   Code = 2002
	SynExtraParen      Code = 2003
	SynEmptyList       Code = 2004
	SynExpectSymbol    Code = 2005
	SynExpectParams    Code = 2006
	SynBadSpecialForm  Code = 2007

	// Compile-time
	CompInfo              Code = 3000
	CompUndefinedVariable Code = 3001
	CompUndefinedGlobal   Code = 3002
	CompConstPoolOverflow Code = 3003
	CompLocalsOverflow    Code = 3004
	CompCellsOverflow     Code = 3005
	CompGlobalsOverflow   Code = 3006
	CompJumpTooFar        Code = 3007
	CompUnknownClass      Code = 3008
	CompNoSuperclass      Code = 3009
	CompBadArity          Code = 3010
)

// String renders the code in the stable "EVA####" form used in output
// and golden files.
func (c Code) String() string {
	return fmt.Sprintf("EVA%04d", uint16(c))
}
