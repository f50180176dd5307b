// Package lexer tokenizes Eva S-expression source text.
package lexer

import (
	"eva/internal/diag"
	"eva/internal/source"
	"eva/internal/token"
)

// Lexer produces tokens for a single source file. Comments and
// whitespace are collected as leading trivia of the following token.
type Lexer struct {
	file   *source.File
	cursor Cursor
	bag    *diag.Bag
	look   *token.Token   // one-token lookahead buffer
	hold   []token.Trivia // accumulated leading trivia
}

// New creates a lexer over the given file. Problems are reported into bag.
func New(file *source.File, bag *diag.Bag) *Lexer {
	return &Lexer{
		file:   file,
		cursor: NewCursor(file),
		bag:    bag,
	}
}

// Next returns the next significant token with its Leading trivia attached.
// After EOF it always returns EOF.
func (lx *Lexer) Next() token.Token {
	if lx.look != nil {
		tok := *lx.look
		lx.look = nil
		return tok
	}

	lx.collectLeadingTrivia()

	if lx.cursor.EOF() {
		return token.Token{
			Kind: token.EOF,
			Span: lx.emptySpan(),
		}
	}

	ch := lx.cursor.Peek()
	var tok token.Token

	switch {
	case ch == '(':
		tok = lx.scanSingle(token.LParen)
	case ch == ')':
		tok = lx.scanSingle(token.RParen)
	case isDec(ch):
		tok = lx.scanNumber()
	case ch == '"':
		tok = lx.scanString()
	case isSymbolByte(ch):
		tok = lx.scanSymbol()
	default:
		tok = lx.scanInvalid()
	}

	tok.Leading = lx.hold
	lx.hold = nil

	return tok
}

// Peek returns the next token without consuming it.
func (lx *Lexer) Peek() token.Token {
	t := lx.Next()
	lx.look = &t
	return t
}

// Tokenize drains the lexer, returning every token up to and including EOF.
func (lx *Lexer) Tokenize() []token.Token {
	var out []token.Token
	for {
		tok := lx.Next()
		out = append(out, tok)
		if tok.Kind == token.EOF {
			return out
		}
	}
}

func (lx *Lexer) emptySpan() source.Span {
	return source.Span{File: lx.file.ID, Start: lx.cursor.Off, End: lx.cursor.Off}
}

func (lx *Lexer) scanSingle(kind token.Kind) token.Token {
	m := lx.cursor.Mark()
	b := lx.cursor.Bump()
	return token.Token{
		Kind: kind,
		Span: lx.cursor.SpanFrom(m),
		Text: string(b),
	}
}

func (lx *Lexer) scanInvalid() token.Token {
	m := lx.cursor.Mark()
	b := lx.cursor.Bump()
	span := lx.cursor.SpanFrom(m)
	lx.bag.Add(diag.Diagnostic{
		Severity: diag.SevError,
		Code:     diag.LexUnknownChar,
		Message:  "unknown character " + string(b),
		Primary:  span,
	})
	return token.Token{
		Kind: token.Invalid,
		Span: span,
		Text: string(b),
	}
}
