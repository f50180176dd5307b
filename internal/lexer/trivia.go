package lexer

import (
	"eva/internal/diag"
	"eva/internal/token"
)

// collectLeadingTrivia consumes whitespace and comments into lx.hold.
func (lx *Lexer) collectLeadingTrivia() {
	for !lx.cursor.EOF() {
		ch := lx.cursor.Peek()
		switch {
		case isSpace(ch):
			lx.scanWhitespace()
		case ch == '/':
			b0, b1, ok := lx.cursor.Peek2()
			if !ok || b0 != '/' {
				return
			}
			switch b1 {
			case '/':
				lx.scanLineComment()
			case '*':
				lx.scanBlockComment()
			default:
				return
			}
		default:
			return
		}
	}
}

func (lx *Lexer) scanWhitespace() {
	m := lx.cursor.Mark()
	for !lx.cursor.EOF() && isSpace(lx.cursor.Peek()) {
		lx.cursor.Bump()
	}
	lx.hold = append(lx.hold, token.Trivia{
		Kind: token.TriviaWhitespace,
		Span: lx.cursor.SpanFrom(m),
	})
}

func (lx *Lexer) scanLineComment() {
	m := lx.cursor.Mark()
	for !lx.cursor.EOF() && lx.cursor.Peek() != '\n' {
		lx.cursor.Bump()
	}
	lx.hold = append(lx.hold, token.Trivia{
		Kind: token.TriviaLineComment,
		Span: lx.cursor.SpanFrom(m),
	})
}

func (lx *Lexer) scanBlockComment() {
	m := lx.cursor.Mark()
	lx.cursor.Bump() // '/'
	lx.cursor.Bump() // '*'
	closed := false
	for !lx.cursor.EOF() {
		b0, b1, ok := lx.cursor.Peek2()
		if ok && b0 == '*' && b1 == '/' {
			lx.cursor.Bump()
			lx.cursor.Bump()
			closed = true
			break
		}
		lx.cursor.Bump()
	}
	span := lx.cursor.SpanFrom(m)
	if !closed {
		lx.bag.Add(diag.Diagnostic{
			Severity: diag.SevError,
			Code:     diag.LexUnterminatedBlockComment,
			Message:  "unterminated block comment",
			Primary:  span,
		})
	}
	lx.hold = append(lx.hold, token.Trivia{
		Kind: token.TriviaBlockComment,
		Span: span,
	})
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}

func isDec(b byte) bool {
	return b >= '0' && b <= '9'
}

// isSymbolByte matches the symbol alphabet: word characters plus the
// operator characters - + * = ! < > /.
func isSymbolByte(b byte) bool {
	switch {
	case b >= 'a' && b <= 'z':
		return true
	case b >= 'A' && b <= 'Z':
		return true
	case b >= '0' && b <= '9':
		return true
	}
	switch b {
	case '_', '-', '+', '*', '=', '!', '<', '>', '/':
		return true
	}
	return false
}
