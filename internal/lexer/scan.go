package lexer

import (
	"strings"

	"eva/internal/diag"
	"eva/internal/token"
)

// scanNumber scans an integer numeral with an optional fraction part.
func (lx *Lexer) scanNumber() token.Token {
	m := lx.cursor.Mark()
	for !lx.cursor.EOF() && isDec(lx.cursor.Peek()) {
		lx.cursor.Bump()
	}
	if b0, b1, ok := lx.cursor.Peek2(); ok && b0 == '.' && isDec(b1) {
		lx.cursor.Bump() // '.'
		for !lx.cursor.EOF() && isDec(lx.cursor.Peek()) {
			lx.cursor.Bump()
		}
	}
	span := lx.cursor.SpanFrom(m)

	// A numeral immediately followed by symbol bytes ("12abc") is malformed.
	if !lx.cursor.EOF() && isSymbolByte(lx.cursor.Peek()) {
		for !lx.cursor.EOF() && isSymbolByte(lx.cursor.Peek()) {
			lx.cursor.Bump()
		}
		span = lx.cursor.SpanFrom(m)
		lx.bag.Add(diag.Diagnostic{
			Severity: diag.SevError,
			Code:     diag.LexBadNumber,
			Message:  "malformed number " + lx.text(m),
			Primary:  span,
		})
		return token.Token{Kind: token.Invalid, Span: span, Text: lx.text(m)}
	}

	return token.Token{
		Kind: token.Number,
		Span: span,
		Text: lx.text(m),
	}
}

// scanString scans a double-quoted string literal with \" \\ \n \t \r
// escapes. The token Text carries the decoded contents.
func (lx *Lexer) scanString() token.Token {
	m := lx.cursor.Mark()
	lx.cursor.Bump() // opening quote

	var sb strings.Builder
	for {
		if lx.cursor.EOF() || lx.cursor.Peek() == '\n' {
			span := lx.cursor.SpanFrom(m)
			lx.bag.Add(diag.Diagnostic{
				Severity: diag.SevError,
				Code:     diag.LexUnterminatedString,
				Message:  "unterminated string literal",
				Primary:  span,
			})
			return token.Token{Kind: token.Invalid, Span: span, Text: sb.String()}
		}

		b := lx.cursor.Bump()
		switch b {
		case '"':
			return token.Token{
				Kind: token.String,
				Span: lx.cursor.SpanFrom(m),
				Text: sb.String(),
			}
		case '\\':
			esc := lx.cursor.Bump()
			switch esc {
			case '"':
				sb.WriteByte('"')
			case '\\':
				sb.WriteByte('\\')
			case 'n':
				sb.WriteByte('\n')
			case 't':
				sb.WriteByte('\t')
			case 'r':
				sb.WriteByte('\r')
			default:
				lx.bag.Add(diag.Diagnostic{
					Severity: diag.SevError,
					Code:     diag.LexBadEscape,
					Message:  "unknown escape sequence \\" + string(esc),
					Primary:  lx.cursor.SpanFrom(m),
				})
			}
		default:
			sb.WriteByte(b)
		}
	}
}

func (lx *Lexer) scanSymbol() token.Token {
	m := lx.cursor.Mark()
	for !lx.cursor.EOF() && isSymbolByte(lx.cursor.Peek()) {
		lx.cursor.Bump()
	}
	return token.Token{
		Kind: token.Symbol,
		Span: lx.cursor.SpanFrom(m),
		Text: lx.text(m),
	}
}

func (lx *Lexer) text(m Mark) string {
	return string(lx.file.Content[uint32(m):lx.cursor.Off])
}
