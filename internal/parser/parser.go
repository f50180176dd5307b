// Package parser reads S-expression token streams into ast.Exp trees.
package parser

import (
	"fmt"
	"strconv"

	"eva/internal/ast"
	"eva/internal/diag"
	"eva/internal/lexer"
	"eva/internal/source"
	"eva/internal/token"
)

// Parser builds the expression tree for a single file.
type Parser struct {
	lx  *lexer.Lexer
	bag *diag.Bag
}

// New creates a parser over the given file. Problems are reported into bag.
func New(file *source.File, bag *diag.Bag) *Parser {
	return &Parser{
		lx:  lexer.New(file, bag),
		bag: bag,
	}
}

// ParseProgram reads every top-level expression up to EOF.
func (p *Parser) ParseProgram() []ast.Exp {
	var out []ast.Exp
	for {
		tok := p.lx.Peek()
		if tok.Kind == token.EOF {
			return out
		}
		exp, ok := p.parseExp()
		if !ok {
			// parseExp already consumed the offending token; keep going
			// for more diagnostics.
			continue
		}
		out = append(out, exp)
	}
}

// parseExp reads one expression: an atom or a parenthesized list.
func (p *Parser) parseExp() (ast.Exp, bool) {
	tok := p.lx.Next()
	switch tok.Kind {
	case token.Number:
		n, err := strconv.ParseFloat(tok.Text, 64)
		if err != nil {
			p.errorf(diag.SynUnexpectedToken, tok.Span, "bad numeric literal %q", tok.Text)
			return ast.Exp{}, false
		}
		return ast.NewNumber(n, tok.Span), true

	case token.String:
		return ast.NewString(tok.Text, tok.Span), true

	case token.Symbol:
		return ast.NewSymbol(tok.Text, tok.Span), true

	case token.LParen:
		return p.parseList(tok)

	case token.RParen:
		p.errorf(diag.SynExtraParen, tok.Span, "unexpected )")
		return ast.Exp{}, false

	case token.EOF:
		p.errorf(diag.SynUnexpectedToken, tok.Span, "unexpected end of input")
		return ast.Exp{}, false

	case token.Invalid:
		// Already reported by the lexer.
		return ast.Exp{}, false

	default:
		p.errorf(diag.SynUnexpectedToken, tok.Span, "unexpected token %q", tok.Text)
		return ast.Exp{}, false
	}
}

func (p *Parser) parseList(open token.Token) (ast.Exp, bool) {
	items := make([]ast.Exp, 0, 4)
	for {
		tok := p.lx.Peek()
		switch tok.Kind {
		case token.RParen:
			p.lx.Next()
			return ast.NewList(items, open.Span.Cover(tok.Span)), true
		case token.EOF:
			p.errorf(diag.SynUnclosedParen, open.Span, "unclosed (")
			return ast.NewList(items, open.Span.Cover(tok.Span)), true
		default:
			exp, ok := p.parseExp()
			if !ok {
				continue
			}
			items = append(items, exp)
		}
	}
}

func (p *Parser) errorf(code diag.Code, span source.Span, format string, args ...any) {
	p.bag.Add(diag.Diagnostic{
		Severity: diag.SevError,
		Code:     code,
		Message:  fmt.Sprintf(format, args...),
		Primary:  span,
	})
}
