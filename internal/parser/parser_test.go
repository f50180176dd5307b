package parser_test

import (
	"testing"

	"eva/internal/ast"
	"eva/internal/diag"
	"eva/internal/parser"
	"eva/internal/source"
)

func parse(t *testing.T, src string) ([]ast.Exp, *diag.Bag) {
	t.Helper()

	fs := source.NewFileSet()
	id := fs.AddVirtual("test.eva", []byte(src))
	bag := diag.NewBag(10)
	p := parser.New(fs.Get(id), bag)
	return p.ParseProgram(), bag
}

func TestParseAtoms(t *testing.T) {
	exps, bag := parse(t, `42 "hi" foo`)
	if bag.HasErrors() {
		t.Fatalf("unexpected errors: %v", bag.Items())
	}
	if len(exps) != 3 {
		t.Fatalf("expected 3 expressions, got %d", len(exps))
	}
	if exps[0].Kind != ast.ExpNumber || exps[0].Number != 42 {
		t.Errorf("expected number 42, got %s", exps[0])
	}
	if exps[1].Kind != ast.ExpString || exps[1].Str != "hi" {
		t.Errorf("expected string hi, got %s", exps[1])
	}
	if exps[2].Kind != ast.ExpSymbol || exps[2].Str != "foo" {
		t.Errorf("expected symbol foo, got %s", exps[2])
	}
}

func TestParseNestedList(t *testing.T) {
	exps, bag := parse(t, `(var x (+ 1 (* 2 3)))`)
	if bag.HasErrors() {
		t.Fatalf("unexpected errors: %v", bag.Items())
	}
	if len(exps) != 1 {
		t.Fatalf("expected 1 expression, got %d", len(exps))
	}

	root := exps[0]
	if root.Kind != ast.ExpList || len(root.List) != 3 {
		t.Fatalf("expected 3-element list, got %s", root)
	}
	if !root.List[0].IsSymbol("var") {
		t.Errorf("expected var head, got %s", root.List[0])
	}
	inner := root.List[2]
	if !inner.IsTaggedList("+") || len(inner.List) != 3 {
		t.Fatalf("expected (+ ...), got %s", inner)
	}
	if !inner.List[2].IsTaggedList("*") {
		t.Errorf("expected (* ...), got %s", inner.List[2])
	}
}

func TestRoundTripRendering(t *testing.T) {
	exps, bag := parse(t, `(def square (x) (* x x))`)
	if bag.HasErrors() {
		t.Fatalf("unexpected errors: %v", bag.Items())
	}
	if got := exps[0].String(); got != `(def square (x) (* x x))` {
		t.Errorf("got %s", got)
	}
}

func TestSpansCoverDelimiters(t *testing.T) {
	exps, bag := parse(t, `(+ 1 2)`)
	if bag.HasErrors() {
		t.Fatalf("unexpected errors: %v", bag.Items())
	}
	span := exps[0].Span
	if span.Start != 0 || span.End != 7 {
		t.Errorf("expected span 0-7, got %d-%d", span.Start, span.End)
	}
}

func TestUnclosedParen(t *testing.T) {
	_, bag := parse(t, `(+ 1 2`)
	assertHasCode(t, bag, diag.SynUnclosedParen)
}

func TestExtraParen(t *testing.T) {
	_, bag := parse(t, `(+ 1 2))`)
	assertHasCode(t, bag, diag.SynExtraParen)
}

func assertHasCode(t *testing.T, bag *diag.Bag, code diag.Code) {
	t.Helper()
	for _, d := range bag.Items() {
		if d.Code == code {
			return
		}
	}
	t.Errorf("expected %s, got %v", code, bag.Items())
}
