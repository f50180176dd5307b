package compiler_test

import (
	"strings"
	"testing"

	"eva/internal/ast"
	"eva/internal/bytecode"
	"eva/internal/compiler"
	"eva/internal/diag"
	"eva/internal/parser"
	"eva/internal/source"
	"eva/internal/vm"
)

// compileSource parses and compiles, failing the test on diagnostics.
func compileSource(t *testing.T, src string) (*compiler.Compiler, *vm.Object) {
	t.Helper()

	c, main, bag := compileSourceWithBag(t, src)
	if bag.HasErrors() {
		var sb strings.Builder
		for _, d := range bag.Items() {
			sb.WriteString(d.Message)
			sb.WriteString("\n")
		}
		t.Fatalf("compilation errors:\n%s", sb.String())
	}
	return c, main
}

func compileSourceWithBag(t *testing.T, src string) (*compiler.Compiler, *vm.Object, *diag.Bag) {
	t.Helper()

	fs := source.NewFileSet()
	id := fs.AddVirtual("test.eva", []byte(src))
	bag := diag.NewBag(100)

	p := parser.New(fs.Get(id), bag)
	exps := p.ParseProgram()
	if bag.HasErrors() {
		t.Fatalf("parse errors in %q", src)
	}

	span := source.Span{File: id, End: uint32(len(src))}
	items := append([]ast.Exp{ast.NewSymbol("begin", span)}, exps...)
	program := ast.NewList(items, span)

	heap := vm.NewHeap(0)
	global := vm.NewGlobal()
	vm.InstallBuiltins(global, heap)

	c := compiler.New(global, heap, bag)
	main := c.Compile(&program)
	return c, main, bag
}

// mainCode returns the entry point's code unit.
func mainCode(main *vm.Object) *vm.Code {
	return main.Fn.Co.Code
}

func TestCompileNumberLiteral(t *testing.T) {
	_, main := compileSource(t, `42`)
	co := mainCode(main)

	want := []byte{
		byte(bytecode.OpConst), 0,
		byte(bytecode.OpHalt),
	}
	assertBytecode(t, co.Bytecode, want)
	if len(co.Constants) != 1 || !co.Constants[0].IsNumber() || co.Constants[0].Num != 42 {
		t.Errorf("unexpected constant pool: %v", co.Constants)
	}
}

func TestCompileBinary(t *testing.T) {
	_, main := compileSource(t, `(+ 1 2)`)
	co := mainCode(main)

	want := []byte{
		byte(bytecode.OpConst), 0,
		byte(bytecode.OpConst), 1,
		byte(bytecode.OpAdd),
		byte(bytecode.OpHalt),
	}
	assertBytecode(t, co.Bytecode, want)
}

func TestNumericConstantsDeduplicated(t *testing.T) {
	_, main := compileSource(t, `(+ 2 2)`)
	co := mainCode(main)

	want := []byte{
		byte(bytecode.OpConst), 0,
		byte(bytecode.OpConst), 0,
		byte(bytecode.OpAdd),
		byte(bytecode.OpHalt),
	}
	assertBytecode(t, co.Bytecode, want)
	if len(co.Constants) != 1 {
		t.Errorf("expected 1 constant, got %d", len(co.Constants))
	}
}

func TestStringConstantsDeduplicated(t *testing.T) {
	_, main := compileSource(t, `(+ "a" (+ "a" "a"))`)
	co := mainCode(main)

	count := 0
	for _, c := range co.Constants {
		if c.IsString() && c.AsString() == "a" {
			count++
		}
	}
	if count != 1 {
		t.Errorf("expected one interned copy of %q, got %d", "a", count)
	}
}

func TestCompileCompare(t *testing.T) {
	_, main := compileSource(t, `(< 1 2)`)
	co := mainCode(main)

	want := []byte{
		byte(bytecode.OpConst), 0,
		byte(bytecode.OpConst), 1,
		byte(bytecode.OpCompare), byte(bytecode.CmpLt),
		byte(bytecode.OpHalt),
	}
	assertBytecode(t, co.Bytecode, want)
}

func TestIfJumpPatching(t *testing.T) {
	_, main := compileSource(t, `(if true 1 2)`)
	co := mainCode(main)

	// 0: CONST true, 2: JMP_IF_FALSE <else>, 5: CONST 1,
	// 7: JMP <end>, 10: CONST 2, 12: HALT
	want := []byte{
		byte(bytecode.OpConst), 0,
		byte(bytecode.OpJmpIfFalse), 0, 10,
		byte(bytecode.OpConst), 1,
		byte(bytecode.OpJmp), 0, 12,
		byte(bytecode.OpConst), 2,
		byte(bytecode.OpHalt),
	}
	assertBytecode(t, co.Bytecode, want)
}

func TestWhileJumpsBack(t *testing.T) {
	_, main := compileSource(t, `(while false 1)`)
	co := mainCode(main)

	// The unconditional jump targets the loop start (offset 0).
	idx := indexOfOp(co.Bytecode, bytecode.OpJmp)
	if idx == -1 {
		t.Fatal("no OpJmp emitted")
	}
	target := int(co.Bytecode[idx+1])<<8 | int(co.Bytecode[idx+2])
	if target != 0 {
		t.Errorf("expected back jump to 0, got %04X", target)
	}
}

func TestGlobalDeclaration(t *testing.T) {
	_, main := compileSource(t, `(var x 10) x`)
	co := mainCode(main)

	want := []byte{
		byte(bytecode.OpConst), 0,
		byte(bytecode.OpSetGlobal), 3,
		byte(bytecode.OpPop),
		byte(bytecode.OpGetGlobal), 3,
		byte(bytecode.OpHalt),
	}
	// Slots 0..2 are native-square, sum, VERSION.
	assertBytecode(t, co.Bytecode, want)
}

func TestFunctionLayout(t *testing.T) {
	c, _ := compileSource(t, `(def square (x) (* x x)) (square 2)`)

	var squareCo *vm.Code
	for _, coObj := range c.CodeObjects() {
		if coObj.Code.Name == "square" {
			squareCo = coObj.Code
		}
	}
	if squareCo == nil {
		t.Fatal("square code object not found")
	}
	if squareCo.Arity != 1 {
		t.Errorf("expected arity 1, got %d", squareCo.Arity)
	}

	// Bare body: GET_LOCAL x twice, MUL, callee cleanup, return.
	want := []byte{
		byte(bytecode.OpGetLocal), 1,
		byte(bytecode.OpGetLocal), 1,
		byte(bytecode.OpMul),
		byte(bytecode.OpScopeExit), 2,
		byte(bytecode.OpReturn),
	}
	assertBytecode(t, squareCo.Bytecode, want)
}

func TestClosurePromotion(t *testing.T) {
	c, _ := compileSource(t, `
		(var make-adder (lambda (n) (lambda (x) (+ x n))))
		(var add5 (make-adder 5))
		(add5 10)`)

	var outer, inner *vm.Code
	for _, coObj := range c.CodeObjects() {
		switch coObj.Code.Name {
		case "make-adder":
			outer = coObj.Code
		case "lambda":
			inner = coObj.Code
		}
	}
	if outer == nil || inner == nil {
		t.Fatal("expected make-adder and lambda code objects")
	}

	// The outer function owns the promoted cell.
	if outer.FreeCount != 0 || len(outer.CellNames) != 1 || outer.CellNames[0] != "n" {
		t.Errorf("outer cells wrong: free=%d names=%v", outer.FreeCount, outer.CellNames)
	}
	// The inner one captures it as free.
	if inner.FreeCount != 1 || len(inner.CellNames) != 1 || inner.CellNames[0] != "n" {
		t.Errorf("inner cells wrong: free=%d names=%v", inner.FreeCount, inner.CellNames)
	}

	// Closure construction appears in the outer body.
	if indexOfOp(outer.Bytecode, bytecode.OpLoadCell) == -1 {
		t.Error("expected OpLoadCell in make-adder")
	}
	if indexOfOp(outer.Bytecode, bytecode.OpMakeFunction) == -1 {
		t.Error("expected OpMakeFunction in make-adder")
	}
	// A non-closure is a plain constant; no capture in main.
	mainCo := c.CodeObjects()[0].Code
	if indexOfOp(mainCo.Bytecode, bytecode.OpMakeFunction) != -1 {
		t.Error("make-adder itself must not be built with OpMakeFunction")
	}
}

func TestUndefinedReferenceIsDiagnosed(t *testing.T) {
	_, _, bag := compileSourceWithBag(t, `(missing 1)`)
	if !bag.HasErrors() {
		t.Fatal("expected a reference error")
	}
	found := false
	for _, d := range bag.Items() {
		if d.Code == diag.CompUndefinedVariable {
			found = true
		}
	}
	if !found {
		t.Errorf("expected %s, got %v", diag.CompUndefinedVariable, bag.Items())
	}
}

func TestSetUndefinedIsDiagnosed(t *testing.T) {
	_, _, bag := compileSourceWithBag(t, `(set missing 1)`)
	if !bag.HasErrors() {
		t.Fatal("expected a reference error")
	}
}

func TestDeterministicCompile(t *testing.T) {
	src := `
		(def square (x) (* x x))
		(var total 0)
		(var i 0)
		(while (< i 3)
			(begin
				(set total (+ total (square i)))
				(set i (+ i 1))))
		total`

	_, first := compileSource(t, src)
	_, second := compileSource(t, src)

	a := mainCode(first).Bytecode
	b := mainCode(second).Bytecode
	assertBytecode(t, b, a)
}

func TestConstantObjectsIncludeCompileTimeAllocations(t *testing.T) {
	c, main := compileSource(t, `(def f (x) (+ x "suffix")) (f "s")`)

	objects := c.ConstantObjects()
	set := make(map[*vm.Object]struct{}, len(objects))
	for _, obj := range objects {
		set[obj] = struct{}{}
	}

	if _, ok := set[main]; !ok {
		t.Error("main function missing from constant roots")
	}
	for _, coObj := range c.CodeObjects() {
		if _, ok := set[coObj]; !ok {
			t.Errorf("code object %s missing from constant roots", coObj.Code.Name)
		}
		for _, constant := range coObj.Code.Constants {
			if constant.IsObject() {
				if _, ok := set[constant.Obj]; !ok {
					t.Errorf("constant %s missing from roots", constant)
				}
			}
		}
	}
}

func assertBytecode(t *testing.T, got, want []byte) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("bytecode length: got %d, want %d\ngot:  % X\nwant: % X", len(got), len(want), got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("bytecode differs at %d\ngot:  % X\nwant: % X", i, got, want)
		}
	}
}

func indexOfOp(code []byte, op bytecode.Op) int {
	offset := 0
	for offset < len(code) {
		cur := bytecode.Op(code[offset])
		if cur == op {
			return offset
		}
		offset += 1 + cur.Width()
	}
	return -1
}
