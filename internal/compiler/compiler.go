// Package compiler lowers Eva expression trees to stack-machine
// bytecode in two passes: scope analysis, then tree-directed emission.
package compiler

import (
	"fmt"

	"eva/internal/ast"
	"eva/internal/bytecode"
	"eva/internal/diag"
	"eva/internal/source"
	"eva/internal/vm"
)

// Compiler emits bytecode for one program into a graph of code
// objects. Compile-time objects (interned strings, code units,
// non-closure functions, classes) are allocated on the shared heap and
// reported as constant roots for the collector.
type Compiler struct {
	global *vm.Global
	heap   *vm.Heap
	bag    *diag.Bag

	co    *vm.Code   // currently emitting code unit
	coObj *vm.Object // its owning object
	main  *vm.Object // entry-point function

	codeObjects  []*vm.Object
	classObjects []*vm.Object
	scopeInfo    map[*ast.Exp]*Scope
	scopeStack   []*Scope
}

// New creates a compiler over the given global table and heap.
// Problems are reported into bag.
func New(global *vm.Global, heap *vm.Heap, bag *diag.Bag) *Compiler {
	return &Compiler{
		global:    global,
		heap:      heap,
		bag:       bag,
		scopeInfo: make(map[*ast.Exp]*Scope),
	}
}

// Compile lowers the program expression (a begin block) and returns
// the entry-point function object. The bag must be checked for errors
// before running the result.
func (c *Compiler) Compile(exp *ast.Exp) *vm.Object {
	rewriteConstructors(exp)
	c.analyze(exp, nil)

	c.coObj = c.heap.AllocCode("main", 0)
	c.co = c.coObj.Code
	c.codeObjects = append(c.codeObjects, c.coObj)
	c.main = c.heap.AllocFunction(c.coObj)

	c.gen(exp)
	c.emit(bytecode.OpHalt)

	return c.main
}

// Main returns the entry-point function of the last Compile call.
func (c *Compiler) Main() *vm.Object { return c.main }

// CodeObjects returns every compiled code unit, main first.
func (c *Compiler) CodeObjects() []*vm.Object { return c.codeObjects }

// ConstantObjects returns the transitive set of compile-time objects
// reachable from the compiled units; they are permanent GC roots.
func (c *Compiler) ConstantObjects() []*vm.Object {
	seen := make(map[*vm.Object]struct{})
	var out []*vm.Object

	var visit func(obj *vm.Object)
	visit = func(obj *vm.Object) {
		if obj == nil {
			return
		}
		if _, ok := seen[obj]; ok {
			return
		}
		seen[obj] = struct{}{}
		out = append(out, obj)
		switch obj.Kind {
		case vm.OKCode:
			for _, v := range obj.Code.Constants {
				if v.IsObject() {
					visit(v.Obj)
				}
			}
		case vm.OKFunction:
			visit(obj.Fn.Co)
		case vm.OKClass:
			visit(obj.Class.Super)
			for _, v := range obj.Class.Props {
				if v.IsObject() {
					visit(v.Obj)
				}
			}
		}
	}

	visit(c.main)
	for _, obj := range c.codeObjects {
		visit(obj)
	}
	for _, obj := range c.classObjects {
		visit(obj)
	}
	return out
}

// gen is the main emission loop.
func (c *Compiler) gen(exp *ast.Exp) {
	switch exp.Kind {
	case ast.ExpNumber:
		c.emitConst(c.numericConstIdx(exp.Number), exp.Span)

	case ast.ExpString:
		c.emitConst(c.stringConstIdx(exp.Str), exp.Span)

	case ast.ExpSymbol:
		c.genSymbol(exp)

	case ast.ExpList:
		c.genList(exp)
	}
}

func (c *Compiler) genSymbol(exp *ast.Exp) {
	name := exp.Str
	if name == "true" || name == "false" {
		c.emitConst(c.booleanConstIdx(name == "true"), exp.Span)
		return
	}

	kind := AllocGlobal
	if scope := c.currentScope(); scope != nil {
		kind = scope.Lookup(name)
	}

	switch kind {
	case AllocLocal:
		if idx := c.co.GetLocalIndex(name); idx != -1 {
			c.emit(bytecode.OpGetLocal)
			c.emitOperand(idx, diag.CompLocalsOverflow, exp.Span)
			return
		}
		// Declared later in this scope; only the global table can
		// still satisfy the reference.
		c.genGlobalGet(name, exp.Span)

	case AllocCell:
		idx := c.co.GetCellIndex(name)
		if idx == -1 {
			c.errorf(diag.CompUndefinedVariable, exp.Span, "reference error: %s is not defined", name)
			return
		}
		c.emit(bytecode.OpGetCell)
		c.emitOperand(idx, diag.CompCellsOverflow, exp.Span)

	default:
		c.genGlobalGet(name, exp.Span)
	}
}

func (c *Compiler) genGlobalGet(name string, span source.Span) {
	idx := c.global.GetIndex(name)
	if idx == -1 {
		c.errorf(diag.CompUndefinedVariable, span, "reference error: %s is not defined", name)
		return
	}
	c.emit(bytecode.OpGetGlobal)
	c.emitOperand(idx, diag.CompGlobalsOverflow, span)
}

func (c *Compiler) genList(exp *ast.Exp) {
	if len(exp.List) == 0 {
		c.errorf(diag.SynEmptyList, exp.Span, "empty list is not a valid expression")
		return
	}

	head := &exp.List[0]
	if head.Kind == ast.ExpSymbol {
		switch head.Str {
		case "+":
			c.genBinary(exp, bytecode.OpAdd)
			return
		case "-":
			c.genBinary(exp, bytecode.OpSub)
			return
		case "*":
			c.genBinary(exp, bytecode.OpMul)
			return
		case "/":
			c.genBinary(exp, bytecode.OpDiv)
			return
		case "<", ">", "==", ">=", "<=", "!=":
			c.genCompare(exp, head.Str)
			return
		case "if":
			c.genIf(exp)
			return
		case "while":
			c.genWhile(exp)
			return
		case "var":
			c.genVar(exp)
			return
		case "set":
			c.genSet(exp)
			return
		case "begin":
			c.genBlock(exp)
			return
		case "def":
			c.genDef(exp)
			return
		case "lambda":
			c.compileFunction(exp, "lambda", listArg(exp, 1), listArg(exp, 2))
			return
		case "class":
			c.genClass(exp)
			return
		case "new":
			c.genNew(exp)
			return
		case "prop":
			c.genProp(exp)
			return
		case "super":
			c.genSuper(exp)
			return
		}
	}

	// Everything else is a call, including inline lambda invocations.
	c.genCall(exp)
}

// genBinary emits children left to right, then the operator.
func (c *Compiler) genBinary(exp *ast.Exp, op bytecode.Op) {
	if !c.expectArity(exp, 3) {
		return
	}
	c.gen(&exp.List[1])
	c.gen(&exp.List[2])
	c.emit(op)
}

func (c *Compiler) genCompare(exp *ast.Exp, opName string) {
	if !c.expectArity(exp, 3) {
		return
	}
	c.gen(&exp.List[1])
	c.gen(&exp.List[2])
	c.emit(bytecode.OpCompare)
	c.emitByte(byte(bytecode.CompareOps[opName]))
}

// genIf lowers (if test conseq [alt]). A missing alternate evaluates
// to false so both arms produce exactly one value.
func (c *Compiler) genIf(exp *ast.Exp) {
	if len(exp.List) != 3 && len(exp.List) != 4 {
		c.errorf(diag.SynBadSpecialForm, exp.Span, "if expects (if test conseq [alt])")
		return
	}
	c.gen(&exp.List[1])
	elseJump := c.emitJump(bytecode.OpJmpIfFalse)
	c.gen(&exp.List[2])
	endJump := c.emitJump(bytecode.OpJmp)

	c.patchJump(elseJump, exp.Span)
	if len(exp.List) == 4 {
		c.gen(&exp.List[3])
	} else {
		c.emitConst(c.booleanConstIdx(false), exp.Span)
	}
	c.patchJump(endJump, exp.Span)
}

// genWhile lowers (while test body). Each iteration's value is popped;
// the loop itself evaluates to false.
func (c *Compiler) genWhile(exp *ast.Exp) {
	if !c.expectArity(exp, 3) {
		return
	}
	loopStart := c.offset()
	c.gen(&exp.List[1])
	exitJump := c.emitJump(bytecode.OpJmpIfFalse)

	c.gen(&exp.List[2])
	c.emit(bytecode.OpPop)

	backJump := c.emitJump(bytecode.OpJmp)
	c.patchJumpTo(backJump, loopStart, exp.Span)
	c.patchJump(exitJump, exp.Span)

	c.emitConst(c.booleanConstIdx(false), exp.Span)
}

// genVar lowers (var name init) for global, local, and cell storage.
func (c *Compiler) genVar(exp *ast.Exp) {
	if !c.expectArity(exp, 3) {
		return
	}
	if exp.List[1].Kind != ast.ExpSymbol {
		c.errorf(diag.SynExpectSymbol, exp.List[1].Span, "var expects a variable name")
		return
	}
	name := exp.List[1].Str
	init := &exp.List[2]

	kind := AllocGlobal
	if scope := c.currentScope(); scope != nil {
		kind = scope.Lookup(name)
	}

	// A lambda initializer takes the variable's name. Its global slot or
	// cell is reserved first so the body can refer to it recursively.
	if init.IsTaggedList("lambda") {
		switch kind {
		case AllocGlobal:
			c.global.Define(name)
		case AllocCell:
			if c.co.GetCellIndex(name) == -1 {
				c.co.CellNames = append(c.co.CellNames, name)
			}
		}
		c.compileFunction(init, name, listArg(init, 1), listArg(init, 2))
	} else {
		c.gen(init)
	}

	switch kind {
	case AllocGlobal:
		c.global.Define(name)
		c.emit(bytecode.OpSetGlobal)
		c.emitOperand(c.global.GetIndex(name), diag.CompGlobalsOverflow, exp.Span)

	case AllocCell:
		idx := c.co.GetCellIndex(name)
		if idx == -1 {
			c.co.CellNames = append(c.co.CellNames, name)
			idx = len(c.co.CellNames) - 1
		}
		c.emit(bytecode.OpSetCell)
		c.emitOperand(idx, diag.CompCellsOverflow, exp.Span)
		// The value now lives on the heap; release the stack slot.
		c.emit(bytecode.OpPop)

	default:
		c.co.AddLocal(name)
		c.checkLocalCount(exp.Span)
	}
}

// genSet lowers (set name value) and (set (prop obj name) value).
func (c *Compiler) genSet(exp *ast.Exp) {
	if !c.expectArity(exp, 3) {
		return
	}
	target := &exp.List[1]

	if target.IsTaggedList("prop") {
		if len(target.List) != 3 || target.List[2].Kind != ast.ExpSymbol {
			c.errorf(diag.SynBadSpecialForm, target.Span, "prop expects (prop object name)")
			return
		}
		c.gen(&exp.List[2])    // value
		c.gen(&target.List[1]) // receiver
		c.emit(bytecode.OpSetProp)
		c.emitOperand(c.stringConstIdx(target.List[2].Str), diag.CompConstPoolOverflow, exp.Span)
		return
	}

	if target.Kind != ast.ExpSymbol {
		c.errorf(diag.SynExpectSymbol, target.Span, "set expects a variable name")
		return
	}
	name := target.Str
	c.gen(&exp.List[2])

	kind := AllocGlobal
	if scope := c.currentScope(); scope != nil {
		kind = scope.Lookup(name)
	}

	switch kind {
	case AllocLocal:
		if idx := c.co.GetLocalIndex(name); idx != -1 {
			c.emit(bytecode.OpSetLocal)
			c.emitOperand(idx, diag.CompLocalsOverflow, exp.Span)
			return
		}
		c.genGlobalSet(name, exp.Span)

	case AllocCell:
		idx := c.co.GetCellIndex(name)
		if idx == -1 {
			c.errorf(diag.CompUndefinedVariable, exp.Span, "reference error: %s is not defined", name)
			return
		}
		c.emit(bytecode.OpSetCell)
		c.emitOperand(idx, diag.CompCellsOverflow, exp.Span)

	default:
		c.genGlobalSet(name, exp.Span)
	}
}

func (c *Compiler) genGlobalSet(name string, span source.Span) {
	idx := c.global.GetIndex(name)
	if idx == -1 {
		c.errorf(diag.CompUndefinedGlobal, span, "reference error: %s is not defined", name)
		return
	}
	c.emit(bytecode.OpSetGlobal)
	c.emitOperand(idx, diag.CompGlobalsOverflow, span)
}

// genBlock lowers (begin e1 ... eN): every non-last expression is
// popped unless its value became a local slot; the last expression is
// the block's value.
func (c *Compiler) genBlock(exp *ast.Exp) {
	c.pushScope(c.scopeInfo[exp])
	c.co.ScopeLevel++

	if len(exp.List) == 1 {
		// An empty block still produces one value.
		c.emitConst(c.booleanConstIdx(false), exp.Span)
	}

	for i := 1; i < len(exp.List); i++ {
		child := &exp.List[i]
		isLast := i == len(exp.List)-1
		isDecl := isDeclaration(child)

		c.gen(child)

		// Global declarations live in the global table, not the
		// stack, so their initializer value is popped like any other
		// intermediate result.
		globalDecl := isDecl && c.isGlobalScope()
		if !isLast && (!isDecl || globalDecl) {
			c.emit(bytecode.OpPop)
		}
	}

	c.scopeExit()
	c.popScope()
}

// scopeExit pops the block's locals and, for function bodies, the
// arguments plus the function slot.
func (c *Compiler) scopeExit() {
	varsCount := 0
	for len(c.co.Locals) > 0 && c.co.Locals[len(c.co.Locals)-1].ScopeLevel == c.co.ScopeLevel {
		c.co.Locals = c.co.Locals[:len(c.co.Locals)-1]
		varsCount++
	}

	if c.isFunctionBody() {
		varsCount += c.co.Arity + 1
	}
	if varsCount > 0 {
		c.emit(bytecode.OpScopeExit)
		c.emitByte(byte(varsCount))
	}

	c.co.ScopeLevel--
}

// genDef lowers (def name (params) body).
func (c *Compiler) genDef(exp *ast.Exp) {
	if len(exp.List) != 4 || exp.List[1].Kind != ast.ExpSymbol {
		c.errorf(diag.SynBadSpecialForm, exp.Span, "def expects (def name (params) body)")
		return
	}
	name := exp.List[1].Str
	c.compileFunction(exp, name, &exp.List[2], &exp.List[3])

	if c.isGlobalScope() {
		c.global.Define(name)
		c.emit(bytecode.OpSetGlobal)
		c.emitOperand(c.global.GetIndex(name), diag.CompGlobalsOverflow, exp.Span)
	} else {
		// The function value is already in the slot the local occupies.
		c.co.AddLocal(name)
		c.checkLocalCount(exp.Span)
	}
}

// genCall emits the callee, the arguments in order, then the call.
func (c *Compiler) genCall(exp *ast.Exp) {
	c.gen(&exp.List[0])
	for i := 1; i < len(exp.List); i++ {
		c.gen(&exp.List[i])
	}
	c.emit(bytecode.OpCall)
	c.emitByte(byte(len(exp.List) - 1))
}

// --- helpers ---

func (c *Compiler) currentScope() *Scope {
	for i := len(c.scopeStack) - 1; i >= 0; i-- {
		if c.scopeStack[i] != nil {
			return c.scopeStack[i]
		}
	}
	return nil
}

func (c *Compiler) pushScope(s *Scope) { c.scopeStack = append(c.scopeStack, s) }

func (c *Compiler) popScope() { c.scopeStack = c.scopeStack[:len(c.scopeStack)-1] }

// isGlobalScope reports whether emission is at the top level of main.
func (c *Compiler) isGlobalScope() bool {
	return c.co.Name == "main" && c.co.ScopeLevel == 1
}

// isFunctionBody reports whether emission is at the top block of a
// function.
func (c *Compiler) isFunctionBody() bool {
	return c.co.Name != "main" && c.co.ScopeLevel == 1
}

func isDeclaration(exp *ast.Exp) bool {
	return exp.IsTaggedList("var") || exp.IsTaggedList("def") || exp.IsTaggedList("class")
}

func (c *Compiler) expectArity(exp *ast.Exp, n int) bool {
	if len(exp.List) != n {
		c.errorf(diag.SynBadSpecialForm, exp.Span,
			"%s expects %d operands, got %d", exp.List[0].Str, n-1, len(exp.List)-1)
		return false
	}
	return true
}

// listArg returns &exp.List[i] or a harmless empty node when the form
// is malformed; the caller reports the diagnostic.
func listArg(exp *ast.Exp, i int) *ast.Exp {
	if i < len(exp.List) {
		return &exp.List[i]
	}
	return &ast.Exp{Kind: ast.ExpList, Span: exp.Span}
}

func (c *Compiler) errorf(code diag.Code, span source.Span, format string, args ...any) {
	c.bag.Add(diag.Diagnostic{
		Severity: diag.SevError,
		Code:     code,
		Message:  fmt.Sprintf(format, args...),
		Primary:  span,
	})
}
