package compiler

import (
	"eva/internal/ast"
	"eva/internal/bytecode"
	"eva/internal/diag"
	"eva/internal/vm"
)

// compileFunction lowers a def or lambda and emits the code that puts
// the function value on the stack: a plain constant for non-closures,
// or a LOAD_CELL*/CONST/MAKE_FUNCTION sequence for closures.
func (c *Compiler) compileFunction(exp *ast.Exp, name string, params, body *ast.Exp) {
	coObj, scope := c.buildFunction(exp, name, params, body)
	if coObj == nil {
		return
	}

	coIdx := c.co.AddConst(vm.MakeObject(coObj))

	if len(scope.Free) == 0 {
		// Non-closure: the function object exists at compile time and
		// replaces the code object in the pool.
		fnObj := c.heap.AllocFunction(coObj)
		c.co.Constants[coIdx] = vm.MakeObject(fnObj)
		c.emitConst(coIdx, exp.Span)
		return
	}

	// Closure: capture the free cells at runtime.
	for _, freeName := range scope.Free {
		cellIdx := c.co.GetCellIndex(freeName)
		if cellIdx == -1 {
			c.errorf(diag.CompUndefinedVariable, exp.Span,
				"reference error: captured %s has no cell in %s", freeName, c.co.Name)
			return
		}
		c.emit(bytecode.OpLoadCell)
		c.emitOperand(cellIdx, diag.CompCellsOverflow, exp.Span)
	}
	c.emitConst(coIdx, exp.Span)
	c.emit(bytecode.OpMakeFunction)
	c.emitByte(byte(len(scope.Free)))
}

// buildFunction compiles a function body into a fresh code object and
// returns it with its scope record. Nothing is emitted into the
// enclosing unit.
func (c *Compiler) buildFunction(exp *ast.Exp, name string, params, body *ast.Exp) (*vm.Object, *Scope) {
	scope := c.scopeInfo[exp]
	if scope == nil {
		c.errorf(diag.SynBadSpecialForm, exp.Span, "malformed function %s", name)
		return nil, nil
	}
	if params.Kind != ast.ExpList {
		c.errorf(diag.SynExpectParams, params.Span, "%s expects a parameter list", name)
		return nil, nil
	}

	c.pushScope(scope)
	prevCo, prevCoObj := c.co, c.coObj

	arity := len(params.List)
	coObj := c.heap.AllocCode(name, arity)
	c.codeObjects = append(c.codeObjects, coObj)
	c.co, c.coObj = coObj.Code, coObj

	// Captured cells first, own cells after; the free count separates
	// them.
	c.co.FreeCount = len(scope.Free)
	c.co.CellNames = append(append(make([]string, 0, len(scope.Free)+len(scope.Cells)),
		scope.Free...), scope.Cells...)

	// Slot 0 is the function itself; parameters follow.
	c.co.AddLocal(name)
	for i := range params.List {
		c.co.AddLocal(params.List[i].Str)
	}
	c.checkLocalCount(exp.Span)

	// Promote captured parameters (and the function slot) into their
	// cells, in cell-index order so cells are allocated sequentially.
	for idx := c.co.FreeCount; idx < len(c.co.CellNames); idx++ {
		slot := c.co.GetLocalIndex(c.co.CellNames[idx])
		if slot == -1 {
			continue
		}
		c.emit(bytecode.OpGetLocal)
		c.emitOperand(slot, diag.CompLocalsOverflow, exp.Span)
		c.emit(bytecode.OpSetCell)
		c.emitOperand(idx, diag.CompCellsOverflow, exp.Span)
		c.emit(bytecode.OpPop)
	}

	c.gen(body)

	// A bare (non-begin) body has no block to pop the arguments and
	// the function slot; do the callee cleanup here.
	if !body.IsTaggedList("begin") {
		c.emit(bytecode.OpScopeExit)
		c.emitByte(byte(arity + 1))
	}
	c.emit(bytecode.OpReturn)

	c.co, c.coObj = prevCo, prevCoObj
	c.popScope()
	return coObj, scope
}
