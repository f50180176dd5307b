package compiler

import (
	"eva/internal/ast"
	"eva/internal/bytecode"
	"eva/internal/diag"
	"eva/internal/vm"
)

// genClass lowers (class Name super method...). The superclass is a
// symbol naming an already-compiled class, or the literal false for
// none. Methods are compiled at class-compile time into the class
// property table; the class object itself is emitted as a constant and
// registered like any declaration.
func (c *Compiler) genClass(exp *ast.Exp) {
	if len(exp.List) < 3 || exp.List[1].Kind != ast.ExpSymbol {
		c.errorf(diag.SynBadSpecialForm, exp.Span, "class expects (class Name super method...)")
		return
	}
	name := exp.List[1].Str

	var super *vm.Object
	superExp := &exp.List[2]
	if !superExp.IsSymbol("false") {
		if superExp.Kind != ast.ExpSymbol {
			c.errorf(diag.SynBadSpecialForm, superExp.Span, "superclass must be a class name or false")
			return
		}
		super = c.classByName(superExp.Str)
		if super == nil {
			c.errorf(diag.CompUnknownClass, superExp.Span, "unknown class %s", superExp.Str)
			return
		}
	}

	clsObj := c.heap.AllocClass(name, super)
	c.classObjects = append(c.classObjects, clsObj)

	c.pushScope(c.scopeInfo[exp])
	body := classBody(exp)
	for i := range body {
		// Index into the original tree: the analyzer keyed scope
		// records by node identity.
		c.genMethod(clsObj, &body[i])
	}
	c.popScope()

	// Register the class like a declaration; its value is the block
	// child's result until popped.
	c.emitConst(c.objectConstIdx(clsObj), exp.Span)

	scope := c.currentScope()
	if c.isGlobalScope() || scope == nil || scope.Lookup(name) == AllocGlobal {
		c.global.Define(name)
		c.emit(bytecode.OpSetGlobal)
		c.emitOperand(c.global.GetIndex(name), diag.CompGlobalsOverflow, exp.Span)
	} else {
		c.co.AddLocal(name)
		c.checkLocalCount(exp.Span)
	}
}

// classBody returns the method expressions, unwrapping an optional
// (begin ...) around them.
func classBody(exp *ast.Exp) []ast.Exp {
	if len(exp.List) == 4 && exp.List[3].IsTaggedList("begin") {
		return exp.List[3].List[1:]
	}
	return exp.List[3:]
}

func (c *Compiler) genMethod(clsObj *vm.Object, method *ast.Exp) {
	if !method.IsTaggedList("def") || len(method.List) != 4 || method.List[1].Kind != ast.ExpSymbol {
		c.errorf(diag.SynBadSpecialForm, method.Span, "class body allows only method definitions")
		return
	}
	mName := method.List[1].Str

	coObj, scope := c.buildFunction(method, mName, &method.List[2], &method.List[3])
	if coObj == nil {
		return
	}
	if len(scope.Free) > 0 {
		c.errorf(diag.SynBadSpecialForm, method.Span,
			"method %s cannot capture enclosing variables", mName)
		return
	}

	fnObj := c.heap.AllocFunction(coObj)
	clsObj.Class.Props[mName] = vm.MakeObject(fnObj)
}

// genNew lowers (new classExpr args...): OpNew puts the constructor
// and the fresh instance on the stack, then the call runs the
// constructor with the instance as argument 0.
func (c *Compiler) genNew(exp *ast.Exp) {
	if len(exp.List) < 2 {
		c.errorf(diag.SynBadSpecialForm, exp.Span, "new expects (new Class args...)")
		return
	}
	c.gen(&exp.List[1])
	c.emit(bytecode.OpNew)
	for i := 2; i < len(exp.List); i++ {
		c.gen(&exp.List[i])
	}
	c.emit(bytecode.OpCall)
	c.emitByte(byte(len(exp.List) - 2 + 1))
}

// genProp lowers (prop obj name).
func (c *Compiler) genProp(exp *ast.Exp) {
	if len(exp.List) != 3 || exp.List[2].Kind != ast.ExpSymbol {
		c.errorf(diag.SynBadSpecialForm, exp.Span, "prop expects (prop object name)")
		return
	}
	c.gen(&exp.List[1])
	c.emit(bytecode.OpGetProp)
	c.emitOperand(c.stringConstIdx(exp.List[2].Str), diag.CompConstPoolOverflow, exp.Span)
}

// genSuper lowers (super ClassName) to the named class's superclass,
// resolved at compile time.
func (c *Compiler) genSuper(exp *ast.Exp) {
	if len(exp.List) != 2 || exp.List[1].Kind != ast.ExpSymbol {
		c.errorf(diag.SynBadSpecialForm, exp.Span, "super expects (super ClassName)")
		return
	}
	cls := c.classByName(exp.List[1].Str)
	if cls == nil {
		c.errorf(diag.CompUnknownClass, exp.Span, "unknown class %s", exp.List[1].Str)
		return
	}
	if cls.Class.Super == nil {
		c.errorf(diag.CompNoSuperclass, exp.Span, "class %s has no superclass", exp.List[1].Str)
		return
	}
	c.emitConst(c.objectConstIdx(cls.Class.Super), exp.Span)
}

// classByName finds a compiled class, newest first.
func (c *Compiler) classByName(name string) *vm.Object {
	for i := len(c.classObjects) - 1; i >= 0; i-- {
		if c.classObjects[i].Class.Name == name {
			return c.classObjects[i]
		}
	}
	return nil
}
