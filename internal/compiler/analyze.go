package compiler

import (
	"eva/internal/ast"
)

// analyze is the first pass: it builds a scope record for every
// scope-introducing expression and promotes closure-captured variables
// to cells. Records are keyed by node identity, so the code generator
// must walk the same tree.
func (c *Compiler) analyze(exp *ast.Exp, scope *Scope) {
	switch exp.Kind {
	case ast.ExpNumber, ast.ExpString:
		return

	case ast.ExpSymbol:
		if exp.Str == "true" || exp.Str == "false" {
			return
		}
		if scope != nil {
			scope.MaybePromote(exp.Str)
		}

	case ast.ExpList:
		c.analyzeList(exp, scope)
	}
}

func (c *Compiler) analyzeList(exp *ast.Exp, scope *Scope) {
	if len(exp.List) == 0 {
		return
	}

	head := &exp.List[0]
	if head.Kind != ast.ExpSymbol {
		c.analyzeChildren(exp, scope, 0)
		return
	}

	switch head.Str {
	case "begin":
		kind := ScopeBlock
		if scope == nil {
			kind = ScopeGlobal
		}
		newScope := NewScope(kind, scope)
		c.scopeInfo[exp] = newScope
		c.analyzeChildren(exp, newScope, 1)

	case "var":
		if len(exp.List) != 3 || exp.List[1].Kind != ast.ExpSymbol {
			return
		}
		scope.AddLocal(exp.List[1].Str)
		c.analyze(&exp.List[2], scope)

	case "def":
		if len(exp.List) != 4 || exp.List[1].Kind != ast.ExpSymbol {
			return
		}
		name := exp.List[1].Str
		scope.AddLocal(name)
		fnScope := NewScope(ScopeFunction, scope)
		c.scopeInfo[exp] = fnScope
		// The function can reach itself through slot 0.
		fnScope.AddLocal(name)
		c.analyzeParams(&exp.List[2], fnScope)
		c.analyze(&exp.List[3], fnScope)

	case "lambda":
		if len(exp.List) != 3 {
			return
		}
		fnScope := NewScope(ScopeFunction, scope)
		c.scopeInfo[exp] = fnScope
		c.analyzeParams(&exp.List[1], fnScope)
		c.analyze(&exp.List[2], fnScope)

	case "class":
		if len(exp.List) < 3 || exp.List[1].Kind != ast.ExpSymbol {
			return
		}
		scope.AddLocal(exp.List[1].Str)
		classScope := NewScope(ScopeClass, scope)
		c.scopeInfo[exp] = classScope
		c.analyzeChildren(exp, classScope, 3)

	case "set":
		// (set (prop obj name) value) carries the property name as
		// data, not as a variable reference.
		if len(exp.List) == 3 && exp.List[1].IsTaggedList("prop") {
			if len(exp.List[1].List) == 3 {
				c.analyze(&exp.List[1].List[1], scope)
			}
			c.analyze(&exp.List[2], scope)
			return
		}
		c.analyzeChildren(exp, scope, 1)

	case "prop":
		if len(exp.List) == 3 {
			c.analyze(&exp.List[1], scope)
		}

	case "super":
		// Resolved at compile time against the class table.
		return

	case "if", "while", "new",
		"+", "-", "*", "/", "<", ">", "==", ">=", "<=", "!=":
		c.analyzeChildren(exp, scope, 1)

	default:
		// Function call: the callee symbol is a reference too.
		c.analyzeChildren(exp, scope, 0)
	}
}

func (c *Compiler) analyzeChildren(exp *ast.Exp, scope *Scope, from int) {
	for i := from; i < len(exp.List); i++ {
		c.analyze(&exp.List[i], scope)
	}
}

func (c *Compiler) analyzeParams(params *ast.Exp, fnScope *Scope) {
	if params.Kind != ast.ExpList {
		return
	}
	for i := range params.List {
		if params.List[i].Kind == ast.ExpSymbol {
			fnScope.AddLocal(params.List[i].Str)
		}
	}
}
