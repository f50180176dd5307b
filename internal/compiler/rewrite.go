package compiler

import (
	"eva/internal/ast"
)

// rewriteConstructors makes every class constructor evaluate to its
// instance: the body is rewritten to end with self before analysis, so
// (new C ...) yields the instance regardless of the constructor's last
// statement.
func rewriteConstructors(exp *ast.Exp) {
	if exp.Kind != ast.ExpList {
		return
	}

	if exp.IsTaggedList("class") {
		body := classBody(exp)
		for i := range body {
			method := &body[i]
			if method.IsTaggedList("def") && len(method.List) == 4 &&
				method.List[1].IsSymbol("constructor") {
				appendSelfReturn(&method.List[3])
			}
		}
	}

	for i := range exp.List {
		rewriteConstructors(&exp.List[i])
	}
}

func appendSelfReturn(body *ast.Exp) {
	self := ast.NewSymbol("self", body.Span)
	if body.IsTaggedList("begin") {
		body.List = append(body.List, self)
		return
	}
	*body = ast.NewList([]ast.Exp{
		ast.NewSymbol("begin", body.Span),
		*body,
		self,
	}, body.Span)
}
