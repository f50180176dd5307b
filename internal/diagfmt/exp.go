package diagfmt

import (
	"fmt"
	"io"

	"eva/internal/ast"
	"eva/internal/source"
)

// FormatExpPretty renders the expression tree with box-drawing
// prefixes.
func FormatExpPretty(w io.Writer, exp *ast.Exp, fs *source.FileSet) {
	writeExp(w, exp, fs, "", "")
}

func writeExp(w io.Writer, exp *ast.Exp, fs *source.FileSet, label, prefix string) {
	switch exp.Kind {
	case ast.ExpNumber:
		fmt.Fprintf(w, "%sNumber %s (span: %s)\n", label, exp, formatSpan(exp.Span, fs))
	case ast.ExpString:
		fmt.Fprintf(w, "%sString %s (span: %s)\n", label, exp, formatSpan(exp.Span, fs))
	case ast.ExpSymbol:
		fmt.Fprintf(w, "%sSymbol %s (span: %s)\n", label, exp.Str, formatSpan(exp.Span, fs))
	case ast.ExpList:
		fmt.Fprintf(w, "%sList (span: %s)\n", label, formatSpan(exp.Span, fs))
		for i := range exp.List {
			isLast := i == len(exp.List)-1
			childLabel, childPrefix := prefix+"├─ ", prefix+"│  "
			if isLast {
				childLabel, childPrefix = prefix+"└─ ", prefix+"   "
			}
			writeExp(w, &exp.List[i], fs, childLabel, childPrefix)
		}
	}
}
