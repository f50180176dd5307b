// Package diagfmt renders diagnostics, token streams, and expression
// trees for the CLI.
package diagfmt

import (
	"fmt"
	"io"

	"github.com/fatih/color"

	"eva/internal/diag"
	"eva/internal/source"
)

var (
	errorColor   = color.New(color.FgRed, color.Bold)
	warningColor = color.New(color.FgYellow, color.Bold)
	infoColor    = color.New(color.FgCyan)
)

// Pretty renders diagnostics in human-readable form, one per line:
//
//	<path>:<line>:<col>: <SEV> <CODE>: <message>
//
// The bag should be sorted beforehand for stable output.
func Pretty(w io.Writer, bag *diag.Bag, fs *source.FileSet, opts PrettyOpts) {
	for _, d := range bag.Items() {
		writeDiagnostic(w, d, fs, opts)
	}
}

func writeDiagnostic(w io.Writer, d diag.Diagnostic, fs *source.FileSet, opts PrettyOpts) {
	fmt.Fprintf(w, "%s: ", formatSpan(d.Primary, fs))

	sev := d.Severity.String()
	if opts.Color {
		sev = severityColor(d.Severity).Sprint(sev)
	}
	fmt.Fprintf(w, "%s %s: %s\n", sev, d.Code, d.Message)

	if opts.ShowNotes {
		for _, note := range d.Notes {
			fmt.Fprintf(w, "  note: %s: %s\n", formatSpan(note.Span, fs), note.Msg)
		}
	}
}

func severityColor(s diag.Severity) *color.Color {
	switch s {
	case diag.SevError:
		return errorColor
	case diag.SevWarning:
		return warningColor
	default:
		return infoColor
	}
}

// formatSpan renders a span as "path:line:col".
func formatSpan(span source.Span, fs *source.FileSet) string {
	if fs == nil {
		return span.String()
	}
	file := fs.Get(span.File)
	if file == nil {
		return span.String()
	}
	start, _ := fs.Resolve(span)
	return fmt.Sprintf("%s:%d:%d", file.Path, start.Line, start.Col)
}
