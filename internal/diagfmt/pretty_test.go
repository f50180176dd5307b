package diagfmt

import (
	"bytes"
	"strings"
	"testing"

	"eva/internal/diag"
	"eva/internal/source"
)

func TestPrettyFormat(t *testing.T) {
	fs := source.NewFileSet()
	id := fs.AddVirtual("prog.eva", []byte("(+ 1\n  oops)"))

	bag := diag.NewBag(10)
	bag.Add(diag.Diagnostic{
		Severity: diag.SevError,
		Code:     diag.CompUndefinedVariable,
		Message:  "reference error: oops is not defined",
		Primary:  source.Span{File: id, Start: 7, End: 11},
	})

	var buf bytes.Buffer
	Pretty(&buf, bag, fs, PrettyOpts{})

	out := buf.String()
	if !strings.Contains(out, "prog.eva:2:3") {
		t.Errorf("expected position prog.eva:2:3 in %q", out)
	}
	if !strings.Contains(out, "ERROR EVA3001") {
		t.Errorf("expected severity and code in %q", out)
	}
	if !strings.Contains(out, "oops is not defined") {
		t.Errorf("expected message in %q", out)
	}
}

func TestPrettyNotes(t *testing.T) {
	fs := source.NewFileSet()
	id := fs.AddVirtual("prog.eva", []byte("x"))

	bag := diag.NewBag(10)
	bag.Add(diag.Diagnostic{
		Severity: diag.SevWarning,
		Code:     diag.CompInfo,
		Message:  "top message",
		Primary:  source.Span{File: id, Start: 0, End: 1},
		Notes: []diag.Note{
			{Span: source.Span{File: id, Start: 0, End: 1}, Msg: "see here"},
		},
	})

	var buf bytes.Buffer
	Pretty(&buf, bag, fs, PrettyOpts{ShowNotes: true})

	if !strings.Contains(buf.String(), "note: prog.eva:1:1: see here") {
		t.Errorf("expected the note in %q", buf.String())
	}
}
