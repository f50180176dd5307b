package diagfmt

// PrettyOpts configures pretty-printing of diagnostics.
type PrettyOpts struct {
	// Color enables severity and code highlighting.
	Color bool
	// ShowNotes renders attached notes under each diagnostic.
	ShowNotes bool
}
