package main

import (
	"os"

	"github.com/spf13/cobra"

	"eva/internal/diagfmt"
	"eva/internal/driver"
)

// printDiagnostics renders a result's diagnostics to stderr.
func printDiagnostics(res *driver.Result, colorOn bool) {
	res.Bag.Sort()
	res.Bag.Dedup()
	diagfmt.Pretty(os.Stderr, res.Bag, res.FileSet, diagfmt.PrettyOpts{
		Color:     colorOn,
		ShowNotes: true,
	})
}

// maxDiagnostics reads the persistent --max-diagnostics flag.
func maxDiagnostics(cmd *cobra.Command) int {
	n, err := cmd.Flags().GetInt("max-diagnostics")
	if err != nil || n <= 0 {
		return 100
	}
	return n
}
