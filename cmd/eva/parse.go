package main

import (
	"os"

	"github.com/spf13/cobra"

	"eva/internal/diag"
	"eva/internal/diagfmt"
	"eva/internal/parser"
	"eva/internal/source"
)

var parseCmd = &cobra.Command{
	Use:   "parse [flags] <file.eva>",
	Short: "Dump the expression tree of a source file",
	Args:  cobra.ExactArgs(1),
	RunE:  runParse,
}

func runParse(cmd *cobra.Command, args []string) error {
	colorOn := setupColor(cmd)

	fs := source.NewFileSet()
	id, err := fs.Load(args[0])
	if err != nil {
		return err
	}

	bag := diag.NewBag(maxDiagnostics(cmd))
	p := parser.New(fs.Get(id), bag)
	exps := p.ParseProgram()

	for i := range exps {
		diagfmt.FormatExpPretty(os.Stdout, &exps[i], fs)
	}

	if bag.HasErrors() {
		bag.Sort()
		diagfmt.Pretty(os.Stderr, bag, fs, diagfmt.PrettyOpts{Color: colorOn})
		os.Exit(1)
	}
	return nil
}
