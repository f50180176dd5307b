package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"eva/internal/diag"
	"eva/internal/diagfmt"
	"eva/internal/lexer"
	"eva/internal/source"
)

var tokenizeCmd = &cobra.Command{
	Use:   "tokenize [flags] <file.eva>",
	Short: "Dump the token stream of a source file",
	Args:  cobra.ExactArgs(1),
	RunE:  runTokenize,
}

func init() {
	tokenizeCmd.Flags().Bool("json", false, "emit tokens as JSON")
}

func runTokenize(cmd *cobra.Command, args []string) error {
	colorOn := setupColor(cmd)

	asJSON, err := cmd.Flags().GetBool("json")
	if err != nil {
		return fmt.Errorf("failed to get json flag: %w", err)
	}

	fs := source.NewFileSet()
	id, err := fs.Load(args[0])
	if err != nil {
		return err
	}

	bag := diag.NewBag(maxDiagnostics(cmd))
	lx := lexer.New(fs.Get(id), bag)
	tokens := lx.Tokenize()

	if asJSON {
		if err := diagfmt.FormatTokensJSON(os.Stdout, tokens); err != nil {
			return err
		}
	} else {
		if err := diagfmt.FormatTokensPretty(os.Stdout, tokens, fs); err != nil {
			return err
		}
	}

	if bag.HasErrors() {
		bag.Sort()
		diagfmt.Pretty(os.Stderr, bag, fs, diagfmt.PrettyOpts{Color: colorOn})
		os.Exit(1)
	}
	return nil
}
