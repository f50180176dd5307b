package main

import (
	"errors"
	"os"

	"github.com/spf13/cobra"

	"eva/internal/disasm"
	"eva/internal/driver"
)

var disasmCmd = &cobra.Command{
	Use:   "disasm [flags] <file.eva>",
	Short: "Compile a program and dump its bytecode",
	Args:  cobra.ExactArgs(1),
	RunE:  runDisasm,
}

func runDisasm(cmd *cobra.Command, args []string) error {
	colorOn := setupColor(cmd)

	res, err := driver.CompileFile(args[0], driver.Options{MaxDiagnostics: maxDiagnostics(cmd)})
	if err != nil {
		if errors.Is(err, driver.ErrCompileFailed) {
			printDiagnostics(res, colorOn)
			os.Exit(1)
		}
		return err
	}

	d := disasm.New(res.Machine.Global)
	d.DisassembleAll(os.Stdout, res.Compiler.CodeObjects())
	return nil
}
