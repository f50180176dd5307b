package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"eva/internal/disasm"
	"eva/internal/driver"
	"eva/internal/project"
)

var runCmd = &cobra.Command{
	Use:   "run [flags] <file.eva>",
	Short: "Compile and execute an Eva program",
	Long:  `Compile an Eva source file to bytecode and execute it on the VM`,
	Args:  cobra.ExactArgs(1),
	RunE:  runExecution,
}

func init() {
	runCmd.Flags().Bool("vm-trace", false, "enable VM execution tracing")
	runCmd.Flags().Bool("disasm", false, "dump disassembly before running")
	runCmd.Flags().Bool("heap-stats", false, "print heap statistics after the run")
	runCmd.Flags().Int("stack-size", 0, "value stack capacity in slots (0 = default)")
	runCmd.Flags().Int("gc-threshold", 0, "GC trigger threshold in bytes (0 = default)")
}

func runExecution(cmd *cobra.Command, args []string) error {
	filePath := args[0]
	colorOn := setupColor(cmd)

	vmTrace, err := cmd.Flags().GetBool("vm-trace")
	if err != nil {
		return fmt.Errorf("failed to get vm-trace flag: %w", err)
	}
	showDisasm, err := cmd.Flags().GetBool("disasm")
	if err != nil {
		return fmt.Errorf("failed to get disasm flag: %w", err)
	}
	heapStats, err := cmd.Flags().GetBool("heap-stats")
	if err != nil {
		return fmt.Errorf("failed to get heap-stats flag: %w", err)
	}
	stackSize, err := cmd.Flags().GetInt("stack-size")
	if err != nil {
		return fmt.Errorf("failed to get stack-size flag: %w", err)
	}
	gcThreshold, err := cmd.Flags().GetInt("gc-threshold")
	if err != nil {
		return fmt.Errorf("failed to get gc-threshold flag: %w", err)
	}

	// The manifest supplies defaults; flags win.
	if manifest, ok, err := project.LoadNear(filePath); err != nil {
		return err
	} else if ok {
		if stackSize == 0 {
			stackSize = manifest.VM.StackSize
		}
		if gcThreshold == 0 {
			gcThreshold = manifest.VM.GCThreshold
		}
		showDisasm = showDisasm || manifest.VM.Disassemble
		heapStats = heapStats || manifest.VM.HeapStats
	}

	opts := driver.Options{
		StackSize:      stackSize,
		GCThreshold:    gcThreshold,
		MaxDiagnostics: maxDiagnostics(cmd),
	}
	if vmTrace {
		opts.Trace = os.Stderr
	}

	res, err := driver.CompileFile(filePath, opts)
	if err != nil {
		if errors.Is(err, driver.ErrCompileFailed) {
			printDiagnostics(res, colorOn)
			os.Exit(1)
		}
		return err
	}

	if showDisasm {
		d := disasm.New(res.Machine.Global)
		d.DisassembleAll(os.Stderr, res.Compiler.CodeObjects())
	}

	value, runErr := driver.Run(res)
	if heapStats {
		res.Stats.Print(os.Stderr)
	}
	if runErr != nil {
		fmt.Fprintln(os.Stderr, runErr)
		os.Exit(1)
	}

	fmt.Println(value)
	return nil
}
