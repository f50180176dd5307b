// Package driver wires the pipeline: parse, compile, run.
package driver

import (
	"errors"
	"io"

	"eva/internal/ast"
	"eva/internal/compiler"
	"eva/internal/diag"
	"eva/internal/parser"
	"eva/internal/source"
	"eva/internal/vm"
)

// ErrCompileFailed is returned when the bag holds at least one error;
// the diagnostics carry the details.
var ErrCompileFailed = errors.New("compilation failed")

// Options configures one pipeline run.
type Options struct {
	// StackSize overrides the VM value-stack capacity.
	StackSize int
	// GCThreshold overrides the collector trigger threshold in bytes.
	GCThreshold int
	// Trace receives a per-instruction execution trace when non-nil.
	Trace io.Writer
	// MaxDiagnostics caps the diagnostic bag.
	MaxDiagnostics int
}

const defaultMaxDiagnostics = 100

// Result carries the artifacts of a pipeline run.
type Result struct {
	FileSet  *source.FileSet
	Bag      *diag.Bag
	Program  *ast.Exp
	Compiler *compiler.Compiler
	Main     *vm.Object
	Machine  *vm.VM
	Value    vm.Value
	Stats    vm.HeapStats
}

func newResult(opts Options) *Result {
	maxDiags := opts.MaxDiagnostics
	if maxDiags <= 0 {
		maxDiags = defaultMaxDiagnostics
	}
	return &Result{
		FileSet: source.NewFileSet(),
		Bag:     diag.NewBag(maxDiags),
	}
}

// parseFile parses one file into the implicit top-level (begin ...).
func parseFile(file *source.File, bag *diag.Bag) *ast.Exp {
	p := parser.New(file, bag)
	exps := p.ParseProgram()

	span := source.Span{File: file.ID, Start: 0, End: uint32(len(file.Content))}
	items := make([]ast.Exp, 0, len(exps)+1)
	items = append(items, ast.NewSymbol("begin", span))
	items = append(items, exps...)
	program := ast.NewList(items, span)
	return &program
}

// compileParsed lowers res.Program and prepares the machine.
func compileParsed(res *Result, opts Options) error {
	if res.Bag.HasErrors() {
		return ErrCompileFailed
	}

	heap := vm.NewHeap(opts.GCThreshold)
	global := vm.NewGlobal()
	vm.InstallBuiltins(global, heap)

	res.Compiler = compiler.New(global, heap, res.Bag)
	res.Main = res.Compiler.Compile(res.Program)
	if res.Bag.HasErrors() {
		return ErrCompileFailed
	}

	res.Machine = vm.New(heap, global, vm.Options{
		StackSize: opts.StackSize,
		Trace:     opts.Trace,
	})
	res.Machine.SetConstantRoots(res.Compiler.ConstantObjects())
	return nil
}

// Compile runs parse and compile for in-memory source, returning the
// partial result even on failure so diagnostics can be rendered.
func Compile(name, src string, opts Options) (*Result, error) {
	res := newResult(opts)
	id := res.FileSet.AddVirtual(name, []byte(src))
	res.Program = parseFile(res.FileSet.Get(id), res.Bag)
	return res, compileParsed(res, opts)
}

// CompileFile is Compile over a file on disk.
func CompileFile(path string, opts Options) (*Result, error) {
	res := newResult(opts)
	id, err := res.FileSet.Load(path)
	if err != nil {
		return res, err
	}
	res.Program = parseFile(res.FileSet.Get(id), res.Bag)
	return res, compileParsed(res, opts)
}

// Run executes a compiled result.
func Run(res *Result) (vm.Value, error) {
	value, err := res.Machine.Run(res.Main)
	res.Value = value
	res.Stats = res.Machine.Heap.Stats()
	return value, err
}

// Exec is the whole pipeline for in-memory source: parse, compile,
// run, and return the program result.
func Exec(src string, opts Options) (vm.Value, *Result, error) {
	res, err := Compile("<exec>", src, opts)
	if err != nil {
		return vm.Value{}, res, err
	}
	value, err := Run(res)
	return value, res, err
}
