package vm

import (
	"fmt"
	"io"
)

// DefaultStackSize is the value-stack capacity in slots.
const DefaultStackSize = 512

// Options configures VM execution.
type Options struct {
	// StackSize is the value-stack capacity; zero means DefaultStackSize.
	StackSize int
	// Trace, when non-nil, receives a per-instruction execution trace.
	Trace io.Writer
}

// VM is the Eva stack machine. It executes one bytecode stream to
// completion; there is no concurrency.
type VM struct {
	Heap   *Heap
	Global *Global

	stack []Value
	sp    int     // next free stack slot
	bp    int     // base of the current frame
	ip    int     // next byte to fetch
	fn    *Object // currently executing function
	code  *Code   // fn's code unit, cached

	frames []Frame

	// opStart is the offset of the opcode currently being executed,
	// for fault reporting.
	opStart int

	// constantRoots keeps compile-time constant objects reachable.
	constantRoots []*Object

	trace io.Writer
	eb    *errorBuilder
}

// New creates a VM over the given heap and global table.
func New(heap *Heap, global *Global, opts Options) *VM {
	stackSize := opts.StackSize
	if stackSize <= 0 {
		stackSize = DefaultStackSize
	}
	machine := &VM{
		Heap:   heap,
		Global: global,
		stack:  make([]Value, stackSize),
		trace:  opts.Trace,
	}
	machine.eb = &errorBuilder{vm: machine}
	return machine
}

// SetConstantRoots installs the compiler's constant-object set as
// permanent GC roots.
func (vm *VM) SetConstantRoots(objects []*Object) {
	vm.constantRoots = objects
}

// Push pushes a value onto the stack.
func (vm *VM) Push(v Value) error {
	if vm.sp == len(vm.stack) {
		return vm.eb.stackOverflow()
	}
	vm.stack[vm.sp] = v
	vm.sp++
	return nil
}

// Pop removes and returns the top of stack.
func (vm *VM) Pop() (Value, error) {
	if vm.sp == 0 {
		return Value{}, vm.eb.stackUnderflow("pop")
	}
	vm.sp--
	return vm.stack[vm.sp], nil
}

// Peek returns the value offset slots below the top without popping.
func (vm *VM) Peek(offset int) (Value, error) {
	idx := vm.sp - 1 - offset
	if idx < 0 {
		return Value{}, vm.eb.stackUnderflow("peek")
	}
	return vm.stack[idx], nil
}

// PopN discards count values from the stack.
func (vm *VM) PopN(count int) error {
	if count > vm.sp {
		return vm.eb.stackUnderflow("popN")
	}
	vm.sp -= count
	return nil
}

// StackDepth returns the current number of values on the stack.
func (vm *VM) StackDepth() int { return vm.sp }

// gcRoots gathers the root set: live stack slots, global slots, and
// the compiler's constant objects.
func (vm *VM) gcRoots() map[*Object]struct{} {
	roots := make(map[*Object]struct{}, vm.sp+len(vm.constantRoots))
	for i := 0; i < vm.sp; i++ {
		if vm.stack[i].IsObject() {
			roots[vm.stack[i].Obj] = struct{}{}
		}
	}
	for i := 0; i < vm.Global.Len(); i++ {
		if v := vm.Global.Get(i).Value; v.IsObject() {
			roots[v.Obj] = struct{}{}
		}
	}
	for _, obj := range vm.constantRoots {
		roots[obj] = struct{}{}
	}
	// The executing function and the saved frames are live even when
	// their slot 0 was already compacted away.
	if vm.fn != nil {
		roots[vm.fn] = struct{}{}
	}
	for i := range vm.frames {
		if vm.frames[i].Fn != nil {
			roots[vm.frames[i].Fn] = struct{}{}
		}
	}
	return roots
}

// Run executes the given main function object until OpHalt and returns
// the program result.
func (vm *VM) Run(main *Object) (Value, error) {
	if main == nil || main.Kind != OKFunction {
		return Value{}, vm.eb.notCallable("nil")
	}
	vm.fn = main
	vm.code = main.Fn.Co.Code
	vm.ip = 0
	vm.sp = 0
	vm.bp = 0
	vm.frames = vm.frames[:0]

	vm.Heap.Attach(vm)
	defer vm.Heap.Detach()

	return vm.dispatch()
}

// DumpStack writes the current stack contents, top first.
func (vm *VM) DumpStack(w io.Writer) {
	fmt.Fprintf(w, "---------- stack (sp=%d bp=%d) ----------\n", vm.sp, vm.bp)
	if vm.sp == 0 {
		fmt.Fprintln(w, "(empty)")
		return
	}
	for i := vm.sp - 1; i >= 0; i-- {
		fmt.Fprintf(w, "%4d: %s\n", i, vm.stack[i])
	}
}
