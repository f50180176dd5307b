package vm

import (
	"fmt"

	"eva/internal/bytecode"
)

// dispatch is the main interpretation loop: fetch one opcode, execute
// it, repeat until OpHalt.
func (vm *VM) dispatch() (Value, error) {
	for {
		vm.opStart = vm.ip
		opByte, err := vm.readByte()
		if err != nil {
			return Value{}, err
		}
		op := bytecode.Op(opByte)

		if vm.trace != nil {
			vm.traceOp(op)
		}

		switch op {
		case bytecode.OpHalt:
			return vm.Pop()

		case bytecode.OpConst:
			idx, err := vm.readByte()
			if err != nil {
				return Value{}, err
			}
			c, err := vm.constAt(int(idx))
			if err != nil {
				return Value{}, err
			}
			if err := vm.Push(c); err != nil {
				return Value{}, err
			}

		case bytecode.OpAdd:
			if err := vm.execAdd(); err != nil {
				return Value{}, err
			}

		case bytecode.OpSub, bytecode.OpMul, bytecode.OpDiv:
			if err := vm.execArith(op); err != nil {
				return Value{}, err
			}

		case bytecode.OpCompare:
			subOp, err := vm.readByte()
			if err != nil {
				return Value{}, err
			}
			if err := vm.execCompare(bytecode.CompareOp(subOp)); err != nil {
				return Value{}, err
			}

		case bytecode.OpJmp:
			addr, err := vm.readShort()
			if err != nil {
				return Value{}, err
			}
			if err := vm.jump(int(addr)); err != nil {
				return Value{}, err
			}

		case bytecode.OpJmpIfFalse:
			cond, err := vm.Pop()
			if err != nil {
				return Value{}, err
			}
			addr, err := vm.readShort()
			if err != nil {
				return Value{}, err
			}
			if !cond.IsBool() {
				return Value{}, vm.eb.typeMismatch("bool", cond.TypeName())
			}
			if !cond.Bool {
				if err := vm.jump(int(addr)); err != nil {
					return Value{}, err
				}
			}

		case bytecode.OpPop:
			if _, err := vm.Pop(); err != nil {
				return Value{}, err
			}

		case bytecode.OpGetGlobal:
			idx, err := vm.readByte()
			if err != nil {
				return Value{}, err
			}
			if !vm.Global.InRange(int(idx)) {
				return Value{}, vm.eb.invalidGlobal(int(idx))
			}
			if err := vm.Push(vm.Global.Get(int(idx)).Value); err != nil {
				return Value{}, err
			}

		case bytecode.OpSetGlobal:
			idx, err := vm.readByte()
			if err != nil {
				return Value{}, err
			}
			if !vm.Global.InRange(int(idx)) {
				return Value{}, vm.eb.invalidGlobal(int(idx))
			}
			v, err := vm.Peek(0)
			if err != nil {
				return Value{}, err
			}
			vm.Global.Set(int(idx), v)

		case bytecode.OpGetLocal:
			slot, err := vm.readByte()
			if err != nil {
				return Value{}, err
			}
			idx := vm.bp + int(slot)
			if idx < 0 || idx >= vm.sp {
				return Value{}, vm.eb.invalidLocal(int(slot))
			}
			if err := vm.Push(vm.stack[idx]); err != nil {
				return Value{}, err
			}

		case bytecode.OpSetLocal:
			slot, err := vm.readByte()
			if err != nil {
				return Value{}, err
			}
			idx := vm.bp + int(slot)
			if idx < 0 || idx >= vm.sp {
				return Value{}, vm.eb.invalidLocal(int(slot))
			}
			v, err := vm.Peek(0)
			if err != nil {
				return Value{}, err
			}
			vm.stack[idx] = v

		case bytecode.OpGetCell:
			idx, err := vm.readByte()
			if err != nil {
				return Value{}, err
			}
			cell, err := vm.cellAt(int(idx))
			if err != nil {
				return Value{}, err
			}
			if err := vm.Push(cell.Cell); err != nil {
				return Value{}, err
			}

		case bytecode.OpSetCell:
			idx, err := vm.readByte()
			if err != nil {
				return Value{}, err
			}
			if err := vm.execSetCell(int(idx)); err != nil {
				return Value{}, err
			}

		case bytecode.OpLoadCell:
			idx, err := vm.readByte()
			if err != nil {
				return Value{}, err
			}
			if err := vm.execLoadCell(int(idx)); err != nil {
				return Value{}, err
			}

		case bytecode.OpMakeFunction:
			count, err := vm.readByte()
			if err != nil {
				return Value{}, err
			}
			if err := vm.execMakeFunction(int(count)); err != nil {
				return Value{}, err
			}

		case bytecode.OpScopeExit:
			count, err := vm.readByte()
			if err != nil {
				return Value{}, err
			}
			if err := vm.execScopeExit(int(count)); err != nil {
				return Value{}, err
			}

		case bytecode.OpCall:
			argc, err := vm.readByte()
			if err != nil {
				return Value{}, err
			}
			if err := vm.execCall(int(argc)); err != nil {
				return Value{}, err
			}

		case bytecode.OpReturn:
			if err := vm.execReturn(); err != nil {
				return Value{}, err
			}

		case bytecode.OpNew:
			if err := vm.execNew(); err != nil {
				return Value{}, err
			}

		case bytecode.OpGetProp:
			nameIdx, err := vm.readByte()
			if err != nil {
				return Value{}, err
			}
			if err := vm.execGetProp(int(nameIdx)); err != nil {
				return Value{}, err
			}

		case bytecode.OpSetProp:
			nameIdx, err := vm.readByte()
			if err != nil {
				return Value{}, err
			}
			if err := vm.execSetProp(int(nameIdx)); err != nil {
				return Value{}, err
			}

		default:
			return Value{}, vm.eb.unknownOpcode(opByte)
		}
	}
}

// readByte fetches the next bytecode byte.
func (vm *VM) readByte() (byte, error) {
	if vm.ip >= len(vm.code.Bytecode) {
		return 0, vm.eb.makeError(PanicUnknownOpcode, "truncated bytecode")
	}
	b := vm.code.Bytecode[vm.ip]
	vm.ip++
	return b, nil
}

// readShort fetches a big-endian two-byte immediate.
func (vm *VM) readShort() (uint16, error) {
	hi, err := vm.readByte()
	if err != nil {
		return 0, err
	}
	lo, err := vm.readByte()
	if err != nil {
		return 0, err
	}
	return uint16(hi)<<8 | uint16(lo), nil
}

// jump sets the instruction pointer to an absolute offset.
func (vm *VM) jump(addr int) error {
	if addr < 0 || addr > len(vm.code.Bytecode) {
		return vm.eb.makeError(PanicUnknownOpcode, fmt.Sprintf("jump target %04X out of range", addr))
	}
	vm.ip = addr
	return nil
}

func (vm *VM) constAt(idx int) (Value, error) {
	if idx < 0 || idx >= len(vm.code.Constants) {
		return Value{}, vm.eb.invalidConst(idx)
	}
	return vm.code.Constants[idx], nil
}

func (vm *VM) cellAt(idx int) (*Object, error) {
	cells := vm.fn.Fn.Cells
	if idx < 0 || idx >= len(cells) {
		return nil, vm.eb.invalidCell(idx)
	}
	return cells[idx], nil
}

// execAdd implements OpAdd: numeric addition or string concatenation.
// Operands stay on the stack until the result is built so a collection
// triggered by the concat allocation cannot reclaim them.
func (vm *VM) execAdd() error {
	b, err := vm.Peek(0)
	if err != nil {
		return err
	}
	a, err := vm.Peek(1)
	if err != nil {
		return err
	}

	var result Value
	switch {
	case a.IsNumber() && b.IsNumber():
		result = MakeNumber(a.Num + b.Num)
	case a.IsString() && b.IsString():
		result = MakeObject(vm.Heap.AllocString(a.AsString() + b.AsString()))
	default:
		return vm.eb.typeMismatch("two numbers or two strings",
			fmt.Sprintf("%s and %s", a.TypeName(), b.TypeName()))
	}

	if err := vm.PopN(2); err != nil {
		return err
	}
	return vm.Push(result)
}

// execArith implements OpSub/OpMul/OpDiv on numbers.
func (vm *VM) execArith(op bytecode.Op) error {
	b, err := vm.Pop()
	if err != nil {
		return err
	}
	a, err := vm.Pop()
	if err != nil {
		return err
	}
	if !a.IsNumber() || !b.IsNumber() {
		return vm.eb.typeMismatch("two numbers",
			fmt.Sprintf("%s and %s", a.TypeName(), b.TypeName()))
	}

	var n float64
	switch op {
	case bytecode.OpSub:
		n = a.Num - b.Num
	case bytecode.OpMul:
		n = a.Num * b.Num
	case bytecode.OpDiv:
		n = a.Num / b.Num
	}
	return vm.Push(MakeNumber(n))
}

// execCompare implements OpCompare over numbers or strings.
func (vm *VM) execCompare(subOp bytecode.CompareOp) error {
	b, err := vm.Pop()
	if err != nil {
		return err
	}
	a, err := vm.Pop()
	if err != nil {
		return err
	}

	var res bool
	switch {
	case a.IsNumber() && b.IsNumber():
		res = compareOrdered(subOp, a.Num, b.Num)
	case a.IsString() && b.IsString():
		res = compareOrdered(subOp, a.AsString(), b.AsString())
	default:
		return vm.eb.typeMismatch("two numbers or two strings",
			fmt.Sprintf("%s and %s", a.TypeName(), b.TypeName()))
	}
	return vm.Push(MakeBool(res))
}

func compareOrdered[T float64 | string](op bytecode.CompareOp, a, b T) bool {
	switch op {
	case bytecode.CmpLt:
		return a < b
	case bytecode.CmpGt:
		return a > b
	case bytecode.CmpEq:
		return a == b
	case bytecode.CmpGe:
		return a >= b
	case bytecode.CmpLe:
		return a <= b
	case bytecode.CmpNe:
		return a != b
	}
	return false
}

// execSetCell stores the top of stack into cell idx, allocating the
// cell on its first store.
func (vm *VM) execSetCell(idx int) error {
	v, err := vm.Peek(0)
	if err != nil {
		return err
	}
	cells := vm.fn.Fn.Cells
	if idx < len(cells) {
		cells[idx].Cell = v
		return nil
	}
	if idx != len(cells) {
		return vm.eb.invalidCell(idx)
	}
	cell := vm.Heap.AllocCell(v)
	vm.fn.Fn.Cells = append(vm.fn.Fn.Cells, cell)
	return nil
}

// execLoadCell pushes the cell reference itself. Cells are allocated
// lazily; loading a cell before its first store (a variable captured
// by a closure built ahead of the declaration's store) creates it, so
// capture and store share one cell.
func (vm *VM) execLoadCell(idx int) error {
	if len(vm.fn.Fn.Cells) <= idx {
		cell := vm.Heap.AllocCell(MakeNumber(0))
		vm.fn.Fn.Cells = append(vm.fn.Fn.Cells, cell)
	}
	cell, err := vm.cellAt(idx)
	if err != nil {
		return err
	}
	return vm.Push(MakeObject(cell))
}

// execMakeFunction builds a closure: the code object is on top of the
// stack above count captured cells.
func (vm *VM) execMakeFunction(count int) error {
	coVal, err := vm.Peek(0)
	if err != nil {
		return err
	}
	if !coVal.IsObjectKind(OKCode) {
		return vm.eb.typeMismatch("code", coVal.TypeName())
	}

	fnObj := vm.Heap.AllocFunction(coVal.Obj)
	fnObj.Fn.Cells = make([]*Object, count)
	for i := 0; i < count; i++ {
		cellVal, err := vm.Peek(count - i)
		if err != nil {
			return err
		}
		if !cellVal.IsObjectKind(OKCell) {
			return vm.eb.typeMismatch("cell", cellVal.TypeName())
		}
		fnObj.Fn.Cells[i] = cellVal.Obj
	}

	if err := vm.PopN(count + 1); err != nil {
		return err
	}
	return vm.Push(MakeObject(fnObj))
}

// execScopeExit slides the block result down over count discarded slots.
func (vm *VM) execScopeExit(count int) error {
	if count == 0 {
		return nil
	}
	top := vm.sp - 1
	if top-count < 0 {
		return vm.eb.stackUnderflow("scope exit")
	}
	vm.stack[top-count] = vm.stack[top]
	vm.sp -= count
	return nil
}

// execCall implements the call protocol for natives and user functions.
func (vm *VM) execCall(argc int) error {
	fv, err := vm.Peek(argc)
	if err != nil {
		return err
	}
	if !fv.IsObject() {
		return vm.eb.notCallable(fv.TypeName())
	}

	switch fv.Obj.Kind {
	case OKNative:
		native := fv.Obj.Native
		if argc != native.Arity {
			return vm.eb.badArity(native.Name, native.Arity, argc)
		}
		if err := native.Fn(vm); err != nil {
			return err
		}
		result, err := vm.Pop()
		if err != nil {
			return err
		}
		if err := vm.PopN(argc + 1); err != nil {
			return err
		}
		return vm.Push(result)

	case OKFunction:
		callee := fv.Obj
		co := callee.Fn.Co.Code
		if argc != co.Arity {
			return vm.eb.badArity(co.Name, co.Arity, argc)
		}
		vm.frames = append(vm.frames, Frame{RA: vm.ip, BP: vm.bp, Fn: vm.fn})
		// Own cells are per-invocation: keep only the captured ones.
		callee.Fn.Cells = callee.Fn.Cells[:co.FreeCount]
		vm.fn = callee
		vm.code = co
		vm.bp = vm.sp - argc - 1
		vm.ip = 0
		return nil

	default:
		return vm.eb.notCallable(fv.Obj.Kind.String())
	}
}

// execReturn pops the current frame and resumes the caller. The
// callee's result stays on top of the stack.
func (vm *VM) execReturn() error {
	if len(vm.frames) == 0 {
		return vm.eb.makeError(PanicStackUnderflow, "return with no caller frame")
	}
	frame := vm.frames[len(vm.frames)-1]
	vm.frames = vm.frames[:len(vm.frames)-1]
	vm.ip = frame.RA
	vm.bp = frame.BP
	vm.fn = frame.Fn
	vm.code = frame.Fn.Fn.Co.Code
	return nil
}

// execNew pops a class and pushes its constructor and a fresh instance,
// setting up the constructor call that follows.
func (vm *VM) execNew() error {
	clsVal, err := vm.Peek(0)
	if err != nil {
		return err
	}
	if !clsVal.IsObjectKind(OKClass) {
		return vm.eb.typeMismatch("class", clsVal.TypeName())
	}
	cls := clsVal.Obj

	ctor, ok := cls.Class.Resolve("constructor")
	if !ok {
		return vm.eb.propertyNotFound("constructor", "class "+cls.Class.Name)
	}

	instance := vm.Heap.AllocInstance(cls)
	if _, err := vm.Pop(); err != nil {
		return err
	}
	if err := vm.Push(ctor); err != nil {
		return err
	}
	return vm.Push(MakeObject(instance))
}

// execGetProp resolves a named property on the popped receiver.
func (vm *VM) execGetProp(nameIdx int) error {
	nameVal, err := vm.constAt(nameIdx)
	if err != nil {
		return err
	}
	if !nameVal.IsString() {
		return vm.eb.typeMismatch("string constant", nameVal.TypeName())
	}
	name := nameVal.AsString()

	recv, err := vm.Pop()
	if err != nil {
		return err
	}
	if !recv.IsObject() {
		return vm.eb.typeMismatch("instance or class", recv.TypeName())
	}

	switch recv.Obj.Kind {
	case OKInstance:
		v, ok := recv.Obj.Instance.Resolve(name)
		if !ok {
			return vm.eb.propertyNotFound(name, "instance "+recv.Obj.Instance.Class.Class.Name)
		}
		return vm.Push(v)
	case OKClass:
		v, ok := recv.Obj.Class.Resolve(name)
		if !ok {
			return vm.eb.propertyNotFound(name, "class "+recv.Obj.Class.Name)
		}
		return vm.Push(v)
	default:
		return vm.eb.typeMismatch("instance or class", recv.Obj.Kind.String())
	}
}

// execSetProp stores a property on the popped receiver's own table and
// pushes the value back.
func (vm *VM) execSetProp(nameIdx int) error {
	nameVal, err := vm.constAt(nameIdx)
	if err != nil {
		return err
	}
	if !nameVal.IsString() {
		return vm.eb.typeMismatch("string constant", nameVal.TypeName())
	}
	name := nameVal.AsString()

	recv, err := vm.Pop()
	if err != nil {
		return err
	}
	value, err := vm.Pop()
	if err != nil {
		return err
	}

	switch {
	case recv.IsObjectKind(OKInstance):
		recv.Obj.Instance.Props[name] = value
	case recv.IsObjectKind(OKClass):
		recv.Obj.Class.Props[name] = value
	default:
		return vm.eb.typeMismatch("instance or class", recv.TypeName())
	}
	return vm.Push(value)
}

// traceOp writes one line of execution trace followed by a stack dump.
func (vm *VM) traceOp(op bytecode.Op) {
	fmt.Fprintf(vm.trace, "%s %04X %s\n", vm.code.Name, vm.opStart, op)
	vm.DumpStack(vm.trace)
}
