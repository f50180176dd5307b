package vm

// Size accounting: every object is charged the header cost plus a
// payload estimate fixed at allocation time, so bytesAllocated always
// equals the sum of Size over the live list.
const (
	objectHeaderSize = 40

	codePayloadSize     = 120
	nativePayloadSize   = 56
	functionPayloadSize = 48
	cellPayloadSize     = 24
	classPayloadSize    = 96
	instancePayloadSize = 64
	stringPayloadSize   = 16 // plus byte length
)

// DefaultGCThreshold is the allocation threshold that triggers a
// collection cycle, in bytes.
const DefaultGCThreshold = 1024

// Heap owns every runtime object. New objects are threaded onto an
// intrusive list and charged against bytesAllocated; crossing the
// threshold triggers a mark-sweep cycle when a running VM is attached.
type Heap struct {
	head           *Object
	count          int
	bytesAllocated int
	threshold      int

	// vm is attached for the duration of execution; it provides GC
	// roots. With no VM attached (compile time) collection is deferred.
	vm *VM

	collector Collector
}

// NewHeap creates a heap with the given GC threshold; zero or negative
// means DefaultGCThreshold.
func NewHeap(threshold int) *Heap {
	if threshold <= 0 {
		threshold = DefaultGCThreshold
	}
	return &Heap{threshold: threshold}
}

// Attach connects a VM so collections can see stack and global roots.
func (h *Heap) Attach(machine *VM) { h.vm = machine }

// Detach disconnects the VM after execution.
func (h *Heap) Detach() { h.vm = nil }

// BytesAllocated returns the current heap charge in bytes.
func (h *Heap) BytesAllocated() int { return h.bytesAllocated }

// Objects returns the number of live objects on the allocation list.
func (h *Heap) Objects() int { return h.count }

// Threshold returns the current GC trigger threshold in bytes.
func (h *Heap) Threshold() int { return h.threshold }

func (h *Heap) alloc(kind ObjectKind, size int) *Object {
	h.maybeGC()
	obj := &Object{
		Kind: kind,
		size: size,
		next: h.head,
	}
	h.head = obj
	h.count++
	h.bytesAllocated += size
	return obj
}

// maybeGC runs a collection cycle when the threshold is crossed and a
// VM is attached to supply roots. The threshold doubles whenever the
// live set alone still exceeds it.
func (h *Heap) maybeGC() {
	if h.vm == nil || h.bytesAllocated < h.threshold {
		return
	}
	h.collector.Collect(h, h.vm.gcRoots())
	if h.bytesAllocated >= h.threshold {
		h.threshold *= 2
	}
}

// AllocString allocates a string object.
func (h *Heap) AllocString(s string) *Object {
	obj := h.alloc(OKString, objectHeaderSize+stringPayloadSize+len(s))
	obj.Str = s
	return obj
}

// AllocCode allocates an empty code unit.
func (h *Heap) AllocCode(name string, arity int) *Object {
	obj := h.alloc(OKCode, objectHeaderSize+codePayloadSize+len(name))
	obj.Code = &Code{Name: name, Arity: arity}
	return obj
}

// AllocNative allocates a built-in function object.
func (h *Heap) AllocNative(fn func(machine *VM) error, name string, arity int) *Object {
	obj := h.alloc(OKNative, objectHeaderSize+nativePayloadSize+len(name))
	obj.Native = &Native{Fn: fn, Name: name, Arity: arity}
	return obj
}

// AllocFunction allocates a user function wrapping a code object.
func (h *Heap) AllocFunction(co *Object) *Object {
	obj := h.alloc(OKFunction, objectHeaderSize+functionPayloadSize)
	obj.Fn = &Function{Co: co}
	return obj
}

// AllocCell allocates a cell holding the given value.
func (h *Heap) AllocCell(v Value) *Object {
	obj := h.alloc(OKCell, objectHeaderSize+cellPayloadSize)
	obj.Cell = v
	return obj
}

// AllocClass allocates a class object. super may be nil.
func (h *Heap) AllocClass(name string, super *Object) *Object {
	obj := h.alloc(OKClass, objectHeaderSize+classPayloadSize+len(name))
	obj.Class = &Class{Name: name, Super: super, Props: make(map[string]Value)}
	return obj
}

// AllocInstance allocates an instance of the given class.
func (h *Heap) AllocInstance(class *Object) *Object {
	obj := h.alloc(OKInstance, objectHeaderSize+instancePayloadSize)
	obj.Instance = &Instance{Class: class, Props: make(map[string]Value)}
	return obj
}

// release unlinks accounting for a swept object.
func (h *Heap) release(obj *Object) {
	h.count--
	h.bytesAllocated -= obj.size
}

// ForEach visits every object on the allocation list.
func (h *Heap) ForEach(fn func(*Object) bool) {
	for obj := h.head; obj != nil; obj = obj.next {
		if !fn(obj) {
			return
		}
	}
}
