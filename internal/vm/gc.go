package vm

// Collector implements the mark-sweep collection cycle over a Heap's
// intrusive allocation list.
type Collector struct{}

// Collect runs one full cycle: trace from roots, then reclaim every
// unmarked object and clear the mark bits of the survivors.
func (Collector) Collect(h *Heap, roots map[*Object]struct{}) {
	mark(roots)
	sweep(h)
}

// mark traces the object graph from the roots with an iterative
// worklist.
func mark(roots map[*Object]struct{}) {
	worklist := make([]*Object, 0, len(roots))
	for obj := range roots {
		worklist = append(worklist, obj)
	}
	for len(worklist) > 0 {
		obj := worklist[len(worklist)-1]
		worklist = worklist[:len(worklist)-1]
		if obj == nil || obj.marked {
			continue
		}
		obj.marked = true
		worklist = appendPointers(worklist, obj)
	}
}

// appendPointers pushes obj's outgoing object references.
func appendPointers(worklist []*Object, obj *Object) []*Object {
	switch obj.Kind {
	case OKFunction:
		worklist = append(worklist, obj.Fn.Co)
		for _, cell := range obj.Fn.Cells {
			worklist = append(worklist, cell)
		}
	case OKCode:
		for _, c := range obj.Code.Constants {
			if c.IsObject() {
				worklist = append(worklist, c.Obj)
			}
		}
	case OKCell:
		if obj.Cell.IsObject() {
			worklist = append(worklist, obj.Cell.Obj)
		}
	case OKClass:
		if obj.Class.Super != nil {
			worklist = append(worklist, obj.Class.Super)
		}
		for _, v := range obj.Class.Props {
			if v.IsObject() {
				worklist = append(worklist, v.Obj)
			}
		}
	case OKInstance:
		worklist = append(worklist, obj.Instance.Class)
		for _, v := range obj.Instance.Props {
			if v.IsObject() {
				worklist = append(worklist, v.Obj)
			}
		}
	}
	return worklist
}

// sweep walks the allocation list, unlinking and releasing every
// unmarked object and resetting the mark bit on the rest.
func sweep(h *Heap) {
	var prev *Object
	obj := h.head
	for obj != nil {
		next := obj.next
		if obj.marked {
			obj.marked = false
			prev = obj
		} else {
			if prev == nil {
				h.head = next
			} else {
				prev.next = next
			}
			obj.next = nil
			h.release(obj)
		}
		obj = next
	}
}
