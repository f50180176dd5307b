package vm

import (
	"testing"
)

// collectHeap runs one cycle directly against the heap.
func collectHeap(h *Heap, roots ...*Object) {
	set := make(map[*Object]struct{}, len(roots))
	for _, obj := range roots {
		set[obj] = struct{}{}
	}
	Collector{}.Collect(h, set)
}

func TestHeapAccounting(t *testing.T) {
	h := NewHeap(1 << 30)

	a := h.AllocString("hello")
	b := h.AllocCell(MakeNumber(1))

	if h.Objects() != 2 {
		t.Fatalf("expected 2 objects, got %d", h.Objects())
	}
	want := a.Size() + b.Size()
	if h.BytesAllocated() != want {
		t.Errorf("expected %d bytes, got %d", want, h.BytesAllocated())
	}
}

func TestSweepReclaimsUnreachable(t *testing.T) {
	h := NewHeap(1 << 30)

	live := h.AllocString("live")
	h.AllocString("garbage one")
	h.AllocString("garbage two")

	collectHeap(h, live)

	if h.Objects() != 1 {
		t.Fatalf("expected 1 survivor, got %d", h.Objects())
	}
	if h.BytesAllocated() != live.Size() {
		t.Errorf("expected %d bytes, got %d", live.Size(), h.BytesAllocated())
	}
	if live.Marked() {
		t.Error("mark bit must be clear after the cycle")
	}
}

func TestMarkTracesFunctionCells(t *testing.T) {
	h := NewHeap(1 << 30)

	co := h.AllocCode("f", 0)
	fn := h.AllocFunction(co)
	cell := h.AllocCell(MakeObject(h.AllocString("captured")))
	fn.Fn.Cells = append(fn.Fn.Cells, cell)

	collectHeap(h, fn)

	// fn, co, cell, and the captured string all survive.
	if h.Objects() != 4 {
		t.Errorf("expected 4 survivors, got %d", h.Objects())
	}
}

func TestMarkTracesInstanceProperties(t *testing.T) {
	h := NewHeap(1 << 30)

	cls := h.AllocClass("C", nil)
	inst := h.AllocInstance(cls)
	val := h.AllocString("prop value")
	inst.Instance.Props["v"] = MakeObject(val)
	h.AllocString("garbage")

	collectHeap(h, inst)

	if h.Objects() != 3 {
		t.Errorf("expected 3 survivors, got %d", h.Objects())
	}
	if val.Marked() || cls.Marked() || inst.Marked() {
		t.Error("mark bits must be clear after the cycle")
	}
}

func TestCyclesAreCollected(t *testing.T) {
	h := NewHeap(1 << 30)

	a := h.AllocCell(Value{})
	b := h.AllocCell(Value{})
	a.Cell = MakeObject(b)
	b.Cell = MakeObject(a)

	collectHeap(h)

	if h.Objects() != 0 {
		t.Errorf("expected the cycle to be reclaimed, got %d objects", h.Objects())
	}
	if h.BytesAllocated() != 0 {
		t.Errorf("expected 0 bytes, got %d", h.BytesAllocated())
	}
}

func TestBytesAllocatedMatchesList(t *testing.T) {
	h := NewHeap(1 << 30)

	keep := h.AllocString("keep")
	h.AllocCell(MakeNumber(1))
	h.AllocClass("C", nil)

	collectHeap(h, keep)

	total := 0
	h.ForEach(func(obj *Object) bool {
		total += obj.Size()
		return true
	})
	if total != h.BytesAllocated() {
		t.Errorf("list total %d != bytesAllocated %d", total, h.BytesAllocated())
	}
}

func TestCollectionTriggeredByThreshold(t *testing.T) {
	h := NewHeap(64)
	machine := New(h, NewGlobal(), Options{})
	h.Attach(machine)
	defer h.Detach()

	// Nothing is rooted, so every allocation beyond the threshold
	// triggers a cycle that reclaims the garbage.
	for i := 0; i < 64; i++ {
		h.AllocString("transient value that outgrows the threshold")
	}

	if h.Objects() > 2 {
		t.Errorf("expected the garbage to be reclaimed, got %d objects", h.Objects())
	}
}

func TestThresholdDoublesWhenLiveSetExceedsIt(t *testing.T) {
	h := NewHeap(64)
	machine := New(h, NewGlobal(), Options{})
	h.Attach(machine)
	defer h.Detach()

	// Root the allocations on the machine stack so a cycle cannot
	// reclaim them; the threshold must grow instead.
	for i := 0; i < 8; i++ {
		obj := h.AllocString("pinned value that stays reachable")
		if err := machine.Push(MakeObject(obj)); err != nil {
			t.Fatalf("push failed: %v", err)
		}
	}

	if h.Objects() != 8 {
		t.Fatalf("expected 8 live objects, got %d", h.Objects())
	}
	if h.Threshold() <= 64 {
		t.Errorf("expected the threshold to grow, still %d", h.Threshold())
	}
}
