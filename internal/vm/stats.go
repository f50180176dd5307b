package vm

import (
	"fmt"
	"io"
)

// HeapStats is a point-in-time snapshot of heap accounting.
type HeapStats struct {
	Objects        int
	BytesAllocated int
	Threshold      int
}

// Stats snapshots the heap counters.
func (h *Heap) Stats() HeapStats {
	return HeapStats{
		Objects:        h.count,
		BytesAllocated: h.bytesAllocated,
		Threshold:      h.threshold,
	}
}

// Print writes the snapshot in the memory-stats dump format.
func (s HeapStats) Print(w io.Writer) {
	fmt.Fprintln(w, "--------------------")
	fmt.Fprintln(w, "Memory stats:")
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Objects allocated : %d\n", s.Objects)
	fmt.Fprintf(w, "Bytes allocated   : %d\n", s.BytesAllocated)
	fmt.Fprintf(w, "GC threshold      : %d\n", s.Threshold)
}
