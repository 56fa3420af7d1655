package alloc

import (
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"

	"github.com/joshuapare/heapkit/internal/format"
)

// Stats counts allocator activity since the heap was created.
type Stats struct {
	AllocCalls       uint64 // Total Alloc calls, failures included
	AllocFastPath    uint64 // Satisfied from the free list without growing
	AllocSlowPath    uint64 // Satisfied after growing the heap
	FreeCalls        uint64 // Non-nil Release calls
	ResizeCalls      uint64
	GrowCalls        uint64 // Successful host mappings
	GrowBytes        uint64 // Bytes obtained from the host
	SplitCount       uint64 // Blocks trimmed with a remainder returned to the list
	CoalesceForward  uint64 // Released block absorbed its successor
	CoalesceBackward uint64 // Released or grown block absorbed into its predecessor
	FailedAllocs     uint64
}

// Diagnostics is a point-in-time view of the heap.
type Diagnostics struct {
	// HeapExtent is the current end of the heap: origin plus every byte
	// mapped so far.
	HeapExtent uintptr
	// FreeBlocks is the number of records on the free list.
	FreeBlocks int

	Origin      uintptr
	MappedBytes uintptr
	FreeBytes   uintptr // payload bytes on the free list
	LargestFree uintptr // largest free payload
	Strategy    Strategy
}

// Mallinfo mirrors the classic mallinfo summary. Fields the allocator has no
// notion of (fastbins, mmapped chunks) are always zero.
type Mallinfo struct {
	Arena    int // non-mmapped space; always 0
	Ordblks  int // number of free records
	Smblks   int
	Hblks    int // number of distinct mapped regions
	Hblkhd   int // heap extent
	Usmblks  int
	Fsmblks  int
	Uordblks int // bytes held by allocated blocks, headers included
	Fordblks int // free payload bytes
	Keepcost int // bytes of the free block at the top of the heap
}

// Diagnostics reports the heap extent and free-list shape. Like every other
// query it seeds the extent from the host break if nothing has yet.
func (h *Heap) Diagnostics() Diagnostics {
	h.seed()
	d := Diagnostics{
		HeapExtent:  h.extent,
		FreeBlocks:  h.free.count,
		Origin:      h.origin,
		MappedBytes: h.mapped,
		Strategy:    h.strategy,
	}
	h.free.walk(func(b block) bool {
		sz := b.size()
		d.FreeBytes += sz
		if sz > d.LargestFree {
			d.LargestFree = sz
		}
		return true
	})
	return d
}

// HeapExtent is shorthand for Diagnostics().HeapExtent.
func (h *Heap) HeapExtent() uintptr {
	h.seed()
	return h.extent
}

// FreeBlocks is shorthand for Diagnostics().FreeBlocks.
func (h *Heap) FreeBlocks() int {
	return h.free.count
}

// Mallinfo summarises the heap in mallinfo form.
func (h *Heap) Mallinfo() Mallinfo {
	d := h.Diagnostics()
	mi := Mallinfo{
		Ordblks:  d.FreeBlocks,
		Hblks:    len(h.spans),
		Hblkhd:   int(d.HeapExtent),
		Uordblks: int(h.allocated),
		Fordblks: int(d.FreeBytes),
	}

	// The last free record counts as releasable only if it reaches the end
	// of the highest mapped region.
	var last block
	h.free.walk(func(b block) bool {
		last = b
		return true
	})
	if last != 0 && len(h.spans) > 0 && last.end() == h.spans[len(h.spans)-1].end {
		mi.Keepcost = int(last.span())
	}
	return mi
}

// Stats returns a copy of the activity counters.
func (h *Heap) Stats() Stats {
	return h.stats
}

// VisitFree calls fn with the header address and payload size of every free
// record, in address order, until fn returns false. fn must not call back
// into the heap.
func (h *Heap) VisitFree(fn func(addr, size uintptr) bool) {
	h.free.walk(func(b block) bool {
		return fn(uintptr(b), b.size())
	})
}

func corruptf(format string, args ...interface{}) error {
	return errors.Mark(errors.AssertionFailedf(format, args...), ErrCorrupt)
}

// Validate walks the free list and checks every structural invariant:
// alignment, strict address order, no adjacent members, membership in a
// mapped region, the cached count, and byte conservation between free and
// allocated blocks. The returned error matches ErrCorrupt.
func (h *Heap) Validate() error {
	var (
		prev     block
		n        int
		freeSpan uintptr
	)
	for cur := h.free.head; cur != 0; cur = cur.next() {
		n++
		if n > h.free.count+1 {
			return corruptf("free list longer than recorded count %d (cycle?)", h.free.count)
		}
		if !format.IsAligned(uintptr(cur)) {
			return corruptf("free record %#x is misaligned", uintptr(cur))
		}
		if cur.size() == 0 {
			return corruptf("free record %#x has zero size", uintptr(cur))
		}
		if prev != 0 {
			switch {
			case cur <= prev:
				return corruptf("free list out of order: %#x follows %#x", uintptr(cur), uintptr(prev))
			case prev.end() > uintptr(cur):
				return corruptf("free records %#x and %#x overlap", uintptr(prev), uintptr(cur))
			case prev.end() == uintptr(cur):
				return corruptf("free records %#x and %#x are adjacent but not merged", uintptr(prev), uintptr(cur))
			}
		}
		if !h.owns(cur) {
			return corruptf("free record %#x+%d lies outside mapped memory", uintptr(cur), cur.span())
		}
		freeSpan += cur.span()
		prev = cur
	}

	if n != h.free.count {
		return corruptf("free list has %d records, count says %d", n, h.free.count)
	}
	if freeSpan+h.allocated != h.mapped {
		return corruptf("byte conservation broken: free %d + allocated %d != mapped %d",
			freeSpan, h.allocated, h.mapped)
	}
	return nil
}

// WriteJSON streams the diagnostics, counters and free list as one JSON
// object.
func (h *Heap) WriteJSON(w *jwriter.Writer) {
	d := h.Diagnostics()

	obj := w.Object()
	defer obj.End()

	obj.Name("strategy").String(d.Strategy.String())
	obj.Name("origin").String(hexAddr(d.Origin))
	obj.Name("heapExtent").String(hexAddr(d.HeapExtent))
	obj.Name("mappedBytes").Int(int(d.MappedBytes))
	obj.Name("allocatedBytes").Int(int(h.allocated))
	obj.Name("freeBlocks").Int(d.FreeBlocks)
	obj.Name("freeBytes").Int(int(d.FreeBytes))
	obj.Name("largestFree").Int(int(d.LargestFree))

	st := h.stats
	statsObj := obj.Name("stats").Object()
	statsObj.Name("allocCalls").Int(int(st.AllocCalls))
	statsObj.Name("allocFastPath").Int(int(st.AllocFastPath))
	statsObj.Name("allocSlowPath").Int(int(st.AllocSlowPath))
	statsObj.Name("freeCalls").Int(int(st.FreeCalls))
	statsObj.Name("resizeCalls").Int(int(st.ResizeCalls))
	statsObj.Name("growCalls").Int(int(st.GrowCalls))
	statsObj.Name("growBytes").Int(int(st.GrowBytes))
	statsObj.Name("splitCount").Int(int(st.SplitCount))
	statsObj.Name("coalesceForward").Int(int(st.CoalesceForward))
	statsObj.Name("coalesceBackward").Int(int(st.CoalesceBackward))
	statsObj.Name("failedAllocs").Int(int(st.FailedAllocs))
	statsObj.End()

	arr := obj.Name("freeList").Array()
	h.free.walk(func(b block) bool {
		rec := arr.Object()
		rec.Name("addr").String(hexAddr(uintptr(b)))
		rec.Name("size").Int(int(b.size()))
		rec.End()
		return true
	})
	arr.End()
}

// DiagnosticsJSON renders WriteJSON into a byte slice.
func (h *Heap) DiagnosticsJSON() []byte {
	w := jwriter.NewWriter()
	h.WriteJSON(&w)
	return w.Bytes()
}

func hexAddr(a uintptr) string {
	return fmt.Sprintf("%#x", a)
}
