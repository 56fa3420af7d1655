// Package arrowmem adapts a heap to Apache Arrow's memory.Allocator, so Arrow
// buffers, builders and arrays can live in free-list managed memory.
//
// Buffers are 8-byte aligned, not the 64 bytes Arrow's Go allocator pads to;
// Arrow treats 64-byte alignment as a performance hint only.
package arrowmem

import (
	"sync/atomic"
	"unsafe"

	"github.com/apache/arrow/go/v17/arrow/memory"

	"github.com/joshuapare/heapkit/heap/alloc"
)

// Allocator serves Arrow allocations from a locked heap. It is safe for
// concurrent use, as Arrow requires.
type Allocator struct {
	heap      *alloc.Locked
	allocated atomic.Int64
}

// New returns an Allocator drawing from h.
func New(h *alloc.Locked) *Allocator {
	return &Allocator{heap: h}
}

// Allocate returns size zeroed bytes. It panics when size is negative or the
// heap is exhausted, matching Arrow's Go allocator which panics via make.
func (a *Allocator) Allocate(size int) []byte {
	if size < 0 {
		panic("arrowmem: negative size")
	}
	if size == 0 {
		return []byte{}
	}
	ptr := a.heap.Calloc(1, uintptr(size))
	if ptr == nil {
		panic("arrowmem: out of memory")
	}
	a.allocated.Add(int64(size))
	return unsafe.Slice((*byte)(ptr), size)
}

// Reallocate moves b into a block of size bytes. Bytes past len(b) are
// zeroed.
func (a *Allocator) Reallocate(size int, b []byte) []byte {
	if size < 0 {
		panic("arrowmem: negative size")
	}
	if cap(b) == 0 {
		return a.Allocate(size)
	}
	if size == 0 {
		a.Free(b)
		return []byte{}
	}

	old := len(b)
	ptr := a.heap.Realloc(unsafe.Pointer(unsafe.SliceData(b)), uintptr(size))
	if ptr == nil {
		panic("arrowmem: out of memory")
	}
	a.allocated.Add(int64(size - old))

	out := unsafe.Slice((*byte)(ptr), size)
	if size > old {
		clear(out[old:])
	}
	return out
}

// Free returns b to the heap. Empty slices are ignored.
func (a *Allocator) Free(b []byte) {
	if cap(b) == 0 {
		return
	}
	a.allocated.Add(-int64(len(b)))
	a.heap.Free(unsafe.Pointer(unsafe.SliceData(b)))
}

// AllocatedBytes returns the bytes currently handed out to Arrow.
func (a *Allocator) AllocatedBytes() int64 {
	return a.allocated.Load()
}

// AssertSize fails t when the outstanding byte count differs from sz.
func (a *Allocator) AssertSize(t memory.TestingT, sz int) {
	if got := a.AllocatedBytes(); got != int64(sz) {
		t.Helper()
		t.Errorf("arrowmem: invalid memory size exp=%d, got=%d", sz, got)
	}
}

var _ memory.Allocator = (*Allocator)(nil)
