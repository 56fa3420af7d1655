package alloc

import (
	"math/bits"
	"os"
	"sync"
	"unsafe"

	"github.com/joshuapare/heapkit/heap/host"
)

// Raw API: the C-shaped entry points. They report failure as a nil pointer
// and never return an error; use Alloc/Resize for the reason.

// Malloc returns size bytes of 8-byte-aligned memory, or nil when size is
// zero or the heap cannot grow.
func (h *Heap) Malloc(size uintptr) unsafe.Pointer {
	p, err := h.Alloc(uint(size))
	if err != nil {
		return nil
	}
	return p.Pointer()
}

// Free releases memory obtained from Malloc, Calloc or Realloc on the same
// heap. Free(nil) is a no-op.
func (h *Heap) Free(ptr unsafe.Pointer) {
	h.Release(ptrFromPayload(ptr))
}

// Realloc follows the classic contract: nil ptr allocates, size 0 frees and
// returns nil, and a failed allocation returns nil leaving ptr valid.
func (h *Heap) Realloc(ptr unsafe.Pointer, size uintptr) unsafe.Pointer {
	p, err := h.Resize(ptrFromPayload(ptr), uint(size))
	if err != nil {
		return nil
	}
	return p.Pointer()
}

// Calloc allocates n*size zeroed bytes. It returns nil on overflow.
func (h *Heap) Calloc(n, size uintptr) unsafe.Pointer {
	hi, total := bits.Mul64(uint64(n), uint64(size))
	if hi != 0 || uint64(uintptr(total)) != total {
		return nil
	}
	ptr := h.Malloc(uintptr(total))
	if ptr == nil {
		return nil
	}
	clear(unsafe.Slice((*byte)(ptr), uintptr(total)))
	return ptr
}

var (
	defaultOnce sync.Once
	defaultHeap *Locked
	defaultErr  error
)

// Default returns the process-wide heap backed by the operating system. Its
// strategy comes from HEAPKIT_STRATEGY (first-fit when unset or invalid).
func Default() (*Locked, error) {
	defaultOnce.Do(func() {
		strategy := FirstFit
		if name := os.Getenv("HEAPKIT_STRATEGY"); name != "" {
			if s, err := ParseStrategy(name); err == nil {
				strategy = s
			}
		}
		var h *Heap
		h, defaultErr = New(host.NewOS(), &Options{Strategy: strategy})
		if defaultErr == nil {
			defaultHeap = NewLocked(h)
		}
	})
	return defaultHeap, defaultErr
}

// Malloc allocates from the default heap.
func Malloc(size uintptr) unsafe.Pointer {
	h, err := Default()
	if err != nil {
		return nil
	}
	return h.Malloc(size)
}

// Free releases memory back to the default heap.
func Free(ptr unsafe.Pointer) {
	if ptr == nil {
		return
	}
	h, err := Default()
	if err != nil {
		return
	}
	h.Free(ptr)
}

// Realloc resizes memory from the default heap.
func Realloc(ptr unsafe.Pointer, size uintptr) unsafe.Pointer {
	h, err := Default()
	if err != nil {
		return nil
	}
	return h.Realloc(ptr, size)
}

// Calloc allocates zeroed memory from the default heap.
func Calloc(n, size uintptr) unsafe.Pointer {
	h, err := Default()
	if err != nil {
		return nil
	}
	return h.Calloc(n, size)
}
