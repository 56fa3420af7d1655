package alloc

import (
	"sync"
	"unsafe"

	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
)

// Locked serialises every operation on a Heap behind a mutex so it can be
// shared between goroutines.
type Locked struct {
	mu sync.Mutex
	h  *Heap
}

// NewLocked wraps h. h must not be used directly afterwards.
func NewLocked(h *Heap) *Locked {
	return &Locked{h: h}
}

// Alloc is Heap.Alloc under the lock.
func (l *Locked) Alloc(size uint) (Ptr, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.h.Alloc(size)
}

// Release is Heap.Release under the lock.
func (l *Locked) Release(p Ptr) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.h.Release(p)
}

// Resize is Heap.Resize under the lock.
func (l *Locked) Resize(p Ptr, size uint) (Ptr, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.h.Resize(p, size)
}

// Malloc is Heap.Malloc under the lock.
func (l *Locked) Malloc(size uintptr) unsafe.Pointer {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.h.Malloc(size)
}

// Free is Heap.Free under the lock.
func (l *Locked) Free(ptr unsafe.Pointer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.h.Free(ptr)
}

// Realloc is Heap.Realloc under the lock.
func (l *Locked) Realloc(ptr unsafe.Pointer, size uintptr) unsafe.Pointer {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.h.Realloc(ptr, size)
}

// Calloc is Heap.Calloc under the lock.
func (l *Locked) Calloc(n, size uintptr) unsafe.Pointer {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.h.Calloc(n, size)
}

// Diagnostics returns a consistent snapshot of the heap.
func (l *Locked) Diagnostics() Diagnostics {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.h.Diagnostics()
}

// Mallinfo is Heap.Mallinfo under the lock.
func (l *Locked) Mallinfo() Mallinfo {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.h.Mallinfo()
}

// Stats returns a copy of the activity counters.
func (l *Locked) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.h.Stats()
}

// Validate checks the free list while no other goroutine can mutate it.
func (l *Locked) Validate() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.h.Validate()
}

// WriteJSON writes the diagnostics document under the lock.
func (l *Locked) WriteJSON(w *jwriter.Writer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.h.WriteJSON(w)
}

// With runs fn with exclusive access to the underlying heap.
func (l *Locked) With(fn func(h *Heap)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fn(l.h)
}
