package alloc

import (
	"unsafe"

	"github.com/joshuapare/heapkit/internal/format"
)

// header is the metadata record embedded immediately before every payload,
// whether the block is free or allocated.
type header struct {
	next uintptr // free-list link; meaningless while allocated
	size uintptr // payload bytes, excluding the header
}

// HeaderSize is the per-block metadata overhead. Rounded to Alignment so the
// payload that follows an aligned header is aligned too.
const HeaderSize = (unsafe.Sizeof(header{}) + format.AlignmentMask) &^ format.AlignmentMask

// block is the address of a header. It has two views: the metadata view
// (hdr) and the payload view (payload), always HeaderSize bytes apart.
// The zero block means "none".
type block uintptr

// hdr views the record's metadata. Blocks live in host-mapped memory that the
// Go GC neither scans nor moves, so holding them as uintptr is safe; go vet's
// unsafeptr check cannot see that and flags the conversion.
func (b block) hdr() *header {
	return (*header)(unsafe.Pointer(b))
}

func (b block) size() uintptr {
	return b.hdr().size
}

func (b block) next() block {
	return block(b.hdr().next)
}

// payload is the first byte handed to the owner.
func (b block) payload() uintptr {
	return uintptr(b) + HeaderSize
}

// end is the first address past the block's payload.
func (b block) end() uintptr {
	return uintptr(b) + HeaderSize + b.hdr().size
}

// span is the number of bytes the block occupies, header included.
func (b block) span() uintptr {
	return HeaderSize + b.hdr().size
}

// blockOf recovers the block owning a payload address.
func blockOf(payload uintptr) block {
	return block(payload - HeaderSize)
}

// carve writes a fresh header at the first aligned address in [start, end)
// and returns it, provided at least one payload byte fits after the header.
// It is the only way new records come into existence.
func carve(start, end uintptr) (block, bool) {
	pos := format.AlignUp(start)
	if pos < start || end <= pos || end-pos <= HeaderSize {
		return 0, false
	}
	b := block(pos)
	h := b.hdr()
	h.size = end - pos - HeaderSize
	h.next = 0
	return b, true
}

// Ptr is a handle to an allocated block. The zero Ptr is "no block".
// A Ptr can only be obtained from a Heap, which keeps the payload/header
// offset arithmetic in one place.
type Ptr struct {
	b block
}

// IsNil reports whether p refers to no block.
func (p Ptr) IsNil() bool {
	return p.b == 0
}

// Addr returns the payload address, or 0 for the zero Ptr.
func (p Ptr) Addr() uintptr {
	if p.b == 0 {
		return 0
	}
	return p.b.payload()
}

// Pointer returns the payload as an unsafe.Pointer.
func (p Ptr) Pointer() unsafe.Pointer {
	if p.b == 0 {
		return nil
	}
	return unsafe.Pointer(p.b.payload())
}

// Len returns the usable payload size. It can exceed the requested size by
// the alignment round-up plus any remainder too small to split off.
func (p Ptr) Len() int {
	if p.b == 0 {
		return 0
	}
	return int(p.b.size())
}

// Bytes returns the payload as a byte slice of Len bytes. The slice aliases
// heap memory and must not be used after the block is released.
func (p Ptr) Bytes() []byte {
	if p.b == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(p.Pointer()), p.b.size())
}

// ptrFromPayload rebuilds a handle from a raw payload pointer handed out by
// the raw API. Only the heap's own raw entry points may call it.
func ptrFromPayload(p unsafe.Pointer) Ptr {
	if p == nil {
		return Ptr{}
	}
	return Ptr{b: blockOf(uintptr(p))}
}
