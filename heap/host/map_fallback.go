//go:build !unix && !windows

package host

import (
	"os"
	"unsafe"

	"github.com/joshuapare/heapkit/internal/format"
)

func systemPageSize() uintptr {
	if ps := os.Getpagesize(); ps > 0 {
		return uintptr(ps)
	}
	return format.DefaultPageSize
}

// mapAnon hands out page-aligned slices of the Go heap. The host keeps every
// slab reachable so the collector never reclaims memory the heap still owns.
func (o *OS) mapAnon(_, size uintptr) (uintptr, error) {
	slab := make([]byte, size+o.pageSize)
	o.keep = append(o.keep, slab)
	base := uintptr(unsafe.Pointer(unsafe.SliceData(slab)))
	return format.AlignTo(base, o.pageSize), nil
}

func reserve(size uintptr) (uintptr, func() error, error) {
	page := systemPageSize()
	slab := make([]byte, size+page)
	base := format.AlignTo(uintptr(unsafe.Pointer(unsafe.SliceData(slab))), page)
	release := func() error {
		slab = nil
		return nil
	}
	return base, release, nil
}
