//go:build unix

package host

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

const protRW = unix.PROT_READ | unix.PROT_WRITE

func systemPageSize() uintptr {
	return uintptr(unix.Getpagesize())
}

// mapAnon maps private anonymous memory. hint is advisory: without MAP_FIXED
// the kernel picks another address when the hinted range is taken. It never
// refers to Go-managed memory, so go vet's unsafeptr warning does not apply.
func (o *OS) mapAnon(hint, size uintptr) (uintptr, error) {
	p, err := unix.MmapPtr(-1, 0, unsafe.Pointer(hint), size, protRW, unix.MAP_PRIVATE|unix.MAP_ANON)
	if err != nil {
		return 0, err
	}
	return uintptr(p), nil
}

// reserve maps a slab for an Arena and returns its base plus a release func.
func reserve(size uintptr) (uintptr, func() error, error) {
	data, err := unix.Mmap(-1, 0, int(size), protRW, unix.MAP_PRIVATE|unix.MAP_ANON)
	if err != nil {
		return 0, nil, err
	}
	release := func() error {
		if data == nil {
			return nil
		}
		err := unix.Munmap(data)
		data = nil
		return err
	}
	return uintptr(unsafe.Pointer(unsafe.SliceData(data))), release, nil
}
