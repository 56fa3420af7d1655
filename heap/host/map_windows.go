//go:build windows

package host

import (
	"os"

	"golang.org/x/sys/windows"
)

func systemPageSize() uintptr {
	return uintptr(os.Getpagesize())
}

// mapAnon commits fresh pages at hint, falling back to any address when the
// hinted range is unavailable.
func (o *OS) mapAnon(hint, size uintptr) (uintptr, error) {
	const flags = windows.MEM_RESERVE | windows.MEM_COMMIT
	if hint != 0 {
		if addr, err := windows.VirtualAlloc(hint, size, flags, windows.PAGE_READWRITE); err == nil {
			return addr, nil
		}
	}
	return windows.VirtualAlloc(0, size, flags, windows.PAGE_READWRITE)
}

func reserve(size uintptr) (uintptr, func() error, error) {
	addr, err := windows.VirtualAlloc(0, size, windows.MEM_RESERVE|windows.MEM_COMMIT, windows.PAGE_READWRITE)
	if err != nil {
		return 0, nil, err
	}
	released := false
	release := func() error {
		if released {
			return nil
		}
		released = true
		return windows.VirtualFree(addr, 0, windows.MEM_RELEASE)
	}
	return addr, release, nil
}
