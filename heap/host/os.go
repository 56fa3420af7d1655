package host

import (
	"github.com/cockroachdb/errors"
)

// OS maps regions straight from the operating system.
type OS struct {
	pageSize uintptr
	keep     [][]byte // only used by the Go-heap fallback to keep slabs reachable
}

// NewOS returns a host backed by the operating system's virtual memory.
func NewOS() *OS {
	return &OS{pageSize: systemPageSize()}
}

// CurrentBreak returns the program break where the platform exposes one.
func (o *OS) CurrentBreak() uintptr {
	return currentBreak()
}

// MapRegion maps size bytes of anonymous read/write memory near hint.
func (o *OS) MapRegion(hint, size uintptr) (uintptr, error) {
	if size == 0 {
		return 0, errors.Wrap(ErrMapFailed, "zero-length region")
	}
	addr, err := o.mapAnon(hint, size)
	if err != nil {
		return 0, errors.Mark(errors.Wrapf(err, "map %d bytes at %#x", size, hint), ErrMapFailed)
	}
	return addr, nil
}

// PageSize returns the host page size.
func (o *OS) PageSize() uintptr {
	return o.pageSize
}

var _ Host = (*OS)(nil)
