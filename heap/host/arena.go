package host

import (
	"github.com/cockroachdb/errors"

	"github.com/joshuapare/heapkit/internal/format"
)

// ErrArenaClosed is returned by MapRegion after Close.
var ErrArenaClosed = errors.New("host: arena closed")

// ArenaOptions configures an Arena.
type ArenaOptions struct {
	// PageSize is the reported growth granularity. Defaults to 4096.
	PageSize uintptr

	// Gap leaves this many bytes unmapped after every region, so consecutive
	// regions are never contiguous. Rounded up to PageSize.
	Gap uintptr

	// MaxMaps denies every MapRegion call after this many successful ones.
	// Zero means unlimited.
	MaxMaps int
}

// Arena is a Host that carves regions out of one reserved slab. Regions are
// handed out in ascending address order starting at the slab base, which is
// also what CurrentBreak reports.
type Arena struct {
	base     uintptr
	capacity uintptr
	cursor   uintptr // next free offset from base
	pageSize uintptr
	gap      uintptr
	maxMaps  int
	maps     int
	deny     bool
	release  func() error
}

// NewArena reserves capacity bytes (rounded up to the page size) and returns
// an Arena serving regions from them. opts may be nil.
func NewArena(capacity uintptr, opts *ArenaOptions) (*Arena, error) {
	if opts == nil {
		opts = &ArenaOptions{}
	}
	pageSize := opts.PageSize
	if pageSize == 0 {
		pageSize = format.DefaultPageSize
	}
	if !format.IsPow2(pageSize) {
		return nil, errors.Newf("host: arena page size %d is not a power of two", pageSize)
	}
	capacity = format.AlignTo(capacity, pageSize)
	if capacity == 0 {
		return nil, errors.New("host: arena capacity must be positive")
	}

	// Reserve one extra page so the base can be aligned to pageSize even when
	// pageSize exceeds the system page size.
	base, release, err := reserve(capacity + pageSize)
	if err != nil {
		return nil, errors.Wrapf(err, "host: reserve %d bytes", capacity)
	}

	return &Arena{
		base:     format.AlignTo(base, pageSize),
		capacity: capacity,
		pageSize: pageSize,
		gap:      format.AlignTo(opts.Gap, pageSize),
		maxMaps:  opts.MaxMaps,
		release:  release,
	}, nil
}

// CurrentBreak returns the slab base.
func (a *Arena) CurrentBreak() uintptr {
	return a.base
}

// MapRegion hands out the next size bytes at or after hint.
func (a *Arena) MapRegion(hint, size uintptr) (uintptr, error) {
	if a.release == nil {
		return 0, errors.Mark(ErrArenaClosed, ErrMapFailed)
	}
	if a.deny {
		return 0, errors.Wrap(ErrMapFailed, "arena denying maps")
	}
	if a.maxMaps > 0 && a.maps >= a.maxMaps {
		return 0, errors.Wrapf(ErrMapFailed, "arena map limit %d reached", a.maxMaps)
	}
	if size == 0 {
		return 0, errors.Wrap(ErrMapFailed, "zero-length region")
	}

	off := a.cursor
	if hint > a.base+off && hint < a.base+a.capacity {
		off = format.AlignTo(hint-a.base, a.pageSize)
	}
	span := format.AlignTo(size, a.pageSize)
	if off+span > a.capacity || off+span < off {
		return 0, errors.Wrapf(ErrMapFailed, "arena exhausted: need %d bytes, %d left", span, a.capacity-min(off, a.capacity))
	}

	a.cursor = off + span + a.gap
	a.maps++
	return a.base + off, nil
}

// PageSize returns the configured page size.
func (a *Arena) PageSize() uintptr {
	return a.pageSize
}

// SetDeny makes every subsequent MapRegion call fail (or succeed again).
func (a *Arena) SetDeny(deny bool) {
	a.deny = deny
}

// Maps returns the number of regions handed out so far.
func (a *Arena) Maps() int {
	return a.maps
}

// Used returns the bytes consumed from the slab, gaps included.
func (a *Arena) Used() uintptr {
	return min(a.cursor, a.capacity)
}

// Base returns the first address of the slab.
func (a *Arena) Base() uintptr {
	return a.base
}

// Contains reports whether addr lies inside the slab.
func (a *Arena) Contains(addr uintptr) bool {
	return addr >= a.base && addr < a.base+a.capacity
}

// Close releases the slab. Any heap built on the arena must not be used
// afterwards.
func (a *Arena) Close() error {
	if a.release == nil {
		return nil
	}
	err := a.release()
	a.release = nil
	return err
}

var _ Host = (*Arena)(nil)
