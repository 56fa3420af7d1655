// Package host provides the address-space primitives the allocator core
// consumes: learning the current program break and mapping fresh read/write
// regions near a hint address.
//
// Two implementations are provided:
//
//   - OS: real host memory (brk/mmap on unix, VirtualAlloc on Windows, Go heap
//     slabs elsewhere). Regions are never returned to the host.
//   - Arena: a single pre-reserved slab handed out bump-style. Regions are
//     contiguous (unless a gap is configured), which makes allocator behaviour
//     deterministic in tests and benchmarks.
package host

import "github.com/cockroachdb/errors"

// ErrMapFailed is returned when the host refuses to provide a region.
var ErrMapFailed = errors.New("host: map region failed")

// Host is the collaborator the heap-growth service calls into.
type Host interface {
	// CurrentBreak returns the current top of the growable data region. It is
	// queried once, lazily, to seed the heap extent. Zero means "no preference".
	CurrentBreak() uintptr

	// MapRegion returns the start of a new read/write region of exactly size
	// bytes, ideally placed at hint. Failures wrap ErrMapFailed.
	MapRegion(hint, size uintptr) (uintptr, error)

	// PageSize is the growth granularity in bytes. Always a power of two.
	PageSize() uintptr
}
