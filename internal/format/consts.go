// Package format holds the layout constants and alignment arithmetic shared by
// the heap packages. Keeping them here lets the allocator core, the host
// mappers and the tests agree on one definition of "aligned".
package format

const (
	// Alignment is the boundary every payload address and every block size is
	// rounded to. Eight bytes covers every scalar type on supported platforms.
	Alignment = 8

	// AlignmentMask is Alignment-1, used for mask-based rounding.
	AlignmentMask = Alignment - 1

	// DefaultPageSize is the growth granularity used when the host cannot
	// report its own page size.
	DefaultPageSize = 4096
)
