package alloc

import "github.com/cockroachdb/errors"

var (
	// ErrZeroSize indicates a zero-byte allocation request.
	ErrZeroSize = errors.New("alloc: zero-size request")

	// ErrNoSpace indicates that no free block was large enough, even after growth.
	ErrNoSpace = errors.New("alloc: no free block large enough")

	// ErrGrowFail indicates that the host refused to map more address space.
	ErrGrowFail = errors.New("alloc: grow failed")

	// ErrTooLarge indicates a request whose size overflows the address space
	// once header and alignment are added.
	ErrTooLarge = errors.New("alloc: request too large")

	// ErrCorrupt is returned by Validate when a heap invariant does not hold.
	ErrCorrupt = errors.New("alloc: heap corrupted")
)
