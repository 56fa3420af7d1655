package format

import "golang.org/x/exp/constraints"

// Alignment utilities for heap blocks and host regions.
// All rounding helpers assume the boundary is a power of two.

// AlignUp returns v rounded up to the next multiple of Alignment.
//
// Example:
//
//	AlignUp(0)  = 0
//	AlignUp(1)  = 8
//	AlignUp(8)  = 8
//	AlignUp(9)  = 16
func AlignUp[T constraints.Unsigned](v T) T {
	return (v + AlignmentMask) &^ AlignmentMask
}

// AlignTo returns v rounded up to the next multiple of boundary.
// boundary must be a power of two.
func AlignTo[T constraints.Unsigned](v, boundary T) T {
	mask := boundary - 1
	return (v + mask) &^ mask
}

// IsAligned reports whether v is a multiple of Alignment.
func IsAligned[T constraints.Unsigned](v T) bool {
	return v&AlignmentMask == 0
}

// PagesFor returns how many pages of pageSize bytes are needed to hold n bytes.
// At least one page is always returned.
//
// Example (pageSize 4096):
//
//	PagesFor(1, 4096)    = 1
//	PagesFor(4096, 4096) = 1
//	PagesFor(4097, 4096) = 2
func PagesFor[T constraints.Unsigned](n, pageSize T) T {
	if n == 0 {
		return 1
	}
	return (n-1)/pageSize + 1
}

// IsPow2 reports whether v is a non-zero power of two.
func IsPow2[T constraints.Unsigned](v T) bool {
	return v != 0 && v&(v-1) == 0
}
