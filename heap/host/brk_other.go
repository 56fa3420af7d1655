//go:build !linux

package host

// currentBreak has no portable equivalent outside Linux; a zero break lets
// the host choose placement for the first region.
func currentBreak() uintptr {
	return 0
}
