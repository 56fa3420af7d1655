//go:build unix

package host

import (
	"testing"
	"unsafe"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"
)

func TestOS_MapRegionUnix(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping mmap test in short mode")
	}
	o := NewOS()
	ps := o.PageSize()
	require.NotZero(t, ps)
	require.Zero(t, ps&(ps-1), "page size must be a power of two")

	addr, err := o.MapRegion(0, 2*ps)
	require.NoError(t, err)
	require.NotZero(t, addr)
	require.Zero(t, addr%ps, "mmap returns page aligned regions")

	buf := unsafe.Slice((*byte)(unsafe.Pointer(addr)), 2*ps)
	buf[0] = 0xde
	buf[len(buf)-1] = 0xad
	require.Equal(t, byte(0xde), buf[0])
	require.Equal(t, byte(0xad), buf[len(buf)-1])
}

func TestOS_ZeroLength(t *testing.T) {
	_, err := NewOS().MapRegion(0, 0)
	require.True(t, errors.Is(err, ErrMapFailed))
}
