package checked

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshuapare/heapkit/heap/alloc"
	"github.com/joshuapare/heapkit/heap/host"
)

func newTestHeap(t *testing.T) (*Heap, *host.Arena) {
	t.Helper()
	a, err := host.NewArena(1<<20, nil)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, a.Close()) })

	h, err := alloc.New(a, &alloc.Options{Strategy: alloc.BestFit})
	require.NoError(t, err)
	return New(h), a
}

func TestChecked_TracksLiveBlocks(t *testing.T) {
	c, _ := newTestHeap(t)

	p, err := c.Alloc(10)
	require.NoError(t, err)
	q, err := c.Alloc(100)
	require.NoError(t, err)

	assert.Equal(t, 2, c.Live())
	assert.Equal(t, uint64(110), c.LiveBytes())

	size, ok := c.SizeOf(q)
	require.True(t, ok)
	assert.Equal(t, uint(100), size)

	require.NoError(t, c.Release(p))
	assert.Equal(t, 1, c.Live())
	assert.Equal(t, uint64(100), c.LiveBytes())
	require.NoError(t, c.Validate())
}

func TestChecked_DoubleRelease(t *testing.T) {
	c, _ := newTestHeap(t)

	p, err := c.Alloc(32)
	require.NoError(t, err)
	require.NoError(t, c.Release(p))

	err = c.Release(p)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDoubleRelease))
	require.NoError(t, c.Unwrap().Validate(), "the heap must be untouched")
}

func TestChecked_ReuseClearsReleasedMark(t *testing.T) {
	c, _ := newTestHeap(t)

	p, err := c.Alloc(32)
	require.NoError(t, err)
	require.NoError(t, c.Release(p))

	q, err := c.Alloc(32)
	require.NoError(t, err)
	require.Equal(t, p.Addr(), q.Addr())
	require.NoError(t, c.Release(q))
}

func TestChecked_ForeignPointer(t *testing.T) {
	c, _ := newTestHeap(t)
	other, _ := newTestHeap(t)

	p, err := other.Alloc(16)
	require.NoError(t, err)

	err = c.Release(p)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotAllocated))

	_, err = c.Resize(p, 64)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotAllocated))

	require.NoError(t, c.Release(alloc.Ptr{}))
}

func TestChecked_Resize(t *testing.T) {
	c, a := newTestHeap(t)

	p, err := c.Resize(alloc.Ptr{}, 24)
	require.NoError(t, err)
	assert.Equal(t, 1, c.Live())

	np, err := c.Resize(p, 256)
	require.NoError(t, err)
	assert.Equal(t, 1, c.Live())
	assert.Equal(t, uint64(256), c.LiveBytes())

	err = c.Release(p)
	assert.True(t, errors.Is(err, ErrDoubleRelease), "old handle is dead after a move")

	a.SetDeny(true)
	_, err = c.Resize(np, 1<<16)
	require.Error(t, err)
	assert.Equal(t, 1, c.Live(), "failed resize keeps the block live")
	a.SetDeny(false)

	gone, err := c.Resize(np, 0)
	require.NoError(t, err)
	assert.True(t, gone.IsNil())
	assert.Zero(t, c.Live())
	assert.Zero(t, c.LiveBytes())
}

func TestChecked_Leaks(t *testing.T) {
	c, _ := newTestHeap(t)

	want := map[uintptr]uint{}
	for _, sz := range []uint{8, 16, 24} {
		p, err := c.Alloc(sz)
		require.NoError(t, err)
		want[p.Addr()] = sz
	}

	got := map[uintptr]uint{}
	c.Leaks(func(addr uintptr, size uint) bool {
		got[addr] = size
		return true
	})
	assert.Equal(t, want, got)

	var n int
	c.Leaks(func(uintptr, uint) bool {
		n++
		return false
	})
	assert.Equal(t, 1, n)
}

func TestChecked_ValidateDetectsOverlap(t *testing.T) {
	c, _ := newTestHeap(t)

	p, err := c.Alloc(64)
	require.NoError(t, err)
	_, err = c.Alloc(8)
	require.NoError(t, err)

	// Release behind the tracker's back: the block is free but still "live".
	c.Unwrap().Release(p)

	err = c.Validate()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrOverlap))
}

func TestChecked_ForgetsMergedAddresses(t *testing.T) {
	c, _ := newTestHeap(t)

	a, err := c.Alloc(32)
	require.NoError(t, err)
	b, err := c.Alloc(32)
	require.NoError(t, err)
	_, err = c.Alloc(32)
	require.NoError(t, err)

	require.NoError(t, c.Release(a))
	require.NoError(t, c.Release(b))
	require.Equal(t, 2, c.released.Count())

	require.NoError(t, c.Validate())
	assert.Equal(t, 1, c.released.Count())

	err = c.Release(b)
	assert.True(t, errors.Is(err, ErrNotAllocated))
	err = c.Release(a)
	assert.True(t, errors.Is(err, ErrDoubleRelease))
}

func TestChecked_ReleasedSetStaysBounded(t *testing.T) {
	c, _ := newTestHeap(t)

	ptrs := make([]alloc.Ptr, 2*minPruneAt)
	for i := range ptrs {
		p, err := c.Alloc(8)
		require.NoError(t, err)
		ptrs[i] = p
	}
	for _, p := range ptrs {
		require.NoError(t, c.Release(p))
	}

	assert.Less(t, c.released.Count(), minPruneAt)
	require.NoError(t, c.Validate())
	assert.Equal(t, 1, c.released.Count())
}
