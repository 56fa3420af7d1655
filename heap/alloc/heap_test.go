package alloc

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshuapare/heapkit/heap/host"
)

func TestNew(t *testing.T) {
	a, err := host.NewArena(testPage*4, nil)
	require.NoError(t, err)
	defer a.Close()

	h, err := New(a, nil)
	require.NoError(t, err)
	assert.Equal(t, FirstFit, h.Strategy())

	_, err = New(nil, nil)
	require.Error(t, err)

	_, err = New(a, &Options{Strategy: Strategy(7)})
	require.Error(t, err)
}

func TestHeap_FirstAllocGrowsOnePage(t *testing.T) {
	forEachStrategy(t, func(t *testing.T, s Strategy) {
		h, a := newTestHeap(t, s)

		p := mustAlloc(t, h, 64)
		assert.Equal(t, a.Base()+HeaderSize, p.Addr())
		assert.Equal(t, 64, p.Len())

		d := h.Diagnostics()
		assert.Equal(t, a.Base(), d.Origin)
		assert.Equal(t, a.Base()+testPage, d.HeapExtent)
		assert.Equal(t, uintptr(testPage), d.MappedBytes)
		assert.Equal(t, 1, d.FreeBlocks)
		assert.Equal(t, uintptr(testPage-2*HeaderSize-64), d.FreeBytes)

		st := h.Stats()
		assert.Equal(t, uint64(1), st.GrowCalls)
		assert.Equal(t, uint64(1), st.AllocSlowPath)
		assert.Equal(t, uint64(1), st.SplitCount)
		requireValid(t, h)
	})
}

func TestHeap_AlignmentRoundUp(t *testing.T) {
	h, _ := newTestHeap(t, FirstFit)

	for _, size := range []uint{1, 3, 7, 8, 9, 15, 17, 100} {
		p := mustAlloc(t, h, size)
		assert.Zero(t, p.Addr()%8, "size %d", size)
		assert.GreaterOrEqual(t, p.Len(), int(size))
		assert.Zero(t, p.Len()%8)
	}
	requireValid(t, h)
}

func TestHeap_ZeroSize(t *testing.T) {
	h, a := newTestHeap(t, FirstFit)

	p, err := h.Alloc(0)
	require.ErrorIs(t, err, ErrZeroSize)
	assert.True(t, p.IsNil())
	assert.Zero(t, a.Maps(), "zero-size request must not grow the heap")
	assert.Equal(t, uint64(1), h.Stats().FailedAllocs)
}

func TestHeap_ReleaseCoalescesToOneRecord(t *testing.T) {
	forEachStrategy(t, func(t *testing.T, s Strategy) {
		h, _ := newTestHeap(t, s)

		a := mustAlloc(t, h, 16)
		b := mustAlloc(t, h, 16)
		assert.Equal(t, a.Addr()+16+HeaderSize, b.Addr(), "blocks should be adjacent")

		h.Release(a)
		assert.Equal(t, 2, h.FreeBlocks())
		h.Release(b)

		require.Equal(t, 1, h.FreeBlocks())
		assert.Equal(t, []uintptr{testPage - HeaderSize}, freeSizes(h))

		st := h.Stats()
		assert.Equal(t, uint64(1), st.CoalesceForward)
		assert.Equal(t, uint64(1), st.CoalesceBackward)
		requireValid(t, h)
	})
}

func TestHeap_ReleaseNilIsNoop(t *testing.T) {
	h, _ := newTestHeap(t, FirstFit)
	h.Release(Ptr{})
	assert.Zero(t, h.Stats().FreeCalls)
	assert.Zero(t, h.FreeBlocks())
}

func TestHeap_ReleaseOrderDoesNotMatter(t *testing.T) {
	orders := [][]int{{0, 1, 2, 3}, {3, 2, 1, 0}, {1, 3, 0, 2}, {2, 0, 3, 1}}
	for _, order := range orders {
		h, _ := newTestHeap(t, FirstFit)
		ptrs := make([]Ptr, 4)
		for i := range ptrs {
			ptrs[i] = mustAlloc(t, h, uint(24*(i+1)))
		}
		for _, i := range order {
			h.Release(ptrs[i])
			requireValid(t, h)
		}
		assert.Equal(t, 1, h.FreeBlocks(), "order %v", order)
		assert.Equal(t, []uintptr{testPage - HeaderSize}, freeSizes(h), "order %v", order)
	}
}

// fragment allocates sizes back to back, each followed by an 8-byte guard
// that stays allocated, then releases every sized block. The guards keep the
// released blocks from merging.
func fragment(t *testing.T, h *Heap, sizes ...uint) []Ptr {
	t.Helper()
	ptrs := make([]Ptr, len(sizes))
	for i, sz := range sizes {
		ptrs[i] = mustAlloc(t, h, sz)
		mustAlloc(t, h, 8)
	}
	for _, p := range ptrs {
		h.Release(p)
	}
	return ptrs
}

func TestHeap_StrategiesAgreeOnSingleSmallestCandidate(t *testing.T) {
	forEachStrategy(t, func(t *testing.T, s Strategy) {
		h, _ := newTestHeap(t, s)
		ptrs := fragment(t, h, 64, 32, 128)
		require.Equal(t, 4, h.FreeBlocks())

		p := mustAlloc(t, h, 40)
		assert.Equal(t, ptrs[0].Addr(), p.Addr())
		assert.Equal(t, 40, p.Len())

		// 64 - 40 leaves 24: a header plus 8 bytes.
		assert.Equal(t, 4, h.FreeBlocks())
		assert.Equal(t, uintptr(8), freeSizes(h)[0])
		requireValid(t, h)
	})
}

func TestHeap_StrategiesDiverge(t *testing.T) {
	want := map[Strategy]int{FirstFit: 0, BestFit: 1}

	forEachStrategy(t, func(t *testing.T, s Strategy) {
		h, _ := newTestHeap(t, s)
		ptrs := fragment(t, h, 128, 64)

		p := mustAlloc(t, h, 40)
		assert.Equal(t, ptrs[want[s]].Addr(), p.Addr())
		requireValid(t, h)
	})
}

func TestHeap_SmallRemainderStaysWithBlock(t *testing.T) {
	h, _ := newTestHeap(t, FirstFit)
	ptrs := fragment(t, h, 64)
	before := h.FreeBlocks()

	// 64 - 48 leaves exactly one header: not enough to split.
	p := mustAlloc(t, h, 48)
	assert.Equal(t, ptrs[0].Addr(), p.Addr())
	assert.Equal(t, 64, p.Len())
	assert.Equal(t, before-1, h.FreeBlocks())
	requireValid(t, h)
}

func TestHeap_LargeRequestMapsEnoughPages(t *testing.T) {
	h, a := newTestHeap(t, FirstFit)

	p := mustAlloc(t, h, 5000)
	assert.Equal(t, 5000, p.Len())
	assert.Equal(t, 1, a.Maps())

	d := h.Diagnostics()
	assert.Equal(t, uintptr(2*testPage), d.HeapExtent-d.Origin)
	assert.Equal(t, uintptr(2*testPage), d.MappedBytes)

	// A request of exactly one page still needs two: the header does not fit.
	h2, _ := newTestHeap(t, FirstFit)
	mustAlloc(t, h2, testPage)
	assert.Equal(t, uintptr(2*testPage), h2.Diagnostics().MappedBytes)
}

func TestHeap_ContiguousGrowthMergesWithTail(t *testing.T) {
	h, _ := newTestHeap(t, FirstFit)

	mustAlloc(t, h, 4000)
	assert.Equal(t, []uintptr{64}, freeSizes(h))

	mustAlloc(t, h, 4000)
	assert.Equal(t, 1, h.FreeBlocks())
	assert.Equal(t, []uintptr{64 + HeaderSize + testPage - HeaderSize - 4000 - HeaderSize}, freeSizes(h))

	st := h.Stats()
	assert.Equal(t, uint64(2), st.GrowCalls)
	assert.Equal(t, uint64(1), st.CoalesceBackward)
	assert.Len(t, h.spans, 1)
	requireValid(t, h)
}

func TestHeap_DiscontiguousGrowthKeepsSeparateRecords(t *testing.T) {
	h, _ := newTestHeapWith(t, FirstFit, 1<<20, &host.ArenaOptions{Gap: testPage})

	mustAlloc(t, h, 4000)
	mustAlloc(t, h, 4000)
	assert.Equal(t, 2, h.FreeBlocks())
	assert.Len(t, h.spans, 2)
	assert.Equal(t, 2, h.Mallinfo().Hblks)

	d := h.Diagnostics()
	assert.Equal(t, uintptr(2*testPage), d.HeapExtent-d.Origin)
	requireValid(t, h)
}

func TestHeap_GrowFailureLeavesStateUnchanged(t *testing.T) {
	forEachStrategy(t, func(t *testing.T, s Strategy) {
		h, a := newTestHeap(t, s)
		mustAlloc(t, h, 100)

		before := h.Diagnostics()
		beforeFree := freeSizes(h)

		a.SetDeny(true)
		p, err := h.Alloc(testPage * 3)
		require.Error(t, err)
		assert.True(t, p.IsNil())
		assert.True(t, errors.Is(err, ErrNoSpace))
		assert.True(t, errors.Is(err, ErrGrowFail))
		assert.True(t, errors.Is(err, host.ErrMapFailed))

		assert.Equal(t, before, h.Diagnostics())
		assert.Equal(t, beforeFree, freeSizes(h))
		assert.Equal(t, uint64(1), h.Stats().FailedAllocs)
		requireValid(t, h)

		// Small requests are still served from the existing free space.
		mustAlloc(t, h, 32)

		a.SetDeny(false)
		mustAlloc(t, h, testPage*3)
		requireValid(t, h)
	})
}

func TestHeap_ArenaExhaustion(t *testing.T) {
	h, _ := newTestHeapWith(t, FirstFit, 4*testPage, nil)

	var n int
	for {
		_, err := h.Alloc(1000)
		if err != nil {
			require.True(t, errors.Is(err, ErrNoSpace))
			break
		}
		n++
		require.Less(t, n, 100)
	}
	assert.Equal(t, 16, n, "four pages hold four 1000-byte blocks each")
	requireValid(t, h)
}

func TestHeap_TooLarge(t *testing.T) {
	h, a := newTestHeap(t, FirstFit)

	_, err := h.Alloc(^uint(0))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTooLarge))

	_, err = h.Alloc(^uint(0) - 20)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTooLarge))
	assert.Zero(t, a.Maps())
}

func TestHeap_OnGrowHook(t *testing.T) {
	h, _ := newTestHeap(t, FirstFit)
	var grown []uintptr
	h.onGrow = func(size uintptr) { grown = append(grown, size) }

	mustAlloc(t, h, 10)
	mustAlloc(t, h, 10)
	mustAlloc(t, h, 9000)
	assert.Equal(t, []uintptr{testPage, 3 * testPage}, grown)
}

func TestHeap_PayloadsDoNotOverlap(t *testing.T) {
	h, _ := newTestHeap(t, BestFit)

	ptrs := make([]Ptr, 0, 64)
	for i := 0; i < 64; i++ {
		p := mustAlloc(t, h, uint(8+i*5))
		fill(p, byte(i))
		ptrs = append(ptrs, p)
	}
	for i, p := range ptrs {
		requireFilled(t, p, p.Len(), byte(i))
	}
	for i := 0; i < len(ptrs); i += 2 {
		h.Release(ptrs[i])
	}
	for i := 1; i < len(ptrs); i += 2 {
		requireFilled(t, ptrs[i], ptrs[i].Len(), byte(i))
	}
	requireValid(t, h)
}
