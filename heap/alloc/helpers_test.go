package alloc

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/joshuapare/heapkit/heap/host"
)

const testPage = 4096

// newTestHeap builds a heap over a fresh arena so addresses are contiguous
// and growth is deterministic.
func newTestHeap(t testing.TB, s Strategy) (*Heap, *host.Arena) {
	t.Helper()
	return newTestHeapWith(t, s, 1<<20, nil)
}

func newTestHeapWith(t testing.TB, s Strategy, capacity uintptr, opts *host.ArenaOptions) (*Heap, *host.Arena) {
	t.Helper()
	a, err := host.NewArena(capacity, opts)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, a.Close()) })

	h, err := New(a, &Options{Strategy: s})
	require.NoError(t, err)
	return h, a
}

func mustAlloc(t testing.TB, h *Heap, size uint) Ptr {
	t.Helper()
	p, err := h.Alloc(size)
	require.NoError(t, err)
	require.False(t, p.IsNil())
	return p
}

func requireValid(t testing.TB, h *Heap) {
	t.Helper()
	require.NoError(t, h.Validate())
}

// freeSizes lists the payload sizes on the free list in address order.
func freeSizes(h *Heap) []uintptr {
	var sizes []uintptr
	h.VisitFree(func(_, size uintptr) bool {
		sizes = append(sizes, size)
		return true
	})
	return sizes
}

func fill(p Ptr, v byte) {
	b := p.Bytes()
	for i := range b {
		b[i] = v
	}
}

func requireFilled(t testing.TB, p Ptr, n int, v byte) {
	t.Helper()
	b := p.Bytes()
	require.GreaterOrEqual(t, len(b), n)
	for i := 0; i < n; i++ {
		if b[i] != v {
			require.Failf(t, "payload mismatch", "byte %d = %#x, want %#x", i, b[i], v)
		}
	}
}

var strategies = []Strategy{FirstFit, BestFit}

// forEachStrategy runs fn as a subtest once per strategy.
func forEachStrategy(t *testing.T, fn func(t *testing.T, s Strategy)) {
	for _, s := range strategies {
		t.Run(s.String(), func(t *testing.T) { fn(t, s) })
	}
}
