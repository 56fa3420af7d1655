package alloc

import (
	"io"
	"log/slog"
	"os"
	"unsafe"

	"github.com/cockroachdb/errors"

	"github.com/joshuapare/heapkit/heap/host"
	"github.com/joshuapare/heapkit/internal/format"
)

// Runtime debug flag for allocation logging - controlled by HEAPKIT_LOG_ALLOC env var.
var logAlloc = os.Getenv("HEAPKIT_LOG_ALLOC") != ""

// Options configures a Heap. The zero value (or nil) means first-fit with
// logging disabled unless HEAPKIT_LOG_ALLOC is set.
type Options struct {
	// Strategy is the block-selection policy, fixed for the heap's lifetime.
	Strategy Strategy

	// Logger receives debug records for growth and exhaustion events.
	Logger *slog.Logger
}

// Heap is a free-list allocator over address space obtained from a Host.
//
// A Heap is not safe for concurrent use; wrap it with NewLocked when several
// goroutines share it.
type Heap struct {
	host     host.Host
	strategy Strategy
	log      *slog.Logger

	free freeList

	// Mapped regions, sorted by address and merged when contiguous.
	spans []span

	// Heap extent, seeded lazily from the host break.
	origin uintptr
	extent uintptr
	seeded bool

	mapped    uintptr // bytes obtained from the host
	allocated uintptr // bytes held by allocated blocks, headers included

	stats Stats

	// Test hook: called after every successful growth (nil in production).
	onGrow func(size uintptr)
}

// New creates a heap that grows through h. opts may be nil.
func New(h host.Host, opts *Options) (*Heap, error) {
	if h == nil {
		return nil, errors.New("alloc: nil host")
	}
	if opts == nil {
		opts = &Options{}
	}
	if opts.Strategy != FirstFit && opts.Strategy != BestFit {
		return nil, errors.Newf("alloc: invalid strategy %d", opts.Strategy)
	}
	if ps := h.PageSize(); !format.IsPow2(ps) {
		return nil, errors.Newf("alloc: host page size %d is not a power of two", ps)
	}

	logger := opts.Logger
	if logger == nil {
		logger = defaultLogger()
	}

	return &Heap{
		host:     h,
		strategy: opts.Strategy,
		log:      logger.With("strategy", opts.Strategy.String()),
	}, nil
}

func defaultLogger() *slog.Logger {
	if logAlloc {
		return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// Strategy returns the selection policy the heap was built with.
func (h *Heap) Strategy() Strategy {
	return h.strategy
}

// PageSize returns the growth granularity of the underlying host.
func (h *Heap) PageSize() uintptr {
	return h.host.PageSize()
}

// Alloc returns a block with at least size usable bytes. The payload address
// is aligned to 8 bytes.
//
// On a free-list miss the heap grows once and retries once; if that still
// fails the error matches ErrNoSpace (and ErrGrowFail when the host refused
// to map more memory).
func (h *Heap) Alloc(size uint) (Ptr, error) {
	h.stats.AllocCalls++

	if size == 0 {
		h.stats.FailedAllocs++
		return Ptr{}, ErrZeroSize
	}
	need := format.AlignUp(uintptr(size))
	if need < uintptr(size) {
		h.stats.FailedAllocs++
		return Ptr{}, errors.Wrapf(ErrTooLarge, "alloc %d bytes", size)
	}

	b, ok := h.take(need)
	if ok {
		h.stats.AllocFastPath++
		return Ptr{b: b}, nil
	}

	if err := h.grow(need); err != nil {
		h.stats.FailedAllocs++
		h.log.Debug("alloc failed", "need", need, "free_blocks", h.free.count, "err", err)
		return Ptr{}, errors.Mark(errors.Wrapf(err, "alloc %d bytes", size), ErrNoSpace)
	}

	b, ok = h.take(need)
	if !ok {
		h.stats.FailedAllocs++
		return Ptr{}, errors.Wrapf(ErrNoSpace, "alloc %d bytes after grow", size)
	}
	h.stats.AllocSlowPath++
	return Ptr{b: b}, nil
}

// Release returns p's block to the free list, merging it with free
// neighbours. Releasing the zero Ptr is a no-op. Releasing a block twice is
// undefined; see package checked for a detecting wrapper.
func (h *Heap) Release(p Ptr) {
	if p.IsNil() {
		return
	}
	h.stats.FreeCalls++
	h.release(p.b)
}

// Resize moves p's contents into a fresh block of size bytes and releases p.
//
//   - size 0 releases p and returns the zero Ptr.
//   - a zero p behaves like Alloc(size).
//   - otherwise min(size, p.Len()) bytes are copied; the block is never
//     resized in place, even when it could be.
//
// When the new allocation fails, p is left untouched and the error returned.
func (h *Heap) Resize(p Ptr, size uint) (Ptr, error) {
	h.stats.ResizeCalls++

	if size == 0 {
		h.Release(p)
		return Ptr{}, nil
	}
	if p.IsNil() {
		return h.Alloc(size)
	}

	oldSize := p.b.size()
	np, err := h.Alloc(size)
	if err != nil {
		return Ptr{}, err
	}

	n := min(uintptr(size), oldSize)
	copy(
		unsafe.Slice((*byte)(np.Pointer()), n),
		unsafe.Slice((*byte)(p.Pointer()), n),
	)
	h.Release(p)
	return np, nil
}

// take runs the selection strategy, unlinks the chosen block and splits off
// any excess large enough to stand on its own.
func (h *Heap) take(need uintptr) (block, bool) {
	prev, b := h.strategy.find(&h.free, need)
	if b == 0 {
		return 0, false
	}
	h.free.remove(prev, b)
	if h.free.splitExcess(b, need) {
		h.stats.SplitCount++
	}
	h.allocated += b.span()
	return b, true
}

// release inserts b into the free list and records the merges it caused.
func (h *Heap) release(b block) {
	h.allocated -= b.span()
	res := h.free.insert(b)
	if res.forward {
		h.stats.CoalesceForward++
	}
	if res.backward {
		h.stats.CoalesceBackward++
	}
}
