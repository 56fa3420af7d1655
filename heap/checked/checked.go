// Package checked wraps an alloc.Heap with ownership tracking, turning
// release-time misuse (double release, foreign pointers) into errors instead
// of silent free-list corruption.
package checked

import (
	"sort"

	"github.com/cockroachdb/errors"
	"github.com/dolthub/swiss"

	"github.com/joshuapare/heapkit/heap/alloc"
)

var (
	// ErrNotAllocated indicates a handle this heap never handed out.
	ErrNotAllocated = errors.New("checked: block not allocated by this heap")

	// ErrDoubleRelease indicates a handle that was already released.
	ErrDoubleRelease = errors.New("checked: block released twice")

	// ErrOverlap indicates a live block that a free record also covers.
	ErrOverlap = errors.New("checked: live block overlaps free space")
)

// Heap tracks every outstanding block by payload address.
type Heap struct {
	h *alloc.Heap

	live     *swiss.Map[uintptr, uint]     // payload address -> requested size
	released *swiss.Map[uintptr, struct{}] // addresses released and not yet reused
	pruneAt  int                           // released count that triggers pruneReleased

	liveBytes uint64
}

// minPruneAt is the smallest released set that triggers a prune.
const minPruneAt = 1024

// New wraps h. h must not be used directly afterwards.
func New(h *alloc.Heap) *Heap {
	return &Heap{
		h:        h,
		live:     swiss.NewMap[uintptr, uint](64),
		released: swiss.NewMap[uintptr, struct{}](64),
		pruneAt:  minPruneAt,
	}
}

// Unwrap returns the underlying heap.
func (c *Heap) Unwrap() *alloc.Heap {
	return c.h
}

// Alloc allocates like alloc.Heap.Alloc and records the block.
func (c *Heap) Alloc(size uint) (alloc.Ptr, error) {
	p, err := c.h.Alloc(size)
	if err != nil {
		return p, err
	}
	c.track(p, size)
	return p, nil
}

// Release returns p to the heap after checking that it is live.
func (c *Heap) Release(p alloc.Ptr) error {
	if p.IsNil() {
		return nil
	}
	if err := c.check(p); err != nil {
		return err
	}
	c.untrack(p)
	c.h.Release(p)
	c.maybePrune()
	return nil
}

// Resize resizes like alloc.Heap.Resize after checking that p is live. On
// failure p stays live.
func (c *Heap) Resize(p alloc.Ptr, size uint) (alloc.Ptr, error) {
	if !p.IsNil() {
		if err := c.check(p); err != nil {
			return alloc.Ptr{}, err
		}
	}

	np, err := c.h.Resize(p, size)
	if err != nil {
		return np, err
	}
	if !p.IsNil() {
		c.untrack(p)
	}
	if !np.IsNil() {
		c.track(np, size)
	}
	c.maybePrune()
	return np, nil
}

// Live returns the number of outstanding blocks.
func (c *Heap) Live() int {
	return c.live.Count()
}

// LiveBytes returns the sum of requested sizes of outstanding blocks.
func (c *Heap) LiveBytes() uint64 {
	return c.liveBytes
}

// SizeOf returns the size originally requested for p.
func (c *Heap) SizeOf(p alloc.Ptr) (uint, bool) {
	return c.live.Get(p.Addr())
}

// Leaks calls fn for every outstanding block, in no particular order, until
// fn returns false.
func (c *Heap) Leaks(fn func(addr uintptr, size uint) bool) {
	c.live.Iter(func(addr uintptr, size uint) bool {
		return !fn(addr, size)
	})
}

// Validate runs the heap's own structural checks, then verifies that no live
// block lies inside a free record. It also forgets released addresses that
// were merged away.
func (c *Heap) Validate() error {
	if err := c.h.Validate(); err != nil {
		return err
	}
	c.pruneReleased()

	type rng struct{ start, end uintptr }
	var free []rng
	c.h.VisitFree(func(addr, size uintptr) bool {
		free = append(free, rng{start: addr, end: addr + alloc.HeaderSize + size})
		return true
	})

	var err error
	c.live.Iter(func(addr uintptr, size uint) bool {
		hdr := addr - alloc.HeaderSize
		i := sort.Search(len(free), func(i int) bool { return free[i].end > hdr })
		if i < len(free) && free[i].start < addr+uintptr(size) {
			err = errors.Wrapf(ErrOverlap, "live block %#x+%d inside free record %#x..%#x",
				addr, size, free[i].start, free[i].end)
			return true
		}
		return false
	})
	return err
}

func (c *Heap) check(p alloc.Ptr) error {
	addr := p.Addr()
	if c.live.Has(addr) {
		return nil
	}
	if c.released.Has(addr) {
		return errors.Wrapf(ErrDoubleRelease, "block %#x", addr)
	}
	return errors.Wrapf(ErrNotAllocated, "block %#x", addr)
}

func (c *Heap) track(p alloc.Ptr, size uint) {
	addr := p.Addr()
	c.live.Put(addr, size)
	c.released.Delete(addr)
	c.liveBytes += uint64(size)
}

func (c *Heap) untrack(p alloc.Ptr) {
	addr := p.Addr()
	if size, ok := c.live.Get(addr); ok {
		c.liveBytes -= uint64(size)
	}
	c.live.Delete(addr)
	c.released.Put(addr, struct{}{})
}

func (c *Heap) maybePrune() {
	if c.released.Count() < c.pruneAt {
		return
	}
	c.pruneReleased()
	c.pruneAt = max(minPruneAt, 2*c.released.Count())
}

// pruneReleased drops released addresses that no longer start a free record.
// Their blocks were merged into a neighbour, so releasing them again reports
// ErrNotAllocated rather than ErrDoubleRelease.
func (c *Heap) pruneReleased() {
	starts := swiss.NewMap[uintptr, struct{}](uint32(c.h.FreeBlocks()))
	c.h.VisitFree(func(addr, _ uintptr) bool {
		starts.Put(addr+alloc.HeaderSize, struct{}{})
		return true
	})

	var stale []uintptr
	c.released.Iter(func(addr uintptr, _ struct{}) bool {
		if !starts.Has(addr) {
			stale = append(stale, addr)
		}
		return false
	})
	for _, addr := range stale {
		c.released.Delete(addr)
	}
}
