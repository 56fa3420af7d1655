package alloc

import (
	"github.com/cockroachdb/errors"

	"github.com/joshuapare/heapkit/internal/format"
)

// span is a half-open range [start, end) of host-mapped memory.
type span struct {
	start uintptr
	end   uintptr
}

// seed records the heap origin from the host break the first time the heap
// needs to know its extent.
func (h *Heap) seed() {
	if h.seeded {
		return
	}
	h.origin = h.host.CurrentBreak()
	h.extent = h.origin
	h.seeded = true
}

// grow maps enough whole pages to hold one block of need payload bytes and
// adds them to the free list as a single record. On failure nothing about the
// heap changes.
func (h *Heap) grow(need uintptr) error {
	h.seed()

	page := h.host.PageSize()
	want := need + HeaderSize
	if want < need {
		return errors.Wrapf(ErrTooLarge, "grow for %d bytes", need)
	}
	pages := format.PagesFor(want, page)
	total := pages * page
	if total/page != pages {
		return errors.Wrapf(ErrTooLarge, "grow by %d pages", pages)
	}

	addr, err := h.host.MapRegion(h.extent, total)
	if err != nil {
		h.log.Debug("grow failed", "need", need, "pages", pages, "hint", h.extent, "err", err)
		return errors.Wrapf(errors.Mark(err, ErrGrowFail), "grow by %d pages", pages)
	}

	b, ok := carve(addr, addr+total)
	if !ok {
		return errors.AssertionFailedf("alloc: host returned unusable region %#x+%d", addr, total)
	}

	h.extent += total
	h.mapped += total
	h.addSpan(addr, addr+total)

	h.stats.GrowCalls++
	h.stats.GrowBytes += uint64(total)

	// A region touching an existing free record merges with it on either side.
	res := h.free.insert(b)
	if res.forward {
		h.stats.CoalesceForward++
	}
	if res.backward {
		h.stats.CoalesceBackward++
	}

	h.log.Debug("grow",
		"addr", addr,
		"bytes", total,
		"pages", pages,
		"extent", h.extent,
		"free_blocks", h.free.count,
	)

	if h.onGrow != nil {
		h.onGrow(total)
	}
	return nil
}

// addSpan records [start, end) keeping h.spans sorted and merging it with
// neighbours it touches.
func (h *Heap) addSpan(start, end uintptr) {
	i := h.spanIndex(start)

	if i > 0 && h.spans[i-1].end == start {
		h.spans[i-1].end = end
		if i < len(h.spans) && h.spans[i].start == end {
			h.spans[i-1].end = h.spans[i].end
			h.spans = append(h.spans[:i], h.spans[i+1:]...)
		}
		return
	}
	if i < len(h.spans) && h.spans[i].start == end {
		h.spans[i].start = start
		return
	}

	h.spans = append(h.spans, span{})
	copy(h.spans[i+1:], h.spans[i:])
	h.spans[i] = span{start: start, end: end}
}

// spanIndex returns the index of the first span starting after addr.
func (h *Heap) spanIndex(addr uintptr) int {
	lo, hi := 0, len(h.spans)
	for lo < hi {
		mid := (lo + hi) / 2
		if h.spans[mid].start <= addr {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo
}

// findSpan returns the mapped span containing addr using binary search.
func (h *Heap) findSpan(addr uintptr) (span, bool) {
	i := h.spanIndex(addr)
	if i == 0 {
		return span{}, false
	}
	s := h.spans[i-1]
	if addr >= s.end {
		return span{}, false
	}
	return s, true
}

// owns reports whether b lies entirely within one mapped span.
func (h *Heap) owns(b block) bool {
	s, ok := h.findSpan(uintptr(b))
	return ok && b.end() <= s.end
}
