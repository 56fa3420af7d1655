package alloc

import (
	"strings"

	"github.com/cockroachdb/errors"
)

// Strategy selects which free block satisfies a request. It is fixed when a
// Heap is constructed.
type Strategy uint8

const (
	// FirstFit takes the lowest-addressed block that is large enough. Fast,
	// but tends to fragment the low end of the heap under mixed workloads.
	FirstFit Strategy = iota

	// BestFit scans the whole list for the block leaving the smallest
	// leftover. Ties go to the block seen first; an exact fit stops the scan.
	BestFit
)

// String returns the canonical name of the strategy.
func (s Strategy) String() string {
	switch s {
	case FirstFit:
		return "first-fit"
	case BestFit:
		return "best-fit"
	default:
		return "unknown"
	}
}

// ParseStrategy converts a user-supplied name into a Strategy.
func ParseStrategy(name string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "first-fit", "firstfit", "first", "first_fit":
		return FirstFit, nil
	case "best-fit", "bestfit", "best", "best_fit":
		return BestFit, nil
	default:
		return FirstFit, errors.Newf("alloc: unknown strategy %q (want first-fit or best-fit)", name)
	}
}

// find locates the block the strategy would hand out for need, together with
// its list predecessor. The list is not modified; zero b means no fit.
func (s Strategy) find(l *freeList, need uintptr) (prev, b block) {
	if s == BestFit {
		return l.bestFit(need)
	}
	return l.firstFit(need)
}

// firstFit returns the first member whose size is at least need.
func (l *freeList) firstFit(need uintptr) (prev, b block) {
	for cur := l.head; cur != 0; cur = cur.next() {
		if cur.size() >= need {
			return prev, cur
		}
		prev = cur
	}
	return 0, 0
}

// bestFit returns the member with the smallest size-need difference.
func (l *freeList) bestFit(need uintptr) (prev, b block) {
	var beforeBest, best block
	for cur := l.head; cur != 0; cur = cur.next() {
		if sz := cur.size(); sz >= need {
			if best == 0 || sz < best.size() {
				best, beforeBest = cur, prev
			}
			if sz == need {
				break
			}
		}
		prev = cur
	}
	return beforeBest, best
}
