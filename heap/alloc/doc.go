// Package alloc implements a general-purpose free-list memory allocator.
//
// A Heap manages address space it obtains page by page from a host.Host.
// Every block, free or allocated, is preceded by an embedded header holding
// its payload size and a free-list link. Free blocks form a single list kept
// in strictly ascending address order, which lets Release merge a block with
// its neighbours by looking only at its list predecessor and successor.
//
// # Selection
//
// Two strategies are available, chosen once at construction:
//
//   - FirstFit: the lowest-addressed block large enough.
//   - BestFit: the block with the least leftover; ties go to the lowest
//     address and an exact fit ends the scan early.
//
// A chosen block larger than the request is split when the remainder can
// hold a header plus at least one byte; otherwise the caller receives the
// whole block.
//
// # Growth
//
// When no block fits, the heap asks the host for ceil((need+HeaderSize)/page)
// whole pages at its current extent, records the region as one free block,
// and retries once. A refused mapping leaves the heap unchanged.
//
// # Usage
//
//	h, err := alloc.New(host.NewOS(), &alloc.Options{Strategy: alloc.BestFit})
//	if err != nil {
//	    return err
//	}
//	p, err := h.Alloc(128)
//	if err != nil {
//	    return err
//	}
//	defer h.Release(p)
//	copy(p.Bytes(), data)
//
// Heap is single-threaded. Locked adds a mutex; Default returns a Locked
// heap backed by the operating system for the package-level Malloc, Free,
// Realloc and Calloc.
//
// Set HEAPKIT_LOG_ALLOC=1 to log growth and exhaustion events to stderr.
package alloc
