package workload

import (
	"math/rand/v2"
	"unsafe"

	"github.com/joshuapare/heapkit/heap/alloc"
)

// nodeSize is a list node holding a name pointer and a next pointer.
const nodeSize = 2 * unsafe.Sizeof(uintptr(0))

type person struct {
	node alloc.Ptr
	name alloc.Ptr
}

// Realistic models a people registry: every round adds Count people with
// random 1..200 byte names, then removes at most one person chosen by a coin
// flip walk from the newest entry. Long-lived blocks of mixed sizes with
// sparse frees make this the fragmentation-sensitive workload.
func Realistic(h *alloc.Heap, rng *rand.Rand, p Params) (uint64, error) {
	rounds := orDefault(p.Rounds, 1000)
	count := orDefault(p.Count, 1000)

	var (
		needed uint64
		people []person // newest last
	)
	for r := 0; r < rounds; r++ {
		for i := 0; i < count; i++ {
			nameLen := 1 + rng.IntN(200)
			needed += uint64(nameLen) + uint64(nodeSize)

			name, err := h.Alloc(uint(nameLen))
			if err != nil {
				return needed, err
			}
			node, err := h.Alloc(uint(nodeSize))
			if err != nil {
				h.Release(name)
				return needed, err
			}
			b := name.Bytes()[:nameLen]
			for j := range b {
				b[j] = byte('A' + rng.IntN(25))
			}
			people = append(people, person{node: node, name: name})
		}

		for i := len(people) - 1; i >= 0; i-- {
			if rng.IntN(100) > 50 {
				h.Release(people[i].name)
				h.Release(people[i].node)
				people = append(people[:i], people[i+1:]...)
				break
			}
		}
	}
	return needed, nil
}

// PageSized allocates Count blocks of exactly one page minus the header, the
// best case for page-granular growth.
func PageSized(h *alloc.Heap, _ *rand.Rand, p Params) (uint64, error) {
	count := orDefault(p.Count, 10000)
	page := h.PageSize()
	size := page - alloc.HeaderSize

	var needed uint64
	for i := 0; i < count; i++ {
		if _, err := h.Alloc(uint(size)); err != nil {
			return needed, err
		}
		needed += uint64(size)
	}
	return needed, nil
}

// Churn fills the heap with Count one-byte blocks, frees every other one to
// leave a long free list of tiny holes, then runs Rounds alloc/free pairs of
// 10 bytes. It stresses selection time rather than memory use.
func Churn(h *alloc.Heap, _ *rand.Rand, p Params) (uint64, error) {
	count := orDefault(p.Count, 1000)
	rounds := orDefault(p.Rounds, 1000000)

	ptrSize := unsafe.Sizeof(uintptr(0))
	list, err := h.Alloc(uint(uintptr(count) * ptrSize))
	if err != nil {
		return 0, err
	}
	needed := uint64(uintptr(count) * ptrSize)

	// The program keeps its block addresses in heap memory, like the C
	// original's pointer array.
	table := unsafe.Slice((*uintptr)(list.Pointer()), count)
	blocks := make([]alloc.Ptr, count)
	for i := range blocks {
		if blocks[i], err = h.Alloc(1); err != nil {
			return needed, err
		}
		table[i] = blocks[i].Addr()
		needed++
	}
	for i := 1; i < count; i += 2 {
		h.Release(blocks[i])
		table[i] = 0
	}

	for i := 0; i < rounds; i++ {
		p, err := h.Alloc(10)
		if err != nil {
			return needed, err
		}
		h.Release(p)
	}

	return needed, nil
}
