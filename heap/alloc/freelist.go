package alloc

// freeList is the singly-linked, strictly address-ascending list of free
// blocks. No two consecutive members are ever adjacent in memory: insert
// merges neighbours as it links.
type freeList struct {
	head  block
	count int
}

// mergeResult reports which coalescing steps an insert performed.
type mergeResult struct {
	forward  bool // successor absorbed into the inserted block
	backward bool // inserted block absorbed into its predecessor
}

// insert links b at its address-ordered position and merges it with its
// immediate neighbours. Only neighbours need checking: the ordering invariant
// means no other member can touch b.
func (l *freeList) insert(b block) mergeResult {
	var res mergeResult
	h := b.hdr()
	h.next = 0

	var prev block
	cur := l.head
	for cur != 0 && cur < b {
		prev = cur
		cur = cur.next()
	}

	h.next = uintptr(cur)
	l.count++

	// Forward: successor starts exactly where b ends.
	if cur != 0 && b.end() == uintptr(cur) {
		h.size += HeaderSize + cur.size()
		h.next = cur.hdr().next
		l.count--
		res.forward = true
	}

	if prev == 0 {
		l.head = b
		return res
	}

	// Backward: predecessor ends exactly where b starts.
	ph := prev.hdr()
	ph.next = uintptr(b)
	if prev.end() == uintptr(b) {
		ph.size += HeaderSize + h.size
		ph.next = h.next
		l.count--
		res.backward = true
	}
	return res
}

// remove unlinks b given its immediate predecessor (zero when b is the head).
// Selection already knows prev from its scan, so no second search is needed.
func (l *freeList) remove(prev, b block) {
	if b == 0 {
		return
	}
	if prev != 0 {
		prev.hdr().next = b.hdr().next
	} else {
		l.head = b.next()
	}
	b.hdr().next = 0
	l.count--
}

// splitExcess trims b to need bytes when the leftover can host a record of
// its own (header plus at least one byte), returning the leftover to the
// list. Smaller leftovers stay inside b as internal fragmentation.
func (l *freeList) splitExcess(b block, need uintptr) bool {
	if b.size() < need {
		return false
	}
	tail, ok := carve(b.payload()+need, b.end())
	if !ok {
		return false
	}
	b.hdr().size = need
	l.insert(tail)
	return true
}

// walk calls fn for every member in address order until fn returns false.
func (l *freeList) walk(fn func(b block) bool) {
	for cur := l.head; cur != 0; cur = cur.next() {
		if !fn(cur) {
			return
		}
	}
}
