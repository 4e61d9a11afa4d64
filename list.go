package cellheap

// Sentinel "peg" cells anchor every circular doubly linked ring in the
// heap: one per (class, new), one per (class, old[g]), and one per
// (class, old-to-new[g]). Free cells are the part of the "new" ring after
// the free cursor; the collector's work list is a plain slice. A peg is an ordinary *Cell whose payload is never read; it exists
// only so every ring is non-empty, which is what lets unsnap/snapBefore
// run without end-of-list checks (spec.md §4.2).
//
// Grounded on original_source/src/main/memory.c's UNSNAP_NODE/SNAP_NODE/
// BULK_MOVE macros, translated from intrusive macros operating on a C
// struct's next/prev fields into methods operating on *Cell.

func newPeg() *Cell {
	p := &Cell{}
	p.next = p
	p.prev = p
	return p
}

// unsnap removes c from whatever ring it currently belongs to, leaving c
// a self-loop. O(1).
func unsnap(c *Cell) {
	next := c.next
	prev := c.prev
	next.prev = prev
	prev.next = next
	c.next = c
	c.prev = c
}

// snapBefore inserts c immediately before peg t, i.e. at the tail of t's
// ring. O(1). c must not already be linked into another ring (callers
// unsnap first if it might be).
func snapBefore(c, t *Cell) {
	prev := t.prev
	c.next = t
	c.prev = prev
	prev.next = c
	t.prev = c
}

// bulkMove splices every cell currently on fromPeg's ring onto toPeg's
// ring (at its head, just after the peg), leaving fromPeg's ring empty. O(1) regardless of
// ring length.
func bulkMove(fromPeg, toPeg *Cell) {
	if fromPeg.next == fromPeg {
		return // ring already empty
	}
	firstOld := fromPeg.next
	lastOld := fromPeg.prev
	firstNew := toPeg.next

	firstOld.prev = toPeg
	toPeg.next = firstOld
	firstNew.prev = lastOld
	lastOld.next = firstNew

	fromPeg.next = fromPeg
	fromPeg.prev = fromPeg
}

// ringEmpty reports whether peg's ring currently holds no cells.
func ringEmpty(peg *Cell) bool { return peg.next == peg }

// ringLen walks peg's ring and counts its members. O(n); used only by
// tests and diagnostics, never on an allocation or collection hot path.
func ringLen(peg *Cell) int {
	n := 0
	for s := peg.next; s != peg; s = s.next {
		n++
	}
	return n
}
