package cellheap

import "testing"

// ringContains reports whether target is reachable by walking peg's ring.
func ringContains(peg, target *Cell) bool {
	for s := peg.next; s != peg; s = s.next {
		if s == target {
			return true
		}
	}
	return false
}

func TestRingSnapUnsnap(t *testing.T) {
	peg := newPeg()
	if !ringEmpty(peg) {
		t.Fatalf("fresh peg should be empty")
	}

	a, b, c := &Cell{}, &Cell{}, &Cell{}
	snapBefore(a, peg)
	snapBefore(b, peg)
	snapBefore(c, peg)

	if got := ringLen(peg); got != 3 {
		t.Fatalf("ringLen = %d, want 3", got)
	}
	if !ringContains(peg, a) || !ringContains(peg, b) || !ringContains(peg, c) {
		t.Fatalf("ring missing an inserted cell")
	}

	unsnap(b)
	if got := ringLen(peg); got != 2 {
		t.Fatalf("ringLen after unsnap = %d, want 2", got)
	}
	if ringContains(peg, b) {
		t.Fatalf("unsnapped cell still found in ring")
	}
	// b must be a self-ring after unsnap, matching the invariant that
	// every cell belongs to exactly one ring at all times.
	if b.next != b || b.prev != b {
		t.Fatalf("unsnapped cell is not a valid standalone ring")
	}
}

func TestBulkMove(t *testing.T) {
	from, to := newPeg(), newPeg()
	cells := []*Cell{{}, {}, {}}
	for _, c := range cells {
		snapBefore(c, from)
	}
	snapBefore(&Cell{}, to) // to starts non-empty

	bulkMove(from, to)

	if !ringEmpty(from) {
		t.Fatalf("source ring should be empty after bulkMove")
	}
	if got := ringLen(to); got != 4 {
		t.Fatalf("ringLen(to) = %d, want 4", got)
	}
	for _, c := range cells {
		if !ringContains(to, c) {
			t.Fatalf("bulkMove lost a cell")
		}
	}
}

func TestBulkMoveEmptySource(t *testing.T) {
	from, to := newPeg(), newPeg()
	snapBefore(&Cell{}, to)
	bulkMove(from, to)
	if got := ringLen(to); got != 1 {
		t.Fatalf("bulkMove from empty source changed destination: got %d want 1", got)
	}
}
