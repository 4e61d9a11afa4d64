package cellheap

import "testing"

// TestConsStressSurvivesCollection is spec.md §8 scenario 1: allocate a
// large number of cells, protect a regular subset, run a full GC, and
// check that exactly (and only) the protected cells survive.
func TestConsStressSurvivesCollection(t *testing.T) {
	h := NewHeap(DefaultTunables())
	baseline := h.CellsInUse()

	const n = 100_000
	var protected []*Cell
	for i := 0; i < n; i++ {
		c, err := h.Cons(h.Nil(), h.Nil())
		if err != nil {
			t.Fatalf("Cons failed at %d: %v", i, err)
		}
		if i%1000 == 0 {
			h.Protect(c)
			protected = append(protected, c)
		}
	}

	h.GC()

	if got, want := h.CellsInUse(), baseline+len(protected); got != want {
		t.Fatalf("CellsInUse after GC = %d, want %d", got, want)
	}
	for _, c := range protected {
		if c.Car() != h.Nil() || c.Cdr() != h.Nil() {
			t.Fatalf("protected cell lost its car/cdr across GC")
		}
	}
	h.Unprotect(len(protected))
}

// TestLargeVectorRelease is spec.md §8 scenario 2.
func TestLargeVectorRelease(t *testing.T) {
	h := NewHeap(DefaultTunables())
	const length = 10_000

	before := h.largeVectorBytes
	_, err := h.AllocVector(TagRealVector, length)
	if err != nil {
		t.Fatal(err)
	}
	wantBytes := length * 8
	if h.largeVectorBytes-before != wantBytes {
		t.Fatalf("largeVectorBytes grew by %d, want %d", h.largeVectorBytes-before, wantBytes)
	}

	h.GC() // the vector was never protected, so it has no survivor.
	if h.largeVectorBytes != before {
		t.Fatalf("largeVectorBytes after release = %d, want %d", h.largeVectorBytes, before)
	}
	if freed := h.LastGC().LargeVectorsFreed; freed != 1 {
		t.Fatalf("LargeVectorsFreed = %d, want 1", freed)
	}

	h.GC()
	if freed := h.LastGC().LargeVectorsFreed; freed != 0 {
		t.Fatalf("second GC should free 0 large vectors, got %d", freed)
	}
}

// TestWriteBarrierRemembersOldToYoung is spec.md §8 scenario 3.
func TestWriteBarrierRemembersOldToYoung(t *testing.T) {
	h := NewHeap(DefaultTunables())

	p, err := h.Cons(h.Nil(), h.Nil())
	if err != nil {
		t.Fatal(err)
	}
	h.Protect(p)
	h.GC() // survive one collection: p should now be old[0].

	if !p.marked || p.gen != 0 {
		t.Fatalf("p should be marked at generation 0 after surviving one GC")
	}
	if !ringContains(h.classes[0].oldPeg[0], p) {
		t.Fatalf("p should be parked on old[0] after surviving a collection")
	}

	q, err := h.Cons(h.Nil(), h.Nil())
	if err != nil {
		t.Fatal(err)
	}
	// q is young: unmarked, not yet reachable from any root other than
	// the local Go variable, which cellheap's collector does not see.

	if err := h.SetCar(p, q); err != nil {
		t.Fatal(err)
	}
	if !ringContains(h.classes[0].oldToNewPeg[0], p) {
		t.Fatalf("p should have been relocated to old-to-new[0] by the write barrier")
	}

	h.collect(0) // level-0 collection: scans retained remembered sets, ages q.

	if p.Car() != q {
		t.Fatalf("p lost its reference to q across collection")
	}
	if !q.marked {
		t.Fatalf("q should have been marked (kept alive) via p's remembered-set entry")
	}
}

// TestRingInvariantsHoldAfterCollection checks spec.md §8's structural
// invariant: every (class, gen) ring is a valid ring whose members all
// report the matching class and generation.
func TestRingInvariantsHoldAfterCollection(t *testing.T) {
	h := NewHeap(DefaultTunables())
	for i := 0; i < 5000; i++ {
		c, err := h.Cons(h.Nil(), h.Nil())
		if err != nil {
			t.Fatal(err)
		}
		if i%50 == 0 {
			h.Preserve(c)
		}
	}
	h.GC()

	for class := NodeClass(0); class < largeNodeClass; class++ {
		cl := &h.classes[class]
		for g := 0; g < numOldGenerations; g++ {
			peg := cl.oldPeg[g]
			n := 0
			for s := peg.next; s != peg; s = s.next {
				if NodeClass(s.class) != class {
					t.Fatalf("cell on old[%d] of class %d reports class %d", g, class, s.class)
				}
				if int(s.gen) != g {
					t.Fatalf("cell on old[%d] of class %d reports gen %d", g, class, s.gen)
				}
				if s.next.prev != s || s.prev.next != s {
					t.Fatalf("ring linkage broken at class %d gen %d", class, g)
				}
				n++
			}
			if n != cl.oldCount[g] {
				t.Fatalf("oldCount[%d] for class %d = %d, ring has %d", g, class, cl.oldCount[g], n)
			}
		}
	}
}

// TestCellsInUseAccounting checks spec.md §8's "sum over (class, gen) of
// OldCount equals cells-in-use" property directly after a full GC.
func TestCellsInUseAccounting(t *testing.T) {
	h := NewHeap(DefaultTunables())
	for i := 0; i < 2000; i++ {
		c, _ := h.Cons(h.Nil(), h.Nil())
		if i%10 == 0 {
			h.Preserve(c)
		}
	}
	h.GC()

	sum := 0
	for class := range h.classes {
		for g := 0; g < numOldGenerations; g++ {
			sum += h.classes[class].oldCount[g]
		}
	}
	if sum != h.CellsInUse() {
		t.Fatalf("sum of OldCount = %d, CellsInUse = %d", sum, h.CellsInUse())
	}
}

func TestGCTortureForcesCollectionEveryAlloc(t *testing.T) {
	h := NewHeap(DefaultTunables())
	prev := h.GCTorture(true)
	if prev {
		t.Fatalf("torture should default to off")
	}
	before := h.gcCount
	for i := 0; i < 10; i++ {
		if _, err := h.Cons(h.Nil(), h.Nil()); err != nil {
			t.Fatal(err)
		}
	}
	if h.gcCount <= before {
		t.Fatalf("torture mode should force a collection on every allocation")
	}
	h.GCTorture(false)
}

func TestMemLimitsNeverBelowMinimum(t *testing.T) {
	h := NewHeap(DefaultTunables())
	h.MemLimits(1, 1)
	if h.tun.MaxCells != h.minCells {
		t.Fatalf("MemLimits let MaxCells fall below the frozen minimum")
	}
	if h.tun.MaxVectorBytes != h.minVectorBytes {
		t.Fatalf("MemLimits let MaxVectorBytes fall below the frozen minimum")
	}
}

func TestMemProfileCensus(t *testing.T) {
	h := NewHeap(DefaultTunables())
	var keep []*Cell
	for i := 0; i < 20; i++ {
		c, _ := h.Cons(h.Nil(), h.Nil())
		h.Preserve(c)
		keep = append(keep, c)
	}
	rows := h.MemProfile()

	var pairCells int
	for _, r := range rows {
		if r.Tag == TagPair {
			pairCells = r.Cells
		}
	}
	if pairCells != len(keep) {
		t.Fatalf("MemProfile reports %d pair cells, want %d", pairCells, len(keep))
	}
}
