package cellheap

import "testing"

// TestScratchRollback is spec.md §8 scenario 6: allocations made between
// a Vmaxget checkpoint and a matching Vmaxset are unreferenced and
// reclaimed by the next collection.
func TestScratchRollback(t *testing.T) {
	h := NewHeap(DefaultTunables())

	token := h.Vmaxget()
	first, err := h.RAlloc(1024)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := h.RAlloc(2048); err != nil {
		t.Fatal(err)
	}
	if len(first) != 1024 {
		t.Fatalf("RAlloc returned a slice of length %d, want 1024", len(first))
	}

	h.Vmaxset(token)
	if h.scratch.head != token {
		t.Fatalf("Vmaxset did not restore the checkpoint")
	}

	before := h.CellsInUse()
	h.GC()
	after := h.CellsInUse()
	if after >= before {
		t.Fatalf("GC after Vmaxset should reclaim the rolled-back chunks: before=%d after=%d", before, after)
	}
}

func TestScratchAllocatorChainsThroughAttrib(t *testing.T) {
	h := NewHeap(DefaultTunables())
	if h.scratch.head != nil {
		t.Fatalf("scratch chain should start empty")
	}
	if _, err := h.RAlloc(16); err != nil {
		t.Fatal(err)
	}
	first := h.scratch.head
	if _, err := h.RAlloc(16); err != nil {
		t.Fatal(err)
	}
	second := h.scratch.head
	if second.Attrib() != first {
		t.Fatalf("scratch chunks should chain through attrib")
	}
}

func TestSReallocCopiesOldContent(t *testing.T) {
	h := NewHeap(DefaultTunables())
	buf, err := h.RAlloc(4)
	if err != nil {
		t.Fatal(err)
	}
	copy(buf, []byte{1, 2, 3, 4})
	grown, err := h.SRealloc(buf, 8, 4)
	if err != nil {
		t.Fatal(err)
	}
	if len(grown) != 8 {
		t.Fatalf("SRealloc returned length %d, want 8", len(grown))
	}
	for i := 0; i < 4; i++ {
		if grown[i] != buf[i] {
			t.Fatalf("SRealloc did not copy byte %d", i)
		}
	}
}

func TestCAllocCFreeRoundTrip(t *testing.T) {
	h := NewHeap(DefaultTunables())
	handle, err := h.CAlloc(8, 1)
	if err != nil {
		t.Fatal(err)
	}
	buf := h.CAllocBytes(handle)
	if len(buf) != 8 {
		t.Fatalf("CAlloc buffer length = %d, want 8", len(buf))
	}
	h.CFree(handle)
	if h.scratch.emergency[handle] != nil {
		t.Fatalf("CFree did not clear the emergency table slot")
	}
}
