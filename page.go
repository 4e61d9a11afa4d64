package cellheap

// Page allocator. Grounded on GetNewPage/ReleasePage/TryToReleasePages in
// original_source/src/main/memory.c, and on the "carve a page into
// same-size slots, cache the cursor" shape of mCentral_Grow in the
// teacher's runtime/mcentral.go.
//
// Pages here are Go-owned backing arrays ([]Cell), not raw OS memory: a
// second, fully manual allocator built on unsafe.Pointer inside a
// process that already has its own tracing GC would fight the host
// runtime for no benefit (Go's own collector still has to scan anything
// unsafe.Pointer can reach). Carving *Cell slots out of a stable slice
// backing array keeps the architecture — fixed-size slot carving,
// per-class free cursor, doubly linked rings, promotion, write barrier —
// while keeping cell references as ordinary traceable Go pointers. This
// is an explicit Open Question resolution; see DESIGN.md.
const basePageSize = 2000 // bytes, nominal page size target (spec.md §6 default)

// cellFootprint approximates the byte footprint of one cell in class,
// only to decide how many cells a single page-sized slab should carve.
// Class 0 is the fixed non-vector layout; classes 1..numSmallClasses-1
// add their inline vector-word capacity.
func cellFootprint(class NodeClass) int {
	const headerBytes = 56 // tag/mark/gen/class/named/gp + 2 list links + attrib, rounded
	if class == 0 {
		return headerBytes
	}
	return headerBytes + nodeClassWords[class]*8
}

func pageCellCount(class NodeClass) int {
	n := basePageSize / cellFootprint(class)
	if n < 1 {
		n = 1
	}
	return n
}

// page is one slab: a backing array of cells carved into pageCellCount(class)
// slots and linked into class's page chain. Pages are released wholesale
// by releaseEmptyPages once no cell in them is marked.
type page struct {
	class NodeClass
	cells []Cell
	next  *page
}

// growClass carves a fresh page for class, stamps every slot's class tag,
// and appends the slots to the tail of the class's "new" ring (just
// before its peg). The free cursor is reset to the first newly appended
// cell only if it had been exhausted (pointing at the peg), which is the
// only time growClass is ever called.
func (h *Heap) growClass(class NodeClass) {
	n := pageCellCount(class)
	p := &page{class: class, cells: make([]Cell, n)}
	p.next = h.pages[class]
	h.pages[class] = p

	cl := &h.classes[class]
	cl.pageCount++

	var firstNew *Cell
	for i := range p.cells {
		s := &p.cells[i]
		s.class = uint8(class)
		snapBefore(s, cl.newPeg)
		cl.allocCount++
		if firstNew == nil {
			firstNew = s
		}
	}
	if cl.freeCursor == cl.newPeg {
		cl.freeCursor = firstNew
	}
}

// allocCellFromClass hands out the next free cell of class, growing the
// class with a fresh page if the free cursor has caught up to the peg.
// It does not initialize the cell's payload; callers (alloc.go) do that.
func (h *Heap) allocCellFromClass(class NodeClass) *Cell {
	cl := &h.classes[class]
	if cl.freeCursor == cl.newPeg {
		h.growClass(class)
	}
	s := cl.freeCursor
	cl.freeCursor = s.next
	h.cellsInUse++
	return s
}

// allocRawClass0 is used only during Heap construction, to carve the nil
// singleton before the rest of the root registry exists.
func (h *Heap) allocRawClass0() *Cell {
	return h.allocCellFromClass(0)
}

// hasFreeCell reports whether class has at least one more cell available
// without growing (i.e. without a page request that might fail). Used by
// the allocation entry points' GC pre-check.
func (h *Heap) hasFreeCell(class NodeClass) bool {
	return h.classes[class].freeCursor != h.classes[class].newPeg
}

// releasePage unlinks page p's slots from whatever ring currently holds
// them and decrements the class's allocCount. Called only on pages
// confirmed to hold no marked cell by releaseEmptyPages.
func releasePage(cl *classHeap, p *page) {
	for i := range p.cells {
		unsnap(&p.cells[i])
		cl.allocCount--
	}
	cl.pageCount--
}

// releaseEmptyPages implements spec.md §4.4 step 12: for each small
// class, compute the maximum number of releasable pages from the
// keep-fraction policy, then walk the page chain freeing pages with no
// marked cell, up to that bound. Must run only right after a sweep, while
// every live cell is still marked and every cell in "new" is free.
func (h *Heap) releaseEmptyPages() int {
	released := 0
	for class := NodeClass(0); class < largeNodeClass; class++ {
		cl := &h.classes[class]
		n := pageCellCount(class)
		maxrel := cl.allocCount
		for g := 0; g < numOldGenerations; g++ {
			maxrel -= int((1.0 + h.tun.KeepFrac) * float64(cl.oldCount[g]))
		}
		maxrelPages := 0
		if maxrel > 0 {
			maxrelPages = maxrel / n
		}
		if maxrelPages == 0 {
			continue
		}

		var prev *page
		pg := h.pages[class]
		relPages := 0
		for pg != nil && relPages < maxrelPages {
			next := pg.next
			inUse := false
			for i := range pg.cells {
				if pg.cells[i].marked {
					inUse = true
					break
				}
			}
			if !inUse {
				releasePage(cl, pg)
				if prev == nil {
					h.pages[class] = next
				} else {
					prev.next = next
				}
				relPages++
				released++
			} else {
				prev = pg
			}
			pg = next
		}
		// The free cursor must restart at the head of "new" after pages
		// move; every surviving cell in "new" is free by construction
		// (sweep has already moved every marked survivor to old[g]).
		cl.freeCursor = cl.newPeg.next
	}
	return released
}
