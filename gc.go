package cellheap

// The generational collector. Grounded step-for-step on spec.md §4.4,
// itself a distillation of the forwarding/aging/sweep cycle in
// original_source/src/main/memory.c's RunGenCollect, translated from
// SEXP-pointer macros into methods on *Heap/*Cell.

// decideLevel implements the promotion schedule: every Level0Freq-th
// level-0 collection is raised to level 1; every Level1Freq-th level-1
// collection is raised to level 2 (== numOldGenerations, a full
// collection). Grounded on collect_counts_max in original_source.
func (h *Heap) decideLevel() int {
	level := 0
	h.collectCounts[0]++
	if h.collectCounts[0] >= h.tun.Level0Freq {
		h.collectCounts[0] = 0
		level = 1
		h.collectCounts[1]++
		if h.collectCounts[1] >= h.tun.Level1Freq {
			h.collectCounts[1] = 0
			level = numOldGenerations
		}
	}
	if level > numOldGenerations {
		level = numOldGenerations
	}
	return level
}

// forward marks c (if unmarked) and pushes it onto the work list,
// unsnapping it from wherever it currently sits. Pegs are skipped
// implicitly: a peg's tag is always TagNil's zero value with marked
// already having been reset to false only via the unmark step, but pegs
// are never reachable through a real cell reference, so forward is never
// called on one in practice; nil itself is idempotent to forward (it is
// its own car/cdr/xtag/attrib, so marking it once is enough).
func (h *Heap) forward(c *Cell, work *[]*Cell) {
	if c == nil || c.marked {
		return
	}
	c.marked = true
	unsnap(c)
	*work = append(*work, c)
}

// forwardChildren enqueues every cell-reference child of c, switching on
// tag exactly the way DO_CHILDREN does in original_source/memory.c:
// leaf tags (hasNoCellChildren) contribute nothing, pair-like cells
// contribute car/cdr/xtag, environments contribute frame/enclos/hashtab,
// cell-valued vectors contribute their elements, and external pointers
// contribute only their two cell references (never the raw address).
func (h *Heap) forwardChildren(c *Cell, work *[]*Cell) {
	h.forward(c.attrib, work)
	switch {
	case c.tag.hasNoCellChildren():
		return
	case c.tag.isPairLike():
		h.forward(c.car, work)
		h.forward(c.cdr, work)
		h.forward(c.xtag, work)
	case c.tag == TagEnvironment:
		h.forward(c.frame, work)
		h.forward(c.enclos, work)
		h.forward(c.hashtab, work)
	case c.tag == TagStringVector, c.tag == TagExpressionVector, c.tag == TagGenericVector:
		for _, e := range c.vecCell {
			h.forward(e, work)
		}
	case c.tag == TagExternalPointer:
		h.forward(c.extProt, work)
		h.forward(c.extTag, work)
	}
}

// ageCell ensures x is marked and at generation >= g, relocating it onto
// old[g] (or its current generation, whichever is older) and keeping
// oldCount bookkeeping consistent. Used by step 2 (draining old-to-new)
// to age the children of retained old cells.
func (h *Heap) ageCell(x *Cell, g int) {
	if x == nil {
		return
	}
	if g > numOldGenerations-1 {
		g = numOldGenerations - 1
	}
	if x.marked && int(x.gen) >= g {
		return
	}
	wasMarked := x.marked
	prevGen := int(x.gen)
	cl := &h.classes[x.class_()]
	if wasMarked {
		cl.oldCount[prevGen]--
	}
	x.marked = true
	x.gen = uint8(g)
	unsnap(x)
	snapBefore(x, cl.oldPeg[g])
	cl.oldCount[g]++
}

func (h *Heap) ageChildren(c *Cell, g int) {
	h.ageCell(c.attrib, g)
	switch {
	case c.tag.hasNoCellChildren():
	case c.tag.isPairLike():
		h.ageCell(c.car, g)
		h.ageCell(c.cdr, g)
		h.ageCell(c.xtag, g)
	case c.tag == TagEnvironment:
		h.ageCell(c.frame, g)
		h.ageCell(c.enclos, g)
		h.ageCell(c.hashtab, g)
	case c.tag == TagStringVector, c.tag == TagExpressionVector, c.tag == TagGenericVector:
		for _, e := range c.vecCell {
			h.ageCell(e, g)
		}
	case c.tag == TagExternalPointer:
		h.ageCell(c.extProt, g)
		h.ageCell(c.extTag, g)
	}
}

// collect runs one full pass of the 14-step algorithm at a fixed level.
// It does not itself decide the level or retry; GC/MaybeCollect own the
// feedback loop (the "again" entry of spec.md §4.4).
func (h *Heap) collect(level int) GCStats {
	h.gcCount++

	// Step 2: drain old-to-new into old for generations being collected.
	for g := 0; g < level; g++ {
		for class := NodeClass(0); class < numNodeClasses; class++ {
			cl := &h.classes[class]
			peg := cl.oldToNewPeg[g]
			for s := peg.next; s != peg; {
				next := s.next
				h.ageChildren(s, g)
				unsnap(s)
				snapBefore(s, cl.oldPeg[g])
				s = next
			}
		}
	}

	// Step 3: empty candidate generations into "new".
	for g := 0; g < level; g++ {
		for class := NodeClass(0); class < numNodeClasses; class++ {
			cl := &h.classes[class]
			cl.oldCount[g] = 0
			peg := cl.oldPeg[g]
			for s := peg.next; s != peg; s = s.next {
				s.marked = false
				if g < numOldGenerations-1 {
					s.gen = uint8(g + 1)
				}
			}
			bulkMove(peg, cl.newPeg)
		}
	}

	// Step 4: empty work list.
	var work []*Cell

	// Step 5: scan retained remembered sets (generations not being collected).
	for g := level; g < numOldGenerations; g++ {
		for class := NodeClass(0); class < numNodeClasses; class++ {
			cl := &h.classes[class]
			peg := cl.oldToNewPeg[g]
			for s := peg.next; s != peg; s = s.next {
				h.forwardChildren(s, &work)
			}
		}
	}

	// Step 6: forward all roots.
	h.forwardRoots(func(c *Cell) { h.forward(c, &work) })

	// Step 7: process work list.
	h.drainWorkList(&work)

	// Step 8: mark finalizer candidates, keep their values alive this cycle.
	finalizersPending := h.finalizersMarkPending(func(c *Cell) bool { return c != nil && c.marked })
	for _, e := range h.finalizers.entries {
		if e.pending {
			h.forward(e.target, &work)
			h.forward(e.action, &work)
		}
	}
	h.drainWorkList(&work)

	// Step 9: release large vectors with no survivor.
	largeFreed := h.releaseLargeVectors()

	// Step 10: reset free cursors.
	for class := NodeClass(0); class < largeNodeClass; class++ {
		cl := &h.classes[class]
		cl.freeCursor = cl.newPeg.next
	}

	// Step 11: adjust heap size targets.
	h.adjustHeapSize(0)

	// Step 12: optionally release pages.
	pagesReleased := 0
	if level >= 1 {
		if h.releaseCount <= 1 {
			h.releaseCount = h.tun.PageReleaseEvery
			pagesReleased = h.releaseEmptyPages()
		} else {
			h.releaseCount--
		}
	}

	// Step 13: sort nodes after a full collection.
	if level == numOldGenerations {
		for class := NodeClass(0); class < largeNodeClass; class++ {
			h.sortClassNodes(class)
		}
	}

	// Resync cells-in-use from the authoritative per-generation counts
	// (spec.md §8: sum of OldCount across class/gen equals cells-in-use).
	inUse := 0
	for class := range h.classes {
		for g := 0; g < numOldGenerations; g++ {
			inUse += h.classes[class].oldCount[g]
		}
	}
	h.cellsInUse = inUse

	stats := GCStats{
		CellsUsed:         h.cellsInUse,
		VectorWordsUsed:   (h.smallVectorBytes + h.largeVectorBytes) / vectorWordBytes,
		CellTrigger:       h.cellTarget,
		VectorTrigger:     h.vectorTarget / vectorWordBytes,
		CellMax:           h.tun.MaxCells,
		VectorMax:         h.tun.MaxVectorBytes / vectorWordBytes,
		Level:             level,
		PagesReleased:     pagesReleased,
		LargeVectorsFreed: largeFreed,
		FinalizersRun:     0, // runFinalizers (finalize.go) fills this in after collect returns
	}
	_ = finalizersPending
	h.lastGC = stats
	return stats
}

func (h *Heap) drainWorkList(work *[]*Cell) {
	for len(*work) > 0 {
		n := len(*work) - 1
		c := (*work)[n]
		*work = (*work)[:n]

		g := int(c.gen)
		if g >= numOldGenerations {
			g = numOldGenerations - 1
		}
		cl := &h.classes[c.class_()]
		snapBefore(c, cl.oldPeg[g])
		cl.oldCount[g]++

		h.forwardChildren(c, work)
	}
}

// releaseLargeVectors implements step 9: any cell still on the large
// class's "new" ring after the mark phase has no surviving reference;
// its payload is dropped (Go's own GC reclaims it) and the large-vector
// byte counter is decremented.
func (h *Heap) releaseLargeVectors() int {
	cl := &h.classes[largeNodeClass]
	peg := cl.newPeg
	freed := 0
	for s := peg.next; s != peg; {
		next := s.next
		h.largeVectorBytes -= vectorByteSize(s)
		unsnap(s)
		freed++
		s = next
	}
	return freed
}

func vectorByteSize(c *Cell) int {
	switch c.tag {
	case TagCharacterString:
		return len(c.vecBytes)
	case TagLogicalVector:
		return len(c.vecLogical) * 4
	case TagIntegerVector:
		return len(c.vecInt) * 4
	case TagRealVector:
		return len(c.vecReal) * 8
	case TagComplexVector:
		return len(c.vecComplex) * 16
	case TagStringVector, TagExpressionVector, TagGenericVector:
		return len(c.vecCell) * 8
	default:
		return 0
	}
}

// adjustHeapSize implements step 11, grounded on AdjustHeapSize in
// original_source/src/main/memory.c: grow each target when occupancy
// (live + a minimum-free cushion) exceeds GrowThreshold, shrink when it
// falls below ShrinkThreshold, never below the frozen minimums, never
// above a configured maximum (0 == uncapped).
func (h *Heap) adjustHeapSize(sizeNeeded int) {
	minFreeCells := int(float64(h.minCells) * h.tun.MinFreeFrac)
	minFreeVBytes := int(float64(h.minVectorBytes) * h.tun.MinFreeFrac)

	needed := h.cellsInUse + minFreeCells
	vNeeded := h.smallVectorBytes + h.largeVectorBytes + sizeNeeded + minFreeVBytes

	nodeOccup := float64(needed) / float64(h.cellTarget)
	vectOccup := float64(vNeeded) / float64(h.vectorTarget)

	if nodeOccup > h.tun.GrowThreshold {
		change := h.tun.GrowIncrMin + int(h.tun.GrowIncrFrac*float64(h.cellTarget))
		if h.tun.MaxCells == 0 || h.cellTarget+change <= h.tun.MaxCells {
			h.cellTarget += change
		}
	} else if nodeOccup < h.tun.ShrinkThreshold {
		h.cellTarget -= h.tun.ShrinkIncrMin + int(h.tun.ShrinkIncrFrac*float64(h.cellTarget))
		if h.cellTarget < needed {
			h.cellTarget = needed
		}
		if h.cellTarget < h.minCells {
			h.cellTarget = h.minCells
		}
	}

	if vectOccup > h.tun.GrowThreshold {
		change := h.tun.GrowIncrMin*vectorWordBytes + int(h.tun.GrowIncrFrac*float64(h.vectorTarget))
		if h.tun.MaxVectorBytes == 0 || h.vectorTarget+change <= h.tun.MaxVectorBytes {
			h.vectorTarget += change
		}
	} else if vectOccup < h.tun.ShrinkThreshold {
		h.vectorTarget -= h.tun.ShrinkIncrMin*vectorWordBytes + int(h.tun.ShrinkIncrFrac*float64(h.vectorTarget))
		if h.vectorTarget < vNeeded {
			h.vectorTarget = vNeeded
		}
		if h.vectorTarget < h.minVectorBytes {
			h.vectorTarget = h.minVectorBytes
		}
	}
}

// sortClassNodes implements step 13: rebuild a class's "new" ring in
// page/slot address order to improve locality of future allocations.
// Only unmarked cells remain in "new" by this point (every marked
// survivor was relocated to an old[g] ring in steps 2/7), so a full
// address-order walk re-snapping each one is exactly the resorted list.
func (h *Heap) sortClassNodes(class NodeClass) {
	cl := &h.classes[class]
	for p := h.pages[class]; p != nil; p = p.next {
		for i := range p.cells {
			s := &p.cells[i]
			if !s.marked {
				unsnap(s)
				snapBefore(s, cl.newPeg)
			}
		}
	}
	cl.freeCursor = cl.newPeg.next
}

// freeBudgetOK reports whether, after a collection, both free cells and
// free vector budget clear the minimum-free threshold (the feedback loop
// condition of spec.md §4.4).
func (h *Heap) freeBudgetOK(sizeNeeded int) bool {
	minFreeCells := int(float64(h.minCells) * h.tun.MinFreeFrac)
	minFreeVBytes := int(float64(h.minVectorBytes) * h.tun.MinFreeFrac)
	freeCells := h.cellTarget - h.cellsInUse
	freeVBytes := h.vectorTarget - h.smallVectorBytes - h.largeVectorBytes - sizeNeeded
	return freeCells >= minFreeCells && freeVBytes >= minFreeVBytes
}

// gcInternal runs the feedback loop: decide a level, collect, and if the
// free budget still falls short and the level hasn't reached a full
// collection, raise the level and collect again. This is the "again"
// entry of spec.md §4.4. Finalization (spec.md §4.7) runs after this
// returns, outside the collector proper.
func (h *Heap) gcInternal(sizeNeeded int) GCStats {
	level := h.decideLevel()
	stats := h.collect(level)
	for !h.freeBudgetOK(sizeNeeded) && level < numOldGenerations {
		level++
		stats = h.collect(level)
	}
	return stats
}

// GC runs an explicit full collection and returns the 10-element report
// array spec.md §6 documents for the `gc()` entry point:
// [cells-used, vector-words-used, cells-used*0.1MiB, vector-words-used*0.1MiB,
//  cell-trigger, vector-trigger, cell-trigger*0.1MiB, vector-trigger*0.1MiB,
//  cell-max or sentinel, vector-max or sentinel].
func (h *Heap) GC() [10]int64 {
	stats := h.collect(numOldGenerations)
	h.runFinalizers(&stats)
	return reportArray(stats)
}

// cellSizeBytes and reportUnitBytes are the fixed constants spec.md §6
// uses to render the "0.1 MiB" columns of the ten-element report: one
// cell's approximate resident size, and the MiB/10 unit itself.
const cellSizeBytes = 56
const reportUnitBytes = 1024 * 1024 / 10

func reportArray(s GCStats) [10]int64 {
	cellMax := int64(-1)
	if s.CellMax != 0 {
		cellMax = int64(s.CellMax)
	}
	vecMax := int64(-1)
	if s.VectorMax != 0 {
		vecMax = int64(s.VectorMax)
	}
	return [10]int64{
		int64(s.CellsUsed),
		int64(s.VectorWordsUsed),
		int64(s.CellsUsed) * cellSizeBytes / reportUnitBytes,
		int64(s.VectorWordsUsed) * vectorWordBytes / reportUnitBytes,
		int64(s.CellTrigger),
		int64(s.VectorTrigger),
		int64(s.CellTrigger) * cellSizeBytes / reportUnitBytes,
		int64(s.VectorTrigger) * vectorWordBytes / reportUnitBytes,
		cellMax,
		vecMax,
	}
}

// MaybeCollect is the GC pre-check every allocation entry point runs: if
// torture mode is on, or the requested class has no free cell, or (for
// vectors) sizeNeeded exceeds the remaining vector budget, it protects
// the caller-supplied roots and runs the collector. It returns nothing;
// the caller checks afterwards whether the request can be satisfied.
func (h *Heap) MaybeCollect(class NodeClass, sizeNeeded int, roots ...*Cell) {
	need := h.torture || !h.hasFreeCell(class) || (sizeNeeded > 0 && !h.vectorBudgetOK(sizeNeeded))
	if !need || h.collecting {
		return
	}
	h.collecting = true
	for _, r := range roots {
		if r != nil {
			h.Protect(r)
		}
	}
	stats := h.gcInternal(sizeNeeded)
	h.runFinalizers(&stats)
	// spec.md §4.7: if running finalizers freed anything (they unlink
	// their targets from the registry before running, which can drop the
	// target's last reference) and the budget is still short, one more
	// collection — without finalization — gets a chance to satisfy the
	// pending allocation before the caller gives up.
	if stats.FinalizersRun > 0 && !h.freeBudgetOK(sizeNeeded) {
		stats = h.collect(numOldGenerations)
	}
	for range roots {
		h.Unprotect(1)
	}
	h.collecting = false
}

func (h *Heap) vectorBudgetOK(sizeNeeded int) bool {
	return h.smallVectorBytes+h.largeVectorBytes+sizeNeeded <= h.vectorTarget
}
