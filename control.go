package cellheap

// Diagnostic/control surface (spec.md §4.8 / §6): torture mode, GC
// reporting, runtime-adjustable memory ceilings, and a per-tag census.
// Grounded on gc(), gctorture(), gcinfo(), and mem.limits()'s real R
// entry points in original_source/src/main/memory.c.

// GCTorture enables or disables torture mode: when on, MaybeCollect
// treats every allocation as if the heap were full, forcing a collection
// before every cell/vector request. Returns the previous setting.
func (h *Heap) GCTorture(on bool) bool {
	prev := h.torture
	h.torture = on
	return prev
}

// GCInfo sets the per-collection reporting flag and returns the previous
// setting. The collector does not read the flag and prints nothing:
// Heap.LastGC() is filled in after every collection whether it is on or
// off.
func (h *Heap) GCInfo(on bool) bool {
	prev := h.reportGC
	h.reportGC = on
	return prev
}

// LastGC returns the statistics recorded by the most recent collection.
func (h *Heap) LastGC() GCStats { return h.lastGC }

// MemLimits adjusts the maximum cell count and vector byte ceiling. A
// value of 0 means "no cap" (spec.md §6); limits are never allowed below
// the frozen construction-time minimums, mirroring original_source's
// refusal to let mem.limits lower R_NSize/R_VSize below their startup
// floor.
func (h *Heap) MemLimits(maxCells, maxVectorBytes int) {
	if maxCells != 0 && maxCells < h.minCells {
		maxCells = h.minCells
	}
	if maxVectorBytes != 0 && maxVectorBytes < h.minVectorBytes {
		maxVectorBytes = h.minVectorBytes
	}
	h.tun.MaxCells = maxCells
	h.tun.MaxVectorBytes = maxVectorBytes
}

// TagCensus is one row of a MemProfile report: how many live cells of a
// given tag exist, and how many vector-payload bytes they hold (0 for
// non-vector tags).
type TagCensus struct {
	Tag   Tag
	Cells int
	Bytes int
}

// MemProfile runs an explicit full collection and returns a per-tag
// census of every cell that survived it. Because a full collection
// leaves every live cell parked on some old[g] ring and every "new" ring
// holding only garbage, the census is a simple walk of the old rings.
func (h *Heap) MemProfile() []TagCensus {
	h.gcInternal(0)
	// Force the cheapest possible full pass so every survivor is settled
	// on an old[g] ring before the census walk below.
	h.collect(numOldGenerations)

	counts := make(map[Tag]*TagCensus)
	walk := func(c *Cell) {
		row, ok := counts[c.tag]
		if !ok {
			row = &TagCensus{Tag: c.tag}
			counts[c.tag] = row
		}
		row.Cells++
		row.Bytes += vectorByteSize(c)
	}

	for class := range h.classes {
		for g := 0; g < numOldGenerations; g++ {
			peg := h.classes[class].oldPeg[g]
			for s := peg.next; s != peg; s = s.next {
				walk(s)
			}
		}
	}

	out := make([]TagCensus, 0, len(counts))
	for _, row := range counts {
		out = append(out, *row)
	}
	return out
}
