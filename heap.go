package cellheap

// classHeap holds every ring for one node class: the "new" (young) ring
// with its free cursor, one "old[g]" ring per old generation, and one
// "old-to-new[g]" remembered-set ring per old generation. Grounded on the
// R_GenHeap array in original_source/src/main/memory.c.
type classHeap struct {
	newPeg      *Cell
	freeCursor  *Cell // position within newPeg's ring; see page.go
	oldPeg      [numOldGenerations]*Cell
	oldToNewPeg [numOldGenerations]*Cell

	oldCount   [numOldGenerations]int
	allocCount int // cells ever carved into this class (small classes: pageCount*pageCellCount)
	pageCount  int
}

func newClassHeap() classHeap {
	var ch classHeap
	ch.newPeg = newPeg()
	ch.freeCursor = ch.newPeg
	for g := 0; g < numOldGenerations; g++ {
		ch.oldPeg[g] = newPeg()
		ch.oldToNewPeg[g] = newPeg()
	}
	return ch
}

// Tunables are the user-configurable knobs listed in spec.md §6. Every
// field has the default spec.md documents; Heap reads them once at
// NewHeap (minCells/minVectorBytes freeze at construction, matching
// orig_R_NSize/orig_R_VSize never being revised even as MemLimits raises
// the maxima).
type Tunables struct {
	InitialCells       int
	InitialVectorBytes int
	MaxCells           int // 0 means "no cap", i.e. R's INT_MAX sentinel
	MaxVectorBytes     int

	MinFreeFrac      float64 // 0.2
	KeepFrac         float64 // 0.5, page-release retention
	PageReleaseEvery int     // 1
	GrowThreshold    float64 // 0.70
	ShrinkThreshold  float64 // 0.30
	GrowIncrMin      int     // 40000
	GrowIncrFrac     float64 // 0.05
	ShrinkIncrMin    int     // 0
	ShrinkIncrFrac   float64 // 0.2
	Level0Freq       int     // 20
	Level1Freq       int     // 5
}

// DefaultTunables mirrors the constants in spec.md §6 /
// original_source/src/main/memory.c's static tuning globals.
func DefaultTunables() Tunables {
	return Tunables{
		InitialCells:       350_000,
		InitialVectorBytes: 6_000_000,
		MaxCells:           0,
		MaxVectorBytes:     0,
		MinFreeFrac:        0.2,
		KeepFrac:           0.5,
		PageReleaseEvery:   1,
		GrowThreshold:      0.70,
		ShrinkThreshold:    0.30,
		GrowIncrMin:        40_000,
		GrowIncrFrac:       0.05,
		ShrinkIncrMin:      0,
		ShrinkIncrFrac:     0.2,
		Level0Freq:         20,
		Level1Freq:         5,
	}
}

// Heap is the process-wide (in this package, Heap-instance-wide) memory
// core: page-backed cell classes, the root registry, the scratch stack,
// the finalizer registry, and the heap-size feedback state. Not safe for
// concurrent use (spec.md §5).
type Heap struct {
	classes [numNodeClasses]classHeap
	pages   [numSmallClasses]*page

	nilCell *Cell

	roots      rootRegistry
	finalizers finalizerRegistry
	scratch    scratchState

	tun Tunables

	cellTarget       int
	vectorTarget     int // bytes
	minCells         int
	minVectorBytes   int
	largeVectorBytes int // spec.md §3: process-wide counter for large-vector payloads
	smallVectorBytes int // spec.md §3: sum of small-vector class sizes in use
	cellsInUse       int

	collectCounts [numOldGenerations]int // collect_counts in original_source
	releaseCount  int                    // countdown to next page-release attempt
	gcCount       int
	collecting    bool // reentrancy guard, see SPEC_FULL.md §6.9
	torture       bool
	reportGC      bool

	evalFinalizer func(action, target *Cell)

	lastGC GCStats
}

// GCStats is the per-cycle bookkeeping the collector records in step 14
// and that GC()/MemProfile() surface to callers.
type GCStats struct {
	CellsUsed        int
	VectorWordsUsed  int
	CellTrigger      int
	VectorTrigger    int
	CellMax          int // 0 == no cap
	VectorMax         int
	Level            int
	PagesReleased    int
	LargeVectorsFreed int
	FinalizersRun    int
}

// NewHeap builds a heap with the given tunables, allocates the protect
// stack, and performs the "first cons is nil" ritual required by
// spec.md §3: nil is allocated first and its car/cdr/xtag/attrib all
// point to itself, which is what lets the collector treat nil as a
// self-terminating root.
func NewHeap(tun Tunables) *Heap {
	h := &Heap{tun: tun}
	for c := range h.classes {
		h.classes[c] = newClassHeap()
	}

	h.cellTarget = tun.InitialCells
	h.vectorTarget = tun.InitialVectorBytes
	h.minCells = tun.InitialCells
	h.minVectorBytes = tun.InitialVectorBytes
	h.releaseCount = tun.PageReleaseEvery

	h.roots.init()
	h.finalizers.init()
	h.scratch.init()

	nilCell := h.allocRawClass0()
	nilCell.tag = TagNil
	nilCell.car = nilCell
	nilCell.cdr = nilCell
	nilCell.xtag = nilCell
	nilCell.attrib = nilCell
	h.nilCell = nilCell
	h.roots.builtins[builtinNil] = nilCell

	marker := func(tag Tag) *Cell {
		c := h.allocRawClass0()
		resetCell(c, tag)
		c.car, c.cdr, c.xtag, c.attrib = nilCell, nilCell, nilCell, nilCell
		return c
	}
	h.roots.builtins[builtinMissingArg] = marker(TagSymbol)
	h.roots.builtins[builtinUnboundValue] = marker(TagSymbol)
	h.roots.builtins[builtinCommentAttr] = marker(TagSymbol)
	h.roots.builtins[builtinWarningsList] = nilCell

	emptyStr := h.allocVectorCell(TagCharacterString, 0, classForWords(0))
	h.roots.builtins[builtinEmptyString] = emptyStr

	naStr := h.allocVectorCell(TagCharacterString, 2, classForWords(vectorWordsFor(2, 1)))
	copy(naStr.vecBytes, "NA")
	h.roots.builtins[builtinNAString] = naStr

	return h
}

// Nil returns the heap's singleton nil cell. It is never freed.
func (h *Heap) Nil() *Cell { return h.nilCell }

// CellsInUse reports the number of cells currently allocated (not on any
// free list).
func (h *Heap) CellsInUse() int { return h.cellsInUse }
