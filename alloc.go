package cellheap

// Allocation entry points (spec.md §4.1/§4.5 tie-ins). Every entry point
// runs the GC pre-check (MaybeCollect) before carving a cell, protecting
// whatever already-live cells the caller passes as roots so a collection
// triggered mid-call can't reclaim them out from under the new cell being
// built. Grounded on allocSExp/cons/allocVector in
// original_source/src/main/memory.c.

// resetCell clears every payload field before a reused (or freshly
// carved) slot is handed out under a new tag. Cells are recycled across
// unrelated allocations, so a stale reference left in, say, vecCell from
// a previous life would otherwise dangle into unrelated data.
func resetCell(c *Cell, tag Tag) {
	c.tag = tag
	c.marked = false
	c.gen = 0
	c.named = 0
	c.gp = false
	c.attrib = nil
	c.car, c.cdr, c.xtag = nil, nil, nil
	c.seen = false
	c.frame, c.enclos, c.hashtab = nil, nil, nil
	c.locked = false
	c.length, c.trueLength = 0, 0
	c.vecBytes = nil
	c.vecLogical = nil
	c.vecInt = nil
	c.vecReal = nil
	c.vecComplex = nil
	c.vecCell = nil
	c.extAddr = 0
	c.extProt, c.extTag = nil, nil
	c.offset = 0
}

// protectAll protects every non-nil root for the duration of an
// allocation call, returning the count so the caller can unprotect the
// same number once the new cell is safely built and returned.
func (h *Heap) protectAll(roots []*Cell) int {
	n := 0
	for _, r := range roots {
		if r != nil {
			h.Protect(r)
			n++
		}
	}
	return n
}

// AllocCell allocates a fresh class-0 (fixed, non-vector) cell under tag.
// roots are protected across the GC pre-check; this is the entry point
// symbols, pairs, language forms, closures, promises, and environments
// all funnel through.
func (h *Heap) AllocCell(tag Tag, roots ...*Cell) (*Cell, error) {
	h.MaybeCollect(0, 0, roots...)
	n := h.protectAll(roots)
	defer h.Unprotect(n)
	if h.cellsInUse >= h.cellTarget {
		return nil, ErrConsExhausted
	}
	c := h.allocCellFromClass(0)
	resetCell(c, tag)
	return c, nil
}

// Cons allocates a pair cell with the given car/cdr and a nil tag slot,
// the core list-building primitive (spec.md §4.1).
func (h *Heap) Cons(car, cdr *Cell) (*Cell, error) {
	c, err := h.AllocCell(TagPair, car, cdr)
	if err != nil {
		return nil, err
	}
	c.car = car
	c.cdr = cdr
	c.xtag = h.nilCell
	return c, nil
}

// AllocList builds a chain of n freshly consed pairs, each with a nil
// car, terminated by the heap's nil singleton — the shape R's allocList
// produces for argument-list scaffolding.
func (h *Heap) AllocList(n int) (*Cell, error) {
	result := h.nilCell
	protIdx := -1
	for i := 0; i < n; i++ {
		if protIdx < 0 {
			_, protIdx = h.ProtectWithIndex(result)
		} else {
			h.Reprotect(result, protIdx)
		}
		c, err := h.Cons(h.nilCell, result)
		if err != nil {
			if protIdx >= 0 {
				h.Unprotect(1)
			}
			return nil, err
		}
		result = c
	}
	if protIdx >= 0 {
		h.Unprotect(1)
	}
	return result, nil
}

// allocLargeCell carves a brand-new cell for the large class directly,
// bypassing pages entirely: large vectors are never carved from a shared
// slab and never reused from a free list (spec.md §4.2), so each request
// is a fresh *Cell placed on the class's "new" ring. releaseLargeVectors
// (gc.go) is the only place these are ever taken back.
func (h *Heap) allocLargeCell(tag Tag) *Cell {
	c := &Cell{tag: tag, class: uint8(largeNodeClass)}
	snapBefore(c, h.classes[largeNodeClass].newPeg)
	h.cellsInUse++
	return c
}

// allocVectorCell is the shared vector-carving path used by AllocVector,
// AllocString, and the scratch allocator: it computes the size class,
// carves (or freshly allocates, for the large class) a cell, and
// allocates the one typed backing slice the tag calls for.
func (h *Heap) allocVectorCell(tag Tag, length int, class NodeClass) *Cell {
	var c *Cell
	if class == largeNodeClass {
		c = h.allocLargeCell(tag)
	} else {
		c = h.allocCellFromClass(class)
		resetCell(c, tag)
	}
	c.length = length
	c.trueLength = length

	switch tag {
	case TagCharacterString:
		c.vecBytes = make([]byte, length+1) // spec.md §3: always NUL-terminated
	case TagLogicalVector:
		c.vecLogical = make([]int32, length)
	case TagIntegerVector:
		c.vecInt = make([]int32, length)
	case TagRealVector:
		c.vecReal = make([]float64, length)
	case TagComplexVector:
		c.vecComplex = make([]complex128, length)
	case TagStringVector, TagExpressionVector, TagGenericVector:
		vec := make([]*Cell, length)
		for i := range vec {
			vec[i] = h.nilCell
		}
		c.vecCell = vec
	}

	bytes := vectorWordsFor(length, elemBytesFor(tag)) * vectorWordBytes
	if class == largeNodeClass {
		h.largeVectorBytes += bytes
	} else {
		h.smallVectorBytes += bytes
	}
	return c
}

// AllocVector allocates a vector cell of the given tag and logical
// length, choosing a small inline class when the payload fits and the
// large class otherwise (spec.md §4.1/§4.2).
func (h *Heap) AllocVector(tag Tag, length int, roots ...*Cell) (*Cell, error) {
	if !tag.isVector() {
		return nil, ErrBadList
	}
	if length < 0 {
		return nil, ErrOversizeVector
	}
	elemBytes := elemBytesFor(tag)
	words := vectorWordsFor(length, elemBytes)
	class := classForWords(words)
	sizeNeeded := words * vectorWordBytes

	h.MaybeCollect(class, sizeNeeded, roots...)
	n := h.protectAll(roots)
	defer h.Unprotect(n)

	if class != largeNodeClass && h.cellsInUse >= h.cellTarget {
		return nil, ErrConsExhausted
	}
	if !h.vectorBudgetOK(sizeNeeded) {
		return nil, ErrHeapExhausted
	}
	return h.allocVectorCell(tag, length, class), nil
}

// AllocString allocates a character-string cell of n bytes (plus the
// implicit trailing NUL accessors.go's StringBytes hides).
func (h *Heap) AllocString(n int, roots ...*Cell) (*Cell, error) {
	return h.AllocVector(TagCharacterString, n, roots...)
}

// NewEnvironment allocates an environment cell with the given frame
// (binding list) and enclosing environment. hashtab starts nil; the
// interpreter installs one lazily if the frame grows large.
func (h *Heap) NewEnvironment(frame, enclos *Cell) (*Cell, error) {
	env, err := h.AllocCell(TagEnvironment, frame, enclos)
	if err != nil {
		return nil, err
	}
	env.frame = frame
	env.enclos = enclos
	env.hashtab = h.nilCell
	return env, nil
}

// MakePromise allocates an unforced promise over expr, to be evaluated in
// env when first forced.
func (h *Heap) MakePromise(expr, env *Cell) (*Cell, error) {
	p, err := h.AllocCell(TagPromise, expr, env)
	if err != nil {
		return nil, err
	}
	p.car = expr
	p.cdr = env
	p.xtag = h.nilCell
	p.seen = false
	return p, nil
}

// ConsDotted allocates a dotted-list cell: the shape argument matching's
// dots-gathering step (spec.md §4.5) builds to hold the leftover supplied
// arguments, distinguished from an ordinary pair only by tag so the
// interpreter can tell a "..." value apart from a regular list.
func (h *Heap) ConsDotted(car, cdr *Cell) (*Cell, error) {
	c, err := h.AllocCell(TagDottedPair, car, cdr)
	if err != nil {
		return nil, err
	}
	c.car = car
	c.cdr = cdr
	c.xtag = h.nilCell
	return c, nil
}

// NewSymbol allocates a symbol cell with the given print name, an
// unbound value, and no internal (primitive) binding. Grounded on
// install()/mkSYMSXP in original_source/src/main/memory.c's symbol
// construction path.
func (h *Heap) NewSymbol(name string) (*Cell, error) {
	str, err := h.AllocString(len(name))
	if err != nil {
		return nil, err
	}
	str.SetStringBytes([]byte(name))

	sym, err := h.AllocCell(TagSymbol, str)
	if err != nil {
		return nil, err
	}
	sym.car = str
	sym.cdr = h.roots.builtins[builtinUnboundValue]
	sym.xtag = h.nilCell
	return sym, nil
}

// MakeExternalPtr allocates an external-pointer cell wrapping a native
// address the collector never traces, alongside a tag and protected cell
// reference the interpreter can use to keep companion data alive.
func (h *Heap) MakeExternalPtr(addr uintptr, tag, prot *Cell) (*Cell, error) {
	ext, err := h.AllocCell(TagExternalPointer, tag, prot)
	if err != nil {
		return nil, err
	}
	ext.extAddr = addr
	ext.extTag = tag
	if ext.extTag == nil {
		ext.extTag = h.nilCell
	}
	ext.extProt = prot
	if ext.extProt == nil {
		ext.extProt = h.nilCell
	}
	return ext, nil
}
