package cellheap

// Scratch allocator (spec.md §4.6): a high-water-mark stack built from
// ordinary character-string cells threaded through their attrib slot,
// mirroring R_VStack in original_source/src/main/memory.c. vmaxget/
// vmaxset give callers a stack-discipline checkpoint to roll back to;
// R_alloc/S_alloc/S_realloc are the allocation entry points built on top
// of it. Because chunks are regular cells, the chain is a GC root
// (forwarded in roots.go) rather than memory the collector must special-
// case: once unlinked by vmaxset and not otherwise referenced, a chunk is
// reclaimed on the next collection like anything else.
const emergencyTableSize = 100

type scratchState struct {
	head      *Cell // top of the chunk chain; nil until the first allocation
	emergency [emergencyTableSize]*Cell
}

func (s *scratchState) init() {}

// Vmaxget returns a checkpoint token for the current top of the scratch
// stack.
func (h *Heap) Vmaxget() *Cell { return h.scratch.head }

// Vmaxset truncates the scratch chain back to token, discarding every
// chunk allocated since the matching Vmaxget call.
func (h *Heap) Vmaxset(token *Cell) { h.scratch.head = token }

// RAlloc allocates n bytes of scratch storage and returns the backing
// slice. The chunk is linked onto the scratch chain ahead of whatever was
// previously on top.
func (h *Heap) RAlloc(n int) ([]byte, error) {
	if n < 0 {
		n = 0
	}
	c, err := h.AllocString(n)
	if err != nil {
		return nil, err
	}
	c.attrib = h.scratch.head
	h.scratch.head = c
	return c.StringBytes(), nil
}

// SAlloc is RAlloc generalized over element size, for callers working in
// units other than bytes.
func (h *Heap) SAlloc(n, elemSize int) ([]byte, error) {
	return h.RAlloc(n * elemSize)
}

// SRealloc grows or shrinks a previously returned SAlloc/RAlloc buffer by
// allocating a fresh chunk and copying oldSize bytes into it; the scratch
// stack never reclaims in place.
func (h *Heap) SRealloc(old []byte, newSize, oldSize int) ([]byte, error) {
	buf, err := h.RAlloc(newSize)
	if err != nil {
		return nil, err
	}
	n := oldSize
	if n > newSize {
		n = newSize
	}
	copy(buf, old[:n])
	return buf, nil
}

// CAlloc registers n*elemSize bytes of preserved (not stack-discipline)
// scratch storage in the bounded emergency table, returning its handle.
// Native routines that need a cleanup guarantee spanning a fatal error
// use this instead of the Vmaxget/Vmaxset discipline. The table's
// capacity is fixed; exhausting it is unrecoverable.
func (h *Heap) CAlloc(n, elemSize int) (int, error) {
	for i := range h.scratch.emergency {
		if h.scratch.emergency[i] != nil {
			continue
		}
		c, err := h.AllocString(n * elemSize)
		if err != nil {
			return -1, err
		}
		h.scratch.emergency[i] = c
		h.Preserve(c)
		return i, nil
	}
	fatal("emergency allocation table exhausted")
	return -1, nil
}

// CAllocBytes returns the backing slice registered under handle.
func (h *Heap) CAllocBytes(handle int) []byte {
	return h.scratch.emergency[handle].StringBytes()
}

// CFree releases the emergency-table entry at handle, letting ordinary
// collection reclaim it once nothing else references it.
func (h *Heap) CFree(handle int) {
	c := h.scratch.emergency[handle]
	if c == nil {
		return
	}
	h.Release(c)
	h.scratch.emergency[handle] = nil
}
