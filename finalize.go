package cellheap

// Finalizer registry (spec.md §4.7): pairs of (target cell, action) that
// run once the target becomes unreachable. Grounded on R_RegisterFinalizerEx
// / RunFinalizers / RunPendingFinalizers in original_source/src/main/memory.c.
//
// A target may only be an environment or an external pointer (spec.md
// tie-break: nothing else is a sensible finalization target). An action
// is either a cell naming an interpreter-level callable (closure,
// builtin, or special — run through the hook the embedding interpreter
// installs with SetEvalFinalizer) or a native Go function registered directly via
// RegisterCFinalizer.

type finalizerEntry struct {
	target  *Cell
	action  *Cell            // set when registered via RegisterFinalizer
	native  func(*Cell)      // set when registered via RegisterCFinalizer
	pending bool
	onExit  bool // run even at process-exit-style teardown, not just GC
}

type finalizerRegistry struct {
	entries []*finalizerEntry
}

func (r *finalizerRegistry) init() {
	r.entries = nil
}

// SetEvalFinalizer installs the hook an embedding interpreter uses to
// invoke a registered closure/builtin/special action cell against its
// target. cellheap has no evaluator of its own; with EvalFinalizer unset,
// RegisterFinalizer entries are still tracked (and still unlinked/run in
// sequence) but the call is a no-op.
func (h *Heap) SetEvalFinalizer(fn func(action, target *Cell)) {
	h.evalFinalizer = fn
}

func notFinalizerTarget(c *Cell) bool {
	return c == nil || (c.tag != TagEnvironment && c.tag != TagExternalPointer)
}

func notCallable(c *Cell) bool {
	return c == nil || (c.tag != TagClosure && c.tag != TagBuiltin && c.tag != TagSpecial)
}

// RegisterFinalizer arranges for action (a closure, builtin, or special)
// to be invoked against target once target becomes unreachable.
// onExit mirrors R's onexit flag: if true, the finalizer also runs during
// final process-wide teardown rather than only at a GC that finds target
// unreachable.
func (h *Heap) RegisterFinalizer(target, action *Cell, onExit bool) error {
	if notFinalizerTarget(target) {
		return ErrInvalidFinalizerTarget
	}
	if notCallable(action) {
		return ErrInvalidFinalizerFunc
	}
	h.finalizers.entries = append(h.finalizers.entries, &finalizerEntry{
		target: target, action: action, onExit: onExit,
	})
	return nil
}

// RegisterCFinalizer arranges for fn to be called directly (no
// interpreter round trip) against target once target becomes
// unreachable.
func (h *Heap) RegisterCFinalizer(target *Cell, fn func(*Cell), onExit bool) error {
	if notFinalizerTarget(target) {
		return ErrInvalidFinalizerTarget
	}
	if fn == nil {
		return ErrInvalidFinalizerFunc
	}
	h.finalizers.entries = append(h.finalizers.entries, &finalizerEntry{
		target: target, native: fn, onExit: onExit,
	})
	return nil
}

// finalizersMarkPending flips the pending bit of every entry whose target is not
// marked, but only if the bit is currently clear — preserving a legacy
// quirk of original_source/memory.c's CheckFinalizers: an entry already
// pending from a prior cycle that hasn't run yet (because finalizer
// execution is deferred to a safe point) is left alone rather than
// re-armed, so it still runs exactly once. Returns whether any entry's
// bit changed.
func (h *Heap) finalizersMarkPending(isMarked func(*Cell) bool) bool {
	changed := false
	for _, e := range h.finalizers.entries {
		if !e.pending && !isMarked(e.target) {
			e.pending = true
			changed = true
		}
	}
	return changed
}

// runFinalizers unlinks every pending entry from the registry before
// running it, so a finalizer that (re)registers another finalizer, or
// that itself becomes unreachable mid-run, can't corrupt the list being
// iterated. Each finalizer runs under its own recover, isolating one
// finalizer's panic from the rest and from the caller; the panic's value
// is discarded once recovered, matching spec.md §4.7's "errors inside a
// finalizer are swallowed" rule.
func (h *Heap) runFinalizers(stats *GCStats) {
	var ran []*finalizerEntry
	kept := h.finalizers.entries[:0:0]
	for _, e := range h.finalizers.entries {
		if e.pending {
			ran = append(ran, e)
		} else {
			kept = append(kept, e)
		}
	}
	h.finalizers.entries = kept

	for _, e := range ran {
		h.runOneFinalizer(e)
	}
	if stats != nil {
		stats.FinalizersRun = len(ran)
	}
	h.lastGC.FinalizersRun = len(ran)
}

func (h *Heap) runOneFinalizer(e *finalizerEntry) {
	defer func() { _ = recover() }()
	switch {
	case e.native != nil:
		e.native(e.target)
	case e.action != nil && h.evalFinalizer != nil:
		h.evalFinalizer(e.action, e.target)
	}
}

// RunExitFinalizers runs every registered onExit finalizer unconditionally,
// regardless of reachability, for use during process-wide teardown
// (spec.md §4.7's onexit variant of RunFinalizers).
func (h *Heap) RunExitFinalizers() {
	var ran []*finalizerEntry
	kept := h.finalizers.entries[:0:0]
	for _, e := range h.finalizers.entries {
		if e.onExit {
			ran = append(ran, e)
		} else {
			kept = append(kept, e)
		}
	}
	h.finalizers.entries = kept
	for _, e := range ran {
		h.runOneFinalizer(e)
	}
}
