package cellheap

// Root registry: the five-plus-one sources scanned at collection time,
// in the order spec.md §4.3 lists them. Grounded on the protect stack /
// R_PreciousList / R_SymbolTable handling in
// original_source/src/main/memory.c.

const (
	protectStackCapacity = 10_000
	numBuiltinSingletons  = 7 // nil, missing-arg, unbound-value, empty-string, NA-string, comment-attr, warnings-list
)

// builtinSingletonIndex names the slots of rootRegistry.builtins, in the
// order spec.md §4.3 item 1 lists them.
const (
	builtinNil = iota
	builtinMissingArg
	builtinUnboundValue
	builtinEmptyString
	builtinNAString
	builtinCommentAttr
	builtinWarningsList
)

// evalContext is one frame of the call-evaluation context chain (spec.md
// §4.3 item 3): the interpreter pushes one per call and pops it on
// return; the core only needs to know about its on-exit expression
// reference for rooting purposes.
type evalContext struct {
	onExit *Cell
	parent *evalContext
}

// preservedNode is one entry of the preserved-objects list (spec.md §4.3
// item 5): cells pinned indefinitely across GCs until explicitly
// released.
type preservedNode struct {
	cell *Cell
	next *preservedNode
}

type rootRegistry struct {
	builtins [numBuiltinSingletons]*Cell

	globalEnv    *Cell
	symbolTable  []*Cell // interned symbols in InternSymbol order (a plain slice, not hashed)
	topLevelExpr *Cell

	contexts *evalContext

	protectStack []*Cell // bounded array; protect pushes, unprotect pops

	preserved *preservedNode
}

func (r *rootRegistry) init() {
	r.protectStack = make([]*Cell, 0, protectStackCapacity)
	r.symbolTable = make([]*Cell, 0, 256)
}

// MissingArg returns the distinguished singleton that occupies an
// unfilled actual-argument slot (spec.md GLOSSARY "Missing marker").
func (h *Heap) MissingArg() *Cell { return h.roots.builtins[builtinMissingArg] }

// UnboundValue returns the singleton a symbol's value slot holds before
// anything has ever been bound to it.
func (h *Heap) UnboundValue() *Cell { return h.roots.builtins[builtinUnboundValue] }

// EmptyString returns the shared zero-length character-string singleton.
func (h *Heap) EmptyString() *Cell { return h.roots.builtins[builtinEmptyString] }

// NAString returns the shared "NA" character-string singleton.
func (h *Heap) NAString() *Cell { return h.roots.builtins[builtinNAString] }

// CommentAttrib returns the marker used to tag a cell's comment
// attribute.
func (h *Heap) CommentAttrib() *Cell { return h.roots.builtins[builtinCommentAttr] }

// SetWarningsList installs the interpreter's pending-warnings list as a
// root.
func (h *Heap) SetWarningsList(w *Cell) { h.roots.builtins[builtinWarningsList] = w }

// WarningsList returns the current pending-warnings list root.
func (h *Heap) WarningsList() *Cell { return h.roots.builtins[builtinWarningsList] }

// Protect pushes x onto the protect stack and returns it unchanged, so
// call sites can write `x = h.Protect(Cons(...))`. Overflow is fatal:
// spec.md §4.3 notes it cannot be reported through the normal error path
// because reporting itself might need to allocate.
func (h *Heap) Protect(x *Cell) *Cell {
	if len(h.roots.protectStack) >= protectStackCapacity {
		fatal("protect stack overflow")
	}
	h.roots.protectStack = append(h.roots.protectStack, x)
	return x
}

// ProtectWithIndex behaves like Protect but also returns the stack index,
// for later use with Reprotect.
func (h *Heap) ProtectWithIndex(x *Cell) (*Cell, int) {
	h.Protect(x)
	return x, len(h.roots.protectStack) - 1
}

// Reprotect overwrites the protect-stack slot at index i with x.
func (h *Heap) Reprotect(x *Cell, i int) {
	h.roots.protectStack[i] = x
}

// Unprotect pops n entries off the top of the protect stack.
func (h *Heap) Unprotect(n int) error {
	if n > len(h.roots.protectStack) {
		return ErrUnprotectImbalance
	}
	h.roots.protectStack = h.roots.protectStack[:len(h.roots.protectStack)-n]
	return nil
}

// UnprotectPtr locates x (expected near the top, per spec.md §4.3) and
// removes it, sliding the suffix down to close the gap.
func (h *Heap) UnprotectPtr(x *Cell) error {
	stack := h.roots.protectStack
	for i := len(stack) - 1; i >= 0; i-- {
		if stack[i] == x {
			copy(stack[i:], stack[i+1:])
			h.roots.protectStack = stack[:len(stack)-1]
			return nil
		}
	}
	return ErrUnprotectPtrMissing
}

// Preserve prepends x to the preserved-objects list, pinning it across
// GCs indefinitely until Release is called on it.
func (h *Heap) Preserve(x *Cell) {
	h.roots.preserved = &preservedNode{cell: x, next: h.roots.preserved}
}

// Release walks the preserved-objects list and removes the first entry
// whose cell is x.
func (h *Heap) Release(x *Cell) {
	var prev *preservedNode
	for n := h.roots.preserved; n != nil; n = n.next {
		if n.cell == x {
			if prev == nil {
				h.roots.preserved = n.next
			} else {
				prev.next = n.next
			}
			return
		}
		prev = n
	}
}

// PushContext pushes a new call-evaluation context onto the chain, used
// by the interpreter to root an in-flight call's on-exit expression.
func (h *Heap) PushContext(onExit *Cell) {
	h.roots.contexts = &evalContext{onExit: onExit, parent: h.roots.contexts}
}

// PopContext pops the innermost call-evaluation context.
func (h *Heap) PopContext() {
	if h.roots.contexts != nil {
		h.roots.contexts = h.roots.contexts.parent
	}
}

// SetGlobalEnv installs the interpreter's global environment as a root.
func (h *Heap) SetGlobalEnv(env *Cell) { h.roots.globalEnv = env }

// InternSymbol adds a symbol cell to the symbol-table root bucket so it
// survives collection even with no other live reference (interned
// symbols are kept alive process-wide, matching R_SymbolTable).
func (h *Heap) InternSymbol(sym *Cell) {
	h.roots.symbolTable = append(h.roots.symbolTable, sym)
}

// forwardRoots implements spec.md §4.3's scan order: builtin singletons,
// global environment / symbol table / top-level expression, the context
// chain's on-exit expressions, the protect stack, the preserved-objects
// list, and finally the scratch-allocator head (the older chunks of the
// scratch chain are reached through each chunk's attrib slot, see
// scratch.go).
func (h *Heap) forwardRoots(fwd func(*Cell)) {
	for _, s := range h.roots.builtins {
		fwd(s)
	}

	fwd(h.roots.globalEnv)
	for _, s := range h.roots.symbolTable {
		fwd(s)
	}
	fwd(h.roots.topLevelExpr)

	for ctx := h.roots.contexts; ctx != nil; ctx = ctx.parent {
		fwd(ctx.onExit)
	}

	for _, x := range h.roots.protectStack {
		fwd(x)
	}

	for n := h.roots.preserved; n != nil; n = n.next {
		fwd(n.cell)
	}

	fwd(h.scratch.head)
}
