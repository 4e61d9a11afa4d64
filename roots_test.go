package cellheap

import "testing"

func TestProtectUnprotectIsIdentity(t *testing.T) {
	h := NewHeap(DefaultTunables())
	depth := len(h.roots.protectStack)

	x, err := h.Cons(h.Nil(), h.Nil())
	if err != nil {
		t.Fatal(err)
	}
	h.Protect(x)
	if len(h.roots.protectStack) != depth+1 {
		t.Fatalf("protect did not push")
	}
	if err := h.Unprotect(1); err != nil {
		t.Fatal(err)
	}
	if len(h.roots.protectStack) != depth {
		t.Fatalf("protect followed by unprotect(1) is not an identity on stack depth")
	}
}

func TestUnprotectImbalance(t *testing.T) {
	h := NewHeap(DefaultTunables())
	if err := h.Unprotect(len(h.roots.protectStack) + 1); err != ErrUnprotectImbalance {
		t.Fatalf("got %v, want ErrUnprotectImbalance", err)
	}
}

func TestUnprotectPtr(t *testing.T) {
	h := NewHeap(DefaultTunables())
	a, _ := h.Cons(h.Nil(), h.Nil())
	b, _ := h.Cons(h.Nil(), h.Nil())
	c, _ := h.Cons(h.Nil(), h.Nil())
	h.Protect(a)
	h.Protect(b)
	h.Protect(c)

	if err := h.UnprotectPtr(b); err != nil {
		t.Fatal(err)
	}
	// a and c must remain, in order, with b gone.
	stack := h.roots.protectStack
	if stack[len(stack)-1] != c || stack[len(stack)-2] != a {
		t.Fatalf("UnprotectPtr did not slide the suffix down correctly")
	}

	if err := h.UnprotectPtr(b); err != ErrUnprotectPtrMissing {
		t.Fatalf("got %v, want ErrUnprotectPtrMissing", err)
	}
	h.Unprotect(2)
}

func TestReprotect(t *testing.T) {
	h := NewHeap(DefaultTunables())
	a, _ := h.Cons(h.Nil(), h.Nil())
	b, _ := h.Cons(h.Nil(), h.Nil())
	_, idx := h.ProtectWithIndex(a)
	h.Reprotect(b, idx)
	if h.roots.protectStack[idx] != b {
		t.Fatalf("reprotect did not overwrite the slot")
	}
	h.Unprotect(1)
}

func TestPreserveRelease(t *testing.T) {
	h := NewHeap(DefaultTunables())
	x, _ := h.Cons(h.Nil(), h.Nil())
	h.Preserve(x)

	found := false
	for n := h.roots.preserved; n != nil; n = n.next {
		if n.cell == x {
			found = true
		}
	}
	if !found {
		t.Fatalf("preserve did not add cell to preserved list")
	}

	h.Release(x)
	for n := h.roots.preserved; n != nil; n = n.next {
		if n.cell == x {
			t.Fatalf("release did not remove cell from preserved list")
		}
	}
}

func TestContextChain(t *testing.T) {
	h := NewHeap(DefaultTunables())
	e1, _ := h.Cons(h.Nil(), h.Nil())
	e2, _ := h.Cons(h.Nil(), h.Nil())
	h.PushContext(e1)
	h.PushContext(e2)
	if h.roots.contexts.onExit != e2 {
		t.Fatalf("innermost context should be e2")
	}
	h.PopContext()
	if h.roots.contexts.onExit != e1 {
		t.Fatalf("pop did not expose the outer context")
	}
	h.PopContext()
	if h.roots.contexts != nil {
		t.Fatalf("context chain should be empty after popping both")
	}
}
