package match

import (
	"testing"

	"github.com/vmcore/cellheap"
)

// formal builds a one-element formals-list cell: car is unused (no
// default expression in these tests), tag carries the formal's symbol.
func formal(t *testing.T, h *cellheap.Heap, name string) *cellheap.Cell {
	t.Helper()
	sym, err := h.NewSymbol(name)
	if err != nil {
		t.Fatal(err)
	}
	c, err := h.Cons(h.Nil(), h.Nil())
	if err != nil {
		t.Fatal(err)
	}
	if err := h.SetTag(c, sym); err != nil {
		t.Fatal(err)
	}
	return c
}

func dotsFormal(t *testing.T, h *cellheap.Heap, dots *cellheap.Cell) *cellheap.Cell {
	t.Helper()
	c, err := h.Cons(h.Nil(), h.Nil())
	if err != nil {
		t.Fatal(err)
	}
	if err := h.SetTag(c, dots); err != nil {
		t.Fatal(err)
	}
	return c
}

// supplied builds a one-element supplied-argument cell with the given
// value and tag (nil tag means positional/untagged).
func supplied(t *testing.T, h *cellheap.Heap, value, tag *cellheap.Cell) *cellheap.Cell {
	t.Helper()
	c, err := h.Cons(value, h.Nil())
	if err != nil {
		t.Fatal(err)
	}
	if tag != nil {
		if err := h.SetTag(c, tag); err != nil {
			t.Fatal(err)
		}
	}
	return c
}

// chain links list cells (each already ending in nil) into a single
// list by rewriting each predecessor's cdr, mirroring how an interpreter
// builds an arg list node by node with SetCdr.
func chain(t *testing.T, h *cellheap.Heap, cells ...*cellheap.Cell) *cellheap.Cell {
	t.Helper()
	if len(cells) == 0 {
		return h.Nil()
	}
	for i := len(cells) - 2; i >= 0; i-- {
		if err := h.SetCdr(cells[i], cells[i+1]); err != nil {
			t.Fatal(err)
		}
	}
	return cells[0]
}

func newHeapAndDots(t *testing.T) (*cellheap.Heap, *cellheap.Cell) {
	t.Helper()
	h := cellheap.NewHeap(cellheap.DefaultTunables())
	dots, err := h.NewSymbol("...")
	if err != nil {
		t.Fatal(err)
	}
	return h, dots
}

// TestMatchArgsExactPartialAndDots is spec.md §8 scenario 4: formals
// (alpha, beta, ...) matched against supplied (al=1, bet=2, 3, 4) yields
// actuals (1, 2, dots=(3,4)).
func TestMatchArgsExactPartialAndDots(t *testing.T) {
	h, dots := newHeapAndDots(t)
	m := New(h, dots)

	alpha := formal(t, h, "alpha")
	beta := formal(t, h, "beta")
	dotsF := dotsFormal(t, h, dots)
	formals := chain(t, h, alpha, beta, dotsF)

	alSym, _ := h.NewSymbol("al")
	betSym, _ := h.NewSymbol("bet")
	one, _ := h.Cons(h.Nil(), h.Nil())
	two, _ := h.Cons(h.Nil(), h.Nil())
	three, _ := h.Cons(h.Nil(), h.Nil())
	four, _ := h.Cons(h.Nil(), h.Nil())

	s1 := supplied(t, h, one, alSym)
	s2 := supplied(t, h, two, betSym)
	s3 := supplied(t, h, three, nil)
	s4 := supplied(t, h, four, nil)
	args := chain(t, h, s1, s2, s3, s4)

	actuals, err := m.MatchArgs(formals, args)
	if err != nil {
		t.Fatal(err)
	}

	if actuals.Car() != one {
		t.Fatalf("alpha should bind to 1")
	}
	rest := actuals.Cdr()
	if rest.Car() != two {
		t.Fatalf("beta should bind to 2")
	}
	dotsList := rest.Cdr().Car()
	values := DottedValues(h, dotsList)
	if len(values) != 2 || values[0] != three || values[1] != four {
		t.Fatalf("dots should gather (3,4) in order, got %v", values)
	}
}

// TestMatchArgsMultipleExactMatch is the second half of spec.md §8
// scenario 4: supplied (alpha=1, alp=2) against formals (alpha, beta,
// ...) is an error, because the exact tag "alpha" and its abbreviation
// "alp" both try to claim the formal alpha.
func TestMatchArgsMultipleExactMatch(t *testing.T) {
	h, dots := newHeapAndDots(t)
	m := New(h, dots)

	alpha := formal(t, h, "alpha")
	beta := formal(t, h, "beta")
	dotsF := dotsFormal(t, h, dots)
	formals := chain(t, h, alpha, beta, dotsF)

	alphaSym, _ := h.NewSymbol("alpha")
	alpSym, _ := h.NewSymbol("alp")
	one, _ := h.Cons(h.Nil(), h.Nil())
	two, _ := h.Cons(h.Nil(), h.Nil())

	s1 := supplied(t, h, one, alphaSym)
	s2 := supplied(t, h, two, alpSym)
	args := chain(t, h, s1, s2)

	if _, err := m.MatchArgs(formals, args); err != ErrMultipleMatch {
		t.Fatalf("got %v, want ErrMultipleMatch", err)
	}
}

func TestMatchArgsUnusedArgument(t *testing.T) {
	h, dots := newHeapAndDots(t)
	m := New(h, dots)

	alpha := formal(t, h, "alpha")
	formals := chain(t, h, alpha)

	gammaSym, _ := h.NewSymbol("gamma")
	one, _ := h.Cons(h.Nil(), h.Nil())
	args := chain(t, h, supplied(t, h, one, gammaSym))

	if _, err := m.MatchArgs(formals, args); err != ErrUnusedArgument {
		t.Fatalf("got %v, want ErrUnusedArgument", err)
	}
}

func TestMatchArgsPositional(t *testing.T) {
	h, dots := newHeapAndDots(t)
	m := New(h, dots)

	alpha := formal(t, h, "alpha")
	beta := formal(t, h, "beta")
	formals := chain(t, h, alpha, beta)

	one, _ := h.Cons(h.Nil(), h.Nil())
	two, _ := h.Cons(h.Nil(), h.Nil())
	args := chain(t, h, supplied(t, h, one, nil), supplied(t, h, two, nil))

	actuals, err := m.MatchArgs(formals, args)
	if err != nil {
		t.Fatal(err)
	}
	if actuals.Car() != one || actuals.Cdr().Car() != two {
		t.Fatalf("positional match did not bind in order")
	}
}

// TestPsmatchDirection documents and locks in the prefix direction
// chosen over spec.md's looser prose: the supplied/abbreviated string
// must be a prefix of the full formal name, not the reverse. See
// DESIGN.md.
func TestPsmatchDirection(t *testing.T) {
	cases := []struct {
		formal, supplied string
		exact, want      bool
	}{
		{"alpha", "al", false, true},
		{"al", "alpha", false, false},
		{"alpha", "alpha", false, true},
		{"alpha", "alpha", true, true},
		{"alpha", "alph", true, false},
		{"alpha", "zzz", false, false},
	}
	for _, c := range cases {
		got := Psmatch([]byte(c.formal), []byte(c.supplied), c.exact)
		if got != c.want {
			t.Errorf("Psmatch(%q, %q, exact=%v) = %v, want %v", c.formal, c.supplied, c.exact, got, c.want)
		}
	}
}

func TestMatchArgsInvalidTagKind(t *testing.T) {
	h, dots := newHeapAndDots(t)
	m := New(h, dots)

	alpha := formal(t, h, "alpha")
	formals := chain(t, h, alpha)

	// A pair cell used as a tag is neither a symbol nor a character
	// string, matching match.c's pmatch failure mode.
	badTag, _ := h.Cons(h.Nil(), h.Nil())
	one, _ := h.Cons(h.Nil(), h.Nil())
	args := chain(t, h, supplied(t, h, one, badTag))

	if _, err := m.MatchArgs(formals, args); err != ErrInvalidPartialMatch {
		t.Fatalf("got %v, want ErrInvalidPartialMatch", err)
	}
}
