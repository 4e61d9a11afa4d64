// Package match implements positional/named/partial argument matching
// against a formal-parameter list (spec.md §4.5). It is the one piece of
// interpreter-proper logic this module carries, because it is the
// natural exerciser of cellheap's write-barrier-respecting mutation API:
// building the actuals and "dots" lists goes through Cons/ConsDotted/
// SetTag like any other interpreter code would.
//
// Grounded on matchArgs/pmatch/psmatch in
// original_source/src/main/match.c.
package match

import (
	"bytes"
	"errors"

	"golang.org/x/exp/slices"

	"github.com/vmcore/cellheap"
)

// Error kinds for spec.md §7's argument-matching entries.
var (
	ErrMultipleMatch       = errors.New("match: formal or supplied argument matched more than once")
	ErrUnusedArgument      = errors.New("match: supplied argument bound to no formal and no \"...\" present")
	ErrInvalidPartialMatch = errors.New("match: tag is neither a symbol nor a character-string")
)

// Matcher runs the three-pass protocol against a specific heap, using
// dotsSymbol as the distinguished "..." formal, identified by pointer
// equality (spec.md GLOSSARY "Dots formal": "not by name comparison").
type Matcher struct {
	heap *cellheap.Heap
	dots *cellheap.Cell
}

// New returns a Matcher bound to heap, treating dotsSymbol as the unique
// gather-all formal. dotsSymbol is ordinarily a single interned symbol
// the embedding interpreter allocates once at startup.
func New(heap *cellheap.Heap, dotsSymbol *cellheap.Cell) *Matcher {
	return &Matcher{heap: heap, dots: dotsSymbol}
}

func (m *Matcher) isDots(tag *cellheap.Cell) bool {
	return tag == m.dots
}

// tagBytes extracts the byte-string form of a tag cell, grounded on
// pmatch's switch over SYMSXP/CHARSXP/STRSXP in match.c (this package
// only needs the symbol and character-string cases; a tagged-string-
// vector-element tag never occurs in the formals/supplied shape spec.md
// §4.5 describes).
func tagBytes(c *cellheap.Cell) ([]byte, error) {
	switch c.Tag() {
	case cellheap.TagSymbol:
		return c.PrintName().StringBytes(), nil
	case cellheap.TagCharacterString:
		return c.StringBytes(), nil
	default:
		return nil, ErrInvalidPartialMatch
	}
}

// Psmatch implements psmatch(f, t, exact) from
// original_source/src/main/match.c: exact requires f and t be
// byte-for-byte equal; partial succeeds when t — the candidate,
// ordinarily an abbreviated form — is a prefix of f, the full name.
// Psmatch([]byte("alpha"), []byte("al"), false) is true, matching
// spec.md §4.5 scenario 4's worked example (formal "alpha" matched by
// supplied tag "al"). This is the reverse of the loose prose elsewhere
// in spec.md ("the formal's tag is a prefix of the supplied tag"); the
// grounded algorithm and spec's own worked example agree with each
// other and disagree with that sentence, so the algorithm wins — see
// DESIGN.md.
func Psmatch(f, t []byte, exact bool) bool {
	if exact {
		return bytes.Equal(f, t)
	}
	return bytes.HasPrefix(f, t)
}

func (m *Matcher) pmatch(formalTag, suppliedTag *cellheap.Cell, exact bool) (bool, error) {
	f, err := tagBytes(formalTag)
	if err != nil {
		return false, err
	}
	t, err := tagBytes(suppliedTag)
	if err != nil {
		return false, err
	}
	return Psmatch(f, t, exact), nil
}

// argSlot tracks a formal or supplied list cell plus its usage state
// (0 = unused, 1 = used by partial/positional match, 2 = used by exact
// match). This is cellheap's Go-native stand-in for the ARGUSED bit the
// original C packs into the list cell's LEVELS field — a pure local
// bookkeeping slice rather than a reused cell bitfield, since Cell's
// named/gp bits already carry unrelated meanings (shared-mutation
// history, finalizer pending) that argument matching must not disturb.
type argSlot struct {
	cell *cellheap.Cell
	used int
}

func listSlots(h *cellheap.Heap, list *cellheap.Cell) []argSlot {
	nilv := h.Nil()
	var out []argSlot
	for c := list; c != nilv; c = c.Cdr() {
		out = append(out, argSlot{cell: c})
	}
	return out
}

// MatchArgs runs the three-pass exact/partial/positional protocol of
// spec.md §4.5 against formals and supplied — both linked lists of
// cellheap pair cells whose third slot (CellTag) carries a symbol tag
// (formals) or a symbol/nil tag (supplied, nil meaning positional) — and
// returns an actuals list of the same length as formals, each entry
// bound per the protocol or left as the heap's missing-argument marker.
// Callers are responsible for keeping formals and supplied themselves
// reachable from a root for the duration of the call, the same
// obligation spec.md §4.3 places on any cellheap caller passing
// already-live cells across an operation that may itself allocate.
func (m *Matcher) MatchArgs(formals, supplied *cellheap.Cell) (*cellheap.Cell, error) {
	h := m.heap
	missing := h.MissingArg()

	formalSlots := listSlots(h, formals)
	suppliedSlots := listSlots(h, supplied)

	actualValues := make([]*cellheap.Cell, len(formalSlots))
	for i := range actualValues {
		actualValues[i] = missing
	}
	dotsIndex := -1

	// Pass 1: exact tag match.
	for fi := range formalSlots {
		ftag := formalSlots[fi].cell.CellTag()
		if m.isDots(ftag) {
			continue
		}
		for bi := range suppliedSlots {
			btag := suppliedSlots[bi].cell.CellTag()
			if btag.Tag() == cellheap.TagNil {
				continue
			}
			ok, err := m.pmatch(ftag, btag, true)
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}
			if formalSlots[fi].used == 2 || suppliedSlots[bi].used == 2 {
				return nil, ErrMultipleMatch
			}
			actualValues[fi] = suppliedSlots[bi].cell.Car()
			suppliedSlots[bi].used = 2
			formalSlots[fi].used = 2
		}
	}

	// Pass 2: partial tag match. Once a dots formal has been seen in the
	// scan, partial matching is disabled (exact only) for subsequent
	// formals — mirrored here by feeding seenDots as pmatch's exact flag.
	// A formal already bound by exact match that an unused tagged supplied
	// entry also partially matches would be claimed twice.
	seenDots := false
	for fi := range formalSlots {
		if formalSlots[fi].used == 2 && !seenDots {
			ftag := formalSlots[fi].cell.CellTag()
			for _, b := range suppliedSlots {
				if b.used == 2 || b.cell.CellTag().Tag() == cellheap.TagNil {
					continue
				}
				if ok, err := m.pmatch(ftag, b.cell.CellTag(), false); err != nil {
					return nil, err
				} else if ok {
					return nil, ErrMultipleMatch
				}
			}
		}
		if formalSlots[fi].used != 0 {
			continue
		}
		ftag := formalSlots[fi].cell.CellTag()
		if m.isDots(ftag) {
			if !seenDots {
				dotsIndex = fi
				seenDots = true
			}
			continue
		}
		for bi := range suppliedSlots {
			if suppliedSlots[bi].used == 2 {
				continue
			}
			btag := suppliedSlots[bi].cell.CellTag()
			if btag.Tag() == cellheap.TagNil {
				continue
			}
			ok, err := m.pmatch(ftag, btag, seenDots)
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}
			if suppliedSlots[bi].used != 0 {
				return nil, ErrMultipleMatch
			}
			if formalSlots[fi].used == 1 {
				return nil, ErrMultipleMatch
			}
			actualValues[fi] = suppliedSlots[bi].cell.Car()
			suppliedSlots[bi].used = 1
			formalSlots[fi].used = 1
		}
	}

	// Pass 3: positional. Walk formals and supplied in lock-step; skip
	// formals already matched; skip supplied entries already used or
	// carrying any tag; stop at the dots formal or when either list ends.
	fi, bi := 0, 0
	for fi < len(formalSlots) && bi < len(suppliedSlots) {
		ftag := formalSlots[fi].cell.CellTag()
		if m.isDots(ftag) {
			break
		}
		if actualValues[fi] != missing {
			fi++
			continue
		}
		b := &suppliedSlots[bi]
		if b.used != 0 || b.cell.CellTag().Tag() != cellheap.TagNil {
			bi++
			continue
		}
		actualValues[fi] = b.cell.Car()
		b.used = 1
		fi++
		bi++
	}

	// Dots gathering, or the unused-argument check.
	if dotsIndex >= 0 {
		var leftoverVals, leftoverTags []*cellheap.Cell
		for _, b := range suppliedSlots {
			if b.used == 0 {
				leftoverVals = append(leftoverVals, b.cell.Car())
				leftoverTags = append(leftoverTags, b.cell.CellTag())
			}
		}
		if len(leftoverVals) > 0 {
			dotsList, err := consDottedChain(h, leftoverVals, leftoverTags)
			if err != nil {
				return nil, err
			}
			protected := h.Protect(dotsList)
			defer h.Unprotect(1)
			actualValues[dotsIndex] = protected
		}
	} else {
		for _, b := range suppliedSlots {
			if b.used == 0 && b.cell.Car() != missing {
				return nil, ErrUnusedArgument
			}
		}
	}

	return buildActuals(h, actualValues)
}

// consDottedChain builds the dots list with SET_TAG-preserved tags, in
// original supplied order (SPEC_FULL.md §6.10: "tag-less supplied
// entries used up by dots must keep their original relative order"),
// using golang.org/x/exp/slices to walk the (already append-only built)
// value/tag slices back to front while reprotecting the accumulator the
// same way Heap.AllocList does across its own loop.
func consDottedChain(h *cellheap.Heap, values, tags []*cellheap.Cell) (*cellheap.Cell, error) {
	result := h.Nil()
	protIdx := -1
	for i := len(values) - 1; i >= 0; i-- {
		if protIdx < 0 {
			_, protIdx = h.ProtectWithIndex(result)
		} else {
			h.Reprotect(result, protIdx)
		}
		node, err := h.ConsDotted(values[i], result)
		if err != nil {
			if protIdx >= 0 {
				h.Unprotect(1)
			}
			return nil, err
		}
		if err := h.SetTag(node, tags[i]); err != nil {
			h.Unprotect(1)
			return nil, err
		}
		result = node
	}
	if protIdx >= 0 {
		h.Unprotect(1)
	}
	return result, nil
}

// buildActuals conses the final actuals list in formals order, same
// reprotect-across-loop discipline as consDottedChain/AllocList.
func buildActuals(h *cellheap.Heap, values []*cellheap.Cell) (*cellheap.Cell, error) {
	result := h.Nil()
	protIdx := -1
	for i := len(values) - 1; i >= 0; i-- {
		if protIdx < 0 {
			_, protIdx = h.ProtectWithIndex(result)
		} else {
			h.Reprotect(result, protIdx)
		}
		node, err := h.Cons(values[i], result)
		if err != nil {
			if protIdx >= 0 {
				h.Unprotect(1)
			}
			return nil, err
		}
		result = node
	}
	if protIdx >= 0 {
		h.Unprotect(1)
	}
	return result, nil
}

// DottedValues walks a dots list (as gathered into an actuals slot by
// MatchArgs) into a plain slice of (tag, value) pairs, for callers that
// want to iterate "..." without touching cellheap's list shape directly.
func DottedValues(h *cellheap.Heap, dots *cellheap.Cell) []*cellheap.Cell {
	var out []*cellheap.Cell
	nilv := h.Nil()
	for c := dots; c != nilv; c = c.Cdr() {
		out = append(out, c.Car())
	}
	return slices.Clip(out)
}
