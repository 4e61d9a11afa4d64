package cellheap

// Tag identifies the variant a Cell currently holds. It is the single
// discriminant the rest of the package switches on; there is no virtual
// dispatch, matching the tag-switch approach the teacher's mark phase and
// the remembered-set aging phase both use for traversing children.
type Tag uint8

const (
	TagNil Tag = iota
	TagSymbol
	TagPair             // ordinary cons cell / list
	TagClosure
	TagEnvironment
	TagPromise
	TagLanguage         // a call/language form, same shape as Pair
	TagDottedPair       // a "dots" list built from leftover arguments
	TagSpecial
	TagBuiltin
	TagCharacterString
	TagLogicalVector
	TagIntegerVector
	TagRealVector
	TagComplexVector
	TagStringVector
	TagExpressionVector
	TagGenericVector
	TagExternalPointer
	TagAny
)

func (t Tag) String() string {
	switch t {
	case TagNil:
		return "nil"
	case TagSymbol:
		return "symbol"
	case TagPair:
		return "pair"
	case TagClosure:
		return "closure"
	case TagEnvironment:
		return "environment"
	case TagPromise:
		return "promise"
	case TagLanguage:
		return "language"
	case TagDottedPair:
		return "dotted-pair"
	case TagSpecial:
		return "special"
	case TagBuiltin:
		return "builtin"
	case TagCharacterString:
		return "character-string"
	case TagLogicalVector:
		return "logical-vector"
	case TagIntegerVector:
		return "integer-vector"
	case TagRealVector:
		return "real-vector"
	case TagComplexVector:
		return "complex-vector"
	case TagStringVector:
		return "string-vector"
	case TagExpressionVector:
		return "expression-vector"
	case TagGenericVector:
		return "generic-vector"
	case TagExternalPointer:
		return "external-pointer"
	case TagAny:
		return "any"
	default:
		return "unknown-tag"
	}
}

// isPairLike reports whether t's payload is the three-cell-reference shape
// (car, cdr, xtag) shared by pairs, language forms, dotted lists, closures,
// promises, and symbols.
func (t Tag) isPairLike() bool {
	switch t {
	case TagPair, TagLanguage, TagDottedPair, TagClosure, TagPromise, TagSymbol:
		return true
	default:
		return false
	}
}

func (t Tag) isVector() bool {
	switch t {
	case TagLogicalVector, TagIntegerVector, TagRealVector, TagComplexVector,
		TagStringVector, TagExpressionVector, TagGenericVector, TagCharacterString:
		return true
	default:
		return false
	}
}

// hasNoCellChildren reports the leaf tags the mark phase and the
// remembered-set aging phase both skip: nil, primitives, and the
// byte/numeric vectors whose elements are not cell references.
// Character-strings store their bytes inline but carry no cell children,
// even though their storage lives in the node (spec.md §4.4, tie-breaks).
func (t Tag) hasNoCellChildren() bool {
	switch t {
	case TagNil, TagSpecial, TagBuiltin, TagCharacterString,
		TagLogicalVector, TagIntegerVector, TagRealVector, TagComplexVector:
		return true
	default:
		return false
	}
}

// NodeClass is a size bucket for cells. Class 0 is the fixed non-vector
// layout; classes 1..numSmallClasses-1 are small inline-payload vector
// buckets; the highest index is the large class, allocated separately per
// request rather than carved from a page.
type NodeClass int

const (
	numOldGenerations = 2 // G in spec.md: two old generations plus the implicit young state
	numNodeClasses    = 8
	largeNodeClass    = NodeClass(numNodeClasses - 1)
	numSmallClasses   = numNodeClasses - 1
)

// nodeClassWords holds the inline vector-element capacity, in "vector
// words" (8 bytes each, matching VECREC in original_source/memory.c), of
// each small class. Class 0 carries no inline vector storage. Grounded on
// original_source/src/main/memory.c's NodeClassSize = {0,1,2,4,6,8,16}.
var nodeClassWords = [numSmallClasses]int{0, 1, 2, 4, 6, 8, 16}

// Cell is the universal heap record. Every allocation, regardless of tag,
// is one Cell; the payload fields below are interpreted according to tag,
// mirroring the tagged-union SEXPREC struct in original_source/memory.c
// and the single mspan/mcentral record shapes in the teacher's runtime.
//
// Only a handful of fields apply to any one tag at a time (see the
// per-tag accessors in accessors.go and the mutators in write_barrier.go);
// keeping them all on one struct avoids Go's lack of a real union while
// preserving the "one record shape for everything" property the design
// depends on (DO_CHILDREN-style traversal switches on tag, not on type).
type Cell struct {
	tag    Tag
	marked bool
	gen    uint8 // meaningful only while marked; promoted cells are capped at numOldGenerations-1
	class  uint8 // NodeClass this cell belongs to
	named  uint8 // 0, 1, 2: shared-mutation history used by interpreter copy-on-assign decisions
	gp     bool  // general-purpose bit; finalizer registry uses it as "pending"

	next, prev *Cell // circular doubly linked list membership (free/new/old[g]/old-to-new[g]/work list)
	attrib     *Cell

	// Pair-like payload: pair/list, language form, dotted list, closure,
	// promise, symbol. Variant-specific nicknames are exposed as methods
	// in accessors.go (Formals/Body/ClosureEnv, PromiseExpr/.../PromiseValue,
	// PrintName/SymbolValue/Internal) that alias these same three slots.
	car, cdr, xtag *Cell
	seen           bool // promise-only "has this promise been forced" flag

	// Environment payload.
	frame, enclos, hashtab *Cell
	locked                 bool

	// Vector payload. Exactly one of the typed slices below is non-nil,
	// chosen by tag. Length is the number of logical elements; trueLength
	// tracks a larger backing capacity the way R's TRUELENGTH does for
	// vectors grown in place by the interpreter.
	length, trueLength int
	vecBytes           []byte // TagCharacterString (NUL-terminated semantics enforced by accessors)
	vecLogical         []int32
	vecInt             []int32
	vecReal            []float64
	vecComplex         []complex128
	vecCell            []*Cell // string-vector / expression-vector / generic-vector elements

	// External pointer payload. The address is deliberately an untraced
	// uintptr, not unsafe.Pointer: the collector must never treat it as a
	// managed reference (spec.md §4.4 tie-breaks: "only the cell
	// references are traversed").
	extAddr uintptr
	extProt *Cell
	extTag  *Cell

	// Primitive payload (special/builtin): offset into an external table
	// of native implementations the interpreter owns.
	offset int
}

// Tag reports the cell's current variant tag.
func (c *Cell) Tag() Tag { return c.tag }

// IsNil reports whether c is the distinguished nil singleton.
func (c *Cell) IsNil() bool { return c.tag == TagNil }

// Named reports the shared-mutation counter (0, 1, or 2).
func (c *Cell) Named() uint8 { return c.named }

// SetNamed sets the shared-mutation counter. It does not touch cell
// references, so it never needs the write barrier.
func (c *Cell) SetNamed(n uint8) { c.named = n }

func (c *Cell) class_() NodeClass { return NodeClass(c.class) }
