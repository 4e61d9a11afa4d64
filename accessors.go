package cellheap

// Field readers. These never touch the write barrier since they don't
// mutate anything; they're plain accessors over the shared payload
// fields, with the variant-specific nicknames spec.md §3 names.

// Car, Cdr, and CellTag read the three pair-like slots directly. Prefer
// the variant nicknames below where the cell's tag is known.
func (c *Cell) Car() *Cell  { return c.car }
func (c *Cell) Cdr() *Cell  { return c.cdr }
func (c *Cell) CellTag() *Cell { return c.xtag }
func (c *Cell) Attrib() *Cell  { return c.attrib }

// Closure accessors.
func (c *Cell) Formals() *Cell    { return c.car }
func (c *Cell) Body() *Cell       { return c.cdr }
func (c *Cell) ClosureEnv() *Cell { return c.xtag }

// Symbol accessors.
func (c *Cell) PrintName() *Cell   { return c.car }
func (c *Cell) SymbolValue() *Cell { return c.cdr }
func (c *Cell) Internal() *Cell    { return c.xtag }

// Promise accessors.
func (c *Cell) PromiseExpr() *Cell  { return c.car }
func (c *Cell) PromiseEnv() *Cell   { return c.cdr }
func (c *Cell) PromiseValue() *Cell { return c.xtag }
func (c *Cell) PromiseSeen() bool   { return c.seen }

// Environment accessors.
func (c *Cell) Frame() *Cell   { return c.frame }
func (c *Cell) Enclos() *Cell  { return c.enclos }
func (c *Cell) Hashtab() *Cell { return c.hashtab }
func (c *Cell) Locked() bool   { return c.locked }

// External pointer accessors. Addr is deliberately untraced by the
// collector (spec.md §4.4 tie-breaks); it is the interpreter's
// responsibility to know what native resource it names.
func (c *Cell) ExternalPtrAddr() uintptr { return c.extAddr }
func (c *Cell) ExternalPtrTag() *Cell    { return c.extTag }
func (c *Cell) ExternalPtrProtected() *Cell { return c.extProt }

// Primitive accessor.
func (c *Cell) PrimitiveOffset() int { return c.offset }

// Vector accessors.
func (c *Cell) Length() int     { return c.length }
func (c *Cell) TrueLength() int { return c.trueLength }

// SetTrueLength adjusts the true-length accounting field used by the
// interpreter when it grows a vector in place without reallocating. It
// is a plain integer setter and bypasses the write barrier.
func (c *Cell) SetTrueLength(n int) { c.trueLength = n }

func (c *Cell) LogicalElt(i int) int32   { return c.vecLogical[i] }
func (c *Cell) IntegerElt(i int) int32   { return c.vecInt[i] }
func (c *Cell) RealElt(i int) float64    { return c.vecReal[i] }
func (c *Cell) ComplexElt(i int) complex128 { return c.vecComplex[i] }
func (c *Cell) VectorElt(i int) *Cell    { return c.vecCell[i] }

// StringBytes returns the raw bytes of a character-string cell, not
// including the trailing NUL spec.md §3 requires every such cell carry.
func (c *Cell) StringBytes() []byte {
	if len(c.vecBytes) == 0 {
		return nil
	}
	return c.vecBytes[:len(c.vecBytes)-1]
}

// Non-barrier numeric/flag element setters: spec.md §6 only requires the
// write barrier for cell-reference slots, so mutating a raw numeric
// vector element bypasses it entirely.
func (c *Cell) SetLogicalElt(i int, v int32)      { c.vecLogical[i] = v }
func (c *Cell) SetIntegerElt(i int, v int32)       { c.vecInt[i] = v }
func (c *Cell) SetRealElt(i int, v float64)        { c.vecReal[i] = v }
func (c *Cell) SetComplexElt(i int, v complex128)  { c.vecComplex[i] = v }

// SetStringBytes overwrites a character-string cell's payload in place;
// it must fit within the cell's existing capacity (length is fixed at
// allocation, matching R's CHARSXP immutability-by-convention).
func (c *Cell) SetStringBytes(b []byte) {
	copy(c.vecBytes, b)
	for i := len(b); i < len(c.vecBytes)-1; i++ {
		c.vecBytes[i] = 0
	}
}

// SetLocked flips an environment's locked flag; a plain flag setter.
func (c *Cell) SetLocked(locked bool) { c.locked = locked }
