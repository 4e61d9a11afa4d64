// Package cellheap is the memory-management core of a small dynamically
// typed interpreter: allocation of reference-graph cells, a non-moving
// generational mark-sweep collector with a write barrier, a protect-stack
// rooting discipline, a scratch allocator, and finalization.
//
// The package is not safe for concurrent use. Exactly one goroutine is
// expected to drive a Heap, matching the single-threaded cooperative model
// the interpreter itself assumes: allocation, mutation, and collection all
// happen synchronously on the mutator's own call stack.
package cellheap
