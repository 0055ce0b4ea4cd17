// Package segalloc implements a segregated free-list dynamic memory
// allocator over a single heap.Heap region: in-band block headers and
// boundary-tag footers, twelve size-class free lists, a first-fit
// placement engine with splitting, immediate coalescing of adjacent
// free blocks, and a traversal-based consistency checker.
//
// All payload pointers returned by Alloc, ZeroedAlloc, and Resize are
// 8-byte aligned and remain valid until passed to Free or Resize.
package segalloc
