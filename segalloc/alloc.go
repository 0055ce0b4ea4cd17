package segalloc

import (
	"fmt"
	"unsafe"

	"github.com/segalloc/segalloc/heap"
)

// defaultChunkSize is the number of bytes the heap is extended by on
// a find-fit miss, when that is larger than the request itself
// (original_source/malloc_lab.c's CHUNKSIZE). Requesting more than one
// block's worth per extension amortizes the cost of each heap.Extend
// call across many small allocations.
const defaultChunkSize = 168

// Arena is a single allocator instance over one heap.Heap. It is not
// safe for concurrent use; the allocator is a single-mutator design
// (spec §5).
type Arena struct {
	heap        *heap.Heap
	free        freelist
	firstHeader uintptr
}

// New creates an allocator over h, laying down the bucket table,
// prologue/epilogue sentinels, and an initial free chunk (spec §4.6).
func New(h *heap.Heap) (*Arena, error) {
	a := &Arena{heap: h}

	tableBase, err := h.Extend(bucketTableSize)
	if err != nil {
		return nil, fmt.Errorf("segalloc: allocate bucket table: %w", err)
	}
	a.free = newFreelist(tableBase)

	padAddr, err := h.Extend(4 * 4)
	if err != nil {
		return nil, fmt.Errorf("segalloc: allocate sentinels: %w", err)
	}
	prologueHeader := padAddr + 4
	prologueFooter := prologueHeader + 4
	epilogueHeader := prologueFooter + 4
	writeWord(prologueHeader, pack(prologueSize, true, false))
	writeWord(prologueFooter, pack(prologueSize, true, false))
	writeWord(epilogueHeader, pack(epilogueSize, true, true))
	a.firstHeader = epilogueHeader

	if _, err := a.extend(defaultChunkSize); err != nil {
		return nil, fmt.Errorf("segalloc: allocate initial chunk: %w", err)
	}
	return a, nil
}

// extend grows the heap by words bytes (rounded up to a multiple of
// 8), turning the displaced epilogue into the new block's header,
// writing a fresh epilogue past it, and coalescing the result with
// whatever free block precedes it (spec §4.6 extend).
//
// heap.Extend(words) commits words bytes starting at the old epilogue's
// position plus one header word (the epilogue itself was already
// committed), so the new block's header reuses that old epilogue word
// rather than starting where the freshly committed range begins.
func (a *Arena) extend(words uint32) (uintptr, error) {
	words = uint32(align8(uintptr(words)))

	newMem, err := a.heap.Extend(int(words))
	if err != nil {
		return 0, err
	}
	header := newMem - headerSize

	prevAlloc := isPrevAlloc(readWord(header))
	writeWord(header, pack(words, false, prevAlloc))
	writeWord(footerAddr(payloadAddr(header), words), pack(words, false, prevAlloc))

	newEpilogue := header + uintptr(words)
	writeWord(newEpilogue, pack(epilogueSize, true, false))

	return a.coalesce(payloadAddr(header)), nil
}

// Alloc returns a pointer to an 8-byte-aligned block of at least n
// bytes, or nil if n is not positive or the heap cannot be extended
// further (spec §6.2, §4.3).
func (a *Arena) Alloc(n int) []byte {
	if n <= 0 {
		return nil
	}
	asize := adjustedSize(n)

	payload := a.findFit(asize)
	if payload == 0 {
		chunk := asize
		if chunk < defaultChunkSize {
			chunk = defaultChunkSize
		}
		var err error
		payload, err = a.extend(chunk)
		if err != nil {
			return nil
		}
	}

	a.place(payload, asize)

	blockSize := sizeOf(readWord(headerAddr(payload)))
	capacity := int(blockSize) - headerSize
	return unsafe.Slice((*byte)(unsafe.Pointer(payload)), capacity)[:n]
}

// ZeroedAlloc allocates space for m elements of s bytes each and zeros
// the resulting m*s bytes before returning (spec §6.2 zeroed_alloc).
func (a *Arena) ZeroedAlloc(m, s int) []byte {
	if m <= 0 || s <= 0 {
		return nil
	}
	total := m * s
	if total/s != m {
		return nil // overflow
	}
	buf := a.Alloc(total)
	if buf == nil {
		return nil
	}
	for i := range buf {
		buf[i] = 0
	}
	return buf
}

// Free returns p's block to the allocator. p == nil is a no-op;
// freeing a pointer not currently allocated by this Arena is
// undefined behaviour (spec §7) and panics if detected cheaply.
func (a *Arena) Free(p []byte) {
	if len(p) == 0 {
		return
	}
	payload := *(*uintptr)(unsafe.Pointer(&p))
	header := headerAddr(payload)
	word := readWord(header)
	if !isAlloc(word) {
		panic("segalloc: double free or invalid block")
	}

	size := sizeOf(word)
	prevAlloc := isPrevAlloc(word)
	writeWord(header, pack(size, false, prevAlloc))
	writeWord(footerAddr(payload, size), pack(size, false, prevAlloc))
	a.setPrevAllocOfSuccessor(nextBlockHeader(header, size), false)

	a.coalesce(payload)
}

// Resize changes the size of the block pointed to by p, preferring an
// in-place no-op when the block already satisfies n, otherwise
// allocating fresh space, copying min(old, n) bytes, and freeing p
// (spec §4.5). It never over-reads past p's current length, unlike
// original_source/malloc_lab.c's realloc.
func (a *Arena) Resize(p []byte, n int) []byte {
	if p == nil {
		return a.Alloc(n)
	}
	if n == 0 {
		a.Free(p)
		return nil
	}

	old := cap(p)
	if n <= old {
		return p[:n]
	}

	q := a.Alloc(n)
	if q == nil {
		return nil
	}
	copy(q, p)
	a.Free(p)
	return q
}
