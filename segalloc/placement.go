package segalloc

// findFit searches the segregated index for a free block of at least
// asize bytes, first-fit within a bucket, then ascending bucket order
// (spec §4.3). It returns the block's payload address, or 0 on a
// miss.
func (a *Arena) findFit(asize uint32) uintptr {
	start := classify(asize)
	for k := start; k < numBuckets; k++ {
		var found uintptr
		a.free.walk(k, func(payload uintptr) bool {
			size := sizeOf(readWord(headerAddr(payload)))
			if size >= asize {
				found = payload
				return false
			}
			return true
		})
		if found != 0 {
			return found
		}
	}
	return 0
}

// place removes the free block at payload from its bucket and
// allocates asize bytes of it, splitting off a free remainder when
// the leftover is large enough to hold one (spec §4.3 step 3-4).
func (a *Arena) place(payload uintptr, asize uint32) {
	header := headerAddr(payload)
	blockSize := sizeOf(readWord(header))
	prevAlloc := isPrevAlloc(readWord(header))

	a.free.remove(payload, blockSize)

	remainder := blockSize - asize
	if remainder >= minBlockSize {
		writeWord(header, pack(asize, true, prevAlloc))

		nextHeader := nextBlockHeader(header, asize)
		writeWord(nextHeader, pack(remainder, false, true))
		nextFooter := footerAddr(payloadAddr(nextHeader), remainder)
		writeWord(nextFooter, pack(remainder, false, true))
		a.free.insert(payloadAddr(nextHeader), remainder)

		a.setPrevAllocOfSuccessor(nextBlockHeader(nextHeader, remainder), false)
	} else {
		writeWord(header, pack(blockSize, true, prevAlloc))
		a.setPrevAllocOfSuccessor(nextBlockHeader(header, blockSize), true)
	}
}

// setPrevAllocOfSuccessor rewrites the P bit of the block whose
// header begins at succHeader, updating its footer too if it is
// itself free.
func (a *Arena) setPrevAllocOfSuccessor(succHeader uintptr, prevAlloc bool) {
	word := readWord(succHeader)
	newWord := pack(sizeOf(word), isAlloc(word), prevAlloc)
	writeWord(succHeader, newWord)
	if !isAlloc(word) {
		writeWord(footerAddr(payloadAddr(succHeader), sizeOf(word)), newWord)
	}
}
