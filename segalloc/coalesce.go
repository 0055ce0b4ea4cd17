package segalloc

// coalesce merges a just-freed (or freshly extended) block at payload
// with its physically adjacent free neighbours, re-indexing as needed,
// and returns the payload address of the resulting block (spec §4.4).
//
// The merge decision is a flat switch over the 2-bit discriminant
// {prevAlloc, nextAlloc}, per this spec's own design notes: a switch
// over four arms reads clearer than nested conditionals and matches
// the source's intent without mirroring its redundant
// rem_free_blk/add_free_blk pairing.
func (a *Arena) coalesce(payload uintptr) uintptr {
	header := headerAddr(payload)
	size := sizeOf(readWord(header))
	prevAlloc := isPrevAlloc(readWord(header))

	nextHeader := nextBlockHeader(header, size)
	nextAlloc := isAlloc(readWord(nextHeader))

	switch {
	case prevAlloc && nextAlloc:
		a.free.insert(payload, size)
		return payload

	case prevAlloc && !nextAlloc:
		nextPayload := payloadAddr(nextHeader)
		nextSize := sizeOf(readWord(nextHeader))
		a.free.remove(nextPayload, nextSize)

		merged := size + nextSize
		writeWord(header, pack(merged, false, prevAlloc))
		writeWord(footerAddr(payload, merged), pack(merged, false, prevAlloc))
		a.free.insert(payload, merged)
		a.setPrevAllocOfSuccessor(nextBlockHeader(header, merged), false)
		return payload

	case !prevAlloc && nextAlloc:
		prevPayload := prevBlockPayload(payload)
		prevHeader := headerAddr(prevPayload)
		prevSize := sizeOf(readWord(prevHeader))
		a.free.remove(prevPayload, prevSize)

		merged := prevSize + size
		prevPrevAlloc := isPrevAlloc(readWord(prevHeader))
		writeWord(prevHeader, pack(merged, false, prevPrevAlloc))
		writeWord(footerAddr(prevPayload, merged), pack(merged, false, prevPrevAlloc))
		a.free.insert(prevPayload, merged)
		a.setPrevAllocOfSuccessor(nextBlockHeader(prevHeader, merged), false)
		return prevPayload

	default: // !prevAlloc && !nextAlloc
		prevPayload := prevBlockPayload(payload)
		prevHeader := headerAddr(prevPayload)
		prevSize := sizeOf(readWord(prevHeader))
		nextPayload := payloadAddr(nextHeader)
		nextSize := sizeOf(readWord(nextHeader))

		a.free.remove(prevPayload, prevSize)
		a.free.remove(nextPayload, nextSize)

		merged := prevSize + size + nextSize
		prevPrevAlloc := isPrevAlloc(readWord(prevHeader))
		writeWord(prevHeader, pack(merged, false, prevPrevAlloc))
		writeWord(footerAddr(prevPayload, merged), pack(merged, false, prevPrevAlloc))
		a.free.insert(prevPayload, merged)
		a.setPrevAllocOfSuccessor(nextBlockHeader(prevHeader, merged), false)
		return prevPayload
	}
}
