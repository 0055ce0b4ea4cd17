package segalloc

import "unsafe"

// Block encoding (spec §3.2): a 4-byte header word per block. The
// high 29 bits hold the block's total size (a multiple of 8); the low
// 3 bits hold the allocated flag (bit 0), the previous-physical-block
// allocated flag (bit 1), and a reserved bit (bit 2, always 0).
//
// Allocated blocks carry no footer. Free blocks carry a 4-byte footer
// identical to the header, plus 8-byte next/prev free-list links at
// payload offsets 0 and 8.
const (
	headerSize = 4
	flagAlloc     uint32 = 0x1
	flagPrevAlloc uint32 = 0x2
	flagMask      uint32 = 0x7

	minBlockSize = 24 // header(4) + next(8) + prev(8) + footer(4)

	prologueSize = 8
	epilogueSize = 0
)

// pack combines a size and flag bits into a header/footer word.
func pack(size uint32, alloc, prevAlloc bool) uint32 {
	v := size &^ flagMask
	if alloc {
		v |= flagAlloc
	}
	if prevAlloc {
		v |= flagPrevAlloc
	}
	return v
}

func sizeOf(word uint32) uint32    { return word &^ flagMask }
func isAlloc(word uint32) bool     { return word&flagAlloc != 0 }
func isPrevAlloc(word uint32) bool { return word&flagPrevAlloc != 0 }

// readWord returns the 4-byte header/footer word at addr.
func readWord(addr uintptr) uint32 {
	return *(*uint32)(unsafe.Pointer(addr))
}

func writeWord(addr uintptr, v uint32) {
	*(*uint32)(unsafe.Pointer(addr)) = v
}

// headerAddr returns the address of a block's header, given its
// payload address.
func headerAddr(payload uintptr) uintptr { return payload - headerSize }

// payloadAddr returns the payload address for a block whose header
// begins at headerAddr.
func payloadAddr(header uintptr) uintptr { return header + headerSize }

// footerAddr returns the address of a free block's footer. Only valid
// when the block is free.
func footerAddr(payload uintptr, size uint32) uintptr {
	return payload + uintptr(size) - headerSize - headerSize
}

// nextBlockHeader returns the header address of the block physically
// following the one whose header is at header.
func nextBlockHeader(header uintptr, size uint32) uintptr {
	return header + uintptr(size)
}

// prevBlockPayload returns the payload address of the block
// physically preceding payload, valid only when that predecessor is
// free (so its footer, at payload-8, can be read backwards).
func prevBlockPayload(payload uintptr) uintptr {
	prevFooter := payload - headerSize - headerSize
	prevSize := sizeOf(readWord(prevFooter))
	prevHeader := payload - headerSize - uintptr(prevSize)
	return payloadAddr(prevHeader)
}

// freeLinks are the two pointer-sized fields stored at the start of a
// free block's payload: next and prev free-list neighbours.
func nextLinkAddr(payload uintptr) uintptr { return payload }
func prevLinkAddr(payload uintptr) uintptr { return payload + 8 }

func readPtr(addr uintptr) uintptr {
	return *(*uintptr)(unsafe.Pointer(addr))
}

func writePtr(addr uintptr, v uintptr) {
	*(*uintptr)(unsafe.Pointer(addr)) = v
}

// align8 rounds n up to the nearest multiple of 8.
func align8(n uintptr) uintptr {
	return (n + 7) &^ 7
}

// adjustedSize computes the block size (including header overhead) to
// allocate for a client request of n bytes, per spec §4.3's tie-break
// rules. A request of 0 is handled by the caller before this is
// reached.
func adjustedSize(n int) uint32 {
	if n <= 16 {
		return minBlockSize
	}
	return uint32(align8(uintptr(n) + headerSize))
}
