// Package heap is the allocator's sole external collaborator: a single
// contiguous, linearly extensible region of virtual memory.
//
// It reserves address space once, up front, with no read/write
// permission, and commits pages into that reservation as Extend is
// called. The reservation never moves, so raw pointers handed out by
// package segalloc remain valid for the life of the Heap.
package heap

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

// DefaultReservation is the size, in bytes, reserved by New when no
// WithReservation option is given. It is large enough to cover every
// scenario in the allocator's test suite, including the exhaustion
// scenario, while costing no physical memory until committed.
const DefaultReservation = 1 << 30 // 1 GiB

const pageSize = 4096

// Heap owns a single reserved virtual memory region and the
// monotonically advancing boundary between its committed ("hot") and
// reserved-but-untouched prefix.
type Heap struct {
	region []byte // full PROT_NONE reservation, fixed for the Heap's life
	base   uintptr
	brk    uintptr // current high boundary of committed memory
	cap    uintptr // base + len(region); Extend beyond this fails
}

// Option configures a Heap at construction time.
type Option func(*config)

type config struct {
	reservation int
}

// WithReservation overrides DefaultReservation. n is rounded up to a
// page multiple.
func WithReservation(n int) Option {
	return func(c *config) { c.reservation = n }
}

// New reserves a fresh virtual memory region and returns a Heap with
// nothing yet committed (Lo() == Hi()).
func New(opts ...Option) (*Heap, error) {
	cfg := config{reservation: DefaultReservation}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.reservation <= 0 {
		return nil, fmt.Errorf("heap: reservation must be positive, got %d", cfg.reservation)
	}
	size := roundUpPage(cfg.reservation)

	region, err := unix.Mmap(-1, 0, size, unix.PROT_NONE, unix.MAP_PRIVATE|unix.MAP_ANONYMOUS)
	if err != nil {
		return nil, fmt.Errorf("heap: reserve %d bytes: %w", size, err)
	}

	base := uintptr(unsafe.Pointer(&region[0]))
	return &Heap{
		region: region,
		base:   base,
		brk:    base,
		cap:    base + uintptr(size),
	}, nil
}

// Close releases the reserved region. The Heap must not be used
// afterwards.
func (h *Heap) Close() error {
	if h.region == nil {
		return nil
	}
	err := unix.Munmap(h.region)
	h.region = nil
	return err
}

// Extend advances the commit boundary by n bytes, granting
// read/write access to the newly committed pages, and returns the
// previous boundary (the first newly committed byte).
// It fails if the reservation is exhausted.
func (h *Heap) Extend(n int) (uintptr, error) {
	if n < 0 {
		return 0, fmt.Errorf("heap: extend by negative size %d", n)
	}
	old := h.brk
	newBrk := old + uintptr(n)
	if newBrk > h.cap {
		return 0, fmt.Errorf("heap: out of memory: reservation exhausted (requested %d more bytes)", n)
	}

	firstPage := pageFloor(old - h.base)
	lastPage := pageCeil(newBrk - h.base)
	if lastPage > firstPage {
		start := int(firstPage)
		length := int(lastPage - firstPage)
		if err := unix.Mprotect(h.region[start:start+length], unix.PROT_READ|unix.PROT_WRITE); err != nil {
			return 0, fmt.Errorf("heap: commit %d bytes: %w", length, err)
		}
	}

	h.brk = newBrk
	return old, nil
}

// Lo returns the current low address of the heap (the base of the
// reservation; nothing before it is ever part of a block).
func (h *Heap) Lo() uintptr { return h.base }

// Hi returns the current high address of the heap: one past the last
// committed byte.
func (h *Heap) Hi() uintptr { return h.brk }

func roundUpPage(n int) int {
	return int(pageCeil(uintptr(n)))
}

func pageFloor(n uintptr) uintptr { return n &^ (pageSize - 1) }
func pageCeil(n uintptr) uintptr  { return pageFloor(n+pageSize-1) }
