package segalloc

import (
	"bytes"
	"testing"

	"github.com/bytedance/gopkg/lang/dirtmake"
	"github.com/bytedance/gopkg/lang/fastrand"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestExhaustionLeavesHeapConsistent drives the allocator to OOM with
// repeated large allocations (spec §8.3 scenario 6): the call that
// finally returns nil must still leave Check passing and every prior
// pointer readable.
func TestExhaustionLeavesHeapConsistent(t *testing.T) {
	a := newTestArena(t)

	var live [][]byte
	for i := 0; i < 64; i++ {
		p := a.Alloc(1 << 20)
		if p == nil {
			break
		}
		for j := range p {
			p[j] = byte(i)
		}
		live = append(live, p)
	}

	require.NotEmpty(t, live, "expected at least one successful allocation before exhaustion")

	var buf bytes.Buffer
	assert.True(t, a.Check(&buf, false), "heap must stay consistent after OOM: %s", buf.String())

	for i, p := range live {
		for j := range p {
			assert.Equal(t, byte(i), p[j], "prior allocation %d corrupted after OOM", i)
		}
	}
}

// TestRandomAllocFreeSequenceStaysConsistent exercises a pseudo-random
// mix of allocations and frees of varying size, running Check once after
// the whole sequence, using fastrand for cheap size/index generation
// (the same low-overhead randomness source the teacher's ecosystem
// reaches for in hot paths).
func TestRandomAllocFreeSequenceStaysConsistent(t *testing.T) {
	a := newTestArena(t)

	type live struct {
		buf  []byte
		want byte
	}
	var blocks []live

	for i := 0; i < 500; i++ {
		if len(blocks) > 0 && fastrand.Intn(3) == 0 {
			idx := fastrand.Intn(len(blocks))
			a.Free(blocks[idx].buf)
			blocks[idx] = blocks[len(blocks)-1]
			blocks = blocks[:len(blocks)-1]
			continue
		}

		size := 1 + fastrand.Intn(2048)
		p := a.Alloc(size)
		if p == nil {
			continue
		}
		tag := byte(fastrand.Intn(256))
		for j := range p {
			p[j] = tag
		}
		blocks = append(blocks, live{buf: p, want: tag})
	}

	var buf bytes.Buffer
	require.True(t, a.Check(&buf, false), "heap inconsistent after random sequence: %s", buf.String())

	for _, b := range blocks {
		for _, got := range b.buf {
			require.Equal(t, b.want, got)
		}
	}
}

// TestResizeCopyPreservation exercises the "copy preservation" law
// (spec §8.2) against a scratch comparison buffer built with dirtmake,
// mirroring bufiox's use of dirtmake for buffer growth without paying
// make's zeroing cost on a buffer that is about to be fully
// overwritten anyway.
func TestResizeCopyPreservation(t *testing.T) {
	a := newTestArena(t)

	want := dirtmake.Bytes(300, 300)
	for i := range want {
		want[i] = byte(i)
	}

	p := a.Alloc(300)
	copy(p, want)

	q := a.Resize(p, 600)
	require.NotNil(t, q)
	assert.Equal(t, want, q[:300])

	var buf bytes.Buffer
	assert.True(t, a.Check(&buf, false), "check failed: %s", buf.String())
}
