package heap

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func unsafeBytes(addr uintptr, n int) []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(addr)), n)
}

func TestNew(t *testing.T) {
	tests := []struct {
		name        string
		reservation int
		wantErr     bool
	}{
		{"default", 0, false},
		{"small", 64 * 1024, false},
		{"exact_page", pageSize, false},
		{"unaligned_rounds_up", pageSize + 1, false},
		{"negative", -1, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var opts []Option
			if tt.reservation > 0 {
				opts = append(opts, WithReservation(tt.reservation))
			} else if tt.reservation < 0 {
				opts = append(opts, WithReservation(tt.reservation))
			}
			h, err := New(opts...)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			defer h.Close()
			assert.Equal(t, h.Lo(), h.Hi(), "fresh heap has nothing committed")
		})
	}
}

func TestExtendAdvancesBoundary(t *testing.T) {
	h, err := New(WithReservation(1 << 20))
	require.NoError(t, err)
	defer h.Close()

	lo := h.Lo()
	old, err := h.Extend(128)
	require.NoError(t, err)
	assert.Equal(t, lo, old)
	assert.Equal(t, lo+128, h.Hi())

	old2, err := h.Extend(64)
	require.NoError(t, err)
	assert.Equal(t, lo+128, old2)
	assert.Equal(t, lo+192, h.Hi())
}

func TestExtendIsReadWrite(t *testing.T) {
	h, err := New(WithReservation(1 << 20))
	require.NoError(t, err)
	defer h.Close()

	old, err := h.Extend(4096)
	require.NoError(t, err)

	buf := unsafeBytes(old, 4096)
	for i := range buf {
		buf[i] = byte(i)
	}
	for i := range buf {
		assert.Equal(t, byte(i), buf[i])
	}
}

func TestExtendFailsPastReservation(t *testing.T) {
	h, err := New(WithReservation(pageSize))
	require.NoError(t, err)
	defer h.Close()

	_, err = h.Extend(pageSize)
	require.NoError(t, err)

	_, err = h.Extend(1)
	assert.Error(t, err)
}

func TestExtendNegativeSize(t *testing.T) {
	h, err := New(WithReservation(1 << 20))
	require.NoError(t, err)
	defer h.Close()

	_, err = h.Extend(-1)
	assert.Error(t, err)
}
