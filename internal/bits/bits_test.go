// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package bits

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromUint64RoundTrip(t *testing.T) {
	tests := []struct {
		name string
		n    int
		v    uint64
	}{
		{"zero width zero value", 0, 0},
		{"byte aligned", 8, 0xab},
		{"unaligned width", 12, 0xabc},
		{"full 64 bits", 64, 0xdeadbeefcafef00d},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := FromUint64(tt.n, tt.v)
			require.NoError(t, err)
			assert.Equal(t, tt.n, b.Width())
			got, err := b.Uint64()
			require.NoError(t, err)
			assert.Equal(t, tt.v, got)
		})
	}
}

func TestFromUint64OverflowRejected(t *testing.T) {
	_, err := FromUint64(4, 0x10)
	assert.Error(t, err)
}

func TestFromUint64WidthOutOfRange(t *testing.T) {
	_, err := FromUint64(65, 0)
	assert.Error(t, err)

	_, err = FromUint64(-1, 0)
	assert.Error(t, err)
}

func TestUint64TooWide(t *testing.T) {
	b := New(128)
	_, err := b.Uint64()
	assert.Error(t, err)
}

func TestFromBytesTrimsAndExtends(t *testing.T) {
	b := FromBytes(8, []byte{0x01, 0xff})
	assert.Equal(t, []byte{0xff}, b.Bytes())

	b = FromBytes(16, []byte{0xff})
	assert.Equal(t, []byte{0x00, 0xff}, b.Bytes())
}

func TestFromBytesClearsTrailingBits(t *testing.T) {
	// width 12 within 2 bytes: the high 4 bits of the first byte must be
	// cleared even though the input buffer has them set.
	b := FromBytes(12, []byte{0xff, 0xff})
	assert.Equal(t, []byte{0x0f, 0xff}, b.Bytes())
}

func TestBinaryOps(t *testing.T) {
	a, _ := FromUint64(8, 0b1100_1100)
	b, _ := FromUint64(8, 0b1010_1010)

	and, _ := a.And(b).Uint64()
	assert.Equal(t, uint64(0b1000_1000), and)

	or, _ := a.Or(b).Uint64()
	assert.Equal(t, uint64(0b1110_1110), or)

	xor, _ := a.Xor(b).Uint64()
	assert.Equal(t, uint64(0b0110_0110), xor)
}

func TestBinopWidthMismatchPanics(t *testing.T) {
	a, _ := FromUint64(8, 1)
	b, _ := FromUint64(16, 1)
	assert.Panics(t, func() { a.And(b) })
}

func TestNotClipsToWidth(t *testing.T) {
	b, _ := FromUint64(4, 0b0000)
	not := b.Not()
	v, _ := not.Uint64()
	assert.Equal(t, uint64(0b1111), v)
}

func TestEqual(t *testing.T) {
	a, _ := FromUint64(8, 42)
	b, _ := FromUint64(8, 42)
	c, _ := FromUint64(8, 43)
	d, _ := FromUint64(16, 42)

	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c))
	assert.False(t, a.Equal(d))
}

func TestAllOnesAllZero(t *testing.T) {
	zero := New(8)
	assert.True(t, zero.AllZero())
	assert.False(t, zero.AllOnes())

	ones := zero.Not()
	assert.True(t, ones.AllOnes())
	assert.False(t, ones.AllZero())
}

func TestShiftLeftNarrow(t *testing.T) {
	b, _ := FromUint64(8, 0b0000_0001)
	shifted := b.ShiftLeft(3)
	v, _ := shifted.Uint64()
	assert.Equal(t, uint64(0b0000_1000), v)
}

func TestShiftLeftWide(t *testing.T) {
	// 128-bit width exceeds the uint64 fast path.
	b := FromBytes(128, []byte{0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 1})
	shifted := b.ShiftLeft(9)
	want := make([]byte, 16)
	want[14] = 0x02
	assert.Equal(t, want, shifted.Bytes())
}

func TestShiftLeftNonPositiveIsNoop(t *testing.T) {
	b, _ := FromUint64(8, 5)
	assert.Equal(t, b.Bytes(), b.ShiftLeft(0).Bytes())
	assert.Equal(t, b.Bytes(), b.ShiftLeft(-1).Bytes())
}

func TestStringFormat(t *testing.T) {
	b, _ := FromUint64(12, 0xabc)
	assert.Equal(t, "0x0abc/12", b.String())
}
