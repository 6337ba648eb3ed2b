package cursor_test

import (
	"math"
	"testing"

	"github.com/astei/anvilscan/cursor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testBuffer() []byte {
	return []byte{132, 66, 33, 0, 0, 0, 0, 0}
}

func readGroups(t *testing.T, r *cursor.BitReader, widths ...int) []uint64 {
	t.Helper()
	out := make([]uint64, 0, len(widths))
	for _, w := range widths {
		v, err := r.Bits(w)
		require.NoError(t, err)
		out = append(out, v)
	}
	return out
}

func Test_BitReader(t *testing.T) {
	tests := []struct {
		name     string
		widths   []int
		want     []uint64
		position int
	}{
		{"5 bits at a time", []int{5, 5, 5, 5}, []uint64{16, 17, 1, 2}, -1},
		{"3 bits at a time", []int{3, 3, 3}, []uint64{4, 1, 0}, -1},
		{"10 5 3 1", []int{10, 5, 3, 1}, []uint64{529, 1, 0, 1}, -1},
		{"16 4 5", []int{16, 4, 5}, []uint64{33858, 2, 2}, 4},
		{"18 2 4", []int{18, 2, 4}, []uint64{135432, 2, 1}, 3},
		{"18 10", []int{18, 10}, []uint64{135432, 528}, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, packing := range []cursor.Packing{cursor.Straddle, cursor.Aligned} {
				r := cursor.NewBitReader(testBuffer(), packing)
				assert.Equal(t, tt.want, readGroups(t, r, tt.widths...))
				if tt.position >= 0 {
					assert.Equal(t, tt.position, r.Position())
				}
			}
		})
	}

	t.Run("Reading past the end fails", func(t *testing.T) {
		r := cursor.NewBitReader([]byte{0xFF}, cursor.Straddle)
		_, err := r.Bits(9)
		assert.ErrorIs(t, err, cursor.ErrOutOfBounds)
		v, err := r.Bits(8)
		require.NoError(t, err)
		assert.Equal(t, uint64(0xFF), v)
	})

	t.Run("Aligned packing refuses to straddle words", func(t *testing.T) {
		words := []uint64{0x8000000000000001, 0xC000000000000000}
		r := cursor.NewWordReader(words, cursor.Aligned)
		require.NoError(t, r.Skip(60))
		_, err := r.Bits(5)
		assert.ErrorIs(t, err, cursor.ErrStraddle)
		v, err := r.Bits(4)
		require.NoError(t, err)
		assert.Equal(t, uint64(1), v)
		assert.Equal(t, 0, r.WordOffset())
		v, err = r.Bits(2)
		require.NoError(t, err)
		assert.Equal(t, uint64(3), v)

		s := cursor.NewWordReader(words, cursor.Straddle)
		require.NoError(t, s.Skip(60))
		v, err = s.Bits(6)
		require.NoError(t, err)
		assert.Equal(t, uint64(0b000111), v)
	})

	t.Run("Full word reads", func(t *testing.T) {
		r := cursor.NewWordReader([]uint64{math.MaxUint64, 42}, cursor.Aligned)
		v, err := r.Bits(64)
		require.NoError(t, err)
		assert.Equal(t, uint64(math.MaxUint64), v)
		v, err = r.Bits(64)
		require.NoError(t, err)
		assert.Equal(t, uint64(42), v)
		assert.Equal(t, 16, r.Position())
	})
}

func Test_Reader(t *testing.T) {
	buf := []byte{
		0x01,
		0xFF, 0xFE,
		0x00, 0x00, 0x01, 0x00,
		0x80, 0, 0, 0, 0, 0, 0, 0,
		0x3F, 0x80, 0x00, 0x00,
		0x40, 0x09, 0x21, 0xFB, 0x54, 0x44, 0x2D, 0x18,
		'h', 'i',
	}

	r := cursor.NewReader(buf)
	u8, err := r.Uint8()
	require.NoError(t, err)
	assert.Equal(t, uint8(1), u8)

	i16, err := r.Int16()
	require.NoError(t, err)
	assert.Equal(t, int16(-2), i16)

	u32, err := r.Uint32()
	require.NoError(t, err)
	assert.Equal(t, uint32(256), u32)

	i64, err := r.Int64()
	require.NoError(t, err)
	assert.Equal(t, int64(math.MinInt64), i64)

	f32, err := r.Float32()
	require.NoError(t, err)
	assert.Equal(t, float32(1), f32)

	f64, err := r.Float64()
	require.NoError(t, err)
	assert.Equal(t, math.Pi, f64)

	assert.Equal(t, 2, r.Remaining())
	b, err := r.Bytes(2)
	require.NoError(t, err)
	assert.Equal(t, []byte("hi"), b)
	b[0] = 'x'
	assert.Equal(t, byte('h'), buf[len(buf)-2])

	_, err = r.Uint8()
	assert.ErrorIs(t, err, cursor.ErrOutOfBounds)

	require.NoError(t, r.Seek(1))
	u16, err := r.Uint16()
	require.NoError(t, err)
	assert.Equal(t, uint16(0xFFFE), u16)

	assert.ErrorIs(t, r.Seek(len(buf)+1), cursor.ErrOutOfBounds)
	assert.Equal(t, 3, r.Position())

	_, err = r.Bytes(len(buf))
	assert.ErrorIs(t, err, cursor.ErrOutOfBounds)
	assert.Equal(t, 3, r.Position())
}
