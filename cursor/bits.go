package cursor

import (
	"errors"
	"fmt"
)

var ErrStraddle = errors.New("cursor: read crosses a 64-bit word boundary")

// Packing selects how bit-packed entries relate to the 64-bit words backing them.
type Packing uint8

const (
	// Straddle allows an entry to continue from one word into the next.
	Straddle Packing = iota
	// Aligned forbids entries from crossing a word boundary. Any unused bits of a word must be skipped explicitly.
	Aligned
)

func (p Packing) String() string {
	switch p {
	case Straddle:
		return "straddle"
	case Aligned:
		return "aligned"
	default:
		return fmt.Sprintf("Packing(%d)", uint8(p))
	}
}

const wordBits = 64

// BitReader reads bit groups MSB-first from a buffer laid out as consecutive big-endian 64-bit words.
type BitReader struct {
	buf     []byte
	pos     int
	packing Packing
}

func NewBitReader(b []byte, packing Packing) *BitReader {
	return &BitReader{buf: b, packing: packing}
}

// NewWordReader lays words out big-endian and returns a reader over them.
func NewWordReader(words []uint64, packing Packing) *BitReader {
	b := make([]byte, 0, len(words)*8)
	for _, w := range words {
		b = append(b, byte(w>>56), byte(w>>48), byte(w>>40), byte(w>>32), byte(w>>24), byte(w>>16), byte(w>>8), byte(w))
	}
	return NewBitReader(b, packing)
}

func (r *BitReader) check(n int) error {
	if n < 0 || n > wordBits {
		return fmt.Errorf("cursor: invalid bit count %d", n)
	}
	if r.pos+n > len(r.buf)*8 {
		return ErrOutOfBounds
	}
	if r.packing == Aligned && n > 0 && r.pos%wordBits+n > wordBits {
		return ErrStraddle
	}
	return nil
}

// Bits consumes the next n bits (0 <= n <= 64) and returns them as an unsigned integer.
func (r *BitReader) Bits(n int) (uint64, error) {
	if err := r.check(n); err != nil {
		return 0, err
	}
	var v uint64
	for n > 0 {
		off := r.pos & 7
		avail := 8 - off
		take := min(avail, n)
		b := r.buf[r.pos>>3] >> (avail - take) & (1<<take - 1)
		v = v<<take | uint64(b)
		r.pos += take
		n -= take
	}
	return v, nil
}

// Skip discards the next n bits. Padding may be skipped across word boundaries regardless of packing.
func (r *BitReader) Skip(n int) error {
	if n < 0 || r.pos+n > len(r.buf)*8 {
		return ErrOutOfBounds
	}
	r.pos += n
	return nil
}

func (r *BitReader) BitPosition() int {
	return r.pos
}

// Position reports the number of bytes touched so far, counting a partially consumed byte.
func (r *BitReader) Position() int {
	return (r.pos + 7) / 8
}

// WordOffset reports the bit offset inside the current 64-bit word.
func (r *BitReader) WordOffset() int {
	return r.pos % wordBits
}

func (r *BitReader) Packing() Packing {
	return r.packing
}
