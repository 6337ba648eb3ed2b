package cursor

import (
	"encoding/binary"
	"errors"
	"math"
)

var ErrOutOfBounds = errors.New("cursor: read out of bounds")

// Reader is a sequential big-endian reader over an immutable byte slice. The zero value reads from an empty buffer.
type Reader struct {
	buf []byte
	pos int
}

func NewReader(b []byte) *Reader {
	return &Reader{buf: b}
}

// next returns the next n bytes and advances the position, or fails without moving.
func (r *Reader) next(n int) ([]byte, error) {
	if n < 0 || n > len(r.buf)-r.pos {
		return nil, ErrOutOfBounds
	}
	b := r.buf[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

func (r *Reader) Uint8() (uint8, error) {
	b, err := r.next(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (r *Reader) Uint16() (uint16, error) {
	b, err := r.next(2)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b), nil
}

func (r *Reader) Uint32() (uint32, error) {
	b, err := r.next(4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

func (r *Reader) Uint64() (uint64, error) {
	b, err := r.next(8)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(b), nil
}

func (r *Reader) Int8() (int8, error) {
	v, err := r.Uint8()
	return int8(v), err
}

func (r *Reader) Int16() (int16, error) {
	v, err := r.Uint16()
	return int16(v), err
}

func (r *Reader) Int32() (int32, error) {
	v, err := r.Uint32()
	return int32(v), err
}

func (r *Reader) Int64() (int64, error) {
	v, err := r.Uint64()
	return int64(v), err
}

func (r *Reader) Float32() (float32, error) {
	v, err := r.Uint32()
	return math.Float32frombits(v), err
}

func (r *Reader) Float64() (float64, error) {
	v, err := r.Uint64()
	return math.Float64frombits(v), err
}

// Bytes reads the next n bytes. The returned slice is a copy and does not alias the reader's buffer.
func (r *Reader) Bytes(n int) ([]byte, error) {
	b, err := r.next(n)
	if err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, b)
	return out, nil
}

// Remaining reports the number of unread bytes.
func (r *Reader) Remaining() int {
	return len(r.buf) - r.pos
}

func (r *Reader) Position() int {
	return r.pos
}

// Seek moves the read position to the absolute offset pos. Seeking to the end of the buffer is allowed.
func (r *Reader) Seek(pos int) error {
	if pos < 0 || pos > len(r.buf) {
		return ErrOutOfBounds
	}
	r.pos = pos
	return nil
}
