package nbt

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

// Encoder writes NBT documents to an io.Writer.
type Encoder struct {
	w   io.Writer
	buf []byte
}

func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: w}
}

// Serialize encodes t as an uncompressed NBT document.
func Serialize(t Tag) ([]byte, error) {
	var out bytes.Buffer
	if err := NewEncoder(&out).Encode(t); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

// Encode writes t as a named root tag. Nothing is written if t cannot be encoded.
func (e *Encoder) Encode(t Tag) error {
	if t.Payload == nil {
		return fmt.Errorf("%w: root tag has no payload", ErrMalformed)
	}
	e.buf = e.buf[:0]
	e.buf = append(e.buf, byte(t.Type()))
	if err := e.writeString(t.Name); err != nil {
		return err
	}
	if err := e.writePayload(t.Payload, 0); err != nil {
		return err
	}
	_, err := e.w.Write(e.buf)
	return err
}

func (e *Encoder) writeString(s string) error {
	if len(s) > math.MaxUint16 {
		return fmt.Errorf("%w: string length %d exceeds maximum %d", ErrMalformed, len(s), math.MaxUint16)
	}
	e.buf = binary.BigEndian.AppendUint16(e.buf, uint16(len(s)))
	e.buf = append(e.buf, s...)
	return nil
}

func (e *Encoder) writeLength(n int) error {
	if n > math.MaxInt32 {
		return fmt.Errorf("%w: length %d exceeds maximum %d", ErrMalformed, n, math.MaxInt32)
	}
	e.buf = binary.BigEndian.AppendUint32(e.buf, uint32(n))
	return nil
}

func (e *Encoder) writePayload(p Payload, depth int) error {
	if depth > maxDepth {
		return fmt.Errorf("%w: nesting deeper than %d", ErrMalformed, maxDepth)
	}
	switch v := p.(type) {
	case Byte:
		e.buf = append(e.buf, byte(v))
	case Short:
		e.buf = binary.BigEndian.AppendUint16(e.buf, uint16(v))
	case Int:
		e.buf = binary.BigEndian.AppendUint32(e.buf, uint32(v))
	case Long:
		e.buf = binary.BigEndian.AppendUint64(e.buf, uint64(v))
	case Float:
		e.buf = binary.BigEndian.AppendUint32(e.buf, math.Float32bits(float32(v)))
	case Double:
		e.buf = binary.BigEndian.AppendUint64(e.buf, math.Float64bits(float64(v)))
	case ByteArray:
		if err := e.writeLength(len(v)); err != nil {
			return err
		}
		e.buf = append(e.buf, v...)
	case String:
		return e.writeString(string(v))
	case IntArray:
		if err := e.writeLength(len(v)); err != nil {
			return err
		}
		for _, i := range v {
			e.buf = binary.BigEndian.AppendUint32(e.buf, uint32(i))
		}
	case LongArray:
		if err := e.writeLength(len(v)); err != nil {
			return err
		}
		for _, l := range v {
			e.buf = binary.BigEndian.AppendUint64(e.buf, uint64(l))
		}
	case *List:
		return e.writeList(v, depth)
	case Compound:
		for _, c := range v {
			if c.Payload == nil {
				return fmt.Errorf("%w: compound child %q has no payload", ErrMalformed, c.Name)
			}
			e.buf = append(e.buf, byte(c.Type()))
			if err := e.writeString(c.Name); err != nil {
				return err
			}
			if err := e.writePayload(c.Payload, depth+1); err != nil {
				return fmt.Errorf("in %q: %w", c.Name, err)
			}
		}
		e.buf = append(e.buf, byte(TypeEnd))
	default:
		return fmt.Errorf("%w: cannot encode payload %T", ErrMalformed, p)
	}
	return nil
}

func (e *Encoder) writeList(l *List, depth int) error {
	if l == nil {
		return fmt.Errorf("%w: nil list", ErrMalformed)
	}
	if !l.SubType.Valid() || (l.SubType == TypeEnd && len(l.Entries) > 0) {
		return fmt.Errorf("%w: list of %s with %d entries", ErrMalformed, l.SubType, len(l.Entries))
	}
	e.buf = append(e.buf, byte(l.SubType))
	if err := e.writeLength(len(l.Entries)); err != nil {
		return err
	}
	for i, entry := range l.Entries {
		if entry.Type() != l.SubType {
			return fmt.Errorf("%w: list entry %d is %s, want %s", ErrMalformed, i, entry.Type(), l.SubType)
		}
		if err := e.writePayload(entry.Payload, depth+1); err != nil {
			return fmt.Errorf("in list entry %d: %w", i, err)
		}
	}
	return nil
}
