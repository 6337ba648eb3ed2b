package nbt

import (
	"errors"
	"fmt"

	"github.com/astei/anvilscan/cursor"
)

var ErrMalformed = errors.New("nbt: malformed data")

// maxDepth bounds compound and list nesting.
const maxDepth = 512

// Decoder parses NBT documents from an in-memory buffer. Several documents may be read back to back from the same
// buffer by calling Decode repeatedly.
type Decoder struct {
	r *cursor.Reader
}

func NewDecoder(b []byte) *Decoder {
	return &Decoder{r: cursor.NewReader(b)}
}

// Parse decodes a single uncompressed NBT document.
func Parse(b []byte) (Tag, error) {
	return NewDecoder(b).Decode()
}

// Decode reads one named root tag.
func (d *Decoder) Decode() (Tag, error) {
	start := d.r.Position()
	t, err := d.readType()
	if err != nil {
		return Tag{}, err
	}
	if t == TypeEnd {
		return Tag{}, fmt.Errorf("%w: root tag at offset %d is an end tag", ErrMalformed, start)
	}
	name, err := d.readString()
	if err != nil {
		return Tag{}, err
	}
	p, err := d.readPayload(t, 0)
	if err != nil {
		return Tag{}, err
	}
	return Tag{Name: name, Payload: p}, nil
}

func (d *Decoder) Remaining() int {
	return d.r.Remaining()
}

func (d *Decoder) Seek(pos int) error {
	return d.r.Seek(pos)
}

func (d *Decoder) truncated(err error) error {
	return fmt.Errorf("%w: offset %d: %w", ErrMalformed, d.r.Position(), err)
}

func (d *Decoder) readType() (Type, error) {
	b, err := d.r.Uint8()
	if err != nil {
		return 0, d.truncated(err)
	}
	t := Type(b)
	if !t.Valid() {
		return 0, fmt.Errorf("%w: unknown tag type %d at offset %d", ErrMalformed, b, d.r.Position()-1)
	}
	return t, nil
}

func (d *Decoder) readString() (string, error) {
	n, err := d.r.Uint16()
	if err != nil {
		return "", d.truncated(err)
	}
	b, err := d.r.Bytes(int(n))
	if err != nil {
		return "", d.truncated(err)
	}
	// Strings are Java modified UTF-8 on disk; they are kept byte for byte so that they survive a round trip.
	return string(b), nil
}

// readLength reads a signed 32-bit element count and checks it against the unread bytes.
func (d *Decoder) readLength(width int) (int, error) {
	n, err := d.r.Int32()
	if err != nil {
		return 0, d.truncated(err)
	}
	if n < 0 {
		return 0, fmt.Errorf("%w: negative length %d at offset %d", ErrMalformed, n, d.r.Position()-4)
	}
	if width > 0 && int64(n)*int64(width) > int64(d.r.Remaining()) {
		return 0, fmt.Errorf("%w: length %d exceeds remaining %d bytes", ErrMalformed, n, d.r.Remaining())
	}
	return int(n), nil
}

func (d *Decoder) readPayload(t Type, depth int) (Payload, error) {
	if depth > maxDepth {
		return nil, fmt.Errorf("%w: nesting deeper than %d", ErrMalformed, maxDepth)
	}
	var err error
	switch t {
	case TypeByte:
		var v int8
		if v, err = d.r.Int8(); err == nil {
			return Byte(v), nil
		}
	case TypeShort:
		var v int16
		if v, err = d.r.Int16(); err == nil {
			return Short(v), nil
		}
	case TypeInt:
		var v int32
		if v, err = d.r.Int32(); err == nil {
			return Int(v), nil
		}
	case TypeLong:
		var v int64
		if v, err = d.r.Int64(); err == nil {
			return Long(v), nil
		}
	case TypeFloat:
		var v float32
		if v, err = d.r.Float32(); err == nil {
			return Float(v), nil
		}
	case TypeDouble:
		var v float64
		if v, err = d.r.Float64(); err == nil {
			return Double(v), nil
		}
	case TypeByteArray:
		n, err := d.readLength(1)
		if err != nil {
			return nil, err
		}
		b, err := d.r.Bytes(n)
		if err != nil {
			return nil, d.truncated(err)
		}
		return ByteArray(b), nil
	case TypeString:
		s, err := d.readString()
		if err != nil {
			return nil, err
		}
		return String(s), nil
	case TypeList:
		return d.readList(depth)
	case TypeCompound:
		return d.readCompound(depth)
	case TypeIntArray:
		n, err := d.readLength(4)
		if err != nil {
			return nil, err
		}
		v := make(IntArray, n)
		for i := range v {
			if v[i], err = d.r.Int32(); err != nil {
				return nil, d.truncated(err)
			}
		}
		return v, nil
	case TypeLongArray:
		n, err := d.readLength(8)
		if err != nil {
			return nil, err
		}
		v := make(LongArray, n)
		for i := range v {
			if v[i], err = d.r.Int64(); err != nil {
				return nil, d.truncated(err)
			}
		}
		return v, nil
	default:
		return nil, fmt.Errorf("%w: unexpected %s payload", ErrMalformed, t)
	}
	return nil, d.truncated(err)
}

func (d *Decoder) readCompound(depth int) (Compound, error) {
	children := Compound{}
	for {
		t, err := d.readType()
		if err != nil {
			return nil, err
		}
		if t == TypeEnd {
			return children, nil
		}
		name, err := d.readString()
		if err != nil {
			return nil, err
		}
		p, err := d.readPayload(t, depth+1)
		if err != nil {
			return nil, fmt.Errorf("in %q: %w", name, err)
		}
		children = append(children, Tag{Name: name, Payload: p})
	}
}

func (d *Decoder) readList(depth int) (*List, error) {
	sub, err := d.readType()
	if err != nil {
		return nil, err
	}
	// Every entry needs at least one byte, except for end-typed lists which carry no payload at all.
	width := 1
	if sub == TypeEnd {
		width = 0
	}
	n, err := d.readLength(width)
	if err != nil {
		return nil, err
	}
	if sub == TypeEnd && n > 0 {
		return nil, fmt.Errorf("%w: list of %d end tags", ErrMalformed, n)
	}
	l := &List{SubType: sub, Entries: make([]Tag, 0, n)}
	for i := 0; i < n; i++ {
		p, err := d.readPayload(sub, depth+1)
		if err != nil {
			return nil, fmt.Errorf("in list entry %d: %w", i, err)
		}
		l.Entries = append(l.Entries, Tag{Payload: p})
	}
	return l, nil
}
