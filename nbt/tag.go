package nbt

import "fmt"

// Type is the one-byte tag type identifier found on the wire.
type Type byte

const (
	TypeEnd Type = iota
	TypeByte
	TypeShort
	TypeInt
	TypeLong
	TypeFloat
	TypeDouble
	TypeByteArray
	TypeString
	TypeList
	TypeCompound
	TypeIntArray
	TypeLongArray
)

var typeNames = [...]string{
	TypeEnd:       "TAG_End",
	TypeByte:      "TAG_Byte",
	TypeShort:     "TAG_Short",
	TypeInt:       "TAG_Int",
	TypeLong:      "TAG_Long",
	TypeFloat:     "TAG_Float",
	TypeDouble:    "TAG_Double",
	TypeByteArray: "TAG_Byte_Array",
	TypeString:    "TAG_String",
	TypeList:      "TAG_List",
	TypeCompound:  "TAG_Compound",
	TypeIntArray:  "TAG_Int_Array",
	TypeLongArray: "TAG_Long_Array",
}

func (t Type) Valid() bool {
	return t <= TypeLongArray
}

func (t Type) String() string {
	if t.Valid() {
		return typeNames[t]
	}
	return fmt.Sprintf("Type(%d)", byte(t))
}

// Payload is the value carried by a tag. The set of implementations is closed: it is exactly the payload types
// declared in this package, one per tag type other than TypeEnd.
type Payload interface {
	Type() Type
	payload()
}

type (
	Byte      int8
	Short     int16
	Int       int32
	Long      int64
	Float     float32
	Double    float64
	ByteArray []byte
	String    string
	IntArray  []int32
	LongArray []int64
	// Compound holds the children of a compound tag in wire order. The terminating end tag is not part of the
	// slice; it is implied and written back on encode.
	Compound []Tag
)

// List is a homogeneous sequence. Every entry is unnamed and carries a payload of type SubType.
type List struct {
	SubType Type
	Entries []Tag
}

func (Byte) Type() Type      { return TypeByte }
func (Short) Type() Type     { return TypeShort }
func (Int) Type() Type       { return TypeInt }
func (Long) Type() Type      { return TypeLong }
func (Float) Type() Type     { return TypeFloat }
func (Double) Type() Type    { return TypeDouble }
func (ByteArray) Type() Type { return TypeByteArray }
func (String) Type() Type    { return TypeString }
func (*List) Type() Type     { return TypeList }
func (Compound) Type() Type  { return TypeCompound }
func (IntArray) Type() Type  { return TypeIntArray }
func (LongArray) Type() Type { return TypeLongArray }

func (Byte) payload()      {}
func (Short) payload()     {}
func (Int) payload()       {}
func (Long) payload()      {}
func (Float) payload()     {}
func (Double) payload()    {}
func (ByteArray) payload() {}
func (String) payload()    {}
func (*List) payload()     {}
func (Compound) payload()  {}
func (IntArray) payload()  {}
func (LongArray) payload() {}

// Tag is a single node of an NBT tree. Name is only meaningful for direct children of a compound and for the
// document root.
type Tag struct {
	Name    string
	Payload Payload
}

// Type returns the type of the tag's payload, or TypeEnd for a tag without one.
func (t Tag) Type() Type {
	if t.Payload == nil {
		return TypeEnd
	}
	return t.Payload.Type()
}

// Int returns the value of any integral scalar tag widened to int64.
func (t Tag) Int() (int64, bool) {
	switch v := t.Payload.(type) {
	case Byte:
		return int64(v), true
	case Short:
		return int64(v), true
	case Int:
		return int64(v), true
	case Long:
		return int64(v), true
	}
	return 0, false
}

func (t Tag) Str() (string, bool) {
	v, ok := t.Payload.(String)
	return string(v), ok
}

func (t Tag) Compound() (Compound, bool) {
	v, ok := t.Payload.(Compound)
	return v, ok
}

func (t Tag) List() (*List, bool) {
	v, ok := t.Payload.(*List)
	return v, ok && v != nil
}

// Child returns the first direct child of a compound tag with the given name.
func (t Tag) Child(name string) (Tag, bool) {
	return FindChildTag(t, func(c Tag) bool { return c.Name == name })
}
