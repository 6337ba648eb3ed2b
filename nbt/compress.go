package nbt

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
)

var ErrUnknownCompression = errors.New("nbt: unknown compression")

// Compression identifies how an NBT document is wrapped. The values match the compression codes used by region
// files.
type Compression byte

const (
	CompressionGzip Compression = 1
	CompressionZlib Compression = 2
	CompressionNone Compression = 3
)

func (c Compression) String() string {
	switch c {
	case CompressionGzip:
		return "gzip"
	case CompressionZlib:
		return "zlib"
	case CompressionNone:
		return "none"
	default:
		return fmt.Sprintf("Compression(%d)", byte(c))
	}
}

// IsCompressed reports whether b starts with the gzip magic number.
func IsCompressed(b []byte) bool {
	return len(b) >= 2 && b[0] == 0x1F && b[1] == 0x8B
}

// isZlib checks the zlib header: deflate method, 32K window and a valid check value.
func isZlib(b []byte) bool {
	return len(b) >= 2 && b[0] == 0x78 && (uint16(b[0])<<8|uint16(b[1]))%31 == 0
}

// Detect guesses the compression of b from its leading magic bytes.
func Detect(b []byte) Compression {
	switch {
	case IsCompressed(b):
		return CompressionGzip
	case isZlib(b):
		return CompressionZlib
	default:
		return CompressionNone
	}
}

// Decompress inflates b according to c. The result never aliases b.
func Decompress(b []byte, c Compression) ([]byte, error) {
	var (
		r   io.ReadCloser
		err error
	)
	switch c {
	case CompressionGzip:
		r, err = gzip.NewReader(bytes.NewReader(b))
	case CompressionZlib:
		r, err = zlib.NewReader(bytes.NewReader(b))
	case CompressionNone:
		return bytes.Clone(b), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownCompression, c)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s header: %w", ErrMalformed, c, err)
	}
	defer r.Close()

	out, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %s stream: %w", ErrMalformed, c, err)
	}
	return out, nil
}

// Compress wraps b using c. It is the inverse of Decompress.
func Compress(b []byte, c Compression) ([]byte, error) {
	var out bytes.Buffer
	var w io.WriteCloser
	switch c {
	case CompressionGzip:
		w = gzip.NewWriter(&out)
	case CompressionZlib:
		w = zlib.NewWriter(&out)
	case CompressionNone:
		return bytes.Clone(b), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownCompression, c)
	}
	if _, err := w.Write(b); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

// ParseAny parses a document that may be raw, gzip-wrapped or zlib-wrapped.
func ParseAny(b []byte) (Tag, error) {
	c := Detect(b)
	if c == CompressionNone {
		return Parse(b)
	}
	raw, err := Decompress(b, c)
	if err != nil {
		return Tag{}, err
	}
	return Parse(raw)
}
