package anvil

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/astei/anvilscan/cursor"
	"github.com/astei/anvilscan/nbt"
)

const (
	SectorSize = 4096
	Entries    = 1024
	// RegionWidth is the number of chunks along each horizontal axis of a region.
	RegionWidth = 32
)

var ErrMalformed = errors.New("anvil: malformed data")
var ErrUnsupported = errors.New("anvil: unsupported chunk storage")

// externalFlag marks a chunk whose payload lives in a separate c.<x>.<z>.mcc file.
const externalFlag = 0x80

// LocationEntry locates one chunk's payload inside a region file, both values counted in sectors.
type LocationEntry struct {
	Offset  uint32
	Sectors uint8
}

func (e LocationEntry) Empty() bool {
	return e.Offset == 0 && e.Sectors == 0
}

// ChunkDataDescriptor is the length-prefixed header and payload found at a chunk's sector offset.
type ChunkDataDescriptor struct {
	Length      uint32
	Compression byte
	Data        []byte
}

// External reports whether the payload is stored outside the region file.
func (d ChunkDataDescriptor) External() bool {
	return d.Compression&externalFlag != 0
}

// Struct Region gives access to the chunks of an Anvil region file held in memory. The region only reads its buffer,
// so chunks may be read from several goroutines at once.
type Region struct {
	buf        []byte
	locations  []LocationEntry
	timestamps []uint32
	Name       string
}

// NewRegion parses the header of a region file. The ownership of b is transferred to the region.
func NewRegion(b []byte) (*Region, error) {
	if len(b)%SectorSize != 0 || len(b) < 2*SectorSize {
		return nil, fmt.Errorf("%w: region length %d is not a positive multiple of %d past the header", ErrMalformed, len(b), SectorSize)
	}
	region := &Region{
		buf:        b,
		locations:  make([]LocationEntry, Entries),
		timestamps: make([]uint32, Entries),
	}

	r := cursor.NewReader(b)
	for i := range region.locations {
		v, err := r.Uint32()
		if err != nil {
			return nil, err
		}
		region.locations[i] = LocationEntry{Offset: v >> 8, Sectors: uint8(v)}
	}
	for i := range region.timestamps {
		v, err := r.Uint32()
		if err != nil {
			return nil, err
		}
		region.timestamps[i] = v
	}
	return region, nil
}

func index(x, z int) (int, bool) {
	if x < 0 || z < 0 || x >= RegionWidth || z >= RegionWidth {
		return 0, false
	}
	return z*RegionWidth + x, true
}

// Locations returns the 1024 location entries indexed by z*32+x.
func (region *Region) Locations() []LocationEntry {
	return region.locations
}

// Timestamps returns the 1024 last-modified times, in seconds since the epoch, indexed by z*32+x.
func (region *Region) Timestamps() []uint32 {
	return region.timestamps
}

func (region *Region) Timestamp(x, z int) time.Time {
	i, ok := index(x, z)
	if !ok {
		return time.Time{}
	}
	return time.Unix(int64(region.timestamps[i]), 0).UTC()
}

// ChunkExists reports whether a chunk is stored at the given coordinates. Note that these coordinates are relative to
// the region file and are not chunk coordinates.
func (region *Region) ChunkExists(x, z int) bool {
	i, ok := index(x, z)
	return ok && !region.locations[i].Empty()
}

// ChunkCount returns the number of chunks stored in the region.
func (region *Region) ChunkCount() int {
	n := 0
	for _, l := range region.locations {
		if !l.Empty() {
			n++
		}
	}
	return n
}

// ChunkData returns the raw descriptor of the chunk at x, z without decompressing it.
func (region *Region) ChunkData(x, z int) (ChunkDataDescriptor, bool, error) {
	i, ok := index(x, z)
	if !ok || region.locations[i].Empty() {
		return ChunkDataDescriptor{}, false, nil
	}
	loc := region.locations[i]
	if loc.Offset < 2 {
		return ChunkDataDescriptor{}, false, fmt.Errorf("%w: chunk %d,%d points into the header", ErrMalformed, x, z)
	}

	r := cursor.NewReader(region.buf)
	if err := r.Seek(int(loc.Offset) * SectorSize); err != nil {
		return ChunkDataDescriptor{}, false, fmt.Errorf("%w: chunk %d,%d offset %d: %w", ErrMalformed, x, z, loc.Offset, err)
	}

	// Payload Header

	length, err := r.Uint32()
	if err != nil {
		return ChunkDataDescriptor{}, false, fmt.Errorf("%w: chunk %d,%d header: %w", ErrMalformed, x, z, err)
	}
	compression, err := r.Uint8()
	if err != nil {
		return ChunkDataDescriptor{}, false, fmt.Errorf("%w: chunk %d,%d header: %w", ErrMalformed, x, z, err)
	}
	if length < 1 || int64(length)-1 > int64(r.Remaining()) {
		return ChunkDataDescriptor{}, false, fmt.Errorf("%w: chunk %d,%d has invalid length %d", ErrMalformed, x, z, length)
	}

	// Payload

	data, err := r.Bytes(int(length) - 1)
	if err != nil {
		return ChunkDataDescriptor{}, false, fmt.Errorf("%w: chunk %d,%d payload: %w", ErrMalformed, x, z, err)
	}
	return ChunkDataDescriptor{Length: length, Compression: compression, Data: data}, true, nil
}

// ReadChunk reads and decodes the chunk at x, z. The coordinates are relative to the region file. ok is false if no
// chunk is stored there.
func (region *Region) ReadChunk(x, z int) (tag nbt.Tag, ok bool, err error) {
	desc, ok, err := region.ChunkData(x, z)
	if err != nil || !ok {
		return nbt.Tag{}, false, err
	}
	if desc.External() {
		return nbt.Tag{}, false, fmt.Errorf("%w: chunk %d,%d is stored in an external file", ErrUnsupported, x, z)
	}

	var raw []byte
	switch c := nbt.Compression(desc.Compression); c {
	case nbt.CompressionGzip, nbt.CompressionZlib:
		if raw, err = nbt.Decompress(desc.Data, c); err != nil {
			return nbt.Tag{}, false, fmt.Errorf("chunk %d,%d: %w", x, z, err)
		}
	case nbt.CompressionNone:
		raw = desc.Data
	default:
		return nbt.Tag{}, false, fmt.Errorf("%w: chunk %d,%d uses compression type %d", ErrUnsupported, x, z, desc.Compression)
	}

	tag, err = nbt.Parse(raw)
	if err != nil {
		return nbt.Tag{}, false, fmt.Errorf("chunk %d,%d: %w", x, z, err)
	}
	return tag, true, nil
}

var regionNamePattern = regexp.MustCompile(`^r\.(-?\d+)\.(-?\d+)\.mca$`)

// ParseRegionName extracts the region coordinates from a file name of the form r.<x>.<z>.mca.
func ParseRegionName(name string) (x, z int, err error) {
	m := regionNamePattern.FindStringSubmatch(name)
	if m == nil {
		return 0, 0, fmt.Errorf("%w: %q is not a region file name", ErrMalformed, name)
	}
	if x, err = strconv.Atoi(m[1]); err != nil {
		return 0, 0, fmt.Errorf("%w: region x in %q: %w", ErrMalformed, name, err)
	}
	if z, err = strconv.Atoi(m[2]); err != nil {
		return 0, 0, fmt.Errorf("%w: region z in %q: %w", ErrMalformed, name, err)
	}
	return x, z, nil
}

func IsValidRegionFileName(name string) bool {
	_, _, err := ParseRegionName(name)
	return err == nil
}

func RegionFileName(x, z int) string {
	return fmt.Sprintf("r.%d.%d.mca", x, z)
}

// ChunkPos is the position of a chunk in chunk coordinates, one unit per 16 blocks.
type ChunkPos struct {
	X int
	Z int
}

// RegionChunkPos converts region coordinates and a chunk's position inside that region to chunk coordinates.
func RegionChunkPos(regionX, regionZ, x, z int) ChunkPos {
	return ChunkPos{X: regionX*RegionWidth + x, Z: regionZ*RegionWidth + z}
}
