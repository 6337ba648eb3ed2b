// Package fixture builds chunk documents and region files in memory for tests.
package fixture

import (
	"encoding/binary"
	"sort"

	"github.com/astei/anvilscan/cursor"
	"github.com/astei/anvilscan/nbt"
)

const sectorSize = 4096

// Pack packs values of the given width into longs, filling each long from its least significant bit.
func Pack(values []int, width int, packing cursor.Packing) []int64 {
	if packing == cursor.Aligned {
		per := 64 / width
		out := make([]int64, (len(values)+per-1)/per)
		for i, v := range values {
			out[i/per] |= int64(uint64(v) << ((i % per) * width))
		}
		return out
	}
	out := make([]int64, (len(values)*width+63)/64)
	for i, v := range values {
		bit := i * width
		out[bit/64] |= int64(uint64(v) << (bit % 64))
		if bit%64+width > 64 {
			out[bit/64+1] |= int64(uint64(v) >> (64 - bit%64))
		}
	}
	return out
}

// Block is a palette entry.
type Block struct {
	Name       string
	Properties map[string]string
}

func paletteTag(palette []Block) nbt.Tag {
	entries := make([]nbt.Tag, len(palette))
	for i, b := range palette {
		c := nbt.Compound{{Name: "Name", Payload: nbt.String(b.Name)}}
		if len(b.Properties) > 0 {
			keys := make([]string, 0, len(b.Properties))
			for k := range b.Properties {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			props := nbt.Compound{}
			for _, k := range keys {
				props = append(props, nbt.Tag{Name: k, Payload: nbt.String(b.Properties[k])})
			}
			c = append(c, nbt.Tag{Name: "Properties", Payload: props})
		}
		entries[i] = nbt.Tag{Payload: c}
	}
	return nbt.Tag{Name: "Palette", Payload: &nbt.List{SubType: nbt.TypeCompound, Entries: entries}}
}

func bitsFor(n int) int {
	w := 4
	for 1<<w < n {
		w++
	}
	return w
}

// Section builds a section compound. indices holds the palette index of each of the 4096 blocks; a nil palette
// produces a light-only section.
func Section(y int8, palette []Block, indices []int, packing cursor.Packing) nbt.Tag {
	c := nbt.Compound{{Name: "Y", Payload: nbt.Byte(y)}}
	if palette != nil {
		c = append(c,
			paletteTag(palette),
			nbt.Tag{Name: "BlockStates", Payload: nbt.LongArray(Pack(indices, bitsFor(len(palette)), packing))},
		)
	}
	c = append(c, nbt.Tag{Name: "SkyLight", Payload: nbt.ByteArray(make([]byte, 2048))})
	return nbt.Tag{Payload: c}
}

// Chunk describes a chunk root document.
type Chunk struct {
	DataVersion int32
	X, Z        int32
	Sections    []nbt.Tag
	Heightmaps  map[string][]int64
	Biomes      []int32
}

// Tag builds the chunk root tag with its Level compound.
func (c Chunk) Tag() nbt.Tag {
	level := nbt.Compound{
		{Name: "xPos", Payload: nbt.Int(c.X)},
		{Name: "zPos", Payload: nbt.Int(c.Z)},
	}
	if c.Sections != nil {
		level = append(level, nbt.Tag{Name: "Sections", Payload: &nbt.List{SubType: nbt.TypeCompound, Entries: c.Sections}})
	}
	if c.Heightmaps != nil {
		names := make([]string, 0, len(c.Heightmaps))
		for name := range c.Heightmaps {
			names = append(names, name)
		}
		sort.Strings(names)
		maps := nbt.Compound{}
		for _, name := range names {
			maps = append(maps, nbt.Tag{Name: name, Payload: nbt.LongArray(c.Heightmaps[name])})
		}
		level = append(level, nbt.Tag{Name: "Heightmaps", Payload: maps})
	}
	if c.Biomes != nil {
		level = append(level, nbt.Tag{Name: "Biomes", Payload: nbt.IntArray(c.Biomes)})
	}
	root := nbt.Compound{}
	if c.DataVersion != 0 {
		root = append(root, nbt.Tag{Name: "DataVersion", Payload: nbt.Int(c.DataVersion)})
	}
	root = append(root, nbt.Tag{Name: "Level", Payload: level})
	return nbt.Tag{Payload: root}
}

// RegionChunk is one stored chunk of a region: its in-region position, compression code and payload bytes, which
// are written as given.
type RegionChunk struct {
	X, Z        int
	Compression byte
	Payload     []byte
	Timestamp   uint32
}

// CompressedChunk serializes and compresses t into a RegionChunk.
func CompressedChunk(x, z int, t nbt.Tag, c nbt.Compression) (RegionChunk, error) {
	raw, err := nbt.Serialize(t)
	if err != nil {
		return RegionChunk{}, err
	}
	packed, err := nbt.Compress(raw, c)
	if err != nil {
		return RegionChunk{}, err
	}
	return RegionChunk{X: x, Z: z, Compression: byte(c), Payload: packed}, nil
}

// Region lays out a region file holding chunks, each starting on its own sector.
func Region(chunks ...RegionChunk) []byte {
	buf := make([]byte, 2*sectorSize)
	for _, c := range chunks {
		offset := len(buf) / sectorSize
		body := make([]byte, 5, 5+len(c.Payload))
		binary.BigEndian.PutUint32(body, uint32(len(c.Payload)+1))
		body[4] = c.Compression
		body = append(body, c.Payload...)
		sectors := (len(body) + sectorSize - 1) / sectorSize
		padded := make([]byte, sectors*sectorSize)
		copy(padded, body)
		buf = append(buf, padded...)

		i := (c.Z*32 + c.X) * 4
		binary.BigEndian.PutUint32(buf[i:], uint32(offset)<<8|uint32(sectors))
		binary.BigEndian.PutUint32(buf[sectorSize+i:], c.Timestamp)
	}
	return buf
}
