package main

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"sort"
	"sync"

	"github.com/astei/anvilscan/anvil"
	"github.com/astei/anvilscan/nbt"
	"github.com/klauspost/compress/zstd"
)

const voxelHeader = 0xA0C5
const voxelLatestVersion = 1

func voxelChunkKey(pos anvil.ChunkPos) int64 {
	return (int64(pos.Z) * 0x7fffffff) + int64(pos.X)
}

type voxelChunk struct {
	pos    anvil.ChunkPos
	tensor *anvil.Tensor
}

// WriteVoxels decodes every chunk of the world and writes the block grids to writer. Chunks that cannot be decoded
// are logged and left out.
func (world *AnvilWorld) WriteVoxels(ctx context.Context, writer io.Writer, workers int) error {
	zstdWriter, err := zstd.NewWriter(io.Discard)
	if err != nil {
		return err
	}
	defer zstdWriter.Close()

	w := &voxelWriter{writer: writer, zstdWriter: zstdWriter, names: make(map[anvil.BlockID]string)}
	var mu sync.Mutex
	err = world.Chunks(ctx, workers, func(ref ChunkRef, chunk nbt.Tag) error {
		tensor, err := anvil.BlockStateTensor(chunk)
		if err != nil {
			world.log.Warn("Unable to decode chunk", "chunk", ref.String(), "err", err)
			return nil
		}
		names := paletteTypes(chunk)

		mu.Lock()
		defer mu.Unlock()
		w.chunks = append(w.chunks, voxelChunk{pos: ref.Pos(), tensor: tensor})
		for id, name := range names {
			w.names[id] = name
		}
		return nil
	})
	if err != nil {
		return err
	}
	world.log.Info("Exporting chunks", "chunks", len(w.chunks), "types", len(w.names))
	return w.writeWorld()
}

// paletteTypes maps the identifier of every palette entry of chunk to its type string.
func paletteTypes(chunk nbt.Tag) map[anvil.BlockID]string {
	out := map[anvil.BlockID]string{anvil.Air: anvil.BlockTypeString("minecraft:air", nil)}
	sections, _ := anvil.SortedSections(chunk)
	for _, section := range sections {
		paletteTag, ok := section.Child("Palette")
		if !ok {
			continue
		}
		palette, err := anvil.ParsePalette(paletteTag)
		if err != nil {
			continue
		}
		for _, s := range palette {
			if s.Name != "" {
				out[s.ID()] = s.String()
			}
		}
	}
	return out
}

type voxelWriter struct {
	writer     io.Writer
	zstdWriter *zstd.Encoder
	chunks     []voxelChunk
	names      map[anvil.BlockID]string
}

func (w *voxelWriter) writeWorld() (err error) {
	if err = w.writeHeader(); err != nil {
		return
	}
	if err = w.writeChunks(); err != nil {
		return
	}
	if err = w.writeNames(); err != nil {
		return
	}
	return
}

// voxelFileHeader opens a voxel file. It is followed by the chunk block and the block type block.
type voxelFileHeader struct {
	Magic   uint16
	Version uint8
}

// voxelBlockSizes precedes every zstd block of a voxel file.
type voxelBlockSizes struct {
	Compressed   uint32
	Uncompressed uint32
}

// voxelChunkHeader precedes the cells of one chunk. It is followed by the Y index of each of the Height/16 section
// bands as int32.
type voxelChunkHeader struct {
	X          int32
	Z          int32
	MinSection int32
	Height     uint32
}

func (w *voxelWriter) writeHeader() error {
	return binary.Write(w.writer, binary.BigEndian, voxelFileHeader{Magic: voxelHeader, Version: voxelLatestVersion})
}

func (w *voxelWriter) writeChunks() (err error) {
	sort.Slice(w.chunks, func(one, two int) bool {
		return voxelChunkKey(w.chunks[one].pos) < voxelChunkKey(w.chunks[two].pos)
	})

	var out bytes.Buffer

	if err = binary.Write(&out, binary.BigEndian, uint32(len(w.chunks))); err != nil {
		return
	}

	for _, chunk := range w.chunks {
		if err = w.writeChunk(chunk, &out); err != nil {
			return
		}
	}

	return w.writeZstdCompressed(&out)
}

func (w *voxelWriter) writeChunk(chunk voxelChunk, out io.Writer) (err error) {
	header := voxelChunkHeader{
		X:          int32(chunk.pos.X),
		Z:          int32(chunk.pos.Z),
		MinSection: int32(chunk.tensor.MinSection),
		Height:     uint32(chunk.tensor.Height),
	}
	if err = binary.Write(out, binary.BigEndian, header); err != nil {
		return
	}
	sections := make([]int32, len(chunk.tensor.Sections))
	for i, y := range chunk.tensor.Sections {
		sections[i] = int32(y)
	}
	if err = binary.Write(out, binary.BigEndian, sections); err != nil {
		return
	}

	// Cells are stored as indices into a per-chunk dictionary of block identifiers, in (y, z, x) order.
	dictionary := make(map[anvil.BlockID]uint16)
	var ids []uint32
	cells := make([]uint16, 0, anvil.SectionSize*anvil.SectionSize*chunk.tensor.Height)
	for y := 0; y < chunk.tensor.Height; y++ {
		for z := 0; z < anvil.SectionSize; z++ {
			for x := 0; x < anvil.SectionSize; x++ {
				id := chunk.tensor.Data[x][y][z]
				idx, ok := dictionary[id]
				if !ok {
					if len(ids) > math.MaxUint16 {
						return fmt.Errorf("chunk %d,%d has too many block types", chunk.pos.X, chunk.pos.Z)
					}
					idx = uint16(len(ids))
					dictionary[id] = idx
					ids = append(ids, uint32(id))
				}
				cells = append(cells, idx)
			}
		}
	}

	if err = binary.Write(out, binary.BigEndian, uint32(len(ids))); err != nil {
		return
	}
	if err = binary.Write(out, binary.BigEndian, ids); err != nil {
		return
	}
	return binary.Write(out, binary.BigEndian, cells)
}

func (w *voxelWriter) writeNames() (err error) {
	ids := make([]anvil.BlockID, 0, len(w.names))
	for id := range w.names {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(one, two int) bool { return ids[one] < ids[two] })

	var out bytes.Buffer
	if err = binary.Write(&out, binary.BigEndian, uint32(len(ids))); err != nil {
		return
	}
	for _, id := range ids {
		name := w.names[id]
		if len(name) > math.MaxUint16 {
			return fmt.Errorf("block type %q is too long", name)
		}
		if err = binary.Write(&out, binary.BigEndian, uint32(id)); err != nil {
			return
		}
		if err = binary.Write(&out, binary.BigEndian, uint16(len(name))); err != nil {
			return
		}
		out.WriteString(name)
	}
	return w.writeZstdCompressed(&out)
}

// writeZstdCompressed compresses buf into a single zstd frame and writes it behind its sizes.
func (w *voxelWriter) writeZstdCompressed(buf *bytes.Buffer) error {
	sizes := voxelBlockSizes{Uncompressed: uint32(buf.Len())}

	var frame bytes.Buffer
	w.zstdWriter.Reset(&frame)
	if _, err := buf.WriteTo(w.zstdWriter); err != nil {
		return err
	}
	if err := w.zstdWriter.Close(); err != nil {
		return err
	}
	w.zstdWriter.Reset(io.Discard)
	sizes.Compressed = uint32(frame.Len())

	if err := binary.Write(w.writer, binary.BigEndian, sizes); err != nil {
		return err
	}
	_, err := frame.WriteTo(w.writer)
	return err
}
