package anvil

import (
	"fmt"

	"github.com/astei/anvilscan/cursor"
	"github.com/astei/anvilscan/nbt"
)

const (
	heightBits = 9
	// cellsPerLong is the number of 9-bit heights that fit into one long without straddling.
	cellsPerLong = 64 / heightBits
	heightCells  = SectionSize * SectionSize
)

// DefaultHeightmap is the heightmap holding the highest non-air block of every column.
const DefaultHeightmap = "WORLD_SURFACE"

// Heightmap holds one height per block column, indexed [x][z].
type Heightmap [SectionSize][SectionSize]int

// WorldHeights unpacks the heightmap stored under Level/Heightmaps/<name>. Nothing is returned if the heightmap is
// missing, is not a long array, or root is not a chunk root.
func WorldHeights(root nbt.Tag, name string) (*Heightmap, error) {
	if !IsValidChunkRootTag(root) {
		return nil, nil
	}
	t, ok := nbt.FindChildTagAtPath("Level/Heightmaps/"+name, root)
	if !ok {
		return nil, nil
	}
	longs, ok := t.Payload.(nbt.LongArray)
	if !ok {
		return nil, nil
	}

	h := &Heightmap{}
	if PackingFor(root, len(longs), heightBits, heightCells) == cursor.Straddle {
		cells, err := unpack(longs, heightBits, heightCells, cursor.Straddle)
		if err != nil {
			return nil, fmt.Errorf("heightmap %s: %w", name, err)
		}
		for i, v := range cells {
			h[i%SectionSize][i/SectionSize] = v
		}
		return h, nil
	}

	words := make([]uint64, len(longs))
	for i, l := range longs {
		words[i] = uint64(l)
	}
	r := cursor.NewWordReader(words, cursor.Aligned)

	// Each long holds seven cells, the first one in its lowest bits, topped by one unused bit. Reading MSB first
	// therefore yields the padding bit and then the seven cells in reverse. The last long is only partially used, so
	// the final steps fall outside the grid and are dropped.
	steps := (heightCells + cellsPerLong - 1) / cellsPerLong * cellsPerLong
	for i := 0; i < steps; i++ {
		if i%cellsPerLong == 0 {
			if _, err := r.Bits(64 - cellsPerLong*heightBits); err != nil {
				return nil, fmt.Errorf("heightmap %s: %w", name, err)
			}
		}
		v, err := r.Bits(heightBits)
		if err != nil {
			return nil, fmt.Errorf("heightmap %s: %w", name, err)
		}
		ii := i + cellsPerLong - 1 - 2*(i%cellsPerLong)
		x, z := ii%SectionSize, ii/SectionSize
		if x < SectionSize && z < SectionSize {
			h[x][z] = int(v)
		}
	}
	return h, nil
}

// cellBiomesDataVersion is the first data version (snapshot 19w36a) storing biomes per 4x4x4 cell.
const cellBiomesDataVersion = 2203

// columnBiomes reports whether a biome array of n entries holds one biome per block column, as chunks did before
// 1.15. The data version decides when present; otherwise the length of the array does.
func columnBiomes(root nbt.Tag, n int) bool {
	if v, ok := DataVersion(root); ok {
		return v < cellBiomesDataVersion && n == heightCells
	}
	return n == heightCells
}

// BiomesAtWorldHeight returns, for each 4x4 column of the chunk, the biome found at the column's surface height as
// given by the named heightmap. The grid is indexed [x][z] in biome cells.
func BiomesAtWorldHeight(root nbt.Tag, heightmap string) (*[BiomeCellSize][BiomeCellSize]int32, error) {
	if !IsValidChunkRootTag(root) {
		return nil, nil
	}
	t, ok := nbt.FindChildTagAtPath("Level/Biomes", root)
	if !ok {
		return nil, nil
	}
	biomes, ok := t.Payload.(nbt.IntArray)
	if !ok || len(biomes) == 0 || len(biomes)%(BiomeCellSize*BiomeCellSize) != 0 {
		return nil, nil
	}
	heights, err := WorldHeights(root, heightmap)
	if err != nil || heights == nil {
		return nil, err
	}

	out := &[BiomeCellSize][BiomeCellSize]int32{}
	if columnBiomes(root, len(biomes)) {
		for x := 0; x < BiomeCellSize; x++ {
			for z := 0; z < BiomeCellSize; z++ {
				out[x][z] = biomes[z*BiomeCellSize*SectionSize+x*BiomeCellSize]
			}
		}
		return out, nil
	}

	layers := len(biomes) / (BiomeCellSize * BiomeCellSize)
	for x := 0; x < BiomeCellSize; x++ {
		for z := 0; z < BiomeCellSize; z++ {
			y := heights[x*BiomeCellSize][z*BiomeCellSize] / BiomeCellSize
			y = min(max(y, 0), layers-1)
			out[x][z] = biomes[IndexFromBiomeCoordinate(Pos{x, y, z})]
		}
	}
	return out, nil
}
