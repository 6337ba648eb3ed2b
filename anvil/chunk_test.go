package anvil_test

import (
	"testing"

	"github.com/astei/anvilscan/anvil"
	"github.com/astei/anvilscan/cursor"
	"github.com/astei/anvilscan/internal/fixture"
	"github.com/astei/anvilscan/nbt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	air     = fixture.Block{Name: "minecraft:air"}
	stone   = fixture.Block{Name: "minecraft:stone"}
	oakLog  = fixture.Block{Name: "minecraft:oak_log", Properties: map[string]string{"axis": "y"}}
	oakLogX = fixture.Block{Name: "minecraft:oak_log", Properties: map[string]string{"axis": "x"}}
	diamond = fixture.Block{Name: "minecraft:diamond_ore"}
)

func at(x, y, z int) int {
	return anvil.IndexFromChunkCoordinate(anvil.Pos{x, y, z})
}

// surface returns heights where column (x, z) has height 64+x+z.
func surface() []int {
	h := make([]int, 256)
	for i := range h {
		h[i] = 64 + i%16 + i/16
	}
	return h
}

func biomeGrid() []int32 {
	b := make([]int32, 1024)
	for i := range b {
		b[i] = int32(i)
	}
	return b
}

// testChunk is a 1.16 chunk at chunk coordinates (2, -1) with its sections stored out of order: Y=1 holds a
// stone, two oak logs and an out-of-range palette index, Y=-1 only holds light and Y=0 holds a diamond ore.
func testChunk() nbt.Tag {
	upper := make([]int, anvil.BlocksPerSection)
	upper[at(1, 2, 3)] = 1
	upper[at(15, 15, 15)] = 2
	upper[at(0, 0, 0)] = 3
	upper[at(5, 5, 5)] = 9

	lower := make([]int, anvil.BlocksPerSection)
	lower[at(7, 0, 8)] = 1

	return fixture.Chunk{
		DataVersion: 2586,
		X:           2,
		Z:           -1,
		Sections: []nbt.Tag{
			fixture.Section(1, []fixture.Block{air, stone, oakLog, oakLogX}, upper, cursor.Aligned),
			fixture.Section(-1, nil, nil, cursor.Aligned),
			fixture.Section(0, []fixture.Block{air, diamond}, lower, cursor.Aligned),
		},
		Heightmaps: map[string][]int64{
			anvil.DefaultHeightmap: fixture.Pack(surface(), 9, cursor.Aligned),
			"OCEAN_FLOOR":          nil,
		},
		Biomes: biomeGrid(),
	}.Tag()
}

func invalidRoots() map[string]nbt.Tag {
	return map[string]nbt.Tag{
		"not a compound": {Payload: nbt.Int(1)},
		"named root":     {Name: "chunk", Payload: testChunk().Payload},
		"empty compound": {Payload: nbt.Compound{}},
		"no payload":     {},
	}
}

func Test_Coordinates(t *testing.T) {
	t.Run("Block index round trip", func(t *testing.T) {
		for i := 0; i < anvil.BlocksPerSection; i++ {
			require.Equal(t, i, anvil.IndexFromChunkCoordinate(anvil.ChunkCoordinateFromIndex(i)))
		}
		assert.Equal(t, anvil.Pos{1, 2, 3}, anvil.ChunkCoordinateFromIndex(2*256+3*16+1))
	})

	t.Run("Biome index round trip", func(t *testing.T) {
		for i := 0; i < anvil.BiomesPerSection; i++ {
			require.Equal(t, i, anvil.IndexFromBiomeCoordinate(anvil.BiomeCoordinateFromIndex(i)))
		}
		assert.Equal(t, anvil.Pos{3, 1, 2}, anvil.BiomeCoordinateFromIndex(16+2*4+3))
	})

	t.Run("Chunk origin", func(t *testing.T) {
		x, z, ok := anvil.Coordinates(testChunk())
		require.True(t, ok)
		assert.Equal(t, 32, x)
		assert.Equal(t, -16, z)

		_, _, ok = anvil.Coordinates(fixture.Chunk{}.Tag())
		assert.True(t, ok)
		_, _, ok = anvil.Coordinates(nbt.Tag{Payload: nbt.Compound{{Name: "Level", Payload: nbt.Compound{}}}})
		assert.False(t, ok)
	})
}

func Test_BlockTypes(t *testing.T) {
	assert.Equal(t, "minecraft:air()", anvil.BlockTypeString("minecraft:air", nil))
	assert.Equal(t, "minecraft:chest(facing=north,type=single,waterlogged=false)",
		anvil.BlockTypeString("minecraft:chest", map[string]string{"waterlogged": "false", "facing": "north", "type": "single"}))
	assert.Equal(t, anvil.Air, anvil.BlockTypeID("minecraft:air", map[string]string{}))
	assert.NotEqual(t, anvil.BlockTypeID("minecraft:oak_log", map[string]string{"axis": "x"}),
		anvil.BlockTypeID("minecraft:oak_log", map[string]string{"axis": "y"}))

	for n, want := range map[int]int{0: 4, 1: 4, 2: 4, 16: 4, 17: 5, 32: 5, 33: 6, 256: 8, 257: 9, 4096: 12} {
		assert.Equal(t, want, anvil.BitsPerBlock(n), "palette of %d", n)
	}
}

func Test_BlockData(t *testing.T) {
	palette := make([]fixture.Block, 17)
	for i := range palette {
		palette[i] = fixture.Block{Name: "minecraft:wool", Properties: map[string]string{"color": string(rune('a' + i))}}
	}
	palette[0] = air
	indices := make([]int, anvil.BlocksPerSection)
	for i := range indices {
		indices[i] = (i * 7) % len(palette)
	}

	for _, packing := range []cursor.Packing{cursor.Straddle, cursor.Aligned} {
		t.Run(packing.String(), func(t *testing.T) {
			section := fixture.Section(0, palette, indices, packing)
			states, _ := section.Child("BlockStates")
			paletteTag, _ := section.Child("Palette")

			data, err := anvil.NewBlockData(states, paletteTag, packing)
			require.NoError(t, err)
			for i, want := range indices {
				require.Equal(t, want, data.Index(i), "block %d", i)
			}
			assert.Equal(t, anvil.Air, data.BlockTypeID(0))
			assert.Equal(t, anvil.BlockTypeID("minecraft:wool", map[string]string{"color": "h"}), data.BlockTypeID(1))
			assert.Equal(t, []string{"minecraft:air", "minecraft:wool"}, data.Names())
			assert.Len(t, data.FindBlocksByName("minecraft:wool"), anvil.BlocksPerSection-len(data.FindBlocksByName("minecraft:air")))
			assert.Equal(t, []int{1, 18, 35}, data.FindBlocksByName("minecraft:wool(color=h)")[:3])

			// The chunk-level decoder picks the same convention from the data version alone, and from the array
			// length when no version is recorded.
			version := int32(1976)
			if packing == cursor.Aligned {
				version = 2586
			}
			for _, v := range []int32{version, 0} {
				root := fixture.Chunk{DataVersion: v, Sections: []nbt.Tag{section}}.Tag()
				decoded, ok, err := anvil.SectionBlockData(root, section)
				require.NoError(t, err)
				require.True(t, ok)
				assert.Equal(t, data.BlockTypeIDs(), decoded.BlockTypeIDs())
			}
		})
	}

	t.Run("Wrong array length", func(t *testing.T) {
		section := fixture.Section(0, palette, indices, cursor.Straddle)
		states, _ := section.Child("BlockStates")
		paletteTag, _ := section.Child("Palette")
		_, err := anvil.NewBlockData(states, paletteTag, cursor.Aligned)
		assert.ErrorIs(t, err, anvil.ErrMalformed)
	})

	t.Run("Single entry palette without states", func(t *testing.T) {
		paletteTag, _ := fixture.Section(0, []fixture.Block{stone}, nil, cursor.Aligned).Child("Palette")
		data, err := anvil.NewBlockData(nbt.Tag{Payload: nbt.LongArray{}}, paletteTag, cursor.Aligned)
		require.NoError(t, err)
		assert.Len(t, data.FindBlocksByName("minecraft:stone"), anvil.BlocksPerSection)
	})
}

func Test_SortedSections(t *testing.T) {
	sections, ok := anvil.SortedSections(testChunk())
	require.True(t, ok)
	var ys []int
	for _, s := range sections {
		y, ok := anvil.SectionY(s)
		require.True(t, ok)
		ys = append(ys, y)
	}
	assert.Equal(t, []int{-1, 0, 1}, ys)

	sections, ok = anvil.SortedSections(fixture.Chunk{X: 1}.Tag())
	assert.True(t, ok)
	assert.Empty(t, sections)

	for name, root := range invalidRoots() {
		t.Run(name, func(t *testing.T) {
			_, ok := anvil.SortedSections(root)
			assert.False(t, ok)
			blocks, err := anvil.FindBlocksByName(root, "minecraft:stone")
			assert.NoError(t, err)
			assert.Nil(t, blocks)
			heights, err := anvil.WorldHeights(root, anvil.DefaultHeightmap)
			assert.NoError(t, err)
			assert.Nil(t, heights)
			biomes, err := anvil.BiomesAtWorldHeight(root, anvil.DefaultHeightmap)
			assert.NoError(t, err)
			assert.Nil(t, biomes)
		})
	}
}

func Test_FindBlocksByName(t *testing.T) {
	root := testChunk()

	blocks, err := anvil.FindBlocksByName(root, "minecraft:stone")
	require.NoError(t, err)
	assert.Equal(t, []anvil.Pos{{33, 18, -13}}, blocks)

	blocks, err = anvil.FindBlocksByName(root, "minecraft:diamond_ore")
	require.NoError(t, err)
	assert.Equal(t, []anvil.Pos{{39, 0, -8}}, blocks)

	blocks, err = anvil.FindBlocksByName(root, "minecraft:oak_log")
	require.NoError(t, err)
	assert.ElementsMatch(t, []anvil.Pos{{47, 31, -1}, {32, 16, -16}}, blocks)

	blocks, err = anvil.FindBlocksByName(root, "minecraft:oak_log(axis=x)")
	require.NoError(t, err)
	assert.Equal(t, []anvil.Pos{{32, 16, -16}}, blocks)

	blocks, err = anvil.FindBlocksByName(root, "minecraft:bedrock")
	require.NoError(t, err)
	assert.Empty(t, blocks)

	assert.Equal(t, []string{"minecraft:air", "minecraft:diamond_ore", "minecraft:oak_log", "minecraft:stone"}, anvil.UniqueBlockNames(root))
	assert.Empty(t, anvil.UniqueBlockNames(nbt.Tag{}))
}

func Test_BlockStateTensor(t *testing.T) {
	tensor, err := anvil.BlockStateTensor(testChunk())
	require.NoError(t, err)
	assert.Equal(t, -1, tensor.MinSection)
	assert.Equal(t, 48, tensor.Height)
	assert.Equal(t, []int{-1, 0, 1}, tensor.Sections)
	assert.Equal(t, 18, tensor.WorldY(34))
	require.Len(t, tensor.Data, 16)
	require.Len(t, tensor.Data[0], 48)
	require.Len(t, tensor.Data[0][0], 16)

	stoneID := anvil.BlockTypeID("minecraft:stone", nil)
	assert.Equal(t, stoneID, tensor.At(1, 34, 3))
	assert.Equal(t, anvil.BlockTypeID("minecraft:diamond_ore", nil), tensor.At(7, 16, 8))
	assert.Equal(t, anvil.Air, tensor.At(5, 37, 5), "out of range palette index")
	assert.Equal(t, anvil.Air, tensor.At(0, 48, 0))

	counts := map[anvil.BlockID]int{}
	for x := range tensor.Data {
		for y := range tensor.Data[x] {
			for _, id := range tensor.Data[x][y] {
				counts[id]++
			}
		}
	}
	assert.Equal(t, 1, counts[stoneID])
	assert.Equal(t, 16*48*16-4, counts[anvil.Air])

	empty, err := anvil.BlockStateTensor(nbt.Tag{})
	require.NoError(t, err)
	assert.Zero(t, empty.Height)
	assert.Empty(t, empty.Sections)
}

func Test_BlockStateTensorWithGaps(t *testing.T) {
	indices := make([]int, anvil.BlocksPerSection)
	indices[at(0, 0, 0)] = 1
	root := fixture.Chunk{
		DataVersion: 2586,
		Sections: []nbt.Tag{
			fixture.Section(5, []fixture.Block{air, stone}, indices, cursor.Aligned),
			fixture.Section(0, []fixture.Block{air}, nil, cursor.Aligned),
		},
	}.Tag()

	tensor, err := anvil.BlockStateTensor(root)
	require.NoError(t, err)
	assert.Equal(t, 0, tensor.MinSection)
	assert.Equal(t, 32, tensor.Height)
	assert.Equal(t, []int{0, 5}, tensor.Sections)

	stoneID := anvil.BlockTypeID("minecraft:stone", nil)
	require.Equal(t, stoneID, tensor.At(0, 16, 0))
	assert.Equal(t, 80, tensor.WorldY(16))

	found, err := anvil.FindBlocksByName(root, "minecraft:stone")
	require.NoError(t, err)
	assert.Equal(t, []anvil.Pos{{0, tensor.WorldY(16), 0}}, found)
}

func Test_WorldHeights(t *testing.T) {
	want := surface()
	check := func(t *testing.T, h *anvil.Heightmap) {
		t.Helper()
		require.NotNil(t, h)
		for x := 0; x < 16; x++ {
			for z := 0; z < 16; z++ {
				require.Equal(t, want[z*16+x], h[x][z], "column %d,%d", x, z)
			}
		}
	}

	t.Run("Aligned", func(t *testing.T) {
		h, err := anvil.WorldHeights(testChunk(), anvil.DefaultHeightmap)
		require.NoError(t, err)
		check(t, h)
	})

	t.Run("Straddling", func(t *testing.T) {
		root := fixture.Chunk{
			DataVersion: 2230,
			Heightmaps:  map[string][]int64{"MOTION_BLOCKING": fixture.Pack(want, 9, cursor.Straddle)},
		}.Tag()
		h, err := anvil.WorldHeights(root, "MOTION_BLOCKING")
		require.NoError(t, err)
		check(t, h)
	})

	t.Run("Missing or mistyped", func(t *testing.T) {
		h, err := anvil.WorldHeights(testChunk(), "MOTION_BLOCKING")
		assert.NoError(t, err)
		assert.Nil(t, h)

		root := nbt.Tag{Payload: nbt.Compound{{Name: "Level", Payload: nbt.Compound{
			{Name: "Heightmaps", Payload: nbt.Compound{{Name: "WORLD_SURFACE", Payload: nbt.IntArray{1}}}},
		}}}}
		h, err = anvil.WorldHeights(root, anvil.DefaultHeightmap)
		assert.NoError(t, err)
		assert.Nil(t, h)
	})

	t.Run("Truncated", func(t *testing.T) {
		_, err := anvil.WorldHeights(testChunk(), "OCEAN_FLOOR")
		assert.ErrorIs(t, err, cursor.ErrOutOfBounds)
	})
}

func Test_BiomesAtWorldHeight(t *testing.T) {
	biomes, err := anvil.BiomesAtWorldHeight(testChunk(), anvil.DefaultHeightmap)
	require.NoError(t, err)
	require.NotNil(t, biomes)
	for x := 0; x < 4; x++ {
		for z := 0; z < 4; z++ {
			y := (64 + x*4 + z*4) / 4
			assert.Equal(t, int32(anvil.IndexFromBiomeCoordinate(anvil.Pos{x, y, z})), biomes[x][z])
		}
	}

	tall := make([]int, 256)
	for i := range tall {
		tall[i] = 256
	}
	root := fixture.Chunk{
		DataVersion: 2586,
		Heightmaps:  map[string][]int64{anvil.DefaultHeightmap: fixture.Pack(tall, 9, cursor.Aligned)},
		Biomes:      biomeGrid(),
	}.Tag()
	biomes, err = anvil.BiomesAtWorldHeight(root, anvil.DefaultHeightmap)
	require.NoError(t, err)
	require.NotNil(t, biomes)
	assert.Equal(t, int32(anvil.IndexFromBiomeCoordinate(anvil.Pos{3, 63, 2})), biomes[3][2])

	noBiomes := fixture.Chunk{
		Heightmaps: map[string][]int64{anvil.DefaultHeightmap: fixture.Pack(tall, 9, cursor.Aligned)},
	}.Tag()
	biomes, err = anvil.BiomesAtWorldHeight(noBiomes, anvil.DefaultHeightmap)
	assert.NoError(t, err)
	assert.Nil(t, biomes)
}

func Test_BiomeLayout(t *testing.T) {
	flat := make([]int, 256)
	for i := range flat {
		flat[i] = 256
	}
	column := make([]int32, 256)
	for i := range column {
		column[i] = int32(i)
	}
	chunk := func(dataVersion int32, packing cursor.Packing) nbt.Tag {
		return fixture.Chunk{
			DataVersion: dataVersion,
			Heightmaps:  map[string][]int64{anvil.DefaultHeightmap: fixture.Pack(flat, 9, packing)},
			Biomes:      column,
		}.Tag()
	}

	t.Run("Per column before 19w36a", func(t *testing.T) {
		biomes, err := anvil.BiomesAtWorldHeight(chunk(1976, cursor.Straddle), anvil.DefaultHeightmap)
		require.NoError(t, err)
		require.NotNil(t, biomes)
		assert.Equal(t, int32(2*4*16+3*4), biomes[3][2])
	})

	t.Run("Per cell from 19w36a", func(t *testing.T) {
		// 256 entries hold 16 layers of 4x4 cells; the surface at 256 is clamped to the top layer.
		biomes, err := anvil.BiomesAtWorldHeight(chunk(2586, cursor.Aligned), anvil.DefaultHeightmap)
		require.NoError(t, err)
		require.NotNil(t, biomes)
		assert.Equal(t, int32(anvil.IndexFromBiomeCoordinate(anvil.Pos{3, 15, 2})), biomes[3][2])
	})

	t.Run("Length decides without a data version", func(t *testing.T) {
		biomes, err := anvil.BiomesAtWorldHeight(chunk(0, cursor.Aligned), anvil.DefaultHeightmap)
		require.NoError(t, err)
		require.NotNil(t, biomes)
		assert.Equal(t, int32(2*4*16+3*4), biomes[3][2])
	})
}
