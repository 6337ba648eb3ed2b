package anvil

// Pos is a block position (x, y, z).
type Pos [3]int

func (p Pos) X() int { return p[0] }
func (p Pos) Y() int { return p[1] }
func (p Pos) Z() int { return p[2] }

func (p Pos) Add(o Pos) Pos {
	return Pos{p[0] + o[0], p[1] + o[1], p[2] + o[2]}
}

// Less orders positions by y, then z, then x.
func (p Pos) Less(o Pos) bool {
	if p[1] != o[1] {
		return p[1] < o[1]
	}
	if p[2] != o[2] {
		return p[2] < o[2]
	}
	return p[0] < o[0]
}

const (
	SectionSize      = 16
	BlocksPerSection = SectionSize * SectionSize * SectionSize
	// BiomeCellSize is the edge length in blocks of one biome cell.
	BiomeCellSize = 4
	// BiomesPerSection is the number of biome cells in one section.
	BiomesPerSection = BiomeCellSize * BiomeCellSize * BiomeCellSize
)

// ChunkCoordinateFromIndex converts an index into a section's block grid to a section-local position.
func ChunkCoordinateFromIndex(i int) Pos {
	return Pos{i % 16, i / 256, (i / 16) % 16}
}

func IndexFromChunkCoordinate(p Pos) int {
	return (p[1]*16+p[2])*16 + p[0]
}

// BiomeCoordinateFromIndex converts an index into the biome grid to a biome cell position.
func BiomeCoordinateFromIndex(i int) Pos {
	return Pos{i % 4, i / 16, (i / 4) % 4}
}

func IndexFromBiomeCoordinate(p Pos) int {
	return (p[1]*4+p[2])*4 + p[0]
}
