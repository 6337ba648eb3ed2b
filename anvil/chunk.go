package anvil

import (
	"sort"

	"github.com/astei/anvilscan/cursor"
	"github.com/astei/anvilscan/nbt"
)

// alignedDataVersion is the first data version (snapshot 20w17a) whose packed arrays never straddle a long.
const alignedDataVersion = 2529

func IsValidChunkRootTag(t nbt.Tag) bool {
	children, ok := t.Compound()
	return ok && t.Name == "" && len(children) > 0
}

func IsValidChunkSectionTag(t nbt.Tag) bool {
	l, ok := t.List()
	return ok && t.Name == "Sections" && l.SubType == nbt.TypeCompound
}

// DataVersion returns the data version recorded at the root of a chunk.
func DataVersion(root nbt.Tag) (int, bool) {
	t, ok := root.Child("DataVersion")
	if !ok {
		return 0, false
	}
	v, ok := t.Int()
	return int(v), ok
}

// PackingFor selects the packing convention of a long array holding count entries of width bits. The data version
// decides when present; otherwise the length of the array does.
func PackingFor(root nbt.Tag, longs, width, count int) cursor.Packing {
	if v, ok := DataVersion(root); ok {
		if v >= alignedDataVersion {
			return cursor.Aligned
		}
		return cursor.Straddle
	}
	if longs == packedLongs(count, width, cursor.Straddle) && longs != packedLongs(count, width, cursor.Aligned) {
		return cursor.Straddle
	}
	return cursor.Aligned
}

// SortedSections returns the sections of a chunk ordered by their Y index. ok is false if root is not a chunk root.
// Sections without a Y value are left out.
func SortedSections(root nbt.Tag) (sections []nbt.Tag, ok bool) {
	if !IsValidChunkRootTag(root) {
		return nil, false
	}
	sectionTag, found := nbt.FindChildTagAtPath("Level/Sections", root)
	if !found || !IsValidChunkSectionTag(sectionTag) {
		return []nbt.Tag{}, true
	}
	l, _ := sectionTag.List()
	ys, present, _ := nbt.FindCompoundListChildren(sectionTag, func(t nbt.Tag) bool { return t.Name == "Y" })

	type entry struct {
		y       int64
		section nbt.Tag
	}
	entries := make([]entry, 0, len(l.Entries))
	for i, section := range l.Entries {
		if !present[i] {
			continue
		}
		y, ok := ys[i].Int()
		if !ok {
			continue
		}
		entries = append(entries, entry{y: y, section: section})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].y < entries[j].y
	})

	sections = make([]nbt.Tag, len(entries))
	for i, e := range entries {
		sections[i] = e.section
	}
	return sections, true
}

// SectionY returns the vertical index of a section.
func SectionY(section nbt.Tag) (int, bool) {
	t, ok := section.Child("Y")
	if !ok {
		return 0, false
	}
	v, ok := t.Int()
	return int(v), ok
}

// Coordinates returns the world block coordinates of the chunk's minimum corner.
func Coordinates(root nbt.Tag) (x, z int, ok bool) {
	if !IsValidChunkRootTag(root) {
		return 0, 0, false
	}
	xTag, okX := nbt.FindChildTagAtPath("Level/xPos", root)
	zTag, okZ := nbt.FindChildTagAtPath("Level/zPos", root)
	if !okX || !okZ {
		return 0, 0, false
	}
	xPos, okX := xTag.Int()
	zPos, okZ := zTag.Int()
	if !okX || !okZ {
		return 0, 0, false
	}
	return int(xPos) * SectionSize, int(zPos) * SectionSize, true
}

// SectionBlockData decodes the block grid of one section of root. ok is false if the section carries no palette or
// no block states, which is the case for sections that only hold light data.
func SectionBlockData(root, section nbt.Tag) (data *BlockData, ok bool, err error) {
	states, hasStates := section.Child("BlockStates")
	palette, hasPalette := section.Child("Palette")
	if !hasStates || !hasPalette {
		return nil, false, nil
	}
	packing := cursor.Aligned
	if l, isList := palette.List(); isList {
		longs, _ := states.Payload.(nbt.LongArray)
		packing = PackingFor(root, len(longs), BitsPerBlock(len(l.Entries)), BlocksPerSection)
	}
	data, err = NewBlockData(states, palette, packing)
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

// FindBlocksByName returns the world positions of every block of the chunk matching name. Nothing is returned if
// root is not a chunk root.
func FindBlocksByName(root nbt.Tag, name string) ([]Pos, error) {
	sections, ok := SortedSections(root)
	if !ok {
		return nil, nil
	}
	xx, zz, _ := Coordinates(root)

	var out []Pos
	for _, section := range sections {
		y, _ := SectionY(section)
		data, ok, err := SectionBlockData(root, section)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		origin := Pos{xx, y * SectionSize, zz}
		for _, i := range data.FindBlocksByName(name) {
			out = append(out, ChunkCoordinateFromIndex(i).Add(origin))
		}
	}
	return out, nil
}

// Tensor is a dense grid of block identifiers covering the loaded sections of one chunk.
type Tensor struct {
	// MinSection is the Y index of the lowest section.
	MinSection int
	// Sections holds the Y index of the section stored in each 16 block band, in band order. Sections are not
	// necessarily contiguous, so tensor y lies at world y Sections[y/16]*16 + y%16.
	Sections []int
	// Height is the number of block layers, 16 per section.
	Height int
	// Data is indexed [x][y][z].
	Data [][][]BlockID
}

func newTensor(height int) *Tensor {
	t := &Tensor{Height: height, Data: make([][][]BlockID, SectionSize)}
	for x := range t.Data {
		t.Data[x] = make([][]BlockID, height)
		for y := range t.Data[x] {
			column := make([]BlockID, SectionSize)
			for z := range column {
				column[z] = Air
			}
			t.Data[x][y] = column
		}
	}
	return t
}

// WorldY converts a tensor y to a world y.
func (t *Tensor) WorldY(y int) int {
	return t.Sections[y/SectionSize]*SectionSize + y%SectionSize
}

func (t *Tensor) At(x, y, z int) BlockID {
	if x < 0 || x >= SectionSize || z < 0 || z >= SectionSize || y < 0 || y >= t.Height {
		return Air
	}
	return t.Data[x][y][z]
}

// BlockStateTensor decodes every section of root into one grid. Sections are stacked in Y order, one 16 block band
// per section. Cells that cannot be resolved hold Air.
func BlockStateTensor(root nbt.Tag) (*Tensor, error) {
	sections, _ := SortedSections(root)
	t := newTensor(len(sections) * SectionSize)
	t.Sections = make([]int, len(sections))
	for band, section := range sections {
		t.Sections[band], _ = SectionY(section)
	}
	if len(sections) > 0 {
		t.MinSection = t.Sections[0]
	}
	for band, section := range sections {
		data, ok, err := SectionBlockData(root, section)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		yy := band * SectionSize
		for i := 0; i < BlocksPerSection; i++ {
			p := ChunkCoordinateFromIndex(i)
			t.Data[p[0]][p[1]+yy][p[2]] = data.BlockTypeID(i)
		}
	}
	return t, nil
}

// UniqueBlockNames returns the sorted set of block names listed in any section palette of root, without decoding the
// block states.
func UniqueBlockNames(root nbt.Tag) []string {
	sections, _ := SortedSections(root)
	seen := make(map[string]struct{})
	for _, section := range sections {
		palette, ok := section.Child("Palette")
		if !ok {
			continue
		}
		states, err := ParsePalette(palette)
		if err != nil {
			continue
		}
		for _, name := range paletteNames(states) {
			seen[name] = struct{}{}
		}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
