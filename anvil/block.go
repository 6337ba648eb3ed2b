package anvil

import (
	"fmt"
	"math/bits"
	"slices"
	"sort"
	"strings"

	"github.com/astei/anvilscan/cursor"
	"github.com/astei/anvilscan/nbt"
	"github.com/segmentio/fasthash/fnv1a"
)

// BlockID identifies a block type together with its properties. It is the 32-bit FNV-1a hash of the block's
// canonical type string, see BlockTypeString.
type BlockID uint32

// Air is the identifier of plain air, used for every cell that cannot be resolved.
var Air = BlockTypeID("minecraft:air", nil)

// BlockState is one entry of a section palette.
type BlockState struct {
	Name       string
	Properties map[string]string
}

func (s BlockState) ID() BlockID {
	return BlockTypeID(s.Name, s.Properties)
}

func (s BlockState) String() string {
	return BlockTypeString(s.Name, s.Properties)
}

// BlockTypeString renders a block type as name(key=value,...) with the property keys sorted, for example
// minecraft:oak_log(axis=y). A block without properties renders as name().
func BlockTypeString(name string, properties map[string]string) string {
	keys := make([]string, 0, len(properties))
	for k := range properties {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(name)
	b.WriteByte('(')
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(properties[k])
	}
	b.WriteByte(')')
	return b.String()
}

func BlockTypeID(name string, properties map[string]string) BlockID {
	return BlockID(fnv1a.HashString32(BlockTypeString(name, properties)))
}

// BitsPerBlock returns the width of one palette index for a palette of n entries: max(4, ceil(log2(n))).
func BitsPerBlock(n int) int {
	if n < 2 {
		return 4
	}
	return max(4, bits.Len(uint(n-1)))
}

// ParsePalette reads a section palette, a list of compounds holding a Name and an optional Properties compound.
func ParsePalette(t nbt.Tag) ([]BlockState, error) {
	l, ok := t.List()
	if !ok || (l.SubType != nbt.TypeCompound && len(l.Entries) > 0) {
		return nil, fmt.Errorf("%w: palette is %s, want a list of compounds", ErrMalformed, t.Type())
	}
	palette := make([]BlockState, len(l.Entries))
	for i, entry := range l.Entries {
		if name, ok := entry.Child("Name"); ok {
			palette[i].Name, _ = name.Str()
		}
		props, ok := entry.Child("Properties")
		if !ok {
			continue
		}
		children, _ := props.Compound()
		palette[i].Properties = make(map[string]string, len(children))
		for _, p := range children {
			palette[i].Properties[p.Name], _ = p.Str()
		}
	}
	return palette, nil
}

// packedLongs returns the number of longs holding count entries of the given width.
func packedLongs(count, width int, packing cursor.Packing) int {
	if packing == cursor.Aligned {
		perWord := 64 / width
		return (count + perWord - 1) / perWord
	}
	return (count*width + 63) / 64
}

// unpack extracts count width-bit entries from a long array. Entries are packed from the least significant bit of
// each long upwards, so the words are read in reverse and the entries come out last first.
func unpack(longs []int64, width, count int, packing cursor.Packing) ([]int, error) {
	if want := packedLongs(count, width, packing); len(longs) != want {
		return nil, fmt.Errorf("%w: %d longs for %d entries of %d bits (%s), want %d", ErrMalformed, len(longs), count, width, packing, want)
	}
	words := make([]uint64, len(longs))
	for i, l := range longs {
		words[len(longs)-1-i] = uint64(l)
	}
	r := cursor.NewWordReader(words, packing)

	total := count
	pad := len(longs)*64 - count*width
	if packing == cursor.Aligned {
		perWord := 64 / width
		total = len(longs) * perWord
		pad = 64 - perWord*width
	} else if err := r.Skip(pad); err != nil {
		return nil, err
	}

	out := make([]int, count)
	for j := total - 1; j >= 0; j-- {
		if packing == cursor.Aligned && r.WordOffset() == 0 {
			if err := r.Skip(pad); err != nil {
				return nil, err
			}
		}
		v, err := r.Bits(width)
		if err != nil {
			return nil, err
		}
		if j < count {
			out[j] = int(v)
		}
	}
	return out, nil
}

// BlockData is the decoded block grid of one section.
type BlockData struct {
	palette []BlockState
	ids     []BlockID
	indices []int
}

// NewBlockData decodes the BlockStates long array of a section through its Palette.
func NewBlockData(states, palette nbt.Tag, packing cursor.Packing) (*BlockData, error) {
	p, err := ParsePalette(palette)
	if err != nil {
		return nil, err
	}
	longs, ok := states.Payload.(nbt.LongArray)
	if !ok {
		return nil, fmt.Errorf("%w: block states are %s, want %s", ErrMalformed, states.Type(), nbt.TypeLongArray)
	}

	b := &BlockData{palette: p, ids: make([]BlockID, len(p))}
	for i, s := range p {
		if s.Name == "" {
			b.ids[i] = Air
			continue
		}
		b.ids[i] = s.ID()
	}
	if len(longs) == 0 && len(p) <= 1 {
		b.indices = make([]int, BlocksPerSection)
		return b, nil
	}
	if b.indices, err = unpack(longs, BitsPerBlock(len(p)), BlocksPerSection, packing); err != nil {
		return nil, err
	}
	return b, nil
}

func (b *BlockData) Palette() []BlockState {
	return b.palette
}

// Index returns the raw palette index stored at a local block index.
func (b *BlockData) Index(i int) int {
	return b.indices[i]
}

// BlockTypeID returns the identifier at a local block index, or Air if its palette index is out of range.
func (b *BlockData) BlockTypeID(i int) BlockID {
	idx := b.indices[i]
	if idx < 0 || idx >= len(b.ids) {
		return Air
	}
	return b.ids[idx]
}

// BlockTypeIDs returns the identifiers of all 4096 blocks of the section in local index order.
func (b *BlockData) BlockTypeIDs() []BlockID {
	out := make([]BlockID, len(b.indices))
	for i := range out {
		out[i] = b.BlockTypeID(i)
	}
	return out
}

// Names returns the sorted names of the block types actually present in the section.
func (b *BlockData) Names() []string {
	used := make([]bool, len(b.palette))
	for _, idx := range b.indices {
		if idx >= 0 && idx < len(used) {
			used[idx] = true
		}
	}
	var names []string
	for i, s := range b.palette {
		if used[i] && !slices.Contains(names, s.Name) {
			names = append(names, s.Name)
		}
	}
	sort.Strings(names)
	return names
}

// FindBlocksByName returns the local indices of every block whose type matches name. The name may be a bare block
// name, matching any properties, or a full type string as produced by BlockTypeString.
func (b *BlockData) FindBlocksByName(name string) []int {
	match := make([]bool, len(b.palette))
	found := false
	for i, s := range b.palette {
		if s.Name == name || s.String() == name {
			match[i] = true
			found = true
		}
	}
	if !found {
		return nil
	}
	var out []int
	for i, idx := range b.indices {
		if idx >= 0 && idx < len(match) && match[idx] {
			out = append(out, i)
		}
	}
	return out
}

func paletteNames(palette []BlockState) []string {
	names := make([]string, 0, len(palette))
	for _, s := range palette {
		names = append(names, s.Name)
	}
	return names
}
