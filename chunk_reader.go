package main

import (
	"errors"

	"github.com/astei/anvilscan/anvil"
	"github.com/astei/anvilscan/nbt"
)

var errNotChunk = errors.New("document is not a chunk")

// MinecraftChunk is the decoded view of one chunk document used by the commands.
type MinecraftChunk struct {
	X int
	Z int

	DataVersion int
	Sections    []int
	Blocks      []string

	Heights *anvil.Heightmap
	Biomes  *[anvil.BiomeCellSize][anvil.BiomeCellSize]int32
}

func readMinecraftChunk(root nbt.Tag, heightmap string) (chunk MinecraftChunk, err error) {
	sections, ok := anvil.SortedSections(root)
	if !ok {
		return chunk, errNotChunk
	}
	chunk.X, chunk.Z, _ = anvil.Coordinates(root)
	chunk.DataVersion, _ = anvil.DataVersion(root)
	for _, section := range sections {
		y, _ := anvil.SectionY(section)
		chunk.Sections = append(chunk.Sections, y)
	}
	chunk.Blocks = anvil.UniqueBlockNames(root)

	if chunk.Heights, err = anvil.WorldHeights(root, heightmap); err != nil {
		return chunk, err
	}
	if chunk.Biomes, err = anvil.BiomesAtWorldHeight(root, heightmap); err != nil {
		return chunk, err
	}
	return chunk, nil
}
