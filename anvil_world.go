package main

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"slices"
	"strings"
	"sync"

	"github.com/astei/anvilscan/anvil"
	"github.com/astei/anvilscan/nbt"
	"golang.org/x/sync/errgroup"
)

// RegionFile is a parsed region file together with its region coordinates.
type RegionFile struct {
	*anvil.Region
	X int
	Z int
}

// ChunkRef identifies one stored chunk of a world.
type ChunkRef struct {
	Region *RegionFile
	// LocalX and LocalZ are the chunk's position inside its region.
	LocalX int
	LocalZ int
}

// Pos returns the chunk coordinates of the chunk.
func (ref ChunkRef) Pos() anvil.ChunkPos {
	return anvil.RegionChunkPos(ref.Region.X, ref.Region.Z, ref.LocalX, ref.LocalZ)
}

func (ref ChunkRef) String() string {
	return fmt.Sprintf("%s[%d,%d]", ref.Region.Name, ref.LocalX, ref.LocalZ)
}

type AnvilWorld struct {
	regions []*RegionFile
	log     *slog.Logger
}

// OpenAnvilWorld reads every region file found in dir. Region files that cannot be parsed are logged and skipped.
func OpenAnvilWorld(fsys fs.FS, dir string, log *slog.Logger) (world *AnvilWorld, err error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("list region directory: %w", err)
	}

	world = &AnvilWorld{log: log}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !anvil.IsValidRegionFileName(name) {
			log.Debug("Skipping non-region entry", "name", name)
			continue
		}
		x, z, _ := anvil.ParseRegionName(name)

		contents, err := fs.ReadFile(fsys, path.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("read region %s: %w", name, err)
		}
		if len(contents) == 0 {
			log.Debug("Skipping empty region file", "region", name)
			continue
		}
		region, err := anvil.NewRegion(contents)
		if err != nil {
			log.Warn("Unable to read region", "region", name, "err", err)
			continue
		}
		region.Name = name
		world.regions = append(world.regions, &RegionFile{Region: region, X: x, Z: z})
	}

	slices.SortFunc(world.regions, func(a, b *RegionFile) int {
		if a.Z != b.Z {
			return a.Z - b.Z
		}
		return a.X - b.X
	})
	log.Info("Discovered regions", "dir", dir, "regions", len(world.regions))
	return world, nil
}

func (world *AnvilWorld) Regions() []*RegionFile {
	return world.regions
}

// Region returns the region file with the given file name.
func (world *AnvilWorld) Region(name string) (*RegionFile, bool) {
	for _, r := range world.regions {
		if r.Name == name {
			return r, true
		}
	}
	return nil, false
}

// ChunkCount returns the number of chunks stored across all regions.
func (world *AnvilWorld) ChunkCount() int {
	n := 0
	for _, r := range world.regions {
		n += r.ChunkCount()
	}
	return n
}

// Chunks decodes every stored chunk of the world, at most workers at a time, and passes each to fn. A chunk that fails
// to decode is logged and skipped without affecting the others. fn may be called concurrently; an error returned by
// fn stops the walk and is returned. If ctx is cancelled the walk stops and the context's error is returned.
func (world *AnvilWorld) Chunks(ctx context.Context, workers int, fn func(ref ChunkRef, chunk nbt.Tag) error) error {
	g, walkCtx := errgroup.WithContext(ctx)
	g.SetLimit(max(workers, 1))

walk:
	for _, region := range world.regions {
		for z := 0; z < anvil.RegionWidth; z++ {
			for x := 0; x < anvil.RegionWidth; x++ {
				if !region.ChunkExists(x, z) {
					continue
				}
				if walkCtx.Err() != nil {
					break walk
				}
				ref := ChunkRef{Region: region, LocalX: x, LocalZ: z}
				g.Go(func() error {
					if err := walkCtx.Err(); err != nil {
						return err
					}
					chunk, ok, err := ref.Region.ReadChunk(ref.LocalX, ref.LocalZ)
					if err != nil {
						world.log.Warn("Unable to read chunk", "region", ref.Region.Name, "x", ref.LocalX, "z", ref.LocalZ, "err", err)
						return nil
					}
					if !ok {
						return nil
					}
					return fn(ref, chunk)
				})
			}
		}
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

// FindBlocks returns the world positions of all blocks matching name, sorted by position. Chunks whose palettes do
// not mention the block are skipped without decoding their block states.
func (world *AnvilWorld) FindBlocks(ctx context.Context, name string, workers int) ([]anvil.Pos, error) {
	blockName, _, _ := strings.Cut(name, "(")

	var (
		mu    sync.Mutex
		found []anvil.Pos
	)
	err := world.Chunks(ctx, workers, func(ref ChunkRef, chunk nbt.Tag) error {
		if _, ok := slices.BinarySearch(anvil.UniqueBlockNames(chunk), blockName); !ok {
			return nil
		}
		blocks, err := anvil.FindBlocksByName(chunk, name)
		if err != nil {
			world.log.Warn("Unable to decode chunk", "chunk", ref.String(), "err", err)
			return nil
		}
		mu.Lock()
		found = append(found, blocks...)
		mu.Unlock()
		return nil
	})
	if err != nil {
		return nil, err
	}
	slices.SortFunc(found, func(a, b anvil.Pos) int {
		switch {
		case a.Less(b):
			return -1
		case b.Less(a):
			return 1
		}
		return 0
	})
	return found, nil
}
