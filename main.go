package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/astei/anvilscan/anvil"
	"github.com/astei/anvilscan/nbt"
	"github.com/urfave/cli/v2"
)

type scanner struct {
	config Config
	log    *slog.Logger
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := newApp().RunContext(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	s := &scanner{}
	return &cli.App{
		Name:  "anvilscan",
		Usage: "inspect Minecraft Anvil worlds",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "config",
				Value: "anvilscan.toml",
				Usage: "configuration file, created with defaults when missing",
			},
			&cli.StringFlag{
				Name:    "world",
				Aliases: []string{"dir"},
				Usage:   "directory holding the region files",
			},
			&cli.IntFlag{
				Name:  "workers",
				Usage: "number of chunks decoded in parallel",
			},
			&cli.StringFlag{
				Name:  "heightmap",
				Usage: "heightmap used for surface heights and biomes",
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "log debug output",
			},
		},
		Before: s.setup,
		Commands: []*cli.Command{
			{
				Name:   "regions",
				Usage:  "list the region files of the world",
				Action: s.regions,
			},
			{
				Name:  "chunk",
				Usage: "describe a single chunk",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "region", Required: true, Usage: "region file name, r.X.Z.mca"},
					&cli.IntFlag{Name: "x", Usage: "chunk x inside the region"},
					&cli.IntFlag{Name: "z", Usage: "chunk z inside the region"},
				},
				Action: s.chunk,
			},
			{
				Name:  "find",
				Usage: "list the positions of every block of a type",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "block", Required: true, Usage: "block name or full block type string"},
				},
				Action: s.find,
			},
			{
				Name:      "dump",
				Usage:     "print a standalone NBT file",
				ArgsUsage: "FILE",
				Action:    s.dump,
			},
			{
				Name:  "export",
				Usage: "write the block grids of every chunk to a voxel file",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "out", Value: "world.voxels", Usage: "output file"},
				},
				Action: s.export,
			},
		},
	}
}

func (s *scanner) setup(c *cli.Context) error {
	config, err := LoadConfig(c.String("config"))
	if err != nil {
		return err
	}
	if c.IsSet("world") {
		config.World.Dir = c.String("world")
	}
	if c.IsSet("workers") {
		config.Scan.Workers = max(c.Int("workers"), 1)
	}
	if c.IsSet("heightmap") {
		config.World.Heightmap = c.String("heightmap")
	}
	if c.Bool("verbose") {
		config.Log.Level = "debug"
	}
	s.config = config
	s.log = config.Logger()
	return nil
}

func (s *scanner) openWorld() (*AnvilWorld, error) {
	return OpenAnvilWorld(os.DirFS(s.config.World.Dir), ".", s.log.With("world", s.config.World.Dir))
}

func (s *scanner) regions(c *cli.Context) error {
	world, err := s.openWorld()
	if err != nil {
		return err
	}
	out := c.App.Writer
	for _, region := range world.Regions() {
		fmt.Fprintf(out, "%s\tx=%d\tz=%d\tchunks=%d\n", region.Name, region.X, region.Z, region.ChunkCount())
	}
	fmt.Fprintf(out, "%d regions, %d chunks\n", len(world.Regions()), world.ChunkCount())
	return nil
}

func (s *scanner) chunk(c *cli.Context) error {
	world, err := s.openWorld()
	if err != nil {
		return err
	}
	region, ok := world.Region(c.String("region"))
	if !ok {
		return fmt.Errorf("region %s not found in %s", c.String("region"), s.config.World.Dir)
	}
	root, ok, err := region.ReadChunk(c.Int("x"), c.Int("z"))
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("chunk %d,%d is not stored in %s", c.Int("x"), c.Int("z"), region.Name)
	}
	chunk, err := readMinecraftChunk(root, s.config.World.Heightmap)
	if err != nil {
		return err
	}
	writeMinecraftChunk(c.App.Writer, chunk)
	return nil
}

func writeMinecraftChunk(out io.Writer, chunk MinecraftChunk) {
	fmt.Fprintf(out, "position: %d,%d\n", chunk.X, chunk.Z)
	fmt.Fprintf(out, "data version: %d\n", chunk.DataVersion)
	fmt.Fprintf(out, "sections: %v\n", chunk.Sections)
	fmt.Fprintf(out, "blocks: %s\n", strings.Join(chunk.Blocks, ", "))
	if chunk.Heights != nil {
		fmt.Fprintln(out, "heights:")
		for z := 0; z < anvil.SectionSize; z++ {
			row := make([]string, anvil.SectionSize)
			for x := range row {
				row[x] = fmt.Sprint(chunk.Heights[x][z])
			}
			fmt.Fprintf(out, "  %s\n", strings.Join(row, " "))
		}
	}
	if chunk.Biomes != nil {
		fmt.Fprintln(out, "biomes:")
		for z := 0; z < anvil.BiomeCellSize; z++ {
			row := make([]string, anvil.BiomeCellSize)
			for x := range row {
				row[x] = fmt.Sprint(chunk.Biomes[x][z])
			}
			fmt.Fprintf(out, "  %s\n", strings.Join(row, " "))
		}
	}
}

func (s *scanner) find(c *cli.Context) error {
	world, err := s.openWorld()
	if err != nil {
		return err
	}
	found, err := world.FindBlocks(c.Context, c.String("block"), s.config.Scan.Workers)
	if err != nil {
		return err
	}
	for _, p := range found {
		fmt.Fprintf(c.App.Writer, "%d %d %d\n", p.X(), p.Y(), p.Z())
	}
	s.log.Info("Search finished", "block", c.String("block"), "found", len(found))
	return nil
}

func (s *scanner) dump(c *cli.Context) error {
	if c.NArg() != 1 {
		return errors.New("dump expects exactly one file")
	}
	contents, err := os.ReadFile(c.Args().First())
	if err != nil {
		return err
	}
	tag, err := nbt.ParseAny(contents)
	if err != nil {
		return fmt.Errorf("%s: %w", c.Args().First(), err)
	}
	return nbt.Explain(c.App.Writer, tag)
}

func (s *scanner) export(c *cli.Context) (err error) {
	world, err := s.openWorld()
	if err != nil {
		return err
	}
	file, err := os.Create(c.String("out"))
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := file.Close(); err == nil {
			err = closeErr
		}
	}()

	out := bufio.NewWriter(file)
	if err = world.WriteVoxels(c.Context, out, s.config.Scan.Workers); err != nil {
		if errors.Is(err, context.Canceled) {
			s.log.Warn("Export interrupted", "out", c.String("out"))
		}
		return err
	}
	return out.Flush()
}
