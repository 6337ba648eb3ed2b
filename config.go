package main

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/astei/anvilscan/anvil"
	"github.com/pelletier/go-toml"
)

// Config holds the settings read from the configuration file. Command line flags override them.
type Config struct {
	World struct {
		// Dir is the directory holding the region files, usually <save>/region.
		Dir string
		// Heightmap is the heightmap used for surface heights and biomes.
		Heightmap string
	}
	Scan struct {
		// Workers is the number of chunks decoded in parallel.
		Workers int
	}
	Log struct {
		// Level is one of debug, info, warn or error.
		Level string
	}
}

func DefaultConfig() Config {
	c := Config{}
	c.World.Dir = "region"
	c.World.Heightmap = anvil.DefaultHeightmap
	c.Scan.Workers = runtime.GOMAXPROCS(0)
	c.Log.Level = "info"
	return c
}

// LoadConfig reads the configuration at path. A missing file is created with the default settings.
func LoadConfig(path string) (Config, error) {
	c := DefaultConfig()
	contents, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return c, writeConfig(path, c)
		}
		return c, fmt.Errorf("read config: %w", err)
	}
	if len(contents) != 0 {
		if err := toml.Unmarshal(contents, &c); err != nil {
			return c, fmt.Errorf("decode config: %w", err)
		}
	}
	if c.Scan.Workers < 1 {
		c.Scan.Workers = 1
	}
	if c.World.Heightmap == "" {
		c.World.Heightmap = anvil.DefaultHeightmap
	}
	return c, nil
}

func writeConfig(path string, c Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0777); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	encoded, err := toml.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.WriteFile(path, encoded, 0644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Logger builds the logger described by the configuration, writing text records to stderr.
func (c Config) Logger() *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(c.Log.Level))); err != nil {
		level = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
