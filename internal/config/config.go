// Package config provides configuration loading and management for mosaic.
//
// Configuration is YAML. Relative paths in the paths section and the sqlite
// DSN are resolved against Root, which defaults to the working directory.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

// Supported render backends.
const (
	BackendNative = "native"
	BackendMagick = "magick"
)

// Config represents the complete mosaic configuration.
type Config struct {
	// Root is the directory relative paths resolve against
	Root string `yaml:"root"`

	Store   StoreConfig   `yaml:"store"`
	Paths   PathsConfig   `yaml:"paths"`
	Atlas   AtlasConfig   `yaml:"atlas"`
	Pixels  PixelsConfig  `yaml:"pixels"`
	Render  RenderConfig  `yaml:"render"`
	Server  ServerConfig  `yaml:"server"`
	Logging LoggingConfig `yaml:"logging"`
}

// StoreConfig configures the persisted store.
type StoreConfig struct {
	// Driver is "pgx" (Postgres) or "sqlite"
	Driver string `yaml:"driver"`
	// DSN is the connection string; a relative sqlite path resolves against Root
	DSN string `yaml:"dsn"`
	// BucketTable holds bucket membership
	BucketTable string `yaml:"bucket_table"`
	// FileTable holds filenames and palettes
	FileTable string `yaml:"file_table"`
}

// PathsConfig locates source images, colour files and outputs.
type PathsConfig struct {
	ThumbnailDir string `yaml:"thumbnail_dir"`
	FullDir      string `yaml:"full_dir"`
	ThumbnailExt string `yaml:"thumbnail_ext"`
	FullExt      string `yaml:"full_ext"`
	ColorsDir    string `yaml:"colors_dir"`
	OutputDir    string `yaml:"output_dir"`
	PixelsDir    string `yaml:"pixels_dir"`
	Placeholder  string `yaml:"placeholder"`
}

// AtlasConfig configures atlas builds.
type AtlasConfig struct {
	// TileSize is the edge of one thumbnail cell in pixels
	TileSize int `yaml:"tile_size"`
	// QueryLimit bounds ids per store lookup and is the minimum sheet capacity
	QueryLimit int `yaml:"query_limit"`
	// MaxAtlasSize caps the tiles on one sheet (0 = no ceiling)
	MaxAtlasSize int `yaml:"max_atlas_size"`
	// SheetsPerRow is how many sheets sit side by side in a final file
	SheetsPerRow int `yaml:"sheets_per_row"`
	// Ext is the output format
	Ext string `yaml:"ext"`
}

// PixelsConfig configures pixel-summary builds.
type PixelsConfig struct {
	TileSize int    `yaml:"tile_size"`
	Ext      string `yaml:"ext"`
}

// RenderConfig selects and tunes the raster backend.
type RenderConfig struct {
	// Backend is "native" or "magick"
	Backend string `yaml:"backend"`
	// MagickBinary is the ImageMagick executable
	MagickBinary string `yaml:"magick_binary"`
	// Workers bounds groups rendered concurrently
	Workers int `yaml:"workers"`
	// Quality is the JPEG quality (1-100)
	Quality int `yaml:"quality"`
}

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	Addr         string        `yaml:"addr"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// LoggingConfig configures the zap logger.
type LoggingConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Root: ".",
		Store: StoreConfig{
			Driver:      "sqlite",
			DSN:         "mosaic.db",
			BucketTable: "bucket_ids",
			FileTable:   "file_mga",
		},
		Paths: PathsConfig{
			ThumbnailDir: "32_32",
			FullDir:      "files",
			ThumbnailExt: "png",
			FullExt:      "jpg",
			ColorsDir:    "data/colors_output_jq",
			OutputDir:    "server/public/atlas",
			PixelsDir:    "server/public/pixels",
			Placeholder:  "server/public/images/blank.png",
		},
		Atlas: AtlasConfig{
			TileSize:     32,
			QueryLimit:   4096,
			MaxAtlasSize: 4096,
			SheetsPerRow: 4,
			Ext:          "jpg",
		},
		Pixels: PixelsConfig{
			TileSize: 1,
			Ext:      "png",
		},
		Render: RenderConfig{
			Backend:      BackendNative,
			MagickBinary: "magick",
			Workers:      1,
			Quality:      90,
		},
		Server: ServerConfig{
			Addr:         ":3000",
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 10 * time.Minute,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.Root == "" {
		return fmt.Errorf("root is required")
	}
	switch c.Store.Driver {
	case "pgx", "sqlite":
	default:
		return fmt.Errorf("store.driver must be pgx or sqlite, got %q", c.Store.Driver)
	}
	if c.Store.DSN == "" {
		return fmt.Errorf("store.dsn is required")
	}
	if c.Store.BucketTable == "" || c.Store.FileTable == "" {
		return fmt.Errorf("store.bucket_table and store.file_table are required")
	}
	if c.Paths.OutputDir == "" || c.Paths.PixelsDir == "" {
		return fmt.Errorf("paths.output_dir and paths.pixels_dir are required")
	}
	if c.Paths.Placeholder == "" {
		return fmt.Errorf("paths.placeholder is required")
	}
	if c.Atlas.TileSize < 1 {
		return fmt.Errorf("atlas.tile_size must be positive")
	}
	if c.Atlas.QueryLimit < 1 {
		return fmt.Errorf("atlas.query_limit must be positive")
	}
	if c.Atlas.MaxAtlasSize < 0 {
		return fmt.Errorf("atlas.max_atlas_size must not be negative")
	}
	if c.Atlas.SheetsPerRow < 1 {
		return fmt.Errorf("atlas.sheets_per_row must be positive")
	}
	if c.Pixels.TileSize < 1 {
		return fmt.Errorf("pixels.tile_size must be positive")
	}
	for name, ext := range map[string]string{"atlas.ext": c.Atlas.Ext, "pixels.ext": c.Pixels.Ext} {
		if !supportedExt(ext) {
			return fmt.Errorf("%s must be jpg, jpeg or png, got %q", name, ext)
		}
	}
	switch c.Render.Backend {
	case BackendNative:
	case BackendMagick:
		if c.Render.MagickBinary == "" {
			return fmt.Errorf("render.magick_binary is required for the magick backend")
		}
	default:
		return fmt.Errorf("render.backend must be native or magick, got %q", c.Render.Backend)
	}
	if c.Render.Workers < 1 {
		return fmt.Errorf("render.workers must be positive")
	}
	if c.Render.Quality < 1 || c.Render.Quality > 100 {
		return fmt.Errorf("render.quality must be between 1 and 100")
	}
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}
	if _, err := zapcore.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}
	return nil
}

func supportedExt(ext string) bool {
	switch strings.ToLower(ext) {
	case "jpg", "jpeg", "png":
		return true
	}
	return false
}

// LoadFromFile loads configuration from a YAML file on top of the defaults.
func LoadFromFile(path string) (*Config, error) {
	config := DefaultConfig()
	if err := mergeFile(config, path); err != nil {
		return nil, err
	}
	return config, nil
}

// mergeFile decodes path onto config. Keys absent from the file keep their
// current values.
func mergeFile(config *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, config); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// SaveToFile saves configuration to a YAML file.
func (c *Config) SaveToFile(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
