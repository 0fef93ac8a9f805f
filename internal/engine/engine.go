// Package engine builds the derived artifacts of a bucket.
//
// The engine is the orchestration layer between the request surfaces (CLI
// and HTTP) and the lower-level packages. It plans grids, resolves every
// item to a tile, renders sheets through a raster.Composer and assembles
// them into final files.
//
// Key operations:
//   - BuildAtlas: thumbnail mosaics, sheets sized by the capacity policy
//   - BuildPixels: one solid tile per item, coloured from its palette
//   - ImportColors: load colour-extraction files into the store
//
// Builds degrade instead of failing. Missing records, unreadable images and
// tool failures end up in Artifact.Fallbacks and Artifact.Failures; the
// error return is reserved for invalid input and cancellation.
package engine

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/danieljhkim/mosaic/internal/clock"
	"github.com/danieljhkim/mosaic/internal/config"
	"github.com/danieljhkim/mosaic/internal/fsops"
	"github.com/danieljhkim/mosaic/internal/hash"
	"github.com/danieljhkim/mosaic/internal/locator"
	"github.com/danieljhkim/mosaic/internal/metrics"
	"github.com/danieljhkim/mosaic/internal/palette"
	"github.com/danieljhkim/mosaic/internal/raster"
	"github.com/danieljhkim/mosaic/internal/store"
)

// Options tunes builds. Zero values are replaced by defaults.
type Options struct {
	// AtlasDir and PixelsDir receive final artifacts and intermediate sheets
	AtlasDir  string
	PixelsDir string

	// ColorsDir holds <id>.json colour-extraction files
	ColorsDir string

	// QueryLimit bounds ids per store statement
	QueryLimit int

	AtlasTileSize int
	MaxAtlasSize  int
	SheetsPerRow  int
	AtlasExt      string

	PixelTileSize int
	PixelExt      string

	// Workers bounds groups rendered concurrently
	Workers int
}

// OptionsFromConfig maps the loaded configuration onto engine options.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		AtlasDir:      cfg.OutputDir(),
		PixelsDir:     cfg.PixelsDir(),
		ColorsDir:     cfg.ColorsDir(),
		QueryLimit:    cfg.Atlas.QueryLimit,
		AtlasTileSize: cfg.Atlas.TileSize,
		MaxAtlasSize:  cfg.Atlas.MaxAtlasSize,
		SheetsPerRow:  cfg.Atlas.SheetsPerRow,
		AtlasExt:      cfg.Atlas.Ext,
		PixelTileSize: cfg.Pixels.TileSize,
		PixelExt:      cfg.Pixels.Ext,
		Workers:       cfg.Render.Workers,
	}
}

func (o Options) withDefaults() Options {
	if o.QueryLimit < 1 {
		o.QueryLimit = 4096
	}
	if o.AtlasTileSize < 1 {
		o.AtlasTileSize = 32
	}
	if o.SheetsPerRow < 1 {
		o.SheetsPerRow = 4
	}
	if o.AtlasExt == "" {
		o.AtlasExt = "jpg"
	}
	if o.PixelTileSize < 1 {
		o.PixelTileSize = 1
	}
	if o.PixelExt == "" {
		o.PixelExt = "png"
	}
	if o.Workers < 1 {
		o.Workers = 1
	}
	return o
}

// Engine orchestrates artifact builds.
// It is the main API surface called by the CLI and the HTTP server.
type Engine struct {
	store     store.Store
	locator   *locator.Locator
	resolver  *palette.Resolver
	composer  raster.Composer
	assembler *raster.Assembler
	fs        fsops.FS
	hasher    hash.Hasher
	clock     clock.Clock
	metrics   *metrics.Metrics
	logger    *zap.Logger
	opts      Options
}

// New creates a new Engine with the given dependencies.
func New(
	st store.Store,
	loc *locator.Locator,
	composer raster.Composer,
	fs fsops.FS,
	hasher hash.Hasher,
	clk clock.Clock,
	m *metrics.Metrics,
	logger *zap.Logger,
	opts Options,
) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if m == nil {
		m = metrics.New()
	}
	opts = opts.withDefaults()
	return &Engine{
		store:     st,
		locator:   loc,
		resolver:  palette.NewResolver(st, opts.QueryLimit, logger),
		composer:  composer,
		assembler: raster.NewAssembler(composer, fs, logger),
		fs:        fs,
		hasher:    hasher,
		clock:     clk,
		metrics:   m,
		logger:    logger,
		opts:      opts,
	}
}

// Options returns the effective options.
func (e *Engine) Options() Options {
	return e.opts
}

// Locator returns the image locator used for atlas tiles.
func (e *Engine) Locator() *locator.Locator {
	return e.locator
}

// ListBuckets returns every bucket, largest first.
func (e *Engine) ListBuckets(ctx context.Context) ([]store.Bucket, error) {
	buckets, err := e.store.ListBuckets(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list buckets: %w", err)
	}
	return buckets, nil
}

// FindBucket returns the bucket with the given key.
func (e *Engine) FindBucket(ctx context.Context, key string) (store.Bucket, error) {
	if err := validateKey(key); err != nil {
		return store.Bucket{}, err
	}
	buckets, err := e.ListBuckets(ctx)
	if err != nil {
		return store.Bucket{}, err
	}
	b, ok := store.FindBucket(buckets, key)
	if !ok {
		return store.Bucket{}, fmt.Errorf("bucket %q: %w", key, ErrNotFound)
	}
	return b, nil
}

// LookupFilename returns the stored filename of one item.
func (e *Engine) LookupFilename(ctx context.Context, id string) (string, error) {
	names, err := e.store.LookupFilenames(ctx, []string{id})
	if err != nil {
		return "", fmt.Errorf("failed to look up item %s: %w", id, err)
	}
	name, ok := names[id]
	if !ok {
		return "", fmt.Errorf("item %q: %w", id, ErrNotFound)
	}
	return name, nil
}

// validateKey rejects bucket keys that cannot be used in artifact file names.
func validateKey(key string) error {
	if err := fsops.ValidateIdentifier(key); err != nil {
		return fmt.Errorf("%w: bucket key: %v", ErrValidation, err)
	}
	return nil
}
