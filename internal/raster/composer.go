// Package raster is the composition engine: it turns planned grids of tiles
// into raster sheets and stacks sheets into final artifacts.
//
// The Composer interface isolates the actual rasterizer. NativeComposer draws
// in-process; MagickComposer shells out to ImageMagick the way the original
// pipeline did. The Assembler sits on top of either and owns the multi-sheet
// naming, promotion and cleanup rules.
package raster

import (
	"context"
	"errors"

	"github.com/danieljhkim/mosaic/internal/palette"
	"github.com/danieljhkim/mosaic/internal/planner"
)

// ErrPartialSheet indicates the sheet was written but some tiles could not
// be drawn.
var ErrPartialSheet = errors.New("partial sheet")

// TileKind selects the drawing primitive for a tile.
type TileKind int

const (
	// TileImage overlays an image file at the tile offset.
	TileImage TileKind = iota

	// TileFill fills the tile rectangle with a solid colour.
	TileFill
)

// Tile is one drawing primitive on a sheet.
type Tile struct {
	Kind  TileKind
	Image string
	Color palette.Color
	Top   int
	Left  int
}

// ImageTile places the image at path on the given cell.
func ImageTile(path string, cell planner.Cell) Tile {
	return Tile{Kind: TileImage, Image: path, Top: cell.Top, Left: cell.Left}
}

// FillTile paints the given cell with c.
func FillTile(c palette.Color, cell planner.Cell) Tile {
	return Tile{Kind: TileFill, Color: c, Top: cell.Top, Left: cell.Left}
}

// Sheet describes one raster to render.
type Sheet struct {
	// Output is the file to write; its extension selects the format
	Output string

	// Width and Height are the canvas size in pixels
	Width  int
	Height int

	// TileSize is the edge length of every tile
	TileSize int

	// Tiles are drawn in order
	Tiles []Tile
}

// NewSheet sizes a sheet from a layout.
func NewSheet(output string, layout planner.Layout, tiles []Tile) Sheet {
	return Sheet{
		Output:   output,
		Width:    layout.Width(),
		Height:   layout.Height(),
		TileSize: layout.TileSize,
		Tiles:    tiles,
	}
}

// Direction is the stacking axis.
type Direction int

const (
	// Horizontal places inputs left to right.
	Horizontal Direction = iota

	// Vertical places inputs top to bottom.
	Vertical
)

func (d Direction) String() string {
	if d == Vertical {
		return "vertical"
	}
	return "horizontal"
}

// Composer renders sheets and stacks existing rasters. Both calls block
// until the output file is complete.
type Composer interface {
	// RenderSheet draws every tile of sheet and writes sheet.Output.
	RenderSheet(ctx context.Context, sheet Sheet) error

	// Stack places inputs next to each other along dir and writes output.
	Stack(ctx context.Context, inputs []string, dir Direction, output string) error
}
