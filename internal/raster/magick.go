package raster

import (
	"context"
	"fmt"
	"strconv"

	"github.com/danieljhkim/mosaic/internal/execx"
)

// MagickComposer renders through the ImageMagick command line. Each call is
// one synchronous tool invocation.
type MagickComposer struct {
	runner  execx.Runner
	binary  string
	workDir string
	quality int
}

// NewMagickComposer creates a MagickComposer. binary is usually "magick"
// (ImageMagick 7) or "convert" (ImageMagick 6).
func NewMagickComposer(runner execx.Runner, binary, workDir string, quality int) *MagickComposer {
	if binary == "" {
		binary = "magick"
	}
	if quality < 1 || quality > 100 {
		quality = 90
	}
	return &MagickComposer{runner: runner, binary: binary, workDir: workDir, quality: quality}
}

// RenderSheet composites every image tile and draws every fill tile onto a
// transparent canvas of the sheet size.
func (c *MagickComposer) RenderSheet(ctx context.Context, sheet Sheet) error {
	if _, err := c.runner.Run(ctx, c.workDir, c.binary, SheetArgs(sheet, c.quality)...); err != nil {
		return fmt.Errorf("failed to render %s: %w", sheet.Output, err)
	}
	return nil
}

// Stack appends the inputs left to right or top to bottom.
func (c *MagickComposer) Stack(ctx context.Context, inputs []string, dir Direction, output string) error {
	if len(inputs) == 0 {
		return fmt.Errorf("nothing to stack")
	}
	if _, err := c.runner.Run(ctx, c.workDir, c.binary, StackArgs(inputs, dir, output, c.quality)...); err != nil {
		return fmt.Errorf("failed to stack %s: %w", output, err)
	}
	return nil
}

// SheetArgs builds the ImageMagick arguments that render sheet.
func SheetArgs(sheet Sheet, quality int) []string {
	size := strconv.Itoa(sheet.TileSize)
	args := []string{
		"-size", fmt.Sprintf("%dx%d", sheet.Width, sheet.Height),
		"xc:none",
	}
	for _, t := range sheet.Tiles {
		switch t.Kind {
		case TileFill:
			args = append(args,
				"-fill", t.Color.Hex(),
				"-draw", fmt.Sprintf("rectangle %d,%d %d,%d", t.Left, t.Top, t.Left+sheet.TileSize-1, t.Top+sheet.TileSize-1),
			)
		default:
			args = append(args,
				"(", t.Image, "-resize", size+"x"+size+"^", "-gravity", "center", "-extent", size+"x"+size, ")",
				"-gravity", "northwest",
				"-geometry", fmt.Sprintf("+%d+%d", t.Left, t.Top),
				"-composite",
			)
		}
	}
	return append(args, "-quality", strconv.Itoa(quality), sheet.Output)
}

// StackArgs builds the ImageMagick arguments that stack inputs.
func StackArgs(inputs []string, dir Direction, output string, quality int) []string {
	args := append([]string{"-background", "none"}, inputs...)
	if dir == Horizontal {
		args = append(args, "+append")
	} else {
		args = append(args, "-append")
	}
	return append(args, "-quality", strconv.Itoa(quality), output)
}
