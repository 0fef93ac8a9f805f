package raster

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"

	"github.com/disintegration/imaging"

	"github.com/danieljhkim/mosaic/internal/fsops"
)

// NativeComposer renders in-process with the imaging package. Output is a
// pure function of the inputs, so unchanged inputs give byte-identical files.
type NativeComposer struct {
	fs         fsops.FS
	quality    int
	background color.Color
}

// NewNativeComposer creates a NativeComposer writing JPEGs at the given
// quality (1-100).
func NewNativeComposer(fs fsops.FS, quality int) *NativeComposer {
	if quality < 1 || quality > 100 {
		quality = 90
	}
	return &NativeComposer{fs: fs, quality: quality, background: color.Transparent}
}

// RenderSheet draws the tiles onto a fresh canvas. Tiles whose image cannot
// be decoded are left blank and reported through ErrPartialSheet.
func (c *NativeComposer) RenderSheet(ctx context.Context, sheet Sheet) error {
	if sheet.Width <= 0 || sheet.Height <= 0 {
		return fmt.Errorf("invalid sheet size %dx%d", sheet.Width, sheet.Height)
	}

	canvas := image.NewNRGBA(image.Rect(0, 0, sheet.Width, sheet.Height))
	draw.Draw(canvas, canvas.Bounds(), image.NewUniform(c.background), image.Point{}, draw.Src)

	var tileErrs []error
	for _, t := range sheet.Tiles {
		if err := ctx.Err(); err != nil {
			return err
		}

		rect := image.Rect(t.Left, t.Top, t.Left+sheet.TileSize, t.Top+sheet.TileSize)
		switch t.Kind {
		case TileFill:
			draw.Draw(canvas, rect, image.NewUniform(t.Color.RGBA()), image.Point{}, draw.Src)
		case TileImage:
			img, err := openTile(t.Image, sheet.TileSize)
			if err != nil {
				tileErrs = append(tileErrs, err)
				continue
			}
			draw.Draw(canvas, rect, img, img.Bounds().Min, draw.Over)
		default:
			tileErrs = append(tileErrs, fmt.Errorf("unknown tile kind %d", t.Kind))
		}
	}

	if err := c.write(canvas, sheet.Output); err != nil {
		return err
	}
	if len(tileErrs) > 0 {
		return fmt.Errorf("%w: %d of %d tiles not drawn: %w", ErrPartialSheet, len(tileErrs), len(sheet.Tiles), errors.Join(tileErrs...))
	}
	return nil
}

// Stack concatenates the inputs along dir. Shorter inputs are aligned to
// the top-left of their slot.
func (c *NativeComposer) Stack(ctx context.Context, inputs []string, dir Direction, output string) error {
	if len(inputs) == 0 {
		return fmt.Errorf("nothing to stack")
	}

	images := make([]image.Image, 0, len(inputs))
	width, height := 0, 0
	for _, in := range inputs {
		if err := ctx.Err(); err != nil {
			return err
		}
		img, err := imaging.Open(in)
		if err != nil {
			return fmt.Errorf("failed to open %s: %w", in, err)
		}
		b := img.Bounds()
		if dir == Horizontal {
			width += b.Dx()
			height = max(height, b.Dy())
		} else {
			width = max(width, b.Dx())
			height += b.Dy()
		}
		images = append(images, img)
	}

	canvas := image.NewNRGBA(image.Rect(0, 0, width, height))
	draw.Draw(canvas, canvas.Bounds(), image.NewUniform(c.background), image.Point{}, draw.Src)

	offset := 0
	for _, img := range images {
		b := img.Bounds()
		var at image.Point
		if dir == Horizontal {
			at = image.Pt(offset, 0)
			offset += b.Dx()
		} else {
			at = image.Pt(0, offset)
			offset += b.Dy()
		}
		draw.Draw(canvas, image.Rectangle{Min: at, Max: at.Add(b.Size())}, img, b.Min, draw.Src)
	}

	return c.write(canvas, output)
}

func (c *NativeComposer) write(img image.Image, output string) error {
	format, err := imaging.FormatFromFilename(output)
	if err != nil {
		return fmt.Errorf("unsupported output %s: %w", output, err)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, format, imaging.JPEGQuality(c.quality)); err != nil {
		return fmt.Errorf("failed to encode %s: %w", output, err)
	}
	if err := c.fs.AtomicWrite(output, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", output, err)
	}
	return nil
}

// openTile decodes path and fits it to a size x size square.
func openTile(path string, size int) (image.Image, error) {
	img, err := imaging.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open tile %s: %w", path, err)
	}
	b := img.Bounds()
	if b.Dx() != size || b.Dy() != size {
		img = imaging.Fill(img, size, size, imaging.Center, imaging.Lanczos)
	}
	return img, nil
}
