package engine

import (
	"context"

	"github.com/danieljhkim/mosaic/internal/planner"
	"github.com/danieljhkim/mosaic/internal/raster"
	"github.com/danieljhkim/mosaic/internal/store"
)

const reasonNoPalette = "no usable palette"

// BuildPixels renders the pixel summary of bucket: one tile per item,
// filled with the first colour of its palette. The grid is sized exactly
// to the bucket; each group is one row, and rows are stacked vertically
// into a single file.
func (e *Engine) BuildPixels(ctx context.Context, bucket store.Bucket) (*Artifact, error) {
	side := max(planner.PixelSide(bucket.Count()), 1)
	return e.build(ctx, buildPlan{
		kind:     KindPixels,
		bucket:   bucket,
		dir:      e.opts.PixelsDir,
		ext:      e.opts.PixelExt,
		side:     side,
		capacity: side,
		perRow:   1,
		perFile:  side,
		render: func(ctx context.Context, ids []string, output string) groupResult {
			return e.renderPixelRow(ctx, ids, side, output)
		},
	})
}

func (e *Engine) renderPixelRow(ctx context.Context, ids []string, side int, output string) groupResult {
	var res groupResult

	layout := planner.Plan(len(ids), e.opts.PixelTileSize, side)
	resolutions := e.resolver.Resolve(ctx, ids)
	tiles := make([]raster.Tile, len(resolutions))
	for i, r := range resolutions {
		if r.Fallback {
			res.fallbacks = append(res.fallbacks, Fallback{ID: r.ID, Reason: reasonNoPalette})
		}
		tiles[i] = raster.FillTile(r.Color, layout.Cells[i])
	}

	e.renderSheet(ctx, raster.NewSheet(output, layout, tiles), &res)
	return res
}
