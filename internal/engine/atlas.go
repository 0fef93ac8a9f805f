package engine

import (
	"context"
	"maps"

	"go.uber.org/zap"

	"github.com/danieljhkim/mosaic/internal/locator"
	"github.com/danieljhkim/mosaic/internal/planner"
	"github.com/danieljhkim/mosaic/internal/raster"
	"github.com/danieljhkim/mosaic/internal/store"
)

// BuildAtlas renders the thumbnail atlas of bucket.
//
// Every sheet of the bucket shares one square grid whose side comes from
// the capacity policy, so sheets stack cleanly. Sheets are combined
// SheetsPerRow wide, at most SheetsPerRow² sheets per final file.
func (e *Engine) BuildAtlas(ctx context.Context, bucket store.Bucket) (*Artifact, error) {
	side := planner.AtlasSide(bucket.Count(), e.opts.QueryLimit, e.opts.MaxAtlasSize)
	return e.build(ctx, buildPlan{
		kind:     KindAtlas,
		bucket:   bucket,
		dir:      e.opts.AtlasDir,
		ext:      e.opts.AtlasExt,
		side:     side,
		capacity: planner.AtlasCapacity(side),
		perRow:   e.opts.SheetsPerRow,
		perFile:  e.opts.SheetsPerRow * e.opts.SheetsPerRow,
		render: func(ctx context.Context, ids []string, output string) groupResult {
			return e.renderAtlasGroup(ctx, ids, side, output)
		},
	})
}

func (e *Engine) renderAtlasGroup(ctx context.Context, ids []string, side int, output string) groupResult {
	var res groupResult

	filenames := make(map[string]string, len(ids))
	for _, batch := range planner.Partition(ids, e.opts.QueryLimit) {
		found, err := e.store.LookupFilenames(ctx, batch)
		if err != nil {
			e.logger.Warn("filename lookup failed, using placeholder",
				zap.String("sheet", output), zap.Int("ids", len(batch)), zap.Error(err))
			res.failures = append(res.failures, raster.NewFailure(raster.StageLookup, output, err))
			continue
		}
		maps.Copy(filenames, found)
	}

	layout := planner.Plan(len(ids), e.opts.AtlasTileSize, side).Square()
	tiles := make([]raster.Tile, len(ids))
	for i, id := range ids {
		name, found := filenames[id]
		r := e.locator.Resolve(name, found, locator.Thumbnail)
		if r.Fallback {
			e.logger.Debug("using placeholder", zap.String("id", id), zap.Error(r.Reason))
			res.fallbacks = append(res.fallbacks, Fallback{ID: id, Reason: r.Reason.Error()})
		}
		tiles[i] = raster.ImageTile(r.Path, layout.Cells[i])
	}

	e.renderSheet(ctx, raster.NewSheet(output, layout, tiles), &res)
	return res
}
