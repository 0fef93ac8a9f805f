package engine

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/danieljhkim/mosaic/internal/planner"
	"github.com/danieljhkim/mosaic/internal/raster"
	"github.com/danieljhkim/mosaic/internal/store"
)

// buildPlan is everything the shared pipeline needs to know about one
// artifact kind.
type buildPlan struct {
	kind   Kind
	bucket store.Bucket
	dir    string
	ext    string

	// side is tiles per sheet row; capacity is ids per group
	side     int
	capacity int

	perRow  int
	perFile int

	// render resolves ids and draws the sheet for one group
	render func(ctx context.Context, ids []string, output string) groupResult
}

// groupResult is what rendering one group produced.
type groupResult struct {
	sheet     string
	rendered  bool
	tiles     int
	fallbacks []Fallback
	failures  []raster.Failure
}

// sheetName is the intermediate file of group index.
func sheetName(dir, key, ext string, index int) string {
	return filepath.Join(dir, fmt.Sprintf("%s_g%d.%s", key, index, ext))
}

// build runs partition, render and assembly for p.
//
// Groups render through an errgroup bounded by Options.Workers. Each group
// writes its own result slot and its own sheet file, so the artifact does
// not depend on scheduling. Assembly starts only after every group is done.
func (e *Engine) build(ctx context.Context, p buildPlan) (*Artifact, error) {
	if err := validateKey(p.bucket.Key); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start := e.clock.Now()
	logger := e.logger.With(zap.String("kind", string(p.kind)), zap.String("bucket", p.bucket.Key))

	if err := e.fs.MkdirAll(p.dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	groups := planner.Partition(p.bucket.IDs, p.capacity)
	logger.Info("building artifact",
		zap.Int("items", p.bucket.Count()),
		zap.Int("side", p.side),
		zap.Int("groups", len(groups)))

	results := make([]groupResult, len(groups))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.Workers)
	for i, ids := range groups {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = p.render(gctx, ids, sheetName(p.dir, p.bucket.Key, p.ext, i))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		e.discardSheets(results)
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		e.discardSheets(results)
		return nil, err
	}

	artifact := &Artifact{
		Kind:    p.kind,
		Bucket:  p.bucket.Key,
		Files:   []string{},
		Side:    p.side,
		BuiltAt: start,
	}
	sheets := make([]string, 0, len(results))
	for _, r := range results {
		artifact.Tiles += r.tiles
		artifact.Fallbacks = append(artifact.Fallbacks, r.fallbacks...)
		artifact.Failures = append(artifact.Failures, r.failures...)
		if r.rendered {
			sheets = append(sheets, r.sheet)
		}
	}
	artifact.Sheets = len(sheets)

	assembled := e.assembler.Assemble(ctx, raster.Assembly{
		Key:     p.bucket.Key,
		Dir:     p.dir,
		Ext:     p.ext,
		Sheets:  sheets,
		PerRow:  p.perRow,
		PerFile: p.perFile,
	})
	artifact.Files = assembled.Files
	artifact.Failures = append(artifact.Failures, assembled.Failures...)

	if len(artifact.Files) > 0 {
		artifact.Digests = make(map[string]string, len(artifact.Files))
	}
	for _, f := range artifact.Files {
		digest, err := e.hasher.HashFile(f)
		if err != nil {
			artifact.Failures = append(artifact.Failures, raster.NewFailure(raster.StageDigest, f, err))
			continue
		}
		artifact.Digests[f] = digest
	}

	artifact.Duration = e.clock.Since(start)
	e.record(artifact)

	logger.Info("artifact built",
		zap.Strings("files", artifact.Files),
		zap.Int("sheets", artifact.Sheets),
		zap.Int("fallbacks", len(artifact.Fallbacks)),
		zap.Int("failures", len(artifact.Failures)),
		zap.Duration("duration", artifact.Duration))
	return artifact, nil
}

// renderSheet draws sheet and records the outcome on res. A partial sheet
// still counts as rendered.
func (e *Engine) renderSheet(ctx context.Context, sheet raster.Sheet, res *groupResult) {
	res.sheet = sheet.Output
	res.tiles = len(sheet.Tiles)

	err := e.composer.RenderSheet(ctx, sheet)
	switch {
	case err == nil:
		res.rendered = true
	case errors.Is(err, raster.ErrPartialSheet):
		e.logger.Warn("sheet rendered with missing tiles", zap.String("sheet", sheet.Output), zap.Error(err))
		res.failures = append(res.failures, raster.NewFailure(raster.StageTile, sheet.Output, err))
		res.rendered = true
	default:
		e.logger.Error("sheet render failed", zap.String("sheet", sheet.Output), zap.Error(err))
		res.failures = append(res.failures, raster.NewFailure(raster.StageRender, sheet.Output, err))
	}
}

// discardSheets removes sheets left behind by a cancelled build.
func (e *Engine) discardSheets(results []groupResult) {
	for _, r := range results {
		if r.sheet == "" {
			continue
		}
		if err := e.fs.Remove(r.sheet); err != nil {
			e.logger.Warn("failed to remove sheet", zap.String("sheet", r.sheet), zap.Error(err))
		}
	}
}

func (e *Engine) record(a *Artifact) {
	kind := string(a.Kind)
	e.metrics.ObserveBuild(kind, a.Duration, a.Degraded())
	e.metrics.AddTiles(kind, a.Tiles, len(a.Fallbacks))
	e.metrics.AddSheets(kind, a.Sheets)
	for _, f := range a.Failures {
		e.metrics.IncFailure(kind, f.Stage)
	}
}
