package engine

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/danieljhkim/mosaic/internal/palette"
	"github.com/danieljhkim/mosaic/internal/planner"
	"github.com/danieljhkim/mosaic/internal/raster"
	"github.com/danieljhkim/mosaic/internal/store"
)

// ImportColors loads the colour-extraction file of every item in bucket
// and writes the palettes to the store, QueryLimit items per statement.
//
// Items whose file is missing, empty or invalid are skipped. A failed
// statement is recorded and the next batch still runs; batches are not
// transactional, and re-running the import overwrites earlier results.
func (e *Engine) ImportColors(ctx context.Context, bucket store.Bucket) (*ImportResult, error) {
	if err := validateKey(bucket.Key); err != nil {
		return nil, err
	}

	start := e.clock.Now()
	logger := e.logger.With(zap.String("bucket", bucket.Key))
	result := &ImportResult{Bucket: bucket.Key}

	for bi, batch := range planner.Partition(bucket.IDs, e.opts.QueryLimit) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		updates := make([]store.PaletteUpdate, 0, len(batch))
		for _, id := range batch {
			entries, err := e.readColorFile(id)
			if err != nil {
				logger.Info("skipped", zap.String("id", id), zap.Error(err))
				result.Skipped = append(result.Skipped, Fallback{ID: id, Reason: err.Error()})
				continue
			}
			updates = append(updates, store.PaletteUpdate{ID: id, Entries: entries})
		}
		if len(updates) == 0 {
			continue
		}

		if err := e.store.UpdatePalettes(ctx, updates); err != nil {
			target := fmt.Sprintf("batch %d", bi)
			logger.Error("palette update failed", zap.String("batch", target), zap.Int("ids", len(updates)), zap.Error(err))
			result.Failures = append(result.Failures, raster.NewFailure(raster.StageImport, target, err))
			continue
		}
		result.Imported += len(updates)
		result.Batches++
	}

	result.Duration = e.clock.Since(start)
	e.metrics.ObserveImport(result.Imported, len(result.Skipped), len(result.Failures), result.Batches)
	logger.Info("colours imported",
		zap.Int("imported", result.Imported),
		zap.Int("skipped", len(result.Skipped)),
		zap.Int("failed_batches", len(result.Failures)))
	return result, nil
}

// readColorFile reads and parses the colour file of id.
func (e *Engine) readColorFile(id string) ([]palette.Entry, error) {
	if err := e.fs.ValidateIdentifier(id); err != nil {
		return nil, fmt.Errorf("invalid id: %w", err)
	}
	data, err := e.fs.ReadFile(palette.ColorFilePath(e.opts.ColorsDir, id))
	if err != nil {
		return nil, err
	}
	entries, err := palette.ParseColorFile(data)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("no colours in file")
	}
	return entries, nil
}
