package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/danieljhkim/mosaic/internal/clock"
	"github.com/danieljhkim/mosaic/internal/config"
	"github.com/danieljhkim/mosaic/internal/engine"
	"github.com/danieljhkim/mosaic/internal/execx"
	"github.com/danieljhkim/mosaic/internal/fsops"
	"github.com/danieljhkim/mosaic/internal/hash"
	"github.com/danieljhkim/mosaic/internal/locator"
	"github.com/danieljhkim/mosaic/internal/metrics"
	"github.com/danieljhkim/mosaic/internal/raster"
	"github.com/danieljhkim/mosaic/internal/store"
)

// newLogger builds the process logger from the logging section.
func newLogger(lc config.LoggingConfig, debug bool) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	if lc.Development {
		zc = zap.NewDevelopmentConfig()
	}
	level := zapcore.InfoLevel
	if lc.Level != "" {
		parsed, err := zapcore.ParseLevel(lc.Level)
		if err != nil {
			return nil, fmt.Errorf("invalid log level: %w", err)
		}
		level = parsed
	}
	if debug {
		level = zapcore.DebugLevel
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}

// openStore opens the configured store.
func openStore(ctx context.Context) (*store.SQLStore, error) {
	st, err := store.Open(ctx, store.Options{
		Driver:      cfg.Store.Driver,
		DSN:         cfg.StoreDSN(),
		BucketTable: cfg.Store.BucketTable,
		FileTable:   cfg.Store.FileTable,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	return st, nil
}

// newLocator creates the image locator for the configured tree.
func newLocator(fs fsops.FS) *locator.Locator {
	return locator.New(fs, locator.Options{
		Root:         cfg.Root,
		ThumbnailDir: cfg.Paths.ThumbnailDir,
		FullDir:      cfg.Paths.FullDir,
		ThumbnailExt: cfg.Paths.ThumbnailExt,
		FullExt:      cfg.Paths.FullExt,
		Placeholder:  cfg.Placeholder(),
	})
}

// newComposer selects the raster backend.
func newComposer(fs fsops.FS) (raster.Composer, error) {
	switch cfg.Render.Backend {
	case config.BackendNative:
		return raster.NewNativeComposer(fs, cfg.Render.Quality), nil
	case config.BackendMagick:
		return raster.NewMagickComposer(execx.NewRealRunner(), cfg.Render.MagickBinary, cfg.Root, cfg.Render.Quality), nil
	default:
		return nil, fmt.Errorf("unknown render backend %q", cfg.Render.Backend)
	}
}

// newEngine creates a new engine with real implementations of all
// dependencies. The returned func closes the store.
func newEngine(ctx context.Context, m *metrics.Metrics) (*engine.Engine, func(), error) {
	fs := fsops.NewRealFS()
	composer, err := newComposer(fs)
	if err != nil {
		return nil, nil, err
	}

	st, err := openStore(ctx)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		if err := st.Close(); err != nil {
			logger.Warn("closing store", zap.Error(err))
		}
	}

	eng := engine.New(
		st,
		newLocator(fs),
		composer,
		fs,
		hash.NewBlake3Hasher(),
		&clock.RealClock{},
		m,
		logger,
		engine.OptionsFromConfig(cfg),
	)
	return eng, cleanup, nil
}

// resolveBucket finds a bucket by key through the engine.
func resolveBucket(ctx context.Context, eng *engine.Engine, key string) (store.Bucket, error) {
	b, err := eng.FindBucket(ctx, key)
	if err != nil {
		return store.Bucket{}, fmt.Errorf("bucket %q: %w", key, err)
	}
	return b, nil
}

// outputJSON writes a value as indented JSON.
func outputJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
