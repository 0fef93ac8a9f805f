// Package integration exercises the full build pipeline against a real
// sqlite store, the native composer and files on disk.
package integration

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"

	"github.com/danieljhkim/mosaic/internal/clock"
	"github.com/danieljhkim/mosaic/internal/config"
	"github.com/danieljhkim/mosaic/internal/engine"
	"github.com/danieljhkim/mosaic/internal/fsops"
	"github.com/danieljhkim/mosaic/internal/hash"
	"github.com/danieljhkim/mosaic/internal/locator"
	"github.com/danieljhkim/mosaic/internal/metrics"
	"github.com/danieljhkim/mosaic/internal/raster"
	"github.com/danieljhkim/mosaic/internal/store"
)

// testEnv is a project tree with a seeded store.
type testEnv struct {
	cfg     *config.Config
	store   *store.SQLStore
	eng     *engine.Engine
	metrics *metrics.Metrics
}

// setupTestEngine builds an engine from a config rooted in a temp dir.
// Sheets hold 4 tiles of 4px and two sheets sit side by side.
func setupTestEngine(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()

	cfg := config.DefaultConfig()
	cfg.Root = t.TempDir()
	cfg.Paths.ColorsDir = "colors"
	cfg.Atlas.TileSize = 4
	cfg.Atlas.QueryLimit = 4
	cfg.Atlas.MaxAtlasSize = 4
	cfg.Atlas.SheetsPerRow = 2
	cfg.Atlas.Ext = "png"
	cfg.Render.Workers = 3
	if err := cfg.Validate(); err != nil {
		t.Fatalf("invalid test config: %v", err)
	}

	st, err := store.Open(ctx, store.Options{
		Driver:      cfg.Store.Driver,
		DSN:         cfg.StoreDSN(),
		BucketTable: cfg.Store.BucketTable,
		FileTable:   cfg.Store.FileTable,
	}, nil)
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	if err := st.EnsureSchema(ctx); err != nil {
		t.Fatalf("EnsureSchema() error = %v", err)
	}

	fs := fsops.NewRealFS()
	loc := locator.New(fs, locator.Options{
		Root:         cfg.Root,
		ThumbnailDir: cfg.Paths.ThumbnailDir,
		FullDir:      cfg.Paths.FullDir,
		ThumbnailExt: cfg.Paths.ThumbnailExt,
		FullExt:      cfg.Paths.FullExt,
		Placeholder:  cfg.Placeholder(),
	})
	saveImage(t, cfg.Placeholder(), color.NRGBA{A: 255})

	m := metrics.New()
	eng := engine.New(st, loc, raster.NewNativeComposer(fs, cfg.Render.Quality), fs,
		hash.NewBlake3Hasher(), &clock.RealClock{}, m, nil, engine.OptionsFromConfig(cfg))

	return &testEnv{cfg: cfg, store: st, eng: eng, metrics: m}
}

// seedBucket stores a bucket of n items with ids 1..n and a thumbnail for
// each. Thumbnail i is coloured with shade i.
func (env *testEnv) seedBucket(t *testing.T, key string, n int) store.Bucket {
	t.Helper()
	ctx := context.Background()

	b := store.Bucket{Key: key}
	for i := 1; i <= n; i++ {
		id := fmt.Sprint(i)
		name := fmt.Sprintf("img%05d.jpg", i)
		if err := env.store.PutFile(ctx, id, name); err != nil {
			t.Fatalf("PutFile(%s) error = %v", id, err)
		}
		thumb := filepath.Join(env.cfg.Root, env.cfg.Paths.ThumbnailDir, name[:4], fmt.Sprintf("img%05d.png", i))
		saveImage(t, thumb, color.NRGBA{R: uint8(i * 10), G: 100, A: 255})
		b.IDs = append(b.IDs, id)
	}
	if err := env.store.PutBucket(ctx, b); err != nil {
		t.Fatalf("PutBucket(%s) error = %v", key, err)
	}
	return b
}

func (env *testEnv) writeColorFile(t *testing.T, id, content string) {
	t.Helper()
	path := filepath.Join(env.cfg.ColorsDir(), id+".json")
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("failed to create dir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
}

func saveImage(t *testing.T, path string, c color.Color) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("failed to create dir: %v", err)
	}
	if err := imaging.Save(imaging.New(4, 4, c), path); err != nil {
		t.Fatalf("failed to save %s: %v", path, err)
	}
}

func openImage(t *testing.T, path string) image.Image {
	t.Helper()
	img, err := imaging.Open(path)
	if err != nil {
		t.Fatalf("failed to open %s: %v", path, err)
	}
	return img
}

// listDir returns the names in dir.
func listDir(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("failed to read %s: %v", dir, err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}
