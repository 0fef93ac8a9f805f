package engine

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/danieljhkim/mosaic/internal/clock"
	"github.com/danieljhkim/mosaic/internal/fsops"
	"github.com/danieljhkim/mosaic/internal/hash"
	"github.com/danieljhkim/mosaic/internal/locator"
	"github.com/danieljhkim/mosaic/internal/metrics"
	"github.com/danieljhkim/mosaic/internal/palette"
	"github.com/danieljhkim/mosaic/internal/raster"
	"github.com/danieljhkim/mosaic/internal/store"
)

// fakeStore is an in-memory store.Store.
type fakeStore struct {
	mu          sync.Mutex
	buckets     []store.Bucket
	filenames   map[string]string
	palettes    map[string][]palette.Entry
	lookupErr   error
	failUpdates map[int]bool
	updateCalls int
	updates     [][]store.PaletteUpdate
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		filenames:   map[string]string{},
		palettes:    map[string][]palette.Entry{},
		failUpdates: map[int]bool{},
	}
}

func (s *fakeStore) ListBuckets(ctx context.Context) ([]store.Bucket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := append([]store.Bucket(nil), s.buckets...)
	store.SortBuckets(out)
	return out, nil
}

func (s *fakeStore) LookupFilenames(ctx context.Context, ids []string) (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lookupErr != nil {
		return nil, s.lookupErr
	}
	out := map[string]string{}
	for _, id := range ids {
		if name, ok := s.filenames[id]; ok {
			out[id] = name
		}
	}
	return out, nil
}

func (s *fakeStore) LookupPalettes(ctx context.Context, ids []string) (map[string][]palette.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lookupErr != nil {
		return nil, s.lookupErr
	}
	out := map[string][]palette.Entry{}
	for _, id := range ids {
		if p, ok := s.palettes[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

func (s *fakeStore) UpdatePalettes(ctx context.Context, updates []store.PaletteUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	call := s.updateCalls
	s.updateCalls++
	if s.failUpdates[call] {
		return errors.New("connection reset")
	}
	s.updates = append(s.updates, updates)
	for _, u := range updates {
		s.palettes[u.ID] = u.Entries
	}
	return nil
}

func (s *fakeStore) Close() error { return nil }

// recordingComposer writes each output as text naming its inputs, and
// remembers every sheet it was asked to render.
type recordingComposer struct {
	mu         sync.Mutex
	sheets     []raster.Sheet
	stacks     [][]string
	dirs       []raster.Direction
	failRender map[string]bool
}

func (c *recordingComposer) RenderSheet(ctx context.Context, sheet raster.Sheet) error {
	c.mu.Lock()
	c.sheets = append(c.sheets, sheet)
	fail := c.failRender[filepath.Base(sheet.Output)]
	c.mu.Unlock()
	if fail {
		return errors.New("tool exited with status 1")
	}
	return os.WriteFile(sheet.Output, []byte(filepath.Base(sheet.Output)), 0644)
}

func (c *recordingComposer) Stack(ctx context.Context, inputs []string, dir raster.Direction, output string) error {
	c.mu.Lock()
	c.stacks = append(c.stacks, append([]string(nil), inputs...))
	c.dirs = append(c.dirs, dir)
	c.mu.Unlock()

	parts := make([]string, len(inputs))
	for i, in := range inputs {
		data, err := os.ReadFile(in)
		if err != nil {
			return err
		}
		parts[i] = string(data)
	}
	return os.WriteFile(output, []byte(strings.Join(parts, "|")), 0644)
}

// sortedSheets returns the rendered sheets ordered by output name.
func (c *recordingComposer) sortedSheets() []raster.Sheet {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := append([]raster.Sheet(nil), c.sheets...)
	sort.Slice(out, func(i, j int) bool { return out[i].Output < out[j].Output })
	return out
}

type testEnv struct {
	root      string
	atlasDir  string
	pixelsDir string
	colorsDir string
	store     *fakeStore
	rec       *recordingComposer
	composer  raster.Composer
	hasher    hash.Hasher
	opts      Options
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	root := t.TempDir()
	env := &testEnv{
		root:      root,
		atlasDir:  filepath.Join(root, "atlas"),
		pixelsDir: filepath.Join(root, "pixels"),
		colorsDir: filepath.Join(root, "colors"),
		store:     newFakeStore(),
		rec:       &recordingComposer{failRender: map[string]bool{}},
		hasher:    hash.NewFakeHasher(),
	}
	env.composer = env.rec
	env.opts = Options{
		AtlasDir:      env.atlasDir,
		PixelsDir:     env.pixelsDir,
		ColorsDir:     env.colorsDir,
		QueryLimit:    4,
		AtlasTileSize: 32,
		MaxAtlasSize:  4,
		SheetsPerRow:  2,
		AtlasExt:      "jpg",
		PixelTileSize: 1,
		PixelExt:      "png",
		Workers:       1,
	}
	writeFile(t, filepath.Join(root, "blank.png"), "placeholder")
	return env
}

func (env *testEnv) engine() *Engine {
	fs := fsops.NewRealFS()
	loc := locator.New(fs, locator.Options{
		Root:         env.root,
		ThumbnailDir: "32_32",
		FullDir:      "files",
		ThumbnailExt: "png",
		FullExt:      "jpg",
		Placeholder:  filepath.Join(env.root, "blank.png"),
	})
	clk := clock.NewSteppingClock(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC), time.Second)
	return New(env.store, loc, env.composer, fs, env.hasher, clk, metrics.New(), nil, env.opts)
}

// addImage registers id with filename and creates its thumbnail.
func (env *testEnv) addImage(t *testing.T, id, filename string) {
	t.Helper()
	env.store.filenames[id] = filename
	base := strings.SplitN(filename, ".", 2)[0]
	writeFile(t, filepath.Join(env.root, "32_32", filename[:4], base+".png"), "thumb "+id)
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("failed to create dir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
}

func listDir(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("failed to read dir: %v", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func ids(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = strconv.Itoa(i + 1)
	}
	return out
}
