package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image/color"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/disintegration/imaging"

	"github.com/danieljhkim/mosaic/internal/config"
	"github.com/danieljhkim/mosaic/internal/engine"
	"github.com/danieljhkim/mosaic/internal/store"
)

const testConfig = `root: .
store:
  driver: sqlite
  dsn: mosaic.db
paths:
  colors_dir: colors
  placeholder: blank.png
atlas:
  tile_size: 4
  query_limit: 4
  max_atlas_size: 4
  sheets_per_row: 2
  ext: png
logging:
  level: error
`

// setupTestEnv creates a project directory with a config file, a schema-ready
// sqlite store, and thumbnails for items 1-3. Item 4 has no image.
func setupTestEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	// Isolate from the user's config and environment
	t.Setenv("HOME", dir)
	for _, k := range []string{config.EnvRoot, config.EnvStoreDriver, config.EnvStoreDSN, config.EnvAddr} {
		t.Setenv(k, "")
	}
	t.Chdir(dir)

	writeTestFile(t, filepath.Join(dir, config.ProjectConfigFile), testConfig)

	if _, err := runCLI(t, "init-db"); err != nil {
		t.Fatalf("init-db error = %v", err)
	}

	ctx := context.Background()
	st, err := store.Open(ctx, store.Options{
		Driver:      store.DriverSQLite,
		DSN:         filepath.Join(dir, "mosaic.db"),
		BucketTable: "bucket_ids",
		FileTable:   "file_mga",
	}, nil)
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	defer func() { _ = st.Close() }()

	buckets := []store.Bucket{
		{Key: "small", IDs: []string{"1"}},
		{Key: "big", IDs: []string{"1", "2", "3"}},
		{Key: "holes", IDs: []string{"1", "4"}},
	}
	for _, b := range buckets {
		if err := st.PutBucket(ctx, b); err != nil {
			t.Fatalf("PutBucket(%s) error = %v", b.Key, err)
		}
	}
	for _, id := range []string{"1", "2", "3", "4"} {
		name := "abcd000" + id
		if err := st.PutFile(ctx, id, name+".jpg"); err != nil {
			t.Fatalf("PutFile(%s) error = %v", id, err)
		}
		if id != "4" {
			saveTestImage(t, filepath.Join(dir, "32_32", "abcd", name+".png"), color.NRGBA{G: 180, A: 255})
		}
	}
	saveTestImage(t, filepath.Join(dir, "files", "abcd", "abcd0001.jpg"), color.NRGBA{R: 180, A: 255})
	saveTestImage(t, filepath.Join(dir, "blank.png"), color.Transparent)

	writeTestFile(t, filepath.Join(dir, "colors", "1.json"), `[{"h":"336699","f":0.8,"t":"blue"}]`)

	return dir
}

// runCLI executes the root command with fresh flag values and returns what
// the command wrote to its output.
func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()

	configPath, jsonOutput, verbose = "", false, false
	atlasStrict, pixelsStrict, pixelsImport = false, false, false
	locateID, locateSize = "", "full"
	serveAddr, configInitForce = "", false

	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return buf.String(), err
}

func decodeOutput[T any](t *testing.T, out string) T {
	t.Helper()
	var v T
	if err := json.Unmarshal([]byte(out), &v); err != nil {
		t.Fatalf("invalid JSON output: %v, output: %q", err, out)
	}
	return v
}

func writeTestFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("failed to create dir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
}

func saveTestImage(t *testing.T, path string, c color.Color) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("failed to create dir: %v", err)
	}
	if err := imaging.Save(imaging.New(4, 4, c), path); err != nil {
		t.Fatalf("failed to save %s: %v", path, err)
	}
}

func TestBucketsCommand_JSONOutput(t *testing.T) {
	setupTestEnv(t)

	out, err := runCLI(t, "buckets", "--json")
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	buckets := decodeOutput[[]store.Bucket](t, out)
	var keys []string
	for _, b := range buckets {
		keys = append(keys, b.Key)
	}
	want := "big,holes,small"
	if got := strings.Join(keys, ","); got != want {
		t.Errorf("bucket order = %s, want %s", got, want)
	}
}

func TestBucketsCommand_Text(t *testing.T) {
	setupTestEnv(t)

	if _, err := runCLI(t, "buckets"); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
}

func TestAtlasCommand_JSONOutput(t *testing.T) {
	dir := setupTestEnv(t)

	out, err := runCLI(t, "atlas", "big", "--json")
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	a := decodeOutput[engine.Artifact](t, out)
	if a.Kind != engine.KindAtlas {
		t.Errorf("Kind = %s, want atlas", a.Kind)
	}
	if a.Side != 2 || a.Tiles != 3 || a.Sheets != 1 {
		t.Errorf("side/tiles/sheets = %d/%d/%d, want 2/3/1", a.Side, a.Tiles, a.Sheets)
	}
	if len(a.Fallbacks) != 0 || len(a.Failures) != 0 {
		t.Errorf("unexpected degradation: %+v %+v", a.Fallbacks, a.Failures)
	}

	final := filepath.Join(dir, "server", "public", "atlas", "big.png")
	if len(a.Files) != 1 || a.Files[0] != final {
		t.Fatalf("Files = %v, want [%s]", a.Files, final)
	}
	if _, err := os.Stat(final); err != nil {
		t.Errorf("final atlas missing: %v", err)
	}
	if a.Digests[final] == "" {
		t.Error("expected a digest for the final file")
	}
}

func TestAtlasCommand_StrictDegraded(t *testing.T) {
	setupTestEnv(t)

	if _, err := runCLI(t, "atlas", "holes"); err != nil {
		t.Fatalf("non-strict build should succeed, got %v", err)
	}

	_, err := runCLI(t, "atlas", "holes", "--strict")
	if !errors.Is(err, errDegraded) {
		t.Fatalf("expected errDegraded, got %v", err)
	}
}

func TestAtlasCommand_UnknownBucket(t *testing.T) {
	setupTestEnv(t)

	_, err := runCLI(t, "atlas", "nope")
	if !errors.Is(err, engine.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestAtlasCommand_RequiresBucket(t *testing.T) {
	setupTestEnv(t)

	if _, err := runCLI(t, "atlas"); err == nil {
		t.Fatal("expected an argument error")
	}
}

func TestPixelsCommand_WithImport(t *testing.T) {
	dir := setupTestEnv(t)

	out, err := runCLI(t, "pixels", "holes", "--import", "--json")
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	a := decodeOutput[engine.Artifact](t, out)
	if a.Kind != engine.KindPixels {
		t.Errorf("Kind = %s, want pixels", a.Kind)
	}
	// Item 1 was imported, item 4 has no colour file.
	if len(a.Fallbacks) != 1 || a.Fallbacks[0].ID != "4" {
		t.Errorf("Fallbacks = %+v, want only item 4", a.Fallbacks)
	}
	if _, err := os.Stat(filepath.Join(dir, "server", "public", "pixels", "holes.png")); err != nil {
		t.Errorf("pixel summary missing: %v", err)
	}
}

func TestImportColorsCommand_JSONOutput(t *testing.T) {
	setupTestEnv(t)

	out, err := runCLI(t, "import-colors", "big", "--json")
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	res := decodeOutput[engine.ImportResult](t, out)
	if res.Imported != 1 {
		t.Errorf("Imported = %d, want 1", res.Imported)
	}
	if len(res.Skipped) != 2 {
		t.Errorf("Skipped = %+v, want items 2 and 3", res.Skipped)
	}
}

func TestLocateCommand(t *testing.T) {
	dir := setupTestEnv(t)

	tests := []struct {
		name    string
		args    []string
		want    string
		wantErr bool
	}{
		{
			name: "by filename",
			args: []string{"locate", "abcd0001.jpg"},
			want: filepath.Join(dir, "files", "abcd", "abcd0001.jpg"),
		},
		{
			name: "by id thumbnail",
			args: []string{"locate", "--id", "2", "--size", "mini"},
			want: filepath.Join(dir, "32_32", "abcd", "abcd0002.png"),
		},
		{name: "neither", args: []string{"locate"}, wantErr: true},
		{name: "both", args: []string{"locate", "x.jpg", "--id", "1"}, wantErr: true},
		{name: "unknown id", args: []string{"locate", "--id", "99"}, wantErr: true},
		{name: "missing file", args: []string{"locate", "abcd0004.jpg"}, wantErr: true},
		{name: "unsafe name", args: []string{"locate", "ab (1).jpg"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := runCLI(t, tt.args...)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got output %q", out)
				}
				return
			}
			if err != nil {
				t.Fatalf("Execute() error = %v", err)
			}
			if got := strings.TrimSpace(out); got != tt.want {
				t.Errorf("locate = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestConfigCommands(t *testing.T) {
	dir := setupTestEnv(t)

	out, err := runCLI(t, "config", "show", "--json")
	if err != nil {
		t.Fatalf("config show error = %v", err)
	}
	shown := decodeOutput[config.Config](t, out)
	if shown.Atlas.QueryLimit != 4 {
		t.Errorf("QueryLimit = %d, want 4 from the project file", shown.Atlas.QueryLimit)
	}
	if shown.Root != dir {
		t.Errorf("Root = %q, want %q", shown.Root, dir)
	}

	target := filepath.Join(dir, "other", "mosaic.yaml")
	if _, err := runCLI(t, "config", "init", target); err != nil {
		t.Fatalf("config init error = %v", err)
	}
	written, err := config.LoadFromFile(target)
	if err != nil {
		t.Fatalf("LoadFromFile() error = %v", err)
	}
	if written.Atlas.QueryLimit != config.DefaultConfig().Atlas.QueryLimit {
		t.Errorf("written config should hold defaults")
	}

	if _, err := runCLI(t, "config", "init", target); err == nil {
		t.Error("expected error when the file exists")
	}
	if _, err := runCLI(t, "config", "init", target, "--force"); err != nil {
		t.Errorf("config init --force error = %v", err)
	}
}

func TestExplicitConfigOverridesProject(t *testing.T) {
	dir := setupTestEnv(t)

	override := filepath.Join(dir, "override.yaml")
	writeTestFile(t, override, "atlas:\n  query_limit: 16\n")

	out, err := runCLI(t, "config", "show", "--json", "--config", override)
	if err != nil {
		t.Fatalf("config show error = %v", err)
	}
	shown := decodeOutput[config.Config](t, out)
	if shown.Atlas.QueryLimit != 16 {
		t.Errorf("QueryLimit = %d, want 16", shown.Atlas.QueryLimit)
	}
	if shown.Atlas.TileSize != 4 {
		t.Errorf("TileSize = %d, want 4 kept from the project file", shown.Atlas.TileSize)
	}
}
