package raster

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"testing"

	"github.com/danieljhkim/mosaic/internal/fsops"
)

// recordingComposer writes each output as the newline-joined list of its
// inputs so tests can inspect how sheets were combined.
type recordingComposer struct {
	mu       sync.Mutex
	stacks   []stackCall
	failOn   map[string]bool
	rendered []string
}

type stackCall struct {
	inputs []string
	dir    Direction
	output string
}

func (c *recordingComposer) RenderSheet(ctx context.Context, sheet Sheet) error {
	c.mu.Lock()
	c.rendered = append(c.rendered, sheet.Output)
	c.mu.Unlock()
	return os.WriteFile(sheet.Output, []byte(filepath.Base(sheet.Output)), 0644)
}

func (c *recordingComposer) Stack(ctx context.Context, inputs []string, dir Direction, output string) error {
	c.mu.Lock()
	c.stacks = append(c.stacks, stackCall{inputs: inputs, dir: dir, output: output})
	c.mu.Unlock()
	if c.failOn[filepath.Base(output)] {
		return errors.New("tool exited with status 1")
	}
	names := make([]string, len(inputs))
	for i, in := range inputs {
		data, err := os.ReadFile(in)
		if err != nil {
			return err
		}
		names[i] = string(data)
	}
	return os.WriteFile(output, []byte(strings.Join(names, "|")), 0644)
}

func makeSheets(t *testing.T, dir, key string, n int) []string {
	t.Helper()
	sheets := make([]string, n)
	for i := range sheets {
		sheets[i] = filepath.Join(dir, key+"_g"+string(rune('0'+i))+".jpg")
		if err := os.WriteFile(sheets[i], []byte(filepath.Base(sheets[i])), 0644); err != nil {
			t.Fatalf("failed to write sheet: %v", err)
		}
	}
	return sheets
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

func TestAssemble_SingleSheetIsPromoted(t *testing.T) {
	dir := t.TempDir()
	comp := &recordingComposer{}
	a := NewAssembler(comp, fsops.NewRealFS(), nil)

	sheets := makeSheets(t, dir, "a", 1)
	res := a.Assemble(context.Background(), Assembly{Key: "a", Dir: dir, Ext: "jpg", Sheets: sheets, PerRow: 4, PerFile: 16})

	if len(comp.stacks) != 0 {
		t.Errorf("expected no stacking for a single sheet, got %d calls", len(comp.stacks))
	}
	if want := []string{filepath.Join(dir, "a.jpg")}; !reflect.DeepEqual(res.Files, want) {
		t.Errorf("Files = %v, want %v", res.Files, want)
	}
	if got := listDir(t, dir); !reflect.DeepEqual(got, []string{"a.jpg"}) {
		t.Errorf("directory = %v, want only a.jpg", got)
	}
}

func TestAssemble_TwoPassGrid(t *testing.T) {
	dir := t.TempDir()
	comp := &recordingComposer{}
	a := NewAssembler(comp, fsops.NewRealFS(), nil)

	sheets := makeSheets(t, dir, "k", 5)
	res := a.Assemble(context.Background(), Assembly{Key: "k", Dir: dir, Ext: "jpg", Sheets: sheets, PerRow: 2, PerFile: 4})

	wantFiles := []string{filepath.Join(dir, "k_0.jpg"), filepath.Join(dir, "k_1.jpg")}
	if !reflect.DeepEqual(res.Files, wantFiles) {
		t.Fatalf("Files = %v, want %v", res.Files, wantFiles)
	}
	if len(res.Failures) != 0 {
		t.Errorf("unexpected failures: %+v", res.Failures)
	}

	data, err := os.ReadFile(wantFiles[0])
	if err != nil {
		t.Fatalf("failed to read final: %v", err)
	}
	if string(data) != "k_g0.jpg|k_g1.jpg|k_g2.jpg|k_g3.jpg" {
		t.Errorf("first final composed as %q", data)
	}
	data, err = os.ReadFile(wantFiles[1])
	if err != nil {
		t.Fatalf("failed to read final: %v", err)
	}
	if string(data) != "k_g4.jpg" {
		t.Errorf("second final should be the promoted sheet, got %q", data)
	}

	// 2 row stacks + 1 vertical stack for the first file, nothing for the second.
	if len(comp.stacks) != 3 {
		t.Fatalf("expected 3 stack calls, got %d", len(comp.stacks))
	}
	if comp.stacks[0].dir != Horizontal || comp.stacks[2].dir != Vertical {
		t.Errorf("expected row pass then sheet pass, got %+v", comp.stacks)
	}

	if got := listDir(t, dir); !reflect.DeepEqual(got, []string{"k_0.jpg", "k_1.jpg"}) {
		t.Errorf("intermediates not cleaned up: %v", got)
	}
}

func TestAssemble_SinglePassVertical(t *testing.T) {
	dir := t.TempDir()
	comp := &recordingComposer{}
	a := NewAssembler(comp, fsops.NewRealFS(), nil)

	sheets := makeSheets(t, dir, "p", 3)
	res := a.Assemble(context.Background(), Assembly{Key: "p", Dir: dir, Ext: "png", Sheets: sheets, PerRow: 1, PerFile: 3})

	if want := []string{filepath.Join(dir, "p.png")}; !reflect.DeepEqual(res.Files, want) {
		t.Fatalf("Files = %v, want %v", res.Files, want)
	}
	if len(comp.stacks) != 1 || comp.stacks[0].dir != Vertical || len(comp.stacks[0].inputs) != 3 {
		t.Errorf("expected one vertical stack of 3 sheets, got %+v", comp.stacks)
	}
}

func TestAssemble_ToolFailureIsRecorded(t *testing.T) {
	dir := t.TempDir()
	comp := &recordingComposer{failOn: map[string]bool{"k.jpg": true}}
	a := NewAssembler(comp, fsops.NewRealFS(), nil)

	sheets := makeSheets(t, dir, "k", 2)
	res := a.Assemble(context.Background(), Assembly{Key: "k", Dir: dir, Ext: "jpg", Sheets: sheets, PerRow: 1, PerFile: 4})

	if len(res.Files) != 0 {
		t.Errorf("expected no final files, got %v", res.Files)
	}
	if len(res.Failures) != 1 || res.Failures[0].Stage != StageStack {
		t.Errorf("expected one stack failure, got %+v", res.Failures)
	}
}

func TestAssemble_NoSheets(t *testing.T) {
	a := NewAssembler(&recordingComposer{}, fsops.NewRealFS(), nil)

	res := a.Assemble(context.Background(), Assembly{Key: "k", Dir: t.TempDir(), Ext: "jpg"})

	if res.Files == nil || len(res.Files) != 0 {
		t.Errorf("expected empty non-nil file list, got %#v", res.Files)
	}
}

func TestFinalName(t *testing.T) {
	if got := FinalName("/out", "a", "jpg", 0, 1); got != "/out/a.jpg" {
		t.Errorf("FinalName single = %q", got)
	}
	if got := FinalName("/out", "a", "jpg", 2, 3); got != "/out/a_2.jpg" {
		t.Errorf("FinalName multi = %q", got)
	}
}
