package raster

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/danieljhkim/mosaic/internal/execx"
	"github.com/danieljhkim/mosaic/internal/planner"
)

func TestSheetArgs(t *testing.T) {
	layout := planner.Plan(2, 32, 2).Square()
	sheet := NewSheet("out/a_g0.jpg", layout, []Tile{
		ImageTile("32_32/abcd/abcd1.png", layout.Cells[0]),
		FillTile("ff0000", layout.Cells[1]),
	})

	got := SheetArgs(sheet, 85)

	want := []string{
		"-size", "64x64", "xc:none",
		"(", "32_32/abcd/abcd1.png", "-resize", "32x32^", "-gravity", "center", "-extent", "32x32", ")",
		"-gravity", "northwest", "-geometry", "+0+0", "-composite",
		"-fill", "#ff0000", "-draw", "rectangle 32,0 63,31",
		"-quality", "85", "out/a_g0.jpg",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("SheetArgs() =\n%q\nwant\n%q", got, want)
	}
}

func TestStackArgs(t *testing.T) {
	got := StackArgs([]string{"a.jpg", "b.jpg"}, Horizontal, "r.jpg", 90)
	want := []string{"-background", "none", "a.jpg", "b.jpg", "+append", "-quality", "90", "r.jpg"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("StackArgs(horizontal) = %q, want %q", got, want)
	}

	got = StackArgs([]string{"a.jpg"}, Vertical, "v.jpg", 90)
	if got[3] != "-append" {
		t.Errorf("expected -append for vertical stacking, got %q", got)
	}
}

func TestMagickComposer_PropagatesToolFailure(t *testing.T) {
	runner := execx.NewFakeRunner(func(inv execx.Invocation) ([]byte, error) {
		return nil, errors.New("magick: unable to open image")
	})
	c := NewMagickComposer(runner, "", "/work", 0)

	err := c.Stack(context.Background(), []string{"a.jpg"}, Vertical, "out.jpg")
	if err == nil {
		t.Fatal("expected the tool failure to be returned")
	}

	invs := runner.Invocations()
	if len(invs) != 1 {
		t.Fatalf("expected 1 invocation, got %d", len(invs))
	}
	if invs[0].Name != "magick" || invs[0].Dir != "/work" {
		t.Errorf("unexpected invocation %+v", invs[0])
	}
}
