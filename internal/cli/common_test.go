package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	"go.uber.org/zap/zapcore"

	"github.com/danieljhkim/mosaic/internal/config"
	"github.com/danieljhkim/mosaic/internal/engine"
	"github.com/danieljhkim/mosaic/internal/fsops"
	"github.com/danieljhkim/mosaic/internal/raster"
)

// captureOutput points the print helpers at buffers for the test.
func captureOutput(t *testing.T) (*bytes.Buffer, *bytes.Buffer) {
	t.Helper()
	oldOut, oldErr := stdout, stderr
	var out, errOut bytes.Buffer
	stdout, stderr = &out, &errOut
	t.Cleanup(func() { stdout, stderr = oldOut, oldErr })
	return &out, &errOut
}

func TestOutputJSON(t *testing.T) {
	data := map[string]string{"test": "value"}

	var buf bytes.Buffer
	if err := outputJSON(&buf, data); err != nil {
		t.Fatalf("outputJSON() error = %v", err)
	}

	var v map[string]string
	if err := json.Unmarshal(buf.Bytes(), &v); err != nil {
		t.Errorf("outputJSON() produced invalid JSON: %v", err)
	}
	if v["test"] != "value" {
		t.Errorf("outputJSON() round trip = %v", v)
	}
}

func TestPrintFunctions(t *testing.T) {
	out, errOut := captureOutput(t)

	PrintSuccess("Success message")
	PrintWarning("Warning message")
	PrintError("Error message")
	PrintInfo("Info message")

	for _, want := range []string{"Success message", "Warning message", "Info message"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("stdout missing %q: %q", want, out.String())
		}
	}
	if strings.Contains(out.String(), "Error message") {
		t.Error("PrintError should not write to stdout")
	}
	if !strings.Contains(errOut.String(), "Error message") {
		t.Errorf("stderr missing error: %q", errOut.String())
	}
}

func TestPrintTable(t *testing.T) {
	out, _ := captureOutput(t)

	PrintTable([]string{"BUCKET", "ITEMS"}, [][]string{{"holidays", "12"}, {"a", "3"}})

	lines := strings.Split(strings.TrimRight(out.String(), "\n"), "\n")
	if len(lines) != 4 {
		t.Fatalf("expected header, rule and 2 rows, got %q", out.String())
	}
	if !strings.HasPrefix(lines[1], "  --------  -----") {
		t.Errorf("rule line = %q", lines[1])
	}
	if !strings.HasPrefix(lines[3], "  a         3") {
		t.Errorf("row not padded to column width: %q", lines[3])
	}
}

func TestPrintDegradation(t *testing.T) {
	fallbacks := []engine.Fallback{{ID: "7", Reason: "unreadable file"}}
	failures := []raster.Failure{raster.NewFailure(raster.StageStack, "a.jpg", errors.New("boom"))}

	tests := []struct {
		name    string
		verbose bool
		want    []string
		notWant []string
	}{
		{
			name:    "quiet lists failures only",
			want:    []string{"1 tile fell back", "1 step failed", "stack a.jpg: boom"},
			notWant: []string{"7: unreadable file"},
		},
		{
			name:    "verbose lists fallbacks",
			verbose: true,
			want:    []string{"1 tile fell back", "• 7: unreadable file", "stack a.jpg: boom"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, _ := captureOutput(t)
			old := verbose
			verbose = tt.verbose
			t.Cleanup(func() { verbose = old })

			printDegradation(fallbacks, failures, "tile fell back", "tiles fell back")

			for _, w := range tt.want {
				if !strings.Contains(out.String(), w) {
					t.Errorf("output missing %q: %q", w, out.String())
				}
			}
			for _, w := range tt.notWant {
				if strings.Contains(out.String(), w) {
					t.Errorf("output should not contain %q: %q", w, out.String())
				}
			}
		})
	}
}

func TestPrintCount(t *testing.T) {
	tests := []struct {
		n    int
		want string
	}{
		{0, "0 tiles"},
		{1, "1 tile"},
		{2, "2 tiles"},
	}
	for _, tt := range tests {
		if got := PrintCount(tt.n, "tile", "tiles"); got != tt.want {
			t.Errorf("PrintCount(%d) = %q, want %q", tt.n, got, tt.want)
		}
	}
}

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name    string
		lc      config.LoggingConfig
		debug   bool
		want    zapcore.Level
		wantErr bool
	}{
		{name: "default info", lc: config.LoggingConfig{}, want: zapcore.InfoLevel},
		{name: "configured warn", lc: config.LoggingConfig{Level: "warn"}, want: zapcore.WarnLevel},
		{name: "verbose wins", lc: config.LoggingConfig{Level: "error"}, debug: true, want: zapcore.DebugLevel},
		{name: "development", lc: config.LoggingConfig{Level: "info", Development: true}, want: zapcore.InfoLevel},
		{name: "invalid level", lc: config.LoggingConfig{Level: "loud"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := newLogger(tt.lc, tt.debug)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("newLogger() error = %v", err)
			}
			if !l.Core().Enabled(tt.want) {
				t.Errorf("level %v should be enabled", tt.want)
			}
			if tt.want > zapcore.DebugLevel && l.Core().Enabled(tt.want-1) {
				t.Errorf("level %v should be disabled", tt.want-1)
			}
		})
	}
}

func TestNewComposer(t *testing.T) {
	old := cfg
	t.Cleanup(func() { cfg = old })

	tests := []struct {
		backend string
		want    string
		wantErr bool
	}{
		{backend: config.BackendNative, want: "*raster.NativeComposer"},
		{backend: config.BackendMagick, want: "*raster.MagickComposer"},
		{backend: "gimp", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.backend, func(t *testing.T) {
			cfg = config.DefaultConfig()
			cfg.Render.Backend = tt.backend

			c, err := newComposer(fsops.NewRealFS())
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("newComposer() error = %v", err)
			}
			if got := fmt.Sprintf("%T", c); got != tt.want {
				t.Errorf("newComposer() = %s, want %s", got, tt.want)
			}
		})
	}
}
