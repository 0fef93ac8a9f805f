package raster

import (
	"context"
	"fmt"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/danieljhkim/mosaic/internal/fsops"
	"github.com/danieljhkim/mosaic/internal/planner"
)

// Stage names used in Failure records.
const (
	StageRender  = "render"
	StageTile    = "tile"
	StageStack   = "stack"
	StagePromote = "promote"
	StageCleanup = "cleanup"
	StageLookup  = "lookup"
	StageDigest  = "digest"
	StageImport  = "import"
)

// Failure is a non-fatal problem recorded while producing an artifact.
type Failure struct {
	Stage  string `json:"stage"`
	Target string `json:"target"`
	Err    string `json:"error"`
}

// NewFailure builds a Failure from an error.
func NewFailure(stage, target string, err error) Failure {
	return Failure{Stage: stage, Target: target, Err: err.Error()}
}

// Assembly describes how rendered sheets become final files.
type Assembly struct {
	// Key names the final files: Key.Ext or Key_<i>.Ext
	Key string

	// Dir is where final files are written
	Dir string

	// Ext is the output extension without dot
	Ext string

	// Sheets are the rendered sheets in layout order
	Sheets []string

	// PerRow is how many sheets the row pass places side by side.
	// 1 skips the row pass and stacks sheets vertically in one pass.
	PerRow int

	// PerFile caps the number of sheets in one final file
	PerFile int
}

// AssemblyResult lists the final files and anything that went wrong.
type AssemblyResult struct {
	Files    []string
	Failures []Failure
}

// Assembler combines sheets into final artifacts.
type Assembler struct {
	composer Composer
	fs       fsops.FS
	logger   *zap.Logger
}

// NewAssembler creates an Assembler.
func NewAssembler(composer Composer, fs fsops.FS, logger *zap.Logger) *Assembler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Assembler{composer: composer, fs: fs, logger: logger}
}

// FinalName returns the path of final file index out of total.
func FinalName(dir, key, ext string, index, total int) string {
	if total <= 1 {
		return filepath.Join(dir, key+"."+ext)
	}
	return filepath.Join(dir, fmt.Sprintf("%s_%d.%s", key, index, ext))
}

// Assemble stacks the sheets of asm into final files. A file made of a
// single sheet is promoted by renaming, without invoking the composer.
// Intermediate files are removed afterwards. Failures never abort the
// remaining files.
func (a *Assembler) Assemble(ctx context.Context, asm Assembly) AssemblyResult {
	result := AssemblyResult{Files: []string{}}
	if len(asm.Sheets) == 0 {
		return result
	}

	perRow := max(asm.PerRow, 1)
	perFile := max(asm.PerFile, 1)

	finals := planner.Partition(asm.Sheets, perFile)
	intermediates := append([]string(nil), asm.Sheets...)

	for fi, members := range finals {
		name := FinalName(asm.Dir, asm.Key, asm.Ext, fi, len(finals))

		rowPaths := make([]string, 0, (len(members)+perRow-1)/perRow)
		for ri, row := range planner.Partition(members, perRow) {
			if len(row) == 1 {
				rowPaths = append(rowPaths, row[0])
				continue
			}
			rowPath := filepath.Join(asm.Dir, fmt.Sprintf("%s_r%d_%d.%s", asm.Key, fi, ri, asm.Ext))
			intermediates = append(intermediates, rowPath)
			if err := a.composer.Stack(ctx, row, Horizontal, rowPath); err != nil {
				a.logger.Error("row composition failed", zap.String("output", rowPath), zap.Error(err))
				result.Failures = append(result.Failures, NewFailure(StageStack, rowPath, err))
				continue
			}
			rowPaths = append(rowPaths, rowPath)
		}

		switch len(rowPaths) {
		case 0:
			result.Failures = append(result.Failures, NewFailure(StageStack, name, fmt.Errorf("no rows to compose")))
			continue
		case 1:
			if err := a.fs.Rename(rowPaths[0], name); err != nil {
				a.logger.Error("promotion failed", zap.String("sheet", rowPaths[0]), zap.Error(err))
				result.Failures = append(result.Failures, NewFailure(StagePromote, name, err))
				continue
			}
		default:
			if err := a.composer.Stack(ctx, rowPaths, Vertical, name); err != nil {
				a.logger.Error("sheet composition failed", zap.String("output", name), zap.Error(err))
				result.Failures = append(result.Failures, NewFailure(StageStack, name, err))
				continue
			}
		}
		result.Files = append(result.Files, name)
	}

	a.cleanup(intermediates, result.Files)
	return result
}

// cleanup removes intermediate files that did not become final files.
// Missing files are expected (promoted sheets were renamed away).
func (a *Assembler) cleanup(intermediates, keep []string) {
	kept := make(map[string]bool, len(keep))
	for _, k := range keep {
		kept[k] = true
	}
	for _, p := range intermediates {
		if kept[p] {
			continue
		}
		if err := a.fs.Remove(p); err != nil {
			a.logger.Warn("failed to remove intermediate sheet", zap.String("path", p), zap.Error(err))
		}
	}
}
