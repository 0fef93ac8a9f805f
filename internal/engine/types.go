package engine

import (
	"time"

	"github.com/danieljhkim/mosaic/internal/raster"
)

// Kind names an artifact type.
type Kind string

const (
	// KindAtlas is a mosaic of thumbnails.
	KindAtlas Kind = "atlas"

	// KindPixels is a mosaic of one solid colour per item.
	KindPixels Kind = "pixels"
)

// Artifact is the result of building one artifact for a bucket.
type Artifact struct {
	// Kind is the artifact type
	Kind Kind `json:"kind"`

	// Bucket is the bucket key the artifact belongs to
	Bucket string `json:"bucket"`

	// Files are the final files, in index order
	Files []string `json:"files"`

	// Digests maps each final file to its BLAKE3 digest
	Digests map[string]string `json:"digests,omitempty"`

	// Side is the number of tiles per sheet row
	Side int `json:"side"`

	// Sheets is the number of intermediate sheets rendered
	Sheets int `json:"sheets"`

	// Tiles is the number of items placed
	Tiles int `json:"tiles"`

	// Fallbacks lists items drawn with the placeholder or fallback colour
	Fallbacks []Fallback `json:"fallbacks,omitempty"`

	// Failures lists non-fatal problems in build order
	Failures []raster.Failure `json:"failures,omitempty"`

	// BuiltAt is when the build started
	BuiltAt time.Time `json:"built_at"`

	// Duration is how long the build took
	Duration time.Duration `json:"duration"`
}

// Degraded reports whether anything fell back or failed.
func (a *Artifact) Degraded() bool {
	return len(a.Fallbacks) > 0 || len(a.Failures) > 0
}

// Fallback records why one item was not drawn from its own data.
type Fallback struct {
	ID     string `json:"id"`
	Reason string `json:"reason"`
}

// ImportResult summarizes one colour import.
type ImportResult struct {
	// Bucket is the bucket key
	Bucket string `json:"bucket"`

	// Imported is the number of palettes written
	Imported int `json:"imported"`

	// Skipped lists items whose colour file was missing, empty or invalid
	Skipped []Fallback `json:"skipped,omitempty"`

	// Batches is the number of update statements that succeeded
	Batches int `json:"batches"`

	// Failures lists update statements that failed
	Failures []raster.Failure `json:"failures,omitempty"`

	// Duration is how long the import took
	Duration time.Duration `json:"duration"`
}
