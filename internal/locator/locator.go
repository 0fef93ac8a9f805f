// Package locator maps item filenames to source image paths.
//
// Images live in a sharded layout under a root directory:
//
//	<root>/<size dir>/<first 4 chars of filename>/<base name>.<ext>
//
// Thumbnails and full-size images use different directories and formats.
// Paths used for composition are validated; anything that fails validation
// resolves to a placeholder image instead.
package locator

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/danieljhkim/mosaic/internal/fsops"
)

// Size selects which rendition of an image to locate.
type Size string

const (
	// Thumbnail is the small tile-sized rendition.
	Thumbnail Size = "mini"

	// Full is the original-resolution rendition.
	Full Size = "full"
)

// ParseSize maps a request value onto a Size. Anything other than "mini"
// (or "thumbnail") selects the full-size image.
func ParseSize(s string) Size {
	switch strings.ToLower(s) {
	case "mini", "thumb", "thumbnail":
		return Thumbnail
	default:
		return Full
	}
}

var (
	// ErrMissingRecord indicates the store has no filename for the id.
	ErrMissingRecord = errors.New("missing record")

	// ErrUnsafePath indicates the path contains characters the composition
	// tool cannot take safely (spaces or parentheses).
	ErrUnsafePath = errors.New("unsafe path")

	// ErrUnreadable indicates the image file cannot be read.
	ErrUnreadable = errors.New("unreadable file")
)

// unsafeChars are rejected in any path handed to the composition engine.
const unsafeChars = " ()"

// Options configures a Locator.
type Options struct {
	// Root is the base directory of the image tree
	Root string

	// ThumbnailDir and FullDir are the size directories under Root
	ThumbnailDir string
	FullDir      string

	// ThumbnailExt and FullExt are the file extensions per size, without dot
	ThumbnailExt string
	FullExt      string

	// Placeholder is substituted for images that cannot be used
	Placeholder string
}

// Resolution is the outcome of locating one item for composition.
type Resolution struct {
	// Path is the image to draw: the item's image or the placeholder
	Path string

	// Fallback is true when Path is the placeholder
	Fallback bool

	// Reason explains the fallback (nil when Fallback is false)
	Reason error
}

// Locator derives and validates image paths.
type Locator struct {
	fs   fsops.FS
	opts Options
}

// New creates a Locator.
func New(fs fsops.FS, opts Options) *Locator {
	return &Locator{fs: fs, opts: opts}
}

// Placeholder returns the path substituted for unusable images.
func (l *Locator) Placeholder() string {
	return l.opts.Placeholder
}

// Path derives the sharded path of filename for the given size. It does not
// touch the filesystem.
func (l *Locator) Path(filename string, size Size) string {
	return filepath.Join(l.opts.Root, l.relPath(filename, size))
}

// relPath is the image path below Root: <dir>/<shard>/<base>.<ext>.
func (l *Locator) relPath(filename string, size Size) string {
	dir, ext := l.opts.FullDir, l.opts.FullExt
	if size == Thumbnail {
		dir, ext = l.opts.ThumbnailDir, l.opts.ThumbnailExt
	}

	name := filepath.Base(filename)
	shard := name
	if len(shard) > 4 {
		shard = shard[:4]
	}
	base := name
	if i := strings.IndexByte(name, '.'); i > 0 {
		base = name[:i]
	}

	return filepath.Join(dir, shard, base+"."+ext)
}

// ShardPath joins a shard directory and file name under the full-size tree.
// Both parts must be plain identifiers.
func (l *Locator) ShardPath(shard, filename string) (string, error) {
	if err := l.fs.ValidateIdentifier(shard); err != nil {
		return "", fmt.Errorf("invalid shard: %w", err)
	}
	if err := l.fs.ValidateIdentifier(filename); err != nil {
		return "", fmt.Errorf("invalid filename: %w", err)
	}
	return filepath.Join(l.opts.Root, l.opts.FullDir, shard, filename), nil
}

// Locate derives the path of filename and checks that it is safe and
// readable.
func (l *Locator) Locate(filename string, size Size) (string, error) {
	if strings.TrimSpace(filename) == "" {
		return "", ErrMissingRecord
	}

	// Root is configuration and may contain anything; only the stored name
	// and the part derived from it are checked.
	if strings.ContainsAny(filename, unsafeChars) {
		return "", fmt.Errorf("%w: %q", ErrUnsafePath, filename)
	}
	rel := l.relPath(filename, size)
	if strings.ContainsAny(rel, unsafeChars) {
		return "", fmt.Errorf("%w: %q", ErrUnsafePath, rel)
	}
	path := filepath.Join(l.opts.Root, rel)
	if err := l.fs.Readable(path); err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnreadable, err)
	}
	return path, nil
}

// Resolve locates an item for composition. found reports whether the store
// had a record for the item; a missing record is handled like any other
// locate failure.
func (l *Locator) Resolve(filename string, found bool, size Size) Resolution {
	if !found {
		return Resolution{Path: l.opts.Placeholder, Fallback: true, Reason: ErrMissingRecord}
	}

	path, err := l.Locate(filename, size)
	if err != nil {
		return Resolution{Path: l.opts.Placeholder, Fallback: true, Reason: err}
	}
	return Resolution{Path: path}
}
