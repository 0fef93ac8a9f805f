// Package store is the persisted store holding bucket membership, item
// filenames and item palettes.
//
// The store is an explicitly constructed client with a lifecycle: open it at
// process start, pass it to the engine, close it at shutdown. All lookups
// are id-batched; callers bound batch sizes to keep statements small.
package store

import (
	"context"
	"sort"
	"strings"

	"github.com/danieljhkim/mosaic/internal/palette"
)

// Bucket is a named group of items rendered together.
type Bucket struct {
	// Key uniquely names the bucket
	Key string `json:"key"`

	// IDs are the bucket's items; order only affects layout
	IDs []string `json:"ids"`
}

// Count returns the number of items in the bucket.
func (b Bucket) Count() int {
	return len(b.IDs)
}

// PaletteUpdate is the palette to persist for one item.
type PaletteUpdate struct {
	ID      string
	Entries []palette.Entry
}

// Store provides the lookups the builders need.
type Store interface {
	// ListBuckets returns every bucket ordered by descending item count.
	ListBuckets(ctx context.Context) ([]Bucket, error)

	// LookupFilenames returns the filename of each id that has a record.
	LookupFilenames(ctx context.Context, ids []string) (map[string]string, error)

	// LookupPalettes returns the stored palette of each id that has a record.
	LookupPalettes(ctx context.Context, ids []string) (map[string][]palette.Entry, error)

	// UpdatePalettes overwrites the palettes of the given items in one statement.
	UpdatePalettes(ctx context.Context, updates []PaletteUpdate) error

	// Close releases the underlying connection.
	Close() error
}

// SplitIDs parses a comma-joined id column. Blank entries are dropped.
func SplitIDs(s string) []string {
	parts := strings.Split(s, ",")
	ids := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			ids = append(ids, p)
		}
	}
	return ids
}

// SortBuckets orders buckets by descending item count, then by key.
func SortBuckets(buckets []Bucket) {
	sort.SliceStable(buckets, func(i, j int) bool {
		if len(buckets[i].IDs) != len(buckets[j].IDs) {
			return len(buckets[i].IDs) > len(buckets[j].IDs)
		}
		return buckets[i].Key < buckets[j].Key
	})
}

// FindBucket returns the bucket with the given key.
func FindBucket(buckets []Bucket, key string) (Bucket, bool) {
	for _, b := range buckets {
		if b.Key == key {
			return b, true
		}
	}
	return Bucket{}, false
}
