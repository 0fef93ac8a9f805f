package palette

import (
	"context"

	"go.uber.org/zap"
)

// Lookup fetches stored palettes for a batch of ids. Ids without a record
// are absent from the returned map.
type Lookup interface {
	LookupPalettes(ctx context.Context, ids []string) (map[string][]Entry, error)
}

// Resolution is the colour chosen for one id.
type Resolution struct {
	ID       string
	Color    Color
	Fallback bool
}

// Resolver maps ids to representative colours. It never fails: anything it
// cannot resolve becomes Fallback.
type Resolver struct {
	lookup    Lookup
	batchSize int
	logger    *zap.Logger
}

// NewResolver creates a Resolver that queries lookup at most batchSize ids
// at a time.
func NewResolver(lookup Lookup, batchSize int, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	if batchSize < 1 {
		batchSize = 1
	}
	return &Resolver{lookup: lookup, batchSize: batchSize, logger: logger}
}

// Resolve returns one resolution per id, in the order given.
func (r *Resolver) Resolve(ctx context.Context, ids []string) []Resolution {
	out := make([]Resolution, 0, len(ids))
	for start := 0; start < len(ids); start += r.batchSize {
		batch := ids[start:min(start+r.batchSize, len(ids))]

		palettes, err := r.lookup.LookupPalettes(ctx, batch)
		if err != nil {
			r.logger.Warn("palette lookup failed, using fallback colour",
				zap.Int("ids", len(batch)), zap.Error(err))
			palettes = nil
		}

		for _, id := range batch {
			c, ok := First(palettes[id])
			if !ok {
				r.logger.Debug("skipped palette", zap.String("id", id))
			}
			out = append(out, Resolution{ID: id, Color: c, Fallback: !ok})
		}
	}
	return out
}
