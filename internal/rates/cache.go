package rates

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/bher20/bpimanager/internal/logging"
	"github.com/bher20/bpimanager/internal/metrics"
	"github.com/bher20/bpimanager/internal/storage"
)

// Source names the tier that served a feed read.
type Source string

const (
	SourceCache Source = "cache"
	SourceStore Source = "store"
	SourceSeed  Source = "seed"
)

// Cache holds the most recently ingested feed. Reads fall back to the latest
// stored snapshot and then to the seed; only Write fills the slot.
type Cache struct {
	slot  atomic.Pointer[Feed]
	store storage.SnapshotStore
	seed  *Seed
}

// NewCache returns an empty cache. store may be nil, in which case misses go
// straight to the seed.
func NewCache(store storage.SnapshotStore, seed *Seed) *Cache {
	if seed == nil {
		seed = NewSeed("")
	}
	return &Cache{store: store, seed: seed}
}

// Write replaces the cached feed with a copy of f.
func (c *Cache) Write(f *Feed) {
	c.slot.Store(f.Clone())
}

// Peek returns the cached feed without falling back, or nil.
func (c *Cache) Peek() *Feed {
	return c.slot.Load().Clone()
}

// Read returns the current feed and the tier it came from. A store that
// errors is treated as empty; the seed failing is the only error.
func (c *Cache) Read(ctx context.Context) (*Feed, Source, error) {
	if f := c.slot.Load(); f != nil {
		metrics.FeedReadsTotal.WithLabelValues(string(SourceCache)).Inc()
		return f.Clone(), SourceCache, nil
	}

	if c.store != nil {
		snap, err := c.store.LatestSnapshot(ctx)
		switch {
		case err != nil:
			logging.For("rates").WithError(err).Warn("latest snapshot unavailable, using seed")
		case snap != nil && len(snap.Rates) > 0:
			metrics.FeedReadsTotal.WithLabelValues(string(SourceStore)).Inc()
			return FeedFromSnapshot(snap), SourceStore, nil
		}
	}

	f, err := c.seed.Load()
	if err != nil {
		metrics.FeedReadsTotal.WithLabelValues("error").Inc()
		return nil, "", fmt.Errorf("read feed: %w", err)
	}
	metrics.FeedReadsTotal.WithLabelValues(string(SourceSeed)).Inc()
	return f, SourceSeed, nil
}
