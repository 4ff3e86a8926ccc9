// Package memcache keeps the newest snapshot per base currency in process memory
// in front of a persistent snapshot repository.
package memcache

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"time"

	"github.com/coocood/freecache"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"studentgit.kata.academy/KonstantinDolgov/currency-converter/internal/model"
	"studentgit.kata.academy/KonstantinDolgov/currency-converter/internal/repository"
)

const (
	keyPrefix = "snapshot:"

	// freecache limits: minimum total size, and per entry 1/1024 of it minus the entry header.
	minCacheSize    = 512 * 1024
	entryHeaderSize = 24
)

type SnapshotCache struct {
	next     repository.SnapshotRepository
	cache    *freecache.Cache
	maxEntry int
	clock    clockwork.Clock
	logger   *zap.Logger
}

var _ repository.SnapshotRepository = (*SnapshotCache)(nil)

// clockTimer drives freecache expiry from the injected clock.
type clockTimer struct {
	clock clockwork.Clock
}

func (t clockTimer) Now() uint32 {
	return uint32(t.clock.Now().Unix())
}

// New wraps next with a cache of sizeBytes. freecache enforces a 512KB minimum.
func New(next repository.SnapshotRepository, sizeBytes int, clock clockwork.Clock, logger *zap.Logger) *SnapshotCache {
	if sizeBytes < minCacheSize {
		sizeBytes = minCacheSize
	}
	return &SnapshotCache{
		next:     next,
		cache:    freecache.NewCacheCustomTimer(sizeBytes, clockTimer{clock: clock}),
		maxEntry: MaxEntrySize(sizeBytes),
		clock:    clock,
		logger:   logger,
	}
}

// MaxEntrySize is the largest key plus value a cache of sizeBytes accepts.
func MaxEntrySize(sizeBytes int) int {
	if sizeBytes < minCacheSize {
		sizeBytes = minCacheSize
	}
	return sizeBytes/1024 - entryHeaderSize
}

func (c *SnapshotCache) SaveSnapshot(ctx context.Context, snapshot model.RateSnapshot) (int64, error) {
	id, err := c.next.SaveSnapshot(ctx, snapshot)
	if err != nil {
		return 0, err
	}

	snapshot.ID = id
	c.put(snapshot)
	return id, nil
}

func (c *SnapshotCache) GetLatestSnapshot(ctx context.Context, base string, notBefore time.Time) (*model.RateSnapshot, error) {
	if snap, ok := c.get(base); ok && snap.FetchedAt.After(notBefore) {
		c.logger.Debug("Snapshot served from memory", zap.String("base_currency", base), zap.Int64("id", snap.ID))
		return snap, nil
	}

	snap, err := c.next.GetLatestSnapshot(ctx, base, notBefore)
	if err != nil {
		return nil, err
	}

	c.put(*snap)
	return snap, nil
}

func (c *SnapshotCache) DeleteSnapshotsBefore(ctx context.Context, threshold time.Time) (int64, error) {
	return c.next.DeleteSnapshotsBefore(ctx, threshold)
}

// Len reports the number of cached snapshots.
func (c *SnapshotCache) Len() int64 {
	return c.cache.EntryCount()
}

func (c *SnapshotCache) get(base string) (*model.RateSnapshot, bool) {
	data, err := c.cache.Get([]byte(keyPrefix + base))
	if err != nil {
		if !errors.Is(err, freecache.ErrNotFound) {
			c.logger.Warn("Failed to read snapshot cache", zap.String("base_currency", base), zap.Error(err))
		}
		return nil, false
	}

	var snap model.RateSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		c.logger.Warn("Dropping undecodable cached snapshot", zap.String("base_currency", base), zap.Error(err))
		c.cache.Del([]byte(keyPrefix + base))
		return nil, false
	}
	return &snap, true
}

func (c *SnapshotCache) put(snap model.RateSnapshot) {
	remaining := snap.FetchedAt.Add(model.FreshnessWindow).Sub(c.clock.Now())
	if remaining <= 0 {
		return
	}

	if current, ok := c.get(snap.BaseCurrency); ok && current.FetchedAt.After(snap.FetchedAt) {
		return
	}

	data, err := json.Marshal(snap)
	if err != nil {
		c.logger.Warn("Failed to encode snapshot for cache", zap.Error(err))
		return
	}

	key := []byte(keyPrefix + snap.BaseCurrency)
	if len(key)+len(data) > c.maxEntry {
		c.logger.Warn("Snapshot does not fit into memory cache entry",
			zap.String("base_currency", snap.BaseCurrency),
			zap.Int("entry_size", len(key)+len(data)),
			zap.Int("max_entry_size", c.maxEntry))
		return
	}

	ttl := int(math.Ceil(remaining.Seconds()))
	if err := c.cache.Set(key, data, ttl); err != nil {
		c.logger.Warn("Failed to cache snapshot",
			zap.String("base_currency", snap.BaseCurrency),
			zap.Error(err))
	}
}
