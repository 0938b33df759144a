// File: internal/selectorcache/tiered.go
package selectorcache

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/healbeacon/internal/config"
)

// Cache is the tiered selector cache: a bounded, TTL-aware memory tier
// backed by two durable JSON documents for warm restarts. The read path is
// memory-only; durability flushes run on a background worker so no caller
// ever waits on disk. The durable tier is a best-effort warm-start cache,
// not a transaction log: abrupt termination may lose the last unflushed
// batch.
type Cache struct {
	cfg     config.CacheConfig
	logger  *zap.Logger
	metrics *Metrics

	mu      sync.RWMutex
	entries map[string]*CachedSelector
	stats   map[string]*UsageStats

	store   *store
	flusher *flusher
}

// New opens the cache, loading non-expired entries from the durable tier.
// A missing or corrupt durable file is not fatal: the cache starts empty.
func New(cfg config.CacheConfig, logger *zap.Logger) (*Cache, error) {
	dir, err := cfg.ResolveDirectory()
	if err != nil {
		return nil, err
	}
	st, err := newStore(dir)
	if err != nil {
		return nil, err
	}

	c := &Cache{
		cfg:     cfg,
		logger:  logger.Named("selectorcache"),
		metrics: &Metrics{},
		entries: make(map[string]*CachedSelector),
		stats:   make(map[string]*UsageStats),
		store:   st,
	}
	c.warmStart()
	c.flusher = newFlusher(c.logger, c.flush)

	c.logger.Info("Selector cache initialized",
		zap.String("directory", dir),
		zap.Int("loaded_entries", c.Size()))
	return c, nil
}

// warmStart admits durable entries that pass both expiry policies at load
// time. Expired entries are dropped, never resurrected.
func (c *Cache) warmStart() {
	now := time.Now()

	loaded, err := c.store.loadEntries()
	if err != nil {
		c.logger.Warn("Failed to load durable cache entries, starting empty", zap.Error(err))
	}
	admitted, expired := 0, 0
	for key, fe := range loaded {
		if fe.expired(now, c.cfg.ExpireAfterWrite, c.cfg.ExpireAfterAccess) {
			expired++
			continue
		}
		c.entries[key] = fe.toCachedSelector()
		admitted++
	}

	stats, err := c.store.loadStats()
	if err != nil {
		c.logger.Warn("Failed to load durable usage stats, starting empty", zap.Error(err))
	}
	for key, us := range stats {
		if us == nil || us.expired(now, c.cfg.ExpireAfterAccess) {
			continue
		}
		c.stats[key] = us
	}

	if admitted > 0 || expired > 0 {
		c.logger.Info("Durable tier loaded",
			zap.Int("admitted", admitted),
			zap.Int("expired_dropped", expired))
	}
}

// Get returns a copy of the entry for key from the memory tier. It never
// touches disk.
func (c *Cache) Get(key string) (*CachedSelector, bool) {
	now := time.Now()

	c.mu.Lock()
	entry, ok := c.entries[key]
	if ok && entry.expired(now, c.cfg.ExpireAfterWrite, c.cfg.ExpireAfterAccess) {
		delete(c.entries, key)
		c.metrics.recordEviction()
		ok = false
	}
	var result *CachedSelector
	if ok {
		entry.LastUsedAt = now
		c.touchStats(key, now)
		result = entry.clone()
	}
	c.mu.Unlock()

	if !ok {
		c.metrics.recordMiss()
		c.logger.Debug("Cache miss", zap.String("key", key))
		return nil, false
	}
	c.metrics.recordHit()
	c.logger.Debug("Cache hit", zap.String("key", key))
	return result, true
}

// Put stores an entry in the memory tier and schedules a durability flush.
// It returns before any disk I/O happens.
func (c *Cache) Put(key string, entry *CachedSelector) {
	now := time.Now()

	c.mu.Lock()
	c.evictExpiredLocked(now)
	if _, exists := c.entries[key]; !exists {
		c.evictForCapacityLocked()
	}
	c.entries[key] = entry.clone()
	c.touchStats(key, now)
	c.mu.Unlock()

	c.metrics.recordLoad()
	c.flusher.kick()
	c.logger.Debug("Cache stored", zap.String("key", key), zap.String("selector", entry.Selector))
}

// RecordOutcome updates the usage counters for key in a single atomic
// increment-plus-timestamp step. Unknown keys are a no-op.
func (c *Cache) RecordOutcome(key string, success bool) {
	now := time.Now()

	c.mu.Lock()
	entry, ok := c.entries[key]
	if ok {
		entry.recordUsage(success, now)
		c.statsFor(key).recordUsage(success, now)
	}
	c.mu.Unlock()

	if ok {
		c.flusher.kick()
		c.logger.Debug("Outcome recorded", zap.String("key", key), zap.Bool("success", success))
	}
}

// EvictExpired proactively removes entries past either TTL bound and usage
// stats past the access bound.
func (c *Cache) EvictExpired() {
	now := time.Now()

	c.mu.Lock()
	evicted := c.evictExpiredLocked(now)
	for key, us := range c.stats {
		if us.expired(now, c.cfg.ExpireAfterAccess) {
			delete(c.stats, key)
		}
	}
	c.mu.Unlock()

	if evicted > 0 {
		c.flusher.kick()
		c.logger.Debug("Expired entries evicted", zap.Int("count", evicted))
	}
}

// Remove deletes key from both tiers, reporting whether it was present.
func (c *Cache) Remove(key string) bool {
	c.mu.Lock()
	_, ok := c.entries[key]
	if ok {
		delete(c.entries, key)
		delete(c.stats, key)
	}
	c.mu.Unlock()

	if !ok {
		return false
	}
	c.metrics.recordEviction()
	c.flusher.kick()
	c.logger.Debug("Cache entry removed", zap.String("key", key))
	return true
}

// Clear empties both tiers and deletes the durable documents.
func (c *Cache) Clear() {
	c.mu.Lock()
	removed := len(c.entries)
	c.entries = make(map[string]*CachedSelector)
	c.stats = make(map[string]*UsageStats)
	c.mu.Unlock()

	if err := c.store.clear(); err != nil {
		c.logger.Warn("Failed to delete durable cache files", zap.Error(err))
	}
	c.metrics.reset()
	c.logger.Info("Cache cleared", zap.Int("entries_removed", removed))
}

// Size returns the number of live memory-tier entries.
func (c *Cache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Metrics returns a snapshot of the process-lifetime counters.
func (c *Cache) Metrics() MetricsSnapshot {
	return c.metrics.Snapshot()
}

// UsageSummary returns a copy of the per-key usage records backing the
// durable metrics document.
func (c *Cache) UsageSummary() map[string]UsageStats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]UsageStats, len(c.stats))
	for key, us := range c.stats {
		out[key] = *us
	}
	return out
}

// Directory returns the durable tier location, for diagnostics.
func (c *Cache) Directory() string {
	return c.store.dir
}

// Close drains the background flusher within ctx and writes a final
// synchronous snapshot. The cache must not be used afterwards.
func (c *Cache) Close(ctx context.Context) error {
	c.logger.Info("Closing selector cache, flushing durable tier")
	return c.flusher.close(ctx)
}

// Flush forces a synchronous snapshot write. Intended for tests.
func (c *Cache) Flush() error {
	return c.flush()
}

// --- internals ---

// flush serializes the full memory tier into the durable documents. Runs on
// the flusher goroutine (or synchronously at shutdown); the snapshot is
// assembled under the read lock, the write happens outside it.
func (c *Cache) flush() error {
	c.mu.RLock()
	entries := make(map[string]fileEntry, len(c.entries))
	for key, e := range c.entries {
		entries[key] = newFileEntry(e)
	}
	stats := make(map[string]*UsageStats, len(c.stats))
	for key, us := range c.stats {
		cp := *us
		stats[key] = &cp
	}
	c.mu.RUnlock()

	return c.store.save(entries, stats)
}

func (c *Cache) evictExpiredLocked(now time.Time) int {
	evicted := 0
	for key, entry := range c.entries {
		if entry.expired(now, c.cfg.ExpireAfterWrite, c.cfg.ExpireAfterAccess) {
			delete(c.entries, key)
			c.metrics.recordEviction()
			evicted++
		}
	}
	return evicted
}

// evictForCapacityLocked makes room for one insertion by dropping the least
// recently used entry when the tier is full.
func (c *Cache) evictForCapacityLocked() {
	if len(c.entries) < c.cfg.MaxEntries {
		return
	}
	var oldestKey string
	var oldest time.Time
	for key, entry := range c.entries {
		if oldestKey == "" || entry.LastUsedAt.Before(oldest) {
			oldestKey = key
			oldest = entry.LastUsedAt
		}
	}
	if oldestKey != "" {
		delete(c.entries, oldestKey)
		c.metrics.recordEviction()
		c.logger.Debug("Capacity eviction", zap.String("key", oldestKey))
	}
}

func (c *Cache) statsFor(key string) *UsageStats {
	us, ok := c.stats[key]
	if !ok {
		us = &UsageStats{}
		c.stats[key] = us
	}
	return us
}

func (c *Cache) touchStats(key string, now time.Time) {
	us := c.statsFor(key)
	us.LastUsed = now
	us.LastAccessTime = now.UnixMilli()
}
