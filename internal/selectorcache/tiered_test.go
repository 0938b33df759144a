// File: internal/selectorcache/tiered_test.go
package selectorcache

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"github.com/xkilldash9x/healbeacon/internal/config"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func testCacheConfig(dir string) config.CacheConfig {
	return config.CacheConfig{
		MaxEntries:        100,
		ExpireAfterWrite:  24 * time.Hour,
		ExpireAfterAccess: 2 * time.Hour,
		Directory:         dir,
	}
}

func newTestCache(t *testing.T, cfg config.CacheConfig) *Cache {
	t.Helper()
	c, err := New(cfg, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, c.Close(context.Background()))
	})
	return c
}

func TestCache_PutGet(t *testing.T) {
	c := newTestCache(t, testCacheConfig(t.TempDir()))

	entry := NewCachedSelector("#submit-btn", "fp-1")
	c.Put("k1", entry)

	got, ok := c.Get("k1")
	require.True(t, ok)
	assert.Equal(t, "#submit-btn", got.Selector)
	assert.Equal(t, "fp-1", got.Fingerprint)

	_, ok = c.Get("absent")
	assert.False(t, ok)

	m := c.Metrics()
	assert.Equal(t, int64(1), m.Hits)
	assert.Equal(t, int64(1), m.Misses)
	assert.Equal(t, int64(1), m.Loads)
}

func TestCache_GetReturnsCopy(t *testing.T) {
	c := newTestCache(t, testCacheConfig(t.TempDir()))
	c.Put("k", NewCachedSelector("#a", ""))

	got, ok := c.Get("k")
	require.True(t, ok)
	got.Selector = "mutated"
	got.UsageCount = 99

	again, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, "#a", again.Selector)
	assert.Zero(t, again.UsageCount)
}

func TestCache_RecordOutcome(t *testing.T) {
	c := newTestCache(t, testCacheConfig(t.TempDir()))
	c.Put("k", NewCachedSelector("#a", ""))

	c.RecordOutcome("k", true)
	c.RecordOutcome("k", true)
	c.RecordOutcome("k", false)

	got, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, 3, got.UsageCount)
	assert.Equal(t, 2, got.SuccessCount)
	assert.InDelta(t, 2.0/3.0, got.SuccessRate(), 1e-9)

	// Unknown keys are a no-op, not an insert.
	c.RecordOutcome("ghost", true)
	_, ok = c.Get("ghost")
	assert.False(t, ok)
}

func TestCache_UsageSummary(t *testing.T) {
	c := newTestCache(t, testCacheConfig(t.TempDir()))
	c.Put("a", NewCachedSelector("#a", ""))
	c.Put("b", NewCachedSelector("#b", ""))

	c.RecordOutcome("a", true)
	c.RecordOutcome("a", true)
	c.RecordOutcome("a", false)
	c.RecordOutcome("b", false)

	usage := c.UsageSummary()
	require.Len(t, usage, 2)
	assert.Equal(t, 3, usage["a"].Attempts)
	assert.Equal(t, 2, usage["a"].Successes)
	a := usage["a"]
	assert.InDelta(t, 2.0/3.0, a.SuccessRate(), 1e-9)
	b := usage["b"]
	assert.Zero(t, b.SuccessRate())

	// The summary is a copy; mutating it leaves the cache untouched.
	a.Attempts = 100
	usage["a"] = a
	assert.Equal(t, 3, c.UsageSummary()["a"].Attempts)
}

func TestCache_CapacityEviction(t *testing.T) {
	cfg := testCacheConfig(t.TempDir())
	cfg.MaxEntries = 2
	c := newTestCache(t, cfg)

	c.Put("old", NewCachedSelector("#1", ""))
	time.Sleep(5 * time.Millisecond)
	c.Put("mid", NewCachedSelector("#2", ""))
	time.Sleep(5 * time.Millisecond)

	// Touch "old" so "mid" becomes the least recently used.
	_, ok := c.Get("old")
	require.True(t, ok)
	time.Sleep(5 * time.Millisecond)

	c.Put("new", NewCachedSelector("#3", ""))
	assert.Equal(t, 2, c.Size())

	_, ok = c.Get("mid")
	assert.False(t, ok, "least recently used entry should have been evicted")
	_, ok = c.Get("old")
	assert.True(t, ok)
	_, ok = c.Get("new")
	assert.True(t, ok)

	assert.GreaterOrEqual(t, c.Metrics().Evictions, int64(1))
}

func TestCache_WriteExpiry(t *testing.T) {
	cfg := testCacheConfig(t.TempDir())
	cfg.ExpireAfterWrite = 10 * time.Millisecond
	c := newTestCache(t, cfg)

	c.Put("k", NewCachedSelector("#a", ""))
	time.Sleep(25 * time.Millisecond)

	_, ok := c.Get("k")
	assert.False(t, ok)
	assert.Equal(t, int64(1), c.Metrics().Evictions)
}

func TestCache_EvictExpired(t *testing.T) {
	cfg := testCacheConfig(t.TempDir())
	cfg.ExpireAfterAccess = 10 * time.Millisecond
	c := newTestCache(t, cfg)

	c.Put("k", NewCachedSelector("#a", ""))
	time.Sleep(25 * time.Millisecond)

	c.EvictExpired()
	assert.Zero(t, c.Size())
}

func TestCache_RemoveAndClear(t *testing.T) {
	dir := t.TempDir()
	cfg := testCacheConfig(dir)
	c, err := New(cfg, zap.NewNop())
	require.NoError(t, err)

	c.Put("k1", NewCachedSelector("#1", ""))
	c.Put("k2", NewCachedSelector("#2", ""))

	assert.True(t, c.Remove("k1"))
	assert.False(t, c.Remove("k1"))
	assert.Equal(t, 1, c.Size())

	c.Clear()
	assert.Zero(t, c.Size())
	assert.Zero(t, c.Metrics().Loads)
	require.NoError(t, c.Close(context.Background()))

	// Nothing survives into the next run.
	second := newTestCache(t, cfg)
	assert.Zero(t, second.Size())
}

func TestStore_ClearDeletesDocuments(t *testing.T) {
	dir := t.TempDir()
	st, err := newStore(dir)
	require.NoError(t, err)

	require.NoError(t, st.save(
		map[string]fileEntry{"k": {Selector: "#a"}},
		map[string]*UsageStats{"k": {Attempts: 1}},
	))
	require.FileExists(t, filepath.Join(dir, cacheFileName))
	require.FileExists(t, filepath.Join(dir, metricsFileName))

	require.NoError(t, st.clear())
	assert.NoFileExists(t, filepath.Join(dir, cacheFileName))
	assert.NoFileExists(t, filepath.Join(dir, metricsFileName))

	// Clearing an already empty directory is fine.
	require.NoError(t, st.clear())
}

func TestCache_WarmRestartRoundTrip(t *testing.T) {
	dir := t.TempDir()
	cfg := testCacheConfig(dir)

	first, err := New(cfg, zap.NewNop())
	require.NoError(t, err)
	first.Put("k", NewCachedSelector("#persisted", "fp"))
	for i := 0; i < 4; i++ {
		first.RecordOutcome("k", true)
	}
	first.RecordOutcome("k", false)
	require.NoError(t, first.Close(context.Background()))

	second := newTestCache(t, cfg)
	got, ok := second.Get("k")
	require.True(t, ok)
	assert.Equal(t, "#persisted", got.Selector)
	assert.Equal(t, 5, got.UsageCount)
	// Success history is stored as rate x count and restored arithmetically.
	assert.Equal(t, 4, got.SuccessCount)
}

func TestCache_LoadDropsWriteExpiredEntries(t *testing.T) {
	dir := t.TempDir()
	cfg := testCacheConfig(dir)
	now := time.Now()

	// An entry created beyond the write TTL is dropped at load even though
	// it was accessed moments ago.
	stale := fileEntry{
		Selector:       "#stale",
		CreatedAt:      now.Add(-48 * time.Hour),
		LastUsed:       now,
		LastAccessTime: now.UnixMilli(),
	}
	fresh := fileEntry{
		Selector:       "#fresh",
		CreatedAt:      now,
		LastUsed:       now,
		LastAccessTime: now.UnixMilli(),
	}
	st, err := newStore(dir)
	require.NoError(t, err)
	require.NoError(t, st.save(map[string]fileEntry{"stale": stale, "fresh": fresh}, nil))

	c := newTestCache(t, cfg)
	assert.Equal(t, 1, c.Size())

	_, ok := c.Get("stale")
	assert.False(t, ok)
	_, ok = c.Get("fresh")
	assert.True(t, ok)
}

func TestCache_CorruptDurableFileIsNotFatal(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, cacheFileName), []byte("{not json"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, metricsFileName), []byte("also broken"), 0o644))

	c := newTestCache(t, testCacheConfig(dir))
	assert.Zero(t, c.Size())

	// The cache must still be fully usable.
	c.Put("k", NewCachedSelector("#a", ""))
	_, ok := c.Get("k")
	assert.True(t, ok)
}

func TestCache_CloseFlushesPendingWrites(t *testing.T) {
	dir := t.TempDir()
	c, err := New(testCacheConfig(dir), zap.NewNop())
	require.NoError(t, err)

	c.Put("k", NewCachedSelector("#a", ""))
	require.NoError(t, c.Close(context.Background()))

	data, err := os.ReadFile(filepath.Join(dir, cacheFileName))
	require.NoError(t, err)
	assert.Contains(t, string(data), "#a")
}

func TestMetricsSnapshot_HitRate(t *testing.T) {
	m := &Metrics{}
	assert.Zero(t, m.Snapshot().HitRate())

	m.recordHit()
	m.recordHit()
	m.recordHit()
	m.recordMiss()
	assert.InDelta(t, 0.75, m.Snapshot().HitRate(), 1e-9)
}
