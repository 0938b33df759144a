// File: internal/selectorcache/entry.go
package selectorcache

import (
	"sync/atomic"
	"time"
)

// CachedSelector is the last-known-good locator for a logical target plus
// its usage history. Entries are mutated in place under the cache lock; an
// outcome report is a single atomic counters-plus-timestamp update.
type CachedSelector struct {
	Selector string
	// Fingerprint is an opaque structural signature of the element the
	// selector last matched, created by the caller and used to detect drift.
	Fingerprint  string
	UsageCount   int
	SuccessCount int
	CreatedAt    time.Time
	LastUsedAt   time.Time
}

// NewCachedSelector creates a fresh entry for a selector that just resolved.
func NewCachedSelector(selector, fingerprint string) *CachedSelector {
	now := time.Now()
	return &CachedSelector{
		Selector:    selector,
		Fingerprint: fingerprint,
		CreatedAt:   now,
		LastUsedAt:  now,
	}
}

// SuccessRate is successes over usages, zero when unused.
func (c *CachedSelector) SuccessRate() float64 {
	if c.UsageCount == 0 {
		return 0
	}
	return float64(c.SuccessCount) / float64(c.UsageCount)
}

func (c *CachedSelector) recordUsage(success bool, now time.Time) {
	c.UsageCount++
	if success {
		c.SuccessCount++
	}
	c.LastUsedAt = now
}

func (c *CachedSelector) clone() *CachedSelector {
	cp := *c
	return &cp
}

// expired evaluates both expiry policies independently against now.
func (c *CachedSelector) expired(now time.Time, afterWrite, afterAccess time.Duration) bool {
	if now.Sub(c.CreatedAt) > afterWrite {
		return true
	}
	return now.Sub(c.LastUsedAt) > afterAccess
}

// Metrics holds process-lifetime cache counters. Monotonic; reset only by
// Clear.
type Metrics struct {
	hits      atomic.Int64
	misses    atomic.Int64
	loads     atomic.Int64
	evictions atomic.Int64
}

func (m *Metrics) recordHit()      { m.hits.Add(1) }
func (m *Metrics) recordMiss()     { m.misses.Add(1) }
func (m *Metrics) recordLoad()     { m.loads.Add(1) }
func (m *Metrics) recordEviction() { m.evictions.Add(1) }

func (m *Metrics) reset() {
	m.hits.Store(0)
	m.misses.Store(0)
	m.loads.Store(0)
	m.evictions.Store(0)
}

// MetricsSnapshot is a point-in-time copy of the counters.
type MetricsSnapshot struct {
	Hits      int64 `json:"hits"`
	Misses    int64 `json:"misses"`
	Loads     int64 `json:"loads"`
	Evictions int64 `json:"evictions"`
}

// Snapshot copies the current counter values.
func (m *Metrics) Snapshot() MetricsSnapshot {
	return MetricsSnapshot{
		Hits:      m.hits.Load(),
		Misses:    m.misses.Load(),
		Loads:     m.loads.Load(),
		Evictions: m.evictions.Load(),
	}
}

// HitRate is hits over lookups, zero before the first lookup.
func (s MetricsSnapshot) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// UsageStats is the per-key usage record persisted alongside the entries
// document. It survives entry eviction so a healed selector's track record
// is not lost between runs.
type UsageStats struct {
	Attempts       int       `json:"attempts"`
	Successes      int       `json:"successes"`
	LastUsed       time.Time `json:"lastUsed"`
	LastAccessTime int64     `json:"lastAccessTime"`
}

func (u *UsageStats) recordUsage(success bool, now time.Time) {
	u.Attempts++
	if success {
		u.Successes++
	}
	u.LastUsed = now
	u.LastAccessTime = now.UnixMilli()
}

func (u *UsageStats) expired(now time.Time, afterAccess time.Duration) bool {
	return now.UnixMilli()-u.LastAccessTime > afterAccess.Milliseconds()
}

// SuccessRate is successes over attempts, zero when unused.
func (u *UsageStats) SuccessRate() float64 {
	if u.Attempts == 0 {
		return 0
	}
	return float64(u.Successes) / float64(u.Attempts)
}
