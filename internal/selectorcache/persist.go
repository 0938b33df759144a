// File: internal/selectorcache/persist.go
package selectorcache

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	jsoniter "github.com/json-iterator/go"
)

const (
	cacheFileName   = "selector-cache.json"
	metricsFileName = "cache-metrics.json"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// fileEntry is the serialized form of a cache entry. The success history is
// stored as a rate plus usage count and restored arithmetically on load.
type fileEntry struct {
	Selector       string    `json:"selector"`
	SuccessRate    float64   `json:"successRate"`
	UsageCount     int       `json:"usageCount"`
	LastUsed       time.Time `json:"lastUsed"`
	CreatedAt      time.Time `json:"createdAt"`
	LastAccessTime int64     `json:"lastAccessTime"`
}

func newFileEntry(c *CachedSelector) fileEntry {
	return fileEntry{
		Selector:       c.Selector,
		SuccessRate:    c.SuccessRate(),
		UsageCount:     c.UsageCount,
		LastUsed:       c.LastUsedAt,
		CreatedAt:      c.CreatedAt,
		LastAccessTime: c.LastUsedAt.UnixMilli(),
	}
}

func (e fileEntry) toCachedSelector() *CachedSelector {
	createdAt := e.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	lastUsed := e.LastUsed
	if lastUsed.IsZero() {
		lastUsed = time.UnixMilli(e.LastAccessTime)
	}
	return &CachedSelector{
		Selector:     e.Selector,
		UsageCount:   e.UsageCount,
		SuccessCount: int(math.Round(e.SuccessRate * float64(e.UsageCount))),
		CreatedAt:    createdAt,
		LastUsedAt:   lastUsed,
	}
}

// expired evaluates write and access expiry independently, per the load
// admission rule: either firing drops the entry.
func (e fileEntry) expired(now time.Time, afterWrite, afterAccess time.Duration) bool {
	created := e.CreatedAt
	if created.IsZero() {
		created = now
	}
	if now.Sub(created) > afterWrite {
		return true
	}
	return now.UnixMilli()-e.LastAccessTime > afterAccess.Milliseconds()
}

// store owns the two durable documents in the cache directory. All methods
// report I/O problems as errors for the caller to log; none of them is fatal
// to the cache.
type store struct {
	dir         string
	cacheFile   string
	metricsFile string
}

func newStore(dir string) (*store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory %s: %w", dir, err)
	}
	return &store{
		dir:         dir,
		cacheFile:   filepath.Join(dir, cacheFileName),
		metricsFile: filepath.Join(dir, metricsFileName),
	}, nil
}

// loadEntries reads the entries document. A missing file yields an empty
// map and no error; a corrupt file yields an error and an empty map.
func (s *store) loadEntries() (map[string]fileEntry, error) {
	return loadDocument[fileEntry](s.cacheFile)
}

// loadStats reads the per-key usage metrics document.
func (s *store) loadStats() (map[string]*UsageStats, error) {
	return loadDocument[*UsageStats](s.metricsFile)
}

func loadDocument[T any](path string) (map[string]T, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]T{}, nil
		}
		return map[string]T{}, fmt.Errorf("failed to read %s: %w", path, err)
	}
	out := map[string]T{}
	if err := json.Unmarshal(data, &out); err != nil {
		return map[string]T{}, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return out, nil
}

// save rewrites both documents as whole pretty-printed snapshots. Callers
// serialize calls (single-writer discipline) so the files never interleave.
func (s *store) save(entries map[string]fileEntry, stats map[string]*UsageStats) error {
	if err := writeDocument(s.cacheFile, entries); err != nil {
		return err
	}
	return writeDocument(s.metricsFile, stats)
}

func writeDocument(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// clear removes both documents. Absence is not an error.
func (s *store) clear() error {
	for _, path := range []string{s.cacheFile, s.metricsFile} {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove %s: %w", path, err)
		}
	}
	return nil
}
