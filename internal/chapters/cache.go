package chapters

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/renameio/v2"

	"bjjanalyzer/internal/domain"
)

// Cache stores one JSON file per series under the chapter output directory.
// Expired entries are lazily deleted on read.
type Cache struct {
	Dir      string
	TTLHours int
	Logger   *slog.Logger
}

// CacheStats summarizes the cache directory.
type CacheStats struct {
	TotalFiles    int `json:"totalFiles"`
	ValidFiles    int `json:"validFiles"`
	ExpiredFiles  int `json:"expiredFiles"`
	TotalChapters int `json:"totalChapters"`
}

// CachedSeries is one entry of List.
type CachedSeries struct {
	CacheKey     string `json:"cacheKey"`
	ProductURL   string `json:"productUrl"`
	ChapterCount int    `json:"chapterCount"`
	Valid        bool   `json:"valid"`
	AgeHours     int64  `json:"ageHours"`
	Timestamp    int64  `json:"timestamp"`
}

func (c *Cache) path(key string) string {
	return filepath.Join(c.Dir, key+".json")
}

func (c *Cache) ttl() time.Duration {
	hours := c.TTLHours
	if hours <= 0 {
		hours = 24
	}
	return time.Duration(hours) * time.Hour
}

// Load returns the cached series when present and inside the TTL window.
// An expired file is removed and reported as a miss.
func (c *Cache) Load(key string) (domain.SeriesChapterCache, bool) {
	path := c.path(key)
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.SeriesChapterCache{}, false
	}
	var cached domain.SeriesChapterCache
	if err := json.Unmarshal(data, &cached); err != nil {
		if c.Logger != nil {
			c.Logger.Warn("chapters: unparseable cache file",
				slog.String("path", path),
				slog.String("error", err.Error()))
		}
		return domain.SeriesChapterCache{}, false
	}
	if c.expired(cached) {
		_ = os.Remove(path)
		return domain.SeriesChapterCache{}, false
	}
	return cached, true
}

// Save writes the full series list atomically.
func (c *Cache) Save(key, productURL string, chapters []domain.ChapterEntry) error {
	if err := os.MkdirAll(c.Dir, 0o755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}
	cached := domain.SeriesChapterCache{
		Timestamp:    time.Now().Unix(),
		CacheKey:     key,
		ProductURL:   productURL,
		ChapterCount: len(chapters),
		Chapters:     chapters,
	}
	data, err := json.MarshalIndent(cached, "", "  ")
	if err != nil {
		return err
	}
	return renameio.WriteFile(c.path(key), data, 0o644)
}

// Invalidate removes one cache entry; reports whether a file was deleted.
func (c *Cache) Invalidate(key string) (bool, error) {
	err := os.Remove(c.path(key))
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// CleanupExpired removes every expired cache file; returns the count.
func (c *Cache) CleanupExpired() (int, error) {
	entries, err := os.ReadDir(c.Dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}
	removed := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		path := filepath.Join(c.Dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		var cached domain.SeriesChapterCache
		if err := json.Unmarshal(data, &cached); err != nil {
			continue
		}
		if c.expired(cached) && os.Remove(path) == nil {
			removed++
		}
	}
	return removed, nil
}

// Stats walks the cache directory.
func (c *Cache) Stats() (CacheStats, error) {
	var stats CacheStats
	entries, err := os.ReadDir(c.Dir)
	if err != nil {
		if os.IsNotExist(err) {
			return stats, nil
		}
		return stats, err
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		stats.TotalFiles++
		data, err := os.ReadFile(filepath.Join(c.Dir, entry.Name()))
		if err != nil {
			continue
		}
		var cached domain.SeriesChapterCache
		if err := json.Unmarshal(data, &cached); err != nil {
			continue
		}
		if c.expired(cached) {
			stats.ExpiredFiles++
		} else {
			stats.ValidFiles++
			stats.TotalChapters += len(cached.Chapters)
		}
	}
	return stats, nil
}

// List returns every cached series, newest first.
func (c *Cache) List() ([]CachedSeries, error) {
	entries, err := os.ReadDir(c.Dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var out []CachedSeries
	now := time.Now().Unix()
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(c.Dir, entry.Name()))
		if err != nil {
			continue
		}
		var cached domain.SeriesChapterCache
		if err := json.Unmarshal(data, &cached); err != nil {
			continue
		}
		out = append(out, CachedSeries{
			CacheKey:     cached.CacheKey,
			ProductURL:   cached.ProductURL,
			ChapterCount: cached.ChapterCount,
			Valid:        !c.expired(cached),
			AgeHours:     (now - cached.Timestamp) / 3600,
			Timestamp:    cached.Timestamp,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp > out[j].Timestamp })
	return out, nil
}

func (c *Cache) expired(cached domain.SeriesChapterCache) bool {
	age := time.Since(time.Unix(cached.Timestamp, 0))
	return age >= c.ttl()
}
