package chapters

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"bjjanalyzer/internal/domain"
	"bjjanalyzer/internal/domain/ports"
	"bjjanalyzer/internal/filename"
	"bjjanalyzer/internal/metrics"
)

// Extractor produces the per-volume chapter list for a video, sharing one
// fetched series list across all volumes through the on-disk cache.
type Extractor struct {
	Fetcher ports.PageFetcher
	Cache   *Cache
	Logger  *slog.Logger
}

// Detect returns validated chapters for the given video, local to the
// video's own timeline. Resolution order: human-authored chapter file in
// the video's directory, then the series JSON cache, then a fresh fetch.
func (e *Extractor) Detect(ctx context.Context, v domain.Video, durationSeconds float64, parsed domain.ParsedFilename) ([]domain.ChapterEntry, error) {
	series, _, err := e.seriesChapters(ctx, v, parsed)
	if err != nil {
		return nil, err
	}
	if len(series) == 0 {
		return nil, nil
	}

	sliced := SliceForVolume(series, durationSeconds, parsed.PartNumber)
	return ValidateAgainstDuration(sliced, durationSeconds), nil
}

// seriesChapters resolves the full series-cumulative list.
func (e *Extractor) seriesChapters(ctx context.Context, v domain.Video, parsed domain.ParsedFilename) ([]domain.ChapterEntry, string, error) {
	// A chapter file next to the videos is a human-authored override and
	// wins over the URL cache.
	filePath := filepath.Join(v.Dir, SeriesFileName(parsed))
	if _, err := os.Stat(filePath); err == nil {
		chapters, err := ReadChaptersFile(filePath)
		if err == nil && len(chapters) > 0 {
			e.log().Debug("chapters: using series file",
				slog.String("path", filePath), slog.Int("count", len(chapters)))
			return chapters, "", nil
		}
	}

	key := filename.SeriesKey(parsed)
	if e.Cache != nil {
		if cached, ok := e.Cache.Load(key); ok {
			metrics.ChapterCacheHits.Inc()
			return cached.Chapters, cached.ProductURL, nil
		}
		metrics.ChapterCacheMisses.Inc()
	}

	pages, err := LoadProductPages(v.Dir)
	if err != nil {
		return nil, "", err
	}
	url, err := pages.FindMatch(parsed, e.log())
	if err != nil {
		return nil, "", err
	}

	body, err := e.Fetcher.Get(ctx, url)
	if err != nil {
		return nil, "", err
	}

	series := ParsePage(body)
	if len(series) == 0 {
		return nil, url, nil
	}

	if err := WriteChaptersFile(filePath, parsed, series); err != nil {
		e.log().Warn("chapters: write series file failed",
			slog.String("path", filePath), slog.String("error", err.Error()))
	}
	if e.Cache != nil {
		if err := e.Cache.Save(key, url, series); err != nil {
			e.log().Warn("chapters: cache save failed",
				slog.String("key", key), slog.String("error", err.Error()))
		}
	}
	e.log().Info("chapters: extracted series list",
		slog.String("url", url), slog.Int("count", len(series)))
	return series, url, nil
}

// Refresh forces a re-fetch for a video's series, overwriting the chapter
// file and cache entry.
func (e *Extractor) Refresh(ctx context.Context, v domain.Video, parsed domain.ParsedFilename) ([]domain.ChapterEntry, error) {
	key := filename.SeriesKey(parsed)
	if e.Cache != nil {
		if _, err := e.Cache.Invalidate(key); err != nil {
			return nil, err
		}
	}
	filePath := filepath.Join(v.Dir, SeriesFileName(parsed))
	if err := os.Remove(filePath); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("remove series file: %w", err)
	}
	series, _, err := e.seriesChapters(ctx, v, parsed)
	return series, err
}

func (e *Extractor) log() *slog.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return slog.Default()
}
