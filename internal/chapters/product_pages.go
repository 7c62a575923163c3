// Package chapters turns a known-format product page into an ordered chapter
// list for a series, caches it on disk, and slices it per volume.
package chapters

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"bjjanalyzer/internal/domain"
)

// ProductPages is the user-maintained URL list read from product-pages.txt
// in the video directory.
type ProductPages struct {
	URLs []string
}

// LoadProductPages reads product-pages.txt from a directory. Comment and
// blank lines are ignored; a leading "NN→" line prefix is stripped; only
// http(s) lines survive.
func LoadProductPages(videoDir string) (ProductPages, error) {
	path := filepath.Join(videoDir, "product-pages.txt")
	data, err := os.ReadFile(path)
	if err != nil {
		return ProductPages{}, fmt.Errorf("%w: %s", domain.ErrChapterConfiguration, path)
	}

	var urls []string
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if idx := strings.Index(line, "→"); idx >= 0 {
			line = strings.TrimSpace(line[idx+len("→"):])
		}
		if strings.HasPrefix(line, "http") {
			urls = append(urls, line)
		}
	}
	if len(urls) == 0 {
		return ProductPages{}, fmt.Errorf("%w: no valid urls in %s", domain.ErrChapterConfiguration, path)
	}
	return ProductPages{URLs: urls}, nil
}

// FindMatch scores every URL against the parsed filename and returns the
// best one. A score below 0.5 is accepted but logged as low confidence; a
// zero score is an error.
func (p ProductPages) FindMatch(parsed domain.ParsedFilename, logger *slog.Logger) (string, error) {
	var bestURL string
	bestScore := 0.0
	for _, url := range p.URLs {
		score := matchScore(url, parsed)
		if score > bestScore {
			bestURL = url
			bestScore = score
		}
	}
	if bestScore == 0 {
		return "", fmt.Errorf("%w: instructor %q series %q",
			domain.ErrNoMatch, parsed.Instructor, parsed.SeriesName)
	}
	if bestScore < 0.5 && logger != nil {
		logger.Warn("chapters: low-confidence url match",
			slog.String("url", bestURL),
			slog.Float64("score", bestScore))
	}
	return bestURL, nil
}

// matchScore is 0.6·instructor-overlap + 0.4·series-overlap against the
// URL's product slug words; overlap counts substring matches both ways.
func matchScore(url string, parsed domain.ParsedFilename) float64 {
	slugWords := normalizeWords(extractSlug(url))
	instructorWords := normalizeWords(parsed.Instructor)
	seriesWords := normalizeWords(parsed.SeriesName)

	return 0.6*wordOverlap(slugWords, instructorWords) +
		0.4*wordOverlap(slugWords, seriesWords)
}

func extractSlug(url string) string {
	const marker = "/products/"
	idx := strings.LastIndex(url, marker)
	if idx < 0 {
		return url
	}
	slug := url[idx+len(marker):]
	if q := strings.IndexAny(slug, "?#"); q >= 0 {
		slug = slug[:q]
	}
	return slug
}

func normalizeWords(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return r == '-' || r == '_' || r == ' ' || r == '\t'
	})
}

func wordOverlap(slugWords, searchWords []string) float64 {
	if len(searchWords) == 0 {
		return 0
	}
	matched := 0
	for _, sw := range searchWords {
		for _, gw := range slugWords {
			if gw == sw || strings.Contains(gw, sw) || strings.Contains(sw, gw) {
				matched++
				break
			}
		}
	}
	return float64(matched) / float64(len(searchWords))
}
