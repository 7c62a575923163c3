package chapters

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/google/renameio/v2"

	"bjjanalyzer/internal/domain"
)

// WriteChaptersFile renders the full series list as the markdown chapter
// document described in the persisted-artifact contract and writes it
// atomically.
func WriteChaptersFile(path string, parsed domain.ParsedFilename, chapters []domain.ChapterEntry) error {
	if len(chapters) == 0 {
		return fmt.Errorf("no chapters to write")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# %s Chapters\n\n", seriesTitle(parsed))
	b.WriteString("## Series Information\n")
	fmt.Fprintf(&b, "- **Instructor**: %s\n", parsed.Instructor)
	fmt.Fprintf(&b, "- **Series**: %s\n", parsed.SeriesName)
	if parsed.PartNumber > 0 {
		fmt.Fprintf(&b, "- **Volume**: %d\n", parsed.PartNumber)
	}
	fmt.Fprintf(&b, "- **Total Chapters**: %d\n", len(chapters))
	fmt.Fprintf(&b, "- **Duration**: %.1f minutes\n", chapters[len(chapters)-1].Timestamp/60)
	b.WriteString("\n## Chapters\n\n")

	for i, ch := range chapters {
		mins := int(ch.Timestamp) / 60
		secs := int(ch.Timestamp) % 60
		fmt.Fprintf(&b, "%d. **%s** - %d:%02d\n", i+1, ch.Title, mins, secs)
	}

	b.WriteString("\n---\n")
	fmt.Fprintf(&b, "*Generated by BJJ Analyzer - %s*\n",
		time.Now().UTC().Format("2006-01-02 15:04:05 UTC"))

	return renameio.WriteFile(path, []byte(b.String()), 0o644)
}

var chapterLine = regexp.MustCompile(`^\d+\.\s+\*\*(.+?)\*\*\s+-\s+(\d+):(\d{2})`)

// ReadChaptersFile parses a chapter markdown document back into entries.
// Human-authored files in the video directory take priority over the URL
// cache, so the reader accepts anything matching the enumerated-line shape.
func ReadChaptersFile(path string) ([]domain.ChapterEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var chapters []domain.ChapterEntry
	for _, line := range strings.Split(string(data), "\n") {
		m := chapterLine.FindStringSubmatch(strings.TrimSpace(line))
		if m == nil {
			continue
		}
		mins := atoiDefault(m[2])
		secs := atoiDefault(m[3])
		chapters = append(chapters, domain.ChapterEntry{
			Title:     m[1],
			Timestamp: float64(mins*60 + secs),
		})
	}
	return chapters, nil
}

// SeriesFileName builds the "<series_slug>_chapters.txt" file name for a
// parsed filename.
func SeriesFileName(parsed domain.ParsedFilename) string {
	var parts []string
	if parsed.SeriesName != "" {
		parts = append(parts, strings.Fields(parsed.SeriesName)...)
	}
	if parsed.Instructor != "" {
		parts = append(parts, "by")
		parts = append(parts, strings.Fields(parsed.Instructor)...)
	}
	slug := strings.ToLower(strings.Join(parts, "_"))
	slug = strings.ReplaceAll(slug, "-", "_")
	var cleaned strings.Builder
	for _, r := range slug {
		if r == '_' || (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			cleaned.WriteRune(r)
		}
	}
	collapsed := regexp.MustCompile(`_+`).ReplaceAllString(cleaned.String(), "_")
	return strings.Trim(collapsed, "_") + "_chapters.txt"
}

func seriesTitle(parsed domain.ParsedFilename) string {
	var parts []string
	if parsed.SeriesName != "" {
		parts = append(parts, parsed.SeriesName)
	}
	if parsed.Instructor != "" {
		parts = append(parts, "by "+parsed.Instructor)
	}
	if len(parts) == 0 {
		return "BJJ Instructional"
	}
	return strings.Join(parts, " ")
}

func atoiDefault(s string) int {
	n := 0
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0
		}
		n = n*10 + int(r-'0')
	}
	return n
}
