package filename

import (
	"fmt"
	"hash/fnv"
	"strings"

	"bjjanalyzer/internal/domain"
)

// SeriesKey derives the deterministic cache key for a series: the first
// instructor chunk plus up to three series chunks, lowercased and
// underscore-joined, truncated to 30 runes, with an 8-hex-digit hash of the
// full combined string appended for disambiguation.
func SeriesKey(parsed domain.ParsedFilename) string {
	instructorPart := strings.ToLower(strings.Join(strings.Fields(parsed.Instructor), "_"))
	seriesWords := strings.Fields(parsed.SeriesName)
	if len(seriesWords) > 3 {
		seriesWords = seriesWords[:3]
	}
	seriesPart := strings.ToLower(strings.Join(seriesWords, "_"))

	combined := instructorPart + "_" + seriesPart
	h := fnv.New64a()
	h.Write([]byte(combined))

	prefix := combined
	if runes := []rune(prefix); len(runes) > 30 {
		prefix = string(runes[:30])
	}
	prefix = strings.ReplaceAll(prefix, " ", "_")
	return fmt.Sprintf("%s_%08x", prefix, uint32(h.Sum64()))
}
