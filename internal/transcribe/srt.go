package transcribe

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"bjjanalyzer/internal/domain"
)

// Entry is one SubRip subtitle block.
type Entry struct {
	Index int
	Start float64
	End   float64
	Text  string
}

// EntriesFromSegments converts transcript segments to subtitle entries.
func EntriesFromSegments(segments []domain.Segment) []Entry {
	entries := make([]Entry, 0, len(segments))
	for _, seg := range segments {
		text := cleanText(seg.Text)
		if text == "" {
			continue
		}
		entries = append(entries, Entry{
			Start: seg.Start,
			End:   seg.End,
			Text:  text,
		})
	}
	return entries
}

// RenderSRT emits the entries as an SRT document: sorted by start time,
// re-indexed from 1, blocks separated by blank lines.
func RenderSRT(entries []Entry) string {
	sorted := make([]Entry, len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Start < sorted[j].Start })

	var b strings.Builder
	for i, e := range sorted {
		fmt.Fprintf(&b, "%d\n%s --> %s\n%s\n\n",
			i+1, formatTimestamp(e.Start), formatTimestamp(e.End), e.Text)
	}
	return b.String()
}

// ParseSRT reads an SRT document, tolerating CRLF line endings.
func ParseSRT(content string) ([]Entry, error) {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	blocks := strings.Split(content, "\n\n")

	var entries []Entry
	for _, block := range blocks {
		lines := strings.Split(strings.TrimSpace(block), "\n")
		if len(lines) < 2 {
			continue
		}
		index, err := strconv.Atoi(strings.TrimSpace(lines[0]))
		if err != nil {
			continue
		}
		start, end, err := parseTimeLine(lines[1])
		if err != nil {
			return nil, fmt.Errorf("entry %d: %w", index, err)
		}
		entries = append(entries, Entry{
			Index: index,
			Start: start,
			End:   end,
			Text:  strings.Join(lines[2:], "\n"),
		})
	}
	return entries, nil
}

// Validate flags common subtitle issues without rejecting the document:
// inverted ranges, empty text, overlapping neighbors.
func Validate(entries []Entry) []string {
	var issues []string
	for i, e := range entries {
		if e.End <= e.Start {
			issues = append(issues, fmt.Sprintf("entry %d: end is not after start", i+1))
		}
		if strings.TrimSpace(e.Text) == "" {
			issues = append(issues, fmt.Sprintf("entry %d: empty text", i+1))
		}
	}
	for i := 0; i+1 < len(entries); i++ {
		if entries[i].End > entries[i+1].Start {
			issues = append(issues, fmt.Sprintf("entries %d and %d: overlapping timestamps", i+1, i+2))
		}
	}
	return issues
}

// cleanText collapses whitespace for single-line subtitle display.
func cleanText(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

// formatTimestamp renders seconds as HH:MM:SS,mmm.
func formatTimestamp(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	millis := int(seconds*1000 + 0.5)
	h := millis / 3600000
	m := (millis % 3600000) / 60000
	s := (millis % 60000) / 1000
	ms := millis % 1000
	return fmt.Sprintf("%02d:%02d:%02d,%03d", h, m, s, ms)
}

func parseTimeLine(line string) (float64, float64, error) {
	parts := strings.Split(line, " --> ")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("bad time line %q", line)
	}
	start, err := parseTimestamp(strings.TrimSpace(parts[0]))
	if err != nil {
		return 0, 0, err
	}
	end, err := parseTimestamp(strings.TrimSpace(parts[1]))
	if err != nil {
		return 0, 0, err
	}
	return start, end, nil
}

func parseTimestamp(ts string) (float64, error) {
	hms, msPart, found := strings.Cut(ts, ",")
	if !found {
		return 0, fmt.Errorf("bad timestamp %q", ts)
	}
	parts := strings.Split(hms, ":")
	if len(parts) != 3 {
		return 0, fmt.Errorf("bad timestamp %q", ts)
	}
	h, err1 := strconv.Atoi(parts[0])
	m, err2 := strconv.Atoi(parts[1])
	s, err3 := strconv.Atoi(parts[2])
	ms, err4 := strconv.Atoi(msPart)
	if err1 != nil || err2 != nil || err3 != nil || err4 != nil {
		return 0, fmt.Errorf("bad timestamp %q", ts)
	}
	return float64(h*3600+m*60+s) + float64(ms)/1000, nil
}
