package chapters

import (
	"regexp"
	"strconv"
	"strings"
)

var timePatterns = []*regexp.Regexp{
	regexp.MustCompile(`\d+:\d+`),
	regexp.MustCompile(`\d+\.\d+`),
	regexp.MustCompile(`\d+min`),
	regexp.MustCompile(`\d+sec`),
	regexp.MustCompile(`\d+\s*-\s*\d+`),
}

var headerTitles = map[string]bool{
	"CHAPTER TITLE": true,
	"TITLE":         true,
	"NAME":          true,
}

var headerTimes = map[string]bool{
	"START TIME": true,
	"TIME":       true,
	"TIMESTAMP":  true,
}

// isChapterRow rejects table header rows and rows whose time cell carries
// no recognizable time pattern.
func isChapterRow(title, timeText string) bool {
	if title == "" || timeText == "" {
		return false
	}
	if headerTitles[strings.ToUpper(title)] || headerTimes[strings.ToUpper(timeText)] {
		return false
	}
	for _, re := range timePatterns {
		if re.MatchString(timeText) {
			return true
		}
	}
	return false
}

// parseTimestamp converts a chapter time string to seconds. A "."-separated
// form is normalized to ":". Three-part values with a first field under 60
// are read as minutes:seconds:frames (frames discarded); otherwise as
// hours:minutes:seconds.
func parseTimestamp(s string) (float64, bool) {
	normalized := strings.ReplaceAll(strings.TrimSpace(s), ".", ":")
	parts := strings.Split(normalized, ":")
	switch len(parts) {
	case 2:
		mins, err1 := strconv.Atoi(strings.TrimSpace(parts[0]))
		secs, err2 := strconv.Atoi(strings.TrimSpace(parts[1]))
		if err1 != nil || err2 != nil {
			return 0, false
		}
		return float64(mins*60 + secs), true
	case 3:
		a, err1 := strconv.Atoi(strings.TrimSpace(parts[0]))
		b, err2 := strconv.Atoi(strings.TrimSpace(parts[1]))
		c, err3 := strconv.Atoi(strings.TrimSpace(parts[2]))
		if err1 != nil || err2 != nil || err3 != nil {
			return 0, false
		}
		if a < 60 {
			// MM:SS:FF — frames dropped.
			return float64(a*60 + b), true
		}
		return float64(a*3600 + b*60 + c), true
	default:
		return 0, false
	}
}

// parseTimeRange extracts the start time from a range cell: "A - B" takes
// A, "A +" takes A, a bare value is taken as-is.
func parseTimeRange(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if strings.HasSuffix(s, "+") {
		return parseTimestamp(strings.TrimSpace(strings.TrimSuffix(s, "+")))
	}
	if before, _, found := strings.Cut(s, " - "); found {
		return parseTimestamp(strings.TrimSpace(before))
	}
	return parseTimestamp(s)
}

// cleanTitle trims leading/trailing dashes, em-dashes, pipes and colons.
func cleanTitle(title string) string {
	return strings.TrimSpace(strings.Trim(strings.TrimSpace(title), "-–|:"))
}

var jsMarkers = []string{
	"GMT", "document.cookie", "JSON.stringify", "function", "var ",
	"const ", "let ", "window.", "};",
}

var htmlMarkers = []string{"<div", "<span", "<script", "</div>", "</span>"}

// validTitle rejects chapter titles carrying script or markup residue, or
// outside the 3–200 character window.
func validTitle(title string) bool {
	if len(title) < 3 || len(title) > 200 {
		return false
	}
	for _, marker := range jsMarkers {
		if strings.Contains(title, marker) {
			return false
		}
	}
	for _, marker := range htmlMarkers {
		if strings.Contains(title, marker) {
			return false
		}
	}
	return true
}
