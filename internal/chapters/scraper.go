package chapters

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/net/html"

	"bjjanalyzer/internal/domain"
)

// ParsePage extracts the full-series chapter list from a product page.
// Three strategies run in order — the accordion fast path, the product-tabs
// list, generic tables — followed by free-text extraction; each either
// yields a validated result or nothing, and results are never mixed.
func ParsePage(body string) []domain.ChapterEntry {
	doc, err := html.Parse(strings.NewReader(body))
	if err == nil {
		if chapters := extractFromAccordion(doc); validateSet(chapters) {
			return chapters
		}
		if chapters := extractFromProductTabs(doc); validateSet(chapters) {
			return chapters
		}
		if chapters := extractFromTables(doc); validateSet(chapters) {
			return chapters
		}
	}
	if chapters := extractFromText(body); validateSet(chapters) {
		return chapters
	}
	return nil
}

// extractFromAccordion reads the known page convention: a
// div.product__course-content-accordion with alternating
// h3.product__course-title headers and div.product__course-content bodies,
// each body carrying a two-column table of (title, time range).
//
// Row timestamps on the page are local to their volume; a running base
// offset (the previous volumes' spans) is added so the returned list is
// series-cumulative and the boundary slicer stays correct for multi-volume
// series.
func extractFromAccordion(doc *html.Node) []domain.ChapterEntry {
	container := findFirst(doc, byClass("div", "product__course-content-accordion"))
	if container == nil {
		return nil
	}

	headers := findAll(container, byClass("h3", "product__course-title"))
	contents := findAll(container, byClass("div", "product__course-content"))

	var all []domain.ChapterEntry
	base := 0.0
	for i, content := range contents {
		volumeTitle := ""
		if i < len(headers) {
			volumeTitle = strings.TrimSpace(textContent(headers[i]))
		}
		if volumeTitle == "" {
			volumeTitle = "Volume " + strconv.Itoa(i+1)
		}

		span := 0.0
		for _, row := range findAll(content, byTag("tr")) {
			cells := findAll(row, byTag("td"))
			if len(cells) < 2 {
				continue
			}
			title := strings.TrimSpace(textContent(cells[0]))
			timeText := strings.TrimSpace(textContent(cells[1]))
			if !isChapterRow(title, timeText) {
				continue
			}
			seconds, ok := parseTimeRange(timeText)
			if !ok {
				continue
			}
			if seconds > span {
				span = seconds
			}
			all = append(all, domain.ChapterEntry{
				Title:     cleanTitle(volumeTitle + " - " + title),
				Timestamp: base + seconds,
			})
		}
		base += span
	}

	sortByTimestamp(all)
	return all
}

// extractFromProductTabs reads div.product-tabs li entries of the form
// "Title - M:SS" or "M:SS - Title".
func extractFromProductTabs(doc *html.Node) []domain.ChapterEntry {
	var all []domain.ChapterEntry
	for _, section := range findAll(doc, byClass("div", "product-tabs")) {
		for _, item := range findAll(section, byTag("li")) {
			text := strings.Join(strings.Fields(textContent(item)), " ")
			if entry, ok := parseChapterText(text); ok {
				all = append(all, entry)
			}
		}
	}
	sortByTimestamp(all)
	return dedupeNearby(all)
}

// extractFromTables is the generic fallback: every two-cell table row in
// the document.
func extractFromTables(doc *html.Node) []domain.ChapterEntry {
	var all []domain.ChapterEntry
	for _, row := range findAll(doc, byTag("tr")) {
		cells := findAll(row, byTag("td"))
		if len(cells) < 2 {
			continue
		}
		title := strings.TrimSpace(textContent(cells[0]))
		timeText := strings.TrimSpace(textContent(cells[1]))
		if !isChapterRow(title, timeText) {
			continue
		}
		seconds, ok := parseTimestamp(firstTimeToken(timeText))
		if !ok {
			continue
		}
		all = append(all, domain.ChapterEntry{
			Title:     cleanTitle(title),
			Timestamp: seconds,
		})
	}
	sortByTimestamp(all)
	return dedupeNearby(all)
}

var textChapterPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(\d{1,2}:\d{2})\s*[-–]\s*([^\n<>]{3,200})`),
	regexp.MustCompile(`([^\n<>]{3,200}?)\s*[-–]\s*(\d{1,2}:\d{2})`),
}

// extractFromText is the last resort: MM:SS patterns anywhere in the raw
// page text.
func extractFromText(body string) []domain.ChapterEntry {
	var all []domain.ChapterEntry
	for _, re := range textChapterPatterns {
		for _, m := range re.FindAllStringSubmatch(body, -1) {
			timeText, title := m[1], m[2]
			if !strings.Contains(timeText, ":") {
				timeText, title = title, timeText
			}
			seconds, ok := parseTimestamp(timeText)
			if !ok {
				continue
			}
			title = cleanTitle(title)
			if !validTitle(title) {
				continue
			}
			all = append(all, domain.ChapterEntry{Title: title, Timestamp: seconds})
		}
	}
	sortByTimestamp(all)
	return dedupeNearby(all)
}

var chapterTextLead = regexp.MustCompile(`^(\d{1,2}:\d{2})\s*[-–]?\s*(.+)$`)
var chapterTextTrail = regexp.MustCompile(`^(.+?)\s*[-–]\s*(\d{1,2}:\d{2})$`)

func parseChapterText(text string) (domain.ChapterEntry, bool) {
	text = strings.TrimSpace(text)
	var timeText, title string
	if m := chapterTextLead.FindStringSubmatch(text); m != nil {
		timeText, title = m[1], m[2]
	} else if m := chapterTextTrail.FindStringSubmatch(text); m != nil {
		title, timeText = m[1], m[2]
	} else {
		return domain.ChapterEntry{}, false
	}
	seconds, ok := parseTimestamp(timeText)
	if !ok {
		return domain.ChapterEntry{}, false
	}
	title = cleanTitle(title)
	if !validTitle(title) {
		return domain.ChapterEntry{}, false
	}
	return domain.ChapterEntry{Title: title, Timestamp: seconds}, true
}

var timeToken = regexp.MustCompile(`\d+[:.]\d+(?:[:.]\d+)?`)

func firstTimeToken(s string) string {
	if tok := timeToken.FindString(s); tok != "" {
		return tok
	}
	return s
}

// validateSet accepts a candidate list only when every entry survives the
// title and timestamp checks.
func validateSet(chapters []domain.ChapterEntry) bool {
	if len(chapters) == 0 {
		return false
	}
	for _, ch := range chapters {
		if !validTitle(ch.Title) {
			return false
		}
		if ch.Timestamp < 0 || ch.Timestamp > domain.MaxChapterSeconds {
			return false
		}
	}
	return true
}

func sortByTimestamp(chapters []domain.ChapterEntry) {
	sort.SliceStable(chapters, func(i, j int) bool {
		return chapters[i].Timestamp < chapters[j].Timestamp
	})
}

// dedupeNearby collapses entries within 5 seconds of an already-kept one.
func dedupeNearby(chapters []domain.ChapterEntry) []domain.ChapterEntry {
	var out []domain.ChapterEntry
	for _, ch := range chapters {
		dup := false
		for _, kept := range out {
			if abs(kept.Timestamp-ch.Timestamp) < 5 {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, ch)
		}
	}
	return out
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}

// --- minimal HTML query helpers -------------------------------------------

type nodePredicate func(*html.Node) bool

func byTag(tag string) nodePredicate {
	return func(n *html.Node) bool {
		return n.Type == html.ElementNode && n.Data == tag
	}
}

func byClass(tag, class string) nodePredicate {
	return func(n *html.Node) bool {
		if n.Type != html.ElementNode || n.Data != tag {
			return false
		}
		for _, attr := range n.Attr {
			if attr.Key == "class" {
				for _, c := range strings.Fields(attr.Val) {
					if c == class {
						return true
					}
				}
			}
		}
		return false
	}
}

func findFirst(root *html.Node, match nodePredicate) *html.Node {
	if match(root) {
		return root
	}
	for c := root.FirstChild; c != nil; c = c.NextSibling {
		if found := findFirst(c, match); found != nil {
			return found
		}
	}
	return nil
}

func findAll(root *html.Node, match nodePredicate) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if match(n) {
			out = append(out, n)
			// Do not descend into a matched node; nested matches of the
			// same predicate would double-count table rows.
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return out
}

func textContent(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
			b.WriteString(" ")
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(b.String()), " ")
}
