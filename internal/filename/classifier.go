// Package filename maps opaque CamelCase instructional filenames to
// (instructor, series, volume) tuples. A configured model is tried first;
// a regex cascade covers the offline path.
package filename

import (
	"context"
	"encoding/json"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"bjjanalyzer/internal/domain"
	"bjjanalyzer/internal/domain/ports"
)

// Classifier parses filenames. Model may be nil; parsing then goes straight
// to the regex cascade.
type Classifier struct {
	Model  ports.CorrectionModel
	Logger *slog.Logger
}

var videoExtSuffixes = []string{".mp4", ".mkv", ".avi", ".mov", ".wmv"}

// knownInstructors anchors pattern 4 of the cascade; these names appear
// without a "by" separator in the wild.
var knownInstructors = "MikeyMusumeci|GordonRyan|CraigJones|KeenanCornelius"

type pattern struct {
	re *regexp.Regexp
	// order of the three capture groups: true when instructor comes first
	instructorFirst bool
	hasVolume       bool
}

var cascade = []pattern{
	{regexp.MustCompile(`^(.+?)By([A-Z][a-z]+[A-Z][a-z]+)(?:Vol|VOL)?(\d+)(?:New)?$`), false, true},
	{regexp.MustCompile(`^(.+?)by([A-Z][a-z]+[A-Z][a-z]+)(?:Vol|VOL)?(\d+)(?:New)?$`), false, true},
	{regexp.MustCompile(`^(.+?)By([A-Z][a-z]+[A-Z][a-z]+)$`), false, false},
	{regexp.MustCompile(`^(.+?)by([A-Z][a-z]+[A-Z][a-z]+)$`), false, false},
	{regexp.MustCompile(`^(` + knownInstructors + `)(.*?)(?:Vol|VOL)(\d+)(?:New)?$`), true, true},
	{regexp.MustCompile(`^([A-Z][a-z]*[A-Z][a-z]+)(.+?)(?:Vol|VOL)(\d+)(?:New)?$`), true, true},
	{regexp.MustCompile(`^([A-Z][a-z]*[A-Z][a-z]+)(.+?)(\d+)(?:New)?$`), true, true},
	{regexp.MustCompile(`^([A-Z][a-z]*[A-Z][a-z]+)(.+?)$`), true, false},
}

var camelBoundary = regexp.MustCompile(`([a-z])([A-Z])`)

// Parse classifies a filename, model-first when one is configured.
func (c *Classifier) Parse(ctx context.Context, filename string) domain.ParsedFilename {
	payload := Payload(filename)

	if c.Model != nil && c.Model.Available(ctx) {
		if parsed, ok := c.parseWithModel(ctx, payload); ok {
			return parsed
		}
		if c.Logger != nil {
			c.Logger.Warn("filename: model parse failed, using regex fallback",
				slog.String("filename", filename))
		}
	}
	return ParseRegex(payload)
}

// Payload strips a directory prefix joined by the first underscore (e.g.
// "TestFiles2_") and the extension, returning the classifiable remainder.
func Payload(filename string) string {
	name := filename
	for _, ext := range videoExtSuffixes {
		if strings.HasSuffix(strings.ToLower(name), ext) {
			name = name[:len(name)-len(ext)]
			break
		}
	}
	if idx := strings.Index(name, "_"); idx >= 0 {
		name = name[idx+1:]
	}
	return name
}

func (c *Classifier) parseWithModel(ctx context.Context, payload string) (domain.ParsedFilename, bool) {
	messages := []ports.ChatMessage{
		{Role: "system", Content: classifierPrompt},
		{Role: "user", Content: "Parse this BJJ video filename: " + payload},
	}
	raw, err := c.Model.Chat(ctx, messages)
	if err != nil {
		return domain.ParsedFilename{}, false
	}

	cleaned := CleanModelResponse(raw)
	var parsed domain.ParsedFilename
	if err := json.Unmarshal([]byte(cleaned), &parsed); err == nil {
		if parsed.Instructor != "" || parsed.SeriesName != "" {
			return parsed, true
		}
	}
	// Line-oriented "key: value" fallback before giving up on the model.
	if parsed, ok := parseKeyValueResponse(raw); ok {
		return parsed, true
	}
	return domain.ParsedFilename{}, false
}

// CleanModelResponse strips markdown code fences around an embedded JSON
// object.
func CleanModelResponse(content string) string {
	content = strings.TrimSpace(content)
	if strings.HasPrefix(content, "```") {
		if start := strings.Index(content, "\n"); start >= 0 {
			if end := strings.LastIndex(content, "```"); end > start {
				return strings.TrimSpace(content[start+1 : end])
			}
		}
	}
	return strings.TrimSpace(strings.ReplaceAll(content, "```", ""))
}

func parseKeyValueResponse(text string) (domain.ParsedFilename, bool) {
	var parsed domain.ParsedFilename
	for _, line := range strings.Split(text, "\n") {
		key, value, found := strings.Cut(strings.TrimSpace(line), ":")
		if !found {
			continue
		}
		value = strings.Trim(strings.TrimSpace(value), `"'`)
		if value == "" || strings.EqualFold(value, "null") || strings.EqualFold(value, "unknown") {
			continue
		}
		switch strings.ToLower(strings.TrimSpace(key)) {
		case "instructor", "instructor name":
			parsed.Instructor = value
		case "series_name", "series name", "course name":
			parsed.SeriesName = value
		case "part_number", "part number", "volume":
			if n, err := strconv.Atoi(value); err == nil {
				parsed.PartNumber = n
			}
		}
	}
	return parsed, parsed.Instructor != "" || parsed.SeriesName != ""
}

// ParseRegex runs the pattern cascade over a pre-stripped payload; first
// match wins. The final fallback splits on CamelCase boundaries and takes
// the first two tokens as the instructor.
func ParseRegex(payload string) domain.ParsedFilename {
	for _, p := range cascade {
		m := p.re.FindStringSubmatch(payload)
		if m == nil {
			continue
		}
		var parsed domain.ParsedFilename
		var instructorRaw, seriesRaw string
		if p.instructorFirst {
			instructorRaw, seriesRaw = m[1], m[2]
		} else {
			seriesRaw, instructorRaw = m[1], m[2]
		}
		if p.hasVolume && len(m) >= 4 {
			if n, err := strconv.Atoi(m[3]); err == nil {
				parsed.PartNumber = n
			}
		}
		parsed.Instructor = ToReadable(trimTrailingDigits(instructorRaw))
		if seriesRaw == "" {
			parsed.SeriesName = "Unknown"
		} else {
			parsed.SeriesName = ToReadable(seriesRaw)
		}
		return parsed
	}

	// CamelCase fallback: first two tokens = instructor, trailing digit
	// token = volume, rest = series.
	tokens := SplitCamelCase(payload)
	var parsed domain.ParsedFilename
	switch {
	case len(tokens) >= 2:
		parsed.Instructor = strings.Join(tokens[:2], " ")
		rest := tokens[2:]
		if len(rest) > 0 {
			if n, err := strconv.Atoi(rest[len(rest)-1]); err == nil {
				parsed.PartNumber = n
				rest = rest[:len(rest)-1]
			}
		}
		if len(rest) > 0 {
			parsed.SeriesName = strings.Join(rest, " ")
		} else {
			parsed.SeriesName = "Unknown"
		}
	case len(tokens) == 1:
		parsed.Instructor = tokens[0]
		parsed.SeriesName = "Unknown"
	}
	return parsed
}

// SplitCamelCase inserts a boundary between every lowercase→uppercase pair
// and returns the resulting tokens.
func SplitCamelCase(input string) []string {
	spaced := camelBoundary.ReplaceAllString(input, "$1 $2")
	return strings.Fields(spaced)
}

// ToReadable renders a CamelCase chunk as spaced words.
func ToReadable(input string) string {
	return strings.Join(SplitCamelCase(input), " ")
}

func trimTrailingDigits(s string) string {
	return strings.TrimRight(s, "0123456789")
}

const classifierPrompt = `You are an expert at parsing Brazilian Jiu-Jitsu (BJJ) video filenames.

Filenames follow patterns like "JustStandUpbyCraigJones3" or
"ClosedGuardReintroducedbyAdamWardzinski1". Extract the instructor's full
name, the series name, and the part/volume number.

Return a JSON object with this exact structure:
{
  "instructor": "instructor name or null",
  "series_name": "series name or null",
  "part_number": number or null
}

Rules:
1. Use null for fields you cannot determine.
2. Be conservative; only include information you are confident about.
3. Ignore directory prefixes such as "TestFiles_".
4. Return only the JSON object, no additional text.`
