package llm

import (
	"encoding/json"
	"sort"
	"strings"

	"bjjanalyzer/internal/domain"
)

// ParseCorrections reads a model response as a CorrectionSet. JSON is tried
// first (code fences tolerated); the fallback reads "original -> replacement"
// lines with a few separator variants.
func ParseCorrections(content string) domain.CorrectionSet {
	cleaned := stripFences(content)

	var set domain.CorrectionSet
	if err := json.Unmarshal([]byte(cleaned), &set); err == nil && set.Replacements != nil {
		return set
	}

	separators := []string{" -> ", " → ", " => "}
	for _, line := range strings.Split(cleaned, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "//") {
			continue
		}
		for _, sep := range separators {
			idx := strings.Index(line, sep)
			if idx < 0 {
				continue
			}
			original := strings.Trim(strings.TrimSpace(line[:idx]), `"`)
			rest := strings.TrimSpace(line[idx+len(sep):])

			replacement, reason := rest, ""
			if paren := strings.Index(rest, "("); paren >= 0 {
				replacement = strings.TrimSpace(rest[:paren])
				reason = strings.TrimSpace(strings.TrimSuffix(rest[paren+1:], ")"))
			}
			replacement = strings.Trim(replacement, `"`)

			if original != "" && replacement != "" && original != replacement {
				set.Replacements = append(set.Replacements, domain.Replacement{
					Original:    original,
					Replacement: replacement,
					Reason:      reason,
				})
			}
			break
		}
	}
	return set
}

// ApplyReplacements applies the pairs in descending length of the original
// text, so a shorter pair cannot shadow a longer one it is contained in.
func ApplyReplacements(text string, replacements []domain.Replacement) string {
	sorted := make([]domain.Replacement, len(replacements))
	copy(sorted, replacements)
	sort.SliceStable(sorted, func(i, j int) bool {
		return len(sorted[i].Original) > len(sorted[j].Original)
	})
	for _, r := range sorted {
		text = strings.ReplaceAll(text, r.Original, r.Replacement)
	}
	return text
}

func stripFences(content string) string {
	content = strings.TrimSpace(content)
	if strings.HasPrefix(content, "```") {
		if start := strings.Index(content, "\n"); start >= 0 {
			if end := strings.LastIndex(content, "```"); end > start {
				return strings.TrimSpace(content[start+1 : end])
			}
		}
	}
	return content
}

const correctionPrompt = `You are an expert Brazilian Jiu-Jitsu (BJJ) instructor identifying transcription errors in BJJ instructional videos.

Return ONLY the corrections needed, one per line, in this exact format:

original text -> corrected text

Common transcription errors to look for:
- "coast guard" -> "closed guard"
- "half cord" -> "half guard"
- "x cord" -> "x guard"
- "de la hiva" -> "de la Riva"
- "berimbo" -> "berimbolo"
- "guilatine" -> "guillotine"
- "arm bar" -> "armbar"

Rules:
1. Only return lines that need correction.
2. Do NOT return the full transcription.
3. Do NOT add commentary.
4. If nothing needs correction, return: No corrections needed`
