package llm

import (
	"testing"

	"bjjanalyzer/internal/domain"
)

func TestParseCorrectionsJSON(t *testing.T) {
	content := "```json\n" +
		`{"replacements": [{"original": "coast guard", "replacement": "closed guard"}], "notes": "one fix"}` +
		"\n```"
	set := ParseCorrections(content)
	if len(set.Replacements) != 1 {
		t.Fatalf("got %+v", set)
	}
	if set.Replacements[0].Original != "coast guard" || set.Replacements[0].Replacement != "closed guard" {
		t.Fatalf("got %+v", set.Replacements[0])
	}
}

func TestParseCorrectionsArrowLines(t *testing.T) {
	content := `coast guard -> closed guard
half cord -> half guard (misheard term)
# a comment
no separator on this line
same -> same`
	set := ParseCorrections(content)
	if len(set.Replacements) != 2 {
		t.Fatalf("got %d replacements: %+v", len(set.Replacements), set.Replacements)
	}
	if set.Replacements[1].Reason != "misheard term" {
		t.Errorf("reason = %q", set.Replacements[1].Reason)
	}
}

func TestParseCorrectionsNoCorrectionsNeeded(t *testing.T) {
	set := ParseCorrections("No corrections needed")
	if len(set.Replacements) != 0 {
		t.Fatalf("got %+v", set.Replacements)
	}
}

func TestApplyReplacementsLongestFirst(t *testing.T) {
	text := "the half guard pass and the guard pass"
	reps := []domain.Replacement{
		{Original: "guard pass", Replacement: "GP"},
		{Original: "half guard pass", Replacement: "HGP"},
	}
	got := ApplyReplacements(text, reps)
	want := "the HGP and the GP"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestApplyReplacementsIdempotentWhenStable(t *testing.T) {
	reps := []domain.Replacement{
		{Original: "coast guard", Replacement: "closed guard"},
	}
	once := ApplyReplacements("coast guard retention", reps)
	twice := ApplyReplacements(once, reps)
	if once != twice {
		t.Fatalf("second pass changed text: %q vs %q", once, twice)
	}
	if once != "closed guard retention" {
		t.Fatalf("got %q", once)
	}
}

func TestCorrectionRenameScenario(t *testing.T) {
	reps := []domain.Replacement{{Original: "coast guard", Replacement: "closed guard"}}
	if got := ApplyReplacements("coast guard", reps); got != "closed guard" {
		t.Fatalf("got %q", got)
	}
}
