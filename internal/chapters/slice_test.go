package chapters

import (
	"testing"

	"bjjanalyzer/internal/domain"
)

func series(timestamps ...float64) []domain.ChapterEntry {
	out := make([]domain.ChapterEntry, 0, len(timestamps))
	for i, ts := range timestamps {
		out = append(out, domain.ChapterEntry{
			Title:     "Chapter " + string(rune('A'+i)),
			Timestamp: ts,
		})
	}
	return out
}

func TestBoundariesSingleVolume(t *testing.T) {
	b := Boundaries(series(0, 300, 700), 1200)
	if len(b) != 1 {
		t.Fatalf("boundaries = %+v", b)
	}
	if b[0].Volume != 1 || b[0].StartTime != 0 || b[0].EndTime != 1200 {
		t.Fatalf("boundary = %+v", b[0])
	}
}

func TestBoundariesMultiVolume(t *testing.T) {
	// Chapters run to 2100 s while one video is 1200 s -> 2 volumes.
	b := Boundaries(series(0, 300, 700, 1300, 2100), 1200)
	if len(b) != 2 {
		t.Fatalf("boundaries = %+v", b)
	}
	if b[0].StartTime != 0 || b[0].EndTime != 1200 {
		t.Fatalf("vol 1 = %+v", b[0])
	}
	if b[1].StartTime != 1200 || b[1].EndTime != 2100 {
		t.Fatalf("vol 2 = %+v", b[1])
	}
}

func TestSliceForVolumeScenario(t *testing.T) {
	all := series(0, 300, 700, 1300, 2100)

	vol1 := SliceForVolume(all, 1200, 1)
	if len(vol1) != 3 {
		t.Fatalf("vol 1 = %+v", vol1)
	}
	if vol1[0].Timestamp != 0 || vol1[1].Timestamp != 300 || vol1[2].Timestamp != 700 {
		t.Fatalf("vol 1 timestamps = %+v", vol1)
	}

	vol2 := SliceForVolume(all, 1200, 2)
	if len(vol2) != 2 {
		t.Fatalf("vol 2 = %+v", vol2)
	}
	if vol2[0].Timestamp != 100 || vol2[1].Timestamp != 900 {
		t.Fatalf("vol 2 rebased timestamps = %+v", vol2)
	}
}

func TestSliceForVolumeZeroMeansFirst(t *testing.T) {
	all := series(0, 300)
	got := SliceForVolume(all, 1200, 0)
	if len(got) != 2 {
		t.Fatalf("got %+v", got)
	}
}

func TestSliceForVolumeOutOfRangeFiltersByDuration(t *testing.T) {
	all := series(0, 300, 2100)
	got := SliceForVolume(all, 1200, 9)
	for _, ch := range got {
		if ch.Timestamp > 1200 {
			t.Fatalf("entry beyond duration: %+v", ch)
		}
	}
}

func TestValidateAgainstDuration(t *testing.T) {
	chapters := []domain.ChapterEntry{
		{Title: "Keep", Timestamp: 10},
		{Title: "Near Duplicate", Timestamp: 12}, // within 5 s of Keep
		{Title: "ab", Timestamp: 50},             // title too short
		{Title: "Too Late", Timestamp: 5000},     // beyond duration
		{Title: "Negative", Timestamp: -3},
		{Title: "Second", Timestamp: 100},
	}
	got := ValidateAgainstDuration(chapters, 1200)
	if len(got) != 2 {
		t.Fatalf("got %+v", got)
	}
	if got[0].Title != "Keep" || got[1].Title != "Second" {
		t.Fatalf("got %+v", got)
	}
}
