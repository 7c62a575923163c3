package filename

import (
	"context"
	"errors"
	"strings"
	"testing"

	"bjjanalyzer/internal/domain"
	"bjjanalyzer/internal/domain/ports"
)

func TestPayloadStripsPrefixAndExtension(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"TestFiles2_ClosedGuardReintroducedbyAdamWardzinski1.mp4", "ClosedGuardReintroducedbyAdamWardzinski1"},
		{"JustStandUpbyCraigJones1.mp4", "JustStandUpbyCraigJones1"},
		{"GordonRyanBackAttacks2.MKV", "GordonRyanBackAttacks2"},
	}
	for _, tt := range tests {
		if got := Payload(tt.in); got != tt.want {
			t.Errorf("Payload(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestParseRegexCascade(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    domain.ParsedFilename
	}{
		{
			"lowercase by with volume",
			"JustStandUpbyCraigJones1",
			domain.ParsedFilename{Instructor: "Craig Jones", SeriesName: "Just Stand Up", PartNumber: 1},
		},
		{
			"uppercase By with volume",
			"BackAttacksByJohnDanaher2",
			domain.ParsedFilename{Instructor: "John Danaher", SeriesName: "Back Attacks", PartNumber: 2},
		},
		{
			"prefix-stripped payload",
			"ClosedGuardReintroducedbyAdamWardzinski1",
			domain.ParsedFilename{Instructor: "Adam Wardzinski", SeriesName: "Closed Guard Reintroduced", PartNumber: 1},
		},
		{
			"by without volume",
			"JustStandUpbyCraigJones",
			domain.ParsedFilename{Instructor: "Craig Jones", SeriesName: "Just Stand Up"},
		},
		{
			"known instructor with Vol",
			"MikeyMusumeciGuardMagicVol4",
			domain.ParsedFilename{Instructor: "Mikey Musumeci", SeriesName: "Guard Magic", PartNumber: 4},
		},
		{
			"trailing New marker",
			"JustStandUpbyCraigJones3New",
			domain.ParsedFilename{Instructor: "Craig Jones", SeriesName: "Just Stand Up", PartNumber: 3},
		},
		{
			"first last series vol",
			"LachlanGilesHalfGuardVol2",
			domain.ParsedFilename{Instructor: "Lachlan Giles", SeriesName: "Half Guard", PartNumber: 2},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseRegex(tt.payload)
			if got != tt.want {
				t.Errorf("ParseRegex(%q) = %+v, want %+v", tt.payload, got, tt.want)
			}
		})
	}
}

func TestSplitCamelCaseRoundTrip(t *testing.T) {
	inputs := []string{"JustStandUp", "BackAttacks", "CraigJones", "ClosedGuardReintroduced"}
	for _, in := range inputs {
		tokens := SplitCamelCase(in)
		rejoined := strings.Join(tokens, "")
		if rejoined != in {
			t.Errorf("SplitCamelCase(%q) tokens %v do not rejoin", in, tokens)
		}
		again := SplitCamelCase(strings.Join(tokens, " "))
		if len(again) != len(tokens) {
			t.Errorf("second split of %q changed token count: %v vs %v", in, again, tokens)
		}
	}
}

func TestCleanModelResponse(t *testing.T) {
	tests := []struct {
		name, in, want string
	}{
		{
			"json code fence",
			"```json\n{\"instructor\": \"Mikey Musumeci\"}\n```",
			`{"instructor": "Mikey Musumeci"}`,
		},
		{
			"bare fence",
			"```\n{\"a\":1}\n```",
			`{"a":1}`,
		},
		{
			"no fence",
			`{"instructor": "Craig Jones"}`,
			`{"instructor": "Craig Jones"}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CleanModelResponse(tt.in); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

type fakeModel struct {
	response  string
	err       error
	available bool
}

func (f fakeModel) Chat(ctx context.Context, messages []ports.ChatMessage) (string, error) {
	return f.response, f.err
}

func (f fakeModel) Corrections(ctx context.Context, transcript string) (domain.CorrectionSet, error) {
	return domain.CorrectionSet{}, nil
}

func (f fakeModel) Available(ctx context.Context) bool { return f.available }

func TestParsePrefersModel(t *testing.T) {
	c := &Classifier{Model: fakeModel{
		available: true,
		response:  "```json\n{\"instructor\": \"Adam Wardzinski\", \"series_name\": \"Closed Guard Reintroduced\", \"part_number\": 1}\n```",
	}}
	got := c.Parse(context.Background(), "TestFiles2_ClosedGuardReintroducedbyAdamWardzinski1.mp4")
	want := domain.ParsedFilename{Instructor: "Adam Wardzinski", SeriesName: "Closed Guard Reintroduced", PartNumber: 1}
	if got != want {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

func TestParseKeyValueFallback(t *testing.T) {
	c := &Classifier{Model: fakeModel{
		available: true,
		response:  "instructor: Craig Jones\nseries_name: Just Stand Up\npart_number: 3",
	}}
	got := c.Parse(context.Background(), "whatever.mp4")
	if got.Instructor != "Craig Jones" || got.SeriesName != "Just Stand Up" || got.PartNumber != 3 {
		t.Fatalf("got %+v", got)
	}
}

func TestParseFallsBackToRegexOnModelError(t *testing.T) {
	c := &Classifier{Model: fakeModel{available: true, err: errors.New("down")}}
	got := c.Parse(context.Background(), "JustStandUpbyCraigJones1.mp4")
	if got.Instructor != "Craig Jones" {
		t.Fatalf("got %+v", got)
	}
}

func TestSeriesKeyDeterministicAndBounded(t *testing.T) {
	p := domain.ParsedFilename{Instructor: "Adam Wardzinski", SeriesName: "Closed Guard Reintroduced"}
	k1 := SeriesKey(p)
	k2 := SeriesKey(p)
	if k1 != k2 {
		t.Fatalf("keys differ: %q vs %q", k1, k2)
	}
	// prefix (≤30) + "_" + 8 hex digits
	if len(k1) > 39 {
		t.Fatalf("key too long: %q (%d)", k1, len(k1))
	}
	if !strings.Contains(k1, "adam") {
		t.Fatalf("key lost instructor: %q", k1)
	}

	other := SeriesKey(domain.ParsedFilename{Instructor: "Craig Jones", SeriesName: "Just Stand Up"})
	if other == k1 {
		t.Fatal("different series share a key")
	}
}
