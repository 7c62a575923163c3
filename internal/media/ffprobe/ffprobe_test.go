package ffprobe

import (
	"context"
	"strings"
	"testing"
)

func TestProbeEmptyPath(t *testing.T) {
	p := New("", 0)
	tests := []struct {
		name string
		path string
	}{
		{"empty string", ""},
		{"whitespace only", "   "},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := p.Probe(context.Background(), tc.path); err == nil {
				t.Fatal("expected error for empty path, got nil")
			}
		})
	}
}

func TestParseMediaOutput(t *testing.T) {
	raw := `{
		"format": {"duration": "1200.50", "format_name": "mov,mp4,m4a", "bit_rate": "2500000"},
		"streams": [
			{"codec_type": "video", "codec_name": "h264", "width": 1920, "height": 1080, "r_frame_rate": "30000/1001"},
			{"codec_type": "audio", "codec_name": "aac", "sample_rate": "48000", "channels": 2}
		]
	}`
	info, err := parseMediaOutput([]byte(raw))
	if err != nil {
		t.Fatal(err)
	}
	if info.DurationSeconds != 1200.50 {
		t.Errorf("duration = %v", info.DurationSeconds)
	}
	if info.Width != 1920 || info.Height != 1080 {
		t.Errorf("resolution = %dx%d", info.Width, info.Height)
	}
	if info.FPS < 29.96 || info.FPS > 29.98 {
		t.Errorf("fps = %v", info.FPS)
	}
	if len(info.AudioStreams) != 1 || info.AudioStreams[0].SampleRate != 48000 {
		t.Errorf("audio streams = %+v", info.AudioStreams)
	}
	if !strings.Contains(info.Format, "mp4") {
		t.Errorf("format = %q", info.Format)
	}
}

func TestParseMediaOutputNoVideoStream(t *testing.T) {
	raw := `{"format": {"duration": "10"}, "streams": [{"codec_type": "audio", "channels": 1}]}`
	if _, err := parseMediaOutput([]byte(raw)); err == nil {
		t.Fatal("expected error for audio-only container")
	}
}

func TestParseFrameRate(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{"30/1", 30},
		{"25", 25},
		{"0/0", 0},
		{"", 0},
	}
	for _, tt := range tests {
		if got := parseFrameRate(tt.in); got != tt.want {
			t.Errorf("parseFrameRate(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
