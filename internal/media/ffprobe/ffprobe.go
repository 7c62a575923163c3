// Package ffprobe shells out to ffprobe for container metadata.
package ffprobe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"bjjanalyzer/internal/domain"
)

const defaultTimeout = 30 * time.Second

// Prober wraps the ffprobe binary.
type Prober struct {
	binary  string
	timeout time.Duration
}

// New builds a prober; an empty binary falls back to "ffprobe" on PATH.
func New(binary string, timeout time.Duration) *Prober {
	bin := strings.TrimSpace(binary)
	if bin == "" {
		bin = "ffprobe"
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Prober{binary: bin, timeout: timeout}
}

// Probe inspects a video file.
func (p *Prober) Probe(ctx context.Context, filePath string) (domain.MediaInfo, error) {
	path := strings.TrimSpace(filePath)
	if path == "" {
		return domain.MediaInfo{}, errors.New("file path is required")
	}

	out, err := p.run(ctx, []string{
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	})
	if err != nil {
		return domain.MediaInfo{}, fmt.Errorf("%w: %v", domain.ErrProbeFailed, err)
	}

	info, err := parseMediaOutput(out)
	if err != nil {
		return domain.MediaInfo{}, fmt.Errorf("%w: %v", domain.ErrProbeFailed, err)
	}
	info.Path = path
	if st, err := os.Stat(path); err == nil {
		info.FileSize = st.Size()
	}
	return info, nil
}

// ProbeAudio inspects a WAV (or any audio) file, used to rebuild AudioInfo
// for an already-extracted artifact without re-extracting.
func (p *Prober) ProbeAudio(ctx context.Context, filePath string) (domain.AudioInfo, error) {
	path := strings.TrimSpace(filePath)
	if path == "" {
		return domain.AudioInfo{}, errors.New("file path is required")
	}

	out, err := p.run(ctx, []string{
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		"-select_streams", "a:0",
		path,
	})
	if err != nil {
		return domain.AudioInfo{}, fmt.Errorf("%w: %v", domain.ErrProbeFailed, err)
	}

	var raw probeOutput
	if err := json.Unmarshal(out, &raw); err != nil {
		return domain.AudioInfo{}, fmt.Errorf("%w: %v", domain.ErrProbeFailed, err)
	}
	if len(raw.Streams) == 0 {
		return domain.AudioInfo{}, fmt.Errorf("%w: no audio stream in %s", domain.ErrProbeFailed, path)
	}
	stream := raw.Streams[0]

	info := domain.AudioInfo{
		Path:            path,
		DurationSeconds: parseFloat(raw.Format.Duration),
		SampleRate:      int(parseFloat(stream.SampleRate)),
		Channels:        stream.Channels,
		Format:          raw.Format.FormatName,
		Bitrate:         int(parseFloat(raw.Format.BitRate)),
	}
	if st, err := os.Stat(path); err == nil {
		info.FileSize = st.Size()
	}
	return info, nil
}

func (p *Prober) run(ctx context.Context, args []string) ([]byte, error) {
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}
	cmd := exec.CommandContext(ctx, p.binary, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	// ffprobe can exit non-zero for slightly damaged files while still
	// printing usable metadata; keep stdout when it parses.
	if runErr != nil && stdout.Len() == 0 {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			return nil, runErr
		}
		return nil, fmt.Errorf("%v: %s", runErr, msg)
	}
	return stdout.Bytes(), nil
}

type probeOutput struct {
	Format struct {
		Duration   string `json:"duration"`
		FormatName string `json:"format_name"`
		BitRate    string `json:"bit_rate"`
	} `json:"format"`
	Streams []probeStream `json:"streams"`
}

type probeStream struct {
	CodecType  string `json:"codec_type"`
	CodecName  string `json:"codec_name"`
	Width      int    `json:"width"`
	Height     int    `json:"height"`
	RFrameRate string `json:"r_frame_rate"`
	SampleRate string `json:"sample_rate"`
	Channels   int    `json:"channels"`
}

func parseMediaOutput(data []byte) (domain.MediaInfo, error) {
	var raw probeOutput
	if err := json.Unmarshal(data, &raw); err != nil {
		return domain.MediaInfo{}, err
	}

	info := domain.MediaInfo{
		DurationSeconds: parseFloat(raw.Format.Duration),
		Format:          raw.Format.FormatName,
	}

	videoFound := false
	audioIndex := 0
	for _, stream := range raw.Streams {
		switch stream.CodecType {
		case "video":
			if !videoFound {
				info.Width = stream.Width
				info.Height = stream.Height
				info.FPS = parseFrameRate(stream.RFrameRate)
				videoFound = true
			}
		case "audio":
			info.AudioStreams = append(info.AudioStreams, domain.AudioStream{
				Index:      audioIndex,
				Codec:      stream.CodecName,
				SampleRate: int(parseFloat(stream.SampleRate)),
				Channels:   stream.Channels,
			})
			audioIndex++
		}
	}
	if !videoFound {
		return domain.MediaInfo{}, errors.New("no video stream found")
	}
	return info, nil
}

// parseFrameRate reads ffprobe's "num/den" fraction form.
func parseFrameRate(s string) float64 {
	num, den, found := strings.Cut(s, "/")
	if !found {
		return parseFloat(s)
	}
	n := parseFloat(num)
	d := parseFloat(den)
	if d == 0 {
		return 0
	}
	return n / d
}

func parseFloat(s string) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return f
}
