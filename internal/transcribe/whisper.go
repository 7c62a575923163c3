// Package transcribe runs a whisper-style CLI and manages the transcript
// artifacts it produces.
package transcribe

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/renameio/v2"

	"bjjanalyzer/internal/domain"
)

// meaningfulBytes mirrors the detector's artifact threshold.
const meaningfulBytes = 10

// Whisper invokes the whisper CLI as a subprocess.
type Whisper struct {
	Binary   string
	Model    string
	Language string
	Timeout  time.Duration
	Logger   *slog.Logger
}

// whisperJSON is the CLI's --output_format json document.
type whisperJSON struct {
	Text     string `json:"text"`
	Language string `json:"language"`
	Segments []struct {
		ID    int     `json:"id"`
		Start float64 `json:"start"`
		End   float64 `json:"end"`
		Text  string  `json:"text"`
	} `json:"segments"`
}

// Transcribe produces <stem>.txt and <stem>.srt in outputDir. Existing
// meaningful outputs are loaded and reused instead of re-running the model.
func (w *Whisper) Transcribe(ctx context.Context, audio domain.AudioInfo, outputDir, prompt string) (domain.Transcript, error) {
	stem := strings.TrimSuffix(filepath.Base(audio.Path), filepath.Ext(audio.Path))
	stem = strings.TrimSuffix(stem, "_enhanced")
	textPath := filepath.Join(outputDir, stem+".txt")
	srtPath := filepath.Join(outputDir, stem+".srt")

	if reused, ok := w.reuseExisting(textPath, srtPath); ok {
		w.log().Info("transcribe: reusing existing transcript",
			slog.String("path", textPath))
		return reused, nil
	}

	start := time.Now()
	raw, err := w.run(ctx, audio.Path, outputDir, prompt)
	if err != nil {
		return domain.Transcript{}, fmt.Errorf("%w: %v", domain.ErrTranscriptionFailed, err)
	}

	transcript := domain.Transcript{
		Text:              strings.TrimSpace(raw.Text),
		Language:          raw.Language,
		ModelUsed:         w.Model,
		ProcessingSeconds: time.Since(start).Seconds(),
	}
	for _, seg := range raw.Segments {
		transcript.Segments = append(transcript.Segments, domain.Segment{
			ID:    seg.ID,
			Start: seg.Start,
			End:   seg.End,
			Text:  strings.TrimSpace(seg.Text),
		})
	}

	if err := renameio.WriteFile(textPath, []byte(transcript.Text+"\n"), 0o644); err != nil {
		return domain.Transcript{}, fmt.Errorf("%w: write text: %v", domain.ErrTranscriptionFailed, err)
	}
	transcript.TextPath = textPath

	srt := RenderSRT(EntriesFromSegments(transcript.Segments))
	if srt != "" {
		if err := renameio.WriteFile(srtPath, []byte(srt), 0o644); err != nil {
			return domain.Transcript{}, fmt.Errorf("%w: write srt: %v", domain.ErrTranscriptionFailed, err)
		}
		transcript.SRTPath = srtPath
	}
	return transcript, nil
}

// reuseExisting loads prior outputs when the text artifact looks real; the
// SRT is loaded as well when it exists and parses.
func (w *Whisper) reuseExisting(textPath, srtPath string) (domain.Transcript, bool) {
	textInfo, err := os.Stat(textPath)
	if err != nil || textInfo.Size() <= meaningfulBytes {
		return domain.Transcript{}, false
	}
	text, err := os.ReadFile(textPath)
	if err != nil {
		return domain.Transcript{}, false
	}

	transcript := domain.Transcript{
		Text:      strings.TrimSpace(string(text)),
		TextPath:  textPath,
		ModelUsed: w.Model,
	}
	if srtData, err := os.ReadFile(srtPath); err == nil {
		if entries, err := ParseSRT(string(srtData)); err == nil {
			transcript.SRTPath = srtPath
			for _, e := range entries {
				transcript.Segments = append(transcript.Segments, domain.Segment{
					ID:    e.Index,
					Start: e.Start,
					End:   e.End,
					Text:  e.Text,
				})
			}
		}
	}
	return transcript, true
}

func (w *Whisper) run(ctx context.Context, audioPath, outputDir, prompt string) (whisperJSON, error) {
	if w.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.Timeout)
		defer cancel()
	}

	binary := w.Binary
	if strings.TrimSpace(binary) == "" {
		binary = "whisper"
	}
	args := []string{
		audioPath,
		"--model", w.Model,
		"--output_format", "json",
		"--output_dir", outputDir,
	}
	if w.Language != "" {
		args = append(args, "--language", w.Language)
	}
	if prompt != "" {
		args = append(args, "--initial_prompt", prompt)
	}

	cmd := exec.CommandContext(ctx, binary, args...)

	// Whisper reports progress on stderr; stream it line-by-line instead of
	// buffering a multi-hour run's output.
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return whisperJSON{}, err
	}
	if err := cmd.Start(); err != nil {
		return whisperJSON{}, err
	}
	go func() {
		scanner := bufio.NewScanner(stderr)
		for scanner.Scan() {
			if line := strings.TrimSpace(scanner.Text()); line != "" {
				w.log().Debug("whisper", slog.String("line", line))
			}
		}
	}()

	if err := cmd.Wait(); err != nil {
		return whisperJSON{}, err
	}

	stem := strings.TrimSuffix(filepath.Base(audioPath), filepath.Ext(audioPath))
	jsonPath := filepath.Join(outputDir, stem+".json")
	data, err := os.ReadFile(jsonPath)
	if err != nil {
		return whisperJSON{}, fmt.Errorf("read whisper output: %w", err)
	}
	var out whisperJSON
	if err := json.Unmarshal(data, &out); err != nil {
		return whisperJSON{}, fmt.Errorf("parse whisper output: %w", err)
	}
	return out, nil
}

func (w *Whisper) log() *slog.Logger {
	if w.Logger != nil {
		return w.Logger
	}
	return slog.Default()
}
