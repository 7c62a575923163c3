// Package ffmpeg shells out to ffmpeg for transcription-ready audio.
package ffmpeg

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"

	"bjjanalyzer/internal/domain"
)

// Extractor produces mono 16 kHz 16-bit PCM WAV files. A prober is used to
// read back the extracted audio's metadata (and to reuse an existing WAV
// without re-extracting).
type Extractor struct {
	Binary string
	Prober interface {
		ProbeAudio(ctx context.Context, path string) (domain.AudioInfo, error)
	}
	Logger *slog.Logger
}

// extractArgs builds the ffmpeg argument list. Pure function.
func extractArgs(videoPath, audioPath string) []string {
	return []string{
		"-hide_banner",
		"-loglevel", "error",
		"-progress", "pipe:1",
		"-i", videoPath,
		"-vn",
		"-acodec", "pcm_s16le",
		"-ar", "16000",
		"-ac", "1",
		"-af", "volume=0.95",
		"-f", "wav",
		"-y",
		audioPath,
	}
}

// enhanceArgs denoises and normalizes an extracted WAV.
func enhanceArgs(inPath, outPath string) []string {
	return []string{
		"-hide_banner",
		"-loglevel", "error",
		"-progress", "pipe:1",
		"-i", inPath,
		"-af", "afftdn,loudnorm",
		"-ar", "16000",
		"-ac", "1",
		"-y",
		outPath,
	}
}

// Extract produces <stem>.wav in outputDir. When the WAV already exists its
// metadata is rebuilt from the file instead of re-running ffmpeg.
func (e *Extractor) Extract(ctx context.Context, videoPath, outputDir string) (domain.AudioInfo, error) {
	stem := strings.TrimSuffix(filepath.Base(videoPath), filepath.Ext(videoPath))
	audioPath := filepath.Join(outputDir, stem+".wav")

	if st, err := os.Stat(audioPath); err == nil && st.Size() > 0 {
		e.log().Debug("ffmpeg: reusing existing audio", slog.String("path", audioPath))
		return e.Prober.ProbeAudio(ctx, audioPath)
	}

	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return domain.AudioInfo{}, fmt.Errorf("%w: %v", domain.ErrExtractionFailed, err)
	}

	if err := e.run(ctx, extractArgs(videoPath, audioPath)); err != nil {
		return domain.AudioInfo{}, fmt.Errorf("%w: %v", domain.ErrExtractionFailed, err)
	}
	return e.Prober.ProbeAudio(ctx, audioPath)
}

// Enhance produces <stem>_enhanced.wav next to the input. On failure the
// caller receives the error together with a zero AudioInfo and is expected
// to fall back to the unenhanced audio.
func (e *Extractor) Enhance(ctx context.Context, audioPath string) (domain.AudioInfo, error) {
	stem := strings.TrimSuffix(filepath.Base(audioPath), filepath.Ext(audioPath))
	outPath := filepath.Join(filepath.Dir(audioPath), stem+"_enhanced.wav")

	if err := e.run(ctx, enhanceArgs(audioPath, outPath)); err != nil {
		return domain.AudioInfo{}, fmt.Errorf("enhance: %w", err)
	}
	return e.Prober.ProbeAudio(ctx, outPath)
}

func (e *Extractor) binary() string {
	if strings.TrimSpace(e.Binary) == "" {
		return "ffmpeg"
	}
	return e.Binary
}

// run executes ffmpeg streaming its progress pipe line-by-line so long
// extractions surface movement without buffering output.
func (e *Extractor) run(ctx context.Context, args []string) error {
	cmd := exec.CommandContext(ctx, e.binary(), args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return err
	}
	if err := cmd.Start(); err != nil {
		return err
	}

	var progressUs int64
	go func() {
		scanner := bufio.NewScanner(stdout)
		for scanner.Scan() {
			line := scanner.Text()
			if strings.HasPrefix(line, "out_time_us=") {
				if us, err := strconv.ParseInt(strings.TrimPrefix(line, "out_time_us="), 10, 64); err == nil {
					atomic.StoreInt64(&progressUs, us)
				}
			}
		}
	}()

	if err := cmd.Wait(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			return err
		}
		return fmt.Errorf("%v: %s", err, msg)
	}
	e.log().Debug("ffmpeg: finished",
		slog.Float64("processedSeconds", float64(atomic.LoadInt64(&progressUs))/1e6))
	return nil
}

func (e *Extractor) log() *slog.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return slog.Default()
}
