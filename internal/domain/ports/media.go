package ports

import (
	"context"

	"bjjanalyzer/internal/domain"
)

// Prober inspects a media file's container metadata.
type Prober interface {
	Probe(ctx context.Context, path string) (domain.MediaInfo, error)
	ProbeAudio(ctx context.Context, path string) (domain.AudioInfo, error)
}

// AudioExtractor produces transcription-ready audio from a video file.
// Output is guaranteed mono 16 kHz 16-bit PCM WAV.
type AudioExtractor interface {
	Extract(ctx context.Context, videoPath, outputDir string) (domain.AudioInfo, error)
	Enhance(ctx context.Context, audioPath string) (domain.AudioInfo, error)
}

// Transcriber converts audio into a timed transcript, writing the .txt and
// .srt artifacts into outputDir. prompt carries domain vocabulary hints.
type Transcriber interface {
	Transcribe(ctx context.Context, audio domain.AudioInfo, outputDir, prompt string) (domain.Transcript, error)
}
