// Package detect classifies a directory of videos by the artifacts sitting
// next to them, independently of the state store. It bootstraps discovery
// when no sidecar exists and cross-checks recorded progress when one does.
package detect

import (
	"os"
	"path/filepath"
	"strings"

	"bjjanalyzer/internal/domain"
)

// meaningfulBytes is the minimum artifact size treated as real content;
// smaller files are leftovers from interrupted runs.
const meaningfulBytes = 10

var videoExtensions = map[string]bool{
	".mp4": true,
	".mkv": true,
	".avi": true,
	".mov": true,
	".wmv": true,
}

// Scan enumerates a directory (depth 1) and returns each video with its
// stage inferred from on-disk artifacts. The detector's stage vocabulary is
// a coarse projection of the pipeline's: stages that leave no distinct
// fingerprint (analysis, enhancement, chapters, subtitles) collapse into
// the nearest observable one.
func Scan(dir string) ([]domain.Video, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var videos []domain.Video
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if !videoExtensions[ext] {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		v := domain.NewVideo(filepath.Join(dir, entry.Name()), info.ModTime(), info.Size())
		v.DetectedStage = classify(v)
		videos = append(videos, v)
	}
	return videos, nil
}

// ScanUnprocessed returns only videos that still have work remaining.
func ScanUnprocessed(dir string) ([]domain.Video, error) {
	videos, err := Scan(dir)
	if err != nil {
		return nil, err
	}
	out := videos[:0]
	for _, v := range videos {
		if v.DetectedStage != domain.StageCompleted {
			out = append(out, v)
		}
	}
	return out, nil
}

// ScanReadyForCuration returns videos whose transcript exists but has not
// been corrected yet.
func ScanReadyForCuration(dir string) ([]domain.Video, error) {
	videos, err := Scan(dir)
	if err != nil {
		return nil, err
	}
	out := videos[:0]
	for _, v := range videos {
		if v.DetectedStage == domain.StageTranscription {
			out = append(out, v)
		}
	}
	return out, nil
}

// classify applies the artifact rules in order; first match wins.
func classify(v domain.Video) domain.Stage {
	corrected := meaningful(v.Artifact("_corrected.txt"))
	srt := exists(v.Artifact(".srt"))
	txt := meaningful(v.Artifact(".txt"))
	wav := exists(v.Artifact(".wav"))

	switch {
	case corrected && srt:
		return domain.StageCompleted
	case corrected:
		return domain.StageLLMCorrection
	case txt:
		// With or without the SRT the video has been transcribed; the SRT
		// alone does not advance the coarse stage.
		return domain.StageTranscription
	case wav:
		return domain.StageAudioExtraction
	default:
		return domain.StagePending
	}
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func meaningful(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Size() > meaningfulBytes
}
