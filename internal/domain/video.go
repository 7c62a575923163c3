package domain

import (
	"path/filepath"
	"strings"
	"time"
)

// Video is an immutable descriptor of an on-disk video file, built at scan
// time. Identity is parent-directory-name + file-name, which keys sidecars.
type Video struct {
	Path    string    `json:"path"`
	Stem    string    `json:"stem"`
	Dir     string    `json:"dir"`
	ModTime time.Time `json:"modTime"`
	Size    int64     `json:"size"`

	// DetectedStage is the coarse stage inferred from on-disk artifacts,
	// filled by the detector. It is advisory; the sidecar record wins.
	DetectedStage Stage `json:"detectedStage"`
}

// NewVideo builds a descriptor from an absolute path and file info.
func NewVideo(path string, modTime time.Time, size int64) Video {
	base := filepath.Base(path)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	return Video{
		Path:    path,
		Stem:    stem,
		Dir:     filepath.Dir(path),
		ModTime: modTime,
		Size:    size,
	}
}

// Key returns the identity key used to address the video's sidecar.
func (v Video) Key() string {
	return filepath.Base(v.Dir) + "_" + filepath.Base(v.Path)
}

// Filename returns the file name including extension.
func (v Video) Filename() string {
	return filepath.Base(v.Path)
}

// Artifact returns the sibling artifact path for the given suffix, e.g.
// Artifact(".wav") or Artifact("_corrected.txt").
func (v Video) Artifact(suffix string) string {
	return filepath.Join(v.Dir, v.Stem+suffix)
}
