package domain

import "time"

// StateRecord is the per-video sidecar persisted as JSON in the hidden state
// directory next to the videos.
type StateRecord struct {
	Key             string         `json:"key"`
	SourcePath      string         `json:"sourcePath"`
	SourceModTime   int64          `json:"sourceModTime"`
	CurrentStage    Stage          `json:"currentStage"`
	CompletedStages []Stage        `json:"completedStages"`
	GeneratedFiles  GeneratedFiles `json:"generatedFiles"`
	Metadata        Metadata       `json:"metadata"`
	LastUpdated     int64          `json:"lastUpdated"`
	ErrorMessage    string         `json:"errorMessage,omitempty"`
}

// GeneratedFiles tracks artifact paths produced so far.
type GeneratedFiles struct {
	AudioPath         string `json:"audioPath,omitempty"`
	EnhancedAudioPath string `json:"enhancedAudioPath,omitempty"`
	TranscriptPath    string `json:"transcriptPath,omitempty"`
	CorrectedPath     string `json:"correctedPath,omitempty"`
	SRTPath           string `json:"srtPath,omitempty"`
}

// Metadata accumulates per-video processing facts across stages.
type Metadata struct {
	DurationSeconds    float64           `json:"durationSeconds"`
	Width              int               `json:"width"`
	Height             int               `json:"height"`
	FrameRate          float64           `json:"frameRate"`
	AudioSampleRate    int               `json:"audioSampleRate,omitempty"`
	TranscriptionModel string            `json:"transcriptionModel,omitempty"`
	SegmentCount       int               `json:"segmentCount,omitempty"`
	CorrectionsApplied int               `json:"correctionsApplied,omitempty"`
	ChaptersDetected   int               `json:"chaptersDetected,omitempty"`
	EnhancementNote    string            `json:"enhancementNote,omitempty"`
	StageTimes         map[Stage]float64 `json:"stageTimes,omitempty"`
	TotalSeconds       float64           `json:"totalSeconds"`
}

// NewStateRecord builds a fresh record at StagePending for a video.
func NewStateRecord(v Video) StateRecord {
	return StateRecord{
		Key:           v.Key(),
		SourcePath:    v.Path,
		SourceModTime: v.ModTime.Unix(),
		CurrentStage:  StagePending,
		Metadata:      Metadata{StageTimes: map[Stage]float64{}},
		LastUpdated:   time.Now().Unix(),
	}
}

// HasCompleted reports whether the stage is recorded as done.
func (r *StateRecord) HasCompleted(stage Stage) bool {
	for _, s := range r.CompletedStages {
		if s == stage {
			return true
		}
	}
	return false
}

// MarkCompleted records a finished stage, stores its elapsed seconds, and
// advances the current stage to the successor of the maximum completed one.
func (r *StateRecord) MarkCompleted(stage Stage, elapsed float64) {
	if !r.HasCompleted(stage) {
		r.CompletedStages = append(r.CompletedStages, stage)
	}
	if r.Metadata.StageTimes == nil {
		r.Metadata.StageTimes = map[Stage]float64{}
	}
	r.Metadata.StageTimes[stage] = elapsed
	if max, ok := r.MaxCompleted(); ok {
		r.CurrentStage = max.Next()
	}
	r.LastUpdated = time.Now().Unix()
}

// MaxCompleted returns the highest completed stage, if any.
func (r *StateRecord) MaxCompleted() (Stage, bool) {
	if len(r.CompletedStages) == 0 {
		return StagePending, false
	}
	max := r.CompletedStages[0]
	for _, s := range r.CompletedStages[1:] {
		if s > max {
			max = s
		}
	}
	return max, true
}

// Fail records a terminal error for the video.
func (r *StateRecord) Fail(msg string) {
	r.CurrentStage = StageError
	r.ErrorMessage = msg
	r.LastUpdated = time.Now().Unix()
}
