package domain

// MediaInfo is the probe result for a video file.
type MediaInfo struct {
	Path            string        `json:"path"`
	DurationSeconds float64       `json:"durationSeconds"`
	Width           int           `json:"width"`
	Height          int           `json:"height"`
	FPS             float64       `json:"fps"`
	Format          string        `json:"format"`
	FileSize        int64         `json:"fileSize"`
	AudioStreams    []AudioStream `json:"audioStreams,omitempty"`
}

// AudioStream describes one audio track of a probed container.
type AudioStream struct {
	Index      int    `json:"index"`
	Codec      string `json:"codec"`
	SampleRate int    `json:"sampleRate"`
	Channels   int    `json:"channels"`
}

// AudioInfo describes an extracted (or reused) audio file.
type AudioInfo struct {
	Path            string  `json:"path"`
	DurationSeconds float64 `json:"durationSeconds"`
	SampleRate      int     `json:"sampleRate"`
	Channels        int     `json:"channels"`
	Format          string  `json:"format"`
	FileSize        int64   `json:"fileSize"`
	Bitrate         int     `json:"bitrate,omitempty"`
}

// Segment is one timed span of transcribed speech.
type Segment struct {
	ID         int     `json:"id"`
	Start      float64 `json:"start"`
	End        float64 `json:"end"`
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence,omitempty"`
}

// Transcript is the transcriber's result for one audio file.
type Transcript struct {
	Text              string    `json:"text"`
	Language          string    `json:"language,omitempty"`
	Segments          []Segment `json:"segments"`
	SRTPath           string    `json:"srtPath,omitempty"`
	TextPath          string    `json:"textPath,omitempty"`
	ModelUsed         string    `json:"modelUsed"`
	ProcessingSeconds float64   `json:"processingSeconds"`
}

// Replacement is one (original, replacement) correction pair from the model.
type Replacement struct {
	Original    string `json:"original"`
	Replacement string `json:"replacement"`
	Reason      string `json:"reason,omitempty"`
}

// CorrectionSet is the model's full correction response for a transcript.
type CorrectionSet struct {
	Replacements []Replacement `json:"replacements"`
	Notes        string        `json:"notes,omitempty"`
}
