package domain

import "errors"

var (
	ErrNotFound             = errors.New("not found")
	ErrSourceMissing        = errors.New("source video missing")
	ErrProbeFailed          = errors.New("video probe failed")
	ErrExtractionFailed     = errors.New("audio extraction failed")
	ErrTranscriptionFailed  = errors.New("transcription failed")
	ErrCorrectionFailed     = errors.New("llm correction failed")
	ErrChapterConfiguration = errors.New("chapter configuration error")
	ErrNoMatch              = errors.New("no matching product url")
	ErrStateCorrupt         = errors.New("state sidecar unreadable")
	ErrCancelled            = errors.New("cancelled")
)
