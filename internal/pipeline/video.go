package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"time"

	"github.com/google/renameio/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"bjjanalyzer/internal/domain"
	"bjjanalyzer/internal/llm"
	"bjjanalyzer/internal/metrics"
	"bjjanalyzer/internal/transcribe"
)

var tracer = otel.Tracer("bjjanalyzer/pipeline")

// processVideo walks one video through the stage sequence. Analysis and
// extraction failures are fatal for the video; everything after them is
// best-effort because a missing transcript or chapter list is tolerable
// while missing audio makes the rest meaningless.
func (o *Orchestrator) processVideo(ctx context.Context, v domain.Video) domain.VideoResult {
	start := time.Now()
	logger := o.log().With(slog.String("video", v.Filename()))

	ctx, span := tracer.Start(ctx, "pipeline.video")
	span.SetAttributes(attribute.String("video.key", v.Key()))
	defer span.End()

	if _, err := os.Stat(v.Path); err != nil {
		_ = o.Store.Reset(v)
		return domain.VideoResult{
			Video:        v,
			Status:       domain.StatusFailed,
			ErrorMessage: domain.ErrSourceMissing.Error(),
		}
	}

	rec, err := o.Store.GetOrCreate(v)
	if err != nil {
		return domain.VideoResult{Video: v, Status: domain.StatusFailed, ErrorMessage: err.Error()}
	}
	logger.Info("pipeline: processing",
		slog.String("stage", rec.CurrentStage.String()),
		slog.Int("completed", len(rec.CompletedStages)))

	result := domain.VideoResult{Video: v, Status: domain.StatusCompleted}

	// Stage 1: video analysis — fatal on failure.
	media, fatal := o.stageAnalysis(ctx, v, &rec, logger)
	if fatal != nil {
		return o.failVideo(v, &rec, start, fatal)
	}
	result.Media = media

	if err := o.checkpoint(ctx); err != nil {
		return o.cancelled(v, rec, start)
	}

	// Stage 2: audio extraction — fatal on failure.
	audio, fatal := o.stageExtraction(ctx, v, &rec, logger)
	if fatal != nil {
		return o.failVideo(v, &rec, start, fatal)
	}
	result.Audio = audio

	if err := o.checkpoint(ctx); err != nil {
		return o.cancelled(v, rec, start)
	}

	// Stage 3: optional enhancement — best-effort.
	audio = o.stageEnhancement(ctx, v, &rec, audio, logger)

	if err := o.checkpoint(ctx); err != nil {
		return o.cancelled(v, rec, start)
	}

	// Stage 4: transcription — best-effort.
	transcript := o.stageTranscription(ctx, v, &rec, audio, logger)
	result.Transcript = transcript

	if err := o.checkpoint(ctx); err != nil {
		return o.cancelled(v, rec, start)
	}

	// Stage 5: correction — best-effort, gated by configuration.
	o.stageCorrection(ctx, v, &rec, transcript, logger)

	if err := o.checkpoint(ctx); err != nil {
		return o.cancelled(v, rec, start)
	}

	// Stage 6: chapters — always attempted, failure tolerated.
	result.Chapters = o.stageChapters(ctx, v, &rec, media.DurationSeconds, logger)

	if err := o.checkpoint(ctx); err != nil {
		return o.cancelled(v, rec, start)
	}

	// Stage 7: subtitles — emit from segments when transcription did not.
	o.stageSubtitles(v, &rec, transcript, logger)

	// Terminal.
	rec.Metadata.TotalSeconds = time.Since(start).Seconds()
	if err := o.Store.MarkCompleted(&rec, domain.StageCompleted, 0); err != nil {
		logger.Warn("pipeline: final state write failed", slog.String("error", err.Error()))
	}
	o.publish(rec)

	result.StagesCompleted = rec.CompletedStages
	result.ElapsedSeconds = time.Since(start).Seconds()
	logger.Info("pipeline: video completed",
		slog.Float64("seconds", result.ElapsedSeconds))
	return result
}

// checkpoint observes cancellation between stages; in-flight subprocess
// calls carry their own timeouts and are not interrupted.
func (o *Orchestrator) checkpoint(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return domain.ErrCancelled
	default:
		return nil
	}
}

func (o *Orchestrator) cancelled(v domain.Video, rec domain.StateRecord, start time.Time) domain.VideoResult {
	return domain.VideoResult{
		Video:           v,
		Status:          domain.StatusSkipped,
		ErrorMessage:    domain.ErrCancelled.Error(),
		StagesCompleted: rec.CompletedStages,
		ElapsedSeconds:  time.Since(start).Seconds(),
	}
}

func (o *Orchestrator) failVideo(v domain.Video, rec *domain.StateRecord, start time.Time, err error) domain.VideoResult {
	rec.Fail(err.Error())
	if uerr := o.Store.Update(*rec); uerr != nil {
		o.log().Warn("pipeline: error state write failed", slog.String("error", uerr.Error()))
	}
	o.publish(*rec)
	return domain.VideoResult{
		Video:           v,
		Status:          domain.StatusFailed,
		ErrorMessage:    err.Error(),
		StagesCompleted: rec.CompletedStages,
		ElapsedSeconds:  time.Since(start).Seconds(),
	}
}

func (o *Orchestrator) stageAnalysis(ctx context.Context, v domain.Video, rec *domain.StateRecord, logger *slog.Logger) (domain.MediaInfo, error) {
	if o.Store.CanSkip(*rec, domain.StageVideoAnalysis) {
		metrics.StagesSkippedTotal.WithLabelValues(domain.StageVideoAnalysis.String()).Inc()
		return domain.MediaInfo{
			Path:            v.Path,
			DurationSeconds: rec.Metadata.DurationSeconds,
			Width:           rec.Metadata.Width,
			Height:          rec.Metadata.Height,
			FPS:             rec.Metadata.FrameRate,
			FileSize:        v.Size,
		}, nil
	}

	ctx, span := tracer.Start(ctx, "stage.video_analysis")
	defer span.End()
	stageStart := time.Now()

	media, err := o.Prober.Probe(ctx, v.Path)
	if err != nil {
		metrics.StageFailuresTotal.WithLabelValues(domain.StageVideoAnalysis.String()).Inc()
		return domain.MediaInfo{}, err
	}

	rec.Metadata.DurationSeconds = media.DurationSeconds
	rec.Metadata.Width = media.Width
	rec.Metadata.Height = media.Height
	rec.Metadata.FrameRate = media.FPS
	o.finishStage(rec, domain.StageVideoAnalysis, stageStart, logger)
	logger.Info("pipeline: analyzed",
		slog.Int("width", media.Width),
		slog.Int("height", media.Height),
		slog.Float64("fps", media.FPS),
		slog.Float64("duration", media.DurationSeconds))
	return media, nil
}

func (o *Orchestrator) stageExtraction(ctx context.Context, v domain.Video, rec *domain.StateRecord, logger *slog.Logger) (*domain.AudioInfo, error) {
	if o.Store.CanSkip(*rec, domain.StageAudioExtraction) {
		metrics.StagesSkippedTotal.WithLabelValues(domain.StageAudioExtraction.String()).Inc()
		wav := v.Artifact(".wav")
		if _, err := os.Stat(wav); err == nil {
			if info, err := o.Prober.ProbeAudio(ctx, wav); err == nil {
				return &info, nil
			}
		}
		return nil, nil
	}

	ctx, span := tracer.Start(ctx, "stage.audio_extraction")
	defer span.End()
	stageStart := time.Now()

	audio, err := o.Audio.Extract(ctx, v.Path, v.Dir)
	if err != nil {
		metrics.StageFailuresTotal.WithLabelValues(domain.StageAudioExtraction.String()).Inc()
		return nil, err
	}

	rec.GeneratedFiles.AudioPath = audio.Path
	rec.Metadata.AudioSampleRate = audio.SampleRate
	o.finishStage(rec, domain.StageAudioExtraction, stageStart, logger)
	logger.Info("pipeline: audio extracted",
		slog.Float64("duration", audio.DurationSeconds),
		slog.Int("sampleRate", audio.SampleRate))
	return &audio, nil
}

// stageEnhancement returns the audio to transcribe: the enhanced file when
// enhancement succeeds, the original otherwise. The stage always completes;
// the metadata note distinguishes "failed" from "skipped".
func (o *Orchestrator) stageEnhancement(ctx context.Context, v domain.Video, rec *domain.StateRecord, audio *domain.AudioInfo, logger *slog.Logger) *domain.AudioInfo {
	if o.Store.CanSkip(*rec, domain.StageAudioEnhancement) {
		metrics.StagesSkippedTotal.WithLabelValues(domain.StageAudioEnhancement.String()).Inc()
		if rec.GeneratedFiles.EnhancedAudioPath != "" {
			if info, err := o.Prober.ProbeAudio(ctx, rec.GeneratedFiles.EnhancedAudioPath); err == nil {
				return &info
			}
		}
		return audio
	}

	stageStart := time.Now()
	if !o.EnableEnhancement || audio == nil {
		rec.Metadata.EnhancementNote = "skipped"
		o.finishStage(rec, domain.StageAudioEnhancement, stageStart, logger)
		return audio
	}

	ctx, span := tracer.Start(ctx, "stage.audio_enhancement")
	defer span.End()

	enhanced, err := o.Audio.Enhance(ctx, audio.Path)
	if err != nil {
		metrics.StageFailuresTotal.WithLabelValues(domain.StageAudioEnhancement.String()).Inc()
		logger.Warn("pipeline: enhancement failed, using original audio",
			slog.String("error", err.Error()))
		rec.Metadata.EnhancementNote = "failed, using original audio"
		o.finishStage(rec, domain.StageAudioEnhancement, stageStart, logger)
		return audio
	}

	rec.GeneratedFiles.EnhancedAudioPath = enhanced.Path
	rec.Metadata.EnhancementNote = "applied"
	o.finishStage(rec, domain.StageAudioEnhancement, stageStart, logger)
	return &enhanced
}

func (o *Orchestrator) stageTranscription(ctx context.Context, v domain.Video, rec *domain.StateRecord, audio *domain.AudioInfo, logger *slog.Logger) *domain.Transcript {
	if o.Store.CanSkip(*rec, domain.StageTranscription) {
		metrics.StagesSkippedTotal.WithLabelValues(domain.StageTranscription.String()).Inc()
		return o.loadExistingTranscript(v, rec)
	}
	if audio == nil {
		logger.Warn("pipeline: no audio, skipping transcription")
		o.finishStage(rec, domain.StageTranscription, time.Now(), logger)
		return nil
	}

	ctx, span := tracer.Start(ctx, "stage.transcription")
	defer span.End()
	stageStart := time.Now()

	prompt := ""
	if o.Dictionary != nil {
		prompt = o.Dictionary.GeneratePrompt()
	}
	transcript, err := o.Transcriber.Transcribe(ctx, *audio, v.Dir, prompt)
	if err != nil {
		metrics.StageFailuresTotal.WithLabelValues(domain.StageTranscription.String()).Inc()
		logger.Warn("pipeline: transcription failed", slog.String("error", err.Error()))
		o.finishStage(rec, domain.StageTranscription, stageStart, logger)
		return nil
	}

	rec.GeneratedFiles.TranscriptPath = transcript.TextPath
	rec.GeneratedFiles.SRTPath = transcript.SRTPath
	rec.Metadata.TranscriptionModel = transcript.ModelUsed
	rec.Metadata.SegmentCount = len(transcript.Segments)
	o.finishStage(rec, domain.StageTranscription, stageStart, logger)
	logger.Info("pipeline: transcribed",
		slog.Int("segments", len(transcript.Segments)),
		slog.String("model", transcript.ModelUsed))
	return &transcript
}

func (o *Orchestrator) loadExistingTranscript(v domain.Video, rec *domain.StateRecord) *domain.Transcript {
	textPath := rec.GeneratedFiles.TranscriptPath
	if textPath == "" {
		textPath = v.Artifact(".txt")
	}
	data, err := os.ReadFile(textPath)
	if err != nil {
		return nil
	}
	transcript := domain.Transcript{
		Text:      string(data),
		TextPath:  textPath,
		SRTPath:   rec.GeneratedFiles.SRTPath,
		ModelUsed: rec.Metadata.TranscriptionModel,
	}
	if transcript.SRTPath == "" {
		transcript.SRTPath = v.Artifact(".srt")
	}
	if srtData, err := os.ReadFile(transcript.SRTPath); err == nil {
		if entries, err := transcribe.ParseSRT(string(srtData)); err == nil {
			for _, e := range entries {
				transcript.Segments = append(transcript.Segments, domain.Segment{
					ID: e.Index, Start: e.Start, End: e.End, Text: e.Text,
				})
			}
		}
	} else {
		transcript.SRTPath = ""
	}
	return &transcript
}

// stageCorrection applies model replacements to both artifacts with the
// rename protocol: the original becomes <stem>_old.<ext>, the corrected
// text takes the primary name, and <stem>_corrected.txt marks completion
// for the artifact detector.
func (o *Orchestrator) stageCorrection(ctx context.Context, v domain.Video, rec *domain.StateRecord, transcript *domain.Transcript, logger *slog.Logger) {
	if o.Store.CanSkip(*rec, domain.StageLLMCorrection) {
		metrics.StagesSkippedTotal.WithLabelValues(domain.StageLLMCorrection.String()).Inc()
		return
	}

	stageStart := time.Now()
	if !o.EnableCorrection || o.Corrector == nil || transcript == nil || transcript.Text == "" {
		o.finishStage(rec, domain.StageLLMCorrection, stageStart, logger)
		return
	}

	ctx, span := tracer.Start(ctx, "stage.llm_correction")
	defer span.End()

	set, err := o.Corrector.Corrections(ctx, transcript.Text)
	if err != nil {
		metrics.StageFailuresTotal.WithLabelValues(domain.StageLLMCorrection.String()).Inc()
		logger.Warn("pipeline: correction failed", slog.String("error", err.Error()))
		rec.Metadata.CorrectionsApplied = 0
		o.finishStage(rec, domain.StageLLMCorrection, stageStart, logger)
		return
	}

	rec.Metadata.CorrectionsApplied = len(set.Replacements)
	if len(set.Replacements) > 0 {
		corrected := llm.ApplyReplacements(transcript.Text, set.Replacements)
		transcript.Text = corrected

		if err := o.renameAndRewrite(v, ".txt", corrected); err != nil {
			logger.Warn("pipeline: corrected text write failed", slog.String("error", err.Error()))
		} else {
			rec.GeneratedFiles.CorrectedPath = v.Artifact("_corrected.txt")
			// The corrected copy also lives under its own suffix so the
			// artifact detector can see the stage without the sidecar.
			if err := renameio.WriteFile(rec.GeneratedFiles.CorrectedPath, []byte(corrected), 0o644); err != nil {
				logger.Warn("pipeline: corrected marker write failed", slog.String("error", err.Error()))
			}
		}

		if srtData, err := os.ReadFile(v.Artifact(".srt")); err == nil {
			correctedSRT := llm.ApplyReplacements(string(srtData), set.Replacements)
			if err := o.renameAndRewrite(v, ".srt", correctedSRT); err != nil {
				logger.Warn("pipeline: corrected srt write failed", slog.String("error", err.Error()))
			}
		}
		metrics.CorrectionsApplied.Add(float64(len(set.Replacements)))
		logger.Info("pipeline: corrections applied", slog.Int("count", len(set.Replacements)))
	}
	o.finishStage(rec, domain.StageLLMCorrection, stageStart, logger)
}

// renameAndRewrite moves <stem><ext> to <stem>_old<ext> and writes content
// under the primary name.
func (o *Orchestrator) renameAndRewrite(v domain.Video, ext, content string) error {
	originalPath := v.Artifact(ext)
	oldPath := v.Artifact("_old" + ext)
	if err := os.Rename(originalPath, oldPath); err != nil {
		return err
	}
	return renameio.WriteFile(originalPath, []byte(content), 0o644)
}

func (o *Orchestrator) stageChapters(ctx context.Context, v domain.Video, rec *domain.StateRecord, durationSeconds float64, logger *slog.Logger) []domain.ChapterEntry {
	if o.Store.CanSkip(*rec, domain.StageChapterDetection) {
		metrics.StagesSkippedTotal.WithLabelValues(domain.StageChapterDetection.String()).Inc()
		return nil
	}

	ctx, span := tracer.Start(ctx, "stage.chapter_detection")
	defer span.End()
	stageStart := time.Now()

	var chapters []domain.ChapterEntry
	if o.Chapters != nil {
		parsed := o.parseFilename(ctx, v)
		got, err := o.Chapters.Detect(ctx, v, durationSeconds, parsed)
		if err != nil {
			metrics.StageFailuresTotal.WithLabelValues(domain.StageChapterDetection.String()).Inc()
			logger.Warn("pipeline: chapter detection failed", slog.String("error", err.Error()))
		} else {
			chapters = got
		}
	}

	rec.Metadata.ChaptersDetected = len(chapters)
	o.finishStage(rec, domain.StageChapterDetection, stageStart, logger)
	if len(chapters) > 0 {
		logger.Info("pipeline: chapters detected", slog.Int("count", len(chapters)))
	}
	return chapters
}

func (o *Orchestrator) parseFilename(ctx context.Context, v domain.Video) domain.ParsedFilename {
	if o.Classifier != nil {
		return o.Classifier.Parse(ctx, v.Filename())
	}
	return filename.ParseRegex(filename.Payload(v.Filename()))
}

func (o *Orchestrator) stageSubtitles(v domain.Video, rec *domain.StateRecord, transcript *domain.Transcript, logger *slog.Logger) {
	if o.Store.CanSkip(*rec, domain.StageSubtitleGeneration) {
		metrics.StagesSkippedTotal.WithLabelValues(domain.StageSubtitleGeneration.String()).Inc()
		return
	}

	stageStart := time.Now()
	srtPath := v.Artifact(".srt")
	_, statErr := os.Stat(srtPath)
	needSRT := errors.Is(statErr, os.ErrNotExist)

	if needSRT && transcript != nil && len(transcript.Segments) > 0 {
		srt := transcribe.RenderSRT(transcribe.EntriesFromSegments(transcript.Segments))
		if err := renameio.WriteFile(srtPath, []byte(srt), 0o644); err != nil {
			metrics.StageFailuresTotal.WithLabelValues(domain.StageSubtitleGeneration.String()).Inc()
			logger.Warn("pipeline: subtitle write failed", slog.String("error", err.Error()))
		} else {
			rec.GeneratedFiles.SRTPath = srtPath
		}
	}
	o.finishStage(rec, domain.StageSubtitleGeneration, stageStart, logger)
}

// finishStage records completion, persists the sidecar, observes metrics,
// and publishes the transition.
func (o *Orchestrator) finishStage(rec *domain.StateRecord, stage domain.Stage, stageStart time.Time, logger *slog.Logger) {
	elapsed := time.Since(stageStart).Seconds()
	metrics.StageDuration.WithLabelValues(stage.String()).Observe(elapsed)
	if err := o.Store.MarkCompleted(rec, stage, elapsed); err != nil {
		logger.Warn("pipeline: state write failed",
			slog.String("stage", stage.String()),
			slog.String("error", err.Error()))
	}
	o.publish(*rec)
}
