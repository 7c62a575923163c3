// Package pipeline drives every video in a directory through the stage
// sequence with bounded concurrency and resumable, sidecar-backed progress.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/google/renameio/v2"
	"golang.org/x/sync/semaphore"

	"bjjanalyzer/internal/detect"
	"bjjanalyzer/internal/domain"
	"bjjanalyzer/internal/domain/ports"
	"bjjanalyzer/internal/filename"
	"bjjanalyzer/internal/metrics"
)

// Orchestrator owns the per-video stage walk. One worker permit covers a
// video's whole sequence; stages inside a video are strictly sequential.
type Orchestrator struct {
	Store       ports.StateRepository
	Prober      ports.Prober
	Audio       ports.AudioExtractor
	Transcriber ports.Transcriber
	Corrector   ports.CorrectionModel
	Chapters    ChapterDetector
	Dictionary  ports.Dictionary
	Classifier  *filename.Classifier
	Publisher   ports.ProgressPublisher
	Logger      *slog.Logger

	Workers           int
	EnableEnhancement bool
	EnableCorrection  bool
}

// ChapterDetector is the extractor surface the orchestrator needs.
type ChapterDetector interface {
	Detect(ctx context.Context, v domain.Video, durationSeconds float64, parsed domain.ParsedFilename) ([]domain.ChapterEntry, error)
}

// ProcessDirectory scans inDir, runs every video through the pipeline, and
// writes the aggregate result JSON into outDir; an empty outDir means inDir.
// outDir receives only that JSON: stage artifacts (audio, transcripts,
// subtitles) are always written next to each source video.
func (o *Orchestrator) ProcessDirectory(ctx context.Context, inDir, outDir string) (domain.BatchResult, error) {
	start := time.Now()
	if outDir == "" {
		outDir = inDir
	}

	videos, err := detect.Scan(inDir)
	if err != nil {
		return domain.BatchResult{}, fmt.Errorf("scan %s: %w", inDir, err)
	}
	if len(videos) == 0 {
		o.log().Warn("pipeline: no videos found", slog.String("dir", inDir))
		return domain.BatchResult{TotalSeconds: time.Since(start).Seconds()}, nil
	}
	o.log().Info("pipeline: starting batch",
		slog.Int("videos", len(videos)),
		slog.Int("workers", o.workers()))

	results := o.runPool(ctx, videos)

	batch := domain.BatchResult{
		Total:        len(results),
		TotalSeconds: time.Since(start).Seconds(),
		Results:      results,
	}
	for _, r := range results {
		if r.Status == domain.StatusCompleted {
			batch.Successful++
		} else if r.Status == domain.StatusFailed {
			batch.Failed++
		}
		metrics.VideosProcessedTotal.WithLabelValues(string(r.Status)).Inc()
	}

	if data, err := json.MarshalIndent(batch, "", "  "); err == nil {
		path := filepath.Join(outDir, "processing_results.json")
		if err := renameio.WriteFile(path, data, 0o644); err != nil {
			o.log().Warn("pipeline: write batch result failed",
				slog.String("path", path), slog.String("error", err.Error()))
		}
	}

	o.log().Info("pipeline: batch finished",
		slog.Int("total", batch.Total),
		slog.Int("successful", batch.Successful),
		slog.Int("failed", batch.Failed),
		slog.Float64("seconds", batch.TotalSeconds))
	return batch, nil
}

// runPool fans the videos over the worker semaphore and collects results in
// completion order.
func (o *Orchestrator) runPool(ctx context.Context, videos []domain.Video) []domain.VideoResult {
	sem := semaphore.NewWeighted(int64(o.workers()))
	out := make(chan domain.VideoResult, len(videos))

	for _, v := range videos {
		v := v
		go func() {
			if err := sem.Acquire(ctx, 1); err != nil {
				out <- domain.VideoResult{
					Video:        v,
					Status:       domain.StatusSkipped,
					ErrorMessage: domain.ErrCancelled.Error(),
				}
				return
			}
			metrics.ActiveWorkers.Inc()
			defer func() {
				metrics.ActiveWorkers.Dec()
				sem.Release(1)
			}()
			out <- o.processVideo(ctx, v)
		}()
	}

	results := make([]domain.VideoResult, 0, len(videos))
	for range videos {
		results = append(results, <-out)
	}
	return results
}

// ResetStages clears the given stages from every video's sidecar in a
// directory so the next run re-executes them. With no stages each video's
// record is deleted entirely.
func (o *Orchestrator) ResetStages(dir string, stages ...domain.Stage) (int, error) {
	videos, err := detect.Scan(dir)
	if err != nil {
		return 0, err
	}
	count := 0
	for _, v := range videos {
		if err := o.Store.Reset(v, stages...); err != nil {
			if err == domain.ErrNotFound {
				continue
			}
			return count, err
		}
		count++
	}
	return count, nil
}

// CleanupState drops sidecars whose videos are gone.
func (o *Orchestrator) CleanupState() (int, error) {
	return o.Store.Cleanup()
}

func (o *Orchestrator) workers() int {
	if o.Workers <= 0 {
		return 1
	}
	return o.Workers
}

func (o *Orchestrator) log() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.Default()
}

func (o *Orchestrator) publish(rec domain.StateRecord) {
	if o.Publisher == nil {
		return
	}
	o.Publisher.Publish(domain.ProgressEvent{
		VideoKey:    rec.Key,
		Stage:       rec.CurrentStage,
		Progress:    rec.CurrentStage.Progress(),
		LastUpdated: time.Unix(rec.LastUpdated, 0),
	})
}
