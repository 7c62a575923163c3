package pipeline

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"bjjanalyzer/internal/domain"
	"bjjanalyzer/internal/domain/ports"
	"bjjanalyzer/internal/state"
)

// --- fakes -----------------------------------------------------------------

type fakeProber struct {
	probeCalls int32
	failProbe  bool
}

func (f *fakeProber) Probe(ctx context.Context, path string) (domain.MediaInfo, error) {
	atomic.AddInt32(&f.probeCalls, 1)
	if f.failProbe {
		return domain.MediaInfo{}, domain.ErrProbeFailed
	}
	return domain.MediaInfo{
		Path:            path,
		DurationSeconds: 1200,
		Width:           1920,
		Height:          1080,
		FPS:             30,
	}, nil
}

func (f *fakeProber) ProbeAudio(ctx context.Context, path string) (domain.AudioInfo, error) {
	return domain.AudioInfo{Path: path, DurationSeconds: 1200, SampleRate: 16000, Channels: 1}, nil
}

type fakeAudio struct {
	extractCalls int32
	failExtract  bool
}

func (f *fakeAudio) Extract(ctx context.Context, videoPath, outputDir string) (domain.AudioInfo, error) {
	atomic.AddInt32(&f.extractCalls, 1)
	if f.failExtract {
		return domain.AudioInfo{}, domain.ErrExtractionFailed
	}
	stem := strings.TrimSuffix(filepath.Base(videoPath), filepath.Ext(videoPath))
	path := filepath.Join(outputDir, stem+".wav")
	if err := os.WriteFile(path, make([]byte, 8192), 0o644); err != nil {
		return domain.AudioInfo{}, err
	}
	return domain.AudioInfo{Path: path, DurationSeconds: 1200, SampleRate: 16000, Channels: 1}, nil
}

func (f *fakeAudio) Enhance(ctx context.Context, audioPath string) (domain.AudioInfo, error) {
	return domain.AudioInfo{}, domain.ErrExtractionFailed
}

type fakeTranscriber struct {
	calls int32
}

func (f *fakeTranscriber) Transcribe(ctx context.Context, audio domain.AudioInfo, outputDir, prompt string) (domain.Transcript, error) {
	atomic.AddInt32(&f.calls, 1)
	stem := strings.TrimSuffix(filepath.Base(audio.Path), filepath.Ext(audio.Path))
	textPath := filepath.Join(outputDir, stem+".txt")
	srtPath := filepath.Join(outputDir, stem+".srt")
	text := "the coast guard retention drill"
	if err := os.WriteFile(textPath, []byte(text), 0o644); err != nil {
		return domain.Transcript{}, err
	}
	srt := "1\n00:00:00,000 --> 00:00:05,000\n" + text + "\n\n"
	if err := os.WriteFile(srtPath, []byte(srt), 0o644); err != nil {
		return domain.Transcript{}, err
	}
	return domain.Transcript{
		Text:      text,
		TextPath:  textPath,
		SRTPath:   srtPath,
		Segments:  []domain.Segment{{ID: 1, Start: 0, End: 5, Text: text}},
		ModelUsed: "fake",
	}, nil
}

type stubCorrector struct {
	set domain.CorrectionSet
	err error
}

func (s stubCorrector) Chat(ctx context.Context, messages []ports.ChatMessage) (string, error) {
	return "", s.err
}

func (s stubCorrector) Corrections(ctx context.Context, transcript string) (domain.CorrectionSet, error) {
	if s.err != nil {
		return domain.CorrectionSet{}, s.err
	}
	return s.set, nil
}

func (s stubCorrector) Available(ctx context.Context) bool { return s.err == nil }

type publisherRecorder struct {
	mu     sync.Mutex
	events []domain.ProgressEvent
}

func (p *publisherRecorder) Publish(ev domain.ProgressEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
}

type fakeChapters struct {
	calls    int32
	chapters []domain.ChapterEntry
}

func (f *fakeChapters) Detect(ctx context.Context, v domain.Video, durationSeconds float64, parsed domain.ParsedFilename) ([]domain.ChapterEntry, error) {
	atomic.AddInt32(&f.calls, 1)
	return f.chapters, nil
}

// --- helpers ---------------------------------------------------------------

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func writeVideo(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, make([]byte, 4096), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func newTestOrchestrator(t *testing.T, dir string) (*Orchestrator, *fakeProber, *fakeAudio, *fakeTranscriber, *fakeChapters, *publisherRecorder) {
	t.Helper()
	store, err := state.Open(filepath.Join(dir, ".bjj_analyzer_state"), quietLogger())
	if err != nil {
		t.Fatal(err)
	}
	prober := &fakeProber{}
	audio := &fakeAudio{}
	transcriber := &fakeTranscriber{}
	chapters := &fakeChapters{}
	publisher := &publisherRecorder{}
	o := &Orchestrator{
		Store:       store,
		Prober:      prober,
		Audio:       audio,
		Transcriber: transcriber,
		Chapters:    chapters,
		Publisher:   publisher,
		Logger:      quietLogger(),
		Workers:     2,
	}
	return o, prober, audio, transcriber, chapters, publisher
}

// --- tests -----------------------------------------------------------------

func TestProcessDirectoryEmpty(t *testing.T) {
	dir := t.TempDir()
	o, _, _, _, _, _ := newTestOrchestrator(t, dir)

	batch, err := o.ProcessDirectory(context.Background(), dir, "")
	if err != nil {
		t.Fatal(err)
	}
	if batch.Total != 0 {
		t.Fatalf("total = %d", batch.Total)
	}
	entries, _ := os.ReadDir(filepath.Join(dir, ".bjj_analyzer_state"))
	if len(entries) != 0 {
		t.Fatalf("sidecars created for empty directory: %v", entries)
	}
}

func TestFreshSingleVideoRunsAllStages(t *testing.T) {
	dir := t.TempDir()
	writeVideo(t, dir, "JustStandUpbyCraigJones1.mp4")
	o, prober, audio, transcriber, chapters, publisher := newTestOrchestrator(t, dir)

	batch, err := o.ProcessDirectory(context.Background(), dir, "")
	if err != nil {
		t.Fatal(err)
	}
	if batch.Total != 1 || batch.Successful != 1 {
		t.Fatalf("batch = %+v", batch)
	}
	if prober.probeCalls != 1 || audio.extractCalls != 1 || transcriber.calls != 1 || chapters.calls != 1 {
		t.Fatalf("adapter calls: probe=%d extract=%d transcribe=%d chapters=%d",
			prober.probeCalls, audio.extractCalls, transcriber.calls, chapters.calls)
	}

	for _, artifact := range []string{
		"JustStandUpbyCraigJones1.wav",
		"JustStandUpbyCraigJones1.txt",
		"JustStandUpbyCraigJones1.srt",
	} {
		if _, err := os.Stat(filepath.Join(dir, artifact)); err != nil {
			t.Errorf("artifact %s missing", artifact)
		}
	}

	result := batch.Results[0]
	if result.Status != domain.StatusCompleted {
		t.Fatalf("status = %v (%s)", result.Status, result.ErrorMessage)
	}
	for _, st := range []domain.Stage{
		domain.StageVideoAnalysis, domain.StageAudioExtraction,
		domain.StageAudioEnhancement, domain.StageTranscription,
		domain.StageLLMCorrection, domain.StageChapterDetection,
		domain.StageSubtitleGeneration, domain.StageCompleted,
	} {
		found := false
		for _, got := range result.StagesCompleted {
			if got == st {
				found = true
			}
		}
		if !found {
			t.Errorf("stage %v not completed", st)
		}
	}

	if len(publisher.events) == 0 {
		t.Error("no progress events published")
	}
	last := publisher.events[len(publisher.events)-1]
	if last.Stage != domain.StageCompleted || last.Progress != 100 {
		t.Errorf("last event = %+v", last)
	}

	// Batch result JSON lands beside the videos.
	data, err := os.ReadFile(filepath.Join(dir, "processing_results.json"))
	if err != nil {
		t.Fatal(err)
	}
	var back domain.BatchResult
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatal(err)
	}
	if back.Successful != 1 {
		t.Fatalf("persisted batch = %+v", back)
	}
}

func TestSecondRunInvokesNoAdapters(t *testing.T) {
	dir := t.TempDir()
	writeVideo(t, dir, "X.mp4")
	o, prober, audio, transcriber, chapters, _ := newTestOrchestrator(t, dir)

	if _, err := o.ProcessDirectory(context.Background(), dir, ""); err != nil {
		t.Fatal(err)
	}
	prober.probeCalls = 0
	audio.extractCalls = 0
	transcriber.calls = 0
	chapters.calls = 0

	batch, err := o.ProcessDirectory(context.Background(), dir, "")
	if err != nil {
		t.Fatal(err)
	}
	if batch.Successful != 1 {
		t.Fatalf("batch = %+v", batch)
	}
	if prober.probeCalls != 0 || audio.extractCalls != 0 || transcriber.calls != 0 || chapters.calls != 0 {
		t.Fatalf("adapters invoked on idempotent rerun: probe=%d extract=%d transcribe=%d chapters=%d",
			prober.probeCalls, audio.extractCalls, transcriber.calls, chapters.calls)
	}
}

func TestModTimeChangeRerunsEveryStage(t *testing.T) {
	dir := t.TempDir()
	path := writeVideo(t, dir, "X.mp4")
	o, prober, _, _, _, _ := newTestOrchestrator(t, dir)

	if _, err := o.ProcessDirectory(context.Background(), dir, ""); err != nil {
		t.Fatal(err)
	}
	prober.probeCalls = 0

	// Touch the source; every stage must re-execute.
	later := time.Now().Add(time.Minute)
	if err := os.Chtimes(path, later, later); err != nil {
		t.Fatal(err)
	}

	if _, err := o.ProcessDirectory(context.Background(), dir, ""); err != nil {
		t.Fatal(err)
	}
	if prober.probeCalls != 1 {
		t.Fatalf("probe calls after mtime change = %d, want 1", prober.probeCalls)
	}
}

func TestProbeFailureIsFatalForVideo(t *testing.T) {
	dir := t.TempDir()
	writeVideo(t, dir, "X.mp4")
	o, prober, audio, _, _, _ := newTestOrchestrator(t, dir)
	prober.failProbe = true

	batch, err := o.ProcessDirectory(context.Background(), dir, "")
	if err != nil {
		t.Fatal(err)
	}
	if batch.Failed != 1 {
		t.Fatalf("batch = %+v", batch)
	}
	if audio.extractCalls != 0 {
		t.Fatal("extraction ran after fatal probe failure")
	}
	result := batch.Results[0]
	if result.Status != domain.StatusFailed || result.ErrorMessage == "" {
		t.Fatalf("result = %+v", result)
	}
}

func TestExtractionFailureIsFatalButAnalysisPersists(t *testing.T) {
	dir := t.TempDir()
	writeVideo(t, dir, "X.mp4")
	o, _, audio, transcriber, _, _ := newTestOrchestrator(t, dir)
	audio.failExtract = true

	batch, err := o.ProcessDirectory(context.Background(), dir, "")
	if err != nil {
		t.Fatal(err)
	}
	if batch.Failed != 1 {
		t.Fatalf("batch = %+v", batch)
	}
	if transcriber.calls != 0 {
		t.Fatal("transcription ran after fatal extraction failure")
	}
	// The sidecar keeps the analysis stage so a later retry skips it.
	result := batch.Results[0]
	found := false
	for _, st := range result.StagesCompleted {
		if st == domain.StageVideoAnalysis {
			found = true
		}
	}
	if !found {
		t.Fatal("analysis not retained on partial record")
	}
}

func TestCorrectionRenameProtocol(t *testing.T) {
	dir := t.TempDir()
	writeVideo(t, dir, "X.mp4")
	o, _, _, _, _, _ := newTestOrchestrator(t, dir)
	o.EnableCorrection = true
	o.Corrector = stubCorrector{set: domain.CorrectionSet{Replacements: []domain.Replacement{
		{Original: "coast guard", Replacement: "closed guard"},
	}}}

	if _, err := o.ProcessDirectory(context.Background(), dir, ""); err != nil {
		t.Fatal(err)
	}

	oldText, err := os.ReadFile(filepath.Join(dir, "X_old.txt"))
	if err != nil {
		t.Fatal("original transcript not preserved under _old.txt")
	}
	if !strings.Contains(string(oldText), "coast guard") {
		t.Fatalf("old text = %q", oldText)
	}
	newText, err := os.ReadFile(filepath.Join(dir, "X.txt"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(newText), "closed guard") {
		t.Fatalf("corrected text = %q", newText)
	}
	newSRT, err := os.ReadFile(filepath.Join(dir, "X.srt"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(newSRT), "closed guard") {
		t.Fatalf("corrected srt = %q", newSRT)
	}
	if _, err := os.Stat(filepath.Join(dir, "X_old.srt")); err != nil {
		t.Fatal("original srt not preserved under _old.srt")
	}
	if _, err := os.Stat(filepath.Join(dir, "X_corrected.txt")); err != nil {
		t.Fatal("corrected marker file missing")
	}
}

func TestCorrectorFailureIsTolerated(t *testing.T) {
	dir := t.TempDir()
	writeVideo(t, dir, "X.mp4")
	o, _, _, _, _, _ := newTestOrchestrator(t, dir)
	o.EnableCorrection = true
	o.Corrector = stubCorrector{err: domain.ErrCorrectionFailed}

	batch, err := o.ProcessDirectory(context.Background(), dir, "")
	if err != nil {
		t.Fatal(err)
	}
	if batch.Successful != 1 {
		t.Fatalf("batch = %+v", batch)
	}
}
