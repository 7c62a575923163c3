package chapters

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"bjjanalyzer/internal/domain"
)

type stubFetcher struct {
	body  string
	err   error
	calls int32
}

func (s *stubFetcher) Get(ctx context.Context, url string) (string, error) {
	atomic.AddInt32(&s.calls, 1)
	if s.err != nil {
		return "", s.err
	}
	return s.body, nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func setupVideo(t *testing.T) (domain.Video, string) {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "JustStandUpbyCraigJones1.mp4")
	if err := os.WriteFile(path, make([]byte, 100), 0o644); err != nil {
		t.Fatal(err)
	}
	info, _ := os.Stat(path)
	return domain.NewVideo(path, info.ModTime(), info.Size()), dir
}

func TestDetectFetchesParsesAndPersists(t *testing.T) {
	v, dir := setupVideo(t)
	writeProductPages(t, dir, "https://bjjfanatics.com/products/just-stand-up-by-craig-jones\n")

	fetcher := &stubFetcher{body: accordionPage}
	e := &Extractor{
		Fetcher: fetcher,
		Cache:   &Cache{Dir: filepath.Join(dir, "chapters"), TTLHours: 24},
		Logger:  quietLogger(),
	}
	parsed := domain.ParsedFilename{Instructor: "Craig Jones", SeriesName: "Just Stand Up", PartNumber: 1}

	chapters, err := e.Detect(context.Background(), v, 1200, parsed)
	if err != nil {
		t.Fatal(err)
	}
	if len(chapters) == 0 {
		t.Fatal("no chapters")
	}
	// Whole series fits in one video, so timestamps stay local.
	if chapters[0].Timestamp != 0 {
		t.Fatalf("first = %+v", chapters[0])
	}

	// Series markdown file written next to the video.
	if _, err := os.Stat(filepath.Join(dir, SeriesFileName(parsed))); err != nil {
		t.Fatal("series chapter file not written")
	}

	// Second call is served from cache/file; the fetcher is not hit again.
	if _, err := e.Detect(context.Background(), v, 1200, parsed); err != nil {
		t.Fatal(err)
	}
	if fetcher.calls != 1 {
		t.Fatalf("fetcher called %d times", fetcher.calls)
	}
}

func TestDetectHumanFileOverridesFetch(t *testing.T) {
	v, dir := setupVideo(t)
	parsed := domain.ParsedFilename{Instructor: "Craig Jones", SeriesName: "Just Stand Up"}

	// Human-authored chapter file present; no product-pages.txt at all.
	path := filepath.Join(dir, SeriesFileName(parsed))
	err := WriteChaptersFile(path, parsed, []domain.ChapterEntry{
		{Title: "Hand Fighting", Timestamp: 60},
	})
	if err != nil {
		t.Fatal(err)
	}

	fetcher := &stubFetcher{body: accordionPage}
	e := &Extractor{Fetcher: fetcher, Logger: quietLogger()}

	chapters, err := e.Detect(context.Background(), v, 1200, parsed)
	if err != nil {
		t.Fatal(err)
	}
	if len(chapters) != 1 || chapters[0].Title != "Hand Fighting" {
		t.Fatalf("chapters = %+v", chapters)
	}
	if fetcher.calls != 0 {
		t.Fatal("fetcher used despite human-authored file")
	}
}

func TestDetectMissingProductPagesFails(t *testing.T) {
	v, _ := setupVideo(t)
	e := &Extractor{Fetcher: &stubFetcher{}, Logger: quietLogger()}
	_, err := e.Detect(context.Background(), v, 1200, domain.ParsedFilename{Instructor: "Craig Jones", SeriesName: "Just Stand Up"})
	if !errors.Is(err, domain.ErrChapterConfiguration) {
		t.Fatalf("err = %v", err)
	}
}

func TestDetectFetchErrorPropagates(t *testing.T) {
	v, dir := setupVideo(t)
	writeProductPages(t, dir, "https://bjjfanatics.com/products/just-stand-up-by-craig-jones\n")
	e := &Extractor{
		Fetcher: &stubFetcher{err: domain.ErrChapterConfiguration},
		Logger:  quietLogger(),
	}
	_, err := e.Detect(context.Background(), v, 1200, domain.ParsedFilename{Instructor: "Craig Jones", SeriesName: "Just Stand Up"})
	if !errors.Is(err, domain.ErrChapterConfiguration) {
		t.Fatalf("err = %v", err)
	}
}

func TestRefreshInvalidatesAndRefetches(t *testing.T) {
	v, dir := setupVideo(t)
	writeProductPages(t, dir, "https://bjjfanatics.com/products/just-stand-up-by-craig-jones\n")
	fetcher := &stubFetcher{body: accordionPage}
	e := &Extractor{
		Fetcher: fetcher,
		Cache:   &Cache{Dir: filepath.Join(dir, "chapters"), TTLHours: 24},
		Logger:  quietLogger(),
	}
	parsed := domain.ParsedFilename{Instructor: "Craig Jones", SeriesName: "Just Stand Up"}

	if _, err := e.Detect(context.Background(), v, 1200, parsed); err != nil {
		t.Fatal(err)
	}
	if _, err := e.Refresh(context.Background(), v, parsed); err != nil {
		t.Fatal(err)
	}
	if fetcher.calls != 2 {
		t.Fatalf("fetcher calls = %d, want 2", fetcher.calls)
	}
}

func TestFetcherTimeoutConstruction(t *testing.T) {
	f := NewFetcher(5 * time.Second)
	if f.client.Timeout != 5*time.Second {
		t.Fatalf("timeout = %v", f.client.Timeout)
	}
}
