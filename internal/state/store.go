// Package state persists per-video pipeline progress as JSON sidecars in a
// hidden directory next to the videos. One file per video; no database.
package state

import (
	"encoding/json"
	"fmt"
	"hash/fnv"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/renameio/v2"

	"bjjanalyzer/internal/domain"
)

// Store is the sidecar repository. The in-memory map is guarded by an
// RWMutex; writes for one identity key are serialized by a per-key mutex
// so the worker pool does not serialize on a global lock.
type Store struct {
	dir    string
	logger *slog.Logger

	mu      sync.RWMutex
	records map[string]domain.StateRecord

	keyMu sync.Mutex
	locks map[string]*sync.Mutex
}

// Stats summarizes the store's contents.
type Stats struct {
	Total      int `json:"total"`
	Completed  int `json:"completed"`
	InProgress int `json:"inProgress"`
}

// Open creates the state directory if absent and loads every parseable
// sidecar. Corrupt sidecars are logged and skipped, never deleted.
func Open(dir string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create state dir: %w", err)
	}

	s := &Store{
		dir:     dir,
		logger:  logger,
		records: make(map[string]domain.StateRecord),
		locks:   make(map[string]*sync.Mutex),
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read state dir: %w", err)
	}
	loaded := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			logger.Warn("state: read sidecar failed",
				slog.String("path", path),
				slog.String("error", err.Error()))
			continue
		}
		var rec domain.StateRecord
		if err := json.Unmarshal(data, &rec); err != nil || rec.Key == "" {
			logger.Warn("state: skipping unparseable sidecar",
				slog.String("path", path))
			continue
		}
		s.records[rec.Key] = rec
		loaded++
	}
	logger.Debug("state: store opened", slog.Int("loaded", loaded))
	return s, nil
}

// keyLock returns the mutex serializing writes for one identity key.
func (s *Store) keyLock(key string) *sync.Mutex {
	s.keyMu.Lock()
	defer s.keyMu.Unlock()
	if m, ok := s.locks[key]; ok {
		return m
	}
	m := &sync.Mutex{}
	s.locks[key] = m
	return m
}

// GetOrCreate returns the cached record when the source file is unchanged
// (same mtime, non-zero size); otherwise it builds a fresh Pending record.
func (s *Store) GetOrCreate(v domain.Video) (domain.StateRecord, error) {
	key := v.Key()

	s.mu.RLock()
	rec, ok := s.records[key]
	s.mu.RUnlock()

	if ok && rec.SourceModTime == v.ModTime.Unix() && v.Size > 0 {
		return rec, nil
	}
	if ok {
		s.logger.Info("state: source changed, rebuilding record",
			slog.String("key", key))
	}

	rec = domain.NewStateRecord(v)
	s.mu.Lock()
	s.records[key] = rec
	s.mu.Unlock()
	return rec, nil
}

// Update replaces the in-memory entry and atomically rewrites the sidecar.
func (s *Store) Update(rec domain.StateRecord) error {
	lock := s.keyLock(rec.Key)
	lock.Lock()
	defer lock.Unlock()

	s.mu.Lock()
	s.records[rec.Key] = rec
	s.mu.Unlock()

	return s.writeSidecar(rec)
}

// CanSkip reports whether a stage is already recorded as completed.
func (s *Store) CanSkip(rec domain.StateRecord, stage domain.Stage) bool {
	return rec.HasCompleted(stage)
}

// MarkCompleted records the stage on the record and persists it.
func (s *Store) MarkCompleted(rec *domain.StateRecord, stage domain.Stage, elapsedSeconds float64) error {
	rec.MarkCompleted(stage, elapsedSeconds)
	return s.Update(*rec)
}

// Reset removes the given stages from the record and rewinds the current
// stage to the least stage removed. With no stages it deletes the record
// and its sidecar entirely.
func (s *Store) Reset(v domain.Video, stages ...domain.Stage) error {
	key := v.Key()
	lock := s.keyLock(key)
	lock.Lock()
	defer lock.Unlock()

	s.mu.Lock()
	rec, ok := s.records[key]
	s.mu.Unlock()
	if !ok {
		return domain.ErrNotFound
	}

	if len(stages) == 0 {
		s.mu.Lock()
		delete(s.records, key)
		s.mu.Unlock()
		if err := os.Remove(s.sidecarPath(rec)); err != nil && !os.IsNotExist(err) {
			return err
		}
		return nil
	}

	remove := make(map[domain.Stage]bool, len(stages))
	least := stages[0]
	for _, st := range stages {
		remove[st] = true
		if st < least {
			least = st
		}
	}
	kept := rec.CompletedStages[:0]
	for _, st := range rec.CompletedStages {
		if !remove[st] {
			kept = append(kept, st)
		}
	}
	rec.CompletedStages = kept
	rec.CurrentStage = least
	rec.ErrorMessage = ""

	s.mu.Lock()
	s.records[key] = rec
	s.mu.Unlock()
	return s.writeSidecar(rec)
}

// Cleanup drops records whose backing video is gone and removes their
// sidecars. Returns the number of evicted records.
func (s *Store) Cleanup() (int, error) {
	s.mu.RLock()
	var stale []domain.StateRecord
	for _, rec := range s.records {
		if _, err := os.Stat(rec.SourcePath); os.IsNotExist(err) {
			stale = append(stale, rec)
		}
	}
	s.mu.RUnlock()

	for _, rec := range stale {
		s.mu.Lock()
		delete(s.records, rec.Key)
		s.mu.Unlock()
		if err := os.Remove(s.sidecarPath(rec)); err != nil && !os.IsNotExist(err) {
			s.logger.Warn("state: remove sidecar failed",
				slog.String("key", rec.Key),
				slog.String("error", err.Error()))
		}
	}
	if len(stale) > 0 {
		s.logger.Info("state: evicted records for missing videos",
			slog.Int("count", len(stale)))
	}
	return len(stale), nil
}

// Stats returns store-wide counts.
func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := Stats{Total: len(s.records)}
	for _, rec := range s.records {
		if rec.CurrentStage == domain.StageCompleted {
			st.Completed++
		} else {
			st.InProgress++
		}
	}
	return st
}

func (s *Store) writeSidecar(rec domain.StateRecord) error {
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal sidecar: %w", err)
	}
	path := s.sidecarPath(rec)
	if err := renameio.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write sidecar: %w", err)
	}
	return nil
}

// sidecarPath derives the sidecar filename from the video filename with
// whitespace and dots replaced by underscores. An fnv hash of the full
// identity key is appended so two videos whose sanitized names collide
// still get distinct sidecars.
func (s *Store) sidecarPath(rec domain.StateRecord) string {
	name := filepath.Base(rec.SourcePath)
	sanitized := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '.':
			return '_'
		default:
			return r
		}
	}, name)
	h := fnv.New32a()
	h.Write([]byte(rec.Key))
	return filepath.Join(s.dir, fmt.Sprintf("%s_%08x.json", sanitized, h.Sum32()))
}
