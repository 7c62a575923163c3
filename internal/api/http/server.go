// Package apihttp is the thin status surface over the pipeline: health,
// video listing, last batch result, live progress over websocket, metrics.
package apihttp

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/time/rate"

	"bjjanalyzer/internal/detect"
	"bjjanalyzer/internal/domain"
	"bjjanalyzer/internal/domain/ports"
	"bjjanalyzer/internal/state"
)

// Server exposes pipeline status. It holds the progress hub handed to the
// orchestrator as its publisher.
type Server struct {
	VideoDir string
	Store    *state.Store
	Logger   *slog.Logger
	CORS     []string

	hub *wsHub

	mu        sync.RWMutex
	lastBatch *domain.BatchResult
}

// New builds the server and starts its hub.
func New(videoDir string, store *state.Store, logger *slog.Logger, cors []string) *Server {
	s := &Server{
		VideoDir: videoDir,
		Store:    store,
		Logger:   logger,
		CORS:     cors,
		hub:      newWSHub(logger),
	}
	go s.hub.run()
	return s
}

// Publisher returns the progress publisher for the orchestrator.
func (s *Server) Publisher() ports.ProgressPublisher {
	return s.hub
}

// SetBatchResult records the most recent batch for /api/results.
func (s *Server) SetBatchResult(batch domain.BatchResult) {
	s.mu.Lock()
	s.lastBatch = &batch
	s.mu.Unlock()
}

// Close shuts the hub down.
func (s *Server) Close() {
	s.hub.Close()
}

// Handler assembles the route tree with the middleware chain.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /api/videos", s.handleVideos)
	mux.HandleFunc("GET /api/results", s.handleResults)
	mux.HandleFunc("/ws", s.hub.handleWS)
	mux.Handle("GET /metrics", promhttp.Handler())

	limiter := rate.NewLimiter(rate.Limit(50), 100)
	var h http.Handler = mux
	h = rateLimitMiddleware(limiter, h)
	h = corsMiddleware(s.CORS, h)
	h = loggingMiddleware(s.Logger, h)
	h = recoverMiddleware(s.Logger, h)
	return otelhttp.NewHandler(h, "bjj-analyzer",
		otelhttp.WithFilter(func(r *http.Request) bool {
			return r.URL.Path != "/healthz" && r.URL.Path != "/metrics"
		}))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

type videoStatus struct {
	Key           string       `json:"key"`
	Filename      string       `json:"filename"`
	DetectedStage domain.Stage `json:"detectedStage"`
	CurrentStage  domain.Stage `json:"currentStage"`
	Progress      int          `json:"progress"`
	Error         string       `json:"error,omitempty"`
}

func (s *Server) handleVideos(w http.ResponseWriter, r *http.Request) {
	videos, err := detect.Scan(s.VideoDir)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	out := make([]videoStatus, 0, len(videos))
	for _, v := range videos {
		vs := videoStatus{
			Key:           v.Key(),
			Filename:      v.Filename(),
			DetectedStage: v.DetectedStage,
			CurrentStage:  v.DetectedStage,
			Progress:      v.DetectedStage.Progress(),
		}
		if rec, err := s.Store.GetOrCreate(v); err == nil {
			vs.CurrentStage = rec.CurrentStage
			vs.Progress = rec.CurrentStage.Progress()
			vs.Error = rec.ErrorMessage
		}
		out = append(out, vs)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"videos": out,
		"stats":  s.Store.Stats(),
	})
}

func (s *Server) handleResults(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	batch := s.lastBatch
	s.mu.RUnlock()
	if batch == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no batch has run yet"})
		return
	}
	writeJSON(w, http.StatusOK, batch)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
