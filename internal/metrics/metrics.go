package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	VideosProcessedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "analyzer",
		Name:      "videos_processed_total",
		Help:      "Total videos processed by final status.",
	}, []string{"status"})

	StageDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "analyzer",
		Name:      "stage_duration_seconds",
		Help:      "Wall-clock duration of pipeline stages in seconds.",
		Buckets:   []float64{0.1, 0.5, 1, 5, 15, 60, 300, 900, 3600},
	}, []string{"stage"})

	StageFailuresTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "analyzer",
		Name:      "stage_failures_total",
		Help:      "Total stage failures by stage (including tolerated ones).",
	}, []string{"stage"})

	StagesSkippedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "analyzer",
		Name:      "stages_skipped_total",
		Help:      "Total stages skipped because the sidecar marked them done.",
	}, []string{"stage"})

	ActiveWorkers = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "analyzer",
		Name:      "active_workers",
		Help:      "Number of worker permits currently held.",
	})

	ChapterCacheHits = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "analyzer",
		Name:      "chapter_cache_hits_total",
		Help:      "Total series chapter cache hits.",
	})

	ChapterCacheMisses = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "analyzer",
		Name:      "chapter_cache_misses_total",
		Help:      "Total series chapter cache misses.",
	})

	CorrectionsApplied = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "analyzer",
		Name:      "llm_corrections_applied_total",
		Help:      "Total transcript replacements applied.",
	})

	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "analyzer",
		Name:      "http_requests_total",
		Help:      "Total HTTP requests by method, path and status code.",
	}, []string{"method", "path", "status"})

	HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "analyzer",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration in seconds.",
		Buckets:   []float64{0.05, 0.1, 0.3, 0.5, 1, 2, 5},
	}, []string{"method", "path"})

	WSClients = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "analyzer",
		Name:      "ws_clients",
		Help:      "Number of connected progress websocket clients.",
	})
)

func Register(reg prometheus.Registerer) {
	reg.MustRegister(
		VideosProcessedTotal,
		StageDuration,
		StageFailuresTotal,
		StagesSkippedTotal,
		ActiveWorkers,
		ChapterCacheHits,
		ChapterCacheMisses,
		CorrectionsApplied,
		HTTPRequestsTotal,
		HTTPRequestDuration,
		WSClients,
	)
}
