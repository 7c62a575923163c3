package app

import (
	"os"
	"runtime"
	"strconv"
	"strings"
)

type Config struct {
	HTTPAddr                 string
	VideoDir                 string
	OutputDir                string
	StateDirName             string
	ChaptersDir              string
	LogLevel                 string
	LogFormat                string
	Workers                  int
	CacheTTLHours            int
	HTTPTimeoutSeconds       int
	ProbeTimeoutSeconds      int
	TranscribeTimeoutSeconds int
	FFMPEGPath               string
	FFProbePath              string
	WhisperPath              string
	WhisperModel             string
	Language                 string
	EnableEnhancement        bool
	EnableCorrection         bool
	LLMEndpoint              string
	LLMModel                 string
	LLMAPIKey                string
	LLMTimeoutSeconds        int
	LLMMaxTokens             int
	LLMTemperature           float64
	BJJTermsFile             string
	CORSAllowedOrigins       []string
}

func LoadConfig() Config {
	return Config{
		HTTPAddr:                 getEnv("HTTP_ADDR", ":8080"),
		VideoDir:                 getEnv("VIDEO_DIR", "videos"),
		OutputDir:                getEnv("OUTPUT_DIR", ""),
		StateDirName:             getEnv("STATE_DIR_NAME", ".bjj_analyzer_state"),
		ChaptersDir:              getEnv("CHAPTERS_DIR", "chapters"),
		LogLevel:                 strings.ToLower(getEnv("LOG_LEVEL", "info")),
		LogFormat:                strings.ToLower(getEnv("LOG_FORMAT", "text")),
		Workers:                  int(getEnvInt64("WORKERS", int64(defaultWorkers()))),
		CacheTTLHours:            int(getEnvInt64("CHAPTER_CACHE_TTL_HOURS", 24)),
		HTTPTimeoutSeconds:       int(getEnvInt64("HTTP_TIMEOUT_SECONDS", 30)),
		ProbeTimeoutSeconds:      int(getEnvInt64("PROBE_TIMEOUT_SECONDS", 30)),
		TranscribeTimeoutSeconds: int(getEnvInt64("TRANSCRIBE_TIMEOUT_SECONDS", 3600)),
		FFMPEGPath:               getEnv("FFMPEG_PATH", "ffmpeg"),
		FFProbePath:              getEnv("FFPROBE_PATH", "ffprobe"),
		WhisperPath:              getEnv("WHISPER_PATH", "whisper"),
		WhisperModel:             getEnv("WHISPER_MODEL", "base"),
		Language:                 getEnv("TRANSCRIBE_LANGUAGE", ""),
		EnableEnhancement:        getEnvBool("ENABLE_AUDIO_ENHANCEMENT", false),
		EnableCorrection:         getEnvBool("ENABLE_LLM_CORRECTION", false),
		LLMEndpoint:              getEnv("LLM_ENDPOINT", "http://localhost:1234/v1/chat/completions"),
		LLMModel:                 getEnv("LLM_MODEL", "local-model"),
		LLMAPIKey:                getEnv("LLM_API_KEY", ""),
		LLMTimeoutSeconds:        int(getEnvInt64("LLM_TIMEOUT_SECONDS", 60)),
		LLMMaxTokens:             int(getEnvInt64("LLM_MAX_TOKENS", 2048)),
		LLMTemperature:           getEnvFloat64("LLM_TEMPERATURE", 0.1),
		BJJTermsFile:             getEnv("BJJ_TERMS_FILE", ""),
		CORSAllowedOrigins:       parseCSV(getEnv("CORS_ALLOWED_ORIGINS", "")),
	}
}

// defaultWorkers caps the pool at 8; transcription saturates a core per task.
func defaultWorkers() int {
	n := runtime.NumCPU()
	if n > 8 {
		return 8
	}
	if n < 1 {
		return 1
	}
	return n
}

func parseCSV(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if v := strings.TrimSpace(p); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt64(key string, fallback int64) int64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return fallback
	}
	if parsed < 0 {
		return fallback
	}
	return parsed
}

func getEnvFloat64(key string, fallback float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	switch value {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}
