// Package config centralizes how the API and worker read environment
// variables and exposes them as strongly typed values.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config represents runtime configuration shared by the server and worker.
type Config struct {
	Address string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	S3Endpoint    string
	S3AccessKey   string
	S3SecretKey   string
	S3Region      string
	S3UseSSL      bool
	UploadBucket  string
	SummaryBucket string

	OllamaURL    string
	TextModel    string
	VisionModel  string
	WhisperModel string

	MaxFileSize  int64
	TempDir      string
	TempMaxAge   time.Duration
	TempInterval time.Duration

	SessionTTL      time.Duration
	RotationWindow  time.Duration
	ResultRetention time.Duration
	SignedURLTTL    time.Duration

	Concurrency int
}

const (
	defaultAddress      = ":8000"
	defaultRedisAddr    = "localhost:6379"
	defaultMaxFileSize  = 50 << 20 // 50 MiB
	defaultSessionTTL   = 24 * time.Hour
	defaultRotation     = time.Hour
	defaultRetention    = 24 * time.Hour
	defaultSignedTTL    = 5 * time.Minute
	defaultTempMaxAge   = time.Hour
	defaultTempInterval = 30 * time.Minute
	defaultConcurrency  = 2
)

// Load reads configuration from environment variables falling back to defaults.
func Load() (*Config, error) {
	cfg := &Config{
		Address:         readEnv("SYNTHIA_ADDRESS", defaultAddress),
		RedisAddr:       readEnv("SYNTHIA_REDIS_ADDR", defaultRedisAddr),
		RedisPassword:   readEnv("SYNTHIA_REDIS_PASSWORD", ""),
		RedisDB:         parseInt("SYNTHIA_REDIS_DB", 0),
		S3Endpoint:      readEnv("SYNTHIA_S3_ENDPOINT", "localhost:9000"),
		S3AccessKey:     readEnv("SYNTHIA_S3_ACCESS_KEY", "minioadmin"),
		S3SecretKey:     readEnv("SYNTHIA_S3_SECRET_KEY", "minioadmin"),
		S3Region:        readEnv("SYNTHIA_S3_REGION", "us-east-1"),
		S3UseSSL:        parseBool("SYNTHIA_S3_USE_SSL", false),
		UploadBucket:    readEnv("SYNTHIA_UPLOAD_BUCKET", "synthia-uploads"),
		SummaryBucket:   readEnv("SYNTHIA_SUMMARY_BUCKET", "synthia-summaries"),
		OllamaURL:       readEnv("SYNTHIA_OLLAMA_URL", "http://localhost:11434/api/generate"),
		TextModel:       readEnv("SYNTHIA_TEXT_MODEL", "deepseek-r1:1.5b"),
		VisionModel:     readEnv("SYNTHIA_VISION_MODEL", "llava:7b"),
		WhisperModel:    readEnv("SYNTHIA_WHISPER_MODEL", "base"),
		MaxFileSize:     parseInt64("SYNTHIA_MAX_FILE_BYTES", defaultMaxFileSize),
		TempDir:         readEnv("SYNTHIA_TEMP_DIR", os.TempDir()),
		TempMaxAge:      parseDuration("SYNTHIA_TEMP_MAX_AGE", defaultTempMaxAge),
		TempInterval:    parseDuration("SYNTHIA_TEMP_CLEANUP_INTERVAL", defaultTempInterval),
		SessionTTL:      parseDuration("SYNTHIA_SESSION_TTL", defaultSessionTTL),
		RotationWindow:  parseDuration("SYNTHIA_KEY_ROTATION_WINDOW", defaultRotation),
		ResultRetention: parseDuration("SYNTHIA_RESULT_RETENTION", defaultRetention),
		SignedURLTTL:    parseDuration("SYNTHIA_SIGNED_TTL", defaultSignedTTL),
		Concurrency:     parseInt("SYNTHIA_WORKERS", defaultConcurrency),
	}
	if cfg.MaxFileSize <= 0 {
		cfg.MaxFileSize = defaultMaxFileSize
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaultConcurrency
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = defaultSessionTTL
	}
	if cfg.RotationWindow <= 0 {
		cfg.RotationWindow = defaultRotation
	}
	return cfg, nil
}

func readEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func parseInt(key string, def int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return def
}

func parseInt64(key string, def int64) int64 {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if parsed, err := strconv.ParseInt(v, 10, 64); err == nil {
			return parsed
		}
	}
	return def
}

func parseBool(key string, def bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if parsed, err := strconv.ParseBool(v); err == nil {
			return parsed
		}
	}
	return def
}

func parseDuration(key string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			return parsed
		}
	}
	return def
}
