package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	InputPath     string
	OutputPath    string
	SamplesPath   string
	ChatID        int64
	ModelFromID   string
	ThreadGap     time.Duration
	MaxContext    int
	IncludeMedia  bool
	StrictReplies bool
	DatabaseURL   string
	SQLitePath    string
	NatsURL       string
	NatsToken     string
	LogLevel      string
}

// Load reads the configuration from the environment, after loading a .env
// file from the working directory when one exists.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		InputPath:     envStr("TGCONV_INPUT", "result.json"),
		OutputPath:    envStr("TGCONV_OUTPUT", "conv.csv"),
		SamplesPath:   envStr("TGCONV_SAMPLES", ""),
		ChatID:        envInt64("TGCONV_CHAT_ID", 0),
		ModelFromID:   envStr("TGCONV_MODEL_FROM_ID", ""),
		ThreadGap:     envDuration("TGCONV_THREAD_GAP", 24*time.Hour),
		MaxContext:    envInt("TGCONV_MAX_CONTEXT", 4),
		IncludeMedia:  envBool("TGCONV_INCLUDE_MEDIA", false),
		StrictReplies: envBool("TGCONV_STRICT_REPLIES", false),
		DatabaseURL:   envStr("DATABASE_URL", ""),
		SQLitePath:    envStr("TGCONV_SQLITE_PATH", ""),
		NatsURL:       envStr("NATS_URL", ""),
		NatsToken:     envStr("NATS_TOKEN", ""),
		LogLevel:      envStr("LOG_LEVEL", "info"),
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
