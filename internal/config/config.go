package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Port           int
	NatsURL        string
	NatsToken      string
	DatabaseURL    string
	LogLevel       string
	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioSecure    bool
	Cadence        time.Duration
	CaptureFormat  string
	CaptureInput   string
	CatalogLimit   int
}

func Load() Config {
	return Config{
		Port:           envInt("REEL_PORT", 8760),
		NatsURL:        envStr("NATS_URL", ""),
		NatsToken:      envStr("NATS_TOKEN", ""),
		DatabaseURL:    envStr("DATABASE_URL", ""),
		LogLevel:       envStr("LOG_LEVEL", "info"),
		MinioEndpoint:  envStr("MINIO_ENDPOINT", ""),
		MinioAccessKey: envStr("MINIO_ACCESS_KEY", "minioadmin"),
		MinioSecretKey: envStr("MINIO_SECRET_KEY", "minioadmin"),
		MinioBucket:    envStr("MINIO_BUCKET", "artifacts"),
		MinioSecure:    envBool("MINIO_SECURE", false),
		Cadence:        envDur("RECORD_CADENCE", time.Second),
		CaptureFormat:  envStr("CAPTURE_FORMAT", "avfoundation"),
		CaptureInput:   envStr("CAPTURE_INPUT", ":default"),
		CatalogLimit:   envInt("CATALOG_LIMIT", 0),
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

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDur(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return fallback
}
