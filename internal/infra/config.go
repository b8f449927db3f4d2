package infra

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv           string
	Port             string
	DatabaseURL      string
	AIWebhookURL     string
	CallbackBaseURL  string
	CallbackSecret   string
	StoragePath      string
	GeoIPDBPath      string
	AllowedOrigins   []string
	JobRingCapacity  int
	SweepInterval    time.Duration
	JobTimeout       time.Duration
	MailboxPoll      time.Duration
	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
	RateLimitPerMin  int
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
// DATABASE_URL is optional: when empty the server runs on the in-memory store.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:           getEnv("APP_ENV", "development"),
		Port:             getEnv("PORT", "8080"),
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		AIWebhookURL:     os.Getenv("AI_WEBHOOK_URL"),
		CallbackBaseURL:  getEnv("CALLBACK_BASE_URL", "http://localhost:8080"),
		CallbackSecret:   os.Getenv("CALLBACK_SECRET"),
		StoragePath:      getEnv("STORAGE_PATH", "./data"),
		GeoIPDBPath:      os.Getenv("GEOIP_DB_PATH"),
		AllowedOrigins:   splitCSV(getEnv("ALLOWED_ORIGINS", "*")),
		JobRingCapacity:  getEnvInt("JOB_RING_CAPACITY", 10),
		SweepInterval:    time.Second * time.Duration(getEnvInt("SWEEP_INTERVAL_SECONDS", 10)),
		JobTimeout:       time.Second * time.Duration(getEnvInt("JOB_TIMEOUT_SECONDS", 300)),
		MailboxPoll:      time.Second * time.Duration(getEnvInt("MAILBOX_POLL_SECONDS", 5)),
		HTTPReadTimeout:  time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout: time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 30)),
		HTTPIdleTimeout:  time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		RateLimitPerMin:  getEnvInt("RATE_LIMIT_PER_MINUTE", 30),
	}

	if cfg.AIWebhookURL == "" {
		return nil, fmt.Errorf("AI_WEBHOOK_URL is required")
	}
	if cfg.JobRingCapacity < 1 {
		return nil, fmt.Errorf("JOB_RING_CAPACITY must be at least 1")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
