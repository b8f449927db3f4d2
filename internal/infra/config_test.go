package infra

import (
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("AI_WEBHOOK_URL", "https://ai.example.com/hook")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("PORT", "")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.Port != "8080" {
		t.Fatalf("Port = %q, want 8080", cfg.Port)
	}
	if cfg.DatabaseURL != "" {
		t.Fatalf("DatabaseURL = %q, want empty (memory store)", cfg.DatabaseURL)
	}
	if cfg.JobRingCapacity != 10 {
		t.Fatalf("JobRingCapacity = %d, want 10", cfg.JobRingCapacity)
	}
	if cfg.JobTimeout != 5*time.Minute {
		t.Fatalf("JobTimeout = %s, want 5m", cfg.JobTimeout)
	}
	if cfg.SweepInterval != 10*time.Second {
		t.Fatalf("SweepInterval = %s, want 10s", cfg.SweepInterval)
	}
	if cfg.CallbackBaseURL != "http://localhost:8080" {
		t.Fatalf("CallbackBaseURL = %q", cfg.CallbackBaseURL)
	}
	if len(cfg.AllowedOrigins) != 1 || cfg.AllowedOrigins[0] != "*" {
		t.Fatalf("AllowedOrigins = %#v", cfg.AllowedOrigins)
	}
}

func TestLoadConfigRequiresWebhookURL(t *testing.T) {
	t.Setenv("AI_WEBHOOK_URL", "")

	if _, err := LoadConfig(); err == nil {
		t.Fatal("expected error when AI_WEBHOOK_URL is unset")
	}
}

func TestLoadConfigRejectsZeroCapacity(t *testing.T) {
	t.Setenv("AI_WEBHOOK_URL", "https://ai.example.com/hook")
	t.Setenv("JOB_RING_CAPACITY", "0")

	if _, err := LoadConfig(); err == nil {
		t.Fatal("expected error for JOB_RING_CAPACITY=0")
	}
}

func TestLoadConfigParsesOriginsAndTimeouts(t *testing.T) {
	t.Setenv("AI_WEBHOOK_URL", "https://ai.example.com/hook")
	t.Setenv("ALLOWED_ORIGINS", "https://app.example.com, https://staging.example.com ")
	t.Setenv("JOB_TIMEOUT_SECONDS", "120")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	want := []string{"https://app.example.com", "https://staging.example.com"}
	if len(cfg.AllowedOrigins) != len(want) {
		t.Fatalf("AllowedOrigins = %#v, want %#v", cfg.AllowedOrigins, want)
	}
	for i := range want {
		if cfg.AllowedOrigins[i] != want[i] {
			t.Fatalf("AllowedOrigins[%d] = %q, want %q", i, cfg.AllowedOrigins[i], want[i])
		}
	}
	if cfg.JobTimeout != 2*time.Minute {
		t.Fatalf("JobTimeout = %s, want 2m", cfg.JobTimeout)
	}
}
