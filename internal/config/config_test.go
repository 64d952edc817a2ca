package config

import (
	"errors"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{"HTTP_ADDR", "GEMINI_API_KEY", "GEMINI_MODEL_IMAGE", "GEMINI_ASPECT_RATIO", "MAX_FILE_SIZE", "SESSION_TTL", "RATE_LIMIT_BURST"} {
		t.Setenv(key, "")
	}

	cfg := Load()

	if cfg.HTTPAddr != ":8080" {
		t.Errorf("HTTPAddr = %q", cfg.HTTPAddr)
	}
	if cfg.GeminiModelImage != "gemini-2.5-flash-image" {
		t.Errorf("GeminiModelImage = %q", cfg.GeminiModelImage)
	}
	if cfg.GeminiAspectRatio != "3:4" {
		t.Errorf("GeminiAspectRatio = %q", cfg.GeminiAspectRatio)
	}
	if cfg.MaxFileSize != 10*1024*1024 {
		t.Errorf("MaxFileSize = %d", cfg.MaxFileSize)
	}
	if cfg.SessionTTL != 2*time.Hour {
		t.Errorf("SessionTTL = %s", cfg.SessionTTL)
	}
	if !errors.Is(cfg.Validate(), ErrMissingAPIKey) {
		t.Errorf("Validate() = %v, want ErrMissingAPIKey", cfg.Validate())
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "secret")
	t.Setenv("MAX_FILE_SIZE", "1024")
	t.Setenv("SESSION_TTL", "15m")
	t.Setenv("RATE_LIMIT_RPS", "0.5")
	t.Setenv("RATE_LIMIT_BURST", "0")

	cfg := Load()

	if cfg.GeminiAPIKey != "secret" {
		t.Errorf("GeminiAPIKey = %q", cfg.GeminiAPIKey)
	}
	if cfg.MaxFileSize != 1024 {
		t.Errorf("MaxFileSize = %d", cfg.MaxFileSize)
	}
	if cfg.SessionTTL != 15*time.Minute {
		t.Errorf("SessionTTL = %s", cfg.SessionTTL)
	}
	if cfg.RateLimitRPS != 0.5 {
		t.Errorf("RateLimitRPS = %v", cfg.RateLimitRPS)
	}
	if cfg.RateLimitBurst != 1 {
		t.Errorf("RateLimitBurst = %d, want clamped to 1", cfg.RateLimitBurst)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() = %v", err)
	}
}

func TestLoad_InvalidValuesFallBack(t *testing.T) {
	t.Setenv("MAX_FILE_SIZE", "lots")
	t.Setenv("SESSION_TTL", "forever")

	cfg := Load()

	if cfg.MaxFileSize != 10*1024*1024 {
		t.Errorf("MaxFileSize = %d", cfg.MaxFileSize)
	}
	if cfg.SessionTTL != 2*time.Hour {
		t.Errorf("SessionTTL = %s", cfg.SessionTTL)
	}
}
