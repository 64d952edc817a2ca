package config

import (
	"errors"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// Config holds application configuration
type Config struct {
	// Server
	HTTPAddr string
	LogLevel string

	// Gemini API
	GeminiAPIKey      string
	GeminiAPIEndpoint string // if set, overrides default Gemini API base URL (e.g. http://localhost:31300/gemini)
	GeminiModelImage  string // image model, e.g. gemini-2.5-flash-image
	GeminiAspectRatio string // requested output aspect ratio, e.g. 3:4

	// Upload
	MaxFileSize int64 // max size of an uploaded photo in bytes (default 10MB)

	// Sessions
	SessionTTL time.Duration // idle time after which a browser session is dropped

	// Rate limiting of the /v1 API per client IP
	RateLimitRPS   float64
	RateLimitBurst int
}

// ErrMissingAPIKey is returned by Validate when no Gemini credential is configured.
var ErrMissingAPIKey = errors.New("GEMINI_API_KEY is required")

// Load loads configuration from environment variables.
// A .env file in the working directory is read first when present; real
// environment variables win over it.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("No .env file found, using environment variables")
	}

	return &Config{
		HTTPAddr: getEnv("HTTP_ADDR", ":8080"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		GeminiAPIKey:      getEnv("GEMINI_API_KEY", ""),
		GeminiAPIEndpoint: getEnv("GEMINI_API_ENDPOINT", ""),
		GeminiModelImage:  getEnv("GEMINI_MODEL_IMAGE", "gemini-2.5-flash-image"),
		GeminiAspectRatio: getEnv("GEMINI_ASPECT_RATIO", "3:4"),

		MaxFileSize: getEnvInt64("MAX_FILE_SIZE", 10*1024*1024), // 10MB

		SessionTTL: getEnvDuration("SESSION_TTL", 2*time.Hour),

		RateLimitRPS:   getEnvFloat("RATE_LIMIT_RPS", 5),
		RateLimitBurst: clampMin(getEnvInt("RATE_LIMIT_BURST", 20), 1),
	}
}

// Validate reports configuration that would make the service unusable.
func (c *Config) Validate() error {
	if c.GeminiAPIKey == "" {
		return ErrMissingAPIKey
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// clampMin returns v if v >= min, otherwise min. Used to ensure config values are in valid range.
func clampMin(v, min int) int {
	if v < min {
		return min
	}
	return v
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
