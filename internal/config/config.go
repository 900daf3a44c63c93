package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all runtime configuration for the service. Every knob comes
// from the environment; clients are constructed once at startup and injected,
// never lazily on first use.
type Config struct {
	ProjectID           string
	VertexAIRegion      string
	GeminiModel         string
	StorageBucket       string
	FirestoreCollection string

	HTTPAddr   string
	AuthSecret string

	UploadMaxAttempts  int
	UploadBaseBackoff  time.Duration
	ExtractMaxAttempts int
	ExtractBaseBackoff time.Duration

	QueueWorkers  int
	QueueCapacity int

	SweepInterval     time.Duration
	SweepPendingAfter time.Duration
}

// Load reads configuration from the environment, applying defaults that match
// the reference deployment.
func Load() *Config {
	return &Config{
		ProjectID:           GetEnv("PROJECT_ID", ""),
		VertexAIRegion:      GetEnv("VERTEX_AI_REGION", "us-central1"),
		GeminiModel:         GetEnv("GEMINI_MODEL", "gemini-2.5-flash"),
		StorageBucket:       GetEnv("STORAGE_BUCKET", "pdfs"),
		FirestoreCollection: GetEnv("FIRESTORE_COLLECTION", "documents"),

		HTTPAddr:   GetEnv("HTTP_ADDR", ":8080"),
		AuthSecret: GetEnv("AUTH_SECRET", ""),

		UploadMaxAttempts:  getEnvAsInt("UPLOAD_MAX_ATTEMPTS", 3),
		UploadBaseBackoff:  getEnvAsDuration("UPLOAD_BASE_BACKOFF", 1*time.Second),
		ExtractMaxAttempts: getEnvAsInt("EXTRACT_MAX_ATTEMPTS", 3),
		ExtractBaseBackoff: getEnvAsDuration("EXTRACT_BASE_BACKOFF", 1500*time.Millisecond),

		QueueWorkers:  getEnvAsInt("QUEUE_WORKERS", 4),
		QueueCapacity: getEnvAsInt("QUEUE_CAPACITY", 64),

		SweepInterval:     getEnvAsDuration("SWEEP_INTERVAL", 5*time.Minute),
		SweepPendingAfter: getEnvAsDuration("SWEEP_PENDING_AFTER", 30*time.Minute),
	}
}

// Validate checks the settings the service cannot run without.
func (c *Config) Validate() error {
	if c.ProjectID == "" {
		return fmt.Errorf("PROJECT_ID environment variable must be set")
	}
	if c.StorageBucket == "" {
		return fmt.Errorf("STORAGE_BUCKET environment variable must be set")
	}
	if c.UploadMaxAttempts < 1 || c.ExtractMaxAttempts < 1 {
		return fmt.Errorf("retry attempt counts must be at least 1")
	}
	return nil
}

// GetEnv is a helper to read an environment variable or return a default value.
func GetEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}
