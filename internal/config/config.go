package config

import (
	"os"
	"strconv"
	"time"

	"pdf-review-server/internal/domain"
)

// AppConfig implements the domain.Config interface
type AppConfig struct {
	ServerPort  string
	LogLevel    string
	MaxFileSize int64
	SupabaseURL string
	SupabaseKey string

	GCPProjectID  string
	GCPLocation   string
	LLMModel      string
	LLMTimeout    time.Duration
	LLMMaxRetries int

	// Matcher thresholds are configuration, not invariants: the stock values
	// come from observed model behavior, not principled tuning.
	WordMatchThreshold     float64
	SequenceMatchThreshold float64
}

// NewConfig creates a new configuration instance with default values
func NewConfig() domain.Config {
	return &AppConfig{
		// Cloud Run (and many PaaS) provide the listening port via PORT.
		// Keep SERVER_PORT for local/dev compatibility.
		ServerPort:  getEnvOrDefault("PORT", getEnvOrDefault("SERVER_PORT", "8080")),
		LogLevel:    getEnvOrDefault("LOG_LEVEL", "info"),
		MaxFileSize: getEnvInt64OrDefault("MAX_FILE_SIZE", 50*1024*1024), // 50MB default
		SupabaseURL: getEnvOrDefault("SUPABASE_URL", ""),
		SupabaseKey: getEnvOrDefault("SUPABASE_ANON_KEY", ""),

		GCPProjectID:  getEnvOrDefault("GCP_PROJECT_ID", ""),
		GCPLocation:   getEnvOrDefault("GCP_LOCATION", "us-central1"),
		LLMModel:      getEnvOrDefault("LLM_MODEL", "gemini-2.0-flash-001"),
		LLMTimeout:    time.Duration(getEnvIntOrDefault("LLM_TIMEOUT_SECONDS", 90)) * time.Second,
		LLMMaxRetries: getEnvIntOrDefault("LLM_MAX_RETRIES", 3),

		WordMatchThreshold:     getEnvFloatOrDefault("WORD_MATCH_THRESHOLD", 0.8),
		SequenceMatchThreshold: getEnvFloatOrDefault("SEQUENCE_MATCH_THRESHOLD", 0.85),
	}
}

// GetServerPort returns the server port
func (c *AppConfig) GetServerPort() string {
	return c.ServerPort
}

// GetLogLevel returns the logging level
func (c *AppConfig) GetLogLevel() string {
	return c.LogLevel
}

// GetMaxFileSize returns the maximum allowed upload size
func (c *AppConfig) GetMaxFileSize() int64 {
	return c.MaxFileSize
}

// GetSupabaseURL returns the Supabase URL
func (c *AppConfig) GetSupabaseURL() string {
	return c.SupabaseURL
}

// GetSupabaseKey returns the Supabase anon key
func (c *AppConfig) GetSupabaseKey() string {
	return c.SupabaseKey
}

// GetGCPProjectID returns the Vertex AI project
func (c *AppConfig) GetGCPProjectID() string {
	return c.GCPProjectID
}

// GetGCPLocation returns the Vertex AI location
func (c *AppConfig) GetGCPLocation() string {
	return c.GCPLocation
}

// GetLLMModel returns the review model name
func (c *AppConfig) GetLLMModel() string {
	return c.LLMModel
}

// GetLLMTimeout returns the per-attempt review model timeout
func (c *AppConfig) GetLLMTimeout() time.Duration {
	return c.LLMTimeout
}

// GetLLMMaxRetries returns the review model retry budget
func (c *AppConfig) GetLLMMaxRetries() int {
	return c.LLMMaxRetries
}

// GetWordMatchThreshold returns the word-match acceptance ratio
func (c *AppConfig) GetWordMatchThreshold() float64 {
	return c.WordMatchThreshold
}

// GetSequenceMatchThreshold returns the sequence-match acceptance ratio
func (c *AppConfig) GetSequenceMatchThreshold() float64 {
	return c.SequenceMatchThreshold
}

// Helper functions for environment variable handling
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt64OrDefault(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}
