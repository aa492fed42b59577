// internal/infrastructure/config/config.go
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	// App
	AppVersion string
	LogLevel   string

	// Server
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// PostgreSQL (report store)
	PostgresURI string

	// MongoDB (message log)
	MongoURI      string
	MongoDB       string
	MongoUser     string
	MongoPassword string

	// Gmail
	GmailClientID     string
	GmailClientSecret string
	GmailRefreshToken string
	GmailMaxResults   int64

	// Fetch filters
	FetchUnreadOnly  bool
	FetchStarredOnly bool
	FetchSender      string
	FetchKeyword     string

	// Anthropic
	AnthropicAPIKey  string
	AnthropicModel   string
	AnthropicBaseURL string
	AnthropicTimeout time.Duration

	// Generation retry policy
	MaxRetries      int
	BackoffBase     time.Duration
	BackoffMax      time.Duration

	// Pipeline tunables
	CombinedTextMax  int
	MaxConversations int
	ScoreRulesPath   string
	HighThreshold    float64
	MediumThreshold  float64
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	// Load .env file if it exists
	godotenv.Load()

	// Set defaults and override with env vars
	config := &Config{
		AppVersion:   getEnv("APP_VERSION", "1.0.0"),
		LogLevel:     getEnv("LOG_LEVEL", "info"),
		Port:         getEnv("PORT", "8080"),
		ReadTimeout:  time.Duration(getEnvAsInt("READ_TIMEOUT", 30)) * time.Second,
		WriteTimeout: time.Duration(getEnvAsInt("WRITE_TIMEOUT", 30)) * time.Second,

		PostgresURI: getEnv("POSTGRES_DSN", "postgres://localhost:5432/maildigest"),

		MongoURI:      getEnv("MONGODB_DSN", "mongodb://localhost:27017"),
		MongoDB:       getEnv("MONGO_DB", "maildigest"),
		MongoUser:     getEnv("MONGO_USER", ""),
		MongoPassword: getEnv("MONGO_PASSWORD", ""),

		GmailClientID:     getEnv("GMAIL_CLIENT_ID", ""),
		GmailClientSecret: getEnv("GMAIL_CLIENT_SECRET", ""),
		GmailRefreshToken: getEnv("GMAIL_REFRESH_TOKEN", ""),
		GmailMaxResults:   int64(getEnvAsInt("GMAIL_MAX_RESULTS", 100)),

		FetchUnreadOnly:  getEnvAsBool("FETCH_UNREAD_ONLY", false),
		FetchStarredOnly: getEnvAsBool("FETCH_STARRED_ONLY", false),
		FetchSender:      getEnv("FETCH_SENDER", ""),
		FetchKeyword:     getEnv("FETCH_KEYWORD", ""),

		AnthropicAPIKey:  getEnv("ANTHROPIC_API_KEY", ""),
		AnthropicModel:   getEnv("ANTHROPIC_MODEL", "claude-3-5-sonnet-20241022"),
		AnthropicBaseURL: getEnv("ANTHROPIC_BASE_URL", "https://api.anthropic.com"),
		AnthropicTimeout: time.Duration(getEnvAsInt("ANTHROPIC_TIMEOUT", 60)) * time.Second,

		MaxRetries:  getEnvAsInt("GENERATION_MAX_RETRIES", 3),
		BackoffBase: time.Duration(getEnvAsInt("GENERATION_BACKOFF_BASE_MS", 2000)) * time.Millisecond,
		BackoffMax:  time.Duration(getEnvAsInt("GENERATION_BACKOFF_MAX_MS", 30000)) * time.Millisecond,

		CombinedTextMax:  getEnvAsInt("COMBINED_TEXT_MAX", 4000),
		MaxConversations: getEnvAsInt("MAX_CONVERSATIONS", 50),
		ScoreRulesPath:   getEnv("SCORE_RULES_PATH", ""),
		HighThreshold:    getEnvAsFloat("PRIORITY_HIGH_THRESHOLD", 20),
		MediumThreshold:  getEnvAsFloat("PRIORITY_MEDIUM_THRESHOLD", 10),
	}

	return config, nil
}

// Helper functions to get environment variables
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}
