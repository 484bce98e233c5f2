package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// generateWorkerID creates a unique worker ID using hostname and PID
func generateWorkerID() string {
	hostname, _ := os.Hostname()
	if hostname == "" {
		hostname = "triage"
	}
	return fmt.Sprintf("%s-%d", hostname, os.Getpid())
}

type Config struct {
	Port        string
	Environment string

	// Database
	DatabaseURL string
	RedisURL    string
	MongoDBURL  string
	MongoDBName string

	// OpenAI
	OpenAIAPIKey   string
	LLMModel       string
	EmbeddingModel string
	LLMMaxTokens   int
	LLMTemperature float64
	LLMTimeoutSec  int

	// OAuth - Google
	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURL  string

	// Action links
	ActionSecret  string
	ActionBaseURL string

	// Triage
	SimilarityThreshold float64
	MaxMessagesPerRun   int
	MinEmbedTextLen     int
	SummaryMaxChars     int

	// Retry
	RetryMax       int
	RetryBaseDelay time.Duration

	// Run lease
	RunLeaseTTL time.Duration

	// Scheduling
	BusinessHourStart int
	BusinessHourEnd   int
	SlotSearchDays    int
	AlternativeSlots  int

	// Worker
	WorkerID         string
	SchedulerEnabled bool
	RunIntervalSec   int

	// CORS
	AllowedOrigins []string
}

func Load() (*Config, error) {
	return &Config{
		Port:        getEnv("PORT", "8080"),
		Environment: getEnv("ENV", "development"),

		// Database
		DatabaseURL: getEnv("DATABASE_URL", ""),
		RedisURL:    getEnv("REDIS_URL", ""),
		MongoDBURL:  getEnv("MONGODB_URL", ""),
		MongoDBName: getEnv("MONGODB_DATABASE", "triage"),

		// OpenAI
		OpenAIAPIKey:   getEnv("OPENAI_API_KEY", ""),
		LLMModel:       getEnv("LLM_MODEL", "gpt-4o-mini"),
		EmbeddingModel: getEnv("EMBEDDING_MODEL", "text-embedding-ada-002"),
		LLMMaxTokens:   getEnvInt("LLM_MAX_TOKENS", 2048),
		LLMTemperature: getEnvFloat("LLM_TEMPERATURE", 0.2),
		LLMTimeoutSec:  getEnvInt("LLM_TIMEOUT_SEC", 60),

		// OAuth - Google
		GoogleClientID:     getEnv("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret: getEnv("GOOGLE_CLIENT_SECRET", ""),
		GoogleRedirectURL:  getEnv("GOOGLE_REDIRECT_URL", ""),

		// Action links
		ActionSecret:  getEnv("ACTION_LINK_SECRET", ""),
		ActionBaseURL: getEnv("ACTION_LINK_BASE_URL", "http://localhost:8080"),

		// Triage
		SimilarityThreshold: getEnvFloat("TRIAGE_SIMILARITY_THRESHOLD", 0.65),
		MaxMessagesPerRun:   getEnvInt("TRIAGE_MAX_MESSAGES", 10),
		MinEmbedTextLen:     getEnvInt("TRIAGE_MIN_EMBED_TEXT_LEN", 10),
		SummaryMaxChars:     getEnvInt("TRIAGE_SUMMARY_MAX_CHARS", 12000),

		// Retry
		RetryMax:       getEnvInt("TRIAGE_RETRY_MAX", 5),
		RetryBaseDelay: time.Duration(getEnvInt("TRIAGE_RETRY_BASE_MS", 1000)) * time.Millisecond,

		// Run lease
		RunLeaseTTL: time.Duration(getEnvInt("TRIAGE_RUN_LEASE_TTL_SEC", 120)) * time.Second,

		// Scheduling
		BusinessHourStart: getEnvInt("SCHEDULE_BUSINESS_HOUR_START", 9),
		BusinessHourEnd:   getEnvInt("SCHEDULE_BUSINESS_HOUR_END", 17),
		SlotSearchDays:    getEnvInt("SCHEDULE_SLOT_SEARCH_DAYS", 3),
		AlternativeSlots:  getEnvInt("SCHEDULE_ALTERNATIVE_SLOTS", 3),

		// Worker
		WorkerID:         getEnv("WORKER_ID", generateWorkerID()),
		SchedulerEnabled: getEnvBool("SCHEDULER_ENABLED", true),
		RunIntervalSec:   getEnvInt("RUN_INTERVAL_SEC", 300),

		// CORS
		AllowedOrigins: getEnvSlice("ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
	}, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		return strings.Split(value, ",")
	}
	return defaultValue
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
