package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port string

	// Provider selects the model runtime at startup: "ollama" (default) or
	// "anthropic". Routes keep their fixed model identifiers either way.
	Provider        string
	OllamaHost      string
	AnthropicAPIKey string

	HomePurchaseModel string
	RetirementModel   string

	SearchEndpoint     string
	MaxRounds          int
	MaxToolResultChars int
	RequestTimeout     time.Duration
	EnableThinking     bool

	// DatabaseURL enables the Postgres plan-audit repository when set.
	DatabaseURL string
}

func Load() Config {
	godotenv.Load()

	return Config{
		Port:               getEnv("PORT", "8000"),
		Provider:           getEnv("LLM_PROVIDER", "ollama"),
		OllamaHost:         os.Getenv("OLLAMA_HOST"),
		AnthropicAPIKey:    os.Getenv("ANTHROPIC_API_KEY"),
		HomePurchaseModel:  getEnv("HOME_PURCHASE_MODEL", "gemma3:27b"),
		RetirementModel:    getEnv("RETIREMENT_MODEL", "gemma3:27b"),
		SearchEndpoint:     getEnv("SEARCH_ENDPOINT", "https://searx.be/search"),
		MaxRounds:          getEnvInt("MAX_ROUNDS", 8),
		MaxToolResultChars: getEnvInt("MAX_TOOL_RESULT_CHARS", 8000),
		RequestTimeout:     getEnvDuration("REQUEST_TIMEOUT", 5*time.Minute),
		EnableThinking:     getEnvBool("ENABLE_THINKING", false),
		DatabaseURL:        os.Getenv("DB_URL"),
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return fallback
}
