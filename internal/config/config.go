// Package config provides application configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Port          string
	FrontendURL   string
	DBPath        string
	ProductsPath  string
	KnowledgePath string

	AI            AIConfig
	Context       ContextConfig
	TranscriptLog TranscriptLogConfig
}

// AIConfig selects and tunes the language-model provider.
type AIConfig struct {
	Provider         string // openai | openrouter | mock
	Model            string
	OpenAIAPIKey     string
	OpenRouterAPIKey string
	Timeout          time.Duration
}

// ContextConfig bounds per-turn context assembly.
type ContextConfig struct {
	TokenBudget   int
	HistoryTurns  int
	KnowledgeTopK int
	ProductTopK   int
}

// TranscriptLogConfig controls NDJSON conversation logging.
type TranscriptLogConfig struct {
	Enabled       bool
	Dir           string
	GlobalEnabled bool
	GlobalPath    string
	QueueSize     int
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	queueSize := getEnvInt("TRANSCRIPT_LOG_QUEUE_SIZE", 1000)
	if queueSize <= 0 {
		queueSize = 1000
	}

	cfg := &Config{
		Port:          getEnv("PORT", "8080"),
		FrontendURL:   getEnv("FRONTEND_URL", ""),
		DBPath:        getEnv("DB_PATH", "./data/assistant.db"),
		ProductsPath:  getEnv("PRODUCTS_PATH", "./data/products.json"),
		KnowledgePath: getEnv("KNOWLEDGE_PATH", "./data/knowledge.json"),
		AI: AIConfig{
			Provider:         getEnv("AI_PROVIDER", "mock"),
			Model:            getEnv("AI_MODEL", "gpt-4o-mini"),
			OpenAIAPIKey:     getEnv("OPENAI_API_KEY", ""),
			OpenRouterAPIKey: getEnv("OPENROUTER_API_KEY", ""),
			Timeout:          time.Duration(getEnvInt("AI_TIMEOUT_SECONDS", 30)) * time.Second,
		},
		Context: ContextConfig{
			TokenBudget:   getEnvInt("CONTEXT_TOKEN_BUDGET", 3000),
			HistoryTurns:  getEnvInt("CONTEXT_HISTORY_TURNS", 10),
			KnowledgeTopK: getEnvInt("CONTEXT_KNOWLEDGE_TOP_K", 5),
			ProductTopK:   getEnvInt("CONTEXT_PRODUCT_TOP_K", 6),
		},
		TranscriptLog: TranscriptLogConfig{
			Enabled:       getEnvBool("TRANSCRIPT_LOG_ENABLED", true),
			Dir:           getEnv("TRANSCRIPT_LOG_DIR", "./data/logs/transcripts"),
			GlobalEnabled: getEnvBool("TRANSCRIPT_LOG_GLOBAL_ENABLED", false),
			GlobalPath:    getEnv("TRANSCRIPT_LOG_GLOBAL_PATH", "./data/logs/transcripts/all.ndjson"),
			QueueSize:     queueSize,
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.DBPath == "" {
		return fmt.Errorf("DB_PATH cannot be empty")
	}
	switch c.AI.Provider {
	case "openai", "openrouter", "mock":
	default:
		return fmt.Errorf("AI_PROVIDER must be one of openai, openrouter, mock")
	}
	if c.AI.Provider == "openai" && c.AI.OpenAIAPIKey == "" {
		return fmt.Errorf("OPENAI_API_KEY is required when AI_PROVIDER=openai")
	}
	if c.AI.Provider == "openrouter" && c.AI.OpenRouterAPIKey == "" {
		return fmt.Errorf("OPENROUTER_API_KEY is required when AI_PROVIDER=openrouter")
	}
	if c.AI.Timeout <= 0 {
		return fmt.Errorf("AI_TIMEOUT_SECONDS must be > 0")
	}
	if c.Context.TokenBudget <= 0 {
		return fmt.Errorf("CONTEXT_TOKEN_BUDGET must be > 0")
	}
	if c.TranscriptLog.Enabled && c.TranscriptLog.Dir == "" {
		return fmt.Errorf("TRANSCRIPT_LOG_DIR cannot be empty")
	}
	if c.TranscriptLog.QueueSize <= 0 {
		return fmt.Errorf("TRANSCRIPT_LOG_QUEUE_SIZE must be > 0")
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	if env := os.Getenv("APP_ENV"); env != "" {
		return env == "development"
	}
	return c.FrontendURL == "" ||
		strings.Contains(c.FrontendURL, "localhost") ||
		strings.Contains(c.FrontendURL, "127.0.0.1")
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}
