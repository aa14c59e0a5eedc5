// Package config loads all environment variables for the sitechat service.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the chat API service.
type Config struct {
	// Server
	APIHost string
	APIPort string

	// Database (chunk store written by the crawler)
	DatabaseURL string

	// Retrieval
	SearchCount     int
	SearchThreshold float64

	// Token budgeting
	ContextTokenCeiling int
	HistoryTokenCeiling int
	CharsPerToken       float64
	SafetyMargin        float64
	MinChunkTokens      int

	// Contextual query expansion
	QueryExpandMaxWords     int
	QueryExpandTurnMaxChars int

	// Source selection: URLs treated as generic/homepage pages
	PriorityURLs []string

	// Answer returned when retrieval comes back empty
	FallbackAnswer string

	// LLM
	LLMModel        string
	AnthropicAPIKey string
	LLMMaxTokens    int

	// Embedding sidecar
	EmbedEndpoint string

	// Rate limiting (per client IP)
	RateLimitPerMinute int

	// Admin auth
	AdminPasswordHash string
	JWTSecret         string
	JWTExpiryHours    int

	// Static chat widget directory
	WebDir string

	// Timeouts
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

const defaultFallbackAnswer = "I could not find any relevant information about that on this site. " +
	"Try rephrasing your question, or browse the site directly."

// Load reads configuration from environment variables with sensible defaults.
func Load() (*Config, error) {
	cfg := &Config{
		APIHost: envOr("API_HOST", "0.0.0.0"),
		APIPort: envOr("API_PORT", "8000"),

		DatabaseURL: os.Getenv("DATABASE_URL"),

		SearchCount:     envInt("SEARCH_COUNT", 8),
		SearchThreshold: envFloat("SEARCH_THRESHOLD", 0.35),

		ContextTokenCeiling: envInt("CONTEXT_TOKEN_CEILING", 3000),
		HistoryTokenCeiling: envInt("HISTORY_TOKEN_CEILING", 20000),
		CharsPerToken:       envFloat("TOKEN_CHARS_PER_TOKEN", 0.25),
		SafetyMargin:        envFloat("CONTEXT_SAFETY_MARGIN", 0.05),
		MinChunkTokens:      envInt("MIN_CHUNK_TOKENS", 50),

		QueryExpandMaxWords:     envInt("QUERY_EXPAND_MAX_WORDS", 3),
		QueryExpandTurnMaxChars: envInt("QUERY_EXPAND_TURN_MAX_CHARS", 200),

		PriorityURLs: envList("PRIORITY_URLS"),

		FallbackAnswer: envOr("FALLBACK_ANSWER", defaultFallbackAnswer),

		LLMModel:        envOr("LLM_MODEL", "claude-sonnet-4-20250514"),
		AnthropicAPIKey: os.Getenv("ANTHROPIC_API_KEY"),
		LLMMaxTokens:    envInt("LLM_MAX_TOKENS", 1024),

		EmbedEndpoint: envOr("EMBED_ENDPOINT", "http://embed:8001/embed"),

		RateLimitPerMinute: envInt("RATE_LIMIT_PER_MINUTE", 20),

		AdminPasswordHash: os.Getenv("ADMIN_PASSWORD_HASH"),
		JWTSecret:         os.Getenv("JWT_SECRET"),
		JWTExpiryHours:    envInt("JWT_EXPIRY_HOURS", 24),

		WebDir: envOr("WEB_DIR", "/web"),

		ReadTimeout:  10 * time.Second,
		WriteTimeout: 120 * time.Second, // streaming responses are long-lived
		IdleTimeout:  60 * time.Second,
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.AnthropicAPIKey == "" {
		return nil, fmt.Errorf("ANTHROPIC_API_KEY is required")
	}
	if cfg.CharsPerToken <= 0 || cfg.CharsPerToken > 1 {
		return nil, fmt.Errorf("TOKEN_CHARS_PER_TOKEN must be in (0,1], got %v", cfg.CharsPerToken)
	}
	if cfg.SafetyMargin < 0 || cfg.SafetyMargin >= 1 {
		return nil, fmt.Errorf("CONTEXT_SAFETY_MARGIN must be in [0,1), got %v", cfg.SafetyMargin)
	}

	return cfg, nil
}

// Addr returns the listen address as "host:port".
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%s", c.APIHost, c.APIPort)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

// envList parses a comma-separated env var into a slice, trimming whitespace
// and dropping empty entries.
func envList(key string) []string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
