package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port        int
	DatabaseURL string
	StoreDriver string
	LogLevel    string

	LLMProvider         string
	LLMFallbackProvider string
	AnthropicAPIKey     string
	AnthropicURL        string
	Model               string
	LLMMaxTokens        int
	LLMTimeout          time.Duration
	AWSRegion           string
	BedrockModelID      string

	NatsURL       string
	NatsToken     string
	SlackBotToken string
	SlackChannel  string
	RedisURL      string

	APIToken    string
	CORSOrigins []string

	SyntheticPerCategory int
	GenerationWorkers    int
}

// Load reads configuration from the environment. A .env file in the working
// directory is applied first when present; real environment variables win.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		Port:        envInt("QUILL_PORT", 8760),
		DatabaseURL: envStr("DATABASE_URL", ""),
		StoreDriver: envStr("STORE_DRIVER", "postgres"),
		LogLevel:    envStr("LOG_LEVEL", "info"),

		LLMProvider:         envStr("LLM_PROVIDER", "anthropic"),
		LLMFallbackProvider: envStr("LLM_FALLBACK_PROVIDER", ""),
		AnthropicAPIKey:     envStr("ANTHROPIC_API_KEY", ""),
		AnthropicURL:        envStr("ANTHROPIC_BASE_URL", ""),
		Model:               envStr("QUILL_MODEL", "claude-sonnet-4-20250514"),
		LLMMaxTokens:        envInt("LLM_MAX_TOKENS", 4096),
		LLMTimeout:          envDuration("LLM_TIMEOUT", 60*time.Second),
		AWSRegion:           envStr("AWS_REGION", "us-east-1"),
		BedrockModelID:      envStr("BEDROCK_MODEL_ID", ""),

		NatsURL:       envStr("NATS_URL", ""),
		NatsToken:     envStr("NATS_TOKEN", ""),
		SlackBotToken: envStr("SLACK_BOT_TOKEN", ""),
		SlackChannel:  envStr("SLACK_REVIEW_CHANNEL", ""),
		RedisURL:      envStr("REDIS_URL", ""),

		APIToken:    envStr("QUILL_API_TOKEN", ""),
		CORSOrigins: envList("CORS_ORIGINS", []string{"*"}),

		SyntheticPerCategory: envInt("SYNTHETIC_PER_CATEGORY", 3),
		GenerationWorkers:    envInt("GENERATION_WORKERS", 4),
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

// envList splits a comma-separated value, dropping blanks.
func envList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
