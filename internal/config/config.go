package config

import (
	"fmt"

	"github.com/caarlos0/env/v6"
)

type Config struct {
	HTTPAddr string `env:"HTTP_ADDR" envDefault:":8000"`

	// Provider settings (OpenAI-compatible; Groq by default)
	OpenAIAPIKey  string  `env:"OPENAI_API_KEY,required"`
	OpenAIBaseURL string  `env:"OPENAI_BASE_URL" envDefault:"https://api.groq.com/openai/v1"`
	PrimaryModel  string  `env:"PRIMARY_MODEL" envDefault:"llama-3.1-8b-instant"`
	AltModel      string  `env:"ALT_MODEL" envDefault:"qwen-2.5-32b"`
	MaxTokens     int     `env:"MAX_TOKENS" envDefault:"256"`
	Temperature   float64 `env:"LLM_TEMPERATURE" envDefault:"0.5"`
	LLMTimeoutSec int     `env:"LLM_TIMEOUT_SEC" envDefault:"30"`

	// OpenRouter (optional)
	OpenRouterReferrer string `env:"OPENROUTER_REFERRER"`
	OpenRouterTitle    string `env:"OPENROUTER_TITLE"`

	// Key-value backend
	RedisURL string `env:"REDIS_URL" envDefault:"redis://localhost:6379"`

	// Response cache
	CacheEnabled bool `env:"LLM_CACHE_ENABLED" envDefault:"true"`
	CacheTTLSec  int  `env:"LLM_CACHE_TTL" envDefault:"300"`

	// Conversation memory
	HistoryLimit int `env:"HISTORY_LIMIT" envDefault:"10"`

	// Language handling
	DefaultLang string `env:"DEFAULT_LANG" envDefault:"ko"`

	// Prompts
	SystemPromptPath string `env:"SYSTEM_PROMPT_PATH"`

	// Interaction log (JSONL); empty disables recording
	LogFilePath string `env:"LOG_FILE_PATH" envDefault:"logs/interactions.jsonl"`
}

func New() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}
