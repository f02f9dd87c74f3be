// Package config loads shift's settings from an optional YAML file and the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Validation errors.
var (
	ErrMissingPort        = errors.New("server.port cannot be empty")
	ErrMissingBaseURL     = errors.New("llm.base_url cannot be empty")
	ErrMissingModel       = errors.New("llm.model cannot be empty")
	ErrInvalidTemperature = errors.New("llm.temperature must be between 0 and 2")
	ErrInvalidMaxTokens   = errors.New("llm.max_tokens must be at least 1")
	ErrInvalidTimeout     = errors.New("timeouts must be positive")
	ErrInvalidRateLimit   = errors.New("server.rate_limit and server.rate_burst must be non-negative")
	ErrInvalidLogLevel    = errors.New("log.level must be one of: debug, info, warn, error")
	ErrInvalidLogFormat   = errors.New("log.format must be 'console' or 'json'")
)

// Config is the complete application configuration.
type Config struct {
	Server ServerConfig `yaml:"server"`
	LLM    LLMConfig    `yaml:"llm"`
	Source SourceConfig `yaml:"source"`
	Redis  RedisConfig  `yaml:"redis"`
	Log    LogConfig    `yaml:"log"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port string `yaml:"port"`
	// RateLimit is the number of requests per minute allowed per client. 0 disables limiting.
	RateLimit int `yaml:"rate_limit"`
	RateBurst int `yaml:"rate_burst"`
	// AllowedOrigins feeds the CORS policy of the JSON API.
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// LLMConfig holds settings for the text generation service.
type LLMConfig struct {
	BaseURL     string        `yaml:"base_url"`
	APIKey      string        `yaml:"api_key"`
	Model       string        `yaml:"model"`
	Temperature float64       `yaml:"temperature"`
	MaxTokens   int           `yaml:"max_tokens"`
	Timeout     time.Duration `yaml:"timeout"`
	// PromptFile optionally replaces the built-in system prompt.
	PromptFile string `yaml:"prompt_file"`
}

// SourceConfig holds settings for content acquisition.
type SourceConfig struct {
	Timeout      time.Duration `yaml:"timeout"`
	UserAgent    string        `yaml:"user_agent"`
	RequireHTTPS bool          `yaml:"require_https"`
}

// RedisConfig holds settings for the read queue. An empty Addr disables queueing.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the configuration used when nothing is overridden.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:           "3000",
			RateLimit:      30,
			RateBurst:      10,
			AllowedOrigins: []string{"*"},
		},
		LLM: LLMConfig{
			BaseURL:     "https://api.groq.com/openai/v1",
			Model:       "llama-3.3-70b-versatile",
			Temperature: 0.2,
			MaxTokens:   32768,
			Timeout:     120 * time.Second,
		},
		Source: SourceConfig{
			Timeout:      30 * time.Second,
			UserAgent:    "shift/1.0 (+https://github.com/shift-reader/shift)",
			RequireHTTPS: true,
		},
		Redis: RedisConfig{
			Addr: "",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load reads the YAML file at path (if non-empty) over the defaults, then applies
// environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Server.Port = getEnvOrDefault("SHIFT_PORT", c.Server.Port)
	c.Server.RateLimit = getEnvAsIntOrDefault("SHIFT_RATE_LIMIT", c.Server.RateLimit)

	// GROQ_API_KEY is honoured for compatibility with the hosted setup.
	c.LLM.APIKey = getEnvOrDefault("GROQ_API_KEY", c.LLM.APIKey)
	c.LLM.APIKey = getEnvOrDefault("SHIFT_LLM_API_KEY", c.LLM.APIKey)
	c.LLM.BaseURL = getEnvOrDefault("SHIFT_LLM_BASE_URL", c.LLM.BaseURL)
	c.LLM.Model = getEnvOrDefault("SHIFT_LLM_MODEL", c.LLM.Model)
	c.LLM.PromptFile = getEnvOrDefault("SHIFT_LLM_PROMPT_FILE", c.LLM.PromptFile)

	c.Redis.Addr = getEnvOrDefault("SHIFT_REDIS_ADDR", c.Redis.Addr)
	c.Redis.Password = getEnvOrDefault("SHIFT_REDIS_PASSWORD", c.Redis.Password)

	c.Log.Level = getEnvOrDefault("SHIFT_LOG_LEVEL", c.Log.Level)
	c.Log.Format = getEnvOrDefault("SHIFT_LOG_FORMAT", c.Log.Format)
}

// Validate checks if the configuration is usable.
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return ErrMissingPort
	}
	if c.Server.RateLimit < 0 || c.Server.RateBurst < 0 {
		return ErrInvalidRateLimit
	}
	if c.LLM.BaseURL == "" {
		return ErrMissingBaseURL
	}
	if c.LLM.Model == "" {
		return ErrMissingModel
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		return ErrInvalidTemperature
	}
	if c.LLM.MaxTokens < 1 {
		return ErrInvalidMaxTokens
	}
	if c.LLM.Timeout <= 0 || c.Source.Timeout <= 0 {
		return ErrInvalidTimeout
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return ErrInvalidLogLevel
	}
	if c.Log.Format != "console" && c.Log.Format != "json" {
		return ErrInvalidLogFormat
	}

	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
