// Package config loads the bot's YAML configuration.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the main configuration structure for Memento.
type Config struct {
	Telegram TelegramConfig `yaml:"telegram"`
	LLM      LLMConfig      `yaml:"llm"`
	Storage  StorageConfig  `yaml:"storage"`
	Media    MediaConfig    `yaml:"media"`
	Context  ContextConfig  `yaml:"context"`
	Logging  LoggingConfig  `yaml:"logging"`
}

type TelegramConfig struct {
	BotToken       string        `yaml:"bot_token"`
	BotUsername    string        `yaml:"bot_username"`
	HistoryLimit   int           `yaml:"history_limit"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

type LLMConfig struct {
	DefaultProvider string                       `yaml:"default_provider"`
	MaxIterations   int                          `yaml:"max_iterations"`
	MaxTokens       int                          `yaml:"max_tokens"`
	Providers       map[string]LLMProviderConfig `yaml:"providers"`
}

type LLMProviderConfig struct {
	APIKey       string `yaml:"api_key"`
	DefaultModel string `yaml:"default_model"`
	BaseURL      string `yaml:"base_url"`
}

type StorageConfig struct {
	Path string `yaml:"path"`
}

type MediaConfig struct {
	Enabled         bool          `yaml:"enabled"`
	Bucket          string        `yaml:"bucket"`
	Region          string        `yaml:"region"`
	Endpoint        string        `yaml:"endpoint"`
	Prefix          string        `yaml:"prefix"`
	AccessKeyID     string        `yaml:"access_key_id"`
	SecretAccessKey string        `yaml:"secret_access_key"`
	UsePathStyle    bool          `yaml:"use_path_style"`
	PresignTTL      time.Duration `yaml:"presign_ttl"`
}

type ContextConfig struct {
	MaxMessages      int      `yaml:"max_messages"`
	ImageMode        string   `yaml:"image_mode"`
	HybridImageLimit int      `yaml:"hybrid_image_limit"`
	EventKeywords    []string `yaml:"event_keywords"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads and parses the configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Expand environment variables
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	applyDefaults(&cfg)

	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Telegram.BotUsername == "" {
		cfg.Telegram.BotUsername = "memento_bot"
	}
	if cfg.Telegram.HistoryLimit == 0 {
		cfg.Telegram.HistoryLimit = 50
	}
	if cfg.LLM.DefaultProvider == "" {
		cfg.LLM.DefaultProvider = "anthropic"
	}
	if cfg.LLM.MaxIterations == 0 {
		cfg.LLM.MaxIterations = 5
	}
	if cfg.LLM.MaxTokens == 0 {
		cfg.LLM.MaxTokens = 4096
	}
	if cfg.Storage.Path == "" {
		cfg.Storage.Path = "memento.db"
	}
	if cfg.Context.MaxMessages == 0 {
		cfg.Context.MaxMessages = 10
	}
	if cfg.Context.ImageMode == "" {
		cfg.Context.ImageMode = "descriptions_only"
	}
	if cfg.Context.HybridImageLimit == 0 {
		cfg.Context.HybridImageLimit = 2
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}
}

// Validate checks that required settings are present.
func (c *Config) Validate() error {
	if c.Telegram.BotToken == "" {
		return fmt.Errorf("telegram.bot_token is required")
	}
	provider, ok := c.LLM.Providers[c.LLM.DefaultProvider]
	if !ok {
		return fmt.Errorf("llm.providers has no entry for default provider %q", c.LLM.DefaultProvider)
	}
	if provider.APIKey == "" {
		return fmt.Errorf("llm.providers.%s.api_key is required", c.LLM.DefaultProvider)
	}
	if c.Media.Enabled && c.Media.Bucket == "" {
		return fmt.Errorf("media.bucket is required when media is enabled")
	}
	return nil
}
