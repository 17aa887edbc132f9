// Package config loads the mull runtime configuration from three layers:
// built-in defaults, a JSON or YAML config file, and MULL_-prefixed
// environment variables. Later layers win. Keys normalise from
// hyphen-case; unrecognized keys are dropped by construction.
package config

import (
	"fmt"
	"os"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is prepended to every environment variable name.
const EnvPrefix = "MULL_"

// Config is the recognized option surface.
type Config struct {
	// Name the bot responds to.
	Name string `yaml:"name" json:"name" env:"NAME"`

	// Alias is an alternate name (e.g. a mention handle).
	Alias string `yaml:"alias" json:"alias" env:"ALIAS"`

	// LogLevel: debug, info, warn, error, silent.
	LogLevel string `yaml:"log-level" json:"log-level" env:"LOG_LEVEL"`

	// AutoSave persists memory on an interval while running.
	AutoSave bool `yaml:"auto-save" json:"auto-save" env:"AUTO_SAVE"`

	// AutoSaveSeconds is the save interval when AutoSave is on.
	AutoSaveSeconds int `yaml:"auto-save-seconds" json:"auto-save-seconds" env:"AUTO_SAVE_SECONDS"`

	// Adapter selection by registered name.
	MessageAdapter   string `yaml:"message-adapter" json:"message-adapter" env:"MESSAGE_ADAPTER"`
	NLUAdapter       string `yaml:"nlu-adapter" json:"nlu-adapter" env:"NLU_ADAPTER"`
	StorageAdapter   string `yaml:"storage-adapter" json:"storage-adapter" env:"STORAGE_ADAPTER"`
	WebhookAdapter   string `yaml:"webhook-adapter" json:"webhook-adapter" env:"WEBHOOK_ADAPTER"`
	AnalyticsAdapter string `yaml:"analytics-adapter" json:"analytics-adapter" env:"ANALYTICS_ADAPTER"`

	// NLUMinLength gates the understand stage on trimmed text length.
	NLUMinLength int `yaml:"nlu-min-length" json:"nlu-min-length" env:"NLU_MIN_LENGTH"`

	// Platform and provider settings consumed by the concrete adapters.
	DiscordToken   string `yaml:"discord-token" json:"discord-token" env:"DISCORD_TOKEN"`
	TelegramToken  string `yaml:"telegram-token" json:"telegram-token" env:"TELEGRAM_TOKEN"`
	SlackBotToken  string `yaml:"slack-bot-token" json:"slack-bot-token" env:"SLACK_BOT_TOKEN"`
	SlackAppToken  string `yaml:"slack-app-token" json:"slack-app-token" env:"SLACK_APP_TOKEN"`
	WebsocketAddr  string `yaml:"websocket-addr" json:"websocket-addr" env:"WEBSOCKET_ADDR"`
	SqlitePath     string `yaml:"sqlite-path" json:"sqlite-path" env:"SQLITE_PATH"`
	OpenAIKey      string `yaml:"openai-key" json:"openai-key" env:"OPENAI_KEY"`
	OpenAIModel    string `yaml:"openai-model" json:"openai-model" env:"OPENAI_MODEL"`
	AnthropicKey   string `yaml:"anthropic-key" json:"anthropic-key" env:"ANTHROPIC_KEY"`
	AnthropicModel string `yaml:"anthropic-model" json:"anthropic-model" env:"ANTHROPIC_MODEL"`
	WebhookURL     string `yaml:"webhook-url" json:"webhook-url" env:"WEBHOOK_URL"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Name:            "mull",
		LogLevel:        "info",
		AutoSave:        true,
		AutoSaveSeconds: 5,
		MessageAdapter:  "shell",
		StorageAdapter:  "memory",
		WebsocketAddr:   ":4872",
		SqlitePath:      "mull.db",
	}
}

// Load builds the configuration: defaults, then the config file when path
// is non-empty (YAML or JSON; YAML parses both), then environment.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return cfg, fmt.Errorf("parse environment: %w", err)
	}
	return cfg, nil
}

// Parse applies a raw JSON/YAML block over a config (tests, embedding).
func Parse(data []byte, cfg *Config) error {
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config block: %w", err)
	}
	return nil
}
