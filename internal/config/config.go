package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config application configuration
type Config struct {
	// Database
	DatabasePath string `env:"DATABASE_PATH" envDefault:"./data/mailgroups.db"`

	// Sync
	SyncLookback time.Duration `env:"SYNC_LOOKBACK" envDefault:"2160h"` // 90 days
	PollInterval time.Duration `env:"POLL_INTERVAL" envDefault:"5m"`

	// IMAP transport
	IMAPDialTimeout        time.Duration `env:"IMAP_DIAL_TIMEOUT" envDefault:"20s"`
	IMAPAuthTimeout        time.Duration `env:"IMAP_AUTH_TIMEOUT" envDefault:"15s"`
	IMAPInsecureSkipVerify bool          `env:"IMAP_INSECURE_SKIP_VERIFY" envDefault:"true"`

	// Bootstrap account, created when the database has no accounts.
	// IMAP_HOST is resolved from the address domain when empty.
	IMAPUser     string `env:"IMAP_USER"`
	IMAPPassword string `env:"IMAP_PASSWORD"`
	IMAPHost     string `env:"IMAP_HOST"`
	IMAPPort     int    `env:"IMAP_PORT" envDefault:"993"`
	IMAPTLS      bool   `env:"IMAP_TLS" envDefault:"true"`

	// AI summary
	GeminiAPIKey    string `env:"GEMINI_API_KEY"`
	GeminiModel     string `env:"GEMINI_MODEL" envDefault:"gemini-2.5-pro"`
	SummaryLanguage string `env:"SUMMARY_LANGUAGE" envDefault:"English"`

	// Telegram (optional)
	TelegramToken  string `env:"TELEGRAM_BOT_TOKEN"`
	TelegramChatID int64  `env:"TELEGRAM_CHAT_ID"`

	// Security
	EncryptionKey string `env:"ENCRYPTION_KEY,required"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"text"` // "json" or "text"
}

// TelegramEnabled returns true if the Telegram bot is configured
func (c *Config) TelegramEnabled() bool {
	return c.TelegramToken != ""
}

// BootstrapAccountEnabled returns true if a bootstrap account is configured
func (c *Config) BootstrapAccountEnabled() bool {
	return c.IMAPUser != ""
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if exists (ignore error if not found)
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks cross-field constraints
func (c *Config) Validate() error {
	// AES-256 key
	if len(c.EncryptionKey) != 32 {
		return fmt.Errorf("ENCRYPTION_KEY must be exactly 32 bytes, got %d", len(c.EncryptionKey))
	}

	if c.TelegramEnabled() && c.TelegramChatID == 0 {
		return fmt.Errorf("TELEGRAM_CHAT_ID is required when TELEGRAM_BOT_TOKEN is set")
	}

	if c.SyncLookback <= 0 {
		return fmt.Errorf("SYNC_LOOKBACK must be positive, got %s", c.SyncLookback)
	}

	if c.PollInterval <= 0 {
		return fmt.Errorf("POLL_INTERVAL must be positive, got %s", c.PollInterval)
	}

	return nil
}
