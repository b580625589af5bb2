package infra

import (
	"errors"
	"fmt"
	"os"

	"pricealert_go/internal/domain"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultUserAgent is a browser-like user agent string to avoid bot detection
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
)

// Config holds the full application configuration, loaded from YAML and
// overridden by environment variables for sensitive values.
type Config struct {
	App struct {
		Name    string `yaml:"name"`
		Version string `yaml:"version"`
	} `yaml:"app"`

	Telegram struct {
		BotToken       string `yaml:"bot_token"`
		AdminChatID    string `yaml:"admin_chat_id"`
		PollTimeoutSec int    `yaml:"poll_timeout_sec"`
	} `yaml:"telegram"`

	Sources struct {
		CryptoCompare struct {
			URL    string `yaml:"url"`
			APIKey string `yaml:"api_key"`
		} `yaml:"cryptocompare"`
		Coinbase struct {
			URL string `yaml:"url"`
		} `yaml:"coinbase"`
		Binance struct {
			RestURL       string `yaml:"rest_url"`
			WSURL         string `yaml:"ws_url"`
			StreamEnabled bool   `yaml:"stream_enabled"`
		} `yaml:"binance"`
		CoinGecko struct {
			URL string `yaml:"url"`
		} `yaml:"coingecko"`
		Yahoo struct {
			URL string `yaml:"url"`
		} `yaml:"yahoo"`
	} `yaml:"sources"`

	Alerts struct {
		CheckIntervalSec int             `yaml:"check_interval_sec"`
		SymbolPauseMS    int             `yaml:"symbol_pause_ms"`
		DefaultThreshold decimal.Decimal `yaml:"default_threshold"`
	} `yaml:"alerts"`

	Storage struct {
		DBPath     string `yaml:"db_path"`
		ConfigFile string `yaml:"config_file"`
		StateFile  string `yaml:"state_file"`
	} `yaml:"storage"`

	Logging struct {
		Level string `yaml:"level"`
	} `yaml:"logging"`
}

// LoadConfig reads and parses the configuration file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	overrideWithEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Validate checks configuration validity. A missing bot credential or admin
// recipient is fatal at startup, not a runtime error.
func (c *Config) Validate() error {
	if c.Telegram.BotToken == "" {
		return &domain.ConfigError{Field: "telegram.bot_token", Err: errors.New("required (set PRICEALERT_BOT_TOKEN)")}
	}
	if c.Telegram.AdminChatID == "" {
		return &domain.ConfigError{Field: "telegram.admin_chat_id", Err: errors.New("required (set PRICEALERT_CHAT_ID)")}
	}
	if c.Alerts.CheckIntervalSec <= 0 {
		return &domain.ConfigError{Field: "alerts.check_interval_sec", Err: errors.New("must be positive")}
	}
	if !c.Alerts.DefaultThreshold.IsPositive() {
		return &domain.ConfigError{Field: "alerts.default_threshold", Err: errors.New("must be positive")}
	}
	return nil
}

// overrideWithEnv overrides configuration values from the environment when
// present. Credentials never need to live in the YAML file.
func overrideWithEnv(cfg *Config) {
	if token := os.Getenv("PRICEALERT_BOT_TOKEN"); token != "" {
		cfg.Telegram.BotToken = token
	}
	if chatID := os.Getenv("PRICEALERT_CHAT_ID"); chatID != "" {
		cfg.Telegram.AdminChatID = chatID
	}
	if key := os.Getenv("PRICEALERT_CRYPTOCOMPARE_KEY"); key != "" {
		cfg.Sources.CryptoCompare.APIKey = key
	}
	if path := os.Getenv("PRICEALERT_DB_PATH"); path != "" {
		cfg.Storage.DBPath = path
	}
}
