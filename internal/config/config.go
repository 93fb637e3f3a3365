// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management.
//
// Supports both TOML and JSON configuration formats, with sensible
// defaults, environment variable overrides, and validation.
//
// Configuration file locations (in order of precedence):
//   - ~/.ppqchat/config.toml
//   - ~/.ppqchat/config.json
//   - Built-in defaults
package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
)

// =============================================================================
// CONFIG STRUCTURE
// =============================================================================

// Config represents the complete application configuration.
type Config struct {
	// API settings
	APIBaseURL string `toml:"api_base_url" json:"api_base_url"`

	// ChatModel is the preferred completion model. If the server does not
	// list it, the first listed model is used instead.
	ChatModel string `toml:"chat_model" json:"chat_model"`
	// SummaryModel generates one-line conversation summaries.
	SummaryModel string `toml:"summary_model" json:"summary_model"`
	// Temperature is the sampling temperature for chat completions.
	Temperature float64 `toml:"temperature" json:"temperature"`
	// SummaryTemperature is the sampling temperature for summarization.
	SummaryTemperature float64 `toml:"summary_temperature" json:"summary_temperature"`

	// Billing policy. The original deployment shipped two variants with
	// different amounts; here they are one configurable policy.
	Billing BillingConfig `toml:"billing" json:"billing"`

	// DataDir holds credentials, conversations and logs.
	// Default: ~/.ppqchat
	DataDir string `toml:"data_dir" json:"data_dir"`
}

// BillingConfig contains the balance-monitor and top-up policy.
type BillingConfig struct {
	// LowBalanceThreshold is the balance (in account currency) below
	// which a top-up starts automatically.
	LowBalanceThreshold float64 `toml:"low_balance_threshold" json:"low_balance_threshold"`
	// TopupAmount is the amount requested per top-up invoice.
	TopupAmount float64 `toml:"topup_amount" json:"topup_amount"`
	// TopupCurrency is the invoice currency.
	TopupCurrency string `toml:"topup_currency" json:"topup_currency"`
	// PollInterval is the delay between invoice status checks.
	PollInterval time.Duration `toml:"-" json:"-"`
	// PollIntervalSecs is the serialized form of PollInterval.
	PollIntervalSecs int `toml:"poll_interval_secs" json:"poll_interval_secs"`
	// PollAttempts bounds the confirmation wait (attempts * interval).
	PollAttempts int `toml:"poll_attempts" json:"poll_attempts"`
}

// =============================================================================
// DEFAULTS
// =============================================================================

// Default returns the built-in default configuration.
func Default() *Config {
	return &Config{
		APIBaseURL:         "https://api.ppq.ai",
		ChatModel:          "gpt-5.1-chat",
		SummaryModel:       "openai/gpt-4.1-mini",
		Temperature:        0.7,
		SummaryTemperature: 0.3,
		Billing: BillingConfig{
			LowBalanceThreshold: 0.05,
			TopupAmount:         0.10,
			TopupCurrency:       "USD",
			PollInterval:        2 * time.Second,
			PollIntervalSecs:    2,
			PollAttempts:        30,
		},
	}
}

// =============================================================================
// LOADING
// =============================================================================

// Load reads the configuration from the default locations, applying
// defaults for anything unset, environment overrides, and validation.
func Load() (*Config, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve home directory: %w", err)
	}
	return LoadFromDir(filepath.Join(homeDir, ".ppqchat"))
}

// LoadFromDir loads configuration rooted at the given data directory.
func LoadFromDir(dataDir string) (*Config, error) {
	cfg := Default()
	cfg.DataDir = dataDir

	tomlPath := filepath.Join(dataDir, "config.toml")
	jsonPath := filepath.Join(dataDir, "config.json")

	switch {
	case fileExists(tomlPath):
		if _, err := toml.DecodeFile(tomlPath, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", tomlPath, err)
		}
	case fileExists(jsonPath):
		data, err := os.ReadFile(jsonPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", jsonPath, err)
		}
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", jsonPath, err)
		}
	}

	cfg.applyEnvOverrides()
	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides applies PPQCHAT_* environment variables.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("PPQCHAT_API_BASE_URL"); v != "" {
		c.APIBaseURL = v
	}
	if v := os.Getenv("PPQCHAT_CHAT_MODEL"); v != "" {
		c.ChatModel = v
	}
	if v := os.Getenv("PPQCHAT_LOW_BALANCE_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Billing.LowBalanceThreshold = f
		}
	}
	if v := os.Getenv("PPQCHAT_TOPUP_AMOUNT"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Billing.TopupAmount = f
		}
	}
}

// normalize derives computed fields and fills gaps a partial config file
// may have left.
func (c *Config) normalize() {
	def := Default()

	if c.APIBaseURL == "" {
		c.APIBaseURL = def.APIBaseURL
	}
	if c.ChatModel == "" {
		c.ChatModel = def.ChatModel
	}
	if c.SummaryModel == "" {
		c.SummaryModel = def.SummaryModel
	}
	if c.Temperature == 0 {
		c.Temperature = def.Temperature
	}
	if c.SummaryTemperature == 0 {
		c.SummaryTemperature = def.SummaryTemperature
	}
	if c.Billing.TopupCurrency == "" {
		c.Billing.TopupCurrency = def.Billing.TopupCurrency
	}
	if c.Billing.PollIntervalSecs <= 0 {
		c.Billing.PollIntervalSecs = def.Billing.PollIntervalSecs
	}
	if c.Billing.PollAttempts <= 0 {
		c.Billing.PollAttempts = def.Billing.PollAttempts
	}
	c.Billing.PollInterval = time.Duration(c.Billing.PollIntervalSecs) * time.Second
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	if u, err := url.Parse(c.APIBaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid api_base_url: %q", c.APIBaseURL)
	}
	if c.Billing.LowBalanceThreshold < 0 {
		return fmt.Errorf("low_balance_threshold must not be negative, got %v", c.Billing.LowBalanceThreshold)
	}
	if c.Billing.TopupAmount <= 0 {
		return fmt.Errorf("topup_amount must be positive, got %v", c.Billing.TopupAmount)
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("temperature out of range [0, 2]: %v", c.Temperature)
	}
	return nil
}

// CredentialsPath returns the path of the persisted credential pair.
func (c *Config) CredentialsPath() string {
	return filepath.Join(c.DataDir, "credentials.json")
}

// ConversationsPath returns the path of the persisted conversation
// collection.
func (c *Config) ConversationsPath() string {
	return filepath.Join(c.DataDir, "conversations.json")
}

// LogPath returns the path of the application log file.
func (c *Config) LogPath() string {
	return filepath.Join(c.DataDir, "ppqchat.log")
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
