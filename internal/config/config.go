// Package config provides application configuration management with multi-source priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (runtime override)
//  2. Config file (~/.scribe/config.yaml)
//  3. Default values
//
// Main configuration categories:
//   - Chat: websocket endpoint of the retrieval/LLM backend
//   - Indexer: base URL of the document indexing service, polling cadence
//   - User: user identifier sent as the scoping header on indexer calls
//   - Log: level and format of diagnostic output
//
// Error Handling:
//   - Sentinel errors for Go-idiomatic checking with errors.Is()
//   - Wrapped with context via fmt.Errorf("%w: details", ErrXxx)
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

var (
	// ErrConfigNil indicates the configuration is nil.
	ErrConfigNil = errors.New("configuration is nil")

	// ErrInvalidChatURL indicates the chat websocket endpoint is invalid.
	ErrInvalidChatURL = errors.New("invalid chat URL")

	// ErrInvalidIndexerURL indicates the indexer base URL is invalid.
	ErrInvalidIndexerURL = errors.New("invalid indexer URL")

	// ErrInvalidPollInterval indicates the polling interval is out of range.
	ErrInvalidPollInterval = errors.New("invalid poll interval")

	// ErrMissingUserID indicates the user identifier is not set.
	ErrMissingUserID = errors.New("missing user ID")
)

const (
	// DefaultPollInterval is the registry polling cadence.
	DefaultPollInterval = 3 * time.Second

	// MinPollInterval guards against hammering the indexer.
	MinPollInterval = 250 * time.Millisecond

	// DefaultUserID scopes indexer requests when no user is configured.
	DefaultUserID = "default_user"
)

// Config stores application configuration.
type Config struct {
	// Chat backend websocket endpoint (e.g. "ws://localhost:8003/chat")
	ChatURL string `mapstructure:"chat_url"`

	// Indexer service base URL (e.g. "http://localhost:8001")
	IndexerURL string `mapstructure:"indexer_url"`

	// Registry polling cadence
	PollInterval time.Duration `mapstructure:"poll_interval"`

	// User identifier sent as the X-User-Id scoping header
	UserID string `mapstructure:"user_id"`

	// Logging configuration
	LogLevel string `mapstructure:"log_level"` // "debug", "info", "warn", "error"
	LogJSON  bool   `mapstructure:"log_json"`
}

// Load loads configuration.
// Priority: Environment variables > Configuration file > Default values
func Load() (*Config, error) {
	// Configuration directory: ~/.scribe/
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting user home directory: %w", err)
	}

	configDir := filepath.Join(home, ".scribe")

	if err := os.MkdirAll(configDir, 0o750); err != nil {
		return nil, fmt.Errorf("creating config directory: %w", err)
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configDir)
	v.AddConfigPath(".") // Also support current directory

	setDefaults(v)
	bindEnvVariables(v)

	// Read configuration file (if exists)
	if err := v.ReadInConfig(); err != nil {
		// Configuration file not found is not an error, use default values
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using default values",
			"search_paths", []string{configDir, "."},
			"config_name", "config.yaml")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	// Validate immediately (fail-fast)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets all default configuration values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("chat_url", "ws://localhost:8003/chat")
	v.SetDefault("indexer_url", "http://localhost:8001")
	v.SetDefault("poll_interval", DefaultPollInterval)
	v.SetDefault("user_id", DefaultUserID)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_json", false)
}

// bindEnvVariables binds environment variable overrides explicitly.
func bindEnvVariables(v *viper.Viper) {
	// Helper to panic on unexpected bind errors (hardcoded strings can't fail).
	// If this panics, it's a BUG in our code, not a runtime error.
	mustBind := func(key, envVar string) {
		if err := v.BindEnv(key, envVar); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %q: %v", key, envVar, err))
		}
	}

	mustBind("chat_url", "SCRIBE_CHAT_URL")
	mustBind("indexer_url", "SCRIBE_INDEXER_URL")
	mustBind("poll_interval", "SCRIBE_POLL_INTERVAL")
	mustBind("user_id", "SCRIBE_USER_ID")
	mustBind("log_level", "SCRIBE_LOG_LEVEL")
	mustBind("log_json", "SCRIBE_LOG_JSON")
}

// SlogLevel maps the configured log level string to a slog.Level.
// Unknown values fall back to info.
func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
