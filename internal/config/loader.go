package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// LoadOptions represents options for loading configuration
type LoadOptions struct {
	Path string
}

// Load loads configuration from various sources
func Load(opts ...LoadOptions) (*Config, error) {
	cfg := Default()

	var options LoadOptions
	if len(opts) > 0 {
		options = opts[0]
	}

	// Load from file if path is specified
	if options.Path != "" {
		if err := loadFromFile(cfg, options.Path); err != nil {
			return nil, err
		}
	}

	// Override with environment variables
	loadFromEnv(cfg)

	// Validate the final configuration
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadFromFile loads configuration from a file
func loadFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("failed to parse JSON config: %w", err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("failed to parse YAML config: %w", err)
		}
	default:
		return fmt.Errorf("unsupported config file format: %s", ext)
	}

	return nil
}

// loadFromEnv loads configuration from environment variables
func loadFromEnv(cfg *Config) {
	// Server configuration
	if host := os.Getenv("CASTER_SERVER_HOST"); host != "" {
		cfg.Server.Host = host
	}
	if port := os.Getenv("CASTER_SERVER_PORT"); port != "" {
		if p, err := parseInt(port); err == nil {
			cfg.Server.Port = p
		}
	}
	if cert := os.Getenv("CASTER_TLS_CERT"); cert != "" {
		cfg.Server.CertFile = cert
	}
	if key := os.Getenv("CASTER_TLS_KEY"); key != "" {
		cfg.Server.KeyFile = key
	}
	if timeout := os.Getenv("CASTER_WRITE_TIMEOUT"); timeout != "" {
		if d, err := time.ParseDuration(timeout); err == nil {
			cfg.Server.WriteTimeout = d
		}
	}

	// Store configuration
	if path := os.Getenv("CASTER_STORE_PATH"); path != "" {
		cfg.Store.Path = path
	}
	if limit := os.Getenv("CASTER_HISTORY_LIMIT"); limit != "" {
		if n, err := parseInt(limit); err == nil {
			cfg.Chat.HistoryLimit = n
		}
	}

	// Admin configuration
	if addr := os.Getenv("CASTER_ADMIN_ADDR"); addr != "" {
		cfg.Admin.Enabled = true
		cfg.Admin.Addr = addr
	}

	// Anchor configuration
	if endpoint := os.Getenv("CASTER_ANCHOR_ENDPOINT"); endpoint != "" {
		cfg.Anchor.Enabled = true
		cfg.Anchor.Endpoint = endpoint
	}
	if account := os.Getenv("CASTER_ANCHOR_ACCOUNT"); account != "" {
		cfg.Anchor.Account = account
	}

	// Logging configuration
	if level := os.Getenv("CASTER_LOG_LEVEL"); level != "" {
		cfg.Logging.Level = level
	}
	if format := os.Getenv("CASTER_LOG_FORMAT"); format != "" {
		cfg.Logging.Format = format
	}
}

// parseInt parses a string to int
func parseInt(s string) (int, error) {
	var i int
	_, err := fmt.Sscanf(s, "%d", &i)
	return i, err
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field   string
	Message string
}

// NewConfigError creates a new configuration error
func NewConfigError(field, message string) *ConfigError {
	return &ConfigError{
		Field:   field,
		Message: message,
	}
}

// Error implements the error interface
func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error in field '%s': %s", e.Field, e.Message)
}
