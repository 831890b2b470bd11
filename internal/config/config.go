package config

import (
	"time"

	"github.com/hmaekawa/caster/logging"
)

// Config represents the application configuration
type Config struct {
	Server  ServerConfig   `json:"server" yaml:"server"`
	Store   StoreConfig    `json:"store" yaml:"store"`
	Chat    ChatConfig     `json:"chat" yaml:"chat"`
	Admin   AdminConfig    `json:"admin" yaml:"admin"`
	Anchor  AnchorConfig   `json:"anchor" yaml:"anchor"`
	Logging logging.Config `json:"logging" yaml:"logging"`
}

// ServerConfig represents the relay listener configuration
type ServerConfig struct {
	Host             string        `json:"host" yaml:"host"`
	Port             int           `json:"port" yaml:"port"`
	CertFile         string        `json:"cert_file" yaml:"cert_file"`
	KeyFile          string        `json:"key_file" yaml:"key_file"`
	HandshakeTimeout time.Duration `json:"handshake_timeout" yaml:"handshake_timeout"`
	WriteTimeout     time.Duration `json:"write_timeout" yaml:"write_timeout"`
	SendQueueSize    int           `json:"send_queue_size" yaml:"send_queue_size"`
	MaxFrameSize     int           `json:"max_frame_size" yaml:"max_frame_size"`
}

// StoreConfig represents the persistence configuration
type StoreConfig struct {
	Path string `json:"path" yaml:"path"`
}

// ChatConfig represents chat behavior configuration
type ChatConfig struct {
	HistoryLimit int `json:"history_limit" yaml:"history_limit"`
}

// AdminConfig represents the optional admin HTTP endpoint
type AdminConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Addr    string `json:"addr" yaml:"addr"`
}

// AnchorConfig represents the optional hash-anchoring oracle
type AnchorConfig struct {
	Enabled  bool   `json:"enabled" yaml:"enabled"`
	Endpoint string `json:"endpoint" yaml:"endpoint"`
	Account  string `json:"account" yaml:"account"`
}

// Default returns the default configuration
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:             "0.0.0.0",
			Port:             9999,
			CertFile:         "certs/server.crt",
			KeyFile:          "certs/server.key",
			HandshakeTimeout: 10 * time.Second,
			WriteTimeout:     10 * time.Second,
			SendQueueSize:    256,
			MaxFrameSize:     4 * 1024 * 1024, // file payloads travel inline as base64
		},
		Store: StoreConfig{
			Path: "chat_history.db",
		},
		Chat: ChatConfig{
			HistoryLimit: 100,
		},
		Admin: AdminConfig{
			Enabled: false,
			Addr:    "localhost:9980",
		},
		Anchor: AnchorConfig{
			Enabled:  false,
			Endpoint: "http://127.0.0.1:7545",
		},
		Logging: logging.Config{
			Level:  "info",
			Format: "text",
		},
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return NewConfigError("server.port", "invalid port number")
	}

	if c.Server.CertFile == "" {
		return NewConfigError("server.cert_file", "certificate file is required")
	}

	if c.Server.KeyFile == "" {
		return NewConfigError("server.key_file", "key file is required")
	}

	if c.Server.HandshakeTimeout <= 0 {
		return NewConfigError("server.handshake_timeout", "timeout must be positive")
	}

	if c.Server.WriteTimeout <= 0 {
		return NewConfigError("server.write_timeout", "timeout must be positive")
	}

	if c.Server.SendQueueSize <= 0 {
		return NewConfigError("server.send_queue_size", "queue size must be positive")
	}

	if c.Server.MaxFrameSize <= 0 {
		return NewConfigError("server.max_frame_size", "frame size must be positive")
	}

	if c.Store.Path == "" {
		return NewConfigError("store.path", "store path is required")
	}

	if c.Chat.HistoryLimit <= 0 {
		return NewConfigError("chat.history_limit", "history limit must be positive")
	}

	if c.Admin.Enabled && c.Admin.Addr == "" {
		return NewConfigError("admin.addr", "admin address is required when enabled")
	}

	if c.Anchor.Enabled && c.Anchor.Endpoint == "" {
		return NewConfigError("anchor.endpoint", "anchor endpoint is required when enabled")
	}

	return nil
}
