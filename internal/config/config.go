// Package config handles configuration loading and validation.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// Config holds all console configuration. Values come from defaults, then an
// optional YAML file, then environment variables, in increasing precedence.
type Config struct {
	// ListenAddr is the address the console API binds to.
	ListenAddr string `envconfig:"CONSOLE_LISTEN_ADDR" yaml:"listen_addr"`

	// SoraAPIURL is the upstream Sora signaling API endpoint.
	SoraAPIURL string `envconfig:"CONSOLE_SORA_API_URL" yaml:"sora_api_url"`

	// AllowOrigin is the CORS origin granted to the dashboard.
	AllowOrigin string `envconfig:"CONSOLE_ALLOW_ORIGIN" yaml:"allow_origin"`

	// AuthChannelPrefix admits channels whose id starts with this prefix.
	AuthChannelPrefix string `envconfig:"CONSOLE_AUTH_CHANNEL_PREFIX" yaml:"auth_channel_prefix"`

	// HeartbeatInterval is the SSE keepalive comment period.
	HeartbeatInterval time.Duration `envconfig:"CONSOLE_HEARTBEAT_INTERVAL" yaml:"heartbeat_interval"`

	// CachePath is the bbolt file backing the connection metadata cache.
	CachePath string `envconfig:"CONSOLE_CACHE_PATH" yaml:"cache_path"`

	// CacheTTL is the retention window for cached connection metadata.
	CacheTTL time.Duration `envconfig:"CONSOLE_CACHE_TTL" yaml:"cache_ttl"`

	Log LogConfig `yaml:"log"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `envconfig:"CONSOLE_LOG_LEVEL" yaml:"level"`
	JSON  bool   `envconfig:"CONSOLE_LOG_JSON" yaml:"json"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		ListenAddr:        ":8080",
		SoraAPIURL:        "http://127.0.0.1:3000/api",
		AllowOrigin:       "*",
		AuthChannelPrefix: "sora",
		HeartbeatInterval: 15 * time.Second,
		CachePath:         "sora-console.db",
		CacheTTL:          24 * time.Hour,
		Log:               LogConfig{Level: "info"},
	}
}

// Load builds the configuration from defaults, the YAML file at path (if any)
// and the environment.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, fmt.Errorf("process environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the configuration for unusable values.
func (c *Config) Validate() error {
	if c.ListenAddr == "" {
		return fmt.Errorf("listen_addr must not be empty")
	}
	if c.SoraAPIURL == "" {
		return fmt.Errorf("sora_api_url must not be empty")
	}
	if c.HeartbeatInterval <= 0 {
		return fmt.Errorf("heartbeat_interval must be positive, got %s", c.HeartbeatInterval)
	}
	if c.CacheTTL <= 0 {
		return fmt.Errorf("cache_ttl must be positive, got %s", c.CacheTTL)
	}
	return nil
}
