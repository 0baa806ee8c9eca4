// Package config loads the service configuration from an optional YAML file
// and applies environment overrides on top of it.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultConfigPath is used when no -config flag is given.
const DefaultConfigPath = "config.yaml"

// Store backends.
const (
	StoreBackendGorm  = "gorm"
	StoreBackendRedis = "redis"
)

// AppConfig captures command-line inputs.
type AppConfig struct {
	ConfigPath string
}

// Config represents the application's configuration, loaded from a YAML file.
type Config struct {
	// Host is the interface the HTTP server binds to. Empty binds all interfaces.
	Host string `yaml:"host" json:"host"`

	// Port is the HTTP listen port.
	Port int `yaml:"port" json:"port"`

	// BaseURL is the externally reachable origin used to build proxy URLs.
	BaseURL string `yaml:"base-url" json:"base-url"`

	// Debug switches gin to debug mode and lowers the log level.
	Debug bool `yaml:"debug" json:"debug"`

	// LogLevel is a logrus level name. Defaults to "info".
	LogLevel string `yaml:"log-level" json:"log-level"`

	// LoggingToFile writes logs to a rotating file in LogsDir instead of stdout.
	LoggingToFile bool `yaml:"logging-to-file" json:"logging-to-file"`

	// LogsDir is the directory for rotated log files.
	LogsDir string `yaml:"logs-dir" json:"logs-dir"`

	// CORSOrigins lists origins allowed to call the management routes.
	CORSOrigins []string `yaml:"cors-origins" json:"cors-origins"`

	// SecretKey seals upstream API keys at rest.
	SecretKey string `yaml:"secret-key" json:"-"`

	// Store selects and configures the endpoint store backend.
	Store StoreConfig `yaml:"store" json:"store"`

	// Upstream configures the outbound provider client.
	Upstream UpstreamConfig `yaml:"upstream" json:"upstream"`

	// Providers overrides the fixed provider base URLs.
	Providers ProviderURLs `yaml:"providers" json:"providers"`
}

// StoreConfig holds endpoint store settings.
type StoreConfig struct {
	// Backend is "gorm" (default) or "redis".
	Backend string `yaml:"backend" json:"backend"`

	// DSN is the database DSN for the gorm backend. SQLite paths and PostgreSQL URLs are accepted.
	DSN string `yaml:"dsn" json:"-"`

	// RedisAddr is the host:port of the redis server.
	RedisAddr string `yaml:"redis-addr" json:"redis-addr"`

	// RedisPassword authenticates to redis.
	RedisPassword string `yaml:"redis-password" json:"-"`

	// RedisDB selects the redis logical database.
	RedisDB int `yaml:"redis-db" json:"redis-db"`

	// RedisPrefix namespaces every redis key.
	RedisPrefix string `yaml:"redis-prefix" json:"redis-prefix"`
}

// UpstreamConfig holds outbound client settings.
type UpstreamConfig struct {
	// TimeoutSeconds bounds a single provider round trip. Defaults to 30.
	TimeoutSeconds int `yaml:"timeout-seconds" json:"timeout-seconds"`

	// ProxyURL routes provider traffic through an http, https or socks5 proxy.
	ProxyURL string `yaml:"proxy-url" json:"proxy-url"`

	// MaxResponseBytes caps the upstream body size read into memory. Defaults to 10 MiB.
	MaxResponseBytes int64 `yaml:"max-response-bytes" json:"max-response-bytes"`
}

// ProviderURLs overrides the hard-coded provider endpoints.
type ProviderURLs struct {
	OpenAI    string `yaml:"openai-url" json:"openai-url"`
	Anthropic string `yaml:"anthropic-url" json:"anthropic-url"`
	Cohere    string `yaml:"cohere-url" json:"cohere-url"`
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// ResolveConfigPath returns the config path to use, falling back to the default.
func ResolveConfigPath(path string) string {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return DefaultConfigPath
	}
	return filepath.Clean(trimmed)
}

// LoadConfig reads the YAML file at path. A missing file yields the defaults.
func LoadConfig(path string) (*Config, error) {
	cfg := &Config{}
	data, errRead := os.ReadFile(path)
	switch {
	case errRead == nil:
		if errUnmarshal := yaml.Unmarshal(data, cfg); errUnmarshal != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, errUnmarshal)
		}
	case errors.Is(errRead, os.ErrNotExist):
	default:
		return nil, fmt.Errorf("config: read %s: %w", path, errRead)
	}

	cfg.ApplyEnv(os.LookupEnv)
	cfg.applyDefaults()
	if errValidate := cfg.Validate(); errValidate != nil {
		return nil, errValidate
	}
	return cfg, nil
}

// LookupFunc matches os.LookupEnv.
type LookupFunc func(key string) (string, bool)

// ApplyEnv overrides file values with environment variables.
func (c *Config) ApplyEnv(lookup LookupFunc) {
	if c == nil || lookup == nil {
		return
	}
	get := func(keys ...string) (string, bool) {
		for _, key := range keys {
			if value, ok := lookup(key); ok {
				if trimmed := strings.TrimSpace(value); trimmed != "" {
					return trimmed, true
				}
			}
		}
		return "", false
	}

	if value, ok := get("PORT"); ok {
		if port, errAtoi := strconv.Atoi(value); errAtoi == nil {
			c.Port = port
		}
	}
	if value, ok := get("BASE_URL", "RENDER_EXTERNAL_URL"); ok {
		c.BaseURL = value
	}
	if value, ok := get("LOG_LEVEL"); ok {
		c.LogLevel = value
	}
	if value, ok := get("KEYSHIELD_SECRET_KEY"); ok {
		c.SecretKey = value
	}
	if value, ok := get("DATABASE_DSN", "DATABASE_URL"); ok {
		c.Store.DSN = value
	}
	if value, ok := get("REDIS_ADDR"); ok {
		c.Store.RedisAddr = value
		if strings.TrimSpace(c.Store.Backend) == "" {
			c.Store.Backend = StoreBackendRedis
		}
	}
	if value, ok := get("REDIS_PASSWORD"); ok {
		c.Store.RedisPassword = value
	}
	if value, ok := get("PROXY_URL"); ok {
		c.Upstream.ProxyURL = value
	}
	if value, ok := get("CORS_ORIGINS"); ok {
		c.CORSOrigins = splitList(value)
	}
}

func (c *Config) applyDefaults() {
	if c.Port <= 0 {
		c.Port = 3001
	}
	c.BaseURL = strings.TrimRight(strings.TrimSpace(c.BaseURL), "/")
	if c.BaseURL == "" {
		c.BaseURL = fmt.Sprintf("http://localhost:%d", c.Port)
	}
	if strings.TrimSpace(c.LogLevel) == "" {
		c.LogLevel = "info"
		if c.Debug {
			c.LogLevel = "debug"
		}
	}
	if strings.TrimSpace(c.LogsDir) == "" {
		c.LogsDir = "logs"
	}
	if len(c.CORSOrigins) == 0 {
		c.CORSOrigins = []string{"http://localhost:5173", c.BaseURL}
	}
	c.Store.Backend = strings.ToLower(strings.TrimSpace(c.Store.Backend))
	if c.Store.Backend == "" {
		c.Store.Backend = StoreBackendGorm
	}
	if strings.TrimSpace(c.Store.RedisPrefix) == "" {
		c.Store.RedisPrefix = "keyshield"
	}
	if c.Upstream.TimeoutSeconds <= 0 {
		c.Upstream.TimeoutSeconds = 30
	}
	if c.Upstream.MaxResponseBytes <= 0 {
		c.Upstream.MaxResponseBytes = 10 << 20
	}
}

// Validate reports configuration values that cannot work.
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case StoreBackendGorm:
	case StoreBackendRedis:
		if strings.TrimSpace(c.Store.RedisAddr) == "" {
			return fmt.Errorf("config: store.redis-addr is required for the redis backend")
		}
	default:
		return fmt.Errorf("config: unsupported store backend %q", c.Store.Backend)
	}
	if c.Port > 65535 {
		return fmt.Errorf("config: invalid port %d", c.Port)
	}
	return nil
}

// ListenAddr returns the host:port the HTTP server binds to.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
