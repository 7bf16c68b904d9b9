// Package server provides configuration helpers that define runtime defaults,
// validation, environment overrides and YAML loading for the chat relay.
package server

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Tyrowin/directchat/internal/chat"
)

// Default values for optional configuration fields.
const (
	DefaultPort             = ":8080"
	DefaultMaxMessageSize   = 4096
	DefaultShutdownTimeout  = 10 * time.Second
	DefaultPingInterval     = 54 * time.Second
	DefaultPongWait         = 60 * time.Second
	DefaultWriteWait        = 10 * time.Second
	defaultAllowedOriginURL = "http://localhost:8080"
)

// Config holds the server configuration settings including security controls
// and the limits handed to the chat service.
type Config struct {
	Port             string
	AllowedOrigins   []string
	MaxMessageSize   int64
	MaxWorkers       int
	PollInterval     time.Duration
	MailboxCapacity  int
	MaxNameLength    int
	HandshakeTimeout time.Duration
	AttachTimeout    time.Duration
	ShutdownTimeout  time.Duration
}

var (
	configMu        sync.RWMutex
	activeConfig    Config
	allowedOrigins  map[string]struct{}
	allowAllOrigins bool
)

func init() {
	SetConfig(nil)
}

func defaultConfig() Config {
	return Config{
		Port: DefaultPort,
		AllowedOrigins: []string{
			defaultAllowedOriginURL,
		},
		MaxMessageSize:   DefaultMaxMessageSize,
		MaxWorkers:       chat.DefaultMaxWorkers,
		PollInterval:     chat.DefaultPollInterval,
		MailboxCapacity:  chat.DefaultMailboxCapacity,
		MaxNameLength:    chat.DefaultMaxNameLength,
		HandshakeTimeout: chat.DefaultHandshakeTimeout,
		AttachTimeout:    chat.DefaultAttachTimeout,
		ShutdownTimeout:  DefaultShutdownTimeout,
	}
}

func applyDefaults(cfg Config) Config {
	def := defaultConfig()

	cfg.Port = normalizePort(cfg.Port)
	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = def.MaxMessageSize
	}
	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = def.MaxWorkers
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = def.PollInterval
	}
	if cfg.MailboxCapacity < 0 {
		cfg.MailboxCapacity = def.MailboxCapacity
	}
	if cfg.MaxNameLength <= 0 {
		cfg.MaxNameLength = def.MaxNameLength
	}
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = def.HandshakeTimeout
	}
	if cfg.AttachTimeout <= 0 {
		cfg.AttachTimeout = def.AttachTimeout
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = def.ShutdownTimeout
	}
	return cfg
}

func sanitizeConfig(cfg Config) Config {
	cfg = applyDefaults(cfg)

	normalizedOrigins, allowAll := normalizeOrigins(cfg.AllowedOrigins)
	cfg.AllowedOrigins = normalizedOrigins

	configMu.Lock()
	defer configMu.Unlock()

	activeConfig = cfg
	allowAllOrigins = allowAll
	allowedOrigins = make(map[string]struct{}, len(normalizedOrigins))
	for _, origin := range normalizedOrigins {
		allowedOrigins[origin] = struct{}{}
	}

	return cfg
}

// SetConfig applies the provided configuration. Passing nil resets to defaults.
func SetConfig(cfg *Config) {
	if cfg == nil {
		sanitizeConfig(defaultConfig())
		return
	}

	copied := *cfg
	copied.AllowedOrigins = append([]string(nil), cfg.AllowedOrigins...)
	sanitizeConfig(copied)
}

// CurrentConfig returns a copy of the configuration in effect.
func CurrentConfig() Config {
	configMu.RLock()
	defer configMu.RUnlock()

	cfg := activeConfig
	cfg.AllowedOrigins = append([]string(nil), cfg.AllowedOrigins...)
	return cfg
}

// NewConfig creates a Config instance populated with default values for all settings.
func NewConfig() *Config {
	cfg := defaultConfig()
	return &cfg
}

// ChatOptions converts the configuration into chat service options.
func (c *Config) ChatOptions() chat.Options {
	return chat.Options{
		MaxWorkers:       c.MaxWorkers,
		MailboxCapacity:  c.MailboxCapacity,
		MaxNameLength:    c.MaxNameLength,
		PollInterval:     c.PollInterval,
		HandshakeTimeout: c.HandshakeTimeout,
		AttachTimeout:    c.AttachTimeout,
	}
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if c.Port == "" {
		return errors.New("port is required")
	}
	_, port, err := net.SplitHostPort(c.Port)
	if err != nil {
		return fmt.Errorf("port %q: %w", c.Port, err)
	}
	if n, err := strconv.Atoi(port); err != nil || n < 0 || n > 65535 {
		return fmt.Errorf("port %q is not a valid port number", c.Port)
	}
	if c.MaxWorkers <= 0 {
		return fmt.Errorf("max_workers must be positive, got %d", c.MaxWorkers)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll_interval_ms must be positive, got %s", c.PollInterval)
	}
	if c.MailboxCapacity < 0 {
		return fmt.Errorf("mailbox_capacity cannot be negative, got %d", c.MailboxCapacity)
	}
	if c.MaxMessageSize < 64 {
		return fmt.Errorf("max_message_size must be at least 64 bytes, got %d", c.MaxMessageSize)
	}
	return nil
}

// NewConfigFromEnv creates a Config instance from environment variables.
// Falls back to default values if environment variables are not set.
func NewConfigFromEnv() *Config {
	cfg := defaultConfig()
	applyEnv(&cfg)
	return &cfg
}

func applyEnv(cfg *Config) {
	if port := os.Getenv("SERVER_PORT"); port != "" {
		cfg.Port = normalizePort(port)
	}

	if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
		cfg.AllowedOrigins = parseOrigins(origins)
	}

	if maxSize := os.Getenv("MAX_MESSAGE_SIZE"); maxSize != "" {
		cfg.MaxMessageSize = parseMaxMessageSize(maxSize, cfg.MaxMessageSize)
	}

	if workers := os.Getenv("MAX_WORKERS"); workers != "" {
		cfg.MaxWorkers = parseIntValue(workers, cfg.MaxWorkers)
	}

	if interval := os.Getenv("POLL_INTERVAL_MS"); interval != "" {
		cfg.PollInterval = parseMillis(interval, cfg.PollInterval)
	}

	if capacity := os.Getenv("MAILBOX_CAPACITY"); capacity != "" {
		if parsed, err := strconv.Atoi(capacity); err == nil && parsed >= 0 {
			cfg.MailboxCapacity = parsed
		}
	}

	if timeout := os.Getenv("ATTACH_TIMEOUT_MS"); timeout != "" {
		cfg.AttachTimeout = parseMillis(timeout, cfg.AttachTimeout)
	}
}

// fileConfig mirrors the YAML layout of a config file.
type fileConfig struct {
	Port               string   `yaml:"port"`
	AllowedOrigins     []string `yaml:"allowed_origins"`
	MaxMessageSize     int64    `yaml:"max_message_size"`
	MaxWorkers         int      `yaml:"max_workers"`
	PollIntervalMs     int      `yaml:"poll_interval_ms"`
	MailboxCapacity    *int     `yaml:"mailbox_capacity"`
	MaxNameLength      int      `yaml:"max_name_length"`
	HandshakeTimeoutMs int      `yaml:"handshake_timeout_ms"`
	AttachTimeoutMs    int      `yaml:"attach_timeout_ms"`
	ShutdownTimeoutMs  int      `yaml:"shutdown_timeout_ms"`
}

// LoadConfig reads a YAML config file, expands ${VAR} references, applies
// environment overrides and defaults, and validates the result. An empty
// path yields the environment-derived configuration.
func LoadConfig(path string) (*Config, error) {
	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}

		var fc fileConfig
		if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &fc); err != nil {
			return nil, fmt.Errorf("parse config yaml: %w", err)
		}
		fc.apply(&cfg)
	}

	applyEnv(&cfg)
	cfg = applyDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &cfg, nil
}

func (fc fileConfig) apply(cfg *Config) {
	if fc.Port != "" {
		cfg.Port = normalizePort(fc.Port)
	}
	if len(fc.AllowedOrigins) > 0 {
		cfg.AllowedOrigins = fc.AllowedOrigins
	}
	if fc.MaxMessageSize > 0 {
		cfg.MaxMessageSize = fc.MaxMessageSize
	}
	if fc.MaxWorkers > 0 {
		cfg.MaxWorkers = fc.MaxWorkers
	}
	if fc.PollIntervalMs > 0 {
		cfg.PollInterval = time.Duration(fc.PollIntervalMs) * time.Millisecond
	}
	if fc.MailboxCapacity != nil {
		cfg.MailboxCapacity = *fc.MailboxCapacity
	}
	if fc.MaxNameLength > 0 {
		cfg.MaxNameLength = fc.MaxNameLength
	}
	if fc.HandshakeTimeoutMs > 0 {
		cfg.HandshakeTimeout = time.Duration(fc.HandshakeTimeoutMs) * time.Millisecond
	}
	if fc.AttachTimeoutMs > 0 {
		cfg.AttachTimeout = time.Duration(fc.AttachTimeoutMs) * time.Millisecond
	}
	if fc.ShutdownTimeoutMs > 0 {
		cfg.ShutdownTimeout = time.Duration(fc.ShutdownTimeoutMs) * time.Millisecond
	}
}

// normalizePort accepts "8080", ":8080" or "host:8080".
func normalizePort(port string) string {
	port = strings.TrimSpace(port)
	if port == "" {
		return DefaultPort
	}
	if !strings.Contains(port, ":") {
		return ":" + port
	}
	return port
}

func parseOrigins(origins string) []string {
	parts := strings.Split(origins, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

func parseMaxMessageSize(value string, defaultValue int64) int64 {
	if size, err := strconv.ParseInt(value, 10, 64); err == nil && size > 0 {
		return size
	}
	return defaultValue
}

func parseIntValue(value string, defaultValue int) int {
	if parsed, err := strconv.Atoi(value); err == nil && parsed > 0 {
		return parsed
	}
	return defaultValue
}

func parseMillis(value string, defaultValue time.Duration) time.Duration {
	if ms, err := strconv.Atoi(value); err == nil && ms > 0 {
		return time.Duration(ms) * time.Millisecond
	}
	return defaultValue
}
