package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/redis/go-redis/v9"
	"gopkg.in/yaml.v3"
)

// Defaults applied by Validate when a field is left empty.
const (
	DefaultInstance       = "default"
	DefaultRedisURL       = "redis://localhost:6379"
	DefaultHTTPAddr       = ":8080"
	DefaultLogLevel       = "info"
	DefaultBuffer         = 64
	DefaultMaxConcurrency = 256
)

// Environment variables read by ApplyEnv.
const (
	EnvInstance = "TUPLEBRIDGE_INSTANCE"
	EnvRedisURL = "REDIS_URL"
	EnvHTTPAddr = "TUPLEBRIDGE_HTTP_ADDR"
	EnvLogLevel = "TUPLEBRIDGE_LOG_LEVEL"
	EnvBuffer   = "TUPLEBRIDGE_BUFFER"
)

// Config is the bridge service configuration, read from tuplebridge.yml or
// tuplebridge.toml.
type Config struct {
	Version  string         `yaml:"version" toml:"version"`
	Instance string         `yaml:"instance" toml:"instance"`
	RedisURL string         `yaml:"redis_url" toml:"redis_url"`
	HTTPAddr string         `yaml:"http_addr" toml:"http_addr"`
	LogLevel string         `yaml:"log_level" toml:"log_level"`
	Delivery DeliveryConfig `yaml:"delivery" toml:"delivery"`
}

// DeliveryConfig tunes request handling and match delivery.
type DeliveryConfig struct {
	// Buffer is the size of each subscription's match channel and of each
	// reply mailbox.
	Buffer int `yaml:"buffer,omitempty" toml:"buffer,omitempty"`

	// MaxConcurrency bounds the number of requests dispatched at once.
	MaxConcurrency int `yaml:"max_concurrency,omitempty" toml:"max_concurrency,omitempty"`
}

// Default returns a configuration with every default applied.
func Default() *Config {
	c := &Config{}
	c.applyDefaults()
	return c
}

func (c *Config) applyDefaults() {
	if c.Version == "" {
		c.Version = "1.0"
	}
	if c.Instance == "" {
		c.Instance = DefaultInstance
	}
	if c.RedisURL == "" {
		c.RedisURL = DefaultRedisURL
	}
	if c.HTTPAddr == "" {
		c.HTTPAddr = DefaultHTTPAddr
	}
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	if c.Delivery.Buffer == 0 {
		c.Delivery.Buffer = DefaultBuffer
	}
	if c.Delivery.MaxConcurrency == 0 {
		c.Delivery.MaxConcurrency = DefaultMaxConcurrency
	}
}

// ApplyEnv overrides fields from the environment. Unset variables leave the
// field unchanged.
func (c *Config) ApplyEnv() error {
	if v := os.Getenv(EnvInstance); v != "" {
		c.Instance = v
	}
	if v := os.Getenv(EnvRedisURL); v != "" {
		c.RedisURL = v
	}
	if v := os.Getenv(EnvHTTPAddr); v != "" {
		c.HTTPAddr = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv(EnvBuffer); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvBuffer, err)
		}
		c.Delivery.Buffer = n
	}
	return nil
}

// Validate applies defaults, then performs strict validation.
func (c *Config) Validate() error {
	c.applyDefaults()

	if c.Version != "1.0" {
		return fmt.Errorf("unsupported version: %s (expected: 1.0)", c.Version)
	}
	if strings.ContainsAny(c.Instance, ": \t\n") {
		return fmt.Errorf("instance name '%s' must not contain ':' or whitespace", c.Instance)
	}
	if _, err := redis.ParseURL(c.RedisURL); err != nil {
		return fmt.Errorf("invalid redis_url: %w", err)
	}
	switch strings.ToLower(c.LogLevel) {
	case "trace", "debug", "info", "warn", "error", "fatal", "panic", "disabled":
	default:
		return fmt.Errorf("unknown log_level '%s'", c.LogLevel)
	}
	if c.Delivery.Buffer < 1 {
		return fmt.Errorf("delivery.buffer must be positive, got %d", c.Delivery.Buffer)
	}
	if c.Delivery.MaxConcurrency < 1 {
		return fmt.Errorf("delivery.max_concurrency must be positive, got %d", c.Delivery.MaxConcurrency)
	}
	return nil
}

// RedisOptions parses RedisURL into connection options.
func (c *Config) RedisOptions() (*redis.Options, error) {
	opts, err := redis.ParseURL(c.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis_url: %w", err)
	}
	return opts, nil
}

// Load reads the configuration at path, applies environment overrides and
// validates it. Files ending in .toml are parsed as TOML, anything else as YAML.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var config Config
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if _, err := toml.Decode(string(data), &config); err != nil {
			return nil, fmt.Errorf("failed to parse TOML: %w", err)
		}
	} else {
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse YAML: %w", err)
		}
	}

	if err := config.ApplyEnv(); err != nil {
		return nil, fmt.Errorf("invalid environment: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}
