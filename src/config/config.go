package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"quote-relay/src/models"
	"quote-relay/src/utils"

	"gopkg.in/yaml.v3"
)

// -----------------------------------------------------------------------------

// Config wraps models.MConfig and provides business logic methods
type Config struct {
	*models.MConfig
}

// LookupFunc matches os.LookupEnv.
type LookupFunc func(key string) (string, bool)

// -----------------------------------------------------------------------------

// NewConfig creates a new Config from a YAML file, overlaid with the process environment
func NewConfig(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", configPath, err)
	}
	return Parse(data, os.LookupEnv)
}

// -----------------------------------------------------------------------------

// Parse builds a validated Config from YAML bytes and an environment lookup.
func Parse(data []byte, lookup LookupFunc) (*Config, error) {
	var modelConfig models.MConfig
	if err := yaml.Unmarshal(data, &modelConfig); err != nil {
		return nil, fmt.Errorf("failed to parse config from YAML: %w", err)
	}

	config := &Config{MConfig: &modelConfig}
	config.applyDefaults()
	if lookup != nil {
		if err := config.ApplyEnv(lookup); err != nil {
			return nil, err
		}
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// -----------------------------------------------------------------------------

func (c *Config) applyDefaults() {
	if c.Name == "" {
		c.Name = "quote-relay"
	}
	if c.Host == "" {
		c.Host = "0.0.0.0"
	}
	if c.Port == 0 {
		c.Port = utils.DefaultHTTPPort
	}
	if c.LogLevel == "" {
		c.LogLevel = "INFO"
	}
	if c.GrpcPort == 0 {
		c.GrpcPort = utils.DefaultGrpcPort
	}
	if c.MemoryLimitPercent == 0 {
		c.MemoryLimitPercent = utils.DefaultMemoryLimitPercent
	}
	if len(c.CorsAllowedOrigins) == 0 {
		c.CorsAllowedOrigins = []string{"*"}
	}
	if c.Storage.DBType == "" {
		c.Storage.DBType = "none"
	}
	if c.Storage.FlushIntervalSeconds == 0 {
		c.Storage.FlushIntervalSeconds = utils.DefaultFlushIntervalSeconds
	}
	if c.Network.RequestTimeout == 0 {
		c.Network.RequestTimeout = utils.DefaultRequestTimeout
	}
	if c.Upstream.Provider == "" {
		c.Upstream.Provider = "alpaca"
	}
	if c.Upstream.Feed == "" {
		c.Upstream.Feed = utils.DefaultFeed
	}
	if c.Upstream.ReconnectLimit == 0 {
		c.Upstream.ReconnectLimit = utils.DefaultReconnectLimit
	}
	if c.Upstream.ReconnectDelaySeconds == 0 {
		c.Upstream.ReconnectDelaySeconds = utils.DefaultReconnectDelay
	}
	if c.Websocket.SendBuffer == 0 {
		c.Websocket.SendBuffer = utils.DefaultSendBuffer
	}
	if c.Websocket.MaxMessageSize == 0 {
		c.Websocket.MaxMessageSize = utils.DefaultMaxMessageSize
	}
}

// -----------------------------------------------------------------------------

// ApplyEnv overrides credentials and listen settings from environment variables.
func (c *Config) ApplyEnv(lookup LookupFunc) error {
	if v, ok := lookup("ALPACA_KEY_ID"); ok && v != "" {
		c.Upstream.KeyID = v
	}
	if v, ok := lookup("ALPACA_SECRET_KEY"); ok && v != "" {
		c.Upstream.SecretKey = v
	}
	if v, ok := lookup("ALPACA_FEED"); ok && v != "" {
		c.Upstream.Feed = strings.ToLower(v)
	}
	if v, ok := lookup("LOG_LEVEL"); ok && v != "" {
		c.LogLevel = strings.ToUpper(v)
	}
	if v, ok := lookup("PORT"); ok && v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid PORT value %q: %w", v, err)
		}
		c.Port = port
	}
	return nil
}

// -----------------------------------------------------------------------------

// Validate performs basic configuration validation. Missing upstream credentials are
// allowed: the relay then runs unconfigured and rejects subscriptions.
func (c *Config) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("application name cannot be empty")
	}

	if c.Host == "" {
		return fmt.Errorf("server host cannot be empty")
	}
	if c.Port <= 1024 || c.Port > 65535 {
		return fmt.Errorf("invalid server port number: %d (must be between 1025 and 65535)", c.Port)
	}
	if c.GrpcPort <= 1024 || c.GrpcPort > 65535 {
		return fmt.Errorf("invalid grpc port number: %d (must be between 1025 and 65535)", c.GrpcPort)
	}
	if c.GrpcPort == c.Port {
		return fmt.Errorf("grpc port %d collides with http port", c.GrpcPort)
	}

	if c.MemoryLimitPercent > 100 {
		return fmt.Errorf("memory limit percent cannot exceed 100")
	}

	switch c.Storage.DBType {
	case "none":
	case "sqlite":
		if c.Storage.DBPath == "" {
			return fmt.Errorf("database path cannot be empty for sqlite")
		}
	case "postgres":
		if c.Storage.DBConnectionString == "" {
			return fmt.Errorf("database connection string cannot be empty for postgres")
		}
	case "redis":
		if c.Storage.RedisAddr == "" {
			return fmt.Errorf("redis address cannot be empty for redis storage")
		}
	default:
		return fmt.Errorf("unsupported database type: %s", c.Storage.DBType)
	}
	if c.Storage.FlushIntervalSeconds < 0 {
		return fmt.Errorf("flush interval cannot be negative")
	}

	if c.Network.RequestTimeout <= 0 {
		return fmt.Errorf("request timeout must be greater than 0")
	}

	if c.Upstream.Provider != "alpaca" {
		return fmt.Errorf("unsupported upstream provider: %s", c.Upstream.Provider)
	}
	switch c.Upstream.Feed {
	case "iex", "sip", "delayed_sip", "otc":
	default:
		return fmt.Errorf("unsupported upstream feed: %s", c.Upstream.Feed)
	}
	if c.Upstream.ReconnectLimit < 0 || c.Upstream.ReconnectDelaySeconds < 0 {
		return fmt.Errorf("reconnect settings cannot be negative")
	}

	if c.Websocket.SendBuffer <= 0 {
		return fmt.Errorf("websocket send buffer must be greater than 0")
	}
	if c.Websocket.MaxMessageSize <= 0 {
		return fmt.Errorf("websocket max message size must be greater than 0")
	}

	return nil
}

// -----------------------------------------------------------------------------

// HasUpstreamCredentials reports whether the upstream provider can be used at all.
func (c *Config) HasUpstreamCredentials() bool {
	return c.Upstream.KeyID != "" && c.Upstream.SecretKey != ""
}

// -----------------------------------------------------------------------------

// Save persists the configuration without credentials to the specified YAML file path
func (c *Config) Save(configPath string) error {
	redacted := *c.MConfig
	redacted.Upstream.KeyID = ""
	redacted.Upstream.SecretKey = ""

	data, err := yaml.Marshal(&redacted)
	if err != nil {
		return fmt.Errorf("failed to marshal config to YAML: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config to file '%s': %w", configPath, err)
	}

	return nil
}
