package config

import (
	"fmt"
	"net/url"
	"strings"
)

// Validate performs validation of every section. Source DSNs are checked
// separately by RequireSources since cache-only tools run without them.
func (c *Config) Validate() error {
	if err := c.validateAPI(); err != nil {
		return fmt.Errorf("api config error: %v", err)
	}

	if err := c.validateSources(); err != nil {
		return fmt.Errorf("sources config error: %v", err)
	}

	if err := c.validateCache(); err != nil {
		return fmt.Errorf("cache config error: %v", err)
	}

	if err := c.Scoring.Validate(); err != nil {
		return fmt.Errorf("scoring config error: %v", err)
	}

	if err := c.validateLogging(); err != nil {
		return fmt.Errorf("logging config error: %v", err)
	}

	if err := c.validateTracing(); err != nil {
		return fmt.Errorf("tracing config error: %v", err)
	}

	if err := c.validateKafka(); err != nil {
		return fmt.Errorf("kafka config error: %v", err)
	}

	if c.Monitor.Enabled && c.Monitor.Interval <= 0 {
		return fmt.Errorf("monitor config error: interval must be positive")
	}

	return nil
}

// RequireSources reports a missing customer or activity DSN.
func (c *Config) RequireSources() error {
	if c.Sources.CustomerDSN == "" {
		return fmt.Errorf("sources config error: customer_dsn is required (or CUSTOMER_DB_DSN)")
	}
	if c.Sources.ActivityDSN == "" {
		return fmt.Errorf("sources config error: activity_dsn is required (or ACTIVITY_DB_DSN)")
	}
	return nil
}

func (c *Config) validateAPI() error {
	if c.API.Port <= 0 || c.API.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535")
	}

	if c.API.EnableCORS && len(c.API.AllowedOrigins) == 0 {
		return fmt.Errorf("allowed_origins is required when CORS is enabled")
	}

	for user := range c.API.BasicAuthUsers {
		if user == "" || strings.Contains(user, ":") {
			return fmt.Errorf("invalid basic auth user %q", user)
		}
	}

	return nil
}

func (c *Config) validateSources() error {
	if c.Sources.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.Sources.MaxOpenConns < 0 {
		return fmt.Errorf("max_open_conns must not be negative")
	}
	return nil
}

func (c *Config) validateCache() error {
	switch c.Cache.Backend {
	case BackendRedis:
		if c.Cache.Addr == "" {
			return fmt.Errorf("addr is required for the redis backend")
		}
	case BackendMemory:
	default:
		return fmt.Errorf("invalid backend: %s (must be redis or memory)", c.Cache.Backend)
	}

	if c.Cache.Namespace == "" || strings.Contains(c.Cache.Namespace, ":") {
		return fmt.Errorf("namespace must be non-empty and must not contain ':'")
	}

	if c.Cache.OpTimeout < 0 {
		return fmt.Errorf("op_timeout must not be negative")
	}

	if c.Cache.DefaultTTL <= 0 {
		return fmt.Errorf("default_ttl must be positive")
	}

	for view, ttl := range c.Cache.TTL {
		if ttl <= 0 {
			return fmt.Errorf("ttl for %s must be positive", view)
		}
	}

	return nil
}

func (c *Config) validateLogging() error {
	level := strings.ToLower(c.Logging.Level)
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}

	if !validLevels[level] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", level)
	}

	format := strings.ToLower(c.Logging.Format)
	validFormats := map[string]bool{"json": true, "text": true}

	if !validFormats[format] {
		return fmt.Errorf("invalid log format: %s (must be json or text)", format)
	}

	return nil
}

func (c *Config) validateTracing() error {
	if !c.Tracing.Enabled {
		return nil
	}

	if _, err := url.Parse(c.Tracing.JaegerEndpoint); err != nil || c.Tracing.JaegerEndpoint == "" {
		return fmt.Errorf("invalid jaeger_endpoint: %q", c.Tracing.JaegerEndpoint)
	}

	if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1 {
		return fmt.Errorf("sample_rate must be between 0 and 1")
	}

	return nil
}

func (c *Config) validateKafka() error {
	if !c.Kafka.Enabled {
		return nil
	}

	if len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("brokers is required when kafka is enabled")
	}

	for _, broker := range c.Kafka.Brokers {
		if !strings.Contains(broker, ":") {
			return fmt.Errorf("invalid broker format: %s (expected host:port)", broker)
		}
	}

	if c.Kafka.Topic == "" {
		return fmt.Errorf("topic is required when kafka is enabled")
	}

	if c.Kafka.CreateTopics && (c.Kafka.Partitions < 1 || c.Kafka.ReplicationFactor < 1) {
		return fmt.Errorf("partitions and replication_factor must be at least 1 to create topics")
	}

	return nil
}
